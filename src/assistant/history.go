package assistant

import (
	"fmt"
	"strings"
	"sync"
	"time"
)

const (
	// Placeholder is shown before the first exchange.
	Placeholder = "AI responses will appear here..."
	// ClearedText is shown after Clear.
	ClearedText = "History cleared. Ready for new captures!\n\nPress F12 to capture screen area"

	maxQuestionRunes = 100
	separator        = "\n==================================================\n"
)

// Entry is one numbered exchange.
type Entry struct {
	Number   int
	Time     time.Time
	Question string
	Answer   string
}

// Format renders e the way it appears in the history pane.
func (e Entry) Format() string {
	return fmt.Sprintf("Request #%d - %s\nQuestion: %s\nAnswer: %s",
		e.Number, e.Time.Format("15:04:05"), truncate(e.Question, maxQuestionRunes), e.Answer)
}

// History is the session's list of exchanges. It is safe for concurrent use.
type History struct {
	mu      sync.Mutex
	entries []Entry
	count   int
	cleared bool
	now     func() time.Time
}

func NewHistory() *History {
	return &History{now: time.Now}
}

// Add numbers x and appends it.
func (h *History) Add(x Exchange) Entry {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.count++
	e := Entry{Number: h.count, Time: h.now(), Question: x.Question, Answer: x.Answer}
	h.entries = append(h.entries, e)
	return e
}

// Clear drops every entry and restarts numbering at 1.
func (h *History) Clear() {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.entries = nil
	h.count = 0
	h.cleared = true
}

func (h *History) Entries() []Entry {
	h.mu.Lock()
	defer h.mu.Unlock()
	return append([]Entry(nil), h.entries...)
}

// Last returns the most recent entry.
func (h *History) Last() (Entry, bool) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if len(h.entries) == 0 {
		return Entry{}, false
	}
	return h.entries[len(h.entries)-1], true
}

// Render returns the full text of the history pane.
func (h *History) Render() string {
	h.mu.Lock()
	defer h.mu.Unlock()
	if len(h.entries) == 0 {
		if h.cleared {
			return ClearedText
		}
		return Placeholder
	}
	var b strings.Builder
	for i, e := range h.entries {
		if i > 0 {
			b.WriteString(separator)
		}
		b.WriteString(e.Format())
	}
	return b.String()
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n]) + "..."
}
