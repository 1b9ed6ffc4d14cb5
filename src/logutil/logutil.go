package logutil

import (
	"fmt"
	"io"
	"log"
	"os"
	"strings"
	"sync"
	"unicode/utf8"
)

const (
	DefaultLogFile = "gemini_assistant.log"
	maxSizeBytes   = 10 * 1024 * 1024 // 10 MB
	maxArchives    = 3
)

// Setup enables file logging with basic size-based rotation (10MB, max 3 files).
// When file logging is disabled, logs go to fallback (io.Discard for the
// desktop app, stderr for the native host whose stdout is the protocol channel).
func Setup(enableFileLogging bool, path string, fallback io.Writer) {
	log.SetFlags(log.LstdFlags | log.Lshortfile)
	if fallback == nil {
		fallback = io.Discard
	}
	if !enableFileLogging {
		log.SetOutput(fallback)
		return
	}
	w, err := NewRotatingWriter(path)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to open log file: %v\n", err)
		log.SetOutput(fallback)
		return
	}
	log.SetOutput(w)
}

// RotatingWriter appends to a log file and rotates it to .1 .. .3 once it
// grows past 10MB.
type RotatingWriter struct {
	mu   sync.Mutex
	path string
	max  int64
	f    *os.File
}

// NewRotatingWriter opens path for appending, rotating first if it is already oversized.
func NewRotatingWriter(path string) (*RotatingWriter, error) {
	if path == "" {
		path = DefaultLogFile
	}
	w := &RotatingWriter{path: path, max: maxSizeBytes}
	rotate(path, w.max)
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		return nil, err
	}
	w.f = f
	return w, nil
}

func (w *RotatingWriter) Write(p []byte) (int, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	// naive rotation check per write
	if st, err := w.f.Stat(); err == nil && st.Size()+int64(len(p)) > w.max {
		_ = w.f.Close()
		// force the current file out even if this write alone tips it over
		forceRotate(w.path)
		nf, err := os.OpenFile(w.path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
		if err != nil {
			return 0, err
		}
		w.f = nf
	}
	return w.f.Write(p)
}

// Close closes the underlying file.
func (w *RotatingWriter) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.f.Close()
}

func rotate(path string, max int64) {
	if st, err := os.Stat(path); err == nil && st.Size() > max {
		forceRotate(path)
	}
}

func forceRotate(path string) {
	_ = os.Remove(archiveName(path, maxArchives))
	for i := maxArchives - 1; i >= 1; i-- {
		_ = os.Rename(archiveName(path, i), archiveName(path, i+1))
	}
	_ = os.Rename(path, archiveName(path, 1))
}

func archiveName(path string, n int) string { return fmt.Sprintf("%s.%d", path, n) }

// RedactKey masks an API key, leaving first/last 4 chars: xxxx...yyyy
func RedactKey(k string) string {
	if len(k) <= 8 {
		return "********"
	}
	return fmt.Sprintf("%s...%s", k[:4], k[len(k)-4:])
}

// Sanitize truncates untrusted text to maxLen runes and escapes control
// characters so it cannot forge log lines.
func Sanitize(text string, maxLen int) string {
	if maxLen > 0 && utf8.RuneCountInString(text) > maxLen {
		text = string([]rune(text)[:maxLen]) + "..."
	}
	var b strings.Builder
	for _, r := range text {
		switch {
		case r == '\n' || r == '\r':
			b.WriteString("\\n")
		case r == '\t':
			b.WriteString("\\t")
		case r < 32 || r == 127:
			b.WriteByte('?')
		default:
			b.WriteRune(r)
		}
	}
	return b.String()
}
