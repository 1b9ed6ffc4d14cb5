package eventloop

import (
	"context"
	"log"
	"time"

	"gemini-assistant/src/assistant"
	"gemini-assistant/src/screenshot"
	"gemini-assistant/src/singleinstance"
	"gemini-assistant/src/worker"
)

// View is the window the loop drives. Implementations must be safe to call
// from the loop goroutine.
type View interface {
	SetStatus(msg string)
	SetHistory(text string)
	Show()
	Hide()
	Toggle()
	// SelectRegion blocks until the user drags a rectangle or cancels.
	SelectRegion(ctx context.Context) (region screenshot.Region, cancelled bool, err error)
}

// Loop is the single-threaded coordinator for hotkey, tray and button requests.
type Loop struct {
	view      View
	pool      *worker.Pool
	history   *assistant.History
	srv       *singleinstance.Server
	busy      bool
	results   chan result
	captureCh chan struct{}
	toggleCh  chan struct{}
	clearCh   chan struct{}
	deadline  time.Duration
}

type result struct {
	x      assistant.Exchange
	cancel context.CancelFunc
}

// Options configures New. Zero values get defaults.
type Options struct {
	// Server is the instance server owned for the loop's lifetime; nil skips it.
	Server   *singleinstance.Server
	History  *assistant.History
	Deadline time.Duration
}

// New creates a loop processing captures with proc.
func New(view View, proc worker.Processor, opts Options) *Loop {
	if opts.History == nil {
		opts.History = assistant.NewHistory()
	}
	if opts.Deadline <= 0 {
		opts.Deadline = 60 * time.Second
	}
	return &Loop{
		view:      view,
		pool:      worker.New(proc, 1),
		history:   opts.History,
		srv:       opts.Server,
		results:   make(chan result, 1),
		captureCh: make(chan struct{}, 1),
		toggleCh:  make(chan struct{}, 4),
		clearCh:   make(chan struct{}, 1),
		deadline:  opts.Deadline,
	}
}

// History returns the loop's history.
func (l *Loop) History() *assistant.History { return l.history }

// Capture asks the loop to start a region capture. Safe from any goroutine;
// presses while one is already queued are dropped.
func (l *Loop) Capture() { post(l.captureCh) }

// ToggleView asks the loop to show or hide the window.
func (l *Loop) ToggleView() { post(l.toggleCh) }

// ClearHistory asks the loop to clear the history.
func (l *Loop) ClearHistory() { post(l.clearCh) }

func post(ch chan struct{}) {
	select {
	case ch <- struct{}{}:
	default:
	}
}

// Run starts the instance server and processes requests until ctx is
// cancelled. A server that fails to start is logged and the loop runs
// without it.
func (l *Loop) Run(ctx context.Context) error {
	if l.srv != nil {
		if err := l.srv.Start(ctx); err != nil {
			log.Printf("WARNING: instance server not started: %v", err)
		} else {
			log.Printf("Resident listening on %s", l.srv.Addr())
		}
		defer l.srv.Stop()
	}
	defer l.pool.Close()

	l.view.SetHistory(l.history.Render())
	l.view.SetStatus(assistant.StatusReady)

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-l.captureCh:
			l.handleCapture(ctx)
		case <-l.toggleCh:
			l.view.Toggle()
		case <-l.clearCh:
			l.history.Clear()
			l.view.SetHistory(l.history.Render())
			l.view.SetStatus(assistant.StatusCleared)
		case res := <-l.results:
			l.handleResult(res)
		}
	}
}

func (l *Loop) handleCapture(ctx context.Context) {
	if l.busy {
		log.Printf("handleCapture: busy, skipping")
		l.view.SetStatus(assistant.StatusBusy)
		return
	}

	l.view.SetStatus(assistant.StatusSelecting)
	l.view.Hide()
	region, cancelled, err := l.view.SelectRegion(ctx)
	l.view.Show()
	switch {
	case err != nil:
		log.Printf("handleCapture: selection error: %v", err)
		l.history.Add(assistant.Exchange{Question: assistant.QuestionCaptureFail, Answer: assistant.AnswerCaptureFail})
		l.view.SetHistory(l.history.Render())
		l.view.SetStatus(assistant.StatusCaptureFailed)
		return
	case cancelled || region.Empty():
		log.Printf("handleCapture: selection cancelled")
		l.view.SetStatus(assistant.StatusReady)
		return
	}

	jobCtx, cancel := context.WithTimeout(ctx, l.deadline)
	l.busy = true
	submitted := l.pool.Submit(jobCtx, region, func(x assistant.Exchange) {
		l.results <- result{x: x, cancel: cancel}
	})
	if !submitted {
		cancel()
		l.busy = false
		l.view.SetStatus(assistant.StatusBusy)
	}
}

func (l *Loop) handleResult(res result) {
	defer func() {
		l.busy = false
		if res.cancel != nil {
			res.cancel()
		}
	}()
	e := l.history.Add(res.x)
	log.Printf("handleResult: request #%d answered (%d chars)", e.Number, len(e.Answer))
	l.view.SetHistory(l.history.Render())
	l.view.Show()
	l.view.SetStatus(assistant.StatusReady)
}

// Deadline returns the per-capture deadline.
func (l *Loop) Deadline() time.Duration { return l.deadline }
