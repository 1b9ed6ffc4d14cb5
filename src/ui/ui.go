// Package ui is the desktop front end: the assistant window, the tray menu
// and the full-screen region selector.
package ui

import (
	"context"
	_ "embed"
	"errors"
	"fmt"
	"image"
	"log"
	"sync"
	"time"

	"fyne.io/fyne/v2"
	"fyne.io/fyne/v2/app"
	"fyne.io/fyne/v2/container"
	"fyne.io/fyne/v2/driver/desktop"
	"fyne.io/fyne/v2/widget"

	"gemini-assistant/src/assistant"
	"gemini-assistant/src/clipboard"
	"gemini-assistant/src/screenshot"
)

const (
	AppID = "com.gemini.assistant"
	title = "Gemini Assistant"

	// hideSettle gives the compositor time to remove the window before the
	// selector backdrop is captured.
	hideSettle = 250 * time.Millisecond
)

//go:embed icon.svg
var iconSVG []byte

var icon = fyne.NewStaticResource("icon.svg", iconSVG)

// Actions are invoked by buttons and tray items. They must not block.
type Actions struct {
	Capture func()
	Toggle  func()
	Clear   func()
	Quit    func()
}

// App owns the fyne application. Methods other than Run may be called from
// any goroutine.
type App struct {
	fyne    fyne.App
	win     fyne.Window
	history *assistant.History

	status      *widget.Label
	line        *statusLine
	historyText *widget.Label
	scroll      *container.Scroll
	copyButton  *widget.Button

	mu       sync.Mutex
	visible  bool
	backdrop image.Image
}

// New builds the window. Call Run on the main goroutine to show it.
func New(history *assistant.History, actions Actions) *App {
	a := &App{
		fyne:    app.NewWithID(AppID),
		history: history,
		visible: true,
	}
	a.fyne.SetIcon(icon)
	a.win = a.fyne.NewWindow(title)
	a.win.SetIcon(icon)

	a.status = widget.NewLabel(assistant.StatusReady)
	a.status.TextStyle = fyne.TextStyle{Bold: true}
	a.status.Wrapping = fyne.TextWrapWord
	a.line = &statusLine{
		ready: assistant.StatusReady,
		set:   func(msg string) { fyne.Do(func() { a.status.SetText(msg) }) },
	}

	a.historyText = widget.NewLabel(assistant.Placeholder)
	a.historyText.Wrapping = fyne.TextWrapWord
	a.scroll = container.NewVScroll(a.historyText)

	a.copyButton = widget.NewButton("Copy Answer", a.copyLastAnswer)
	buttons := container.NewGridWithColumns(3,
		widget.NewButton("Clear History", call(actions.Clear)),
		widget.NewButton("Test Capture", call(actions.Capture)),
		a.copyButton,
	)

	a.win.SetContent(container.NewBorder(a.status, buttons, nil, nil, a.scroll))
	a.win.Resize(fyne.NewSize(440, 520))
	a.win.SetCloseIntercept(func() { a.Hide() })

	if desk, ok := a.fyne.(desktop.App); ok {
		desk.SetSystemTrayIcon(icon)
		desk.SetSystemTrayMenu(fyne.NewMenu(title,
			fyne.NewMenuItem("Capture (F12)", call(actions.Capture)),
			fyne.NewMenuItem("Show/Hide (F11)", call(actions.Toggle)),
			fyne.NewMenuItem("Clear History", call(actions.Clear)),
			fyne.NewMenuItemSeparator(),
			fyne.NewMenuItem("Quit", call(actions.Quit)),
		))
	}
	return a
}

func call(f func()) func() {
	return func() {
		if f != nil {
			f()
		}
	}
}

// Run shows the window and blocks until Quit.
func (a *App) Run() {
	a.win.Show()
	a.fyne.Run()
}

// Quit stops Run.
func (a *App) Quit() {
	fyne.Do(a.fyne.Quit)
}

// SetStatus shows msg; transient messages fall back to the ready text
// after assistant.StatusTimeout.
func (a *App) SetStatus(msg string) {
	a.line.show(msg, assistant.StatusTimeout(msg))
}

func (a *App) SetHistory(text string) {
	fyne.Do(func() {
		a.historyText.SetText(text)
		a.scroll.ScrollToBottom()
	})
}

func (a *App) Show() { a.setVisible(true) }
func (a *App) Hide() { a.setVisible(false) }

func (a *App) Toggle() {
	a.mu.Lock()
	v := !a.visible
	a.mu.Unlock()
	a.setVisible(v)
}

func (a *App) setVisible(v bool) {
	a.mu.Lock()
	a.visible = v
	a.mu.Unlock()
	fyne.Do(func() {
		if v {
			a.win.Show()
			a.win.RequestFocus()
		} else {
			a.win.Hide()
		}
	})
}

// SelectRegion captures the primary display, shows it full screen and waits
// for a drag. Escape or a click without drag cancels.
func (a *App) SelectRegion(ctx context.Context) (screenshot.Region, bool, error) {
	time.Sleep(hideSettle)
	img, bounds, err := screenshot.CapturePrimary()
	if err != nil {
		return screenshot.Region{}, false, err
	}

	type outcome struct {
		region    screenshot.Region
		cancelled bool
	}
	done := make(chan outcome, 1)
	finish := func(o outcome) {
		select {
		case done <- o:
		default:
		}
	}

	var sel fyne.Window
	fyne.DoAndWait(func() {
		sel = a.fyne.NewWindow("Select area")
		sel.SetPadded(false)
		area := newSelectArea(img, func(start, end fyne.Position, size fyne.Size) {
			finish(outcome{region: toRegion(start, end, size, bounds)})
		})
		sel.SetContent(area)
		sel.Canvas().SetOnTypedKey(func(ev *fyne.KeyEvent) {
			if ev.Name == fyne.KeyEscape {
				finish(outcome{cancelled: true})
			}
		})
		sel.SetCloseIntercept(func() { finish(outcome{cancelled: true}) })
		sel.SetFullScreen(true)
		sel.Show()
		sel.RequestFocus()
	})
	defer fyne.Do(func() { sel.Close() })

	var o outcome
	select {
	case o = <-done:
	case <-ctx.Done():
		return screenshot.Region{}, true, nil
	}
	if o.cancelled || o.region.Empty() {
		return screenshot.Region{}, true, nil
	}

	a.mu.Lock()
	a.backdrop = img
	a.mu.Unlock()
	log.Printf("ui: selected region %+v", o.region)
	return o.region, false, nil
}

// Capture returns the PNG of region, cut from the selector backdrop when it
// covers the region so the selector itself never shows up in the image.
func (a *App) Capture(region screenshot.Region) ([]byte, error) {
	a.mu.Lock()
	img := a.backdrop
	a.backdrop = nil
	a.mu.Unlock()
	if img != nil && region.Rect().In(img.Bounds()) {
		return screenshot.CropPNG(img, region)
	}
	return screenshot.CaptureRegion(region)
}

func (a *App) copyLastAnswer() {
	e, ok := a.history.Last()
	if !ok {
		a.SetStatus("Nothing to copy yet")
		return
	}
	if err := clipboard.Write(e.Answer); err != nil {
		log.Printf("ui: copy failed: %v", err)
		msg := "Copy failed"
		if errors.Is(err, clipboard.ErrUnavailable) {
			msg = "Clipboard unavailable"
		}
		a.SetStatus(msg)
		return
	}
	a.SetStatus(fmt.Sprintf("Copied answer #%d to clipboard", e.Number))
}
