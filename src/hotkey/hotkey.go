package hotkey

import (
	"errors"
	"fmt"
	"log"
	"strings"
	"sync"

	gohook "github.com/robotn/gohook"
)

// Binding ties a combo such as "F12" or "Ctrl+Shift+T" to a callback.
type Binding struct {
	Combo    string
	Callback func()
}

// Chord tracks the pressed state of one parsed combo.
type Chord struct {
	combo    string
	keys     []keyState
	callback func()
}

type keyState struct {
	name     string
	rawcodes []uint16
	pressed  bool
}

// StopCombo ends the global hook from the keyboard.
const StopCombo = "Ctrl+Esc"

var errNoBindings = errors.New("no usable hotkey bindings")

var (
	hookMu      sync.Mutex
	hookRunning bool
)

var endHook = gohook.End

// Parse turns a combo into a Chord. Every key must map to a rawcode.
func Parse(combo string) (*Chord, error) {
	names := parseHotkey(combo)
	if len(names) == 0 {
		return nil, fmt.Errorf("empty hotkey %q", combo)
	}
	c := &Chord{combo: combo}
	for _, name := range names {
		rawcodes := keyNameToRawcodes(name)
		if len(rawcodes) == 0 {
			return nil, fmt.Errorf("hotkey %q: unknown key %q", combo, name)
		}
		c.keys = append(c.keys, keyState{name: name, rawcodes: rawcodes})
	}
	return c, nil
}

// press marks rawcode as down and reports whether the whole chord is now held.
// A completed chord resets so holding it fires once.
func (c *Chord) press(rawcode uint16) bool {
	hit := false
	for i := range c.keys {
		if c.keys[i].matches(rawcode) {
			c.keys[i].pressed = true
			hit = true
		}
	}
	if !hit {
		return false
	}
	for i := range c.keys {
		if !c.keys[i].pressed {
			return false
		}
	}
	for i := range c.keys {
		c.keys[i].pressed = false
	}
	return true
}

func (c *Chord) release(rawcode uint16) {
	for i := range c.keys {
		if c.keys[i].matches(rawcode) {
			c.keys[i].pressed = false
		}
	}
}

func (k keyState) matches(rawcode uint16) bool {
	for _, r := range k.rawcodes {
		if r == rawcode {
			return true
		}
	}
	return false
}

// Dispatcher routes raw key events to every registered chord.
type Dispatcher struct {
	mu     sync.Mutex
	chords []*Chord
}

// NewDispatcher parses bindings. Invalid ones are logged and skipped; an
// error is returned only when none are usable.
func NewDispatcher(bindings []Binding) (*Dispatcher, error) {
	d := &Dispatcher{}
	for _, b := range bindings {
		if strings.TrimSpace(b.Combo) == "" {
			continue
		}
		c, err := Parse(b.Combo)
		if err != nil {
			log.Printf("ERROR: %v", err)
			continue
		}
		c.callback = b.Callback
		d.chords = append(d.chords, c)
		log.Printf("Hotkey listener configured for: %s", b.Combo)
	}
	if len(d.chords) == 0 {
		return nil, errNoBindings
	}
	return d, nil
}

// KeyDown feeds a press and runs the callbacks of completed chords outside the lock.
func (d *Dispatcher) KeyDown(rawcode uint16) {
	var fire []func()
	d.mu.Lock()
	for _, c := range d.chords {
		if c.press(rawcode) {
			log.Printf("Hotkey activated: %s", c.combo)
			if c.callback != nil {
				fire = append(fire, c.callback)
			}
		}
	}
	d.mu.Unlock()
	for _, f := range fire {
		f()
	}
}

func (d *Dispatcher) KeyUp(rawcode uint16) {
	d.mu.Lock()
	defer d.mu.Unlock()
	for _, c := range d.chords {
		c.release(rawcode)
	}
}

// Listen registers all bindings on a single global gohook event stream.
func Listen(bindings []Binding) error {
	d, err := NewDispatcher(bindings)
	if err != nil {
		return err
	}

	hookMu.Lock()
	hookRunning = true
	hookMu.Unlock()

	go func() {
		defer func() {
			if r := recover(); r != nil {
				log.Printf("PANIC in hotkey goroutine: %v", r)
			}
		}()

		evChan := gohook.Start()
		if evChan == nil {
			log.Printf("ERROR: gohook.Start() returned nil channel")
			return
		}
		for ev := range evChan {
			switch ev.Kind {
			case gohook.KeyDown:
				d.KeyDown(ev.Rawcode)
			case gohook.KeyUp:
				d.KeyUp(ev.Rawcode)
			}
		}
		log.Printf("Event channel closed")
	}()
	return nil
}

// Stop ends the global hook started by Listen. Calls after the first, or
// without a running hook, do nothing.
func Stop() {
	hookMu.Lock()
	running := hookRunning
	hookRunning = false
	hookMu.Unlock()
	if running {
		endHook()
	}
}

// StopBinding is the StopCombo binding. The hook is ended off the event
// goroutine, then onStopped runs.
func StopBinding(onStopped func()) Binding {
	return Binding{
		Combo: StopCombo,
		Callback: func() {
			go func() {
				log.Printf("%s pressed, stopping hotkey listener", StopCombo)
				Stop()
				if onStopped != nil {
					onStopped()
				}
			}()
		},
	}
}

// parseHotkey converts a hotkey string like "Ctrl+Alt+q" to normalized key names
func parseHotkey(hotkeyConfig string) []string {
	var keys []string
	for _, part := range strings.Split(strings.ToLower(hotkeyConfig), "+") {
		part = strings.TrimSpace(part)
		switch part {
		case "":
			continue
		case "control":
			keys = append(keys, "ctrl")
		case "win", "cmd", "super":
			keys = append(keys, "cmd")
		default:
			keys = append(keys, part)
		}
	}
	return keys
}
