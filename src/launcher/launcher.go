// Package launcher implements the native-messaging host: it reads one
// trigger request, replaces any running instance of the desktop application
// with a fresh one and reports the outcome.
package launcher

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"os"
	"time"

	"gemini-assistant/src/nativemsg"
	"gemini-assistant/src/procscan"
	"gemini-assistant/src/singleinstance"
	"gemini-assistant/src/spawn"
)

const (
	MsgLaunched  = "Assistant launched"
	msgRestarted = "Restarted assistant (killed %d existing instances)"
	msgFailed    = "Failed to launch: %v"
)

// Options wires the launcher to the OS. Zero durations get defaults.
type Options struct {
	Table   procscan.Table
	Matcher procscan.Matcher
	Spawner spawn.Spawner
	// Command is the desktop application invocation, including the tag
	// arguments that make it recognizable to Matcher.
	Command spawn.Command

	// LockAddr is the loopback address serializing concurrent launchers.
	// Empty disables locking.
	LockAddr      string
	LockTimeout   time.Duration
	SettleTimeout time.Duration
	PollInterval  time.Duration
	MaxFrameSize  int
	// ResidentAddr is the desktop application's coordination address. When
	// set, it is probed before spawning so an instance the matcher cannot
	// see (for example one started without the tag) gets logged.
	ResidentAddr string
	ProbeTimeout time.Duration
	// SelfPID is never treated as a match.
	SelfPID int32
}

// Launcher runs the request/response cycle once per Serve call.
type Launcher struct {
	opts Options
}

// Outcome describes what Serve did.
type Outcome struct {
	Responded bool
	Response  nativemsg.Response
	Matched   int
	Killed    int
	// Unmatched is set when ResidentAddr answered before spawning. The new
	// instance will find the port taken and exit.
	Unmatched bool
}

// New returns a Launcher with defaults applied.
func New(opts Options) *Launcher {
	if opts.Table == nil {
		opts.Table = procscan.NewTable()
	}
	if opts.Spawner == nil {
		opts.Spawner = spawn.Detached{}
	}
	if opts.LockTimeout <= 0 {
		opts.LockTimeout = 10 * time.Second
	}
	if opts.SettleTimeout <= 0 {
		opts.SettleTimeout = time.Second
	}
	if opts.PollInterval <= 0 {
		opts.PollInterval = 100 * time.Millisecond
	}
	if opts.ProbeTimeout <= 0 {
		opts.ProbeTimeout = 500 * time.Millisecond
	}
	if opts.MaxFrameSize <= 0 {
		opts.MaxFrameSize = nativemsg.DefaultMaxSize
	}
	if opts.SelfPID == 0 {
		opts.SelfPID = int32(os.Getpid())
	}
	return &Launcher{opts: opts}
}

// Serve handles exactly one framed request from in and writes at most one
// framed response to out.
//
// A closed input returns nativemsg.ErrClosed with nothing written. Malformed
// frames and process-table failures return an error with nothing written;
// the caller must treat a missing response as failure. Actions other than
// trigger_assistant are ignored without a response.
func (l *Launcher) Serve(ctx context.Context, in io.Reader, out io.Writer) (Outcome, error) {
	var req nativemsg.Request
	if err := nativemsg.Read(in, &req, l.opts.MaxFrameSize); err != nil {
		if errors.Is(err, nativemsg.ErrClosed) {
			log.Printf("launcher: input closed before a request arrived")
		}
		return Outcome{}, err
	}

	if req.Action != nativemsg.ActionTriggerAssistant {
		log.Printf("launcher: ignoring action %q", req.Action)
		return Outcome{}, nil
	}

	res, err := l.Restart(ctx)
	if err != nil {
		return res, err
	}

	if err := nativemsg.Write(out, res.Response); err != nil {
		return res, err
	}
	res.Responded = true
	log.Printf("launcher: responded %s: %s", res.Response.Status, res.Response.Message)
	return res, nil
}

// Restart terminates every running instance, waits for them to leave the
// process table, and starts a new one. Steps run strictly in that order.
func (l *Launcher) Restart(ctx context.Context) (Outcome, error) {
	if l.opts.Matcher == nil {
		return Outcome{}, errors.New("launcher: no process matcher configured")
	}

	if l.opts.LockAddr != "" {
		lockCtx, cancel := context.WithTimeout(ctx, l.opts.LockTimeout)
		lock, err := singleinstance.AcquireLock(lockCtx, l.opts.LockAddr, 50*time.Millisecond)
		cancel()
		if err != nil {
			log.Printf("launcher: %v", err)
			return Outcome{Response: nativemsg.Failure(fmt.Sprintf(msgFailed, err))}, nil
		}
		defer lock.Release()
	}

	matches, err := procscan.Scan(ctx, l.opts.Table, l.opts.Matcher, l.opts.SelfPID)
	if err != nil {
		return Outcome{}, fmt.Errorf("scan process table: %w", err)
	}
	o := Outcome{Matched: len(matches)}
	log.Printf("launcher: %d running instance(s) match %s", len(matches), l.opts.Matcher)

	if len(matches) > 0 {
		o.Killed = l.terminate(ctx, matches)
	}

	if l.opts.ResidentAddr != "" && singleinstance.Probe(ctx, l.opts.ResidentAddr, l.opts.ProbeTimeout) {
		o.Unmatched = true
		log.Printf("launcher: WARNING: %s still answers but no remaining process matches %s; "+
			"an instance started without %s will keep running and the new one will exit",
			l.opts.ResidentAddr, l.opts.Matcher, procscan.TagFlag)
	}

	pid, err := l.opts.Spawner.Spawn(ctx, l.opts.Command)
	if err != nil {
		log.Printf("launcher: spawn %s failed: %v", l.opts.Command.Path, err)
		o.Response = nativemsg.Failure(fmt.Sprintf(msgFailed, err))
		return o, nil
	}
	log.Printf("launcher: launched %s (pid %d)", l.opts.Command.Path, pid)

	if len(matches) > 0 {
		o.Response = nativemsg.Success(fmt.Sprintf(msgRestarted, o.Killed))
	} else {
		o.Response = nativemsg.Success(MsgLaunched)
	}
	return o, nil
}

// terminate signals every match, then waits up to the settle timeout for
// them to disappear. It returns the number of signals delivered.
func (l *Launcher) terminate(ctx context.Context, matches []procscan.Record) int {
	var killed []int32
	for _, r := range matches {
		if err := l.opts.Table.Terminate(ctx, r.PID); err != nil {
			log.Printf("launcher: %v", err)
			continue
		}
		log.Printf("launcher: terminated pid %d", r.PID)
		killed = append(killed, r.PID)
	}
	if len(killed) == 0 {
		return 0
	}

	waitCtx, cancel := context.WithTimeout(ctx, l.opts.SettleTimeout)
	defer cancel()
	if remaining, err := procscan.WaitGone(waitCtx, l.opts.Table, killed, l.opts.PollInterval); err != nil {
		log.Printf("launcher: %d process(es) still running after %v: %v", len(remaining), l.opts.SettleTimeout, remaining)
	}
	return len(killed)
}
