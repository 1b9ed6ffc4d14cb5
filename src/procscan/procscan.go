// Package procscan enumerates the OS process table to find running
// instances of the desktop application and terminate them.
package procscan

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/shirou/gopsutil/v4/process"
)

// Record is a transient snapshot of one process.
type Record struct {
	PID  int32
	Args []string
}

// Table is the part of the OS process table the launcher needs.
type Table interface {
	// Snapshot lists processes with their arguments. Processes that vanish
	// or deny access while being read are left out.
	Snapshot(ctx context.Context) ([]Record, error)
	// Terminate asks pid to exit (SIGTERM on Unix).
	Terminate(ctx context.Context, pid int32) error
	// Exists reports whether pid is still in the process table.
	Exists(ctx context.Context, pid int32) (bool, error)
}

// NewTable returns the gopsutil-backed process table.
func NewTable() Table { return osTable{} }

type osTable struct{}

func (osTable) Snapshot(ctx context.Context) ([]Record, error) {
	procs, err := process.ProcessesWithContext(ctx)
	if err != nil {
		return nil, fmt.Errorf("list processes: %w", err)
	}
	records := make([]Record, 0, len(procs))
	for _, p := range procs {
		args, err := p.CmdlineSliceWithContext(ctx)
		if err != nil {
			// gone or inaccessible
			continue
		}
		if len(args) == 0 {
			continue
		}
		records = append(records, Record{PID: p.Pid, Args: args})
	}
	return records, nil
}

func (osTable) Terminate(ctx context.Context, pid int32) error {
	p, err := process.NewProcessWithContext(ctx, pid)
	if err != nil {
		return fmt.Errorf("open process %d: %w", pid, err)
	}
	if err := p.TerminateWithContext(ctx); err != nil {
		return fmt.Errorf("terminate process %d: %w", pid, err)
	}
	return nil
}

func (osTable) Exists(ctx context.Context, pid int32) (bool, error) {
	return process.PidExistsWithContext(ctx, pid)
}

// Scan returns every process in table accepted by m, except self.
func Scan(ctx context.Context, table Table, m Matcher, self int32) ([]Record, error) {
	records, err := table.Snapshot(ctx)
	if err != nil {
		return nil, err
	}
	var matches []Record
	for _, r := range records {
		if r.PID == self {
			continue
		}
		if m.Match(r.Args) {
			matches = append(matches, r)
		}
	}
	return matches, nil
}

// ErrStillRunning is returned by WaitGone when some processes outlive ctx.
var ErrStillRunning = errors.New("processes still running")

// WaitGone polls until none of pids exist. On timeout it returns the pids
// still present together with ErrStillRunning.
func WaitGone(ctx context.Context, table Table, pids []int32, interval time.Duration) ([]int32, error) {
	if interval <= 0 {
		interval = 100 * time.Millisecond
	}
	remaining := append([]int32(nil), pids...)
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		alive := remaining[:0]
		for _, pid := range remaining {
			ok, err := table.Exists(ctx, pid)
			if err != nil {
				log.Printf("procscan: exists check for %d failed: %v", pid, err)
			}
			if ok || err != nil {
				alive = append(alive, pid)
			}
		}
		remaining = alive
		if len(remaining) == 0 {
			return nil, nil
		}

		select {
		case <-ctx.Done():
			return remaining, fmt.Errorf("%w: %v", ErrStillRunning, remaining)
		case <-ticker.C:
		}
	}
}
