// Package spawn starts the desktop application as an independent process
// that outlives the launcher.
package spawn

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/exec"
)

// Command describes the process to start. Env entries are appended to the
// launcher's own environment.
type Command struct {
	Path string
	Args []string
	Env  []string
	Dir  string
}

// Spawner starts processes.
type Spawner interface {
	Spawn(ctx context.Context, c Command) (pid int, err error)
}

// Detached starts processes without a console window, in their own session
// or process group, with stdio attached to the null device.
type Detached struct{}

func (Detached) Spawn(ctx context.Context, c Command) (int, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	if c.Path == "" {
		return 0, fmt.Errorf("spawn: empty executable path")
	}

	// exec.Command, not CommandContext: the child must outlive ctx.
	cmd := exec.Command(c.Path, c.Args...)
	cmd.Env = append(os.Environ(), c.Env...)
	cmd.Dir = c.Dir
	cmd.SysProcAttr = detachedAttr()

	if err := cmd.Start(); err != nil {
		return 0, err
	}
	pid := cmd.Process.Pid
	if err := cmd.Process.Release(); err != nil {
		log.Printf("spawn: release pid %d: %v", pid, err)
	}
	log.Printf("spawn: started %s (pid %d)", c.Path, pid)
	return pid, nil
}
