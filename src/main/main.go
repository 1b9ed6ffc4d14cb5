package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"os"
	"os/signal"
	"path/filepath"
	"runtime"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"gemini-assistant/src/config"
	"gemini-assistant/src/eventloop"
	"gemini-assistant/src/hotkey"
	"gemini-assistant/src/logutil"
	"gemini-assistant/src/runtimeinit"
	"gemini-assistant/src/singleinstance"
	"gemini-assistant/src/ui"
)

var errAlreadyRunning = errors.New("another instance is already running")

const statusHotkeysStopped = "Global hotkeys stopped - use the tray menu"

type mainOptions struct {
	instanceTag string
	envFile     string
}

func main() {
	// fyne's event loop must own the main OS thread.
	runtime.LockOSThread()
	enableDPIAwareness()

	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	return runWithArgs(os.Args)
}

func runWithArgs(args []string) error {
	if len(args) == 0 {
		args = []string{"gemini-assistant"}
	}
	opts := &mainOptions{}
	cmd := newRootCmd(opts)
	cmd.SetArgs(args[1:])
	return cmd.Execute()
}

func newRootCmd(opts *mainOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:           "gemini-assistant",
		Short:         "Screen-capture assistant: select an area, read its text and ask Gemini",
		SilenceUsage:  true,
		SilenceErrors: true,
		Args:          cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runWithOptions(*opts)
		},
	}
	cmd.Flags().StringVar(&opts.instanceTag, "instance-tag", "", "Tag identifying this instance to the native messaging host")
	cmd.Flags().StringVar(&opts.envFile, "env-file", "", "Path to the .env file (default: next to the executable)")
	return cmd
}

func runWithOptions(opts mainOptions) error {
	cfg, err := config.LoadWithOptions(config.LoadOptions{EnvFile: opts.envFile, InstanceTag: opts.instanceTag})
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}
	logutil.Setup(cfg.EnableFileLogging, cfg.LogFile, os.Stderr)

	addr := singleinstance.Address(cfg.Port)
	if err := checkSingleInstance(context.Background(), addr, cfg.ProbeTimeout); err != nil {
		fmt.Println("Another instance of the assistant is already running.")
		return err
	}
	log.Printf("Pre-flight: %s free, starting resident (tag %s)", addr, cfg.InstanceTag)

	if path := envTemplatePath(cfg.EnvPath); path != "" {
		created, err := config.EnsureEnvTemplate(path)
		switch {
		case err != nil:
			log.Printf("WARNING: could not create %s: %v", path, err)
		case created:
			log.Printf("Created %s; add your Gemini API key there", path)
		}
	}

	rt, err := runtimeinit.Bootstrap(runtimeinit.Options{
		Config:    cfg,
		PingAPI:   true,
		Clipboard: true,
	})
	if err != nil {
		return err
	}
	logDisplays()

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	var loop *eventloop.Loop
	win := ui.New(rt.History, ui.Actions{
		Capture: func() { loop.Capture() },
		Toggle:  func() { loop.ToggleView() },
		Clear:   func() { loop.ClearHistory() },
		Quit:    cancel,
	})
	rt.Assistant.Capture = win.Capture
	rt.Assistant.Status = win.SetStatus

	loop = eventloop.New(win, rt.Assistant, eventloop.Options{
		Server:   singleinstance.NewServer(addr),
		History:  rt.History,
		Deadline: 2 * cfg.APITimeout,
	})

	if err := hotkey.Listen([]hotkey.Binding{
		{Combo: cfg.CaptureHotkey, Callback: loop.Capture},
		{Combo: cfg.ToggleHotkey, Callback: loop.ToggleView},
		hotkey.StopBinding(func() { win.SetStatus(statusHotkeysStopped) }),
	}); err != nil {
		log.Printf("WARNING: global hotkeys unavailable: %v", err)
	} else {
		defer hotkey.Stop()
	}

	done := make(chan struct{})
	go func() {
		defer close(done)
		if err := loop.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
			log.Printf("event loop stopped: %v", err)
		}
		win.Quit()
	}()

	win.Run()
	cancel()
	select {
	case <-done:
	case <-time.After(5 * time.Second):
		log.Printf("event loop did not stop in time")
	}
	log.Printf("Assistant exited")
	return nil
}

// checkSingleInstance returns errAlreadyRunning when something answers on addr.
func checkSingleInstance(ctx context.Context, addr string, timeout time.Duration) error {
	if singleinstance.Probe(ctx, addr, timeout) {
		log.Printf("Pre-flight: %s answered, resident already exists", addr)
		return fmt.Errorf("%w on %s", errAlreadyRunning, addr)
	}
	return nil
}

// envTemplatePath is where a missing .env gets created: the file that was
// loaded, or .env next to the executable.
func envTemplatePath(loaded string) string {
	if loaded != "" {
		return loaded
	}
	exe, err := os.Executable()
	if err != nil {
		return ""
	}
	return filepath.Join(filepath.Dir(exe), ".env")
}
