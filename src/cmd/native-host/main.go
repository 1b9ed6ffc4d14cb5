package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"gemini-assistant/src/config"
	"gemini-assistant/src/launcher"
	"gemini-assistant/src/logutil"
	"gemini-assistant/src/nativemsg"
	"gemini-assistant/src/procscan"
	"gemini-assistant/src/singleinstance"
	"gemini-assistant/src/spawn"
)

type hostOptions struct {
	envFile      string
	parentWindow int64
}

func main() {
	if err := run(); err != nil {
		// stdout belongs to the browser; diagnostics go to stderr.
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	return runWithArgs(os.Args, os.Stdin, os.Stdout)
}

func runWithArgs(args []string, in io.Reader, out io.Writer) error {
	if len(args) == 0 {
		args = []string{"gemini-native-host"}
	}
	opts := &hostOptions{}
	cmd := newRootCmd(opts, in, out)
	cmd.SetArgs(args[1:])
	cmd.SetOut(os.Stderr)
	return cmd.Execute()
}

func newRootCmd(opts *hostOptions, in io.Reader, out io.Writer) *cobra.Command {
	cmd := &cobra.Command{
		Use:           "gemini-native-host [origin]",
		Short:         "Native messaging host that (re)starts the assistant",
		SilenceUsage:  true,
		SilenceErrors: true,
		// Browsers pass the caller origin and, on Windows, --parent-window.
		Args:               cobra.ArbitraryArgs,
		FParseErrWhitelist: cobra.FParseErrWhitelist{UnknownFlags: true},
		RunE: func(cmd *cobra.Command, args []string) error {
			if len(args) > 0 {
				log.Printf("native host invoked by %s", logutil.Sanitize(args[0], 200))
			}
			ctx, cancel := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer cancel()
			return serve(ctx, *opts, in, out)
		},
	}
	cmd.Flags().StringVar(&opts.envFile, "env-file", "", "Path to the .env file")
	cmd.Flags().Int64Var(&opts.parentWindow, "parent-window", 0, "Window handle of the calling browser (Windows)")
	cmd.AddCommand(newInstallManifestCmd())
	return cmd
}

// serve runs one request/response exchange. A stream closed before any
// request is a normal exit.
func serve(ctx context.Context, opts hostOptions, in io.Reader, out io.Writer) error {
	cfg, err := config.LoadWithOptions(config.LoadOptions{EnvFile: opts.envFile})
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}
	logutil.Setup(cfg.EnableFileLogging, cfg.LogFile, os.Stderr)

	bw := bufio.NewWriter(out)
	outcome, err := newLauncher(cfg, nil, nil).Serve(ctx, in, bw)
	switch {
	case errors.Is(err, nativemsg.ErrClosed):
		return nil
	case err != nil:
		log.Printf("native host: no response sent: %v", err)
		return err
	}
	if outcome.Responded {
		log.Printf("native host: matched=%d killed=%d", outcome.Matched, outcome.Killed)
	}
	return nil
}

// newLauncher builds the launcher from configuration. Nil table or spawner
// select the OS implementations.
func newLauncher(cfg *config.Config, table procscan.Table, sp spawn.Spawner) *launcher.Launcher {
	var m procscan.Matcher = procscan.TagMatcher{Tag: cfg.InstanceTag}
	if cfg.MatchMode == config.MatchModeSubstring {
		m = procscan.SubstringMatcher{Identifier: cfg.AppIdentifier}
	}

	args := append([]string(nil), cfg.AppArgs...)
	args = append(args, procscan.TagArgs(cfg.InstanceTag)...)

	return launcher.New(launcher.Options{
		Table:         table,
		Matcher:       m,
		Spawner:       sp,
		Command:       spawn.Command{Path: cfg.AppPath, Args: args},
		LockAddr:      singleinstance.Address(cfg.LockPort),
		LockTimeout:   cfg.LockTimeout,
		SettleTimeout: cfg.SettleTimeout,
		PollInterval:  cfg.TerminatePollInterval,
		MaxFrameSize:  cfg.MaxFrameBytes,
		ResidentAddr:  singleinstance.Address(cfg.Port),
		ProbeTimeout:  cfg.ProbeTimeout,
	})
}
