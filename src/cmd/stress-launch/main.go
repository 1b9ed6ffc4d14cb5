package main

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"path/filepath"
	"runtime"
	"sync"
	"sync/atomic"
	"time"

	"github.com/spf13/cobra"

	"gemini-assistant/src/config"
	"gemini-assistant/src/nativemsg"
	"gemini-assistant/src/procscan"
)

type stressOptions struct {
	n        int
	host     string
	tag      string
	deadline time.Duration
	settle   time.Duration
}

// hostRunner delivers one trigger to a native host and returns its reply.
// responded is false when the host exited without writing a frame.
type hostRunner func(ctx context.Context, frame []byte) (resp nativemsg.Response, responded bool, err error)

type tally struct {
	success   int32
	failure   int32
	silent    int32
	crashed   int32
	survivors int
}

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	opts := &stressOptions{}
	cmd := newRootCmd(opts, nil, nil)
	return cmd.Execute()
}

func newRootCmd(opts *stressOptions, runner hostRunner, table procscan.Table) *cobra.Command {
	cmd := &cobra.Command{
		Use:           "stress-launch",
		Short:         "Fire concurrent native-host triggers and count surviving instances",
		SilenceUsage:  true,
		SilenceErrors: true,
		Args:          cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			r := runner
			if r == nil {
				r = execRunner(opts.host)
			}
			t := table
			if t == nil {
				t = procscan.NewTable()
			}
			res, err := runWithOptions(cmd.Context(), *opts, r, t)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "launched=%d success=%d error=%d silent=%d crashed=%d survivors=%d\n",
				opts.n, res.success, res.failure, res.silent, res.crashed, res.survivors)
			if res.survivors != 1 {
				return fmt.Errorf("expected exactly one running instance tagged %q, found %d", opts.tag, res.survivors)
			}
			return nil
		},
	}

	cmd.Flags().IntVar(&opts.n, "n", 10, "number of concurrent native hosts to start")
	cmd.Flags().StringVar(&opts.host, "host", defaultHostPath(), "path to the native host executable")
	cmd.Flags().StringVar(&opts.tag, "tag", config.DefaultInstanceTag, "instance tag to count afterwards")
	cmd.Flags().DurationVar(&opts.deadline, "deadline", 15*time.Second, "per-host timeout")
	cmd.Flags().DurationVar(&opts.settle, "settle", 2*time.Second, "wait before counting instances")

	return cmd
}

func runWithOptions(ctx context.Context, opts stressOptions, runner hostRunner, table procscan.Table) (*tally, error) {
	if opts.n <= 0 {
		return nil, fmt.Errorf("--n must be positive, got %d", opts.n)
	}
	frame, err := nativemsg.Encode(nativemsg.Request{Action: nativemsg.ActionTriggerAssistant})
	if err != nil {
		return nil, err
	}

	var res tally
	var wg sync.WaitGroup
	start := time.Now()
	for i := 0; i < opts.n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			hostCtx, cancel := context.WithTimeout(ctx, opts.deadline)
			defer cancel()
			resp, responded, err := runner(hostCtx, frame)
			switch {
			case err != nil:
				atomic.AddInt32(&res.crashed, 1)
			case !responded:
				atomic.AddInt32(&res.silent, 1)
			case resp.Status == nativemsg.StatusSuccess:
				atomic.AddInt32(&res.success, 1)
			default:
				atomic.AddInt32(&res.failure, 1)
			}
		}()
	}
	wg.Wait()
	fmt.Fprintf(os.Stderr, "hosts finished in %s\n", time.Since(start))

	select {
	case <-time.After(opts.settle):
	case <-ctx.Done():
		return nil, ctx.Err()
	}

	matches, err := procscan.Scan(ctx, table, procscan.TagMatcher{Tag: opts.tag}, int32(os.Getpid()))
	if err != nil {
		return nil, fmt.Errorf("count instances: %w", err)
	}
	res.survivors = len(matches)
	return &res, nil
}

// execRunner starts the host binary the way a browser does: origin as the
// only argument, one frame on stdin, stdin closed afterwards.
func execRunner(path string) hostRunner {
	return func(ctx context.Context, frame []byte) (nativemsg.Response, bool, error) {
		cmd := exec.CommandContext(ctx, path, "chrome-extension://stress-launch/")
		cmd.Stdin = bytes.NewReader(frame)
		var stdout bytes.Buffer
		cmd.Stdout = &stdout
		cmd.Stderr = io.Discard

		runErr := cmd.Run()
		var resp nativemsg.Response
		err := nativemsg.Read(&stdout, &resp, nativemsg.DefaultMaxSize)
		if errors.Is(err, nativemsg.ErrClosed) {
			return resp, false, runErr
		}
		if err != nil {
			return resp, false, fmt.Errorf("bad reply: %w", err)
		}
		return resp, true, runErr
	}
}

func defaultHostPath() string {
	name := "gemini-native-host"
	if runtime.GOOS == "windows" {
		name += ".exe"
	}
	execPath, err := os.Executable()
	if err != nil {
		return name
	}
	return filepath.Join(filepath.Dir(execPath), name)
}
