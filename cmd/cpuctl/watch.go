package main

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/briandowns/spinner"
	"github.com/egandro/cpuctl/pkg/cpuctl"
	"github.com/egandro/cpuctl/pkg/hotplug"
	"github.com/spf13/cobra"
)

func newWatchCmd(c *cli) *cobra.Command {
	var window time.Duration

	cmd := &cobra.Command{
		Use:   "watch",
		Short: "Report CPU hotplug events until interrupted",
		Args:  exactArgs(0),
		RunE: func(cmd *cobra.Command, args []string) error {
			if cmd.Flags().Changed("window") {
				if window <= 0 {
					return usageErrorf("window must be positive, got %v", window)
				}
				c.cfg.HotplugWindow = window
			}
			ctl, err := c.controller()
			if err != nil {
				return err
			}

			var s *spinner.Spinner
			if !c.quiet {
				s = spinner.New(spinner.CharSets[14], 100*time.Millisecond, spinner.WithWriter(os.Stderr))
				s.Suffix = " Waiting for CPU hotplug events..."
			}

			// mu serializes output between the handler and shutdown
			var mu sync.Mutex
			stopped := false
			out := cmd.OutOrStdout()
			w := hotplug.New(c.cfg.HotplugWindow, func(batch []hotplug.Event) {
				mu.Lock()
				defer mu.Unlock()
				if s != nil {
					s.Stop()
				}
				if err := printEvents(out, ctl, batch); err != nil {
					slog.Warn("Failed to report hotplug batch", "error", err)
				}
				if s != nil && !stopped {
					s.Start()
				}
			})

			if err := w.Start(); err != nil {
				return fmt.Errorf("failed to start hotplug watcher: %w", err)
			}
			if s != nil {
				s.Start()
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			<-ctx.Done()

			mu.Lock()
			stopped = true
			if s != nil {
				s.Stop()
			}
			mu.Unlock()
			return w.Stop()
		},
	}
	cmd.Flags().DurationVar(&window, "window", 0, "Quiet period before a batch of events is reported")
	return cmd
}

// printEvents writes one line per event followed by the resulting online set.
func printEvents(out io.Writer, ctl cpuctl.Controller, batch []hotplug.Event) error {
	ts := time.Now().Format("15:04:05")
	for _, evt := range batch {
		slog.Debug("Hotplug event", "cpu", evt.CPU, "action", evt.Action)
		if _, err := fmt.Fprintf(out, "%s cpu%d %s\n", ts, evt.CPU, evt.Action); err != nil {
			return err
		}
	}

	online, err := ctl.Online()
	if err != nil {
		return err
	}
	_, err = fmt.Fprintf(out, "%s online: %s\n", ts, cpuctl.FormatCPUList(online))
	return err
}
