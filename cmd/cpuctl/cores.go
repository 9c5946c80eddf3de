package main

import (
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os"
	"time"

	"github.com/briandowns/spinner"
	"github.com/egandro/cpuctl/pkg/cpuctl"
	"github.com/spf13/cobra"
)

func newCoresCmd(c *cli) *cobra.Command {
	var jsonOutput bool

	cmd := &cobra.Command{
		Use:   "cores",
		Short: "List all CPU cores known to the kernel",
		Args:  exactArgs(0),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctl, err := c.controller()
			if err != nil {
				return err
			}
			cores, err := ctl.Cores()
			if err != nil {
				return err
			}
			return printCPUList(cmd.OutOrStdout(), cores, jsonOutput)
		},
	}
	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Output in JSON format")
	return cmd
}

func newOnlineCmd(c *cli) *cobra.Command {
	var jsonOutput bool

	cmd := &cobra.Command{
		Use:   "online",
		Short: "List the cores that are currently online",
		Args:  exactArgs(0),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctl, err := c.controller()
			if err != nil {
				return err
			}
			cores, err := ctl.Online()
			if err != nil {
				return err
			}
			return printCPUList(cmd.OutOrStdout(), cores, jsonOutput)
		},
	}
	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Output in JSON format")
	return cmd
}

func printCPUList(w io.Writer, cores []int, jsonOutput bool) error {
	if jsonOutput {
		return writeJSON(w, cores)
	}
	_, err := fmt.Fprintln(w, cpuctl.FormatCPUList(cores))
	return err
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// coreCmd builds a command that applies op to the single core argument.
func coreCmd(c *cli, use, short, done string, op func(cpuctl.Controller, int) error) *cobra.Command {
	return &cobra.Command{
		Use:   use + " <core>",
		Short: short,
		Args:  exactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			core, err := parseCore(args[0])
			if err != nil {
				return err
			}
			ctl, err := c.controller()
			if err != nil {
				return err
			}
			if err := op(ctl, core); err != nil {
				return err
			}
			slog.Info("Core updated", "cpu", core, "op", use)
			_, err = fmt.Fprintf(cmd.OutOrStdout(), "cpu%d: %s\n", core, done)
			return err
		},
	}
}

func newEnableCmd(c *cli) *cobra.Command {
	return coreCmd(c, "enable", "Bring a core online", "online", cpuctl.Controller.Enable)
}

func newDisableCmd(c *cli) *cobra.Command {
	return coreCmd(c, "disable", "Take a core offline", "offline", cpuctl.Controller.Disable)
}

func newDisableHTCmd(c *cli) *cobra.Command {
	return coreCmd(c, "disable-ht", "Take the SMT siblings of a core offline", "siblings offline",
		cpuctl.Controller.DisableHyperthread)
}

func newEnableAllCmd(c *cli) *cobra.Command {
	return allCoresCmd(c, "enable-all", "Bring every core online", "Enabling cores...", "enabled",
		cpuctl.Controller.EnableAll)
}

func newDisableAllCmd(c *cli) *cobra.Command {
	return allCoresCmd(c, "disable-all", "Take every core offline that may be disabled", "Disabling cores...", "disabled",
		cpuctl.Controller.DisableAll)
}

func allCoresCmd(c *cli, use, short, progress, done string, op func(cpuctl.Controller) ([]int, error)) *cobra.Command {
	return &cobra.Command{
		Use:   use,
		Short: short,
		Args:  exactArgs(0),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctl, err := c.controller()
			if err != nil {
				return err
			}

			var s *spinner.Spinner
			if !c.quiet {
				s = spinner.New(spinner.CharSets[14], 100*time.Millisecond, spinner.WithWriter(os.Stderr))
				s.Suffix = " " + progress
				s.Start()
			}

			changed, err := op(ctl)

			if s != nil {
				s.Stop()
			}

			if len(changed) > 0 {
				slog.Info("Cores updated", "op", use, "cpus", cpuctl.FormatCPUList(changed))
			}
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			if len(changed) == 0 {
				_, err = fmt.Fprintln(out, "No cores changed")
				return err
			}
			_, err = fmt.Fprintf(out, "%s: %s\n", done, cpuctl.FormatCPUList(changed))
			return err
		},
	}
}
