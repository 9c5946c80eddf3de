package main

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"text/tabwriter"

	"github.com/egandro/cpuctl/pkg/config"
	"github.com/egandro/cpuctl/pkg/cpuctl"
	"github.com/egandro/cpuctl/pkg/svg"
	"github.com/fatih/color"
	"github.com/spf13/cobra"
)

func newStatusCmd(c *cli) *cobra.Command {
	var jsonOutput bool
	var svgFile string

	cmd := &cobra.Command{
		Use:   "status",
		Short: "Show the state of every core",
		Args:  exactArgs(0),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctl, err := c.controller()
			if err != nil {
				return err
			}
			cores, err := ctl.Snapshot()
			if err != nil {
				return err
			}

			if svgFile != "" {
				if err := writeCoreMap(svgFile, cores, cpuModelName(config.ConstantProcCPUInfo)); err != nil {
					return err
				}
				slog.Info("Core map written", "file", svgFile)
			}

			if jsonOutput {
				return writeJSON(cmd.OutOrStdout(), cores)
			}
			return printStatus(cmd.OutOrStdout(), cores)
		},
	}
	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Output in JSON format")
	cmd.Flags().StringVar(&svgFile, "svg", "", "Also write an SVG core map to this file")
	return cmd
}

func writeCoreMap(path string, cores []cpuctl.CoreStatus, title string) error {
	out, err := svg.New(cores, title).Generate()
	if err != nil {
		return err
	}
	if err := os.WriteFile(filepath.Clean(path), []byte(out), 0644); err != nil {
		return fmt.Errorf("failed to write core map: %w", err)
	}
	return nil
}

// State is the last column so color codes do not disturb the alignment.
func printStatus(out io.Writer, cores []cpuctl.CoreStatus) error {
	online := color.New(color.FgGreen).SprintFunc()
	offline := color.New(color.FgRed).SprintFunc()

	w := tabwriter.NewWriter(out, 0, 0, 3, ' ', 0)
	_, _ = fmt.Fprintln(w, "CPU\tThreads\tGovernor\tDriver\tFrequency\tMin\tMax\tState")
	_, _ = fmt.Fprintln(w, "---\t-------\t--------\t------\t---------\t---\t---\t-----")

	for _, st := range cores {
		state := offline("offline")
		if st.Online {
			state = online("online")
		}
		_, _ = fmt.Fprintf(w, "%d\t%s\t%s\t%s\t%s\t%s\t%s\t%s\n",
			st.CPU,
			cpuctl.FormatCPUList(threadGroup(st)),
			orDash(st.Governor),
			orDash(st.Driver),
			khzOrDash(st.FrequencyKHz),
			khzOrDash(st.MinKHz),
			khzOrDash(st.MaxKHz),
			state,
		)
	}
	return w.Flush()
}

func threadGroup(st cpuctl.CoreStatus) []int {
	group := append([]int{st.CPU}, st.Siblings...)
	slices.Sort(group)
	return group
}

func orDash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}

func khzOrDash(khz uint64) string {
	if khz == 0 {
		return "-"
	}
	return formatFrequency(khz)
}

func cpuModelName(path string) string {
	// #nosec G304 -- path is the hardcoded /proc/cpuinfo or a test file
	data, err := os.ReadFile(filepath.Clean(path))
	if err != nil {
		return "Unknown CPU"
	}
	for _, line := range strings.Split(string(data), "\n") {
		if strings.HasPrefix(line, "model name") {
			if _, name, ok := strings.Cut(line, ":"); ok {
				return strings.TrimSpace(name)
			}
		}
	}
	return "Unknown CPU"
}
