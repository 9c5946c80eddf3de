package main

import (
	"fmt"
	"log/slog"
	"strings"

	"github.com/spf13/cobra"
)

func newGovernorCmd(c *cli) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "governor",
		Short: "Inspect and change cpufreq governors",
	}
	cmd.AddCommand(newGovernorGetCmd(c))
	cmd.AddCommand(newGovernorListCmd(c))
	cmd.AddCommand(newGovernorSetCmd(c))
	return cmd
}

func newGovernorGetCmd(c *cli) *cobra.Command {
	var jsonOutput bool

	cmd := &cobra.Command{
		Use:   "get [core]",
		Short: "Show the governor of one or all online cores",
		Args:  rangeArgs(0, 1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctl, err := c.controller()
			if err != nil {
				return err
			}

			govs := make(map[int]string)
			if len(args) == 1 {
				core, err := parseCore(args[0])
				if err != nil {
					return err
				}
				gov, err := ctl.Governor(core)
				if err != nil {
					return err
				}
				govs[core] = gov
			} else if govs, err = ctl.Governors(); err != nil {
				return err
			}

			if jsonOutput {
				return writeJSON(cmd.OutOrStdout(), govs)
			}
			return printPerCore(cmd.OutOrStdout(), govs, func(g string) string { return g })
		},
	}
	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Output in JSON format")
	return cmd
}

func newGovernorListCmd(c *cli) *cobra.Command {
	return &cobra.Command{
		Use:   "list <core>",
		Short: "List the governors a core accepts",
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
			govs, err := ctl.AvailableGovernors(core)
			if err != nil {
				return err
			}
			_, err = fmt.Fprintln(cmd.OutOrStdout(), strings.Join(govs, " "))
			return err
		},
	}
}

func newGovernorSetCmd(c *cli) *cobra.Command {
	var all bool

	cmd := &cobra.Command{
		Use:   "set (<core> | --all) <governor>",
		Short: "Change the governor of a core or of every online core",
		Args: func(cmd *cobra.Command, args []string) error {
			if all {
				return exactArgs(1)(cmd, args)
			}
			return exactArgs(2)(cmd, args)
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			ctl, err := c.controller()
			if err != nil {
				return err
			}

			if all {
				name := args[0]
				if err := ctl.SetGovernorAll(name); err != nil {
					return err
				}
				slog.Info("Governor set on all online cores", "governor", name)
				_, err = fmt.Fprintf(cmd.OutOrStdout(), "all: %s\n", name)
				return err
			}

			core, err := parseCore(args[0])
			if err != nil {
				return err
			}
			name := args[1]
			if err := ctl.SetGovernor(core, name); err != nil {
				return err
			}
			slog.Info("Governor set", "cpu", core, "governor", name)
			_, err = fmt.Fprintf(cmd.OutOrStdout(), "cpu%d: %s\n", core, name)
			return err
		},
	}
	cmd.Flags().BoolVar(&all, "all", false, "Apply to every online core")
	return cmd
}
