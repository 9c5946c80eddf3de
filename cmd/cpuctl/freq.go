package main

import (
	"fmt"
	"io"
	"log/slog"
	"math"
	"sort"
	"strconv"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
)

var frequencyUnits = []struct {
	suffix string
	khz    float64
}{
	{"ghz", 1e6},
	{"mhz", 1e3},
	{"khz", 1},
}

// maxFrequencyKHz bounds parsed values well above any real clock so the
// float conversion stays exact.
const maxFrequencyKHz = 1 << 40

// parseFrequency reads a frequency in kHz. Values may carry a kHz, MHz or
// GHz suffix; bare numbers are kHz.
func parseFrequency(s string) (uint64, error) {
	v := strings.ToLower(strings.TrimSpace(s))
	mult := 1.0
	for _, u := range frequencyUnits {
		if strings.HasSuffix(v, u.suffix) {
			v = strings.TrimSpace(strings.TrimSuffix(v, u.suffix))
			mult = u.khz
			break
		}
	}
	if v == "" {
		return 0, fmt.Errorf("invalid frequency %q", s)
	}

	if mult == 1 {
		khz, err := strconv.ParseUint(v, 10, 64)
		if err != nil || khz > maxFrequencyKHz {
			return 0, fmt.Errorf("invalid frequency %q", s)
		}
		return khz, nil
	}

	f, err := strconv.ParseFloat(v, 64)
	if err != nil || math.IsNaN(f) || f < 0 || f*mult > maxFrequencyKHz {
		return 0, fmt.Errorf("invalid frequency %q", s)
	}
	return uint64(math.Round(f * mult)), nil
}

func formatFrequency(khz uint64) string {
	if khz >= 1e6 {
		return fmt.Sprintf("%.2f GHz", float64(khz)/1e6)
	}
	return fmt.Sprintf("%d MHz", khz/1000)
}

// freqValue is a pflag.Value for frequency flags.
type freqValue uint64

var _ pflag.Value = (*freqValue)(nil)

func (f *freqValue) String() string {
	return strconv.FormatUint(uint64(*f), 10)
}

func (f *freqValue) Set(s string) error {
	khz, err := parseFrequency(s)
	if err != nil {
		return err
	}
	*f = freqValue(khz)
	return nil
}

func (f *freqValue) Type() string {
	return "frequency"
}

func newFreqCmd(c *cli) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "freq",
		Short: "Inspect and change core frequencies",
	}
	cmd.AddCommand(newFreqGetCmd(c))
	cmd.AddCommand(newFreqSetCmd(c))
	cmd.AddCommand(newFreqRangeCmd(c))
	cmd.AddCommand(newFreqLimitsCmd(c))
	cmd.AddCommand(newFreqAvailableCmd(c))
	return cmd
}

func newFreqGetCmd(c *cli) *cobra.Command {
	var jsonOutput bool

	cmd := &cobra.Command{
		Use:   "get [core]",
		Short: "Show the current frequency of one or all online cores",
		Args:  rangeArgs(0, 1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctl, err := c.controller()
			if err != nil {
				return err
			}

			freqs := make(map[int]uint64)
			if len(args) == 1 {
				core, err := parseCore(args[0])
				if err != nil {
					return err
				}
				khz, err := ctl.Frequency(core)
				if err != nil {
					return err
				}
				freqs[core] = khz
			} else if freqs, err = ctl.Frequencies(); err != nil {
				return err
			}

			if jsonOutput {
				return writeJSON(cmd.OutOrStdout(), freqs)
			}
			return printPerCore(cmd.OutOrStdout(), freqs, func(khz uint64) string {
				return fmt.Sprintf("%d kHz\t%s", khz, formatFrequency(khz))
			})
		},
	}
	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Output in JSON format")
	return cmd
}

// printPerCore writes one line per core in ascending core order.
func printPerCore[T any](out io.Writer, values map[int]T, format func(T) string) error {
	cores := make([]int, 0, len(values))
	for core := range values {
		cores = append(cores, core)
	}
	sort.Ints(cores)

	w := tabwriter.NewWriter(out, 0, 0, 3, ' ', 0)
	for _, core := range cores {
		_, _ = fmt.Fprintf(w, "cpu%d\t%s\n", core, format(values[core]))
	}
	return w.Flush()
}

func newFreqSetCmd(c *cli) *cobra.Command {
	var all bool

	cmd := &cobra.Command{
		Use:   "set (<core> | --all) <frequency>",
		Short: "Pin a core or every online core to a frequency",
		Args: func(cmd *cobra.Command, args []string) error {
			if all {
				return exactArgs(1)(cmd, args)
			}
			return exactArgs(2)(cmd, args)
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			khz, err := parseFrequency(args[len(args)-1])
			if err != nil {
				return &usageError{msg: err.Error()}
			}

			if all {
				ctl, err := c.controller()
				if err != nil {
					return err
				}
				if err := ctl.SetFrequencyAll(khz); err != nil {
					return err
				}
				slog.Info("Frequency set on all online cores", "khz", khz)
				_, err = fmt.Fprintf(cmd.OutOrStdout(), "all: %d kHz\n", khz)
				return err
			}

			core, err := parseCore(args[0])
			if err != nil {
				return err
			}
			ctl, err := c.controller()
			if err != nil {
				return err
			}
			if err := ctl.SetFrequency(core, khz); err != nil {
				return err
			}
			slog.Info("Frequency set", "cpu", core, "khz", khz)
			_, err = fmt.Fprintf(cmd.OutOrStdout(), "cpu%d: %d kHz\n", core, khz)
			return err
		},
	}
	cmd.Flags().BoolVar(&all, "all", false, "Apply to every online core (userspace governor or not)")
	return cmd
}

func newFreqRangeCmd(c *cli) *cobra.Command {
	return &cobra.Command{
		Use:   "range <core>",
		Short: "Show the hardware frequency range of a core",
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
			lo, hi, err := ctl.FrequencyRange(core)
			if err != nil {
				return err
			}
			return printMinMax(cmd.OutOrStdout(), lo, hi)
		},
	}
}

func printMinMax(out io.Writer, lo, hi uint64) error {
	w := tabwriter.NewWriter(out, 0, 0, 3, ' ', 0)
	_, _ = fmt.Fprintf(w, "min:\t%d kHz\t%s\n", lo, formatFrequency(lo))
	_, _ = fmt.Fprintf(w, "max:\t%d kHz\t%s\n", hi, formatFrequency(hi))
	return w.Flush()
}

func newFreqLimitsCmd(c *cli) *cobra.Command {
	var minFreq, maxFreq freqValue

	cmd := &cobra.Command{
		Use:   "limits <core>",
		Short: "Show or change the frequency range the governor may use",
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
			lo, hi, err := ctl.FrequencyLimits(core)
			if err != nil {
				return err
			}

			minSet, maxSet := cmd.Flags().Changed("min"), cmd.Flags().Changed("max")
			if minSet || maxSet {
				if minSet {
					lo = uint64(minFreq)
				}
				if maxSet {
					hi = uint64(maxFreq)
				}
				if err := ctl.SetFrequencyLimits(core, lo, hi); err != nil {
					return err
				}
				slog.Info("Frequency limits set", "cpu", core, "min_khz", lo, "max_khz", hi)
				if lo, hi, err = ctl.FrequencyLimits(core); err != nil {
					return err
				}
			}
			return printMinMax(cmd.OutOrStdout(), lo, hi)
		},
	}
	cmd.Flags().Var(&minFreq, "min", "Lowest frequency the governor may select (kHz, MHz or GHz)")
	cmd.Flags().Var(&maxFreq, "max", "Highest frequency the governor may select (kHz, MHz or GHz)")
	return cmd
}

func newFreqAvailableCmd(c *cli) *cobra.Command {
	return &cobra.Command{
		Use:   "available <core>",
		Short: "List the discrete frequencies a core supports",
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
			freqs, err := ctl.AvailableFrequencies(core)
			if err != nil {
				return err
			}
			parts := make([]string, len(freqs))
			for i, f := range freqs {
				parts[i] = strconv.FormatUint(f, 10)
			}
			_, err = fmt.Fprintln(cmd.OutOrStdout(), strings.Join(parts, " "))
			return err
		},
	}
}
