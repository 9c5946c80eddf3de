package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/egandro/cpuctl/pkg/config"
	"github.com/egandro/cpuctl/pkg/cpuctl"
	"github.com/egandro/cpuctl/pkg/logger"
	"github.com/fatih/color"
	"github.com/spf13/cobra"
)

// cli carries the state shared by all commands.
type cli struct {
	configFile string
	root       string
	logLevel   string
	noColor    bool
	quiet      bool

	cfg  *config.Config
	logF *os.File
	open func(root string) (cpuctl.Controller, error)
}

func openController(root string) (cpuctl.Controller, error) {
	return cpuctl.Open(cpuctl.WithRoot(root))
}

func main() {
	cmd := newRootCmd(openController)
	if err := cmd.ExecuteContext(context.Background()); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(exitCode(err))
	}
}

func newRootCmd(open func(root string) (cpuctl.Controller, error)) *cobra.Command {
	c := &cli{open: open}

	rootCmd := &cobra.Command{
		Use:               "cpuctl",
		Short:             "Control CPU cores through the Linux sysfs interface",
		SilenceErrors:     true,
		SilenceUsage:      true,
		PersistentPreRunE: c.setup,
		PersistentPostRun: func(cmd *cobra.Command, args []string) {
			c.teardown()
		},
	}
	rootCmd.SetFlagErrorFunc(func(cmd *cobra.Command, err error) error {
		return usageErrorf("%v", err)
	})

	pf := rootCmd.PersistentFlags()
	pf.StringVar(&c.configFile, "config", config.ConstantConfigFilename, "Path to config file")
	pf.StringVar(&c.root, "root", "", "CPU control hierarchy (default "+config.ConstantSysfsCPURoot+")")
	pf.StringVar(&c.logLevel, "log-level", "", "Log level (debug, info, notice, warn, error)")
	pf.BoolVar(&c.noColor, "no-color", false, "Disable colored output")
	pf.BoolVarP(&c.quiet, "quiet", "q", false, "Disable progress spinner")

	rootCmd.AddCommand(newCoresCmd(c))
	rootCmd.AddCommand(newOnlineCmd(c))
	rootCmd.AddCommand(newEnableCmd(c))
	rootCmd.AddCommand(newDisableCmd(c))
	rootCmd.AddCommand(newDisableHTCmd(c))
	rootCmd.AddCommand(newEnableAllCmd(c))
	rootCmd.AddCommand(newDisableAllCmd(c))
	rootCmd.AddCommand(newFreqCmd(c))
	rootCmd.AddCommand(newGovernorCmd(c))
	rootCmd.AddCommand(newStatusCmd(c))
	rootCmd.AddCommand(newWatchCmd(c))
	return rootCmd
}

// setup loads the config, applies flag overrides and installs the logger.
func (c *cli) setup(cmd *cobra.Command, _ []string) error {
	cfg := config.Load(c.configFile)

	// Override config with flags if provided
	if c.root != "" {
		cfg.SysfsRoot = c.root
	}
	if c.logLevel != "" {
		cfg.LogLevel = c.logLevel
	}
	if c.noColor || !cfg.Color {
		color.NoColor = true
	}
	if err := cfg.Validate(); err != nil {
		return usageErrorf("invalid configuration: %v", err)
	}
	c.cfg = cfg

	var output io.Writer = cmd.ErrOrStderr()
	if cfg.LogFile != "" {
		f, err := os.OpenFile(cfg.LogFile, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0600)
		if err != nil {
			fmt.Fprintf(cmd.ErrOrStderr(), "Failed to open log file %s: %v. Logging to stderr.\n", cfg.LogFile, err)
		} else {
			c.logF = f
			output = f
		}
	}

	level, err := logger.ParseLevel(cfg.LogLevel)
	if err != nil {
		fmt.Fprintf(cmd.ErrOrStderr(), "%v, defaulting to INFO\n", err)
	}
	slog.SetDefault(slog.New(&logger.SimpleHandler{Output: output, Level: level}))

	slog.Debug("Configuration loaded", "root", cfg.SysfsRoot, "log_level", cfg.LogLevel, "window", cfg.HotplugWindow)
	return nil
}

func (c *cli) teardown() {
	if c.logF != nil {
		_ = c.logF.Close()
		c.logF = nil
	}
}

func (c *cli) controller() (cpuctl.Controller, error) {
	return c.open(c.cfg.SysfsRoot)
}
