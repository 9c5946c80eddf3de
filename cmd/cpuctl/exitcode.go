package main

import (
	"errors"
	"fmt"
	"strconv"

	"github.com/egandro/cpuctl/pkg/cpuctl"
	"github.com/spf13/cobra"
)

const (
	exitGeneric = 1
	exitUsage   = 2
)

// Each library error kind gets its own exit status so scripts can react
// without parsing messages.
var exitCodes = []struct {
	err  error
	code int
}{
	{cpuctl.ErrDiscovery, 10},
	{cpuctl.ErrAttributeNotFound, 11},
	{cpuctl.ErrAttributeRead, 12},
	{cpuctl.ErrAttributeWrite, 13},
	{cpuctl.ErrProtectedCore, 14},
	{cpuctl.ErrLastCore, 15},
	{cpuctl.ErrUnsupported, 16},
	{cpuctl.ErrInvalidFrequency, 17},
	{cpuctl.ErrUnknownGovernor, 18},
	{cpuctl.ErrNoSibling, 19},
}

type usageError struct {
	msg string
}

func (e *usageError) Error() string {
	return e.msg
}

func usageErrorf(format string, args ...any) error {
	return &usageError{msg: fmt.Sprintf(format, args...)}
}

func exitCode(err error) int {
	if err == nil {
		return 0
	}
	var ue *usageError
	if errors.As(err, &ue) {
		return exitUsage
	}
	for _, ec := range exitCodes {
		if errors.Is(err, ec.err) {
			return ec.code
		}
	}
	return exitGeneric
}

// exactArgs is cobra.ExactArgs reporting a usage error.
func exactArgs(n int) cobra.PositionalArgs {
	return func(cmd *cobra.Command, args []string) error {
		if err := cobra.ExactArgs(n)(cmd, args); err != nil {
			return &usageError{msg: err.Error()}
		}
		return nil
	}
}

func rangeArgs(lo, hi int) cobra.PositionalArgs {
	return func(cmd *cobra.Command, args []string) error {
		if err := cobra.RangeArgs(lo, hi)(cmd, args); err != nil {
			return &usageError{msg: err.Error()}
		}
		return nil
	}
}

func parseCore(s string) (int, error) {
	n, err := strconv.Atoi(s)
	if err != nil || n < 0 {
		return 0, usageErrorf("invalid core %q", s)
	}
	return n, nil
}
