package cpuctl

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strconv"
	"strings"
)

// Attribute is a per-core control file below <root>/cpu<N>/.
type Attribute int

const (
	attrNone Attribute = iota
	AttrOnline
	AttrCurFreq
	AttrGovernor
	AttrAvailableGovernors
	AttrThreadSiblings
	AttrSetSpeed
	AttrMinFreq
	AttrMaxFreq
	AttrScalingMinFreq
	AttrScalingMaxFreq
	AttrAvailableFrequencies
	AttrDriver
	AttrCoreID
	AttrPackageID
)

var attributePaths = map[Attribute]string{
	AttrOnline:               "online",
	AttrCurFreq:              "cpufreq/scaling_cur_freq",
	AttrGovernor:             "cpufreq/scaling_governor",
	AttrAvailableGovernors:   "cpufreq/scaling_available_governors",
	AttrThreadSiblings:       "topology/thread_siblings_list",
	AttrSetSpeed:             "cpufreq/scaling_setspeed",
	AttrMinFreq:              "cpufreq/cpuinfo_min_freq",
	AttrMaxFreq:              "cpufreq/cpuinfo_max_freq",
	AttrScalingMinFreq:       "cpufreq/scaling_min_freq",
	AttrScalingMaxFreq:       "cpufreq/scaling_max_freq",
	AttrAvailableFrequencies: "cpufreq/scaling_available_frequencies",
	AttrDriver:               "cpufreq/scaling_driver",
	AttrCoreID:               "topology/core_id",
	AttrPackageID:            "topology/physical_package_id",
}

// Path returns the attribute path relative to a core directory.
func (a Attribute) Path() string {
	return attributePaths[a]
}

func (a Attribute) String() string {
	if p, ok := attributePaths[a]; ok {
		return p
	}
	return "unknown"
}

// coreDir returns <root>/cpu<N>.
func (c *CPU) coreDir(core int) string {
	return filepath.Join(c.root, "cpu"+strconv.Itoa(core))
}

func (c *CPU) attributePath(core int, attr Attribute) (string, error) {
	rel, ok := attributePaths[attr]
	if !ok {
		return "", fmt.Errorf("unknown attribute %d", int(attr))
	}
	if core < 0 {
		return "", fmt.Errorf("invalid core index %d", core)
	}
	return filepath.Join(c.coreDir(core), rel), nil
}

// ReadAttribute reads the raw value of attr for core with trailing
// whitespace removed.
func (c *CPU) ReadAttribute(core int, attr Attribute) (string, error) {
	path, err := c.attributePath(core, attr)
	if err != nil {
		return "", coreErr("read", core, attr, ErrAttributeNotFound, err)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return "", coreErr("read", core, attr, ErrAttributeNotFound, err)
		}
		return "", coreErr("read", core, attr, ErrAttributeRead, err)
	}
	return strings.TrimRight(string(data), " \t\r\n"), nil
}

// WriteAttribute writes value to attr for core. The file is opened
// write-only and truncated, it is never created.
func (c *CPU) WriteAttribute(core int, attr Attribute, value string) error {
	path, err := c.attributePath(core, attr)
	if err != nil {
		return coreErr("write", core, attr, ErrAttributeNotFound, err)
	}
	f, err := os.OpenFile(path, os.O_WRONLY|os.O_TRUNC, 0)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return coreErr("write", core, attr, ErrAttributeNotFound, err)
		}
		return coreErr("write", core, attr, ErrAttributeWrite, err)
	}
	// sysfs reports a rejected value on write, some drivers only on close
	if _, err := f.WriteString(value); err != nil {
		_ = f.Close()
		return coreErr("write", core, attr, ErrAttributeWrite, err)
	}
	if err := f.Close(); err != nil {
		return coreErr("write", core, attr, ErrAttributeWrite, err)
	}
	return nil
}

// hasCoreDir reports whether <root>/cpu<N> exists and is a directory.
func (c *CPU) hasCoreDir(core int) bool {
	if core < 0 {
		return false
	}
	fi, err := os.Stat(c.coreDir(core))
	return err == nil && fi.IsDir()
}

func (c *CPU) readKHz(core int, attr Attribute) (uint64, error) {
	raw, err := c.ReadAttribute(core, attr)
	if err != nil {
		return 0, err
	}
	v, err := parseKHz(raw)
	if err != nil {
		return 0, coreErr("read", core, attr, ErrAttributeRead, err)
	}
	return v, nil
}

func (c *CPU) readList(core int, attr Attribute) ([]string, error) {
	raw, err := c.ReadAttribute(core, attr)
	if err != nil {
		return nil, err
	}
	return strings.Fields(raw), nil
}

func parseKHz(raw string) (uint64, error) {
	return strconv.ParseUint(strings.TrimSpace(raw), 10, 64)
}

func formatKHz(v uint64) string {
	return strconv.FormatUint(v, 10)
}

func parseOnline(raw string) (bool, error) {
	v, err := strconv.Atoi(strings.TrimSpace(raw))
	if err != nil {
		return false, err
	}
	return v != 0, nil
}

func formatOnline(online bool) string {
	if online {
		return "1"
	}
	return "0"
}

// validGovernorName rejects values that the kernel would parse as more than
// one word.
func validGovernorName(name string) bool {
	return name != "" && !strings.ContainsAny(name, " \t\r\n")
}
