package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

const (
	ConstantConfigFilename = "/etc/default/cpuctl"

	// ConstantSysfsCPURoot is the kernel's CPU control hierarchy.
	ConstantSysfsCPURoot = "/sys/devices/system/cpu"

	ConstantProcCPUInfo = "/proc/cpuinfo"

	// DefaultHotplugWindow is how long the watcher waits for further
	// hotplug events before it reports a batch. Taking a whole SMT
	// sibling set offline emits one event per core in quick succession.
	DefaultHotplugWindow = 500 * time.Millisecond

	DefaultLogLevel = "info"
	DefaultLogFile  = ""
	DefaultColor    = true
)

type Config struct {
	SysfsRoot     string
	LogLevel      string
	LogFile       string // empty logs to stderr
	HotplugWindow time.Duration
	Color         bool
}

func (c *Config) Validate() error {
	if !filepath.IsAbs(c.SysfsRoot) {
		return fmt.Errorf("sysfs root %q must be an absolute path", c.SysfsRoot)
	}
	if c.HotplugWindow <= 0 {
		return fmt.Errorf("hotplug window must be positive, got %v", c.HotplugWindow)
	}
	return nil
}

func Load(filename string) *Config {
	if filename == "" {
		filename = ConstantConfigFilename
	}
	_ = godotenv.Load(filename)

	return &Config{
		SysfsRoot:     getEnv("CPUCTL_SYSFS_ROOT", ConstantSysfsCPURoot),
		LogLevel:      getEnv("CPUCTL_LOG_LEVEL", DefaultLogLevel),
		LogFile:       getEnv("CPUCTL_LOG_FILE", DefaultLogFile),
		HotplugWindow: getEnvDuration("CPUCTL_HOTPLUG_WINDOW", DefaultHotplugWindow),
		Color:         getEnvBool("CPUCTL_COLOR", DefaultColor),
	}
}

func getEnv(key, fallback string) string {
	if value, ok := os.LookupEnv(key); ok {
		return value
	}
	return fallback
}

func getEnvBool(key string, fallback bool) bool {
	if value, ok := os.LookupEnv(key); ok {
		if b, err := strconv.ParseBool(value); err == nil {
			return b
		}
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	if value, ok := os.LookupEnv(key); ok {
		if i, err := strconv.Atoi(value); err == nil {
			return i
		}
	}
	return fallback
}

// getEnvDuration accepts Go durations ("750ms") and plain integers, which
// are read as milliseconds.
func getEnvDuration(key string, fallback time.Duration) time.Duration {
	if value, ok := os.LookupEnv(key); ok {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
		if ms := getEnvInt(key, -1); ms >= 0 {
			return time.Duration(ms) * time.Millisecond
		}
	}
	return fallback
}
