package cpuctl

import (
	"errors"
	"fmt"
	"os"
	"slices"
	"syscall"
)

// DefaultRoot is the kernel's CPU control hierarchy.
const DefaultRoot = "/sys/devices/system/cpu"

// Controller defines the per-core control operations.
type Controller interface {
	Cores() ([]int, error)
	Online() ([]int, error)
	IsOnline(core int) (bool, error)
	Siblings(core int) ([]int, error)

	Enable(core int) error
	Disable(core int) error
	DisableHyperthread(core int) error
	EnableAll() ([]int, error)
	DisableAll() ([]int, error)

	Frequency(core int) (uint64, error)
	SetFrequency(core int, khz uint64) error
	SetFrequencyAll(khz uint64) error
	FrequencyRange(core int) (uint64, uint64, error)
	FrequencyLimits(core int) (uint64, uint64, error)
	SetFrequencyLimits(core int, minKHz, maxKHz uint64) error
	AvailableFrequencies(core int) ([]uint64, error)
	Frequencies() (map[int]uint64, error)

	Governor(core int) (string, error)
	SetGovernor(core int, name string) error
	SetGovernorAll(name string) error
	AvailableGovernors(core int) ([]string, error)
	Governors() (map[int]string, error)

	Status(core int) (CoreStatus, error)
	Snapshot() ([]CoreStatus, error)
}

// CPU is a stateless handle on a CPU control hierarchy. It holds no open
// files between calls and caches nothing read from the kernel.
type CPU struct {
	root string
}

var _ Controller = (*CPU)(nil)

// Option configures Open.
type Option func(*CPU)

// WithRoot points the handle at a different control hierarchy, e.g. a
// fabricated tree in tests.
func WithRoot(root string) Option {
	return func(c *CPU) {
		if root != "" {
			c.root = root
		}
	}
}

// Open verifies that the control hierarchy is present and readable and
// returns a handle bound to it.
func Open(opts ...Option) (*CPU, error) {
	c := &CPU{root: DefaultRoot}
	for _, opt := range opts {
		opt(c)
	}

	fi, err := os.Stat(c.root)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrDiscovery, err)
	}
	if !fi.IsDir() {
		return nil, fmt.Errorf("%w: %s is not a directory", ErrDiscovery, c.root)
	}
	if _, err := c.Cores(); err != nil {
		return nil, err
	}
	return c, nil
}

// Root returns the control hierarchy the handle is bound to.
func (c *CPU) Root() string {
	return c.root
}

// Enable brings core online. Enabling an online core is a no-op.
func (c *CPU) Enable(core int) error {
	online, err := c.IsOnline(core)
	if err != nil {
		return err
	}
	if online {
		return nil
	}
	return c.WriteAttribute(core, AttrOnline, formatOnline(true))
}

// Disable takes core offline. Disabling an offline core is a no-op.
// Core 0, cores without an online file and the last online core are
// never taken offline.
func (c *CPU) Disable(core int) error {
	if core == 0 {
		return coreErr("disable", core, attrNone, ErrProtectedCore, nil)
	}

	raw, err := c.ReadAttribute(core, AttrOnline)
	if err != nil {
		if errors.Is(err, ErrAttributeNotFound) && c.hasCoreDir(core) {
			return reclassify("disable", ErrProtectedCore, err)
		}
		return err
	}
	online, err := parseOnline(raw)
	if err != nil {
		return coreErr("disable", core, AttrOnline, ErrAttributeRead, err)
	}
	if !online {
		return nil
	}

	cores, err := c.Online()
	if err != nil {
		return err
	}
	if len(without(cores, core)) == 0 {
		return coreErr("disable", core, attrNone, ErrLastCore, nil)
	}

	return offlineWriteErr(c.WriteAttribute(core, AttrOnline, formatOnline(false)))
}

// offlineWriteErr maps the kernel refusing to offline a core that became
// the last one (EBUSY) onto ErrLastCore.
func offlineWriteErr(err error) error {
	if err != nil && errors.Is(err, syscall.EBUSY) {
		return reclassify("disable", ErrLastCore, err)
	}
	return err
}

// DisableHyperthread takes the hyperthread siblings of core offline, in
// ascending order. core itself stays online.
func (c *CPU) DisableHyperthread(core int) error {
	siblings, err := c.Siblings(core)
	if err != nil {
		return err
	}
	if len(siblings) == 0 {
		return coreErr("disable-hyperthread", core, AttrThreadSiblings, ErrNoSibling, nil)
	}
	for _, sibling := range siblings {
		if err := c.Disable(sibling); err != nil {
			return err
		}
	}
	return nil
}

// EnableAll brings every discovered core online and returns the cores that
// changed state.
func (c *CPU) EnableAll() ([]int, error) {
	cores, err := c.Cores()
	if err != nil {
		return nil, err
	}

	changed := []int{}
	for _, core := range cores {
		online, err := c.IsOnline(core)
		if err != nil {
			return changed, err
		}
		if online {
			continue
		}
		if err := c.Enable(core); err != nil {
			return changed, err
		}
		changed = append(changed, core)
	}
	return changed, nil
}

// DisableAll takes every core offline that may be disabled. Protected cores
// are skipped and the last online core is kept. It returns the cores that
// changed state.
func (c *CPU) DisableAll() ([]int, error) {
	cores, err := c.Online()
	if err != nil {
		return nil, err
	}

	changed := []int{}
	for _, core := range cores {
		err := c.Disable(core)
		switch {
		case err == nil:
			changed = append(changed, core)
		case errors.Is(err, ErrProtectedCore), errors.Is(err, ErrLastCore):
			continue
		default:
			return changed, err
		}
	}
	return changed, nil
}

// Frequency returns the current frequency of core in kHz.
func (c *CPU) Frequency(core int) (uint64, error) {
	return c.readKHz(core, AttrCurFreq)
}

// setspeedInactive is what scaling_setspeed reads while a governor other
// than userspace owns the core.
const setspeedInactive = "<unsupported>"

// SetFrequency pins core to khz through scaling_setspeed. This requires the
// userspace governor; under any other governor it fails with ErrUnsupported.
// The kernel decides whether the value is acceptable.
func (c *CPU) SetFrequency(core int, khz uint64) error {
	if khz == 0 {
		return coreErr("set-frequency", core, AttrSetSpeed, ErrInvalidFrequency, errors.New("frequency must be positive"))
	}

	raw, err := c.ReadAttribute(core, AttrSetSpeed)
	switch {
	case err != nil && errors.Is(err, ErrAttributeNotFound):
		return reclassify("set-frequency", ErrUnsupported, err)
	case err != nil:
		return err
	case raw == setspeedInactive:
		return coreErr("set-frequency", core, AttrSetSpeed, ErrUnsupported,
			errors.New("governor does not accept a fixed frequency"))
	}

	err = c.WriteAttribute(core, AttrSetSpeed, formatKHz(khz))
	switch {
	case err == nil:
		return nil
	case errors.Is(err, ErrAttributeNotFound):
		return reclassify("set-frequency", ErrUnsupported, err)
	default:
		return reclassify("set-frequency", ErrInvalidFrequency, err)
	}
}

// SetFrequencyAll pins every online core to khz and stops at the first
// failure. The scaling limits are narrowed to khz, which holds under any
// governor; scaling_setspeed is written as well where userspace is active.
func (c *CPU) SetFrequencyAll(khz uint64) error {
	if khz == 0 {
		return fmt.Errorf("set-frequency-all: %w: frequency must be positive", ErrInvalidFrequency)
	}
	cores, err := c.Online()
	if err != nil {
		return err
	}
	for _, core := range cores {
		if err := c.SetFrequencyLimits(core, khz, khz); err != nil {
			return err
		}
		if err := c.SetFrequency(core, khz); err != nil && !errors.Is(err, ErrUnsupported) {
			return err
		}
	}
	return nil
}

// FrequencyRange returns the hardware frequency range of core in kHz.
func (c *CPU) FrequencyRange(core int) (uint64, uint64, error) {
	lo, err := c.readKHz(core, AttrMinFreq)
	if err != nil {
		return 0, 0, err
	}
	hi, err := c.readKHz(core, AttrMaxFreq)
	if err != nil {
		return 0, 0, err
	}
	return lo, hi, nil
}

// FrequencyLimits returns the range the governor of core may select from.
func (c *CPU) FrequencyLimits(core int) (uint64, uint64, error) {
	lo, err := c.readKHz(core, AttrScalingMinFreq)
	if err != nil {
		return 0, 0, err
	}
	hi, err := c.readKHz(core, AttrScalingMaxFreq)
	if err != nil {
		return 0, 0, err
	}
	return lo, hi, nil
}

// SetFrequencyLimits sets the range the governor of core may select from.
func (c *CPU) SetFrequencyLimits(core int, minKHz, maxKHz uint64) error {
	if minKHz == 0 || maxKHz == 0 || minKHz > maxKHz {
		return coreErr("set-frequency-limits", core, attrNone, ErrInvalidFrequency,
			fmt.Errorf("invalid range %d-%d", minKHz, maxKHz))
	}

	// The kernel rejects min > max at every step, so the order that works
	// depends on the current limits. Try min first and retry it after max.
	errMin := c.WriteAttribute(core, AttrScalingMinFreq, formatKHz(minKHz))
	if errMin != nil && errors.Is(errMin, ErrAttributeNotFound) {
		return reclassify("set-frequency-limits", ErrUnsupported, errMin)
	}
	if err := c.WriteAttribute(core, AttrScalingMaxFreq, formatKHz(maxKHz)); err != nil {
		if errors.Is(err, ErrAttributeNotFound) {
			return reclassify("set-frequency-limits", ErrUnsupported, err)
		}
		return reclassify("set-frequency-limits", ErrInvalidFrequency, err)
	}
	if errMin != nil {
		if err := c.WriteAttribute(core, AttrScalingMinFreq, formatKHz(minKHz)); err != nil {
			return reclassify("set-frequency-limits", ErrInvalidFrequency, err)
		}
	}
	return nil
}

// AvailableFrequencies returns the discrete frequencies core supports, in
// ascending order. Drivers without discrete steps do not expose the file.
func (c *CPU) AvailableFrequencies(core int) ([]uint64, error) {
	fields, err := c.readList(core, AttrAvailableFrequencies)
	if err != nil {
		return nil, err
	}
	freqs := make([]uint64, 0, len(fields))
	for _, f := range fields {
		v, err := parseKHz(f)
		if err != nil {
			return nil, coreErr("read", core, AttrAvailableFrequencies, ErrAttributeRead, err)
		}
		freqs = append(freqs, v)
	}
	slices.Sort(freqs)
	return freqs, nil
}

// Frequencies returns the current frequency of every online core.
func (c *CPU) Frequencies() (map[int]uint64, error) {
	cores, err := c.Online()
	if err != nil {
		return nil, err
	}
	res := make(map[int]uint64, len(cores))
	for _, core := range cores {
		f, err := c.Frequency(core)
		if err != nil {
			return nil, err
		}
		res[core] = f
	}
	return res, nil
}

// Governor returns the scaling governor of core.
func (c *CPU) Governor(core int) (string, error) {
	return c.ReadAttribute(core, AttrGovernor)
}

// AvailableGovernors returns the governors the kernel offers for core.
func (c *CPU) AvailableGovernors(core int) ([]string, error) {
	return c.readList(core, AttrAvailableGovernors)
}

// SetGovernor switches core to the named governor. The name is checked
// against the available governors before anything is written.
func (c *CPU) SetGovernor(core int, name string) error {
	if !validGovernorName(name) {
		return coreErr("set-governor", core, AttrGovernor, ErrUnknownGovernor, fmt.Errorf("invalid name %q", name))
	}

	available, err := c.AvailableGovernors(core)
	if err != nil {
		if errors.Is(err, ErrAttributeNotFound) {
			return reclassify("set-governor", ErrUnsupported, err)
		}
		return err
	}
	if !slices.Contains(available, name) {
		return coreErr("set-governor", core, AttrAvailableGovernors, ErrUnknownGovernor,
			fmt.Errorf("%q not in %v", name, available))
	}

	err = c.WriteAttribute(core, AttrGovernor, name)
	if err != nil && errors.Is(err, ErrAttributeNotFound) {
		return reclassify("set-governor", ErrUnsupported, err)
	}
	return err
}

// SetGovernorAll switches every online core to the named governor and stops
// at the first failure.
func (c *CPU) SetGovernorAll(name string) error {
	cores, err := c.Online()
	if err != nil {
		return err
	}
	for _, core := range cores {
		if err := c.SetGovernor(core, name); err != nil {
			return err
		}
	}
	return nil
}

// Governors returns the scaling governor of every online core.
func (c *CPU) Governors() (map[int]string, error) {
	cores, err := c.Online()
	if err != nil {
		return nil, err
	}
	res := make(map[int]string, len(cores))
	for _, core := range cores {
		g, err := c.Governor(core)
		if err != nil {
			return nil, err
		}
		res[core] = g
	}
	return res, nil
}
