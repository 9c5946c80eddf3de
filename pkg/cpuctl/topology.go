package cpuctl

import (
	"errors"
	"fmt"
	"os"
	"regexp"
	"sort"
	"strconv"
	"strings"
)

var coreDirRegexp = regexp.MustCompile(`^cpu[0-9]+$`)

// Cores lists every core known to the kernel, online or offline, in
// ascending order.
func (c *CPU) Cores() ([]int, error) {
	entries, err := os.ReadDir(c.root)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %w", ErrDiscovery, c.root, err)
	}

	cores := []int{}
	for _, e := range entries {
		name := e.Name()
		if !coreDirRegexp.MatchString(name) {
			continue
		}
		id, err := strconv.Atoi(strings.TrimPrefix(name, "cpu"))
		if err != nil {
			continue
		}
		// /sys/bus/cpu/devices style roots hold symlinks
		if !e.IsDir() && !c.hasCoreDir(id) {
			continue
		}
		cores = append(cores, id)
	}

	sort.Ints(cores)
	return cores, nil
}

// Online lists the cores currently online in ascending order.
func (c *CPU) Online() ([]int, error) {
	cores, err := c.Cores()
	if err != nil {
		return nil, err
	}

	online := make([]int, 0, len(cores))
	for _, core := range cores {
		ok, err := c.IsOnline(core)
		if err != nil {
			// removed between listing and reading
			if errors.Is(err, ErrAttributeNotFound) {
				continue
			}
			return nil, err
		}
		if ok {
			online = append(online, core)
		}
	}
	return online, nil
}

// IsOnline reports whether core is online. A core directory without an
// online file belongs to a core that cannot be hot-unplugged and is always
// online.
func (c *CPU) IsOnline(core int) (bool, error) {
	raw, err := c.ReadAttribute(core, AttrOnline)
	if err != nil {
		if errors.Is(err, ErrAttributeNotFound) && c.hasCoreDir(core) {
			return true, nil
		}
		return false, err
	}
	online, err := parseOnline(raw)
	if err != nil {
		return false, coreErr("read", core, AttrOnline, ErrAttributeRead, err)
	}
	return online, nil
}

// Siblings returns the hyperthread siblings of core, excluding core itself.
// The relation is read from the kernel on every call.
func (c *CPU) Siblings(core int) ([]int, error) {
	raw, err := c.ReadAttribute(core, AttrThreadSiblings)
	if err != nil {
		if !errors.Is(err, ErrAttributeNotFound) || !c.hasCoreDir(core) {
			return nil, err
		}
		return c.siblingsByCoreID(core)
	}

	group, err := ParseCPUList(raw)
	if err != nil {
		return nil, coreErr("read", core, AttrThreadSiblings, ErrAttributeRead, err)
	}
	return without(group, core), nil
}

// siblingsByCoreID groups cores sharing physical_package_id and core_id.
// Used when thread_siblings_list is not exposed.
func (c *CPU) siblingsByCoreID(core int) ([]int, error) {
	pkg, err := c.ReadAttribute(core, AttrPackageID)
	if err != nil {
		return nil, err
	}
	id, err := c.ReadAttribute(core, AttrCoreID)
	if err != nil {
		return nil, err
	}

	cores, err := c.Cores()
	if err != nil {
		return nil, err
	}

	var siblings []int
	for _, other := range cores {
		if other == core {
			continue
		}
		otherPkg, err := c.ReadAttribute(other, AttrPackageID)
		if err != nil {
			continue
		}
		otherID, err := c.ReadAttribute(other, AttrCoreID)
		if err != nil {
			continue
		}
		if otherPkg == pkg && otherID == id {
			siblings = append(siblings, other)
		}
	}
	return siblings, nil
}

func without(cpus []int, core int) []int {
	res := make([]int, 0, len(cpus))
	for _, cpu := range cpus {
		if cpu != core {
			res = append(res, cpu)
		}
	}
	return res
}
