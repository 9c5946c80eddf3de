package cpuctl

import (
	"fmt"
	"sort"
	"strconv"
	"strings"
)

// maxCPUIndex bounds ranges so a corrupt list cannot allocate unbounded memory.
const maxCPUIndex = 1 << 16

// ParseCPUList parses the kernel cpulist format ("0-3,8,10-11") into a
// sorted list of unique core indices. An empty string yields an empty list.
func ParseCPUList(s string) ([]int, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return []int{}, nil
	}

	seen := make(map[int]struct{})
	for _, part := range strings.Split(s, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		lo, hi, isRange := strings.Cut(part, "-")
		first, err := strconv.Atoi(strings.TrimSpace(lo))
		if err != nil || first < 0 || first > maxCPUIndex {
			return nil, fmt.Errorf("invalid cpu list entry %q", part)
		}
		last := first
		if isRange {
			last, err = strconv.Atoi(strings.TrimSpace(hi))
			if err != nil || last < first || last > maxCPUIndex {
				return nil, fmt.Errorf("invalid cpu list range %q", part)
			}
		}
		for i := first; i <= last; i++ {
			seen[i] = struct{}{}
		}
	}

	cpus := make([]int, 0, len(seen))
	for cpu := range seen {
		cpus = append(cpus, cpu)
	}
	sort.Ints(cpus)
	return cpus, nil
}

// FormatCPUList renders cores in the kernel cpulist format, collapsing
// consecutive runs into ranges.
func FormatCPUList(cpus []int) string {
	if len(cpus) == 0 {
		return ""
	}
	sorted := append([]int(nil), cpus...)
	sort.Ints(sorted)

	var parts []string
	start, prev := sorted[0], sorted[0]
	flush := func() {
		if start == prev {
			parts = append(parts, strconv.Itoa(start))
		} else {
			parts = append(parts, fmt.Sprintf("%d-%d", start, prev))
		}
	}
	for _, cpu := range sorted[1:] {
		if cpu == prev {
			continue
		}
		if cpu == prev+1 {
			prev = cpu
			continue
		}
		flush()
		start, prev = cpu, cpu
	}
	flush()
	return strings.Join(parts, ",")
}
