// Package cpuctl reads and writes per-core CPU control files below
// /sys/devices/system/cpu: online state, scaling governor and frequency.
//
// Nothing is cached. Every call reads the kernel's current view, so the
// results reflect hotplug events that happened in between.
package cpuctl
