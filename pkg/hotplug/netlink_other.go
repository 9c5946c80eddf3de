//go:build !linux

package hotplug

import "errors"

// Kernel uevents are only available on Linux.
func (w *Watcher) startNetlink() error {
	return errors.New("CPU hotplug events are only supported on Linux")
}

func (w *Watcher) stopNetlink() error {
	return nil
}
