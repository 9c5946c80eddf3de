//go:build linux

package hotplug

import (
	"errors"
	"fmt"
	"time"

	"golang.org/x/sys/unix"
)

// uevent multicast group of NETLINK_KOBJECT_UEVENT
const ueventGroup = 1

// recvTimeout bounds how long the reader blocks before it checks for Stop.
const recvTimeout = 250 * time.Millisecond

func (w *Watcher) startNetlink() error {
	w.logger.Debug("[cpu-hotplug] Starting Netlink listener")

	fd, err := unix.Socket(unix.AF_NETLINK, unix.SOCK_RAW|unix.SOCK_CLOEXEC, unix.NETLINK_KOBJECT_UEVENT)
	if err != nil {
		return fmt.Errorf("failed to create netlink socket: %w", err)
	}

	// Pid 0 lets the kernel assign the port id.
	addr := &unix.SockaddrNetlink{Family: unix.AF_NETLINK, Groups: ueventGroup, Pid: 0}
	if err := unix.Bind(fd, addr); err != nil {
		_ = unix.Close(fd)
		return fmt.Errorf("failed to bind netlink socket: %w", err)
	}

	// Close does not wake a blocked Recvfrom, so the reader polls instead.
	tv := unix.NsecToTimeval(recvTimeout.Nanoseconds())
	if err := unix.SetsockoptTimeval(fd, unix.SOL_SOCKET, unix.SO_RCVTIMEO, &tv); err != nil {
		_ = unix.Close(fd)
		return fmt.Errorf("failed to set netlink receive timeout: %w", err)
	}

	stop := make(chan struct{})
	done := make(chan struct{})
	w.netlinkStop = stop
	w.netlinkDone = done
	r := w.reactor

	go func() {
		defer close(done)
		defer func() { _ = unix.Close(fd) }()

		buf := make([]byte, 8192)
		for {
			select {
			case <-stop:
				return
			default:
			}

			n, _, err := unix.Recvfrom(fd, buf, 0)
			if err != nil {
				if errors.Is(err, unix.EAGAIN) || errors.Is(err, unix.EINTR) {
					continue
				}
				w.logger.Error("[cpu-hotplug] Netlink socket read error", "error", err)
				return
			}
			if evt, ok := ParseUevent(buf[:n]); ok {
				r.ingest(evt)
			}
		}
	}()

	return nil
}

// stopNetlink waits for the reader to exit. The reader closes the socket
// itself, so the descriptor is never reused while it is still reading.
func (w *Watcher) stopNetlink() error {
	if w.netlinkStop == nil {
		return nil
	}
	w.logger.Debug("[cpu-hotplug] Stopping Netlink listener")
	close(w.netlinkStop)
	<-w.netlinkDone
	w.netlinkStop = nil
	w.netlinkDone = nil
	return nil
}
