//go:build linux || darwin || freebsd || netbsd || openbsd

package multicast

import (
	"syscall"

	"golang.org/x/sys/unix"
)

// reuseControl returns a net.ListenConfig.Control callback that sets
// SO_REUSEADDR and, if requested, SO_REUSEPORT on the raw socket before
// bind -- the Go equivalent of CastReceiver.start()'s two setsockopt calls.
// SO_REUSEPORT has no effect (and is simply not set) on platforms where the
// constant doesn't exist, matching the source's
// "if not sys.platform.startswith('win')" guard.
func reuseControl(reuseAddr, reusePort bool) func(network, address string, c syscall.RawConn) error {
	return func(_, _ string, c syscall.RawConn) error {
		var sockErr error
		err := c.Control(func(fd uintptr) {
			if reuseAddr {
				sockErr = unix.SetsockoptInt(int(fd), unix.SOL_SOCKET, unix.SO_REUSEADDR, 1)
				if sockErr != nil {
					return
				}
			}
			if reusePort {
				sockErr = unix.SetsockoptInt(int(fd), unix.SOL_SOCKET, unix.SO_REUSEPORT, 1)
			}
		})
		if err != nil {
			return err
		}
		return sockErr
	}
}
