//go:build windows

package multicast

import "syscall"

// reuseControl sets SO_REUSEADDR only; SO_REUSEPORT has no Windows
// equivalent, matching the source's "if not sys.platform.startswith('win')"
// guard around that setsockopt call.
func reuseControl(reuseAddr, _ bool) func(network, address string, c syscall.RawConn) error {
	return func(_, _ string, c syscall.RawConn) error {
		if !reuseAddr {
			return nil
		}
		var sockErr error
		err := c.Control(func(fd uintptr) {
			sockErr = syscall.SetsockoptInt(syscall.Handle(fd), syscall.SOL_SOCKET, syscall.SO_REUSEADDR, 1)
		})
		if err != nil {
			return err
		}
		return sockErr
	}
}
