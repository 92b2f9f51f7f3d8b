//go:build unix

// Package sockopt holds socket options applied to listeners before bind.
package sockopt

import (
	"golang.org/x/sys/unix"
	"syscall"
)

// Control returns a net.ListenConfig control function that applies the
// requested options to the raw socket. A nil function is returned if no
// option is requested.
func Control(reuseAddr bool) func(network, address string, c syscall.RawConn) error {
	if !reuseAddr {
		return nil
	}

	return func(network, address string, c syscall.RawConn) error {
		var sockErr error
		err := c.Control(func(fd uintptr) {
			sockErr = unix.SetsockoptInt(int(fd), unix.SOL_SOCKET, unix.SO_REUSEADDR, 1)
		})
		if err != nil {
			return err
		}
		return sockErr
	}
}
