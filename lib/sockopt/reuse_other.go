//go:build !unix

// Package sockopt holds socket options applied to listeners before bind.
package sockopt

import "syscall"

// Control is a no-op on platforms without SO_REUSEADDR support in x/sys/unix
func Control(reuseAddr bool) func(network, address string, c syscall.RawConn) error {
	return nil
}
