//go:build !unix

package server

import "net"

// ForkSupported reports whether this platform can hand accepted sockets to
// isolated worker processes. Socket inheritance via extra files is a POSIX
// capability; elsewhere forking mode is rejected at startup, never faked.
func ForkSupported() bool { return false }

// superviseForked is unreachable: New refuses forking mode when
// ForkSupported is false.
func (s *Instance) superviseForked(conn net.Conn) {
	conn.Close()
}
