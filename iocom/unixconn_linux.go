// File: iocom/unixconn_linux.go
// Package iocom
// License: Apache-2.0
//
// UnixConn wraps a net.Conn backed by a raw file descriptor (TCP or unix
// domain socket) so frameWriter's batched flush can issue one real
// unix.Writev instead of a concatenated Write, matching the wire
// contract's "issues one writev" requirement. Grounded on the teacher's
// internal/transport/transport_linux.go, which uses the same x/sys/unix
// syscall.RawConn idiom for non-blocking socket I/O and batched sends.

//go:build linux

package iocom

import (
	"fmt"
	"net"
	"syscall"

	"golang.org/x/sys/unix"
)

// UnixConn adapts any net.Conn exposing a syscall.RawConn into a
// Transport that also implements VectoredWriter.
type UnixConn struct {
	net.Conn
	raw syscall.RawConn
}

// NewUnixConn wraps conn, enabling TCP_NODELAY the way the teacher's
// transport_linux.go does for latency-sensitive control-plane traffic.
func NewUnixConn(conn net.Conn) (*UnixConn, error) {
	sc, ok := conn.(syscall.Conn)
	if !ok {
		return nil, fmt.Errorf("iocom: %T does not expose a raw file descriptor", conn)
	}
	raw, err := sc.SyscallConn()
	if err != nil {
		return nil, err
	}
	if tc, ok := conn.(*net.TCPConn); ok {
		_ = tc.SetNoDelay(true)
	}
	return &UnixConn{Conn: conn, raw: raw}, nil
}

// WriteV issues one writev(2) across bufs.
func (c *UnixConn) WriteV(bufs [][]byte) (int, error) {
	iovs := make([][]byte, 0, len(bufs))
	for _, b := range bufs {
		if len(b) > 0 {
			iovs = append(iovs, b)
		}
	}
	if len(iovs) == 0 {
		return 0, nil
	}

	var n int
	var writeErr error
	err := c.raw.Write(func(fd uintptr) bool {
		written, err := unix.Writev(int(fd), iovs)
		if err == unix.EAGAIN {
			return false // ask runtime poller to wait for writability
		}
		n, writeErr = written, err
		return true
	})
	if err != nil {
		return n, err
	}
	return n, writeErr
}
