// File: ioq/errors.go
// Package ioq
// License: Apache-2.0
//
// Sentinel errors returned by the per-direction parser/serializer,
// following the teacher's sentinel-var style (api/errors.go: package
// level `var Err* = errors.New(...)`) rather than a large enum of
// custom error types.

package ioq

import "errors"

var (
	// ErrEOF means the peer closed its end of the stream.
	ErrEOF = errors.New("ioq: eof")
	// ErrSock is a fatal read/write syscall error.
	ErrSock = errors.New("ioq: socket error")
	// ErrSync means a frame's magic did not match either native or
	// byte-swapped expectations.
	ErrSync = errors.New("ioq: bad magic")
	// ErrField means a header-size or aux-size field was out of range.
	ErrField = errors.New("ioq: field out of range")
	// ErrXCRC means the header CRC did not verify.
	ErrXCRC = errors.New("ioq: header crc mismatch")
	// ErrACRC means the aux-data CRC did not verify.
	ErrACRC = errors.New("ioq: aux crc mismatch")
	// ErrMsgSeq means the salt's rolling sequence byte did not match.
	ErrMsgSeq = errors.New("ioq: salt sequence mismatch")
	// ErrAlready means the frame raced a concurrent abort; it is
	// discarded, not fatal.
	ErrAlready = errors.New("ioq: already aborting")
)

// Fatal reports whether err should latch the IOQ into its ERROR state
// and drive the failure cascade, as opposed to ErrAlready which is
// silently absorbed.
func Fatal(err error) bool {
	return err != nil && err != ErrAlready
}
