// File: wire/cmd.go
// Package wire implements the on-the-wire header layout and flag-bit
// encoding for the control-plane transport. License: Apache-2.0
//
// cmd is a 32-bit tag union: low bits carry the header size in 64-byte
// units, a mid-range carries the opaque base command, and the high bits
// carry the flag bits the transaction engine actually interprets.

package wire

// Cmd is the 32-bit cmd field of a Header.
type Cmd uint32

// Flag bits of interest to the transaction engine. All other bits in the
// base-command range are opaque to this package; higher-level protocols
// own their meaning.
const (
	CmdFlagCreate Cmd = 0x80000000 >> iota
	CmdFlagDelete
	CmdFlagReply
	CmdFlagAbort
	CmdFlagRevTrans
	CmdFlagRevCirc
)

const (
	// CmdFlagMask covers every flag bit this package defines.
	CmdFlagMask = CmdFlagCreate | CmdFlagDelete | CmdFlagReply | CmdFlagAbort |
		CmdFlagRevTrans | CmdFlagRevCirc

	// CmdSizeMask is the low byte: header size in 64-byte units.
	CmdSizeMask Cmd = 0x000000FF

	// CmdSwitchMask isolates the bits used for non-transactional dispatch.
	CmdSwitchMask Cmd = 0x00FFFF00

	// CmdBaseMask isolates the opaque base command, excluding flags and size.
	CmdBaseMask Cmd = ^Cmd(0) &^ (CmdFlagMask | CmdSizeMask)

	// HeaderAlignment is the wire unit: header size is a multiple of this
	// many bytes, and aux payloads are padded up to it.
	HeaderAlignment = 64
)

// HeaderUnits returns the header size encoded in the low byte, in units
// of HeaderAlignment bytes.
func (c Cmd) HeaderUnits() int { return int(c & CmdSizeMask) }

// HeaderBytes returns the header size in bytes.
func (c Cmd) HeaderBytes() int { return c.HeaderUnits() * HeaderAlignment }

// Base returns the opaque base command, with flags and size masked out.
func (c Cmd) Base() Cmd { return c & CmdBaseMask }

// WithHeaderUnits returns c with its size field replaced.
func (c Cmd) WithHeaderUnits(units int) Cmd {
	return (c &^ CmdSizeMask) | Cmd(units)&CmdSizeMask
}

// HasCreate reports whether the CREATE flag is set.
func (c Cmd) HasCreate() bool { return c&CmdFlagCreate != 0 }

// HasDelete reports whether the DELETE flag is set.
func (c Cmd) HasDelete() bool { return c&CmdFlagDelete != 0 }

// HasReply reports whether the REPLY flag is set.
func (c Cmd) HasReply() bool { return c&CmdFlagReply != 0 }

// HasAbort reports whether the ABORT flag is set.
func (c Cmd) HasAbort() bool { return c&CmdFlagAbort != 0 }

// HasRevTrans reports whether the transaction-direction reversal bit is set.
func (c Cmd) HasRevTrans() bool { return c&CmdFlagRevTrans != 0 }

// HasRevCirc reports whether the circuit-direction reversal bit is set.
func (c Cmd) HasRevCirc() bool { return c&CmdFlagRevCirc != 0 }

// AlignUp rounds n up to the next multiple of HeaderAlignment.
func AlignUp(n uint32) uint32 {
	const mask = uint32(HeaderAlignment - 1)
	return (n + mask) &^ mask
}
