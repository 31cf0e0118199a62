// File: wire/msg.go
// Package wire
// License: Apache-2.0
//
// Msg is one framed message: a Header plus an optional extended-header
// tail and aux payload. A Msg holds exactly one strong reference to its
// owning state (the state package depends on this package for the type,
// not the reverse, so the back-reference is stored as an opaque holder
// rather than a concrete *state.State to avoid an import cycle).

package wire

// StateRef is satisfied by *state.State; kept as an interface here so
// wire has no dependency on the state package.
type StateRef interface {
	// Release drops the one strong reference a Msg holds on its state.
	Release()
}

// Msg is one parsed or to-be-sent frame.
type Msg struct {
	Head Header

	// Ext holds any extended-header bytes beyond the core Header, i.e.
	// Head.Cmd.HeaderBytes()-HeaderSize bytes. Nil for core-only headers.
	Ext []byte

	// Aux is the message's aux-data payload, AuxBytes bytes (unpadded).
	Aux []byte

	// TCmd is the switchable command tag computed for user dispatch (see
	// ComputeTCmd); zero for non-transactional messages until resolved.
	TCmd Cmd

	// State is the one strong reference this Msg holds on its owning
	// transaction state. Released exactly once, by Free.
	State StateRef

	freed bool
}

// Free releases the Msg's reference on its state. Idempotent.
func (m *Msg) Free() {
	if m.freed {
		return
	}
	m.freed = true
	if m.State != nil {
		m.State.Release()
		m.State = nil
	}
}

// ComputeTCmd implements the single tcmd rule named in the spec's open
// questions ("two blocks of code compute tcmd identically; treat them as
// the same function"):
//
//   - if the message carries CREATE or DELETE, tcmd is the latched inner
//     command plus the three state-changing flags;
//   - otherwise, for a message that belongs to an open transaction, tcmd
//     is the raw command's switch bits;
//   - a message with no owning transaction (the non-transactional
//     LNK_ERROR sentinel, or any message parented directly to the root
//     state with no circuit) always gets tcmd == 0.
func ComputeTCmd(icmd Cmd, cmd Cmd, transactional bool) Cmd {
	if !transactional {
		return 0
	}
	if cmd.HasCreate() || cmd.HasDelete() {
		return icmd.Base() | (cmd & (CmdFlagCreate | CmdFlagDelete | CmdFlagReply))
	}
	return cmd & CmdSwitchMask
}
