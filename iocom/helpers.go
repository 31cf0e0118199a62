// File: iocom/helpers.go
// Package iocom
// License: Apache-2.0
//
// NewTransaction/Reply/Result are one-shot/streaming convenience
// builders supplementing the core protocol described in spec.md — the
// original implementation exposes the equivalent dmsg_state_reply /
// dmsg_state_result helpers on top of the same msg_write primitive
// (spec.md §7, §12 item 4 of the expanded spec).

package iocom

import (
	"github.com/clusterkit/dmsgcore/state"
	"github.com/clusterkit/dmsgcore/wire"
)

// NewTransaction allocates a fresh outbound transaction state as a child
// of parent (state0 if nil) and builds its initiating CREATE message.
// The caller fills in Aux/Ext as needed and sends it via SendMessage.
func (ioc *IOCOM) NewTransaction(parent *state.State, base wire.Cmd) *wire.Msg {
	ioc.mu.Lock()
	if parent == nil {
		parent = ioc.state0
	}
	msgid := ioc.nextMsgID()
	st := state.NewDynamic(parent, msgid, false)
	ioc.wr.Insert(st)
	st.Flags |= state.FlagNew
	ioc.bumpStateCount(1)

	var circuit uint64
	if !parent.Flags.Has(state.FlagRoot) {
		circuit = parent.MsgID
	}
	ioc.mu.Unlock()

	msg := ioc.allocMsg()
	msg.Head.Cmd = base.Base() | wire.CmdFlagCreate
	msg.Head.MsgID = msgid
	msg.Head.Circuit = circuit
	msg.State = st
	st.Hold() // the message's own reference
	return msg
}

// Reply builds a non-terminal reply message on the same transaction as
// an already-delivered msg, carrying the REPLY flag and reversed
// transaction/circuit direction when the state was peer-initiated.
func Reply(msg *wire.Msg, base wire.Cmd, aux []byte) *wire.Msg {
	st := msg.State.(*state.State)
	out := &wire.Msg{}
	out.Head.Cmd = base.Base() | wire.CmdFlagReply
	if st.Flags.Has(state.FlagOpposite) {
		out.Head.Cmd |= wire.CmdFlagRevTrans | wire.CmdFlagRevCirc
	}
	out.Head.MsgID = st.MsgID
	out.Aux = aux
	out.State = st
	st.Hold()
	return out
}

// Result builds the terminal reply closing a transaction: REPLY plus
// DELETE, optionally carrying an error code.
func Result(msg *wire.Msg, base wire.Cmd, errCode uint32, aux []byte) *wire.Msg {
	out := Reply(msg, base, aux)
	out.Head.Cmd |= wire.CmdFlagDelete
	out.Head.Error = errCode
	return out
}
