// File: iocom/relay.go
// Package iocom
// License: Apache-2.0
//
// Relay pairs a state on this IOCOM with a mirror state on another
// IOCOM so that messages on either side automatically reforward.
// Grounded on spec.md §4.4; the original implementation's equivalent is
// scattered through dmsg_state_msgrx's relay branch rather than a single
// named function, so this file names it explicitly as Relay/Reforward.

package iocom

import (
	"github.com/clusterkit/dmsgcore/state"
	"github.com/clusterkit/dmsgcore/wire"
)

// PairRelay links a and b as mutual relay peers, each holding one strong
// cross-reference on the other, and records each side's owning
// connection so a later Reforward can reach across to the peer's IOCOM.
func PairRelay(a *state.State, aOwner *IOCOM, b *state.State, bOwner *IOCOM) {
	a.Relay = b
	a.RelayConn = bOwner
	b.Relay = a
	b.RelayConn = aOwner
	a.Hold()
	b.Hold()
}

// RelayCreate mirrors a just-received CREATE from src onto dst: it
// allocates a child of dstParent on dst's own (statewr) tree, pairs the
// two states as relay peers, and builds the outgoing CREATE carrying
// the extended header verbatim and the aux payload moved (not copied)
// from msg — src's Aux is nulled, matching the ownership-transfer rule
// in spec.md §4.4.
func (src *IOCOM) RelayCreate(dst *IOCOM, msg *wire.Msg, dstParent *state.State) *wire.Msg {
	srcState := msg.State.(*state.State)

	dst.mu.Lock()
	if dstParent == nil {
		dstParent = dst.state0
	}
	msgid := dst.nextMsgID()
	mirror := state.NewDynamic(dstParent, msgid, false)
	dst.wr.Insert(mirror)
	mirror.ICmd = msg.Head.Cmd.Base()
	dst.bumpStateCount(1)
	dst.mu.Unlock()

	src.mu.Lock()
	PairRelay(srcState, src, mirror, dst)
	src.mu.Unlock()

	out := &wire.Msg{}
	out.Head.Cmd = msg.Head.Cmd.Base() | wire.CmdFlagCreate
	out.Head.MsgID = msgid
	if !dstParent.Flags.Has(state.FlagRoot) {
		out.Head.Circuit = dstParent.MsgID
	}
	out.Ext = append([]byte(nil), msg.Ext...)
	out.Aux = msg.Aux
	msg.Aux = nil
	out.State = mirror
	mirror.Hold()
	return out
}

// Reforward mirrors a non-CREATE message on an already-relayed state
// onto its peer IOCOM's side of the pair. ok is false if the state has
// no relay peer (nothing to forward).
func Reforward(msg *wire.Msg) (out *wire.Msg, ok bool) {
	st := msg.State.(*state.State)
	if st.Relay == nil {
		return nil, false
	}
	peer := st.Relay

	out = &wire.Msg{}
	out.Head.Cmd = msg.Head.Cmd.Base() &^ (wire.CmdFlagRevTrans | wire.CmdFlagRevCirc)
	out.Head.Cmd |= msg.Head.Cmd & (wire.CmdFlagDelete | wire.CmdFlagReply | wire.CmdFlagAbort)
	out.Head.MsgID = peer.MsgID
	out.Head.Error = msg.Head.Error
	out.Ext = append([]byte(nil), msg.Ext...)
	out.Aux = msg.Aux
	msg.Aux = nil
	out.State = peer
	peer.Hold()
	return out, true
}

// reforwardRelayed is the automatic-dispatch counterpart to Reforward: it
// builds the mirrored message and, if the peer's owning connection is
// still reachable, sends it on. Called from deliverReceived once
// stateMsgRx has resolved st and found st.Relay already set.
func (ioc *IOCOM) reforwardRelayed(msg *wire.Msg, st *state.State) {
	out, ok := Reforward(msg)
	if !ok {
		return
	}
	if dst, ok := st.RelayConn.(*IOCOM); ok && dst != nil {
		dst.SendMessage(out)
	}
}

// relayCreateAuto is the automatic-dispatch counterpart to RelayCreate:
// called from deliverReceived when a CREATE lands on a freshly allocated
// state whose parent circuit has Relay set (spec.md §4.4 — the parent's
// relay marks every child circuit for automatic mirroring, not just the
// first one seen).
func (ioc *IOCOM) relayCreateAuto(msg *wire.Msg, st *state.State) {
	parent := st.Parent
	dst, ok := parent.RelayConn.(*IOCOM)
	if !ok || dst == nil {
		return
	}
	out := ioc.RelayCreate(dst, msg, parent.Relay)
	dst.SendMessage(out)
}
