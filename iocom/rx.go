// File: iocom/rx.go
// Package iocom
// License: Apache-2.0
//
// state_msgrx resolves a received frame's circuit and state, validates
// the CREATE/DELETE/REPLY flag triple, computes tcmd, and updates rxcmd.
// cleanup-rx runs after the receive-msg callback returns. Grounded
// directly on the original implementation's dmsg_state_msgrx switch and
// the cleanup-rx description in spec.md §4.2.1.

package iocom

import (
	"errors"

	"github.com/clusterkit/dmsgcore/ioq"
	"github.com/clusterkit/dmsgcore/state"
	"github.com/clusterkit/dmsgcore/wire"
)

// ErrTrans marks a protocol violation: a message referenced a
// transaction state that cannot support the flag combination it carries.
var ErrTrans = errors.New("iocom: transaction protocol violation")

// stateMsgRx resolves msg against the connection's state trees, mutating
// them as needed, and reports the state to deliver the message on, plus
// whether that delivery is "unmanaged" — a zero-flag one-off with no
// persistent transaction behind it, dispatched via user-msg rather than
// receive-msg (spec.md §4.2.1 step 2; original: dmsg_state_msgrx leaves
// state == pstate and falls into its switch's default case). It returns
// ioq.ErrAlready for a benign race with a concurrent abort, or ErrTrans
// for a genuine protocol violation. Caller holds ioc.mu.
func (ioc *IOCOM) stateMsgRx(msg *wire.Msg) (st *state.State, unmanaged bool, err error) {
	cmd := msg.Head.Cmd

	circuit := ioc.resolveCircuit(msg.Head.Circuit, cmd.HasRevCirc())
	if circuit == nil {
		return nil, false, ioq.ErrAlready
	}

	tree, existing := ioc.resolveStateTree(cmd.HasRevTrans())
	st = tree.Lookup(msg.Head.MsgID)

	if st == nil {
		switch {
		case cmd.HasCreate():
			st = state.NewDynamic(circuit, msg.Head.MsgID, true)
			tree.Insert(st)
			st.ICmd = cmd.Base()
			ioc.bumpStateCount(1)
		case cmd.HasAbort():
			return nil, false, ioq.ErrAlready
		case !cmd.HasDelete() && !cmd.HasReply():
			// Absent state, no CREATE/DELETE/REPLY: a legitimate one-off
			// delivered directly against the circuit itself, not a
			// protocol violation.
			st = circuit
			unmanaged = true
		default:
			return nil, false, ErrTrans
		}
	} else if cmd.HasCreate() && !cmd.HasDelete() && st.RxCmd.HasCreate() {
		// A second CREATE on an already-open transaction, without ABORT,
		// is the protocol violation the original flags as EALREADY-or-TRANS.
		if cmd.HasAbort() {
			return nil, false, ioq.ErrAlready
		}
		return nil, false, ErrTrans
	}

	transactional := !st.Flags.Has(state.FlagRoot)
	msg.TCmd = wire.ComputeTCmd(st.ICmd, cmd, transactional)
	msg.State = st
	st.Hold()

	st.RxCmd |= cmd & (wire.CmdFlagCreate | wire.CmdFlagDelete | wire.CmdFlagReply)

	if cmd.HasDelete() && st.TxCmd.HasDelete() && st.Flags.Has(state.FlagRBInserted) {
		tree.Delete(st)
	}

	_ = existing
	return st, unmanaged, nil
}

// resolveCircuit maps msg.Head.Circuit to the parent state: state0 for
// 0, or a tree lookup (our tree if REVCIRC, the peer's otherwise).
func (ioc *IOCOM) resolveCircuit(circuit uint64, revcirc bool) *state.State {
	if circuit == 0 {
		return ioc.state0
	}
	if revcirc {
		return ioc.wr.Lookup(circuit)
	}
	return ioc.rd.Lookup(circuit)
}

// resolveStateTree picks which tree a msgid belongs in: our own
// (statewr) if REVTRANS is set, else the peer's (staterd).
func (ioc *IOCOM) resolveStateTree(revtrans bool) (*state.Tree, bool) {
	if revtrans {
		return ioc.wr, true
	}
	return ioc.rd, false
}

// treeFor returns the tree st is (or would be) indexed in, based on
// whether the peer initiated it.
func (ioc *IOCOM) treeFor(st *state.State) *state.Tree {
	if st.Flags.Has(state.FlagOpposite) {
		return ioc.rd
	}
	return ioc.wr
}

// deliverReceived runs the full RX pipeline for one parsed frame: resolve
// state, dispatch it, then cleanup-rx. Dispatch is one of three things,
// in priority order: automatic relay reforwarding (spec.md §4.4, the
// application never sees relayed traffic), user-msg for an unmanaged
// one-off, or receive-msg for everything else.
func (ioc *IOCOM) deliverReceived(msg *wire.Msg) {
	ioc.mu.Lock()
	st, unmanaged, err := ioc.stateMsgRx(msg)
	ioc.mu.Unlock()

	if err != nil {
		if err == ioq.ErrAlready {
			return
		}
		ioc.triggerLinkFailure(err)
		return
	}

	switch {
	case st.Relay != nil:
		ioc.reforwardRelayed(msg, st)
	case msg.Head.Cmd.HasCreate() && st.Parent != nil && st.Parent.Relay != nil:
		ioc.relayCreateAuto(msg, st)
	case unmanaged:
		if ioc.cb.UserMsg != nil {
			ioc.cb.UserMsg(msg, true)
		}
	default:
		if ioc.cb.ReceiveMsg != nil {
			ioc.cb.ReceiveMsg(msg)
		}
	}

	ioc.mu.Lock()
	ioc.cleanupRx(msg, st)
	ioc.mu.Unlock()
}

// cleanupRx runs after the receive-msg callback returns, under the
// mutex: if both directions have now seen DELETE, detach from the
// parent's subq (may recursively drop the parent) and release any relay
// peer. The message is always freed here.
func (ioc *IOCOM) cleanupRx(msg *wire.Msg, st *state.State) {
	defer msg.Free()
	if st == nil || st.Flags.Has(state.FlagRoot) {
		return
	}
	if st.TxCmd.HasDelete() && st.RxCmd.HasDelete() {
		if st.Relay != nil {
			peer := st.Relay
			st.Relay = nil
			st.RelayConn = nil
			peer.Relay = nil
			peer.RelayConn = nil
			peer.Drop()
			st.Drop()
		}
		if st.Flags.Has(state.FlagSubinserted) {
			st.SubqDelete()
			ioc.bumpStateCount(-1)
		}
	}
}
