// File: iocom/cascade.go
// Package iocom
// License: Apache-2.0
//
// The failure cascade: simulateFailure walks the whole transaction
// forest on a fatal IOQ error, stateAbort walks one subtree on a write
// to a DYING state. Both synthesize one LNK_ERROR DELETE per open
// transaction. Grounded directly on the original implementation's
// dmsg_simulate_failure (the "recurse with mutation" again: goto loop,
// here expressed via state.ForEachChild's Scan-cursor restart) and
// dmsg_state_abort.
//
// Per spec.md §5, the synthetic receive-msg callback this file invokes
// runs WITH the IOCOM mutex held — the one deliberate exception to the
// normal RX path, which always releases the mutex before calling user
// code. Callers of simulateFailure/stateAbort must already hold ioc.mu.

package iocom

import (
	"github.com/clusterkit/dmsgcore/ioq"
	"github.com/clusterkit/dmsgcore/state"
	"github.com/clusterkit/dmsgcore/wire"
)

// LinkErrorCmd is the sentinel base command carried by every
// synthesized failure notification; applications recognize it via
// msg.Head.Cmd.Base(). msg.TCmd does not carry it: a synthesized DELETE
// gets the transaction's latched inner command in TCmd, and the final
// non-transactional sentinel gets TCmd == 0.
const LinkErrorCmd wire.Cmd = 0x00FFFF00

// Error codes carried in a synthesized frame's Head.Error field.
const (
	ErrCodeLostLink uint32 = 1
	ErrCodeSock     uint32 = 2
	ErrCodeSync     uint32 = 3
	ErrCodeField    uint32 = 4
	ErrCodeXCRC     uint32 = 5
	ErrCodeACRC     uint32 = 6
	ErrCodeMsgSeq   uint32 = 7
)

func errorCode(err error) uint32 {
	switch err {
	case ioq.ErrSock:
		return ErrCodeSock
	case ioq.ErrSync:
		return ErrCodeSync
	case ioq.ErrField:
		return ErrCodeField
	case ioq.ErrXCRC:
		return ErrCodeXCRC
	case ioq.ErrACRC:
		return ErrCodeACRC
	case ioq.ErrMsgSeq:
		return ErrCodeMsgSeq
	default:
		return ErrCodeLostLink
	}
}

// triggerLinkFailure is iocom_drain: it latches EOF and walks the whole
// forest from state0 down. Caller must NOT hold ioc.mu.
func (ioc *IOCOM) triggerLinkFailure(err error) {
	ioc.mu.Lock()
	defer ioc.mu.Unlock()
	ioc.logf("link failure, draining open transactions: %v", err)
	ioc.errored = err
	ioc.flags |= flagEOF
	ioc.simulateFailure(ioc.state0, false, err)
	ioc.deliverFinalLinkError(err)
}

// deliverFinalLinkError delivers the one non-transactional LNK_ERROR
// sentinel parented to state0, required after every in-flight
// transaction has been synthetically closed (spec.md §4.1, §8.5).
// state0 itself is never torn down (Invariant 1), so no tree/subq
// cleanup runs here beyond releasing the transient message reference.
func (ioc *IOCOM) deliverFinalLinkError(err error) {
	msg := ioc.allocMsg()
	msg.Head.Cmd = LinkErrorCmd | wire.CmdFlagAbort
	msg.Head.Error = errorCode(err)
	msg.TCmd = 0
	msg.State = ioc.state0
	ioc.state0.Hold()

	if ioc.cb.ReceiveMsg != nil {
		ioc.cb.ReceiveMsg(msg)
	}
	msg.Free()
}

// simulateFailure is dmsg_simulate_failure: hold a ref on state, abort
// it if meto requests it and it is not already aborting, then recurse
// into every child with meto=true. ForEachChild's Scan-cursor handles
// the case where a child's own callback removes a sibling mid-iteration.
func (ioc *IOCOM) simulateFailure(st *state.State, meto bool, err error) {
	st.Hold()
	defer st.Drop()

	if meto && !st.IsAborting() {
		ioc.stateAbort(st, err)
	}

	st.ForEachChild(func(child *state.State) {
		ioc.simulateFailure(child, true, err)
	})
}

// stateAbort is dmsg_state_abort. Caller holds ioc.mu.
func (ioc *IOCOM) stateAbort(st *state.State, err error) {
	if st.IsAborting() {
		return
	}
	st.Flags |= state.FlagAborting
	st.SetDyingRecursive()

	if st.Flags.Has(state.FlagNew) {
		// Nothing sent yet; SendMessage synthesizes the abort when the
		// next send on this state is attempted (that message is dropped).
		return
	}
	if !st.RxCmd.HasDelete() {
		ioc.synthesizeLostLink(st, err)
	}
}

// synthesizeLostLink builds the synthetic LNK_ERROR DELETE described in
// spec.md §4.3 step 4 and dispatches it through the same rxcmd-update +
// receive-msg + cleanup-rx pipeline as a real received frame, but with
// the state already resolved (the "already-have-state fast path") and
// the mutex held throughout.
func (ioc *IOCOM) synthesizeLostLink(st *state.State, err error) {
	cmd := LinkErrorCmd
	if !st.RxCmd.HasCreate() {
		cmd |= wire.CmdFlagCreate
	}
	cmd |= wire.CmdFlagDelete
	cmd |= st.RxCmd & wire.CmdFlagReply
	cmd |= wire.CmdFlagRevTrans | wire.CmdFlagRevCirc
	cmd |= wire.CmdFlagAbort

	msg := ioc.allocMsg()
	msg.Head.Cmd = cmd
	msg.Head.Error = errorCode(err)
	msg.Head.MsgID = st.MsgID
	transactional := !st.Flags.Has(state.FlagRoot)
	msg.TCmd = wire.ComputeTCmd(st.ICmd, cmd, transactional)
	msg.State = st
	st.Hold()

	st.RxCmd |= cmd & (wire.CmdFlagCreate | wire.CmdFlagDelete | wire.CmdFlagReply)

	if cmd.HasDelete() && st.TxCmd.HasDelete() && st.Flags.Has(state.FlagRBInserted) {
		ioc.treeFor(st).Delete(st)
	}

	if ioc.cb.ReceiveMsg != nil {
		ioc.cb.ReceiveMsg(msg)
	}
	ioc.cleanupRx(msg, st)
}
