// File: iocom/tx.go
// Package iocom
// License: Apache-2.0
//
// SendMessage is msg_write: validate against txcmd/DYING, hand the
// message to the cross-thread queue, and wake the IO core. cleanupTx is
// the send-side state bookkeeping the spec places "before the message
// hits the wire, under the mutex." Grounded on the original
// implementation's dmsg_msg_write tail.

package iocom

import (
	"github.com/clusterkit/dmsgcore/state"
	"github.com/clusterkit/dmsgcore/wire"
)

// SendMessage is the public entry point any goroutine uses to transmit
// a message on a transaction state. It is safe to call concurrently with
// Run and with other SendMessage calls.
func (ioc *IOCOM) SendMessage(msg *wire.Msg) {
	st, _ := msg.State.(*state.State)
	if st == nil {
		panic("iocom: SendMessage requires msg.State to be set")
	}

	ioc.mu.Lock()
	if st.TxCmd.HasDelete() {
		// Double-close safety (spec.md §7): a second DELETE on an
		// already-closed transaction is silently dropped.
		ioc.mu.Unlock()
		msg.Free()
		return
	}

	if st.IsDying() {
		// Per spec.md §4.2.2: the message is dropped, and if this is the
		// state's first blocked send since a deferred abort (the state
		// was NEW when state_abort ran), the failure is synthesized now
		// — the open question in spec.md §9 documents clearing ABORTING
		// here as safe, since nothing re-walks this exact node again.
		if st.IsAborting() && !st.RxCmd.HasDelete() {
			st.Flags &^= state.FlagAborting
			st.Flags &^= state.FlagNew
			ioc.synthesizeLostLink(st, lostLinkErr(nil))
		}
		ioc.mu.Unlock()
		msg.Free()
		return
	}

	ioc.cleanupTx(msg, st)
	ioc.txq.Push(msg)
	ioc.mu.Unlock()
	ioc.wakeLoop()
}

// cleanupTx updates txcmd/icmd/NEW before the message is queued and, if
// both directions have now sent DELETE, removes the state from its tree
// and runs the same relay/subq tear-down as cleanupRx. The deferred abort
// of a state that was NEW when stateAbort ran is synthesized by
// SendMessage's IsDying branch, not here.
func (ioc *IOCOM) cleanupTx(msg *wire.Msg, st *state.State) {
	cmd := msg.Head.Cmd

	if cmd.HasCreate() {
		st.ICmd = cmd.Base()
		st.Flags &^= state.FlagNew
	}
	st.TxCmd |= cmd & (wire.CmdFlagCreate | wire.CmdFlagDelete | wire.CmdFlagReply)

	if cmd.HasDelete() && st.RxCmd.HasDelete() && st.Flags.Has(state.FlagRBInserted) {
		ioc.treeFor(st).Delete(st)
	}
	if cmd.HasDelete() && st.RxCmd.HasDelete() && !st.Flags.Has(state.FlagRoot) {
		if peer := st.Relay; peer != nil {
			st.Relay, st.RelayConn = nil, nil
			peer.Relay, peer.RelayConn = nil, nil
			peer.Drop()
			st.Drop()
		}
		if st.Flags.Has(state.FlagSubinserted) {
			st.SubqDelete()
			ioc.bumpStateCount(-1)
		}
	}
}

// runWriteWork drains the outbound queue and flushes it to the wire.
// Called only from the IO core goroutine (Run).
func (ioc *IOCOM) runWriteWork() {
	ioc.mu.Lock()
	batch := ioc.txq.DrainAll()
	ioc.mu.Unlock()
	if len(batch) == 0 {
		return
	}
	for len(batch) > 0 {
		n := len(batch)
		if n > MaxIOVec {
			n = MaxIOVec
		}
		if err := ioc.tx.flush(batch[:n]); err != nil {
			ioc.triggerLinkFailure(err)
			return
		}
		batch = batch[n:]
	}
}

// handleReadResult feeds one batch of bytes from the background reader
// goroutine into the parser and dispatches every frame it produces.
// Called only from the IO core goroutine (Run).
func (ioc *IOCOM) handleReadResult(res readResult) {
	if res.err != nil {
		ioc.triggerLinkFailure(res.err)
		return
	}
	err := ioc.rx.q.Feed(res.data, ioc.codec)
	ioc.rx.release(res.data)
	if err != nil {
		ioc.triggerLinkFailure(err)
		return
	}
	for {
		msg, err := ioc.rx.q.Step()
		if err != nil {
			ioc.triggerLinkFailure(err)
			return
		}
		if msg == nil {
			return
		}
		ioc.deliverReceived(msg)
	}
}

// drainOnEOF runs the terminal failure cascade once, when the loop
// observes flagEOF for the first time.
func (ioc *IOCOM) drainOnEOF() {
	if ioc.flags&flagErrorLatched != 0 {
		return
	}
	ioc.flags |= flagErrorLatched
	if ioc.errored == nil {
		ioc.triggerLinkFailure(lostLinkErr(nil))
	}
}
