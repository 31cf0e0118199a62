// File: iocom/relay_internal_test.go
// License: Apache-2.0
//
// White-box tests (package iocom, not iocom_test) for the automatic relay
// dispatch and the unmanaged one-off dispatch added to deliverReceived:
// both need direct access to the state trees and PairRelay to set up a
// pre-established relay pairing without a full LNK_SPAN handshake.

package iocom

import (
	"context"
	"net"
	"testing"
	"time"

	"github.com/clusterkit/dmsgcore/state"
	"github.com/clusterkit/dmsgcore/wire"
)

func TestAutomaticRelayDispatchAcrossIOCOMs(t *testing.T) {
	// iocSrc never runs its own loop; deliverReceived is called on it
	// directly, standing in for bytes that arrived over some upstream
	// link this test doesn't need to simulate.
	upConn, _ := net.Pipe()
	iocSrc := New(upConn, Config{})

	dstConn, cConn := net.Pipe()
	iocDst := New(dstConn, Config{})

	recv := make(chan *wire.Msg, 2)
	iocC := New(cConn, Config{Callbacks: Callbacks{
		ReceiveMsg: func(msg *wire.Msg) { recv <- msg },
	}})

	ctx, cancel := context.WithCancel(context.Background())
	go iocDst.Run(ctx)
	go iocC.Run(ctx)
	defer func() {
		cancel()
		dstConn.Close()
		cConn.Close()
		<-iocDst.Done()
		<-iocC.Done()
	}()

	circuit := state.NewDynamic(iocSrc.state0, 50, true)
	iocSrc.rd.Insert(circuit)
	PairRelay(circuit, iocSrc, iocDst.state0, iocDst)

	create := &wire.Msg{}
	create.Head.Cmd = wire.CmdFlagCreate
	create.Head.MsgID = 77
	create.Head.Circuit = 50
	iocSrc.deliverReceived(create)

	select {
	case msg := <-recv:
		if !msg.Head.Cmd.HasCreate() {
			t.Fatalf("relayed CREATE missing CREATE flag: %#x", uint32(msg.Head.Cmd))
		}
	case <-time.After(3 * time.Second):
		t.Fatalf("timed out waiting for relayed CREATE")
	}

	st := iocSrc.rd.Lookup(77)
	if st == nil || st.Relay == nil {
		t.Fatalf("expected state 77 to be paired with a relay mirror after auto-dispatch")
	}

	closeMsg := &wire.Msg{}
	closeMsg.Head.Cmd = wire.CmdFlagDelete | wire.CmdFlagReply
	closeMsg.Head.MsgID = 77
	closeMsg.Head.Circuit = 50
	iocSrc.deliverReceived(closeMsg)

	select {
	case msg := <-recv:
		if !msg.Head.Cmd.HasDelete() || !msg.Head.Cmd.HasReply() {
			t.Fatalf("reforwarded close missing DELETE|REPLY: %#x", uint32(msg.Head.Cmd))
		}
	case <-time.After(3 * time.Second):
		t.Fatalf("timed out waiting for reforwarded close")
	}
}

func TestUnmanagedOneOffDispatchesToUserMsg(t *testing.T) {
	connA, connB := net.Pipe()
	userRecv := make(chan *wire.Msg, 1)
	managedRecv := make(chan *wire.Msg, 1)

	a := New(connA, Config{})
	b := New(connB, Config{Callbacks: Callbacks{
		UserMsg: func(msg *wire.Msg, unmanaged bool) {
			if unmanaged {
				userRecv <- msg
			}
		},
		ReceiveMsg: func(msg *wire.Msg) { managedRecv <- msg },
	}})

	ctx, cancel := context.WithCancel(context.Background())
	go a.Run(ctx)
	go b.Run(ctx)
	defer func() {
		cancel()
		connA.Close()
		connB.Close()
		<-a.Done()
		<-b.Done()
	}()

	oneOff := &wire.Msg{}
	oneOff.Head.MsgID = 999
	oneOff.State = a.state0
	a.state0.Hold()
	a.SendMessage(oneOff)

	select {
	case <-userRecv:
	case <-managedRecv:
		t.Fatalf("zero-flag one-off was dispatched to ReceiveMsg instead of UserMsg")
	case <-time.After(3 * time.Second):
		t.Fatalf("timed out waiting for the one-off to reach UserMsg")
	}
}
