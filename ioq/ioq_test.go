// File: ioq/ioq_test.go
// License: Apache-2.0

package ioq_test

import (
	"testing"

	"github.com/clusterkit/dmsgcore/ioq"
	"github.com/clusterkit/dmsgcore/wire"
)

// encodeFrame builds a complete on-wire frame (core header + aux, with
// valid CRCs) the way a transmitter would, for feeding straight into an
// IOQ under test.
func encodeFrame(t *testing.T, cmd wire.Cmd, msgid uint64, aux []byte) []byte {
	t.Helper()
	h := wire.Header{
		Magic: wire.MagicNative,
		MsgID: msgid,
		Cmd:   cmd.WithHeaderUnits(1),
	}
	padded := make([]byte, wire.AlignUp(uint32(len(aux))))
	copy(padded, aux)
	h.AuxBytes = uint32(len(aux))
	if len(aux) > 0 {
		h.AuxCRC = wire.ICRC32(padded)
	}

	buf := make([]byte, wire.HeaderSize+len(padded))
	h.Encode(buf)
	wire.ZeroHdrCRC(buf)
	crc := wire.ICRC32(buf[:wire.HeaderSize])
	wire.PutHdrCRC(buf, crc)
	copy(buf[wire.HeaderSize:], padded)
	return buf
}

func TestStepParsesCoreOnlyFrame(t *testing.T) {
	q := ioq.New(4096)
	frame := encodeFrame(t, wire.CmdFlagCreate|wire.CmdFlagDelete, 17, nil)

	if err := q.Feed(frame, nil); err != nil {
		t.Fatalf("Feed: %v", err)
	}
	msg, err := q.Step()
	if err != nil {
		t.Fatalf("Step: %v", err)
	}
	if msg == nil {
		t.Fatalf("Step() = nil, want a parsed message")
	}
	if msg.Head.MsgID != 17 {
		t.Fatalf("MsgID = %d, want 17", msg.Head.MsgID)
	}
	if !msg.Head.Cmd.HasCreate() || !msg.Head.Cmd.HasDelete() {
		t.Fatalf("expected CREATE|DELETE, got %#x", uint32(msg.Head.Cmd))
	}
}

func TestStepParsesFrameWithAux(t *testing.T) {
	q := ioq.New(4096)
	payload := []byte("hello transaction engine")
	frame := encodeFrame(t, wire.CmdFlagCreate, 99, payload)

	if err := q.Feed(frame, nil); err != nil {
		t.Fatalf("Feed: %v", err)
	}
	msg, err := q.Step()
	if err != nil {
		t.Fatalf("Step: %v", err)
	}
	if msg == nil {
		t.Fatalf("expected a parsed message")
	}
	if string(msg.Aux) != string(payload) {
		t.Fatalf("Aux = %q, want %q", msg.Aux, payload)
	}
}

func TestStepAcrossTwoFeedsForSplitAux(t *testing.T) {
	q := ioq.New(4096)
	payload := make([]byte, 200)
	for i := range payload {
		payload[i] = byte(i)
	}
	frame := encodeFrame(t, wire.CmdFlagCreate, 5, payload)

	split := wire.HeaderSize + 10
	if err := q.Feed(frame[:split], nil); err != nil {
		t.Fatalf("Feed first half: %v", err)
	}
	if msg, err := q.Step(); err != nil || msg != nil {
		t.Fatalf("Step after partial feed: msg=%v err=%v, want nil,nil", msg, err)
	}

	if err := q.Feed(frame[split:], nil); err != nil {
		t.Fatalf("Feed second half: %v", err)
	}
	msg, err := q.Step()
	if err != nil {
		t.Fatalf("Step: %v", err)
	}
	if msg == nil || string(msg.Aux) != string(payload) {
		t.Fatalf("got %v, want full payload", msg)
	}
}

func TestStepRejectsBadMagic(t *testing.T) {
	q := ioq.New(4096)
	frame := encodeFrame(t, wire.CmdFlagCreate, 1, nil)
	frame[0] = 0xFF
	frame[1] = 0xFF

	if err := q.Feed(frame, nil); err != nil {
		t.Fatalf("Feed: %v", err)
	}
	if _, err := q.Step(); err != ioq.ErrSync {
		t.Fatalf("Step() err = %v, want ErrSync", err)
	}
}

func TestStepRejectsBadHeaderCRC(t *testing.T) {
	q := ioq.New(4096)
	frame := encodeFrame(t, wire.CmdFlagCreate, 1, nil)
	frame[0x3C] ^= 0xFF

	if err := q.Feed(frame, nil); err != nil {
		t.Fatalf("Feed: %v", err)
	}
	if _, err := q.Step(); err != ioq.ErrXCRC {
		t.Fatalf("Step() err = %v, want ErrXCRC", err)
	}
}

func TestStepRejectsBadAuxCRC(t *testing.T) {
	q := ioq.New(4096)
	frame := encodeFrame(t, wire.CmdFlagCreate, 1, []byte("payload"))
	frame[wire.HeaderSize] ^= 0xFF

	if err := q.Feed(frame, nil); err != nil {
		t.Fatalf("Feed: %v", err)
	}
	if _, err := q.Step(); err != ioq.ErrACRC {
		t.Fatalf("Step() err = %v, want ErrACRC", err)
	}
}

// encodeFrameSalt is encodeFrame with an explicit Salt, so the rolling
// sequence byte can be driven off-expectation while header/aux CRCs
// still check out.
func encodeFrameSalt(t *testing.T, cmd wire.Cmd, msgid uint64, salt uint32, aux []byte) []byte {
	t.Helper()
	h := wire.Header{
		Magic: wire.MagicNative,
		MsgID: msgid,
		Salt:  salt,
		Cmd:   cmd.WithHeaderUnits(1),
	}
	padded := make([]byte, wire.AlignUp(uint32(len(aux))))
	copy(padded, aux)
	h.AuxBytes = uint32(len(aux))
	if len(aux) > 0 {
		h.AuxCRC = wire.ICRC32(padded)
	}

	buf := make([]byte, wire.HeaderSize+len(padded))
	h.Encode(buf)
	wire.ZeroHdrCRC(buf)
	crc := wire.ICRC32(buf[:wire.HeaderSize])
	wire.PutHdrCRC(buf, crc)
	copy(buf[wire.HeaderSize:], padded)
	return buf
}

func TestStepRejectsWrongSaltSequence(t *testing.T) {
	q := ioq.New(4096)
	// q.seq starts at 0; a first frame must carry salt byte 0 to pass.
	frame := encodeFrameSalt(t, wire.CmdFlagCreate, 1, 0x17, nil)

	if err := q.Feed(frame, nil); err != nil {
		t.Fatalf("Feed: %v", err)
	}
	if _, err := q.Step(); err != ioq.ErrMsgSeq {
		t.Fatalf("Step() err = %v, want ErrMsgSeq", err)
	}
}

func TestStepAcceptsInSequenceSaltAcrossFrames(t *testing.T) {
	q := ioq.New(4096)
	first := encodeFrameSalt(t, wire.CmdFlagCreate, 1, 0x00, nil)
	second := encodeFrameSalt(t, wire.CmdFlagCreate|wire.CmdFlagDelete, 2, 0x01, nil)

	if err := q.Feed(first, nil); err != nil {
		t.Fatalf("Feed first: %v", err)
	}
	if _, err := q.Step(); err != nil {
		t.Fatalf("Step first: %v", err)
	}
	if err := q.Feed(second, nil); err != nil {
		t.Fatalf("Feed second: %v", err)
	}
	if _, err := q.Step(); err != nil {
		t.Fatalf("Step second: %v", err)
	}
}

func TestSeqOKTracksRollingSequence(t *testing.T) {
	q := ioq.New(64)
	if !q.SeqOK(0) {
		t.Fatalf("first SeqOK(0) should succeed")
	}
	if !q.SeqOK(1) {
		t.Fatalf("SeqOK(1) should succeed after seq 0")
	}
	if q.SeqOK(5) {
		t.Fatalf("SeqOK(5) should fail: sequence broke monotonicity")
	}
}
