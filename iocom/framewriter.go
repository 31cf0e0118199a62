// File: iocom/framewriter.go
// Package iocom
// License: Apache-2.0
//
// frameWriter implements flush1 (fill in magic/salt/crc, with the mutex
// released) and flush2 (batch the queued messages into one write) from
// spec.md §4.2.2. Partial-write / EAGAIN retry bookkeeping is the one
// place this rendition simplifies relative to the original's non-
// blocking-socket design: Transport is a blocking io.Writer (or a
// VectoredWriter batching one syscall), so a short write here always
// means conn.Write returned an error per the io.Writer contract, and is
// treated as fatal (the write error goes to the failure cascade as-is,
// which reports it as LOSTLINK) rather than re-polled — there is no EAGAIN
// to retry against on a blocking stream. UnixConn (iocom/unixconn_linux.go)
// implements VectoredWriter over unix.Writev directly, batching a
// multi-message flush into one writev(2) the way the original does.

package iocom

import (
	cryptorand "crypto/rand"
	"encoding/binary"

	"github.com/clusterkit/dmsgcore/pool"
	"github.com/clusterkit/dmsgcore/wire"
)

type frameWriter struct {
	conn Transport
	seq  byte
	pool *pool.MsgPool
}

func newFrameWriter(conn Transport, _bufSize int, msgPool *pool.MsgPool) *frameWriter {
	return &frameWriter{conn: conn, pool: msgPool}
}

// prepare finalizes the wire-visible fields of msg's header: magic,
// salt (random high bits, low byte = rolling seq), aux_crc (computed
// whenever there is an aux payload), and hdr_crc.
func (w *frameWriter) prepare(msg *wire.Msg) []byte {
	h := &msg.Head
	h.Magic = wire.MagicNative

	var salt [4]byte
	_, _ = cryptorand.Read(salt[:])
	s := binary.BigEndian.Uint32(salt[:])
	h.Salt = (s &^ 0xFF) | uint32(w.seq)
	w.seq++

	hbytes := h.Cmd.HeaderBytes()
	if hbytes < wire.HeaderSize {
		hbytes = wire.HeaderSize
		h.Cmd = h.Cmd.WithHeaderUnits(1)
	}
	extLen := hbytes - wire.HeaderSize

	unaligned := uint32(len(msg.Aux))
	h.AuxBytes = unaligned
	if len(msg.Aux) > 0 {
		padded := make([]byte, wire.AlignUp(unaligned))
		copy(padded, msg.Aux)
		h.AuxCRC = wire.ICRC32(padded)
		msg.Aux = padded[:unaligned]
	}

	buf := make([]byte, hbytes+int(wire.AlignUp(unaligned)))
	h.Encode(buf)
	if extLen > 0 {
		copy(buf[wire.HeaderSize:hbytes], msg.Ext)
	}
	wire.ZeroHdrCRC(buf)
	crc := wire.ICRC32(buf[:hbytes])
	h.HdrCRC = crc
	wire.PutHdrCRC(buf, crc)

	if len(msg.Aux) > 0 {
		padded := buf[hbytes:]
		copy(padded, msg.Aux)
	}
	return buf
}

// flush writes every message in batch as one batched syscall when the
// underlying Transport supports it, falling back to a single concatenated
// Write otherwise. Every message in batch is freed (and returned to the
// pool, if any) whether or not the write succeeds.
func (w *frameWriter) flush(batch []*wire.Msg) error {
	if len(batch) == 0 {
		return nil
	}
	if len(batch) > MaxIOVec {
		batch = batch[:MaxIOVec]
	}
	bufs := make([][]byte, 0, len(batch))
	for _, msg := range batch {
		bufs = append(bufs, w.prepare(msg))
	}

	var err error
	if vw, ok := w.conn.(VectoredWriter); ok {
		_, err = vw.WriteV(bufs)
	} else {
		total := 0
		for _, b := range bufs {
			total += len(b)
		}
		merged := make([]byte, 0, total)
		for _, b := range bufs {
			merged = append(merged, b...)
		}
		_, err = w.conn.Write(merged)
	}

	for _, msg := range batch {
		msg.Free()
		if w.pool != nil {
			w.pool.Put(msg)
		}
	}
	return err
}
