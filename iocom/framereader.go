// File: iocom/framereader.go
// Package iocom
// License: Apache-2.0
//
// frameReader adapts a blocking Transport into readiness events the IO
// core loop can select on, the way the teacher's smux-style multiplexers
// dedicate a goroutine to blocking reads and hand decoded frames back
// over a channel (see other_examples' superfly-smux session.go recvLoop)
// — generalized here to hand back raw bytes, with all framing state
// (cursors, parser stage) still touched only by the IO core goroutine.
// Per-read scratch buffers are drawn from a pool.BytePool instead of
// allocated fresh, and each one goes back to the pool once IOQ.Feed has
// copied its bytes into the IOQ's own buffer.

package iocom

import (
	"github.com/clusterkit/dmsgcore/ioq"
	"github.com/clusterkit/dmsgcore/pool"
)

const frameReaderScratchSize = 32 * 1024

type readResult struct {
	data []byte
	err  error
}

type frameReader struct {
	q       *ioq.IOQ
	conn    Transport
	buf     []byte
	scratch pool.BytePool
	readCh  chan readResult
	started bool
}

func newFrameReader(bufSize int) *frameReader {
	if bufSize <= 0 {
		bufSize = ioq.DefaultBufSize
	}
	return &frameReader{
		q:       ioq.New(bufSize),
		buf:     make([]byte, frameReaderScratchSize),
		scratch: pool.NewSimpleBytePool(4, frameReaderScratchSize),
		readCh:  make(chan readResult, 1),
	}
}

func (r *frameReader) start(conn Transport) {
	r.conn = conn
	if r.started {
		return
	}
	r.started = true
	go r.loop()
}

func (r *frameReader) loop() {
	for {
		n, err := r.conn.Read(r.buf)
		var data []byte
		if n > 0 {
			data = r.scratch.Get()[:n]
			copy(data, r.buf[:n])
		}
		r.readCh <- readResult{data: data, err: err}
		if err != nil {
			return
		}
	}
}

// release returns a readResult's scratch buffer to the pool once its
// bytes have been copied into the IOQ (Feed never retains the slice).
func (r *frameReader) release(data []byte) {
	if data != nil {
		r.scratch.Put(data[:cap(data)])
	}
}
