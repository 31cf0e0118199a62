// File: ioq/rx.go
// Package ioq
// License: Apache-2.0
//
// The RX machine is grounded directly on the original implementation's
// dmsg_ioq_read state switch. The Go rendition has four stages
// (HEADER1/AUXDATA1/AUXDATA2/ERROR) as unexported constants: the
// original's HEADER2 work (reading and swapping the extended header) is
// done inside the HEADER1 stage. IOQ.Step drives them and is called in a
// loop by the owning connection's RX path until it returns (nil, nil).

package ioq

import "github.com/clusterkit/dmsgcore/wire"

type stage int

const (
	stageHeader1 stage = iota
	stageAuxData1
	stageAuxData2
	stageError
)

// parser holds the in-progress frame being assembled across Step calls.
// Embedded (not exported) into IOQ.
type parser struct {
	stage   stage
	swapped bool
	hbytes  int
	abytes  int // aligned aux size
	rawAux  int // original unaligned aux_bytes from the header

	head wire.Header
	ext  []byte
	aux  []byte
	auxN int

	err error
}

// Step attempts to advance the parser using whatever decrypted bytes are
// currently ready ([beg, cdx)). It returns a complete *wire.Msg when a
// full frame has been parsed, (nil, nil) when more bytes are needed, or
// a non-nil error when the frame is malformed (the caller must latch the
// IOQ's ERROR state for any error other than ErrAlready, per Fatal).
func (q *IOQ) Step() (*wire.Msg, error) {
	for {
		switch q.stage {
		case stageError:
			return nil, ErrSync

		case stageHeader1:
			if q.cdx-q.beg < wire.HeaderSize {
				return nil, nil
			}
			raw := q.buf[q.beg : q.beg+wire.HeaderSize]
			magic := wire.PeekMagic(raw)
			switch magic {
			case wire.MagicNative:
				q.swapped = false
			case wire.MagicSwapped:
				q.swapped = true
			default:
				q.stage = stageError
				return nil, ErrSync
			}

			var gotCRC uint32
			{
				tmp := make([]byte, wire.HeaderSize)
				copy(tmp, raw)
				gotCRC = beU32(tmp[0x3C:])
				wire.ZeroHdrCRC(tmp)
				want := wire.ICRC32(tmp)
				if want != gotCRC {
					q.stage = stageError
					return nil, ErrXCRC
				}
			}

			q.head.Decode(raw)
			if q.swapped {
				q.head.SwapInPlace()
			}

			hbytes := q.head.Cmd.HeaderBytes()
			const maxHeaderBytes = 0xFF * wire.HeaderAlignment
			if hbytes < wire.HeaderSize || hbytes > maxHeaderBytes {
				q.stage = stageError
				return nil, ErrField
			}
			abytes := int(wire.AlignUp(q.head.AuxBytes))
			if abytes > AuxMax {
				q.stage = stageError
				return nil, ErrField
			}

			q.hbytes = hbytes
			q.rawAux = int(q.head.AuxBytes)
			q.abytes = abytes
			q.Consume(wire.HeaderSize)

			if hbytes > wire.HeaderSize {
				extLen := hbytes - wire.HeaderSize
				if q.cdx-q.beg < extLen {
					// Not enough buffered yet; rewind the cursor to the
					// start of the core header, so the next call reparses
					// the whole header once more data arrives.
					q.beg -= wire.HeaderSize
					return nil, nil
				}
				q.ext = append([]byte(nil), q.buf[q.beg:q.beg+extLen]...)
				if q.swapped {
					swapExt(q.ext)
				}
				q.Consume(extLen)
			}

			if !q.SeqOK(q.head.Salt) {
				q.stage = stageError
				return nil, ErrMsgSeq
			}

			if q.abytes == 0 {
				msg := q.finish()
				q.reset()
				return msg, nil
			}
			q.aux = make([]byte, q.abytes)
			q.auxN = 0
			q.stage = stageAuxData1
			continue

		case stageAuxData1, stageAuxData2:
			need := q.abytes - q.auxN
			have := q.cdx - q.beg
			if have == 0 {
				return nil, nil
			}
			n := have
			if n > need {
				n = need
			}
			copy(q.aux[q.auxN:], q.buf[q.beg:q.beg+n])
			q.auxN += n
			q.Consume(n)
			if q.auxN < q.abytes {
				q.stage = stageAuxData2
				return nil, nil
			}

			gotCRC := q.head.AuxCRC
			wantCRC := wire.ICRC32(q.aux)
			if wantCRC != gotCRC {
				q.stage = stageError
				return nil, ErrACRC
			}
			q.aux = q.aux[:q.rawAux]
			msg := q.finish()
			q.reset()
			return msg, nil
		}
	}
}

func (q *IOQ) finish() *wire.Msg {
	return &wire.Msg{Head: q.head, Ext: q.ext, Aux: q.aux}
}

func (q *IOQ) reset() {
	q.stage = stageHeader1
	q.ext = nil
	q.aux = nil
	q.auxN = 0
	q.hbytes = 0
	q.abytes = 0
	q.rawAux = 0
}

func beU32(b []byte) uint32 {
	return uint32(b[0])<<24 | uint32(b[1])<<16 | uint32(b[2])<<8 | uint32(b[3])
}

// swapExt reverses byte order of every 4-byte word in an extended
// header tail. The wire contract does not specify field layout beyond
// the core header for extended bytes owned by higher-level protocols,
// so the core only guarantees word-granularity swapping; protocols that
// define wider fields must re-derive them from adjacent words themselves.
func swapExt(b []byte) {
	for i := 0; i+4 <= len(b); i += 4 {
		b[i], b[i+1], b[i+2], b[i+3] = b[i+3], b[i+2], b[i+1], b[i]
	}
}
