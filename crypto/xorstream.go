// File: crypto/xorstream.go
// Package crypto
// License: Apache-2.0
//
// XORStream is a toy stream cipher for tests and local development
// only — it exists to exercise the IOQ's encrypted-link cursor
// bookkeeping (cdx/cdn straddling ciphertext) without depending on a
// real cryptographic library. It provides no confidentiality and must
// never be used against a real peer.

package crypto

import "github.com/clusterkit/dmsgcore/ioq"

// XORStream decrypts/encrypts by XORing against a repeating key. Two
// instances constructed with the same key decode each other's output.
type XORStream struct {
	Key []byte

	rxPos int
	txPos int
}

// Decrypt XORs [cdn, end) in place against the key stream and marks the
// whole buffer parser-ready, since this toy codec needs no internal
// buffering between cdx and cdn.
func (x *XORStream) Decrypt(q *ioq.IOQ) error {
	if len(x.Key) == 0 {
		return nil
	}
	_, _, cdn, end := q.Cursors()
	buf := q.Bytes()
	for i := cdn; i < end; i++ {
		buf[i] ^= x.Key[x.rxPos%len(x.Key)]
		x.rxPos++
	}
	q.SetCdn(end)
	q.SetCdx(end)
	return nil
}

// Encrypt XORs each iovec in place against the key stream.
func (x *XORStream) Encrypt(_ *ioq.IOQ, iovs [][]byte) (int, error) {
	n := 0
	if len(x.Key) == 0 {
		for _, b := range iovs {
			n += len(b)
		}
		return n, nil
	}
	for _, b := range iovs {
		for i := range b {
			b[i] ^= x.Key[x.txPos%len(x.Key)]
			x.txPos++
		}
		n += len(b)
	}
	return n, nil
}
