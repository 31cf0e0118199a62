// File: crypto/noop.go
// Package crypto
// License: Apache-2.0

package crypto

import (
	"context"
	"io"

	"github.com/clusterkit/dmsgcore/ioq"
)

// NoopNegotiator never attempts a handshake; it hands back a NoopCodec
// immediately, for links that run entirely in plaintext.
type NoopNegotiator struct{}

// Negotiate implements Negotiator.
func (NoopNegotiator) Negotiate(context.Context, io.ReadWriter) (Codec, error) {
	return NoopCodec{}, nil
}

// NoopCodec is the identity stream codec: it reports all buffered
// ciphertext as already-plaintext and passes outbound bytes through
// unchanged.
type NoopCodec struct{}

// Decrypt marks every buffered byte as parser-ready, matching the
// plaintext invariant cdx == cdn == end (spec.md §4.1).
func (NoopCodec) Decrypt(q *ioq.IOQ) error {
	_, _, _, end := q.Cursors()
	q.SetCdn(end)
	q.SetCdx(end)
	return nil
}

// Encrypt reports every plaintext byte as consumed without modifying it.
func (NoopCodec) Encrypt(_ *ioq.IOQ, iovs [][]byte) (int, error) {
	n := 0
	for _, b := range iovs {
		n += len(b)
	}
	return n, nil
}
