// File: crypto/interfaces.go
// Package crypto names the two external collaborators the transport
// defers to for session security: a one-shot handshake negotiator and a
// per-direction stream codec. Neither is part of the core's concern —
// spec.md §1 explicitly scopes both out, naming only their interfaces
// in §6. License: Apache-2.0

package crypto

import (
	"context"
	"io"

	"github.com/clusterkit/dmsgcore/ioq"
)

// Negotiator performs the blocking session-key handshake described in
// spec.md §6's crypto_negotiate: on success it returns a Codec ready to
// drive both IOQ directions; on failure the connection never reaches
// the CRYPTED state and the caller should treat the link as plaintext
// or abort per local policy.
type Negotiator interface {
	Negotiate(ctx context.Context, conn io.ReadWriter) (Codec, error)
}

// Codec is the external stream-cipher collaborator, one instance shared
// by an IOCOM's RX and TX IOQs (but never called concurrently from more
// than one goroutine, since each IOQ is owned exclusively by the IO core
// thread per spec.md §5).
type Codec interface {
	ioq.Codec

	// Encrypt consumes plaintext iovs, redirecting them into the TX
	// FIFO's ciphertext region, and reports how many plaintext bytes
	// were consumed.
	Encrypt(tx *ioq.IOQ, iovs [][]byte) (nact int, err error)
}
