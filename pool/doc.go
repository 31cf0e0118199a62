// File: pool/doc.go
// License: MIT
//
// Package pool recycles the transaction engine's two hottest allocation
// sites: wire.Msg values (MsgPool) and frame-sized scratch byte slices
// (BytePool). It deliberately carries none of the NUMA-topology-aware
// buffer machinery a WebSocket data-plane needs — dmsgcore's per-frame
// aux payloads are bounded by AuxMax and short-lived, so a plain
// sync.Pool-backed recycler is the right tool; see DESIGN.md for the
// fuller justification of what was dropped here.
package pool
