// File: wire/header.go
// Package wire
// License: Apache-2.0
//
// Header is the fixed-size leading portion of every frame on the wire.
// Field layout, offsets, and sizes follow the literal table in the
// project's wire-frame contract; encode/decode mirrors the teacher's own
// binary.BigEndian field codec (protocol/frame.go, protocol/frame_codec.go),
// generalized from a two-byte WebSocket header to this fixed 64-byte core.

package wire

import "encoding/binary"

const (
	// MagicNative is the byte-order probe value written by a native-endian
	// peer.
	MagicNative uint16 = 0x4832
	// MagicSwapped is MagicNative with its bytes reversed; seeing this on
	// the wire means every multi-byte header field must be byte-swapped.
	MagicSwapped uint16 = 0x3248

	// HeaderSize is the size in bytes of the core (minimum) header.
	HeaderSize = 64
)

// Header is the core 64-byte frame header. Field order and offsets match
// the wire contract exactly; extended headers append additional bytes
// after HdrCRC, sized by Cmd.HeaderBytes().
type Header struct {
	Magic      uint16
	Reserved02 uint16
	Salt       uint32
	MsgID      uint64
	Circuit    uint64
	Reserved18 uint64
	Cmd        Cmd
	AuxCRC     uint32
	AuxBytes   uint32
	Error      uint32
	AuxDescr   uint64
	Reserved38 uint32
	HdrCRC     uint32
}

// Seq returns the low 8 bits of Salt, the rolling sequence number carried
// alongside the message's random salt.
func (h *Header) Seq() byte { return byte(h.Salt) }

// SetSeq replaces the low 8 bits of Salt with seq, preserving the random
// high bits.
func (h *Header) SetSeq(seq byte) {
	h.Salt = (h.Salt &^ 0xFF) | uint32(seq)
}

// Encode serializes h into dst (must be at least HeaderSize bytes) in
// native byte order, with HdrCRC left as whatever is currently in h
// (callers compute it over the zeroed-CRC-field encoding, then patch it
// in separately via PutHdrCRC).
func (h *Header) Encode(dst []byte) {
	_ = dst[HeaderSize-1]
	binary.BigEndian.PutUint16(dst[0x00:], h.Magic)
	binary.BigEndian.PutUint16(dst[0x02:], h.Reserved02)
	binary.BigEndian.PutUint32(dst[0x04:], h.Salt)
	binary.BigEndian.PutUint64(dst[0x08:], h.MsgID)
	binary.BigEndian.PutUint64(dst[0x10:], h.Circuit)
	binary.BigEndian.PutUint64(dst[0x18:], h.Reserved18)
	binary.BigEndian.PutUint32(dst[0x20:], uint32(h.Cmd))
	binary.BigEndian.PutUint32(dst[0x24:], h.AuxCRC)
	binary.BigEndian.PutUint32(dst[0x28:], h.AuxBytes)
	binary.BigEndian.PutUint32(dst[0x2C:], h.Error)
	binary.BigEndian.PutUint64(dst[0x30:], h.AuxDescr)
	binary.BigEndian.PutUint32(dst[0x38:], h.Reserved38)
	binary.BigEndian.PutUint32(dst[0x3C:], h.HdrCRC)
}

// PutHdrCRC patches just the HdrCRC field of an already-encoded header.
func PutHdrCRC(dst []byte, crc uint32) {
	binary.BigEndian.PutUint32(dst[0x3C:], crc)
}

// ZeroHdrCRC clears the HdrCRC field of an already-encoded header, as
// required before computing the CRC over it.
func ZeroHdrCRC(dst []byte) {
	binary.BigEndian.PutUint32(dst[0x3C:], 0)
}

// Decode parses src (at least HeaderSize bytes) into h, assuming native
// byte order. On the swapped path (Magic decodes to MagicSwapped),
// callers follow Decode with SwapInPlace.
func (h *Header) Decode(src []byte) {
	_ = src[HeaderSize-1]
	h.Magic = binary.BigEndian.Uint16(src[0x00:])
	h.Reserved02 = binary.BigEndian.Uint16(src[0x02:])
	h.Salt = binary.BigEndian.Uint32(src[0x04:])
	h.MsgID = binary.BigEndian.Uint64(src[0x08:])
	h.Circuit = binary.BigEndian.Uint64(src[0x10:])
	h.Reserved18 = binary.BigEndian.Uint64(src[0x18:])
	h.Cmd = Cmd(binary.BigEndian.Uint32(src[0x20:]))
	h.AuxCRC = binary.BigEndian.Uint32(src[0x24:])
	h.AuxBytes = binary.BigEndian.Uint32(src[0x28:])
	h.Error = binary.BigEndian.Uint32(src[0x2C:])
	h.AuxDescr = binary.BigEndian.Uint64(src[0x30:])
	h.Reserved38 = binary.BigEndian.Uint32(src[0x38:])
	h.HdrCRC = binary.BigEndian.Uint32(src[0x3C:])
}

// PeekMagic reads just the Magic field without parsing the rest of the
// header, so the caller can decide native vs. swapped before committing.
func PeekMagic(src []byte) uint16 {
	return binary.BigEndian.Uint16(src[0x00:])
}

// byteSwap16/32/64 reverse byte order, used when a peer's Magic decodes
// as MagicSwapped.
func byteSwap16(v uint16) uint16 { return v<<8 | v>>8 }

func byteSwap32(v uint32) uint32 {
	return v<<24 | (v&0xFF00)<<8 | (v&0xFF0000)>>8 | v>>24
}

func byteSwap64(v uint64) uint64 {
	return uint64(byteSwap32(uint32(v>>32))) | uint64(byteSwap32(uint32(v)))<<32
}

// SwapInPlace byte-swaps every multi-byte field of h. Called once, after
// hdr_crc verification, whenever Magic was observed as MagicSwapped.
func (h *Header) SwapInPlace() {
	h.Magic = byteSwap16(h.Magic)
	h.Reserved02 = byteSwap16(h.Reserved02)
	h.Salt = byteSwap32(h.Salt)
	h.MsgID = byteSwap64(h.MsgID)
	h.Circuit = byteSwap64(h.Circuit)
	h.Reserved18 = byteSwap64(h.Reserved18)
	h.Cmd = Cmd(byteSwap32(uint32(h.Cmd)))
	h.AuxCRC = byteSwap32(h.AuxCRC)
	h.AuxBytes = byteSwap32(h.AuxBytes)
	h.Error = byteSwap32(h.Error)
	h.AuxDescr = byteSwap64(h.AuxDescr)
	h.Reserved38 = byteSwap32(h.Reserved38)
	// HdrCRC itself is verified before swapping and is not meaningful
	// afterward; leave it as decoded.
}
