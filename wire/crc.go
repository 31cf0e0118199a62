// File: wire/crc.go
// Package wire
// License: Apache-2.0
//
// icrc32 implements the project's "iscsi-crc" contract as an opaque
// 32-bit checksum over a byte range. The exact polynomial is a contract
// between peers (see spec), so any consistent 32-bit CRC is correct; this
// picks the Castagnoli table since it is the closest stdlib analogue
// available without vendoring a CRC library (no pack example imports a
// third-party CRC implementation either).

package wire

import "hash/crc32"

var crcTable = crc32.MakeTable(crc32.Castagnoli)

// ICRC32 computes the project's CRC-32 variant over buf.
func ICRC32(buf []byte) uint32 {
	return crc32.Checksum(buf, crcTable)
}
