// Copyright 2025 dacapoday
// SPDX-License-Identifier: Apache-2.0

package record

import "hash/crc32"

// Reflected CRC-32, polynomial 0xEDB88320, seeded and complemented with 0xFFFFFFFF.
var ieeeCrcTable = crc32.MakeTable(crc32.IEEE)

// Checksum returns the CRC-32 of data.
func Checksum(data []byte) uint32 {
	return crc32.Checksum(data, ieeeCrcTable)
}

var zeroSum [4]byte

// checksum computes the CRC of a slot with its 4-byte crc field at off read as zero.
func checksum(slot []byte, off int) uint32 {
	c := crc32.Update(0, ieeeCrcTable, slot[:off])
	c = crc32.Update(c, ieeeCrcTable, zeroSum[:])
	return crc32.Update(c, ieeeCrcTable, slot[off+4:])
}
