// Copyright 2025 dacapoday
// SPDX-License-Identifier: Apache-2.0

// Package record encodes and verifies the fixed-size records stored in flash slots.
//
// Tagged layout (multi-type store), little-endian:
//
//	| tag [4] | version u32 | crc32 u32 | payload ... |
//
// Untagged layout (single-type store):
//
//	| version u32 | crc32 u32 | payload ... |
//
// The CRC covers the whole slot with the crc32 field read as zero.
// Unused payload bytes are left at the erased value 0xFF.
package record

import (
	"encoding/binary"

	"github.com/dacapoday/slotlog"
)

// Erased is the value of an erased flash cell.
const Erased = 0xFF

// Record is the decoded content of one slot.
type Record struct {
	Tag     slotlog.Tag // zero for the untagged layout
	Version uint32
	Payload []byte // aliases the slot buffer
}

// Layout describes how records are packed into slots.
type Layout struct {
	entrySize int
	tagged    bool
}

// NewLayout returns the layout for slots of entrySize bytes.
func NewLayout(entrySize int, tagged bool) Layout {
	return Layout{entrySize: entrySize, tagged: tagged}
}

func (l Layout) EntrySize() int { return l.entrySize }
func (l Layout) Tagged() bool   { return l.tagged }

// HeaderSize returns the number of bytes preceding the payload.
func (l Layout) HeaderSize() int {
	if l.tagged {
		return slotlog.TaggedHeaderSize
	}
	return slotlog.UntaggedHeaderSize
}

// PayloadSize returns the payload capacity of a slot.
func (l Layout) PayloadSize() int {
	return l.entrySize - l.HeaderSize()
}

func (l Layout) versionOff() int {
	if l.tagged {
		return 4
	}
	return 0
}

func (l Layout) crcOff() int {
	return l.versionOff() + 4
}

// Encode fills slot with the erased value, writes the header and payload,
// then stores the CRC last.
func (l Layout) Encode(slot []byte, rec Record) error {
	if len(slot) != l.entrySize {
		return slotlog.Errorf(slotlog.ErrOutOfRange, "slot buffer is %d bytes, entry is %d", len(slot), l.entrySize)
	}
	if len(rec.Payload) > l.PayloadSize() {
		return slotlog.Errorf(slotlog.ErrTooLarge, "payload %d > %d", len(rec.Payload), l.PayloadSize())
	}

	for i := range slot {
		slot[i] = Erased
	}
	if l.tagged {
		copy(slot[:4], rec.Tag[:])
	}
	binary.LittleEndian.PutUint32(slot[l.versionOff():], rec.Version)
	copy(slot[l.HeaderSize():], rec.Payload)

	crcOff := l.crcOff()
	binary.LittleEndian.PutUint32(slot[crcOff:], checksum(slot, crcOff))
	return nil
}

// Decode verifies slot and returns the record it holds.
// The returned payload aliases slot and always spans the full capacity.
func (l Layout) Decode(slot []byte) (rec Record, err error) {
	if len(slot) < l.entrySize {
		err = slotlog.Errorf(slotlog.ErrTruncated, "slot is %d bytes, entry is %d", len(slot), l.entrySize)
		return
	}
	slot = slot[:l.entrySize]

	crcOff := l.crcOff()
	sum := binary.LittleEndian.Uint32(slot[crcOff:])
	if chksum := checksum(slot, crcOff); sum != chksum {
		err = slotlog.Errorf(slotlog.ErrBadChecksum, "stored %08x, computed %08x", sum, chksum)
		return
	}

	if l.tagged {
		copy(rec.Tag[:], slot[:4])
	}
	rec.Version = binary.LittleEndian.Uint32(slot[l.versionOff():])
	rec.Payload = slot[l.HeaderSize():]
	return
}

// IsErased reports whether the header of slot reads as erased flash.
// Only the header is probed; a torn write always programs the header first.
func (l Layout) IsErased(slot []byte) bool {
	n := min(l.HeaderSize(), len(slot))
	for _, b := range slot[:n] {
		if b != Erased {
			return false
		}
	}
	return true
}

// Blank reports whether every byte of slot reads as erased flash.
func Blank(slot []byte) bool {
	for _, b := range slot {
		if b != Erased {
			return false
		}
	}
	return true
}
