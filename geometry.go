// Copyright 2025 dacapoday
// SPDX-License-Identifier: Apache-2.0

package slotlog

// Geometry describes the reserved region and the slot size.
//
// All sizes are in bytes except EntryPages.
type Geometry struct {
	Offset     uint32 // absolute offset of the region, sector-aligned
	Size       uint32 // region size, a whole multiple of SectorSize
	PageSize   uint32 // program granularity
	SectorSize uint32 // erase granularity, a whole multiple of PageSize
	EntryPages uint32 // pages per slot
}

// Header sizes of the two record layouts.
const (
	TaggedHeaderSize   = 12 // tag(4) + version(4) + crc32(4)
	UntaggedHeaderSize = 8  // version(4) + crc32(4)
)

// MinSectors is the minimum number of sectors in a region.
// The sector being erased never holds the newest record.
const MinSectors = 2

// EntrySize returns the size of one slot.
func (g Geometry) EntrySize() uint32 {
	return g.PageSize * g.EntryPages
}

// Sectors returns the number of sectors in the region.
func (g Geometry) Sectors() uint32 {
	if g.SectorSize == 0 {
		return 0
	}
	return g.Size / g.SectorSize
}

// Slots returns the number of slots in the region.
func (g Geometry) Slots() uint32 {
	entry := g.EntrySize()
	if entry == 0 {
		return 0
	}
	return g.Size / entry
}

// PayloadSize returns the payload capacity of one slot.
func (g Geometry) PayloadSize(tagged bool) int {
	header := UntaggedHeaderSize
	if tagged {
		header = TaggedHeaderSize
	}
	return int(g.EntrySize()) - header
}

// Validate checks the region invariants.
func (g Geometry) Validate(tagged bool) error {
	switch {
	case g.PageSize == 0:
		return Errorf(ErrInvalidGeometry, "page size is zero")
	case g.SectorSize == 0:
		return Errorf(ErrInvalidGeometry, "sector size is zero")
	case g.EntryPages == 0:
		return Errorf(ErrInvalidGeometry, "entry pages is zero")
	case g.SectorSize%g.PageSize != 0:
		return Errorf(ErrInvalidGeometry, "sector size %d is not a multiple of page size %d", g.SectorSize, g.PageSize)
	case g.Size%g.SectorSize != 0:
		return Errorf(ErrInvalidGeometry, "region size %d is not a multiple of sector size %d", g.Size, g.SectorSize)
	case g.Sectors() < MinSectors:
		return Errorf(ErrInvalidGeometry, "region holds %d sectors, need at least %d", g.Sectors(), MinSectors)
	case g.Offset%g.SectorSize != 0:
		return Errorf(ErrInvalidGeometry, "region offset %#x is not sector aligned", g.Offset)
	case uint64(g.Offset)+uint64(g.Size) > 1<<32:
		return Errorf(ErrInvalidGeometry, "region end exceeds 32-bit address space")
	case uint64(g.PageSize)*uint64(g.EntryPages) > uint64(g.Size):
		return Errorf(ErrInvalidGeometry, "entry of %d pages does not fit the region", g.EntryPages)
	case g.PayloadSize(tagged) <= 0:
		return Errorf(ErrInvalidGeometry, "entry size %d leaves no payload", g.EntrySize())
	}
	return nil
}
