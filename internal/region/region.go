// Copyright 2025 dacapoday
// SPDX-License-Identifier: Apache-2.0

// Package region provides a bounds-checked view of the reserved flash region.
//
// Offsets are relative to the start of the region. Every mutation runs
// through the Exclusive collaborator.
package region

import (
	"github.com/dacapoday/slotlog"
)

type Flash = slotlog.Flash
type Geometry = slotlog.Geometry

type Region[F Flash] struct {
	flash F
	exec  slotlog.Exclusive
	geo   Geometry
	entry uint32
}

// New returns a region over flash.
// geo must satisfy the region invariants.
func New[F Flash](flash F, geo Geometry, exec slotlog.Exclusive) (*Region[F], error) {
	if err := geo.Validate(false); err != nil {
		return nil, err
	}
	if exec == nil {
		exec = slotlog.Direct
	}
	return &Region[F]{
		flash: flash,
		exec:  exec,
		geo:   geo,
		entry: geo.EntrySize(),
	}, nil
}

func (region *Region[F]) Flash() F {
	return region.flash
}

func (region *Region[F]) Geometry() Geometry {
	return region.geo
}

func (region *Region[F]) EntrySize() uint32 {
	return region.entry
}

func (region *Region[F]) PageSize() uint32 {
	return region.geo.PageSize
}

func (region *Region[F]) Size() uint32 {
	return region.geo.Size
}

// Absolute converts a region offset into a device offset.
func (region *Region[F]) Absolute(off uint32) int64 {
	return int64(region.geo.Offset) + int64(off)
}

// ReadAt fills p from the region starting at off.
func (region *Region[F]) ReadAt(p []byte, off uint32) (err error) {
	if uint64(off)+uint64(len(p)) > uint64(region.geo.Size) {
		return slotlog.Errorf(slotlog.ErrOutOfRange, "read of %d bytes at %#x", len(p), off)
	}
	n, err := region.flash.ReadAt(p, region.Absolute(off))
	if n == len(p) {
		err = nil
	}
	return
}

// EraseSector erases the sector with the given index.
func (region *Region[F]) EraseSector(index uint32) error {
	if index >= region.geo.Sectors() {
		return slotlog.Errorf(slotlog.ErrOutOfRange, "sector %d of %d", index, region.geo.Sectors())
	}
	abs := region.Absolute(region.SectorStart(index))
	if err := region.exec.Run(func() error {
		return region.flash.EraseSector(abs)
	}); err != nil {
		return slotlog.Errorf(slotlog.ErrEraseFailed, "sector %d at %#x: %v", index, abs, err)
	}
	return nil
}

// ProgramPage programs one page at off.
func (region *Region[F]) ProgramPage(p []byte, off uint32) error {
	page := region.geo.PageSize
	if uint32(len(p)) != page || off%page != 0 || uint64(off)+uint64(page) > uint64(region.geo.Size) {
		return slotlog.Errorf(slotlog.ErrOutOfRange, "program of %d bytes at %#x", len(p), off)
	}
	abs := region.Absolute(off)
	if err := region.exec.Run(func() error {
		return region.flash.ProgramPage(p, abs)
	}); err != nil {
		return slotlog.Errorf(slotlog.ErrProgramFailed, "page at %#x: %v", abs, err)
	}
	return nil
}

// Advance returns the slot following off.
// It wraps to 0 when the next slot would not fit before the region end.
func (region *Region[F]) Advance(off uint32) uint32 {
	return region.wrap(uint64(off) + uint64(region.entry))
}

// NextSector returns the first slot-aligned offset at or after the start of
// the sector following the one holding off, wrapping like Advance.
func (region *Region[F]) NextSector(off uint32) uint32 {
	next := uint64(region.SectorOf(off)+1) * uint64(region.geo.SectorSize)
	if rem := next % uint64(region.entry); rem != 0 {
		next += uint64(region.entry) - rem
	}
	return region.wrap(next)
}

func (region *Region[F]) wrap(n uint64) uint32 {
	if n+uint64(region.entry) > uint64(region.geo.Size) {
		return 0
	}
	return uint32(n)
}

// SectorOf returns the index of the sector holding off.
func (region *Region[F]) SectorOf(off uint32) uint32 {
	return off / region.geo.SectorSize
}

// SectorStart returns the region offset of a sector.
func (region *Region[F]) SectorStart(index uint32) uint32 {
	return index * region.geo.SectorSize
}

// Overlaps reports whether the slot at off shares any byte with the sector.
func (region *Region[F]) Overlaps(off uint32, sector uint32) bool {
	first := region.SectorOf(off)
	last := region.SectorOf(off + region.entry - 1)
	return first <= sector && sector <= last
}

// Pages calls yield with the offset of every page covered by the slot at off.
func (region *Region[F]) Pages(off uint32) func(yield func(uint32) bool) {
	return func(yield func(uint32) bool) {
		for page := off; page < off+region.entry; page += region.geo.PageSize {
			if !yield(page) {
				return
			}
		}
	}
}

// Slots calls yield with the offset of every slot in increasing order.
func (region *Region[F]) Slots() func(yield func(uint32) bool) {
	return func(yield func(uint32) bool) {
		count := region.geo.Slots()
		for i := range count {
			if !yield(i * region.entry) {
				return
			}
		}
	}
}

// IsSectorStart reports whether off is the first byte of a sector.
func (region *Region[F]) IsSectorStart(off uint32) bool {
	return off%region.geo.SectorSize == 0
}
