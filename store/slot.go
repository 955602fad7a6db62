package store

import (
	"bytes"

	"github.com/dacapoday/slotlog/iterator"
)

// Class is the classification of a slot.
type Class uint8

const (
	Erased  Class = iota // header reads as erased flash
	Corrupt              // checksum mismatch, e.g. a torn write
	Valid                // verified record of a registered type
	Foreign              // verified record of an unregistered type
)

func (c Class) String() string {
	switch c {
	case Erased:
		return "erased"
	case Corrupt:
		return "corrupt"
	case Valid:
		return "valid"
	case Foreign:
		return "foreign"
	}
	return "unknown"
}

// Slot describes the content of one slot.
type Slot struct {
	Offset  uint32
	Sector  uint32
	Class   Class
	Type    int // type index of a valid record, otherwise -1
	Tag     Tag
	Version uint32
	Newest  bool   // the record the store currently loads for its type
	Payload []byte // copy of the payload of a valid or foreign record
}

// Cursor walks the slots of the region in offset order.
// Each step reads the slot under the store's read lock.
type Cursor[F Flash] struct {
	e     *engine[F]
	buf   []byte
	slot  Slot
	valid bool
	err   error
}

var _ iterator.Iterator[uint32, Slot] = (*Cursor[Flash])(nil)

func (e *engine[F]) cursor() *Cursor[F] {
	return &Cursor[F]{e: e}
}

func (c *Cursor[F]) Valid() bool  { return c.valid }
func (c *Cursor[F]) Error() error { return c.err }
func (c *Cursor[F]) Key() uint32  { return c.slot.Offset }
func (c *Cursor[F]) Val() Slot    { return c.slot }

func (c *Cursor[F]) Next() bool {
	if !c.valid {
		return false
	}
	off := uint64(c.slot.Offset)
	return c.at(func(entry, _ uint64) uint64 { return off + entry })
}

func (c *Cursor[F]) Prev() bool {
	if !c.valid {
		return false
	}
	if c.slot.Offset == 0 {
		c.valid = false
		return false
	}
	off := uint64(c.slot.Offset)
	return c.at(func(entry, _ uint64) uint64 { return off - entry })
}

func (c *Cursor[F]) SeekFirst() bool {
	return c.at(func(_, _ uint64) uint64 { return 0 })
}

func (c *Cursor[F]) SeekLast() bool {
	return c.at(func(entry, slots uint64) uint64 { return (slots - 1) * entry })
}

// Seek positions at the first slot starting at or after off.
func (c *Cursor[F]) Seek(off uint32) bool {
	return c.at(func(entry, _ uint64) uint64 {
		return (uint64(off) + entry - 1) / entry * entry
	})
}

// at moves to the slot at the offset pos computes from the entry size and
// the slot count.
func (c *Cursor[F]) at(pos func(entry, slots uint64) uint64) bool {
	var found bool
	c.valid, c.err = false, nil
	c.err = c.e.atom.View(func(st state) error {
		entry := uint64(c.e.layout.EntrySize())
		slots := uint64(c.e.region.Geometry().Slots())
		off := pos(entry, slots)
		if slots == 0 || off+entry > slots*entry {
			return nil
		}
		if uint64(len(c.buf)) != entry {
			c.buf = make([]byte, entry)
		}
		if err := c.e.region.ReadAt(c.buf, uint32(off)); err != nil {
			return err
		}
		c.slot = c.e.classify(st, uint32(off), c.buf)
		found = true
		return nil
	})
	c.valid = found && c.err == nil
	return c.valid
}

func (e *engine[F]) classify(st state, off uint32, buf []byte) (slot Slot) {
	slot = Slot{Offset: off, Sector: e.region.SectorOf(off), Type: -1}
	if e.layout.IsErased(buf) {
		slot.Class = Erased
		return
	}
	rec, err := e.layout.Decode(buf)
	if err != nil {
		slot.Class = Corrupt
		return
	}
	slot.Tag, slot.Version = rec.Tag, rec.Version
	slot.Payload = bytes.Clone(rec.Payload)

	index := e.typeOf(rec)
	if index < 0 {
		slot.Class = Foreign
		return
	}
	slot.Class, slot.Type = Valid, index
	ts := st.types[index]
	slot.Newest = ts.Has && ts.Offset == off && ts.Version == rec.Version
	return
}
