// Copyright 2025 dacapoday
// SPDX-License-Identifier: Apache-2.0

// Package store implements a log-structured, power-loss-safe record store
// over raw flash.
//
// Records are appended into fixed-size slots of a reserved region. A save
// writes the slot after the head of the log, erasing a sector only when the
// slot starts one, reads the slot back and retries on the following slot
// when the write does not verify. The sector holding the head is never
// erased, and a sector holding the newest record of the saving type is
// passed over while another sector can take the write. Open rebuilds the
// newest record of every type and the head by scanning the region.
//
// Store shares one region between several registered record types, each
// identified by a 4-byte tag. Single holds exactly one untagged type.
package store

import (
	"sync"

	"github.com/dacapoday/slotlog"
)

// Store is a multi-type record store.
//
// Register every type, then Open. Save calls are serialized; Load, State and
// cursor reads run concurrently with each other but never during a Save.
type Store[F Flash] struct {
	engine[F]
	mutex      sync.Mutex
	registered []Tag
}

// New returns a store for types record types, indexed 0 through types-1.
func New[F Flash](types int) *Store[F] {
	return &Store[F]{registered: make([]Tag, types)}
}

// Register binds the tag of the record type at index.
// It must be called for every index before Open.
func (s *Store[F]) Register(index int, tag Tag) error {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	if s.atom.Opened() {
		return slotlog.ErrOpened
	}
	if index < 0 || index >= len(s.registered) {
		return slotlog.Errorf(slotlog.ErrUnknownType, "type index %d of %d", index, len(s.registered))
	}
	if tag.Erased() || tag == (Tag{}) {
		return slotlog.Errorf(slotlog.ErrInvalidTag, "%s at index %d", tag, index)
	}
	for i, t := range s.registered {
		if i != index && t == tag {
			return slotlog.Errorf(slotlog.ErrDuplicateTag, "%s at index %d and %d", tag, i, index)
		}
	}
	s.registered[index] = tag
	return nil
}

// Open scans flash and reports for every type whether a record was found.
// Every type index must be registered.
func (s *Store[F]) Open(flash F, opt Option) (avail []bool, err error) {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	if s.atom.Opened() {
		return nil, slotlog.ErrOpened
	}
	if len(s.registered) == 0 {
		return nil, slotlog.Errorf(slotlog.ErrUnregistered, "no record types")
	}
	names := make([]string, len(s.registered))
	for i, tag := range s.registered {
		if tag == (Tag{}) {
			return nil, slotlog.Errorf(slotlog.ErrUnregistered, "type index %d", i)
		}
		names[i] = tag.String()
	}

	err = s.open(flash, opt, append([]Tag(nil), s.registered...), names, DefaultMaxAttempts)
	if err != nil {
		return
	}
	err = s.atom.View(func(st state) error {
		avail = st.available()
		return nil
	})
	return
}

// Close releases the state. The flash is left untouched.
func (s *Store[F]) Close() error {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	if !s.atom.Opened() {
		return slotlog.ErrClosed
	}
	s.close()
	return nil
}

// Load copies the payload of the newest record of the type at index into out.
// out may be shorter than the payload capacity.
func (s *Store[F]) Load(index int, out []byte) error {
	return s.load(index, out)
}

// Save commits payload as the next version of the type at index.
// Bytes after payload up to the capacity read back as 0xFF.
func (s *Store[F]) Save(index int, payload []byte) error {
	return s.save(index, payload)
}

// EraseAll erases the whole region and forgets every record.
func (s *Store[F]) EraseAll() error {
	return s.eraseAll()
}

func (s *Store[F]) State(index int) (TypeState, error) {
	return s.state(index)
}

func (s *Store[F]) States() ([]TypeState, error) {
	return s.states()
}

// PayloadSize returns the payload capacity of a record, or 0 when closed.
func (s *Store[F]) PayloadSize() int {
	return s.payloadSize()
}

// Tags returns the registered tags in index order.
func (s *Store[F]) Tags() []Tag {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	return append([]Tag(nil), s.registered...)
}

// Slots returns a cursor over every slot of the region.
func (s *Store[F]) Slots() *Cursor[F] {
	return s.cursor()
}

// Type returns the record type at index as a Payload.
func (s *Store[F]) Type(index int) Payload {
	return typeRef[F]{s: s, index: index}
}

type typeRef[F Flash] struct {
	s     *Store[F]
	index int
}

func (t typeRef[F]) Load(out []byte) error     { return t.s.Load(t.index, out) }
func (t typeRef[F]) Save(payload []byte) error { return t.s.Save(t.index, payload) }
func (t typeRef[F]) PayloadSize() int          { return t.s.PayloadSize() }
