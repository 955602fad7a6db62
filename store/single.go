// Copyright 2025 dacapoday
// SPDX-License-Identifier: Apache-2.0

package store

import (
	"sync"

	"github.com/dacapoday/slotlog"
)

// Single is a store holding one record type.
// Records use the untagged layout with an 8-byte header.
type Single[F Flash] struct {
	engine[F]
	mutex sync.Mutex
}

// Name labels the single record type in logs and metrics.
const Name = "single"

// Open scans flash and reports whether a record was found.
func (s *Single[F]) Open(flash F, opt Option) (avail bool, err error) {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	if s.atom.Opened() {
		return false, slotlog.ErrOpened
	}
	if err = s.open(flash, opt, nil, []string{Name}, DefaultSingleMaxAttempts); err != nil {
		return
	}
	err = s.atom.View(func(st state) error {
		avail = st.types[0].Has
		return nil
	})
	return
}

func (s *Single[F]) Close() error {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	if !s.atom.Opened() {
		return slotlog.ErrClosed
	}
	s.close()
	return nil
}

func (s *Single[F]) Load(out []byte) error {
	return s.load(0, out)
}

func (s *Single[F]) Save(payload []byte) error {
	return s.save(0, payload)
}

func (s *Single[F]) EraseAll() error {
	return s.eraseAll()
}

func (s *Single[F]) State() (TypeState, error) {
	return s.state(0)
}

func (s *Single[F]) PayloadSize() int {
	return s.payloadSize()
}

func (s *Single[F]) Slots() *Cursor[F] {
	return s.cursor()
}
