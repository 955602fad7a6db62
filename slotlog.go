// Copyright 2025 dacapoday
// SPDX-License-Identifier: Apache-2.0

// Package slotlog defines the collaborator interfaces of a log-structured,
// power-loss-safe record store for raw flash memory.
//
// Flash can only be erased in whole sectors and programmed in whole pages.
// The store appends fixed-size records into a reserved region and never
// overwrites the newest committed record in place.
package slotlog

import (
	"encoding/hex"
	"io"
)

// Flash provides access to the raw flash device.
// Offsets are absolute device offsets.
//
// Each operation either succeeds or fails atomically at its own granularity:
// a sector for EraseSector, a page for ProgramPage.
type Flash interface {
	// ReadAt reads from the memory-mapped flash.
	io.ReaderAt

	// EraseSector sets every byte of the sector starting at off to 0xFF.
	EraseSector(off int64) error

	// ProgramPage writes one page starting at off.
	// Programming can only clear bits; the page is expected to be erased.
	ProgramPage(p []byte, off int64) error
}

// Exclusive runs flash mutations with exclusive rights over the flash.
//
// On a multicore device no other core may fetch instructions from flash
// while a sector is erased or a page is programmed. Run blocks until it is
// safe to execute fn and reports the error of fn unchanged.
type Exclusive interface {
	Run(fn func() error) error
}

// ExclusiveFunc adapts an ordinary function to the Exclusive interface.
type ExclusiveFunc func(fn func() error) error

func (f ExclusiveFunc) Run(fn func() error) error {
	return f(fn)
}

// Direct runs fn on the calling goroutine.
// It suits single-core targets and in-memory flash.
var Direct Exclusive = ExclusiveFunc(func(fn func() error) error { return fn() })

// Tag identifies the logical data type of a record.
type Tag [4]byte

// MakeTag converts a 4-character identifier into a Tag.
func MakeTag(s string) (tag Tag, err error) {
	if len(s) != len(tag) {
		err = Errorf(ErrInvalidTag, "%q is not 4 bytes", s)
		return
	}
	copy(tag[:], s)
	if tag.Erased() {
		err = Errorf(ErrInvalidTag, "%q reads as erased flash", s)
	}
	return
}

// MustTag is like MakeTag but panics on error.
func MustTag(s string) Tag {
	tag, err := MakeTag(s)
	if err != nil {
		panic(err)
	}
	return tag
}

// Erased reports whether every byte of the tag holds the erased sentinel.
func (tag Tag) Erased() bool {
	return tag == Tag{0xFF, 0xFF, 0xFF, 0xFF}
}

func (tag Tag) String() string {
	for _, c := range tag {
		if c < 0x20 || c > 0x7E {
			return "0x" + hex.EncodeToString(tag[:])
		}
	}
	return string(tag[:])
}
