package store

import (
	"bytes"
	"encoding/binary"

	"github.com/pkg/errors"

	"github.com/dacapoday/slotlog"
)

// Payload is one record type of a store.
// Single and the result of Store.Type implement it.
type Payload interface {
	Load(out []byte) error
	Save(payload []byte) error
	PayloadSize() int
}

var _ Payload = (*Single[Flash])(nil)

// Accessor stores a fixed-size value as a record payload.
//
// T must have a fixed encoded size as defined by encoding/binary, for
// example a struct of sized integers and arrays. Values are little-endian.
//
//	type settings struct {
//		Brightness uint8
//		Mode       uint8
//		Speed      uint16
//	}
//
//	acc, err := store.NewAccessor[settings](s.Type(0))
type Accessor[T any] struct {
	payload Payload
	size    int
}

// NewAccessor binds T to a record type.
func NewAccessor[T any](payload Payload) (*Accessor[T], error) {
	var zero T
	size := binary.Size(zero)
	if size < 0 {
		return nil, errors.Errorf("store: %T has no fixed binary size", zero)
	}
	if capacity := payload.PayloadSize(); size > capacity {
		return nil, slotlog.Errorf(slotlog.ErrTooLarge, "%T is %d bytes, payload is %d", zero, size, capacity)
	}
	return &Accessor[T]{payload: payload, size: size}, nil
}

// Load returns the value of the newest record.
func (acc *Accessor[T]) Load() (val T, err error) {
	buf := make([]byte, acc.size)
	if err = acc.payload.Load(buf); err != nil {
		return
	}
	err = binary.Read(bytes.NewReader(buf), binary.LittleEndian, &val)
	return
}

// Save commits val as a new record.
func (acc *Accessor[T]) Save(val T) error {
	buf, err := binary.Append(make([]byte, 0, acc.size), binary.LittleEndian, val)
	if err != nil {
		return err
	}
	return acc.payload.Save(buf)
}
