// Package atom provides an atomic state container for single-writer stores.
//
// Supports concurrent reads (View) and serialized writes (Swap).
// A write excludes every reader for its whole duration, so a reader never
// observes the backing medium while a writer mutates it.
package atom

import (
	"sync"

	"github.com/dacapoday/slotlog"
)

// ErrClosed is returned by View and Swap on a closed Atom.
var ErrClosed = slotlog.ErrClosed

// Atom manages a value derived from persistent state.
//
// Type parameters:
//   - V: Value type
//
// Zero value is closed. Call Load to initialize.
type Atom[V any] struct {
	val    V
	opened bool
	view   sync.RWMutex
}

// Load initializes Atom with value.
// Replaces any existing state.
func (a *Atom[V]) Load(val V) {
	a.view.Lock()
	a.val, a.opened = val, true
	a.view.Unlock()
}

// Close drops the value.
// No-op if already closed.
func (a *Atom[V]) Close() {
	a.view.Lock()
	defer a.view.Unlock()

	var nilVal V
	a.val, a.opened = nilVal, false
}

// Opened reports whether Load has been called since the last Close.
func (a *Atom[V]) Opened() bool {
	a.view.RLock()
	defer a.view.RUnlock()
	return a.opened
}

// View calls fn with the current value.
// Several View calls may run concurrently; none runs during a Swap.
//
// fn must not retain val beyond the call if V holds references.
func (a *Atom[V]) View(fn func(val V) error) error {
	a.view.RLock()
	defer a.view.RUnlock()
	if !a.opened {
		return ErrClosed
	}
	return fn(a.val)
}

// Swap atomically updates value via callback.
//
// The swap function receives current value, returns:
//   - newVal: new value
//   - err: non-nil aborts the swap
//
// On success, switches to newVal. On error, state unchanged.
func (a *Atom[V]) Swap(swap func(val V) (newVal V, err error)) (err error) {
	a.view.Lock()
	defer a.view.Unlock()
	if !a.opened {
		return ErrClosed
	}

	newVal, err := swap(a.val)
	if err != nil {
		return
	}
	a.val = newVal
	return
}
