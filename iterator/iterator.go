// Package iterator defines a bidirectional cursor over an ordered dataset.
package iterator

// Iterator represents a cursor over a dataset ordered by key.
// The iterator maintains a current position and can be moved forward or backward.
//
// Usage:
//
//	for iter.SeekFirst(); iter.Valid(); iter.Next() {
//	    key, val := iter.Key(), iter.Val()
//	    // process key, val
//	}
//	if err := iter.Error(); err != nil {
//	    // handle error
//	}
type Iterator[K, V any] interface {
	// Valid returns true if positioned at an entry.
	// Returns false when not positioned; check Error() to distinguish the cause.
	Valid() bool

	// Error returns any error that occurred during operations.
	// Returns nil when not positioned due to normal conditions (initial state,
	// boundary reached, empty dataset). Returns non-nil for I/O failures.
	Error() error

	// Key returns the key at the current position.
	// Behavior is undefined if Valid() returns false.
	Key() K

	// Val returns the entry at the current position.
	// Behavior is undefined if Valid() returns false.
	Val() V

	// Next advances to the next entry in ascending key order.
	// Returns false at the end or on error. Use Error() to distinguish.
	Next() bool

	// Prev moves to the previous entry.
	// Returns false at the beginning or on error. Use Error() to distinguish.
	Prev() bool

	// SeekFirst positions at the first entry.
	SeekFirst() bool

	// SeekLast positions at the last entry.
	SeekLast() bool

	// Seek positions at the first entry whose key is greater than or equal
	// to key.
	Seek(key K) bool
}
