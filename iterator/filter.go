package iterator

// Filter wraps an iterator and skips entries rejected by Keep.
//
// Other methods (Valid, Error, Key, Val) are inherited from the wrapped iterator.
type Filter[K, V any] struct {
	Iterator[K, V]
	Keep func(key K, val V) bool
}

var _ Iterator[int, int] = (*Filter[int, int])(nil)

func (iter *Filter[K, V]) kept() bool {
	return iter.Keep == nil || iter.Keep(iter.Iterator.Key(), iter.Iterator.Val())
}

// Next advances to the next kept entry.
func (iter *Filter[K, V]) Next() bool {
	for iter.Iterator.Next() {
		if iter.kept() {
			return true
		}
	}
	return false
}

// Prev moves to the previous kept entry.
func (iter *Filter[K, V]) Prev() bool {
	for iter.Iterator.Prev() {
		if iter.kept() {
			return true
		}
	}
	return false
}

// SeekFirst positions at the first kept entry.
func (iter *Filter[K, V]) SeekFirst() bool {
	if !iter.Iterator.SeekFirst() {
		return false
	}
	if iter.kept() {
		return true
	}
	return iter.Next()
}

// SeekLast positions at the last kept entry.
func (iter *Filter[K, V]) SeekLast() bool {
	if !iter.Iterator.SeekLast() {
		return false
	}
	if iter.kept() {
		return true
	}
	return iter.Prev()
}

// Seek positions at the first kept entry at or after key.
func (iter *Filter[K, V]) Seek(key K) bool {
	if !iter.Iterator.Seek(key) {
		return false
	}
	if iter.kept() {
		return true
	}
	return iter.Next()
}
