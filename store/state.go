package store

import (
	"slices"

	"github.com/dacapoday/slotlog/internal/region"
)

// TypeState reports what the store knows about one record type.
type TypeState struct {
	Has     bool   // a valid record was found or committed
	Version uint32 // newest version, meaningful when Has
	Offset  uint32 // region offset of the newest record, meaningful when Has
}

type state struct {
	types  []TypeState
	hasAny bool
	latest uint32 // head of the log: the slot written last
}

func emptyState(types int) state {
	return state{types: make([]TypeState, types)}
}

func (st state) clone() state {
	st.types = slices.Clone(st.types)
	return st
}

// commit records a verified write of version at off for type index.
func (st state) commit(index int, version, off uint32) state {
	st = st.clone()
	st.types[index] = TypeState{Has: true, Version: version, Offset: off}
	st.hasAny, st.latest = true, off
	return st
}

func (st state) available() []bool {
	avail := make([]bool, len(st.types))
	for i, ts := range st.types {
		avail[i] = ts.Has
	}
	return avail
}

// holdsHead reports whether the sector holds any byte of the head slot.
func holdsHead[F Flash](st state, r *region.Region[F], sector uint32) bool {
	return st.hasAny && r.Overlaps(st.latest, sector)
}
