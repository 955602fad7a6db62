// Copyright 2025 dacapoday
// SPDX-License-Identifier: Apache-2.0

package store

import (
	"math"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/dacapoday/slotlog"
	"github.com/dacapoday/slotlog/atom"
	"github.com/dacapoday/slotlog/internal/region"
	"github.com/dacapoday/slotlog/metrics"
	"github.com/dacapoday/slotlog/record"
)

type Flash = slotlog.Flash
type Tag = slotlog.Tag

// engine is the append/commit core shared by Store and Single.
type engine[F Flash] struct {
	region  *region.Region[F]
	layout  record.Layout
	tags    []Tag // nil for the untagged layout
	names   []string
	log     logrus.FieldLogger
	metrics *metrics.Metrics

	attempts int
	slot     []byte // encode buffer, guarded by the atom write lock
	verify   []byte // read-back buffer, guarded by the atom write lock

	atom atom.Atom[state]
}

func (e *engine[F]) open(flash F, opt Option, tags []Tag, names []string, attempts int) (err error) {
	tagged := tags != nil
	geo := opt.Geometry()
	if err = geo.Validate(tagged); err != nil {
		return
	}
	reg, err := region.New(flash, geo, getExclusive(opt))
	if err != nil {
		return
	}

	e.region = reg
	e.layout = record.NewLayout(int(geo.EntrySize()), tagged)
	e.tags = tags
	e.names = names
	e.log = getLogger(opt)
	e.metrics = getMetrics(opt)
	e.attempts = getMaxAttempts(opt, attempts)
	e.slot = make([]byte, e.layout.EntrySize())
	e.verify = make([]byte, e.layout.EntrySize())

	st, err := e.scan()
	if err != nil {
		return
	}
	e.atom.Load(st)
	return
}

func (e *engine[F]) close() {
	e.atom.Close()
}

func (e *engine[F]) types() int {
	return len(e.names)
}

// typeOf returns the type index of rec, or -1 for an unregistered tag.
func (e *engine[F]) typeOf(rec record.Record) int {
	if e.tags == nil {
		return 0
	}
	for i, tag := range e.tags {
		if tag == rec.Tag {
			return i
		}
	}
	return -1
}

// scan walks every slot and rebuilds the newest record per type.
// Erased, corrupt and foreign slots are skipped.
func (e *engine[F]) scan() (st state, err error) {
	start := time.Now()
	st = emptyState(e.types())
	buf := make([]byte, e.layout.EntrySize())

	erased := make([]bool, 0, e.region.Geometry().Slots())
	seen := make([][]seenRecord, e.types())
	for off := range e.region.Slots() {
		if err = e.region.ReadAt(buf, off); err != nil {
			return
		}
		if e.layout.IsErased(buf) {
			erased = append(erased, true)
			e.metrics.RecordSkipped(Erased.String())
			continue
		}
		erased = append(erased, false)
		rec, derr := e.layout.Decode(buf)
		if derr != nil {
			e.log.WithField("offset", off).WithError(derr).Debug("skip corrupt slot")
			e.metrics.RecordSkipped(Corrupt.String())
			continue
		}
		index := e.typeOf(rec)
		if index < 0 {
			e.log.WithFields(logrus.Fields{"offset": off, "type": rec.Tag.String()}).Debug("skip foreign slot")
			e.metrics.RecordSkipped(Foreign.String())
			continue
		}
		seen[index] = append(seen[index], seenRecord{off: off, version: rec.Version})
		if ts := st.types[index]; ts.Has && rec.Version <= ts.Version {
			continue
		}
		st.types[index] = TypeState{Has: true, Version: rec.Version, Offset: off}
		st.hasAny = true
	}

	for i, ts := range st.types {
		e.metrics.SetVersion(e.names[i], ts.Version)
		if ts.Has {
			e.log.WithFields(logrus.Fields{"type": e.names[i], "version": ts.Version, "offset": ts.Offset}).Debug("newest record")
		}
	}
	if st.hasAny {
		st.latest = e.head(erased, seen)
		e.log.WithField("offset", st.latest).Debug("log head")
	}
	e.metrics.RecordScan(time.Since(start))
	return
}

type seenRecord struct {
	off     uint32
	version uint32
}

// head locates the slot written last.
//
// It is a non-erased slot followed by an erased one or, when no slot is
// erased, by a sector start. Among several such slots the one that agrees
// with the version order of every type wins; ties go to the highest offset.
func (e *engine[F]) head(erased []bool, seen [][]seenRecord) uint32 {
	entry := e.region.EntrySize()
	candidates := e.heads(erased, func(next uint32) bool { return erased[next/entry] })
	if len(candidates) == 0 {
		candidates = e.heads(erased, e.region.IsSectorStart)
	}

	best, misses := candidates[0], math.MaxInt
	for _, off := range candidates {
		n := 0
		for _, recs := range seen {
			for i, rec := range recs {
				// versions drop only where the log wraps onto older data
				next := recs[(i+1)%len(recs)]
				if next.version < rec.version && !between(off, rec.off, next.off) {
					n++
				}
			}
		}
		if n <= misses {
			best, misses = off, n
		}
	}
	return best
}

func (e *engine[F]) heads(erased []bool, follows func(next uint32) bool) (offs []uint32) {
	entry := e.region.EntrySize()
	for i, empty := range erased {
		off := uint32(i) * entry
		if !empty && follows(e.region.Advance(off)) {
			offs = append(offs, off)
		}
	}
	return
}

// between reports whether off lies in the circular range [from, to).
func between(off, from, to uint32) bool {
	if from < to {
		return from <= off && off < to
	}
	return off >= from || off < to
}

func (e *engine[F]) checkIndex(index int) error {
	if index < 0 || index >= e.types() {
		return slotlog.Errorf(slotlog.ErrUnknownType, "type index %d of %d", index, e.types())
	}
	return nil
}

// load copies the first len(out) payload bytes of the newest record of a type.
// The record is verified again on every call; out is untouched on error.
func (e *engine[F]) load(index int, out []byte) error {
	return e.atom.View(func(st state) error {
		if err := e.checkIndex(index); err != nil {
			return err
		}
		if len(out) > e.layout.PayloadSize() {
			return slotlog.Errorf(slotlog.ErrTooLarge, "buffer %d > %d", len(out), e.layout.PayloadSize())
		}
		ts := st.types[index]
		if !ts.Has {
			return slotlog.Errorf(slotlog.ErrNoRecord, "type %s", e.names[index])
		}

		buf := make([]byte, e.layout.EntrySize())
		if err := e.region.ReadAt(buf, ts.Offset); err != nil {
			return err
		}
		rec, err := e.layout.Decode(buf)
		if err == nil && (rec.Version != ts.Version || e.typeOf(rec) != index) {
			err = slotlog.Errorf(slotlog.ErrBadChecksum, "slot holds %s version %d", rec.Tag, rec.Version)
		}
		if err != nil {
			e.log.WithFields(logrus.Fields{"type": e.names[index], "version": ts.Version, "offset": ts.Offset}).
				WithError(err).Warn("newest record no longer verifies")
			return err
		}
		copy(out, rec.Payload)
		return nil
	})
}

// save appends payload as the next version of a type.
//
// The destination is the slot after the head of the log. A failed program
// or verify moves on to the following slot until the attempt bound is
// reached; slots that still hold data are passed over without spending an
// attempt. A failed erase aborts the save. The sector holding the head is
// never erased.
func (e *engine[F]) save(index int, payload []byte) error {
	start := time.Now()
	var name string
	var m *metrics.Metrics

	err := e.atom.Swap(func(st state) (state, error) {
		if err := e.checkIndex(index); err != nil {
			return st, err
		}
		if len(payload) > e.layout.PayloadSize() {
			return st, slotlog.Errorf(slotlog.ErrTooLarge, "payload %d > %d", len(payload), e.layout.PayloadSize())
		}
		name, m = e.names[index], e.metrics

		own := st.types[index]
		version := uint32(1)
		if own.Has {
			if own.Version == math.MaxUint32 {
				return st, slotlog.Errorf(slotlog.ErrVersionExhausted, "type %s", name)
			}
			version = own.Version + 1
		}

		rec := record.Record{Version: version, Payload: payload}
		if e.tags != nil {
			rec.Tag = e.tags[index]
		}
		if err := e.layout.Encode(e.slot, rec); err != nil {
			return st, err
		}

		var dest uint32
		if st.hasAny {
			dest = e.region.Advance(st.latest)
		}

		log := e.log.WithFields(logrus.Fields{"type": name, "version": version})
		for attempt := 1; attempt <= e.attempts; {
			alog := log.WithFields(logrus.Fields{"attempt": attempt, "offset": dest})

			res, next, err := e.write(st, index, dest, version, alog)
			if err != nil {
				return st, err
			}
			if res == attemptSkipped {
				dest = next
				continue
			}
			m.RecordAttempt()
			if res == attemptCommitted {
				alog.Debug("record committed")
				m.SetVersion(name, version)
				return st.commit(index, version, dest), nil
			}
			attempt++
			dest = next
		}

		log.WithField("attempts", e.attempts).Error("save attempts exhausted")
		return st, slotlog.Errorf(slotlog.ErrWriteFailed, "type %s version %d after %d attempts", name, version, e.attempts)
	})
	if name != "" {
		m.RecordSave(name, err, time.Since(start))
	}
	return err
}

type attemptResult int

const (
	attemptCommitted attemptResult = iota
	attemptFailed
	attemptSkipped // nothing was written and the slot holds data
)

// write makes one attempt to commit the encoded slot at dest.
// Unless the slot was committed it returns the next candidate offset.
// An error aborts the save.
func (e *engine[F]) write(st state, index int, dest, version uint32, log logrus.FieldLogger) (res attemptResult, next uint32, err error) {
	own := st.types[index]
	erased := false

	for page := range e.region.Pages(dest) {
		if !e.region.IsSectorStart(page) {
			continue
		}
		sector := e.region.SectorOf(page)
		sectorLog := log.WithField("sector", sector)
		if holdsHead(st, e.region, sector) {
			sectorLog.Warn("sector holds the log head, skip")
			return attemptFailed, e.region.NextSector(page), nil
		}
		if own.Has && e.region.Overlaps(own.Offset, sector) && e.holds(index, own) {
			jump := e.region.NextSector(page)
			if e.region.IsSectorStart(jump) && e.erasable(st, jump) {
				sectorLog.Debug("sector holds own newest record, skip")
				return attemptFailed, jump, nil
			}
			sectorLog.Debug("erase sector holding own newest record")
		}

		err = e.region.EraseSector(sector)
		e.metrics.RecordErase(err)
		if err != nil {
			sectorLog.WithError(err).Error("erase sector")
			return
		}
		erased = true
		sectorLog.Debug("sector erased")

		for other, ts := range st.types {
			if other != index && ts.Has && e.region.Overlaps(ts.Offset, sector) {
				sectorLog.WithFields(logrus.Fields{
					"evicted": e.names[other],
					"at":      ts.Offset,
				}).Warn("erase destroyed newest record of another type")
				e.metrics.RecordEviction(e.names[other])
			}
		}
	}

	if err = e.region.ReadAt(e.verify, dest); err != nil {
		return
	}
	if !record.Blank(e.verify) {
		log.Debug("slot not erased, skip")
		if erased {
			return attemptFailed, e.region.Advance(dest), nil
		}
		return attemptSkipped, e.region.Advance(dest), nil
	}

	for page := range e.region.Pages(dest) {
		rel := page - dest
		perr := e.region.ProgramPage(e.slot[rel:rel+e.region.PageSize()], page)
		e.metrics.RecordProgram(perr)
		if perr != nil {
			log.WithError(perr).Warn("program page")
			return attemptFailed, e.region.Advance(dest), nil
		}
	}

	if err = e.region.ReadAt(e.verify, dest); err != nil {
		return
	}
	rec, verr := e.layout.Decode(e.verify)
	if verr == nil && (rec.Version != version || e.typeOf(rec) != index) {
		verr = slotlog.Errorf(slotlog.ErrBadChecksum, "read back %s version %d", rec.Tag, rec.Version)
	}
	if verr != nil {
		log.WithError(verr).Warn("verify slot")
		e.metrics.RecordVerifyFailure()
		return attemptFailed, e.region.Advance(dest), nil
	}
	return attemptCommitted, dest, nil
}

// erasable reports whether writing the slot at off leaves the head intact.
func (e *engine[F]) erasable(st state, off uint32) bool {
	for page := range e.region.Pages(off) {
		if e.region.IsSectorStart(page) && holdsHead(st, e.region, e.region.SectorOf(page)) {
			return false
		}
	}
	return true
}

// holds reports whether the slot at ts.Offset still verifies as the newest
// record of type index.
func (e *engine[F]) holds(index int, ts TypeState) bool {
	if e.region.ReadAt(e.verify, ts.Offset) != nil {
		return false
	}
	rec, err := e.layout.Decode(e.verify)
	return err == nil && rec.Version == ts.Version && e.typeOf(rec) == index
}

// eraseAll erases every sector and resets the state.
// It keeps erasing past failures and reports the first one.
func (e *engine[F]) eraseAll() (err error) {
	serr := e.atom.Swap(func(st state) (state, error) {
		for sector := range e.region.Geometry().Sectors() {
			ferr := e.region.EraseSector(sector)
			e.metrics.RecordErase(ferr)
			if ferr != nil {
				e.log.WithField("sector", sector).WithError(ferr).Error("erase sector")
				if err == nil {
					err = ferr
				}
			}
		}
		for _, name := range e.names {
			e.metrics.SetVersion(name, 0)
		}
		e.log.Info("region erased")
		return emptyState(e.types()), nil
	})
	if serr != nil {
		return serr
	}
	return
}

func (e *engine[F]) state(index int) (ts TypeState, err error) {
	err = e.atom.View(func(st state) error {
		if err := e.checkIndex(index); err != nil {
			return err
		}
		ts = st.types[index]
		return nil
	})
	return
}

func (e *engine[F]) states() (types []TypeState, err error) {
	err = e.atom.View(func(st state) error {
		types = append(types, st.types...)
		return nil
	})
	return
}

// payloadSize is 0 on a closed store.
func (e *engine[F]) payloadSize() (size int) {
	e.atom.View(func(state) error {
		size = e.layout.PayloadSize()
		return nil
	})
	return
}
