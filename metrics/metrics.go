// Copyright 2025 dacapoday
// SPDX-License-Identifier: Apache-2.0

// Package metrics exports store diagnostics as Prometheus collectors.
//
// Every method is safe on a nil *Metrics, so a store without metrics pays
// only for the nil check.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const (
	namespace = "slotlog"
	subsystem = "store"
)

// Results of a flash operation.
const (
	ResultOK    = "ok"
	ResultError = "error"
)

type Metrics struct {
	SavesTotal          *prometheus.CounterVec
	AttemptsTotal       prometheus.Counter
	ErasesTotal         *prometheus.CounterVec
	ProgramsTotal       *prometheus.CounterVec
	VerifyFailuresTotal prometheus.Counter
	SkippedSlotsTotal   *prometheus.CounterVec
	EvictionsTotal      *prometheus.CounterVec
	RecordVersion       *prometheus.GaugeVec
	SaveDuration        prometheus.Histogram
	ScanDuration        prometheus.Histogram
}

var latencyBuckets = []float64{0.0005, 0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1, 5}

// New creates the collectors and registers them with reg.
// A nil reg leaves them unregistered.
func New(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		SavesTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: subsystem,
				Name:      "saves_total",
				Help:      "Saves broken down by record type and result.",
			},
			[]string{"type", "result"},
		),
		AttemptsTotal: factory.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: subsystem,
				Name:      "write_attempts_total",
				Help:      "Slots tried by saves.",
			},
		),
		ErasesTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: subsystem,
				Name:      "sector_erases_total",
				Help:      "Sector erases broken down by result.",
			},
			[]string{"result"},
		),
		ProgramsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: subsystem,
				Name:      "page_programs_total",
				Help:      "Page programs broken down by result.",
			},
			[]string{"result"},
		),
		VerifyFailuresTotal: factory.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: subsystem,
				Name:      "verify_failures_total",
				Help:      "Programmed slots that did not read back as the written record.",
			},
		),
		SkippedSlotsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: subsystem,
				Name:      "scan_skipped_slots_total",
				Help:      "Slots ignored by a rescan broken down by class.",
			},
			[]string{"class"},
		),
		EvictionsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: subsystem,
				Name:      "evictions_total",
				Help:      "Newest records of a type destroyed by a sector erase for another type.",
			},
			[]string{"type"},
		),
		RecordVersion: factory.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Subsystem: subsystem,
				Name:      "record_version",
				Help:      "Version of the newest committed record per type.",
			},
			[]string{"type"},
		),
		SaveDuration: factory.NewHistogram(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Subsystem: subsystem,
				Name:      "save_duration_seconds",
				Help:      "Save latency in seconds.",
				Buckets:   latencyBuckets,
			},
		),
		ScanDuration: factory.NewHistogram(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Subsystem: subsystem,
				Name:      "scan_duration_seconds",
				Help:      "Rescan latency in seconds.",
				Buckets:   latencyBuckets,
			},
		),
	}
}

func result(err error) string {
	if err != nil {
		return ResultError
	}
	return ResultOK
}

func (m *Metrics) RecordSave(typ string, err error, elapsed time.Duration) {
	if m == nil {
		return
	}
	m.SavesTotal.WithLabelValues(typ, result(err)).Inc()
	m.SaveDuration.Observe(elapsed.Seconds())
}

func (m *Metrics) RecordAttempt() {
	if m == nil {
		return
	}
	m.AttemptsTotal.Inc()
}

func (m *Metrics) RecordErase(err error) {
	if m == nil {
		return
	}
	m.ErasesTotal.WithLabelValues(result(err)).Inc()
}

func (m *Metrics) RecordProgram(err error) {
	if m == nil {
		return
	}
	m.ProgramsTotal.WithLabelValues(result(err)).Inc()
}

func (m *Metrics) RecordVerifyFailure() {
	if m == nil {
		return
	}
	m.VerifyFailuresTotal.Inc()
}

// RecordSkipped counts a slot ignored by a rescan.
func (m *Metrics) RecordSkipped(class string) {
	if m == nil {
		return
	}
	m.SkippedSlotsTotal.WithLabelValues(class).Inc()
}

func (m *Metrics) RecordEviction(typ string) {
	if m == nil {
		return
	}
	m.EvictionsTotal.WithLabelValues(typ).Inc()
}

// SetVersion publishes the newest version of a type.
// Version 0 means the type holds no record.
func (m *Metrics) SetVersion(typ string, version uint32) {
	if m == nil {
		return
	}
	m.RecordVersion.WithLabelValues(typ).Set(float64(version))
}

func (m *Metrics) RecordScan(elapsed time.Duration) {
	if m == nil {
		return
	}
	m.ScanDuration.Observe(elapsed.Seconds())
}
