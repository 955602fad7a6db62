// Copyright 2025 dacapoday
// SPDX-License-Identifier: Apache-2.0

package store

import (
	"io"

	"github.com/sirupsen/logrus"

	"github.com/dacapoday/slotlog"
	"github.com/dacapoday/slotlog/metrics"
)

// Default attempt bounds of a save.
// Multi-page entries of the multi-type store cost more per attempt.
const (
	DefaultMaxAttempts       = 25
	DefaultSingleMaxAttempts = 100
)

// Option configures a store at Open.
// Optional capabilities are discovered by type assertion.
type Option interface {
	Geometry() slotlog.Geometry
}

type MaxAttempts interface {
	MaxAttempts() int
}

type Exclusive interface {
	Exclusive() slotlog.Exclusive
}

type Logger interface {
	Logger() logrus.FieldLogger
}

type Metrics interface {
	Metrics() *metrics.Metrics
}

func getMaxAttempts(opt any, def int) int {
	if o, ok := opt.(MaxAttempts); ok {
		if n := o.MaxAttempts(); n > 0 {
			return n
		}
	}
	return def
}

func getExclusive(opt any) (exec slotlog.Exclusive) {
	if o, ok := opt.(Exclusive); ok {
		exec = o.Exclusive()
	}
	if exec == nil {
		exec = slotlog.Direct
	}
	return
}

func getLogger(opt any) (log logrus.FieldLogger) {
	if o, ok := opt.(Logger); ok {
		log = o.Logger()
	}
	if log == nil {
		l := logrus.New()
		l.SetOutput(io.Discard)
		log = l
	}
	return
}

func getMetrics(opt any) (m *metrics.Metrics) {
	if o, ok := opt.(Metrics); ok {
		m = o.Metrics()
	}
	return
}

// Options is a ready-made Option carrying every capability.
// Zero fields select the defaults.
type Options struct {
	Region    slotlog.Geometry
	Attempts  int
	Exec      slotlog.Exclusive
	Log       logrus.FieldLogger
	Collector *metrics.Metrics
}

func (o Options) Geometry() slotlog.Geometry   { return o.Region }
func (o Options) MaxAttempts() int             { return o.Attempts }
func (o Options) Exclusive() slotlog.Exclusive { return o.Exec }
func (o Options) Logger() logrus.FieldLogger   { return o.Log }
func (o Options) Metrics() *metrics.Metrics    { return o.Collector }
