// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package app

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/benbjohnson/clock"

	"github.com/relabs-tech/coot/internal/emit"
	"github.com/relabs-tech/coot/internal/influx"
	"github.com/relabs-tech/coot/internal/metrics"
	"github.com/relabs-tech/coot/internal/sample"
	"github.com/relabs-tech/coot/internal/sensor"
)

// Reader is the acquisition side of a cycle; *sensor.Manager implements it.
type Reader interface {
	Read() (sensor.RawReading, error)
}

// Sender is the delivery side of a cycle; *influx.Client implements it.
type Sender interface {
	Send(ctx context.Context, s sample.Sample) influx.Outcome
}

// CycleResult is how one cycle ended.
type CycleResult int

const (
	CycleDelivered CycleResult = iota
	CycleRejected
	CycleTransportFailed
	CycleAcquisitionFailed
	CycleInvalid
)

func (r CycleResult) String() string {
	switch r {
	case CycleDelivered:
		return "delivered"
	case CycleRejected:
		return "rejected"
	case CycleTransportFailed:
		return "transport_failed"
	case CycleAcquisitionFailed:
		return "acquisition_failed"
	case CycleInvalid:
		return "invalid"
	default:
		return fmt.Sprintf("result(%d)", int(r))
	}
}

// LoopConfig wires a Loop. Emitter, Metrics, Clock and Logger are optional.
type LoopConfig struct {
	Reader    Reader
	Validator sample.Validator
	Emitter   emit.Emitter
	Sender    Sender
	Interval  time.Duration
	Metrics   *metrics.Metrics
	Clock     clock.Clock
	Logger    *slog.Logger
}

// Loop runs read, validate, emit, send, then sleeps for Interval. A failed
// step ends the cycle early but never the loop.
type Loop struct {
	reader    Reader
	validator sample.Validator
	emitter   emit.Emitter
	sender    Sender
	interval  time.Duration
	metrics   *metrics.Metrics
	clock     clock.Clock
	logger    *slog.Logger
}

func NewLoop(cfg LoopConfig) *Loop {
	if cfg.Clock == nil {
		cfg.Clock = clock.New()
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	if cfg.Emitter == nil {
		cfg.Emitter = emit.Multi(nil)
	}
	return &Loop{
		reader:    cfg.Reader,
		validator: cfg.Validator,
		emitter:   cfg.Emitter,
		sender:    cfg.Sender,
		interval:  cfg.Interval,
		metrics:   cfg.Metrics,
		clock:     cfg.Clock,
		logger:    cfg.Logger,
	}
}

// Run cycles until ctx is cancelled. The sleep starts after a cycle ends, so
// a slow sensor or endpoint stretches the period.
func (l *Loop) Run(ctx context.Context) {
	l.logger.Info("poll loop started", "interval", l.interval)
	for ctx.Err() == nil {
		l.Cycle(ctx)

		timer := l.clock.Timer(l.interval)
		select {
		case <-ctx.Done():
			timer.Stop()
		case <-timer.C:
		}
	}
	l.logger.Info("poll loop stopped")
}

// Cycle executes exactly one cycle.
func (l *Loop) Cycle(ctx context.Context) (result CycleResult) {
	defer func() { l.metrics.ObserveCycle(result.String()) }()

	raw, err := l.reader.Read()
	if err != nil {
		l.logger.Warn("sensor read failed", "error", err)
		return CycleAcquisitionFailed
	}

	s, err := l.validator.Validate(raw, l.clock.Now())
	if err != nil {
		l.logger.Warn("discarding reading", "error", err)
		return CycleInvalid
	}
	l.metrics.SetReading(s)

	if err := l.emitter.Emit(s); err != nil {
		l.logger.Warn("local emission failed", "error", err)
	}

	out := l.sender.Send(ctx, s)
	l.metrics.ObserveDelivery(out.Duration)

	switch out.Kind {
	case influx.Delivered:
		l.logger.Debug("sample delivered", "co2", s.CO2, "temperature", s.Temperature, "duration", out.Duration)
		return CycleDelivered
	case influx.Rejected:
		l.logger.Error("influxdb rejected sample", "status", out.StatusCode, "error", out.Err)
		return CycleRejected
	default:
		l.logger.Warn("influxdb unreachable", "error", out.Err, "duration", out.Duration)
		return CycleTransportFailed
	}
}
