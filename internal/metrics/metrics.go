// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

// Package metrics exposes the poller's Prometheus collectors. A nil *Metrics
// is valid and records nothing.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/relabs-tech/coot/internal/sample"
)

const namespace = "coot"

type Metrics struct {
	cycles   *prometheus.CounterVec
	delivery prometheus.Histogram
	co2      prometheus.Gauge
	temp     prometheus.Gauge
}

// New registers the collectors on reg. opens reports how many times the
// sensor has been opened; it may be nil.
func New(reg prometheus.Registerer, opens func() uint64) *Metrics {
	f := promauto.With(reg)

	m := &Metrics{
		cycles: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "cycles_total",
			Help:      "Polling cycles by result.",
		}, []string{"result"}),
		delivery: f.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "delivery_duration_seconds",
			Help:      "Duration of InfluxDB write attempts.",
			Buckets:   []float64{.01, .05, .1, .25, .5, 1, 2.5, 5, 10},
		}),
		co2: f.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "co2_ppm",
			Help:      "Last accepted CO2 concentration.",
		}),
		temp: f.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "temperature_celsius",
			Help:      "Last accepted temperature.",
		}),
	}

	if opens != nil {
		f.NewCounterFunc(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "sensor_opens_total",
			Help:      "Sensor sessions opened.",
		}, func() float64 { return float64(opens()) })
	}
	return m
}

// ObserveCycle counts one finished cycle.
func (m *Metrics) ObserveCycle(result string) {
	if m == nil {
		return
	}
	m.cycles.WithLabelValues(result).Inc()
}

func (m *Metrics) ObserveDelivery(d time.Duration) {
	if m == nil {
		return
	}
	m.delivery.Observe(d.Seconds())
}

// SetReading records the last accepted sample.
func (m *Metrics) SetReading(s sample.Sample) {
	if m == nil {
		return
	}
	m.co2.Set(float64(s.CO2))
	m.temp.Set(s.Temperature)
}
