// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package app

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"go.uber.org/multierr"

	"github.com/relabs-tech/coot/internal/config"
	"github.com/relabs-tech/coot/internal/emit"
	"github.com/relabs-tech/coot/internal/influx"
	"github.com/relabs-tech/coot/internal/metrics"
	"github.com/relabs-tech/coot/internal/sample"
	"github.com/relabs-tech/coot/internal/sensor"
)

const shutdownTimeout = 5 * time.Second

// Producer is the assembled CO2 poller: sensor, validator, InfluxDB client,
// local sinks and the loop driving them.
type Producer struct {
	cfg     *config.Config
	logger  *slog.Logger
	manager *sensor.Manager
	loop    *Loop
	mqtt    *emit.MQTT
	monitor *Monitor
}

// NewTransport builds the sensor transport selected by cfg.Driver.
func NewTransport(cfg config.SensorConfig) (sensor.Transport, error) {
	switch cfg.Driver {
	case "co2mon":
		return sensor.NewCO2Mon(sensor.CO2MonOptions{Path: cfg.Path, Timeout: cfg.Timeout}), nil
	case "mhz19":
		return sensor.NewMHZ19(sensor.MHZ19Options{Port: cfg.Path, BaudRate: cfg.BaudRate, Timeout: cfg.Timeout}), nil
	case "fake":
		return sensor.NewFake(), nil
	default:
		return nil, fmt.Errorf("unknown sensor driver %q", cfg.Driver)
	}
}

// NewProducer validates the configuration-dependent pieces and wires them.
// Nothing touches the sensor, the broker or the network until Run.
func NewProducer(cfg *config.Config, stdout io.Writer, logger *slog.Logger) (*Producer, error) {
	if logger == nil {
		logger = slog.Default()
	}

	transport, err := NewTransport(cfg.Sensor)
	if err != nil {
		return nil, err
	}
	manager := sensor.NewManager(transport, logger)

	client, err := influx.New(influx.Config{
		URL:         cfg.InfluxDBURL,
		Token:       cfg.InfluxDBToken,
		Org:         cfg.InfluxDBOrg,
		Bucket:      cfg.InfluxDBBucket,
		Measurement: cfg.Measurement,
		Timeout:     cfg.InfluxDBTimeout,
	}, logger)
	if err != nil {
		return nil, err
	}

	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	m := metrics.New(reg, manager.Opens)

	p := &Producer{cfg: cfg, logger: logger, manager: manager}

	sinks := emit.Multi{emit.NewJSONLines(stdout)}
	if cfg.MQTT.Broker != "" {
		p.mqtt = emit.NewMQTT(emit.MQTTOptions{
			Broker:   cfg.MQTT.Broker,
			ClientID: cfg.MQTT.ClientID,
			Topic:    cfg.MQTT.Topic,
		}, logger)
		sinks = append(sinks, p.mqtt)
	}
	if cfg.Monitor.Addr != "" {
		p.monitor = NewMonitor(cfg.Monitor.Addr, reg, logger)
		sinks = append(sinks, p.monitor)
	}

	p.loop = NewLoop(LoopConfig{
		Reader:    manager,
		Validator: sample.NewValidator(cfg.Validation.MinCO2),
		Emitter:   sinks,
		Sender:    client,
		Interval:  cfg.IntervalDuration(),
		Metrics:   m,
		Logger:    logger,
	})
	return p, nil
}

// Run starts the optional sinks, polls until ctx is cancelled, then releases
// the sensor and the sinks.
func (p *Producer) Run(ctx context.Context) error {
	if p.monitor != nil {
		if err := p.monitor.Start(); err != nil {
			return fmt.Errorf("monitor listen on %s: %w", p.cfg.Monitor.Addr, err)
		}
	}
	if p.mqtt != nil {
		p.mqtt.Start()
	}

	p.logger.Info("co2 producer running",
		"sensor", p.cfg.Sensor.Driver,
		"influxdb", p.cfg.InfluxDBURL,
		"interval", p.cfg.IntervalDuration(),
	)
	p.loop.Run(ctx)

	return p.Close()
}

// Close releases everything Run may have acquired. It is safe to call on a
// producer that never ran.
func (p *Producer) Close() error {
	err := p.manager.Close()
	if p.mqtt != nil {
		err = multierr.Append(err, p.mqtt.Close())
	}
	if p.monitor != nil {
		ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		err = multierr.Append(err, p.monitor.Shutdown(ctx))
	}
	return err
}
