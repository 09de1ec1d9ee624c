// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package emit

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"

	"github.com/relabs-tech/coot/internal/sample"
)

// ErrNotConnected is returned by MQTT.Emit while the broker is unreachable.
var ErrNotConnected = errors.New("mqtt client not connected")

const publishTimeout = 2 * time.Second

// MQTTOptions configures the local MQTT mirror.
type MQTTOptions struct {
	Broker   string
	ClientID string
	Topic    string
}

// publisher is the subset of mqtt.Client used for publishing.
type publisher interface {
	IsConnectionOpen() bool
	Publish(topic string, qos byte, retained bool, payload interface{}) mqtt.Token
}

// MQTT publishes each sample as retained JSON with QoS 0. The client
// reconnects on its own; samples produced while offline are dropped.
type MQTT struct {
	client publisher
	topic  string
	logger *slog.Logger
	start  func()
	close  func()
}

// NewMQTT builds the paho client. Nothing is dialed until Start.
func NewMQTT(opts MQTTOptions, logger *slog.Logger) *MQTT {
	if logger == nil {
		logger = slog.Default()
	}
	logger = logger.With("component", "mqtt", "broker", opts.Broker)

	co := mqtt.NewClientOptions().
		AddBroker(opts.Broker).
		SetClientID(opts.ClientID).
		SetCleanSession(true).
		SetAutoReconnect(true).
		SetConnectRetry(true).
		SetConnectRetryInterval(5 * time.Second).
		SetMaxReconnectInterval(60 * time.Second).
		SetKeepAlive(30 * time.Second).
		SetOnConnectHandler(func(_ mqtt.Client) {
			logger.Info("mqtt connected")
		}).
		SetConnectionLostHandler(func(_ mqtt.Client, err error) {
			logger.Warn("mqtt connection lost", "error", err)
		})

	client := mqtt.NewClient(co)
	return &MQTT{
		client: client,
		topic:  opts.Topic,
		logger: logger,
		start:  func() { client.Connect() },
		close:  func() { client.Disconnect(250) },
	}
}

// Start begins connecting in the background and returns immediately. The
// client keeps retrying until the broker answers or Close is called.
func (m *MQTT) Start() {
	if m.start != nil {
		m.start()
	}
}

func (m *MQTT) Emit(s sample.Sample) error {
	if !m.client.IsConnectionOpen() {
		return ErrNotConnected
	}

	payload, err := json.Marshal(s)
	if err != nil {
		return fmt.Errorf("marshal sample: %w", err)
	}

	token := m.client.Publish(m.topic, 0, true, payload)
	if !token.WaitTimeout(publishTimeout) {
		return fmt.Errorf("publish timeout for topic %s", m.topic)
	}
	if err := token.Error(); err != nil {
		return fmt.Errorf("publish to %s: %w", m.topic, err)
	}
	m.logger.Debug("published sample", "topic", m.topic)
	return nil
}

// Close disconnects from the broker.
func (m *MQTT) Close() error {
	if m.close != nil {
		m.close()
	}
	return nil
}
