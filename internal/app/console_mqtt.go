// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package app

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"

	mqtt "github.com/eclipse/paho.mqtt.golang"

	"github.com/relabs-tech/coot/internal/config"
	"github.com/relabs-tech/coot/internal/sample"
)

// FormatSample renders one sample for the terminal console.
func FormatSample(s sample.Sample) string {
	return fmt.Sprintf("[CO2 ] co2=%4d ppm  temp=%.2f°C  ts=%d", s.CO2, s.Temperature, s.Timestamp)
}

// consoleHandler prints each sample payload to out.
func consoleHandler(out io.Writer, logger *slog.Logger) mqtt.MessageHandler {
	return func(_ mqtt.Client, msg mqtt.Message) {
		var s sample.Sample
		if err := json.Unmarshal(msg.Payload(), &s); err != nil {
			logger.Warn("console: sample unmarshal error", "topic", msg.Topic(), "error", err)
			return
		}
		fmt.Fprintln(out, FormatSample(s))
	}
}

// RunConsoleMQTT subscribes to the sample topic and prints every sample to
// out until ctx is cancelled.
func RunConsoleMQTT(ctx context.Context, cfg config.MQTTConfig, out io.Writer, logger *slog.Logger) error {
	if cfg.Broker == "" {
		return fmt.Errorf("mqtt.broker is required for the console")
	}

	opts := mqtt.NewClientOptions().
		AddBroker(cfg.Broker).
		SetClientID(cfg.ClientID + "-console").
		SetAutoReconnect(true)

	client := mqtt.NewClient(opts)
	if token := client.Connect(); token.Wait() && token.Error() != nil {
		return token.Error()
	}
	logger.Info("console: connected to MQTT broker", "broker", cfg.Broker)

	token := client.Subscribe(cfg.Topic, 0, consoleHandler(out, logger))
	token.Wait()
	if token.Error() != nil {
		client.Disconnect(250)
		return token.Error()
	}
	logger.Info("console: subscribed", "topic", cfg.Topic)

	<-ctx.Done()

	logger.Info("console: shutting down")
	client.Disconnect(250)
	return nil
}
