// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"sync"
	"time"

	"go.uber.org/multierr"
	"gopkg.in/yaml.v3"
)

// EnvPrefix is prepended to every environment override key.
const EnvPrefix = "COOT_"

// Config holds all application configuration values.
type Config struct {
	// Polling interval in whole seconds.
	Interval int `yaml:"interval"`

	// InfluxDB write target
	InfluxDBURL     string        `yaml:"influxdb_url"`
	InfluxDBToken   string        `yaml:"influxdb_token"`
	InfluxDBBucket  string        `yaml:"influxdb_bucket"`
	InfluxDBOrg     string        `yaml:"influxdb_org"`
	Measurement     string        `yaml:"measurement"`
	InfluxDBTimeout time.Duration `yaml:"influxdb_timeout"`

	Log        LogConfig        `yaml:"log"`
	Sensor     SensorConfig     `yaml:"sensor"`
	Validation ValidationConfig `yaml:"validation"`
	MQTT       MQTTConfig       `yaml:"mqtt"`
	Monitor    MonitorConfig    `yaml:"monitor"`
}

type LogConfig struct {
	Level  string `yaml:"level"`  // debug, info, warn, error
	Format string `yaml:"format"` // console, json
}

type SensorConfig struct {
	Driver   string        `yaml:"driver"` // co2mon, mhz19, fake
	Path     string        `yaml:"path"`   // hidraw node or serial port; empty = default
	BaudRate uint          `yaml:"baud_rate"`
	Timeout  time.Duration `yaml:"timeout"`
}

type ValidationConfig struct {
	MinCO2 int `yaml:"min_co2"`
}

// MQTTConfig configures the optional local mirror. An empty Broker disables it.
type MQTTConfig struct {
	Broker   string `yaml:"broker"`
	ClientID string `yaml:"client_id"`
	Topic    string `yaml:"topic"`
}

// MonitorConfig configures the optional HTTP monitor. An empty Addr disables it.
type MonitorConfig struct {
	Addr string `yaml:"addr"`
}

// IntervalDuration returns Interval as a time.Duration.
func (c *Config) IntervalDuration() time.Duration {
	return time.Duration(c.Interval) * time.Second
}

// Package-level singleton, set once by InitGlobal and read through Get.
var (
	globalConfig *Config
	configOnce   sync.Once
	configMu     sync.RWMutex
)

// Load reads the YAML configuration file, applies COOT_* environment
// overrides and defaults, then validates the result.
func Load(configPath string) (*Config, error) {
	cfg, err := parse(configPath)
	if err != nil {
		return nil, err
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// LoadConsole is Load for the MQTT console: the InfluxDB keys are optional
// and mqtt.broker is required instead.
func LoadConsole(configPath string) (*Config, error) {
	cfg, err := parse(configPath)
	if err != nil {
		return nil, err
	}
	err = cfg.validateCommon()
	if cfg.MQTT.Broker == "" {
		err = multierr.Append(err, errors.New("mqtt.broker is required"))
	}
	if err != nil {
		return nil, err
	}
	return cfg, nil
}

func parse(configPath string) (*Config, error) {
	raw, err := os.ReadFile(configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	cfg := &Config{}
	if err := yaml.Unmarshal(raw, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file %s: %w", configPath, err)
	}

	if err := cfg.applyEnv(os.LookupEnv); err != nil {
		return nil, err
	}
	cfg.applyDefaults()
	return cfg, nil
}

var envKeys = []string{
	"INTERVAL",
	"INFLUXDB_URL",
	"INFLUXDB_TOKEN",
	"INFLUXDB_BUCKET",
	"INFLUXDB_ORG",
	"LOG_LEVEL",
	"SENSOR_DRIVER",
	"SENSOR_PATH",
	"MQTT_BROKER",
	"MONITOR_ADDR",
}

func (c *Config) applyEnv(lookup func(string) (string, bool)) error {
	for _, key := range envKeys {
		value, ok := lookup(EnvPrefix + key)
		if !ok {
			continue
		}
		if err := c.setValue(key, strings.TrimSpace(value)); err != nil {
			return fmt.Errorf("environment %s%s: %w", EnvPrefix, key, err)
		}
	}
	return nil
}

// setValue sets a config value based on the override key.
func (c *Config) setValue(key, value string) error {
	switch key {
	case "INTERVAL":
		interval, err := strconv.Atoi(value)
		if err != nil {
			return fmt.Errorf("invalid INTERVAL %q: %w", value, err)
		}
		c.Interval = interval

	// InfluxDB
	case "INFLUXDB_URL":
		c.InfluxDBURL = value
	case "INFLUXDB_TOKEN":
		c.InfluxDBToken = value
	case "INFLUXDB_BUCKET":
		c.InfluxDBBucket = value
	case "INFLUXDB_ORG":
		c.InfluxDBOrg = value

	case "LOG_LEVEL":
		c.Log.Level = value

	// Sensor
	case "SENSOR_DRIVER":
		c.Sensor.Driver = value
	case "SENSOR_PATH":
		c.Sensor.Path = value

	case "MQTT_BROKER":
		c.MQTT.Broker = value
	case "MONITOR_ADDR":
		c.Monitor.Addr = value

	default:
		return fmt.Errorf("unknown config key: %q", key)
	}
	return nil
}

func (c *Config) applyDefaults() {
	if c.Interval == 0 {
		c.Interval = 5
	}
	if c.Measurement == "" {
		c.Measurement = "co2mon"
	}
	if c.InfluxDBTimeout == 0 {
		c.InfluxDBTimeout = 10 * time.Second
	}
	if c.Log.Level == "" {
		c.Log.Level = "warn"
	}
	if c.Log.Format == "" {
		c.Log.Format = "console"
	}
	if c.Sensor.Driver == "" {
		c.Sensor.Driver = "co2mon"
	}
	if c.Sensor.BaudRate == 0 {
		c.Sensor.BaudRate = 9600
	}
	if c.Sensor.Timeout == 0 {
		c.Sensor.Timeout = 5 * time.Second
	}
	if c.Validation.MinCO2 == 0 {
		c.Validation.MinCO2 = 300
	}
	if c.MQTT.ClientID == "" {
		c.MQTT.ClientID = "coot-producer"
	}
	if c.MQTT.Topic == "" {
		c.MQTT.Topic = "coot/samples"
	}
}

// validate checks that all required fields are set.
func (c *Config) validate() error {
	var errs []error
	if c.InfluxDBURL == "" {
		errs = append(errs, errors.New("influxdb_url is required"))
	}
	if c.InfluxDBToken == "" {
		errs = append(errs, errors.New("influxdb_token is required"))
	}
	if c.InfluxDBBucket == "" {
		errs = append(errs, errors.New("influxdb_bucket is required"))
	}
	if c.InfluxDBOrg == "" {
		errs = append(errs, errors.New("influxdb_org is required"))
	}
	errs = append(errs, c.validateCommon())
	return multierr.Combine(errs...)
}

// validateCommon checks the keys shared by every binary.
func (c *Config) validateCommon() error {
	var errs []error
	if c.Interval < 0 {
		errs = append(errs, fmt.Errorf("interval must be positive, got %d", c.Interval))
	}
	if c.InfluxDBTimeout < 0 {
		errs = append(errs, fmt.Errorf("influxdb_timeout must be positive, got %s", c.InfluxDBTimeout))
	}
	if c.Sensor.Timeout < 0 {
		errs = append(errs, fmt.Errorf("sensor.timeout must be positive, got %s", c.Sensor.Timeout))
	}
	if c.Validation.MinCO2 < 0 {
		errs = append(errs, fmt.Errorf("validation.min_co2 must not be negative, got %d", c.Validation.MinCO2))
	}
	switch c.Log.Level {
	case "debug", "info", "warn", "error":
	default:
		errs = append(errs, fmt.Errorf("log.level must be debug, info, warn or error, got %q", c.Log.Level))
	}
	switch c.Log.Format {
	case "console", "json":
	default:
		errs = append(errs, fmt.Errorf("log.format must be console or json, got %q", c.Log.Format))
	}
	switch c.Sensor.Driver {
	case "co2mon", "mhz19", "fake":
	default:
		errs = append(errs, fmt.Errorf("sensor.driver must be co2mon, mhz19 or fake, got %q", c.Sensor.Driver))
	}
	return multierr.Combine(errs...)
}

// InitGlobal initializes the global configuration from file.
// Only the first call loads; later calls return that first result.
func InitGlobal(configPath string) error {
	var err error
	configOnce.Do(func() {
		configMu.Lock()
		defer configMu.Unlock()
		globalConfig, err = Load(configPath)
	})
	return err
}

// Get returns the global configuration instance, or nil before InitGlobal.
func Get() *Config {
	configMu.RLock()
	defer configMu.RUnlock()
	return globalConfig
}
