// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package influx

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
	"golang.org/x/net/http/httpguts"

	"github.com/relabs-tech/coot/internal/sample"
)

// ErrInvalidConfig wraps every construction error of the client.
var ErrInvalidConfig = errors.New("invalid influxdb configuration")

const (
	DefaultMeasurement = "co2mon"
	DefaultTimeout     = 10 * time.Second
	maxErrorBody       = 256
)

// Config is the immutable write target.
type Config struct {
	URL         string // base URL, e.g. http://localhost:8086
	Token       string
	Org         string
	Bucket      string
	Measurement string
	Timeout     time.Duration
}

// Client writes samples to the InfluxDB v2 write API. One Send is one HTTP
// request: no retries, no buffering.
type Client struct {
	http        *resty.Client
	writeURL    string
	measurement string
	logger      *slog.Logger
}

// New validates cfg and builds the client. Errors here are configuration
// errors and should stop the process.
func New(cfg Config, logger *slog.Logger) (*Client, error) {
	if logger == nil {
		logger = slog.Default()
	}

	base, err := url.Parse(cfg.URL)
	if err != nil || (base.Scheme != "http" && base.Scheme != "https") || base.Host == "" {
		return nil, fmt.Errorf("%w: invalid InfluxDB base url %q", ErrInvalidConfig, cfg.URL)
	}
	if strings.TrimSpace(cfg.Token) == "" {
		return nil, fmt.Errorf("%w: empty InfluxDB token", ErrInvalidConfig)
	}
	auth := "Token " + cfg.Token
	if !httpguts.ValidHeaderFieldValue(auth) {
		return nil, fmt.Errorf("%w: invalid InfluxDB token for Authorization header", ErrInvalidConfig)
	}
	if cfg.Org == "" || cfg.Bucket == "" {
		return nil, fmt.Errorf("%w: org and bucket are required", ErrInvalidConfig)
	}
	if cfg.Measurement == "" {
		cfg.Measurement = DefaultMeasurement
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultTimeout
	}

	logger = logger.With("component", "influx")
	hc := resty.New().
		SetTimeout(cfg.Timeout).
		SetRetryCount(0).
		SetLogger(restyLogger{logger}).
		SetHeader("Authorization", auth).
		SetHeader("Content-Type", "text/plain; charset=utf-8").
		SetQueryParams(map[string]string{
			"org":       cfg.Org,
			"bucket":    cfg.Bucket,
			"precision": "s",
		})

	return &Client{
		http:        hc,
		writeURL:    base.JoinPath("api", "v2", "write").String(),
		measurement: cfg.Measurement,
		logger:      logger,
	}, nil
}

// WriteURL is the endpoint every Send posts to, without query parameters.
func (c *Client) WriteURL() string { return c.writeURL }

// Send performs exactly one write attempt and classifies the result.
func (c *Client) Send(ctx context.Context, s sample.Sample) Outcome {
	start := time.Now()
	resp, err := c.http.R().
		SetContext(ctx).
		SetBody(Line(c.measurement, s)).
		Post(c.writeURL)
	elapsed := time.Since(start)

	if err != nil {
		return Outcome{Kind: TransportFailed, Err: err, Duration: elapsed}
	}
	if code := resp.StatusCode(); code < 200 || code > 299 {
		return Outcome{
			Kind:       Rejected,
			StatusCode: code,
			Err:        fmt.Errorf("%s: %s", resp.Status(), errorBody(resp.String())),
			Duration:   elapsed,
		}
	}
	return Outcome{Kind: Delivered, StatusCode: resp.StatusCode(), Duration: elapsed}
}

func errorBody(body string) string {
	body = strings.TrimSpace(body)
	if len(body) > maxErrorBody {
		return body[:maxErrorBody] + "..."
	}
	return body
}

// restyLogger routes resty's own messages into slog. Request failures are
// already reported through Outcome, so resty's errors only show at debug.
type restyLogger struct{ l *slog.Logger }

func (r restyLogger) Errorf(format string, v ...any) { r.l.Debug(fmt.Sprintf(format, v...)) }
func (r restyLogger) Warnf(format string, v ...any)  { r.l.Warn(fmt.Sprintf(format, v...)) }
func (r restyLogger) Debugf(format string, v ...any) { r.l.Debug(fmt.Sprintf(format, v...)) }
