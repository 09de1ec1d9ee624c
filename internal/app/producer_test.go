package app

import (
	"bytes"
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/relabs-tech/coot/internal/config"
	"github.com/relabs-tech/coot/internal/emit"
	"github.com/relabs-tech/coot/internal/influx"
	"github.com/relabs-tech/coot/internal/sample"
	"github.com/relabs-tech/coot/internal/sensor"
)

type lockedBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *lockedBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *lockedBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}

type capturedWrite struct {
	path  string
	query string
	auth  string
	body  string
}

func influxStub(t *testing.T, status int) (*httptest.Server, func() []capturedWrite) {
	t.Helper()
	var (
		mu     sync.Mutex
		writes []capturedWrite
	)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		mu.Lock()
		writes = append(writes, capturedWrite{
			path:  r.URL.Path,
			query: r.URL.Query().Encode(),
			auth:  r.Header.Get("Authorization"),
			body:  string(body),
		})
		mu.Unlock()
		w.WriteHeader(status)
	}))
	t.Cleanup(srv.Close)
	return srv, func() []capturedWrite {
		mu.Lock()
		defer mu.Unlock()
		return append([]capturedWrite(nil), writes...)
	}
}

func TestEndToEndCycle(t *testing.T) {
	srv, writes := influxStub(t, http.StatusNoContent)

	client, err := influx.New(influx.Config{URL: srv.URL, Token: "t", Org: "o", Bucket: "b"}, nopLogger())
	require.NoError(t, err)

	mock := clock.NewMock()
	mock.Set(time.Unix(1767225600, 0))
	var stdout bytes.Buffer

	l := NewLoop(LoopConfig{
		Reader:    sensor.NewManager(&staticTransport{reading: goodReading}, nopLogger()),
		Validator: sample.NewValidator(sample.DefaultMinCO2),
		Emitter:   emit.NewJSONLines(&stdout),
		Sender:    client,
		Interval:  5 * time.Second,
		Clock:     mock,
		Logger:    nopLogger(),
	})

	require.Equal(t, CycleDelivered, l.Cycle(context.Background()))

	assert.Equal(t, `{"temperature":21.3,"co2":400,"timestamp":1767225600}`+"\n", stdout.String())
	require.Len(t, writes(), 1)
	assert.Equal(t, capturedWrite{
		path:  "/api/v2/write",
		query: "bucket=b&org=o&precision=s",
		auth:  "Token t",
		body:  "co2mon c=400,t=21.3 1767225600",
	}, writes()[0])
}

func TestEndToEndRejectedStillEmits(t *testing.T) {
	srv, writes := influxStub(t, http.StatusUnauthorized)

	client, err := influx.New(influx.Config{URL: srv.URL, Token: "wrong", Org: "o", Bucket: "b"}, nopLogger())
	require.NoError(t, err)
	var stdout bytes.Buffer

	l := NewLoop(LoopConfig{
		Reader:    sensor.NewManager(&staticTransport{reading: goodReading}, nopLogger()),
		Validator: sample.NewValidator(0),
		Emitter:   emit.NewJSONLines(&stdout),
		Sender:    client,
		Logger:    nopLogger(),
	})

	assert.Equal(t, CycleRejected, l.Cycle(context.Background()))
	assert.Equal(t, 1, strings.Count(stdout.String(), "\n"))
	assert.Len(t, writes(), 1)
}

// staticTransport always opens and always reads the same value.
type staticTransport struct {
	opens   atomic.Int64
	reading sensor.RawReading
}

func (s *staticTransport) String() string { return "static" }

func (s *staticTransport) Open() (sensor.Handle, error) {
	s.opens.Add(1)
	return staticHandle{reading: s.reading}, nil
}

type staticHandle struct{ reading sensor.RawReading }

func (h staticHandle) Read() (sensor.RawReading, error) { return h.reading, nil }
func (h staticHandle) Close() error                     { return nil }

func testConfig(url string) *config.Config {
	return &config.Config{
		Interval:        1,
		InfluxDBURL:     url,
		InfluxDBToken:   "t",
		InfluxDBBucket:  "b",
		InfluxDBOrg:     "o",
		Measurement:     "co2mon",
		InfluxDBTimeout: time.Second,
		Sensor:          config.SensorConfig{Driver: "fake"},
		Validation:      config.ValidationConfig{MinCO2: 300},
	}
}

func TestNewProducerConfigErrors(t *testing.T) {
	cfg := testConfig("not a url")
	_, err := NewProducer(cfg, io.Discard, nopLogger())
	assert.ErrorIs(t, err, influx.ErrInvalidConfig)

	cfg = testConfig("http://localhost:8086")
	cfg.Sensor.Driver = "scd30"
	_, err = NewProducer(cfg, io.Discard, nopLogger())
	assert.ErrorContains(t, err, `unknown sensor driver "scd30"`)
}

func TestNewTransport(t *testing.T) {
	tr, err := NewTransport(config.SensorConfig{Driver: "mhz19", Path: "/dev/ttyUSB0", BaudRate: 9600})
	require.NoError(t, err)
	assert.Equal(t, "mhz19:/dev/ttyUSB0", tr.String())

	tr, err = NewTransport(config.SensorConfig{Driver: "fake"})
	require.NoError(t, err)
	assert.Equal(t, "fake", tr.String())

	tr, err = NewTransport(config.SensorConfig{Driver: "co2mon"})
	require.NoError(t, err)
	assert.Equal(t, "co2mon", tr.String())
}

func TestProducerRunWithFakeSensor(t *testing.T) {
	srv, writes := influxStub(t, http.StatusNoContent)

	cfg := testConfig(srv.URL)
	cfg.Monitor.Addr = "127.0.0.1:0"
	stdout := &lockedBuffer{}

	p, err := NewProducer(cfg, stdout, nopLogger())
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	errCh := make(chan error, 1)
	go func() { errCh <- p.Run(ctx) }()

	require.Eventually(t, func() bool { return len(writes()) >= 1 }, 3*time.Second, 10*time.Millisecond)

	code, body := get(t, "http://"+p.monitor.Addr()+"/api/latest")
	assert.Equal(t, http.StatusOK, code)
	assert.Contains(t, body, `"co2":`)
	assert.Contains(t, stdout.String(), `"timestamp":`)
	assert.True(t, strings.HasPrefix(writes()[0].body, "co2mon c="))

	cancel()
	select {
	case err := <-errCh:
		assert.NoError(t, err)
	case <-time.After(3 * time.Second):
		t.Fatal("producer did not stop")
	}
	assert.False(t, p.manager.IsOpen())
}
