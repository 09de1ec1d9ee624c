package influx

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/relabs-tech/coot/internal/sample"
)

var testSample = sample.Sample{Temperature: 21.3, CO2: 400, Timestamp: 1767225600}

func newTestClient(t *testing.T, url string, timeout time.Duration) *Client {
	t.Helper()
	c, err := New(Config{URL: url, Token: "t", Org: "o", Bucket: "b", Timeout: timeout}, nil)
	require.NoError(t, err)
	return c
}

func TestSendDelivered(t *testing.T) {
	var (
		gotPath  string
		gotQuery map[string]string
		gotAuth  string
		gotBody  string
	)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotQuery = map[string]string{
			"org":       r.URL.Query().Get("org"),
			"bucket":    r.URL.Query().Get("bucket"),
			"precision": r.URL.Query().Get("precision"),
		}
		gotAuth = r.Header.Get("Authorization")
		b, _ := io.ReadAll(r.Body)
		gotBody = string(b)
		w.WriteHeader(http.StatusNoContent)
	}))
	t.Cleanup(srv.Close)

	c := newTestClient(t, srv.URL, 0)
	out := c.Send(context.Background(), testSample)

	require.Equal(t, Delivered, out.Kind, out.String())
	assert.Equal(t, http.StatusNoContent, out.StatusCode)
	assert.NoError(t, out.Err)
	assert.Equal(t, "/api/v2/write", gotPath)
	assert.Equal(t, map[string]string{"org": "o", "bucket": "b", "precision": "s"}, gotQuery)
	assert.Equal(t, "Token t", gotAuth)
	assert.Equal(t, "co2mon c=400,t=21.3 1767225600", gotBody)
}

func TestSendRejected(t *testing.T) {
	hits := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits++
		http.Error(w, `{"code":"internal error"}`, http.StatusInternalServerError)
	}))
	t.Cleanup(srv.Close)

	out := newTestClient(t, srv.URL, 0).Send(context.Background(), testSample)

	assert.Equal(t, Rejected, out.Kind)
	assert.Equal(t, http.StatusInternalServerError, out.StatusCode)
	assert.ErrorContains(t, out.Err, "500")
	assert.ErrorContains(t, out.Err, "internal error")
	assert.Equal(t, 1, hits, "no retries")
}

func TestSendDroppedConnection(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, _, err := w.(http.Hijacker).Hijack()
		if err != nil {
			return
		}
		conn.Close()
	}))
	t.Cleanup(srv.Close)

	out := newTestClient(t, srv.URL, 0).Send(context.Background(), testSample)

	assert.Equal(t, TransportFailed, out.Kind)
	assert.Zero(t, out.StatusCode)
	assert.Error(t, out.Err)
}

func TestSendUnreachable(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()

	out := newTestClient(t, url, 0).Send(context.Background(), testSample)
	assert.Equal(t, TransportFailed, out.Kind)
}

func TestSendTimeout(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-r.Context().Done():
		case <-time.After(2 * time.Second):
		}
	}))
	t.Cleanup(srv.Close)

	out := newTestClient(t, srv.URL, 50*time.Millisecond).Send(context.Background(), testSample)
	assert.Equal(t, TransportFailed, out.Kind)
	assert.Less(t, out.Duration, 2*time.Second)
}

func TestNewValidatesConfig(t *testing.T) {
	valid := Config{URL: "http://example", Token: "t", Org: "o", Bucket: "b"}

	tests := []struct {
		name   string
		mutate func(*Config)
		want   string
	}{
		{name: "unparseable url", mutate: func(c *Config) { c.URL = "://nope" }, want: "base url"},
		{name: "no scheme", mutate: func(c *Config) { c.URL = "example:8086" }, want: "base url"},
		{name: "empty token", mutate: func(c *Config) { c.Token = " " }, want: "empty InfluxDB token"},
		{name: "token with newline", mutate: func(c *Config) { c.Token = "abc\ndef" }, want: "Authorization header"},
		{name: "missing bucket", mutate: func(c *Config) { c.Bucket = "" }, want: "org and bucket"},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			cfg := valid
			tc.mutate(&cfg)
			_, err := New(cfg, nil)
			require.Error(t, err)
			assert.True(t, errors.Is(err, ErrInvalidConfig))
			assert.ErrorContains(t, err, tc.want)
		})
	}

	c, err := New(valid, nil)
	require.NoError(t, err)
	assert.Equal(t, "http://example/api/v2/write", c.WriteURL())
}

func TestLine(t *testing.T) {
	assert.Equal(t, "co2mon c=400,t=21.3 1767225600", Line("co2mon", testSample))
	assert.Equal(t, `living\ room c=812,t=-0.5 1`, Line("living room", sample.Sample{CO2: 812, Temperature: -0.5, Timestamp: 1}))
	assert.Equal(t, `a\,b c=400,t=20 2`, Line("a,b", sample.Sample{CO2: 400, Temperature: 20, Timestamp: 2}))
}
