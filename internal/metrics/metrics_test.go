package metrics

import (
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/relabs-tech/coot/internal/sample"
)

func TestMetrics(t *testing.T) {
	reg := prometheus.NewRegistry()
	opens := uint64(0)
	m := New(reg, func() uint64 { return opens })

	m.ObserveCycle("delivered")
	m.ObserveCycle("delivered")
	m.ObserveCycle("acquisition_failed")
	m.ObserveDelivery(120 * time.Millisecond)
	m.SetReading(sample.Sample{Temperature: 21.5, CO2: 640, Timestamp: 1})
	opens = 3

	assert.Equal(t, 2.0, testutil.ToFloat64(m.cycles.WithLabelValues("delivered")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.cycles.WithLabelValues("acquisition_failed")))
	assert.Equal(t, 1, testutil.CollectAndCount(m.delivery))
	assert.Equal(t, 640.0, testutil.ToFloat64(m.co2))
	assert.Equal(t, 21.5, testutil.ToFloat64(m.temp))

	expected := `
# HELP coot_sensor_opens_total Sensor sessions opened.
# TYPE coot_sensor_opens_total counter
coot_sensor_opens_total 3
`
	require.NoError(t, testutil.GatherAndCompare(reg, strings.NewReader(expected), "coot_sensor_opens_total"))
}

func TestNilMetrics(t *testing.T) {
	var m *Metrics
	assert.NotPanics(t, func() {
		m.ObserveCycle("invalid")
		m.ObserveDelivery(time.Second)
		m.SetReading(sample.Sample{})
	})
}

func TestWithoutOpensCounter(t *testing.T) {
	reg := prometheus.NewRegistry()
	New(reg, nil)

	mfs, err := reg.Gather()
	require.NoError(t, err)
	for _, mf := range mfs {
		assert.NotEqual(t, "coot_sensor_opens_total", mf.GetName())
	}
}
