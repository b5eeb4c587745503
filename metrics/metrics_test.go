package metrics

import (
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMustRegisterCounterVec(t *testing.T) {
	c := MustRegisterCounterVec("test", "events_total", "Events seen", "kind")
	c.WithLabelValues("a").Add(3)

	expected := `
# HELP greenenv_test_events_total Events seen
# TYPE greenenv_test_events_total counter
greenenv_test_events_total{kind="a"} 3
`
	require.NoError(t, testutil.GatherAndCompare(prometheus.DefaultGatherer,
		strings.NewReader(expected), "greenenv_test_events_total"))
}

func TestMustRegisterPanicsOnDuplicate(t *testing.T) {
	MustRegisterCounter("test", "once_total", "Registered once")
	assert.Panics(t, func() {
		MustRegisterCounter("test", "once_total", "Registered once")
	})
}

func TestMustRegisterGaugeVec(t *testing.T) {
	g := MustRegisterGaugeVec("test", "level", "Current level", "pin")
	g.WithLabelValues("17").Set(42)
	assert.Equal(t, float64(42), testutil.ToFloat64(g.WithLabelValues("17")))
}
