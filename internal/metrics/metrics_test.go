package metrics

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/require"
)

func TestCollectorCounts(t *testing.T) {
	reg := prometheus.NewRegistry()
	c, err := New(reg, "test")
	require.NoError(t, err)

	c.DefaultResolved(true)
	c.DefaultResolved(false)
	c.DefaultResolved(false)
	c.Demoted(3)
	c.Demoted(0)
	c.Transition("failed", time.Minute)
	c.Transition("dead", 0)
	c.Redelivered(2)
	c.Succeeded()

	require.Equal(t, 1.0, testutil.ToFloat64(c.defaults.WithLabelValues("assigned")))
	require.Equal(t, 2.0, testutil.ToFloat64(c.defaults.WithLabelValues("existing")))
	require.Equal(t, 3.0, testutil.ToFloat64(c.demoted))
	require.Equal(t, 1.0, testutil.ToFloat64(c.transitions.WithLabelValues("failed")))
	require.Equal(t, 1.0, testutil.ToFloat64(c.transitions.WithLabelValues("dead")))
	require.Equal(t, 2.0, testutil.ToFloat64(c.redelivered))
	require.Equal(t, 1.0, testutil.ToFloat64(c.completedJob))
	require.Equal(t, 1, testutil.CollectAndCount(c.backoff))
}

func TestDoubleRegistrationFails(t *testing.T) {
	reg := prometheus.NewRegistry()
	_, err := New(reg, "test")
	require.NoError(t, err)

	_, err = New(reg, "test")
	require.Error(t, err)
}

func TestNilCollectorIsNoop(t *testing.T) {
	var c *Collector
	require.NotPanics(t, func() {
		c.DefaultResolved(true)
		c.Demoted(1)
		c.Transition("dead", 0)
		c.Redelivered(1)
		c.Succeeded()
	})
}
