package metrics

import (
	"errors"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCollectorCounts(t *testing.T) {
	reg := prometheus.NewRegistry()
	c := New(reg)

	c.Registered(true)
	c.Registered(false)
	c.Registered(false)
	c.Queried(3)
	c.Used(true)
	c.Used(false)
	c.FeedbackRecorded("sherlock", true)
	c.Adjusted(2)
	c.Adjusted(0)
	c.Flushed(time.Now(), nil)
	c.Flushed(time.Now(), errors.New("disk full"))
	c.SetPatterns(4)

	assert.Equal(t, 1.0, testutil.ToFloat64(c.Registrations.WithLabelValues("created")))
	assert.Equal(t, 2.0, testutil.ToFloat64(c.Registrations.WithLabelValues("merged")))
	assert.Equal(t, 1.0, testutil.ToFloat64(c.Queries))
	assert.Equal(t, 3.0, testutil.ToFloat64(c.Recommendations))
	assert.Equal(t, 1.0, testutil.ToFloat64(c.Usage.WithLabelValues("failure")))
	assert.Equal(t, 1.0, testutil.ToFloat64(c.Feedback.WithLabelValues("sherlock", "success")))
	assert.Equal(t, 2.0, testutil.ToFloat64(c.Adjustments))
	assert.Equal(t, 1.0, testutil.ToFloat64(c.Flushes))
	assert.Equal(t, 1.0, testutil.ToFloat64(c.FlushErrors))
	assert.Equal(t, 4.0, testutil.ToFloat64(c.Patterns))

	n, err := testutil.GatherAndCount(reg, "paired_storage_flush_latency_seconds")
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}

func TestNilCollectorIsSafe(t *testing.T) {
	var c *Collector
	assert.NotPanics(t, func() {
		c.Registered(true)
		c.Queried(1)
		c.Used(true)
		c.FeedbackRecorded("x", false)
		c.Adjusted(1)
		c.Flushed(time.Now(), nil)
		c.SetPatterns(1)
	})
}

func TestNewWithoutRegistry(t *testing.T) {
	assert.NotPanics(t, func() {
		New(nil)
		New(nil)
	})
}
