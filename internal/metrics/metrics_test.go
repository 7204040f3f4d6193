package metrics

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tanq16/ruget/internal/errcode"
)

func TestJobLifecycle(t *testing.T) {
	c := New("test")

	done := c.JobStarted()
	assert.Equal(t, 1.0, testutil.ToFloat64(c.inProgress))
	done(StatusSuccess)
	assert.Equal(t, 0.0, testutil.ToFloat64(c.inProgress))

	c.JobStarted()(StatusFailed)
	c.JobStarted()(StatusFailed)

	assert.Equal(t, 1.0, testutil.ToFloat64(c.jobsTotal.WithLabelValues(StatusSuccess)))
	assert.Equal(t, 2.0, testutil.ToFloat64(c.jobsTotal.WithLabelValues(StatusFailed)))
	assert.Equal(t, 2, testutil.CollectAndCount(c.jobDuration))
}

func TestAttemptsErrorsBytes(t *testing.T) {
	c := New("test")
	c.Attempt(ResultRetryable)
	c.Attempt(ResultRetryable)
	c.Attempt(ResultSuccess)
	c.Error(errcode.E203)
	c.Error(errcode.E203)
	c.Error(errcode.E401)
	c.AddBytes(1000)
	c.AddBytes(-5)
	c.AddBytes(24)

	assert.Equal(t, 2.0, testutil.ToFloat64(c.attemptsTotal.WithLabelValues(ResultRetryable)))
	assert.Equal(t, 1.0, testutil.ToFloat64(c.attemptsTotal.WithLabelValues(ResultSuccess)))
	assert.Equal(t, 2.0, testutil.ToFloat64(c.errorsTotal.WithLabelValues("E203", "http")))
	assert.Equal(t, 1.0, testutil.ToFloat64(c.errorsTotal.WithLabelValues("E401", "network")))
	assert.Equal(t, 1024.0, testutil.ToFloat64(c.bytesTotal))
}

func TestSeparateRegistries(t *testing.T) {
	assert.NotPanics(t, func() {
		New("dup")
		New("dup")
	})
}

func TestNilCollector(t *testing.T) {
	var c *Collector
	assert.NotPanics(t, func() {
		c.JobStarted()(StatusSuccess)
		c.Attempt(ResultFatal)
		c.Error(errcode.E500)
		c.AddBytes(10)
		assert.Nil(t, c.Registry())
		assert.NoError(t, c.WriteFile("/nonexistent/path"))
	})
}

func TestWriteFile(t *testing.T) {
	c := New("ruget")
	c.JobStarted()(StatusSuccess)
	c.AddBytes(42)

	path := filepath.Join(t.TempDir(), "ruget.prom")
	require.NoError(t, c.WriteFile(path))
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), `ruget_jobs_total{status="success"} 1`)
	assert.Contains(t, string(data), "ruget_downloaded_bytes_total 42")
}
