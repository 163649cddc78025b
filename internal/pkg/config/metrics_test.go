package config

import (
	"sync"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestNewConfigMetrics_Registration(t *testing.T) {
	metrics := NewConfigMetrics("test_component_registration")

	assert.NotNil(t, metrics.LoadTimestamp)
	assert.NotNil(t, metrics.ValidationErrorsTotal)
	assert.NotNil(t, metrics.FallbacksTotal)
	assert.NotNil(t, metrics.FallbackActive)
	assert.Equal(t, "test_component_registration", metrics.componentName)
}

func TestNewConfigMetrics_UniquePerComponent(t *testing.T) {
	a := NewConfigMetrics("test_component_a")
	b := NewConfigMetrics("test_component_b")

	assert.NotSame(t, a.LoadTimestamp, b.LoadTimestamp)

	a.RecordLoadTimestamp()
	b.RecordLoadTimestamp()
}

func TestRecordLoadTimestamp(t *testing.T) {
	metrics := NewConfigMetrics("test_load_timestamp")
	metrics.RecordLoadTimestamp()
	assert.Greater(t, testutil.ToFloat64(metrics.LoadTimestamp), float64(0))
}

func TestRecordValidationError_IncrementsPerField(t *testing.T) {
	metrics := NewConfigMetrics("test_validation_error")

	metrics.RecordValidationError("max_workers")
	metrics.RecordValidationError("max_workers")
	metrics.RecordValidationError("output_dir")

	assert.Equal(t, float64(2),
		testutil.ToFloat64(metrics.ValidationErrorsTotal.WithLabelValues("max_workers")))
	assert.Equal(t, float64(1),
		testutil.ToFloat64(metrics.ValidationErrorsTotal.WithLabelValues("output_dir")))
}

func TestRecordFallback_IncrementsPerField(t *testing.T) {
	metrics := NewConfigMetrics("test_fallback")

	metrics.RecordFallback("per_article_timeout", "default")
	metrics.RecordFallback("per_article_timeout", "default")

	assert.Equal(t, float64(2),
		testutil.ToFloat64(metrics.FallbacksTotal.WithLabelValues("per_article_timeout")))
}

func TestSetFallbackActive_Toggles(t *testing.T) {
	metrics := NewConfigMetrics("test_fallback_active")

	metrics.SetFallbackActive("max_workers", true)
	assert.Equal(t, float64(1), testutil.ToFloat64(metrics.FallbackActive))

	metrics.SetFallbackActive("max_workers", false)
	assert.Equal(t, float64(0), testutil.ToFloat64(metrics.FallbackActive))
}

// A degraded load records a fallback and flips the gauge; the next clean
// load flips it back while the counter keeps its history.
func TestMetrics_DegradedThenCleanLoad(t *testing.T) {
	metrics := NewConfigMetrics("test_degraded_load")

	metrics.RecordLoadTimestamp()
	metrics.RecordFallback("connect_timeout", "default")
	metrics.SetFallbackActive("connect_timeout", true)

	assert.Equal(t, float64(1), testutil.ToFloat64(metrics.FallbackActive))

	metrics.RecordLoadTimestamp()
	metrics.SetFallbackActive("", false)

	assert.Equal(t, float64(0), testutil.ToFloat64(metrics.FallbackActive))
	assert.Equal(t, float64(1),
		testutil.ToFloat64(metrics.FallbacksTotal.WithLabelValues("connect_timeout")))
}

func TestMetrics_ConcurrentAccess(t *testing.T) {
	metrics := NewConfigMetrics("test_concurrent")

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 100; j++ {
				metrics.RecordValidationError("field")
				metrics.RecordFallback("field", "default")
				metrics.SetFallbackActive("field", j%2 == 0)
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, float64(1000),
		testutil.ToFloat64(metrics.ValidationErrorsTotal.WithLabelValues("field")))
	assert.Equal(t, float64(1000),
		testutil.ToFloat64(metrics.FallbacksTotal.WithLabelValues("field")))
}
