package circuitbreaker

import (
	"errors"
	"testing"
	"time"
)

func testConfig() Config {
	return Config{
		Name:             "test-circuit",
		FailureThreshold: 3,
		SuccessThreshold: 2,
		Timeout:          50 * time.Millisecond,
		HalfOpenMaxCalls: 2,
	}
}

func TestNew(t *testing.T) {
	cb := New(testConfig())

	if cb == nil {
		t.Fatal("expected circuit breaker, got nil")
	}
	if cb.Name() != "test-circuit" {
		t.Errorf("expected name='test-circuit', got %q", cb.Name())
	}
	if cb.State() != StateClosed {
		t.Errorf("expected initial state=Closed, got %v", cb.State())
	}
}

func TestCircuitBreaker_Execute_Success(t *testing.T) {
	cb := New(testConfig())

	result, err := cb.Execute(func() (interface{}, error) {
		return "success", nil
	})

	if err != nil {
		t.Errorf("expected no error, got %v", err)
	}
	if result != "success" {
		t.Errorf("expected result='success', got %v", result)
	}
	if cb.State() != StateClosed {
		t.Errorf("expected state=Closed after success, got %v", cb.State())
	}
}

func TestCircuitBreaker_Execute_Failure(t *testing.T) {
	cb := New(testConfig())

	testErr := errors.New("test error")
	result, err := cb.Execute(func() (interface{}, error) {
		return nil, testErr
	})

	if !errors.Is(err, testErr) {
		t.Errorf("expected error=%v, got %v", testErr, err)
	}
	if result != nil {
		t.Errorf("expected nil result, got %v", result)
	}
}

// TestCircuitBreaker_TripsOpen: consecutiveFailures reaching
// failureThreshold trips CLOSED -> OPEN, and a success in between
// resets the consecutive counter rather than contributing toward the trip.
func TestCircuitBreaker_TripsOpen(t *testing.T) {
	cb := New(testConfig())
	testErr := errors.New("boom")

	// Two failures, then a success: should reset the consecutive count.
	for i := 0; i < 2; i++ {
		_, _ = cb.Execute(func() (interface{}, error) { return nil, testErr })
	}
	if cb.State() != StateClosed {
		t.Fatalf("expected still Closed after 2 failures (threshold 3), got %v", cb.State())
	}

	_, err := cb.Execute(func() (interface{}, error) { return "ok", nil })
	if err != nil {
		t.Fatalf("success call failed: %v", err)
	}
	if cb.State() != StateClosed {
		t.Fatalf("expected Closed after success, got %v", cb.State())
	}

	// Now three consecutive failures in a row should trip it.
	for i := 0; i < 3; i++ {
		_, _ = cb.Execute(func() (interface{}, error) { return nil, testErr })
	}
	if cb.State() != StateOpen {
		t.Fatalf("expected Open after 3 consecutive failures, got %v", cb.State())
	}
	if !cb.IsOpen() {
		t.Error("expected IsOpen()=true")
	}

	_, err = cb.Execute(func() (interface{}, error) {
		t.Error("function should not be called when circuit is open")
		return nil, nil
	})
	if !errors.Is(err, ErrOpenState) {
		t.Errorf("expected ErrOpenState, got %v", err)
	}
}

func TestCircuitBreaker_HalfOpen_RecoversOnSuccess(t *testing.T) {
	cb := New(testConfig())
	testErr := errors.New("boom")

	for i := 0; i < 3; i++ {
		_, _ = cb.Execute(func() (interface{}, error) { return nil, testErr })
	}
	if cb.State() != StateOpen {
		t.Fatalf("circuit should be open, got %v", cb.State())
	}

	time.Sleep(60 * time.Millisecond)

	// First probe after timeout should transition to half-open and be admitted.
	_, err := cb.Execute(func() (interface{}, error) { return "ok", nil })
	if err != nil {
		t.Fatalf("expected probe to be admitted, got %v", err)
	}
	if cb.State() != StateHalfOpen {
		t.Fatalf("expected HalfOpen after one success (successThreshold=2), got %v", cb.State())
	}

	// Second consecutive success closes the circuit.
	_, err = cb.Execute(func() (interface{}, error) { return "ok", nil })
	if err != nil {
		t.Fatalf("expected second probe to be admitted, got %v", err)
	}
	if cb.State() != StateClosed {
		t.Errorf("expected Closed after successThreshold consecutive probes, got %v", cb.State())
	}
}

func TestCircuitBreaker_HalfOpen_FailureReopens(t *testing.T) {
	cb := New(testConfig())
	testErr := errors.New("boom")

	for i := 0; i < 3; i++ {
		_, _ = cb.Execute(func() (interface{}, error) { return nil, testErr })
	}
	time.Sleep(60 * time.Millisecond)

	_, err := cb.Execute(func() (interface{}, error) { return nil, testErr })
	if !errors.Is(err, testErr) {
		t.Fatalf("expected probe failure to propagate, got %v", err)
	}
	if cb.State() != StateOpen {
		t.Errorf("expected any half-open failure to reopen circuit, got %v", cb.State())
	}
}

func TestCircuitBreaker_HalfOpen_RespectsMaxCalls(t *testing.T) {
	cfg := testConfig()
	cfg.HalfOpenMaxCalls = 1
	cfg.SuccessThreshold = 5 // never close within this test
	cb := New(cfg)
	testErr := errors.New("boom")

	for i := 0; i < 3; i++ {
		_, _ = cb.Execute(func() (interface{}, error) { return nil, testErr })
	}
	time.Sleep(60 * time.Millisecond)

	release := make(chan struct{})
	started := make(chan struct{})
	go func() {
		_, _ = cb.Execute(func() (interface{}, error) {
			close(started)
			<-release
			return "ok", nil
		})
	}()
	<-started

	_, err := cb.Execute(func() (interface{}, error) {
		t.Error("second concurrent half-open probe should not be admitted")
		return nil, nil
	})
	if !errors.Is(err, ErrOpenState) {
		t.Errorf("expected ErrOpenState when half-open slots exhausted, got %v", err)
	}
	close(release)
}

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig("test")

	if cfg.Name != "test" {
		t.Errorf("expected Name='test', got %q", cfg.Name)
	}
	if cfg.FailureThreshold != 5 {
		t.Errorf("expected FailureThreshold=5, got %d", cfg.FailureThreshold)
	}
	if cfg.SuccessThreshold != 2 {
		t.Errorf("expected SuccessThreshold=2, got %d", cfg.SuccessThreshold)
	}
	if cfg.Timeout != 60*time.Second {
		t.Errorf("expected Timeout=60s, got %v", cfg.Timeout)
	}
	if cfg.HalfOpenMaxCalls != 3 {
		t.Errorf("expected HalfOpenMaxCalls=3, got %d", cfg.HalfOpenMaxCalls)
	}
}

func TestFeedFetchConfig(t *testing.T) {
	cfg := FeedFetchConfig()
	if cfg.Name != "feed-fetch" {
		t.Errorf("expected Name='feed-fetch', got %q", cfg.Name)
	}
	if cfg.FailureThreshold != 6 {
		t.Errorf("expected FailureThreshold=6, got %d", cfg.FailureThreshold)
	}
}

func TestWebScraperConfig(t *testing.T) {
	cfg := WebScraperConfig()
	if cfg.Name != "web-scraper" {
		t.Errorf("expected Name='web-scraper', got %q", cfg.Name)
	}
	if cfg.FailureThreshold != 3 {
		t.Errorf("expected FailureThreshold=3, got %d", cfg.FailureThreshold)
	}
}

func TestCircuitBreaker_Reset(t *testing.T) {
	cb := New(testConfig())
	testErr := errors.New("boom")
	for i := 0; i < 3; i++ {
		_, _ = cb.Execute(func() (interface{}, error) { return nil, testErr })
	}
	if cb.State() != StateOpen {
		t.Fatalf("expected Open before reset, got %v", cb.State())
	}

	cb.Reset()
	if cb.State() != StateClosed {
		t.Errorf("expected Closed after reset, got %v", cb.State())
	}
	stats := cb.Stats()
	if stats.ConsecutiveFailures != 0 {
		t.Errorf("expected ConsecutiveFailures=0 after reset, got %d", stats.ConsecutiveFailures)
	}
}
