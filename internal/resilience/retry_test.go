package resilience

import (
	"context"
	"errors"
	"net/http"
	"testing"
	"time"
)

func fastConfig() RetryConfig {
	return RetryConfig{
		MaxAttempts:    3,
		InitialBackoff: 1 * time.Millisecond,
		MaxBackoff:     10 * time.Millisecond,
		Multiplier:     2.0,
	}
}

func TestDo_SuccessOnFirstAttempt(t *testing.T) {
	var calls int
	err := Do(context.Background(), DefaultRetryConfig(), func(_ context.Context) error {
		calls++
		return nil
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if calls != 1 {
		t.Errorf("expected 1 call, got %d", calls)
	}
}

func TestDo_SuccessAfterRetry(t *testing.T) {
	var calls int
	err := Do(context.Background(), fastConfig(), func(_ context.Context) error {
		calls++
		if calls < 3 {
			return NewTransientError(errors.New("throttled"), http.StatusTooManyRequests)
		}
		return nil
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if calls != 3 {
		t.Errorf("expected 3 calls, got %d", calls)
	}
}

func TestDo_ExhaustsRetries(t *testing.T) {
	var calls int
	err := Do(context.Background(), fastConfig(), func(_ context.Context) error {
		calls++
		return NewTransientError(errors.New("always fails"), 503)
	})
	if err == nil {
		t.Fatal("expected error after exhausting retries")
	}
	if calls != 3 {
		t.Errorf("expected 3 calls, got %d", calls)
	}
}

func TestDo_NonTransientError_NoRetry(t *testing.T) {
	var calls int
	err := Do(context.Background(), fastConfig(), func(_ context.Context) error {
		calls++
		return errors.New("422 unprocessable")
	})
	if err == nil {
		t.Fatal("expected error")
	}
	if calls != 1 {
		t.Errorf("expected 1 call, got %d", calls)
	}
}

func TestDo_ContextCancelled_StopsRetrying(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	var calls int
	err := Do(ctx, fastConfig(), func(_ context.Context) error {
		calls++
		cancel()
		return NewTransientError(errors.New("boom"), 500)
	})
	if err == nil {
		t.Fatal("expected error")
	}
	if calls != 1 {
		t.Errorf("expected 1 call, got %d", calls)
	}
}

func TestDoVal_ReturnsValue(t *testing.T) {
	var calls int
	v, err := DoVal(context.Background(), fastConfig(), func(_ context.Context) (string, error) {
		calls++
		if calls == 1 {
			return "", NewTransientError(errors.New("blip"), 502)
		}
		return "page", nil
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if v != "page" {
		t.Errorf("expected page, got %q", v)
	}
}

func TestDoVal_HonorsRetryAfterUpToMaxBackoff(t *testing.T) {
	cfg := fastConfig()
	cfg.MaxAttempts = 2
	cfg.MaxBackoff = 20 * time.Millisecond

	start := time.Now()
	var calls int
	_, err := DoVal(context.Background(), cfg, func(_ context.Context) (int, error) {
		calls++
		if calls == 1 {
			te := NewTransientError(errors.New("throttled"), 429)
			te.RetryAfter = time.Hour
			return 0, te
		}
		return 1, nil
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	elapsed := time.Since(start)
	if elapsed < 20*time.Millisecond || elapsed > time.Second {
		t.Errorf("expected delay capped at MaxBackoff, took %v", elapsed)
	}
}

func TestIsTransientHTTPStatus(t *testing.T) {
	for _, code := range []int{408, 429, 500, 502, 503, 504} {
		if !IsTransientHTTPStatus(code) {
			t.Errorf("expected %d to be transient", code)
		}
	}
	for _, code := range []int{200, 400, 401, 404, 422} {
		if IsTransientHTTPStatus(code) {
			t.Errorf("expected %d to be permanent", code)
		}
	}
}

func TestParseRetryAfter(t *testing.T) {
	h := http.Header{}
	if got := ParseRetryAfter(h); got != 0 {
		t.Errorf("expected 0 for missing header, got %v", got)
	}
	h.Set("Retry-After", "2.0")
	if got := ParseRetryAfter(h); got != 2*time.Second {
		t.Errorf("expected 2s, got %v", got)
	}
	h.Set("Retry-After", "soon")
	if got := ParseRetryAfter(h); got != 0 {
		t.Errorf("expected 0 for garbage, got %v", got)
	}
}

func TestIsTransient_WrappedChain(t *testing.T) {
	base := errors.New("inner")
	wrapped := errors.Join(errors.New("outer"), NewTransientError(base, 503))
	if !IsTransient(wrapped) {
		t.Error("expected wrapped transient error to be detected")
	}
	if IsTransient(nil) {
		t.Error("nil is not transient")
	}
	if IsTransient(errors.New("bad request")) {
		t.Error("plain error is not transient")
	}
}
