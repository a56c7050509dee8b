package resilience

import (
	"context"
	"errors"
	"testing"
	"time"
)

var errProvider = errors.New("provider down")

func fail(_ context.Context) (int, error)    { return 0, errProvider }
func succeed(_ context.Context) (int, error) { return 1, nil }

func TestBreaker_ClosedState_PassesThrough(t *testing.T) {
	b := NewBreaker(BreakerConfig{FailureThreshold: 3})

	v, err := Guard(context.Background(), b, succeed)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if v != 1 {
		t.Errorf("expected value 1, got %d", v)
	}
	if b.State() != CircuitClosed {
		t.Errorf("expected closed state, got %s", b.State())
	}
}

func TestBreaker_OpensAfterThreshold(t *testing.T) {
	b := NewBreaker(BreakerConfig{FailureThreshold: 3, ResetTimeout: time.Minute})

	for i := 0; i < 3; i++ {
		_, _ = Guard(context.Background(), b, fail)
	}

	if b.State() != CircuitOpen {
		t.Fatalf("expected open state, got %s", b.State())
	}

	_, err := Guard(context.Background(), b, func(_ context.Context) (int, error) {
		t.Error("should not be called when circuit is open")
		return 0, nil
	})
	if !errors.Is(err, ErrCircuitOpen) {
		t.Errorf("expected ErrCircuitOpen, got %v", err)
	}
}

func TestBreaker_SuccessResetsFailures(t *testing.T) {
	b := NewBreaker(BreakerConfig{FailureThreshold: 3, ResetTimeout: time.Minute})

	_, _ = Guard(context.Background(), b, fail)
	_, _ = Guard(context.Background(), b, fail)
	if got := b.Failures(); got != 2 {
		t.Fatalf("expected 2 failures, got %d", got)
	}

	_, _ = Guard(context.Background(), b, succeed)
	if got := b.Failures(); got != 0 {
		t.Errorf("expected failures reset, got %d", got)
	}
	if b.State() != CircuitClosed {
		t.Errorf("expected closed state, got %s", b.State())
	}
}

func TestBreaker_HalfOpenProbe(t *testing.T) {
	now := time.Now()
	b := NewBreaker(BreakerConfig{FailureThreshold: 1, ResetTimeout: 10 * time.Second})
	b.nowFunc = func() time.Time { return now }

	_, _ = Guard(context.Background(), b, fail)
	if b.State() != CircuitOpen {
		t.Fatalf("expected open, got %s", b.State())
	}

	now = now.Add(11 * time.Second)
	if b.State() != CircuitHalfOpen {
		t.Fatalf("expected half-open after timeout, got %s", b.State())
	}

	// A failed probe reopens.
	_, _ = Guard(context.Background(), b, fail)
	if b.State() != CircuitOpen {
		t.Fatalf("expected reopened after failed probe, got %s", b.State())
	}

	// A successful probe closes.
	now = now.Add(11 * time.Second)
	if _, err := Guard(context.Background(), b, succeed); err != nil {
		t.Fatalf("probe should pass: %v", err)
	}
	if b.State() != CircuitClosed {
		t.Errorf("expected closed after successful probe, got %s", b.State())
	}
}

func TestBreaker_IgnoresCallerCancellation(t *testing.T) {
	b := NewBreaker(BreakerConfig{FailureThreshold: 1})

	_, _ = Guard(context.Background(), b, func(_ context.Context) (int, error) {
		return 0, context.Canceled
	})
	if b.State() != CircuitClosed {
		t.Errorf("cancellation should not trip the breaker, got %s", b.State())
	}
}

func TestBreaker_DisabledNeverOpens(t *testing.T) {
	b := NewBreaker(BreakerConfig{})

	for i := 0; i < 50; i++ {
		_, _ = Guard(context.Background(), b, fail)
	}
	if b.State() != CircuitClosed {
		t.Errorf("disabled breaker should stay closed, got %s", b.State())
	}
}

func TestBreaker_StateChangeCallbackAndReset(t *testing.T) {
	var transitions []string
	b := NewBreaker(BreakerConfig{
		FailureThreshold: 1,
		ResetTimeout:     time.Minute,
		OnStateChange: func(from, to CircuitState) {
			transitions = append(transitions, from.String()+"->"+to.String())
		},
	})

	_, _ = Guard(context.Background(), b, fail)
	b.Reset()

	want := []string{"closed->open", "open->closed"}
	if len(transitions) != len(want) {
		t.Fatalf("expected %v, got %v", want, transitions)
	}
	for i := range want {
		if transitions[i] != want[i] {
			t.Errorf("transition %d: expected %s, got %s", i, want[i], transitions[i])
		}
	}
}

func TestCircuitState_String(t *testing.T) {
	tests := map[CircuitState]string{
		CircuitClosed:    "closed",
		CircuitOpen:      "open",
		CircuitHalfOpen:  "half-open",
		CircuitState(42): "unknown",
	}
	for s, want := range tests {
		if got := s.String(); got != want {
			t.Errorf("%d: expected %q, got %q", int(s), want, got)
		}
	}
}
