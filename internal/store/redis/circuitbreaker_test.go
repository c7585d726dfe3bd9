package redis

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"
)

var errFail = errors.New("fail")

func TestCircuitBreaker_OpensAfterFailures(t *testing.T) {
	cb := NewCircuitBreaker(3, 100*time.Millisecond)
	if cb.CurrentState() != StateClosed {
		t.Fatalf("expected Closed at start, got %v", cb.CurrentState())
	}

	for i := 0; i < 3; i++ {
		if err := cb.Execute(func() error { return errFail }); err != errFail {
			t.Fatalf("expected errFail, got %v", err)
		}
	}

	if cb.CurrentState() != StateOpen {
		t.Errorf("expected Open after 3 failures, got %v", cb.CurrentState())
	}

	// Calls are rejected immediately while open
	if err := cb.Execute(func() error { return nil }); err != ErrCircuitOpen {
		t.Errorf("expected ErrCircuitOpen, got %v", err)
	}
}

func TestCircuitBreaker_HalfOpenRecovery(t *testing.T) {
	cb := NewCircuitBreaker(2, 50*time.Millisecond)

	for i := 0; i < 2; i++ {
		cb.Execute(func() error { return errFail })
	}
	if cb.CurrentState() != StateOpen {
		t.Fatal("expected Open")
	}

	time.Sleep(60 * time.Millisecond)

	// Successful probe closes the circuit
	if err := cb.Execute(func() error { return nil }); err != nil {
		t.Fatalf("expected nil, got %v", err)
	}
	if cb.CurrentState() != StateClosed {
		t.Errorf("expected Closed after successful probe, got %v", cb.CurrentState())
	}
}

func TestCircuitBreaker_HalfOpenFailureReopens(t *testing.T) {
	cb := NewCircuitBreaker(2, 50*time.Millisecond)

	for i := 0; i < 2; i++ {
		cb.Execute(func() error { return errFail })
	}

	time.Sleep(60 * time.Millisecond)
	cb.Execute(func() error { return errFail })

	if cb.CurrentState() != StateOpen {
		t.Errorf("expected Open after failed probe, got %v", cb.CurrentState())
	}
}

func TestCircuitBreaker_SuccessResetsFailureCount(t *testing.T) {
	cb := NewCircuitBreaker(3, 100*time.Millisecond)

	cb.Execute(func() error { return errFail })
	cb.Execute(func() error { return errFail })
	cb.Execute(func() error { return nil }) // resets counter

	cb.Execute(func() error { return errFail })
	cb.Execute(func() error { return errFail })

	if cb.CurrentState() != StateClosed {
		t.Errorf("expected Closed (counter should have reset), got %v", cb.CurrentState())
	}
}

func TestCircuitBreaker_CanceledPublishDoesNotTrip(t *testing.T) {
	cb := NewCircuitBreaker(1, 100*time.Millisecond)

	// Shutdown in flight: the error surfaces but is not a Redis failure.
	err := cb.Execute(func() error {
		return fmt.Errorf("publish: %w", context.Canceled)
	})
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected canceled error to surface, got %v", err)
	}
	if cb.CurrentState() != StateClosed {
		t.Fatalf("canceled publish must not trip the breaker, got %v", cb.CurrentState())
	}

	// A genuine failure still trips at the same threshold.
	cb.Execute(func() error { return errFail })
	if cb.CurrentState() != StateOpen {
		t.Fatalf("expected Open after a real failure, got %v", cb.CurrentState())
	}
}

func TestCircuitBreaker_HalfOpenAllowsSingleProbe(t *testing.T) {
	cb := NewCircuitBreaker(1, 50*time.Millisecond)
	cb.Execute(func() error { return errFail })
	time.Sleep(60 * time.Millisecond)

	// While the probe is in flight, a second call is rejected.
	probeErr := cb.Execute(func() error {
		if err := cb.Execute(func() error { return nil }); err != ErrCircuitOpen {
			t.Errorf("concurrent call during probe must be rejected, got %v", err)
		}
		return nil
	})
	if probeErr != nil {
		t.Fatalf("probe failed: %v", probeErr)
	}
	if cb.CurrentState() != StateClosed {
		t.Fatalf("expected Closed after successful probe, got %v", cb.CurrentState())
	}
}

func TestCircuitBreaker_OnStateChangeCallback(t *testing.T) {
	var transitions []State
	cb := NewCircuitBreaker(1, 50*time.Millisecond)
	cb.OnStateChange = func(from, to State) {
		transitions = append(transitions, to)
	}

	cb.Execute(func() error { return errFail })
	if len(transitions) != 1 || transitions[0] != StateOpen {
		t.Fatalf("expected [Open], got %v", transitions)
	}

	time.Sleep(60 * time.Millisecond)
	cb.Execute(func() error { return nil })

	if len(transitions) != 3 || transitions[1] != StateHalfOpen || transitions[2] != StateClosed {
		t.Errorf("expected [Open, HalfOpen, Closed], got %v", transitions)
	}
}
