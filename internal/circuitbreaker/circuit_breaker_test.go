package circuitbreaker

import (
	"context"
	"errors"
	"testing"
	"time"
)

var errBoom = errors.New("rpc timeout")

func testConfig() *Config {
	return &Config{
		Name:             "test",
		MaxFailures:      3,
		FailureThreshold: 0.5,
		Timeout:          20 * time.Millisecond,
		HalfOpenMaxCalls: 2,
	}
}

func TestOpensAfterConsecutiveFailures(t *testing.T) {
	cb := New(testConfig())
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		_ = cb.Execute(ctx, func() error { return errBoom })
	}
	if cb.State() != StateOpen {
		t.Fatalf("expected open state, got %s", cb.State())
	}

	// Calls fail fast while open
	err := cb.Execute(ctx, func() error { return nil })
	if err != ErrCircuitOpen {
		t.Errorf("expected ErrCircuitOpen, got %v", err)
	}
}

func TestHalfOpenRecovery(t *testing.T) {
	cb := New(testConfig())
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		_ = cb.Execute(ctx, func() error { return errBoom })
	}
	time.Sleep(25 * time.Millisecond)

	// Probes succeed: circuit closes
	for i := 0; i < 2; i++ {
		if err := cb.Execute(ctx, func() error { return nil }); err != nil {
			t.Fatalf("probe %d: %v", i, err)
		}
	}
	if cb.State() != StateClosed {
		t.Errorf("expected closed state after recovery, got %s", cb.State())
	}
}

func TestHalfOpenFailureReopens(t *testing.T) {
	cb := New(testConfig())
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		_ = cb.Execute(ctx, func() error { return errBoom })
	}
	time.Sleep(25 * time.Millisecond)

	_ = cb.Execute(ctx, func() error { return errBoom })
	if cb.State() != StateOpen {
		t.Errorf("expected reopened state, got %s", cb.State())
	}
}

func TestClosedSuccessesKeepCircuitClosed(t *testing.T) {
	cb := New(testConfig())
	ctx := context.Background()

	for i := 0; i < 10; i++ {
		if err := cb.Execute(ctx, func() error { return nil }); err != nil {
			t.Fatalf("call %d: %v", i, err)
		}
	}
	if cb.State() != StateClosed {
		t.Errorf("expected closed state, got %s", cb.State())
	}
}
