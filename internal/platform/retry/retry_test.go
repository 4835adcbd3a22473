package retry

import (
	"context"
	"errors"
	"testing"
	"time"
)

var errTransient = errors.New("throttled")

func TestDo_SucceedsFirstAttempt(t *testing.T) {
	p := Policy{Attempts: 3, Initial: time.Millisecond, Transient: func(error) bool { return true }}
	calls := 0
	err := p.Do(context.Background(), func() error {
		calls++
		return nil
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if calls != 1 {
		t.Fatalf("expected 1 call, got %d", calls)
	}
}

func TestDo_RetriesTransientUpToAttempts(t *testing.T) {
	p := Policy{Attempts: 3, Initial: time.Millisecond, Transient: func(err error) bool { return errors.Is(err, errTransient) }}
	calls := 0
	err := p.Do(context.Background(), func() error {
		calls++
		return errTransient
	})
	if !errors.Is(err, errTransient) {
		t.Fatalf("unexpected error: %v", err)
	}
	if calls != 3 {
		t.Fatalf("expected 3 calls, got %d", calls)
	}
}

func TestDo_RecoversMidway(t *testing.T) {
	p := Policy{Attempts: 3, Initial: time.Millisecond, Transient: func(error) bool { return true }}
	calls := 0
	err := p.Do(context.Background(), func() error {
		calls++
		if calls < 2 {
			return errTransient
		}
		return nil
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if calls != 2 {
		t.Fatalf("expected 2 calls, got %d", calls)
	}
}

func TestDo_PermanentErrorStopsImmediately(t *testing.T) {
	permanent := errors.New("access denied")
	p := Policy{Attempts: 3, Initial: time.Millisecond, Transient: func(err error) bool { return errors.Is(err, errTransient) }}
	calls := 0
	err := p.Do(context.Background(), func() error {
		calls++
		return permanent
	})
	if !errors.Is(err, permanent) {
		t.Fatalf("unexpected error: %v", err)
	}
	if calls != 1 {
		t.Fatalf("expected 1 call, got %d", calls)
	}
}

func TestDo_CanceledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	p := Policy{Attempts: 3, Initial: 10 * time.Millisecond, Transient: func(error) bool { return true }}
	calls := 0
	err := p.Do(ctx, func() error {
		calls++
		return errTransient
	})
	if err == nil {
		t.Fatalf("expected error")
	}
	if calls != 1 {
		t.Fatalf("expected 1 call before cancellation, got %d", calls)
	}
}

func TestDefaultPolicy(t *testing.T) {
	p := DefaultPolicy(nil)
	if p.Attempts != 3 {
		t.Fatalf("unexpected attempts: %d", p.Attempts)
	}
	if p.Initial != 500*time.Millisecond {
		t.Fatalf("unexpected initial: %v", p.Initial)
	}
}
