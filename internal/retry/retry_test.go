package retry

import (
	"context"
	"errors"
	"testing"
	"time"
)

func TestDoStopsAfterAttemptBudget(t *testing.T) {
	spec := Spec{Attempts: 5, Pause: time.Millisecond}

	calls := 0
	err := spec.Do(context.Background(), func() error {
		calls++
		return errors.New("still down")
	})
	if err == nil {
		t.Fatal("expected the last attempt's error")
	}
	if calls != 5 {
		t.Fatalf("expected 5 attempts, got %d", calls)
	}
}

func TestDoReturnsOnFirstSuccess(t *testing.T) {
	spec := Spec{Attempts: 10, Pause: time.Millisecond}

	calls := 0
	err := spec.Do(context.Background(), func() error {
		calls++
		if calls < 3 {
			return errors.New("not yet")
		}
		return nil
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if calls != 3 {
		t.Fatalf("expected 3 attempts, got %d", calls)
	}
}

func TestDoHonorsContextCancellation(t *testing.T) {
	spec := Spec{Attempts: 100, Pause: 50 * time.Millisecond}

	ctx, cancel := context.WithCancel(context.Background())
	calls := 0
	go func() {
		time.Sleep(10 * time.Millisecond)
		cancel()
	}()
	_ = spec.Do(ctx, func() error {
		calls++
		return errors.New("down")
	})
	if calls >= 100 {
		t.Fatalf("cancellation did not stop the retry loop, %d attempts", calls)
	}
}

func TestTotal(t *testing.T) {
	spec := Spec{Attempts: 40, Pause: 500 * time.Millisecond}
	if spec.Total() != 20*time.Second {
		t.Fatalf("unexpected total: %v", spec.Total())
	}
}
