package retry

import (
	"context"
	"errors"
	"testing"
)

func TestDoSucceedsAfterFailures(t *testing.T) {
	calls := 0
	got, err := Do(context.Background(), 3, 0, func(context.Context) (int, error) {
		calls++
		if calls < 3 {
			return 0, errors.New("transient")
		}
		return 42, nil
	})
	if err != nil || got != 42 || calls != 3 {
		t.Errorf("Do() = %d, %v after %d calls", got, err, calls)
	}
}

func TestDoReturnsLastError(t *testing.T) {
	calls := 0
	last := errors.New("second")
	_, err := Do(context.Background(), 2, 0, func(context.Context) (string, error) {
		calls++
		if calls == 1 {
			return "", errors.New("first")
		}
		return "", last
	})
	if !errors.Is(err, last) || calls != 2 {
		t.Errorf("Do() error = %v after %d calls", err, calls)
	}
}

func TestDoStopsOnCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	calls := 0
	err := DoErr(ctx, 5, 0, func(context.Context) error {
		calls++
		cancel()
		return context.Canceled
	})
	if !errors.Is(err, context.Canceled) || calls != 1 {
		t.Errorf("DoErr() = %v after %d calls", err, calls)
	}
}

func TestDoDefaultsToOneTry(t *testing.T) {
	calls := 0
	_ = DoErr(context.Background(), 0, 0, func(context.Context) error {
		calls++
		return errors.New("x")
	})
	if calls != 1 {
		t.Errorf("calls = %d, want 1", calls)
	}
}
