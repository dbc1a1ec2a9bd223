package connection

import (
	"context"
	"errors"
	"testing"
	"time"
)

func TestBackoff(t *testing.T) {
	t.Run("DefaultSequence", func(t *testing.T) {
		cfg := DefaultBackoffConfig()
		cfg.Jitter = 0
		b := NewBackoffWithConfig(cfg)

		expected := []time.Duration{
			50 * time.Millisecond,
			100 * time.Millisecond,
			200 * time.Millisecond,
			400 * time.Millisecond,
			800 * time.Millisecond,
			MaxBackoff,
			MaxBackoff,
		}
		for i, exp := range expected {
			if got := b.Next(); got != exp {
				t.Errorf("Attempt %d: got %v, want %v", i, got, exp)
			}
		}
	})

	t.Run("Jitter", func(t *testing.T) {
		upper := time.Duration(float64(InitialBackoff) * (1 + JitterFactor))
		samples := make([]time.Duration, 10)
		for i := range samples {
			samples[i] = NewBackoff().Next()
			if samples[i] < InitialBackoff || samples[i] > upper {
				t.Errorf("Sample %d: %v out of expected range [%v, %v]", i, samples[i], InitialBackoff, upper)
			}
		}

		allSame := true
		for i := 1; i < len(samples); i++ {
			if samples[i] != samples[0] {
				allSame = false
				break
			}
		}
		if allSame {
			t.Error("All jittered samples are identical - jitter may not be working")
		}
	})

	t.Run("Reset", func(t *testing.T) {
		b := NewBackoffWithConfig(BackoffConfig{Initial: 10 * time.Millisecond})
		for i := 1; i <= 5; i++ {
			b.Next()
			if b.Attempts() != i {
				t.Errorf("After %d calls, Attempts() = %d", i, b.Attempts())
			}
		}

		b.Reset()

		if b.Attempts() != 0 {
			t.Errorf("Attempts() = %d after reset, want 0", b.Attempts())
		}
		if got := b.Next(); got != 10*time.Millisecond {
			t.Errorf("Next() = %v after reset, want 10ms", got)
		}
	})

	t.Run("CustomConfig", func(t *testing.T) {
		b := NewBackoffWithConfig(BackoffConfig{
			Initial:    100 * time.Millisecond,
			Max:        500 * time.Millisecond,
			Multiplier: 2.0,
		})

		expected := []time.Duration{
			100 * time.Millisecond,
			200 * time.Millisecond,
			400 * time.Millisecond,
			500 * time.Millisecond, // Max
			500 * time.Millisecond,
		}
		for i, exp := range expected {
			if got := b.Next(); got != exp {
				t.Errorf("Attempt %d: got %v, want %v", i, got, exp)
			}
		}
	})

	t.Run("MaxBelowInitial", func(t *testing.T) {
		b := NewBackoffWithConfig(BackoffConfig{Initial: time.Second, Max: time.Millisecond})
		b.Next()
		if got := b.Next(); got != time.Second {
			t.Errorf("Next() = %v, want the initial delay as cap", got)
		}
	})
}

func TestWait(t *testing.T) {
	fast := BackoffConfig{Initial: time.Millisecond, Max: 5 * time.Millisecond, Jitter: 0}

	t.Run("SucceedsEventually", func(t *testing.T) {
		b := NewBackoffWithConfig(fast)
		calls := 0
		err := b.Wait(context.Background(), time.Second, func(context.Context) error {
			calls++
			if calls < 4 {
				return errors.New("not yet")
			}
			return nil
		})
		if err != nil {
			t.Fatalf("Wait() error = %v", err)
		}
		if calls != 4 {
			t.Errorf("calls = %d, want 4", calls)
		}
		if b.Attempts() != 0 {
			t.Errorf("Attempts() = %d after success, want 0", b.Attempts())
		}
	})

	t.Run("TimesOut", func(t *testing.T) {
		b := NewBackoffWithConfig(fast)
		refused := errors.New("refused")
		err := b.Wait(context.Background(), 30*time.Millisecond, func(context.Context) error {
			return refused
		})
		if !errors.Is(err, ErrWaitTimeout) {
			t.Errorf("Wait() error = %v, want ErrWaitTimeout", err)
		}
		if !errors.Is(err, refused) {
			t.Errorf("Wait() error = %v, want it to wrap the last failure", err)
		}
	})

	t.Run("ContextCanceled", func(t *testing.T) {
		b := NewBackoffWithConfig(fast)
		ctx, cancel := context.WithCancel(context.Background())
		cancel()
		err := b.Wait(ctx, 0, func(context.Context) error { return errors.New("down") })
		if !errors.Is(err, ErrWaitTimeout) {
			t.Errorf("Wait() error = %v, want ErrWaitTimeout", err)
		}
	})
}
