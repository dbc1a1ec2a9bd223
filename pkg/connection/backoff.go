package connection

import (
	"context"
	"errors"
	"fmt"
	"math/rand/v2"
	"time"
)

// Defaults for polling a starting server.
const (
	InitialBackoff    = 50 * time.Millisecond
	MaxBackoff        = 1 * time.Second
	BackoffMultiplier = 2.0

	// JitterFactor is the maximum jitter as a fraction of the base delay.
	JitterFactor = 0.25
)

// ErrWaitTimeout is returned by Wait when the condition never held.
var ErrWaitTimeout = errors.New("wait timed out")

// BackoffConfig holds the backoff parameters. Zero fields take the
// defaults, except Jitter where zero disables jitter.
type BackoffConfig struct {
	Initial    time.Duration
	Max        time.Duration
	Multiplier float64
	Jitter     float64
}

// DefaultBackoffConfig returns the default backoff parameters.
func DefaultBackoffConfig() BackoffConfig {
	return BackoffConfig{
		Initial:    InitialBackoff,
		Max:        MaxBackoff,
		Multiplier: BackoffMultiplier,
		Jitter:     JitterFactor,
	}
}

func (c BackoffConfig) normalized() BackoffConfig {
	if c.Initial <= 0 {
		c.Initial = InitialBackoff
	}
	if c.Max <= 0 {
		c.Max = MaxBackoff
	}
	c.Max = max(c.Max, c.Initial)
	if c.Multiplier <= 1 {
		c.Multiplier = BackoffMultiplier
	}
	c.Jitter = max(c.Jitter, 0)
	return c
}

// Backoff produces growing delays between probes. It is not safe for
// concurrent use; each waiter owns one.
type Backoff struct {
	cfg      BackoffConfig
	base     time.Duration
	attempts int
	rng      *rand.Rand
}

// NewBackoff returns a Backoff with the default parameters.
func NewBackoff() *Backoff {
	return NewBackoffWithConfig(DefaultBackoffConfig())
}

// NewBackoffWithConfig returns a Backoff with custom parameters.
func NewBackoffWithConfig(cfg BackoffConfig) *Backoff {
	cfg = cfg.normalized()
	seed := uint64(time.Now().UnixNano())
	return &Backoff{
		cfg:  cfg,
		base: cfg.Initial,
		rng:  rand.New(rand.NewPCG(seed, seed>>32)),
	}
}

// Next returns the delay before the next probe, jitter included.
func (b *Backoff) Next() time.Duration {
	d := b.base
	if b.cfg.Jitter > 0 {
		d += time.Duration(float64(d) * b.cfg.Jitter * b.rng.Float64())
	}
	b.attempts++
	b.base = min(time.Duration(float64(b.base)*b.cfg.Multiplier), b.cfg.Max)
	return d
}

// Reset starts the sequence over.
func (b *Backoff) Reset() {
	b.base = b.cfg.Initial
	b.attempts = 0
}

// Attempts returns the number of delays handed out since the last reset.
func (b *Backoff) Attempts() int { return b.attempts }

// Wait calls cond until it returns nil, sleeping b.Next() between
// attempts. It gives up when timeout elapses or ctx is done; the returned
// error wraps ErrWaitTimeout and the last error of cond.
func (b *Backoff) Wait(ctx context.Context, timeout time.Duration, cond func(ctx context.Context) error) error {
	if timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	for {
		err := cond(ctx)
		if err == nil {
			b.Reset()
			return nil
		}

		t := time.NewTimer(b.Next())
		select {
		case <-t.C:
		case <-ctx.Done():
			t.Stop()
			return fmt.Errorf("%w after %d attempts: %w", ErrWaitTimeout, b.Attempts(), err)
		}
	}
}
