// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package orchestrator

import (
	"context"
	"math/rand/v2"
	"time"
)

const (
	// DefaultMaxAttempts is the number of calls made to a throttled model
	// before falling back.
	DefaultMaxAttempts = 3

	// DefaultBackoffBase is the delay before the second attempt.
	DefaultBackoffBase = 500 * time.Millisecond

	// DefaultBackoffMax caps every delay.
	DefaultBackoffMax = 10 * time.Second
)

// Sleeper waits for d or until ctx is done.
type Sleeper func(ctx context.Context, d time.Duration) error

// Jitter returns a random duration in [0, n).
type Jitter func(n time.Duration) time.Duration

// sleepContext is the default Sleeper.
func sleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// uniformJitter is the default Jitter.
func uniformJitter(n time.Duration) time.Duration {
	if n <= 0 {
		return 0
	}
	return time.Duration(rand.Int64N(int64(n)))
}

// Backoff computes retry delays: base*2^(attempt-1) plus jitter in
// [0, base), never more than Max.
type Backoff struct {
	Base   time.Duration
	Max    time.Duration
	Jitter Jitter
}

// Delay returns the wait after failed attempt number attempt (1-based).
func (b Backoff) Delay(attempt int) time.Duration {
	if attempt < 1 {
		attempt = 1
	}
	delay := b.Base
	for i := 1; i < attempt && (b.Max <= 0 || delay < b.Max); i++ {
		delay *= 2
	}
	if b.Jitter != nil {
		delay += b.Jitter(b.Base)
	}
	if b.Max > 0 && delay > b.Max {
		delay = b.Max
	}
	return delay
}
