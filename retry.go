// Copyright 2026 The Zaparoo Project Contributors.
// SPDX-License-Identifier: Apache-2.0
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package mfrc522

import (
	"context"
	"fmt"
	"math/rand/v2"
	"time"

	"github.com/benbjohnson/clock"
)

// RetryConfig controls how a failed bus transfer or card activation is
// repeated. Only errors for which IsRetryable holds are retried.
type RetryConfig struct {
	// MaxAttempts counts the first try. Zero or one means no retry.
	MaxAttempts int
	// InitialBackoff is the wait before the second attempt.
	InitialBackoff time.Duration
	// MaxBackoff caps the wait between attempts.
	MaxBackoff time.Duration
	// BackoffMultiplier grows the wait after every failed attempt.
	BackoffMultiplier float64
	// Jitter adds up to this fraction of the wait, from 0.0 to 1.0.
	Jitter float64
	// RetryTimeout bounds all attempts together. Zero means no bound.
	RetryTimeout time.Duration
}

// DefaultRetryConfig suits register transfers on a marginal bus.
func DefaultRetryConfig() *RetryConfig {
	return &RetryConfig{
		MaxAttempts:       3,
		InitialBackoff:    10 * time.Millisecond,
		MaxBackoff:        1 * time.Second,
		BackoffMultiplier: 2.0,
		Jitter:            0.1,
		RetryTimeout:      5 * time.Second,
	}
}

// ActivationRetryConfig is tuned for REQA/WUPA and SELECT against a card
// that is still sliding into the field: short backoff, more attempts.
func ActivationRetryConfig() *RetryConfig {
	return &RetryConfig{
		MaxAttempts:       ActivationRetries,
		InitialBackoff:    ActivationInitialBackoff,
		MaxBackoff:        ActivationMaxBackoff,
		BackoffMultiplier: 2.0,
		Jitter:            0.1,
		RetryTimeout:      ActivationRetryTimeout,
	}
}

// ConnectionRetryConfig is used when opening a transport and probing the
// chip version.
func ConnectionRetryConfig() *RetryConfig {
	return &RetryConfig{
		MaxAttempts:       DefaultConnectionRetries,
		InitialBackoff:    ConnectionInitialBackoff,
		MaxBackoff:        ConnectionMaxBackoff,
		BackoffMultiplier: ConnectionBackoffMultiplier,
		Jitter:            ConnectionJitter,
		RetryTimeout:      ConnectionRetryTimeout,
	}
}

// Validate rejects settings that would make the backoff shrink or go
// negative.
func (c *RetryConfig) Validate() error {
	switch {
	case c.MaxAttempts < 0:
		return fmt.Errorf("%w: negative MaxAttempts %d", StatusInvalid, c.MaxAttempts)
	case c.InitialBackoff < 0 || c.MaxBackoff < 0 || c.RetryTimeout < 0:
		return fmt.Errorf("%w: negative duration", StatusInvalid)
	case c.MaxBackoff > 0 && c.InitialBackoff > c.MaxBackoff:
		return fmt.Errorf("%w: InitialBackoff %s exceeds MaxBackoff %s", StatusInvalid, c.InitialBackoff, c.MaxBackoff)
	case c.MaxAttempts > 1 && c.BackoffMultiplier < 1:
		return fmt.Errorf("%w: BackoffMultiplier %.2f below 1", StatusInvalid, c.BackoffMultiplier)
	case c.Jitter < 0 || c.Jitter > 1:
		return fmt.Errorf("%w: Jitter %.2f outside 0..1", StatusInvalid, c.Jitter)
	default:
		return nil
	}
}

// RetryableFunc is one attempt of a retried operation.
type RetryableFunc func() error

// RetryWithConfig runs fn until it succeeds, fails with an error that is
// not retryable, or the attempts or RetryTimeout run out. The last
// attempt's error is returned. A nil config uses DefaultRetryConfig.
func RetryWithConfig(ctx context.Context, config *RetryConfig, fn RetryableFunc) error {
	return retryOn(ctx, clock.New(), config, fn)
}

// retryOn is RetryWithConfig with the waits taken on clk.
func retryOn(ctx context.Context, clk clock.Clock, config *RetryConfig, fn RetryableFunc) error {
	if config == nil {
		config = DefaultRetryConfig()
	}
	if config.MaxAttempts <= 1 {
		return fn()
	}
	if err := config.Validate(); err != nil {
		return err
	}

	if config.RetryTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, config.RetryTimeout)
		defer cancel()
	}

	b := newBackoff(config)
	var lastErr error
	for attempt := 1; ; attempt++ {
		if ctx.Err() != nil {
			if lastErr != nil {
				return lastErr
			}
			return fmt.Errorf("retry context cancelled: %w", ctx.Err())
		}

		lastErr = fn()
		if lastErr == nil || !IsRetryable(lastErr) || attempt == config.MaxAttempts {
			return lastErr
		}
		Debugf("attempt %d/%d failed: %v", attempt, config.MaxAttempts, lastErr)

		if err := sleepCtx(ctx, clk, b.next()); err != nil {
			return lastErr
		}
	}
}

// sleepCtx waits d on clk unless ctx ends first.
func sleepCtx(ctx context.Context, clk clock.Clock, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	timer := clk.Timer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// backoff yields the jittered waits between attempts.
type backoff struct {
	cur    time.Duration
	max    time.Duration
	factor float64
	jitter float64
}

func newBackoff(config *RetryConfig) *backoff {
	return &backoff{
		cur:    config.InitialBackoff,
		max:    config.MaxBackoff,
		factor: config.BackoffMultiplier,
		jitter: config.Jitter,
	}
}

// next returns the current wait plus jitter and grows the base for the
// following call.
func (b *backoff) next() time.Duration {
	wait := withJitter(b.cur, b.jitter)
	b.cur = grow(b.cur, b.factor, b.max)
	return wait
}

// grow multiplies d by factor, capped at limit when limit is set.
func grow(d time.Duration, factor float64, limit time.Duration) time.Duration {
	next := time.Duration(float64(d) * factor)
	if limit > 0 && next > limit {
		return limit
	}
	return next
}

// withJitter adds a random share of up to factor*d to d.
func withJitter(d time.Duration, factor float64) time.Duration {
	if factor <= 0 || d <= 0 {
		return d
	}
	return d + time.Duration(rand.Float64()*factor*float64(d)) //nolint:gosec // Backoff jitter, not crypto
}
