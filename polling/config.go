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

package polling

import (
	"errors"
	"fmt"
	"time"
)

// Config tunes a Session.
type Config struct {
	// PollInterval separates WUPA cycles while a card is present or was
	// seen recently.
	PollInterval time.Duration
	// IdleInterval takes over once the field has been empty for IdleAfter.
	// Zero keeps PollInterval throughout.
	IdleInterval time.Duration
	IdleAfter    time.Duration
	// CardRemovalTimeout is how long a card may go unseen before
	// OnCardRemoved fires. Give it at least two poll intervals.
	CardRemovalTimeout time.Duration
	// MaxConsecutiveErrors ends Start after that many failed cycles in a
	// row. Empty-field cycles do not count; zero means never.
	MaxConsecutiveErrors int
	SleepRecovery        SleepRecoveryConfig
}

// DefaultConfig polls ten times a second, drops to four once the field has
// been empty for five seconds, and reports removal after 350 ms.
func DefaultConfig() *Config {
	return &Config{
		PollInterval:         100 * time.Millisecond,
		IdleInterval:         250 * time.Millisecond,
		IdleAfter:            5 * time.Second,
		CardRemovalTimeout:   350 * time.Millisecond,
		MaxConsecutiveErrors: 10,
		SleepRecovery:        DefaultSleepRecoveryConfig(),
	}
}

// ErrInvalidConfig wraps every Validate failure.
var ErrInvalidConfig = errors.New("invalid polling config")

// Validate rejects settings the polling loop cannot honour.
func (c *Config) Validate() error {
	switch {
	case c.PollInterval <= 0:
		return fmt.Errorf("%w: poll interval %v is not positive", ErrInvalidConfig, c.PollInterval)
	case c.CardRemovalTimeout <= c.PollInterval:
		return fmt.Errorf("%w: removal timeout %v does not exceed poll interval %v",
			ErrInvalidConfig, c.CardRemovalTimeout, c.PollInterval)
	case c.IdleInterval < 0 || c.IdleAfter < 0:
		return fmt.Errorf("%w: negative idle setting", ErrInvalidConfig)
	case c.MaxConsecutiveErrors < 0:
		return fmt.Errorf("%w: negative error limit", ErrInvalidConfig)
	case c.SleepRecovery.MaxRecoveryAttempts < 0 || c.SleepRecovery.RecoveryBackoff < 0:
		return fmt.Errorf("%w: negative sleep recovery setting", ErrInvalidConfig)
	}
	return nil
}

// interval picks the delay before the next cycle given whether a card is
// in the field and how long ago one was last seen.
func (c *Config) interval(present bool, sinceCard time.Duration) time.Duration {
	if c.IdleInterval > 0 && !present && sinceCard > c.IdleAfter {
		return c.IdleInterval
	}
	return c.PollInterval
}

// SleepRecoveryConfig controls what happens after the host slept. A cycle
// that starts far later than scheduled means the reader lost power or its
// bus was reset underneath us.
type SleepRecoveryConfig struct {
	// TimeDiscontinuityThreshold is the lateness, beyond the poll
	// interval, taken as a sleep.
	TimeDiscontinuityThreshold time.Duration
	// MaxRecoveryAttempts bounds recovery before Start gives up.
	MaxRecoveryAttempts int
	RecoveryBackoff     time.Duration
	Enabled             bool
}

// DefaultSleepRecoveryConfig treats two seconds of lateness as a sleep and
// tries recovery three times, half a second apart.
func DefaultSleepRecoveryConfig() SleepRecoveryConfig {
	return SleepRecoveryConfig{
		TimeDiscontinuityThreshold: 2 * time.Second,
		MaxRecoveryAttempts:        3,
		RecoveryBackoff:            500 * time.Millisecond,
		Enabled:                    true,
	}
}

// DetectSleep reports whether a cycle that took elapsed, against a
// scheduled pollInterval, points to a host sleep.
func (c SleepRecoveryConfig) DetectSleep(elapsed, pollInterval time.Duration) bool {
	return c.Enabled && elapsed > pollInterval+c.TimeDiscontinuityThreshold
}
