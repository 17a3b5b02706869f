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
	"errors"
	"fmt"
)

// ReadCardUIDWithRetry wakes any card in the field and selects it, retrying
// on timeouts, collisions and framing errors. This covers a card that is
// still sliding into the field when the first attempt is made.
//
// A nil config uses ActivationRetryConfig. On failure uid is left zeroed.
func (d *Device) ReadCardUIDWithRetry(ctx context.Context, uid *UID, config *RetryConfig) error {
	if config == nil {
		config = ActivationRetryConfig()
	}

	attempt := 0
	err := retryOn(ctx, d.clock, config, func() error {
		attempt++
		uid.Reset()
		if _, err := d.WakeupA(); err != nil && !errors.Is(err, StatusCollision) {
			return err
		}
		return d.Select(uid, 0)
	})
	if err != nil {
		uid.Reset()
		return fmt.Errorf("read card UID after %d attempts: %w", attempt, err)
	}
	if attempt > 1 {
		Debugf("card UID %s read on attempt %d", uid.String(), attempt)
	}
	return nil
}
