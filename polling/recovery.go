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
	"context"
	"fmt"
	"time"

	"github.com/ZaparooProject/go-mfrc522"
	"github.com/ZaparooProject/go-mfrc522/internal/syncutil"
)

// DeviceRecoverer brings a reader back after the host slept.
type DeviceRecoverer interface {
	AttemptRecovery(ctx context.Context) error
	// GetDevice returns the device to poll from now on. A recovery may
	// have replaced it.
	GetDevice() *mfrc522.Device
}

// ReopenFunc opens the reader from scratch, e.g. once a USB-UART bridge
// has enumerated again.
type ReopenFunc func() (*mfrc522.Device, error)

// DefaultRecoverer re-runs Init on the current device and, when that fails
// and a ReopenFunc was given, swaps in a freshly opened one.
type DefaultRecoverer struct {
	device      *mfrc522.Device
	reopenFunc  ReopenFunc
	backoff     time.Duration
	maxAttempts int
	mu          syncutil.Mutex
}

// NewDefaultRecoverer builds a recoverer making up to maxAttempts rounds,
// backoff apart. Non-positive values fall back to 3 rounds and 500 ms.
func NewDefaultRecoverer(
	device *mfrc522.Device,
	reopenFunc ReopenFunc,
	backoff time.Duration,
	maxAttempts int,
) *DefaultRecoverer {
	r := &DefaultRecoverer{
		device:      device,
		reopenFunc:  reopenFunc,
		backoff:     backoff,
		maxAttempts: maxAttempts,
	}
	if r.maxAttempts <= 0 {
		r.maxAttempts = 3
	}
	if r.backoff <= 0 {
		r.backoff = 500 * time.Millisecond
	}
	return r
}

// AttemptRecovery runs recovery rounds until one succeeds, ctx ends or the
// rounds run out. The error of the last step tried is returned.
func (r *DefaultRecoverer) AttemptRecovery(ctx context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	var err error
	for round := 1; round <= r.maxAttempts; round++ {
		if round > 1 {
			if werr := r.pause(ctx); werr != nil {
				return werr
			}
		}
		if err = r.round(); err == nil {
			mfrc522.Debugf("reader recovered in round %d", round)
			return nil
		}
		mfrc522.Debugf("recovery round %d: %v", round, err)
	}
	return err
}

func (r *DefaultRecoverer) pause(ctx context.Context) error {
	t := r.device.Clock().Timer(r.backoff)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

func (r *DefaultRecoverer) round() error {
	initErr := r.device.Init()
	if initErr == nil {
		return nil
	}
	if r.reopenFunc == nil {
		return fmt.Errorf("reinitialize: %w", initErr)
	}

	_ = r.device.Close()
	fresh, err := r.reopenFunc()
	if err == nil {
		if err = fresh.Init(); err != nil {
			_ = fresh.Close()
		}
	}
	if err != nil {
		return fmt.Errorf("reopen: %w", err)
	}
	r.device = fresh
	return nil
}

// GetDevice returns the device in use after the latest recovery.
func (r *DefaultRecoverer) GetDevice() *mfrc522.Device {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.device
}
