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

package testing

import (
	"errors"
	"math/rand/v2"
	"time"

	"github.com/ZaparooProject/go-mfrc522/internal/syncutil"
)

// ErrInjected is the default error returned by FlakyConn.
var ErrInjected = errors.New("injected bus fault")

// Conn mirrors the driver's transport interface.
type Conn interface {
	Tx(w, r []byte) error
}

// FaultConfig configures FlakyConn.
type FaultConfig struct {
	// Err is returned for failed transfers. Nil means ErrInjected.
	Err error
	// FailFirst fails that many transfers before letting any through.
	FailFirst int
	// FailAfter lets that many transfers through and then fails every
	// later one, like a device that was unplugged. Zero disables it.
	FailAfter int
	// FailRate fails a random share (0.0-1.0) of transfers.
	FailRate float64
	// MaxLatency adds up to that much wall-clock delay per transfer.
	MaxLatency time.Duration
	// Seed makes FailRate and MaxLatency reproducible. Zero picks one.
	Seed uint64
}

// FlakyConn wraps a Conn and injects transfer failures, simulating a
// marginal SPI wire, a busy I2C bus or a USB-UART bridge going away.
// A failed transfer never reaches the backend.
type FlakyConn struct {
	backend Conn
	rng     *rand.Rand
	config  FaultConfig
	mu      syncutil.Mutex
	calls   int
	failed  int
}

// NewFlakyConn wraps backend with fault injection.
func NewFlakyConn(backend Conn, config FaultConfig) *FlakyConn {
	seed := config.Seed
	if seed == 0 {
		seed = rand.Uint64() //nolint:gosec // Test code, not crypto
	}
	if config.Err == nil {
		config.Err = ErrInjected
	}
	return &FlakyConn{
		backend: backend,
		config:  config,
		rng:     rand.New(rand.NewPCG(seed, seed^0xDEADBEEF)), //nolint:gosec // Test code, not crypto
	}
}

// Tx implements Conn.
func (f *FlakyConn) Tx(w, r []byte) error {
	f.mu.Lock()
	f.calls++
	fail := f.shouldFail()
	if fail {
		f.failed++
	}
	var delay time.Duration
	if f.config.MaxLatency > 0 {
		delay = time.Duration(f.rng.Int64N(int64(f.config.MaxLatency) + 1))
	}
	f.mu.Unlock()

	if delay > 0 {
		time.Sleep(delay)
	}
	if fail {
		return f.config.Err
	}
	return f.backend.Tx(w, r)
}

func (f *FlakyConn) shouldFail() bool {
	switch {
	case f.calls <= f.config.FailFirst:
		return true
	case f.config.FailAfter > 0 && f.calls > f.config.FailAfter:
		return true
	case f.config.FailRate > 0:
		return f.rng.Float64() < f.config.FailRate
	default:
		return false
	}
}

// Calls returns the number of Tx calls, failed or not.
func (f *FlakyConn) Calls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

// Failed returns the number of injected failures.
func (f *FlakyConn) Failed() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.failed
}

// Close closes the backend when it can be closed.
func (f *FlakyConn) Close() error {
	if c, ok := f.backend.(interface{ Close() error }); ok {
		return c.Close()
	}
	return nil
}
