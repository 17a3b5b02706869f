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
	"errors"

	"github.com/benbjohnson/clock"
)

// Option configures a Device in New.
type Option func(*Device) error

// WithClock sets the clock the polling budgets are measured with. Tests use
// a *clock.Mock advanced by the simulated chip.
func WithClock(c clock.Clock) Option {
	return func(d *Device) error {
		if c == nil {
			return errors.New("mfrc522: nil clock")
		}
		d.clock = c
		return nil
	}
}

// WithName sets the port name reported in errors and traces.
func WithName(name string) Option {
	return func(d *Device) error {
		d.name = name
		return nil
	}
}

// WithTracing records the last wire exchanges and attaches them to
// transport errors as a *TraceableError.
func WithTracing(enabled bool) Option {
	return func(d *Device) error {
		d.tracing = enabled
		return nil
	}
}

const traceDepth = 32
