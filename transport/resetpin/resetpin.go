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

// Package resetpin opens the GPIO line wired to the MFRC522 NRSTPD pin.
package resetpin

import (
	"errors"
	"fmt"

	"periph.io/x/conn/v3/gpio"
	"periph.io/x/conn/v3/gpio/gpioreg"
	"periph.io/x/host/v3"
)

// ErrPinNotFound is returned when no GPIO with the requested name exists.
var ErrPinNotFound = errors.New("GPIO pin not found")

// Pin drives NRSTPD. It satisfies mfrc522.ResetPin and releases the line
// on Halt.
type Pin struct {
	out gpio.PinOut
}

// Open looks up name (e.g. "GPIO25" or "25") and drives it high so the
// chip leaves power-down.
func Open(name string) (*Pin, error) {
	if _, err := host.Init(); err != nil {
		return nil, fmt.Errorf("failed to initialize periph host: %w", err)
	}

	p := gpioreg.ByName(name)
	if p == nil {
		return nil, fmt.Errorf("%w: %s", ErrPinNotFound, name)
	}
	return New(p)
}

// New wraps an already resolved pin and drives it high.
func New(p gpio.PinOut) (*Pin, error) {
	if err := p.Out(gpio.High); err != nil {
		return nil, fmt.Errorf("failed to drive %s high: %w", p, err)
	}
	return &Pin{out: p}, nil
}

// Out implements mfrc522.ResetPin.
func (p *Pin) Out(l gpio.Level) error {
	if err := p.out.Out(l); err != nil {
		return fmt.Errorf("reset pin %s: %w", p.out, err)
	}
	return nil
}

// Halt releases the line.
func (p *Pin) Halt() error {
	if err := p.out.Halt(); err != nil {
		return fmt.Errorf("reset pin %s: %w", p.out, err)
	}
	return nil
}

// String returns the pin name.
func (p *Pin) String() string {
	return p.out.String()
}
