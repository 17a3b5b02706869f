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

// Package i2c provides the I2C transport for the MFRC522.
//
// On I2C the chip is addressed register by register (datasheet §8.1.3):
// a write sends the register address followed by data, a read sends the
// address and then reads. Reading one register several times in a row
// drains FIFODataReg in a single bus transfer.
package i2c

import (
	"fmt"
	"strconv"
	"strings"

	"periph.io/x/conn/v3/i2c"
	"periph.io/x/conn/v3/i2c/i2creg"
	"periph.io/x/conn/v3/physic"
	"periph.io/x/host/v3"

	"github.com/ZaparooProject/go-mfrc522"
)

const (
	// DefaultAddress is the 7-bit address with EA low and ADR_0..ADR_5
	// strapped to 0b101000. Boards differ; pass the actual address in the
	// bus path ("/dev/i2c-1:0x2C") when yours does.
	DefaultAddress = 0x28

	// Max clock frequency (fast mode, 400 kHz).
	maxClockFreq = 400 * physic.KiloHertz
)

// Transport implements mfrc522.Conn over I2C.
type Transport struct {
	dev     *i2c.Dev
	bus     i2c.BusCloser // Held so Close() can release the OS file descriptor
	busName string
}

// parseI2CPath splits a detection path of the form "/dev/i2c-1:0x28" into
// the bus and the device address. A bare bus uses DefaultAddress.
func parseI2CPath(path string) (bus string, addr uint16, err error) {
	bus, suffix, found := strings.Cut(path, ":")
	if !found || suffix == "" {
		return bus, DefaultAddress, nil
	}
	v, err := strconv.ParseUint(suffix, 0, 7)
	if err != nil {
		return "", 0, fmt.Errorf("invalid I2C address %q: %w", suffix, err)
	}
	return bus, uint16(v), nil
}

// New opens busName, optionally suffixed with ":addr".
func New(busName string) (*Transport, error) {
	busPath, addr, err := parseI2CPath(busName)
	if err != nil {
		return nil, err
	}

	if _, err := host.Init(); err != nil {
		return nil, fmt.Errorf("failed to initialize periph host: %w", err)
	}

	// periph registers sysfs buses by number, not by device node.
	bus, err := i2creg.Open(strings.TrimPrefix(busPath, "/dev/i2c-"))
	if err != nil {
		return nil, fmt.Errorf("failed to open I2C bus %s: %w", busName, err)
	}

	_ = bus.SetSpeed(maxClockFreq) // Ignore error, continue with default speed

	t := NewWithBus(bus, addr, busName)
	t.bus = bus
	return t, nil
}

// NewWithBus attaches to a device on an already open bus. The caller keeps
// ownership of the bus.
func NewWithBus(bus i2c.Bus, addr uint16, busName string) *Transport {
	return &Transport{
		dev:     &i2c.Dev{Addr: addr, Bus: bus},
		busName: busName,
	}
}

// Tx implements mfrc522.Conn by translating the SPI address framing.
//
// A write transfer [addr, data...] becomes one I2C write. A read transfer
// [addr1, addr2, ..., 0x00] returns the value of addrN in byte N; runs of
// the same address are read in one I2C transfer.
func (t *Transport) Tx(w, r []byte) error {
	if t.dev == nil {
		return mfrc522.NewTransportClosedError("I2C tx", t.busName)
	}
	if len(w) != len(r) {
		return fmt.Errorf("I2C tx: write %d bytes, read %d bytes", len(w), len(r))
	}
	clear(r)
	if len(w) == 0 {
		return nil
	}

	reg, read := mfrc522.DecodeAddress(w[0])
	if !read {
		buf := make([]byte, len(w))
		buf[0] = byte(reg)
		copy(buf[1:], w[1:])
		if err := t.dev.Tx(buf, nil); err != nil {
			return mfrc522.NewTransportWriteError("I2C write "+reg.String(), t.busName, err)
		}
		return nil
	}

	// The last slot only clocks out the final value on SPI.
	for i := 0; i < len(w)-1; {
		j := i + 1
		for j < len(w)-1 && w[j] == w[i] {
			j++
		}
		reg, _ := mfrc522.DecodeAddress(w[i])
		if err := t.dev.Tx([]byte{byte(reg)}, r[i+1:j+1]); err != nil {
			return mfrc522.NewTransportReadError("I2C read "+reg.String(), t.busName, err)
		}
		i = j
	}
	return nil
}

// Close releases the bus if New opened it.
func (t *Transport) Close() error {
	t.dev = nil
	if t.bus == nil {
		return nil
	}
	bus := t.bus
	t.bus = nil
	if err := bus.Close(); err != nil {
		return fmt.Errorf("I2C close failed: %w", err)
	}
	return nil
}

// IsConnected returns true if the transport is connected
func (t *Transport) IsConnected() bool {
	return t.dev != nil
}

// Type returns the transport type
func (*Transport) Type() mfrc522.TransportType {
	return mfrc522.TransportI2C
}
