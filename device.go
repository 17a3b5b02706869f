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
	"fmt"
	"io"
	"time"

	"github.com/benbjohnson/clock"
	"periph.io/x/conn/v3/gpio"
)

// Device is an MFRC522 reader attached through a Conn.
//
// Thread Safety: Device is NOT thread-safe. All methods must be called from
// a single goroutine or protected with external synchronization. The
// polling package serialises access for long-running readers.
type Device struct {
	conn    Conn
	reset   ResetPin
	clock   clock.Clock
	trace   *TraceBuffer
	name    string
	tx      txBuffer
	tracing bool
	closed  bool
}

// New creates a device on conn. If reset is non-nil the chip is hard reset
// through NRSTPD before New returns. Call Init before talking to cards.
func New(conn Conn, reset ResetPin, opts ...Option) (*Device, error) {
	if conn == nil {
		return nil, errors.New("mfrc522: nil transport")
	}

	d := &Device{
		conn:  conn,
		reset: reset,
		clock: clock.New(),
		name:  string(TypeOf(conn)),
	}

	for _, opt := range opts {
		if err := opt(d); err != nil {
			return nil, err
		}
	}

	if d.tracing {
		d.trace = newTraceBuffer(d.clock, string(TypeOf(conn)), d.name, traceDepth)
	}

	if d.reset != nil {
		if err := d.hardReset(); err != nil {
			return nil, err
		}
	}

	return d, nil
}

// hardReset pulses NRSTPD. These sleeps are wall-clock on purpose: they
// wait for real silicon, not for a budget measured by d.clock.
func (d *Device) hardReset() error {
	if err := d.reset.Out(gpio.Low); err != nil {
		return fmt.Errorf("%w: %w", ErrResetFailed, err)
	}
	time.Sleep(ResetHoldTime)
	if err := d.reset.Out(gpio.High); err != nil {
		return fmt.Errorf("%w: %w", ErrResetFailed, err)
	}
	time.Sleep(ResetSettleTime)
	Debugln("hard reset done")
	return nil
}

// Init soft-resets the chip and programs the defaults used for ISO 14443A:
// 106 kBd both ways, a 25 ms receive timeout, 100% ASK, CRC preset 0x6363
// and the antenna on.
func (d *Device) Init() error {
	if err := d.SoftReset(); err != nil {
		return err
	}

	steps := []struct {
		reg Register
		val byte
	}{
		{TxModeReg, 0x00},
		{RxModeReg, 0x00},
		{ModWidthReg, 0x26},
		// TAuto: the timer starts when a transmission ends.
		{TModeReg, 0x80},
		// 13.56 MHz / (2*169+1) ≈ 40 kHz, i.e. 25 µs per tick.
		{TPrescalerReg, 0xA9},
		// 1000 ticks = 25 ms.
		{TReloadRegH, 0x03},
		{TReloadRegL, 0xE8},
		{TxASKReg, 0x40},
		{ModeReg, 0x3D},
	}
	for _, s := range steps {
		if err := d.writeReg(s.reg, s.val); err != nil {
			return fmt.Errorf("init %s: %w", s.reg, err)
		}
	}

	return d.AntennaOn()
}

// SoftReset issues the SoftReset command and waits for the oscillator to
// leave power down.
func (d *Device) SoftReset() error {
	if err := d.writeReg(CommandReg, byte(CmdSoftReset)); err != nil {
		return err
	}

	deadline := d.clock.Now().Add(PowerDownBudget)
	for {
		v, err := d.readReg(CommandReg)
		if err != nil {
			return err
		}
		if v&powerDownBit == 0 {
			return nil
		}
		if !d.clock.Now().Before(deadline) {
			return ErrNotResponding
		}
	}
}

// AntennaOn enables both TX pins if they are not already driving.
func (d *Device) AntennaOn() error {
	v, err := d.readReg(TxControlReg)
	if err != nil {
		return err
	}
	if v&(tx1RFEn|tx2RFEn) == tx1RFEn|tx2RFEn {
		return nil
	}
	return d.writeReg(TxControlReg, v|tx1RFEn|tx2RFEn)
}

// AntennaOff disables both TX pins.
func (d *Device) AntennaOff() error {
	return d.clearBits(TxControlReg, tx1RFEn|tx2RFEn)
}

// RxGain values for RFCfgReg bits 6:4. 0x00 and 0x01 alias 0x02 and 0x03.
const (
	RxGain18dB byte = 0x00 << 4
	RxGain23dB byte = 0x01 << 4
	RxGain33dB byte = 0x04 << 4
	RxGain38dB byte = 0x05 << 4
	RxGain43dB byte = 0x06 << 4
	RxGain48dB byte = 0x07 << 4
	RxGainMin       = RxGain18dB
	RxGainAvg       = RxGain33dB
	RxGainMax       = RxGain48dB
)

// AntennaGain returns the receiver gain, one of the RxGain values.
func (d *Device) AntennaGain() (byte, error) {
	v, err := d.readReg(RFCfgReg)
	if err != nil {
		return 0, err
	}
	return v & rxGainMask, nil
}

// SetAntennaGain sets the receiver gain. Only bits 6:4 of mask are used.
func (d *Device) SetAntennaGain(mask byte) error {
	cur, err := d.AntennaGain()
	if err != nil {
		return err
	}
	if cur == mask&rxGainMask {
		return nil
	}
	if err := d.clearBits(RFCfgReg, rxGainMask); err != nil {
		return err
	}
	return d.setBits(RFCfgReg, mask&rxGainMask)
}

// Version is the content of VersionReg.
type Version byte

const (
	VersionCounterfeit Version = 0x12
	VersionFM17522     Version = 0x88
	VersionFM17522E    Version = 0x89
	Version1           Version = 0x91
	Version2           Version = 0x92
	VersionFM17522_1   Version = 0xB2
)

// Known reports whether v is a chip this driver has been used with.
func (v Version) Known() bool {
	switch v {
	case VersionCounterfeit, VersionFM17522, VersionFM17522E, Version1, Version2, VersionFM17522_1:
		return true
	default:
		return false
	}
}

func (v Version) String() string {
	switch v {
	case Version1:
		return "MFRC522 v1.0"
	case Version2:
		return "MFRC522 v2.0"
	case VersionFM17522:
		return "FM17522"
	case VersionFM17522E:
		return "FM17522E"
	case VersionFM17522_1:
		return "FM17522_1"
	case VersionCounterfeit:
		return "counterfeit"
	default:
		return fmt.Sprintf("unknown (0x%02X)", byte(v))
	}
}

// Version reads VersionReg. A value of 0x00 or 0xFF usually means nothing
// is answering on the bus.
func (d *Device) Version() (Version, error) {
	v, err := d.readReg(VersionReg)
	if err != nil {
		return 0, err
	}
	return Version(v), nil
}

// Name returns the port name used in errors and traces.
func (d *Device) Name() string {
	return d.name
}

// Clock returns the clock budgets are measured with.
func (d *Device) Clock() clock.Clock {
	return d.clock
}

// Close releases the transport and the reset pin. Close is idempotent.
func (d *Device) Close() error {
	if d.closed {
		return nil
	}
	d.closed = true

	var errs []error
	if closer, ok := d.conn.(io.Closer); ok {
		if err := closer.Close(); err != nil {
			errs = append(errs, fmt.Errorf("failed to close transport: %w", err))
		}
	}
	if h, ok := d.reset.(interface{ Halt() error }); ok {
		if err := h.Halt(); err != nil {
			errs = append(errs, fmt.Errorf("failed to release reset pin: %w", err))
		}
	}
	return errors.Join(errs...)
}
