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
	"fmt"
	"io"

	"periph.io/x/conn/v3/physic"

	"github.com/ZaparooProject/go-mfrc522/internal/syncutil"
)

// ErrNoDevice is returned by I2CBus for transfers to another address.
var ErrNoDevice = errors.New("i2c: no device at address")

// I2CBus is a periph i2c.Bus with a simulated MFRC522 attached.
//
// A write of [reg, data...] stores every data byte into reg. A write of
// [reg] followed by a read fills the read buffer from repeated reads of
// reg, so FIFODataReg drains in one transfer.
type I2CBus struct {
	chip *VirtualMFRC522
	Log  []I2CTransfer
	addr uint16
	mu   syncutil.Mutex
}

// I2CTransfer records one transfer seen by I2CBus.
type I2CTransfer struct {
	W    []byte
	R    []byte
	Addr uint16
}

// NewI2CBus attaches chip to a virtual bus at addr.
func NewI2CBus(chip *VirtualMFRC522, addr uint16) *I2CBus {
	return &I2CBus{chip: chip, addr: addr}
}

func (*I2CBus) String() string {
	return "virtual-i2c"
}

// SetSpeed implements i2c.Bus.
func (*I2CBus) SetSpeed(physic.Frequency) error {
	return nil
}

// Tx implements i2c.Bus.
func (b *I2CBus) Tx(addr uint16, w, r []byte) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	defer func() {
		b.Log = append(b.Log, I2CTransfer{
			Addr: addr,
			W:    append([]byte(nil), w...),
			R:    append([]byte(nil), r...),
		})
	}()

	if addr != b.addr {
		return fmt.Errorf("%w 0x%02X", ErrNoDevice, addr)
	}
	if len(w) == 0 {
		return errors.New("i2c: missing register address")
	}

	reg := w[0]
	for _, val := range w[1:] {
		if err := b.chip.WriteRegister(reg, val); err != nil {
			return err
		}
	}
	for i := range r {
		val, err := b.chip.ReadRegister(reg)
		if err != nil {
			return err
		}
		r[i] = val
	}
	return nil
}

// SerialPort speaks the MFRC522 UART register protocol on top of a
// simulated chip. It implements io.ReadWriteCloser.
//
// Read: the host sends 0x80|addr and receives the register value.
// Write: the host sends addr then the value and receives addr as echo.
type SerialPort struct {
	chip    *VirtualMFRC522
	out     []byte
	Written []byte
	pending int
	mu      syncutil.Mutex
	closed  bool
	// DropEcho suppresses write echoes, like a chip that lost sync.
	DropEcho bool
}

// NewSerialPort creates a port wired to chip.
func NewSerialPort(chip *VirtualMFRC522) *SerialPort {
	return &SerialPort{chip: chip, pending: -1}
}

// Write implements io.Writer.
func (p *SerialPort) Write(data []byte) (int, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.closed {
		return 0, io.ErrClosedPipe
	}
	p.Written = append(p.Written, data...)

	for _, b := range data {
		if p.pending >= 0 {
			reg := byte(p.pending)
			p.pending = -1
			if err := p.chip.WriteRegister(reg, b); err != nil {
				return 0, err
			}
			if !p.DropEcho {
				p.out = append(p.out, reg)
			}
			continue
		}
		if b&0x80 != 0 {
			val, err := p.chip.ReadRegister(b & 0x3F)
			if err != nil {
				return 0, err
			}
			p.out = append(p.out, val)
			continue
		}
		p.pending = int(b & 0x3F)
	}
	return len(data), nil
}

// Read implements io.Reader. It returns 0, nil when nothing is pending,
// like a serial port whose read timeout expired.
func (p *SerialPort) Read(buf []byte) (int, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.closed {
		return 0, io.ErrClosedPipe
	}
	n := copy(buf, p.out)
	p.out = p.out[n:]
	return n, nil
}

// Close implements io.Closer.
func (p *SerialPort) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.closed = true
	return nil
}
