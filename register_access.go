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

import "errors"

// exchange closes the open transaction with one transfer and classifies any
// transport failure.
func (d *Device) exchange(note string) error {
	if d.trace != nil {
		d.trace.RecordTX(d.tx.w[:d.tx.len()], note)
	}

	err := d.tx.end(d.conn)
	if err != nil {
		Debugf("%s: transfer failed: %v", note, err)
		var te *TransportError
		if !errors.As(err, &te) {
			err = NewTransportWriteError(note, d.name, err)
		}
		if d.trace != nil {
			return d.trace.WrapError(err)
		}
		return err
	}

	if d.trace != nil {
		d.trace.RecordRX(d.tx.read(d.tx.len()), note)
	}
	return nil
}

func (d *Device) checkOpen(op string) error {
	if d.closed {
		return NewTransportError(op, d.name, ErrDeviceClosed, ErrorTypePermanent)
	}
	return nil
}

func (d *Device) readReg(r Register) (byte, error) {
	if err := d.checkOpen("read " + r.String()); err != nil {
		return 0, err
	}
	d.tx.begin()
	d.tx.writeByte(EncodeRead(r))
	d.tx.writeByte(0)
	if err := d.exchange("read " + r.String()); err != nil {
		return 0, err
	}
	return d.tx.readByte(), nil
}

// readRegs fills dst from repeated reads of r. The low rxAlign bits of
// dst[0] are kept; only bit positions rxAlign..7 come from the chip.
func (d *Device) readRegs(r Register, dst []byte, rxAlign byte) error {
	n := len(dst)
	if n == 0 {
		return nil
	}
	if err := d.checkOpen("read " + r.String()); err != nil {
		return err
	}

	addr := EncodeRead(r)
	d.tx.begin()
	for range n {
		d.tx.writeByte(addr)
	}
	d.tx.writeByte(0)
	if err := d.exchange("read " + r.String()); err != nil {
		return err
	}

	data := d.tx.read(n)
	mask := byte(0xFF << (rxAlign & 0x07))
	dst[0] = dst[0]&^mask | data[0]&mask
	copy(dst[1:], data[1:])
	return nil
}

func (d *Device) writeReg(r Register, v byte) error {
	if err := d.checkOpen("write " + r.String()); err != nil {
		return err
	}
	d.tx.begin()
	d.tx.writeByte(EncodeWrite(r))
	d.tx.writeByte(v)
	return d.exchange("write " + r.String())
}

func (d *Device) writeRegs(r Register, p []byte) error {
	if err := d.checkOpen("write " + r.String()); err != nil {
		return err
	}
	d.tx.begin()
	d.tx.writeByte(EncodeWrite(r))
	d.tx.write(p)
	return d.exchange("write " + r.String())
}

func (d *Device) setBits(r Register, mask byte) error {
	v, err := d.readReg(r)
	if err != nil {
		return err
	}
	return d.writeReg(r, v|mask)
}

func (d *Device) clearBits(r Register, mask byte) error {
	v, err := d.readReg(r)
	if err != nil {
		return err
	}
	return d.writeReg(r, v&^mask)
}

// ReadRegister returns the value of r.
func (d *Device) ReadRegister(r Register) (byte, error) {
	return d.readReg(r)
}

// ReadRegisters reads len(dst) bytes from r in one transfer. Reading
// FIFODataReg this way drains the FIFO. len(dst) must not exceed 64.
func (d *Device) ReadRegisters(r Register, dst []byte) error {
	return d.readRegs(r, dst, 0)
}

// WriteRegister sets r to v.
func (d *Device) WriteRegister(r Register, v byte) error {
	return d.writeReg(r, v)
}

// WriteRegisters writes p to r in one transfer. len(p) must not exceed 64.
func (d *Device) WriteRegisters(r Register, p []byte) error {
	return d.writeRegs(r, p)
}

// SetRegisterBits sets the bits of mask in r.
func (d *Device) SetRegisterBits(r Register, mask byte) error {
	return d.setBits(r, mask)
}

// ClearRegisterBits clears the bits of mask in r.
func (d *Device) ClearRegisterBits(r Register, mask byte) error {
	return d.clearBits(r, mask)
}
