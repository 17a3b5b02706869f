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

// Package testing provides a register-level MFRC522 simulator and virtual
// ISO/IEC 14443A cards for driver tests.
//
// VirtualMFRC522 implements the driver's Conn interface: it decodes the SPI
// address framing (MFRC522 datasheet §8.1.2), keeps a register file and a
// 64-byte FIFO, runs the CalcCRC and Transceive commands and hands every
// transmitted frame to a Responder.
package testing

import (
	"errors"
	"time"

	"github.com/benbjohnson/clock"

	"github.com/ZaparooProject/go-mfrc522/internal/frame"
	"github.com/ZaparooProject/go-mfrc522/internal/syncutil"
)

// Register addresses (datasheet table 20).
const (
	regCommand     = 0x01
	regComIrq      = 0x04
	regDivIrq      = 0x05
	regError       = 0x06
	regFIFOData    = 0x09
	regFIFOLevel   = 0x0A
	regControl     = 0x0C
	regBitFraming  = 0x0D
	regColl        = 0x0E
	regCRCResultH  = 0x21
	regCRCResultL  = 0x22
	regVersion     = 0x37
	regTxControl   = 0x14
	numRegisters   = 0x40
	fifoCapacity   = 64
	collPosInvalid = 0x20
)

// Commands (datasheet table 149).
const (
	cmdIdle       = 0x00
	cmdCalcCRC    = 0x03
	cmdTransceive = 0x0C
	cmdSoftReset  = 0x0F
)

const (
	powerDown     = 0x10
	startSend     = 0x80
	irqTimer      = 0x01
	irqIdle       = 0x10
	irqRx         = 0x20
	irqCRC        = 0x04
	errCollision  = 0x08
	errBufferOvfl = 0x10
)

// ErrLengthMismatch is returned by Tx when w and r differ in length.
var ErrLengthMismatch = errors.New("tx: read and write buffers differ in length")

// ErrClosed is returned by Tx after Close.
var ErrClosed = errors.New("tx: simulator closed")

// DefaultTick is how far the mock clock moves per transfer.
const DefaultTick = time.Millisecond

// ChipConfig configures a VirtualMFRC522.
type ChipConfig struct {
	// Clock, if set, is advanced by Tick on every transfer so the driver's
	// polling budgets expire deterministically.
	Clock *clock.Mock
	// Responder answers transmitted frames. Nil means an empty field.
	Responder Responder
	// TxFault, if set, may modify each frame before the field sees it.
	TxFault func(data []byte)
	// Tick overrides DefaultTick.
	Tick time.Duration
	// Version is reported in VersionReg. Zero means 0x92 (v2.0).
	Version byte
	// PowerDownReads is how many CommandReg reads still show PowerDown
	// after a SoftReset.
	PowerDownReads int
	// CRCStuck keeps the CRC coprocessor from ever finishing.
	CRCStuck bool
}

// VirtualMFRC522 simulates an MFRC522 behind a full-duplex bus.
type VirtualMFRC522 struct {
	cfg            ChipConfig
	fifo           []byte
	frames         []Frame
	commands       map[byte]int
	regs           [numRegisters]byte
	mu             syncutil.Mutex
	transfers      int
	fifoReads      int
	fifoLevel      int
	powerDownReads int
	closed         bool
}

// NewVirtualMFRC522 creates a simulator in its post-reset state.
func NewVirtualMFRC522(cfg ChipConfig) *VirtualMFRC522 {
	if cfg.Tick == 0 {
		cfg.Tick = DefaultTick
	}
	if cfg.Version == 0 {
		cfg.Version = 0x92
	}
	v := &VirtualMFRC522{
		cfg:       cfg,
		commands:  make(map[byte]int),
		fifoLevel: -1,
	}
	v.resetRegisters()
	return v
}

func (v *VirtualMFRC522) resetRegisters() {
	v.regs = [numRegisters]byte{}
	v.regs[regCommand] = 0x20
	v.regs[regComIrq] = 0x14
	v.regs[regControl] = 0x10
	v.regs[regColl] = 0x80
	v.regs[regTxControl] = 0x80
	v.regs[regCRCResultH] = 0xFF
	v.regs[regCRCResultL] = 0xFF
	v.regs[regVersion] = v.cfg.Version
	v.fifo = v.fifo[:0]
}

// Tx implements the driver's Conn interface.
func (v *VirtualMFRC522) Tx(w, r []byte) error {
	if len(w) != len(r) {
		return ErrLengthMismatch
	}

	v.mu.Lock()
	err := v.transfer(w, r)
	v.mu.Unlock()

	if v.cfg.Clock != nil {
		v.cfg.Clock.Add(v.cfg.Tick)
	}
	return err
}

func (v *VirtualMFRC522) transfer(w, r []byte) error {
	if v.closed {
		return ErrClosed
	}
	v.transfers++
	clear(r)
	if len(w) == 0 {
		return nil
	}

	if w[0]&0x80 == 0 {
		reg := (w[0] >> 1) & 0x3F
		for _, b := range w[1:] {
			v.writeReg(reg, b)
		}
		return nil
	}

	// Each read address is answered in the next byte slot; the final
	// slot carries the terminating 0x00.
	for i := 0; i < len(w)-1; i++ {
		r[i+1] = v.readReg((w[i] >> 1) & 0x3F)
	}
	return nil
}

func (v *VirtualMFRC522) readReg(reg byte) byte {
	switch reg {
	case regFIFOData:
		v.fifoReads++
		if len(v.fifo) == 0 {
			return 0
		}
		b := v.fifo[0]
		v.fifo = v.fifo[1:]
		return b
	case regFIFOLevel:
		if v.fifoLevel >= 0 {
			return byte(v.fifoLevel)
		}
		return byte(len(v.fifo))
	case regCommand:
		val := v.regs[regCommand]
		if v.powerDownReads > 0 {
			v.powerDownReads--
			val |= powerDown
		}
		return val
	default:
		return v.regs[reg]
	}
}

func (v *VirtualMFRC522) writeReg(reg, val byte) {
	switch reg {
	case regCommand:
		v.regs[regCommand] = val & 0x3F
		v.execute(val & 0x0F)
	case regComIrq, regDivIrq:
		if val&0x80 != 0 {
			v.regs[reg] |= val & 0x7F
		} else {
			v.regs[reg] &^= val & 0x7F
		}
	case regFIFOData:
		if len(v.fifo) >= fifoCapacity {
			v.regs[regError] |= errBufferOvfl
			return
		}
		v.fifo = append(v.fifo, val)
	case regFIFOLevel:
		if val&0x80 != 0 {
			v.fifo = v.fifo[:0]
			v.regs[regError] &^= errBufferOvfl
		}
	case regBitFraming:
		v.regs[regBitFraming] = val &^ startSend
		if val&startSend != 0 && v.regs[regCommand]&0x0F == cmdTransceive {
			v.transceive()
		}
	case regColl:
		// Only ValuesAfterColl is writable.
		v.regs[regColl] = v.regs[regColl]&0x7F | val&0x80
	case regVersion, regError:
		// read-only
	default:
		v.regs[reg] = val
	}
}

func (v *VirtualMFRC522) execute(cmd byte) {
	v.commands[cmd]++
	switch cmd {
	case cmdSoftReset:
		v.resetRegisters()
		v.powerDownReads = v.cfg.PowerDownReads
	case cmdCalcCRC:
		if v.cfg.CRCStuck {
			return
		}
		crc := frame.CRCA(v.fifo)
		v.fifo = v.fifo[:0]
		v.regs[regCRCResultL] = crc[0]
		v.regs[regCRCResultH] = crc[1]
		v.regs[regDivIrq] |= irqCRC
	}
}

func (v *VirtualMFRC522) transceive() {
	bf := v.regs[regBitFraming]
	f := Frame{
		Data:       append([]byte(nil), v.fifo...),
		TxLastBits: bf & 0x07,
		RxAlign:    (bf >> 4) & 0x07,
	}
	v.fifo = v.fifo[:0]
	if v.cfg.TxFault != nil {
		v.cfg.TxFault(f.Data)
	}
	v.frames = append(v.frames, cloneFrame(f))

	var reply Reply
	if v.cfg.Responder != nil {
		reply = v.cfg.Responder.Respond(f)
	}

	v.regs[regError] = 0
	v.regs[regColl] &= 0x80

	if reply.Silent() {
		if !reply.NoTimerIRq {
			v.regs[regComIrq] |= irqTimer
		}
		return
	}

	v.fifo = append(v.fifo[:0], reply.Data...)
	v.regs[regControl] = v.regs[regControl]&^0x07 | reply.LastBits&0x07
	v.regs[regError] = reply.ErrorReg
	if reply.CollisionPos > 0 {
		v.regs[regError] |= errCollision
		if reply.CollisionPos > 32 {
			v.regs[regColl] |= collPosInvalid
		} else {
			v.regs[regColl] |= byte(reply.CollisionPos) & 0x1F
		}
	}
	v.regs[regComIrq] |= irqRx | irqIdle
}

// ReadRegister performs a single register read the way a byte-oriented
// bus (I2C, UART) does it.
func (v *VirtualMFRC522) ReadRegister(reg byte) (byte, error) {
	v.mu.Lock()
	if v.closed {
		v.mu.Unlock()
		return 0, ErrClosed
	}
	v.transfers++
	val := v.readReg(reg & 0x3F)
	v.mu.Unlock()

	if v.cfg.Clock != nil {
		v.cfg.Clock.Add(v.cfg.Tick)
	}
	return val, nil
}

// WriteRegister performs a single register write the way a byte-oriented
// bus does it.
func (v *VirtualMFRC522) WriteRegister(reg, val byte) error {
	v.mu.Lock()
	if v.closed {
		v.mu.Unlock()
		return ErrClosed
	}
	v.transfers++
	v.writeReg(reg&0x3F, val)
	v.mu.Unlock()

	if v.cfg.Clock != nil {
		v.cfg.Clock.Add(v.cfg.Tick)
	}
	return nil
}

// SetFIFOLevel makes FIFOLevelReg report level regardless of the FIFO
// contents. A negative level restores normal behaviour.
func (v *VirtualMFRC522) SetFIFOLevel(level int) {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.fifoLevel = level
}

// SetResponder replaces the field.
func (v *VirtualMFRC522) SetResponder(r Responder) {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.cfg.Responder = r
}

// SetCRCStuck toggles the stuck coprocessor fault.
func (v *VirtualMFRC522) SetCRCStuck(stuck bool) {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.cfg.CRCStuck = stuck
}

// Register returns the raw content of a register.
func (v *VirtualMFRC522) Register(reg byte) byte {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.regs[reg&0x3F]
}

// SetRegister stores val without running any side effect.
func (v *VirtualMFRC522) SetRegister(reg, val byte) {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.regs[reg&0x3F] = val
}

// FIFO returns a copy of the FIFO contents.
func (v *VirtualMFRC522) FIFO() []byte {
	v.mu.Lock()
	defer v.mu.Unlock()
	return append([]byte(nil), v.fifo...)
}

// Frames returns every frame transmitted so far.
func (v *VirtualMFRC522) Frames() []Frame {
	v.mu.Lock()
	defer v.mu.Unlock()
	out := make([]Frame, len(v.frames))
	for i, f := range v.frames {
		out[i] = cloneFrame(f)
	}
	return out
}

// CommandCount returns how many times cmd was written to CommandReg.
func (v *VirtualMFRC522) CommandCount(cmd byte) int {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.commands[cmd]
}

// FIFOReads returns how many FIFODataReg reads the host issued.
func (v *VirtualMFRC522) FIFOReads() int {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.fifoReads
}

// Transfers returns the number of Tx calls.
func (v *VirtualMFRC522) Transfers() int {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.transfers
}

// Close makes every later Tx fail with ErrClosed.
func (v *VirtualMFRC522) Close() error {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.closed = true
	return nil
}
