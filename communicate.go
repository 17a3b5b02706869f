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

// waitTransceive is RxIRq|IdleIRq: data arrived, or the command finished.
const waitTransceive = irqRx | irqIdle

// Communicate loads send into the FIFO, runs cmd and waits for any bit of
// waitIRq in ComIrqReg. Up to len(recv) received bytes are copied into recv
// and their count is returned.
//
// validBits, if non-nil, carries the number of valid bits in the last sent
// byte (0 means all eight) and on return holds the number of valid bits in
// the last received byte. rxAlign places the first received bit at that
// position of recv[0]; the bits below it keep their previous value. With
// checkCRC the last two received bytes must be a CRC_A of the rest.
//
// On StatusCollision the received bytes have already been copied.
func (d *Device) Communicate(
	cmd Command, waitIRq byte, send, recv []byte, validBits *byte, rxAlign byte, checkCRC bool,
) (int, error) {
	var txLastBits byte
	if validBits != nil {
		txLastBits = *validBits & rxLastBitsMask
	}
	bitFraming := (rxAlign&0x07)<<4 | txLastBits

	if err := d.writeReg(CommandReg, byte(CmdIdle)); err != nil {
		return 0, err
	}
	if err := d.writeReg(ComIrqReg, irqAll); err != nil {
		return 0, err
	}
	if err := d.writeReg(FIFOLevelReg, flushBuffer); err != nil {
		return 0, err
	}
	if err := d.writeRegs(FIFODataReg, send); err != nil {
		return 0, err
	}
	if err := d.writeReg(BitFramingReg, bitFraming); err != nil {
		return 0, err
	}
	if err := d.writeReg(CommandReg, byte(cmd)); err != nil {
		return 0, err
	}
	if cmd == CmdTransceive {
		if err := d.setBits(BitFramingReg, startSend); err != nil {
			return 0, err
		}
	}

	if err := d.waitIRq(waitIRq); err != nil {
		return 0, err
	}

	errReg, err := d.readReg(ErrorReg)
	if err != nil {
		return 0, err
	}
	if errReg&errHardware != 0 {
		Debugf("%s: ErrorReg 0x%02X", cmd, errReg)
		return 0, StatusError
	}

	n := 0
	var rxLastBits byte
	if len(recv) > 0 {
		level, err := d.readReg(FIFOLevelReg)
		if err != nil {
			return 0, err
		}
		n = int(level & 0x7F)
		if n > len(recv) {
			return 0, StatusNoRoom
		}
		if err := d.readRegs(FIFODataReg, recv[:n], rxAlign); err != nil {
			return 0, err
		}
		ctrl, err := d.readReg(ControlReg)
		if err != nil {
			return 0, err
		}
		rxLastBits = ctrl & rxLastBitsMask
		if validBits != nil {
			*validBits = rxLastBits
		}
	}

	if errReg&errCollision != 0 {
		return n, StatusCollision
	}

	if checkCRC && len(recv) > 0 {
		if err := d.verifyCRC(recv[:n], rxLastBits); err != nil {
			return n, err
		}
	}

	return n, nil
}

// waitIRq polls ComIrqReg until a bit of mask is set, the chip timer fires
// or TransceiveBudget runs out.
func (d *Device) waitIRq(mask byte) error {
	deadline := d.clock.Now().Add(TransceiveBudget)
	for {
		irq, err := d.readReg(ComIrqReg)
		if err != nil {
			return err
		}
		if irq&mask != 0 {
			return nil
		}
		if irq&irqTimer != 0 {
			return StatusTimeout
		}
		if !d.clock.Now().Before(deadline) {
			Debugf("no IRQ 0x%02X within %v", mask, TransceiveBudget)
			return StatusTimeout
		}
	}
}

// verifyCRC checks a CRC_A-terminated reply. A lone 4-bit reply is a
// MIFARE ACK/NAK and is reported as StatusMifareNack.
func (d *Device) verifyCRC(data []byte, rxLastBits byte) error {
	if len(data) == 1 && rxLastBits == 4 {
		return StatusMifareNack
	}
	if len(data) < 2 || rxLastBits != 0 {
		return StatusCRCMismatch
	}
	crc, err := d.CalculateCRC(data[:len(data)-2])
	if err != nil {
		return err
	}
	if crc[0] != data[len(data)-2] || crc[1] != data[len(data)-1] {
		return StatusCRCMismatch
	}
	return nil
}

// Transceive sends send to the card and receives its answer. See
// Communicate for the meaning of the arguments.
func (d *Device) Transceive(send, recv []byte, validBits *byte, rxAlign byte, checkCRC bool) (int, error) {
	return d.Communicate(CmdTransceive, waitTransceive, send, recv, validBits, rxAlign, checkCRC)
}
