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

// CalculateCRC runs data through the chip's CRC coprocessor and returns the
// CRC_A as [low, high]. It fails with StatusTimeout if the coprocessor does
// not finish within CRCBudget. len(data) must not exceed 64.
func (d *Device) CalculateCRC(data []byte) ([2]byte, error) {
	var out [2]byte

	if err := d.writeReg(CommandReg, byte(CmdIdle)); err != nil {
		return out, err
	}
	if err := d.writeReg(DivIrqReg, irqCRC); err != nil {
		return out, err
	}
	if err := d.writeReg(FIFOLevelReg, flushBuffer); err != nil {
		return out, err
	}
	if err := d.writeRegs(FIFODataReg, data); err != nil {
		return out, err
	}
	if err := d.writeReg(CommandReg, byte(CmdCalcCRC)); err != nil {
		return out, err
	}

	deadline := d.clock.Now().Add(CRCBudget)
	for {
		irq, err := d.readReg(DivIrqReg)
		if err != nil {
			return out, err
		}
		if irq&irqCRC != 0 {
			break
		}
		if !d.clock.Now().Before(deadline) {
			Debugf("CRC coprocessor did not finish within %v", CRCBudget)
			return out, StatusTimeout
		}
	}

	if err := d.writeReg(CommandReg, byte(CmdIdle)); err != nil {
		return out, err
	}

	lo, err := d.readReg(CRCResultRegL)
	if err != nil {
		return out, err
	}
	hi, err := d.readReg(CRCResultRegH)
	if err != nil {
		return out, err
	}
	out[0], out[1] = lo, hi
	return out, nil
}
