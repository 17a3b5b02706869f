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

import "fmt"

// Register is an MFRC522 register address (datasheet section 9.2, table 20).
// Addresses are 6-bit values.
type Register byte

// Page 0: command and status.
const (
	CommandReg    Register = 0x01
	ComIEnReg     Register = 0x02
	DivIEnReg     Register = 0x03
	ComIrqReg     Register = 0x04
	DivIrqReg     Register = 0x05
	ErrorReg      Register = 0x06
	Status1Reg    Register = 0x07
	Status2Reg    Register = 0x08
	FIFODataReg   Register = 0x09
	FIFOLevelReg  Register = 0x0A
	WaterLevelReg Register = 0x0B
	ControlReg    Register = 0x0C
	BitFramingReg Register = 0x0D
	CollReg       Register = 0x0E
)

// Page 1: command.
const (
	ModeReg        Register = 0x11
	TxModeReg      Register = 0x12
	RxModeReg      Register = 0x13
	TxControlReg   Register = 0x14
	TxASKReg       Register = 0x15
	TxSelReg       Register = 0x16
	RxSelReg       Register = 0x17
	RxThresholdReg Register = 0x18
	DemodReg       Register = 0x19
	MfTxReg        Register = 0x1C
	MfRxReg        Register = 0x1D
	SerialSpeedReg Register = 0x1F
)

// Page 2: configuration.
const (
	CRCResultRegH   Register = 0x21
	CRCResultRegL   Register = 0x22
	ModWidthReg     Register = 0x24
	RFCfgReg        Register = 0x26
	GsNReg          Register = 0x27
	CWGsPReg        Register = 0x28
	ModGsPReg       Register = 0x29
	TModeReg        Register = 0x2A
	TPrescalerReg   Register = 0x2B
	TReloadRegH     Register = 0x2C
	TReloadRegL     Register = 0x2D
	TCounterValRegH Register = 0x2E
	TCounterValRegL Register = 0x2F
)

// Page 3: test registers.
const (
	TestSel1Reg     Register = 0x31
	TestSel2Reg     Register = 0x32
	TestPinEnReg    Register = 0x33
	TestPinValueReg Register = 0x34
	TestBusReg      Register = 0x35
	AutoTestReg     Register = 0x36
	VersionReg      Register = 0x37
	AnalogTestReg   Register = 0x38
	TestDAC1Reg     Register = 0x39
	TestDAC2Reg     Register = 0x3A
	TestADCReg      Register = 0x3B
)

// Registers lists every documented register in address order.
var Registers = []Register{
	CommandReg, ComIEnReg, DivIEnReg, ComIrqReg, DivIrqReg, ErrorReg,
	Status1Reg, Status2Reg, FIFODataReg, FIFOLevelReg, WaterLevelReg,
	ControlReg, BitFramingReg, CollReg,
	ModeReg, TxModeReg, RxModeReg, TxControlReg, TxASKReg, TxSelReg,
	RxSelReg, RxThresholdReg, DemodReg, MfTxReg, MfRxReg, SerialSpeedReg,
	CRCResultRegH, CRCResultRegL, ModWidthReg, RFCfgReg, GsNReg, CWGsPReg,
	ModGsPReg, TModeReg, TPrescalerReg, TReloadRegH, TReloadRegL,
	TCounterValRegH, TCounterValRegL,
	TestSel1Reg, TestSel2Reg, TestPinEnReg, TestPinValueReg, TestBusReg,
	AutoTestReg, VersionReg, AnalogTestReg, TestDAC1Reg, TestDAC2Reg,
	TestADCReg,
}

var registerNames = map[Register]string{
	CommandReg: "CommandReg", ComIEnReg: "ComIEnReg", DivIEnReg: "DivIEnReg",
	ComIrqReg: "ComIrqReg", DivIrqReg: "DivIrqReg", ErrorReg: "ErrorReg",
	Status1Reg: "Status1Reg", Status2Reg: "Status2Reg", FIFODataReg: "FIFODataReg",
	FIFOLevelReg: "FIFOLevelReg", WaterLevelReg: "WaterLevelReg",
	ControlReg: "ControlReg", BitFramingReg: "BitFramingReg", CollReg: "CollReg",
	ModeReg: "ModeReg", TxModeReg: "TxModeReg", RxModeReg: "RxModeReg",
	TxControlReg: "TxControlReg", TxASKReg: "TxASKReg", TxSelReg: "TxSelReg",
	RxSelReg: "RxSelReg", RxThresholdReg: "RxThresholdReg", DemodReg: "DemodReg",
	MfTxReg: "MfTxReg", MfRxReg: "MfRxReg", SerialSpeedReg: "SerialSpeedReg",
	CRCResultRegH: "CRCResultRegH", CRCResultRegL: "CRCResultRegL",
	ModWidthReg: "ModWidthReg", RFCfgReg: "RFCfgReg", GsNReg: "GsNReg",
	CWGsPReg: "CWGsPReg", ModGsPReg: "ModGsPReg", TModeReg: "TModeReg",
	TPrescalerReg: "TPrescalerReg", TReloadRegH: "TReloadRegH",
	TReloadRegL: "TReloadRegL", TCounterValRegH: "TCounterValRegH",
	TCounterValRegL: "TCounterValRegL", TestSel1Reg: "TestSel1Reg",
	TestSel2Reg: "TestSel2Reg", TestPinEnReg: "TestPinEnReg",
	TestPinValueReg: "TestPinValueReg", TestBusReg: "TestBusReg",
	AutoTestReg: "AutoTestReg", VersionReg: "VersionReg",
	AnalogTestReg: "AnalogTestReg", TestDAC1Reg: "TestDAC1Reg",
	TestDAC2Reg: "TestDAC2Reg", TestADCReg: "TestADCReg",
}

func (r Register) String() string {
	if name, ok := registerNames[r]; ok {
		return name
	}
	return fmt.Sprintf("Reg(0x%02X)", byte(r))
}

const (
	readMask  = 0x80
	writeMask = 0x00
)

// EncodeRead returns the address byte that reads r on the SPI bus.
func EncodeRead(r Register) byte {
	return byte(r)<<1 | readMask
}

// EncodeWrite returns the address byte that writes r on the SPI bus.
func EncodeWrite(r Register) byte {
	return byte(r)<<1 | writeMask
}

// DecodeAddress extracts the register and direction from an SPI address byte.
// Transports that do not speak SPI use it to translate the framing.
func DecodeAddress(b byte) (reg Register, read bool) {
	return Register(b>>1) & 0x3F, b&readMask != 0
}

// Command is a PCD command written to CommandReg (datasheet section 10.3).
type Command byte

const (
	CmdIdle             Command = 0x00
	CmdMem              Command = 0x01
	CmdGenerateRandomID Command = 0x02
	CmdCalcCRC          Command = 0x03
	CmdTransmit         Command = 0x04
	CmdNoCmdChange      Command = 0x07
	CmdReceive          Command = 0x08
	CmdTransceive       Command = 0x0C
	CmdMFAuthent        Command = 0x0E
	CmdSoftReset        Command = 0x0F
)

func (c Command) String() string {
	switch c {
	case CmdIdle:
		return "Idle"
	case CmdMem:
		return "Mem"
	case CmdGenerateRandomID:
		return "GenerateRandomID"
	case CmdCalcCRC:
		return "CalcCRC"
	case CmdTransmit:
		return "Transmit"
	case CmdNoCmdChange:
		return "NoCmdChange"
	case CmdReceive:
		return "Receive"
	case CmdTransceive:
		return "Transceive"
	case CmdMFAuthent:
		return "MFAuthent"
	case CmdSoftReset:
		return "SoftReset"
	default:
		return fmt.Sprintf("Cmd(0x%02X)", byte(c))
	}
}

// PICC commands (ISO/IEC 14443-3).
const (
	PICCReqA    = 0x26
	PICCWupA    = 0x52
	PICCCT      = 0x88
	PICCSelCL1  = 0x93
	PICCSelCL2  = 0x95
	PICCSelCL3  = 0x97
	PICCHltA    = 0x50
	nvbFullUID  = 0x70
	sakCascade  = 0x04
	maxCascades = 3
)

// Register bits used by the driver.
const (
	// CommandReg
	powerDownBit = 0x10

	// ComIrqReg
	irqTimer = 0x01
	irqIdle  = 0x10
	irqRx    = 0x20
	irqAll   = 0x7F

	// DivIrqReg
	irqCRC = 0x04

	// ErrorReg
	errProtocol   = 0x01
	errParity     = 0x02
	errCollision  = 0x08
	errBufferOvfl = 0x10
	errHardware   = errProtocol | errParity | errBufferOvfl

	// FIFOLevelReg
	flushBuffer = 0x80

	// ControlReg
	rxLastBitsMask = 0x07

	// BitFramingReg
	startSend = 0x80

	// CollReg
	valuesAfterColl = 0x80
	collPosNotValid = 0x20
	collPosMask     = 0x1F

	// TxControlReg
	tx1RFEn = 0x01
	tx2RFEn = 0x02

	// RFCfgReg
	rxGainMask = 0x70
)
