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

package main

import (
	"fmt"
	"io"

	"github.com/ZaparooProject/go-mfrc522"
)

// dumpRegisters prints every documented register. FIFODataReg is skipped
// because reading it consumes a FIFO byte.
func dumpRegisters(w io.Writer, device *mfrc522.Device) error {
	version, err := device.Version()
	if err != nil {
		return fmt.Errorf("failed to read version: %w", err)
	}
	_, _ = fmt.Fprintf(w, "Chip: %s\n", version)

	for _, reg := range mfrc522.Registers {
		if reg == mfrc522.FIFODataReg {
			continue
		}
		v, err := device.ReadRegister(reg)
		if err != nil {
			return fmt.Errorf("failed to read %s: %w", reg, err)
		}
		_, _ = fmt.Fprintf(w, "  0x%02X %-16s %02X  %08b\n", byte(reg), reg, v, v)
	}
	return nil
}
