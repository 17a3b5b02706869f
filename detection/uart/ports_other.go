//go:build !linux

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

package uart

import (
	"context"
	"fmt"

	"github.com/ZaparooProject/go-mfrc522/detection"
	"go.bug.st/serial/enumerator"
)

// getSerialPorts asks the OS port enumerator for ports and USB metadata.
func getSerialPorts(_ context.Context) ([]serialPort, error) {
	details, err := enumerator.GetDetailedPortsList()
	if err != nil {
		return nil, fmt.Errorf("enumerate ports: %w", err)
	}

	ports := make([]serialPort, 0, len(details))
	for _, d := range details {
		port := serialPort{Path: d.Name, Name: d.Name}
		if d.IsUSB {
			port.VIDPID = detection.NormalizeVIDPID(d.VID, d.PID)
			port.SerialNumber = d.SerialNumber
		}
		ports = append(ports, port)
	}
	return ports, nil
}
