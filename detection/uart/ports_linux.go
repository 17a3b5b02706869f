//go:build linux

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
	"os"
	"path/filepath"
	"strings"

	"github.com/ZaparooProject/go-mfrc522/detection"
)

// getSerialPorts lists USB serial ports with their sysfs metadata, then
// the SoC UARTs. Without sysfs it falls back to globbing /dev.
func getSerialPorts(_ context.Context) ([]serialPort, error) {
	ports, err := usbSerialPorts("/sys/class/tty")
	if err != nil {
		ports = nil
	}
	ports = append(ports, globPorts("/dev/ttyS*", "/dev/ttyAMA*")...)

	if len(ports) == 0 {
		return globPorts("/dev/ttyUSB*", "/dev/ttyACM*", "/dev/ttyS*", "/dev/ttyAMA*"), nil
	}
	return ports, nil
}

// usbSerialPorts walks ttyDir for entries whose device link resolves into
// the USB tree.
func usbSerialPorts(ttyDir string) ([]serialPort, error) {
	entries, err := os.ReadDir(ttyDir)
	if err != nil {
		return nil, fmt.Errorf("failed to read directory %s: %w", ttyDir, err)
	}

	var ports []serialPort
	for _, entry := range entries {
		resolved, err := filepath.EvalSymlinks(filepath.Join(ttyDir, entry.Name(), "device"))
		if err != nil || !strings.Contains(resolved, "/usb") {
			continue
		}

		port := serialPort{
			Path: "/dev/" + entry.Name(),
			Name: entry.Name(),
		}
		readUSBAttributes(&port, resolved)
		ports = append(ports, port)
	}
	return ports, nil
}

// readUSBAttributes climbs from the interface node to the USB device node
// that carries idVendor and idProduct.
func readUSBAttributes(port *serialPort, devicePath string) {
	current := devicePath
	for range 10 {
		if vid, ok := readAttr(current, "idVendor"); ok {
			pid, _ := readAttr(current, "idProduct")
			port.VIDPID = detection.NormalizeVIDPID(vid, pid)
			port.Manufacturer, _ = readAttr(current, "manufacturer")
			port.Product, _ = readAttr(current, "product")
			port.SerialNumber, _ = readAttr(current, "serial")
			return
		}

		current = filepath.Dir(current)
		if current == "/" || current == "." {
			return
		}
	}
}

func readAttr(dir, name string) (string, bool) {
	// #nosec G304 -- dir comes from resolving a /sys/class/tty link
	data, err := os.ReadFile(filepath.Join(dir, name))
	if err != nil {
		return "", false
	}
	return strings.TrimSpace(string(data)), true
}

func globPorts(patterns ...string) []serialPort {
	var ports []serialPort
	for _, pattern := range patterns {
		matches, err := filepath.Glob(pattern)
		if err != nil {
			continue
		}
		for _, path := range matches {
			ports = append(ports, serialPort{Path: path, Name: filepath.Base(path)})
		}
	}
	return ports
}
