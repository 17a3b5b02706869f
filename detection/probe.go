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

package detection

import (
	"errors"
	"fmt"

	"github.com/ZaparooProject/go-mfrc522"
)

// ErrNoResponse means the bus read back 0x00 or 0xFF from VersionReg,
// which is what an empty bus returns.
var ErrNoResponse = errors.New("no chip responding")

// Probe reads VersionReg through conn. In Full mode the chip is also
// soft-reset and initialized, then the antenna is switched off again.
// Passive mode performs no I/O and returns a zero version.
//
// Probe never closes conn.
func Probe(conn mfrc522.Conn, mode Mode) (mfrc522.Version, error) {
	if mode == Passive {
		return 0, nil
	}

	dev, err := mfrc522.New(conn, nil)
	if err != nil {
		return 0, err
	}

	if mode == Full {
		if err := dev.Init(); err != nil {
			return 0, fmt.Errorf("init: %w", err)
		}
		if err := dev.AntennaOff(); err != nil {
			return 0, fmt.Errorf("antenna off: %w", err)
		}
	}

	v, err := dev.Version()
	if err != nil {
		return 0, fmt.Errorf("read version: %w", err)
	}
	if v == 0x00 || v == 0xFF {
		return v, ErrNoResponse
	}
	return v, nil
}

// Grade turns a probe result into a confidence level. The bool is false
// when the device should be dropped.
func Grade(v mfrc522.Version, err error, mode Mode) (Confidence, bool) {
	switch {
	case mode == Passive:
		return Low, true
	case err != nil:
		return Low, false
	case v.Known():
		return High, true
	default:
		return Medium, true
	}
}

// ProbeMetadata records a probed version on a device.
func ProbeMetadata(device *DeviceInfo, v mfrc522.Version) {
	if v == 0 {
		return
	}
	if device.Metadata == nil {
		device.Metadata = make(map[string]string)
	}
	device.Metadata["version"] = v.String()
}
