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

// Package uart finds MFRC522 readers wired to serial ports, usually through
// a USB serial adapter. Importing it registers the detector with the
// detection package.
package uart

import (
	"context"
	"fmt"
	"slices"
	"strings"

	"github.com/ZaparooProject/go-mfrc522"
	"github.com/ZaparooProject/go-mfrc522/detection"
	"github.com/ZaparooProject/go-mfrc522/transport/uart"
)

// serialPort is an enumerated port with whatever USB metadata the
// platform exposes.
type serialPort struct {
	Path         string
	Name         string
	VIDPID       string
	Manufacturer string
	Product      string
	SerialNumber string
}

type detector struct {
	ports func(ctx context.Context) ([]serialPort, error)
	open  func(path string) (mfrc522.Conn, func() error, error)
}

// New creates a new UART detector
func New() detection.Detector {
	return &detector{ports: getSerialPorts, open: openTransport}
}

func init() {
	detection.RegisterDetector(New())
}

// Transport returns the transport type
func (*detector) Transport() string {
	return "uart"
}

// Detect probes serial ports at the chip's power-on baud rate. Passive
// mode reports only ports behind a known adapter.
func (d *detector) Detect(ctx context.Context, opts *detection.Options) ([]detection.DeviceInfo, error) {
	ports, err := d.ports(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to enumerate serial ports: %w", err)
	}

	var devices []detection.DeviceInfo
	for i := range ports {
		select {
		case <-ctx.Done():
			return devices, detection.ErrDetectionTimeout
		default:
		}

		port := &ports[i]
		if detection.IsBlocked(port.VIDPID, opts.Blocklist) ||
			detection.IsPathIgnored(port.Path, opts.IgnorePaths) {
			continue
		}

		if device, ok := d.processPort(port, opts.Mode); ok {
			devices = append(devices, device)
		}
	}

	if len(devices) == 0 {
		return nil, detection.ErrNoDevicesFound
	}
	return devices, nil
}

func (d *detector) processPort(port *serialPort, mode detection.Mode) (detection.DeviceInfo, bool) {
	device := createDeviceInfo(port)
	if mode == detection.Passive {
		return device, isKnownAdapter(port)
	}

	// One attempt per port. Retrying would keep poking devices that are
	// not readers at all.
	conn, closeFn, err := d.open(port.Path)
	if err != nil {
		return device, false
	}
	defer func() { _ = closeFn() }()

	v, err := detection.Probe(conn, mode)
	confidence, ok := detection.Grade(v, err, mode)
	device.Confidence = confidence
	detection.ProbeMetadata(&device, v)
	return device, ok
}

func createDeviceInfo(port *serialPort) detection.DeviceInfo {
	meta := make(map[string]string)
	for key, val := range map[string]string{
		"vidpid":       port.VIDPID,
		"manufacturer": port.Manufacturer,
		"product":      port.Product,
		"serial":       port.SerialNumber,
	} {
		if val != "" {
			meta[key] = val
		}
	}
	return detection.DeviceInfo{
		Metadata:   meta,
		Transport:  "uart",
		Path:       port.Path,
		Name:       port.Name,
		Confidence: detection.Low,
	}
}

// knownAdapters are the USB serial bridges found on MFRC522 breakouts.
var knownAdapters = map[string]string{
	"067B:2303": "Prolific PL2303",
	"0403:6001": "FTDI FT232",
	"10C4:EA60": "Silicon Labs CP210x",
	"1A86:7523": "QinHeng CH340",
}

var readerKeywords = []string{"mfrc522", "rc522", "rfid", "13.56"}

func isKnownAdapter(port *serialPort) bool {
	if _, ok := knownAdapters[strings.ToUpper(port.VIDPID)]; ok {
		return true
	}
	desc := strings.ToLower(port.Manufacturer + " " + port.Product)
	return slices.ContainsFunc(readerKeywords, func(k string) bool {
		return strings.Contains(desc, k)
	})
}

func openTransport(path string) (mfrc522.Conn, func() error, error) {
	t, err := uart.New(path)
	if err != nil {
		return nil, nil, err
	}
	return t, t.Close, nil
}
