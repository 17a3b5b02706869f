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

// Package i2c finds MFRC522 readers on Linux I2C buses. Importing it
// registers the detector with the detection package.
package i2c

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strings"

	"github.com/ZaparooProject/go-mfrc522"
	"github.com/ZaparooProject/go-mfrc522/detection"
	"github.com/ZaparooProject/go-mfrc522/transport/i2c"
)

// EnvDevice names a bus path, optionally with ":addr", to try before
// scanning.
const EnvDevice = "MFRC522_I2C_DEVICE"

type openFunc func(path string) (mfrc522.Conn, func() error, error)

type detector struct {
	open    openFunc
	access  func(path string) error
	pattern string
	goos    string
}

// New creates a new I2C detector
func New() detection.Detector {
	return &detector{
		open:    openTransport,
		access:  detection.CheckAccess,
		pattern: "/dev/i2c-*",
		goos:    runtime.GOOS,
	}
}

func init() {
	detection.RegisterDetector(New())
}

// Transport returns the transport type
func (*detector) Transport() string {
	return "i2c"
}

// Detect probes the default MFRC522 address on every bus. Only Linux
// exposes buses as device nodes.
func (d *detector) Detect(ctx context.Context, opts *detection.Options) ([]detection.DeviceInfo, error) {
	if d.goos != "linux" {
		return nil, detection.ErrUnsupportedPlatform
	}

	var devices []detection.DeviceInfo
	for _, path := range d.candidates() {
		select {
		case <-ctx.Done():
			return devices, detection.ErrDetectionTimeout
		default:
		}

		if detection.IsPathIgnored(path, opts.IgnorePaths) {
			continue
		}
		bus, _, _ := cutAddress(path)
		if err := d.access(bus); err != nil {
			continue
		}

		if device, ok := d.probe(path, opts.Mode); ok {
			devices = append(devices, device)
		}
	}

	if len(devices) == 0 {
		return nil, detection.ErrNoDevicesFound
	}
	return devices, nil
}

func (d *detector) candidates() []string {
	var paths []string
	if env := os.Getenv(EnvDevice); env != "" {
		paths = append(paths, env)
	}

	matches, _ := filepath.Glob(d.pattern)
	for _, bus := range matches {
		path := fmt.Sprintf("%s:0x%02X", bus, i2c.DefaultAddress)
		if len(paths) > 0 && paths[0] == path {
			continue
		}
		paths = append(paths, path)
	}
	return paths
}

func (d *detector) probe(path string, mode detection.Mode) (detection.DeviceInfo, bool) {
	bus, addr, _ := cutAddress(path)
	device := detection.DeviceInfo{
		Transport:  "i2c",
		Path:       path,
		Name:       fmt.Sprintf("I2C device on %s", filepath.Base(bus)),
		Confidence: detection.Low,
		Metadata:   map[string]string{"address": addr},
	}
	if mode == detection.Passive {
		return device, true
	}

	conn, closeFn, err := d.open(path)
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

func cutAddress(path string) (bus, addr string, found bool) {
	bus, addr, found = strings.Cut(path, ":")
	if !found || addr == "" {
		addr = fmt.Sprintf("0x%02X", i2c.DefaultAddress)
	}
	return bus, addr, found
}

func openTransport(path string) (mfrc522.Conn, func() error, error) {
	t, err := i2c.New(path)
	if err != nil {
		return nil, nil, err
	}
	return t, t.Close, nil
}
