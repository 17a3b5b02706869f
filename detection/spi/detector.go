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

// Package spi finds MFRC522 readers on spidev nodes. Importing it
// registers the detector with the detection package.
package spi

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"strconv"

	"github.com/ZaparooProject/go-mfrc522"
	"github.com/ZaparooProject/go-mfrc522/detection"
	"github.com/ZaparooProject/go-mfrc522/transport/spi"
	"periph.io/x/conn/v3/physic"
)

const (
	// EnvDevice names an SPI device to try before scanning.
	EnvDevice = "MFRC522_SPI_DEVICE"
	// EnvFrequency overrides the probe clock in Hz.
	EnvFrequency = "MFRC522_SPI_FREQUENCY"
)

// Config describes one SPI device, as read from a JSON config file.
type Config struct {
	// Additional metadata copied into DeviceInfo
	Metadata map[string]string `json:"metadata,omitempty"`
	// Device path (e.g., "/dev/spidev0.0")
	Device string `json:"device"`
	// Human-readable name
	Name string `json:"name,omitempty"`
	// Bus clock in Hz, zero means spi.DefaultFrequency
	Frequency int64 `json:"frequency_hz,omitempty"`
}

type openFunc func(cfg Config) (mfrc522.Conn, func() error, error)

type detector struct {
	open        openFunc
	access      func(path string) error
	configPaths []string
	pattern     string
}

// New creates a new SPI detector
func New() detection.Detector {
	home, _ := os.UserHomeDir()
	return &detector{
		open:   openTransport,
		access: detection.CheckAccess,
		configPaths: []string{
			"mfrc522-spi.json",
			filepath.Join(home, ".config", "go-mfrc522", "spi.json"),
			"/etc/go-mfrc522/spi.json",
		},
		pattern: "/dev/spidev*",
	}
}

func init() {
	detection.RegisterDetector(New())
}

// Transport returns the transport type
func (*detector) Transport() string {
	return "spi"
}

// Detect probes every configured and discovered spidev node.
func (d *detector) Detect(ctx context.Context, opts *detection.Options) ([]detection.DeviceInfo, error) {
	configs := d.gatherConfigs()
	if len(configs) == 0 {
		return nil, detection.ErrNoDevicesFound
	}

	var devices []detection.DeviceInfo
	for _, cfg := range configs {
		select {
		case <-ctx.Done():
			return devices, detection.ErrDetectionTimeout
		default:
		}

		if detection.IsPathIgnored(cfg.Device, opts.IgnorePaths) {
			continue
		}
		if err := d.access(cfg.Device); err != nil {
			continue
		}

		if device, ok := d.probe(cfg, opts.Mode); ok {
			devices = append(devices, device)
		}
	}

	if len(devices) == 0 {
		return nil, detection.ErrNoDevicesFound
	}
	return devices, nil
}

func (d *detector) probe(cfg Config, mode detection.Mode) (detection.DeviceInfo, bool) {
	device := createDeviceInfo(cfg)
	if mode == detection.Passive {
		return device, true
	}

	conn, closeFn, err := d.open(cfg)
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

func openTransport(cfg Config) (mfrc522.Conn, func() error, error) {
	var opts []spi.Option
	if cfg.Frequency > 0 {
		opts = append(opts, spi.WithFrequency(physic.Frequency(cfg.Frequency)*physic.Hertz))
	}
	t, err := spi.New(cfg.Device, opts...)
	if err != nil {
		return nil, nil, err
	}
	return t, t.Close, nil
}

func createDeviceInfo(cfg Config) detection.DeviceInfo {
	device := detection.DeviceInfo{
		Transport:  "spi",
		Path:       cfg.Device,
		Name:       cfg.Name,
		Confidence: detection.Low,
		Metadata:   make(map[string]string, len(cfg.Metadata)+1),
	}
	for k, v := range cfg.Metadata {
		device.Metadata[k] = v
	}
	if cfg.Frequency > 0 {
		device.Metadata["frequency_hz"] = strconv.FormatInt(cfg.Frequency, 10)
	}
	if device.Name == "" {
		device.Name = "SPI device " + filepath.Base(cfg.Device)
	}
	return device
}

// gatherConfigs returns config file entries, then the environment, then
// scanned nodes, with duplicates removed.
func (d *detector) gatherConfigs() []Config {
	var configs []Config
	configs = append(configs, loadConfigFile(d.configPaths)...)
	if cfg := loadEnvConfig(); cfg != nil {
		configs = append(configs, *cfg)
	}
	configs = append(configs, scanDevices(d.pattern)...)
	return deduplicateConfigs(configs)
}

// loadConfigFile reads the first parseable file. A file holds either a
// list of configs or a single one.
func loadConfigFile(paths []string) []Config {
	for _, path := range paths {
		// #nosec G304 -- fixed list of config locations
		data, err := os.ReadFile(path)
		if err != nil {
			continue
		}

		var configs []Config
		if err := json.Unmarshal(data, &configs); err == nil {
			return configs
		}
		var cfg Config
		if err := json.Unmarshal(data, &cfg); err == nil && cfg.Device != "" {
			return []Config{cfg}
		}
		mfrc522.Debugf("SPI detect: ignoring malformed config %s", path)
	}
	return nil
}

func loadEnvConfig() *Config {
	device := os.Getenv(EnvDevice)
	if device == "" {
		return nil
	}

	cfg := &Config{Device: device, Name: "SPI device from environment"}
	if f := os.Getenv(EnvFrequency); f != "" {
		if hz, err := strconv.ParseInt(f, 10, 64); err == nil && hz > 0 {
			cfg.Frequency = hz
		}
	}
	return cfg
}

func scanDevices(pattern string) []Config {
	matches, err := filepath.Glob(pattern)
	if err != nil {
		return nil
	}

	configs := make([]Config, 0, len(matches))
	for _, path := range matches {
		configs = append(configs, Config{Device: path})
	}
	return configs
}

func deduplicateConfigs(configs []Config) []Config {
	seen := make(map[string]bool, len(configs))
	var unique []Config
	for _, cfg := range configs {
		key := filepath.Clean(cfg.Device)
		if cfg.Device == "" || seen[key] {
			continue
		}
		seen[key] = true
		unique = append(unique, cfg)
	}
	return unique
}
