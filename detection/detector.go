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

// Package detection finds MFRC522 readers on the SPI, I2C and UART buses
// of the host. Transport subpackages register a Detector from init; import
// them for side effects to enable each bus.
package detection

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"time"

	"golang.org/x/sync/errgroup"
)

// Mode bounds how much a detector may talk to a candidate node.
type Mode int

const (
	// Passive only looks at device nodes.
	Passive Mode = iota
	// Safe reads VersionReg and nothing else.
	Safe
	// Full also soft-resets the chip and runs its self test.
	Full
)

// Confidence grades how sure a detector is that it found an MFRC522.
type Confidence int

const (
	// Low: a bus node exists, nothing was read.
	Low Confidence = iota
	// Medium: something answered, but not with a known version.
	Medium
	// High: VersionReg holds an MFRC522 or clone value.
	High
)

var confidenceNames = [...]string{Low: "low", Medium: "medium", High: "high"}

func (c Confidence) String() string {
	if c < 0 || int(c) >= len(confidenceNames) {
		return "unknown"
	}
	return confidenceNames[c]
}

// DeviceInfo describes one candidate reader.
type DeviceInfo struct {
	// Metadata holds detector specific facts such as "version", "vidpid"
	// or "address".
	Metadata   map[string]string
	Transport  string
	Path       string
	Name       string
	Confidence Confidence
}

func (d DeviceInfo) String() string {
	return fmt.Sprintf("%s device at %s (confidence: %s)", d.Transport, d.Path, d.Confidence)
}

// Options tunes a detection run.
type Options struct {
	// Blocklist lists USB VID:PID pairs of serial adapters to skip.
	Blocklist []string
	// IgnorePaths lists device nodes never to touch.
	IgnorePaths []string
	// Transports restricts the run to these buses. Empty means all.
	Transports []string
	CacheTTL   time.Duration
	// Timeout caps the whole run. Zero means no limit.
	Timeout     time.Duration
	Mode        Mode
	EnableCache bool
}

// DefaultOptions reads VersionReg on every bus for at most five seconds and
// caches hits for thirty.
func DefaultOptions() Options {
	return Options{
		Blocklist:   DefaultBlocklist(),
		CacheTTL:    30 * time.Second,
		Timeout:     5 * time.Second,
		Mode:        Safe,
		EnableCache: true,
	}
}

// Detector searches one bus type.
type Detector interface {
	Detect(ctx context.Context, opts *Options) ([]DeviceInfo, error)
	Transport() string
}

var (
	ErrNoDevicesFound      = errors.New("no MFRC522 devices found")
	ErrDetectionTimeout    = errors.New("detection timeout")
	ErrUnsupportedPlatform = errors.New("platform not supported")
)

var registry []Detector

// RegisterDetector adds d to the set DetectAll runs.
func RegisterDetector(d Detector) {
	registry = append(registry, d)
}

func getDetectors(transports []string) []Detector {
	if len(transports) == 0 {
		return registry
	}
	var out []Detector
	for _, d := range registry {
		if slices.Contains(transports, d.Transport()) {
			out = append(out, d)
		}
	}
	return out
}

// DetectAll runs the selected detectors concurrently. Devices come back in
// registration order and win over errors: a failing bus only surfaces when
// nothing was found anywhere.
func DetectAll(ctx context.Context, opts *Options) ([]DeviceInfo, error) {
	detectors := getDetectors(opts.Transports)
	if len(detectors) == 0 {
		return nil, errors.New("no detectors available for specified transports")
	}

	if opts.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, opts.Timeout)
		defer cancel()
	}

	found := make([][]DeviceInfo, len(detectors))
	failed := make([]error, len(detectors))
	var g errgroup.Group
	for i, d := range detectors {
		g.Go(func() error {
			found[i], failed[i] = detectOne(ctx, d, opts)
			return nil
		})
	}
	_ = g.Wait()

	if devices := slices.Concat(found...); len(devices) > 0 {
		return devices, nil
	}
	if ctx.Err() != nil {
		return nil, ErrDetectionTimeout
	}
	if err := errors.Join(failed...); err != nil {
		return nil, err
	}
	return nil, ErrNoDevicesFound
}

func detectOne(ctx context.Context, d Detector, opts *Options) ([]DeviceInfo, error) {
	transport := d.Transport()
	if opts.EnableCache {
		if cached, ok := getCached(transport, opts.CacheTTL); ok {
			// The entry was filtered with another caller's options.
			return filterDevices(cached, opts), nil
		}
	}

	devices, err := d.Detect(ctx, opts)
	if err != nil && !errors.Is(err, ErrNoDevicesFound) {
		return nil, fmt.Errorf("%s: %w", transport, err)
	}

	if opts.EnableCache {
		if len(devices) == 0 {
			clearCacheForTransport(transport)
		} else {
			setCached(transport, devices)
		}
	}
	return devices, nil
}

func filterDevices(devices []DeviceInfo, opts *Options) []DeviceInfo {
	if len(opts.IgnorePaths) == 0 && len(opts.Blocklist) == 0 {
		return devices
	}
	return slices.DeleteFunc(devices, func(d DeviceInfo) bool {
		if IsPathIgnored(d.Path, opts.IgnorePaths) {
			return true
		}
		vidpid, ok := d.Metadata["vidpid"]
		return ok && IsBlocked(vidpid, opts.Blocklist)
	})
}

// ClearDetectionCache drops every cached result.
func ClearDetectionCache() {
	clearCache()
}

// ClearDetectionCacheForTransport drops the cached result for one bus.
func ClearDetectionCacheForTransport(transport string) {
	clearCacheForTransport(transport)
}
