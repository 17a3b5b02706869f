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
	"errors"
	"testing"

	"github.com/ZaparooProject/go-mfrc522"
	"github.com/ZaparooProject/go-mfrc522/detection"
	virt "github.com/ZaparooProject/go-mfrc522/internal/testing"
	"github.com/ZaparooProject/go-mfrc522/transport/uart"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// silentPort accepts writes and never answers, like a serial device that
// is not a reader.
type silentPort struct{}

func (silentPort) Write(p []byte) (int, error) { return len(p), nil }
func (silentPort) Read([]byte) (int, error)    { return 0, nil }
func (silentPort) Close() error                { return nil }

// testDetector serves the given ports; paths in readers answer as chips.
func testDetector(ports []serialPort, readers map[string]byte) (*detector, *[]string) {
	var opened []string
	d := &detector{
		ports: func(context.Context) ([]serialPort, error) {
			return ports, nil
		},
		open: func(path string) (mfrc522.Conn, func() error, error) {
			opened = append(opened, path)
			if version, ok := readers[path]; ok {
				chip := virt.NewVirtualMFRC522(virt.ChipConfig{Version: version})
				t := uart.NewWithPort(virt.NewSerialPort(chip), path)
				return t, t.Close, nil
			}
			if path == "/dev/ttyBusy" {
				return nil, nil, errors.New("port busy")
			}
			t := uart.NewWithPort(silentPort{}, path)
			return t, t.Close, nil
		},
	}
	return d, &opened
}

var testPorts = []serialPort{
	{Path: "/dev/ttyUSB0", Name: "ttyUSB0", VIDPID: "1A86:7523", Product: "USB Serial"},
	{Path: "/dev/ttyUSB1", Name: "ttyUSB1", VIDPID: "0403:6001", Manufacturer: "FTDI", SerialNumber: "A123"},
	{Path: "/dev/ttyACM0", Name: "ttyACM0", VIDPID: "2341:0043", Product: "Arduino Uno"},
	{Path: "/dev/ttyS0", Name: "ttyS0"},
	{Path: "/dev/ttyBusy", Name: "ttyBusy", VIDPID: "10C4:EA60"},
}

func TestDetect_SafeModeProbes(t *testing.T) {
	t.Parallel()

	d, opened := testDetector(testPorts, map[string]byte{"/dev/ttyUSB1": 0x92})
	opts := detection.DefaultOptions()

	devices, err := d.Detect(context.Background(), &opts)
	require.NoError(t, err)
	require.Len(t, devices, 1)

	dev := devices[0]
	assert.Equal(t, "/dev/ttyUSB1", dev.Path)
	assert.Equal(t, detection.High, dev.Confidence)
	assert.Equal(t, "0403:6001", dev.Metadata["vidpid"])
	assert.Equal(t, "FTDI", dev.Metadata["manufacturer"])
	assert.Equal(t, "A123", dev.Metadata["serial"])
	assert.Equal(t, "MFRC522 v2.0", dev.Metadata["version"])

	// The blocklisted Arduino is never opened.
	assert.NotContains(t, *opened, "/dev/ttyACM0")
	assert.Contains(t, *opened, "/dev/ttyS0")
}

func TestDetect_SafeModeDropsKnownAdapterThatFailsProbe(t *testing.T) {
	t.Parallel()

	d, _ := testDetector(testPorts[:1], nil)

	_, err := d.Detect(context.Background(), &detection.Options{Mode: detection.Safe})
	require.ErrorIs(t, err, detection.ErrNoDevicesFound)
}

func TestDetect_PassiveReportsKnownAdapters(t *testing.T) {
	t.Parallel()

	d, opened := testDetector(testPorts, nil)
	opts := detection.DefaultOptions()
	opts.Mode = detection.Passive
	opts.IgnorePaths = []string{"/dev/ttyUSB1"}

	devices, err := d.Detect(context.Background(), &opts)
	require.NoError(t, err)
	assert.Empty(t, *opened)

	var paths []string
	for _, dev := range devices {
		assert.Equal(t, detection.Low, dev.Confidence)
		paths = append(paths, dev.Path)
	}
	assert.Equal(t, []string{"/dev/ttyUSB0", "/dev/ttyBusy"}, paths)
}

func TestDetect_EnumerationFailure(t *testing.T) {
	t.Parallel()

	d := &detector{
		ports: func(context.Context) ([]serialPort, error) {
			return nil, errors.New("sysfs unavailable")
		},
	}
	_, err := d.Detect(context.Background(), &detection.Options{Mode: detection.Safe})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "sysfs unavailable")
}

func TestIsKnownAdapter(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		port serialPort
		want bool
	}{
		{name: "CH340", port: serialPort{VIDPID: "1a86:7523"}, want: true},
		{name: "CP210x", port: serialPort{VIDPID: "10C4:EA60"}, want: true},
		{name: "product keyword", port: serialPort{Product: "RC522 RFID bridge"}, want: true},
		{name: "manufacturer keyword", port: serialPort{Manufacturer: "13.56MHz Tools"}, want: true},
		{name: "unknown", port: serialPort{VIDPID: "AAAA:BBBB", Product: "modem"}, want: false},
		{name: "bare UART", port: serialPort{Path: "/dev/ttyS0"}, want: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tt.want, isKnownAdapter(&tt.port))
		})
	}
}
