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
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ZaparooProject/go-mfrc522"
	virt "github.com/ZaparooProject/go-mfrc522/internal/testing"
)

func newTestTransport(cfg virt.ChipConfig) (*Transport, *virt.SerialPort, *virt.VirtualMFRC522) {
	sim := virt.NewVirtualMFRC522(cfg)
	port := virt.NewSerialPort(sim)
	return NewWithPort(port, "/dev/ttyUSB0"), port, sim
}

func TestTransport_ReadTranslation(t *testing.T) {
	t.Parallel()

	tr, port, _ := newTestTransport(virt.ChipConfig{})

	w := []byte{mfrc522.EncodeRead(mfrc522.VersionReg), mfrc522.EncodeRead(mfrc522.TxControlReg), 0x00}
	r := make([]byte, len(w))
	require.NoError(t, tr.Tx(w, r))

	assert.Equal(t, []byte{0x00, 0x92, 0x80}, r)
	assert.Equal(t, []byte{0x80 | byte(mfrc522.VersionReg), 0x80 | byte(mfrc522.TxControlReg)}, port.Written)
}

func TestTransport_WriteTranslation(t *testing.T) {
	t.Parallel()

	tr, port, sim := newTestTransport(virt.ChipConfig{})

	w := []byte{mfrc522.EncodeWrite(mfrc522.FIFODataReg), 0x50, 0x00}
	require.NoError(t, tr.Tx(w, make([]byte, len(w))))

	fifo := byte(mfrc522.FIFODataReg)
	assert.Equal(t, []byte{fifo, 0x50, fifo, 0x00}, port.Written)
	assert.Equal(t, []byte{0x50, 0x00}, sim.FIFO())
}

func TestTransport_MissingEcho(t *testing.T) {
	t.Parallel()

	tr, port, _ := newTestTransport(virt.ChipConfig{})
	port.DropEcho = true

	w := []byte{mfrc522.EncodeWrite(mfrc522.TxASKReg), 0x40}
	err := tr.Tx(w, make([]byte, len(w)))
	require.ErrorIs(t, err, errReadTimeout)
	require.ErrorIs(t, err, mfrc522.ErrTransportRead)
	assert.True(t, mfrc522.IsRetryable(err))
}

// garbledPort echoes the wrong address.
type garbledPort struct {
	*virt.SerialPort
}

func (g garbledPort) Read(buf []byte) (int, error) {
	n, err := g.SerialPort.Read(buf)
	for i := range n {
		buf[i] ^= 0x01
	}
	return n, err
}

func TestTransport_EchoMismatch(t *testing.T) {
	t.Parallel()

	port := virt.NewSerialPort(virt.NewVirtualMFRC522(virt.ChipConfig{}))
	tr := NewWithPort(garbledPort{port}, "/dev/ttyUSB0")

	w := []byte{mfrc522.EncodeWrite(mfrc522.TxASKReg), 0x40}
	require.ErrorIs(t, tr.Tx(w, make([]byte, len(w))), errEchoMismatch)
}

func TestTransport_DrivesDevice(t *testing.T) {
	t.Parallel()

	field := virt.NewField(virt.NewVirtualCard(virt.TestUID10, 0x20))
	tr, _, _ := newTestTransport(virt.ChipConfig{Responder: field})

	device, err := mfrc522.New(tr, nil)
	require.NoError(t, err)
	require.NoError(t, device.Init())

	var uid mfrc522.UID
	require.True(t, device.IsNewCardPresent())
	require.True(t, device.ReadCardUID(&uid))
	assert.Equal(t, virt.TestUID10, uid.Bytes())
	assert.Equal(t, "uart", device.Name())
}

func TestTransport_Close(t *testing.T) {
	t.Parallel()

	tr, _, _ := newTestTransport(virt.ChipConfig{})
	require.NoError(t, tr.Close())
	require.NoError(t, tr.Close())
	assert.False(t, tr.IsConnected())

	err := tr.Tx([]byte{mfrc522.EncodeRead(mfrc522.VersionReg), 0}, make([]byte, 2))
	require.ErrorIs(t, err, mfrc522.ErrTransportClosed)
}

func TestIsInterruptedSystemCall(t *testing.T) {
	t.Parallel()

	assert.False(t, isInterruptedSystemCall(nil))
	assert.True(t, isInterruptedSystemCall(errors.New("read /dev/ttyUSB0: interrupted system call")))
	assert.True(t, isInterruptedSystemCall(errors.New("EINTR")))
	assert.False(t, isInterruptedSystemCall(errors.New("no such device")))
}
