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

//nolint:varnamelen // Test file - short vars acceptable
package testing

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ZaparooProject/go-mfrc522/internal/frame"
)

var reqa = Frame{Data: []byte{piccReqA}, TxLastBits: 7}

func wupa() Frame {
	return Frame{Data: []byte{piccWupA}, TxLastBits: 7}
}

func selectFrame(level int, seg []byte) Frame {
	f := []byte{piccSelCL1 + byte(2*level), frame.NVBFull}
	f = append(f, seg...)
	f = append(f, frame.BCC(seg))
	return Frame{Data: frame.AppendCRCA(f)}
}

func TestField_RequestStates(t *testing.T) {
	t.Parallel()

	card := NewVirtualMifare1K(nil)
	f := NewField(card)

	r := f.Respond(reqa)
	assert.Equal(t, []byte{0x04, 0x00}, r.Data)
	assert.Equal(t, CardReady, card.State())

	r = f.Respond(selectFrame(0, TestUID4))
	require.True(t, frame.CheckCRCA(r.Data))
	assert.Equal(t, byte(0x08), r.Data[0])
	assert.Equal(t, CardActive, card.State())

	hlta := Frame{Data: frame.AppendCRCA([]byte{piccHltA, 0x00})}
	assert.True(t, f.Respond(hlta).Silent())
	assert.Equal(t, CardHalt, card.State())

	assert.True(t, f.Respond(reqa).Silent(), "halted card ignores REQA")
	assert.False(t, f.Respond(wupa()).Silent(), "WUPA wakes a halted card")
	assert.Equal(t, CardReady, card.State())
}

func TestField_ActiveCardDropsToIdleOnREQA(t *testing.T) {
	t.Parallel()

	card := NewVirtualMifare1K(nil)
	f := NewField(card)
	f.Respond(reqa)
	f.Respond(selectFrame(0, TestUID4))
	require.Equal(t, CardActive, card.State())

	assert.True(t, f.Respond(reqa).Silent())
	assert.Equal(t, CardIdle, card.State())
	assert.False(t, f.Respond(reqa).Silent())
}

func TestField_RemovedCardIsSilent(t *testing.T) {
	t.Parallel()

	card := NewVirtualMifare1K(nil)
	f := NewField(card)
	card.Remove()
	assert.True(t, f.Respond(reqa).Silent())

	card.Insert()
	assert.False(t, f.Respond(reqa).Silent())
}

func TestField_AnticollisionSingleCard(t *testing.T) {
	t.Parallel()

	f := NewField(NewVirtualMifare1K(nil))
	f.Respond(reqa)

	r := f.Respond(Frame{Data: []byte{piccSelCL1, 0x20}})
	assert.Equal(t, append(append([]byte(nil), TestUID4...), frame.BCC(TestUID4)), r.Data)
	assert.Zero(t, r.CollisionPos)
}

func TestField_AnticollisionTwoCards(t *testing.T) {
	t.Parallel()

	// First difference at bit 9 (byte 1, bit 1): 0x00 vs 0x02.
	a := NewVirtualCard([]byte{0x11, 0x00, 0x33, 0x44}, 0x08)
	b := NewVirtualCard([]byte{0x11, 0x02, 0x33, 0x44}, 0x08)
	f := NewField(a, b)
	f.Respond(reqa)

	r := f.Respond(Frame{Data: []byte{piccSelCL1, 0x20}})
	assert.Equal(t, 10, r.CollisionPos)
	require.Len(t, r.Data, 5)
	assert.Equal(t, byte(0x11), r.Data[0])
	assert.Equal(t, byte(0x02), r.Data[1], "collision bit reads 1, later bits 0")
	assert.Zero(t, r.Data[2])

	// Resend the first 10 bits with bit 9 set: only b answers.
	r = f.Respond(Frame{Data: []byte{piccSelCL1, 0x32, 0x11, 0x02}, TxLastBits: 2})
	assert.Zero(t, r.CollisionPos)
	require.Len(t, r.Data, 4)
	assert.Equal(t, byte(0x00), r.Data[0]&0x03, "host-owned bits are zero")
	assert.Equal(t, byte(0x33), r.Data[1])
}

func TestField_CascadeLevels(t *testing.T) {
	t.Parallel()

	card := NewVirtualUltralight(nil)
	f := NewField(card)
	r := f.Respond(reqa)
	assert.Equal(t, []byte{0x44, 0x00}, r.Data)

	segs, err := frame.Segments(TestUID7)
	require.NoError(t, err)

	r = f.Respond(selectFrame(0, segs[0][:]))
	assert.Equal(t, byte(frame.SAKCascade), r.Data[0])
	assert.Equal(t, CardReady, card.State())

	r = f.Respond(selectFrame(1, segs[1][:]))
	assert.Equal(t, byte(0x00), r.Data[0])
	assert.Equal(t, CardActive, card.State())
}

func TestField_BadSelectIgnored(t *testing.T) {
	t.Parallel()

	f := NewField(NewVirtualMifare1K(nil))
	f.Respond(reqa)

	sel := selectFrame(0, TestUID4)
	sel.Data[6] ^= 0x01
	assert.True(t, f.Respond(sel).Silent())
}

func TestField_CorruptSAKCRC(t *testing.T) {
	t.Parallel()

	card := NewVirtualMifare1K(nil)
	card.CorruptSAKCRC(true)
	f := NewField(card)
	f.Respond(reqa)

	r := f.Respond(selectFrame(0, TestUID4))
	require.Len(t, r.Data, 3)
	assert.False(t, frame.CheckCRCA(r.Data))
}

func TestCardState_String(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "IDLE", CardIdle.String())
	assert.Equal(t, "HALT", CardHalt.String())
	assert.Equal(t, "UNKNOWN", CardState(42).String())
}
