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

package polling

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/ZaparooProject/go-mfrc522"
	"github.com/ZaparooProject/go-mfrc522/internal/frame"
	virt "github.com/ZaparooProject/go-mfrc522/internal/testing"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewSession_Defaults(t *testing.T) {
	t.Parallel()

	device, err := mfrc522.New(virt.NewVirtualMFRC522(virt.ChipConfig{}), nil)
	require.NoError(t, err)

	s := NewSession(device, nil)
	assert.Equal(t, DefaultConfig(), s.config)
	assert.Same(t, device, s.GetDevice())
	assert.Equal(t, StateIdle, s.GetState().DetectionState)
}

func TestSession_DetectAndRemove(t *testing.T) {
	t.Parallel()

	mock := newMockClock()
	card := virt.NewVirtualMifare1K(virt.TestUID4)
	env := newTestEnv(t, mock, nil, card)
	ctx := context.Background()

	require.NoError(t, env.session.PollOnce(ctx))
	assert.Equal(t, []string{"DE:AD:BE:EF"}, env.events.Detected())

	state := env.session.GetState()
	assert.True(t, state.Present)
	assert.Equal(t, "DE:AD:BE:EF", state.LastUID)
	assert.Equal(t, "MIFARE 1KB", state.LastType)
	assert.Equal(t, StateCardDetected, state.DetectionState)
	assert.Equal(t, mock.Now(), state.LastSeenTime)
	assert.Equal(t, virt.CardHalt, card.State(), "card is halted after each cycle")

	card.Remove()
	require.NoError(t, env.session.PollOnce(ctx))
	mock.Add(200 * time.Millisecond)
	assert.Zero(t, env.events.Removed(), "removal waits for the timeout")

	mock.Add(100 * time.Millisecond)
	assert.Eventually(t, func() bool { return env.events.Removed() == 1 }, time.Second, time.Millisecond)
	assert.False(t, env.session.GetState().Present)
	assert.Len(t, env.events.Detected(), 1)
}

func TestSession_CardStaysPresent(t *testing.T) {
	t.Parallel()

	mock := newMockClock()
	env := newTestEnv(t, mock, nil, virt.NewVirtualCard(virt.TestUID7, 0x00))

	for range 6 {
		require.NoError(t, env.session.PollOnce(context.Background()))
		mock.Add(100 * time.Millisecond)
	}

	assert.Equal(t, []string{"04:12:34:56:78:9A:BC"}, env.events.Detected())
	assert.Zero(t, env.events.Removed())
	assert.Empty(t, env.events.Changed())

	m := env.session.Metrics()
	assert.Equal(t, int64(6), m.PollCycles)
	assert.Equal(t, int64(6), m.CardsDetected)
	assert.Zero(t, m.PollErrors)
}

func TestSession_CardChanged(t *testing.T) {
	t.Parallel()

	mock := newMockClock()
	first := virt.NewVirtualMifare1K(virt.TestUID4)
	env := newTestEnv(t, mock, nil, first)

	require.NoError(t, env.session.PollOnce(context.Background()))

	first.Remove()
	env.field.Add(virt.NewVirtualCard(virt.TestUID10, 0x20))
	require.NoError(t, env.session.PollOnce(context.Background()))

	assert.Equal(t, []string{"DE:AD:BE:EF"}, env.events.Detected())
	assert.Equal(t, []string{"01:02:03:04:05:06:07:08:09:0A"}, env.events.Changed())
	assert.Zero(t, env.events.Removed())
	assert.Equal(t, "PICC compliant with ISO/IEC 14443-4", env.session.GetState().LastType)
}

func TestSession_EmptyField(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t, newMockClock(), nil)

	for range 5 {
		require.NoError(t, env.session.PollOnce(context.Background()))
	}
	assert.Empty(t, env.events.Detected())

	m := env.session.Metrics()
	assert.Equal(t, int64(5), m.PollCycles)
	assert.Zero(t, m.PollErrors)
	assert.Zero(t, m.CardsDetected)
}

func TestSession_CallbackFailures(t *testing.T) {
	t.Parallel()

	tests := []struct {
		callback func(*mfrc522.DetectedCard) error
		name     string
		wantErr  string
	}{
		{
			name:     "error",
			callback: func(*mfrc522.DetectedCard) error { return errors.New("database down") },
			wantErr:  "OnCardDetected callback failed: database down",
		},
		{
			name:     "panic",
			callback: func(*mfrc522.DetectedCard) error { panic("boom") },
			wantErr:  "OnCardDetected callback panicked: boom",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			env := newTestEnv(t, newMockClock(), nil, virt.NewVirtualMifare1K(virt.TestUID4))
			env.session.SetOnCardDetected(tt.callback)

			err := env.session.PollOnce(context.Background())
			require.ErrorIs(t, err, ErrCallbackFailed)
			assert.Contains(t, err.Error(), tt.wantErr)
			assert.Equal(t, int64(1), env.session.Metrics().CallbackErrors)
			assert.True(t, env.session.GetState().Present)
		})
	}
}

func TestSession_ReaderClosed(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t, newMockClock(), nil, virt.NewVirtualMifare1K(virt.TestUID4))
	require.NoError(t, env.session.PollOnce(context.Background()))

	require.NoError(t, env.device.Close())
	err := env.session.PollOnce(context.Background())
	require.ErrorIs(t, err, mfrc522.ErrDeviceClosed)
	assert.Contains(t, err.Error(), "reader failed")
	assert.Equal(t, 1, env.events.Removed(), "a dead reader drops the card at once")
}

func TestSession_TransientErrors(t *testing.T) {
	t.Parallel()

	// A card whose SAK always arrives with a broken CRC.
	responder := virt.ResponderFunc(func(f virt.Frame) virt.Reply {
		switch {
		case len(f.Data) == 1 && f.Data[0] == mfrc522.PICCWupA:
			return virt.ATQAReply(4)
		case len(f.Data) == 2 && f.Data[0] == mfrc522.PICCSelCL1:
			return virt.SegmentReply(virt.TestUID4)
		case len(f.Data) == frame.SelectFrameLen:
			reply := virt.SAKReply(0x08)
			reply.Data[2] ^= 0xFF
			return reply
		default:
			return virt.TimeoutReply()
		}
	})
	env := newTestEnvWithResponder(t, newMockClock(), nil, responder)

	require.NoError(t, env.session.PollOnce(context.Background()))
	require.NoError(t, env.session.PollOnce(context.Background()))

	err := env.session.PollOnce(context.Background())
	require.ErrorIs(t, err, mfrc522.StatusCRCMismatch)
	assert.Contains(t, err.Error(), "too many polling errors (3)")
	assert.Equal(t, int64(3), env.session.Metrics().PollErrors)
	assert.Empty(t, env.events.Detected())
}

func TestSession_ContextCancelled(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t, newMockClock(), nil, virt.NewVirtualMifare1K(virt.TestUID4))
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	require.ErrorIs(t, env.session.PollOnce(ctx), context.Canceled)
	assert.Zero(t, env.chip.CommandCount(byte(mfrc522.CmdTransceive)))
}

func TestSession_Start(t *testing.T) {
	t.Parallel()

	cfg := &Config{PollInterval: 5 * time.Millisecond, CardRemovalTimeout: 50 * time.Millisecond}
	card := virt.NewVirtualMifare1K(virt.TestUID4)
	env := newTestEnv(t, nil, cfg, card)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- env.session.Start(ctx) }()

	assert.Eventually(t, func() bool { return len(env.events.Detected()) == 1 }, time.Second, time.Millisecond)

	card.Remove()
	assert.Eventually(t, func() bool { return env.events.Removed() == 1 }, time.Second, time.Millisecond)

	card.Insert()
	assert.Eventually(t, func() bool { return len(env.events.Detected()) == 2 }, time.Second, time.Millisecond)

	cancel()
	select {
	case err := <-done:
		require.ErrorIs(t, err, context.Canceled)
	case <-time.After(time.Second):
		t.Fatal("Start did not return after cancel")
	}
}

func TestSession_PauseResume(t *testing.T) {
	t.Parallel()

	cfg := &Config{PollInterval: 2 * time.Millisecond, CardRemovalTimeout: 50 * time.Millisecond}
	env := newTestEnv(t, nil, cfg)

	env.session.Pause()
	done := make(chan error, 1)
	go func() { done <- env.session.Start(context.Background()) }()

	time.Sleep(20 * time.Millisecond)
	assert.Zero(t, env.session.Metrics().PollCycles)

	env.session.Resume()
	assert.Eventually(t, func() bool { return env.session.Metrics().PollCycles > 0 }, time.Second, time.Millisecond)

	env.session.Pause()
	require.NoError(t, env.session.Close())
	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(time.Second):
		t.Fatal("Start did not return after Close")
	}
}

func TestSession_WaitForNextCard(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t, nil, nil)
	card := virt.NewVirtualMifare1K(virt.TestUID4)
	go func() {
		time.Sleep(20 * time.Millisecond)
		env.field.Add(card)
	}()

	var got string
	var version mfrc522.Version
	err := env.session.WaitForNextCard(context.Background(), time.Second,
		func(d *mfrc522.Device, c *mfrc522.DetectedCard) error {
			got = c.UID.String()
			var err error
			version, err = d.Version()
			return err
		})
	require.NoError(t, err)

	assert.Equal(t, "DE:AD:BE:EF", got)
	assert.Equal(t, mfrc522.Version2, version)
	assert.Equal(t, virt.CardHalt, card.State())
	assert.Empty(t, env.events.Detected(), "callbacks do not fire for waited cards")
	assert.False(t, env.session.isPaused.Load())
}

func TestSession_WaitForNextCard_Errors(t *testing.T) {
	t.Parallel()

	t.Run("timeout", func(t *testing.T) {
		t.Parallel()
		env := newTestEnv(t, nil, nil)
		err := env.session.WaitForNextCard(context.Background(), 30*time.Millisecond,
			func(*mfrc522.Device, *mfrc522.DetectedCard) error { return nil })
		require.ErrorIs(t, err, ErrCardWaitTimeout)
	})

	t.Run("callback error", func(t *testing.T) {
		t.Parallel()
		env := newTestEnv(t, nil, nil, virt.NewVirtualMifare1K(virt.TestUID4))
		failure := errors.New("write rejected")
		err := env.session.WaitForNextCard(context.Background(), time.Second,
			func(*mfrc522.Device, *mfrc522.DetectedCard) error { return failure })
		require.ErrorIs(t, err, failure)
	})

	t.Run("cancelled", func(t *testing.T) {
		t.Parallel()
		env := newTestEnv(t, nil, nil)
		ctx, cancel := context.WithCancel(context.Background())
		cancel()
		err := env.session.WaitForNextCard(ctx, time.Second,
			func(*mfrc522.Device, *mfrc522.DetectedCard) error { return nil })
		require.ErrorIs(t, err, context.Canceled)
	})

	t.Run("stays paused", func(t *testing.T) {
		t.Parallel()
		env := newTestEnv(t, nil, nil, virt.NewVirtualMifare1K(virt.TestUID4))
		env.session.Pause()
		err := env.session.WaitForNextCard(context.Background(), time.Second,
			func(*mfrc522.Device, *mfrc522.DetectedCard) error { return nil })
		require.NoError(t, err)
		assert.True(t, env.session.isPaused.Load())
	})
}

func TestSession_WithDevice(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t, newMockClock(), nil)
	err := env.session.WithDevice(func(d *mfrc522.Device) error {
		return d.SetAntennaGain(0x70)
	})
	require.NoError(t, err)

	gain, err := env.device.AntennaGain()
	require.NoError(t, err)
	assert.Equal(t, byte(0x70), gain)
}

func TestSession_IdleInterval(t *testing.T) {
	t.Parallel()

	mock := newMockClock()
	cfg := testConfig()
	cfg.IdleInterval = 250 * time.Millisecond
	cfg.IdleAfter = 5 * time.Second
	card := virt.NewVirtualMifare1K(virt.TestUID4)
	card.Remove()
	env := newTestEnv(t, mock, cfg, card)

	assert.Equal(t, cfg.PollInterval, env.session.currentInterval())

	mock.Add(6 * time.Second)
	assert.Equal(t, cfg.IdleInterval, env.session.currentInterval())

	card.Insert()
	require.NoError(t, env.session.PollOnce(context.Background()))
	assert.Equal(t, cfg.PollInterval, env.session.currentInterval())
}

// fakeRecoverer records recovery attempts.
type fakeRecoverer struct {
	err    error
	device *mfrc522.Device
	calls  int
}

func (f *fakeRecoverer) AttemptRecovery(context.Context) error {
	f.calls++
	return f.err
}

func (f *fakeRecoverer) GetDevice() *mfrc522.Device {
	return f.device
}

func TestSession_SleepRecovery(t *testing.T) {
	t.Parallel()

	newEnv := func(t *testing.T) (*testEnv, *fakeRecoverer, *mfrc522.Device) {
		t.Helper()
		mock := newMockClock()
		cfg := testConfig()
		cfg.SleepRecovery = DefaultSleepRecoveryConfig()
		env := newTestEnv(t, mock, cfg, virt.NewVirtualMifare1K(virt.TestUID4))

		replacement, err := mfrc522.New(virt.NewVirtualMFRC522(virt.ChipConfig{}), nil, mfrc522.WithClock(mock))
		require.NoError(t, err)
		r := &fakeRecoverer{device: replacement}
		env.session.SetRecoverer(r)

		require.NoError(t, env.session.checkSleep(context.Background()))
		require.NoError(t, env.session.PollOnce(context.Background()))
		mock.Add(150 * time.Millisecond)
		require.NoError(t, env.session.checkSleep(context.Background()))
		assert.Zero(t, r.calls, "a normal gap is not a sleep")

		mock.Set(mock.Now().Add(time.Hour))
		return env, r, replacement
	}

	t.Run("recovered", func(t *testing.T) {
		t.Parallel()
		env, r, replacement := newEnv(t)

		require.NoError(t, env.session.checkSleep(context.Background()))
		assert.Equal(t, 1, r.calls)
		assert.Same(t, replacement, env.session.GetDevice())
		assert.Eventually(t, func() bool { return env.events.Removed() == 1 }, time.Second, time.Millisecond)
	})

	t.Run("failed", func(t *testing.T) {
		t.Parallel()
		env, r, _ := newEnv(t)
		r.err = errors.New("bus gone")

		err := env.session.checkSleep(context.Background())
		require.Error(t, err)
		assert.Contains(t, err.Error(), "reader recovery failed: bus gone")
	})
}

func TestSession_SleepRecoveryDefaultReinitializes(t *testing.T) {
	t.Parallel()

	mock := newMockClock()
	cfg := testConfig()
	cfg.SleepRecovery = DefaultSleepRecoveryConfig()
	env := newTestEnv(t, mock, cfg)

	require.NoError(t, env.session.checkSleep(context.Background()))
	mock.Set(mock.Now().Add(time.Minute))
	require.NoError(t, env.session.checkSleep(context.Background()))

	assert.Equal(t, 2, env.chip.CommandCount(byte(mfrc522.CmdSoftReset)))
	assert.Same(t, env.device, env.session.GetDevice())
}

func TestSession_CloseStopsRemovalTimer(t *testing.T) {
	t.Parallel()

	mock := newMockClock()
	card := virt.NewVirtualMifare1K(virt.TestUID4)
	env := newTestEnv(t, mock, nil, card)

	require.NoError(t, env.session.PollOnce(context.Background()))
	require.NoError(t, env.session.Close())

	card.Remove()
	mock.Add(time.Second)
	assert.Zero(t, env.events.Removed())
	assert.Nil(t, env.session.GetState().RemovalTimer)
}

func BenchmarkSession_PollOnce(b *testing.B) {
	chip := virt.NewVirtualMFRC522(virt.ChipConfig{
		Responder: virt.NewField(virt.NewVirtualMifare1K(virt.TestUID4)),
	})
	device, err := mfrc522.New(chip, nil)
	if err != nil {
		b.Fatal(err)
	}
	if err := device.Init(); err != nil {
		b.Fatal(err)
	}
	s := NewSession(device, testConfig())
	defer func() { _ = s.Close() }()

	ctx := context.Background()
	b.ResetTimer()
	for range b.N {
		if err := s.PollOnce(ctx); err != nil {
			b.Fatal(err)
		}
	}
}
