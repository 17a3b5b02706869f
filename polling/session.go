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

// Package polling watches a reader for cards arriving and leaving.
//
// Each cycle wakes the field with WUPA, selects one card and halts it again,
// so a card that stays on the antenna is seen on every cycle. A card that
// goes unseen for CardRemovalTimeout is reported as removed.
package polling

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/ZaparooProject/go-mfrc522"
	"github.com/ZaparooProject/go-mfrc522/internal/syncutil"
	"github.com/benbjohnson/clock"
)

var (
	// ErrCardWaitTimeout is returned by WaitForNextCard when no card
	// arrived in time.
	ErrCardWaitTimeout = errors.New("timeout waiting for card")
	// ErrCallbackFailed wraps errors and panics from detection callbacks.
	ErrCallbackFailed = errors.New("callback error during polling")
)

// Session handles continuous card monitoring with state machine
type Session struct {
	lastCard       time.Time
	lastPoll       time.Time
	clock          clock.Clock
	recoverer      DeviceRecoverer
	OnCardDetected func(card *mfrc522.DetectedCard) error
	OnCardRemoved  func()
	OnCardChanged  func(card *mfrc522.DetectedCard) error
	config         *Config
	device         *mfrc522.Device
	resumeChan     chan struct{}
	state          CardState
	metrics        sessionMetrics
	errorCount     atomic.Int32
	stateMutex     syncutil.RWMutex
	deviceMutex    syncutil.Mutex
	closed         atomic.Bool
	isPaused       atomic.Bool
}

// NewSession creates a new card monitoring session. Timers run on the
// device's clock.
func NewSession(device *mfrc522.Device, config *Config) *Session {
	if config == nil {
		config = DefaultConfig()
	}
	c := device.Clock()
	return &Session{
		device:     device,
		config:     config,
		clock:      c,
		lastCard:   c.Now(),
		resumeChan: make(chan struct{}, 1),
	}
}

// SetRecoverer replaces the recoverer used after a detected host sleep.
// Without one, the session re-initializes the chip.
func (s *Session) SetRecoverer(r DeviceRecoverer) {
	s.stateMutex.Lock()
	defer s.stateMutex.Unlock()
	s.recoverer = r
}

// GetState returns the current card state
func (s *Session) GetState() CardState {
	s.stateMutex.RLock()
	defer s.stateMutex.RUnlock()
	return s.state
}

// GetDevice returns the device currently polled. It changes only after a
// recovery reopened the reader.
func (s *Session) GetDevice() *mfrc522.Device {
	s.stateMutex.RLock()
	defer s.stateMutex.RUnlock()
	return s.device
}

// Metrics returns a snapshot of the session counters.
func (s *Session) Metrics() Metrics {
	return s.metrics.snapshot()
}

// SetOnCardDetected sets the callback for when a card is detected.
func (s *Session) SetOnCardDetected(callback func(*mfrc522.DetectedCard) error) {
	s.stateMutex.Lock()
	defer s.stateMutex.Unlock()
	s.OnCardDetected = callback
}

// SetOnCardRemoved sets the callback for when a card is removed.
func (s *Session) SetOnCardRemoved(callback func()) {
	s.stateMutex.Lock()
	defer s.stateMutex.Unlock()
	s.OnCardRemoved = callback
}

// SetOnCardChanged sets the callback for when a different card replaces
// the present one without a removal in between.
func (s *Session) SetOnCardChanged(callback func(*mfrc522.DetectedCard) error) {
	s.stateMutex.Lock()
	defer s.stateMutex.Unlock()
	s.OnCardChanged = callback
}

// Start polls until ctx is done, the session is closed, a callback fails or
// the reader fails for good.
func (s *Session) Start(ctx context.Context) error {
	for {
		if err := s.waitWhilePaused(ctx); err != nil {
			return err
		}
		if s.closed.Load() {
			return nil
		}
		if err := s.checkSleep(ctx); err != nil {
			return err
		}
		if err := s.PollOnce(ctx); err != nil {
			return err
		}
		if err := s.wait(ctx, s.currentInterval()); err != nil {
			return err
		}
	}
}

// Close stops the removal timer and makes Start return.
func (s *Session) Close() error {
	s.closed.Store(true)

	s.stateMutex.Lock()
	s.state.stopRemovalTimer()
	s.stateMutex.Unlock()

	s.isPaused.Store(false)
	select {
	case s.resumeChan <- struct{}{}:
	default:
	}
	return nil
}

// Pause stops the polling loop before its next cycle.
func (s *Session) Pause() {
	s.isPaused.Store(true)
}

// Resume restarts the polling loop after a pause
func (s *Session) Resume() {
	if s.isPaused.CompareAndSwap(true, false) {
		select {
		case s.resumeChan <- struct{}{}:
		default:
			// A resume is already pending.
		}
	}
}

func (s *Session) waitWhilePaused(ctx context.Context) error {
	for s.isPaused.Load() {
		select {
		case <-s.resumeChan:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	return nil
}

func (s *Session) wait(ctx context.Context, d time.Duration) error {
	timer := s.clock.Timer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// currentInterval slows polling down while the field has been empty for
// a while.
func (s *Session) currentInterval() time.Duration {
	s.stateMutex.RLock()
	present := s.state.Present
	lastCard := s.lastCard
	s.stateMutex.RUnlock()

	return s.config.interval(present, s.clock.Since(lastCard))
}

// checkSleep compares the time since the previous cycle with the poll
// interval. A large gap means the host slept: whatever card was present is
// reported removed and the reader is recovered.
func (s *Session) checkSleep(ctx context.Context) error {
	now := s.clock.Now()
	last := s.lastPoll
	s.lastPoll = now

	if last.IsZero() || !s.config.SleepRecovery.DetectSleep(now.Sub(last), s.currentInterval()) {
		return nil
	}

	mfrc522.Debugf("polling: %v since last cycle, recovering reader", now.Sub(last))
	s.handleCardRemoval()
	return s.recover(ctx)
}

func (s *Session) recover(ctx context.Context) error {
	s.deviceMutex.Lock()
	defer s.deviceMutex.Unlock()

	s.stateMutex.RLock()
	r := s.recoverer
	s.stateMutex.RUnlock()
	if r == nil {
		cfg := s.config.SleepRecovery
		r = NewDefaultRecoverer(s.device, nil, cfg.RecoveryBackoff, cfg.MaxRecoveryAttempts)
	}

	err := r.AttemptRecovery(ctx)
	if device := r.GetDevice(); device != nil {
		s.stateMutex.Lock()
		s.device = device
		s.stateMutex.Unlock()
	}
	if err != nil {
		return fmt.Errorf("reader recovery failed: %w", err)
	}
	return nil
}

// detect runs one WUPA/select cycle and halts the selected card so the
// next WUPA finds it again. fn, if set, runs between select and halt.
func (s *Session) detect(
	ctx context.Context,
	fn func(*mfrc522.Device, *mfrc522.DetectedCard),
) (*mfrc522.DetectedCard, error) {
	s.deviceMutex.Lock()
	defer s.deviceMutex.Unlock()

	start := s.clock.Now()
	card, err := s.device.DetectCard(ctx)
	if err != nil {
		s.recordPoll(start, err, false)
		return nil, err
	}

	if fn != nil {
		fn(s.device, card)
	}
	if haltErr := s.device.HaltA(); haltErr != nil {
		mfrc522.Debugf("polling: HLTA after select: %v", haltErr)
	}
	s.recordPoll(start, nil, true)
	return card, nil
}

func (s *Session) recordPoll(start time.Time, err error, detected bool) {
	if errors.Is(err, mfrc522.ErrNoCardDetected) {
		err = nil
	}
	s.metrics.recordPoll(s.clock.Since(start), err, detected)
}

// PollOnce runs a single detection cycle and fires callbacks. It returns
// an error only for failed callbacks, a fatal reader error, or too many
// failed cycles in a row.
func (s *Session) PollOnce(ctx context.Context) error {
	card, err := s.detect(ctx, nil)
	switch {
	case err == nil:
		s.errorCount.Store(0)
		return s.processCard(card)
	case errors.Is(err, mfrc522.ErrNoCardDetected):
		// Removal is left to the timer.
		s.errorCount.Store(0)
		return nil
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return err
	default:
		return s.handlePollingError(err)
	}
}

func (s *Session) handlePollingError(err error) error {
	if mfrc522.IsFatal(err) {
		s.handleCardRemoval()
		return fmt.Errorf("reader failed: %w", err)
	}

	n := int(s.errorCount.Add(1))
	mfrc522.Debugf("polling: cycle error #%d: %v", n, err)
	if limit := s.config.MaxConsecutiveErrors; limit > 0 && n >= limit {
		return fmt.Errorf("too many polling errors (%d), last error: %w", n, err)
	}
	return nil
}

// handleCardRemoval reports the present card as gone. It runs from the
// removal timer as well as the polling loop.
func (s *Session) handleCardRemoval() {
	if s.closed.Load() {
		return
	}

	s.stateMutex.Lock()
	// A cycle is running callbacks for a fresh sighting; this timer is stale.
	if s.state.DetectionState == StateReading {
		s.stateMutex.Unlock()
		return
	}
	wasPresent := s.state.Present
	if wasPresent {
		s.state.TransitionToIdle()
		s.lastCard = s.clock.Now()
	}
	onRemoved := s.OnCardRemoved
	s.stateMutex.Unlock()

	if wasPresent && onRemoved != nil {
		onRemoved()
	}
}

// processCard fires OnCardDetected or OnCardChanged and restarts the
// removal timer.
func (s *Session) processCard(card *mfrc522.DetectedCard) error {
	uid := card.UID.String()

	// The removal timer is stopped while callbacks run.
	s.stateMutex.Lock()
	s.state.TransitionToReading(s.clock.Now())
	wasPresent := s.state.Present
	changed := wasPresent && !s.state.sameCard(uid)
	onDetected := s.OnCardDetected
	onChanged := s.OnCardChanged
	s.stateMutex.Unlock()

	var cbErr error
	switch {
	case !wasPresent && onDetected != nil:
		cbErr = s.safeCallCallback(onDetected, card, "OnCardDetected")
	case changed && onChanged != nil:
		cbErr = s.safeCallCallback(onChanged, card, "OnCardChanged")
	}

	s.stateMutex.Lock()
	s.state.remember(uid, card.Type().String())
	s.lastCard = s.clock.Now()
	s.state.TransitionToDetected(s.clock, s.config.CardRemovalTimeout, s.handleCardRemoval)
	s.stateMutex.Unlock()

	if cbErr != nil {
		s.metrics.callbackErrors.Add(1)
		return fmt.Errorf("%w: %w", ErrCallbackFailed, cbErr)
	}
	return nil
}

// safeCallCallback executes a callback with panic recovery
func (*Session) safeCallCallback(
	callback func(*mfrc522.DetectedCard) error,
	card *mfrc522.DetectedCard,
	callbackName string,
) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("%s callback panicked: %v", callbackName, r)
		}
	}()
	if cbErr := callback(card); cbErr != nil {
		return fmt.Errorf("%s callback failed: %w", callbackName, cbErr)
	}
	return nil
}

// WithDevice runs fn with exclusive access to the device. Polling cycles
// wait until fn returns.
func (s *Session) WithDevice(fn func(*mfrc522.Device) error) error {
	s.deviceMutex.Lock()
	defer s.deviceMutex.Unlock()
	return fn(s.device)
}

// WaitForNextCard pauses polling, waits up to timeout for a card and runs
// fn on it while the card is still selected. Callbacks do not fire for
// that card.
func (s *Session) WaitForNextCard(
	ctx context.Context,
	timeout time.Duration,
	fn func(*mfrc522.Device, *mfrc522.DetectedCard) error,
) error {
	if !s.isPaused.Swap(true) {
		defer s.Resume()
	}

	timeoutCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	var fnErr error
	run := func(d *mfrc522.Device, card *mfrc522.DetectedCard) {
		fnErr = fn(d, card)
	}

	for {
		_, err := s.detect(timeoutCtx, run)
		switch {
		case err == nil:
			return fnErr
		case errors.Is(err, mfrc522.ErrNoCardDetected), mfrc522.IsRetryable(err) && !mfrc522.IsFatal(err):
		case errors.Is(err, context.DeadlineExceeded) && ctx.Err() == nil:
			return ErrCardWaitTimeout
		default:
			return fmt.Errorf("card detection failed: %w", err)
		}

		if err := s.wait(timeoutCtx, s.config.PollInterval); err != nil {
			if ctx.Err() == nil {
				return ErrCardWaitTimeout
			}
			return err
		}
	}
}
