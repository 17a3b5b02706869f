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

package mfrc522

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// ErrNoCardDetected means nothing answered WUPA.
var ErrNoCardDetected = errors.New("no card detected")

// DetectedCard describes a card that completed activation.
type DetectedCard struct {
	DetectedAt time.Time
	UID        UID
	ATQA       [2]byte
}

// Type classifies the card from its SAK.
func (c *DetectedCard) Type() PICCType {
	return c.UID.Type()
}

// DetectCard wakes any card in the field (halted ones included) and selects
// it. It returns ErrNoCardDetected when the field is empty.
func (d *Device) DetectCard(ctx context.Context) (*DetectedCard, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	atqa, err := d.WakeupA()
	switch {
	case errors.Is(err, StatusTimeout):
		return nil, ErrNoCardDetected
	case err != nil && !errors.Is(err, StatusCollision):
		return nil, fmt.Errorf("WUPA: %w", err)
	}

	card := &DetectedCard{ATQA: atqa}
	if err := d.Select(&card.UID, 0); err != nil {
		return nil, fmt.Errorf("select: %w", err)
	}
	card.DetectedAt = d.clock.Now()
	return card, nil
}

func (*Device) handleDetectionError(errorCount *int, err error) error {
	const (
		maxErrors      = 10
		errorThreshold = 3
	)

	*errorCount++

	if *errorCount <= errorThreshold {
		Debugf("Card detection error #%d: %v", *errorCount, err)
	}

	if IsFatal(err) || *errorCount > maxErrors {
		return fmt.Errorf("too many detection errors (%d), last error: %w", *errorCount, err)
	}

	return nil
}

func (d *Device) pause(ctx context.Context, interval time.Duration) error {
	timer := d.clock.Timer(interval)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// WaitForCard polls until a card is selected or ctx is done. Collisions and
// transient errors are retried; a fatal transport error or more than ten
// consecutive failures end the wait.
//
// Example usage:
//
//	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
//	defer cancel()
//
//	card, err := device.WaitForCard(ctx, 100*time.Millisecond)
//	if err != nil {
//	    return err
//	}
//	fmt.Printf("Card detected: %s\n", card.UID.String())
func (d *Device) WaitForCard(ctx context.Context, interval time.Duration) (*DetectedCard, error) {
	errorCount := 0

	for {
		card, err := d.DetectCard(ctx)
		switch {
		case err == nil:
			Debugf("Card detected: UID=%s Type=%s", card.UID.String(), card.Type())
			return card, nil
		case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
			return nil, err
		case errors.Is(err, ErrNoCardDetected):
			errorCount = 0
		default:
			if fatal := d.handleDetectionError(&errorCount, err); fatal != nil {
				return nil, fatal
			}
		}

		if err := d.pause(ctx, interval); err != nil {
			return nil, err
		}
	}
}
