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

import "time"

// Host-side budgets for the chip's polling loops. TransceiveBudget is a
// millisecond above the 25 ms receive timer Init programs, so TimerIRq
// normally ends a silent exchange first.
const (
	TransceiveBudget = 26 * time.Millisecond
	CRCBudget        = 89 * time.Millisecond
	PowerDownBudget  = 150 * time.Millisecond
)

// NRSTPD pulse. The datasheet minimum is 100 ns; settling covers the
// 37.74 ms worst-case oscillator start-up.
const (
	ResetHoldTime   = 100 * time.Microsecond
	ResetSettleTime = 50 * time.Millisecond
)

// Opening a transport and reading VersionReg.
const (
	DefaultConnectionRetries    = 3
	ConnectionInitialBackoff    = 100 * time.Millisecond
	ConnectionMaxBackoff        = 500 * time.Millisecond
	ConnectionBackoffMultiplier = 2.0
	ConnectionJitter            = 0.1
	ConnectionRetryTimeout      = 10 * time.Second
)

// WUPA plus SELECT against a card still entering the field. The first
// backoff lets the card's supply come up.
const (
	ActivationRetries        = 5
	ActivationInitialBackoff = 5 * time.Millisecond
	ActivationMaxBackoff     = 50 * time.Millisecond
	ActivationRetryTimeout   = 500 * time.Millisecond
)
