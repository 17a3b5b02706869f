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

package main

import (
	"context"
	"encoding/hex"
	"fmt"
	"strconv"
	"time"

	"github.com/ZaparooProject/go-mfrc522"
	"github.com/redis/go-redis/v9"
)

// publisher mirrors the card in the field into a Redis hash
// "mfrc522:<reader>" and notifies subscribers on the channel of the same
// name with "card-detected", "card-changed" or "card-removed".
type publisher struct {
	client  *redis.Client
	key     string
	timeout time.Duration
}

func newPublisher(ctx context.Context, addr, reader string) (*publisher, error) {
	client := redis.NewClient(&redis.Options{
		Addr:        addr,
		DialTimeout: 2 * time.Second,
	})
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("failed to connect to Redis at %s: %w", addr, err)
	}
	return &publisher{client: client, key: redisKey(reader), timeout: 2 * time.Second}, nil
}

func redisKey(reader string) string {
	if reader == "" {
		reader = "default"
	}
	return "mfrc522:" + reader
}

// cardFields is the hash content for a present card.
func cardFields(card *mfrc522.DetectedCard) map[string]any {
	return map[string]any{
		"present":  "true",
		"uid":      card.UID.String(),
		"type":     card.Type().String(),
		"sak":      fmt.Sprintf("%02X", card.UID.SAK),
		"atqa":     hex.EncodeToString(card.ATQA[:]),
		"seen-at":  strconv.FormatInt(card.DetectedAt.Unix(), 10),
		"uid-size": strconv.Itoa(int(card.UID.Size)),
	}
}

func (p *publisher) cardDetected(card *mfrc522.DetectedCard, changed bool) error {
	event := "card-detected"
	if changed {
		event = "card-changed"
	}

	ctx, cancel := context.WithTimeout(context.Background(), p.timeout)
	defer cancel()

	pipe := p.client.TxPipeline()
	pipe.HSet(ctx, p.key, cardFields(card))
	pipe.Publish(ctx, p.key, event)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("redis pipeline execution failed: %w", err)
	}
	mfrc522.Debugf("published %s for %s to %s", event, card.UID.String(), p.key)
	return nil
}

func (p *publisher) cardRemoved() error {
	ctx, cancel := context.WithTimeout(context.Background(), p.timeout)
	defer cancel()

	pipe := p.client.TxPipeline()
	pipe.Del(ctx, p.key)
	pipe.HSet(ctx, p.key, "present", "false")
	pipe.Publish(ctx, p.key, "card-removed")
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("redis pipeline execution failed: %w", err)
	}
	return nil
}

func (p *publisher) Close() error {
	return p.client.Close()
}
