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
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/ZaparooProject/go-mfrc522"
	"github.com/ZaparooProject/go-mfrc522/polling"
)

// StressTestResult summarizes repeated select cycles against one card.
type StressTestResult struct {
	Started    time.Time
	UID        string
	CardType   string
	CrashFile  string
	Cycles     int
	Passed     int
	Failed     int
	Mismatched int
	MinLatency time.Duration
	MaxLatency time.Duration
	Total      time.Duration
}

// Success reports whether every cycle selected the reference card.
func (r *StressTestResult) Success() bool {
	return r.Failed == 0 && r.Mismatched == 0 && r.Passed == r.Cycles
}

// AverageLatency is the mean duration of the successful cycles.
func (r *StressTestResult) AverageLatency() time.Duration {
	if r.Passed == 0 {
		return 0
	}
	return r.Total / time.Duration(r.Passed)
}

func (r *StressTestResult) record(latency time.Duration) {
	r.Passed++
	r.Total += latency
	if r.MinLatency == 0 || latency < r.MinLatency {
		r.MinLatency = latency
	}
	if latency > r.MaxLatency {
		r.MaxLatency = latency
	}
}

// CrashReport captures the reader state after the first failed cycle.
type CrashReport struct {
	Timestamp    time.Time         `json:"timestamp"`
	ExpectedUID  string            `json:"expected_uid"`
	ActualUID    string            `json:"actual_uid,omitempty"`
	Error        string            `json:"error"`
	Status       string            `json:"status"`
	WireTrace    string            `json:"wire_trace,omitempty"`
	Registers    map[string]string `json:"registers,omitempty"`
	OperationLog []LogEntry        `json:"operation_log"`
	Cycle        int               `json:"cycle"`
}

// LogEntry is one cycle in the operation log.
type LogEntry struct {
	Timestamp time.Time `json:"timestamp"`
	UID       string    `json:"uid,omitempty"`
	Error     string    `json:"error,omitempty"`
	Latency   string    `json:"latency"`
	Success   bool      `json:"success"`
}

// maxLogEntries bounds the operation log kept for a crash report.
const maxLogEntries = 32

type stressRun struct {
	reference *mfrc522.UID
	result    *StressTestResult
	crashDir  string
	log       []LogEntry
}

func (s *stressRun) appendLog(e LogEntry) {
	s.log = append(s.log, e)
	if len(s.log) > maxLogEntries {
		s.log = s.log[len(s.log)-maxLogEntries:]
	}
}

func printStressTestBanner(cycles int) {
	_, _ = fmt.Println("================================================================================")
	_, _ = fmt.Println("                    MFRC522 Anti-Collision Stress Test Mode")
	_, _ = fmt.Println("================================================================================")
	_, _ = fmt.Printf("WUPA + SELECT + HLTA, %d cycles per card\n", cycles)
}

func runStressTestMode(ctx context.Context, session *polling.Session, cfg *config) error {
	printStressTestBanner(cfg.stressCycles)

	for {
		_, _ = fmt.Println("\nWaiting for card... (Press Ctrl+C to exit)")

		var result *StressTestResult
		err := session.WaitForNextCard(ctx, time.Hour, func(d *mfrc522.Device, card *mfrc522.DetectedCard) error {
			// The card is still selected; halt it so the first cycle wakes it.
			_ = d.HaltA()
			result = runStressCycles(ctx, d, card, cfg.stressCycles, cfg.crashDir)
			return nil
		})
		switch {
		case errors.Is(err, polling.ErrCardWaitTimeout):
			continue
		case err != nil:
			return err
		}

		printStressSummary(os.Stdout, result)
		_, _ = fmt.Println("Remove the card to test another...")
		if err := waitForRemoval(ctx, session, cfg.pollInterval); err != nil {
			return err
		}
	}
}

// runStressCycles repeatedly selects and halts the card in the field and
// checks that the same UID comes back every time.
func runStressCycles(
	ctx context.Context,
	device *mfrc522.Device,
	card *mfrc522.DetectedCard,
	cycles int,
	crashDir string,
) *StressTestResult {
	run := &stressRun{
		reference: &card.UID,
		crashDir:  crashDir,
		result: &StressTestResult{
			Started:  device.Clock().Now(),
			UID:      card.UID.String(),
			CardType: card.Type().String(),
			Cycles:   cycles,
		},
	}

	for i := range cycles {
		if ctx.Err() != nil {
			run.result.Cycles = i
			break
		}
		run.cycle(ctx, device, i+1)
	}
	return run.result
}

func (s *stressRun) cycle(ctx context.Context, device *mfrc522.Device, n int) {
	start := device.Clock().Now()
	got, err := device.DetectCard(ctx)
	latency := device.Clock().Since(start)

	entry := LogEntry{Timestamp: start, Latency: latency.String()}
	switch {
	case err != nil:
		s.result.Failed++
		entry.Error = err.Error()
	case !got.UID.Equal(s.reference):
		s.result.Mismatched++
		entry.UID = got.UID.String()
		err = fmt.Errorf("selected %s instead of %s", got.UID.String(), s.result.UID)
		entry.Error = err.Error()
	default:
		s.result.record(latency)
		entry.UID = got.UID.String()
		entry.Success = true
	}
	s.appendLog(entry)

	if got != nil {
		_ = device.HaltA()
	}
	if err != nil {
		mfrc522.Debugf("stress cycle %d: %v", n, err)
		if s.result.CrashFile == "" {
			s.writeCrash(device, n, got, err)
		}
	}
}

func (s *stressRun) writeCrash(device *mfrc522.Device, n int, got *mfrc522.DetectedCard, cause error) {
	report := &CrashReport{
		Timestamp:    device.Clock().Now(),
		Cycle:        n,
		ExpectedUID:  s.result.UID,
		Error:        cause.Error(),
		Status:       mfrc522.StatusOf(cause).String(),
		OperationLog: s.log,
		Registers:    snapshotRegisters(device),
	}
	if got != nil {
		report.ActualUID = got.UID.String()
	}
	if trace := mfrc522.GetTrace(cause); trace != nil {
		report.WireTrace = trace.FormatTrace()
	}

	path, err := writeCrashReportToFile(s.crashDir, report)
	if err != nil {
		_, _ = fmt.Fprintf(os.Stderr, "Failed to write crash report: %v\n", err)
		return
	}
	s.result.CrashFile = path
}

// snapshotRegisters reads the registers that explain a failed exchange.
func snapshotRegisters(device *mfrc522.Device) map[string]string {
	regs := []mfrc522.Register{
		mfrc522.CommandReg, mfrc522.ComIrqReg, mfrc522.DivIrqReg, mfrc522.ErrorReg,
		mfrc522.Status1Reg, mfrc522.Status2Reg, mfrc522.FIFOLevelReg,
		mfrc522.ControlReg, mfrc522.BitFramingReg, mfrc522.CollReg,
		mfrc522.TxControlReg, mfrc522.RFCfgReg,
	}
	out := make(map[string]string, len(regs))
	for _, r := range regs {
		v, err := device.ReadRegister(r)
		if err != nil {
			out[r.String()] = "error: " + err.Error()
			continue
		}
		out[r.String()] = fmt.Sprintf("%02X", v)
	}
	return out
}

func writeCrashReportToFile(dir string, report *CrashReport) (string, error) {
	uidSafe := strings.ReplaceAll(report.ExpectedUID, ":", "")
	timestamp := report.Timestamp.Format("20060102_150405")
	filename := filepath.Join(dir, fmt.Sprintf("stress_test_crash_%s_%s.json", uidSafe, timestamp))

	data, err := json.MarshalIndent(report, "", "  ")
	if err != nil {
		return "", fmt.Errorf("failed to marshal crash report: %w", err)
	}

	if err := os.WriteFile(filename, data, 0o600); err != nil {
		return "", fmt.Errorf("failed to write crash report: %w", err)
	}

	return filename, nil
}

// waitForRemoval polls until a cycle finds the field empty.
func waitForRemoval(ctx context.Context, session *polling.Session, interval time.Duration) error {
	for {
		var present bool
		err := session.WithDevice(func(d *mfrc522.Device) error {
			_, err := d.DetectCard(ctx)
			switch {
			case err == nil:
				present = true
				return d.HaltA()
			case errors.Is(err, mfrc522.ErrNoCardDetected):
				return nil
			default:
				return err
			}
		})
		if err != nil && !mfrc522.IsRetryable(err) {
			return err
		}
		if !present && err == nil {
			return nil
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(interval):
		}
	}
}

func printStressSummary(w io.Writer, result *StressTestResult) {
	status := "PASS"
	if !result.Success() {
		status = "FAIL"
	}

	_, _ = fmt.Fprintln(w, "================================================================================")
	_, _ = fmt.Fprintf(w, "  [%s] %s (%s)\n", status, result.UID, result.CardType)
	_, _ = fmt.Fprintf(w, "  Cycles: %d  Passed: %d  Failed: %d  Wrong UID: %d\n",
		result.Cycles, result.Passed, result.Failed, result.Mismatched)
	if result.Passed > 0 {
		_, _ = fmt.Fprintf(w, "  Latency: min %s  avg %s  max %s\n",
			result.MinLatency, result.AverageLatency(), result.MaxLatency)
	}
	if result.CrashFile != "" {
		_, _ = fmt.Fprintf(w, "  Crash report: %s\n", result.CrashFile)
	}
	_, _ = fmt.Fprintln(w, "================================================================================")
}
