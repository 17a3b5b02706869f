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
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"sort"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/ZaparooProject/go-mfrc522"
	"github.com/ZaparooProject/go-mfrc522/detection"
	_ "github.com/ZaparooProject/go-mfrc522/detection/i2c"
	_ "github.com/ZaparooProject/go-mfrc522/detection/spi"
	_ "github.com/ZaparooProject/go-mfrc522/detection/uart"
	"github.com/ZaparooProject/go-mfrc522/polling"
	"github.com/ZaparooProject/go-mfrc522/transport/i2c"
	"github.com/ZaparooProject/go-mfrc522/transport/resetpin"
	"github.com/ZaparooProject/go-mfrc522/transport/spi"
	"github.com/ZaparooProject/go-mfrc522/transport/uart"
	"periph.io/x/conn/v3/physic"
)

type config struct {
	devicePath   string
	transport    string
	resetPin     string
	redisAddr    string
	readerName   string
	crashDir     string
	spiFrequency int64
	baudRate     int
	stressCycles int
	pollInterval time.Duration
	waitTimeout  time.Duration
	dump         bool
	once         bool
	debug        bool
	trace        bool
	sessionLog   bool
}

// parseConfig reads flags from args. Unset flags fall back to MFRC522_*
// environment variables.
func parseConfig(args []string, getenv func(string) string) (*config, error) {
	fs := flag.NewFlagSet("reader", flag.ContinueOnError)
	cfg := &config{}

	fs.StringVar(&cfg.devicePath, "device", getenv("MFRC522_DEVICE"), "Device path (auto-detect if empty)")
	fs.StringVar(&cfg.transport, "transport", getenv("MFRC522_TRANSPORT"),
		"Transport: spi, i2c or uart (guessed from the path, or limits auto-detection)")
	fs.StringVar(&cfg.resetPin, "reset", getenv("MFRC522_RESET_PIN"), "GPIO wired to NRSTPD, e.g. GPIO25")
	fs.StringVar(&cfg.redisAddr, "redis", getenv("MFRC522_REDIS"), "Publish card presence to this Redis address")
	fs.StringVar(&cfg.readerName, "name", envOr(getenv, "MFRC522_NAME", "default"), "Reader name used in Redis keys")
	fs.StringVar(&cfg.crashDir, "crash-dir", ".", "Directory for stress test crash reports")
	fs.Int64Var(&cfg.spiFrequency, "spi-freq", 0, "SPI clock in Hz (0 = transport default)")
	fs.IntVar(&cfg.baudRate, "baud", 0, "UART baud rate (0 = transport default)")
	fs.IntVar(&cfg.stressCycles, "stress", 0, "Run N select cycles against each card and report")
	fs.DurationVar(&cfg.pollInterval, "interval", polling.DefaultConfig().PollInterval, "Polling interval")
	fs.DurationVar(&cfg.waitTimeout, "timeout", 30*time.Second, "How long -once waits for a card")
	fs.BoolVar(&cfg.dump, "dump", false, "Print all chip registers and exit")
	fs.BoolVar(&cfg.once, "once", false, "Read one card and exit")
	fs.BoolVar(&cfg.debug, "debug", envBool(getenv, "MFRC522_DEBUG"), "Enable debug output")
	fs.BoolVar(&cfg.trace, "trace", false, "Attach wire traces to errors")
	fs.BoolVar(&cfg.sessionLog, "log", false, "Write debug output to a session log file")

	if err := fs.Parse(args); err != nil {
		return nil, err
	}

	cfg.transport = strings.ToLower(cfg.transport)
	switch cfg.transport {
	case "", "spi", "i2c", "uart":
	default:
		return nil, fmt.Errorf("unsupported transport type: %s", cfg.transport)
	}
	if cfg.stressCycles < 0 {
		return nil, fmt.Errorf("invalid stress cycle count: %d", cfg.stressCycles)
	}
	if cfg.pollInterval <= 0 {
		return nil, fmt.Errorf("invalid polling interval: %s", cfg.pollInterval)
	}
	return cfg, nil
}

func envOr(getenv func(string) string, key, def string) string {
	if v := getenv(key); v != "" {
		return v
	}
	return def
}

func envBool(getenv func(string) string, key string) bool {
	v, err := strconv.ParseBool(getenv(key))
	return err == nil && v
}

// guessTransport picks a transport from a device path. Serial ports are
// the fallback.
func guessTransport(path string) string {
	pathLower := strings.ToLower(path)
	switch {
	case strings.Contains(pathLower, "spi"):
		return "spi"
	case strings.Contains(pathLower, "i2c"):
		return "i2c"
	default:
		return "uart"
	}
}

// openConn opens the bus for kind at path.
func openConn(kind, path string, cfg *config) (mfrc522.Conn, error) {
	switch kind {
	case "spi":
		var opts []spi.Option
		if cfg.spiFrequency > 0 {
			opts = append(opts, spi.WithFrequency(physic.Frequency(cfg.spiFrequency)*physic.Hertz))
		}
		t, err := spi.New(path, opts...)
		if err != nil {
			return nil, fmt.Errorf("failed to create SPI transport: %w", err)
		}
		return t, nil
	case "i2c":
		t, err := i2c.New(path)
		if err != nil {
			return nil, fmt.Errorf("failed to create I2C transport: %w", err)
		}
		return t, nil
	case "uart":
		var opts []uart.Option
		if cfg.baudRate > 0 {
			opts = append(opts, uart.WithBaudRate(cfg.baudRate))
		}
		t, err := uart.New(path, opts...)
		if err != nil {
			return nil, fmt.Errorf("failed to create UART transport: %w", err)
		}
		return t, nil
	default:
		return nil, fmt.Errorf("unsupported transport type: %s", kind)
	}
}

// detectDevice returns the most confident auto-detected reader.
func detectDevice(ctx context.Context, cfg *config) (detection.DeviceInfo, error) {
	opts := detection.DefaultOptions()
	if cfg.transport != "" {
		opts.Transports = []string{cfg.transport}
	}

	devices, err := detection.DetectAll(ctx, &opts)
	if err != nil {
		return detection.DeviceInfo{}, fmt.Errorf("auto-detection failed: %w", err)
	}
	sort.SliceStable(devices, func(i, j int) bool {
		return devices[i].Confidence > devices[j].Confidence
	})
	if cfg.debug {
		for _, d := range devices {
			_, _ = fmt.Printf("Found %s\n", d)
		}
	}
	return devices[0], nil
}

func connectToDevice(ctx context.Context, cfg *config) (*mfrc522.Device, error) {
	kind, path := cfg.transport, cfg.devicePath
	if path == "" {
		if cfg.debug {
			_, _ = fmt.Println("Auto-detecting MFRC522 devices...")
		}
		found, err := detectDevice(ctx, cfg)
		if err != nil {
			return nil, err
		}
		kind, path = found.Transport, found.Path
	} else if kind == "" {
		kind = guessTransport(path)
	}
	if cfg.debug {
		_, _ = fmt.Printf("Opening %s device: %s\n", kind, path)
	}

	conn, err := openConn(kind, path, cfg)
	if err != nil {
		return nil, err
	}
	retrying := mfrc522.NewConnWithRetry(conn, mfrc522.DefaultRetryConfig())

	var reset mfrc522.ResetPin
	if cfg.resetPin != "" {
		pin, err := resetpin.Open(cfg.resetPin)
		if err != nil {
			_ = retrying.Close()
			return nil, fmt.Errorf("failed to open reset pin: %w", err)
		}
		reset = pin
	}

	device, err := mfrc522.New(retrying, reset, mfrc522.WithName(path), mfrc522.WithTracing(cfg.trace))
	if err != nil {
		_ = retrying.Close()
		return nil, fmt.Errorf("failed to connect to MFRC522 device: %w", err)
	}
	if err := device.Init(); err != nil {
		_ = device.Close()
		return nil, fmt.Errorf("failed to initialize MFRC522: %w", err)
	}

	if version, err := device.Version(); err == nil && cfg.debug {
		_, _ = fmt.Printf("Chip: %s\n", version)
	}
	return device, nil
}

func printCard(prefix string, card *mfrc522.DetectedCard) {
	_, _ = fmt.Printf("%s: UID=%s Type=%s SAK=%02X ATQA=%02X%02X\n",
		prefix, card.UID.String(), card.Type(), card.UID.SAK, card.ATQA[0], card.ATQA[1])
}

func runReadMode(ctx context.Context, session *polling.Session, pub *publisher) error {
	_, _ = fmt.Println("Starting continuous card monitoring. Press Ctrl+C to stop...")

	session.SetOnCardDetected(func(card *mfrc522.DetectedCard) error {
		printCard("Card detected", card)
		if pub != nil {
			return pub.cardDetected(card, false)
		}
		return nil
	})
	session.SetOnCardChanged(func(card *mfrc522.DetectedCard) error {
		printCard("Card changed", card)
		if pub != nil {
			return pub.cardDetected(card, true)
		}
		return nil
	})
	session.SetOnCardRemoved(func() {
		_, _ = fmt.Println("Card removed - ready for next card...")
		if pub == nil {
			return
		}
		if err := pub.cardRemoved(); err != nil {
			_, _ = fmt.Fprintf(os.Stderr, "Failed to publish removal: %v\n", err)
		}
	})

	for {
		err := session.Start(ctx)
		if err == nil || ctx.Err() != nil {
			return err
		}
		// A failed publish should not end monitoring.
		if errors.Is(err, polling.ErrCallbackFailed) {
			_, _ = fmt.Fprintf(os.Stderr, "%v\n", err)
			continue
		}
		return fmt.Errorf("polling stopped: %w", err)
	}
}

func runOnceMode(ctx context.Context, session *polling.Session, cfg *config) error {
	_, _ = fmt.Println("Please place a card near the reader...")
	return session.WaitForNextCard(ctx, cfg.waitTimeout, func(_ *mfrc522.Device, card *mfrc522.DetectedCard) error {
		printCard("Card", card)
		return nil
	})
}

func run(ctx context.Context, cfg *config) error {
	device, err := connectToDevice(ctx, cfg)
	if err != nil {
		return err
	}
	defer func() {
		if err := device.Close(); err != nil {
			_, _ = fmt.Fprintf(os.Stderr, "Failed to close device: %v\n", err)
		}
	}()

	if cfg.dump {
		return dumpRegisters(os.Stdout, device)
	}

	sessionConfig := polling.DefaultConfig()
	sessionConfig.PollInterval = cfg.pollInterval
	sessionConfig.CardRemovalTimeout = max(sessionConfig.CardRemovalTimeout, 3*cfg.pollInterval)
	if err := sessionConfig.Validate(); err != nil {
		return err
	}
	session := polling.NewSession(device, sessionConfig)
	defer func() {
		if err := session.Close(); err != nil {
			_, _ = fmt.Fprintf(os.Stderr, "Failed to close session: %v\n", err)
		}
	}()

	switch {
	case cfg.once:
		return runOnceMode(ctx, session, cfg)
	case cfg.stressCycles > 0:
		return runStressTestMode(ctx, session, cfg)
	}

	var pub *publisher
	if cfg.redisAddr != "" {
		pub, err = newPublisher(ctx, cfg.redisAddr, cfg.readerName)
		if err != nil {
			return err
		}
		defer func() { _ = pub.Close() }()
	}
	return runReadMode(ctx, session, pub)
}

func main() {
	os.Exit(mainWithExitCode(os.Args[1:]))
}

func mainWithExitCode(args []string) int {
	cfg, err := parseConfig(args, os.Getenv)
	if err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return 0
		}
		_, _ = fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return 2
	}

	if cfg.debug {
		mfrc522.SetDebugEnabled(true)
	}
	if cfg.sessionLog {
		path, err := mfrc522.InitSessionLog()
		if err != nil {
			_, _ = fmt.Fprintf(os.Stderr, "Failed to open session log: %v\n", err)
		} else {
			_, _ = fmt.Printf("Session log: %s\n", path)
			defer func() { _ = mfrc522.CloseSessionLog() }()
		}
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg); err != nil {
		if errors.Is(err, context.Canceled) {
			// User requested shutdown, exit cleanly
			return 0
		}
		_, _ = fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return 1
	}
	return 0
}
