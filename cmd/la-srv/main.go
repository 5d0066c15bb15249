// Copyright 2020 The go-lpc Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Command la-srv runs a logic analyzer: the acquisition loop and its
// JSON control server.
//
// Usage:
//
//	$> la-srv -addr :8877 -rate 1000000 -flash ./flash
//	$> la-srv -ftdi -ftdi-pid 0x6001 -ftdi-bit 2 -db "user:pass@tcp(localhost:3306)/sigcap"
package main // import "github.com/go-lpc/sigcap/cmd/la-srv"

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"path/filepath"
	"time"

	tlog "github.com/go-daq/tdaq/log"
	"github.com/go-lpc/sigcap"
	"github.com/go-lpc/sigcap/analyzer"
	"github.com/go-lpc/sigcap/buffer"
	"github.com/go-lpc/sigcap/compress"
	"github.com/go-lpc/sigcap/daq"
	"github.com/go-lpc/sigcap/flash"
	"github.com/go-lpc/sigcap/hal"
	"github.com/go-lpc/sigcap/hal/ftdev"
	"github.com/go-lpc/sigcap/prefs"
	"github.com/go-lpc/sigcap/trigger"
	"github.com/sbinet/pmon"
	"golang.org/x/sync/errgroup"
)

type config struct {
	addr  string
	rate  uint
	pin   uint
	mode  string
	trig  string
	comp  string
	size  uint
	flash string
	dsn   string
	sim   time.Duration // period of the simulated signal
	tick  time.Duration

	ftdi    bool
	ftdiVID uint
	ftdiPID uint
	ftdiBit uint
	ftdiTTY uint // product id of the UART adapter, 0 to disable

	mon     bool
	monFreq time.Duration
	mail    bool
}

func main() {
	log.SetPrefix("la-srv: ")
	log.SetFlags(0)

	var cfg config
	flag.StringVar(&cfg.addr, "addr", ":8877", "[ip]:port of the control server")
	flag.UintVar(&cfg.rate, "rate", 1000000, "sample rate in Hz")
	flag.UintVar(&cfg.pin, "pin", 2, "GPIO pin to capture")
	flag.StringVar(&cfg.mode, "mode", "ram", "buffer mode (ram, flash, streaming, compressed)")
	flag.StringVar(&cfg.trig, "trig", "none", "trigger mode (none, rising, falling, both, high, low)")
	flag.StringVar(&cfg.comp, "compress", "none", "compression (none, rle, delta, hybrid)")
	flag.UintVar(&cfg.size, "size", buffer.DefaultCapacity, "buffer size in samples")
	flag.StringVar(&cfg.flash, "flash", "", "directory holding the flash storage")
	flag.StringVar(&cfg.dsn, "db", "", "MySQL DSN of the preferences database")
	flag.DurationVar(&cfg.sim, "sim", time.Millisecond, "period of the simulated input signal")
	flag.DurationVar(&cfg.tick, "tick", 100*time.Microsecond, "period of the acquisition loop")
	flag.BoolVar(&cfg.ftdi, "ftdi", false, "read the input from a FTDI device in bit-bang mode")
	flag.UintVar(&cfg.ftdiVID, "ftdi-vid", 0x0403, "vendor id of the FTDI device")
	flag.UintVar(&cfg.ftdiPID, "ftdi-pid", 0x6001, "product id of the FTDI device")
	flag.UintVar(&cfg.ftdiBit, "ftdi-bit", 0, "bit of the FTDI device to sample")
	flag.UintVar(&cfg.ftdiTTY, "ftdi-uart", 0, "product id of the FTDI UART adapter (0: simulated port)")
	flag.BoolVar(&cfg.mon, "pmon", false, "enable pmon monitoring")
	flag.DurationVar(&cfg.monFreq, "freq", 1*time.Second, "pmon frequency")
	flag.BoolVar(&cfg.mail, "mail", false, "send alert mails (MAIL_* environment variables)")

	flag.Parse()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	err := run(ctx, cfg)
	if err != nil {
		log.Fatalf("%+v", err)
	}
}

func captureConfig(cfg config) (analyzer.Config, error) {
	mode, err := buffer.ParseMode(cfg.mode)
	if err != nil {
		return analyzer.Config{}, err
	}
	trig, err := trigger.ParseMode(cfg.trig)
	if err != nil {
		return analyzer.Config{}, err
	}
	comp, err := compress.ParseKind(cfg.comp)
	if err != nil {
		return analyzer.Config{}, err
	}
	return analyzer.Config{
		SampleRate:  uint32(cfg.rate),
		Pin:         uint8(cfg.pin),
		Trigger:     trig,
		Mode:        mode,
		Capacity:    uint32(cfg.size),
		Compression: comp,
	}, nil
}

// newAnalyzer builds the analyzer described by cfg.
// The returned function releases the devices it opened.
func newAnalyzer(cfg config, msg tlog.MsgStream) (*analyzer.Analyzer, func(), error) {
	ccfg, err := captureConfig(cfg)
	if err != nil {
		return nil, nil, fmt.Errorf("invalid capture configuration: %w", err)
	}

	var (
		clk     = hal.NewSystemClock()
		closers []func() error
		opts    = []analyzer.Option{
			analyzer.WithLogger(msg),
			analyzer.WithClock(clk),
			analyzer.WithConfig(ccfg),
		}
	)
	cleanup := func() {
		for i := len(closers) - 1; i >= 0; i-- {
			if err := closers[i](); err != nil {
				log.Printf("could not release device: %+v", err)
			}
		}
	}
	defer func() {
		if err != nil {
			cleanup()
		}
	}()

	if cfg.flash != "" {
		dir, err := filepath.Abs(cfg.flash)
		if err != nil {
			return nil, nil, fmt.Errorf("could not resolve flash directory: %w", err)
		}
		opts = append(opts, analyzer.WithStorage(flash.DirStorage{Root: dir}))
	}

	if cfg.dsn != "" {
		var db *prefs.DB
		db, err = prefs.Open(cfg.dsn)
		if err != nil {
			return nil, nil, fmt.Errorf("could not open preferences: %w", err)
		}
		closers = append(closers, db.Close)
		err = db.Init(context.Background())
		if err != nil {
			return nil, nil, fmt.Errorf("could not initialize preferences: %w", err)
		}
		opts = append(opts, analyzer.WithPrefs(prefs.New(db, analyzer.Namespace)))
	}

	switch {
	case cfg.ftdi:
		var pin *ftdev.Pin
		pin, err = ftdev.OpenPin(uint16(cfg.ftdiVID), uint16(cfg.ftdiPID), uint8(cfg.ftdiBit))
		if err != nil {
			return nil, nil, fmt.Errorf("could not open FTDI input: %w", err)
		}
		closers = append(closers, pin.Close)
		opts = append(opts, analyzer.WithPin(pin))
	default:
		period := uint32(cfg.sim / time.Microsecond)
		opts = append(opts, analyzer.WithPin(hal.NewSignalPin(clk, period, period/2)))
	}

	switch {
	case cfg.ftdiTTY != 0:
		var port *ftdev.Port
		port, err = ftdev.OpenPort(uint16(cfg.ftdiVID), uint16(cfg.ftdiTTY))
		if err != nil {
			return nil, nil, fmt.Errorf("could not open FTDI UART: %w", err)
		}
		closers = append(closers, port.Close)
		opts = append(opts, analyzer.WithPort(port), analyzer.WithDirector(port))
	default:
		port := new(hal.MemPort)
		opts = append(opts, analyzer.WithPort(port), analyzer.WithDirector(port))
	}

	return analyzer.New(opts...), cleanup, nil
}

func run(ctx context.Context, cfg config) error {
	msg := tlog.NewMsgStream("la-srv", tlog.LvlInfo, os.Stdout)
	if v, _ := sigcap.Version(); v != "" {
		msg.Infof("la-srv version %s", v)
	}

	ana, cleanup, err := newAnalyzer(cfg, msg)
	if err != nil {
		return err
	}
	defer cleanup()

	if cfg.mail {
		alerts := newMailer(os.Getenv)
		ana.OnAlert(func(msg string) {
			go alerts.send(msg)
		})
	}

	dev := daq.NewDevice(ana)
	srv, err := daq.NewServer(cfg.addr, dev, msg)
	if err != nil {
		return err
	}
	defer srv.Close()
	log.Printf("control server listening on %v", srv.Addr())

	if cfg.mon {
		p, err := pmon.Monitor(os.Getpid())
		if err != nil {
			return fmt.Errorf("could not start monitoring: %w", err)
		}
		p.W = os.Stderr
		p.Freq = cfg.monFreq
		go func() {
			err := p.Run()
			if err != nil {
				log.Printf("could not run pmon: %+v", err)
			}
		}()
		defer func() {
			err := p.Kill()
			if err != nil {
				log.Printf("could not stop monitoring: %+v", err)
			}
		}()
	}

	grp, ctx := errgroup.WithContext(ctx)
	grp.Go(func() error {
		return daq.Loop(ctx, dev, cfg.tick)
	})
	grp.Go(func() error {
		return srv.Serve(ctx)
	})

	err = grp.Wait()
	_ = dev.Do(func(a *analyzer.Analyzer) error {
		a.StopCapture()
		return nil
	})
	if err != nil {
		return fmt.Errorf("could not run analyzer: %w", err)
	}
	return nil
}
