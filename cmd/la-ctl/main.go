// Copyright 2020 The go-lpc Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Command la-ctl is an interactive client for a la-srv control server.
//
// Usage:
//
//	$> la-ctl -addr localhost:8877
//	la> rate 200000
//	la> trig rising
//	la> start
//	la> status
//	la> csv
//	la> quit
package main // import "github.com/go-lpc/sigcap/cmd/la-ctl"

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"log"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/go-lpc/sigcap/daq"
	"github.com/peterh/liner"
)

var errQuit = errors.New("la-ctl: quit")

type caller interface {
	Call(name string, args interface{}) (json.RawMessage, error)
}

type command struct {
	help string
	args int // number of required arguments
	run  func(cli caller, args []string) (json.RawMessage, error)
}

func simple(name string) func(cli caller, args []string) (json.RawMessage, error) {
	return func(cli caller, args []string) (json.RawMessage, error) {
		return cli.Call(name, nil)
	}
}

func configure(key string) func(cli caller, args []string) (json.RawMessage, error) {
	return func(cli caller, args []string) (json.RawMessage, error) {
		return cli.Call("configure", map[string]string{key: args[0]})
	}
}

var cmds = map[string]command{
	"start":  {help: "start a capture", run: simple("start")},
	"stop":   {help: "stop the current capture", run: simple("stop")},
	"status": {help: "display the analyzer status", run: simple("status")},
	"adv":    {help: "display the advanced status", run: simple("advanced-status")},
	"config": {help: "display the capture configuration", run: simple("config")},
	"rate": {
		help: "rate N: set the sample rate (Hz)", args: 1,
		run: func(cli caller, args []string) (json.RawMessage, error) {
			v, err := strconv.ParseUint(args[0], 10, 32)
			if err != nil {
				return nil, fmt.Errorf("la-ctl: invalid sample rate %q: %w", args[0], err)
			}
			return cli.Call("configure", map[string]uint64{"sample_rate": v})
		},
	},
	"pin": {
		help: "pin N: set the captured GPIO pin", args: 1,
		run: func(cli caller, args []string) (json.RawMessage, error) {
			v, err := strconv.ParseUint(args[0], 10, 8)
			if err != nil {
				return nil, fmt.Errorf("la-ctl: invalid pin %q: %w", args[0], err)
			}
			return cli.Call("configure", map[string]uint64{"gpio_pin": v})
		},
	},
	"trig":     {help: "trig MODE: set the trigger (none, rising, falling, both, high, low)", args: 1, run: configure("trigger_mode")},
	"mode":     {help: "mode MODE: set the buffer mode (ram, flash, streaming, compressed)", args: 1, run: configure("buffer_mode")},
	"compress": {help: "compress KIND: set the compression (none, rle, delta, hybrid)", args: 1, run: configure("compression")},
	"samples":  {help: "display the captured samples as JSON", run: simple("samples-json")},
	"csv": {
		help: "display the captured samples as CSV",
		run: func(cli caller, args []string) (json.RawMessage, error) {
			raw, err := cli.Call("samples-csv", nil)
			if err != nil {
				return nil, err
			}
			var txt string
			err = json.Unmarshal(raw, &txt)
			if err != nil {
				return nil, fmt.Errorf("la-ctl: could not decode CSV payload: %w", err)
			}
			return json.RawMessage(txt), nil
		},
	},
	"clear":      {help: "clear the capture buffer", run: simple("clear")},
	"uart-on":    {help: "enable UART monitoring", run: simple("uart-enable")},
	"uart-off":   {help: "disable UART monitoring", run: simple("uart-disable")},
	"uart-logs":  {help: "display the UART log", run: simple("uart-logs")},
	"uart-clear": {help: "clear the UART log", run: simple("uart-clear")},
	"uart-stats": {help: "display the UART statistics", run: simple("uart-stats")},
	"send": {
		help: "send CMD: queue a half-duplex command", args: 1,
		run: func(cli caller, args []string) (json.RawMessage, error) {
			return cli.Call("uart-send", strings.Join(args, " "))
		},
	},
	"dual": {
		help: "dual on|off: toggle dual mode", args: 1,
		run: func(cli caller, args []string) (json.RawMessage, error) {
			switch strings.ToLower(args[0]) {
			case "on":
				return cli.Call("dual", true)
			case "off":
				return cli.Call("dual", false)
			}
			return nil, fmt.Errorf("la-ctl: invalid dual mode %q (want on or off)", args[0])
		},
	},
	"logs": {help: "display the system log", run: simple("logs")},
}

func main() {
	log.SetPrefix("la-ctl: ")
	log.SetFlags(0)

	var (
		addr    = flag.String("addr", "localhost:8877", "[ip]:port of the la-srv control server")
		timeout = flag.Duration("timeout", 5*time.Second, "dial timeout")
	)

	flag.Parse()

	err := run(*addr, *timeout)
	if err != nil {
		log.Fatalf("%+v", err)
	}
}

func run(addr string, timeout time.Duration) error {
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	cli, err := daq.Dial(ctx, addr)
	if err != nil {
		return fmt.Errorf("could not connect to %q: %w", addr, err)
	}
	defer cli.Close()

	term := liner.NewLiner()
	defer term.Close()
	term.SetCtrlCAborts(true)
	term.SetCompleter(complete)

	hist := histFile()
	if f, err := os.Open(hist); err == nil {
		_, _ = term.ReadHistory(f)
		f.Close()
	}
	defer func() {
		f, err := os.Create(hist)
		if err != nil {
			return
		}
		defer f.Close()
		_, _ = term.WriteHistory(f)
	}()

	for {
		line, err := term.Prompt("la> ")
		switch {
		case err == nil:
		case errors.Is(err, io.EOF), errors.Is(err, liner.ErrPromptAborted):
			return nil
		default:
			return fmt.Errorf("could not read command: %w", err)
		}
		if strings.TrimSpace(line) == "" {
			continue
		}
		term.AppendHistory(line)

		err = process(os.Stdout, cli, line)
		switch {
		case errors.Is(err, errQuit):
			return nil
		case err != nil:
			log.Printf("%v", err)
		}
	}
}

func histFile() string {
	dir, err := os.UserCacheDir()
	if err != nil {
		dir = os.TempDir()
	}
	return filepath.Join(dir, "la-ctl.history")
}

func complete(line string) []string {
	var out []string
	for name := range cmds {
		if strings.HasPrefix(name, strings.ToLower(line)) {
			out = append(out, name)
		}
	}
	for _, name := range []string{"help", "quit"} {
		if strings.HasPrefix(name, strings.ToLower(line)) {
			out = append(out, name)
		}
	}
	sort.Strings(out)
	return out
}

// process runs one command line against cli and writes the reply to w.
func process(w io.Writer, cli caller, line string) error {
	toks := strings.Fields(line)
	if len(toks) == 0 {
		return nil
	}
	name, args := strings.ToLower(toks[0]), toks[1:]
	switch name {
	case "quit", "exit":
		return errQuit
	case "help":
		usage(w)
		return nil
	}

	cmd, ok := cmds[name]
	if !ok {
		return fmt.Errorf("la-ctl: unknown command %q (try help)", name)
	}
	if len(args) < cmd.args {
		return fmt.Errorf("la-ctl: missing argument: %s", cmd.help)
	}

	raw, err := cmd.run(cli, args)
	if err != nil {
		return err
	}
	return display(w, raw)
}

func display(w io.Writer, raw json.RawMessage) error {
	if len(raw) == 0 || string(raw) == "null" {
		_, err := fmt.Fprintln(w, "ok")
		return err
	}
	if !json.Valid(raw) {
		_, err := w.Write(raw)
		return err
	}
	var buf bytes.Buffer
	err := json.Indent(&buf, raw, "", "  ")
	if err != nil {
		return fmt.Errorf("la-ctl: could not format reply: %w", err)
	}
	buf.WriteByte('\n')
	_, err = w.Write(buf.Bytes())
	return err
}

func usage(w io.Writer) {
	names := make([]string, 0, len(cmds))
	for name := range cmds {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		fmt.Fprintf(w, "%-12s %s\n", name, cmds[name].help)
	}
	fmt.Fprintf(w, "%-12s %s\n", "help", "display this help")
	fmt.Fprintf(w, "%-12s %s\n", "quit", "exit la-ctl")
}
