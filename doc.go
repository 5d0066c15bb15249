// Copyright 2020 The go-lpc Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package sigcap holds code for a single-pin logic analyzer.
//
// The analyzer package ties together the building blocks:
//   - hal: pins, clocks and UART ports (simulated or FTDI backed),
//   - trigger: edge and level trigger engine,
//   - buffer: RAM, flash, streaming and compressed sample buffers,
//   - compress: RLE and delta encoders,
//   - flash: block storage and the capture file format,
//   - uart: line framing, logging and half-duplex commands of a UART monitor,
//   - prefs: persisted configuration,
//   - daq: acquisition loop, JSON control server and TDAQ node.
package sigcap // import "github.com/go-lpc/sigcap"

import (
	"fmt"
	"runtime/debug"
)

// Version returns the version of sigcap and its checksum.
// The returned values are only valid in binaries built with module support.
func Version() (version, sum string) {
	b, ok := debug.ReadBuildInfo()
	if !ok {
		return "", ""
	}
	return versionOf(b)
}

func versionOf(b *debug.BuildInfo) (version, sum string) {
	if b == nil {
		return "", ""
	}

	const root = "github.com/go-lpc/sigcap"
	if b.Main.Path == root {
		if b.Main.Version == "" {
			return "(devel)", ""
		}
		return b.Main.Version, b.Main.Sum
	}
	for _, m := range b.Deps {
		if m.Path != root {
			continue
		}
		if m.Replace != nil {
			switch {
			case m.Replace.Version != "" && m.Replace.Path != "":
				return fmt.Sprintf("%s %s", m.Replace.Path, m.Replace.Version), m.Replace.Sum
			case m.Replace.Version != "":
				return m.Replace.Version, m.Replace.Sum
			case m.Replace.Path != "":
				return m.Replace.Path, m.Replace.Sum
			default:
				return m.Version + "*", ""
			}
		}
		return m.Version, m.Sum
	}
	return "", ""
}
