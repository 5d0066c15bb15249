// Copyright 2020 The go-lpc Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// la-dump validates and displays flash capture files.
//
// Usage: la-dump [OPTIONS] FILE1 [FILE2 [FILE3 ...]]
//
// Example:
//
//	$> la-dump -records ./flash/capture.bin
//	=== ./flash/capture.bin ===
//	Version:            1
//	Samples:         1024
//	Buffer size:    16384
//	Sample rate:  1000000 Hz
//	Compression:     NONE
//	  ts=      1000 value=1
//	  ts=      1001 value=0
//	[...]
//	Footer:          1024 samples, checksum=0x3a7c (ok)
package main // import "github.com/go-lpc/sigcap/cmd/la-dump"

import (
	"bufio"
	"errors"
	"flag"
	"fmt"
	"io"
	"log"
	"os"

	"github.com/go-lpc/sigcap/flash"
	"github.com/go-lpc/sigcap/internal/mmap"
)

func main() {
	log.SetPrefix("la-dump: ")
	log.SetFlags(0)

	recs := flag.Bool("records", false, "display every sample and record")

	flag.Usage = func() {
		fmt.Printf(`la-dump validates and displays flash capture files.

Usage: la-dump [OPTIONS] FILE1 [FILE2 [FILE3 ...]]

`)
		flag.PrintDefaults()
	}

	flag.Parse()

	if flag.NArg() == 0 {
		flag.Usage()
		log.Fatalf("missing path to input capture file")
	}

	for _, fname := range flag.Args() {
		err := process(os.Stdout, fname, *recs)
		if err != nil {
			log.Fatalf("could not dump file %q: %+v", fname, err)
		}
	}
}

func process(w io.Writer, fname string, recs bool) error {
	h, err := mmap.Open(fname)
	if err != nil {
		return fmt.Errorf("could not open capture file: %w", err)
	}
	defer h.Close()

	o := bufio.NewWriter(w)
	defer o.Flush()

	fmt.Fprintf(o, "=== %s ===\n", fname)
	err = dump(o, h.Reader(), recs)
	if err != nil {
		return err
	}

	return o.Flush()
}

func dump(w io.Writer, r io.Reader, recs bool) error {
	dec, err := flash.NewReader(r)
	if err != nil {
		return fmt.Errorf("could not decode header: %w", err)
	}

	hdr := dec.Header()
	fmt.Fprintf(w, "Version:     %8d\n", hdr.Version)
	fmt.Fprintf(w, "Samples:     %8d\n", hdr.SampleCount)
	fmt.Fprintf(w, "Buffer size: %8d\n", hdr.BufferSize)
	fmt.Fprintf(w, "Sample rate: %8d Hz\n", hdr.SampleRate)
	fmt.Fprintf(w, "Compression: %8v\n", hdr.Compression)

	var nrecs int
	for {
		item, err := dec.Next()
		if err != nil {
			if errors.Is(err, io.EOF) {
				break
			}
			return fmt.Errorf("could not decode item: %w", err)
		}
		switch item.Kind {
		case flash.ItemSample:
			if recs {
				fmt.Fprintf(w, "  ts=%10d value=%d\n", item.Sample.Timestamp, b2i(item.Sample.Value))
			}
		case flash.ItemRecord:
			nrecs++
			if recs {
				rec := item.Record
				fmt.Fprintf(w, "  %-5v base=%10d run=%5d value=%d\n", rec.Kind, rec.Base, rec.Run, b2i(rec.Value))
			}
		}
	}

	if nrecs > 0 {
		fmt.Fprintf(w, "Records:     %8d\n", nrecs)
	}
	ftr, ok := dec.Footer()
	if !ok {
		fmt.Fprintf(w, "Footer:      missing (interrupted session, %d samples read)\n", dec.Samples())
		return nil
	}
	fmt.Fprintf(w, "Footer:      %8d samples, checksum=0x%04x (ok)\n", ftr.SampleCount, ftr.Checksum)
	return nil
}

func b2i(v bool) int {
	if v {
		return 1
	}
	return 0
}
