// Copyright 2020 The go-lpc Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package compress

import (
	"github.com/go-lpc/sigcap/hal"
)

// Replay reconstructs the samples described by recs, in order.
// Runs are expanded with interval microseconds between samples.
// A delta record immediately followed by a run starting at the same
// timestamp only marks the edge opening that run.
func Replay(recs []Record, interval uint32) []hal.Sample {
	var out []hal.Sample
	for i, rec := range recs {
		switch rec.Kind {
		case RecordRLE:
			for j := uint32(0); j < uint32(rec.Run); j++ {
				out = append(out, hal.Sample{
					Timestamp: rec.Base + j*interval,
					Value:     rec.Value,
				})
			}
		case RecordDelta:
			if i+1 < len(recs) {
				next := recs[i+1]
				if next.Kind == RecordRLE && next.Base == rec.Base {
					continue
				}
			}
			out = append(out, hal.Sample{Timestamp: rec.Base, Value: rec.Value})
		}
	}
	return out
}

// Edges returns the samples where the level changes, starting with
// the first sample described by recs.
func Edges(recs []Record) []hal.Sample {
	var out []hal.Sample
	for _, rec := range recs {
		if len(out) > 0 && out[len(out)-1].Value == rec.Value {
			continue
		}
		out = append(out, hal.Sample{Timestamp: rec.Base, Value: rec.Value})
	}
	return out
}
