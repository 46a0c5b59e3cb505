// Package replay feeds recorded accelerometer samples through a detector.
//
// Recordings are CSV with one sample per row: timestamp_ns,x,y,z. A header
// row, blank lines and lines starting with # are ignored.
package replay

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/taigrr/shakedetect/detector"
)

// ErrMalformed is returned for rows that are not timestamp_ns,x,y,z.
var ErrMalformed = errors.New("malformed sample")

// Event is a shake completed while replaying.
type Event struct {
	Line        int
	TimestampNs int64
	Seq         int
}

// Summary counts what a replay did.
type Summary struct {
	Samples  int
	Accepted uint64
	Shakes   int
}

// Run reads samples from r, scales them and feeds det in file order. fn, if
// non-nil, is called for every completed shake. The detector is started if it
// is not already listening.
func Run(ctx context.Context, r io.Reader, det *detector.Detector, scale float64, fn func(Event)) (Summary, error) {
	if scale == 0 {
		scale = 1
	}
	if !det.Listening() {
		det.Start()
	}
	startAccepted := det.Stats().Accepted

	cr := csv.NewReader(r)
	cr.Comment = '#'
	cr.FieldsPerRecord = -1
	cr.TrimLeadingSpace = true
	cr.ReuseRecord = true

	var sum Summary
	first := true
	for {
		if err := ctx.Err(); err != nil {
			return sum, err
		}
		rec, err := cr.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return sum, fmt.Errorf("%w: %w", ErrMalformed, err)
		}
		line, _ := cr.FieldPos(0)

		ts, vals, err := parseRow(rec)
		if err != nil {
			if first && isHeader(rec) {
				first = false
				continue
			}
			return sum, fmt.Errorf("line %d: %w", line, err)
		}
		first = false

		sum.Samples++
		if det.OnSample(ts, vals[0]*scale, vals[1]*scale, vals[2]*scale) {
			sum.Shakes++
			if fn != nil {
				fn(Event{Line: line, TimestampNs: ts, Seq: sum.Shakes})
			}
		}
	}

	sum.Accepted = det.Stats().Accepted - startAccepted
	return sum, nil
}

func parseRow(rec []string) (int64, [3]float64, error) {
	var vals [3]float64
	if len(rec) != 4 {
		return 0, vals, fmt.Errorf("%w: want 4 fields, got %d", ErrMalformed, len(rec))
	}
	ts, err := strconv.ParseInt(strings.TrimSpace(rec[0]), 10, 64)
	if err != nil {
		return 0, vals, fmt.Errorf("%w: timestamp %q", ErrMalformed, rec[0])
	}
	for i := range vals {
		v, err := strconv.ParseFloat(strings.TrimSpace(rec[i+1]), 64)
		if err != nil {
			return 0, vals, fmt.Errorf("%w: value %q", ErrMalformed, rec[i+1])
		}
		vals[i] = v
	}
	return ts, vals, nil
}

func isHeader(rec []string) bool {
	if len(rec) == 0 {
		return false
	}
	_, err := strconv.ParseInt(strings.TrimSpace(rec[0]), 10, 64)
	return err != nil
}
