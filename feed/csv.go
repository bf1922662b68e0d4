// Package feed ingests bar series from CSV. The feed owns the input
// contract the simulation core relies on: validated bars, sorted by
// timestamp with no duplicate (timestamp, symbol) pairs.
package feed

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"strconv"
	"time"

	"github.com/quantfold/backsim/market"
)

// header is the required CSV column order.
var header = []string{"time", "symbol", "open", "high", "low", "close", "volume", "signal"}

// timeFormats accepted for the time column.
var timeFormats = []string{
	time.RFC3339,
	"2006-01-02 15:04:05",
	"2006-01-02",
}

// LoadBars reads a bar series from a CSV file.
func LoadBars(path string) ([]market.Bar, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open bars file: %w", err)
	}
	defer f.Close()

	bars, err := ReadBars(f)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return bars, nil
}

// ReadBars parses a bar series and enforces the input contract: every
// bar valid, timestamps non-decreasing, no duplicate (time, symbol).
func ReadBars(r io.Reader) ([]market.Bar, error) {
	cr := csv.NewReader(r)
	cr.TrimLeadingSpace = true

	head, err := cr.Read()
	if err != nil {
		return nil, fmt.Errorf("read header: %w", err)
	}
	if err := checkHeader(head); err != nil {
		return nil, err
	}

	var bars []market.Bar
	seen := make(map[string]bool)
	line := 1

	for {
		rec, err := cr.Read()
		if err == io.EOF {
			break
		}
		line++
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", line, err)
		}

		b, err := parseBar(rec)
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", line, err)
		}
		if err := b.Validate(); err != nil {
			return nil, fmt.Errorf("line %d: %w", line, err)
		}

		if n := len(bars); n > 0 && b.Time.Before(bars[n-1].Time) {
			return nil, fmt.Errorf("line %d: timestamp %s out of order", line, b.Time.Format(time.RFC3339))
		}
		key := b.Time.Format(time.RFC3339Nano) + "|" + b.Symbol
		if seen[key] {
			return nil, fmt.Errorf("line %d: duplicate bar for %s at %s", line, b.Symbol, b.Time.Format(time.RFC3339))
		}
		seen[key] = true

		bars = append(bars, b)
	}
	return bars, nil
}

func checkHeader(head []string) error {
	if len(head) != len(header) {
		return fmt.Errorf("header has %d columns, want %d (%v)", len(head), len(header), header)
	}
	for i, col := range header {
		if head[i] != col {
			return fmt.Errorf("header column %d is %q, want %q", i, head[i], col)
		}
	}
	return nil
}

func parseBar(rec []string) (market.Bar, error) {
	ts, err := parseTime(rec[0])
	if err != nil {
		return market.Bar{}, err
	}

	var b market.Bar
	b.Time = ts
	b.Symbol = rec[1]

	fields := []struct {
		name string
		dst  *float64
	}{
		{"open", &b.Open},
		{"high", &b.High},
		{"low", &b.Low},
		{"close", &b.Close},
		{"volume", &b.Volume},
	}
	for i, fl := range fields {
		v, err := strconv.ParseFloat(rec[i+2], 64)
		if err != nil {
			return market.Bar{}, fmt.Errorf("bad %s %q", fl.name, rec[i+2])
		}
		*fl.dst = v
	}

	sig, err := strconv.Atoi(rec[7])
	if err != nil || sig < -1 || sig > 1 {
		return market.Bar{}, fmt.Errorf("bad signal %q", rec[7])
	}
	b.Signal = market.Signal(sig)

	return b, nil
}

func parseTime(s string) (time.Time, error) {
	for _, layout := range timeFormats {
		if t, err := time.Parse(layout, s); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("bad time %q", s)
}
