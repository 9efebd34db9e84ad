// Package storage writes match samples to durable output.
package storage

import (
	"context"
	"errors"
	"fmt"
	"time"

	"lol-match-crawler/internal/sample"
)

// Sink is an append-only destination for samples. A sample returned from
// Write without error is durable.
type Sink interface {
	Write(ctx context.Context, s *sample.MatchSample) error
	Close() error
}

// Format selects the file encoding.
type Format string

const (
	FormatCSV   Format = "csv"
	FormatJSONL Format = "jsonl"
)

// ParseFormat validates a format name.
func ParseFormat(s string) (Format, error) {
	switch f := Format(s); f {
	case FormatCSV, FormatJSONL:
		return f, nil
	default:
		return "", fmt.Errorf("unknown output format %q (want csv or jsonl)", s)
	}
}

// DefaultFileName names an output file after the run's start time.
func DefaultFileName(start time.Time, format Format) string {
	return fmt.Sprintf("lol_data-%s.%s", start.Format("2006-01-02-15-04-05"), format)
}

// Multi fans each sample out to every sink in order. The first failure stops
// the write.
type Multi []Sink

func (m Multi) Write(ctx context.Context, s *sample.MatchSample) error {
	for _, sink := range m {
		if err := sink.Write(ctx, s); err != nil {
			return err
		}
	}
	return nil
}

// Close closes every sink and joins their errors.
func (m Multi) Close() error {
	var errs []error
	for _, sink := range m {
		if err := sink.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
