package storage

import (
	"bufio"
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	json "github.com/goccy/go-json"
	log "github.com/sirupsen/logrus"

	"lol-match-crawler/internal/sample"
)

// ErrClosed is returned by Write after Close.
var ErrClosed = errors.New("sink closed")

// FileSink writes samples to a single CSV or JSONL file. Every row is flushed
// and synced before Write returns, so a crash leaves a valid prefix.
type FileSink struct {
	mu sync.Mutex

	format   Format
	path     string
	file     *os.File
	buf      *bufio.Writer
	csv      *csv.Writer
	rows     int
	compress bool
	archived string

	logger *log.Entry
}

// FileOption configures a FileSink
type FileOption func(*FileSink)

// WithCompression gzips the finished file on Close and removes the plain copy.
func WithCompression(enabled bool) FileOption {
	return func(f *FileSink) { f.compress = enabled }
}

// WithFileLogger sets the logger used for open and close events.
func WithFileLogger(logger *log.Entry) FileOption {
	return func(f *FileSink) { f.logger = logger }
}

// OpenFile creates path (and its directory) and writes the header: the column
// row for CSV, a schema record as the first line for JSONL.
// An existing file is never truncated.
func OpenFile(path string, format Format, opts ...FileOption) (*FileSink, error) {
	if _, err := ParseFormat(string(format)); err != nil {
		return nil, err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, fmt.Errorf("failed to create directory for %s: %w", path, err)
	}
	file, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0644)
	if err != nil {
		return nil, fmt.Errorf("failed to create output file: %w", err)
	}

	f := &FileSink{
		format: format,
		path:   path,
		file:   file,
		buf:    bufio.NewWriterSize(file, 64*1024),
		logger: log.WithField("component", "sink"),
	}
	for _, opt := range opts {
		opt(f)
	}

	if err := f.writeHeader(); err != nil {
		file.Close()
		return nil, fmt.Errorf("failed to write header: %w", err)
	}
	if err := f.sync(); err != nil {
		file.Close()
		return nil, err
	}

	f.logger.WithFields(log.Fields{"path": path, "format": format, "schema": sample.SchemaVersion}).Info("Opened output file")
	return f, nil
}

func (f *FileSink) writeHeader() error {
	if f.format == FormatCSV {
		f.csv = csv.NewWriter(f.buf)
		return f.csv.Write(sample.Columns())
	}
	data, err := json.Marshal(sample.NewHeader())
	if err != nil {
		return err
	}
	_, err = f.buf.Write(append(data, '\n'))
	return err
}

// Write appends one row and makes it durable.
func (f *FileSink) Write(_ context.Context, s *sample.MatchSample) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.file == nil {
		return ErrClosed
	}

	switch f.format {
	case FormatCSV:
		if err := f.csv.Write(s.Record()); err != nil {
			return fmt.Errorf("failed to write row: %w", err)
		}
	case FormatJSONL:
		data, err := json.Marshal(s)
		if err != nil {
			return fmt.Errorf("failed to marshal sample: %w", err)
		}
		if _, err := f.buf.Write(append(data, '\n')); err != nil {
			return fmt.Errorf("failed to write record: %w", err)
		}
	}

	if err := f.sync(); err != nil {
		return err
	}
	f.rows++
	return nil
}

// sync pushes buffered bytes through to disk.
func (f *FileSink) sync() error {
	if f.csv != nil {
		f.csv.Flush()
		if err := f.csv.Error(); err != nil {
			return fmt.Errorf("failed to flush: %w", err)
		}
	}
	if err := f.buf.Flush(); err != nil {
		return fmt.Errorf("failed to flush: %w", err)
	}
	if err := f.file.Sync(); err != nil {
		return fmt.Errorf("failed to sync: %w", err)
	}
	return nil
}

// Close flushes and closes the file, compressing it if configured.
func (f *FileSink) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.file == nil {
		return nil
	}
	err := f.sync()
	if cerr := f.file.Close(); cerr != nil && err == nil {
		err = cerr
	}
	f.file = nil
	if err != nil {
		return err
	}

	f.logger.WithFields(log.Fields{"path": f.path, "rows": f.rows}).Info("Closed output file")

	if f.compress {
		archived, err := Compress(f.path)
		if err != nil {
			return err
		}
		f.archived = archived
		f.logger.WithField("path", archived).Info("Compressed output file")
	}
	return nil
}

// Path returns the final location of the output: the archive once compressed.
func (f *FileSink) Path() string {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.archived != "" {
		return f.archived
	}
	return f.path
}

// Rows returns the number of samples written.
func (f *FileSink) Rows() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.rows
}
