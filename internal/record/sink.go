package record

import (
	"context"
	"encoding/csv"
	"fmt"
	"os"
	"path/filepath"
)

// Sink persists a sorted batch of rows.
type Sink interface {
	Write(ctx context.Context, rows []Row) error
}

// Mode selects whether a run extends or replaces the output table.
type Mode string

const (
	ModeAppend    Mode = "append"
	ModeOverwrite Mode = "overwrite"
)

// CSVSink writes the output table. In append mode the header is written only
// when the file is new or empty. Rows are never deduplicated.
type CSVSink struct {
	Path string
	Mode Mode
}

func NewCSVSink(path string, mode Mode) *CSVSink {
	return &CSVSink{Path: path, Mode: mode}
}

func (s *CSVSink) Write(ctx context.Context, rows []Row) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if dir := filepath.Dir(s.Path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create output dir: %w", err)
		}
	}
	flag := os.O_CREATE | os.O_WRONLY | os.O_APPEND
	if s.Mode == ModeOverwrite {
		flag = os.O_CREATE | os.O_WRONLY | os.O_TRUNC
	}
	f, err := os.OpenFile(s.Path, flag, 0o644)
	if err != nil {
		return fmt.Errorf("open output: %w", err)
	}
	st, err := f.Stat()
	if err != nil {
		f.Close()
		return fmt.Errorf("stat output: %w", err)
	}

	w := csv.NewWriter(f)
	if st.Size() == 0 {
		_ = w.Write(Header)
	}
	for _, r := range rows {
		_ = w.Write(r.Strings())
	}
	w.Flush()
	if err := w.Error(); err != nil {
		f.Close()
		return fmt.Errorf("write output: %w", err)
	}
	return f.Close()
}

// MultiSink writes the same batch to every sink in order and stops at the
// first error.
type MultiSink []Sink

func (m MultiSink) Write(ctx context.Context, rows []Row) error {
	for _, s := range m {
		if err := s.Write(ctx, rows); err != nil {
			return err
		}
	}
	return nil
}
