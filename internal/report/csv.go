package report

import (
	"encoding/csv"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strings"
)

// CSVSink writes every table to its own CSV file inside a directory.
type CSVSink struct {
	dir    string
	open   []*csvTable
	byName map[string]*csvTable
}

// fileNameReplacer maps characters that are not portable in file names.
var fileNameReplacer = strings.NewReplacer(
	"<", "_", ">", "_", ":", "_", `"`, "_",
	"/", "_", `\`, "_", "|", "_", "?", "_", "*", "+",
)

// NewCSVSink creates the output directory if needed.
func NewCSVSink(dir string) (*CSVSink, error) {
	if err := os.MkdirAll(dir, 0o750); err != nil {
		return nil, fmt.Errorf("failed to create output directory: %w", err)
	}
	return &CSVSink{dir: dir, byName: make(map[string]*csvTable)}, nil
}

// FileName returns the file a table is written to.
func (s *CSVSink) FileName(name string) string {
	return filepath.Join(s.dir, fileNameReplacer.Replace(name)+".csv")
}

// BeginTable starts the table in a temporary file next to its final name.
// The file replaces the previous table only on Close.
func (s *CSVSink) BeginTable(name string) (Table, error) {
	if prev, ok := s.byName[name]; ok {
		prev.discard()
		s.open = slices.DeleteFunc(s.open, func(t *csvTable) bool { return t == prev })
	}

	final := s.FileName(name)
	f, err := os.CreateTemp(s.dir, "."+filepath.Base(final)+"-*")
	if err != nil {
		return nil, fmt.Errorf("failed to create %s: %w", name, err)
	}
	t := &csvTable{file: f, w: csv.NewWriter(f), final: final}
	s.byName[name] = t
	s.open = append(s.open, t)
	return t, nil
}

// Close flushes every table and moves it over its final file.
func (s *CSVSink) Close() error {
	var errs []error
	for _, t := range s.open {
		if err := t.commit(); err != nil {
			errs = append(errs, err)
		}
	}
	s.open = nil
	return errors.Join(errs...)
}

// Abort drops every table written through the sink. Files from earlier
// runs are left untouched.
func (s *CSVSink) Abort() error {
	for _, t := range s.open {
		t.discard()
	}
	s.open = nil
	return nil
}

type csvTable struct {
	file   *os.File
	w      *csv.Writer
	final  string
	closed bool
}

func (t *csvTable) AppendRow(values ...any) error {
	if t.closed {
		return errors.New("table already closed")
	}
	return t.w.Write(FormatRow(values))
}

func (t *csvTable) commit() error {
	if t.closed {
		return nil
	}
	t.closed = true
	t.w.Flush()
	err := errors.Join(t.w.Error(), t.file.Close())
	if err == nil {
		err = os.Rename(t.file.Name(), t.final)
	}
	if err != nil {
		_ = os.Remove(t.file.Name())
		return fmt.Errorf("failed to write %s: %w", t.final, err)
	}
	return nil
}

func (t *csvTable) discard() {
	if t.closed {
		return
	}
	t.closed = true
	_ = t.file.Close()
	_ = os.Remove(t.file.Name())
}
