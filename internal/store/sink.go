package store

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/regforge/regforge/internal/reconcile"
)

// Sink writes the ten-line plain-text rendering of a record to a fixed
// path. Writes go through a temp file in the same directory and a rename,
// so readers never observe a partial file.
type Sink struct {
	path string
}

// NewSink returns a Sink writing to path.
func NewSink(path string) *Sink {
	return &Sink{path: path}
}

// Path returns the sink's target path.
func (s *Sink) Path() string {
	return s.path
}

// Write replaces the sink file with the record's ten lines.
func (s *Sink) Write(record *reconcile.TransactionRecord) error {
	dir := filepath.Dir(s.path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create sink directory %s: %w", dir, err)
	}

	tmp, err := os.CreateTemp(dir, ".record-*")
	if err != nil {
		return fmt.Errorf("create sink temp file: %w", err)
	}
	defer os.Remove(tmp.Name())

	content := strings.Join(record.SinkLines(), "\n") + "\n"
	if _, err := tmp.WriteString(content); err != nil {
		tmp.Close()
		return fmt.Errorf("write sink temp file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close sink temp file: %w", err)
	}
	if err := os.Rename(tmp.Name(), s.path); err != nil {
		return fmt.Errorf("publish sink file %s: %w", s.path, err)
	}
	return nil
}
