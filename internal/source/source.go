// Package source reads subject-predicate-object triples from files.
package source

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"

	"maizekg/internal/graph"
	"maizekg/internal/util"
)

// Yield receives one triple. Returning false stops the read.
type Yield func(graph.Triple) bool

// Source is a finite, restartable stream of triples. Every Read starts over
// from the beginning of the input.
type Source interface {
	Name() string
	Read(ctx context.Context, yield Yield) (ReadStats, error)
}

// ReadStats summarizes one pass over a source.
type ReadStats struct {
	Rows    int          `json:"rows"`
	Emitted int          `json:"emitted"`
	Skipped []RowSkipped `json:"skipped,omitempty"`
}

func (s ReadStats) SkippedCount() int { return len(s.Skipped) }

// RowSkipped describes a malformed input row that was dropped.
type RowSkipped struct {
	Row    int    `json:"row"`
	Reason string `json:"reason"`
}

func (r RowSkipped) Error() string {
	return fmt.Sprintf("row %d skipped: %s", r.Row, r.Reason)
}

// SchemaError reports required columns absent from the input header.
type SchemaError struct {
	Path    string
	Missing []string
}

func (e *SchemaError) Error() string {
	return fmt.Sprintf("%s: missing required columns: %s", e.Path, strings.Join(e.Missing, ", "))
}

func (e *SchemaError) Unwrap() error { return util.ErrMissingColumns }

// Open picks a source implementation from the file extension.
func Open(path string) (Source, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".csv":
		return NewCSV(path), nil
	case ".json":
		return NewJSON(path), nil
	case ".pdf":
		return NewPDF(path), nil
	case ".txt":
		return NewText(path), nil
	default:
		return nil, fmt.Errorf("%s: %w", path, util.ErrUnsupportedSource)
	}
}

// Collect drains src into a slice.
func Collect(ctx context.Context, src Source) ([]graph.Triple, ReadStats, error) {
	var out []graph.Triple
	stats, err := src.Read(ctx, func(t graph.Triple) bool {
		out = append(out, t)
		return true
	})
	if err != nil {
		return nil, stats, err
	}
	return out, stats, nil
}
