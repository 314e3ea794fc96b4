package source

import (
	"context"
	"fmt"
	"os"

	"maizekg/internal/graph"
)

// JSONSource reads mined triples stored as {"triples":[...]} or a bare array.
type JSONSource struct {
	path string
}

func NewJSON(path string) *JSONSource {
	return &JSONSource{path: path}
}

func (s *JSONSource) Name() string { return s.path }

func (s *JSONSource) Read(ctx context.Context, yield Yield) (ReadStats, error) {
	b, err := os.ReadFile(s.path)
	if err != nil {
		return ReadStats{}, fmt.Errorf("read json: %w", err)
	}
	triples, dropped, err := graph.ParseTriplesJSON(string(b))
	if err != nil {
		return ReadStats{}, fmt.Errorf("%s: %w", s.path, err)
	}
	stats := ReadStats{Rows: len(triples) + dropped}
	if dropped > 0 {
		stats.Skipped = append(stats.Skipped, RowSkipped{Reason: fmt.Sprintf("%d entries with a blank field", dropped)})
	}
	return emitAll(ctx, triples, stats, yield)
}

func emitAll(ctx context.Context, triples []graph.Triple, stats ReadStats, yield Yield) (ReadStats, error) {
	for _, t := range triples {
		if err := ctx.Err(); err != nil {
			return stats, err
		}
		stats.Emitted++
		if !yield(t) {
			break
		}
	}
	return stats, nil
}
