package source

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"sort"
	"strconv"
	"strings"

	"maizekg/internal/graph"
	"maizekg/internal/logger"
)

const (
	colSubject    = "subject"
	colPredicate  = "predicate"
	colObject     = "object"
	colSourceTag  = "source_tag"
	colConfidence = "confidence"
	colEvidence   = "evidence"
)

var headerAliases = map[string]string{
	"subject": colSubject, "source": colSubject, "from": colSubject, "head": colSubject,
	"predicate": colPredicate, "relation": colPredicate, "relationship": colPredicate, "type": colPredicate, "rel": colPredicate,
	"object": colObject, "target": colObject, "to": colObject, "tail": colObject,
	"source_tag": colSourceTag, "provenance": colSourceTag, "origin": colSourceTag,
	"confidence": colConfidence, "score": colConfidence, "weight": colConfidence,
	"evidence": colEvidence,
}

// CSVSource reads a headered, comma-delimited UTF-8 file.
type CSVSource struct {
	path string
}

func NewCSV(path string) *CSVSource {
	return &CSVSource{path: path}
}

func (s *CSVSource) Name() string { return s.path }

func (s *CSVSource) Read(ctx context.Context, yield Yield) (ReadStats, error) {
	f, err := os.Open(s.path)
	if err != nil {
		return ReadStats{}, fmt.Errorf("open csv: %w", err)
	}
	defer f.Close()
	return readCSV(ctx, s.path, f, yield)
}

func readCSV(ctx context.Context, name string, r io.Reader, yield Yield) (ReadStats, error) {
	var stats ReadStats
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1
	cr.ReuseRecord = true

	header, err := cr.Read()
	if errors.Is(err, io.EOF) {
		return stats, &SchemaError{Path: name, Missing: []string{colSubject, colPredicate, colObject}}
	}
	if err != nil {
		return stats, fmt.Errorf("read csv header: %w", err)
	}
	cols, width, err := resolveHeader(name, header)
	if err != nil {
		return stats, err
	}

	skip := func(row int, reason string) {
		rs := RowSkipped{Row: row, Reason: reason}
		stats.Skipped = append(stats.Skipped, rs)
		logger.Warn("skipping malformed row", "source", name, "row", row, "reason", reason)
	}

	for {
		if err := ctx.Err(); err != nil {
			return stats, err
		}
		rec, err := cr.Read()
		if errors.Is(err, io.EOF) {
			return stats, nil
		}
		stats.Rows++
		if err != nil {
			var pe *csv.ParseError
			if errors.As(err, &pe) {
				skip(pe.StartLine, pe.Err.Error())
				continue
			}
			return stats, fmt.Errorf("read csv: %w", err)
		}
		line, _ := cr.FieldPos(0)
		if len(rec) != width {
			skip(line, fmt.Sprintf("expected %d fields, got %d", width, len(rec)))
			continue
		}
		t, ok := graph.NormalizeTriple(graph.Triple{
			Subject:    rec[cols[colSubject]],
			Predicate:  rec[cols[colPredicate]],
			Object:     rec[cols[colObject]],
			Properties: rowProperties(rec, cols),
		})
		if !ok {
			skip(line, "blank subject, predicate or object")
			continue
		}
		stats.Emitted++
		if !yield(t) {
			return stats, nil
		}
	}
}

// resolveHeader maps canonical column names to indexes.
func resolveHeader(name string, header []string) (map[string]int, int, error) {
	cols := make(map[string]int, len(header))
	for i, h := range header {
		if i == 0 {
			h = strings.TrimPrefix(h, "\ufeff")
		}
		canon, ok := headerAliases[strings.ToLower(strings.TrimSpace(h))]
		if !ok {
			continue
		}
		if _, dup := cols[canon]; !dup {
			cols[canon] = i
		}
	}
	var missing []string
	for _, req := range []string{colSubject, colPredicate, colObject} {
		if _, ok := cols[req]; !ok {
			missing = append(missing, req)
		}
	}
	if len(missing) > 0 {
		sort.Strings(missing)
		return nil, 0, &SchemaError{Path: name, Missing: missing}
	}
	return cols, len(header), nil
}

func rowProperties(rec []string, cols map[string]int) map[string]any {
	var props map[string]any
	set := func(k string, v any) {
		if props == nil {
			props = make(map[string]any, 3)
		}
		props[k] = v
	}
	if i, ok := cols[colSourceTag]; ok {
		if v := strings.TrimSpace(rec[i]); v != "" {
			set(graph.PropSource, v)
		}
	}
	if i, ok := cols[colConfidence]; ok {
		if f, err := strconv.ParseFloat(strings.TrimSpace(rec[i]), 64); err == nil {
			set(graph.PropConfidence, f)
		}
	}
	if i, ok := cols[colEvidence]; ok {
		if v := strings.TrimSpace(rec[i]); v != "" {
			set(graph.PropEvidence, v)
		}
	}
	return props
}
