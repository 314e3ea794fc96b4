package util

import (
	"bufio"
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
)

// writeAtomic streams into a temp file next to path and renames it into place,
// so readers never observe a partially written artifact.
func writeAtomic(path, pattern string, write func(w io.Writer) error) error {
	if err := EnsureDir(filepath.Dir(path)); err != nil {
		return err
	}
	tmp, err := os.CreateTemp(filepath.Dir(path), pattern)
	if err != nil {
		return fmt.Errorf("create temp %s: %w", pattern, err)
	}
	w := bufio.NewWriter(tmp)
	if err := write(w); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmp.Name())
		return err
	}
	if err := w.Flush(); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmp.Name())
		return fmt.Errorf("flush %s: %w", path, err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close temp %s: %w", path, err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		return fmt.Errorf("rename temp %s: %w", path, err)
	}
	return nil
}

func WriteJSONAtomic(path string, v any) error {
	return writeAtomic(path, "tmp-*.json", func(w io.Writer) error {
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		if err := enc.Encode(v); err != nil {
			return fmt.Errorf("encode json: %w", err)
		}
		return nil
	})
}

func WriteJSONLinesAtomic(path string, rows []any) error {
	return writeAtomic(path, "tmp-*.jsonl", func(w io.Writer) error {
		enc := json.NewEncoder(w)
		for _, row := range rows {
			if err := enc.Encode(row); err != nil {
				return fmt.Errorf("marshal row: %w", err)
			}
		}
		return nil
	})
}

func WriteTextAtomic(path string, content string) error {
	return writeAtomic(path, "tmp-*.txt", func(w io.Writer) error {
		if _, err := io.WriteString(w, content); err != nil {
			return fmt.Errorf("write text: %w", err)
		}
		return nil
	})
}

// WriteCSVAtomic writes a header row followed by rows.
func WriteCSVAtomic(path string, header []string, rows [][]string) error {
	return writeAtomic(path, "tmp-*.csv", func(w io.Writer) error {
		cw := csv.NewWriter(w)
		if err := cw.Write(header); err != nil {
			return fmt.Errorf("write csv header: %w", err)
		}
		if err := cw.WriteAll(rows); err != nil {
			return fmt.Errorf("write csv rows: %w", err)
		}
		return nil
	})
}
