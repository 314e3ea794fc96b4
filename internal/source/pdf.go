package source

import (
	"context"
	"fmt"
	"io"
	"path/filepath"
	"strings"

	"github.com/ledongthuc/pdf"

	"maizekg/internal/util"
)

// PDFSource extracts literature text from a PDF and mines relation sentences.
type PDFSource struct {
	path string
}

func NewPDF(path string) *PDFSource {
	return &PDFSource{path: path}
}

func (s *PDFSource) Name() string { return s.path }

func (s *PDFSource) Read(ctx context.Context, yield Yield) (ReadStats, error) {
	text, err := extractPDFText(s.path)
	if err != nil {
		return ReadStats{}, err
	}
	return readText(ctx, text, filepath.Base(s.path), yield)
}

func extractPDFText(path string) (string, error) {
	f, r, err := pdf.Open(path)
	if err != nil {
		return "", fmt.Errorf("open pdf: %w", err)
	}
	defer f.Close()

	reader, err := r.GetPlainText()
	if err != nil {
		return "", fmt.Errorf("extract pdf text: %w", err)
	}
	buf := new(strings.Builder)
	if _, err := io.Copy(buf, reader); err != nil {
		return "", fmt.Errorf("read extracted text: %w", err)
	}
	text := util.SanitizeText(strings.TrimSpace(buf.String()))
	if text == "" {
		return "", fmt.Errorf("%s: %w", path, util.ErrNoExtractableText)
	}
	return text, nil
}
