// Package extract converts reference documents of mixed formats into a
// single text buffer for the answer-key parser.
package extract

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/ledongthuc/pdf"
)

// ErrUnsupportedFormat is returned for file extensions the extractor
// does not handle.
var ErrUnsupportedFormat = errors.New("unsupported file format")

// ErrExtraction is returned when a document of a supported format is
// malformed or unreadable. The underlying cause is wrapped alongside it.
var ErrExtraction = errors.New("text extraction failed")

// Text returns the full text content of the file at path. The format is
// derived from the extension: .txt is read as UTF-8, .pdf concatenates the
// text of every page, .docx concatenates the text of every paragraph, both
// newline-separated.
func Text(path string) (string, error) {
	switch ext := strings.ToLower(filepath.Ext(path)); ext {
	case ".txt":
		data, err := os.ReadFile(path)
		if err != nil {
			return "", fmt.Errorf("read %s: %w: %w", path, ErrExtraction, err)
		}
		return string(data), nil
	case ".pdf":
		return pdfText(path)
	case ".docx":
		return docxText(path)
	default:
		return "", fmt.Errorf("%w: %q (supported: .txt, .pdf, .docx)", ErrUnsupportedFormat, ext)
	}
}

func pdfText(path string) (string, error) {
	f, r, err := pdf.Open(path)
	if err != nil {
		return "", fmt.Errorf("open pdf %s: %w: %w", path, ErrExtraction, err)
	}
	defer f.Close()

	var sb strings.Builder
	for i := 1; i <= r.NumPage(); i++ {
		p := r.Page(i)
		if p.V.IsNull() {
			continue
		}
		text, err := p.GetPlainText(nil)
		if err != nil {
			return "", fmt.Errorf("pdf %s page %d: %w: %w", path, i, ErrExtraction, err)
		}
		sb.WriteString(text)
		sb.WriteString("\n")
	}
	return sb.String(), nil
}
