package extract

import (
	"archive/zip"
	"errors"
	"os"
	"path/filepath"
	"testing"
)

func TestTextPlain(t *testing.T) {
	path := filepath.Join(t.TempDir(), "key.txt")
	content := "Q1 [5 marks]: answer one\nQ2 [3 marks]: answer two\n"
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}

	got, err := Text(path)
	if err != nil {
		t.Fatalf("Text: %v", err)
	}
	if got != content {
		t.Errorf("expected %q, got %q", content, got)
	}
}

func TestTextUnsupportedFormat(t *testing.T) {
	tests := []string{"key.md", "key.rtf", "key", "key.PDFX"}
	for _, name := range tests {
		t.Run(name, func(t *testing.T) {
			_, err := Text(filepath.Join(t.TempDir(), name))
			if !errors.Is(err, ErrUnsupportedFormat) {
				t.Errorf("expected ErrUnsupportedFormat, got %v", err)
			}
		})
	}
}

func TestTextExtensionCaseInsensitive(t *testing.T) {
	path := filepath.Join(t.TempDir(), "key.TXT")
	if err := os.WriteFile(path, []byte("Q1: a"), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	if _, err := Text(path); err != nil {
		t.Errorf("uppercase extension should be accepted: %v", err)
	}
}

func TestTextMissingFile(t *testing.T) {
	_, err := Text(filepath.Join(t.TempDir(), "absent.txt"))
	if !errors.Is(err, ErrExtraction) {
		t.Errorf("expected ErrExtraction, got %v", err)
	}
}

func TestTextCorruptPDF(t *testing.T) {
	path := filepath.Join(t.TempDir(), "broken.pdf")
	if err := os.WriteFile(path, []byte("not a pdf at all"), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	_, err := Text(path)
	if !errors.Is(err, ErrExtraction) {
		t.Errorf("expected ErrExtraction, got %v", err)
	}
}

// writeDocx assembles a minimal valid .docx: a zip with word/document.xml
// holding the given paragraphs.
func writeDocx(t *testing.T, path string, paragraphs []string) {
	t.Helper()
	f, err := os.Create(path)
	if err != nil {
		t.Fatalf("create docx: %v", err)
	}
	defer f.Close()

	zw := zip.NewWriter(f)
	doc, err := zw.Create("word/document.xml")
	if err != nil {
		t.Fatalf("create document.xml: %v", err)
	}

	body := `<?xml version="1.0" encoding="UTF-8"?><w:document xmlns:w="http://schemas.openxmlformats.org/wordprocessingml/2006/main"><w:body>`
	for _, p := range paragraphs {
		body += `<w:p><w:r><w:t>` + p + `</w:t></w:r></w:p>`
	}
	body += `</w:body></w:document>`
	if _, err := doc.Write([]byte(body)); err != nil {
		t.Fatalf("write document.xml: %v", err)
	}
	if err := zw.Close(); err != nil {
		t.Fatalf("close zip: %v", err)
	}
}

func TestTextDocx(t *testing.T) {
	path := filepath.Join(t.TempDir(), "key.docx")
	writeDocx(t, path, []string{"Q1 [5 marks]: first", "Q2 [3 marks]: second"})

	got, err := Text(path)
	if err != nil {
		t.Fatalf("Text: %v", err)
	}
	want := "Q1 [5 marks]: first\nQ2 [3 marks]: second"
	if got != want {
		t.Errorf("expected %q, got %q", want, got)
	}
}

func TestTextDocxMissingDocument(t *testing.T) {
	path := filepath.Join(t.TempDir(), "hollow.docx")
	f, err := os.Create(path)
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	zw := zip.NewWriter(f)
	if _, err := zw.Create("word/other.xml"); err != nil {
		t.Fatalf("create entry: %v", err)
	}
	if err := zw.Close(); err != nil {
		t.Fatalf("close zip: %v", err)
	}
	f.Close()

	_, err = Text(path)
	if !errors.Is(err, ErrExtraction) {
		t.Errorf("expected ErrExtraction, got %v", err)
	}
}

func TestTextCorruptDocx(t *testing.T) {
	path := filepath.Join(t.TempDir(), "broken.docx")
	if err := os.WriteFile(path, []byte("not a zip"), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	_, err := Text(path)
	if !errors.Is(err, ErrExtraction) {
		t.Errorf("expected ErrExtraction, got %v", err)
	}
}
