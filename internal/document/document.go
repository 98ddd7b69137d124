// Package document renders summary text into a downloadable PDF.
package document

import (
	"bytes"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	"github.com/go-pdf/fpdf"
	"github.com/ledongthuc/pdf"
)

const filenameLayout = "20060102150405"

var nonASCII = regexp.MustCompile(`[^\x00-\x7F]+`)

// Document is one rendered summary.
type Document struct {
	Filename  string
	Data      []byte
	CreatedAt time.Time
}

// Renderer turns ordered lines into a paginated document.
type Renderer interface {
	Render(lines []string) ([]byte, error)
}

// RenderFunc adapts a plain function to Renderer.
type RenderFunc func(lines []string) ([]byte, error)

func (f RenderFunc) Render(lines []string) ([]byte, error) {
	return f(lines)
}

// Clean drops every non-ASCII character; the core PDF fonts cannot encode them.
func Clean(text string) string {
	return nonASCII.ReplaceAllString(text, "")
}

// Lines returns the cleaned text split on newlines.
func Lines(text string) []string {
	return strings.Split(Clean(text), "\n")
}

// Filename names a document generated at t.
func Filename(t time.Time) string {
	return "patient_summary_" + t.Format(filenameLayout) + ".pdf"
}

// Build renders summary at now.
func Build(r Renderer, summary string, now time.Time) (Document, error) {
	data, err := r.Render(Lines(summary))
	if err != nil {
		return Document{}, fmt.Errorf("render document: %w", err)
	}
	return Document{Filename: Filename(now), Data: data, CreatedAt: now}, nil
}

// PDF renders A4 pages in 12pt Arial with 10mm lines, wrapping long lines.
type PDF struct {
	Title string
}

func (p PDF) Render(lines []string) ([]byte, error) {
	doc := fpdf.New("P", "mm", "A4", "")
	if p.Title != "" {
		doc.SetTitle(p.Title, false)
	}
	doc.SetCreator("consult", false)
	doc.AddPage()
	doc.SetFont("Arial", "", 12)

	for _, line := range lines {
		if strings.TrimSpace(line) == "" {
			doc.Ln(10)
			continue
		}
		doc.MultiCell(0, 10, line, "", "L", false)
	}

	var buf bytes.Buffer
	if err := doc.Output(&buf); err != nil {
		return nil, fmt.Errorf("write pdf: %w", err)
	}
	return buf.Bytes(), nil
}

// ExtractText returns the plain text of a PDF produced by Render.
func ExtractText(data []byte) (string, error) {
	reader, err := pdf.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return "", fmt.Errorf("open pdf: %w", err)
	}
	plain, err := reader.GetPlainText()
	if err != nil {
		return "", fmt.Errorf("extract pdf text: %w", err)
	}
	text, err := io.ReadAll(plain)
	if err != nil {
		return "", fmt.Errorf("read pdf text: %w", err)
	}
	return string(text), nil
}

// Save writes doc into dir under its own filename and returns the path.
func Save(dir string, doc Document) (string, error) {
	if doc.Filename == "" {
		return "", fmt.Errorf("save document: missing filename")
	}
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return "", fmt.Errorf("save document: %w", err)
	}
	path := filepath.Join(dir, filepath.Base(doc.Filename))
	if err := os.WriteFile(path, doc.Data, 0o600); err != nil {
		return "", fmt.Errorf("save document: %w", err)
	}
	return path, nil
}
