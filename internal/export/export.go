// Package export renders a single chat turn as a downloadable document.
package export

import (
	"bytes"
	"fmt"
	"strings"

	"github.com/go-pdf/fpdf"
)

// Format is a supported download format.
type Format string

const (
	FormatText Format = "txt"
	FormatPDF  Format = "pdf"
)

// ParseFormat maps a URL segment to a Format.
func ParseFormat(s string) (Format, bool) {
	switch Format(s) {
	case FormatText, FormatPDF:
		return Format(s), true
	default:
		return "", false
	}
}

// ContentType returns the MIME type served for f.
func (f Format) ContentType() string {
	if f == FormatPDF {
		return "application/pdf"
	}
	return "text/plain; charset=utf-8"
}

// Filename returns the attachment name served for f.
func (f Format) Filename() string {
	return "output." + string(f)
}

// Render renders text in format f.
func Render(f Format, text string) ([]byte, error) {
	switch f {
	case FormatText:
		return Text(text), nil
	case FormatPDF:
		return PDF(text)
	default:
		return nil, fmt.Errorf("export: unsupported format %q", f)
	}
}

// Text returns the UTF-8 bytes of text, unchanged.
func Text(text string) []byte {
	return []byte(text)
}

// PDF lays text out on A4 pages, one paragraph per line of input.
//
// The core PDF fonts only cover Latin-1 (cp1252). Characters outside it are
// rendered by the translator as best it can; byte-exact layout is not a goal.
func PDF(text string) ([]byte, error) {
	doc := fpdf.New("P", "mm", "A4", "")
	doc.SetMargins(20, 20, 20)
	doc.SetAutoPageBreak(true, 20)
	doc.AddPage()
	doc.SetFont("Helvetica", "", 11)

	tr := doc.UnicodeTranslatorFromDescriptor("")
	for _, line := range strings.Split(text, "\n") {
		// MultiCell wraps long lines; width 0 means "up to the right margin".
		doc.MultiCell(0, 5.5, tr(line), "", "L", false)
	}

	var buf bytes.Buffer
	if err := doc.Output(&buf); err != nil {
		return nil, fmt.Errorf("export: rendering pdf: %w", err)
	}
	return buf.Bytes(), nil
}
