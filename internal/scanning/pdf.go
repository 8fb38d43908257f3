package scanning

import (
	"bytes"
	"fmt"
	"log/slog"
	"strings"

	"github.com/gen2brain/go-fitz"
	"github.com/ledongthuc/pdf"
)

// PDFText is the text pulled out of an uploaded document
type PDFText struct {
	Pages int    `json:"pages"`
	Text  string `json:"text"`
}

// TextExtractor pulls plain text out of a PDF
type TextExtractor interface {
	ExtractText(data []byte) (*PDFText, error)
}

// FitzExtractor extracts text with MuPDF
type FitzExtractor struct{}

// ExtractText joins the text of every non-empty page with newlines
func (FitzExtractor) ExtractText(data []byte) (*PDFText, error) {
	doc, err := fitz.NewFromMemory(data)
	if err != nil {
		return nil, fmt.Errorf("opening PDF: %w", err)
	}
	defer doc.Close()

	n := doc.NumPage()
	pages := make([]string, 0, n)
	for i := 0; i < n; i++ {
		text, err := doc.Text(i)
		if err != nil {
			slog.Warn("Skipping unreadable PDF page", "page", i+1, "error", err)
			continue
		}
		pages = appendPage(pages, text)
	}

	return &PDFText{Pages: n, Text: strings.Join(pages, "\n")}, nil
}

// PureExtractor extracts text without cgo, for builds where MuPDF is unavailable
type PureExtractor struct{}

// ExtractText joins the text of every non-empty page with newlines.
// Pages are 1-indexed in ledongthuc/pdf.
func (PureExtractor) ExtractText(data []byte) (*PDFText, error) {
	r, err := pdf.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return nil, fmt.Errorf("opening PDF: %w", err)
	}

	n := r.NumPage()
	pages := make([]string, 0, n)
	for i := 1; i <= n; i++ {
		p := r.Page(i)
		if p.V.IsNull() {
			continue
		}
		text, err := p.GetPlainText(nil)
		if err != nil {
			slog.Warn("Skipping unreadable PDF page", "page", i, "error", err)
			continue
		}
		pages = appendPage(pages, text)
	}

	return &PDFText{Pages: n, Text: strings.Join(pages, "\n")}, nil
}

// NewTextExtractor returns the extractor for the named engine, fitz or pure
func NewTextExtractor(name string) (TextExtractor, error) {
	switch name {
	case "", "fitz":
		return FitzExtractor{}, nil
	case "pure":
		return PureExtractor{}, nil
	}
	return nil, fmt.Errorf("unknown pdf engine %q", name)
}

func appendPage(pages []string, text string) []string {
	text = strings.TrimSpace(text)
	if text == "" {
		return pages
	}
	return append(pages, text)
}
