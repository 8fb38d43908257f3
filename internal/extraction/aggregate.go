package extraction

import (
	"errors"
	"strings"
	"unicode/utf8"

	"golang.org/x/text/unicode/norm"
)

// ErrInvalidText is returned when OCR output is not valid UTF-8
var ErrInvalidText = errors.New("ocr text is not valid utf-8")

// Result is the outcome of extracting one card
type Result struct {
	Record      *Record      `json:"record"`
	Labels      []LineLabel  `json:"labels,omitempty"`
	Corrections []Correction `json:"corrections,omitempty"`
}

// SplitLines normalizes OCR text and returns its trimmed, non-empty lines.
// NFKC composes decomposed Hangul jamo and folds full-width digits, both of
// which Tesseract emits for Korean cards.
func SplitLines(text string) []string {
	text = norm.NFKC.String(text)
	raw := strings.Split(text, "\n")
	lines := make([]string, 0, len(raw))
	for _, line := range raw {
		line = strings.TrimSpace(line)
		if line != "" {
			lines = append(lines, line)
		}
	}
	return lines
}

// Assign classifies every line in order and fills each field with the first
// label that targets it. Labels for fields that were already filled are
// returned unaccepted.
func Assign(lines []string) (*Record, []LineLabel) {
	record := NewRecord("")
	labels := make([]LineLabel, 0, len(lines))
	for i, line := range lines {
		label, ok := Classify(line)
		if !ok {
			continue
		}
		label.Line = i + 1
		if record.Get(label.Field) == NotFound {
			record.Set(label.Field, label.Value)
			label.Accepted = true
		}
		labels = append(labels, label)
	}
	return record, labels
}

// Extract runs both passes over raw OCR text: line assignment, then the
// corrective normalization. On failure the returned result carries
// FailedRecord so callers always have something to show.
func Extract(text string) (*Result, error) {
	if !utf8.ValidString(text) {
		return &Result{Record: FailedRecord()}, ErrInvalidText
	}

	record, labels := Assign(SplitLines(text))
	record.RawText = text
	corrections := Normalize(record)

	return &Result{
		Record:      record,
		Labels:      labels,
		Corrections: corrections,
	}, nil
}
