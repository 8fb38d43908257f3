package scanning

import (
	"context"
	"fmt"
	"image"
	"log/slog"
	"time"

	"github.com/zombor/card-assistant/internal/extraction"
)

// DefaultMaxWidth is the widest image handed to the OCR engine
const DefaultMaxWidth = 1200

// Engine turns a prepared card image into text
type Engine interface {
	// Name identifies the engine in logs
	Name() string
	// Recognize runs OCR on the image and returns the raw text
	Recognize(ctx context.Context, img image.Image) (string, error)
	// Close releases any resources held by the engine
	Close() error
}

// CardScanner defines the interface for business card scanning
type CardScanner interface {
	// ScanCard OCRs a card image or PDF and extracts its fields
	ScanCard(ctx context.Context, data []byte, contentType string) (*extraction.Result, error)
	// Close closes the scanner and releases resources
	Close() error
}

// TimeSource provides the current time
type TimeSource interface {
	Now() time.Time
}

type systemTime struct{}

func (systemTime) Now() time.Time { return time.Now() }

// Scanner runs the full card pipeline: decode, preprocess, OCR, extract
type Scanner struct {
	engine   Engine
	maxWidth int
	clock    TimeSource
}

// NewScanner creates a Scanner backed by the given OCR engine
func NewScanner(engine Engine, maxWidth int) *Scanner {
	return NewScannerWithClock(engine, maxWidth, systemTime{})
}

// NewScannerWithClock creates a Scanner with an injected time source
func NewScannerWithClock(engine Engine, maxWidth int, clock TimeSource) *Scanner {
	if maxWidth <= 0 {
		maxWidth = DefaultMaxWidth
	}
	return &Scanner{engine: engine, maxWidth: maxWidth, clock: clock}
}

// ScanCard never returns a nil result. When any stage fails the result holds
// the failure record, stamped with the current time, alongside the error.
func (s *Scanner) ScanCard(ctx context.Context, data []byte, contentType string) (*extraction.Result, error) {
	now := s.clock.Now()

	img, err := decodeImage(data, contentType)
	if err != nil {
		return s.failed(now), fmt.Errorf("decoding card image: %w", err)
	}

	img = prepareImage(img, s.maxWidth)

	text, err := s.engine.Recognize(ctx, img)
	if err != nil {
		return s.failed(now), fmt.Errorf("running %s ocr: %w", s.engine.Name(), err)
	}
	slog.Debug("OCR complete", "engine", s.engine.Name(), "chars", len(text))

	result, err := extraction.Extract(text)
	result.Record.Timestamp = now
	if err != nil {
		return result, fmt.Errorf("extracting fields: %w", err)
	}

	return result, nil
}

// Close closes the underlying engine
func (s *Scanner) Close() error {
	return s.engine.Close()
}

func (s *Scanner) failed(now time.Time) *extraction.Result {
	r := extraction.FailedRecord()
	r.Timestamp = now
	return &extraction.Result{Record: r}
}
