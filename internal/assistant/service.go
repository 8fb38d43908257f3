package assistant

import (
	"cmp"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"
	"regexp"
	"slices"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/zombor/card-assistant/internal/extraction"
	"github.com/zombor/card-assistant/internal/llm"
	"github.com/zombor/card-assistant/internal/scanning"
)

// Card parser modes
const (
	ParserRules = "rules"
	ParserLLM   = "llm"
)

// ErrScanFailed marks a card upload whose text could not be extracted
var ErrScanFailed = errors.New("card extraction failed")

// IDGenerator generates unique IDs for cards, documents and conversation entries
type IDGenerator interface {
	Generate() string
}

// TimeSource provides the current time
type TimeSource interface {
	Now() time.Time
}

// Responder answers prompts, falling back across providers
type Responder interface {
	Respond(ctx context.Context, prompt string) llm.Reply
	Generate(ctx context.Context, prompt string) (string, error)
	Providers() []string
}

type uuidGenerator struct{}

func (uuidGenerator) Generate() string {
	return uuid.NewString()
}

type systemTime struct{}

func (systemTime) Now() time.Time {
	return time.Now()
}

// Service holds the application state: stores, scanner and LLM chain
type Service struct {
	db          DB
	scanner     scanning.CardScanner
	storage     Storage
	pdf         scanning.TextExtractor
	responder   Responder
	idGenerator IDGenerator
	timeSource  TimeSource
	parser      string
}

// NewService creates a new Service with UUID ids and the system clock
func NewService(db DB, scanner scanning.CardScanner, storage Storage, pdf scanning.TextExtractor, responder Responder) *Service {
	return NewServiceWithDeps(db, scanner, storage, pdf, responder, uuidGenerator{}, systemTime{})
}

// NewServiceWithDeps creates a new Service with custom dependencies for testing
func NewServiceWithDeps(db DB, scanner scanning.CardScanner, storage Storage, pdf scanning.TextExtractor, responder Responder, idGen IDGenerator, timeSrc TimeSource) *Service {
	return &Service{
		db:          db,
		scanner:     scanner,
		storage:     storage,
		pdf:         pdf,
		responder:   responder,
		idGenerator: idGen,
		timeSource:  timeSrc,
		parser:      ParserRules,
	}
}

// SetCardParser chooses between the rule extractor alone and rules refined by the LLM
func (s *Service) SetCardParser(parser string) error {
	switch parser {
	case ParserRules, ParserLLM:
		s.parser = parser
		return nil
	}
	return fmt.Errorf("unknown card parser %q", parser)
}

var (
	filenameUnsafe = regexp.MustCompile(`[^\p{L}\p{N}\s\-_]`)
	spaceRun       = regexp.MustCompile(`\s+`)
)

// sanitizeFilename strips punctuation and truncates long phone camera names.
// Hangul is kept since most cards here are Korean.
func sanitizeFilename(filename string) string {
	ext := strings.ToLower(filepath.Ext(filename))
	base := strings.TrimSuffix(filepath.Base(filename), filepath.Ext(filename))

	base = filenameUnsafe.ReplaceAllString(base, "")
	base = strings.TrimSpace(spaceRun.ReplaceAllString(base, " "))

	if r := []rune(base); len(r) > 50 {
		base = string(r[:50])
	}
	if base == "" {
		base = "card"
	}
	return base + ext
}

// ProcessCard stores the upload, extracts the card and saves it. When
// extraction fails nothing is kept and the returned card holds the failure
// record, so callers can still show what happened.
func (s *Service) ProcessCard(ctx context.Context, filename string, data []byte, contentType string) (*Card, error) {
	id := s.idGenerator.Generate()

	savedPath, err := s.storage.Save(fmt.Sprintf("%s_%s", id, sanitizeFilename(filename)), data)
	if err != nil {
		return nil, fmt.Errorf("saving file: %w", err)
	}

	result, err := s.scanner.ScanCard(ctx, data, contentType)
	if err != nil {
		slog.Error("Failed to scan card",
			"filename", filename,
			"content_type", contentType,
			"file_size", len(data),
			"error", err,
		)
		s.cleanup(savedPath)
		card := &Card{ID: id, ContentType: contentType, Source: SourceRules, Record: *extraction.FailedRecord()}
		if result != nil && result.Record.Failed() {
			card.Record = *result.Record
		}
		return card, fmt.Errorf("%w: %w", ErrScanFailed, err)
	}

	card := &Card{
		ID:          id,
		Record:      *result.Record,
		Filename:    savedPath,
		ContentType: contentType,
		Source:      SourceRules,
	}
	if card.Timestamp.IsZero() {
		card.Timestamp = s.timeSource.Now()
	}

	if s.parser == ParserLLM {
		s.refineCard(ctx, card)
	}

	existing, err := s.db.ListCards()
	if err != nil {
		s.cleanup(savedPath)
		return nil, fmt.Errorf("listing cards: %w", err)
	}
	if dup := findDuplicate(card, existing); dup != "" {
		slog.Info("Card looks like a duplicate", "id", id, "duplicate_of", dup)
		card.DuplicateOf = dup
	}

	if err := s.db.SaveCard(card); err != nil {
		s.cleanup(savedPath)
		return nil, fmt.Errorf("saving card to database: %w", err)
	}

	return card, nil
}

func (s *Service) cleanup(path string) {
	if err := s.storage.Delete(path); err != nil {
		slog.Warn("Failed to delete file", "filename", path, "error", err)
	}
}

// GetCard retrieves a card by ID
func (s *Service) GetCard(id string) (*Card, error) {
	card, err := s.db.GetCard(id)
	if err != nil {
		return nil, fmt.Errorf("getting card: %w", err)
	}
	return card, nil
}

// ListCards returns all cards, newest first
func (s *Service) ListCards() ([]*Card, error) {
	cards, err := s.db.ListCards()
	if err != nil {
		return nil, fmt.Errorf("listing cards: %w", err)
	}
	newestFirst(cards, func(c *Card) time.Time { return c.Timestamp })
	return cards, nil
}

// DeleteCard removes a card and its file
func (s *Service) DeleteCard(id string) error {
	card, err := s.db.GetCard(id)
	if err != nil {
		return fmt.Errorf("getting card for deletion: %w", err)
	}

	if card.Filename != "" {
		s.cleanup(card.Filename)
	}

	if err := s.db.DeleteCard(id); err != nil {
		return fmt.Errorf("deleting card from database: %w", err)
	}
	return nil
}

// GetCardFile retrieves the uploaded file for a card
func (s *Service) GetCardFile(id string) ([]byte, string, error) {
	card, err := s.db.GetCard(id)
	if err != nil {
		return nil, "", fmt.Errorf("getting card: %w", err)
	}

	data, err := s.storage.Get(card.Filename)
	if err != nil {
		return nil, "", fmt.Errorf("getting card file: %w", err)
	}

	return data, card.ContentType, nil
}

// Stats counts cards, documents, chunks and conversation entries
func (s *Service) Stats() (*Stats, error) {
	cards, err := s.db.ListCards()
	if err != nil {
		return nil, fmt.Errorf("listing cards: %w", err)
	}
	docs, err := s.db.ListDocuments()
	if err != nil {
		return nil, fmt.Errorf("listing documents: %w", err)
	}
	entries, err := s.db.ListConversations()
	if err != nil {
		return nil, fmt.Errorf("listing conversations: %w", err)
	}

	stats := &Stats{
		Cards:         len(cards),
		Documents:     len(docs),
		Conversations: len(entries),
		Providers:     s.responder.Providers(),
	}
	for _, d := range docs {
		stats.Chunks += len(d.Chunks)
	}
	return stats, nil
}

func newestFirst[T any](items []T, at func(T) time.Time) {
	slices.SortStableFunc(items, func(a, b T) int {
		return cmp.Compare(at(b).UnixNano(), at(a).UnixNano())
	})
}
