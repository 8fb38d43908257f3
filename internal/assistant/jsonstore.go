package assistant

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"slices"
	"sync"
)

// File names used by JSONStore
const (
	CardsFile         = "business_cards.json"
	DocumentsFile     = "documents.json"
	ConversationsFile = "conversation_history.json"
)

// JSONStore implements DB as three human-readable JSON files in one
// directory. Every mutation rewrites the whole affected file.
type JSONStore struct {
	dir string

	mu            sync.Mutex
	cards         []*Card
	documents     []*Document
	conversations []*ConversationEntry
}

// NewJSONStore loads any existing files from dir. Missing files start empty.
func NewJSONStore(dir string) (*JSONStore, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("creating data directory: %w", err)
	}

	s := &JSONStore{dir: dir}
	if err := s.load(CardsFile, &s.cards); err != nil {
		return nil, err
	}
	if err := s.load(DocumentsFile, &s.documents); err != nil {
		return nil, err
	}
	if err := s.load(ConversationsFile, &s.conversations); err != nil {
		return nil, err
	}
	return s, nil
}

func (s *JSONStore) SaveCard(card *Card) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	next := upsert(s.cards, card, func(c *Card) bool { return c.ID == card.ID })
	if err := s.write(CardsFile, next); err != nil {
		return err
	}
	s.cards = next
	return nil
}

func (s *JSONStore) GetCard(id string) (*Card, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	i := slices.IndexFunc(s.cards, func(c *Card) bool { return c.ID == id })
	if i < 0 {
		return nil, fmt.Errorf("card %s: %w", id, ErrNotFound)
	}
	c := *s.cards[i]
	return &c, nil
}

func (s *JSONStore) ListCards() ([]*Card, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]*Card, len(s.cards))
	for i, c := range s.cards {
		cp := *c
		out[i] = &cp
	}
	return out, nil
}

func (s *JSONStore) DeleteCard(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	next, ok := remove(s.cards, func(c *Card) bool { return c.ID == id })
	if !ok {
		return fmt.Errorf("card %s: %w", id, ErrNotFound)
	}
	if err := s.write(CardsFile, next); err != nil {
		return err
	}
	s.cards = next
	return nil
}

func (s *JSONStore) SaveDocument(doc *Document) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	next := upsert(s.documents, doc, func(d *Document) bool { return d.ID == doc.ID })
	if err := s.write(DocumentsFile, next); err != nil {
		return err
	}
	s.documents = next
	return nil
}

func (s *JSONStore) GetDocument(id string) (*Document, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	i := slices.IndexFunc(s.documents, func(d *Document) bool { return d.ID == id })
	if i < 0 {
		return nil, fmt.Errorf("document %s: %w", id, ErrNotFound)
	}
	d := *s.documents[i]
	return &d, nil
}

func (s *JSONStore) ListDocuments() ([]*Document, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]*Document, len(s.documents))
	for i, d := range s.documents {
		cp := *d
		out[i] = &cp
	}
	return out, nil
}

func (s *JSONStore) DeleteDocument(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	next, ok := remove(s.documents, func(d *Document) bool { return d.ID == id })
	if !ok {
		return fmt.Errorf("document %s: %w", id, ErrNotFound)
	}
	if err := s.write(DocumentsFile, next); err != nil {
		return err
	}
	s.documents = next
	return nil
}

func (s *JSONStore) AppendConversation(entry *ConversationEntry) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	next := append(slices.Clip(s.conversations), entry)
	if err := s.write(ConversationsFile, next); err != nil {
		return err
	}
	s.conversations = next
	return nil
}

func (s *JSONStore) ListConversations() ([]*ConversationEntry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	return slices.Clone(s.conversations), nil
}

func (s *JSONStore) ClearConversations() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.write(ConversationsFile, []*ConversationEntry{}); err != nil {
		return err
	}
	s.conversations = nil
	return nil
}

// Close is a no-op; every mutation is already on disk
func (s *JSONStore) Close() error {
	return nil
}

func (s *JSONStore) load(name string, v any) error {
	data, err := os.ReadFile(filepath.Join(s.dir, name))
	if errors.Is(err, fs.ErrNotExist) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("reading %s: %w", name, err)
	}
	if len(bytes.TrimSpace(data)) == 0 {
		return nil
	}
	if err := json.Unmarshal(data, v); err != nil {
		return fmt.Errorf("parsing %s: %w", name, err)
	}
	return nil
}

// write replaces the file through a temp file and rename. Non-ASCII text is
// written as-is.
func (s *JSONStore) write(name string, v any) error {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	enc.SetIndent("", "  ")
	if err := enc.Encode(v); err != nil {
		return fmt.Errorf("encoding %s: %w", name, err)
	}

	path := filepath.Join(s.dir, name)
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, buf.Bytes(), 0644); err != nil {
		return fmt.Errorf("writing %s: %w", name, err)
	}
	if err := os.Rename(tmp, path); err != nil {
		return fmt.Errorf("replacing %s: %w", name, err)
	}
	return nil
}

func upsert[T any](items []*T, item *T, match func(*T) bool) []*T {
	next := slices.Clone(items)
	if i := slices.IndexFunc(next, match); i >= 0 {
		next[i] = item
		return next
	}
	return append(next, item)
}

func remove[T any](items []*T, match func(*T) bool) ([]*T, bool) {
	i := slices.IndexFunc(items, match)
	if i < 0 {
		return items, false
	}
	return slices.Delete(slices.Clone(items), i, i+1), true
}
