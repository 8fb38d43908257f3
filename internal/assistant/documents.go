package assistant

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"strings"
	"time"
	"unicode"
)

// Chunking and context selection limits
const (
	ChunkSize      = 200
	ChunkOverlap   = 50
	scannedChunks  = 5
	selectedChunks = 3
)

// SearchContext is how many characters are kept on each side of a match
const SearchContext = 100

var (
	// ErrEmptyDocument is returned for PDFs with no extractable text
	ErrEmptyDocument = errors.New("no text found in document")
	// ErrEmptyQuery is returned when a search has no keyword
	ErrEmptyQuery = errors.New("search query is required")
)

// AddDocument extracts, chunks and saves an uploaded PDF
func (s *Service) AddDocument(ctx context.Context, name string, data []byte) (*Document, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	text, err := s.pdf.ExtractText(data)
	if err != nil {
		return nil, fmt.Errorf("extracting text: %w", err)
	}
	if strings.TrimSpace(text.Text) == "" {
		return nil, ErrEmptyDocument
	}

	doc := &Document{
		ID:         s.idGenerator.Generate(),
		Name:       name,
		Pages:      text.Pages,
		Size:       len(data),
		Text:       text.Text,
		Chunks:     ChunkText(text.Text, ChunkSize, ChunkOverlap),
		UploadedAt: s.timeSource.Now(),
	}

	if err := s.db.SaveDocument(doc); err != nil {
		return nil, fmt.Errorf("saving document: %w", err)
	}
	return doc, nil
}

// ListDocuments returns all documents, newest first
func (s *Service) ListDocuments() ([]*Document, error) {
	docs, err := s.db.ListDocuments()
	if err != nil {
		return nil, fmt.Errorf("listing documents: %w", err)
	}
	newestFirst(docs, func(d *Document) time.Time { return d.UploadedAt })
	return docs, nil
}

// GetDocument retrieves a document with its full text
func (s *Service) GetDocument(id string) (*Document, error) {
	doc, err := s.db.GetDocument(id)
	if err != nil {
		return nil, fmt.Errorf("getting document: %w", err)
	}
	return doc, nil
}

// SearchDocuments finds the first case-insensitive occurrence of query in
// every document, newest document first
func (s *Service) SearchDocuments(query string) ([]SearchResult, error) {
	if strings.TrimSpace(query) == "" {
		return nil, ErrEmptyQuery
	}

	docs, err := s.ListDocuments()
	if err != nil {
		return nil, err
	}

	results := make([]SearchResult, 0)
	for _, doc := range docs {
		pos, snippet, ok := findInText(doc.Text, query, SearchContext)
		if !ok {
			continue
		}
		results = append(results, SearchResult{
			DocumentID:   doc.ID,
			DocumentName: doc.Name,
			Position:     pos,
			Context:      snippet,
		})
	}
	return results, nil
}

// findInText returns the rune offset of the first case-insensitive match and
// the text around it, padded by up to width runes on each side
func findInText(text, query string, width int) (int, string, bool) {
	runes := []rune(text)
	needle := []rune(query)
	if len(needle) == 0 || len(needle) > len(runes) {
		return 0, "", false
	}

	haystack := lowerRunes(runes)
	needle = lowerRunes(needle)
	for i := 0; i+len(needle) <= len(haystack); i++ {
		if slices.Equal(haystack[i:i+len(needle)], needle) {
			start := max(0, i-width)
			end := min(len(runes), i+len(needle)+width)
			return i, string(runes[start:end]), true
		}
	}
	return 0, "", false
}

// lowerRunes lowercases rune by rune so offsets line up with the original
func lowerRunes(runes []rune) []rune {
	out := make([]rune, len(runes))
	for i, r := range runes {
		out[i] = unicode.ToLower(r)
	}
	return out
}

// DeleteDocument removes a document
func (s *Service) DeleteDocument(id string) error {
	if err := s.db.DeleteDocument(id); err != nil {
		return fmt.Errorf("deleting document: %w", err)
	}
	return nil
}

// ChunkText splits text into windows of size words, each starting
// size-overlap words after the previous one
func ChunkText(text string, size, overlap int) []string {
	words := strings.Fields(text)
	step := size - overlap
	if size <= 0 || step <= 0 {
		return nil
	}

	var chunks []string
	for start := 0; start < len(words); start += step {
		end := min(start+size, len(words))
		chunks = append(chunks, strings.Join(words[start:end], " "))
	}
	return chunks
}

// selectContext keeps up to three of the first five chunks that share a word
// with the question, falling back to the first chunk
func selectContext(question string, chunks []string) string {
	if len(chunks) == 0 {
		return ""
	}

	qWords := wordSet(strings.Fields(strings.ToLower(question)))
	var best []string
	for _, chunk := range chunks[:min(scannedChunks, len(chunks))] {
		if overlaps(qWords, strings.Fields(strings.ToLower(chunk))) {
			best = append(best, chunk)
		}
	}

	if len(best) == 0 {
		return chunks[0]
	}
	return strings.Join(best[:min(selectedChunks, len(best))], "\n\n")
}

func wordSet(words []string) map[string]struct{} {
	set := make(map[string]struct{}, len(words))
	for _, w := range words {
		set[w] = struct{}{}
	}
	return set
}

func overlaps(set map[string]struct{}, words []string) bool {
	for _, w := range words {
		if _, ok := set[w]; ok {
			return true
		}
	}
	return false
}
