package assistant

import (
	"time"

	"github.com/zombor/card-assistant/internal/extraction"
)

// Card sources
const (
	SourceRules = "rules"
	SourceLLM   = "llm"
)

// Conversation categories
const (
	CategoryCard     = "card"
	CategoryDocument = "document"
	CategoryChat     = "chat"
)

// Card is a scanned business card and the file it came from
type Card struct {
	ID string `json:"id"`
	extraction.Record
	Filename    string `json:"filename"`
	ContentType string `json:"content_type"`
	Source      string `json:"source"`
	DuplicateOf string `json:"duplicate_of,omitempty"`
}

// Document is an uploaded PDF with its extracted text and the overlapping
// word chunks used as question context
type Document struct {
	ID         string    `json:"id"`
	Name       string    `json:"name"`
	Pages      int       `json:"pages"`
	Size       int       `json:"size"`
	Text       string    `json:"text"`
	Chunks     []string  `json:"chunks"`
	UploadedAt time.Time `json:"uploaded_at"`
}

// DocumentSummary is a Document without its text
type DocumentSummary struct {
	ID         string    `json:"id"`
	Name       string    `json:"name"`
	Pages      int       `json:"pages"`
	Size       int       `json:"size"`
	ChunkCount int       `json:"chunk_count"`
	UploadedAt time.Time `json:"uploaded_at"`
}

// Summary drops the chunks for listings
func (d *Document) Summary() DocumentSummary {
	return DocumentSummary{
		ID:         d.ID,
		Name:       d.Name,
		Pages:      d.Pages,
		Size:       d.Size,
		ChunkCount: len(d.Chunks),
		UploadedAt: d.UploadedAt,
	}
}

// SearchResult is the first match of a query inside one document. Position
// counts characters from the start of the text.
type SearchResult struct {
	DocumentID   string `json:"document_id"`
	DocumentName string `json:"document_name"`
	Position     int    `json:"position"`
	Context      string `json:"context"`
}

// ConversationEntry is one question and answer in the log
type ConversationEntry struct {
	ID        string    `json:"id"`
	Question  string    `json:"question"`
	Answer    string    `json:"answer"`
	Provider  string    `json:"provider,omitempty"`
	Category  string    `json:"category"`
	Context   string    `json:"context,omitempty"`
	Quality   Quality   `json:"quality"`
	Timestamp time.Time `json:"timestamp"`
}

// Stats counts what the assistant holds
type Stats struct {
	Cards         int      `json:"cards"`
	Documents     int      `json:"documents"`
	Chunks        int      `json:"chunks"`
	Conversations int      `json:"conversations"`
	Providers     []string `json:"providers"`
}
