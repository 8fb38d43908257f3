package assistant

import (
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"path/filepath"
	"strings"

	"github.com/go-chi/chi/v5"
)

// maxUploadSize bounds card photos and PDFs
const maxUploadSize = int64(50 << 20)

const fileTooLarge = "File is too large. Maximum size is 50MB. Please compress or resize your image."

// writeJSON encodes v with the given status
func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(code)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("Error encoding response", "error", err)
	}
}

// jsonError writes an {"error": message} body
func jsonError(w http.ResponseWriter, message string, code int) {
	writeJSON(w, code, map[string]string{"error": message})
}

// statusFor maps service errors to HTTP status codes
func statusFor(err error) int {
	switch {
	case errors.Is(err, ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, ErrEmptyQuestion), errors.Is(err, ErrEmptyDocument), errors.Is(err, ErrEmptyQuery):
		return http.StatusBadRequest
	}
	return http.StatusInternalServerError
}

// readUpload pulls the "file" part out of a multipart form and resolves its
// content type. It writes the error response itself and reports ok=false.
func readUpload(w http.ResponseWriter, r *http.Request) (name string, data []byte, contentType string, ok bool) {
	r.Body = http.MaxBytesReader(w, r.Body, maxUploadSize)
	if err := r.ParseMultipartForm(maxUploadSize); err != nil {
		slog.Error("Error parsing multipart form", "error", err)
		errorMsg := "Error parsing form"
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			errorMsg = fileTooLarge
		}
		jsonError(w, errorMsg, http.StatusBadRequest)
		return "", nil, "", false
	}

	f, header, err := r.FormFile("file")
	if err != nil {
		slog.Error("Error getting file from form", "error", err)
		errorMsg := "No file provided"
		if errors.Is(err, http.ErrMissingFile) {
			errorMsg = "No file was selected. Please choose a file to upload."
		}
		jsonError(w, errorMsg, http.StatusBadRequest)
		return "", nil, "", false
	}
	defer f.Close()

	if header.Size > maxUploadSize {
		jsonError(w, fileTooLarge, http.StatusBadRequest)
		return "", nil, "", false
	}

	data, err = io.ReadAll(f)
	if err != nil {
		slog.Error("Error reading file data", "error", err, "filename", header.Filename)
		jsonError(w, "Error reading file. Please try again.", http.StatusInternalServerError)
		return "", nil, "", false
	}

	return header.Filename, data, uploadContentType(header.Header.Get("Content-Type"), header.Filename), true
}

// uploadContentType falls back to the file extension when the browser sent
// no type, which phones often do for HEIC
func uploadContentType(declared, filename string) string {
	contentType := strings.ToLower(strings.TrimSpace(declared))
	if contentType != "" && contentType != "application/octet-stream" {
		return contentType
	}
	switch strings.ToLower(filepath.Ext(filename)) {
	case ".jpg", ".jpeg":
		return "image/jpeg"
	case ".png":
		return "image/png"
	case ".gif":
		return "image/gif"
	case ".pdf":
		return "application/pdf"
	case ".heic":
		return "image/heic"
	case ".heif":
		return "image/heif"
	}
	return "application/octet-stream"
}

// handleHealth reports liveness
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// handleIndex serves the HTML interface
func (s *Server) handleIndex(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.Write(indexHTML)
}

// handleStaticCSS serves the CSS file
func (s *Server) handleStaticCSS(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/css; charset=utf-8")
	w.Write(appCSS)
}

// handleStaticJS serves the JavaScript file
func (s *Server) handleStaticJS(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/javascript; charset=utf-8")
	w.Write(appJS)
}

// handleListCards returns all cards
func (s *Server) handleListCards(w http.ResponseWriter, r *http.Request) {
	cards, err := s.service.ListCards()
	if err != nil {
		slog.Error("Error listing cards", "error", err)
		jsonError(w, "Internal server error", http.StatusInternalServerError)
		return
	}
	if cards == nil {
		cards = []*Card{}
	}
	writeJSON(w, http.StatusOK, cards)
}

// handleUploadCard scans an uploaded card photo
func (s *Server) handleUploadCard(w http.ResponseWriter, r *http.Request) {
	name, data, contentType, ok := readUpload(w, r)
	if !ok {
		return
	}

	card, err := s.service.ProcessCard(r.Context(), name, data, contentType)
	if err != nil {
		slog.Error("Error processing card", "filename", name, "error", err)
		if errors.Is(err, ErrScanFailed) {
			writeJSON(w, http.StatusUnprocessableEntity, map[string]any{
				"error": err.Error(),
				"card":  card,
			})
			return
		}
		jsonError(w, err.Error(), http.StatusInternalServerError)
		return
	}

	writeJSON(w, http.StatusCreated, card)
}

// handleGetCard returns a single card
func (s *Server) handleGetCard(w http.ResponseWriter, r *http.Request) {
	card, err := s.service.GetCard(chi.URLParam(r, "id"))
	if err != nil {
		jsonError(w, "Card not found", statusFor(err))
		return
	}
	writeJSON(w, http.StatusOK, card)
}

// handleDeleteCard deletes a card and its file
func (s *Server) handleDeleteCard(w http.ResponseWriter, r *http.Request) {
	if err := s.service.DeleteCard(chi.URLParam(r, "id")); err != nil {
		slog.Error("Error deleting card", "error", err)
		jsonError(w, "Error deleting card", statusFor(err))
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// handleGetCardFile returns the original upload
func (s *Server) handleGetCardFile(w http.ResponseWriter, r *http.Request) {
	data, contentType, err := s.service.GetCardFile(chi.URLParam(r, "id"))
	if err != nil {
		jsonError(w, "File not found", http.StatusNotFound)
		return
	}
	w.Header().Set("Content-Type", contentType)
	w.Write(data)
}

// handleGetCardVCard returns the card as a downloadable contact
func (s *Server) handleGetCardVCard(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	vcard, err := s.service.CardVCard(id)
	if err != nil {
		jsonError(w, "Card not found", statusFor(err))
		return
	}
	w.Header().Set("Content-Type", "text/vcard; charset=utf-8")
	w.Header().Set("Content-Disposition", `attachment; filename="`+id+`.vcf"`)
	io.WriteString(w, vcard)
}

// handleGetCardQRCode returns the card's vCard as a QR code image
func (s *Server) handleGetCardQRCode(w http.ResponseWriter, r *http.Request) {
	png, err := s.service.CardQRCode(chi.URLParam(r, "id"))
	if err != nil {
		slog.Error("Error generating QR code", "error", err)
		jsonError(w, "Could not generate QR code", statusFor(err))
		return
	}
	w.Header().Set("Content-Type", "image/png")
	w.Write(png)
}

// handleListDocuments returns document summaries without their chunks
func (s *Server) handleListDocuments(w http.ResponseWriter, r *http.Request) {
	docs, err := s.service.ListDocuments()
	if err != nil {
		slog.Error("Error listing documents", "error", err)
		jsonError(w, "Internal server error", http.StatusInternalServerError)
		return
	}
	summaries := make([]DocumentSummary, 0, len(docs))
	for _, d := range docs {
		summaries = append(summaries, d.Summary())
	}
	writeJSON(w, http.StatusOK, summaries)
}

// handleUploadDocument extracts and stores a PDF
func (s *Server) handleUploadDocument(w http.ResponseWriter, r *http.Request) {
	name, data, _, ok := readUpload(w, r)
	if !ok {
		return
	}

	doc, err := s.service.AddDocument(r.Context(), name, data)
	if err != nil {
		slog.Error("Error adding document", "filename", name, "error", err)
		code := statusFor(err)
		if code == http.StatusInternalServerError {
			code = http.StatusUnprocessableEntity
		}
		jsonError(w, err.Error(), code)
		return
	}
	writeJSON(w, http.StatusCreated, doc.Summary())
}

// handleGetDocument returns a document with its text
func (s *Server) handleGetDocument(w http.ResponseWriter, r *http.Request) {
	doc, err := s.service.GetDocument(chi.URLParam(r, "id"))
	if err != nil {
		jsonError(w, "Document not found", statusFor(err))
		return
	}
	writeJSON(w, http.StatusOK, doc)
}

// handleSearchDocuments searches every document for the q parameter
func (s *Server) handleSearchDocuments(w http.ResponseWriter, r *http.Request) {
	results, err := s.service.SearchDocuments(r.URL.Query().Get("q"))
	if err != nil {
		slog.Error("Error searching documents", "error", err)
		jsonError(w, err.Error(), statusFor(err))
		return
	}
	writeJSON(w, http.StatusOK, results)
}

// handleDeleteDocument deletes a document
func (s *Server) handleDeleteDocument(w http.ResponseWriter, r *http.Request) {
	if err := s.service.DeleteDocument(chi.URLParam(r, "id")); err != nil {
		slog.Error("Error deleting document", "error", err)
		jsonError(w, "Error deleting document", statusFor(err))
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// handleAsk answers a question about a card, documents or nothing at all
func (s *Server) handleAsk(w http.ResponseWriter, r *http.Request) {
	var req AskRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		jsonError(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	entry, err := s.service.Ask(r.Context(), req)
	if err != nil {
		slog.Error("Error answering question", "error", err)
		jsonError(w, err.Error(), statusFor(err))
		return
	}
	writeJSON(w, http.StatusOK, entry)
}

// handleListConversations returns the conversation log, newest first
func (s *Server) handleListConversations(w http.ResponseWriter, r *http.Request) {
	entries, err := s.service.Conversations()
	if err != nil {
		slog.Error("Error listing conversations", "error", err)
		jsonError(w, "Internal server error", http.StatusInternalServerError)
		return
	}
	if entries == nil {
		entries = []*ConversationEntry{}
	}
	writeJSON(w, http.StatusOK, entries)
}

// handleClearConversations empties the conversation log
func (s *Server) handleClearConversations(w http.ResponseWriter, r *http.Request) {
	if err := s.service.ClearConversations(); err != nil {
		slog.Error("Error clearing conversations", "error", err)
		jsonError(w, "Internal server error", http.StatusInternalServerError)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// handleStats returns collection counts and the configured providers
func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	stats, err := s.service.Stats()
	if err != nil {
		slog.Error("Error computing stats", "error", err)
		jsonError(w, "Internal server error", http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, stats)
}
