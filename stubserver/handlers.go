package stubserver

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"docassistant/models"

	"go.uber.org/zap"
)

const chunkSize = 1024

var (
	pageMarker  = []byte("/Type /Page")
	pagesMarker = []byte("/Type /Pages")
)

// indexHandler lists the available endpoints
func (s *Server) indexHandler(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(http.StatusOK)

	fmt.Fprint(w, `<!DOCTYPE html>
<html>
<head><title>Document assistant stub backend</title></head>
<body>
	<h1>Document assistant stub backend</h1>
	<ul>
		<li><strong>POST /process-document</strong> - multipart field "file" (PDF)</li>
		<li><strong>POST /process-message</strong> - {"userMessage": "..."}</li>
		<li><strong>POST /clear-history</strong> - drop chat history</li>
		<li><strong>GET /status</strong> - stub state</li>
		<li><strong>GET /health</strong> - health check</li>
	</ul>
</body>
</html>`)
}

// healthHandler provides a health check endpoint
func (s *Server) healthHandler(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, models.HealthResponse{Status: models.StatusHealthy})
}

// statusHandler reports what the stub currently holds
func (s *Server) statusHandler(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	status := map[string]interface{}{
		"mode":            "stub",
		"document_loaded": s.document != nil,
		"history_length":  len(s.history),
	}
	if s.document != nil {
		status["document"] = s.document.name
		status["pages"] = s.document.pages
		status["chunks"] = s.document.chunks
		status["loaded_at"] = s.document.loadedAt.UTC().Format(time.RFC3339)
	}
	s.mu.Unlock()

	writeJSON(w, http.StatusOK, status)
}

// processMessageHandler answers a question about the loaded document
func (s *Server) processMessageHandler(w http.ResponseWriter, r *http.Request) {
	var req struct {
		UserMessage *string `json:"userMessage"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.UserMessage == nil {
		writeJSON(w, http.StatusBadRequest, models.ProcessMessageResponse{Error: "Missing userMessage"})
		return
	}

	message := strings.TrimSpace(*req.UserMessage)
	if message == "" {
		writeJSON(w, http.StatusBadRequest, models.ProcessMessageResponse{Error: "Message cannot be empty"})
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.document == nil {
		writeJSON(w, http.StatusOK, models.ProcessMessageResponse{
			BotResponse: "No document loaded. Please upload a PDF first.",
		})
		return
	}

	answer := fmt.Sprintf("This is a stub answer about %q from '%s' (%d pages). Connect a real backend for retrieval.",
		message, s.document.name, s.document.pages)

	now := time.Now()
	s.history = append(s.history,
		models.ChatMessage{Role: "user", Content: message, Timestamp: now},
		models.ChatMessage{Role: "assistant", Content: answer, Timestamp: now},
	)

	s.logger.Debug("answered message", zap.Int("history", len(s.history)))
	writeJSON(w, http.StatusOK, models.ProcessMessageResponse{BotResponse: answer})
}

// processDocumentHandler accepts a PDF upload
func (s *Server) processDocumentHandler(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, MaxUploadBytes)

	file, header, err := r.FormFile("file")
	var tooLarge *http.MaxBytesError
	if errors.As(err, &tooLarge) {
		writeJSON(w, http.StatusRequestEntityTooLarge, models.ProcessDocumentResponse{
			BotResponse: fmt.Sprintf("File is too large. The limit is %d MiB.", tooLarge.Limit>>20),
		})
		return
	}
	if err != nil {
		writeJSON(w, http.StatusBadRequest, models.ProcessDocumentResponse{BotResponse: "No file uploaded."})
		return
	}
	defer file.Close()

	if header.Filename == "" {
		writeJSON(w, http.StatusBadRequest, models.ProcessDocumentResponse{BotResponse: "No file selected."})
		return
	}
	if !strings.HasSuffix(strings.ToLower(header.Filename), ".pdf") {
		writeJSON(w, http.StatusBadRequest, models.ProcessDocumentResponse{BotResponse: "Only PDF files are supported."})
		return
	}

	data, err := io.ReadAll(file)
	if err != nil {
		s.logger.Error("failed to read upload", zap.Error(err))
		writeJSON(w, http.StatusInternalServerError, models.ProcessDocumentResponse{
			BotResponse: fmt.Sprintf("Error: %v", err),
		})
		return
	}

	doc := &loadedDocument{
		name:     header.Filename,
		pages:    countPages(data),
		chunks:   (len(data) + chunkSize - 1) / chunkSize,
		loadedAt: time.Now(),
	}

	s.mu.Lock()
	s.document = doc
	s.history = nil
	s.mu.Unlock()

	s.logger.Info("document loaded",
		zap.String("file", doc.name),
		zap.Int("pages", doc.pages),
		zap.Int("bytes", len(data)))

	writeJSON(w, http.StatusOK, models.ProcessDocumentResponse{
		BotResponse: fmt.Sprintf("Processed '%s' (%d pages, %d chunks). You can now ask questions!",
			doc.name, doc.pages, doc.chunks),
	})
}

// clearHistoryHandler drops the chat history but keeps the document
func (s *Server) clearHistoryHandler(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	s.history = nil
	s.mu.Unlock()

	writeJSON(w, http.StatusOK, models.ClearHistoryResponse{Status: models.StatusCleared})
}

// countPages counts page objects in a PDF body; anything unparseable counts as one page
func countPages(data []byte) int {
	pages := bytes.Count(data, pageMarker) - bytes.Count(data, pagesMarker)
	if pages < 1 {
		return 1
	}
	return pages
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}
