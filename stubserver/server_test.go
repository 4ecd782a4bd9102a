package stubserver

import (
	"bytes"
	"context"
	"encoding/json"
	"mime/multipart"
	"net"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"docassistant/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func uploadRequest(t *testing.T, field, filename string, content []byte) *http.Request {
	t.Helper()
	var body bytes.Buffer
	form := multipart.NewWriter(&body)
	part, err := form.CreateFormFile(field, filename)
	require.NoError(t, err)
	_, err = part.Write(content)
	require.NoError(t, err)
	require.NoError(t, form.Close())

	req := httptest.NewRequest(http.MethodPost, "/process-document", &body)
	req.Header.Set("Content-Type", form.FormDataContentType())
	return req
}

func messageRequest(body string) *http.Request {
	req := httptest.NewRequest(http.MethodPost, "/process-message", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	return req
}

func serve(s *Server, req *http.Request) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, req)
	return rec
}

func TestProcessDocument(t *testing.T) {
	s := NewServer("", nil)
	pdf := []byte("%PDF-1.4\n<< /Type /Pages /Count 2 >>\n<< /Type /Page >>\n<< /Type /Page >>\n%%EOF")

	rec := serve(s, uploadRequest(t, "file", "manual.pdf", pdf))
	require.Equal(t, http.StatusOK, rec.Code)

	var resp models.ProcessDocumentResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "Processed 'manual.pdf' (2 pages, 1 chunks). You can now ask questions!", resp.BotResponse)
	assert.Equal(t, "manual.pdf", s.DocumentName())
}

func TestProcessDocumentValidation(t *testing.T) {
	s := NewServer("", nil)

	tests := []struct {
		name string
		req  *http.Request
		want string
	}{
		{"wrong field", uploadRequest(t, "document", "a.pdf", []byte("x")), "No file uploaded."},
		{"not a pdf", uploadRequest(t, "file", "notes.txt", []byte("x")), "Only PDF files are supported."},
		{"no multipart body", httptest.NewRequest(http.MethodPost, "/process-document", nil), "No file uploaded."},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := serve(s, tt.req)
			assert.Equal(t, http.StatusBadRequest, rec.Code)

			var resp models.ProcessDocumentResponse
			require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
			assert.Equal(t, tt.want, resp.Text())
		})
	}
	assert.Empty(t, s.DocumentName())
}

func TestProcessDocumentTooLarge(t *testing.T) {
	s := NewServer("", nil)

	rec := serve(s, uploadRequest(t, "file", "huge.pdf", bytes.Repeat([]byte("x"), MaxUploadBytes+1)))
	assert.Equal(t, http.StatusRequestEntityTooLarge, rec.Code)

	var resp models.ProcessDocumentResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "File is too large. The limit is 16 MiB.", resp.Text())
	assert.Empty(t, s.DocumentName())
}

func TestProcessMessage(t *testing.T) {
	s := NewServer("", nil)

	rec := serve(s, messageRequest(`{"userMessage":"hello"}`))
	require.Equal(t, http.StatusOK, rec.Code)
	var resp models.ProcessMessageResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "No document loaded. Please upload a PDF first.", resp.BotResponse)
	assert.Equal(t, 0, s.HistoryLen())

	serve(s, uploadRequest(t, "file", "a.pdf", []byte("%PDF")))

	rec = serve(s, messageRequest(`{"userMessage":"What is it?"}`))
	require.Equal(t, http.StatusOK, rec.Code)
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Contains(t, resp.BotResponse, "What is it?")
	assert.Contains(t, resp.BotResponse, "'a.pdf' (1 pages)")
	assert.Equal(t, 2, s.HistoryLen())
}

func TestProcessMessageValidation(t *testing.T) {
	s := NewServer("", nil)

	tests := []struct {
		body string
		want string
	}{
		{`{}`, "Missing userMessage"},
		{`not json`, "Missing userMessage"},
		{`{"userMessage":"   "}`, "Message cannot be empty"},
	}

	for _, tt := range tests {
		rec := serve(s, messageRequest(tt.body))
		assert.Equal(t, http.StatusBadRequest, rec.Code, tt.body)

		var resp models.ProcessMessageResponse
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
		assert.Equal(t, tt.want, resp.Error, tt.body)
	}
}

func TestClearHistoryKeepsDocument(t *testing.T) {
	s := NewServer("", nil)
	serve(s, uploadRequest(t, "file", "a.pdf", []byte("%PDF")))
	serve(s, messageRequest(`{"userMessage":"q"}`))
	require.Equal(t, 2, s.HistoryLen())

	rec := serve(s, httptest.NewRequest(http.MethodPost, "/clear-history", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"status":"cleared"}`, rec.Body.String())
	assert.Equal(t, 0, s.HistoryLen())
	assert.Equal(t, "a.pdf", s.DocumentName())
}

func TestHealthStatusAndIndex(t *testing.T) {
	s := NewServer("", nil)

	rec := serve(s, httptest.NewRequest(http.MethodGet, "/health", nil))
	assert.JSONEq(t, `{"status":"healthy"}`, rec.Body.String())

	rec = serve(s, httptest.NewRequest(http.MethodGet, "/status", nil))
	var status map[string]interface{}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &status))
	assert.Equal(t, "stub", status["mode"])
	assert.Equal(t, false, status["document_loaded"])

	rec = serve(s, httptest.NewRequest(http.MethodGet, "/", nil))
	assert.Contains(t, rec.Body.String(), "/process-document")

	rec = serve(s, httptest.NewRequest(http.MethodGet, "/process-message", nil))
	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)
}

func TestCORSPreflight(t *testing.T) {
	s := NewServer("", nil)
	req := httptest.NewRequest(http.MethodOptions, "/process-message", nil)
	req.Header.Set("Origin", "http://localhost:3000")
	req.Header.Set("Access-Control-Request-Method", http.MethodPost)

	rec := serve(s, req)
	assert.Equal(t, "*", rec.Header().Get("Access-Control-Allow-Origin"))
}

func TestCountPages(t *testing.T) {
	assert.Equal(t, 1, countPages([]byte("garbage")))
	assert.Equal(t, 3, countPages([]byte("/Type /Pages /Type /Page /Type /Page /Type /Page")))
}

func TestServeAndShutdown(t *testing.T) {
	l, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)

	s := NewServer("127.0.0.1:0", nil)
	done := make(chan error, 1)
	go func() { done <- s.Serve(l) }()

	url := "http://" + l.Addr().String() + "/health"
	require.Eventually(t, func() bool {
		resp, err := http.Get(url)
		if err != nil {
			return false
		}
		resp.Body.Close()
		return resp.StatusCode == http.StatusOK
	}, 2*time.Second, 20*time.Millisecond)

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	require.NoError(t, s.Shutdown(ctx))
	assert.NoError(t, <-done)
}
