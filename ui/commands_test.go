package ui

import (
	"context"
	"io"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"docassistant/controllers"
	"docassistant/models"
	"docassistant/services"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordingBackend struct {
	mu      sync.Mutex
	uploads map[string]string
}

func (b *recordingBackend) ProcessDocument(ctx context.Context, filename string, r io.Reader) (models.DocumentReply, error) {
	data, _ := io.ReadAll(r)
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.uploads == nil {
		b.uploads = make(map[string]string)
	}
	b.uploads[filename] = string(data)
	return models.DocumentReply{StatusCode: 200, Text: "Loaded " + filename}, nil
}

func (b *recordingBackend) ProcessMessage(ctx context.Context, text string) (models.MessageReply, error) {
	return models.MessageReply{StatusCode: 200, Text: "echo: " + text}, nil
}

func (b *recordingBackend) ClearHistory(ctx context.Context) error { return nil }

func (b *recordingBackend) Status(ctx context.Context) (models.Metadata, error) {
	return models.Metadata{"mode": "test", "document_loaded": false}, nil
}

func TestParseCommand(t *testing.T) {
	tests := []struct {
		line string
		want Command
	}{
		{"What is chapter 2 about?", Command{Kind: CommandSend, Arg: "What is chapter 2 about?"}},
		{"  a / b", Command{Kind: CommandSend, Arg: "  a / b"}},
		{"/upload docs/manual.pdf", Command{Kind: CommandUpload, Arg: "docs/manual.pdf"}},
		{`/upload "my docs/manual.pdf"`, Command{Kind: CommandUpload, Arg: "my docs/manual.pdf"}},
		{"/u  x.pdf ", Command{Kind: CommandUpload, Arg: "x.pdf"}},
		{"/upload", Command{Kind: CommandUpload}},
		{"/RESET", Command{Kind: CommandReset}},
		{"/status", Command{Kind: CommandStatus}},
		{"/help", Command{Kind: CommandHelp}},
		{"/exit", Command{Kind: CommandQuit}},
		{"/frobnicate now", Command{Kind: CommandUnknown, Arg: "/frobnicate"}},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, ParseCommand(tt.line), tt.line)
	}
}

func TestUploadPath(t *testing.T) {
	dir := t.TempDir()
	pdfPath := filepath.Join(dir, "manual.pdf")
	require.NoError(t, os.WriteFile(pdfPath, []byte("%PDF-1.4"), 0o600))

	backend := &recordingBackend{}
	ctrl := controllers.NewSessionController(backend, nil)
	ctrl.Start()
	ctx := context.Background()

	assert.ErrorIs(t, UploadPath(ctx, ctrl, filepath.Join(dir, "missing.txt")), services.ErrNotPDF)
	assert.Error(t, UploadPath(ctx, ctrl, filepath.Join(dir, "missing.pdf")))
	assert.Error(t, UploadPath(ctx, ctrl, ""))
	assert.Equal(t, models.PhaseWelcome, ctrl.Session().Phase)

	require.NoError(t, UploadPath(ctx, ctrl, pdfPath))
	ctrl.Wait()

	assert.True(t, ctrl.Session().IsReady())
	assert.Equal(t, map[string]string{"manual.pdf": "%PDF-1.4"}, backend.uploads)
}

func TestShowStatus(t *testing.T) {
	ctrl := controllers.NewSessionController(&recordingBackend{}, nil)
	var notices []string
	ctrl.Subscribe(func(s models.Snapshot) {
		if s.Notice != "" {
			notices = append(notices, s.Notice)
		}
	})

	require.NoError(t, ShowStatus(context.Background(), ctrl))
	assert.Equal(t, []string{"Backend status: document_loaded=false mode=test"}, notices)
}

func TestFormatStatus(t *testing.T) {
	assert.Equal(t, "", FormatStatus(nil))
	assert.Equal(t, "a=1 b=x", FormatStatus(models.Metadata{"b": "x", "a": 1}))
}

func TestSpeaker(t *testing.T) {
	assert.Equal(t, "You", Speaker(models.NewUserMessage("hi")))
	assert.Equal(t, "AI", Speaker(models.NewWelcomeMessage()))
}
