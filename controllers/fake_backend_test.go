package controllers

import (
	"context"
	"io"
	"sync"

	"docassistant/models"
)

// fakeBackend records calls and answers with canned replies. When a gate
// channel is set the matching call blocks until a value is received from it.
type fakeBackend struct {
	mu sync.Mutex

	docReply models.DocumentReply
	docErr   error
	msgReply models.MessageReply
	msgErr   error
	clearErr error

	docGate chan struct{}
	msgGate chan struct{}

	docCalls   []string
	msgCalls   []string
	clearCalls int
}

func (f *fakeBackend) ProcessDocument(ctx context.Context, filename string, r io.Reader) (models.DocumentReply, error) {
	_, _ = io.Copy(io.Discard, r)

	f.mu.Lock()
	f.docCalls = append(f.docCalls, filename)
	gate := f.docGate
	f.mu.Unlock()

	if gate != nil {
		<-gate
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	return f.docReply, f.docErr
}

func (f *fakeBackend) ProcessMessage(ctx context.Context, text string) (models.MessageReply, error) {
	f.mu.Lock()
	f.msgCalls = append(f.msgCalls, text)
	gate := f.msgGate
	f.mu.Unlock()

	if gate != nil {
		<-gate
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	return f.msgReply, f.msgErr
}

func (f *fakeBackend) ClearHistory(ctx context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.clearCalls++
	return f.clearErr
}

func (f *fakeBackend) Status(ctx context.Context) (models.Metadata, error) {
	return models.Metadata{"mode": "fake"}, nil
}

func (f *fakeBackend) documentCalls() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.docCalls...)
}

func (f *fakeBackend) messageCalls() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.msgCalls...)
}

func (f *fakeBackend) clears() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.clearCalls
}
