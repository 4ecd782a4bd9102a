package services

import (
	"context"
	"errors"

	"docassistant/models"

	"go.uber.org/zap"
)

var (
	ErrEmptyMessage    = errors.New("message is empty after sanitization")
	ErrMessageInFlight = errors.New("a message is already being answered")
)

// MessageProcessor is the backend call used by the message flow
type MessageProcessor interface {
	ProcessMessage(ctx context.Context, text string) (models.MessageReply, error)
}

// MessageOutcome is the settled result of one question/answer exchange
type MessageOutcome struct {
	// Text is the assistant message to append: the reply, the backend's error,
	// or the generic local error.
	Text string
	// Err is set on transport failure.
	Err error
}

// MessageFlow drives a single question/answer exchange at a time
type MessageFlow struct {
	backend MessageProcessor
	pending PendingRequest
	logger  *zap.Logger
}

// NewMessageFlow creates a message flow backed by backend
func NewMessageFlow(backend MessageProcessor, logger *zap.Logger) *MessageFlow {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &MessageFlow{
		backend: backend,
		logger:  logger.Named("message"),
	}
}

// Prepare sanitizes raw input. It returns ErrEmptyMessage when nothing is left.
func (f *MessageFlow) Prepare(raw string) (string, error) {
	text := Sanitize(raw)
	if text == "" {
		return "", ErrEmptyMessage
	}
	return text, nil
}

// Begin takes the message gate
func (f *MessageFlow) Begin() (Ticket, error) {
	ticket, ok := f.pending.Acquire()
	if !ok {
		return 0, ErrMessageInFlight
	}
	return ticket, nil
}

// Run sends text to the backend. Backend errors are answers like any other and
// come back as Text; only transport failures set Err.
func (f *MessageFlow) Run(ctx context.Context, text string) MessageOutcome {
	reply, err := f.backend.ProcessMessage(ctx, text)
	if err != nil {
		f.logger.Warn("message exchange failed", zap.Error(err))
		return MessageOutcome{Text: models.SendFailedText, Err: err}
	}

	if reply.Text == "" {
		f.logger.Warn("backend answered without reply or error", zap.Int("status", reply.StatusCode))
		return MessageOutcome{Text: models.SendFailedText}
	}

	return MessageOutcome{Text: reply.Text}
}

// Release frees the message gate held by ticket
func (f *MessageFlow) Release(ticket Ticket) {
	f.pending.Release(ticket)
}

// Abandon frees the gate without waiting for the outstanding exchange
func (f *MessageFlow) Abandon() {
	f.pending.Abandon()
}

// InFlight reports whether an exchange is outstanding
func (f *MessageFlow) InFlight() bool {
	return f.pending.Active()
}
