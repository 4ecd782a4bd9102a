package services

import (
	"context"
	"errors"
	"io"
	"strings"

	"docassistant/models"

	"go.uber.org/zap"
)

var (
	ErrNotPDF         = errors.New("only PDF documents are accepted")
	ErrUploadInFlight = errors.New("an upload is already in progress")
)

// documentReadyFallback is shown when the backend accepted a document without
// saying anything about it
const documentReadyFallback = "Document processed. You can now ask questions!"

// DocumentIngester is the backend call used by the upload flow
type DocumentIngester interface {
	ProcessDocument(ctx context.Context, filename string, r io.Reader) (models.DocumentReply, error)
}

// UploadOutcome is the settled result of one ingestion request
type UploadOutcome struct {
	// Accepted is true when the backend answered with a 2xx status.
	Accepted bool
	// Text is the assistant message to append, whatever happened.
	Text string
	// Err is set on transport failure.
	Err error
}

// UploadFlow drives a single document-ingestion request at a time
type UploadFlow struct {
	backend DocumentIngester
	pending PendingRequest
	logger  *zap.Logger
}

// NewUploadFlow creates an upload flow backed by backend
func NewUploadFlow(backend DocumentIngester, logger *zap.Logger) *UploadFlow {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &UploadFlow{
		backend: backend,
		logger:  logger.Named("upload"),
	}
}

// ValidateDocumentName accepts only names ending in .pdf, in any case
func ValidateDocumentName(name string) error {
	if !strings.HasSuffix(strings.ToLower(strings.TrimSpace(name)), ".pdf") {
		return ErrNotPDF
	}
	return nil
}

// Begin validates the file name and takes the upload gate
func (f *UploadFlow) Begin(name string) (Ticket, error) {
	if err := ValidateDocumentName(name); err != nil {
		return 0, err
	}
	ticket, ok := f.pending.Acquire()
	if !ok {
		return 0, ErrUploadInFlight
	}
	return ticket, nil
}

// Run issues the ingestion request. It closes r when r is an io.Closer. The
// gate stays taken until Release is called with the ticket from Begin.
func (f *UploadFlow) Run(ctx context.Context, name string, r io.Reader) UploadOutcome {
	if closer, ok := r.(io.Closer); ok {
		defer closer.Close()
	}

	reply, err := f.backend.ProcessDocument(ctx, name, r)
	if err != nil {
		f.logger.Warn("document upload failed", zap.String("file", name), zap.Error(err))
		return UploadOutcome{Text: models.UploadFailedText, Err: err}
	}

	outcome := UploadOutcome{Accepted: reply.OK(), Text: reply.Text}
	if outcome.Text == "" {
		if outcome.Accepted {
			outcome.Text = documentReadyFallback
		} else {
			outcome.Text = models.UploadFailedText
		}
	}

	f.logger.Info("document upload settled",
		zap.String("file", name),
		zap.Int("status", reply.StatusCode),
		zap.Bool("accepted", outcome.Accepted))

	return outcome
}

// Release frees the upload gate held by ticket
func (f *UploadFlow) Release(ticket Ticket) {
	f.pending.Release(ticket)
}

// Abandon frees the gate without waiting for the outstanding upload
func (f *UploadFlow) Abandon() {
	f.pending.Abandon()
}

// InFlight reports whether an upload is outstanding
func (f *UploadFlow) InFlight() bool {
	return f.pending.Active()
}
