package controllers

import (
	"context"
	"errors"
	"io"
	"sync"

	"docassistant/models"
	"docassistant/services"

	"go.uber.org/zap"
)

var (
	ErrDocumentLoaded = errors.New("a document is already loaded")
	ErrNoDocument     = errors.New("no document loaded")
)

// Observer receives every snapshot published by a SessionController. It is
// called without the controller lock held and may be called from several
// goroutines; snapshots with a lower Version than one already seen are stale.
type Observer func(models.Snapshot)

// SessionController owns the session lifecycle and the transcript, decides
// which flow may run, and publishes the resulting state to front-ends.
//
// All state is guarded by mu. Network calls run on their own goroutines with
// the lock released and settle back under it.
type SessionController struct {
	mu         sync.Mutex
	session    models.Session
	transcript *services.Transcript
	uploads    *services.UploadFlow
	messages   *services.MessageFlow
	backend    services.Backend
	logger     *zap.Logger

	started    bool
	loading    int
	notice     string
	focusInput bool
	version    uint64

	observers    map[int]Observer
	nextObserver int

	flights sync.WaitGroup
}

// NewSessionController creates a controller in the welcome phase. Call Start
// to render the welcome message.
func NewSessionController(backend services.Backend, logger *zap.Logger) *SessionController {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &SessionController{
		session:    models.NewSession(),
		transcript: services.NewTranscript(),
		uploads:    services.NewUploadFlow(backend, logger),
		messages:   services.NewMessageFlow(backend, logger),
		backend:    backend,
		logger:     logger.Named("session"),
		observers:  make(map[int]Observer),
	}
}

// Subscribe registers o for future snapshots and returns a function that
// removes it
func (c *SessionController) Subscribe(o Observer) (cancel func()) {
	c.mu.Lock()
	defer c.mu.Unlock()

	id := c.nextObserver
	c.nextObserver++
	c.observers[id] = o

	return func() {
		c.mu.Lock()
		defer c.mu.Unlock()
		delete(c.observers, id)
	}
}

// Start shows the welcome message with the upload affordance. Only the first
// call has an effect.
func (c *SessionController) Start() {
	c.mu.Lock()
	if c.started {
		c.mu.Unlock()
		return
	}
	c.started = true
	c.transcript.Append(models.NewWelcomeMessage())
	c.logger.Info("session started")
	c.unlockAndPublish()
}

// Reset clears the transcript and returns to the welcome phase. Requests still
// in flight are not cancelled; their results are dropped when they arrive.
// The backend is told to forget its history on a best-effort basis.
func (c *SessionController) Reset(ctx context.Context) {
	c.mu.Lock()
	c.transcript.Clear()
	c.session = c.session.Apply(models.EventReset)
	c.uploads.Abandon()
	c.messages.Abandon()
	c.loading = 0
	c.started = true
	c.transcript.Append(models.NewWelcomeMessage())
	c.logger.Info("session reset", zap.Uint64("epoch", c.session.Epoch))
	c.unlockAndPublish()

	c.notifyHistoryReset(ctx)
}

// notifyHistoryReset asks the backend to drop its history and returns at once.
// The outcome is discarded: the local reset has already happened and does
// not depend on it.
func (c *SessionController) notifyHistoryReset(ctx context.Context) {
	ctx = context.WithoutCancel(ctx)

	c.flights.Add(1)
	go func() {
		defer c.flights.Done()
		if err := c.backend.ClearHistory(ctx); err != nil {
			c.logger.Debug("history reset notification failed", zap.Error(err))
		}
	}()
}

// OnDocumentReady marks the document as loaded, arms the send affordance and
// asks the front-end to focus the input
func (c *SessionController) OnDocumentReady() {
	c.mu.Lock()
	c.documentReadyLocked()
	c.unlockAndPublish()
}

func (c *SessionController) documentReadyLocked() {
	c.session = c.session.Apply(models.EventDocumentAccepted)
	c.focusInput = true
	c.logger.Info("document ready")
}

// CanSend reports whether text could be sent in the current phase
func (c *SessionController) CanSend(text string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.session.IsReady() && services.Sanitize(text) != ""
}

// SendEnabled reports whether the send affordance is enabled for the given
// input: CanSend holds and no exchange is in flight
func (c *SessionController) SendEnabled(text string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.session.IsReady() && !c.messages.InFlight() && services.Sanitize(text) != ""
}

// SubmitFile starts ingesting a document. Validation happens synchronously and
// is reported through the returned error and a notice; the upload itself runs
// in the background. SubmitFile takes ownership of r and closes it once the
// upload is rejected or settled, if it is an io.Closer.
func (c *SessionController) SubmitFile(ctx context.Context, name string, r io.Reader) error {
	c.mu.Lock()
	if !c.session.AcceptsUpload() {
		closeReader(r)
		c.notice = models.LoadedNotice
		c.unlockAndPublish()
		return ErrDocumentLoaded
	}

	ticket, err := c.uploads.Begin(name)
	if err != nil {
		closeReader(r)
		switch {
		case errors.Is(err, services.ErrNotPDF):
			c.notice = models.NotPDFNotice
		case errors.Is(err, services.ErrUploadInFlight):
			c.notice = models.BusyNotice
		}
		c.logger.Info("upload rejected", zap.String("file", name), zap.Error(err))
		c.unlockAndPublish()
		return err
	}

	c.session = c.session.Apply(models.EventUploadStarted)
	c.loading++
	epoch := c.session.Epoch
	c.unlockAndPublish()

	c.flights.Add(1)
	go func() {
		defer c.flights.Done()
		outcome := c.uploads.Run(ctx, name, r)
		c.settleUpload(ticket, epoch, outcome)
	}()
	return nil
}

func (c *SessionController) settleUpload(ticket services.Ticket, epoch uint64, outcome services.UploadOutcome) {
	c.mu.Lock()
	c.uploads.Release(ticket)
	if epoch != c.session.Epoch {
		c.mu.Unlock()
		c.logger.Info("dropping upload result from before reset", zap.Uint64("epoch", epoch))
		return
	}

	c.loading--
	if outcome.Accepted {
		c.transcript.DetachWidget(models.WidgetUpload)
		c.documentReadyLocked()
	} else {
		c.session = c.session.Apply(models.EventUploadFailed)
	}
	c.transcript.Append(models.NewAssistantMessage(outcome.Text))
	c.unlockAndPublish()
}

// SubmitMessage sends one question. The sanitized user message is appended
// before this returns; the answer is appended when the exchange settles and
// the user message stays even if the exchange fails. Empty input is a no-op
// that returns services.ErrEmptyMessage.
func (c *SessionController) SubmitMessage(ctx context.Context, raw string) error {
	c.mu.Lock()
	text, err := c.messages.Prepare(raw)
	if err != nil {
		c.mu.Unlock()
		return err
	}

	if !c.session.IsReady() {
		c.notice = models.NoDocumentNotice
		c.unlockAndPublish()
		return ErrNoDocument
	}

	ticket, err := c.messages.Begin()
	if err != nil {
		c.notice = models.BusyNotice
		c.unlockAndPublish()
		return err
	}

	c.transcript.Append(models.NewUserMessage(text))
	c.loading++
	epoch := c.session.Epoch
	c.unlockAndPublish()

	c.flights.Add(1)
	go func() {
		defer c.flights.Done()
		outcome := c.messages.Run(ctx, text)
		c.settleMessage(ticket, epoch, outcome)
	}()
	return nil
}

func (c *SessionController) settleMessage(ticket services.Ticket, epoch uint64, outcome services.MessageOutcome) {
	c.mu.Lock()
	c.messages.Release(ticket)
	if epoch != c.session.Epoch {
		c.mu.Unlock()
		c.logger.Info("dropping answer from before reset", zap.Uint64("epoch", epoch))
		return
	}

	c.loading--
	c.transcript.Append(models.NewAssistantMessage(outcome.Text))
	c.unlockAndPublish()
}

// Notify publishes a one-shot notice to every front-end
func (c *SessionController) Notify(notice string) {
	c.mu.Lock()
	c.notice = notice
	c.unlockAndPublish()
}

// Status fetches the backend's status report
func (c *SessionController) Status(ctx context.Context) (models.Metadata, error) {
	return c.backend.Status(ctx)
}

// Snapshot returns the current state without publishing it
func (c *SessionController) Snapshot() models.Snapshot {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.snapshotLocked()
}

// Session returns the current lifecycle state
func (c *SessionController) Session() models.Session {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.session
}

// Wait blocks until every flow and background notification started so far
// has settled
func (c *SessionController) Wait() {
	c.flights.Wait()
}

func (c *SessionController) snapshotLocked() models.Snapshot {
	return models.Snapshot{
		Version:  c.version,
		Session:  c.session,
		Messages: c.transcript.Messages(),
		Affordances: models.Affordances{
			SendArmed:     c.session.IsReady() && !c.messages.InFlight(),
			UploadVisible: c.transcript.HasWidget(models.WidgetUpload),
			UploadEnabled: c.session.AcceptsUpload() && !c.uploads.InFlight(),
			Loading:       c.loading > 0,
			FocusInput:    c.focusInput,
		},
		Notice: c.notice,
	}
}

// unlockAndPublish bumps the version, clears one-shot fields, releases mu and
// delivers the snapshot. mu must be held.
func (c *SessionController) unlockAndPublish() {
	c.version++
	snap := c.snapshotLocked()
	c.notice = ""
	c.focusInput = false

	observers := make([]Observer, 0, len(c.observers))
	for _, o := range c.observers {
		observers = append(observers, o)
	}
	c.mu.Unlock()

	for _, o := range observers {
		o(snap)
	}
}

func closeReader(r io.Reader) {
	if closer, ok := r.(io.Closer); ok {
		_ = closer.Close()
	}
}
