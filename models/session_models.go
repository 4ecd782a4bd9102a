package models

// Phase is the lifecycle stage of a conversation session
type Phase string

const (
	PhaseWelcome          Phase = "welcome"
	PhaseAwaitingDocument Phase = "awaiting_document"
	PhaseReady            Phase = "ready"
)

// Event drives a Session from one phase to the next
type Event int

const (
	// EventUploadStarted fires when a locally valid document is handed to the backend.
	EventUploadStarted Event = iota
	// EventDocumentAccepted fires when the backend answered the ingestion with a 2xx status.
	EventDocumentAccepted
	// EventUploadFailed fires when ingestion failed in transport or was refused by the backend.
	EventUploadFailed
	// EventReset fires on the user's reset action.
	EventReset
)

func (e Event) String() string {
	switch e {
	case EventUploadStarted:
		return "upload_started"
	case EventDocumentAccepted:
		return "document_accepted"
	case EventUploadFailed:
		return "upload_failed"
	case EventReset:
		return "reset"
	default:
		return "unknown"
	}
}

// Session is the lifecycle state owned by the session controller.
//
// DocumentLoaded is true exactly when Phase is PhaseReady. Epoch grows by one on
// every reset so that results of requests issued before the reset can be told
// apart from current ones.
type Session struct {
	Phase          Phase  `json:"phase"`
	DocumentLoaded bool   `json:"document_loaded"`
	Epoch          uint64 `json:"epoch"`
}

// NewSession returns a session in the welcome phase
func NewSession() Session {
	return Session{Phase: PhaseWelcome}
}

// Apply returns the session that results from ev. Events that are not valid in
// the current phase leave the session unchanged.
func (s Session) Apply(ev Event) Session {
	switch ev {
	case EventUploadStarted:
		if s.Phase == PhaseWelcome {
			s.Phase = PhaseAwaitingDocument
		}
	case EventDocumentAccepted:
		if s.Phase != PhaseReady {
			s.Phase = PhaseReady
			s.DocumentLoaded = true
		}
	case EventUploadFailed:
		// a failed upload keeps the user waiting for a document so they can retry
	case EventReset:
		s = Session{Phase: PhaseWelcome, Epoch: s.Epoch + 1}
	}
	return s
}

// IsReady reports whether questions may be asked
func (s Session) IsReady() bool {
	return s.Phase == PhaseReady && s.DocumentLoaded
}

// AcceptsUpload reports whether the upload affordance is offered in this phase
func (s Session) AcceptsUpload() bool {
	return s.Phase != PhaseReady
}
