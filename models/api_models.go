package models

import "time"

// ProcessMessageRequest is the body of POST /process-message. The field is
// named userMessage because that is what the document backend reads.
type ProcessMessageRequest struct {
	UserMessage string `json:"userMessage"`
}

// ProcessMessageResponse is the body returned by POST /process-message.
// The backend sets either a reply or an error.
type ProcessMessageResponse struct {
	BotResponse string `json:"botResponse,omitempty"`
	Reply       string `json:"reply,omitempty"`
	Error       string `json:"error,omitempty"`
}

// Text returns whichever of the reply or the error the backend sent
func (r ProcessMessageResponse) Text() string {
	switch {
	case r.BotResponse != "":
		return r.BotResponse
	case r.Reply != "":
		return r.Reply
	default:
		return r.Error
	}
}

// ProcessDocumentResponse is the body returned by POST /process-document for
// every HTTP status
type ProcessDocumentResponse struct {
	BotResponse string `json:"botResponse,omitempty"`
	Status      string `json:"status,omitempty"`
	Message     string `json:"message,omitempty"`
}

// Text returns the human readable confirmation or error
func (r ProcessDocumentResponse) Text() string {
	switch {
	case r.BotResponse != "":
		return r.BotResponse
	case r.Status != "":
		return r.Status
	default:
		return r.Message
	}
}

// ClearHistoryResponse is the body returned by POST /clear-history
type ClearHistoryResponse struct {
	Status string `json:"status"`
}

// HealthResponse is the body returned by GET /health
type HealthResponse struct {
	Status string `json:"status"`
}

// DocumentReply is the outcome of an ingestion request that got an answer
type DocumentReply struct {
	StatusCode int
	Text       string
}

// OK reports whether the backend accepted the document
func (r DocumentReply) OK() bool {
	return r.StatusCode >= 200 && r.StatusCode < 300
}

// MessageReply is the outcome of a message request that got an answer
type MessageReply struct {
	StatusCode int
	Text       string
}

// ChatMessage represents a single message in the stub backend's history
type ChatMessage struct {
	Role      string    `json:"role"` // "user" or "assistant"
	Content   string    `json:"content"`
	Timestamp time.Time `json:"timestamp"`
}
