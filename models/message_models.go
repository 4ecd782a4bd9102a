package models

import (
	"time"

	"github.com/google/uuid"
)

// Origin identifies who authored a transcript message
type Origin string

const (
	OriginUser      Origin = "user"
	OriginAssistant Origin = "assistant"
)

// Widget is auxiliary content rendered below a message's text
type Widget string

const (
	WidgetNone   Widget = ""
	WidgetUpload Widget = "upload"
)

// Message represents a single transcript entry. Values are never modified after
// they are appended to a transcript.
type Message struct {
	ID        string    `json:"id"`
	Text      string    `json:"text"`
	Origin    Origin    `json:"origin"`
	Widget    Widget    `json:"widget,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

// NewUserMessage creates a user-authored message. text must already be sanitized.
func NewUserMessage(text string) Message {
	return newMessage(text, OriginUser, WidgetNone)
}

// NewAssistantMessage creates an assistant-authored message
func NewAssistantMessage(text string) Message {
	return newMessage(text, OriginAssistant, WidgetNone)
}

// NewWelcomeMessage creates the assistant greeting that carries the upload affordance
func NewWelcomeMessage() Message {
	return newMessage(WelcomeText, OriginAssistant, WidgetUpload)
}

func newMessage(text string, origin Origin, widget Widget) Message {
	return Message{
		ID:        uuid.NewString(),
		Text:      text,
		Origin:    origin,
		Widget:    widget,
		CreatedAt: time.Now(),
	}
}

// IsUser reports whether the message was typed by the user
func (m Message) IsUser() bool {
	return m.Origin == OriginUser
}

// HasUploadWidget reports whether the message still offers the upload affordance
func (m Message) HasUploadWidget() bool {
	return m.Widget == WidgetUpload
}
