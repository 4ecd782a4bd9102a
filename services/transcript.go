package services

import "docassistant/models"

// Transcript is the ordered log of exchanged messages. It is not safe for
// concurrent use; the session controller serializes access.
type Transcript struct {
	messages []models.Message
}

// NewTranscript creates an empty transcript
func NewTranscript() *Transcript {
	return &Transcript{}
}

// Append adds a message at the end of the transcript
func (t *Transcript) Append(msg models.Message) {
	t.messages = append(t.messages, msg)
}

// Messages returns a copy of the transcript in chronological order
func (t *Transcript) Messages() []models.Message {
	out := make([]models.Message, len(t.messages))
	copy(out, t.messages)
	return out
}

// Len returns the number of messages
func (t *Transcript) Len() int {
	return len(t.messages)
}

// Last returns the newest message
func (t *Transcript) Last() (models.Message, bool) {
	if len(t.messages) == 0 {
		return models.Message{}, false
	}
	return t.messages[len(t.messages)-1], true
}

// HasWidget reports whether any message still carries widget w
func (t *Transcript) HasWidget(w models.Widget) bool {
	for _, msg := range t.messages {
		if msg.Widget == w {
			return true
		}
	}
	return false
}

// DetachWidget removes widget w from every message carrying it. Text and
// order are left untouched. It returns the number of messages changed.
func (t *Transcript) DetachWidget(w models.Widget) int {
	changed := 0
	for i, msg := range t.messages {
		if msg.Widget != w {
			continue
		}
		msg.Widget = models.WidgetNone
		t.messages[i] = msg
		changed++
	}
	return changed
}

// Clear drops every message
func (t *Transcript) Clear() {
	t.messages = nil
}
