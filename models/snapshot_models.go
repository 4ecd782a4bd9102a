package models

// Affordances describes which user controls are usable right now
type Affordances struct {
	// SendArmed is true when a message could be sent given non-empty input.
	SendArmed bool `json:"send_armed"`
	// UploadVisible is true while the transcript still offers the upload widget.
	UploadVisible bool `json:"upload_visible"`
	// UploadEnabled is false while an ingestion request is in flight.
	UploadEnabled bool `json:"upload_enabled"`
	Loading       bool `json:"loading"`
	// FocusInput asks the front-end to move focus to the input box. Only set in
	// the snapshot published right after a document became ready.
	FocusInput bool `json:"focus_input,omitempty"`
}

// Snapshot is an immutable view of a session published to front-ends.
// Version increases with every published snapshot.
type Snapshot struct {
	Version     uint64      `json:"version"`
	Session     Session     `json:"session"`
	Messages    []Message   `json:"messages"`
	Affordances Affordances `json:"affordances"`
	// Notice is a one-shot local notice, such as a rejected file type.
	Notice string `json:"notice,omitempty"`
}
