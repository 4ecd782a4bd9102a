package models

// Response status constants
const (
	StatusHealthy = "healthy"
	StatusCleared = "cleared"
)

// User-visible texts shared by the flows and the front-ends
const (
	WelcomeText      = "Welcome! I'm your technical documentation assistant. Upload a PDF document to get started."
	UploadFailedText = "Error uploading file. Please try again."
	SendFailedText   = "Error sending message. Please try again."
	NotPDFNotice     = "Please upload a PDF file"
	NoDocumentNotice = "Upload a PDF document before asking questions"
	LoadedNotice     = "A document is already loaded. Reset the conversation to upload another one"
	BusyNotice       = "Still waiting for the previous request"
)

// Metadata represents generic metadata
type Metadata map[string]interface{}
