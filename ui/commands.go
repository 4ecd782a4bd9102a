// Package ui holds what the front-ends share: input parsing, document opening
// and status formatting.
package ui

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"docassistant/controllers"
	"docassistant/models"
	"docassistant/services"
)

// CommandKind identifies what a line of input asks for
type CommandKind int

const (
	CommandSend CommandKind = iota
	CommandUpload
	CommandReset
	CommandStatus
	CommandHelp
	CommandQuit
	CommandUnknown
)

// Command is one parsed line of user input
type Command struct {
	Kind CommandKind
	// Arg is the message text for CommandSend, the path for CommandUpload and
	// the unrecognized word for CommandUnknown.
	Arg string
}

// HelpText lists the commands understood by the terminal front-ends
const HelpText = `/upload <path>  upload a PDF document
/reset          start over
/status         show the backend status
/help           show this help
/quit           exit
Anything else is sent as a question once a document is loaded.`

// ParseCommand turns a line of input into a Command. Lines that do not start
// with a slash are messages.
func ParseCommand(line string) Command {
	trimmed := strings.TrimSpace(line)
	if !strings.HasPrefix(trimmed, "/") {
		return Command{Kind: CommandSend, Arg: line}
	}

	word, rest, _ := strings.Cut(trimmed, " ")
	rest = strings.TrimSpace(rest)

	switch strings.ToLower(word) {
	case "/upload", "/u":
		return Command{Kind: CommandUpload, Arg: unquote(rest)}
	case "/reset", "/r":
		return Command{Kind: CommandReset}
	case "/status":
		return Command{Kind: CommandStatus}
	case "/help", "/?":
		return Command{Kind: CommandHelp}
	case "/quit", "/exit", "/q":
		return Command{Kind: CommandQuit}
	default:
		return Command{Kind: CommandUnknown, Arg: word}
	}
}

func unquote(s string) string {
	if len(s) >= 2 && (s[0] == '"' && s[len(s)-1] == '"' || s[0] == '\'' && s[len(s)-1] == '\'') {
		return s[1 : len(s)-1]
	}
	return s
}

// UploadPath validates a local document and hands it to the controller. The
// name check runs before the file is opened, so a wrong extension never
// touches the disk or the network.
func UploadPath(ctx context.Context, ctrl *controllers.SessionController, path string) error {
	if path == "" {
		ctrl.Notify("Usage: /upload <path-to-pdf>")
		return errors.New("missing path")
	}

	name := filepath.Base(path)
	if err := services.ValidateDocumentName(name); err != nil {
		// the controller owns the notice for rejected names
		return ctrl.SubmitFile(ctx, name, strings.NewReader(""))
	}

	f, err := os.Open(path)
	if err != nil {
		ctrl.Notify(fmt.Sprintf("Cannot open %s: %v", path, err))
		return fmt.Errorf("open document: %w", err)
	}
	return ctrl.SubmitFile(ctx, name, f)
}

// ShowStatus fetches the backend status and publishes it as a notice
func ShowStatus(ctx context.Context, ctrl *controllers.SessionController) error {
	status, err := ctrl.Status(ctx)
	if err != nil {
		ctrl.Notify(fmt.Sprintf("Backend status unavailable: %v", err))
		return err
	}
	ctrl.Notify("Backend status: " + FormatStatus(status))
	return nil
}

// FormatStatus renders a status report as sorted key=value pairs
func FormatStatus(status models.Metadata) string {
	keys := make([]string, 0, len(status))
	for k := range status {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, fmt.Sprintf("%s=%v", k, status[k]))
	}
	return strings.Join(parts, " ")
}

// Speaker returns the avatar label of a message
func Speaker(msg models.Message) string {
	if msg.IsUser() {
		return "You"
	}
	return "AI"
}

// UploadHint is the text rendering of the upload widget
const UploadHint = "[Document upload] Select a PDF file with /upload <path>"
