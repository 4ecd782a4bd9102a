// Package console is a line-oriented front-end: it reads commands from an
// input stream and prints transcript changes as they are published.
package console

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"sync"

	"docassistant/controllers"
	"docassistant/models"
	"docassistant/ui"

	"github.com/fatih/color"
	"go.uber.org/zap"
)

var (
	userLabel      = color.New(color.FgCyan, color.Bold).SprintFunc()
	assistantLabel = color.New(color.FgGreen, color.Bold).SprintFunc()
	noticeText     = color.New(color.FgYellow).SprintFunc()
	hintText       = color.New(color.Faint).SprintFunc()
)

// Console renders a session as plain lines of text
type Console struct {
	ctrl   *controllers.SessionController
	in     io.Reader
	out    io.Writer
	logger *zap.Logger

	mu          sync.Mutex
	seen        map[string]bool
	lastVersion uint64
}

// New creates a console front-end bound to ctrl
func New(ctrl *controllers.SessionController, in io.Reader, out io.Writer, logger *zap.Logger) *Console {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Console{
		ctrl:   ctrl,
		in:     in,
		out:    out,
		logger: logger.Named("console"),
		seen:   make(map[string]bool),
	}
}

// Run starts the session and processes input until /quit, end of input or
// ctx is done. Each command waits for the requests it started so output stays
// in order.
func (c *Console) Run(ctx context.Context) error {
	cancel := c.ctrl.Subscribe(c.render)
	defer cancel()

	c.ctrl.Start()

	lines := make(chan string)
	scanErr := make(chan error, 1)
	done := make(chan struct{})
	defer close(done)
	go func() {
		scanner := bufio.NewScanner(c.in)
		for scanner.Scan() {
			select {
			case lines <- scanner.Text():
			case <-done:
				return
			}
		}
		scanErr <- scanner.Err()
		close(lines)
	}()

	for {
		c.prompt()

		var line string
		select {
		case <-ctx.Done():
			return nil
		case l, ok := <-lines:
			if !ok {
				c.ctrl.Wait()
				return <-scanErr
			}
			line = l
		}

		if quit := c.handle(ctx, line); quit {
			c.ctrl.Wait()
			return nil
		}
		c.ctrl.Wait()
	}
}

// handle executes one line of input and reports whether the user asked to quit
func (c *Console) handle(ctx context.Context, line string) bool {
	cmd := ui.ParseCommand(line)

	switch cmd.Kind {
	case ui.CommandQuit:
		return true
	case ui.CommandHelp:
		c.printf("%s\n", hintText(ui.HelpText))
	case ui.CommandReset:
		c.ctrl.Reset(ctx)
	case ui.CommandStatus:
		_ = ui.ShowStatus(ctx, c.ctrl)
	case ui.CommandUpload:
		if err := ui.UploadPath(ctx, c.ctrl, cmd.Arg); err != nil {
			c.logger.Debug("upload not started", zap.Error(err))
		}
	case ui.CommandUnknown:
		c.ctrl.Notify(fmt.Sprintf("Unknown command %s, try /help", cmd.Arg))
	case ui.CommandSend:
		if err := c.ctrl.SubmitMessage(ctx, cmd.Arg); err != nil {
			c.logger.Debug("message not sent", zap.Error(err))
		}
	}
	return false
}

// render prints messages it has not printed before, then the notice
func (c *Console) render(snap models.Snapshot) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if snap.Version <= c.lastVersion {
		return
	}
	c.lastVersion = snap.Version

	current := make(map[string]bool, len(snap.Messages))
	for _, msg := range snap.Messages {
		current[msg.ID] = true
	}
	for id := range c.seen {
		if !current[id] {
			// the transcript was cleared
			c.seen = make(map[string]bool)
			fmt.Fprintln(c.out, hintText("--- new conversation ---"))
			break
		}
	}

	for _, msg := range snap.Messages {
		if c.seen[msg.ID] {
			continue
		}
		c.seen[msg.ID] = true
		c.printMessage(msg, snap.Affordances)
	}

	if snap.Notice != "" {
		fmt.Fprintln(c.out, noticeText("! "+snap.Notice))
	}
}

func (c *Console) printMessage(msg models.Message, aff models.Affordances) {
	label := assistantLabel(ui.Speaker(msg) + ":")
	if msg.IsUser() {
		label = userLabel(ui.Speaker(msg) + ":")
	}
	fmt.Fprintf(c.out, "%s %s\n", label, msg.Text)

	if msg.HasUploadWidget() && aff.UploadVisible {
		fmt.Fprintln(c.out, hintText("    "+ui.UploadHint))
	}
}

func (c *Console) prompt() {
	c.mu.Lock()
	defer c.mu.Unlock()
	fmt.Fprint(c.out, "> ")
}

func (c *Console) printf(format string, args ...interface{}) {
	c.mu.Lock()
	defer c.mu.Unlock()
	fmt.Fprintf(c.out, format, args...)
}
