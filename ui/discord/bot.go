// Package discord exposes document sessions through a Discord bot. Every
// channel gets its own session: attaching a PDF uploads it, and prefixed
// messages ask questions or control the session.
package discord

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"time"
	"unicode/utf8"

	"docassistant/controllers"
	"docassistant/models"
	"docassistant/services"
	"docassistant/ui"

	"github.com/bwmarrin/discordgo"
	"go.uber.org/zap"
)

const (
	maxMessageLength   = 2000
	maxAttachmentBytes = 16 << 20
)

// Sender is the part of a Discord session the bot writes through
type Sender interface {
	ChannelMessageSend(channelID string, content string, options ...discordgo.RequestOption) (*discordgo.Message, error)
	ChannelTyping(channelID string, options ...discordgo.RequestOption) error
}

// Bot routes Discord messages to per-channel sessions
type Bot struct {
	session       *discordgo.Session
	backend       services.Backend
	httpClient    *http.Client
	logger        *zap.Logger
	commandPrefix string
	chunkDelay    time.Duration
	startTime     time.Time

	ctx context.Context

	mu       sync.Mutex
	channels map[string]*channelSession
}

// channelSession is the session of one Discord channel and the bookkeeping
// needed to post only what changed
type channelSession struct {
	channelID string
	ctrl      *controllers.SessionController
	sender    Sender
	cancel    func()

	mu          sync.Mutex
	posted      map[string]bool
	lastVersion uint64
}

// NewBot creates a bot. The Discord connection is only opened by Start.
func NewBot(token, commandPrefix string, backend services.Backend, logger *zap.Logger) (*Bot, error) {
	if commandPrefix == "" {
		commandPrefix = "!doc "
	}

	if token == "" {
		return nil, errors.New("discord bot disabled: DISCORD_BOT_TOKEN not set")
	}

	b := newBot(commandPrefix, backend, logger)

	session, err := discordgo.New("Bot " + token)
	if err != nil {
		return nil, fmt.Errorf("error creating Discord session: %w", err)
	}
	b.session = session

	session.AddHandler(func(s *discordgo.Session, event *discordgo.Ready) {
		b.logger.Info("bot is online",
			zap.String("user", event.User.Username),
			zap.Int("guilds", len(event.Guilds)))
	})
	session.AddHandler(func(s *discordgo.Session, m *discordgo.MessageCreate) {
		b.handleMessage(s, m.Message)
	})

	session.Identify.Intents = discordgo.IntentsGuildMessages | discordgo.IntentsMessageContent

	b.logger.Info("discord bot initialized", zap.String("prefix", commandPrefix))
	return b, nil
}

func newBot(commandPrefix string, backend services.Backend, logger *zap.Logger) *Bot {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Bot{
		backend:       backend,
		httpClient:    &http.Client{Timeout: 2 * time.Minute},
		logger:        logger.Named("discord"),
		commandPrefix: commandPrefix,
		chunkDelay:    200 * time.Millisecond,
		startTime:     time.Now(),
		ctx:           context.Background(),
		channels:      make(map[string]*channelSession),
	}
}

// Start opens the websocket connection. Requests started by the bot use ctx.
func (b *Bot) Start(ctx context.Context) error {
	b.ctx = ctx

	if err := b.session.Open(); err != nil {
		return fmt.Errorf("error opening Discord connection: %w", err)
	}

	b.logger.Info("discord bot started",
		zap.String("usage", b.commandPrefix+"<question>, attach a PDF to upload"))
	return nil
}

// Stop closes the connection and waits for in-flight requests
func (b *Bot) Stop() error {
	var err error
	if b.session != nil {
		err = b.session.Close()
	}

	b.mu.Lock()
	channels := make([]*channelSession, 0, len(b.channels))
	for _, ch := range b.channels {
		channels = append(channels, ch)
	}
	b.mu.Unlock()

	for _, ch := range channels {
		ch.ctrl.Wait()
		ch.cancel()
	}
	return err
}

// handleMessage handles one incoming Discord message
func (b *Bot) handleMessage(s Sender, m *discordgo.Message) {
	if m.Author == nil || m.Author.Bot {
		return
	}

	hasCommand := strings.HasPrefix(m.Content, b.commandPrefix)
	attachments := m.Attachments
	if !hasCommand {
		// unaddressed messages only count when they carry a PDF
		attachments = pdfAttachments(m.Attachments)
		if len(attachments) == 0 {
			return
		}
	}

	ch := b.channel(s, m.ChannelID)

	for _, att := range attachments {
		b.upload(ch, att)
	}

	if !hasCommand {
		return
	}

	text := strings.TrimSpace(m.Content[len(b.commandPrefix):])
	switch strings.ToLower(text) {
	case "":
		if len(m.Attachments) == 0 {
			b.sendMessage(s, m.ChannelID, fmt.Sprintf("Please provide a question after `%s`", strings.TrimSpace(b.commandPrefix)))
		}
	case "reset":
		ch.ctrl.Reset(b.ctx)
	case "status":
		b.postStatus(ch)
	case "help":
		b.sendMessage(s, m.ChannelID, b.help())
	default:
		if err := s.ChannelTyping(m.ChannelID); err != nil {
			b.logger.Debug("typing indicator failed", zap.Error(err))
		}
		if err := ch.ctrl.SubmitMessage(b.ctx, text); err != nil {
			b.logger.Debug("message not sent", zap.String("channel", m.ChannelID), zap.Error(err))
		}
	}

	b.logger.Info("discord command",
		zap.String("user", m.Author.Username),
		zap.String("channel", m.ChannelID),
		zap.Int("attachments", len(m.Attachments)))
}

func pdfAttachments(atts []*discordgo.MessageAttachment) []*discordgo.MessageAttachment {
	var pdfs []*discordgo.MessageAttachment
	for _, att := range atts {
		if services.ValidateDocumentName(att.Filename) == nil {
			pdfs = append(pdfs, att)
		}
	}
	return pdfs
}

// upload validates an attachment by name and size, then streams it to the
// session. Rejected names never reach the network.
func (b *Bot) upload(ch *channelSession, att *discordgo.MessageAttachment) {
	if err := services.ValidateDocumentName(att.Filename); err != nil || !ch.ctrl.Session().AcceptsUpload() {
		// the session rejects it with the matching notice
		_ = ch.ctrl.SubmitFile(b.ctx, att.Filename, strings.NewReader(""))
		return
	}
	if att.Size > maxAttachmentBytes {
		ch.ctrl.Notify(fmt.Sprintf("%s is larger than %d MiB", att.Filename, maxAttachmentBytes>>20))
		return
	}

	if err := ch.sender.ChannelTyping(ch.channelID); err != nil {
		b.logger.Debug("typing indicator failed", zap.Error(err))
	}

	req, err := http.NewRequestWithContext(b.ctx, http.MethodGet, att.URL, nil)
	if err != nil {
		b.logger.Error("bad attachment url", zap.String("url", att.URL), zap.Error(err))
		ch.ctrl.Notify(models.UploadFailedText)
		return
	}
	resp, err := b.httpClient.Do(req)
	if err != nil {
		b.logger.Error("failed to download attachment", zap.String("file", att.Filename), zap.Error(err))
		ch.ctrl.Notify(models.UploadFailedText)
		return
	}
	if resp.StatusCode != http.StatusOK {
		resp.Body.Close()
		b.logger.Error("failed to download attachment",
			zap.String("file", att.Filename),
			zap.Int("status", resp.StatusCode))
		ch.ctrl.Notify(models.UploadFailedText)
		return
	}

	// the session closes the body once the upload settles
	if err := ch.ctrl.SubmitFile(b.ctx, att.Filename, resp.Body); err != nil {
		b.logger.Debug("upload not started", zap.String("file", att.Filename), zap.Error(err))
	}
}

func (b *Bot) postStatus(ch *channelSession) {
	status, err := ch.ctrl.Status(b.ctx)
	if err != nil {
		ch.ctrl.Notify(fmt.Sprintf("Backend status unavailable: %v", err))
		return
	}
	snap := ch.ctrl.Snapshot()
	b.sendMessage(ch.sender, ch.channelID, fmt.Sprintf("Session: %s\nBackend: %s\nBot: %s",
		snap.Session.Phase, ui.FormatStatus(status), ui.FormatStatus(b.GetStatus())))
}

func (b *Bot) help() string {
	p := strings.TrimSpace(b.commandPrefix)
	return fmt.Sprintf("Attach a PDF to upload it.\n`%s <question>` asks about the document\n`%s reset` starts over\n`%s status` shows the backend status", p, p, p)
}

// channel returns the session of channelID, creating and starting it on
// first use
func (b *Bot) channel(s Sender, channelID string) *channelSession {
	b.mu.Lock()
	ch, ok := b.channels[channelID]
	if !ok {
		ch = b.newChannelSession(s, channelID)
		b.channels[channelID] = ch
	}
	b.mu.Unlock()

	ch.ctrl.Start()
	return ch
}

func (b *Bot) newChannelSession(s Sender, channelID string) *channelSession {

	ch := &channelSession{
		channelID: channelID,
		ctrl:      controllers.NewSessionController(b.backend, b.logger.With(zap.String("channel", channelID))),
		sender:    s,
		posted:    make(map[string]bool),
	}
	ch.cancel = ch.ctrl.Subscribe(func(snap models.Snapshot) {
		b.publish(ch, snap)
	})
	return ch
}

// publish posts assistant messages that were not posted yet, then the notice.
// User messages are already visible in the channel.
func (b *Bot) publish(ch *channelSession, snap models.Snapshot) {
	ch.mu.Lock()
	defer ch.mu.Unlock()

	if snap.Version <= ch.lastVersion {
		return
	}
	ch.lastVersion = snap.Version

	for _, msg := range snap.Messages {
		if ch.posted[msg.ID] {
			continue
		}
		ch.posted[msg.ID] = true
		if msg.IsUser() {
			continue
		}

		text := msg.Text
		if msg.HasUploadWidget() && snap.Affordances.UploadVisible {
			text += "\n_Attach a PDF file to this channel to upload it._"
		}
		b.sendMessage(ch.sender, ch.channelID, text)
	}

	if snap.Notice != "" {
		b.sendMessage(ch.sender, ch.channelID, "⚠️ "+snap.Notice)
	}
}

// sendMessage sends a message to Discord, handling length limits
func (b *Bot) sendMessage(s Sender, channelID, message string) {
	if len(message) <= maxMessageLength {
		if _, err := s.ChannelMessageSend(channelID, message); err != nil {
			b.logger.Error("error sending Discord message", zap.Error(err))
		}
		return
	}

	// Split long messages into chunks
	chunks := splitMessage(message, 1900) // Leave some margin
	for i, chunk := range chunks {
		if i > 0 {
			chunk = fmt.Sprintf("...continued:\n%s", chunk)
		}
		if i < len(chunks)-1 {
			chunk = chunk + "\n..."
		}

		if _, err := s.ChannelMessageSend(channelID, chunk); err != nil {
			b.logger.Error("error sending Discord message chunk", zap.Int("chunk", i), zap.Error(err))
		}

		// Small delay between messages to avoid rate limiting
		if b.chunkDelay > 0 {
			time.Sleep(b.chunkDelay)
		}
	}
}

// splitMessage splits a message into chunks respecting word boundaries
func splitMessage(message string, maxLength int) []string {
	if len(message) <= maxLength {
		return []string{message}
	}

	var chunks []string
	for len(message) > maxLength {
		// Try to split at a word boundary
		splitIndex := maxLength
		if spaceIndex := strings.LastIndex(message[:maxLength], " "); spaceIndex > maxLength/2 {
			splitIndex = spaceIndex
		}
		// never cut a multi-byte character in half
		for splitIndex > 0 && !utf8.RuneStart(message[splitIndex]) {
			splitIndex--
		}
		if splitIndex == 0 {
			splitIndex = maxLength
		}

		chunks = append(chunks, message[:splitIndex])
		message = strings.TrimPrefix(message[splitIndex:], " ")
	}

	if len(message) > 0 {
		chunks = append(chunks, message)
	}

	return chunks
}

// GetStatus returns the current status of the Discord bot
func (b *Bot) GetStatus() models.Metadata {
	b.mu.Lock()
	channels := len(b.channels)
	b.mu.Unlock()

	status := models.Metadata{
		"command_prefix": b.commandPrefix,
		"uptime":         time.Since(b.startTime).String(),
		"channels":       channels,
	}

	if b.session != nil && b.session.State != nil && b.session.State.User != nil {
		status["status"] = "connected"
		status["user"] = map[string]interface{}{
			"id":       b.session.State.User.ID,
			"username": b.session.State.User.Username,
		}
		status["guilds"] = len(b.session.State.Guilds)
	} else {
		status["status"] = "initialized_not_started"
	}

	return status
}
