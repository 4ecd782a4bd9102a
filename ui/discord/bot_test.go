package discord

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"unicode/utf8"

	"docassistant/models"
	"docassistant/services"
	"docassistant/stubserver"

	"github.com/bwmarrin/discordgo"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type sentMessage struct {
	channelID string
	content   string
}

type fakeSender struct {
	mu     sync.Mutex
	sent   []sentMessage
	typing int
}

func (f *fakeSender) ChannelMessageSend(channelID string, content string, options ...discordgo.RequestOption) (*discordgo.Message, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sent = append(f.sent, sentMessage{channelID: channelID, content: content})
	return &discordgo.Message{ChannelID: channelID, Content: content}, nil
}

func (f *fakeSender) ChannelTyping(channelID string, options ...discordgo.RequestOption) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.typing++
	return nil
}

// take returns and forgets everything sent so far
func (f *fakeSender) take() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]string, len(f.sent))
	for i, m := range f.sent {
		out[i] = m.content
	}
	f.sent = nil
	return out
}

type botFixture struct {
	bot    *Bot
	sender *fakeSender
	stub   *stubserver.Server
	cdn    *httptest.Server
}

func newBotFixture(t *testing.T) *botFixture {
	t.Helper()

	stub := stubserver.NewServer("", nil)
	backend := httptest.NewServer(stub.Handler())
	t.Cleanup(backend.Close)

	cdn := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/missing.pdf" {
			http.NotFound(w, r)
			return
		}
		w.Write([]byte("%PDF-1.4\n/Type /Page\n/Type /Page\n"))
	}))
	t.Cleanup(cdn.Close)

	bot := newBot("!doc ", services.NewBackendClient(backend.URL, 0, nil), nil)
	bot.chunkDelay = 0

	return &botFixture{bot: bot, sender: &fakeSender{}, stub: stub, cdn: cdn}
}

func (f *botFixture) say(channelID, content string, attachments ...*discordgo.MessageAttachment) {
	f.bot.handleMessage(f.sender, &discordgo.Message{
		ChannelID:   channelID,
		Content:     content,
		Author:      &discordgo.User{ID: "42", Username: "reader"},
		Attachments: attachments,
	})
	f.wait(channelID)
}

func (f *botFixture) wait(channelID string) {
	f.bot.mu.Lock()
	ch := f.bot.channels[channelID]
	f.bot.mu.Unlock()
	if ch != nil {
		ch.ctrl.Wait()
	}
}

func (f *botFixture) attachment(name string) *discordgo.MessageAttachment {
	return &discordgo.MessageAttachment{Filename: name, URL: f.cdn.URL + "/" + name, Size: 64}
}

func TestBotDocumentConversation(t *testing.T) {
	f := newBotFixture(t)

	f.say("c1", "!doc what is this?")
	sent := f.sender.take()
	require.Len(t, sent, 2)
	assert.True(t, strings.HasPrefix(sent[0], models.WelcomeText))
	assert.Contains(t, sent[0], "Attach a PDF")
	assert.Contains(t, sent[1], models.NoDocumentNotice)

	f.say("c1", "!doc ", f.attachment("notes.txt"))
	assert.Equal(t, []string{"⚠️ " + models.NotPDFNotice}, f.sender.take())

	f.say("c1", "", f.attachment("manual.pdf"))
	assert.Equal(t, []string{"Processed 'manual.pdf' (2 pages, 1 chunks). You can now ask questions!"}, f.sender.take())
	assert.Equal(t, "manual.pdf", f.stub.DocumentName())

	f.say("c1", "!doc How do I install it?")
	sent = f.sender.take()
	require.Len(t, sent, 1)
	assert.Contains(t, sent[0], "How do I install it?")
	assert.Contains(t, sent[0], "stub answer")

	f.say("c1", "", f.attachment("other.pdf"))
	assert.Equal(t, []string{"⚠️ " + models.LoadedNotice}, f.sender.take())

	f.say("c1", "!doc reset")
	sent = f.sender.take()
	require.Len(t, sent, 1)
	assert.True(t, strings.HasPrefix(sent[0], models.WelcomeText))
	assert.Equal(t, 0, f.stub.HistoryLen())
}

func TestBotIgnoresUnaddressedMessages(t *testing.T) {
	f := newBotFixture(t)

	f.say("c1", "just chatting")
	f.say("general", "look at my cat", f.attachment("cat.png"))
	f.bot.handleMessage(f.sender, &discordgo.Message{
		ChannelID: "c1",
		Content:   "!doc hello",
		Author:    &discordgo.User{ID: "1", Bot: true},
	})

	assert.Empty(t, f.sender.take())
	assert.Empty(t, f.bot.channels)
}

func TestBotChannelsAreIndependent(t *testing.T) {
	f := newBotFixture(t)

	f.say("c1", "", f.attachment("manual.pdf"))
	f.say("c2", "!doc help")

	f.bot.mu.Lock()
	c1, c2 := f.bot.channels["c1"], f.bot.channels["c2"]
	f.bot.mu.Unlock()

	assert.True(t, c1.ctrl.Session().IsReady())
	assert.Equal(t, models.PhaseWelcome, c2.ctrl.Session().Phase)
}

func TestBotFailedDownload(t *testing.T) {
	f := newBotFixture(t)

	f.say("c1", "", f.attachment("missing.pdf"))
	sent := f.sender.take()
	assert.Contains(t, sent, "⚠️ "+models.UploadFailedText)
	assert.Empty(t, f.stub.DocumentName())
}

func TestBotOversizedAttachment(t *testing.T) {
	f := newBotFixture(t)

	att := f.attachment("huge.pdf")
	att.Size = maxAttachmentBytes + 1
	f.say("c1", "", att)

	sent := f.sender.take()
	require.NotEmpty(t, sent)
	assert.Contains(t, sent[len(sent)-1], "larger than 16 MiB")
}

func TestBotEmptyQuestionAndHelp(t *testing.T) {
	f := newBotFixture(t)

	f.say("c1", "!doc ")
	sent := f.sender.take()
	assert.Contains(t, sent[len(sent)-1], "Please provide a question after `!doc`")

	f.say("c1", "!doc help")
	sent = f.sender.take()
	require.Len(t, sent, 1)
	assert.Contains(t, sent[0], "`!doc reset`")
}

func TestBotStatus(t *testing.T) {
	f := newBotFixture(t)

	f.say("c1", "!doc status")
	sent := f.sender.take()
	last := sent[len(sent)-1]
	assert.Contains(t, last, "Session: welcome")
	assert.Contains(t, last, "mode=stub")
	assert.Contains(t, last, "channels=1")
}

func TestSendMessageSplitsLongReplies(t *testing.T) {
	f := newBotFixture(t)
	long := strings.Repeat("word ", 900)

	f.bot.sendMessage(f.sender, "c1", long)

	sent := f.sender.take()
	require.Greater(t, len(sent), 1)
	for i, chunk := range sent {
		assert.LessOrEqual(t, len(chunk), maxMessageLength)
		if i > 0 {
			assert.True(t, strings.HasPrefix(chunk, "...continued:\n"))
		}
	}
}

func TestSplitMessage(t *testing.T) {
	assert.Equal(t, []string{"short"}, splitMessage("short", 10))

	chunks := splitMessage("aaaa bbbb cccc dddd", 10)
	assert.Equal(t, []string{"aaaa bbbb", "cccc dddd"}, chunks)

	chunks = splitMessage(strings.Repeat("x", 25), 10)
	assert.Equal(t, []string{"xxxxxxxxxx", "xxxxxxxxxx", "xxxxx"}, chunks)

	wide := strings.Repeat("文", 1000)
	chunks = splitMessage(wide, 1900)
	require.Len(t, chunks, 2)
	for _, chunk := range chunks {
		assert.True(t, utf8.ValidString(chunk))
		assert.LessOrEqual(t, len(chunk), 1900)
	}
	assert.Equal(t, wide, strings.Join(chunks, ""))
}

func TestNewBotRequiresToken(t *testing.T) {
	_, err := NewBot("", "", nil, nil)
	assert.Error(t, err)
}

func TestNewBotWithoutLogger(t *testing.T) {
	bot := newBot("!doc ", services.NewBackendClient("http://127.0.0.1:1", 0, nil), nil)
	require.NotNil(t, bot.logger)
	assert.NotPanics(t, func() { bot.logger.Info("ready") })
}

func TestGetStatusBeforeStart(t *testing.T) {
	f := newBotFixture(t)
	status := f.bot.GetStatus()
	assert.Equal(t, "initialized_not_started", status["status"])
	assert.Equal(t, "!doc ", status["command_prefix"])
}
