// Package telegram adapts a Telegram bot (long polling via telebot) to chat.Client.
// Channel identifiers are Telegram chat ids in decimal.
package telegram

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	tele "gopkg.in/telebot.v4"

	"github.com/onnwee/herald/chat"
)

// Config holds the bot credentials.
type Config struct {
	Token       string
	PollTimeout time.Duration
	// APIURL overrides the Bot API endpoint (tests).
	APIURL string
}

// Client is a chat.Client backed by a Telegram bot.
type Client struct {
	bot   *tele.Bot
	log   *slog.Logger
	ready chan struct{}
	once  sync.Once

	mu   sync.Mutex
	seen map[int64]string // chat id -> display name
}

// New validates the token (getMe) and prepares the long poller. It does not start polling.
func New(cfg Config) (*Client, error) {
	if strings.TrimSpace(cfg.Token) == "" {
		return nil, errors.New("telegram token is empty")
	}
	timeout := cfg.PollTimeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	b, err := tele.NewBot(tele.Settings{
		Token:  cfg.Token,
		URL:    cfg.APIURL,
		Poller: &tele.LongPoller{Timeout: timeout},
	})
	if err != nil {
		return nil, fmt.Errorf("telegram bot init: %w", err)
	}
	return &Client{
		bot:   b,
		log:   slog.Default().With(slog.String("component", "telegram")),
		ready: make(chan struct{}),
		seen:  map[int64]string{},
	}, nil
}

func (c *Client) Ready() <-chan struct{} { return c.ready }

// Run starts long polling and blocks until ctx is done.
func (c *Client) Run(ctx context.Context, onMessage func(chat.Message)) error {
	c.bot.Handle(tele.OnText, func(tc tele.Context) error {
		m := tc.Message()
		if m == nil || m.Chat == nil {
			return nil
		}
		c.remember(m.Chat)
		msg := chat.Message{
			ChannelID: strconv.FormatInt(m.Chat.ID, 10),
			MessageID: strconv.Itoa(m.ID),
			Text:      m.Text,
		}
		if m.Sender != nil {
			msg.Author = m.Sender.Username
			msg.AuthorIsBot = m.Sender.IsBot
		}
		onMessage(msg)
		return nil
	})

	done := make(chan struct{})
	go func() {
		defer close(done)
		c.log.Info("polling started", slog.String("bot", c.bot.Me.Username))
		c.bot.Start() // blocks until Stop() called
	}()
	c.once.Do(func() { close(c.ready) })

	<-ctx.Done()
	c.bot.Stop()
	select {
	case <-done:
		c.log.Info("polling stopped")
	case <-time.After(2 * time.Second):
		c.log.Warn("telegram stop grace elapsed; continuing shutdown")
	}
	return nil
}

func (c *Client) remember(ch *tele.Chat) {
	c.mu.Lock()
	c.seen[ch.ID] = chatName(ch)
	c.mu.Unlock()
}

func chatName(ch *tele.Chat) string {
	switch {
	case ch.Title != "":
		return ch.Title
	case ch.Username != "":
		return "@" + ch.Username
	case ch.FirstName != "":
		return strings.TrimSpace(ch.FirstName + " " + ch.LastName)
	}
	return strconv.FormatInt(ch.ID, 10)
}

// ResolveChannel looks the chat up with getChat. Non-numeric ids and chats the
// bot cannot see yield chat.ErrUnknownChannel.
func (c *Client) ResolveChannel(_ context.Context, id string) (chat.Channel, error) {
	n, err := strconv.ParseInt(strings.TrimSpace(id), 10, 64)
	if err != nil {
		return nil, fmt.Errorf("resolve %q: %w", id, chat.ErrUnknownChannel)
	}
	ch, err := c.bot.ChatByID(n)
	if err != nil {
		return nil, fmt.Errorf("resolve %q: %v: %w", id, err, chat.ErrUnknownChannel)
	}
	c.remember(ch)
	return &channel{bot: c.bot, chat: ch}, nil
}

func (c *Client) Reply(_ context.Context, m chat.Message, text string) error {
	chatID, err := strconv.ParseInt(m.ChannelID, 10, 64)
	if err != nil {
		return fmt.Errorf("reply: bad chat id %q: %w", m.ChannelID, err)
	}
	opts := sendOptions()
	if msgID, err := strconv.Atoi(m.MessageID); err == nil {
		opts.ReplyTo = &tele.Message{ID: msgID, Chat: &tele.Chat{ID: chatID}}
	}
	_, err = c.bot.Send(&tele.Chat{ID: chatID}, chat.RenderHTML(text), opts)
	return err
}

// Channels lists the chats seen since startup. The Bot API has no call that
// enumerates a bot's chats.
func (c *Client) Channels(context.Context) ([]chat.ChannelInfo, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]chat.ChannelInfo, 0, len(c.seen))
	for id, name := range c.seen {
		out = append(out, chat.ChannelInfo{ID: strconv.FormatInt(id, 10), Name: name})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

func sendOptions() *tele.SendOptions {
	return &tele.SendOptions{ParseMode: tele.ModeHTML, DisableWebPagePreview: true}
}

type channel struct {
	bot  *tele.Bot
	chat *tele.Chat
}

func (ch *channel) ID() string   { return strconv.FormatInt(ch.chat.ID, 10) }
func (ch *channel) Name() string { return chatName(ch.chat) }

func (ch *channel) Send(_ context.Context, text string) error {
	_, err := ch.bot.Send(ch.chat, chat.RenderHTML(text), sendOptions())
	return err
}
