// Package twitchirc adapts Twitch chat (IRC via go-twitch-irc) to chat.Client.
// Channel identifiers are channel logins; the bot joins a channel the first
// time it is resolved.
//
// Credentials: the IRC client requires a bot username and a user OAuth token
// with chat:read/chat:edit scopes. An app access token cannot be used here.
package twitchirc

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"regexp"
	"sort"
	"strings"
	"sync"

	twitch "github.com/gempir/go-twitch-irc/v4"

	"github.com/onnwee/herald/chat"
)

var loginRe = regexp.MustCompile(`^[a-z0-9_]{3,25}$`)

// ircClient is the subset of *twitch.Client the adapter uses.
type ircClient interface {
	OnConnect(func())
	OnPrivateMessage(func(twitch.PrivateMessage))
	Join(channels ...string)
	Say(channel, text string)
	Reply(channel, parentMsgID, text string)
	Connect() error
	Disconnect() error
}

// Config holds the bot identity and the channels joined at startup.
type Config struct {
	Username string
	OAuth    string
	Channels []string
}

// Client is a chat.Client backed by Twitch IRC.
type Client struct {
	irc      ircClient
	username string
	log      *slog.Logger
	ready    chan struct{}
	once     sync.Once

	mu     sync.Mutex
	joined map[string]bool
}

// New builds an unconnected client.
func New(cfg Config) (*Client, error) {
	if cfg.Username == "" || cfg.OAuth == "" {
		return nil, errors.New("twitch chat requires TWITCH_BOT_USERNAME and TWITCH_OAUTH_TOKEN")
	}
	oauth := cfg.OAuth
	if !strings.HasPrefix(oauth, "oauth:") {
		oauth = "oauth:" + oauth
	}
	c := newWithIRC(twitch.NewClient(cfg.Username, oauth), cfg.Username)
	for _, ch := range cfg.Channels {
		if login := normalize(ch); loginRe.MatchString(login) {
			c.joined[login] = true
		}
	}
	return c, nil
}

func newWithIRC(irc ircClient, username string) *Client {
	return &Client{
		irc:      irc,
		username: strings.ToLower(username),
		log:      slog.Default().With(slog.String("component", "twitchirc")),
		ready:    make(chan struct{}),
		joined:   map[string]bool{},
	}
}

func normalize(ch string) string {
	return strings.ToLower(strings.TrimPrefix(strings.TrimSpace(ch), "#"))
}

func (c *Client) Ready() <-chan struct{} { return c.ready }

// Run connects and blocks until ctx is done or the connection fails.
func (c *Client) Run(ctx context.Context, onMessage func(chat.Message)) error {
	c.irc.OnConnect(func() {
		c.log.Info("connected to twitch chat", slog.String("user", c.username))
		c.once.Do(func() { close(c.ready) })
	})
	c.irc.OnPrivateMessage(func(msg twitch.PrivateMessage) {
		onMessage(chat.Message{
			ChannelID:   msg.Channel,
			MessageID:   msg.ID,
			Author:      msg.User.Name,
			AuthorIsBot: strings.EqualFold(msg.User.Name, c.username),
			Text:        msg.Message,
		})
	})

	c.mu.Lock()
	initial := make([]string, 0, len(c.joined))
	for ch := range c.joined {
		initial = append(initial, ch)
	}
	c.mu.Unlock()
	if len(initial) > 0 {
		c.irc.Join(initial...)
	}

	go func() {
		<-ctx.Done()
		if err := c.irc.Disconnect(); err != nil {
			c.log.Debug("twitch chat disconnect", slog.Any("err", err))
		}
	}()

	err := c.irc.Connect()
	if ctx.Err() != nil || errors.Is(err, twitch.ErrClientDisconnected) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("twitch chat connect: %w", err)
	}
	return nil
}

// ResolveChannel validates the login and joins it if needed.
func (c *Client) ResolveChannel(_ context.Context, id string) (chat.Channel, error) {
	login := normalize(id)
	if !loginRe.MatchString(login) {
		return nil, fmt.Errorf("resolve %q: %w", id, chat.ErrUnknownChannel)
	}
	c.mu.Lock()
	isNew := !c.joined[login]
	c.joined[login] = true
	c.mu.Unlock()
	if isNew {
		c.irc.Join(login)
	}
	return &channel{c: c, login: login}, nil
}

func (c *Client) Reply(_ context.Context, m chat.Message, text string) error {
	login := normalize(m.ChannelID)
	if login == "" {
		return fmt.Errorf("reply: %w", chat.ErrUnknownChannel)
	}
	for _, line := range lines(text) {
		if m.MessageID != "" {
			c.irc.Reply(login, m.MessageID, line)
		} else {
			c.irc.Say(login, line)
		}
	}
	return nil
}

func (c *Client) Channels(context.Context) ([]chat.ChannelInfo, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]chat.ChannelInfo, 0, len(c.joined))
	for login := range c.joined {
		out = append(out, chat.ChannelInfo{ID: login, Name: "#" + login})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

// lines renders text for IRC, which carries one line per PRIVMSG.
func lines(text string) []string {
	var out []string
	for _, l := range strings.Split(chat.RenderPlain(text), "\n") {
		if l = strings.TrimSpace(l); l != "" {
			out = append(out, l)
		}
	}
	return out
}

type channel struct {
	c     *Client
	login string
}

func (ch *channel) ID() string   { return ch.login }
func (ch *channel) Name() string { return "#" + ch.login }

func (ch *channel) Send(_ context.Context, text string) error {
	for _, line := range lines(text) {
		ch.c.irc.Say(ch.login, line)
	}
	return nil
}
