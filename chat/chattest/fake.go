// Package chattest provides an in-memory chat.Client for tests.
package chattest

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/onnwee/herald/chat"
)

// Sent is one recorded outbound message.
type Sent struct {
	ChannelID string
	ReplyTo   string // inbound message id for inline replies
	Text      string
}

// Fake records every send. Channels listed in Unknown fail to resolve and
// channels listed in Failing resolve but fail on Send.
type Fake struct {
	mu       sync.Mutex
	Known    []chat.ChannelInfo
	Unknown  map[string]bool
	Failing  map[string]bool
	ListErr  error
	sent     []Sent
	resolves int
	ready    chan struct{}
	once     sync.Once
}

// New returns a ready fake.
func New() *Fake {
	f := &Fake{Unknown: map[string]bool{}, Failing: map[string]bool{}, ready: make(chan struct{})}
	f.MarkReady()
	return f
}

// MarkReady closes the Ready channel.
func (f *Fake) MarkReady() { f.once.Do(func() { close(f.ready) }) }

func (f *Fake) Ready() <-chan struct{} { return f.ready }

// Run blocks until ctx is done; inbound messages are injected by calling the
// handler directly in tests.
func (f *Fake) Run(ctx context.Context, _ func(chat.Message)) error {
	<-ctx.Done()
	return nil
}

func (f *Fake) ResolveChannel(_ context.Context, id string) (chat.Channel, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.resolves++
	if f.Unknown[id] {
		return nil, fmt.Errorf("resolve %s: %w", id, chat.ErrUnknownChannel)
	}
	return &channel{f: f, id: id}, nil
}

func (f *Fake) Reply(_ context.Context, m chat.Message, text string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sent = append(f.sent, Sent{ChannelID: m.ChannelID, ReplyTo: m.MessageID, Text: text})
	return nil
}

func (f *Fake) Channels(context.Context) ([]chat.ChannelInfo, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.ListErr != nil {
		return nil, f.ListErr
	}
	return append([]chat.ChannelInfo(nil), f.Known...), nil
}

// Sent returns a copy of every recorded message.
func (f *Fake) Sent() []Sent {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]Sent(nil), f.sent...)
}

// Resolves returns how many ResolveChannel calls were made.
func (f *Fake) Resolves() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.resolves
}

// ErrSendFailed is returned by Send for channels in Failing.
var ErrSendFailed = errors.New("send failed")

type channel struct {
	f  *Fake
	id string
}

func (c *channel) ID() string   { return c.id }
func (c *channel) Name() string { return "#" + c.id }

func (c *channel) Send(_ context.Context, text string) error {
	c.f.mu.Lock()
	defer c.f.mu.Unlock()
	if c.f.Failing[c.id] {
		return ErrSendFailed
	}
	c.f.sent = append(c.f.sent, Sent{ChannelID: c.id, Text: text})
	return nil
}
