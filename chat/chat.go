package chat

import (
	"context"
	"errors"
)

// ErrUnknownChannel is returned when a channel identifier cannot be resolved
// to something the bot can post to.
var ErrUnknownChannel = errors.New("unknown channel")

// Message is an inbound chat message.
type Message struct {
	ChannelID   string
	MessageID   string
	Author      string
	AuthorIsBot bool
	Text        string
}

// Channel is a resolved, postable destination.
type Channel interface {
	ID() string
	Name() string
	Send(ctx context.Context, text string) error
}

// ChannelInfo describes a channel for the control panel.
type ChannelInfo struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// Client is a connected chat platform.
type Client interface {
	// Run connects and blocks delivering messages to onMessage until ctx is done.
	Run(ctx context.Context, onMessage func(Message)) error
	// Ready is closed once the client can resolve channels and send.
	Ready() <-chan struct{}
	ResolveChannel(ctx context.Context, id string) (Channel, error)
	// Reply answers m inline in the channel it came from.
	Reply(ctx context.Context, m Message, text string) error
	Channels(ctx context.Context) ([]ChannelInfo, error)
}

// Sender is the subset of Client the feature modules post through.
type Sender interface {
	ResolveChannel(ctx context.Context, id string) (Channel, error)
	Reply(ctx context.Context, m Message, text string) error
}

// Post delivers text to target when it is set and resolvable, otherwise it
// answers m inline. The returned error is the inline reply's (or the post's
// when the target resolved).
func Post(ctx context.Context, s Sender, target string, m Message, text string) error {
	if target != "" {
		ch, err := s.ResolveChannel(ctx, target)
		if err == nil {
			return ch.Send(ctx, text)
		}
	}
	return s.Reply(ctx, m, text)
}
