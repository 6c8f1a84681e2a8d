package livenotify

import (
	"context"
	"log/slog"
	"math/rand/v2"

	"github.com/onnwee/herald/chat"
	"github.com/onnwee/herald/telemetry"
)

// Phrases is the pool announcements are drawn from.
var Phrases = []string{
	"WE ARE LIVE",
	"GET IN HERE",
	"RARE LiamA6 Livestream Experience",
	"streaming now :3",
}

// Announcement builds "<phrase> https://twitch.tv/<login>".
func Announcement(phrase, login string) string {
	return phrase + " https://twitch.tv/" + login
}

// ChannelResolver turns a destination id into a postable channel.
type ChannelResolver interface {
	ResolveChannel(ctx context.Context, id string) (chat.Channel, error)
}

// Outcome is the delivery result for one destination.
type Outcome struct {
	ChannelID string
	Err       error
}

// Report collects per-destination outcomes of one broadcast, in destination order.
type Report struct {
	Message  string
	Outcomes []Outcome
}

func (r Report) Sent() int   { return len(r.Outcomes) - r.Failed() }
func (r Report) Failed() int {
	n := 0
	for _, o := range r.Outcomes {
		if o.Err != nil {
			n++
		}
	}
	return n
}

// Broadcaster delivers one message to every destination independently. A
// destination that fails to resolve or send is logged and skipped.
type Broadcaster struct {
	Chat ChannelResolver
	Log  *slog.Logger
	// Pick returns an index in [0,n). Defaults to math/rand/v2.
	Pick func(n int) int
}

// NewBroadcaster returns a broadcaster posting through c.
func NewBroadcaster(c ChannelResolver) *Broadcaster {
	return &Broadcaster{Chat: c, Log: slog.Default().With(slog.String("component", "livenotify"))}
}

func (b *Broadcaster) logger() *slog.Logger {
	if b.Log != nil {
		return b.Log
	}
	return slog.Default()
}

// Phrase picks a random phrase from Phrases.
func (b *Broadcaster) Phrase() string {
	pick := b.Pick
	if pick == nil {
		pick = rand.IntN
	}
	return Phrases[pick(len(Phrases))]
}

// Broadcast sends text to each destination in order. No retries.
func (b *Broadcaster) Broadcast(ctx context.Context, destinations []string, text string) Report {
	rep := Report{Message: text, Outcomes: make([]Outcome, 0, len(destinations))}
	telemetry.TimeFunc(telemetry.BroadcastDuration, func() {
		for _, id := range destinations {
			err := b.deliver(ctx, id, text)
			if err != nil {
				b.logger().Warn("announcement failed", slog.String("channel", id), slog.Any("err", err))
			}
			rep.Outcomes = append(rep.Outcomes, Outcome{ChannelID: id, Err: err})
		}
	})
	telemetry.RecordAnnouncements(rep.Sent(), rep.Failed())
	return rep
}

func (b *Broadcaster) deliver(ctx context.Context, id, text string) error {
	ch, err := b.Chat.ResolveChannel(ctx, id)
	if err != nil {
		return err
	}
	return ch.Send(ctx, text)
}
