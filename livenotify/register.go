package livenotify

import (
	"context"
	"log/slog"

	"github.com/onnwee/herald/config"
)

// Deps are the collaborators Register wires together.
type Deps struct {
	Settings config.Settings
	Chat     ChannelResolver
	Source   StatusSource
	// Tokens may be nil when no app credentials are configured.
	Tokens TokenProvider
}

// Register starts the notifier in the background when the twitch module is
// enabled and has destinations. It returns nil when nothing was started; an
// empty destination set is logged once and makes no network calls.
func Register(ctx context.Context, d Deps) *Poller {
	log := slog.Default().With(slog.String("component", "livenotify"))
	tw := d.Settings.Twitch
	if !tw.Enabled {
		log.Info("twitch notifier disabled")
		return nil
	}
	dests := tw.Destinations()
	if len(dests) == 0 {
		log.Info("twitch notifier has no destination channels; not starting")
		return nil
	}
	if tw.Login == "" {
		log.Warn("twitch notifier has no channel login; not starting")
		return nil
	}
	p := NewPoller(Config{
		Login:        tw.Login,
		Interval:     tw.PollInterval(),
		Destinations: dests,
	}, d.Source, d.Tokens, NewBroadcaster(d.Chat))
	log.Info("twitch notifier started",
		slog.String("login", tw.Login),
		slog.Int("destinations", len(dests)),
		slog.Duration("interval", tw.PollInterval()))
	go p.Run(ctx)
	return p
}
