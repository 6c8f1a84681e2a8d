// Package livenotify announces when a Twitch channel goes live.
//
// A Poller checks the channel's status on a fixed interval and remembers the
// last observation. Only an offline to live edge triggers an announcement, which
// a Broadcaster posts to every configured destination. Status check failures
// count as offline, and the observed state is never persisted.
package livenotify

import (
	"context"
	"log/slog"
	"slices"
	"sync"
	"time"

	"go.opentelemetry.io/otel/attribute"

	"github.com/onnwee/herald/telemetry"
)

// StatusSource reports whether login is live. token may be empty.
type StatusSource interface {
	IsLive(ctx context.Context, login, token string) (bool, error)
}

// TokenProvider issues an access token for the status source.
type TokenProvider interface {
	Get(ctx context.Context) (string, error)
}

// Config is resolved once by Register from the settings snapshot.
type Config struct {
	Login        string
	Interval     time.Duration
	Destinations []string
}

// State is a snapshot of the poller for the control API.
type State struct {
	Login         string    `json:"login"`
	Destinations  []string  `json:"destinations"`
	IntervalMs    int64     `json:"pollMs"`
	LastWasLive   bool      `json:"live"`
	LastCheck     time.Time `json:"lastCheck,omitzero"`
	LastError     string    `json:"lastError,omitempty"`
	Authenticated bool      `json:"authenticated"`
	Announcements int       `json:"announcements"`
}

// Poller is an edge-triggered live detector.
type Poller struct {
	cfg    Config
	source StatusSource
	tokens TokenProvider
	bc     *Broadcaster
	log    *slog.Logger

	tickMu sync.Mutex // held for the duration of a tick

	tokenOnce sync.Once
	token     string

	mu            sync.RWMutex
	lastWasLive   bool
	lastCheck     time.Time
	lastErr       string
	announcements int
}

// NewPoller builds a poller. tokens may be nil, in which case status checks are unauthenticated.
func NewPoller(cfg Config, source StatusSource, tokens TokenProvider, bc *Broadcaster) *Poller {
	if cfg.Interval <= 0 {
		cfg.Interval = time.Minute
	}
	cfg.Destinations = slices.Clone(cfg.Destinations)
	return &Poller{
		cfg:    cfg,
		source: source,
		tokens: tokens,
		bc:     bc,
		log:    slog.Default().With(slog.String("component", "livenotify"), slog.String("login", cfg.Login)),
	}
}

// Run ticks immediately, then every interval until ctx is done.
func (p *Poller) Run(ctx context.Context) {
	p.Tick(ctx)
	t := time.NewTicker(p.cfg.Interval)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			p.log.Info("live notifier stopped")
			return
		case <-t.C:
			p.Tick(ctx)
		}
	}
}

// Tick performs one status check and broadcasts on an offline to live edge.
// It returns the broadcast report and true when an announcement was made. A
// call that arrives while another tick is in flight is skipped.
func (p *Poller) Tick(ctx context.Context) (Report, bool) {
	if !p.tickMu.TryLock() {
		p.log.Debug("previous tick still running; skipping")
		return Report{}, false
	}
	defer p.tickMu.Unlock()

	ctx, span := telemetry.StartSpan(ctx, "livenotify", "livenotify.tick", attribute.String("twitch.login", p.cfg.Login))
	defer span.End()

	isLive := p.checkIsLive(ctx)

	p.mu.Lock()
	wasLive := p.lastWasLive
	p.lastWasLive = isLive
	p.mu.Unlock()

	switch {
	case !wasLive && isLive:
		telemetry.IncLiveTransition()
		msg := Announcement(p.bc.Phrase(), p.cfg.Login)
		p.log.Info("stream went live; announcing", slog.Int("destinations", len(p.cfg.Destinations)))
		rep := p.bc.Broadcast(ctx, p.cfg.Destinations, msg)
		p.mu.Lock()
		p.announcements++
		p.mu.Unlock()
		span.SetAttributes(attribute.Int("announce.sent", rep.Sent()), attribute.Int("announce.failed", rep.Failed()))
		return rep, true
	case wasLive && !isLive:
		p.log.Info("stream went offline")
	}
	return Report{}, false
}

// checkIsLive queries the status source. Any failure counts as offline.
func (p *Poller) checkIsLive(ctx context.Context) bool {
	token := p.ensureToken(ctx)
	ctx, cancel := context.WithTimeout(ctx, p.cfg.Interval)
	defer cancel()

	var (
		live bool
		err  error
	)
	telemetry.TimeFunc(telemetry.LiveCheckDuration, func() {
		live, err = p.source.IsLive(ctx, p.cfg.Login, token)
	})
	telemetry.RecordLiveCheck(live, err)

	p.mu.Lock()
	p.lastCheck = time.Now().UTC()
	p.lastErr = ""
	if err != nil {
		p.lastErr = err.Error()
	}
	p.mu.Unlock()

	if err != nil {
		telemetry.RecordError(ctx, err)
		p.log.Warn("twitch status check failed", slog.Any("err", err))
		return false
	}
	return live
}

// ensureToken fetches the token once. On failure the poller stays unauthenticated.
func (p *Poller) ensureToken(ctx context.Context) string {
	p.tokenOnce.Do(func() {
		if p.tokens == nil {
			p.log.Info("no twitch app credentials; polling unauthenticated")
			return
		}
		tok, err := p.tokens.Get(ctx)
		if err != nil {
			p.log.Warn("twitch token request failed; polling unauthenticated", slog.Any("err", err))
			return
		}
		p.mu.Lock()
		p.token = tok
		p.mu.Unlock()
	})
	return p.token
}

// State returns a snapshot of the poller.
func (p *Poller) State() State {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return State{
		Login:         p.cfg.Login,
		Destinations:  slices.Clone(p.cfg.Destinations),
		IntervalMs:    p.cfg.Interval.Milliseconds(),
		LastWasLive:   p.lastWasLive,
		LastCheck:     p.lastCheck,
		LastError:     p.lastErr,
		Authenticated: p.token != "",
		Announcements: p.announcements,
	}
}
