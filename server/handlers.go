package server

import (
	"context"
	"database/sql"
	"time"

	"github.com/onnwee/herald/chat"
	"github.com/onnwee/herald/config"
	"github.com/onnwee/herald/livenotify"
	"github.com/onnwee/herald/telemetry"
)

// ChannelLister is the part of chat.Client the API needs.
type ChannelLister interface {
	Ready() <-chan struct{}
	Channels(ctx context.Context) ([]chat.ChannelInfo, error)
}

// Deps are the collaborators of the control API. Chat, Notifier, Restart and DB may be nil.
type Deps struct {
	Settings *config.Manager
	Logs     *telemetry.LogRing
	Chat     ChannelLister
	// Notifier returns the running poller, or nil while none is registered.
	Notifier       func() *livenotify.Poller
	Restart        func()
	RestartDelay   time.Duration
	DB             *sql.DB
	AllowedOrigins []string
}

// Handlers holds dependencies for all HTTP handlers.
type Handlers struct {
	ctx  context.Context
	deps Deps
}

// NewHandlers creates a new Handlers instance with the given dependencies.
func NewHandlers(ctx context.Context, d Deps) *Handlers {
	return &Handlers{ctx: ctx, deps: d}
}
