package chat

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/google/uuid"

	"github.com/onnwee/herald/telemetry"
)

// HandlerFunc handles one inbound message.
type HandlerFunc func(ctx context.Context, m Message)

type route struct {
	name string
	fn   HandlerFunc
}

// Router fans inbound messages out to the registered handlers. Each handler
// runs on its own goroutine so a slow lookup never delays another module.
type Router struct {
	mu     sync.RWMutex
	routes []route
	wg     sync.WaitGroup
}

// NewRouter returns an empty router.
func NewRouter() *Router { return &Router{} }

// Handle registers fn under name (used in logs).
func (r *Router) Handle(name string, fn HandlerFunc) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.routes = append(r.routes, route{name: name, fn: fn})
}

// Dispatch starts every handler for m and returns immediately.
func (r *Router) Dispatch(ctx context.Context, m Message) {
	r.mu.RLock()
	routes := append([]route(nil), r.routes...)
	r.mu.RUnlock()
	ctx = telemetry.WithCorrelation(ctx, uuid.NewString())
	for _, rt := range routes {
		r.wg.Add(1)
		go func(rt route) {
			defer r.wg.Done()
			defer func() {
				if rec := recover(); rec != nil {
					telemetry.LoggerWithCorr(ctx).Error("chat handler panic",
						slog.String("handler", rt.name), slog.String("panic", fmt.Sprint(rec)))
				}
			}()
			rt.fn(ctx, m)
		}(rt)
	}
}

// Wait blocks until every dispatched handler has returned.
func (r *Router) Wait() { r.wg.Wait() }
