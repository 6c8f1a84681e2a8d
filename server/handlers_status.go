package server

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/onnwee/herald/livenotify"
	"github.com/onnwee/herald/telemetry"
)

// StatusResponse is the body of GET /api/status.
type StatusResponse struct {
	Enabled   bool `json:"enabled"`
	Running   bool `json:"running"`
	ChatReady bool `json:"chatReady"`
	livenotify.State
}

// HandleStatus reports the live notifier state. When no poller is running the
// login, destinations and interval come from the current settings.
func (h *Handlers) HandleStatus(w http.ResponseWriter, _ *http.Request) {
	s := h.deps.Settings.Snapshot()
	resp := StatusResponse{Enabled: s.Twitch.Enabled}
	if h.deps.Chat != nil {
		select {
		case <-h.deps.Chat.Ready():
			resp.ChatReady = true
		default:
		}
	}

	var p *livenotify.Poller
	if h.deps.Notifier != nil {
		p = h.deps.Notifier()
	}
	if p != nil {
		resp.Running = true
		resp.State = p.State()
	} else {
		resp.State = livenotify.State{
			Login:        s.Twitch.Login,
			Destinations: s.Twitch.Destinations(),
			IntervalMs:   s.Twitch.PollInterval().Milliseconds(),
		}
	}
	if resp.Destinations == nil {
		resp.Destinations = []string{}
	}
	writeJSON(w, http.StatusOK, resp)
}

// HandleRestart acknowledges, then triggers a graceful shutdown after the
// configured delay so the response reaches the client first.
func (h *Handlers) HandleRestart(w http.ResponseWriter, r *http.Request) {
	if h.deps.Restart == nil {
		writeError(w, http.StatusNotImplemented, "restart not supported")
		return
	}
	telemetry.LoggerWithCorr(r.Context()).Info("restart requested via web UI", slog.String("component", "http"), slog.Duration("delay", h.deps.RestartDelay))
	writeJSON(w, http.StatusOK, map[string]bool{"ok": true})
	time.AfterFunc(h.deps.RestartDelay, h.deps.Restart)
}
