package server

import (
	"log/slog"
	"net/http"
	"net/url"
	"time"

	"github.com/gorilla/websocket"
)

const (
	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = pongWait * 9 / 10
)

// HandleLogs returns the buffered log lines, oldest first.
func (h *Handlers) HandleLogs(w http.ResponseWriter, _ *http.Request) {
	lines := []string{}
	if h.deps.Logs != nil {
		lines = h.deps.Logs.Lines()
	}
	writeJSON(w, http.StatusOK, lines)
}

func (h *Handlers) upgrader() websocket.Upgrader {
	allowed := h.deps.AllowedOrigins
	return websocket.Upgrader{
		CheckOrigin: func(r *http.Request) bool {
			origin := r.Header.Get("Origin")
			if origin == "" || len(allowed) == 0 {
				return true
			}
			if isOriginAllowed(origin, allowed) {
				return true
			}
			u, err := url.Parse(origin)
			if err != nil {
				return false
			}
			host := u.Hostname()
			return host == "localhost" || host == "127.0.0.1" || host == "::1"
		},
	}
}

// HandleLogStream upgrades to a websocket, sends the backlog, then forwards
// new lines until the client goes away or the server shuts down.
func (h *Handlers) HandleLogStream(w http.ResponseWriter, r *http.Request) {
	if h.deps.Logs == nil {
		writeError(w, http.StatusServiceUnavailable, "log buffer not configured")
		return
	}
	up := h.upgrader()
	conn, err := up.Upgrade(w, r, nil)
	if err != nil {
		slog.Warn("log stream upgrade failed", slog.Any("err", err))
		return
	}
	defer func() { _ = conn.Close() }()

	backlog, lines, cancel := h.deps.Logs.Follow()
	defer cancel()

	// read pump: only needed to observe pongs and close frames
	gone := make(chan struct{})
	go func() {
		defer close(gone)
		conn.SetReadLimit(512)
		_ = conn.SetReadDeadline(time.Now().Add(pongWait))
		conn.SetPongHandler(func(string) error {
			return conn.SetReadDeadline(time.Now().Add(pongWait))
		})
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	send := func(line string) bool {
		_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
		return conn.WriteMessage(websocket.TextMessage, []byte(line)) == nil
	}
	for _, line := range backlog {
		if !send(line) {
			return
		}
	}

	ping := time.NewTicker(pingPeriod)
	defer ping.Stop()
	for {
		select {
		case line, ok := <-lines:
			if !ok || !send(line) {
				return
			}
		case <-ping.C:
			_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		case <-gone:
			return
		case <-h.ctx.Done():
			_ = conn.WriteControl(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseGoingAway, "shutting down"), time.Now().Add(time.Second))
			return
		}
	}
}
