package server

import (
	"io"
	"log/slog"
	"net/http"

	"github.com/onnwee/herald/chat"
	"github.com/onnwee/herald/config"
	"github.com/onnwee/herald/telemetry"
)

const maxConfigBody = 64 << 10

// HandleGetConfig returns the current settings.
func (h *Handlers) HandleGetConfig(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, h.deps.Settings.Snapshot())
}

// HandlePutConfig applies a lenient patch, persists and returns the new settings.
// Fields of the wrong type are ignored; only a body that is not a JSON object is rejected.
func (h *Handlers) HandlePutConfig(w http.ResponseWriter, r *http.Request) {
	log := telemetry.LoggerWithCorr(r.Context()).With(slog.String("component", "http"))
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxConfigBody))
	if err != nil {
		writeError(w, http.StatusRequestEntityTooLarge, "request body too large")
		return
	}
	patch, err := config.ParsePatch(body)
	if err != nil {
		writeError(w, http.StatusBadRequest, "body must be a JSON object")
		return
	}

	updated := h.deps.Settings.Update(patch)
	log.Info("Config updated via web UI")
	if err := h.deps.Settings.Save(r.Context()); err != nil {
		log.Error("failed to persist settings", slog.Any("err", err))
		writeError(w, http.StatusInternalServerError, "failed to save config")
		return
	}
	writeJSON(w, http.StatusOK, updated)
}

// HandleChannels lists the channels the chat client knows about.
func (h *Handlers) HandleChannels(w http.ResponseWriter, r *http.Request) {
	if h.deps.Chat == nil {
		writeError(w, http.StatusInternalServerError, "chat client not configured")
		return
	}
	chans, err := h.deps.Chat.Channels(r.Context())
	if err != nil {
		telemetry.LoggerWithCorr(r.Context()).Error("failed to list channels", slog.Any("err", err))
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if chans == nil {
		chans = []chat.ChannelInfo{}
	}
	writeJSON(w, http.StatusOK, chans)
}
