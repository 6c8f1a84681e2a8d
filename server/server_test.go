package server

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"slices"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"github.com/onnwee/herald/chat"
	"github.com/onnwee/herald/chat/chattest"
	"github.com/onnwee/herald/config"
	"github.com/onnwee/herald/livenotify"
	"github.com/onnwee/herald/store"
	"github.com/onnwee/herald/telemetry"
)

type testEnv struct {
	srv      *httptest.Server
	manager  *config.Manager
	file     *store.File
	chat     *chattest.Fake
	logs     *telemetry.LogRing
	restarts chan struct{}
}

func newTestEnv(t *testing.T, mutate func(*Deps)) *testEnv {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)

	file := store.NewFile(filepath.Join(t.TempDir(), "config.yaml"))
	defaults := config.DefaultSettings(&config.Config{TwitchChannelLogin: "liama6", TwitchPollMs: 60_000})
	env := &testEnv{
		manager:  config.NewManager(defaults, file),
		file:     file,
		chat:     chattest.New(),
		logs:     telemetry.NewLogRing(10),
		restarts: make(chan struct{}, 1),
	}
	d := Deps{
		Settings: env.manager,
		Logs:     env.logs,
		Chat:     env.chat,
		Restart:  func() { env.restarts <- struct{}{} },
	}
	if mutate != nil {
		mutate(&d)
	}
	env.srv = httptest.NewServer(NewRouter(ctx, d))
	t.Cleanup(env.srv.Close)
	return env
}

func (e *testEnv) do(t *testing.T, method, path, body string) *http.Response {
	t.Helper()
	req, err := http.NewRequest(method, e.srv.URL+path, strings.NewReader(body))
	if err != nil {
		t.Fatal(err)
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("%s %s: %v", method, path, err)
	}
	t.Cleanup(func() { _ = resp.Body.Close() })
	return resp
}

func decode[T any](t *testing.T, resp *http.Response) T {
	t.Helper()
	var v T
	if err := json.NewDecoder(resp.Body).Decode(&v); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	return v
}

func TestHealthz(t *testing.T) {
	env := newTestEnv(t, nil)
	resp := env.do(t, http.MethodGet, "/healthz", "")
	if resp.StatusCode != http.StatusOK {
		t.Errorf("healthz status = %d", resp.StatusCode)
	}
}

func TestReadyz(t *testing.T) {
	t.Run("ready", func(t *testing.T) {
		env := newTestEnv(t, nil)
		resp := env.do(t, http.MethodGet, "/readyz", "")
		if resp.StatusCode != http.StatusOK {
			t.Errorf("status = %d", resp.StatusCode)
		}
	})
	t.Run("chat not connected", func(t *testing.T) {
		env := newTestEnv(t, func(d *Deps) { d.Chat = &chattest.Fake{} })
		resp := env.do(t, http.MethodGet, "/readyz", "")
		if resp.StatusCode != http.StatusServiceUnavailable {
			t.Fatalf("status = %d", resp.StatusCode)
		}
		body := decode[map[string]string](t, resp)
		if body["failed_check"] != "chat" {
			t.Errorf("body = %v", body)
		}
	})
}

func TestGetConfig(t *testing.T) {
	env := newTestEnv(t, nil)
	resp := env.do(t, http.MethodGet, "/api/config", "")
	s := decode[config.Settings](t, resp)
	if s.Twitch.Login != "liama6" || !s.Cards.Enabled || s.Theme != config.ThemeAuto {
		t.Errorf("settings = %+v", s)
	}
}

func TestPutConfigAppliesLenientPatch(t *testing.T) {
	prev := slog.Default()
	t.Cleanup(func() { slog.SetDefault(prev) })
	ring := telemetry.NewLogRing(50)
	slog.SetDefault(slog.New(ring.Handler(slog.NewTextHandler(&bytes.Buffer{}, nil))))

	env := newTestEnv(t, nil)
	body := `{"cards":{"enabled":false,"channelId":"55"},"stock":{"enabled":"yes","timeframes":["1h",3]},"theme":"neon"}`
	resp := env.do(t, http.MethodPut, "/api/config", body)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d", resp.StatusCode)
	}
	got := decode[config.Settings](t, resp)
	if got.Cards.Enabled || got.Cards.ChannelID != "55" {
		t.Errorf("cards = %+v", got.Cards)
	}
	if !got.Stock.Enabled || !slices.Equal(got.Stock.Timeframes, []string{"1h"}) {
		t.Errorf("stock = %+v", got.Stock)
	}
	if got.Theme != config.ThemeAuto {
		t.Errorf("theme = %q, want unchanged", got.Theme)
	}

	persisted := config.Settings{}
	if err := env.file.Load(context.Background(), &persisted); err != nil {
		t.Fatalf("settings not persisted: %v", err)
	}
	if persisted.Cards.ChannelID != "55" {
		t.Errorf("persisted cards = %+v", persisted.Cards)
	}

	found := slices.ContainsFunc(ring.Lines(), func(l string) bool {
		return strings.Contains(l, "Config updated via web UI")
	})
	if !found {
		t.Errorf("update not logged, lines = %q", ring.Lines())
	}
}

func TestPutConfigClearsChannelID(t *testing.T) {
	env := newTestEnv(t, nil)
	env.do(t, http.MethodPut, "/api/config", `{"twitch":{"channelId":"9"}}`)
	resp := env.do(t, http.MethodPut, "/api/config", `{"twitch":{"channelId":""}}`)
	if got := decode[config.Settings](t, resp); got.Twitch.ChannelID != "" {
		t.Errorf("channelId = %q, want cleared", got.Twitch.ChannelID)
	}
}

func TestPutConfigSkipsMalformedModules(t *testing.T) {
	env := newTestEnv(t, nil)
	resp := env.do(t, http.MethodPut, "/api/config", `{"cards":true,"twitch":"off","stock":{"enabled":false},"theme":"dark"}`)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want 200", resp.StatusCode)
	}
	got := decode[config.Settings](t, resp)
	if !got.Cards.Enabled || !got.Twitch.Enabled {
		t.Errorf("malformed modules changed: cards=%+v twitch=%+v", got.Cards, got.Twitch.ModuleSettings)
	}
	if got.Stock.Enabled || got.Theme != config.ThemeDark {
		t.Errorf("well-typed fields not applied: stock=%+v theme=%q", got.Stock, got.Theme)
	}
}

func TestPutConfigRejectsNonObject(t *testing.T) {
	env := newTestEnv(t, nil)
	resp := env.do(t, http.MethodPut, "/api/config", `[1,2]`)
	if resp.StatusCode != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", resp.StatusCode)
	}
}

func TestChannels(t *testing.T) {
	t.Run("ok", func(t *testing.T) {
		env := newTestEnv(t, nil)
		env.chat.Known = []chat.ChannelInfo{{ID: "1", Name: "general"}}
		got := decode[[]chat.ChannelInfo](t, env.do(t, http.MethodGet, "/api/channels", ""))
		if len(got) != 1 || got[0].Name != "general" {
			t.Errorf("channels = %+v", got)
		}
	})
	t.Run("error", func(t *testing.T) {
		env := newTestEnv(t, nil)
		env.chat.ListErr = errors.New("boom")
		resp := env.do(t, http.MethodGet, "/api/channels", "")
		if resp.StatusCode != http.StatusInternalServerError {
			t.Fatalf("status = %d", resp.StatusCode)
		}
		if body := decode[map[string]string](t, resp); body["error"] != "boom" {
			t.Errorf("body = %v", body)
		}
	})
}

type staticSource bool

func (s staticSource) IsLive(context.Context, string, string) (bool, error) { return bool(s), nil }

func TestStatus(t *testing.T) {
	t.Run("no poller", func(t *testing.T) {
		env := newTestEnv(t, nil)
		got := decode[map[string]any](t, env.do(t, http.MethodGet, "/api/status", ""))
		if got["running"] != false || got["login"] != "liama6" || got["enabled"] != true {
			t.Errorf("status = %v", got)
		}
		if got["pollMs"] != float64(60_000) {
			t.Errorf("pollMs = %v", got["pollMs"])
		}
	})
	t.Run("poller", func(t *testing.T) {
		fake := chattest.New()
		p := livenotify.NewPoller(livenotify.Config{Login: "someone", Interval: time.Second, Destinations: []string{"1"}},
			staticSource(true), nil, livenotify.NewBroadcaster(fake))
		p.Tick(context.Background())
		env := newTestEnv(t, func(d *Deps) { d.Notifier = func() *livenotify.Poller { return p } })

		got := decode[map[string]any](t, env.do(t, http.MethodGet, "/api/status", ""))
		if got["running"] != true || got["live"] != true || got["login"] != "someone" || got["announcements"] != float64(1) {
			t.Errorf("status = %v", got)
		}
	})
}

func TestRestart(t *testing.T) {
	env := newTestEnv(t, nil)
	resp := env.do(t, http.MethodPost, "/api/restart", "")
	if body := decode[map[string]bool](t, resp); !body["ok"] {
		t.Errorf("body = %v", body)
	}
	select {
	case <-env.restarts:
	case <-time.After(2 * time.Second):
		t.Fatal("restart not triggered")
	}
}

func TestLogs(t *testing.T) {
	env := newTestEnv(t, nil)
	env.logs.Append("first")
	env.logs.Append("second")
	got := decode[[]string](t, env.do(t, http.MethodGet, "/api/logs", ""))
	if !slices.Equal(got, []string{"first", "second"}) {
		t.Errorf("logs = %v", got)
	}
}

func TestLogStream(t *testing.T) {
	env := newTestEnv(t, nil)
	env.logs.Append("backlog")

	url := "ws" + strings.TrimPrefix(env.srv.URL, "http") + "/api/logs/stream"
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer func() { _ = conn.Close() }()
	_ = conn.SetReadDeadline(time.Now().Add(2 * time.Second))

	read := func() string {
		t.Helper()
		_, msg, err := conn.ReadMessage()
		if err != nil {
			t.Fatalf("read: %v", err)
		}
		return string(msg)
	}
	if got := read(); got != "backlog" {
		t.Errorf("first message = %q", got)
	}
	env.logs.Append("live")
	if got := read(); got != "live" {
		t.Errorf("second message = %q", got)
	}
}

func TestCorrelationIDEchoed(t *testing.T) {
	env := newTestEnv(t, nil)
	req, _ := http.NewRequest(http.MethodGet, env.srv.URL+"/healthz", nil)
	req.Header.Set("X-Correlation-ID", "abc-123")
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatal(err)
	}
	defer func() { _ = resp.Body.Close() }()
	if got := resp.Header.Get("X-Correlation-ID"); got != "abc-123" {
		t.Errorf("X-Correlation-ID = %q", got)
	}

	resp2 := env.do(t, http.MethodGet, "/healthz", "")
	if resp2.Header.Get("X-Correlation-ID") == "" {
		t.Error("expected generated correlation id")
	}
}
