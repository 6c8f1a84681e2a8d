// Command herald is a chat bot with a small control API.
// It:
//   - Loads configuration and initializes structured logging (mirrored into an
//     in-memory ring for the control panel).
//   - Loads runtime settings from a YAML/JSON file, an SQLite database (.db path)
//     or, when DB_DSN is set, Postgres, and reloads them when the file is edited.
//   - Connects to the configured chat platform (Telegram or Twitch IRC) and routes
//     messages to the card link and stock quote modules.
//   - Starts the Twitch live notifier once the chat client is ready.
//   - Exposes the control API with /healthz, /readyz and /metrics.
//
// Shutdown is graceful on SIGINT/SIGTERM and on POST /api/restart.
package main

import (
	"context"
	"database/sql"
	"errors"
	"log/slog"
	"net/http"
	_ "net/http/pprof" //nolint:gosec // G108: pprof endpoints enabled only when ENABLE_PPROF=1
	"os"
	"os/signal"
	"strings"
	"sync/atomic"
	"syscall"
	"time"

	"github.com/coreos/go-systemd/v22/daemon"
	"github.com/joho/godotenv"

	"github.com/onnwee/herald/cards"
	"github.com/onnwee/herald/chat"
	"github.com/onnwee/herald/chat/telegram"
	"github.com/onnwee/herald/chat/twitchirc"
	"github.com/onnwee/herald/config"
	"github.com/onnwee/herald/db"
	"github.com/onnwee/herald/livenotify"
	"github.com/onnwee/herald/server"
	"github.com/onnwee/herald/stock"
	"github.com/onnwee/herald/store"
	"github.com/onnwee/herald/telemetry"
	"github.com/onnwee/herald/twitchapi"
)

func main() {
	// Load .env file if present (local dev convenience only; production relies on real env)
	_ = godotenv.Load()

	// Configure logging (level + format). Defaults: level=info, format=text.
	lvl := slog.LevelInfo
	switch strings.ToLower(os.Getenv("LOG_LEVEL")) {
	case "debug":
		lvl = slog.LevelDebug
	case "warn":
		lvl = slog.LevelWarn
	case "error":
		lvl = slog.LevelError
	case "info", "":
		// keep default
	default:
		tmp := slog.New(slog.NewTextHandler(os.Stdout, nil))
		tmp.Warn("unknown LOG_LEVEL, using info", slog.String("value", os.Getenv("LOG_LEVEL")))
	}
	format := strings.ToLower(os.Getenv("LOG_FORMAT")) // text | json
	var handler slog.Handler
	switch format {
	case "json":
		handler = slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: lvl})
	default:
		handler = slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: lvl})
	}

	// Config
	cfg, err := config.Load()
	if err != nil {
		slog.Error("config load failed", slog.Any("err", err))
		os.Exit(1)
	}

	logs := telemetry.NewLogRing(cfg.LogBufferSize)
	slog.SetDefault(slog.New(logs.Handler(handler)))
	slog.Info("logger initialized", slog.String("level", lvl.String()), slog.String("format", map[bool]string{true: "json", false: "text"}[format == "json"]))

	telemetry.Init()

	// Initialize OpenTelemetry tracing (optional; requires OTEL_EXPORTER_OTLP_ENDPOINT)
	shutdownTracing, err := telemetry.InitTracing("herald", "1.0.0")
	if err != nil {
		slog.Error("tracing initialization failed", slog.Any("err", err))
		os.Exit(1)
	}
	defer shutdownTracing()

	// Root context with graceful shutdown; /api/restart cancels it too.
	sigCtx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	ctx, restart := context.WithCancel(sigCtx)
	defer restart()

	// Settings store
	var (
		database *sql.DB
		st       config.Store
	)
	if cfg.DBDsn != "" {
		database, err = db.Connect(ctx, cfg.DBDsn)
		if err != nil {
			slog.Error("failed to open db", slog.Any("err", err))
			os.Exit(1)
		}
		defer func() {
			if err := database.Close(); err != nil {
				slog.Error("failed to close database", slog.Any("err", err))
			}
		}()
		if err := db.Migrate(ctx, database); err != nil {
			slog.Error("failed to migrate db", slog.Any("err", err))
			os.Exit(1)
		}
		st = store.NewPostgres(database)
		slog.Info("settings stored in postgres")
	} else if store.IsSQLitePath(cfg.SettingsPath) {
		lite, err := store.OpenSQLite(ctx, cfg.SettingsPath)
		if err != nil {
			slog.Error("failed to open sqlite settings store", slog.Any("err", err))
			os.Exit(1)
		}
		defer func() { _ = lite.Close() }()
		st = lite
		slog.Info("settings stored in sqlite", slog.String("path", cfg.SettingsPath))
	} else {
		st = store.NewFile(cfg.SettingsPath)
		slog.Info("settings stored in file", slog.String("path", cfg.SettingsPath))
	}
	settings := config.NewManager(config.DefaultSettings(cfg), st)
	if err := settings.Load(ctx); err != nil {
		slog.Warn("using default settings", slog.Any("err", err))
	}
	go func() {
		if err := settings.Watch(ctx); err != nil && !errors.Is(err, context.Canceled) {
			slog.Warn("settings watch stopped", slog.Any("err", err))
		}
	}()

	// Chat
	client, err := newChatClient(cfg)
	if err != nil {
		slog.Error("chat client unavailable", slog.Any("err", err))
		os.Exit(1)
	}
	router := chat.NewRouter()
	router.Handle("cards", cards.NewHandler(func() config.ModuleSettings { return settings.Snapshot().Cards }, client, cards.NewScryfall()).Handle)
	router.Handle("stock", stock.NewHandler(func() config.StockSettings { return settings.Snapshot().Stock }, client, stock.NewAlphaVantage(cfg.AlphaVantageKey, cfg.StockRequestsPerM)).Handle)

	chatDone := make(chan struct{})
	go func() {
		defer close(chatDone)
		if err := client.Run(ctx, func(m chat.Message) { router.Dispatch(ctx, m) }); err != nil {
			slog.Error("chat client stopped", slog.Any("err", err))
			restart()
		}
	}()

	// Live notifier, registered once the chat client can resolve channels.
	var notifier atomic.Pointer[livenotify.Poller]
	go func() {
		select {
		case <-client.Ready():
		case <-ctx.Done():
			return
		}
		slog.Info("chat client ready", slog.String("platform", cfg.ChatPlatform))
		notifySystemd(daemon.SdNotifyReady)
		d := livenotify.Deps{
			Settings: settings.Snapshot(),
			Chat:     client,
			Source:   &twitchapi.HelixClient{ClientID: cfg.TwitchClientID, HTTPClient: &http.Client{Timeout: 10 * time.Second}},
		}
		if cfg.HasTwitchCredentials() {
			d.Tokens = &twitchapi.TokenSource{ClientID: cfg.TwitchClientID, ClientSecret: cfg.TwitchClientSecret}
		} else {
			slog.Warn("TWITCH_CLIENT_ID/TWITCH_CLIENT_SECRET not set; live checks run unauthenticated")
		}
		if p := livenotify.Register(ctx, d); p != nil {
			notifier.Store(p)
		}
	}()

	// Enable pprof profiling endpoints in debug mode (ENABLE_PPROF=1)
	if os.Getenv("ENABLE_PPROF") == "1" {
		pprofAddr := os.Getenv("PPROF_ADDR")
		if pprofAddr == "" {
			pprofAddr = "localhost:6060"
		}
		go func() {
			slog.Info("pprof profiling enabled", slog.String("addr", pprofAddr))
			srv := &http.Server{
				Addr:              pprofAddr,
				Handler:           nil, // default mux exposes /debug/pprof
				ReadHeaderTimeout: 5 * time.Second,
				ReadTimeout:       10 * time.Second,
				WriteTimeout:      10 * time.Second,
				IdleTimeout:       60 * time.Second,
			}
			if err := srv.ListenAndServe(); err != nil {
				slog.Error("pprof server error", slog.Any("err", err))
			}
		}()
	}

	api := server.NewRouter(ctx, server.Deps{
		Settings:       settings,
		Logs:           logs,
		Chat:           client,
		Notifier:       notifier.Load,
		Restart:        restart,
		RestartDelay:   cfg.RestartDelay,
		DB:             database,
		AllowedOrigins: cfg.AllowedOrigins,
	})
	go func() {
		if err := server.Start(ctx, cfg.HTTPAddr, api); err != nil {
			slog.Error("http server exited with error", slog.Any("err", err))
			restart()
		}
	}()

	<-ctx.Done()
	slog.Info("shutting down")
	notifySystemd(daemon.SdNotifyStopping)
	select {
	case <-chatDone:
	case <-time.After(5 * time.Second):
		slog.Warn("chat client did not stop in time")
	}
	router.Wait()
}

func newChatClient(cfg *config.Config) (chat.Client, error) {
	if err := cfg.ValidateChatReady(); err != nil {
		return nil, err
	}
	switch cfg.ChatPlatform {
	case config.PlatformTwitch:
		return twitchirc.New(twitchirc.Config{
			Username: cfg.TwitchBotUsername,
			OAuth:    cfg.TwitchOAuthToken,
			Channels: cfg.TwitchChatChannels,
		})
	default:
		return telegram.New(telegram.Config{Token: cfg.TelegramToken, PollTimeout: cfg.TelegramPollTimeout})
	}
}

// notifySystemd reports service state when running under a Type=notify unit.
// Outside systemd NOTIFY_SOCKET is unset and this is a no-op.
func notifySystemd(state string) {
	if _, err := daemon.SdNotify(false, state); err != nil {
		slog.Debug("sd_notify failed", slog.String("state", state), slog.Any("err", err))
	}
}
