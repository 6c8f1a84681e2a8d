package stock

import (
	"context"
	"errors"
	"log/slog"
	"regexp"

	"github.com/onnwee/herald/chat"
	"github.com/onnwee/herald/config"
	"github.com/onnwee/herald/telemetry"
)

var tickerPattern = regexp.MustCompile(`\$([A-Z]{1,5})`)

// ExtractTickers returns the $TICKER symbols in order, without duplicates.
func ExtractTickers(text string) []string {
	seen := map[string]bool{}
	var out []string
	for _, m := range tickerPattern.FindAllStringSubmatch(text, -1) {
		if !seen[m[1]] {
			seen[m[1]] = true
			out = append(out, m[1])
		}
	}
	return out
}

// QuoteSource fetches a quote.
type QuoteSource interface {
	GlobalQuote(ctx context.Context, symbol string) (Quote, error)
}

// Handler answers ticker mentions in chat.
type Handler struct {
	Settings func() config.StockSettings
	Chat     chat.Sender
	Quotes   QuoteSource
	log      *slog.Logger
}

// NewHandler wires a handler. settings is read per message.
func NewHandler(settings func() config.StockSettings, c chat.Sender, quotes QuoteSource) *Handler {
	return &Handler{Settings: settings, Chat: c, Quotes: quotes, log: slog.Default().With(slog.String("component", "stock"))}
}

// Handle is a chat.HandlerFunc. Tickers are answered one at a time, in order.
func (h *Handler) Handle(ctx context.Context, m chat.Message) {
	if m.AuthorIsBot || m.Text == "" {
		return
	}
	s := h.Settings()
	if !s.Enabled || !s.Listens(m.ChannelID) {
		return
	}
	tickers := ExtractTickers(m.Text)
	if len(tickers) == 0 {
		return
	}
	log := h.log.With(slog.String("corr", telemetry.GetCorrelation(ctx)))
	log.Info("tickers detected", slog.Int("count", len(tickers)), slog.String("author", m.Author), slog.String("channel", m.ChannelID))

	for _, ticker := range tickers {
		h.answer(ctx, log, s, m, ticker)
	}
}

func (h *Handler) answer(ctx context.Context, log *slog.Logger, s config.StockSettings, m chat.Message, ticker string) {
	log = log.With(slog.String("ticker", ticker))
	q, err := h.Quotes.GlobalQuote(ctx, ticker)
	if err != nil {
		switch {
		case errors.Is(err, ErrRateLimited):
			telemetry.IncStockLookup("limited")
		case errors.Is(err, ErrNoQuote):
			telemetry.IncStockLookup("no_quote")
		default:
			telemetry.IncStockLookup("error")
		}
		log.Warn("stock quote unavailable", slog.Any("err", err))
		h.replyOrLog(ctx, log, m, "📈 Failed to fetch data for "+chat.Bold("$"+ticker)+". Please try again.")
		return
	}
	telemetry.IncStockLookup("ok")

	reply := Format(q, Analyze(q))
	target := s.OverrideTarget()
	if err := chat.Post(ctx, h.Chat, target, m, reply); err != nil {
		log.Warn("failed to post stock analysis", slog.Any("err", err))
		h.replyOrLog(ctx, log, m, "📈 Error analyzing "+chat.Bold("$"+ticker)+". Please try again.")
		return
	}
	telemetry.IncMessageHandled("stock")
	log.Info("replied with stock analysis", slog.String("target", target))
}

func (h *Handler) replyOrLog(ctx context.Context, log *slog.Logger, m chat.Message, text string) {
	if err := h.Chat.Reply(ctx, m, text); err != nil {
		log.Warn("failed to send stock reply", slog.Any("err", err))
	}
}
