package cards

import (
	"context"
	"errors"
	"log/slog"
	"regexp"
	"strings"

	"golang.org/x/sync/errgroup"

	"github.com/onnwee/herald/chat"
	"github.com/onnwee/herald/config"
	"github.com/onnwee/herald/telemetry"
)

var cardPattern = regexp.MustCompile(`\[\[([^\]]+)\]\]`)

// maxConcurrentLookups bounds parallel Scryfall requests per message.
const maxConcurrentLookups = 4

// ExtractNames returns the trimmed [[tag]] names in order, dropping
// case-insensitive duplicates (the first spelling wins).
func ExtractNames(text string) []string {
	seen := map[string]bool{}
	var names []string
	for _, m := range cardPattern.FindAllStringSubmatch(text, -1) {
		name := strings.TrimSpace(m[1])
		key := strings.ToLower(name)
		if name == "" || seen[key] {
			continue
		}
		seen[key] = true
		names = append(names, name)
	}
	return names
}

// Links are the three store links for one card.
type Links struct {
	Name string
	SF   string
	F2F  string
	TCG  string
}

// SearchLinks builds the fallback links that need no lookup.
func SearchLinks(name string) Links {
	q := escape(name)
	return Links{
		Name: name,
		SF:   "https://scryfall.com/search?q=" + q,
		F2F:  "https://www.facetofacegames.com/search?q=" + q,
		TCG:  "https://www.tcgplayer.com/search/magic/product?productLineName=magic&q=" + q,
	}
}

// Line formats links as "<name>: [SF](..) | [F2F](..) | [TCG](..)".
func (l Links) Line() string {
	return l.Name + ": " + chat.Link("SF", l.SF) + " | " + chat.Link("F2F", l.F2F) + " | " + chat.Link("TCG", l.TCG)
}

// Lookup resolves cards by exact name.
type Lookup interface {
	Named(ctx context.Context, name string) (Card, error)
}

// Handler answers card tags in chat.
type Handler struct {
	Settings func() config.ModuleSettings
	Chat     chat.Sender
	Lookup   Lookup
	log      *slog.Logger
}

// NewHandler wires a handler. settings is read on every message so control
// panel edits apply immediately.
func NewHandler(settings func() config.ModuleSettings, c chat.Sender, lookup Lookup) *Handler {
	return &Handler{Settings: settings, Chat: c, Lookup: lookup, log: slog.Default().With(slog.String("component", "cards"))}
}

// Resolve builds links for every name, preferring canonical Scryfall and
// TCGplayer pages when the exact lookup succeeds. Output order matches names.
func (h *Handler) Resolve(ctx context.Context, names []string) []Links {
	out := make([]Links, len(names))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(maxConcurrentLookups)
	for i, name := range names {
		g.Go(func() error {
			l := SearchLinks(name)
			card, err := h.Lookup.Named(gctx, name)
			switch {
			case err == nil:
				telemetry.IncCardLookup("found")
				if card.ScryfallURI != "" {
					l.SF = card.ScryfallURI
				}
				if card.PurchaseURIs.TCGplayer != "" {
					l.TCG = card.PurchaseURIs.TCGplayer
				}
			case errors.Is(err, ErrNotFound):
				telemetry.IncCardLookup("missing")
			default:
				telemetry.IncCardLookup("error")
				h.log.Debug("scryfall lookup failed", slog.String("card", name), slog.Any("err", err))
			}
			out[i] = l
			// lookup failures keep the search links, so never fail the group
			return nil
		})
	}
	_ = g.Wait()
	return out
}

// Handle is a chat.HandlerFunc.
func (h *Handler) Handle(ctx context.Context, m chat.Message) {
	if m.AuthorIsBot || m.Text == "" {
		return
	}
	s := h.Settings()
	if !s.Enabled || !s.Listens(m.ChannelID) {
		return
	}
	names := ExtractNames(m.Text)
	if len(names) == 0 {
		return
	}
	log := h.log.With(slog.String("corr", telemetry.GetCorrelation(ctx)))
	log.Info("card tags detected", slog.Int("count", len(names)), slog.String("author", m.Author), slog.String("channel", m.ChannelID))

	links := h.Resolve(ctx, names)
	lines := make([]string, 0, len(links))
	for _, l := range links {
		lines = append(lines, l.Line())
	}
	reply := strings.Join(lines, "\n")

	target := s.OverrideTarget()
	if err := chat.Post(ctx, h.Chat, target, m, reply); err != nil {
		log.Warn("failed to post card links", slog.Any("err", err))
		return
	}
	telemetry.IncMessageHandled("cards")
	if target != "" {
		log.Info("posted card links", slog.Int("count", len(links)), slog.String("target", target))
	} else {
		log.Info("replied with card links", slog.Int("count", len(links)), slog.String("author", m.Author))
	}
}
