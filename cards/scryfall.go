// Package cards answers [[Card Name]] tags with Scryfall, Face to Face and
// TCGplayer links.
package cards

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// DefaultBaseURL is the Scryfall API root.
const DefaultBaseURL = "https://api.scryfall.com"

// ErrNotFound is returned when Scryfall has no card with the exact name.
var ErrNotFound = errors.New("card not found")

// Card is the subset of a Scryfall card object used for links.
type Card struct {
	Name         string `json:"name"`
	ScryfallURI  string `json:"scryfall_uri"`
	PurchaseURIs struct {
		TCGplayer string `json:"tcgplayer"`
	} `json:"purchase_uris"`
}

// Scryfall is a minimal client for the cards/named endpoint.
type Scryfall struct {
	BaseURL    string
	HTTPClient *http.Client
}

// NewScryfall returns a client with a bounded request timeout.
func NewScryfall() *Scryfall {
	return &Scryfall{BaseURL: DefaultBaseURL, HTTPClient: &http.Client{Timeout: 10 * time.Second}}
}

func (s *Scryfall) http() *http.Client {
	if s.HTTPClient != nil {
		return s.HTTPClient
	}
	return http.DefaultClient
}

// Named looks up a card by exact name.
func (s *Scryfall) Named(ctx context.Context, name string) (Card, error) {
	base := s.BaseURL
	if base == "" {
		base = DefaultBaseURL
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, strings.TrimRight(base, "/")+"/cards/named", nil)
	if err != nil {
		return Card{}, err
	}
	q := req.URL.Query()
	q.Set("exact", name)
	req.URL.RawQuery = q.Encode()
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", "herald/1.0")

	resp, err := s.http().Do(req)
	if err != nil {
		return Card{}, err
	}
	defer func() {
		if err := resp.Body.Close(); err != nil {
			slog.Warn("failed to close response body", slog.Any("err", err))
		}
	}()
	if resp.StatusCode == http.StatusNotFound {
		_, _ = io.Copy(io.Discard, resp.Body)
		return Card{}, fmt.Errorf("%q: %w", name, ErrNotFound)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return Card{}, fmt.Errorf("scryfall status %d", resp.StatusCode)
	}
	var c Card
	if err := json.NewDecoder(resp.Body).Decode(&c); err != nil {
		return Card{}, fmt.Errorf("decode scryfall card: %w", err)
	}
	return c, nil
}

// escape encodes s for a query value with %20 for spaces.
func escape(s string) string {
	return strings.ReplaceAll(url.QueryEscape(s), "+", "%20")
}
