// Package stock answers $TICKER mentions with an Alpha Vantage quote and a
// simple momentum/volume/range signal.
package stock

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"golang.org/x/time/rate"
)

// DefaultBaseURL is the Alpha Vantage query endpoint.
const DefaultBaseURL = "https://www.alphavantage.co/query"

var (
	// ErrNoQuote is returned when the response carries no usable quote
	// (unknown symbol, throttling notice, malformed numbers).
	ErrNoQuote = errors.New("no quote data found")
	// ErrRateLimited is returned when the local request budget is exhausted.
	ErrRateLimited = errors.New("stock request budget exhausted")
)

// Quote is a parsed GLOBAL_QUOTE.
type Quote struct {
	Symbol        string
	Price         float64
	Change        float64
	ChangePercent float64
	High          float64
	Low           float64
	Volume        int64
	PreviousClose float64
}

// AlphaVantage fetches quotes. Limiter throttles outbound requests; nil disables throttling.
type AlphaVantage struct {
	APIKey     string
	BaseURL    string
	HTTPClient *http.Client
	Limiter    *rate.Limiter
}

// NewAlphaVantage returns a client allowing perMinute requests per minute.
func NewAlphaVantage(apiKey string, perMinute int) *AlphaVantage {
	if apiKey == "" {
		apiKey = "demo"
	}
	var lim *rate.Limiter
	if perMinute > 0 {
		lim = rate.NewLimiter(rate.Every(time.Minute/time.Duration(perMinute)), perMinute)
	}
	return &AlphaVantage{
		APIKey:     apiKey,
		BaseURL:    DefaultBaseURL,
		HTTPClient: &http.Client{Timeout: 10 * time.Second},
		Limiter:    lim,
	}
}

func (a *AlphaVantage) http() *http.Client {
	if a.HTTPClient != nil {
		return a.HTTPClient
	}
	return http.DefaultClient
}

// GlobalQuote fetches the latest quote for symbol.
func (a *AlphaVantage) GlobalQuote(ctx context.Context, symbol string) (Quote, error) {
	if a.Limiter != nil {
		if err := a.Limiter.Wait(ctx); err != nil {
			return Quote{}, fmt.Errorf("%w: %v", ErrRateLimited, err)
		}
	}
	base := a.BaseURL
	if base == "" {
		base = DefaultBaseURL
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, base, nil)
	if err != nil {
		return Quote{}, err
	}
	q := req.URL.Query()
	q.Set("function", "GLOBAL_QUOTE")
	q.Set("symbol", symbol)
	q.Set("apikey", a.APIKey)
	req.URL.RawQuery = q.Encode()

	resp, err := a.http().Do(req)
	if err != nil {
		return Quote{}, err
	}
	defer func() {
		if err := resp.Body.Close(); err != nil {
			slog.Warn("failed to close response body", slog.Any("err", err))
		}
	}()
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return Quote{}, fmt.Errorf("alpha vantage status %d", resp.StatusCode)
	}
	var body struct {
		Quote map[string]string `json:"Global Quote"`
		Note  string            `json:"Note"`
		Info  string            `json:"Information"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return Quote{}, fmt.Errorf("decode alpha vantage quote: %w", err)
	}
	if len(body.Quote) == 0 {
		if notice := body.Note + body.Info; notice != "" {
			return Quote{}, fmt.Errorf("%w: %s", ErrNoQuote, notice)
		}
		return Quote{}, ErrNoQuote
	}
	return parseQuote(symbol, body.Quote)
}

func parseQuote(symbol string, raw map[string]string) (Quote, error) {
	var firstErr error
	num := func(key string) float64 {
		v, err := strconv.ParseFloat(strings.TrimSuffix(strings.TrimSpace(raw[key]), "%"), 64)
		if err != nil && firstErr == nil {
			firstErr = fmt.Errorf("%w: field %q: %v", ErrNoQuote, key, err)
		}
		return v
	}
	q := Quote{
		Symbol:        symbol,
		Price:         num("05. price"),
		Change:        num("09. change"),
		ChangePercent: num("10. change percent"),
		High:          num("03. high"),
		Low:           num("04. low"),
		Volume:        int64(num("06. volume")),
		PreviousClose: num("08. previous close"),
	}
	if firstErr != nil {
		return Quote{}, firstErr
	}
	return q, nil
}
