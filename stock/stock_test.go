package stock

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"golang.org/x/time/rate"

	"github.com/onnwee/herald/chat"
	"github.com/onnwee/herald/chat/chattest"
	"github.com/onnwee/herald/config"
)

const aaplQuote = `{"Global Quote":{"01. symbol":"AAPL","02. open":"170.00","03. high":"175.00","04. low":"170.00",
"05. price":"174.50","06. volume":"2500000","07. latest trading day":"2024-10-15","08. previous close":"170.00",
"09. change":"4.50","10. change percent":"2.6471%"}}`

func TestExtractTickers(t *testing.T) {
	got := ExtractTickers("$AAPL and $tsla and $MSFT, again $AAPL, $TOOLONG")
	want := []string{"AAPL", "MSFT", "TOOLO"}
	if strings.Join(got, ",") != strings.Join(want, ",") {
		t.Errorf("ExtractTickers() = %v, want %v", got, want)
	}
}

func TestAnalyze(t *testing.T) {
	tests := []struct {
		name       string
		q          Quote
		action     string
		confidence string
		reason     string
	}{
		{
			name:   "strong up, normal volume, mid range",
			q:      Quote{ChangePercent: 2.5, Volume: 1_000_000, High: 10, Low: 0, Price: 5},
			action: "🟢 BUY", confidence: "MEDIUM", reason: "🚀 Strong upward momentum (+2.50%)",
		},
		{
			name:   "strong up, high volume, near low",
			q:      Quote{ChangePercent: 3, Volume: 2_000_000, High: 10, Low: 0, Price: 1},
			action: "🟢 BUY", confidence: "HIGH", reason: "💡 Trading near daily low (10% of range)",
		},
		{
			name:   "strong down, low volume, near high",
			q:      Quote{ChangePercent: -3, Volume: 100_000, High: 10, Low: 0, Price: 9},
			action: "🔴 SELL", confidence: "HIGH", reason: "📊 Low volume (0.1M shares)",
		},
		{
			name:   "negative momentum, normal volume, mid range",
			q:      Quote{ChangePercent: -1, Volume: 1_000_000, High: 10, Low: 0, Price: 5},
			action: "🟡 HOLD", confidence: "LOW", reason: "📊 Mixed signals - consider waiting for clearer direction",
		},
		{
			name:   "zero range counts as mid-range",
			q:      Quote{ChangePercent: 0, Volume: 1_000_000, High: 5, Low: 5, Price: 5},
			action: "🟡 HOLD", confidence: "LOW", reason: "➡️ Mid-range trading (50% of range)",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := Analyze(tt.q)
			if s.Action != tt.action || s.Confidence != tt.confidence {
				t.Errorf("Analyze() = %s/%s, want %s/%s", s.Action, s.Confidence, tt.action, tt.confidence)
			}
			found := false
			for _, r := range s.Reasons {
				if r == tt.reason {
					found = true
				}
			}
			if !found {
				t.Errorf("reasons %q missing %q", s.Reasons, tt.reason)
			}
		})
	}
}

func TestFormat(t *testing.T) {
	q := Quote{Symbol: "AAPL", Price: 174.5, Change: -1.25, ChangePercent: -0.71, High: 175, Low: 170, Volume: 2_500_000}
	got := Format(q, Signal{Action: "🟡 HOLD", Confidence: "LOW", Reasons: []string{"a", "b"}})
	want := "**$AAPL** 📉\n" +
		"💰 **Price:** $174.50 (-1.25, -0.71%)\n" +
		"📊 **Today's Range:** $170.00 - $175.00\n" +
		"📈 **Volume:** 2.5M shares\n\n" +
		"🟡 HOLD (LOW confidence)\n• a\n• b"
	if got != want {
		t.Errorf("Format() =\n%s\nwant\n%s", got, want)
	}
}

func newQuoteServer(t *testing.T, body string, status int) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		if q.Get("function") != "GLOBAL_QUOTE" || q.Get("apikey") != "key" {
			t.Errorf("query = %v", q)
		}
		w.WriteHeader(status)
		_, _ = w.Write([]byte(body))
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestGlobalQuote(t *testing.T) {
	srv := newQuoteServer(t, aaplQuote, http.StatusOK)
	av := &AlphaVantage{APIKey: "key", BaseURL: srv.URL}
	q, err := av.GlobalQuote(context.Background(), "AAPL")
	if err != nil {
		t.Fatalf("GlobalQuote() error = %v", err)
	}
	if q.Price != 174.5 || q.Volume != 2_500_000 || q.ChangePercent != 2.6471 {
		t.Errorf("quote = %+v", q)
	}
}

func TestGlobalQuoteNoData(t *testing.T) {
	for name, body := range map[string]string{
		"empty quote": `{"Global Quote":{}}`,
		"throttled":   `{"Note":"Thank you for using Alpha Vantage! Our standard API call frequency is 5 calls per minute"}`,
		"bad number":  `{"Global Quote":{"05. price":"n/a"}}`,
	} {
		t.Run(name, func(t *testing.T) {
			av := &AlphaVantage{APIKey: "key", BaseURL: newQuoteServer(t, body, http.StatusOK).URL}
			if _, err := av.GlobalQuote(context.Background(), "ZZZZ"); !errors.Is(err, ErrNoQuote) {
				t.Errorf("GlobalQuote() error = %v, want ErrNoQuote", err)
			}
		})
	}
}

func TestGlobalQuoteRateLimited(t *testing.T) {
	srv := newQuoteServer(t, aaplQuote, http.StatusOK)
	av := &AlphaVantage{APIKey: "key", BaseURL: srv.URL, Limiter: rate.NewLimiter(rate.Every(time.Hour), 1)}
	if _, err := av.GlobalQuote(context.Background(), "AAPL"); err != nil {
		t.Fatal(err)
	}
	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	if _, err := av.GlobalQuote(ctx, "AAPL"); !errors.Is(err, ErrRateLimited) {
		t.Errorf("second GlobalQuote() error = %v, want ErrRateLimited", err)
	}
}

type fakeQuotes map[string]Quote

func (f fakeQuotes) GlobalQuote(_ context.Context, symbol string) (Quote, error) {
	q, ok := f[symbol]
	if !ok {
		return Quote{}, ErrNoQuote
	}
	return q, nil
}

func TestHandle(t *testing.T) {
	quotes := fakeQuotes{"AAPL": {Symbol: "AAPL", Price: 10, High: 11, Low: 9, Volume: 1_000_000}}
	msg := chat.Message{ChannelID: "10", MessageID: "1", Author: "liam", Text: "thoughts on $AAPL and $NOPE?"}
	enabled := config.StockSettings{ModuleSettings: config.ModuleSettings{Enabled: true}}

	t.Run("inline replies in order", func(t *testing.T) {
		fake := chattest.New()
		NewHandler(func() config.StockSettings { return enabled }, fake, quotes).Handle(context.Background(), msg)
		sent := fake.Sent()
		if len(sent) != 2 {
			t.Fatalf("sent = %+v", sent)
		}
		if !strings.HasPrefix(sent[0].Text, "**$AAPL**") || sent[0].ReplyTo != "1" {
			t.Errorf("first reply = %+v", sent[0])
		}
		if sent[1].Text != "📈 Failed to fetch data for **$NOPE**. Please try again." {
			t.Errorf("second reply = %q", sent[1].Text)
		}
	})

	t.Run("override target", func(t *testing.T) {
		fake := chattest.New()
		s := enabled
		s.ChannelID = "77"
		NewHandler(func() config.StockSettings { return s }, fake, quotes).Handle(context.Background(), chat.Message{ChannelID: "10", Text: "$AAPL"})
		sent := fake.Sent()
		if len(sent) != 1 || sent[0].ChannelID != "77" {
			t.Errorf("sent = %+v", sent)
		}
	})

	t.Run("post failure replies error", func(t *testing.T) {
		fake := chattest.New()
		fake.Failing["77"] = true
		s := enabled
		s.ChannelID = "77"
		NewHandler(func() config.StockSettings { return s }, fake, quotes).Handle(context.Background(), chat.Message{ChannelID: "10", MessageID: "5", Text: "$AAPL"})
		sent := fake.Sent()
		if len(sent) != 1 || sent[0].Text != "📈 Error analyzing **$AAPL**. Please try again." || sent[0].ReplyTo != "5" {
			t.Errorf("sent = %+v", sent)
		}
	})

	t.Run("filters", func(t *testing.T) {
		fake := chattest.New()
		listen := config.StockSettings{ModuleSettings: config.ModuleSettings{Enabled: true, Channels: []string{"99"}}}
		h := NewHandler(func() config.StockSettings { return listen }, fake, quotes)
		h.Handle(context.Background(), msg)
		h.Handle(context.Background(), chat.Message{ChannelID: "99", AuthorIsBot: true, Text: "$AAPL"})
		if len(fake.Sent()) != 0 {
			t.Errorf("sent = %+v", fake.Sent())
		}
	})
}
