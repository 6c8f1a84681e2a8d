package chat_test

import (
	"context"
	"sync/atomic"
	"testing"

	"github.com/onnwee/herald/chat"
	"github.com/onnwee/herald/chat/chattest"
	"github.com/onnwee/herald/telemetry"
)

func TestRenderHTML(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{"plain escaped", "a < b & c", "a &lt; b &amp; c"},
		{"bold", "**AAPL** up", "<b>AAPL</b> up"},
		{"link", "[SF](https://scryfall.com/search?q=x&y=1)", `<a href="https://scryfall.com/search?q=x&amp;y=1">SF</a>`},
		{"angle link", "[F2F](<https://f2f.example/a>)", `<a href="https://f2f.example/a">F2F</a>`},
		{"mixed", "Bolt: [SF](https://a) | [TCG](https://b)", `Bolt: <a href="https://a">SF</a> | <a href="https://b">TCG</a>`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := chat.RenderHTML(tt.in); got != tt.want {
				t.Errorf("RenderHTML(%q) = %q, want %q", tt.in, got, tt.want)
			}
		})
	}
}

func TestRenderPlain(t *testing.T) {
	in := "**Lightning Bolt**: " + chat.Link("SF", "https://a") + " | " + chat.Link("TCG", "https://b")
	want := "Lightning Bolt: SF: https://a | TCG: https://b"
	if got := chat.RenderPlain(in); got != want {
		t.Errorf("RenderPlain() = %q, want %q", got, want)
	}
}

func TestRouterDispatchRunsEveryHandler(t *testing.T) {
	r := chat.NewRouter()
	var calls int32
	var sawCorr atomic.Bool
	for _, name := range []string{"cards", "stock"} {
		r.Handle(name, func(ctx context.Context, m chat.Message) {
			atomic.AddInt32(&calls, 1)
			if telemetry.GetCorrelation(ctx) != "" {
				sawCorr.Store(true)
			}
		})
	}
	r.Handle("boom", func(context.Context, chat.Message) { panic("handler bug") })

	r.Dispatch(context.Background(), chat.Message{ChannelID: "1", Text: "hi"})
	r.Wait()

	if n := atomic.LoadInt32(&calls); n != 2 {
		t.Errorf("handlers called %d times, want 2", n)
	}
	if !sawCorr.Load() {
		t.Error("handlers should receive a correlation id")
	}
}

func TestPostFallsBackToInlineReply(t *testing.T) {
	fake := chattest.New()
	fake.Unknown["gone"] = true
	m := chat.Message{ChannelID: "src", MessageID: "42", Text: "[[Bolt]]"}
	ctx := context.Background()

	if err := chat.Post(ctx, fake, "", m, "inline"); err != nil {
		t.Fatal(err)
	}
	if err := chat.Post(ctx, fake, "gone", m, "fallback"); err != nil {
		t.Fatal(err)
	}
	if err := chat.Post(ctx, fake, "override", m, "posted"); err != nil {
		t.Fatal(err)
	}

	sent := fake.Sent()
	if len(sent) != 3 {
		t.Fatalf("sent = %+v", sent)
	}
	if sent[0].ChannelID != "src" || sent[0].ReplyTo != "42" {
		t.Errorf("inline reply = %+v", sent[0])
	}
	if sent[1].ChannelID != "src" || sent[1].Text != "fallback" {
		t.Errorf("unresolvable target should reply inline, got %+v", sent[1])
	}
	if sent[2].ChannelID != "override" || sent[2].ReplyTo != "" {
		t.Errorf("override post = %+v", sent[2])
	}
}
