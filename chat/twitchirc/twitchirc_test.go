package twitchirc

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	twitch "github.com/gempir/go-twitch-irc/v4"

	"github.com/onnwee/herald/chat"
)

type fakeIRC struct {
	mu        sync.Mutex
	onConnect func()
	onMsg     func(twitch.PrivateMessage)
	joins     []string
	said      []string
	replies   []string
	stop      chan struct{}
}

func newFakeIRC() *fakeIRC { return &fakeIRC{stop: make(chan struct{})} }

func (f *fakeIRC) OnConnect(fn func())                            { f.onConnect = fn }
func (f *fakeIRC) OnPrivateMessage(fn func(twitch.PrivateMessage)) { f.onMsg = fn }
func (f *fakeIRC) Join(chs ...string) {
	f.mu.Lock()
	f.joins = append(f.joins, chs...)
	f.mu.Unlock()
}
func (f *fakeIRC) Say(ch, text string) {
	f.mu.Lock()
	f.said = append(f.said, ch+"|"+text)
	f.mu.Unlock()
}
func (f *fakeIRC) Reply(ch, parent, text string) {
	f.mu.Lock()
	f.replies = append(f.replies, ch+"|"+parent+"|"+text)
	f.mu.Unlock()
}
func (f *fakeIRC) Connect() error {
	f.onConnect()
	<-f.stop
	return twitch.ErrClientDisconnected
}
func (f *fakeIRC) Disconnect() error {
	close(f.stop)
	return nil
}

func TestNewRequiresCredentials(t *testing.T) {
	if _, err := New(Config{Username: "bot"}); err == nil {
		t.Fatal("New() without oauth token should fail")
	}
}

func TestRunDeliversMessagesAndFlagsSelf(t *testing.T) {
	irc := newFakeIRC()
	c := newWithIRC(irc, "HeraldBot")
	c.joined["liama6"] = true

	ctx, cancel := context.WithCancel(context.Background())
	got := make(chan chat.Message, 2)
	done := make(chan error, 1)
	go func() { done <- c.Run(ctx, func(m chat.Message) { got <- m }) }()

	select {
	case <-c.Ready():
	case <-time.After(time.Second):
		t.Fatal("client never became ready")
	}
	irc.onMsg(twitch.PrivateMessage{Channel: "liama6", ID: "m1", Message: "[[Bolt]]", User: twitch.User{Name: "viewer"}})
	irc.onMsg(twitch.PrivateMessage{Channel: "liama6", ID: "m2", Message: "hi", User: twitch.User{Name: "heraldbot"}})

	first, second := <-got, <-got
	if first.AuthorIsBot || first.Text != "[[Bolt]]" || first.MessageID != "m1" {
		t.Errorf("first = %+v", first)
	}
	if !second.AuthorIsBot {
		t.Error("messages from the bot account should be flagged")
	}

	cancel()
	if err := <-done; err != nil {
		t.Errorf("Run() error = %v", err)
	}
	irc.mu.Lock()
	defer irc.mu.Unlock()
	if len(irc.joins) != 1 || irc.joins[0] != "liama6" {
		t.Errorf("joins = %v", irc.joins)
	}
}

func TestResolveChannel(t *testing.T) {
	irc := newFakeIRC()
	c := newWithIRC(irc, "bot")
	ctx := context.Background()

	for _, bad := range []string{"", "ab", "has space", "UPPER!"} {
		if _, err := c.ResolveChannel(ctx, bad); !errors.Is(err, chat.ErrUnknownChannel) {
			t.Errorf("ResolveChannel(%q) error = %v, want ErrUnknownChannel", bad, err)
		}
	}

	ch, err := c.ResolveChannel(ctx, "#LiamA6")
	if err != nil {
		t.Fatalf("ResolveChannel() error = %v", err)
	}
	if _, err := c.ResolveChannel(ctx, "liama6"); err != nil {
		t.Fatal(err)
	}
	if ch.ID() != "liama6" || ch.Name() != "#liama6" {
		t.Errorf("channel = %s/%s", ch.ID(), ch.Name())
	}
	if err := ch.Send(ctx, "**Bolt**: [SF](https://a)\n[TCG](https://b)"); err != nil {
		t.Fatal(err)
	}

	irc.mu.Lock()
	defer irc.mu.Unlock()
	if len(irc.joins) != 1 {
		t.Errorf("channel should be joined once, joins = %v", irc.joins)
	}
	want := []string{"liama6|Bolt: SF: https://a", "liama6|TCG: https://b"}
	if len(irc.said) != len(want) {
		t.Fatalf("said = %v", irc.said)
	}
	for i := range want {
		if irc.said[i] != want[i] {
			t.Errorf("said[%d] = %q, want %q", i, irc.said[i], want[i])
		}
	}

	infos, _ := c.Channels(ctx)
	if len(infos) != 1 || infos[0].ID != "liama6" {
		t.Errorf("Channels() = %+v", infos)
	}
}

func TestReplyThreadsOnParent(t *testing.T) {
	irc := newFakeIRC()
	c := newWithIRC(irc, "bot")
	m := chat.Message{ChannelID: "liama6", MessageID: "abc"}
	if err := c.Reply(context.Background(), m, "Failed to fetch data"); err != nil {
		t.Fatal(err)
	}
	if len(irc.replies) != 1 || irc.replies[0] != "liama6|abc|Failed to fetch data" {
		t.Errorf("replies = %v", irc.replies)
	}
}
