package bot

import (
	"context"
	"errors"
	"strconv"
	"strings"
	"testing"

	"github.com/go-telegram/bot/models"

	"github.com/neoclaw-ai/teledispatch/internal/handler"
	"github.com/neoclaw-ai/teledispatch/internal/stats"
	"github.com/neoclaw-ai/teledispatch/internal/updates"
)

type sent struct {
	chatID int64
	text   string
	html   bool
}

type fakeReplier struct {
	sent []sent
	err  error
}

func (r *fakeReplier) SendText(_ context.Context, chatID int64, text string) error {
	r.sent = append(r.sent, sent{chatID: chatID, text: text})
	return r.err
}

func (r *fakeReplier) SendHTML(_ context.Context, chatID int64, html string) error {
	r.sent = append(r.sent, sent{chatID: chatID, text: html, html: true})
	return r.err
}

func messageDeps(text string, counter *stats.Counter, replier Replier) *handler.Deps {
	deps := handler.NewDeps()
	handler.Set(deps, handler.UpdateKey, updates.Update{
		ID:   1,
		Kind: updates.KindMessage,
		Payload: &models.Update{ID: 1, Message: &models.Message{
			ID:   1,
			Chat: models.Chat{ID: 77},
			Text: text,
		}},
	})
	handler.Set(deps, stats.CounterKey, counter)
	handler.Set(deps, ReplierKey, replier)
	handler.Set(deps, handler.MeKey, &models.User{Username: "demo_bot"})
	return deps
}

func run(t *testing.T, text string, counter *stats.Counter) (*fakeReplier, handler.Outcome) {
	t.Helper()
	replier := &fakeReplier{}
	out := Handler().Handle(context.Background(), messageDeps(text, counter, replier))
	return replier, out
}

func TestHelpListsCommands(t *testing.T) {
	replier, out := run(t, "/help", &stats.Counter{})
	if !out.Handled() || out.Err != nil {
		t.Fatalf("unexpected outcome %+v", out)
	}
	if len(replier.sent) != 1 {
		t.Fatalf("expected one reply, got %d", len(replier.sent))
	}
	reply := replier.sent[0]
	if reply.chatID != 77 || !strings.HasPrefix(reply.text, "These commands are supported:") {
		t.Fatalf("unexpected reply %+v", reply)
	}
	for _, name := range []string{"/help", "/meow", "/generate", "/count"} {
		if !strings.Contains(reply.text, name) {
			t.Fatalf("help text misses %s: %q", name, reply.text)
		}
	}
}

func TestMeow(t *testing.T) {
	replier, _ := run(t, "/meow@demo_bot", &stats.Counter{})
	if len(replier.sent) != 1 || replier.sent[0].text != "I am a cat! Meow!" {
		t.Fatalf("unexpected replies %+v", replier.sent)
	}
}

func TestGenerate(t *testing.T) {
	replier, _ := run(t, "/generate", &stats.Counter{})
	v, err := strconv.ParseFloat(replier.sent[0].text, 64)
	if err != nil || v < 0 || v >= 1 {
		t.Fatalf("expected number in [0; 1), got %q", replier.sent[0].text)
	}

	replier, _ = run(t, "/generate 5 5", &stats.Counter{})
	if replier.sent[0].text != "5" {
		t.Fatalf("expected 5, got %q", replier.sent[0].text)
	}

	replier, _ = run(t, "/generate -3 3", &stats.Counter{})
	n, err := strconv.Atoi(replier.sent[0].text)
	if err != nil || n < -3 || n > 3 {
		t.Fatalf("expected integer in [-3; 3], got %q", replier.sent[0].text)
	}

	for _, text := range []string{"/generate 9 1", "/generate x y", "/generate 1"} {
		replier, out := run(t, text, &stats.Counter{})
		if out.Err != nil || replier.sent[0].text != generateUsage {
			t.Fatalf("%s: expected usage reply, got %+v (%v)", text, replier.sent, out.Err)
		}
	}
}

func TestCounterCountsEveryMessage(t *testing.T) {
	counter := &stats.Counter{}

	replier, _ := run(t, "hello", counter)
	if got := replier.sent[0]; !got.html || got.text != "I received <b>0</b> messages in total." {
		t.Fatalf("unexpected first reply %+v", got)
	}
	run(t, "/meow", counter)
	replier, _ = run(t, "again", counter)
	if got := replier.sent[0].text; got != "I received <b>2</b> messages in total." {
		t.Fatalf("unexpected third reply %q", got)
	}

	replier, _ = run(t, "/count", counter)
	if got := replier.sent[0].text; got != "I received <b>4</b> messages in total." {
		t.Fatalf("unexpected count reply %q", got)
	}
}

func TestCommandForAnotherBotIsCounted(t *testing.T) {
	counter := &stats.Counter{}
	replier, out := run(t, "/help@other_bot", counter)
	if !out.Handled() {
		t.Fatalf("expected text reply")
	}
	if !strings.Contains(replier.sent[0].text, "messages in total") {
		t.Fatalf("expected counter reply, got %q", replier.sent[0].text)
	}
}

func TestNonMessageUpdatesPass(t *testing.T) {
	deps := handler.NewDeps()
	handler.Set(deps, handler.UpdateKey, updates.Update{
		ID:      2,
		Kind:    updates.KindCallbackQuery,
		Payload: &models.Update{ID: 2, CallbackQuery: &models.CallbackQuery{ID: "cb"}},
	})
	handler.Set(deps, stats.CounterKey, &stats.Counter{})

	if out := Handler().Handle(context.Background(), deps); out.Handled() {
		t.Fatalf("expected callback query to pass, got %+v", out)
	}
}

func TestMessageWithoutTextPasses(t *testing.T) {
	counter := &stats.Counter{}
	replier, out := run(t, "", counter)
	if out.Handled() || len(replier.sent) != 0 {
		t.Fatalf("expected pass without replies, got %+v", out)
	}
	if counter.Load() != 1 {
		t.Fatalf("expected the message to be counted")
	}
}

func TestReplyErrorsAreReturned(t *testing.T) {
	boom := errors.New("send failed")
	replier := &fakeReplier{err: boom}
	out := Handler().Handle(context.Background(), messageDeps("/meow", &stats.Counter{}, replier))
	if !out.Handled() || !errors.Is(out.Err, boom) {
		t.Fatalf("expected handled error, got %+v", out)
	}
}
