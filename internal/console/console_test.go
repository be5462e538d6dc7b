package console

import (
	"bytes"
	"context"
	"io"
	"strings"
	"testing"
	"time"

	"github.com/neoclaw-ai/teledispatch/internal/updates"
)

func fetch(t *testing.T, c *Channel, offset int64) []updates.Update {
	t.Helper()
	batch, err := c.Fetch(context.Background(), updates.FetchParams{Offset: offset, Timeout: time.Second})
	if err != nil {
		t.Fatalf("fetch: %v", err)
	}
	return batch
}

func TestFetchTurnsLinesIntoMessages(t *testing.T) {
	c := New(strings.NewReader("hello\n/help\n"), io.Discard, "")

	batch := fetch(t, c, 0)
	if len(batch) != 1 {
		t.Fatalf("expected one update, got %d", len(batch))
	}
	upd := batch[0]
	if upd.ID != 1 || upd.Kind != updates.KindMessage || upd.Payload.Message.Text != "hello" {
		t.Fatalf("unexpected update %+v", upd)
	}
	if chatID, ok := upd.ChatID(); !ok || chatID != ChatID {
		t.Fatalf("expected console chat, got %d (%v)", chatID, ok)
	}

	// Not acknowledged yet: returned again.
	if again := fetch(t, c, 0); len(again) != 1 || again[0].ID != 1 {
		t.Fatalf("expected redelivery of update 1, got %+v", again)
	}

	next := fetch(t, c, 2)
	if len(next) != 1 || next[0].ID != 2 || next[0].Payload.Message.Text != "/help" {
		t.Fatalf("unexpected second batch %+v", next)
	}
}

func TestFetchRespectsLimit(t *testing.T) {
	c := New(strings.NewReader("a\nb\n"), io.Discard, "")
	fetch(t, c, 0)
	fetch(t, c, 0)

	batch, err := c.Fetch(context.Background(), updates.FetchParams{Offset: 0, Limit: 1, Timeout: time.Second})
	if err != nil {
		t.Fatalf("fetch: %v", err)
	}
	if len(batch) != 1 || batch[0].ID != 1 {
		t.Fatalf("expected only update 1, got %+v", batch)
	}
}

func TestQuitClosesDone(t *testing.T) {
	c := New(strings.NewReader("/quit\nignored\n"), io.Discard, "")

	if batch := fetch(t, c, 0); len(batch) != 0 {
		t.Fatalf("expected no updates for /quit, got %+v", batch)
	}
	select {
	case <-c.Done():
	default:
		t.Fatalf("expected done after /quit")
	}

	batch, err := c.Fetch(context.Background(), updates.FetchParams{Timeout: 20 * time.Millisecond})
	if err != nil || len(batch) != 0 {
		t.Fatalf("expected idle fetch after quit, got %+v, %v", batch, err)
	}
}

func TestEOFClosesDone(t *testing.T) {
	c := New(strings.NewReader(""), io.Discard, "")

	fetch(t, c, 0)
	select {
	case <-c.Done():
	case <-time.After(time.Second):
		t.Fatalf("expected done after EOF")
	}
}

func TestFetchHonorsContext(t *testing.T) {
	pr, pw := io.Pipe()
	defer pw.Close()
	c := New(pr, io.Discard, "")

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := c.Fetch(ctx, updates.FetchParams{Timeout: time.Minute}); err == nil {
		t.Fatalf("expected context error")
	}
}

func TestSendHTMLStripsMarkup(t *testing.T) {
	var out bytes.Buffer
	c := New(strings.NewReader(""), &out, "")

	if err := c.SendHTML(context.Background(), ChatID, "<b>Hi</b> &amp; bye"); err != nil {
		t.Fatalf("send html: %v", err)
	}
	if got := out.String(); got != "bot> Hi & bye\n" {
		t.Fatalf("unexpected output %q", got)
	}
	if err := c.SendText(context.Background(), 99, "x"); err == nil {
		t.Fatalf("expected error for unknown chat")
	}
}

func TestGetMe(t *testing.T) {
	me, err := New(strings.NewReader(""), io.Discard, "").GetMe(context.Background())
	if err != nil || !me.IsBot || me.Username == "" {
		t.Fatalf("unexpected identity %+v, %v", me, err)
	}
}

func TestCloseStopsReaderAfterQuit(t *testing.T) {
	var out bytes.Buffer
	c := New(strings.NewReader("/quit\nignored\n"), &out, "")

	fetch(t, c, 0)
	if err := c.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}

	// Close waited for the reader, so the buffer is no longer written to.
	if got := out.String(); got != "you> " {
		t.Fatalf("expected a single prompt before /quit, got %q", got)
	}
	select {
	case <-c.readerDone:
	default:
		t.Fatalf("expected reader goroutine to have exited")
	}
}
