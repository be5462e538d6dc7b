package commands

import (
	"context"
	"errors"
	"slices"
	"testing"

	"github.com/go-telegram/bot/models"

	"github.com/neoclaw-ai/teledispatch/internal/handler"
)

func TestParse(t *testing.T) {
	tests := []struct {
		name string
		text string
		want Command
	}{
		{name: "plain", text: "/help", want: Command{Name: "help"}},
		{name: "upper case", text: "/Meow", want: Command{Name: "meow"}},
		{name: "mention", text: "/generate@Test_Bot", want: Command{Name: "generate", Mention: "Test_Bot"}},
		{name: "arguments", text: "/generate 1 10", want: Command{Name: "generate", Args: []string{"1", "10"}}},
		{name: "quoted", text: `/say "hello world" again`, want: Command{Name: "say", Args: []string{"hello world", "again"}}},
		{name: "surrounding space", text: "  /count  ", want: Command{Name: "count"}},
		{name: "newline after name", text: "/say\nhi", want: Command{Name: "say", Args: []string{"hi"}}},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			got, err := Parse(tc.text)
			if err != nil {
				t.Fatalf("parse %q: %v", tc.text, err)
			}
			if got.Name != tc.want.Name || got.Mention != tc.want.Mention || !slices.Equal(got.Args, tc.want.Args) {
				t.Fatalf("parse %q = %+v, want %+v", tc.text, got, tc.want)
			}
		})
	}
}

func TestParseRejectsNonCommands(t *testing.T) {
	for _, text := range []string{"", "hello", "/", "/@bot", " not /a command"} {
		if _, err := Parse(text); !errors.Is(err, ErrNotCommand) {
			t.Fatalf("parse %q: expected ErrNotCommand, got %v", text, err)
		}
	}
}

func TestParseReportsBadQuoting(t *testing.T) {
	_, err := Parse(`/say "unterminated`)
	if err == nil || errors.Is(err, ErrNotCommand) {
		t.Fatalf("expected argument error, got %v", err)
	}
}

func TestDescriptions(t *testing.T) {
	set := NewSet("These commands are supported:",
		Definition{Name: "help", Description: "display this text."},
		Definition{Name: "/Meow", Description: "be a cat."},
	)
	want := "These commands are supported:\n/help - display this text.\n/meow - be a cat."
	if got := set.Descriptions(); got != want {
		t.Fatalf("descriptions = %q, want %q", got, want)
	}
	if _, ok := set.Lookup("MEOW"); !ok {
		t.Fatalf("expected case-insensitive lookup")
	}
}

func TestFilter(t *testing.T) {
	set := NewSet("", Definition{Name: "help"}, Definition{Name: "generate"})

	var got Command
	h := set.Filter(handler.Endpoint(func(_ context.Context, deps *handler.Deps) error {
		got = handler.MustGet(deps, CommandKey)
		return nil
	}))

	tests := []struct {
		name    string
		text    string
		me      *models.User
		handled bool
		want    string
	}{
		{name: "known command", text: "/help", handled: true, want: "help"},
		{name: "unknown command", text: "/nope", handled: false},
		{name: "plain text", text: "hello", handled: false},
		{name: "mention of this bot", text: "/generate@test_bot 1 2", me: &models.User{Username: "Test_Bot"}, handled: true, want: "generate"},
		{name: "mention of another bot", text: "/help@other_bot", me: &models.User{Username: "test_bot"}, handled: false},
		{name: "mention without identity", text: "/help@test_bot", handled: false},
		{name: "bad quoting", text: `/help "x`, handled: false},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			got = Command{}
			deps := handler.NewDeps()
			handler.Set(deps, handler.MessageKey, &models.Message{Text: tc.text})
			if tc.me != nil {
				handler.Set(deps, handler.MeKey, tc.me)
			}

			out := h.Handle(context.Background(), deps)
			if out.Handled() != tc.handled {
				t.Fatalf("handled = %v, want %v", out.Handled(), tc.handled)
			}
			if tc.handled && got.Name != tc.want {
				t.Fatalf("command = %q, want %q", got.Name, tc.want)
			}
			if !tc.handled && handler.Has(out.Deps, CommandKey) {
				t.Fatalf("command leaked into passed dependencies")
			}
		})
	}
}
