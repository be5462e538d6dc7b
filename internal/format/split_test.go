package format

import (
	"slices"
	"strings"
	"testing"
)

func TestSplitMessageShortTextIsOnePiece(t *testing.T) {
	got := SplitMessage("hello")
	if !slices.Equal(got, []string{"hello"}) {
		t.Fatalf("unexpected pieces %q", got)
	}
}

func TestSplitMessageHardLimit(t *testing.T) {
	got := SplitMessage(strings.Repeat("a", MaxMessageLength+904))
	if len(got) != 2 || len(got[0]) != MaxMessageLength || len(got[1]) != 904 {
		t.Fatalf("unexpected piece lengths %d", len(got))
	}
}

func TestSplitMessageCountsUTF16Units(t *testing.T) {
	// Each emoji is two UTF-16 units.
	got := SplitMessage(strings.Repeat("😀", MaxMessageLength/2+1))
	if len(got) != 2 {
		t.Fatalf("expected 2 pieces, got %d", len(got))
	}
	if n := len([]rune(got[0])); n != MaxMessageLength/2 {
		t.Fatalf("expected %d emoji in first piece, got %d", MaxMessageLength/2, n)
	}
}

func TestSplitAtPrefersLineBreaks(t *testing.T) {
	tests := []struct {
		name  string
		text  string
		limit int
		want  []string
	}{
		{name: "fits", text: "ab\ncd", limit: 5, want: []string{"ab\ncd"}},
		{name: "break at newline", text: "abc\ndef\nghi", limit: 8, want: []string{"abc\ndef", "ghi"}},
		{name: "no newline", text: "abcdefgh", limit: 3, want: []string{"abc", "def", "gh"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := splitAt(tt.text, tt.limit); !slices.Equal(got, tt.want) {
				t.Fatalf("splitAt(%q, %d) = %q, want %q", tt.text, tt.limit, got, tt.want)
			}
		})
	}
}
