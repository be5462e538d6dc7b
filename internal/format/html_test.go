package format

import "testing"

func TestTelegramHTML(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{name: "plain", in: "hello", want: "hello"},
		{name: "escapes text", in: "a & b < c", want: "a &amp; b &lt; c"},
		{name: "inline styles", in: "**bold** and *it* `x<y`", want: "<b>bold</b> and <i>it</i> <code>x&lt;y</code>"},
		{name: "strikethrough", in: "~~gone~~", want: "<s>gone</s>"},
		{name: "heading", in: "# Title\n\nbody", want: "<b>Title</b>\n\nbody"},
		{name: "soft break", in: "line one\nline two", want: "line one\nline two"},
		{name: "paragraphs", in: "one\n\ntwo", want: "one\n\ntwo"},
		{name: "bullet list", in: "- a\n- b", want: "• a\n• b"},
		{name: "ordered list", in: "3. a\n4. b", want: "3. a\n4. b"},
		{
			name: "fenced code",
			in:   "```go\nfmt.Println(\"<hi>\")\n```",
			want: `<pre><code class="language-go">fmt.Println(&#34;&lt;hi&gt;&#34;)</code></pre>`,
		},
		{name: "link", in: "[docs](https://example.com/?a=1&b=2)", want: `<a href="https://example.com/?a=1&amp;b=2">docs</a>`},
		{name: "raw html is escaped", in: "a <b>b</b>", want: "a &lt;b&gt;b&lt;/b&gt;"},
		{name: "list then paragraph", in: "- a\n- b\n\nafter", want: "• a\n• b\n\nafter"},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			if got := TelegramHTML(tc.in); got != tc.want {
				t.Fatalf("TelegramHTML(%q) = %q, want %q", tc.in, got, tc.want)
			}
		})
	}
}
