// Package format renders Markdown as the HTML subset Telegram accepts.
package format

import (
	"bytes"
	"html"
	"strconv"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/ast"
	"github.com/yuin/goldmark/extension"
	extast "github.com/yuin/goldmark/extension/ast"
	"github.com/yuin/goldmark/text"
)

// MaxMessageLength is Telegram's limit for one text message, in UTF-16 code units.
const MaxMessageLength = 4096

var markdown = goldmark.New(goldmark.WithExtensions(extension.Strikethrough))

// TelegramHTML converts Markdown to Telegram HTML: headings become bold, lists
// become bullet lines, and any raw HTML in the input is escaped.
func TelegramHTML(src string) string {
	source := []byte(src)
	doc := markdown.Parser().Parse(text.NewReader(source))

	r := &renderer{source: source}
	_ = ast.Walk(doc, r.walk)
	trimTrailingNewlines(&r.out)
	return r.out.String()
}

type renderer struct {
	source []byte
	out    bytes.Buffer
}

func (r *renderer) walk(n ast.Node, entering bool) (ast.WalkStatus, error) {
	switch node := n.(type) {
	case *ast.Document:
	case *ast.Paragraph:
		if !entering {
			r.endBlock(node)
		}
	case *ast.TextBlock:
		if !entering && node.NextSibling() != nil {
			r.out.WriteByte('\n')
		}
	case *ast.Heading:
		if entering {
			r.out.WriteString("<b>")
		} else {
			r.out.WriteString("</b>")
			r.endBlock(node)
		}
	case *ast.Blockquote:
		if entering {
			r.out.WriteString("<blockquote>")
		} else {
			trimTrailingNewlines(&r.out)
			r.out.WriteString("</blockquote>")
			r.endBlock(node)
		}
	case *ast.List:
		if !entering {
			trimTrailingNewlines(&r.out)
			r.endBlock(node)
		}
	case *ast.ListItem:
		if entering {
			r.out.WriteString(listMarker(node))
		} else {
			trimTrailingNewlines(&r.out)
			r.out.WriteByte('\n')
		}
	case *ast.ThematicBreak:
		if entering {
			r.out.WriteString("⎯⎯⎯")
			r.endBlock(node)
		}
	case *ast.FencedCodeBlock:
		if entering {
			lang := node.Language(r.source)
			if len(lang) > 0 {
				r.out.WriteString(`<pre><code class="language-` + html.EscapeString(string(lang)) + `">`)
			} else {
				r.out.WriteString("<pre><code>")
			}
			r.writeLines(node)
			r.out.WriteString("</code></pre>")
			r.endBlock(node)
		}
		return ast.WalkSkipChildren, nil
	case *ast.CodeBlock:
		if entering {
			r.out.WriteString("<pre><code>")
			r.writeLines(node)
			r.out.WriteString("</code></pre>")
			r.endBlock(node)
		}
		return ast.WalkSkipChildren, nil
	case *ast.HTMLBlock:
		if entering {
			r.writeLines(node)
			if node.HasClosure() {
				r.out.WriteString(html.EscapeString(string(node.ClosureLine.Value(r.source))))
			}
			r.endBlock(node)
		}
		return ast.WalkSkipChildren, nil
	case *ast.RawHTML:
		if entering {
			for i := 0; i < node.Segments.Len(); i++ {
				seg := node.Segments.At(i)
				r.out.WriteString(html.EscapeString(string(seg.Value(r.source))))
			}
		}
		return ast.WalkSkipChildren, nil
	case *ast.Emphasis:
		tag := "i"
		if node.Level >= 2 {
			tag = "b"
		}
		r.tag(tag, entering)
	case *extast.Strikethrough:
		r.tag("s", entering)
	case *ast.CodeSpan:
		r.tag("code", entering)
	case *ast.Link:
		if entering {
			r.out.WriteString(`<a href="` + html.EscapeString(string(node.Destination)) + `">`)
		} else {
			r.out.WriteString("</a>")
		}
	case *ast.Image:
		if entering {
			r.out.WriteString(`<a href="` + html.EscapeString(string(node.Destination)) + `">`)
		} else {
			r.out.WriteString("</a>")
		}
	case *ast.AutoLink:
		if entering {
			url := html.EscapeString(string(node.URL(r.source)))
			r.out.WriteString(`<a href="` + url + `">` + url + `</a>`)
		}
		return ast.WalkSkipChildren, nil
	case *ast.Text:
		if entering {
			r.out.WriteString(html.EscapeString(string(node.Segment.Value(r.source))))
			if node.SoftLineBreak() || node.HardLineBreak() {
				r.out.WriteByte('\n')
			}
		}
	case *ast.String:
		if entering {
			r.out.WriteString(html.EscapeString(string(node.Value)))
		}
	}
	return ast.WalkContinue, nil
}

func (r *renderer) tag(name string, entering bool) {
	if entering {
		r.out.WriteString("<" + name + ">")
	} else {
		r.out.WriteString("</" + name + ">")
	}
}

func (r *renderer) writeLines(n ast.Node) {
	lines := n.Lines()
	var block bytes.Buffer
	for i := 0; i < lines.Len(); i++ {
		seg := lines.At(i)
		block.Write(seg.Value(r.source))
	}
	r.out.WriteString(html.EscapeString(string(bytes.TrimRight(block.Bytes(), "\n"))))
}

// endBlock separates top-level blocks with a blank line and nested blocks with
// a single newline.
func (r *renderer) endBlock(n ast.Node) {
	switch n.Parent().(type) {
	case *ast.ListItem:
		r.out.WriteByte('\n')
	case *ast.Blockquote:
		r.out.WriteByte('\n')
	default:
		r.out.WriteString("\n\n")
	}
}

func listMarker(item *ast.ListItem) string {
	list, ok := item.Parent().(*ast.List)
	if !ok || !list.IsOrdered() {
		return "• "
	}
	index := list.Start
	for sib := item.PreviousSibling(); sib != nil; sib = sib.PreviousSibling() {
		index++
	}
	return strconv.Itoa(index) + ". "
}

func trimTrailingNewlines(buf *bytes.Buffer) {
	for buf.Len() > 0 && buf.Bytes()[buf.Len()-1] == '\n' {
		buf.Truncate(buf.Len() - 1)
	}
}
