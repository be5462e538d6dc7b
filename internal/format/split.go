package format

import (
	"strings"
	"unicode/utf16"
	"unicode/utf8"
)

// SplitMessage cuts plain text into pieces that each fit in one message,
// breaking at the last newline that fits when there is one.
func SplitMessage(text string) []string {
	return splitAt(text, MaxMessageLength)
}

func splitAt(text string, limit int) []string {
	var parts []string
	for utf16Len(text) > limit {
		cut := cutIndex(text, limit)
		parts = append(parts, strings.TrimRight(text[:cut], "\n"))
		text = strings.TrimLeft(text[cut:], "\n")
	}
	if text != "" || len(parts) == 0 {
		parts = append(parts, text)
	}
	return parts
}

// cutIndex is the byte length of the longest prefix of text within limit
// UTF-16 units, shortened to end at a newline when the prefix has one.
func cutIndex(text string, limit int) int {
	units, end, lastNewline := 0, 0, -1
	for i, r := range text {
		n := utf16.RuneLen(r)
		if n < 0 {
			n = 1
		}
		if units+n > limit {
			break
		}
		units += n
		end = i + utf8.RuneLen(r)
		if r == '\n' {
			lastNewline = i
		}
	}
	if lastNewline > 0 {
		return lastNewline + 1
	}
	if end == 0 {
		_, size := utf8.DecodeRuneInString(text)
		return size
	}
	return end
}

func utf16Len(s string) int {
	n := 0
	for _, r := range s {
		if l := utf16.RuneLen(r); l > 0 {
			n += l
		} else {
			n++
		}
	}
	return n
}
