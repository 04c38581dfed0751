package toy

import (
	"strings"
	"unicode"
	"unicode/utf8"
)

// Special token text. Anything of the form <|name|> is a single piece.
const (
	bosText = "<|bos|>"
	eosText = "<|eos|>"
)

// split cuts text into pieces whose concatenation is text. Words and
// punctuation carry their leading spaces; every newline is its own piece and
// <|...|> markers are atomic.
func split(text string) []string {
	var out []string
	i := 0
	for i < len(text) {
		if text[i] == '\n' {
			out = append(out, "\n")
			i++
			continue
		}
		start := i
		for i < len(text) {
			r, sz := utf8.DecodeRuneInString(text[i:])
			if r == '\n' || !unicode.IsSpace(r) {
				break
			}
			i += sz
		}
		if i == len(text) || text[i] == '\n' {
			out = append(out, text[start:i])
			continue
		}
		if n := specialLen(text[i:]); n > 0 {
			if i > start {
				out = append(out, text[start:i])
			}
			out = append(out, text[i:i+n])
			i += n
			continue
		}
		r, sz := utf8.DecodeRuneInString(text[i:])
		i += sz
		if isWordRune(r) {
			for i < len(text) {
				r, sz = utf8.DecodeRuneInString(text[i:])
				if !isWordRune(r) {
					break
				}
				i += sz
			}
		}
		out = append(out, text[start:i])
	}
	return out
}

func specialLen(s string) int {
	if !strings.HasPrefix(s, "<|") {
		return 0
	}
	end := strings.Index(s[2:], "|>")
	if end < 0 {
		return 0
	}
	name := s[2 : 2+end]
	if name == "" || strings.ContainsFunc(name, unicode.IsSpace) {
		return 0
	}
	return end + 4
}

func isSpecial(piece string) bool {
	return len(piece) > 4 && specialLen(piece) == len(piece)
}

func isWordRune(r rune) bool {
	return unicode.IsLetter(r) || unicode.IsDigit(r) || r == '\'' || r == '_'
}
