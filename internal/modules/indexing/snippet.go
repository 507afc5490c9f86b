package indexing

import (
	"sort"
	"strings"
	"unicode"
)

const (
	DefaultSnippetLength = 200
	ellipsis             = "…"
)

type span struct{ start, end int }

// Snippet returns an excerpt of at most length runes (plus ellipsis markers).
// The window is anchored on the query term occurrences: the window holding the
// most whole occurrences wins, earliest on ties. Without any occurrence the
// prefix is used. Whitespace runs are collapsed to one space.
func Snippet(text, query string, length int) string {
	if length <= 0 {
		length = DefaultSnippetLength
	}
	runes := []rune(strings.Join(strings.Fields(text), " "))
	n := len(runes)
	if n <= length {
		return string(runes)
	}

	lower := make([]rune, n)
	for i, r := range runes {
		lower[i] = unicode.ToLower(r)
	}
	matches := findMatches(lower, queryTokens(query))

	start, anchorEnd, best := 0, 0, 0
	lead := length / 5
	for _, m := range matches {
		s := wordStart(runes, max(0, m.start-lead))
		if s+length > n {
			s = wordStart(runes, n-length)
		}
		if c := countWithin(matches, s, s+length); c > best {
			best, start, anchorEnd = c, s, m.end
		}
	}

	end := min(start+length, n)
	if end < n {
		if cut := lastBoundary(runes, start, end); cut > start && cut >= anchorEnd {
			end = cut
		}
	}
	out := strings.TrimSpace(string(runes[start:end]))
	if start > 0 {
		out = ellipsis + out
	}
	if end < n {
		out += ellipsis
	}
	return out
}

// queryTokens lowercases and splits the query on anything that is not a
// letter, digit or dot. Tokens shorter than two runes are dropped.
func queryTokens(query string) [][]rune {
	fields := strings.FieldsFunc(query, func(r rune) bool {
		return !(unicode.IsLetter(r) || unicode.IsDigit(r) || r == '.')
	})
	seen := map[string]bool{}
	var out [][]rune
	for _, f := range fields {
		f = strings.Trim(f, ".")
		tok := []rune(f)
		if len(tok) < 2 {
			continue
		}
		for i, r := range tok {
			tok[i] = unicode.ToLower(r)
		}
		key := string(tok)
		if seen[key] {
			continue
		}
		seen[key] = true
		out = append(out, tok)
	}
	return out
}

func findMatches(text []rune, tokens [][]rune) []span {
	var out []span
	for _, tok := range tokens {
		for i := 0; i+len(tok) <= len(text); i++ {
			if runesEqual(text[i:i+len(tok)], tok) {
				out = append(out, span{start: i, end: i + len(tok)})
			}
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].start != out[j].start {
			return out[i].start < out[j].start
		}
		return out[i].end < out[j].end
	})
	return out
}

func runesEqual(a, b []rune) bool {
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

func countWithin(matches []span, s, e int) int {
	i := sort.Search(len(matches), func(i int) bool { return matches[i].start >= s })
	c := 0
	for ; i < len(matches) && matches[i].start < e; i++ {
		if matches[i].end <= e {
			c++
		}
	}
	return c
}

func wordStart(runes []rune, p int) int {
	for p > 0 && runes[p-1] != ' ' {
		p--
	}
	return p
}

// lastBoundary returns the index of the last space in (start, end], or -1.
func lastBoundary(runes []rune, start, end int) int {
	for i := end; i > start; i-- {
		if i < len(runes) && runes[i] == ' ' {
			return i
		}
	}
	return -1
}
