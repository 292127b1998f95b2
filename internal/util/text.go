package util

import (
	"regexp"
	"strings"
	"unicode"
	"unicode/utf8"

	"golang.org/x/text/cases"
	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

var (
	reHSpaces   = regexp.MustCompile(`[ \t\f\v]+`)
	reSpaces    = regexp.MustCompile(`\s+`)
	quoteFolder = strings.NewReplacer("’", "'", "‘", "'", "“", `"`, "”", `"`, "\r\n", "\n", "\r", "\n")
)

// Fold lowercases text, strips accents and collapses horizontal whitespace.
// Line breaks and digits survive unchanged so numbers and lines can still
// be scanned in the folded text.
func Fold(s string) string {
	t := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	out, _, err := transform.String(t, s)
	if err != nil {
		out = s
	}
	out = cases.Fold().String(out)
	out = quoteFolder.Replace(out)
	return reHSpaces.ReplaceAllString(out, " ")
}

// FoldAll folds every term of a list.
func FoldAll(terms []string) []string {
	out := make([]string, 0, len(terms))
	for _, term := range terms {
		if f := strings.TrimSpace(Fold(term)); f != "" {
			out = append(out, f)
		}
	}
	return out
}

// ContainsAny reports whether folded text contains any folded term.
func ContainsAny(folded string, terms []string) bool {
	for _, term := range terms {
		if term != "" && strings.Contains(folded, term) {
			return true
		}
	}
	return false
}

// IndexAny returns the earliest occurrence of any term, preferring the
// longest term when two start at the same offset.
func IndexAny(folded string, terms []string) (int, string) {
	best, bestTerm := -1, ""
	for _, term := range terms {
		if term == "" {
			continue
		}
		i := strings.Index(folded, term)
		if i < 0 {
			continue
		}
		if best < 0 || i < best || (i == best && len(term) > len(bestTerm)) {
			best, bestTerm = i, term
		}
	}
	return best, bestTerm
}

// NormalizeHeader folds a spreadsheet header cell for column matching.
func NormalizeHeader(input string) string {
	s := Fold(input)
	s = strings.Trim(s, " \"'*:")
	return strings.TrimSpace(reSpaces.ReplaceAllString(s, " "))
}

func NormalizeSpaces(input string) string {
	return strings.TrimSpace(reSpaces.ReplaceAllString(input, " "))
}

func SplitLines(text string) []string {
	text = strings.ReplaceAll(text, "\r\n", "\n")
	parts := strings.Split(text, "\n")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p != "" {
			out = append(out, p)
		}
	}
	return out
}

// ContainsWord is ContainsAny restricted to whole-word occurrences, for
// short cue words such as "all" or "sum".
func ContainsWord(folded string, words []string) bool {
	for _, w := range words {
		if w == "" {
			continue
		}
		for from := 0; from < len(folded); {
			i := strings.Index(folded[from:], w)
			if i < 0 {
				break
			}
			start, end := from+i, from+i+len(w)
			if wordBoundary(folded, start, end) {
				return true
			}
			from = start + 1
		}
	}
	return false
}

func wordBoundary(s string, start, end int) bool {
	if start > 0 {
		r, _ := utf8.DecodeLastRuneInString(s[:start])
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			return false
		}
	}
	if end < len(s) {
		r, _ := utf8.DecodeRuneInString(s[end:])
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			return false
		}
	}
	return true
}
