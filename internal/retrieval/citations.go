package retrieval

import (
	"regexp"
	"strings"
	"unicode"
)

// Citation is a verbatim substring of a chunk with its offsets, grounding
// one hybrid hit.
type Citation struct {
	Quote     string
	Start     int
	End       int
	SourceURL *string
}

var (
	quotedRe     = regexp.MustCompile(`"([^"]+)"`)
	whitespaceRx = regexp.MustCompile(`\s+`)
)

const (
	citationWindow     = 220
	fallbackWindow     = 200
	maxQueryTerms      = 20
	defaultMaxCitation = 2
)

// ExtractQueryTerms pulls quoted phrases and remaining whitespace tokens
// out of a raw query string, case-fold deduped and capped at 20.
// Grounded on hybrid_retrieval.py's _extract_query_terms.
func ExtractQueryTerms(query string) []string {
	phrases := []string{}
	for _, m := range quotedRe.FindAllStringSubmatch(query, -1) {
		phrases = append(phrases, m[1])
	}
	stripped := quotedRe.ReplaceAllString(query, " ")
	var words []string
	for _, w := range whitespaceRx.Split(stripped, -1) {
		if w != "" {
			words = append(words, w)
		}
	}

	var out []string
	seen := make(map[string]struct{})
	for _, t := range append(phrases, words...) {
		t = strings.TrimSpace(t)
		if t == "" {
			continue
		}
		key := strings.ToLower(collapseWhitespace(t))
		if key == "" {
			continue
		}
		if _, ok := seen[key]; ok {
			continue
		}
		seen[key] = struct{}{}
		out = append(out, collapseWhitespace(t))
		if len(out) >= maxQueryTerms {
			break
		}
	}
	return out
}

func collapseWhitespace(s string) string {
	return strings.TrimSpace(whitespaceRx.ReplaceAllString(s, " "))
}

// findFirstMatch returns the earliest case-insensitive occurrence of any
// term in text, as a [start, end) byte span.
func findFirstMatch(text string, terms []string) (int, int, bool) {
	low := strings.ToLower(text)
	bestStart, bestEnd := -1, -1
	for _, t := range terms {
		t2 := strings.TrimSpace(t)
		if t2 == "" {
			continue
		}
		pos := strings.Index(low, strings.ToLower(t2))
		if pos < 0 {
			continue
		}
		end := pos + len(t2)
		if bestStart == -1 || pos < bestStart {
			bestStart, bestEnd = pos, end
		}
	}
	if bestStart == -1 {
		return 0, 0, false
	}
	return bestStart, bestEnd, true
}

// snapToWordBoundary expands [start,end) outward to the nearest
// whitespace on each side, operating on runes so multi-byte UTF-8 text
// is never split mid-rune.
func snapToWordBoundary(runes []rune, start, end int) (int, int) {
	s, e := start, end
	if s < 0 {
		s = 0
	}
	if e > len(runes) {
		e = len(runes)
	}
	for s > 0 && !unicode.IsSpace(runes[s-1]) {
		s--
	}
	for e < len(runes) && !unicode.IsSpace(runes[e]) {
		e++
	}
	return s, e
}

// ExtractCitations extracts up to maxCitations short quotes from
// chunkText with byte offsets, grounded on hybrid_retrieval.py's
// extract_citations: a ~220 char window centered on the first matching
// query term, snapped to word boundaries; if no term matches, the first
// ~200 chars, likewise snapped. Always returns at least one citation; an
// empty chunk yields a single empty citation at (0, 0).
func ExtractCitations(chunkText string, queryTerms []string, sourceURL *string, maxCitations int) []Citation {
	if chunkText == "" {
		return []Citation{{Quote: "", Start: 0, End: 0, SourceURL: sourceURL}}
	}
	if maxCitations < 1 {
		maxCitations = 1
	}

	runes := []rune(chunkText)
	var s, e int
	if ms, me, ok := findFirstMatch(chunkText, queryTerms); ok {
		center := (runeIndex(chunkText, ms) + runeIndex(chunkText, me)) / 2
		half := citationWindow / 2
		s0 := center - half
		if s0 < 0 {
			s0 = 0
		}
		e0 := s0 + citationWindow
		if e0 > len(runes) {
			e0 = len(runes)
		}
		s, e = snapToWordBoundary(runes, s0, e0)
	} else {
		e0 := fallbackWindow
		if e0 > len(runes) {
			e0 = len(runes)
		}
		s, e = snapToWordBoundary(runes, 0, e0)
	}

	quote := string(runes[s:e])
	byteStart := byteIndexOfRune(chunkText, s)
	byteEnd := byteIndexOfRune(chunkText, e)
	return []Citation{{Quote: quote, Start: byteStart, End: byteEnd, SourceURL: sourceURL}}
}

// runeIndex converts a byte offset into text to a rune index.
func runeIndex(text string, byteOffset int) int {
	return len([]rune(text[:byteOffset]))
}

// byteIndexOfRune converts a rune index back to a byte offset.
func byteIndexOfRune(text string, runeOffset int) int {
	if runeOffset <= 0 {
		return 0
	}
	count := 0
	for i := range text {
		if count == runeOffset {
			return i
		}
		count++
	}
	return len(text)
}
