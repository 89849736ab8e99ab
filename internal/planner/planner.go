// Package planner turns a CaseFrame into a deterministic QueryPlan: an
// ordered list of weighted query atoms that retrieval fans out to the
// lexical and vector backends. Grounded on the Python
// prototype's retrieval/query_builder.py: same priority order (summary
// phrase, norms, issue/claim phrases, keywords), same weights, same
// dedup and truncation rules, so that a given CaseFrame always produces
// the same plan regardless of which process builds it.
package planner

import (
	"regexp"
	"strings"
)

// AtomKind distinguishes how a query atom should be treated by the
// backends that consume it.
type AtomKind string

const (
	KindPhrase   AtomKind = "phrase"
	KindKeywords AtomKind = "keywords"
	KindNorm     AtomKind = "norm"
)

// Atom is one query element fed to retrieval. Phrase atoms (quoted) favor
// BM25 precision; keywords atoms are a broad net for recall; norm atoms
// (statute references) are high-signal lexical anchors.
type Atom struct {
	Text   string
	Kind   AtomKind
	Weight float64
}

// Plan is the ordered, capped output of Build: the atoms retrieval issues
// against the lexical and vector indexes for one case.
type Plan struct {
	CaseID string
	Atoms  []Atom
	K      int
}

// Norm is one statute/legal-basis reference, expressed either as a bare
// string or as a {Title, Article} pair.
type Norm struct {
	Title   string
	Article string
}

// CaseFrame is the planner's input: the facts, legal basis, and
// issues/claims/questions extracted from a case that retrieval should
// search for supporting material.
type CaseFrame struct {
	CaseID      string
	Summary     string
	Keywords    []string
	Norms       []Norm
	NormStrings []string
	Claims      []string
	Issues      []string
	Questions   []string
}

const (
	weightSummaryPhrase = 1.4
	weightNorm          = 1.3
	weightIssuePhrase   = 1.2
	weightKeywords      = 1.0

	maxPhraseLen  = 160
	maxIssueAtoms = 2
)

var (
	whitespaceRe = regexp.MustCompile(`\s+`)
	dotSpacingRe = regexp.MustCompile(`\s*\.\s*`)
	strSuffixRe  = regexp.MustCompile(`(?i)(\d)(str\.)`)
)

func collapseWS(s string) string {
	return strings.TrimSpace(whitespaceRe.ReplaceAllString(s, " "))
}

func dedupKey(text string) string {
	t := strings.TrimSpace(text)
	if len(t) >= 2 && t[0] == '"' && t[len(t)-1] == '"' {
		t = t[1 : len(t)-1]
	}
	return strings.ToLower(collapseWS(t))
}

func quotePhrase(s string) string {
	s = strings.ReplaceAll(s, `"`, "'")
	return `"` + s + `"`
}

func truncatePhrase(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	cut := s[:maxLen]
	if idx := strings.LastIndex(cut, " "); idx >= 0 {
		cut = strings.TrimRight(cut[:idx], " ")
		if cut != "" {
			return cut
		}
	}
	return strings.TrimRight(s[:maxLen], " ")
}

func standardizeNorm(s string) string {
	s = collapseWS(s)
	s = dotSpacingRe.ReplaceAllString(s, ".")
	s = strSuffixRe.ReplaceAllString(s, "$1 $2")
	return collapseWS(s)
}

// Build constructs a deterministic Plan from frame, capped at k atoms.
// Construction order already respects the required priority (summary,
// norms, issues/claims/questions, keywords), so truncating to k after
// the fact preserves it.
func Build(frame CaseFrame, k int) Plan {
	if k <= 0 {
		return Plan{CaseID: frame.CaseID, Atoms: nil, K: k}
	}

	var atoms []Atom
	seen := make(map[string]struct{})

	add := func(text string, kind AtomKind, weight float64) {
		text = collapseWS(text)
		if text == "" {
			return
		}
		key := dedupKey(text)
		if _, ok := seen[key]; ok {
			return
		}
		seen[key] = struct{}{}
		atoms = append(atoms, Atom{Text: text, Kind: kind, Weight: weight})
	}

	if s := collapseWS(frame.Summary); s != "" {
		s = truncatePhrase(s, maxPhraseLen)
		if s != "" {
			add(quotePhrase(s), KindPhrase, weightSummaryPhrase)
		}
	}

	for _, n := range frame.NormStrings {
		if txt := standardizeNorm(n); txt != "" {
			add(txt, KindNorm, weightNorm)
		}
	}
	for _, n := range frame.Norms {
		var txt string
		switch {
		case n.Title != "" && n.Article != "":
			txt = standardizeNorm(n.Title + " " + n.Article)
		case n.Title != "":
			txt = standardizeNorm(n.Title)
		case n.Article != "":
			txt = standardizeNorm(n.Article)
		default:
			continue
		}
		if txt != "" {
			add(txt, KindNorm, weightNorm)
		}
	}

	var phraseSources []string
	phraseSources = append(phraseSources, frame.Claims...)
	phraseSources = append(phraseSources, frame.Issues...)
	phraseSources = append(phraseSources, frame.Questions...)

	taken := 0
	for _, s := range phraseSources {
		if taken >= maxIssueAtoms {
			break
		}
		t := truncatePhrase(collapseWS(s), maxPhraseLen)
		if t == "" {
			continue
		}
		before := len(atoms)
		add(quotePhrase(t), KindPhrase, weightIssuePhrase)
		if len(atoms) != before {
			taken++
		}
	}

	var kws []string
	for _, k := range frame.Keywords {
		if c := collapseWS(k); c != "" {
			kws = append(kws, c)
		}
	}
	if len(kws) > 0 {
		add(strings.Join(kws, " "), KindKeywords, weightKeywords)
	}

	if len(atoms) > k {
		atoms = atoms[:k]
	}
	return Plan{CaseID: frame.CaseID, Atoms: atoms, K: k}
}
