package rewrite

import (
	"regexp"
	"strings"
	"unicode/utf8"
)

var (
	camelPattern      = regexp.MustCompile(`\b[A-Z][a-z0-9]*[A-Z][A-Za-z0-9]*\b`)
	dottedPattern     = regexp.MustCompile(`\b[A-Za-z][A-Za-z0-9]*(?:\.[A-Za-z][A-Za-z0-9]*)+\b`)
	versionPattern    = regexp.MustCompile(`\b[vV]?\d+\.\d+(?:\.\d+)*\b`)
	codePattern       = regexp.MustCompile(`\b[A-Za-z]+\d[A-Za-z0-9]*\b`)
	capitalizedSingle = regexp.MustCompile(`^[A-Z][a-z]{2,}$`)
	wordPattern       = regexp.MustCompile(`[A-Za-z][A-Za-z0-9.+#]*`)
)

// abbreviation-like tokens that the dotted pattern would otherwise pick up
// from ordinary prose.
var dottedSkip = map[string]struct{}{"e.g": {}, "i.e": {}, "etc": {}}

// ExtractTerms returns the candidate technical terms in a span: CamelCase
// tokens, dotted identifiers, version strings, alphanumeric codes and
// capitalized words. Spans belonging to an extracted metric are skipped so
// figures like 99.9% or $1.2M are not reported as terms. The first word of
// the span and words opening a new sentence are exempt from the
// capitalized-word rule only.
func ExtractTerms(text string) []string {
	metricSpans := metricRanges(text)

	var terms []string
	seen := make(map[string]struct{})
	add := func(term string) {
		key := strings.ToLower(term)
		if _, dup := seen[key]; dup {
			return
		}
		seen[key] = struct{}{}
		terms = append(terms, term)
	}

	for _, re := range []*regexp.Regexp{camelPattern, dottedPattern, versionPattern, codePattern} {
		for _, loc := range re.FindAllStringIndex(text, -1) {
			if overlapsAny(loc[0], loc[1], metricSpans) {
				continue
			}
			term := text[loc[0]:loc[1]]
			if _, skip := dottedSkip[strings.ToLower(term)]; skip {
				continue
			}
			add(term)
		}
	}

	for _, loc := range wordPattern.FindAllStringIndex(text, -1) {
		if overlapsAny(loc[0], loc[1], metricSpans) {
			continue
		}
		word := text[loc[0]:loc[1]]
		if !capitalizedSingle.MatchString(word) {
			continue
		}
		if sentenceStart(text, loc[0]) {
			continue
		}
		add(word)
	}
	return terms
}

func metricRanges(text string) [][2]int {
	var spans [][2]int
	for _, p := range metricPatterns {
		for _, loc := range p.re.FindAllStringIndex(text, -1) {
			spans = append(spans, [2]int{loc[0], loc[1]})
		}
	}
	return spans
}

// sentenceStart reports whether the word starting at offset opens the span or
// follows sentence-ending punctuation.
func sentenceStart(text string, offset int) bool {
	for i := offset; i > 0; {
		c, size := utf8.DecodeLastRuneInString(text[:i])
		i -= size
		switch c {
		case ' ', '\t', '\n', '\r', '"', '\'', '(', '[':
			continue
		case '.', '!', '?', ':', ';', '-', '•':
			return true
		default:
			return false
		}
	}
	return true
}

// FabricatedTerms returns the candidate terms of a rewrite that the
// vocabulary does not cover.
func FabricatedTerms(rewritten string, vocab *Vocabulary) []string {
	var fabricated []string
	for _, term := range ExtractTerms(rewritten) {
		if !vocab.Allows(term) {
			fabricated = append(fabricated, term)
		}
	}
	return fabricated
}
