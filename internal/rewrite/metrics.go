package rewrite

import (
	"regexp"
	"strings"
)

// MetricKind labels the shape of a quantitative claim.
type MetricKind string

const (
	MetricPercentage MetricKind = "percentage"
	MetricMultiplier MetricKind = "multiplier"
	MetricCurrency   MetricKind = "currency"
	MetricDuration   MetricKind = "duration"
	MetricCount      MetricKind = "count"
)

// Metric is one quantitative claim pulled out of a text span.
type Metric struct {
	Raw        string
	Kind       MetricKind
	normalized string
	numbers    []string
}

var (
	percentPattern    = regexp.MustCompile(`\d+(?:\.\d+)?\s?%`)
	multiplierPattern = regexp.MustCompile(`(?i)\b\d+(?:\.\d+)?x\b`)
	currencyPattern   = regexp.MustCompile(`(?i)[$€£]\s?\d[\d,]*(?:\.\d+)?\s?(?:k|m|bn|b|million|billion|thousand)?\b`)
	durationPattern   = regexp.MustCompile(`(?i)\b\d+(?:\.\d+)?\s?(?:years?|yrs?|months?|weeks?|days?|hours?|hrs?|minutes?|mins?|seconds?|secs?|milliseconds?|ms)\b`)
	countPattern      = regexp.MustCompile(`(?i)\b\d[\d,]*(?:\.\d+)?\+?(?:\s+(?:million|billion|thousand))?\s+(?:users|customers|clients|requests|transactions|engineers|developers|people|teams|members|services|servers|endpoints|records|rows|documents|events|queries|messages|jobs|builds|deployments|releases|downloads|installs|stars|repositories|microservices|applications|integrations|reports|tickets|incidents|stores|locations|countries|markets|regions)\b`)

	numberPattern = regexp.MustCompile(`\d+(?:\.\d+)?`)
)

// metricPatterns in claim priority order; earlier patterns own overlapping
// spans so "$2 million" is currency, not a count.
var metricPatterns = []struct {
	kind MetricKind
	re   *regexp.Regexp
}{
	{MetricPercentage, percentPattern},
	{MetricMultiplier, multiplierPattern},
	{MetricCurrency, currencyPattern},
	{MetricDuration, durationPattern},
	{MetricCount, countPattern},
}

// unitSynonyms canonicalizes abbreviated unit tokens so "3 yrs" and
// "3 years" compare equal. Applied per token, never inside a word.
var unitSynonyms = map[string]string{
	"yrs": "years", "yr": "year",
	"hrs": "hours", "hr": "hour",
	"mins": "minutes", "min": "minute",
	"secs": "seconds", "sec": "second",
	"milliseconds": "ms", "millisecond": "ms",
}

// ExtractMetrics returns the quantitative claims found in text, in document
// order, each span claimed by at most one pattern.
func ExtractMetrics(text string) []Metric {
	var metrics []Metric
	var claimed [][2]int
	for _, p := range metricPatterns {
		for _, loc := range p.re.FindAllStringIndex(text, -1) {
			if overlapsAny(loc[0], loc[1], claimed) {
				continue
			}
			claimed = append(claimed, [2]int{loc[0], loc[1]})
			raw := strings.TrimSpace(text[loc[0]:loc[1]])
			norm := normalizeMetric(raw)
			metrics = append(metrics, Metric{
				Raw:        raw,
				Kind:       p.kind,
				normalized: norm,
				numbers:    numberPattern.FindAllString(norm, -1),
			})
		}
	}
	return metrics
}

func overlapsAny(start, end int, claimed [][2]int) bool {
	for _, c := range claimed {
		if start < c[1] && end > c[0] {
			return true
		}
	}
	return false
}

func normalizeMetric(raw string) string {
	s := strings.ToLower(raw)
	s = strings.ReplaceAll(s, ",", "")
	s = strings.ReplaceAll(s, "+", "")
	fields := strings.Fields(s)
	for i, f := range fields {
		if canon, ok := unitSynonyms[f]; ok {
			fields[i] = canon
		}
	}
	s = strings.Join(fields, " ")
	return strings.ReplaceAll(s, " %", "%")
}

// matches reports whether the rewrite metric preserves the original claim:
// identical normalized form, or same kind with equal numeric tokens.
func (m Metric) matches(other Metric) bool {
	if m.normalized == other.normalized {
		return true
	}
	if m.Kind != other.Kind {
		return false
	}
	if len(m.numbers) != len(other.numbers) {
		return false
	}
	for i := range m.numbers {
		if m.numbers[i] != other.numbers[i] {
			return false
		}
	}
	return len(m.numbers) > 0
}

// MissingMetrics returns the surface forms of original metrics that have no
// preserved counterpart in the rewritten span.
func MissingMetrics(original, rewritten string) []string {
	originals := ExtractMetrics(original)
	if len(originals) == 0 {
		return nil
	}
	candidates := ExtractMetrics(rewritten)
	var missing []string
	for _, want := range originals {
		found := false
		for _, got := range candidates {
			if want.matches(got) {
				found = true
				break
			}
		}
		if !found {
			missing = append(missing, want.Raw)
		}
	}
	return missing
}
