package rewrite

import (
	"reflect"
	"testing"
)

func TestExtractMetricsKinds(t *testing.T) {
	cases := []struct {
		text string
		want map[string]MetricKind
	}{
		{
			text: "Reduced latency by 40% using caching",
			want: map[string]MetricKind{"40%": MetricPercentage},
		},
		{
			text: "Achieved 3x throughput for 1,200 users",
			want: map[string]MetricKind{"3x": MetricMultiplier, "1,200 users": MetricCount},
		},
		{
			text: "Saved $1.2 million over 18 months",
			want: map[string]MetricKind{"$1.2 million": MetricCurrency, "18 months": MetricDuration},
		},
		{
			text: "Cut p99 from 800 ms to 90 ms",
			want: map[string]MetricKind{"800 ms": MetricDuration, "90 ms": MetricDuration},
		},
		{
			text: "No numbers here",
			want: map[string]MetricKind{},
		},
	}

	for _, tc := range cases {
		got := ExtractMetrics(tc.text)
		if len(got) != len(tc.want) {
			t.Fatalf("%q: expected %d metrics, got %d (%v)", tc.text, len(tc.want), len(got), got)
		}
		for _, m := range got {
			kind, ok := tc.want[m.Raw]
			if !ok {
				t.Fatalf("%q: unexpected metric %q", tc.text, m.Raw)
			}
			if m.Kind != kind {
				t.Fatalf("%q: metric %q expected kind %s, got %s", tc.text, m.Raw, kind, m.Kind)
			}
		}
	}
}

func TestNormalizeMetricEquivalence(t *testing.T) {
	pairs := [][2]string{
		{"40 %", "40%"},
		{"3 yrs", "3 years"},
		{"1,000 users", "1000 users"},
		{"$2M", "$2m"},
	}
	for _, p := range pairs {
		if normalizeMetric(p[0]) != normalizeMetric(p[1]) {
			t.Fatalf("expected %q and %q to normalize equal, got %q vs %q",
				p[0], p[1], normalizeMetric(p[0]), normalizeMetric(p[1]))
		}
	}
}

func TestMissingMetricsChangedPercentage(t *testing.T) {
	original := "Reduced latency by 40% using caching"
	rewritten := "Reduced latency by 60% using caching"

	missing := MissingMetrics(original, rewritten)
	if !reflect.DeepEqual(missing, []string{"40%"}) {
		t.Fatalf("expected missing [40%%], got %v", missing)
	}
}

func TestMissingMetricsPreservedAcrossFormatting(t *testing.T) {
	original := "Scaled the platform to 1,000 users in 6 months"
	rewritten := "Grew the platform to 1000 users within 6 months"

	if missing := MissingMetrics(original, rewritten); len(missing) != 0 {
		t.Fatalf("expected no missing metrics, got %v", missing)
	}
}

func TestMissingMetricsDroppedClaim(t *testing.T) {
	original := "Cut costs by 30% and saved $50k annually"
	rewritten := "Cut costs by 30% through vendor consolidation"

	missing := MissingMetrics(original, rewritten)
	if !reflect.DeepEqual(missing, []string{"$50k"}) {
		t.Fatalf("expected missing [$50k], got %v", missing)
	}
}

func TestMissingMetricsKindMismatchNotCounted(t *testing.T) {
	original := "Onboarded 40 engineers"
	rewritten := "Improved results by 40%"

	missing := MissingMetrics(original, rewritten)
	if !reflect.DeepEqual(missing, []string{"40 engineers"}) {
		t.Fatalf("expected a percentage not to satisfy a count, got %v", missing)
	}
}
