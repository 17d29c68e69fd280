package analysis

import (
	"strings"
	"testing"
)

func TestRuleBased_Classify(t *testing.T) {
	// WHAT: the first category in rule order wins; impact follows the keyword and length rules.
	long := strings.Repeat("neutral words ", 20)
	tests := []struct {
		name         string
		content      string
		wantCategory string
		wantImpact   string
	}{
		{"product and hiring picks product", "New release: we are hiring for the team", "Product", "Low"},
		{"marketing", "Our new campaign is live" + long, "Marketing", "Medium"},
		{"hiring", "Join the team as an engineer" + long, "Hiring", "Medium"},
		{"funding high", "Series B funding: a major milestone" + long, "Funding", "High"},
		{"partnership", "A strategic alliance with Globex" + long, "Partnership", "Medium"},
		{"leadership", "New CEO appointed" + long, "Leadership", "Medium"},
		{"default product", "Nothing to see here" + long, "Product", "Medium"},
		{"minor keyword", "A minor fix to the docs" + long, "Product", "Low"},
		{"short content is low", "Hello", "Product", "Low"},
		{"high beats low", "A small but significant change", "Product", "High"},
	}
	var r RuleBased
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cat, impact := r.Classify(tt.content)
			if cat != tt.wantCategory || impact != tt.wantImpact {
				t.Fatalf("Classify = %s/%s, want %s/%s", cat, impact, tt.wantCategory, tt.wantImpact)
			}
		})
	}
}

func TestRuleBased_AnalyzeTemplate(t *testing.T) {
	// WHAT: the fallback text follows the four-field template exactly.
	// WHY: downstream readers parse it exactly like provider output.
	content := "Acme announced a major funding round led by Initech."
	got := RuleBased{}.Analyze(content, "Acme")
	want := "Summary: Acme has published content related to funding. " + content + "...\n" +
		"Category: Funding\n" +
		"Impact: High\n" +
		"Action: Monitor Acme's funding developments and assess competitive implications for our business."
	if got != want {
		t.Fatalf("Analyze =\n%s\nwant\n%s", got, want)
	}
}

func TestRuleBased_ExcerptBounded(t *testing.T) {
	content := strings.Repeat("é", 400)
	got := RuleBased{}.Analyze(content, "Acme")
	if !strings.Contains(got, strings.Repeat("é", 150)+"...") || strings.Contains(got, strings.Repeat("é", 151)) {
		t.Fatal("summary excerpt is not 150 characters")
	}
}
