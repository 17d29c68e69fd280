package analysis

import (
	"fmt"
	"strings"
)

type keywordRule struct {
	category string
	words    []string
}

// Checked in order; the first category with a hit wins.
var keywordRules = []keywordRule{
	{"Product", []string{"launch", "feature", "update", "release", "version", "beta", "product"}},
	{"Marketing", []string{"campaign", "brand", "marketing", "advertisement", "promotion", "social"}},
	{"Hiring", []string{"hiring", "job", "team", "employee", "recruit", "position"}},
	{"Funding", []string{"funding", "investment", "round", "capital", "investor", "valuation"}},
	{"Partnership", []string{"partner", "collaboration", "alliance", "integration", "deal"}},
	{"Leadership", []string{"ceo", "cto", "founder", "executive", "leadership", "appointment"}},
}

var (
	highImpactWords = []string{"major", "significant", "breakthrough"}
	lowImpactWords  = []string{"minor", "small"}
)

const (
	shortContent   = 200 // characters below which impact is Low
	summaryExcerpt = 150
)

// RuleBased is the deterministic keyword analyzer used when no backend
// answers. The zero value is ready to use.
type RuleBased struct{}

// Classify returns the category and impact of content.
func (RuleBased) Classify(content string) (category, impact string) {
	lower := strings.ToLower(content)

	category = "Product"
	for _, r := range keywordRules {
		if containsAny(lower, r.words) {
			category = r.category
			break
		}
	}

	switch {
	case containsAny(lower, highImpactWords):
		impact = "High"
	case containsAny(lower, lowImpactWords) || len([]rune(content)) < shortContent:
		impact = "Low"
	default:
		impact = "Medium"
	}
	return category, impact
}

// Analyze returns the four labeled fields for content.
func (r RuleBased) Analyze(content, competitor string) string {
	category, impact := r.Classify(content)
	topic := strings.ToLower(category)
	return fmt.Sprintf(`Summary: %s has published content related to %s. %s...
Category: %s
Impact: %s
Action: Monitor %s's %s developments and assess competitive implications for our business.`,
		competitor, topic, truncate(content, summaryExcerpt),
		category, impact,
		competitor, topic)
}

func containsAny(s string, words []string) bool {
	for _, w := range words {
		if strings.Contains(s, w) {
			return true
		}
	}
	return false
}
