package analysis

import (
	"fmt"
	"strings"
)

// MaxPromptContent bounds the content embedded in a prompt, in characters.
const MaxPromptContent = 1500

// Categories and impact levels a backend is asked to choose from.
var (
	Categories   = []string{"Product", "Marketing", "Hiring", "Funding", "Partnership", "Pricing", "Leadership", "Customer"}
	ImpactLevels = []string{"Low", "Medium", "High", "Critical"}
)

const answerFormat = `Summary: [2-3 sentences about what happened and why it matters]
Category: [one category from the list above]
Impact: [impact level]
Action: [specific recommended action for our business]`

// SystemPrompt is the role given to chat backends.
var SystemPrompt = fmt.Sprintf(`You are a competitive intelligence analyst. Analyze competitor content and provide actionable business insights.

Categories: %s
Impact Levels: %s

Always include:
1. 2-3 sentence summary
2. Category tag
3. Impact level
4. Recommended action`, strings.Join(Categories, ", "), strings.Join(ImpactLevels, ", "))

// BuildPrompt returns the single-message prompt for completion backends.
func BuildPrompt(content, competitor string) string {
	return fmt.Sprintf(`You are a competitive intelligence analyst. Analyze this competitor content and provide actionable business insights.

Competitor: %s
Content: "%s"

Categories: %s
Impact Levels: %s

Provide analysis in this exact format:
%s

Keep the response concise and focused on business implications.`,
		competitor, truncate(content, MaxPromptContent),
		strings.Join(Categories, ", "), strings.Join(ImpactLevels, ", "),
		answerFormat)
}

// UserPrompt is the user turn paired with SystemPrompt.
func UserPrompt(content, competitor string) string {
	return fmt.Sprintf(`Competitor: %s
Content: "%s"

Provide analysis in this format:
%s`, competitor, truncate(content, MaxPromptContent), answerFormat)
}

func truncate(s string, n int) string {
	count := 0
	for i := range s {
		if count == n {
			return s[:i]
		}
		count++
	}
	return s
}
