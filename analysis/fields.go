package analysis

import "strings"

// Fields is the labeled view of an analysis text. Any field may be empty
// when the text does not follow the requested format.
type Fields struct {
	Summary  string `json:"summary,omitempty"`
	Category string `json:"category,omitempty"`
	Impact   string `json:"impact,omitempty"`
	Action   string `json:"action,omitempty"`
}

// ParseFields extracts the labeled fields from text. Labels are matched
// case-insensitively at line start, ignoring markdown emphasis, bullets and
// headings. A field continues on following lines until the next label.
// Category and Impact values naming a known level are canonicalised.
func ParseFields(text string) Fields {
	var (
		f       Fields
		current *string
	)
	for _, line := range strings.Split(text, "\n") {
		label, value, ok := splitLabel(line)
		if ok {
			switch label {
			case "summary":
				current = &f.Summary
			case "category":
				current = &f.Category
			case "impact":
				current = &f.Impact
			case "action":
				current = &f.Action
			}
			*current = value
			continue
		}
		if current != nil && strings.TrimSpace(line) != "" {
			*current = strings.TrimSpace(*current + " " + strings.TrimSpace(line))
		}
	}
	f.Category = canonical(f.Category, Categories)
	f.Impact = canonical(f.Impact, ImpactLevels)
	return f
}

func splitLabel(line string) (label, value string, ok bool) {
	s := strings.TrimLeft(line, " \t*-#>_")
	name, rest, found := strings.Cut(s, ":")
	if !found {
		return "", "", false
	}
	name = strings.ToLower(strings.Trim(name, " *_"))
	switch name {
	case "summary", "category", "impact", "action":
	default:
		return "", "", false
	}
	value = strings.TrimSpace(strings.Trim(strings.TrimSpace(rest), "*_"))
	return name, value, true
}

// canonical returns the known level that v names, ignoring case and
// surrounding punctuation, or v unchanged.
func canonical(v string, known []string) string {
	word := strings.Trim(v, " .[]()*_")
	if first, _, ok := strings.Cut(word, " "); ok {
		word = first
	}
	for _, k := range known {
		if strings.EqualFold(word, k) {
			return k
		}
	}
	return v
}
