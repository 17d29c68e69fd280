// CLAUDE:SUMMARY Configuration validation: competitor ids, names and source URLs, canonicalised in place.
// CLAUDE:EXPORTS Config.Validate
package veille

import (
	"fmt"

	"github.com/hazyhaar/rivalwatch/horosafe"
)

const (
	maxNameLen = 512
	maxURLLen  = 4096
)

// Validate checks every competitor and canonicalises its source URLs in
// place. Duplicate URLs within one source list are dropped.
func (c *Config) Validate() error {
	if len(c.Competitors) == 0 {
		return fmt.Errorf("%w: no competitors configured", ErrInvalidInput)
	}
	seen := make(map[string]bool, len(c.Competitors))
	for i := range c.Competitors {
		comp := &c.Competitors[i]
		if err := validateCompetitor(comp); err != nil {
			return err
		}
		if seen[comp.ID] {
			return fmt.Errorf("%w: duplicate competitor id %q", ErrInvalidInput, comp.ID)
		}
		seen[comp.ID] = true
	}
	return nil
}

func validateCompetitor(comp *Competitor) error {
	if err := horosafe.ValidateIdentifier(comp.ID); err != nil {
		return fmt.Errorf("%w: competitor id %q: %v", ErrInvalidInput, comp.ID, err)
	}
	if comp.Name == "" {
		return fmt.Errorf("%w: competitor %q: name is required", ErrInvalidInput, comp.ID)
	}
	if len(comp.Name) > maxNameLen {
		return fmt.Errorf("%w: competitor %q: name exceeds %d characters", ErrInvalidInput, comp.ID, maxNameLen)
	}

	var err error
	if comp.Sources.RSS, err = canonicalURLs(comp.ID, comp.Sources.RSS); err != nil {
		return err
	}
	if comp.Sources.Websites, err = canonicalURLs(comp.ID, comp.Sources.Websites); err != nil {
		return err
	}
	return nil
}

func canonicalURLs(compID string, raw []string) ([]string, error) {
	if len(raw) == 0 {
		return raw, nil
	}
	out := make([]string, 0, len(raw))
	seen := make(map[string]bool, len(raw))
	for _, u := range raw {
		if len(u) > maxURLLen {
			return nil, fmt.Errorf("%w: competitor %q: url exceeds %d characters", ErrInvalidInput, compID, maxURLLen)
		}
		norm, err := NormalizeSourceURL(u)
		if err != nil {
			return nil, fmt.Errorf("competitor %q: %w", compID, err)
		}
		if seen[norm] {
			continue
		}
		seen[norm] = true
		out = append(out, norm)
	}
	return out, nil
}
