package intent

import (
	"regexp"
	"strings"

	"github.com/nyashahama/hazard-query-backend/internal/hazard"
)

// qualifierPattern matches leading phrases such as "north side of",
// "the outskirts of" or "downtown" that narrow a place without naming it.
var qualifierPattern = regexp.MustCompile(`(?i)^(?:the\s+)?(?:` +
	`(?:(?:north|south|east|west|northern|southern|eastern|western|central|inner|outer|` +
	`north-?east|north-?west|south-?east|south-?west)\s+)?` +
	`(?:side|sides|part|parts|area|areas|suburbs|outskirts|centre|center|region|coast|edge|end|` +
	`neighbourhoods?|neighborhoods?|districts?)\s+of\s+` +
	`|downtown\s+|uptown\s+)`)

// StripQualifiers removes leading qualifier phrases: "north side of Austin"
// becomes "Austin". A string that is nothing but a qualifier is returned
// unchanged.
func StripQualifiers(place string) string {
	s := strings.TrimSpace(place)
	for {
		loc := qualifierPattern.FindStringIndex(s)
		if loc == nil || loc[1] >= len(s) {
			return s
		}
		s = strings.TrimSpace(s[loc[1]:])
	}
}

// PlaceNames turns raw entities into candidate place names: location labels
// only, qualifiers stripped, region keywords dropped, deduplicated
// case-insensitively in first-seen order.
func PlaceNames(entities []Entity) []string {
	seen := make(map[string]bool)
	var out []string
	for _, e := range entities {
		if !locationLabels[e.Label] {
			continue
		}
		name := StripQualifiers(e.Text)
		if name == "" || ContainsRegionKeyword(name) || isHazardWord(name) {
			continue
		}
		key := strings.ToLower(name)
		if seen[key] {
			continue
		}
		seen[key] = true
		out = append(out, name)
	}
	return out
}

// isHazardWord catches "risk of Flood" style captures where a hazard name is
// capitalised after a preposition.
func isHazardWord(name string) bool {
	lower := strings.ToLower(name)
	for _, c := range hazard.All() {
		for _, kw := range c.Keywords() {
			if lower == kw || lower == kw+"s" {
				return true
			}
		}
	}
	return false
}
