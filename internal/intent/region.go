package intent

import "regexp"

// Region is a coarse, continent-scale area matching the risk tables' region
// column.
type Region string

const (
	NorthAmerica Region = "north_america"
	SouthAmerica Region = "south_america"
	Europe       Region = "europe"
	Asia         Region = "asia"
	Oceania      Region = "oceania"
	Africa       Region = "africa"
)

type regionRule struct {
	region   Region
	keywords []regionKeyword
}

type regionKeyword struct {
	name    string // display form used in headings
	pattern *regexp.Regexp
}

// regionRules is scanned in order and the first hit wins. South America sits
// ahead of North America so "South America" is not claimed by "america".
var regionRules = buildRegionRules([]struct {
	region   Region
	keywords []string
}{
	{SouthAmerica, []string{"South America", "Brazil", "Argentina", "Chile", "Peru", "Colombia"}},
	{NorthAmerica, []string{"North America", "United States", "USA", "America", "Canada", "Mexico"}},
	{Europe, []string{"Europe", "United Kingdom", "UK", "France", "Germany", "Italy", "Spain"}},
	{Asia, []string{"Asia", "India", "China", "Japan", "Korea"}},
	{Oceania, []string{"Oceania", "Australia", "New Zealand"}},
	{Africa, []string{"Africa", "South Africa", "Egypt", "Nigeria", "Kenya"}},
})

func buildRegionRules(defs []struct {
	region   Region
	keywords []string
}) []regionRule {
	rules := make([]regionRule, 0, len(defs))
	for _, d := range defs {
		r := regionRule{region: d.region}
		for _, kw := range d.keywords {
			r.keywords = append(r.keywords, regionKeyword{
				name:    kw,
				pattern: regexp.MustCompile(`(?i)\b` + regexp.QuoteMeta(kw) + `\b`),
			})
		}
		rules = append(rules, r)
	}
	return rules
}

// DetectRegion returns the first region whose keyword appears in the
// question as a whole word, ignoring case, or "" when none does.
func DetectRegion(question string) Region {
	r, _ := DetectRegionMention(question)
	return r
}

// DetectRegionMention is DetectRegion that also returns the matched keyword
// in display form: "flood risk in india" gives (Asia, "India").
func DetectRegionMention(question string) (Region, string) {
	for _, rule := range regionRules {
		for _, kw := range rule.keywords {
			if kw.pattern.MatchString(question) {
				return rule.region, kw.name
			}
		}
	}
	return "", ""
}

// ContainsRegionKeyword reports whether s equals or contains any region
// keyword as a whole word.
func ContainsRegionKeyword(s string) bool {
	return DetectRegion(s) != ""
}
