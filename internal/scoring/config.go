// Package scoring interprets values returned from the hazard tables: which
// columns are severity scores, frequencies or flood extents, and how a
// severity score maps to a Low/Moderate/High category. It is dependency-free:
// it imports nothing from internal/ and can be tested without a database.
package scoring

import (
	"regexp"
	"strings"
)

// ColumnKind says how a result column should be read.
type ColumnKind string

const (
	KindSeverity    ColumnKind = "severity"     // 1–7 risk score
	KindFrequency   ColumnKind = "frequency"    // expected number of events
	KindFloodExtent ColumnKind = "flood_extent" // proportion of area flooded
	KindHeatDays    ColumnKind = "heat_days"    // days or heat waves per year
	KindOther       ColumnKind = "other"
)

// Column names come from raw table columns (ssp5_10yr), the aliases the
// templated queries give them (risk_10yr) and model aliases that prefix
// either form (avg_risk_10yr, flood_ssp5_30yr).
var (
	severityPattern    = regexp.MustCompile(`^(?:[a-z0-9]+_)*(?:ssp[135]_(?:1|10|30)yr|risk(?:_score)?(?:_(?:1|10|30)yr)?)$`)
	frequencyPattern   = regexp.MustCompile(`(?:annual_freq|fires_30yr|_freq)$`)
	floodExtentPattern = regexp.MustCompile(`percent_flooded$`)
	heatDaysPattern    = regexp.MustCompile(`(?:ann_days_above_\d+f|ann_heat_waves_\w+)$`)
	horizonPattern     = regexp.MustCompile(`_(1|10|30)yr`)
)

// Classify returns the kind of a result column. Matching is
// case-insensitive.
func Classify(column string) ColumnKind {
	c := strings.ToLower(strings.TrimSpace(column))
	switch {
	case floodExtentPattern.MatchString(c):
		return KindFloodExtent
	case heatDaysPattern.MatchString(c):
		return KindHeatDays
	case frequencyPattern.MatchString(c):
		return KindFrequency
	case severityPattern.MatchString(c):
		return KindSeverity
	default:
		return KindOther
	}
}

// IsSeverityColumn reports whether column holds a 1–7 risk score.
func IsSeverityColumn(column string) bool {
	return Classify(column) == KindSeverity
}

// Horizon extracts the forecast horizon in years from a column name such as
// ssp5_10yr or risk_30yr. Returns 0 when the name carries none.
func Horizon(column string) int {
	m := horizonPattern.FindStringSubmatch(strings.ToLower(column))
	if m == nil {
		return 0
	}
	switch m[1] {
	case "1":
		return 1
	case "10":
		return 10
	default:
		return 30
	}
}
