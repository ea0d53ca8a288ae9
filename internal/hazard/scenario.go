package hazard

import (
	"fmt"
	"regexp"
	"sort"
	"strconv"
)

// SSP is a Shared Socioeconomic Pathway identifier present in the schema.
type SSP int

const (
	SSP1 SSP = 1
	SSP3 SSP = 3
	SSP5 SSP = 5
)

// DefaultSSP is used when the question does not name a scenario.
const DefaultSSP = SSP5

// Valid reports whether s has columns in the risk tables.
func (s SSP) Valid() bool {
	return s == SSP1 || s == SSP3 || s == SSP5
}

func (s SSP) String() string {
	return fmt.Sprintf("SSP%d", int(s))
}

// Horizon is a forecast span in years.
type Horizon int

var horizons = []Horizon{1, 10, 30}

// Horizons returns the valid horizons in ascending order.
func Horizons() []Horizon {
	out := make([]Horizon, len(horizons))
	copy(out, horizons)
	return out
}

// SnapHorizon maps any year count to the nearest valid horizon. Ties resolve
// to the shorter horizon.
func SnapHorizon(years int) Horizon {
	best := horizons[0]
	bestDist := abs(years - int(best))
	for _, h := range horizons[1:] {
		if d := abs(years - int(h)); d < bestDist {
			best, bestDist = h, d
		}
	}
	return best
}

// Scenario is the (emission scenario, horizon set) pair a query reads.
type Scenario struct {
	SSP      SSP
	Horizons []Horizon
}

// DefaultScenario is SSP5 across all three horizons.
func DefaultScenario() Scenario {
	return Scenario{SSP: DefaultSSP, Horizons: Horizons()}
}

// Column returns the severity column name for one scenario and horizon, e.g.
// ssp5_10yr.
func Column(s SSP, h Horizon) string {
	return fmt.Sprintf("ssp%d_%dyr", int(s), int(h))
}

// Columns returns the severity columns for the scenario, one per horizon.
func (s Scenario) Columns() []string {
	out := make([]string, 0, len(s.Horizons))
	for _, h := range s.Horizons {
		out = append(out, Column(s.SSP, h))
	}
	return out
}

var (
	sspPattern     = regexp.MustCompile(`(?i)\bssp\s*-?\s*(\d)`)
	horizonPattern = regexp.MustCompile(`(?i)\b(\d{1,3})\s*-?\s*(?:years?|yrs?)\b`)
)

// ParseScenario extracts the scenario and horizons a question asks for. An
// unknown SSP falls back to the default; horizons are snapped, deduplicated
// and sorted. No horizon mentioned means all three.
func ParseScenario(question string) Scenario {
	sc := DefaultScenario()

	if m := sspPattern.FindStringSubmatch(question); m != nil {
		n, _ := strconv.Atoi(m[1])
		if s := SSP(n); s.Valid() {
			sc.SSP = s
		}
	}

	seen := make(map[Horizon]bool)
	var hs []Horizon
	for _, m := range horizonPattern.FindAllStringSubmatch(question, -1) {
		n, err := strconv.Atoi(m[1])
		if err != nil {
			continue
		}
		h := SnapHorizon(n)
		if !seen[h] {
			seen[h] = true
			hs = append(hs, h)
		}
	}
	if len(hs) > 0 {
		sort.Slice(hs, func(i, j int) bool { return hs[i] < hs[j] })
		sc.Horizons = hs
	}

	return sc
}

func abs(v int) int {
	if v < 0 {
		return -v
	}
	return v
}
