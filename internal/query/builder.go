package query

import (
	"fmt"
	"strings"

	"github.com/nyashahama/hazard-query-backend/internal/hazard"
	"github.com/nyashahama/hazard-query-backend/internal/intent"
)

// DefaultNearestCells is how many mesh cells around a city are averaged.
const DefaultNearestCells = 20

// Builder renders the templated city and region queries.
type Builder struct {
	// NearestCells is the neighbourhood size for city blocks. Zero means
	// DefaultNearestCells.
	NearestCells int
}

func (b Builder) nearest() int {
	if b.NearestCells <= 0 {
		return DefaultNearestCells
	}
	return b.NearestCells
}

// City returns one block per (place × hazard), joined with UNION ALL. Each
// block averages the scenario columns over the nearest cells to the place
// and tags the row with the city name, hazard label and nearest region.
// Returns false when there is nothing to query.
func (b Builder) City(places []intent.Place, hazards []hazard.Category, sc hazard.Scenario) (Candidate, bool) {
	if len(places) == 0 || len(hazards) == 0 {
		return Candidate{}, false
	}

	var (
		bd     binder
		blocks []string
	)
	for _, p := range places {
		name := bd.bind(p.Name)
		point := fmt.Sprintf("ST_SetSRID(ST_MakePoint(%s::float8, %s::float8), 4326)", bd.bind(p.Lon), bd.bind(p.Lat))
		for _, h := range hazards {
			blocks = append(blocks, cityBlock(name, point, h, sc, b.nearest()))
		}
	}

	return Candidate{
		SQL:        unionAll(blocks),
		Args:       bd.args,
		Provenance: FromCity,
	}, true
}

func cityBlock(name, point string, h hazard.Category, sc hazard.Scenario, n int) string {
	cols := sc.Columns()

	var sb strings.Builder
	sb.WriteString("SELECT\n")
	fmt.Fprintf(&sb, "  %s::text AS city,\n", name)
	fmt.Fprintf(&sb, "  '%s'::text AS hazard,\n", h.Label())
	fmt.Fprintf(&sb, "  '%s'::text AS scenario,\n", sc.SSP)
	fmt.Fprintf(&sb, "  (SELECT region FROM %s ORDER BY geometry <-> %s LIMIT 1) AS region,\n", h.QuotedTable(), point)
	writeAverages(&sb, sc)
	sb.WriteString("\nFROM (\n")
	fmt.Fprintf(&sb, "  SELECT %s\n", strings.Join(cols, ", "))
	fmt.Fprintf(&sb, "  FROM %s\n", h.QuotedTable())
	fmt.Fprintf(&sb, "  ORDER BY geometry <-> %s\n", point)
	fmt.Fprintf(&sb, "  LIMIT %d\n", n)
	sb.WriteString(") nearest")
	return sb.String()
}

// Region returns one aggregate block per hazard over the cells whose region
// matches, joined with UNION ALL. Returns false when there is nothing to
// query.
func (b Builder) Region(region intent.Region, hazards []hazard.Category, sc hazard.Scenario) (Candidate, bool) {
	if region == "" || len(hazards) == 0 {
		return Candidate{}, false
	}

	var bd binder
	label := bd.bind(string(region))
	pattern := bd.bind("%" + string(region) + "%")

	blocks := make([]string, 0, len(hazards))
	for _, h := range hazards {
		blocks = append(blocks, regionBlock(label, pattern, h, sc))
	}

	return Candidate{
		SQL:        unionAll(blocks),
		Args:       bd.args,
		Provenance: FromRegion,
	}, true
}

func regionBlock(label, pattern string, h hazard.Category, sc hazard.Scenario) string {
	var sb strings.Builder
	sb.WriteString("SELECT\n")
	fmt.Fprintf(&sb, "  %s::text AS region,\n", label)
	fmt.Fprintf(&sb, "  '%s'::text AS hazard,\n", h.Label())
	fmt.Fprintf(&sb, "  '%s'::text AS scenario,\n", sc.SSP)
	writeAverages(&sb, sc)
	sb.WriteString(",\n  COUNT(*) AS cells\n")
	fmt.Fprintf(&sb, "FROM %s\n", h.QuotedTable())
	fmt.Fprintf(&sb, "WHERE region ILIKE %s", pattern)
	return sb.String()
}

// writeAverages writes "AVG(ssp5_10yr) AS risk_10yr" for each horizon,
// comma-separated, without a trailing newline.
func writeAverages(sb *strings.Builder, sc hazard.Scenario) {
	for i, h := range sc.Horizons {
		if i > 0 {
			sb.WriteString(",\n")
		}
		fmt.Fprintf(sb, "  AVG(%s) AS risk_%dyr", hazard.Column(sc.SSP, h), int(h))
	}
}

// FreeForm wraps model-produced SQL as an unvalidated candidate.
func FreeForm(sql string) Candidate {
	return Candidate{SQL: sql, Provenance: FromFreeForm}
}
