// Package prompt renders the instruction payloads sent to the model for SQL
// generation. Output is a pure function of the input: same question, same
// prompt.
package prompt

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/nyashahama/hazard-query-backend/internal/ai"
	"github.com/nyashahama/hazard-query-backend/internal/hazard"
	"github.com/nyashahama/hazard-query-backend/internal/intent"
)

// SQLInput is everything the SQL prompt depends on.
type SQLInput struct {
	Question      string
	Hazards       []hazard.Category
	Region        intent.Region // "" when none detected
	Scenario      hazard.Scenario
	SchemaContext string // reference document text; may be empty
	MaxRows       int    // LIMIT the model must apply to row-returning selects
}

// sqlPayload is the JSON user message. Field order is fixed by the struct.
type sqlPayload struct {
	Question string       `json:"user_query"`
	Region   *string      `json:"region"`
	Tables   []string     `json:"hazards"`
	Scenario scenarioJSON `json:"scenario"`
	Context  string       `json:"db_context"`
}

type scenarioJSON struct {
	SSP      string   `json:"ssp"`
	Horizons []int    `json:"horizons_years"`
	Columns  []string `json:"columns"`
}

// BuildSQL returns the prompt asking the model for one read-only query.
func BuildSQL(in SQLInput) ai.Prompt {
	hazards := in.Hazards
	if len(hazards) == 0 {
		hazards = hazard.All()
	}
	maxRows := in.MaxRows
	if maxRows <= 0 {
		maxRows = 50
	}

	payload := sqlPayload{
		Question: in.Question,
		Context:  in.SchemaContext,
		Scenario: scenarioJSON{
			SSP:     in.Scenario.SSP.String(),
			Columns: in.Scenario.Columns(),
		},
	}
	if in.Region != "" {
		r := string(in.Region)
		payload.Region = &r
	}
	for _, h := range hazards {
		payload.Tables = append(payload.Tables, h.Table())
	}
	for _, h := range in.Scenario.Horizons {
		payload.Scenario.Horizons = append(payload.Scenario.Horizons, int(h))
	}
	if payload.Context == "" {
		payload.Context = hazard.SchemaDescription
	}

	user, _ := json.MarshalIndent(payload, "", "  ") // plain strings and slices; cannot fail

	return ai.Prompt{
		System:      sqlSystem(maxRows),
		User:        string(user),
		MaxTokens:   1024,
		Temperature: 0,
	}
}

func sqlSystem(maxRows int) string {
	var sb strings.Builder
	sb.WriteString(sqlRules)
	sb.WriteString("\nFrequency and extent columns:\n")
	for _, h := range hazard.All() {
		fmt.Fprintf(&sb, "- %s: %s\n", h.QuotedTable(), strings.Join(h.FrequencyColumns(), ", "))
	}
	fmt.Fprintf(&sb, "\nRow limit:\n"+
		"- Every SELECT that can return more than one row must end with LIMIT %d or less.\n"+
		"- A SELECT whose columns are all aggregates (AVG, COUNT, ...) without GROUP BY needs no LIMIT.\n"+
		"- In a UNION ALL, apply this to each parenthesised SELECT.\n", maxRows)
	return sb.String()
}

const sqlRules = `You are a SQL generator for a Postgres/PostGIS climate risk database.

Use only existing tables and columns.
Tables: "CycloneRisk", "FloodRisk", "HeatRisk", "WildfireRisk".
The user message is JSON: user_query, region, hazards (tables to query), scenario, db_context.

Location rules:
- If a specific city is mentioned:
  * Use its approximate longitude/latitude.
  * Order by distance: ORDER BY geometry <-> ST_SetSRID(ST_MakePoint(lon, lat), 4326)
  * Return the single nearest cell with LIMIT 1. Do not use AVG() here.
  * Do not add region filters.
  * If the user asks for an average around the city, select the N nearest cells in a subquery
    and apply AVG() in the outer query. Never combine AVG() with ORDER BY/LIMIT in the same SELECT.
- If a country or region is mentioned but no city:
  * Use its continent-scale region (north_america, south_america, europe, asia, oceania, africa).
  * Filter with WHERE region ILIKE '%<region>%'.
  * Apply AVG() so the result is one row per hazard.
- If several cities or countries are mentioned:
  * Write one SELECT per location x hazard.
  * Wrap each SELECT in parentheses when it contains ORDER BY or LIMIT.
  * Add a literal column with the location name AS city.
  * Combine them with UNION ALL so each row is one location x hazard.

Hazard rules:
- cyclone -> "CycloneRisk"; flood -> "FloodRisk"; heat -> "HeatRisk"; wildfire -> "WildfireRisk".
- Query exactly the tables listed in hazards.

Column rules:
- Severity columns follow ssp{X}_{Y}yr with X in {1, 3, 5} and Y in {1, 10, 30}, e.g. ssp1_1yr, ssp5_30yr.
- Use the columns listed in scenario.columns unless the user names another valid scenario or horizon.
- Map an invalid horizon (e.g. 5 years) to the nearest of 1, 10 or 30.

Output rules:
- Return ONLY the SQL query. No markdown, no code fences, no explanations.
- Exactly one statement. Read-only: SELECT only.
- Always use quoted CamelCase table names. Never unquoted or lowercase table names, never a schema prefix.
- Do not use SELECT *; select only the needed columns.
- Alias severity columns as risk_{Y}yr, optionally prefixed (ssp5_10yr AS risk_10yr, AVG(ssp5_10yr) AS avg_risk_10yr).
- Alias every other column with AS <descriptive_name>.
- Include a literal hazard column (AS hazard) and a literal location column (AS city or AS region).
- Only use these functions: AVG, COUNT, SUM, MIN, MAX, ROUND, COALESCE, ST_SetSRID, ST_MakePoint, ST_Distance.
`
