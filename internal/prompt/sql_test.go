package prompt_test

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nyashahama/hazard-query-backend/internal/hazard"
	"github.com/nyashahama/hazard-query-backend/internal/intent"
	"github.com/nyashahama/hazard-query-backend/internal/prompt"
)

func TestBuildSQL_Payload(t *testing.T) {
	p := prompt.BuildSQL(prompt.SQLInput{
		Question:      "Flood risk in Asia over 10 years?",
		Hazards:       []hazard.Category{hazard.Flood},
		Region:        intent.Asia,
		Scenario:      hazard.Scenario{SSP: hazard.SSP5, Horizons: []hazard.Horizon{10}},
		SchemaContext: "FloodRisk: region, geometry, ssp5_10yr",
		MaxRows:       100,
	})

	var payload map[string]any
	require.NoError(t, json.Unmarshal([]byte(p.User), &payload))

	assert.Equal(t, "Flood risk in Asia over 10 years?", payload["user_query"])
	assert.Equal(t, "asia", payload["region"])
	assert.Equal(t, []any{"FloodRisk"}, payload["hazards"])
	assert.Equal(t, "FloodRisk: region, geometry, ssp5_10yr", payload["db_context"])

	sc := payload["scenario"].(map[string]any)
	assert.Equal(t, "SSP5", sc["ssp"])
	assert.Equal(t, []any{float64(10)}, sc["horizons_years"])
	assert.Equal(t, []any{"ssp5_10yr"}, sc["columns"])

	assert.Contains(t, p.System, "LIMIT 100")
	assert.Contains(t, p.System, "UNION ALL")
	assert.Contains(t, p.System, `"CycloneRisk", "FloodRisk", "HeatRisk", "WildfireRisk"`)
	assert.Contains(t, p.System, "region ILIKE")
	assert.Equal(t, float64(0), p.Temperature)
}

func TestBuildSQL_Defaults(t *testing.T) {
	p := prompt.BuildSQL(prompt.SQLInput{
		Question: "what is climate risk?",
		Scenario: hazard.DefaultScenario(),
	})

	var payload map[string]any
	require.NoError(t, json.Unmarshal([]byte(p.User), &payload))

	assert.Nil(t, payload["region"])
	assert.Equal(t, []any{"CycloneRisk", "FloodRisk", "HeatRisk", "WildfireRisk"}, payload["hazards"])
	assert.Equal(t, hazard.SchemaDescription, payload["db_context"])
	assert.Contains(t, p.System, "LIMIT 50")
}

func TestBuildSQL_Deterministic(t *testing.T) {
	in := prompt.SQLInput{
		Question: "heat in Boston",
		Hazards:  []hazard.Category{hazard.Heat},
		Scenario: hazard.DefaultScenario(),
	}
	assert.Equal(t, prompt.BuildSQL(in), prompt.BuildSQL(in))
}
