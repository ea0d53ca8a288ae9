package summary

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nyashahama/hazard-query-backend/internal/ai"
	"github.com/nyashahama/hazard-query-backend/internal/observability"
	"github.com/nyashahama/hazard-query-backend/internal/store"
)

type stubGenerator struct {
	chunks    []string
	streamErr error
	prompts   []ai.Prompt
}

func (g *stubGenerator) Generate(_ context.Context, p ai.Prompt) (string, error) {
	g.prompts = append(g.prompts, p)
	return strings.Join(g.chunks, ""), g.streamErr
}

func (g *stubGenerator) Stream(_ context.Context, p ai.Prompt) (ai.Stream, error) {
	g.prompts = append(g.prompts, p)
	if g.streamErr != nil {
		return nil, g.streamErr
	}
	return ai.TextStream(g.chunks...), nil
}

func bostonResult() store.Result {
	return store.Result{
		Columns: []string{"city", "hazard", "risk_1yr", "risk_10yr", "risk_30yr"},
		Rows: [][]any{
			{"Boston", "Flood", 3.2, 4.6, 6.1},
		},
	}
}

// ─── TABLE ───────────────────────────────────────────────────────────────────

func TestRenderTable(t *testing.T) {
	got := RenderTable(bostonResult().Columns, bostonResult().Rows)

	lines := strings.Split(strings.TrimSpace(got), "\n")
	require.Len(t, lines, 3)
	assert.Equal(t, "| city | hazard | risk_1yr | risk_1yr_category | risk_10yr | risk_10yr_category | risk_30yr | risk_30yr_category |", lines[0])
	assert.Equal(t, "| Boston | Flood | 3.2 | Low | 4.6 | Moderate | 6.1 | High |", lines[2])
}

func TestRenderTable_Empty(t *testing.T) {
	assert.Empty(t, RenderTable(nil, nil))
	assert.Empty(t, RenderTable([]string{"a"}, nil))
}

func TestRenderTable_EscapesPipes(t *testing.T) {
	got := RenderTable([]string{"region"}, [][]any{{"a|b\nc"}})
	assert.Contains(t, got, `| a\|b c |`)
}

func TestRenderTable_CapsRows(t *testing.T) {
	rows := make([][]any, maxTableRows+5)
	for i := range rows {
		rows[i] = []any{int64(i)}
	}
	got := RenderTable([]string{"n"}, rows)
	assert.Contains(t, got, "_5 more rows not shown._")
	assert.NotContains(t, got, "| 50 |")
}

func TestFormatValue(t *testing.T) {
	tests := []struct {
		in   any
		want string
	}{
		{nil, ""},
		{"Boston", "Boston"},
		{"4.56789", "4.57"},
		{int64(12), "12"},
		{3.14159, "3.14"},
		{float32(2.5), "2.5"},
		{true, "true"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, FormatValue(tt.in), "input %v", tt.in)
	}
}

// ─── HEADING ─────────────────────────────────────────────────────────────────

func TestHeading(t *testing.T) {
	assert.Equal(t, "### Boston", Heading(Input{Location: "Boston"}))
	assert.Equal(t, "### Results", Heading(Input{}))
	assert.Equal(t, "### Asia (data aggregated from Asia)", Heading(Input{AggregatedFrom: "asia"}))
	assert.Equal(t,
		"### Brazil (data aggregated from South America)",
		Heading(Input{Location: "Brazil", AggregatedFrom: "south_america"}))
}

// ─── SUMMARIZE ───────────────────────────────────────────────────────────────

func TestSummarize_NarrativeThenTable(t *testing.T) {
	gen := &stubGenerator{chunks: []string{"### Boston\n", "- **Flood:** rising"}}
	s := New(gen, observability.DiscardLogger())

	out, err := ai.Collect(s.Summarize(context.Background(), Input{
		Question: "Flood risk in Boston?",
		Result:   bostonResult(),
		SQL:      "SELECT 1",
		Location: "Boston",
	}))
	require.NoError(t, err)

	assert.True(t, strings.HasPrefix(out, "### Boston\n- **Flood:** rising"))
	assert.Contains(t, out, "#### Database values")
	assert.Contains(t, out, "| Boston | Flood |")
}

func TestSummarize_PromptCarriesAnnotatedRows(t *testing.T) {
	gen := &stubGenerator{chunks: []string{"ok"}}
	s := New(gen, observability.DiscardLogger())

	_, err := ai.Collect(s.Summarize(context.Background(), Input{
		Question:       "Flood risk in Asia?",
		Result:         bostonResult(),
		SQL:            "SELECT 1",
		Location:       "Asia",
		AggregatedFrom: "asia",
	}))
	require.NoError(t, err)
	require.Len(t, gen.prompts, 1)

	var payload summaryPayload
	require.NoError(t, json.Unmarshal([]byte(gen.prompts[0].User), &payload))
	assert.Equal(t, "### Asia (data aggregated from Asia)", payload.Heading)
	assert.Equal(t, "SELECT 1", payload.SQL)
	require.Len(t, payload.Rows, 1)
	assert.Equal(t, "High", payload.Rows[0]["risk_30yr_category"])
	assert.Equal(t, "rising", payload.Rows[0]["trend"])
	assert.Contains(t, gen.prompts[0].System, "1-3 Low, 4-5 Moderate, 6-7 High")
}

func TestSummarize_NoTrendWithSingleHorizon(t *testing.T) {
	gen := &stubGenerator{chunks: []string{"ok"}}
	s := New(gen, observability.DiscardLogger())

	_, err := ai.Collect(s.Summarize(context.Background(), Input{
		Result: store.Result{Columns: []string{"risk_10yr"}, Rows: [][]any{{5.0}}},
	}))
	require.NoError(t, err)

	var payload summaryPayload
	require.NoError(t, json.Unmarshal([]byte(gen.prompts[0].User), &payload))
	_, ok := payload.Rows[0]["trend"]
	assert.False(t, ok)
}

func TestSummarize_ModelUnavailableSendsTable(t *testing.T) {
	gen := &stubGenerator{streamErr: errors.New("503")}
	s := New(gen, observability.DiscardLogger())

	out, err := ai.Collect(s.Summarize(context.Background(), Input{
		Result:   bostonResult(),
		Location: "Boston",
	}))
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(out, "### Boston\n\n| city |"))
}

func TestNarrative(t *testing.T) {
	gen := &stubGenerator{chunks: []string{"Coastal ", "Asia."}}
	s := New(gen, observability.DiscardLogger())

	st, err := s.Narrative(context.Background(), "Where is flooding worst?")
	require.NoError(t, err)
	out, err := ai.Collect(st)
	require.NoError(t, err)
	assert.Equal(t, "Coastal Asia.", out)
	assert.Equal(t, "Where is flooding worst?", gen.prompts[0].User)
}

func TestNarrative_Error(t *testing.T) {
	s := New(&stubGenerator{streamErr: errors.New("down")}, observability.DiscardLogger())

	_, err := s.Narrative(context.Background(), "q")
	assert.ErrorContains(t, err, "down")
}
