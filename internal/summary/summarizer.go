// Package summary turns query results into a streamed markdown answer.
//
// The narrative comes from the model; the data table and severity categories
// are rendered here so they never depend on the model getting them right.
package summary

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"

	"github.com/nyashahama/hazard-query-backend/internal/ai"
	"github.com/nyashahama/hazard-query-backend/internal/scoring"
	"github.com/nyashahama/hazard-query-backend/internal/store"
)

// Input is what a summary is grounded on.
type Input struct {
	Question      string
	Result        store.Result
	SQL           string
	SchemaContext string

	// Location is what the heading should name: the places or region the
	// user asked about.
	Location string

	// AggregatedFrom is set when the numbers are region averages, e.g.
	// "asia". The heading then reads "<Location> (data aggregated from ...)".
	AggregatedFrom string
}

// Summarizer produces streamed answers.
type Summarizer struct {
	gen    ai.Generator
	logger *slog.Logger
}

// New returns a Summarizer backed by gen.
func New(gen ai.Generator, logger *slog.Logger) *Summarizer {
	return &Summarizer{gen: gen, logger: logger}
}

// Summarize streams the model's narrative followed by the data table. When
// the model cannot be reached the answer degrades to a heading and the
// table; it never fails once there are rows to show.
func (s *Summarizer) Summarize(ctx context.Context, in Input) ai.Stream {
	table := RenderTable(in.Result.Columns, in.Result.Rows)
	tail := ai.TextStream("\n\n#### Database values\n\n", table)

	narrative, err := s.gen.Stream(ctx, summaryPrompt(in))
	if err != nil {
		s.logger.Warn("summary: narrative unavailable, sending table only", "error", err)
		return ai.TextStream(Heading(in), "\n\n", table)
	}
	return ai.Concat(narrative, tail)
}

// Narrative answers from general knowledge only. Used when no query could
// be run.
func (s *Summarizer) Narrative(ctx context.Context, question string) (ai.Stream, error) {
	st, err := s.gen.Stream(ctx, ai.Prompt{
		System: narrativeSystem,
		User:   question,
	})
	if err != nil {
		return nil, fmt.Errorf("summary: narrative: %w", err)
	}
	return st, nil
}

// Heading is the deterministic section heading for in.
func Heading(in Input) string {
	loc := in.Location
	switch {
	case loc != "":
	case in.AggregatedFrom != "":
		loc = regionLabel(in.AggregatedFrom)
	default:
		loc = "Results"
	}
	if in.AggregatedFrom != "" {
		return fmt.Sprintf("### %s (data aggregated from %s)", loc, regionLabel(in.AggregatedFrom))
	}
	return "### " + loc
}

// regionLabel turns north_america into North America.
func regionLabel(r string) string {
	words := strings.Fields(strings.ReplaceAll(r, "_", " "))
	for i, w := range words {
		words[i] = strings.ToUpper(w[:1]) + w[1:]
	}
	return strings.Join(words, " ")
}

// ─── PROMPTS ─────────────────────────────────────────────────────────────────

const narrativeSystem = `Answer the user based on general climate risk knowledge.
No database result is available for this question. Say so briefly, then answer in markdown.
Be specific about which regions are most exposed and why, and keep it under 250 words.`

const summarySystem = `You explain climate hazard query results to non-specialists. Write MARKDOWN.

Rules:
- Only include hazards present in the SQL query or the database result. Do not mention hazards that were not queried.
- If several hazards are present (e.g. UNION ALL), report each one separately.

Interpretation rules:
- Risk score columns (ssp{X}_{Y}yr or risk_{Y}yr, values 1-7): use the precomputed <column>_category value
  (1-3 Low, 4-5 Moderate, 6-7 High). Do not recompute categories.
- Frequency columns (e.g. total_annual_freq, fires_30yr): explain as the expected number of events over the period.
- Flood extent percent columns (rp050/rp200): explain as the proportion of area flooded.
- If several horizons are present (1yr, 10yr, 30yr), describe the trend over time; the trend field gives the direction.

Location rules:
- Use the heading given in the input exactly.
- If the data is region-level, you may add general knowledge about which subregions or cities are most exposed.
- Always make clear which statements come from the database and which from general knowledge.

Output format:
<heading>
- **<Hazard>:** <interpreted values with context>

### Summary
5-6 sentences. Anchor on the database result first, then add general knowledge, clearly separated.
Do not reproduce the full data table; it is appended after your answer.`

type summaryPayload struct {
	Question  string           `json:"user_question"`
	Heading   string           `json:"heading"`
	SQL       string           `json:"sql_executed"`
	Rows      []map[string]any `json:"rows"`
	Truncated bool             `json:"rows_truncated,omitempty"`
	Context   string           `json:"db_context,omitempty"`
}

func summaryPrompt(in Input) ai.Prompt {
	cols, rows := scoring.Annotate(in.Result.Columns, in.Result.Rows)

	payload := summaryPayload{
		Question:  in.Question,
		Heading:   Heading(in),
		SQL:       in.SQL,
		Truncated: in.Result.Truncated,
		Context:   in.SchemaContext,
		Rows:      make([]map[string]any, 0, len(rows)),
	}
	trend := hasHorizons(in.Result.Columns)
	for i, row := range rows {
		m := make(map[string]any, len(cols)+1)
		for j, c := range cols {
			if j < len(row) {
				m[c] = row[j]
			}
		}
		if trend {
			m["trend"] = string(scoring.RowTrend(in.Result.Columns, in.Result.Rows[i]))
		}
		payload.Rows = append(payload.Rows, m)
	}

	user, err := json.MarshalIndent(payload, "", "  ")
	if err != nil {
		// Driver values that JSON cannot encode are rendered as text.
		user = []byte(fmt.Sprintf("%+v", payload))
	}

	return ai.Prompt{
		System:      summarySystem,
		User:        string(user),
		MaxTokens:   1500,
		Temperature: 0.2,
	}
}

func hasHorizons(columns []string) bool {
	n := 0
	for _, c := range columns {
		if scoring.IsSeverityColumn(c) && scoring.Horizon(c) > 0 {
			n++
		}
	}
	return n > 1
}
