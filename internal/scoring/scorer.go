package scoring

import (
	"math"
	"sort"
	"strconv"
	"strings"
)

// ─── CONSTANTS ────────────────────────────────────────────────────────────────

// Severity scores in the risk tables run from 1 to 7.
const (
	minSeverity = 1
	maxSeverity = 7

	moderateThreshold = 4 // s >= 4 → moderate
	highThreshold     = 6 // s >= 6 → high
)

// trendTolerance is the change in severity below which a series is stable.
const trendTolerance = 0.25

// ─── TYPES ────────────────────────────────────────────────────────────────────

// Category is the three-bucket reading of a severity score.
type Category string

const (
	Low      Category = "Low"      // 1–3
	Moderate Category = "Moderate" // 4–5
	High     Category = "High"     // 6–7
)

// Trend describes how severity moves across horizons.
type Trend string

const (
	Rising  Trend = "rising"
	Falling Trend = "falling"
	Stable  Trend = "stable"
)

// ─── CORE FUNCTIONS ───────────────────────────────────────────────────────────

// clamp constrains a rounded severity to [1, 7].
func clamp(v int) int {
	if v < minSeverity {
		return minSeverity
	}
	if v > maxSeverity {
		return maxSeverity
	}
	return v
}

// Categorize maps a severity score to its category. Averages are rounded to
// the nearest integer first, so 3.5 is Moderate and 5.4 is Moderate.
// Returns false for NaN or infinite input.
func Categorize(score float64) (Category, bool) {
	if math.IsNaN(score) || math.IsInf(score, 0) {
		return "", false
	}
	s := clamp(int(math.Round(score)))

	switch {
	case s >= highThreshold:
		return High, true
	case s >= moderateThreshold:
		return Moderate, true
	default:
		return Low, true
	}
}

// ToFloat converts a database value to float64. The driver returns NUMERIC
// as text, so numeric strings are parsed. nil and non-numeric values report
// false.
func ToFloat(v any) (float64, bool) {
	switch t := v.(type) {
	case float64:
		return t, true
	case float32:
		return float64(t), true
	case int64:
		return float64(t), true
	case int32:
		return float64(t), true
	case int:
		return float64(t), true
	case string:
		f, err := strconv.ParseFloat(strings.TrimSpace(t), 64)
		return f, err == nil
	case []byte:
		f, err := strconv.ParseFloat(strings.TrimSpace(string(t)), 64)
		return f, err == nil
	default:
		return 0, false
	}
}

// Annotate returns a copy of the table with a "<column>_category" column
// inserted after every severity column. Cells that cannot be read as numbers
// get a nil category. The input is not modified.
func Annotate(columns []string, rows [][]any) ([]string, [][]any) {
	var sev []int
	for i, c := range columns {
		if IsSeverityColumn(c) {
			sev = append(sev, i)
		}
	}
	if len(sev) == 0 {
		return columns, rows
	}

	isSev := make(map[int]bool, len(sev))
	for _, i := range sev {
		isSev[i] = true
	}

	outCols := make([]string, 0, len(columns)+len(sev))
	for i, c := range columns {
		outCols = append(outCols, c)
		if isSev[i] {
			outCols = append(outCols, c+"_category")
		}
	}

	outRows := make([][]any, 0, len(rows))
	for _, row := range rows {
		out := make([]any, 0, len(outCols))
		for i, v := range row {
			out = append(out, v)
			if !isSev[i] {
				continue
			}
			var cat any
			if f, ok := ToFloat(v); ok {
				if c, ok := Categorize(f); ok {
					cat = string(c)
				}
			}
			out = append(out, cat)
		}
		outRows = append(outRows, out)
	}
	return outCols, outRows
}

// ─── AGGREGATE HELPERS ────────────────────────────────────────────────────────

// HorizonTrend compares the shortest and longest horizon severity in one
// row. byHorizon maps horizon years to score; fewer than two horizons is
// Stable.
func HorizonTrend(byHorizon map[int]float64) Trend {
	if len(byHorizon) < 2 {
		return Stable
	}
	hs := make([]int, 0, len(byHorizon))
	for h := range byHorizon {
		hs = append(hs, h)
	}
	sort.Ints(hs)

	delta := byHorizon[hs[len(hs)-1]] - byHorizon[hs[0]]
	switch {
	case delta > trendTolerance:
		return Rising
	case delta < -trendTolerance:
		return Falling
	default:
		return Stable
	}
}

// RowTrend reads the severity columns of one row and returns its trend.
func RowTrend(columns []string, row []any) Trend {
	byHorizon := make(map[int]float64)
	for i, c := range columns {
		if i >= len(row) || !IsSeverityColumn(c) {
			continue
		}
		h := Horizon(c)
		if h == 0 {
			continue
		}
		if f, ok := ToFloat(row[i]); ok {
			byHorizon[h] = f
		}
	}
	return HorizonTrend(byHorizon)
}
