package intent

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/jdkato/prose/v2"
)

// Entity is one named entity found in a question.
type Entity struct {
	Text  string
	Label string
}

// EntityRecognizer finds named entities in free text.
type EntityRecognizer interface {
	Entities(text string) ([]Entity, error)
}

// locationLabels are the entity labels treated as places.
var locationLabels = map[string]bool{
	"GPE": true,
	"LOC": true,
	"FAC": true,
}

// ─── PROSE ───────────────────────────────────────────────────────────────────

// ProseRecognizer uses the prose averaged-perceptron NER model, which tags
// geopolitical entities as GPE. The model is loaded once by
// NewProseRecognizer and shared across questions; it is read-only after
// loading. The zero value loads the model on every call.
type ProseRecognizer struct {
	model *prose.Model
}

// NewProseRecognizer loads the bundled tagger and entity model.
func NewProseRecognizer() *ProseRecognizer {
	return &ProseRecognizer{model: prose.ModelFromData("hazard-ner")}
}

func (r *ProseRecognizer) Entities(text string) ([]Entity, error) {
	opts := []prose.DocOpt{prose.WithSegmentation(false)}
	if r.model != nil {
		opts = append(opts, prose.UsingModel(r.model))
	}
	doc, err := prose.NewDocument(text, opts...)
	if err != nil {
		return nil, fmt.Errorf("prose: %w", err)
	}
	ents := doc.Entities()
	out := make([]Entity, 0, len(ents))
	for _, e := range ents {
		out = append(out, Entity{Text: e.Text, Label: e.Label})
	}
	return out, nil
}

// ─── PATTERN ─────────────────────────────────────────────────────────────────

// PatternRecognizer is a dependency-free fallback: it takes capitalised word
// runs that follow a locative preposition ("in Boston", "near New Orleans")
// and labels them GPE. Lists joined by commas or "and" are split.
type PatternRecognizer struct{}

var (
	capWord      = `[A-Z][\p{L}'.-]*`
	capRun       = capWord + `(?:\s+` + capWord + `)*`
	placePattern = regexp.MustCompile(
		`\b(?:in|near|around|at|for|across|outside|of)\s+(` + capRun + `(?:(?:,\s*|\s+and\s+)` + capRun + `)*)`,
	)
	listSplit = regexp.MustCompile(`,\s*|\s+and\s+`)
)

func (PatternRecognizer) Entities(text string) ([]Entity, error) {
	var out []Entity
	for _, m := range placePattern.FindAllStringSubmatch(text, -1) {
		for _, part := range listSplit.Split(m[1], -1) {
			part = strings.TrimRight(strings.TrimSpace(part), ".")
			if part != "" {
				out = append(out, Entity{Text: part, Label: "GPE"})
			}
		}
	}
	return out, nil
}
