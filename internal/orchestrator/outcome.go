package orchestrator

import (
	"errors"
	"fmt"
)

// Sentinel errors. Phase failures wrap one of the first four and are turned
// into transitions; only ErrUnavailable ever reaches a caller.
var (
	ErrGeneration  = errors.New("orchestrator: generation failed")
	ErrValidation  = errors.New("orchestrator: sql rejected")
	ErrExecution   = errors.New("orchestrator: execution failed")
	ErrEmptyResult = errors.New("orchestrator: query returned no rows")
	ErrUnavailable = errors.New("orchestrator: no answer could be produced")
)

// Phase names a step of the fallback chain.
type Phase string

const (
	PhaseCity     Phase = "city"
	PhaseRegion   Phase = "region"
	PhaseFreeForm Phase = "free_form"
	PhaseFallback Phase = "fallback"
)

// Terminal is how an ask finished.
type Terminal string

const (
	Executed          Terminal = "executed"
	FallbackNarrative Terminal = "fallback"
	Failed            Terminal = "failed"
)

// Outcome is the result of running one phase.
type Outcome int

const (
	OutcomeValid Outcome = iota // validated, executed, rows returned
	OutcomeInvalid
	OutcomeGenerationError
	OutcomeExecutionError
	OutcomeEmpty
	OutcomeSkipped
)

func (o Outcome) String() string {
	switch o {
	case OutcomeValid:
		return "valid"
	case OutcomeInvalid:
		return "invalid"
	case OutcomeGenerationError:
		return "generation_error"
	case OutcomeExecutionError:
		return "execution_error"
	case OutcomeEmpty:
		return "empty"
	case OutcomeSkipped:
		return "skipped"
	default:
		return fmt.Sprintf("outcome(%d)", int(o))
	}
}

// PrimaryPath selects which phase runs first.
type PrimaryPath string

const (
	// PathTemplated runs the city/region templates before asking the model.
	PathTemplated PrimaryPath = "templated"
	// PathModel asks the model first and falls back to the templates.
	PathModel PrimaryPath = "model"
)

// ParsePrimaryPath validates a configured path. Empty means PathTemplated.
func ParsePrimaryPath(s string) (PrimaryPath, error) {
	switch PrimaryPath(s) {
	case "", PathTemplated:
		return PathTemplated, nil
	case PathModel:
		return PathModel, nil
	default:
		return "", fmt.Errorf("orchestrator: unknown primary path %q (want templated or model)", s)
	}
}

func (p PrimaryPath) order() []Phase {
	if p == PathModel {
		return []Phase{PhaseFreeForm, PhaseCity, PhaseRegion}
	}
	return []Phase{PhaseCity, PhaseRegion, PhaseFreeForm}
}
