// Package orchestrator turns a question into an answer stream. It walks the
// city, region and free-form phases until one produces rows, and falls back
// to a general-knowledge narrative when none does. Nothing reaches the
// database without passing the SQL validator.
package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/nyashahama/hazard-query-backend/internal/ai"
	"github.com/nyashahama/hazard-query-backend/internal/intent"
	"github.com/nyashahama/hazard-query-backend/internal/observability"
	"github.com/nyashahama/hazard-query-backend/internal/prompt"
	"github.com/nyashahama/hazard-query-backend/internal/query"
	"github.com/nyashahama/hazard-query-backend/internal/store"
	"github.com/nyashahama/hazard-query-backend/internal/summary"
)

// ─── DEPENDENCIES ─────────────────────────────────────────────────────────────

// IntentExtractor is satisfied by *intent.Extractor.
type IntentExtractor interface {
	Extract(ctx context.Context, question string) intent.Intent
}

// Validator is satisfied by sqlguard.Validator.
type Validator interface {
	Check(sql string) error
}

// Executor is satisfied by *store.Store.
type Executor interface {
	Query(ctx context.Context, sqlText string, args ...any) (store.Result, error)
}

// SchemaSource is satisfied by *schemadoc.Cache.
type SchemaSource interface {
	Get(ctx context.Context) (string, error)
}

// Summarizer is satisfied by *summary.Summarizer.
type Summarizer interface {
	Summarize(ctx context.Context, in summary.Input) ai.Stream
	Narrative(ctx context.Context, question string) (ai.Stream, error)
}

// Deps groups the collaborators. All are required.
type Deps struct {
	Extractor  IntentExtractor
	Generator  ai.Generator
	Validator  Validator
	Executor   Executor
	Schema     SchemaSource
	Summarizer Summarizer
}

// Config tunes the pipeline.
type Config struct {
	PrimaryPath  PrimaryPath
	NearestCells int // city-block neighbourhood; 0 means query.DefaultNearestCells
	PromptRows   int // LIMIT the model is told to use; 0 means the prompt default
}

// Orchestrator runs asks. It holds no per-request state and is safe for
// concurrent use.
type Orchestrator struct {
	deps    Deps
	cfg     Config
	builder query.Builder
	metrics *observability.Metrics
	logger  *slog.Logger
}

// New returns an Orchestrator.
func New(deps Deps, cfg Config, metrics *observability.Metrics, logger *slog.Logger) *Orchestrator {
	if cfg.PrimaryPath == "" {
		cfg.PrimaryPath = PathTemplated
	}
	return &Orchestrator{
		deps:    deps,
		cfg:     cfg,
		builder: query.Builder{NearestCells: cfg.NearestCells},
		metrics: metrics,
		logger:  logger,
	}
}

// ─── ASK ──────────────────────────────────────────────────────────────────────

// Answer is the result of one ask. The caller must Close Stream.
type Answer struct {
	ID       uuid.UUID
	Phase    Phase // the phase that produced the answer
	Terminal Terminal
	SQL      string // executed SQL; empty for a narrative answer
	Intent   intent.Intent
	Stream   ai.Stream
}

// request is the state carried between phases of one ask.
type request struct {
	id       uuid.UUID
	question string
	intent   intent.Intent
	schema   string
	logger   *slog.Logger
}

// phaseResult is what a phase hands back to the loop.
type phaseResult struct {
	outcome   Outcome
	candidate query.Candidate
	result    store.Result
	err       error
}

// Ask answers question. The only error is ErrUnavailable, returned when no
// phase produced rows and the narrative fallback could not be opened.
func (o *Orchestrator) Ask(ctx context.Context, question string) (*Answer, error) {
	req := &request{
		id:       uuid.New(),
		question: question,
	}
	req.logger = o.logger.With("ask_id", req.id.String())

	req.intent = o.deps.Extractor.Extract(ctx, question)
	req.logger.Info("ask: intent",
		"hazards", req.intent.Hazards,
		"mentions", req.intent.Mentions,
		"places", len(req.intent.Places),
		"region", req.intent.Region,
		"scenario", req.intent.Scenario.SSP.String(),
	)

	schema, err := o.deps.Schema.Get(ctx)
	if err != nil {
		// The prompt falls back to the built-in schema description.
		req.logger.Warn("ask: schema context unavailable", "error", err)
	}
	req.schema = schema

	for _, phase := range o.cfg.PrimaryPath.order() {
		res := o.run(ctx, phase, req)
		o.record(req, phase, res)

		switch res.outcome {
		case OutcomeValid:
			return o.summarize(ctx, req, phase, res), nil
		case OutcomeInvalid, OutcomeGenerationError, OutcomeExecutionError, OutcomeEmpty, OutcomeSkipped:
			if ctx.Err() != nil {
				return o.fail(req, ctx.Err())
			}
		default:
			return o.fail(req, fmt.Errorf("unhandled outcome %s", res.outcome))
		}
	}

	return o.fallback(ctx, req)
}

func (o *Orchestrator) run(ctx context.Context, phase Phase, req *request) phaseResult {
	switch phase {
	case PhaseCity:
		return o.cityPhase(ctx, req)
	case PhaseRegion:
		return o.regionPhase(ctx, req)
	case PhaseFreeForm:
		return o.freeFormPhase(ctx, req)
	default:
		return phaseResult{outcome: OutcomeSkipped}
	}
}

// ─── PHASES ───────────────────────────────────────────────────────────────────

func (o *Orchestrator) cityPhase(ctx context.Context, req *request) phaseResult {
	in := req.intent
	if !in.HasPlaces() {
		return phaseResult{outcome: OutcomeSkipped}
	}
	c, ok := o.builder.City(in.Places, in.Hazards, in.Scenario)
	if !ok {
		return phaseResult{outcome: OutcomeSkipped}
	}
	return o.execute(ctx, c)
}

func (o *Orchestrator) regionPhase(ctx context.Context, req *request) phaseResult {
	in := req.intent
	if in.HasPlaces() || in.Region == "" {
		return phaseResult{outcome: OutcomeSkipped}
	}
	c, ok := o.builder.Region(in.Region, in.Hazards, in.Scenario)
	if !ok {
		return phaseResult{outcome: OutcomeSkipped}
	}
	return o.execute(ctx, c)
}

func (o *Orchestrator) freeFormPhase(ctx context.Context, req *request) phaseResult {
	in := req.intent
	p := prompt.BuildSQL(prompt.SQLInput{
		Question:      req.question,
		Hazards:       in.Hazards,
		Region:        in.Region,
		Scenario:      in.Scenario,
		SchemaContext: req.schema,
		MaxRows:       o.cfg.PromptRows,
	})

	start := time.Now()
	text, err := o.deps.Generator.Generate(ctx, p)
	o.metrics.GenerationDuration.WithLabelValues("generate").Observe(time.Since(start).Seconds())
	if err != nil {
		return phaseResult{outcome: OutcomeGenerationError, err: fmt.Errorf("%w: %w", ErrGeneration, err)}
	}

	sqlText, ok := query.ExtractSQL(text)
	if !ok {
		return phaseResult{
			outcome: OutcomeGenerationError,
			err:     fmt.Errorf("%w: response contained no SELECT", ErrGeneration),
		}
	}
	return o.execute(ctx, query.FreeForm(sqlText))
}

// execute validates c and, only if it passes, runs it.
func (o *Orchestrator) execute(ctx context.Context, c query.Candidate) phaseResult {
	if err := o.deps.Validator.Check(c.SQL); err != nil {
		c.Validity = query.Invalid
		o.metrics.SQLValidations.WithLabelValues("rejected").Inc()
		return phaseResult{
			outcome:   OutcomeInvalid,
			candidate: c,
			err:       fmt.Errorf("%w: %w", ErrValidation, err),
		}
	}
	c.Validity = query.Valid
	o.metrics.SQLValidations.WithLabelValues("accepted").Inc()

	start := time.Now()
	res, err := o.deps.Executor.Query(ctx, c.SQL, c.Args...)
	o.metrics.QueryDuration.Observe(time.Since(start).Seconds())
	if err != nil {
		return phaseResult{
			outcome:   OutcomeExecutionError,
			candidate: c,
			err:       fmt.Errorf("%w: %w", ErrExecution, err),
		}
	}
	if res.Empty() {
		return phaseResult{outcome: OutcomeEmpty, candidate: c, result: res, err: ErrEmptyResult}
	}
	return phaseResult{outcome: OutcomeValid, candidate: c, result: res}
}

// ─── TERMINALS ────────────────────────────────────────────────────────────────

func (o *Orchestrator) summarize(ctx context.Context, req *request, phase Phase, res phaseResult) *Answer {
	in := summary.Input{
		Question:      req.question,
		Result:        res.result,
		SQL:           res.candidate.SQL,
		SchemaContext: req.schema,
		Location:      location(req.intent),
	}
	if !req.intent.HasPlaces() && req.intent.Region != "" {
		in.AggregatedFrom = string(req.intent.Region)
	}

	start := time.Now()
	st := o.deps.Summarizer.Summarize(ctx, in)
	o.metrics.GenerationDuration.WithLabelValues("stream_open").Observe(time.Since(start).Seconds())
	o.metrics.Asks.WithLabelValues(string(Executed)).Inc()

	req.logger.Info("ask: answered from data",
		"phase", phase,
		"rows", len(res.result.Rows),
		"truncated", res.result.Truncated,
	)
	return &Answer{
		ID:       req.id,
		Phase:    phase,
		Terminal: Executed,
		SQL:      res.candidate.SQL,
		Intent:   req.intent,
		Stream:   st,
	}
}

func (o *Orchestrator) fallback(ctx context.Context, req *request) (*Answer, error) {
	start := time.Now()
	st, err := o.deps.Summarizer.Narrative(ctx, req.question)
	o.metrics.GenerationDuration.WithLabelValues("stream_open").Observe(time.Since(start).Seconds())
	if err != nil {
		o.record(req, PhaseFallback, phaseResult{outcome: OutcomeGenerationError, err: err})
		return o.fail(req, err)
	}
	o.record(req, PhaseFallback, phaseResult{outcome: OutcomeValid})
	o.metrics.Asks.WithLabelValues(string(FallbackNarrative)).Inc()

	return &Answer{
		ID:       req.id,
		Phase:    PhaseFallback,
		Terminal: FallbackNarrative,
		Intent:   req.intent,
		Stream:   st,
	}, nil
}

func (o *Orchestrator) fail(req *request, err error) (*Answer, error) {
	o.metrics.Asks.WithLabelValues(string(Failed)).Inc()
	req.logger.Error("ask: no answer", "error", err)
	return nil, fmt.Errorf("%w: %w", ErrUnavailable, err)
}

// record logs a phase result and counts it.
func (o *Orchestrator) record(req *request, phase Phase, res phaseResult) {
	o.metrics.PhaseOutcomes.WithLabelValues(string(phase), res.outcome.String()).Inc()

	attrs := []any{"phase", phase, "outcome", res.outcome.String()}
	if res.candidate.SQL != "" {
		attrs = append(attrs, "provenance", res.candidate.Provenance, "validity", res.candidate.Validity.String())
	}
	if res.err != nil {
		attrs = append(attrs, "error", res.err)
	}

	switch res.outcome {
	case OutcomeValid:
		req.logger.Info("ask: phase", attrs...)
	case OutcomeInvalid, OutcomeGenerationError, OutcomeExecutionError:
		if res.candidate.SQL != "" {
			attrs = append(attrs, "sql", res.candidate.SQL)
		}
		req.logger.Warn("ask: phase", attrs...)
	case OutcomeEmpty, OutcomeSkipped:
		req.logger.Debug("ask: phase", attrs...)
	}
}

// location is the heading subject: the places the user named, in order,
// else the country or continent the region was detected from.
func location(in intent.Intent) string {
	if len(in.Places) > 0 {
		names := make([]string, 0, len(in.Places))
		for _, p := range in.Places {
			names = append(names, p.Name)
		}
		return strings.Join(names, ", ")
	}
	if len(in.Mentions) > 0 {
		return strings.Join(in.Mentions, ", ")
	}
	return in.RegionMention
}

// IsUnavailable reports whether err means no answer could be produced.
func IsUnavailable(err error) bool {
	return errors.Is(err, ErrUnavailable)
}
