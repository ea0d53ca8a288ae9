package ai

import (
	"context"
	"fmt"
	"log/slog"
)

// fallbackGenerator wraps two Generator implementations. It calls the primary
// first; if that returns an error it logs the failure and tries the
// secondary. Chains of more than two providers are built by nesting.
//
// Streams fall back only when opening fails. Once the first byte has been
// handed to the caller there is nothing sensible to switch to.
type fallbackGenerator struct {
	primary   Generator
	secondary Generator
	logger    *slog.Logger
}

// NewFallbackGenerator returns a Generator that calls primary and, on
// failure, falls back to secondary. Either argument may be nil, in which case
// the other one is returned unwrapped. Both nil returns nil.
func NewFallbackGenerator(primary, secondary Generator, logger *slog.Logger) Generator {
	switch {
	case primary == nil && secondary == nil:
		return nil
	case secondary == nil:
		return primary
	case primary == nil:
		return secondary
	}
	return &fallbackGenerator{
		primary:   primary,
		secondary: secondary,
		logger:    logger,
	}
}

func (f *fallbackGenerator) Generate(ctx context.Context, p Prompt) (string, error) {
	text, err := f.primary.Generate(ctx, p)
	if err == nil {
		return text, nil
	}
	if ctx.Err() != nil {
		return "", err
	}
	f.logger.Warn("ai: primary generator failed, trying secondary", "error", err)

	text, err2 := f.secondary.Generate(ctx, p)
	if err2 != nil {
		return "", fmt.Errorf("ai: all generators failed: %w; %w", err, err2)
	}
	return text, nil
}

func (f *fallbackGenerator) Stream(ctx context.Context, p Prompt) (Stream, error) {
	s, err := f.primary.Stream(ctx, p)
	if err == nil {
		return s, nil
	}
	if ctx.Err() != nil {
		return nil, err
	}
	f.logger.Warn("ai: primary stream failed, trying secondary", "error", err)

	s, err2 := f.secondary.Stream(ctx, p)
	if err2 != nil {
		return nil, fmt.Errorf("ai: all generators failed: %w; %w", err, err2)
	}
	return s, nil
}
