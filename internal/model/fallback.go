package model

import (
	"context"
	"errors"
	"log"
)

// FallbackAdapter tries the primary generator and falls back to the
// secondary when the primary fails for any reason other than the
// caller giving up.
type FallbackAdapter struct {
	primary   Generator
	secondary Generator
}

func NewFallbackAdapter(primary, secondary Generator) *FallbackAdapter {
	return &FallbackAdapter{primary: primary, secondary: secondary}
}

func (a *FallbackAdapter) Generate(ctx context.Context, prompt string, params Params) (string, error) {
	out, err := a.primary.Generate(ctx, prompt, params)
	if err == nil {
		return out, nil
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return "", err
	}
	log.Printf("model: primary generator failed, using fallback: %v", err)
	return a.secondary.Generate(ctx, prompt, params)
}
