package model

import (
	"context"
	"errors"
	"fmt"
	"strings"
)

// Params are the sampling settings passed to the backend on every call.
type Params struct {
	MaxNewTokens      int     `json:"max_new_tokens"`
	Temperature       float64 `json:"temperature"`
	TopP              float64 `json:"top_p"`
	RepetitionPenalty float64 `json:"repetition_penalty"`
}

// Generator is the single capability the core needs from a language model
// backend: turn a formatted prompt into raw text.
type Generator interface {
	Generate(ctx context.Context, prompt string, params Params) (string, error)
}

// Config controls adapter construction.
type Config struct {
	Mode    string
	HTTPURL string
}

func NewAdapter(cfg Config) (Generator, error) {
	mode := strings.ToLower(strings.TrimSpace(cfg.Mode))
	if mode == "" {
		mode = "auto"
	}

	switch mode {
	case "auto":
		return newAutoAdapter(cfg), nil
	case "http":
		if strings.TrimSpace(cfg.HTTPURL) == "" {
			return nil, errors.New("model HTTP url is required for http mode")
		}
		return NewHTTPAdapter(cfg.HTTPURL), nil
	case "mock":
		return NewMockAdapter(), nil
	default:
		return nil, fmt.Errorf("unsupported model adapter mode %q", cfg.Mode)
	}
}

func newAutoAdapter(cfg Config) Generator {
	if url := strings.TrimSpace(cfg.HTTPURL); url != "" {
		return NewFallbackAdapter(NewHTTPAdapter(url), NewMockAdapter())
	}
	return NewMockAdapter()
}
