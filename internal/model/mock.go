package model

import (
	"context"
	"strings"
)

// MockAdapter produces deterministic local replies when no backend is
// configured, echoing the last user line of the prompt.
type MockAdapter struct{}

func NewMockAdapter() *MockAdapter { return &MockAdapter{} }

func (a *MockAdapter) Generate(ctx context.Context, prompt string, _ Params) (string, error) {
	select {
	case <-ctx.Done():
		return "", ctx.Err()
	default:
	}
	return buildMockReply(prompt), nil
}

func buildMockReply(prompt string) string {
	user := lastUserSection(prompt)
	if user == "" {
		return "Я тебя слушаю."
	}
	return "Понял тебя: " + user
}

func lastUserSection(prompt string) string {
	const marker = "<|im_start|>user"
	i := strings.LastIndex(prompt, marker)
	if i < 0 {
		return strings.TrimSpace(prompt)
	}
	rest := prompt[i+len(marker):]
	if j := strings.Index(rest, "<|im_end|>"); j >= 0 {
		rest = rest[:j]
	}
	return strings.TrimSpace(rest)
}
