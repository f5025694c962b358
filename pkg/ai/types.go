package ai

import (
	"context"
	"errors"
)

// ErrNotConfigured is returned when no provider credentials were supplied.
var ErrNotConfigured = errors.New("text generator not configured")

// GenerationInput describes the lesson text a teacher asked for.
type GenerationInput struct {
	Topic     string
	Level     string
	Language  string
	TextType  string
	WordCount int
}

// GenerationResult is the structured text returned by the provider.
type GenerationResult struct {
	Title string                 `json:"title"`
	Text  string                 `json:"text"`
	Raw   map[string]interface{} `json:"raw,omitempty"`
}

// Generator produces lesson source text. Implementations are called outside of any draft lock.
type Generator interface {
	Generate(ctx context.Context, input GenerationInput) (GenerationResult, error)
}

// Disabled is a Generator used when no API key is configured.
type Disabled struct{}

// Generate always fails with ErrNotConfigured.
func (Disabled) Generate(context.Context, GenerationInput) (GenerationResult, error) {
	return GenerationResult{}, ErrNotConfigured
}
