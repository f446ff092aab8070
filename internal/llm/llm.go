// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package llm talks to the OpenAI-compatible chat completions backend that
// drives source selection, relevance filtering, query rewriting, and
// synthesis. Components depend on the Completer interface so tests can
// supply canned responses without a model.
package llm

import (
	"context"
	"errors"
)

// Purpose labels a model call for logs and error messages.
type Purpose string

const (
	PurposeSelect     Purpose = "select"
	PurposeFilter     Purpose = "filter"
	PurposeSynthesize Purpose = "synthesize"
	PurposeRewrite    Purpose = "rewrite"
)

// Prompt is one synchronous request to the model.
type Prompt struct {
	Purpose   Purpose
	Text      string
	MaxTokens int

	// Temperature is sent only when positive; zero leaves the backend default.
	Temperature float64
}

// Completer sends a prompt and returns the model's text reply.
type Completer interface {
	Complete(ctx context.Context, p Prompt) (string, error)
}

// CompleterFunc adapts a function to the Completer interface.
type CompleterFunc func(ctx context.Context, p Prompt) (string, error)

// Complete calls f(ctx, p).
func (f CompleterFunc) Complete(ctx context.Context, p Prompt) (string, error) {
	return f(ctx, p)
}

var (
	ErrMissingBaseURL = errors.New("model backend base URL is not configured")
	ErrNoChoices      = errors.New("model backend returned no choices")
	ErrEmptyResponse  = errors.New("model backend returned empty content")
	ErrUnparseable    = errors.New("model response could not be parsed")
)
