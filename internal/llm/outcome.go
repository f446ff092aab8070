// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package llm

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
)

// Outcome is the result of asking the model for a typed answer. When the
// call or the parse fails, Value holds the caller's fallback, Fallback is
// true, and Err records why.
type Outcome[T any] struct {
	Value    T
	Fallback bool
	Err      error
}

// Ask sends p, parses the reply with parse, and returns fallback instead of
// an error when either step fails. Selection and filtering use it so every
// failure path lands on an explicit default.
func Ask[T any](ctx context.Context, c Completer, p Prompt, parse func(string) (T, error), fallback T) Outcome[T] {
	reply, err := c.Complete(ctx, p)
	if err != nil {
		return Outcome[T]{Value: fallback, Fallback: true, Err: err}
	}
	v, err := parse(reply)
	if err != nil {
		return Outcome[T]{Value: fallback, Fallback: true, Err: fmt.Errorf("%w: %v", ErrUnparseable, err)}
	}
	return Outcome[T]{Value: v}
}

// ExtractJSON returns the outermost JSON object in s, tolerating Markdown
// code fences and prose around it.
func ExtractJSON(s string) (string, error) {
	start := strings.Index(s, "{")
	end := strings.LastIndex(s, "}")
	if start < 0 || end < start {
		return "", fmt.Errorf("no JSON object in response %q", Snippet(s, 80))
	}
	return s[start : end+1], nil
}

// DecodeJSON extracts the JSON object in s and unmarshals it into a T.
func DecodeJSON[T any](s string) (T, error) {
	var v T
	raw, err := ExtractJSON(s)
	if err != nil {
		return v, err
	}
	if err := json.Unmarshal([]byte(raw), &v); err != nil {
		return v, fmt.Errorf("decoding JSON: %w", err)
	}
	return v, nil
}

// Snippet truncates s to at most n runes for logs and prompts, appending
// "..." when shortened.
func Snippet(s string, n int) string {
	s = strings.TrimSpace(s)
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	if n <= 3 {
		return string(r[:n])
	}
	return string(r[:n-3]) + "..."
}
