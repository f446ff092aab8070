// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package research

import (
	"errors"
	"fmt"
	"strings"
)

// ErrNoResults is returned when aggregation or filtering leaves no record
// to synthesize.
var ErrNoResults = errors.New("no results found; try a different topic or date range")

// Stage names a pipeline step in errors and progress output.
type Stage string

const (
	StageRewrite    Stage = "rewrite"
	StageSelect     Stage = "select"
	StageGather     Stage = "gather"
	StageFilter     Stage = "filter"
	StageSynthesize Stage = "synthesize"
	StageSave       Stage = "save"
)

// StageError is a fatal run error tagged with the step that failed.
type StageError struct {
	Stage Stage
	Err   error
}

func (e *StageError) Error() string {
	return fmt.Sprintf("%s: %v", e.Stage, e.Err)
}

func (e *StageError) Unwrap() error { return e.Err }

const redactedMark = "[REDACTED]"

// minSecretLen keeps very short values from redacting ordinary words.
const minSecretLen = 6

// redacted wraps an error so its message never shows a credential while
// errors.Is and errors.As still see the original chain.
type redacted struct {
	msg string
	err error
}

func (r *redacted) Error() string { return r.msg }
func (r *redacted) Unwrap() error { return r.err }

// redact scrubs every secret from err's message.
func redact(err error, secrets []string) error {
	if err == nil {
		return nil
	}
	msg := err.Error()
	scrubbed := msg
	for _, s := range secrets {
		if len(s) >= minSecretLen {
			scrubbed = strings.ReplaceAll(scrubbed, s, redactedMark)
		}
	}
	if scrubbed == msg {
		return err
	}
	return &redacted{msg: scrubbed, err: err}
}
