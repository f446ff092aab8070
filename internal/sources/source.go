// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package sources queries external data providers (academic indexes, web and
// news search, community sites, code hosting, search trends) and normalizes
// their responses into types.ResultRecord. Each provider is one Source
// registered in a Catalog under a stable identifier.
package sources

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/pdiddy/deep-research/pkg/types"
)

// Source queries a single external provider.
type Source interface {
	Name() string
	Search(ctx context.Context, req Request) ([]types.ResultRecord, error)
}

// Request holds the parameters passed to every source.
type Request struct {
	Query      string
	DateFrom   time.Time
	DateTo     time.Time
	MaxResults int
}

// ErrInvalidRequest is wrapped by Request.Validate failures.
var ErrInvalidRequest = errors.New("invalid source request")

// Validate checks the input constraints shared by all sources.
func (r Request) Validate() error {
	if strings.TrimSpace(r.Query) == "" {
		return fmt.Errorf("%w: query is empty", ErrInvalidRequest)
	}
	if r.MaxResults < 1 {
		return fmt.Errorf("%w: max results must be at least 1", ErrInvalidRequest)
	}
	if !r.DateFrom.IsZero() && !r.DateTo.IsZero() && r.DateFrom.After(r.DateTo) {
		return fmt.Errorf("%w: date-from is after date-to", ErrInvalidRequest)
	}
	return nil
}

// RequestFor builds the source request for a research query.
func RequestFor(q types.ResearchQuery) Request {
	return Request{
		Query:      q.EffectiveQuery(),
		DateFrom:   q.DateFrom,
		DateTo:     q.DateTo,
		MaxResults: q.MaxResults,
	}
}

// Unavailable reports that a source could not produce results for this run.
// It is recoverable: the run continues with the other sources.
type Unavailable struct {
	Source string
	Err    error
}

func (e *Unavailable) Error() string {
	return fmt.Sprintf("source %s unavailable: %v", e.Source, e.Err)
}

func (e *Unavailable) Unwrap() error { return e.Err }

// Run invokes s under the shared source contract: the request is validated,
// panics are recovered, records without a title are dropped, every record is
// stamped with the source identifier, and at most req.MaxResults records are
// returned. Any failure is returned as *Unavailable with no records.
func Run(ctx context.Context, s Source, req Request) (recs []types.ResultRecord, err error) {
	name := s.Name()
	if err := req.Validate(); err != nil {
		return nil, &Unavailable{Source: name, Err: err}
	}

	defer func() {
		if p := recover(); p != nil {
			recs = nil
			err = &Unavailable{Source: name, Err: fmt.Errorf("panic: %v", p)}
		}
	}()

	out, err := s.Search(ctx, req)
	if err != nil {
		return nil, &Unavailable{Source: name, Err: err}
	}

	recs = make([]types.ResultRecord, 0, min(len(out), req.MaxResults))
	for _, r := range out {
		r.Title = cleanText(r.Title)
		if r.Title == "" {
			continue
		}
		r.Source = name
		recs = append(recs, r)
		if len(recs) == req.MaxResults {
			break
		}
	}
	return recs, nil
}
