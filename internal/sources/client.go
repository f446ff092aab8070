// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package sources

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"golang.org/x/time/rate"

	"github.com/pdiddy/deep-research/internal/httputil"
)

// maxBody caps how much of a provider response is read.
const maxBody = 8 << 20

// getter is the HTTP plumbing shared by the JSON and HTML sources: a
// User-Agent, a per-source rate limit, 429/503 retry, and status checks.
type getter struct {
	service   string
	client    *http.Client
	userAgent string
	limiter   *rate.Limiter
}

func newGetter(d Deps, service string, every time.Duration, burst int) *getter {
	return &getter{
		service:   service,
		client:    d.Client,
		userAgent: d.UserAgent,
		limiter:   rate.NewLimiter(rate.Every(every), burst),
	}
}

// fetch performs a GET and returns the response body.
func (g *getter) fetch(ctx context.Context, rawURL string, header http.Header) ([]byte, error) {
	if err := g.limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("%s rate limit wait: %w", g.service, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, fmt.Errorf("creating %s request: %w", g.service, err)
	}
	req.Header.Set("User-Agent", g.userAgent)
	for k, vs := range header {
		req.Header.Del(k)
		for _, v := range vs {
			req.Header.Add(k, v)
		}
	}

	resp, err := httputil.DoWithRetry(ctx, g.client, req, 0)
	if err != nil {
		return nil, fmt.Errorf("%s request: %w", g.service, err)
	}
	defer resp.Body.Close()

	if err := httputil.CheckResponse(resp, g.service); err != nil {
		return nil, err
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBody))
	if err != nil {
		return nil, fmt.Errorf("reading %s response: %w", g.service, err)
	}
	return body, nil
}

// getJSON performs a GET and decodes the JSON body into v.
func (g *getter) getJSON(ctx context.Context, rawURL string, header http.Header, v any) error {
	body, err := g.fetch(ctx, rawURL, header)
	if err != nil {
		return err
	}
	if err := json.Unmarshal(body, v); err != nil {
		return fmt.Errorf("parsing %s response: %w", g.service, err)
	}
	return nil
}
