// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package llm

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
	"go.uber.org/zap"

	"github.com/pdiddy/deep-research/pkg/types"
)

// placeholderAPIKey is sent to local backends that ignore authentication.
const placeholderAPIKey = "ollama-local"

// Client is a Completer backed by an OpenAI-compatible chat completions API.
type Client struct {
	client  openai.Client
	model   string
	timeout time.Duration
	logger  *zap.Logger
}

// NewClient validates cfg and returns a client. httpClient may be nil.
func NewClient(cfg types.LLMConfig, httpClient *http.Client, logger *zap.Logger) (*Client, error) {
	base, err := ValidateBaseURL(cfg.BaseURL)
	if err != nil {
		return nil, err
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	apiKey := cfg.APIKey
	if apiKey == "" {
		apiKey = placeholderAPIKey
	}

	opts := []option.RequestOption{
		option.WithBaseURL(base),
		option.WithAPIKey(apiKey),
		option.WithMaxRetries(cfg.MaxRetries),
	}
	if httpClient != nil {
		opts = append(opts, option.WithHTTPClient(httpClient))
	}

	return &Client{
		client:  openai.NewClient(opts...),
		model:   cfg.Model,
		timeout: cfg.Timeout,
		logger:  logger,
	}, nil
}

// ValidateBaseURL checks that raw is an absolute http(s) URL and returns it
// with exactly one trailing slash, as the SDK expects.
func ValidateBaseURL(raw string) (string, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return "", ErrMissingBaseURL
	}
	u, err := url.Parse(raw)
	if err != nil || u.Host == "" || (u.Scheme != "http" && u.Scheme != "https") {
		return "", fmt.Errorf("model backend base URL %q is not an absolute http(s) URL", raw)
	}
	return strings.TrimRight(raw, "/") + "/", nil
}

// Model returns the configured model identifier.
func (c *Client) Model() string { return c.model }

// Complete sends p as a single user message. Each call runs under its own
// timeout; a timed-out call fails without affecting others.
func (c *Client) Complete(ctx context.Context, p Prompt) (string, error) {
	if c.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.timeout)
		defer cancel()
	}

	params := openai.ChatCompletionNewParams{
		Messages: []openai.ChatCompletionMessageParamUnion{
			openai.UserMessage(p.Text),
		},
		Model: openai.ChatModel(c.model),
	}
	if p.MaxTokens > 0 {
		params.MaxTokens = openai.Int(int64(p.MaxTokens))
	}
	if p.Temperature > 0 {
		params.Temperature = openai.Float(p.Temperature)
	}

	start := time.Now()
	resp, err := c.client.Chat.Completions.New(ctx, params)
	if err != nil {
		return "", fmt.Errorf("%s completion: %w", p.Purpose, err)
	}
	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("%s completion: %w", p.Purpose, ErrNoChoices)
	}
	content := strings.TrimSpace(resp.Choices[0].Message.Content)
	if content == "" {
		return "", fmt.Errorf("%s completion: %w", p.Purpose, ErrEmptyResponse)
	}

	c.logger.Debug("model call complete",
		zap.String("purpose", string(p.Purpose)),
		zap.String("model", c.model),
		zap.Duration("elapsed", time.Since(start)),
		zap.Int64("completion_tokens", resp.Usage.CompletionTokens))

	return content, nil
}
