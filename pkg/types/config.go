package types

import "time"

// HTTPConfig holds shared HTTP settings used by every outbound request.
type HTTPConfig struct {
	// Timeout is the per-call timeout for one source adapter or model call.
	Timeout time.Duration `json:"timeout" yaml:"timeout"`

	// UserAgent is the User-Agent header sent to providers
	// (e.g. "deep-research/0.1").
	UserAgent string `json:"user_agent" yaml:"user_agent"`
}

// LLMConfig holds settings for the OpenAI-compatible model backend
// (Ollama by default).
type LLMConfig struct {
	// BaseURL is the chat completions endpoint root, e.g.
	// "http://localhost:11434/v1". Required.
	BaseURL string `json:"base_url" yaml:"base_url"`

	// APIKey is the bearer token. Local backends accept a placeholder.
	APIKey string `json:"-" yaml:"-"`

	// Model is the model identifier (default "llama3.2").
	Model string `json:"model" yaml:"model"`

	// Timeout bounds each model call independently.
	Timeout time.Duration `json:"timeout" yaml:"timeout"`

	// MaxRetries is the number of client-side retries on transient errors.
	MaxRetries int `json:"max_retries" yaml:"max_retries"`
}

// SearchConfig holds settings for source adapters and the aggregator.
type SearchConfig struct {
	HTTPConfig `yaml:",inline"`

	// MaxResults is the default per-source result limit (default 10).
	MaxResults int `json:"max_results" yaml:"max_results"`

	// DefaultDateFrom is applied when the user gives no date-from.
	// Zero means unbounded.
	DefaultDateFrom time.Time `json:"default_date_from,omitempty" yaml:"default_date_from,omitempty"`

	// EnabledSources narrows the catalog. Empty means every source.
	EnabledSources []string `json:"enabled_sources,omitempty" yaml:"enabled_sources,omitempty"`

	// Concurrency caps the number of adapters queried at once (default 6).
	Concurrency int `json:"concurrency" yaml:"concurrency"`
}

// OutputConfig holds settings for report output.
type OutputConfig struct {
	// Dir is the directory reports are written to (default "outputs").
	Dir string `json:"dir" yaml:"dir"`

	// Manifest enables the YAML run manifest written next to each report.
	Manifest bool `json:"manifest" yaml:"manifest"`
}

// FeatureConfig holds defaults for the optional model-driven stages.
type FeatureConfig struct {
	SourceSelection bool `json:"source_selection" yaml:"source_selection"`
	RelevanceFilter bool `json:"relevance_filter" yaml:"relevance_filter"`
	QueryRewrite    bool `json:"query_rewrite" yaml:"query_rewrite"`

	// FilterBatchSize is the number of records judged per model call
	// (default 1).
	FilterBatchSize int `json:"filter_batch_size" yaml:"filter_batch_size"`

	// FilterConcurrency caps concurrent relevance calls (default 4).
	FilterConcurrency int `json:"filter_concurrency" yaml:"filter_concurrency"`

	// MinInsights and MaxInsights bound the synthesized insight list
	// (default 5 and 7).
	MinInsights int `json:"min_insights" yaml:"min_insights"`
	MaxInsights int `json:"max_insights" yaml:"max_insights"`
}

// SourceKeys holds optional per-provider credentials and contact details.
type SourceKeys struct {
	GitHubToken           string `json:"-" yaml:"-"`
	CoreAPIKey            string `json:"-" yaml:"-"`
	SemanticScholarAPIKey string `json:"-" yaml:"-"`
	CrossrefMailto        string `json:"crossref_mailto,omitempty" yaml:"crossref_mailto,omitempty"`
	OpenAlexMailto        string `json:"openalex_mailto,omitempty" yaml:"openalex_mailto,omitempty"`
}

// Secrets returns every non-empty credential so error messages can be
// scrubbed before they reach the user.
func (k SourceKeys) Secrets() []string {
	var out []string
	for _, s := range []string{k.GitHubToken, k.CoreAPIKey, k.SemanticScholarAPIKey} {
		if s != "" {
			out = append(out, s)
		}
	}
	return out
}

// ArchiveConfig holds settings for the local run history database.
type ArchiveConfig struct {
	// Enabled records every successful run in the archive.
	Enabled bool `json:"enabled" yaml:"enabled"`

	// Path is the SQLite database file.
	Path string `json:"path" yaml:"path"`
}

// Settings is the immutable process configuration, loaded once at startup
// and passed to each component at construction.
type Settings struct {
	LLM      LLMConfig     `json:"llm" yaml:"llm"`
	Search   SearchConfig  `json:"search" yaml:"search"`
	Output   OutputConfig  `json:"output" yaml:"output"`
	Features FeatureConfig `json:"features" yaml:"features"`
	Keys     SourceKeys    `json:"keys" yaml:"keys"`
	Archive  ArchiveConfig `json:"archive" yaml:"archive"`
}
