// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package config loads process settings from the config file, the
// environment, and the secrets directory into an immutable types.Settings.
//
// Every key can be set in deep-research.yaml, as DEEP_RESEARCH_<KEY> with
// dots replaced by underscores, or through the plain environment names the
// tool has always accepted (OLLAMA_BASE_URL, MAX_RESULTS, GITHUB_TOKEN, ...).
package config

import (
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/adrg/xdg"
	"github.com/samber/lo"
	"github.com/spf13/viper"

	"github.com/pdiddy/deep-research/internal/llm"
	"github.com/pdiddy/deep-research/internal/secrets"
	"github.com/pdiddy/deep-research/pkg/types"
)

// AppName names the config file, the XDG directories, and the env prefix.
const AppName = "deep-research"

// ErrInvalidConfig is wrapped by every validation failure from Load.
var ErrInvalidConfig = errors.New("invalid configuration")

// Configuration keys.
const (
	KeyLLMBaseURL    = "llm.base_url"
	KeyLLMAPIKey     = "llm.api_key"
	KeyLLMModel      = "llm.model"
	KeyLLMTimeout    = "llm.timeout"
	KeyLLMMaxRetries = "llm.max_retries"

	KeyMaxResults      = "search.max_results"
	KeyDefaultDateFrom = "search.default_date_from"
	KeyEnabledSources  = "search.enabled_sources"
	KeySearchTimeout   = "search.timeout"
	KeyUserAgent       = "search.user_agent"
	KeyConcurrency     = "search.concurrency"

	KeyOutputDir = "output.dir"
	KeyManifest  = "output.manifest"

	KeySourceSelection   = "features.source_selection"
	KeyRelevanceFilter   = "features.relevance_filter"
	KeyQueryRewrite      = "features.query_rewrite"
	KeyFilterBatchSize   = "features.filter_batch_size"
	KeyFilterConcurrency = "features.filter_concurrency"
	KeyMinInsights       = "features.min_insights"
	KeyMaxInsights       = "features.max_insights"

	KeyGitHubToken    = "keys.github_token"
	KeyCoreAPIKey     = "keys.core_api_key"
	KeyS2APIKey       = "keys.semantic_scholar_api_key"
	KeyCrossrefMailto = "keys.crossref_mailto"
	KeyOpenAlexMailto = "keys.openalex_mailto"

	KeyArchiveEnabled = "archive.enabled"
	KeyArchivePath    = "archive.path"
)

// legacyEnv maps keys to the environment names accepted without prefix.
var legacyEnv = map[string]string{
	KeyLLMBaseURL:      "OLLAMA_BASE_URL",
	KeyLLMAPIKey:       "OLLAMA_API_KEY",
	KeyLLMModel:        "OLLAMA_MODEL",
	KeyMaxResults:      "MAX_RESULTS",
	KeyDefaultDateFrom: "DEFAULT_DATE_FROM",
	KeyEnabledSources:  "ENABLED_SOURCES",
	KeyOutputDir:       "OUTPUT_DIR",
	KeySourceSelection: "ENABLE_SOURCE_SELECTION",
	KeyRelevanceFilter: "ENABLE_RELEVANCE_FILTER",
	KeyQueryRewrite:    "ENABLE_QUERY_REWRITE",
	KeyFilterBatchSize: "FILTER_BATCH_SIZE",
	KeyGitHubToken:     "GITHUB_TOKEN",
	KeyCoreAPIKey:      "CORE_API_KEY",
	KeyS2APIKey:        "SEMANTIC_SCHOLAR_API_KEY",
	KeyCrossrefMailto:  "CROSSREF_MAILTO",
	KeyOpenAlexMailto:  "OPENALEX_MAILTO",
}

// unboundedDates disables the default date-from.
var unboundedDates = []string{"none", "any", "off"}

// SetDefaults registers the default value of every key on v.
func SetDefaults(v *viper.Viper, version string) {
	v.SetDefault(KeyLLMBaseURL, "http://localhost:11434/v1")
	v.SetDefault(KeyLLMAPIKey, "")
	v.SetDefault(KeyLLMModel, "llama3.2")
	v.SetDefault(KeyLLMTimeout, 120*time.Second)
	v.SetDefault(KeyLLMMaxRetries, 2)

	v.SetDefault(KeyMaxResults, 10)
	v.SetDefault(KeyDefaultDateFrom, "")
	v.SetDefault(KeyEnabledSources, []string{})
	v.SetDefault(KeySearchTimeout, 30*time.Second)
	v.SetDefault(KeyUserAgent, fmt.Sprintf("%s/%s (+https://github.com/pdiddy/deep-research)", AppName, version))
	v.SetDefault(KeyConcurrency, 6)

	v.SetDefault(KeyOutputDir, "outputs")
	v.SetDefault(KeyManifest, true)

	v.SetDefault(KeySourceSelection, true)
	v.SetDefault(KeyRelevanceFilter, true)
	v.SetDefault(KeyQueryRewrite, false)
	v.SetDefault(KeyFilterBatchSize, 1)
	v.SetDefault(KeyFilterConcurrency, 4)
	v.SetDefault(KeyMinInsights, 5)
	v.SetDefault(KeyMaxInsights, 7)

	v.SetDefault(KeyGitHubToken, "")
	v.SetDefault(KeyCoreAPIKey, "")
	v.SetDefault(KeyS2APIKey, "")
	v.SetDefault(KeyCrossrefMailto, "")
	v.SetDefault(KeyOpenAlexMailto, "")

	v.SetDefault(KeyArchiveEnabled, false)
	v.SetDefault(KeyArchivePath, filepath.Join(xdg.DataHome, AppName, "history.db"))
}

// Init points v at the config file and the environment. cfgFile overrides
// discovery of deep-research.yaml in the working directory and in
// $XDG_CONFIG_HOME/deep-research. It returns the config file used, or ""
// when none was found. A missing discovered file is not an error; an
// explicit cfgFile that cannot be read is.
func Init(v *viper.Viper, cfgFile string) (string, error) {
	if cfgFile != "" {
		v.SetConfigFile(cfgFile)
	} else {
		v.SetConfigName(AppName)
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath(filepath.Join(xdg.ConfigHome, AppName))
	}

	v.SetEnvPrefix(strings.ReplaceAll(strings.ToUpper(AppName), "-", "_"))
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	for key, env := range legacyEnv {
		prefixed := "DEEP_RESEARCH_" + strings.ToUpper(strings.ReplaceAll(key, ".", "_"))
		if err := v.BindEnv(key, prefixed, env); err != nil {
			return "", fmt.Errorf("binding %s: %w", key, err)
		}
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if cfgFile == "" && errors.As(err, &notFound) {
			return "", nil
		}
		return "", fmt.Errorf("reading config: %w", err)
	}
	return v.ConfigFileUsed(), nil
}

// Load builds Settings from v, filling credentials that v leaves empty
// from sec. now anchors the default date-from of one year ago.
func Load(v *viper.Viper, sec secrets.Secrets, now time.Time) (types.Settings, error) {
	var s types.Settings

	base, err := llm.ValidateBaseURL(v.GetString(KeyLLMBaseURL))
	if err != nil {
		return types.Settings{}, fmt.Errorf("%w: %w", ErrInvalidConfig, err)
	}
	s.LLM = types.LLMConfig{
		BaseURL:    base,
		APIKey:     sec.Or(secrets.LLMAPIKey, v.GetString(KeyLLMAPIKey)),
		Model:      v.GetString(KeyLLMModel),
		Timeout:    v.GetDuration(KeyLLMTimeout),
		MaxRetries: v.GetInt(KeyLLMMaxRetries),
	}
	if s.LLM.Model == "" {
		return types.Settings{}, fmt.Errorf("%w: %s is empty", ErrInvalidConfig, KeyLLMModel)
	}

	s.Search = types.SearchConfig{
		HTTPConfig: types.HTTPConfig{
			Timeout:   v.GetDuration(KeySearchTimeout),
			UserAgent: v.GetString(KeyUserAgent),
		},
		MaxResults:     v.GetInt(KeyMaxResults),
		EnabledSources: types.NormalizeIDs(v.GetStringSlice(KeyEnabledSources)),
		Concurrency:    v.GetInt(KeyConcurrency),
	}
	if s.Search.MaxResults < types.MinResultsPerSource || s.Search.MaxResults > types.MaxResultsPerSource {
		return types.Settings{}, fmt.Errorf("%w: %s %d outside %d..%d", ErrInvalidConfig,
			KeyMaxResults, s.Search.MaxResults, types.MinResultsPerSource, types.MaxResultsPerSource)
	}
	if s.Search.DefaultDateFrom, err = defaultDateFrom(v.GetString(KeyDefaultDateFrom), now); err != nil {
		return types.Settings{}, err
	}

	s.Output = types.OutputConfig{
		Dir:      v.GetString(KeyOutputDir),
		Manifest: getBool(v, KeyManifest),
	}
	if s.Output.Dir == "" {
		return types.Settings{}, fmt.Errorf("%w: %s is empty", ErrInvalidConfig, KeyOutputDir)
	}

	s.Features = types.FeatureConfig{
		SourceSelection:   getBool(v, KeySourceSelection),
		RelevanceFilter:   getBool(v, KeyRelevanceFilter),
		QueryRewrite:      getBool(v, KeyQueryRewrite),
		FilterBatchSize:   v.GetInt(KeyFilterBatchSize),
		FilterConcurrency: v.GetInt(KeyFilterConcurrency),
		MinInsights:       v.GetInt(KeyMinInsights),
		MaxInsights:       v.GetInt(KeyMaxInsights),
	}
	if s.Features.FilterBatchSize < 1 {
		return types.Settings{}, fmt.Errorf("%w: %s must be at least 1", ErrInvalidConfig, KeyFilterBatchSize)
	}
	if s.Features.MinInsights < 1 || s.Features.MaxInsights < s.Features.MinInsights {
		return types.Settings{}, fmt.Errorf("%w: insight range %d..%d", ErrInvalidConfig,
			s.Features.MinInsights, s.Features.MaxInsights)
	}

	s.Keys = types.SourceKeys{
		GitHubToken:           sec.Or(secrets.GitHubToken, v.GetString(KeyGitHubToken)),
		CoreAPIKey:            sec.Or(secrets.CoreAPIKey, v.GetString(KeyCoreAPIKey)),
		SemanticScholarAPIKey: sec.Or(secrets.SemanticScholarAPIKey, v.GetString(KeyS2APIKey)),
		CrossrefMailto:        sec.Or(secrets.CrossrefMailto, v.GetString(KeyCrossrefMailto)),
		OpenAlexMailto:        sec.Or(secrets.OpenAlexMailto, v.GetString(KeyOpenAlexMailto)),
	}

	s.Archive = types.ArchiveConfig{
		Enabled: getBool(v, KeyArchiveEnabled),
		Path:    v.GetString(KeyArchivePath),
	}
	return s, nil
}

// defaultDateFrom parses the configured default date-from. Empty means one
// year before now; "none", "any", or "off" mean unbounded.
func defaultDateFrom(raw string, now time.Time) (time.Time, error) {
	raw = strings.ToLower(strings.TrimSpace(raw))
	switch {
	case raw == "":
		y, m, d := now.AddDate(-1, 0, 0).Date()
		return time.Date(y, m, d, 0, 0, 0, 0, time.UTC), nil
	case lo.Contains(unboundedDates, raw):
		return time.Time{}, nil
	}
	t, err := time.Parse(types.DateLayout, raw)
	if err != nil {
		return time.Time{}, fmt.Errorf("%w: %s %q is not YYYY-MM-DD", ErrInvalidConfig, KeyDefaultDateFrom, raw)
	}
	return t, nil
}

// getBool reads a boolean that may come from the environment as
// "yes"/"no" or "on"/"off" as well as the forms viper understands.
func getBool(v *viper.Viper, key string) bool {
	switch strings.ToLower(strings.TrimSpace(v.GetString(key))) {
	case "yes", "y", "on":
		return true
	case "no", "n", "off":
		return false
	}
	return v.GetBool(key)
}
