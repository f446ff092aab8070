// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package main is the entry point for the deep-research CLI.
//
// deep-research takes a topic, asks a local model which sources fit it,
// searches those sources in parallel, filters the results for relevance,
// synthesizes a summary with key insights, and writes a Markdown report.
package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/pdiddy/deep-research/internal/config"
	"github.com/pdiddy/deep-research/internal/llm"
	"github.com/pdiddy/deep-research/internal/logging"
	"github.com/pdiddy/deep-research/internal/secrets"
	"github.com/pdiddy/deep-research/internal/sources"
	"github.com/pdiddy/deep-research/pkg/types"
)

// version is set at build time via ldflags.
var version = "dev"

// Exit codes.
const (
	exitOK    = 0
	exitRun   = 1
	exitUsage = 2
)

// Construction hooks, replaced in tests.
var (
	newCatalog = func(s types.Settings, logger *zap.Logger) *sources.Catalog {
		return sources.Default(sources.Deps{
			UserAgent: s.Search.UserAgent,
			Keys:      s.Keys,
			Logger:    logger,
		})
	}

	newCompleter = func(cfg types.LLMConfig, logger *zap.Logger) (llm.Completer, error) {
		c, err := llm.NewClient(cfg, nil, logger)
		if err != nil {
			return nil, err
		}
		return c, nil
	}

	now   = time.Now
	newID = uuid.NewString
)

// usageError marks invalid arguments or configuration.
type usageError struct{ err error }

func (e *usageError) Error() string { return e.err.Error() }
func (e *usageError) Unwrap() error { return e.err }

func usagef(format string, args ...any) error {
	return &usageError{err: fmt.Errorf(format, args...)}
}

func exitCode(err error) int {
	var ue *usageError
	switch {
	case err == nil:
		return exitOK
	case errors.As(err, &ue),
		errors.Is(err, types.ErrInvalidQuery),
		errors.Is(err, config.ErrInvalidConfig),
		errors.Is(err, llm.ErrMissingBaseURL):
		return exitUsage
	default:
		return exitRun
	}
}

// app is the state shared by every command of one invocation.
type app struct {
	v      *viper.Viper
	logger *zap.Logger
	sec    secrets.Secrets

	cfgFile    string
	secretsDir string
	verbose    bool
}

// settings loads the configuration. It runs only for commands that need it
// so that version works with a broken config file.
func (a *app) settings() (types.Settings, error) {
	config.SetDefaults(a.v, version)
	used, err := config.Init(a.v, a.cfgFile)
	if err != nil {
		return types.Settings{}, &usageError{err: err}
	}
	if used != "" {
		a.logger.Debug("using config file", zap.String("path", used))
	}
	return config.Load(a.v, a.sec, now())
}

func newRootCmd(stdout, stderr io.Writer) *cobra.Command {
	a := &app{v: viper.New(), logger: zap.NewNop()}

	root := &cobra.Command{
		Use:   "deep-research [topic]",
		Short: "Research a topic across academic, news, and community sources",
		Long: `deep-research researches a topic end to end. A local model picks the
sources that fit the topic, every chosen source is searched in parallel,
results are deduplicated and filtered for relevance, and the model writes
an executive summary with key insights. The report is saved as Markdown.

The model backend is any OpenAI-compatible endpoint, Ollama by default.
Settings come from deep-research.yaml, DEEP_RESEARCH_* environment
variables, and API keys in the .secrets/ directory.`,
		Example: `  deep-research "quantum error correction"
  deep-research --topic "LLM agents" --max-results 20 --date-from 2024-01-01
  deep-research "vector databases" --exclude-source reddit,hackernews --show`,
		Args:          cobra.ArbitraryArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			a.logger = logging.New(stderr, a.verbose)
			s, err := secrets.Load(a.secretsDir, a.logger)
			if err != nil {
				return err
			}
			a.sec = s
			if len(s) > 0 {
				a.logger.Debug("loaded secrets", zap.Strings("keys", s.Names()))
			}
			return nil
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			return runResearch(cmd, a, args)
		},
	}
	root.SetOut(stdout)
	root.SetErr(stderr)
	root.SetFlagErrorFunc(func(_ *cobra.Command, err error) error {
		return &usageError{err: err}
	})

	pf := root.PersistentFlags()
	pf.StringVar(&a.cfgFile, "config", "", "config file (default: ./deep-research.yaml or $XDG_CONFIG_HOME/deep-research/deep-research.yaml)")
	pf.StringVar(&a.secretsDir, "secrets", secrets.DefaultDir, "directory of API key files")
	pf.BoolVarP(&a.verbose, "verbose", "v", false, "debug logging")

	addResearchFlags(root)
	root.AddCommand(newSourcesCmd(a), newHistoryCmd(a), newVersionCmd())
	return root
}

// execute runs the CLI with args and returns the process exit code.
func execute(ctx context.Context, args []string, stdout, stderr io.Writer) int {
	root := newRootCmd(stdout, stderr)
	root.SetArgs(args)
	err := root.ExecuteContext(ctx)
	if err != nil {
		fmt.Fprintf(stderr, "Error: %v\n", err)
	}
	return exitCode(err)
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	code := execute(ctx, os.Args[1:], os.Stdout, os.Stderr)
	stop()
	os.Exit(code)
}
