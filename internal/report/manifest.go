// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package report

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"go.yaml.in/yaml/v3"

	"github.com/pdiddy/deep-research/internal/aggregate"
	"github.com/pdiddy/deep-research/pkg/types"
)

// Manifest describes one run: what was asked, which sources answered, and
// how the model judged the results.
type Manifest struct {
	RunID       string    `yaml:"run_id"`
	GeneratedAt time.Time `yaml:"generated_at"`
	Report      string    `yaml:"report"`
	Model       string    `yaml:"model"`

	Query     types.ResearchQuery     `yaml:"query"`
	Selection types.SelectionDecision `yaml:"selection"`

	Queried           []string            `yaml:"queried"`
	Counts            map[string]int      `yaml:"counts,omitempty"`
	DuplicatesRemoved int                 `yaml:"duplicates_removed"`
	Failures          []aggregate.Failure `yaml:"failures,omitempty"`

	Filter   []types.FilterDecision `yaml:"filter,omitempty"`
	Records  int                    `yaml:"records"`
	Insights int                    `yaml:"insights"`
}

// ManifestPath returns the manifest path that sits next to reportPath:
// "report.md" becomes "report.manifest.yaml".
func ManifestPath(reportPath string) string {
	return strings.TrimSuffix(reportPath, filepath.Ext(reportPath)) + ".manifest.yaml"
}

// WriteManifest writes m as YAML to path.
func WriteManifest(path string, m Manifest) error {
	data, err := yaml.Marshal(m)
	if err != nil {
		return fmt.Errorf("marshaling manifest: %w", err)
	}
	return os.WriteFile(path, data, 0o644)
}

// ReadManifest loads a manifest written by WriteManifest.
func ReadManifest(path string) (Manifest, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Manifest{}, fmt.Errorf("reading manifest: %w", err)
	}
	var m Manifest
	if err := yaml.Unmarshal(data, &m); err != nil {
		return Manifest{}, fmt.Errorf("parsing manifest: %w", err)
	}
	return m, nil
}
