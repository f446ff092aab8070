// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package sources

import (
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/samber/lo"
	"go.uber.org/zap"

	"github.com/pdiddy/deep-research/pkg/types"
)

// Descriptor is the static catalog entry for one source.
type Descriptor struct {
	// ID is the stable identifier used on the command line and in reports.
	ID string

	// Label is the human-readable section heading used in reports.
	Label string

	// Strengths describes what the source is good for. It is the context
	// the selector gives the model.
	Strengths string

	Source Source
}

// Catalog is the ordered, immutable registry of available sources.
type Catalog struct {
	descs []Descriptor
	byID  map[string]int
}

// NewCatalog builds a catalog. IDs must be unique and match Source.Name().
func NewCatalog(descs ...Descriptor) (*Catalog, error) {
	c := &Catalog{byID: make(map[string]int, len(descs))}
	for _, d := range descs {
		if d.ID == "" || d.Source == nil {
			return nil, fmt.Errorf("catalog entry %q is incomplete", d.ID)
		}
		if d.Source.Name() != d.ID {
			return nil, fmt.Errorf("catalog entry %q wraps source %q", d.ID, d.Source.Name())
		}
		if _, dup := c.byID[d.ID]; dup {
			return nil, fmt.Errorf("duplicate catalog entry %q", d.ID)
		}
		c.byID[d.ID] = len(c.descs)
		c.descs = append(c.descs, d)
	}
	return c, nil
}

// IDs returns every source identifier in catalog order.
func (c *Catalog) IDs() []string {
	return lo.Map(c.descs, func(d Descriptor, _ int) string { return d.ID })
}

// Descriptors returns a copy of the catalog entries in order.
func (c *Catalog) Descriptors() []Descriptor {
	return append([]Descriptor(nil), c.descs...)
}

// Get returns the descriptor for id.
func (c *Catalog) Get(id string) (Descriptor, bool) {
	i, ok := c.byID[id]
	if !ok {
		return Descriptor{}, false
	}
	return c.descs[i], true
}

// Len returns the number of sources.
func (c *Catalog) Len() int { return len(c.descs) }

// Label returns the report label for id. Unknown identifiers are title-cased.
func (c *Catalog) Label(id string) string {
	if d, ok := c.Get(id); ok && d.Label != "" {
		return d.Label
	}
	return titleCase(id)
}

// Unknown returns the identifiers in ids that name no catalog source.
func (c *Catalog) Unknown(ids []string) []string {
	return lo.Filter(ids, func(id string, _ int) bool {
		_, ok := c.byID[id]
		return !ok
	})
}

// Restrict returns a catalog narrowed to the enabled identifiers, keeping
// catalog order. An empty list keeps everything. Unknown identifiers are
// returned so the caller can warn about them.
func (c *Catalog) Restrict(enabled []string) (*Catalog, []string) {
	enabled = types.NormalizeIDs(enabled)
	if len(enabled) == 0 {
		return c, nil
	}
	unknown := c.Unknown(enabled)
	kept := lo.Filter(c.descs, func(d Descriptor, _ int) bool {
		return lo.Contains(enabled, d.ID)
	})
	out, _ := NewCatalog(kept...)
	return out, unknown
}

func titleCase(id string) string {
	parts := strings.Split(id, "_")
	for i, p := range parts {
		if p != "" {
			parts[i] = strings.ToUpper(p[:1]) + p[1:]
		}
	}
	return strings.Join(parts, "_")
}

// Deps carries the shared dependencies handed to every built-in source.
type Deps struct {
	Client    *http.Client
	UserAgent string
	Keys      types.SourceKeys
	Logger    *zap.Logger

	// Now is the clock used for relative time windows. Defaults to time.Now.
	Now func() time.Time
}

func (d Deps) withDefaults() Deps {
	if d.Client == nil {
		d.Client = &http.Client{Timeout: 30 * time.Second}
	}
	if d.UserAgent == "" {
		d.UserAgent = "deep-research/dev"
	}
	if d.Logger == nil {
		d.Logger = zap.NewNop()
	}
	if d.Now == nil {
		d.Now = time.Now
	}
	return d
}

// Default builds the catalog of all built-in sources.
func Default(d Deps) *Catalog {
	d = d.withDefaults()
	c, err := NewCatalog(
		Descriptor{ID: "arxiv", Label: "arXiv Papers",
			Strengths: "Academic research papers in physics, computer science, mathematics, biology, and other sciences. Best for: fundamental research, algorithms, theoretical work, scientific discoveries.",
			Source:    NewArxiv(d)},
		Descriptor{ID: "semantic_scholar", Label: "Semantic Scholar Papers",
			Strengths: "Academic papers with citation data across all fields. Best for: research papers, academic citations, scholarly work, scientific studies.",
			Source:    NewSemanticScholar(d)},
		Descriptor{ID: "news", Label: "News Articles",
			Strengths: "Recent news articles, press releases, and industry announcements. Best for: current events, company news, product launches, industry trends, breaking developments.",
			Source:    NewNews(d)},
		Descriptor{ID: "web", Label: "Web Articles",
			Strengths: "General web content including blogs, documentation, tutorials, and technical articles. Best for: practical guides, tools documentation, best practices, how-tos, engineering blogs.",
			Source:    NewWeb(d)},
		Descriptor{ID: "hackernews", Label: "Hacker News Discussions",
			Strengths: "Tech community discussions and curated links. Best for: trending tech topics, startup news, developer perspectives, community opinions, popular tools.",
			Source:    NewHackerNews(d)},
		Descriptor{ID: "dblp", Label: "DBLP Computer Science Publications",
			Strengths: "Comprehensive computer science bibliography covering journals, conferences, and workshops. Best for: computer science publications, conference papers, CS venues, author bibliographies.",
			Source:    NewDBLP(d)},
		Descriptor{ID: "openalex", Label: "OpenAlex Scholarly Works",
			Strengths: "Fully-open index of 474M+ scholarly works across all disciplines. Best for: broad academic search, interdisciplinary research, citation analysis, open access papers.",
			Source:    NewOpenAlex(d)},
		Descriptor{ID: "crossref", Label: "Crossref Publications",
			Strengths: "Metadata for 140M+ scholarly works from publishers worldwide including journals, books, and dissertations. Best for: published research across all fields, DOI lookup, publisher metadata, citation counts.",
			Source:    NewCrossref(d)},
		Descriptor{ID: "core", Label: "CORE Open Access Papers",
			Strengths: "Aggregator of 300M+ open access research papers from repositories and journals. Best for: open access papers, institutional repository content, full-text access, interdisciplinary research.",
			Source:    NewCore(d)},
		Descriptor{ID: "europepmc", Label: "Europe PMC Life Sciences",
			Strengths: "40M+ life sciences publications including PubMed and PubMed Central. Best for: biomedical research, medicine, biology, pharmacology, clinical studies, life sciences.",
			Source:    NewEuropePMC(d)},
		Descriptor{ID: "reddit", Label: "Reddit Discussions",
			Strengths: "Community discussions, user experiences, and opinions across all topics. Best for: real-world experiences, tool comparisons, industry practices, community sentiment, product feedback, troubleshooting, market insights.",
			Source:    NewReddit(d)},
		Descriptor{ID: "github", Label: "GitHub Repositories",
			Strengths: "Open source repositories with stars, forks, and project metadata. Best for: open source tools, software projects, library adoption, code examples, technology landscape, developer tools, market research on OSS adoption.",
			Source:    NewGitHub(d)},
		Descriptor{ID: "google_trends", Label: "Google Trends",
			Strengths: "Google search interest data over time, related queries, and rising topics. Best for: market demand analysis, trend direction, emerging topics, seasonal patterns, competitive interest comparison, market research.",
			Source:    NewTrends(d)},
	)
	if err != nil {
		// The built-in table is static; a failure here is a programming error.
		panic(err)
	}
	return c
}
