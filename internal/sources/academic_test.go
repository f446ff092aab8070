// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package sources

import (
	"context"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pdiddy/deep-research/pkg/types"
)

// --- arXiv ---

const arxivFeed = `<?xml version="1.0" encoding="UTF-8"?>
<feed xmlns="http://www.w3.org/2005/Atom" xmlns:arxiv="http://arxiv.org/schemas/atom">
  <title>ArXiv Query</title>
  <entry>
    <id>http://arxiv.org/abs/2401.00001v1</id>
    <published>2024-01-15T18:00:00Z</published>
    <title>Attention Is Still
      All You Need</title>
    <summary>  We revisit attention.
    </summary>
    <author><name>Alice Smith</name></author>
    <author><name>Bob Jones</name></author>
    <link href="http://arxiv.org/abs/2401.00001v1" rel="alternate" type="text/html"/>
    <arxiv:doi>10.1234/attn.2024</arxiv:doi>
  </entry>
  <entry>
    <id>http://arxiv.org/abs/2201.00002v1</id>
    <published>2022-01-10T00:00:00Z</published>
    <title>Old paper</title>
    <summary>Too old.</summary>
    <link href="http://arxiv.org/abs/2201.00002v1" rel="alternate" type="text/html"/>
  </entry>
</feed>`

func TestBuildArxivQuery(t *testing.T) {
	tests := []struct {
		name string
		req  Request
		want string
	}{
		{"terms only", Request{Query: "graph neural"}, "all:graph AND all:neural"},
		{"both dates", Request{Query: "x", DateFrom: day(2024, 1, 1), DateTo: day(2024, 3, 31)},
			"all:x AND submittedDate:[202401010000 TO 202403312359]"},
		{"from only", Request{Query: "x", DateFrom: day(2024, 1, 1)},
			"all:x AND submittedDate:[202401010000 TO 999912312359]"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, buildArxivQuery(tt.req))
		})
	}
}

func TestArxivSearch(t *testing.T) {
	var captured *http.Request
	ts := serveBody(t, "application/atom+xml", arxivFeed, &captured)
	useBase(t, &arxivAPIBase, ts.URL)

	recs, err := NewArxiv(testDeps(ts)).Search(context.Background(), Request{
		Query: "attention", MaxResults: 5, DateFrom: day(2023, 1, 1),
	})
	require.NoError(t, err)
	require.Len(t, recs, 1, "entry before date-from is dropped")

	r := recs[0]
	assert.Equal(t, "We revisit attention.", r.Abstract)
	assert.Equal(t, []string{"Alice Smith", "Bob Jones"}, r.Authors)
	assert.Equal(t, "http://arxiv.org/abs/2401.00001v1", r.URL)
	assert.Equal(t, "2024-01-15", r.DateString())
	assert.Equal(t, "10.1234/attn.2024", r.Meta(types.MetaDOI))

	q := captured.URL.Query()
	assert.Equal(t, "5", q.Get("max_results"))
	assert.Equal(t, "submittedDate", q.Get("sortBy"))
	assert.Equal(t, "deep-research-test", captured.Header.Get("User-Agent"))
}

// --- Semantic Scholar ---

func TestSemanticScholarSearch(t *testing.T) {
	body := `{"data":[
		{"title":"Paper A","abstract":"Abstract A","url":"https://s2.org/a","year":2024,
		 "publicationDate":"2024-02-01","venue":"NeurIPS","citationCount":12,
		 "externalIds":{"DOI":"10.1/a","CorpusId":123},"authors":[{"name":"Ann"}]},
		{"title":"Paper B","abstract":null,"url":"","year":2023,
		 "externalIds":{"ArXiv":"2301.00001"},"authors":[]}
	]}`
	var captured *http.Request
	ts := serveBody(t, "application/json", body, &captured)
	useBase(t, &semanticScholarAPIBase, ts.URL)

	d := testDeps(ts)
	d.Keys.SemanticScholarAPIKey = "s2-key"
	recs, err := NewSemanticScholar(d).Search(context.Background(), Request{
		Query: "transformers", MaxResults: 10, DateFrom: day(2023, 1, 1), DateTo: day(2024, 12, 31),
	})
	require.NoError(t, err)
	require.Len(t, recs, 2)

	assert.Equal(t, "Abstract A", recs[0].Abstract)
	assert.Equal(t, "2024-02-01", recs[0].DateString())
	assert.Equal(t, "12", recs[0].Meta(types.MetaCitations))
	assert.Equal(t, "10.1/a", recs[0].Meta(types.MetaDOI))

	assert.Equal(t, noAbstract, recs[1].Abstract)
	assert.Equal(t, "https://arxiv.org/abs/2301.00001", recs[1].URL)
	assert.Equal(t, "2023-01-01", recs[1].DateString(), "year fallback")

	q := captured.URL.Query()
	assert.Equal(t, "2023-2024", q.Get("year"))
	assert.Equal(t, semanticScholarFields, q.Get("fields"))
	assert.Equal(t, "s2-key", captured.Header.Get("x-api-key"))
}

func TestYearRange(t *testing.T) {
	assert.Equal(t, "", yearRange(Request{}, "-"))
	assert.Equal(t, "2020-", yearRange(Request{DateFrom: day(2020, 5, 1)}, "-"))
	assert.Equal(t, "-2021", yearRange(Request{DateTo: day(2021, 5, 1)}, "-"))
}

// --- OpenAlex ---

func TestInvertedAbstract(t *testing.T) {
	idx := map[string][]int{"world": {1}, "hello": {0, 2}}
	assert.Equal(t, "hello world hello", invertedAbstract(idx))
	assert.Equal(t, "", invertedAbstract(nil))
}

func TestOpenAlexSearch(t *testing.T) {
	body := `{"results":[{
		"id":"https://openalex.org/W1","doi":"https://doi.org/10.5/XYZ","title":"Open work",
		"publication_date":"2024-04-02","publication_year":2024,"cited_by_count":3,"type":"article",
		"abstract_inverted_index":{"Open":[0],"science":[1]},
		"authorships":[{"author":{"display_name":"Carol"}}],
		"primary_location":{"source":{"display_name":"PLOS ONE"}},
		"open_access":{"is_oa":true}
	}]}`
	var captured *http.Request
	ts := serveBody(t, "application/json", body, &captured)
	useBase(t, &openAlexAPIBase, ts.URL)

	d := testDeps(ts)
	d.Keys.OpenAlexMailto = "me@example.com"
	recs, err := NewOpenAlex(d).Search(context.Background(), Request{
		Query: "open science", MaxResults: 3, DateFrom: day(2024, 1, 1),
	})
	require.NoError(t, err)
	require.Len(t, recs, 1)

	r := recs[0]
	assert.Equal(t, "Open science", r.Abstract)
	assert.Equal(t, "https://doi.org/10.5/XYZ", r.URL)
	assert.Equal(t, "10.5/xyz", r.Meta(types.MetaDOI))
	assert.Equal(t, "PLOS ONE", r.Meta(types.MetaVenue))
	assert.Equal(t, "open", r.Meta(types.MetaAccess))

	q := captured.URL.Query()
	assert.Equal(t, "from_publication_date:2024-01-01", q.Get("filter"))
	assert.Equal(t, "me@example.com", q.Get("mailto"))
}

// --- Crossref ---

func TestCrossrefSearch(t *testing.T) {
	body := `{"message":{"items":[
		{"DOI":"10.9/abc","title":["Crossref <i>work</i>"],"abstract":"<jats:p>JATS abstract</jats:p>",
		 "URL":"http://dx.doi.org/10.9/abc","container-title":["Nature"],"type":"journal-article",
		 "is-referenced-by-count":40,"published":{"date-parts":[[2024,3]]},
		 "author":[{"given":"Dan","family":"Brown"},{"name":"Consortium"}]},
		{"DOI":"10.9/def","title":["No abstract"],"container-title":["Science"],
		 "type":"book-chapter","issued":{"date-parts":[[2023]]}},
		{"DOI":"10.9/ghi","title":[]}
	]}}`
	var captured *http.Request
	ts := serveBody(t, "application/json", body, &captured)
	useBase(t, &crossrefAPIBase, ts.URL)

	d := testDeps(ts)
	d.Keys.CrossrefMailto = "me@example.com"
	recs, err := NewCrossref(d).Search(context.Background(), Request{
		Query: "nature", MaxResults: 5, DateFrom: day(2023, 1, 1), DateTo: day(2024, 12, 31),
	})
	require.NoError(t, err)
	require.Len(t, recs, 2, "untitled item skipped")

	assert.Equal(t, "JATS abstract", recs[0].Abstract)
	assert.Equal(t, "2024-03-01", recs[0].DateString())
	assert.Equal(t, []string{"Dan Brown"}, recs[0].Authors)
	assert.Equal(t, "40", recs[0].Meta(types.MetaCitations))

	assert.Equal(t, "Published in: Science | Type: Book Chapter", recs[1].Abstract)
	assert.Equal(t, "https://doi.org/10.9/def", recs[1].URL)
	assert.Equal(t, "2023-01-01", recs[1].DateString())

	q := captured.URL.Query()
	assert.Equal(t, "has-abstract:true,from-pub-date:2023-01-01,until-pub-date:2024-12-31", q.Get("filter"))
	assert.Equal(t, "deep-research (mailto:me@example.com)", captured.Header.Get("User-Agent"))
	assert.Len(t, captured.Header.Values("User-Agent"), 1)
}

// --- DBLP ---

func TestDBLPSearch(t *testing.T) {
	body := `{"result":{"hits":{"hit":[
		{"info":{"title":"Distributed Consensus.","venue":"PODC","year":"2023","type":"Conference and Workshop Papers",
		 "access":"open","doi":"10.1145/1","authors":{"author":[{"text":"Eve"},{"text":"Frank"}]}}},
		{"info":{"title":"Solo Work.","venue":"arXiv","year":"2022","ee":"https://example.org/solo",
		 "authors":{"author":{"text":"Grace"}}}},
		{"info":{"title":"Ancient.","year":"1999"}}
	]}}}`
	ts := serveBody(t, "application/json", body, nil)
	useBase(t, &dblpAPIBase, ts.URL)

	recs, err := NewDBLP(testDeps(ts)).Search(context.Background(), Request{
		Query: "consensus", MaxResults: 5, DateFrom: day(2020, 1, 1),
	})
	require.NoError(t, err)
	require.Len(t, recs, 2)

	assert.Equal(t, "Distributed Consensus", recs[0].Title)
	assert.Equal(t, []string{"Eve", "Frank"}, recs[0].Authors)
	assert.Equal(t, "https://doi.org/10.1145/1", recs[0].URL)
	assert.Equal(t, "Published in: PODC | Type: Conference and Workshop Papers | Access: Open Access", recs[0].Abstract)

	assert.Equal(t, []string{"Grace"}, recs[1].Authors, "single author object")
	assert.Equal(t, "https://example.org/solo", recs[1].URL)
}

// --- CORE ---

func TestCoreSearch(t *testing.T) {
	body := `{"results":[
		{"id":98765,"title":"Open repo paper","abstract":"Body","doi":"","downloadUrl":"",
		 "yearPublished":2024,"documentType":"research","authors":[{"name":"Heidi"},"Ivan"],
		 "dataProviders":[{"name":"Repo U"}]}
	]}`
	var captured *http.Request
	ts := serveBody(t, "application/json", body, &captured)
	useBase(t, &coreAPIBase, ts.URL+"/")

	d := testDeps(ts)
	d.Keys.CoreAPIKey = "core-key"
	recs, err := NewCore(d).Search(context.Background(), Request{
		Query: "repositories", MaxResults: 5, DateFrom: day(2024, 1, 1), DateTo: day(2024, 6, 1),
	})
	require.NoError(t, err)
	require.Len(t, recs, 1)

	r := recs[0]
	assert.Equal(t, "https://core.ac.uk/works/98765", r.URL)
	assert.Equal(t, []string{"Heidi", "Ivan"}, r.Authors)
	assert.Equal(t, "2024-01-01", r.DateString())
	assert.Equal(t, "Repo U", r.Meta(types.MetaVenue))

	assert.Equal(t, "repositories AND yearPublished:2024", captured.URL.Query().Get("q"))
	assert.Equal(t, "Bearer core-key", captured.Header.Get("Authorization"))
}

// --- Europe PMC ---

func TestEuropePMCSearch(t *testing.T) {
	body := `{"resultList":{"result":[
		{"id":"111","source":"MED","pmid":"111","title":"Clinical study","authorString":"Kim J, Lee S.",
		 "firstPublicationDate":"2024-05-05","abstractText":"Results <b>here</b>","isOpenAccess":"Y",
		 "citedByCount":2,"journalInfo":{"journal":{"title":"Lancet"}}},
		{"id":"PPR1","source":"PPR","title":"Preprint","pubYear":"2023","isOpenAccess":"N",
		 "pubTypeList":{"pubType":["preprint"]}}
	]}}`
	var captured *http.Request
	ts := serveBody(t, "application/json", body, &captured)
	useBase(t, &europePMCAPIBase, ts.URL)

	recs, err := NewEuropePMC(testDeps(ts)).Search(context.Background(), Request{
		Query: "clinical", MaxResults: 5, DateFrom: day(2023, 1, 1),
	})
	require.NoError(t, err)
	require.Len(t, recs, 2)

	assert.Equal(t, "Results here", recs[0].Abstract)
	assert.Equal(t, []string{"Kim J", "Lee S"}, recs[0].Authors)
	assert.Equal(t, "https://europepmc.org/article/MED/111", recs[0].URL)
	assert.Equal(t, "open", recs[0].Meta(types.MetaAccess))

	assert.Equal(t, "Type: preprint | Access: Closed Access", recs[1].Abstract)
	assert.Equal(t, "https://europepmc.org/article/PPR/PPR1", recs[1].URL)

	q := captured.URL.Query()
	assert.Equal(t, "clinical FIRST_PDATE:[2023 TO 3000]", q.Get("query"))
	assert.Equal(t, "core", q.Get("resultType"))
}
