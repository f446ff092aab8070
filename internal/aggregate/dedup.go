// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package aggregate

import (
	"net/url"
	"strings"
	"unicode"

	"github.com/pdiddy/deep-research/pkg/types"
)

// Deduplicate merges records that describe the same item and returns the
// survivors with the number of records removed. Two records are the same
// item when they share an identity key (DOI, canonical URL, or the
// normalized title within one source); sharing is transitive. Each group
// survives at the position of its first record, so the relative order of
// survivors is unchanged and a second pass removes nothing.
func Deduplicate(recs []types.ResultRecord) ([]types.ResultRecord, int) {
	parent := make([]int, len(recs))
	for i := range parent {
		parent[i] = i
	}
	var find func(int) int
	find = func(i int) int {
		if parent[i] != i {
			parent[i] = find(parent[i])
		}
		return parent[i]
	}

	// The root of each group is its smallest index.
	owner := make(map[string]int)
	for i, r := range recs {
		for _, key := range identityKeys(r) {
			j, ok := owner[key]
			if !ok {
				owner[key] = i
				continue
			}
			a, b := find(i), find(j)
			switch {
			case a < b:
				parent[b] = a
			case b < a:
				parent[a] = b
			}
		}
	}

	var out []types.ResultRecord
	pos := make(map[int]int)
	for i, r := range recs {
		root := find(i)
		if idx, ok := pos[root]; ok {
			out[idx] = merge(out[idx], r)
			continue
		}
		pos[root] = len(out)
		out = append(out, clone(r))
	}
	return out, len(recs) - len(out)
}

// identityKeys returns every key under which r can match another record.
func identityKeys(r types.ResultRecord) []string {
	var keys []string
	if doi := normalizeDOI(r.Meta(types.MetaDOI)); doi != "" {
		keys = append(keys, "doi:"+doi)
	}
	if doi, ok := doiFromURL(r.URL); ok {
		keys = append(keys, "doi:"+doi)
	} else if u := CanonicalURL(r.URL); u != "" {
		keys = append(keys, "url:"+u)
	}
	if t := normalizeTitle(r.Title); t != "" {
		keys = append(keys, "title:"+r.Source+":"+t)
	}
	return keys
}

// CanonicalURL normalizes a URL for comparison: https scheme, lowercase
// host without "www.", no fragment, no trailing slash. Non-HTTP URLs and
// unparseable strings yield "".
func CanonicalURL(raw string) string {
	u, err := url.Parse(strings.TrimSpace(raw))
	if err != nil || u.Host == "" {
		return ""
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return ""
	}
	host := strings.TrimPrefix(strings.ToLower(u.Host), "www.")
	path := strings.TrimRight(u.EscapedPath(), "/")
	s := "https://" + host + path
	if u.RawQuery != "" {
		s += "?" + u.RawQuery
	}
	return s
}

func doiFromURL(raw string) (string, bool) {
	u, err := url.Parse(strings.TrimSpace(raw))
	if err != nil {
		return "", false
	}
	switch strings.TrimPrefix(strings.ToLower(u.Host), "www.") {
	case "doi.org", "dx.doi.org":
		doi := normalizeDOI(strings.TrimPrefix(u.Path, "/"))
		return doi, doi != ""
	}
	return "", false
}

func normalizeDOI(doi string) string {
	doi = strings.ToLower(strings.TrimSpace(doi))
	for _, p := range []string{"https://doi.org/", "http://doi.org/", "https://dx.doi.org/", "http://dx.doi.org/", "doi:"} {
		doi = strings.TrimPrefix(doi, p)
	}
	return strings.TrimRight(doi, "/")
}

// normalizeTitle returns a lowercased, punctuation-stripped version of the title.
func normalizeTitle(title string) string {
	var b strings.Builder
	for _, r := range strings.ToLower(title) {
		if unicode.IsLetter(r) || unicode.IsDigit(r) || unicode.IsSpace(r) {
			b.WriteRune(r)
		}
	}
	return strings.Join(strings.Fields(b.String()), " ")
}

// merge fills the empty fields of dst from src, keeps the longer abstract,
// unions metadata (dst wins), and records src's source under also_found_in.
func merge(dst, src types.ResultRecord) types.ResultRecord {
	if dst.Title == "" {
		dst.Title = src.Title
	}
	if len(src.Abstract) > len(dst.Abstract) {
		dst.Abstract = src.Abstract
	}
	if dst.Date.IsZero() {
		dst.Date = src.Date
	}
	if len(dst.Authors) == 0 && len(src.Authors) > 0 {
		dst.Authors = append([]string(nil), src.Authors...)
	}
	if dst.URL == "" {
		dst.URL = src.URL
	}

	for k, v := range src.Metadata {
		if k == types.MetaAlsoFoundIn {
			continue
		}
		if dst.Meta(k) == "" {
			dst = dst.WithMeta(k, v)
		}
	}

	also := splitList(dst.Meta(types.MetaAlsoFoundIn))
	for _, s := range append([]string{src.Source}, splitList(src.Meta(types.MetaAlsoFoundIn))...) {
		if s != "" && s != dst.Source && !contains(also, s) {
			also = append(also, s)
		}
	}
	if len(also) > 0 {
		dst = dst.WithMeta(types.MetaAlsoFoundIn, strings.Join(also, ", "))
	}
	return dst
}

func clone(r types.ResultRecord) types.ResultRecord {
	r.Authors = append([]string(nil), r.Authors...)
	if r.Metadata != nil {
		m := make(map[string]string, len(r.Metadata))
		for k, v := range r.Metadata {
			m[k] = v
		}
		r.Metadata = m
	}
	return r
}

func splitList(s string) []string {
	var out []string
	for _, p := range strings.Split(s, ",") {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

func contains(xs []string, x string) bool {
	for _, v := range xs {
		if v == x {
			return true
		}
	}
	return false
}
