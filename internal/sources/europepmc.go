// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package sources

import (
	"context"
	"fmt"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/pdiddy/deep-research/pkg/types"
)

// europePMCAPIBase is the Europe PMC REST search endpoint.
var europePMCAPIBase = "https://www.ebi.ac.uk/europepmc/webservices/rest/search"

// EuropePMC queries Europe PMC life sciences literature.
type EuropePMC struct {
	get *getter
}

// NewEuropePMC returns the Europe PMC source.
func NewEuropePMC(d Deps) *EuropePMC {
	return &EuropePMC{get: newGetter(d.withDefaults(), "Europe PMC", 100*time.Millisecond, 5)}
}

// Name returns the source identifier.
func (e *EuropePMC) Name() string { return "europepmc" }

type europePMCResponse struct {
	ResultList struct {
		Result []europePMCItem `json:"result"`
	} `json:"resultList"`
}

type europePMCItem struct {
	ID                   string `json:"id"`
	Source               string `json:"source"`
	PMID                 string `json:"pmid"`
	DOI                  string `json:"doi"`
	Title                string `json:"title"`
	AuthorString         string `json:"authorString"`
	PubYear              string `json:"pubYear"`
	FirstPublicationDate string `json:"firstPublicationDate"`
	AbstractText         string `json:"abstractText"`
	IsOpenAccess         string `json:"isOpenAccess"`
	CitedByCount         int    `json:"citedByCount"`
	JournalInfo          struct {
		Journal struct {
			Title string `json:"title"`
		} `json:"journal"`
	} `json:"journalInfo"`
	PubTypeList struct {
		PubType []string `json:"pubType"`
	} `json:"pubTypeList"`
	FullTextURLList struct {
		FullTextURL []struct {
			URL string `json:"url"`
		} `json:"fullTextUrl"`
	} `json:"fullTextUrlList"`
}

// Search returns publications matching the query within the request's
// publication year range.
func (e *EuropePMC) Search(ctx context.Context, req Request) ([]types.ResultRecord, error) {
	q := req.Query
	if !req.DateFrom.IsZero() || !req.DateTo.IsZero() {
		from, to := 1900, 3000
		if !req.DateFrom.IsZero() {
			from = req.DateFrom.Year()
		}
		if !req.DateTo.IsZero() {
			to = req.DateTo.Year()
		}
		q += fmt.Sprintf(" FIRST_PDATE:[%d TO %d]", from, to)
	}

	params := url.Values{}
	params.Set("query", q)
	params.Set("format", "json")
	params.Set("pageSize", strconv.Itoa(min(req.MaxResults, 1000)))
	params.Set("resultType", "core")

	var resp europePMCResponse
	if err := e.get.getJSON(ctx, europePMCAPIBase+"?"+params.Encode(), nil, &resp); err != nil {
		return nil, err
	}

	var out []types.ResultRecord
	for _, it := range resp.ResultList.Result {
		journal := it.JournalInfo.Journal.Title
		access := "Closed Access"
		if it.IsOpenAccess == "Y" {
			access = "Open Access"
		}

		abstract := cleanText(it.AbstractText)
		if abstract == "" {
			pubTypes := it.PubTypeList.PubType
			if len(pubTypes) > 3 {
				pubTypes = pubTypes[:3]
			}
			abstract = joinParts(
				prefixed("Journal: ", journal),
				prefixed("Type: ", strings.Join(pubTypes, ", ")),
				"Access: "+access,
			)
		}

		date := parseDate(it.FirstPublicationDate)
		if date.IsZero() {
			year, _ := strconv.Atoi(it.PubYear)
			date = yearDate(year)
		}

		r := types.ResultRecord{
			Title:    it.Title,
			Abstract: abstract,
			Date:     date,
			URL:      europePMCLink(it),
		}
		if it.AuthorString != "" {
			r.Authors = capAuthors(strings.Split(strings.TrimSuffix(it.AuthorString, "."), ","), maxAuthors)
		}
		r = r.WithMeta(types.MetaDOI, bareDOI(it.DOI)).
			WithMeta(types.MetaVenue, journal).
			WithMeta(types.MetaCitations, countString(it.CitedByCount))
		if it.IsOpenAccess == "Y" {
			r = r.WithMeta(types.MetaAccess, "open")
		}
		out = append(out, r)
	}
	return out, nil
}

// europePMCLink prefers the DOI, then the first full-text link, then the
// Europe PMC article page.
func europePMCLink(it europePMCItem) string {
	if it.DOI != "" {
		return doiURL(it.DOI)
	}
	for _, ft := range it.FullTextURLList.FullTextURL {
		if ft.URL != "" {
			return ft.URL
		}
	}
	if it.PMID != "" {
		return "https://europepmc.org/article/MED/" + it.PMID
	}
	if it.ID != "" {
		src := firstNonEmpty(it.Source, "MED")
		return fmt.Sprintf("https://europepmc.org/article/%s/%s", src, it.ID)
	}
	return ""
}
