package entity

import "time"

// Audience tunes cache freshness for who is asking.
type Audience string

const (
	AudienceGeneral  Audience = ""
	AudienceStudent  Audience = "student"
	AudiencePersonal Audience = "personal"
	AudienceMarket   Audience = "market"
)

// RetrievalRequest is the inbound call accepted by the orchestrator.
type RetrievalRequest struct {
	Query           string
	Entities        []string
	Timeout         time.Duration // zero means the configured default
	ForceFresh      bool
	Audience        Audience
	RequiredSources []Source
}

// RetrievalResult is always well formed; an empty Retrievals slice means no evidence.
type RetrievalResult struct {
	Retrievals     []EvidenceRecord `json:"retrievals"`
	CacheHit       bool             `json:"cache_hit"`
	RetrievalCount int              `json:"retrieval_count"`
	MissingSources []Source         `json:"missing_sources,omitempty"`
	Degraded       bool             `json:"degraded,omitempty"`
}

// EmptyResult is returned when nothing could be gathered in time.
func EmptyResult() RetrievalResult {
	return RetrievalResult{Retrievals: []EvidenceRecord{}}
}

// Page is a fetched and extracted web page, the raw input of a scrape record.
type Page struct {
	URL            string
	Title          string
	Description    string
	Content        string
	HTTPStatusCode int
	ResponseTimeMS int
	FetchedAt      time.Time
}

// Snippet picks the text that best summarizes the page.
func (p *Page) Snippet() string {
	if p.Description != "" {
		return p.Description
	}
	return p.Content
}
