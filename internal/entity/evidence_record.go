package entity

import (
	"strings"
	"time"
	"unicode/utf8"
)

// MaxSnippetLength caps EvidenceRecord.Snippet, counted in runes.
const MaxSnippetLength = 500

// Source identifies which upstream service produced a record.
type Source string

const (
	SourceWebSearch       Source = "web_search"
	SourceTradeStats      Source = "trade_stats"
	SourceMacroIndicators Source = "macro_indicators"
	SourceForecast        Source = "forecast"
	SourceNewsEvents      Source = "news_events"
	SourcePageScrape      Source = "page_scrape"
)

// Fixed trust priors per source type.
const (
	ScoreWebSearch       = 0.6
	ScoreTradeStats      = 0.9
	ScoreMacroIndicators = 0.85
	ScoreForecast        = 0.75
	ScoreNewsEvents      = 0.7
	ScorePageScrape      = 0.65

	// DefaultScore replaces a missing score when results are merged.
	DefaultScore = 0.5
)

// EvidenceRecord is one normalized unit of retrieved supporting content.
// Records are values; nothing mutates them after construction.
type EvidenceRecord struct {
	Source      Source    `json:"source"`
	URL         *string   `json:"url"`
	Title       *string   `json:"title"`
	Snippet     string    `json:"snippet"`
	Score       float64   `json:"score"`
	RetrievedAt time.Time `json:"retrieved_at"`
}

// NewEvidenceRecord builds a record, dropping blank url/title and truncating the snippet.
func NewEvidenceRecord(source Source, url, title, snippet string, score float64, retrievedAt time.Time) EvidenceRecord {
	return EvidenceRecord{
		Source:      source,
		URL:         optional(url),
		Title:       optional(title),
		Snippet:     TruncateSnippet(snippet),
		Score:       clampScore(score),
		RetrievedAt: retrievedAt,
	}
}

// IsEmpty reports whether the record carries nothing a caller could use.
func (r EvidenceRecord) IsEmpty() bool {
	return r.URL == nil && r.Title == nil && strings.TrimSpace(r.Snippet) == ""
}

// DedupKey identifies a record for merge purposes. Only records equal on
// source, url, title and snippet share a key; rows that differ in any of them
// are distinct data points.
func (r EvidenceRecord) DedupKey() string {
	var b strings.Builder
	b.WriteString(string(r.Source))
	b.WriteByte('\x1f')
	if r.URL != nil {
		b.WriteString(*r.URL)
	}
	b.WriteByte('\x1f')
	if r.Title != nil {
		b.WriteString(*r.Title)
	}
	b.WriteByte('\x1f')
	b.WriteString(r.Snippet)
	return b.String()
}

// TruncateSnippet collapses whitespace and cuts s to MaxSnippetLength runes.
func TruncateSnippet(s string) string {
	s = strings.Join(strings.Fields(s), " ")
	if utf8.RuneCountInString(s) <= MaxSnippetLength {
		return s
	}
	runes := []rune(s)
	return string(runes[:MaxSnippetLength])
}

func optional(s string) *string {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil
	}
	return &s
}

func clampScore(score float64) float64 {
	switch {
	case score < 0:
		return 0
	case score > 1:
		return 1
	}
	return score
}
