package source

import (
	"context"
	"net/url"
	"time"

	"github.com/user/evidence-service/internal/entity"
)

// WebSearch queries a general search API shaped like
// {"web":{"results":[{"title","url","description"}]}}.
type WebSearch struct {
	base
	endpoint string
	apiKey   string
}

// NewWebSearch creates the general-search adapter.
func NewWebSearch(endpoint, apiKey string, client *Client, executor Executor) *WebSearch {
	return &WebSearch{base: newBase(entity.SourceWebSearch, client, executor), endpoint: endpoint, apiKey: apiKey}
}

// Applicable is always true; every retrieval includes general search.
func (a *WebSearch) Applicable(hints []string) bool { return true }

func (a *WebSearch) Fetch(ctx context.Context, query string, hints []string) []entity.EvidenceRecord {
	params := url.Values{"q": {query}, "count": {"10"}}
	var headers map[string]string
	if a.apiKey != "" {
		headers = map[string]string{"X-Subscription-Token": a.apiKey}
	}
	return a.fetchJSON(ctx, a.endpoint+"?"+params.Encode(), headers, parseWebSearch)
}

func parseWebSearch(raw any, now time.Time) []entity.EvidenceRecord {
	var records []entity.EvidenceRecord
	for _, obj := range objects(walkPath(raw, "web.results")) {
		records = append(records, entity.NewEvidenceRecord(
			entity.SourceWebSearch,
			field(obj, "url"),
			field(obj, "title"),
			field(obj, "description", "snippet"),
			entity.ScoreWebSearch,
			now,
		))
	}
	return records
}
