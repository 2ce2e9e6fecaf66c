package source

import (
	"context"
	"net/url"
	"strings"
	"time"

	"github.com/user/evidence-service/internal/entity"
)

// NewsEvents queries a GDELT style article list: {"articles":[{url,title,domain,seendate}]}.
type NewsEvents struct {
	base
	endpoint string
}

// NewNewsEvents creates the news/event feed adapter.
func NewNewsEvents(endpoint string, client *Client, executor Executor) *NewsEvents {
	return &NewsEvents{base: newBase(entity.SourceNewsEvents, client, executor), endpoint: endpoint}
}

func (a *NewsEvents) Applicable(hints []string) bool { return true }

func (a *NewsEvents) Fetch(ctx context.Context, query string, hints []string) []entity.EvidenceRecord {
	params := url.Values{
		"query":      {query},
		"mode":       {"artlist"},
		"format":     {"json"},
		"maxrecords": {"10"},
		"sort":       {"datedesc"},
	}
	return a.fetchJSON(ctx, a.endpoint+"?"+params.Encode(), nil, parseNewsEvents)
}

func parseNewsEvents(raw any, now time.Time) []entity.EvidenceRecord {
	var records []entity.EvidenceRecord
	for _, obj := range objects(walkPath(raw, "articles")) {
		title := field(obj, "title")
		parts := []string{title}
		if d := field(obj, "domain"); d != "" {
			parts = append(parts, d)
		}
		if s := field(obj, "seendate"); s != "" {
			parts = append(parts, s)
		}
		records = append(records, entity.NewEvidenceRecord(
			entity.SourceNewsEvents,
			field(obj, "url"),
			title,
			strings.Join(parts, " | "),
			entity.ScoreNewsEvents,
			now,
		))
	}
	return records
}
