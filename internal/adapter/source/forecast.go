package source

import (
	"context"
	"fmt"
	"net/url"
	"time"

	"github.com/user/evidence-service/internal/entity"
)

// Forecast queries a forecast API returning {"forecasts":[{title,url,summary,probability}]}
// or a bare array of the same objects.
type Forecast struct {
	base
	endpoint string
}

// NewForecast creates the forecast-data adapter.
func NewForecast(endpoint string, client *Client, executor Executor) *Forecast {
	return &Forecast{base: newBase(entity.SourceForecast, client, executor), endpoint: endpoint}
}

func (a *Forecast) Applicable(hints []string) bool { return true }

func (a *Forecast) Fetch(ctx context.Context, query string, hints []string) []entity.EvidenceRecord {
	params := url.Values{"q": {query}, "limit": {"10"}}
	return a.fetchJSON(ctx, a.endpoint+"?"+params.Encode(), nil, parseForecast)
}

func parseForecast(raw any, now time.Time) []entity.EvidenceRecord {
	items := walkPath(raw, "forecasts")
	if items == nil {
		items = walkPath(raw, "")
	}
	var records []entity.EvidenceRecord
	for _, obj := range objects(items) {
		snippet := field(obj, "summary", "description")
		if p, ok := asFloat(obj["probability"]); ok {
			prob := fmt.Sprintf("probability %.0f%%", p*100)
			if snippet == "" {
				snippet = prob
			} else {
				snippet += " (" + prob + ")"
			}
		}
		records = append(records, entity.NewEvidenceRecord(
			entity.SourceForecast,
			field(obj, "url"),
			field(obj, "title", "question"),
			snippet,
			entity.ScoreForecast,
			now,
		))
	}
	return records
}
