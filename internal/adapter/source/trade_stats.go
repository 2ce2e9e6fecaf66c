package source

import (
	"context"
	"fmt"
	"net/url"
	"time"

	"github.com/user/evidence-service/internal/entity"
)

// TradeStats queries a bilateral trade API shaped like {"data":[{...}]}.
// It needs a reporter and a partner, so it only runs with two hints.
type TradeStats struct {
	base
	endpoint string
	apiKey   string
}

// NewTradeStats creates the trade-statistics adapter.
func NewTradeStats(endpoint, apiKey string, client *Client, executor Executor) *TradeStats {
	return &TradeStats{base: newBase(entity.SourceTradeStats, client, executor), endpoint: endpoint, apiKey: apiKey}
}

func (a *TradeStats) Applicable(hints []string) bool { return len(hints) >= 2 }

func (a *TradeStats) Fetch(ctx context.Context, query string, hints []string) []entity.EvidenceRecord {
	if !a.Applicable(hints) {
		return nil
	}
	params := url.Values{
		"reporterCode": {hints[0]},
		"partnerCode":  {hints[1]},
		"flowCode":     {"X,M"},
	}
	var headers map[string]string
	if a.apiKey != "" {
		headers = map[string]string{"Ocp-Apim-Subscription-Key": a.apiKey}
	}
	return a.fetchJSON(ctx, a.endpoint+"?"+params.Encode(), headers, parseTradeStats)
}

func parseTradeStats(raw any, now time.Time) []entity.EvidenceRecord {
	var records []entity.EvidenceRecord
	for _, obj := range objects(walkPath(raw, "data")) {
		reporter := field(obj, "reporterDesc", "reporterISO", "reporterCode")
		partner := field(obj, "partnerDesc", "partnerISO", "partnerCode")
		value, ok := asFloat(obj["primaryValue"])
		if reporter == "" || partner == "" || !ok {
			continue
		}
		flow := field(obj, "flowDesc", "flowCode")
		commodity := field(obj, "cmdDesc", "cmdCode")
		period := field(obj, "period", "refYear")

		title := fmt.Sprintf("%s trade with %s", reporter, partner)
		snippet := fmt.Sprintf("%s %s to %s: %.0f USD", reporter, flow, partner, value)
		if commodity != "" {
			snippet += " (" + commodity + ")"
		}
		if period != "" {
			snippet += ", period " + period
		}
		records = append(records, entity.NewEvidenceRecord(entity.SourceTradeStats, "", title, snippet, entity.ScoreTradeStats, now))
	}
	return records
}
