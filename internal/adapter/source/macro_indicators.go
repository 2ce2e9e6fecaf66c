package source

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/user/evidence-service/internal/entity"
)

// macroIndicators are fetched for every hinted country.
var macroIndicators = []string{"NY.GDP.MKTP.KD.ZG", "FP.CPI.TOTL.ZG"}

// MacroIndicators queries a World Bank style API whose body is
// [meta, [{"indicator":{...},"country":{...},"date","value"}]].
type MacroIndicators struct {
	base
	endpoint string
}

// NewMacroIndicators creates the macro-indicator adapter.
func NewMacroIndicators(endpoint string, client *Client, executor Executor) *MacroIndicators {
	return &MacroIndicators{base: newBase(entity.SourceMacroIndicators, client, executor), endpoint: strings.TrimRight(endpoint, "/")}
}

func (a *MacroIndicators) Applicable(hints []string) bool { return len(hints) >= 1 }

func (a *MacroIndicators) Fetch(ctx context.Context, query string, hints []string) []entity.EvidenceRecord {
	if !a.Applicable(hints) {
		return nil
	}
	countries := strings.Join(hints, ";")
	var records []entity.EvidenceRecord
	for _, indicator := range macroIndicators {
		u := fmt.Sprintf("%s/country/%s/indicator/%s?format=json&mrv=3&per_page=20", a.endpoint, countries, indicator)
		records = append(records, a.fetchJSON(ctx, u, nil, parseMacroIndicators)...)
		if ctx.Err() != nil {
			break
		}
	}
	return records
}

func parseMacroIndicators(raw any, now time.Time) []entity.EvidenceRecord {
	page, ok := raw.([]any)
	if !ok || len(page) < 2 {
		return nil
	}
	rows, _ := page[1].([]any)

	var records []entity.EvidenceRecord
	for _, obj := range objects(rows) {
		value, ok := asFloat(obj["value"])
		if !ok {
			continue
		}
		name := nested(obj, "indicator", "value")
		id := nested(obj, "indicator", "id")
		country := nested(obj, "country", "value")
		iso := field(obj, "countryiso3code")
		date := field(obj, "date")

		var link string
		if id != "" {
			link = "https://data.worldbank.org/indicator/" + id
			if iso != "" {
				link += "?locations=" + iso
			}
		}
		title := strings.TrimSpace(name + " - " + country)
		snippet := fmt.Sprintf("%s for %s in %s: %.2f", name, country, date, value)
		records = append(records, entity.NewEvidenceRecord(entity.SourceMacroIndicators, link, title, snippet, entity.ScoreMacroIndicators, now))
	}
	return records
}
