package source

import (
	"context"
	"net/url"
	"time"

	"github.com/user/evidence-service/internal/entity"
	"github.com/user/evidence-service/pkg/utils"
)

// Scraper drains a list of page URLs into records.
type Scraper interface {
	Run(ctx context.Context, urls []string) []entity.EvidenceRecord
}

// PageScrape asks a search endpoint for candidate pages ({"results":[{"url"}]})
// and hands the URLs to the scrape worker pool.
type PageScrape struct {
	base
	endpoint string
	scraper  Scraper
	maxURLs  int
}

// NewPageScrape creates the page-scrape adapter. At most maxURLs pages are scraped per query.
func NewPageScrape(endpoint string, maxURLs int, scraper Scraper, client *Client, executor Executor) *PageScrape {
	return &PageScrape{
		base:     newBase(entity.SourcePageScrape, client, executor),
		endpoint: endpoint,
		scraper:  scraper,
		maxURLs:  maxURLs,
	}
}

func (a *PageScrape) Applicable(hints []string) bool { return true }

func (a *PageScrape) Fetch(ctx context.Context, query string, hints []string) []entity.EvidenceRecord {
	params := url.Values{"q": {query}, "format": {"json"}}
	candidates := a.fetchJSON(ctx, a.endpoint+"?"+params.Encode(), nil, searchURLParser(a.endpoint))

	seen := make(map[string]bool)
	var urls []string
	for _, c := range candidates {
		if c.URL == nil || seen[*c.URL] {
			continue
		}
		seen[*c.URL] = true
		urls = append(urls, *c.URL)
		if len(urls) == a.maxURLs {
			break
		}
	}
	if len(urls) == 0 {
		return nil
	}
	return a.scraper.Run(ctx, urls)
}

// searchURLParser yields url-only placeholder records for the scrape queue.
// Relative result links resolve against the search endpoint.
func searchURLParser(endpoint string) parseFunc {
	base, _ := url.Parse(endpoint)
	return func(raw any, now time.Time) []entity.EvidenceRecord {
		var records []entity.EvidenceRecord
		for _, obj := range objects(walkPath(raw, "results")) {
			u := field(obj, "url")
			if u == "" {
				continue
			}
			if base != nil {
				abs, err := utils.ToAbsoluteURL(base, u)
				if err != nil {
					continue
				}
				u = abs
			}
			if parsed, err := url.Parse(u); err != nil || (parsed.Scheme != "http" && parsed.Scheme != "https") {
				continue
			}
			records = append(records, entity.NewEvidenceRecord(entity.SourcePageScrape, u, field(obj, "title"), "", entity.ScorePageScrape, now))
		}
		return records
	}
}
