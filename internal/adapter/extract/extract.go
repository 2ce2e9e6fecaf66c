package extract

import (
	"io"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/user/evidence-service/internal/entity"
)

// Page parses an HTML document and extracts its title, description and readable body text.
func Page(url string, body io.Reader) (*entity.Page, error) {
	doc, err := goquery.NewDocumentFromReader(body)
	if err != nil {
		return nil, err
	}
	return FromDocument(url, doc.Selection), nil
}

// FromDocument extracts page data from an already parsed document root.
func FromDocument(url string, doc *goquery.Selection) *entity.Page {
	page := &entity.Page{
		URL:   url,
		Title: strings.TrimSpace(doc.Find("title").First().Text()),
	}

	meta := make(map[string]string)
	doc.Find("meta").Each(func(i int, s *goquery.Selection) {
		name, _ := s.Attr("name")
		property, _ := s.Attr("property")
		content, _ := s.Attr("content")
		key := name
		if property != "" {
			key = property
		}
		if key != "" && content != "" {
			meta[strings.ToLower(key)] = strings.TrimSpace(content)
		}
	})

	page.Description = meta["description"]
	if page.Description == "" {
		page.Description = meta["og:description"]
	}
	if page.Title == "" {
		page.Title = meta["og:title"]
	}
	if page.Title == "" {
		page.Title = strings.TrimSpace(doc.Find("h1").First().Text())
	}

	// Strip non-content nodes before reading body text.
	doc.Find("script, style, noscript, nav, footer").Remove()
	page.Content = strings.Join(strings.Fields(doc.Find("body").Text()), " ")

	return page
}
