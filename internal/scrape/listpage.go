package scrape

import (
	"fmt"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

// ParseListPage extracts listing URLs from a search results page, in
// document order. Relative hrefs are resolved against baseURL. A page
// with no ticket cards yields an empty slice, not an error; the
// orchestrator treats that as the end of the result set.
func ParseListPage(html, baseURL string) ([]string, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return nil, fmt.Errorf("parse list page: %w", err)
	}

	var urls []string
	doc.Find("section.ticket-item").Each(func(_ int, card *goquery.Selection) {
		href, ok := card.Find("a.m-link-ticket").First().Attr("href")
		if !ok || href == "" {
			return
		}
		if !strings.HasPrefix(href, "http") {
			href = baseURL + href
		}
		urls = append(urls, href)
	})
	return urls, nil
}
