package scrape

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

// Plausible USD bounds for used-car prices found in embedded JSON.
const (
	minPlausiblePriceUSD = 1000
	maxPlausiblePriceUSD = 500000
)

var (
	titleFromDocRe = regexp.MustCompile(`Продам\s+(.+?)\s+\(`)
	priceJSONRe    = regexp.MustCompile(`"price[A-Za-z]*":\s*(\d+)`)
	priceTextRe    = regexp.MustCompile(`(\d[\d\s]*)\s*\$`)
	odometerRe     = regexp.MustCompile(`(\d+)\s*тис\.?\s*км`)
	sellerNameRe   = regexp.MustCompile(`"name"\s*:\s*"([^"]+)"`)
	vinRe          = regexp.MustCompile(`(?i)"vin"\s*:\s*"([A-HJ-NPR-Z0-9]{17})"`)
	plateJSONRe    = regexp.MustCompile(`"plateNumber"\s*:\s*"([^"]+)"`)
	plateParenRe   = regexp.MustCompile(`\(([A-Z]{2}\d{4}[A-Z]{2})\)`)
	whitespaceRe   = regexp.MustCompile(`\s`)
)

// ParseDetailPage extracts a Record from a listing page. Every field is
// extracted independently with layered fallbacks; a field miss leaves
// its sentinel value and never fails the record. A panic anywhere in
// the routine converts to an error for the whole page, since a record
// assembled from garbage is worse than no record.
func ParseDetailPage(html, url string) (rec *Record, err error) {
	defer func() {
		if r := recover(); r != nil {
			rec = nil
			err = fmt.Errorf("parse detail page %s: %v", url, r)
		}
	}()

	doc, derr := goquery.NewDocumentFromReader(strings.NewReader(html))
	if derr != nil {
		return nil, fmt.Errorf("parse detail page %s: %w", url, derr)
	}

	r := &Record{
		URL:        url,
		Title:      extractTitle(doc),
		PriceUSD:   extractPrice(doc, html),
		OdometerKm: extractOdometer(html),
		SellerName: extractSellerName(html),
	}
	r.ImageURL, r.ImagesCount = extractImages(doc)
	r.VIN = extractVIN(html)
	r.PlateNumber = extractPlate(html)
	return r, nil
}

func extractTitle(doc *goquery.Document) string {
	heading := doc.Find("h1.titleL, h1.head, h1[class*=title]").First()
	if title := strings.TrimSpace(heading.Text()); title != "" {
		return title
	}
	// Fall back to the document title, e.g.
	// "AUTO.RIA – Продам Форд Фьюжн 2019 (AA1234BB) ...".
	docTitle := strings.TrimSpace(doc.Find("title").First().Text())
	if m := titleFromDocRe.FindStringSubmatch(docTitle); m != nil {
		return m[1]
	}
	return "Unknown"
}

func extractPrice(doc *goquery.Document, html string) int {
	// Embedded JSON first: any "price*" numeric field within USD bounds.
	for _, m := range priceJSONRe.FindAllStringSubmatch(html, -1) {
		price, err := strconv.Atoi(m[1])
		if err != nil {
			continue
		}
		if price >= minPlausiblePriceUSD && price <= maxPlausiblePriceUSD {
			return price
		}
	}
	// Fallback: "25 000 $" style text anywhere on the page.
	if m := priceTextRe.FindStringSubmatch(doc.Text()); m != nil {
		price, err := strconv.Atoi(whitespaceRe.ReplaceAllString(m[1], ""))
		if err == nil {
			return price
		}
	}
	return 0
}

func extractOdometer(html string) int {
	// "45 тис. км" means 45 thousand km.
	if m := odometerRe.FindStringSubmatch(html); m != nil {
		thousands, err := strconv.Atoi(m[1])
		if err == nil {
			return thousands * 1000
		}
	}
	return 0
}

func extractSellerName(html string) string {
	if m := sellerNameRe.FindStringSubmatch(html); m != nil {
		return m[1]
	}
	return UnknownSeller
}

func extractImages(doc *goquery.Document) (*string, int) {
	images := doc.Find(`img[src*="riastatic"]`)
	if images.Length() == 0 {
		// The page itself is the only image evidence.
		return nil, 1
	}
	var primary *string
	if src, ok := images.First().Attr("src"); ok {
		primary = &src
	}
	return primary, images.Length()
}

func extractVIN(html string) *string {
	// The pattern requires exactly 17 characters from the VIN charset
	// (no I/O/Q); malformed candidates simply never match.
	if m := vinRe.FindStringSubmatch(html); m != nil {
		vin := strings.ToUpper(m[1])
		return &vin
	}
	return nil
}

func extractPlate(html string) *string {
	if m := plateJSONRe.FindStringSubmatch(html); m != nil {
		return &m[1]
	}
	// Fallback: parenthesized Ukrainian plate, e.g. "(AA1234BB)".
	if m := plateParenRe.FindStringSubmatch(html); m != nil {
		return &m[1]
	}
	return nil
}
