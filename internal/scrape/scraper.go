// Package scrape implements the AutoRia extraction pipeline: paced page
// retrieval, layered field extraction, phone resolution through the
// popup endpoint, and handoff to persistence.
package scrape

import (
	"context"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/vhrabko/autoria-scraper/internal/telemetry"
)

// Store persists scraped records. Upsert returns the number of rows
// successfully written.
type Store interface {
	Upsert(ctx context.Context, records []Record) (int, error)
}

// Config controls the pipeline.
type Config struct {
	BaseURL   string
	SearchURL string
	MaxPages  int
}

// Scraper drives the two-phase harvest: collect listing URLs from the
// paginated search, then scrape every listing concurrently.
type Scraper struct {
	cfg    Config
	client *Client
	store  Store
	logger *zap.Logger
}

// New constructs a Scraper.
func New(cfg Config, client *Client, store Store, logger *zap.Logger) *Scraper {
	if cfg.MaxPages <= 0 {
		cfg.MaxPages = 10
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Scraper{
		cfg:    cfg,
		client: client,
		store:  store,
		logger: logger,
	}
}

// Run executes one full harvest and returns the number of rows stored.
// Individual listing failures are logged and dropped, never fatal; only
// a systemic persistence failure surfaces as an error.
func (s *Scraper) Run(ctx context.Context) (int, error) {
	log := s.logger.With(zap.String("run_id", uuid.NewString()))
	start := time.Now()

	log.Info("scrape run starting", zap.Int("max_pages", s.cfg.MaxPages))

	urls := s.collectURLs(ctx, log)
	log.Info("url collection complete", zap.Int("urls", len(urls)))

	results := s.scrapeAll(ctx, log, urls)

	records := make([]Record, 0, len(results))
	for _, res := range results {
		if res.Record != nil {
			records = append(records, *res.Record)
		}
	}
	log.Info("listing scraping complete",
		zap.Int("scraped", len(records)),
		zap.Int("skipped", len(results)-len(records)),
	)

	saved, err := s.store.Upsert(ctx, records)
	if err != nil {
		return saved, fmt.Errorf("store records: %w", err)
	}

	telemetry.ObserveRunDuration(time.Since(start))
	log.Info("scrape run complete",
		zap.Int("saved", saved),
		zap.Duration("took", time.Since(start)),
	)
	return saved, nil
}

// collectURLs walks search pages sequentially from 1 upward.
// Pagination stops at the first page that yields no listings, even if
// the page cap has not been reached.
func (s *Scraper) collectURLs(ctx context.Context, log *zap.Logger) []string {
	var all []string
	for page := 1; page <= s.cfg.MaxPages; page++ {
		pageURL := fmt.Sprintf("%s?page=%d", s.cfg.SearchURL, page)
		html, err := s.client.Get(ctx, pageURL)
		if err != nil {
			log.Warn("list page fetch failed, stopping pagination",
				zap.Int("page", page),
				zap.Error(err),
			)
			break
		}
		urls, err := ParseListPage(html, s.cfg.BaseURL)
		if err != nil {
			log.Warn("list page parse failed, stopping pagination",
				zap.Int("page", page),
				zap.Error(err),
			)
			break
		}
		if len(urls) == 0 {
			log.Info("no listings on page, assuming end of results", zap.Int("page", page))
			break
		}
		all = append(all, urls...)
		log.Info("list page collected",
			zap.Int("page", page),
			zap.Int("found", len(urls)),
			zap.Int("total", len(all)),
		)
	}
	return all
}

// scrapeAll issues every listing scrape at once; the client's gate
// bounds how many are actually in flight. Result order mirrors the
// input, though nothing downstream depends on it.
func (s *Scraper) scrapeAll(ctx context.Context, log *zap.Logger, urls []string) []Result {
	results := make([]Result, len(urls))
	var wg sync.WaitGroup
	for i, url := range urls {
		wg.Add(1)
		go func(i int, url string) {
			defer wg.Done()
			results[i] = s.scrapeListing(ctx, log, url)
		}(i, url)
	}
	wg.Wait()
	return results
}

func (s *Scraper) scrapeListing(ctx context.Context, log *zap.Logger, url string) Result {
	html, err := s.client.Get(ctx, url)
	if err != nil {
		telemetry.CountListing("fetch_failed")
		return Result{Skipped: fmt.Sprintf("fetch: %v", err)}
	}

	rec, err := ParseDetailPage(html, url)
	if err != nil {
		telemetry.CountListing("parse_failed")
		log.Warn("detail page parse failed", zap.String("url", url), zap.Error(err))
		return Result{Skipped: fmt.Sprintf("parse: %v", err)}
	}

	if payload, ok := ExtractPhonePayload(html); ok {
		rec.Phone = s.resolvePhone(ctx, log, url, payload)
		if rec.Phone != nil {
			telemetry.CountPhoneResolved()
		}
	}

	telemetry.CountListing("scraped")
	return Result{Record: rec}
}

// resolvePhone posts the extracted actionData payload to the popup
// endpoint and mines the response for a normalized number. Every
// failure here means "no phone" for the record, never a dropped record.
func (s *Scraper) resolvePhone(ctx context.Context, log *zap.Logger, detailURL string, payload map[string]any) *int64 {
	headers := http.Header{}
	headers.Set("Accept", "*/*")
	headers.Set("Content-Type", "application/json")
	headers.Set("Origin", s.cfg.BaseURL)
	headers.Set("Referer", detailURL)
	headers.Set("X-RIA-Source", riaSourceTag)

	raw, err := s.client.PostJSON(ctx, s.cfg.BaseURL+phonePopupPath, payload, headers)
	if err != nil {
		log.Debug("phone popup request failed", zap.String("url", detailURL), zap.Error(err))
		return nil
	}
	return phoneFromPopupResponse(raw)
}
