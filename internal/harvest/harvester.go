package harvest

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/bookstore/services/harvester/internal/events"
	"github.com/bookstore/services/harvester/internal/repo"
	"github.com/bookstore/services/harvester/internal/scrape"
)

// AuthorResolver resolves a book title to a comma-joined author list.
type AuthorResolver interface {
	Resolve(ctx context.Context, title string) (string, error)
}

// Result summarizes one harvest run.
type Result struct {
	Ingested   int `json:"ingested"`
	Duplicates int `json:"duplicates"`
	Failures   int `json:"failures"`
}

// Harvester runs the scrape-enrich-persist pipeline. Items flow one at a
// time: each scraped book is enriched with authors and written before the
// next one is fetched.
type Harvester struct {
	crawler   *scrape.Crawler
	resolver  AuthorResolver
	repo      *repo.CatalogRepository
	publisher events.EventPublisher
	log       *zap.Logger
}

// NewHarvester wires the pipeline. publisher may be nil when the message
// broker is unavailable; events are then skipped.
func NewHarvester(crawler *scrape.Crawler, resolver AuthorResolver, catalog *repo.CatalogRepository, publisher events.EventPublisher, log *zap.Logger) *Harvester {
	return &Harvester{
		crawler:   crawler,
		resolver:  resolver,
		repo:      catalog,
		publisher: publisher,
		log:       log,
	}
}

// RunCategories harvests every category of the catalog site.
func (h *Harvester) RunCategories(ctx context.Context) (Result, error) {
	var res Result
	err := h.crawler.CrawlCategories(ctx, h.processFunc(&res))
	h.finish(ctx, "categories", res)
	if err != nil {
		return res, err
	}
	return res, res.asError()
}

// RunPages harvests the flat catalog pages first..last, keeping only books
// rated targetRating.
func (h *Harvester) RunPages(ctx context.Context, first, last, targetRating int) (Result, error) {
	var res Result
	err := h.crawler.CrawlPages(ctx, first, last, targetRating, h.processFunc(&res))
	h.finish(ctx, "pages", res)
	if err != nil {
		return res, err
	}
	return res, res.asError()
}

// processFunc enriches and persists one scraped item. Duplicates and insert
// failures are counted and logged but never stop the run.
func (h *Harvester) processFunc(res *Result) scrape.VisitFunc {
	return func(ctx context.Context, item scrape.Item) error {
		authors, err := h.resolver.Resolve(ctx, item.Title)
		if err != nil {
			return err
		}
		authorLookups.Inc()

		rec := repo.BookRecord{
			Title:   item.Title,
			Price:   item.Price,
			Stock:   item.Stock,
			URL:     item.URL,
			Rating:  item.Rating,
			Genre:   item.Genre,
			Authors: authors,
		}

		_, err = h.repo.InsertBook(ctx, rec)
		switch {
		case errors.Is(err, repo.ErrDuplicateBook):
			res.Duplicates++
			duplicatesSkipped.Inc()
			h.log.Info("duplicate book skipped",
				zap.String("title", item.Title),
				zap.String("url", item.URL))
			return nil
		case err != nil:
			res.Failures++
			insertFailures.Inc()
			h.log.Error("failed to store book",
				zap.String("title", item.Title),
				zap.String("url", item.URL),
				zap.Error(err))
			return nil
		}

		res.Ingested++
		booksIngested.Inc()
		h.log.Info("book ingested",
			zap.String("title", item.Title),
			zap.String("genre", item.Genre),
			zap.Int("rating", item.Rating),
			zap.String("authors", authors))

		if h.publisher != nil {
			if err := h.publisher.PublishBookIngested(ctx, item.Title, item.URL, item.Genre, authors, item.Price, item.Rating); err != nil {
				h.log.Warn("failed to publish ingest event",
					zap.String("title", item.Title),
					zap.Error(err))
			}
		}
		return nil
	}
}

func (h *Harvester) finish(ctx context.Context, mode string, res Result) {
	h.log.Info("harvest finished",
		zap.String("mode", mode),
		zap.Int("ingested", res.Ingested),
		zap.Int("duplicates", res.Duplicates),
		zap.Int("failures", res.Failures))

	if h.publisher != nil {
		if err := h.publisher.PublishHarvestFinished(ctx, mode, res.Ingested, res.Duplicates, res.Failures); err != nil {
			h.log.Warn("failed to publish harvest summary", zap.Error(err))
		}
	}
}

func (r Result) asError() error {
	if r.Failures > 0 {
		return fmt.Errorf("%d books failed to persist", r.Failures)
	}
	return nil
}
