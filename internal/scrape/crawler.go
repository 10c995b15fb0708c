package scrape

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/go-resty/resty/v2"
	"go.uber.org/zap"
)

const userAgent = "Mozilla/5.0 (compatible; bookstore-harvester/1.0)"

// VisitFunc receives every scraped item. Returning an error stops the crawl.
type VisitFunc func(ctx context.Context, item Item) error

// Crawler walks the catalog site and emits fully scraped items.
type Crawler struct {
	client  *resty.Client
	baseURL string
	log     *zap.Logger
}

// NewCrawler creates a catalog crawler rooted at baseURL.
func NewCrawler(client *resty.Client, baseURL string, log *zap.Logger) *Crawler {
	client.SetHeader("User-Agent", userAgent)
	return &Crawler{
		client:  client,
		baseURL: strings.TrimRight(baseURL, "/"),
		log:     log,
	}
}

// fetchDocument gets a page and parses it. A 404 answer maps to
// ErrPageNotFound; other failures map to TransportError or ParseError.
func (c *Crawler) fetchDocument(ctx context.Context, url string) (*goquery.Document, error) {
	res, err := c.client.R().SetContext(ctx).Get(url)
	if err != nil {
		return nil, &TransportError{URL: url, Err: err}
	}
	if res.StatusCode() == http.StatusNotFound {
		return nil, ErrPageNotFound
	}
	if res.StatusCode() != http.StatusOK {
		return nil, &TransportError{URL: url, Err: fmt.Errorf("unexpected status %d", res.StatusCode())}
	}

	doc, err := goquery.NewDocumentFromReader(bytes.NewBuffer(res.Body()))
	if err != nil {
		return nil, &ParseError{URL: url, Err: err}
	}
	return doc, nil
}

// CrawlPages walks the flat catalog pages first..last and emits every book
// whose star rating equals targetRating. A page that fails to load is logged
// and skipped; the crawl continues with the next page.
func (c *Crawler) CrawlPages(ctx context.Context, first, last, targetRating int, visit VisitFunc) error {
	for page := first; page <= last; page++ {
		url := fmt.Sprintf("%s/catalogue/page-%d.html", c.baseURL, page)
		doc, err := c.fetchDocument(ctx, url)
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			c.log.Warn("skipping catalog page",
				zap.String("url", url),
				zap.Error(err))
			continue
		}

		for _, l := range ParseListings(doc) {
			if l.Rating != targetRating {
				continue
			}
			item, err := c.resolveItem(ctx, l, page, "")
			if err != nil {
				return err
			}
			if err := visit(ctx, item); err != nil {
				return err
			}
		}
	}
	return nil
}

// CrawlCategories walks every category linked from the catalog front page,
// following each category's pagination until a 404 or an empty page. An
// unreachable front page yields zero categories, not an error.
func (c *Crawler) CrawlCategories(ctx context.Context, visit VisitFunc) error {
	categories, err := c.listCategories(ctx)
	if err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		c.log.Warn("category index unavailable", zap.Error(err))
		return nil
	}

	for _, cat := range categories {
		if err := c.crawlCategory(ctx, cat, visit); err != nil {
			return err
		}
	}
	return nil
}

type category struct {
	name string
	href string
}

func (c *Crawler) listCategories(ctx context.Context) ([]category, error) {
	doc, err := c.fetchDocument(ctx, c.baseURL+"/index.html")
	if err != nil {
		return nil, err
	}

	var categories []category
	doc.Find("div.side_categories ul li ul li a").Each(func(_ int, s *goquery.Selection) {
		href, ok := s.Attr("href")
		if !ok {
			return
		}
		categories = append(categories, category{
			name: strings.TrimSpace(s.Text()),
			href: href,
		})
	})

	c.log.Info("category index loaded", zap.Int("categories", len(categories)))
	return categories, nil
}

func (c *Crawler) crawlCategory(ctx context.Context, cat category, visit VisitFunc) error {
	// Category hrefs point at ".../index.html"; later pages swap in
	// "page-N.html".
	base := strings.TrimSuffix(cat.href, "index.html")

	for page := 1; ; page++ {
		var url string
		if page == 1 {
			url = fmt.Sprintf("%s/%s", c.baseURL, cat.href)
		} else {
			url = fmt.Sprintf("%s/%spage-%d.html", c.baseURL, base, page)
		}

		doc, err := c.fetchDocument(ctx, url)
		if errors.Is(err, ErrPageNotFound) {
			return nil
		}
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			// Pagination is open-ended, so a broken page ends the category
			// rather than probing forever.
			c.log.Warn("abandoning category",
				zap.String("category", cat.name),
				zap.String("url", url),
				zap.Error(err))
			return nil
		}

		listings := ParseListings(doc)
		if len(listings) == 0 {
			return nil
		}

		for _, l := range listings {
			item, err := c.resolveItem(ctx, l, page, cat.name)
			if err != nil {
				return err
			}
			if err := visit(ctx, item); err != nil {
				return err
			}
		}
	}
}

// resolveItem fetches a listing's detail page and merges both views into an
// Item. A failed detail fetch leaves the Unknown sentinels in place; the
// listing is still emitted.
func (c *Crawler) resolveItem(ctx context.Context, l Listing, page int, categoryName string) (Item, error) {
	item := Item{
		Title:    l.Title,
		Price:    l.Price,
		Rating:   l.Rating,
		Stock:    StockUnknown,
		Genre:    GenreUnknown,
		URL:      c.detailURL(l.DetailRef),
		Page:     page,
		Category: categoryName,
	}

	doc, err := c.fetchDocument(ctx, item.URL)
	if err != nil {
		if ctx.Err() != nil {
			return item, ctx.Err()
		}
		c.log.Warn("detail page unavailable",
			zap.String("title", item.Title),
			zap.String("url", item.URL),
			zap.Error(err))
		return item, nil
	}

	d := ParseDetail(doc)
	item.Genre = d.Genre
	item.Stock = d.Stock
	return item, nil
}

// detailURL roots a listing href under the catalogue path. Listing hrefs are
// relative with varying depth ("../../../x/index.html" on category pages,
// "x/index.html" on flat pages).
func (c *Crawler) detailURL(href string) string {
	return c.baseURL + "/catalogue/" + strings.TrimLeft(href, "./")
}
