package scrape

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-resty/resty/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func listingCard(title, ref, rating, price string) string {
	return fmt.Sprintf(`<article class="product_pod">
<p class="star-rating %s"></p>
<h3><a href="%s" title="%s">%s</a></h3>
<p class="price_color">%s</p>
</article>`, rating, ref, title, title, price)
}

func detailPage(genre, stock string) string {
	return fmt.Sprintf(`<html><body>
<ul class="breadcrumb">
<li><a href="#">Home</a></li><li><a href="#">Books</a></li><li><a href="#">%s</a></li>
</ul>
<table class="table table-striped">
<tr><td>u</td></tr><tr><td>b</td></tr><tr><td>p</td></tr><tr><td>p</td></tr><tr><td>t</td></tr>
<tr><th>Availability</th><td>%s</td></tr>
</table>
</body></html>`, genre, stock)
}

func newTestCrawler(t *testing.T, handler http.Handler) (*Crawler, *httptest.Server) {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	c := NewCrawler(resty.New(), srv.URL, zap.NewNop())
	return c, srv
}

func collectItems(visit *[]Item) VisitFunc {
	return func(_ context.Context, item Item) error {
		*visit = append(*visit, item)
		return nil
	}
}

func TestCrawlPagesFiltersByRating(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/catalogue/page-1.html", func(w http.ResponseWriter, _ *http.Request) {
		fmt.Fprint(w, "<html><body>",
			listingCard("Kept", "kept_1/index.html", "Four", "£10.00"),
			listingCard("Dropped", "dropped_2/index.html", "Two", "£11.00"),
			"</body></html>")
	})
	mux.HandleFunc("/catalogue/kept_1/index.html", func(w http.ResponseWriter, _ *http.Request) {
		fmt.Fprint(w, detailPage("Travel", "In stock (3 available)"))
	})

	c, srv := newTestCrawler(t, mux)

	var items []Item
	err := c.CrawlPages(context.Background(), 1, 1, 4, collectItems(&items))
	require.NoError(t, err)

	require.Len(t, items, 1)
	assert.Equal(t, "Kept", items[0].Title)
	assert.Equal(t, "£10.00", items[0].Price)
	assert.Equal(t, 4, items[0].Rating)
	assert.Equal(t, "Travel", items[0].Genre)
	assert.Equal(t, "In stock (3 available)", items[0].Stock)
	assert.Equal(t, srv.URL+"/catalogue/kept_1/index.html", items[0].URL)
	assert.Equal(t, 1, items[0].Page)
}

func TestCrawlPagesSkipsFailedPage(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/catalogue/page-1.html", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	})
	mux.HandleFunc("/catalogue/page-2.html", func(w http.ResponseWriter, _ *http.Request) {
		fmt.Fprint(w, "<html><body>",
			listingCard("Survivor", "survivor_1/index.html", "Five", "£9.99"),
			"</body></html>")
	})
	mux.HandleFunc("/catalogue/survivor_1/index.html", func(w http.ResponseWriter, _ *http.Request) {
		fmt.Fprint(w, detailPage("Fiction", "In stock (1 available)"))
	})

	c, _ := newTestCrawler(t, mux)

	var items []Item
	err := c.CrawlPages(context.Background(), 1, 2, 5, collectItems(&items))
	require.NoError(t, err)

	require.Len(t, items, 1)
	assert.Equal(t, "Survivor", items[0].Title)
	assert.Equal(t, 2, items[0].Page)
}

func TestCrawlPagesDetailFailureKeepsSentinels(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/catalogue/page-1.html", func(w http.ResponseWriter, _ *http.Request) {
		fmt.Fprint(w, "<html><body>",
			listingCard("Orphan", "orphan_1/index.html", "Three", "£5.00"),
			"</body></html>")
	})
	// No handler for the detail page: 404.

	c, _ := newTestCrawler(t, mux)

	var items []Item
	err := c.CrawlPages(context.Background(), 1, 1, 3, collectItems(&items))
	require.NoError(t, err)

	require.Len(t, items, 1)
	assert.Equal(t, GenreUnknown, items[0].Genre)
	assert.Equal(t, StockUnknown, items[0].Stock)
}

func TestCrawlCategoriesPaginatesUntilNotFound(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/index.html", func(w http.ResponseWriter, _ *http.Request) {
		fmt.Fprint(w, `<html><body><div class="side_categories"><ul><li>
<a href="catalogue/category/books_1/index.html">Books</a>
<ul>
<li><a href="catalogue/category/books/travel_2/index.html"> Travel </a></li>
</ul></li></ul></div></body></html>`)
	})
	mux.HandleFunc("/catalogue/category/books/travel_2/index.html", func(w http.ResponseWriter, _ *http.Request) {
		fmt.Fprint(w, "<html><body>",
			listingCard("First", "../../../first_1/index.html", "One", "£1.00"),
			"</body></html>")
	})
	mux.HandleFunc("/catalogue/category/books/travel_2/page-2.html", func(w http.ResponseWriter, _ *http.Request) {
		fmt.Fprint(w, "<html><body>",
			listingCard("Second", "../../../second_2/index.html", "Two", "£2.00"),
			"</body></html>")
	})
	// page-3.html falls through to the mux 404, ending the category.
	mux.HandleFunc("/catalogue/first_1/index.html", func(w http.ResponseWriter, _ *http.Request) {
		fmt.Fprint(w, detailPage("Travel", "In stock (7 available)"))
	})
	mux.HandleFunc("/catalogue/second_2/index.html", func(w http.ResponseWriter, _ *http.Request) {
		fmt.Fprint(w, detailPage("Travel", "In stock (2 available)"))
	})

	c, srv := newTestCrawler(t, mux)

	var items []Item
	err := c.CrawlCategories(context.Background(), collectItems(&items))
	require.NoError(t, err)

	require.Len(t, items, 2)
	assert.Equal(t, "First", items[0].Title)
	assert.Equal(t, "Travel", items[0].Category)
	assert.Equal(t, 1, items[0].Page)
	assert.Equal(t, srv.URL+"/catalogue/first_1/index.html", items[0].URL)
	assert.Equal(t, "Second", items[1].Title)
	assert.Equal(t, 2, items[1].Page)
}

func TestCrawlCategoriesIndexUnavailable(t *testing.T) {
	c, _ := newTestCrawler(t, http.NotFoundHandler())

	var items []Item
	err := c.CrawlCategories(context.Background(), collectItems(&items))
	require.NoError(t, err)
	assert.Empty(t, items)
}

func TestCrawlPagesContextCancelled(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/catalogue/page-1.html", func(w http.ResponseWriter, _ *http.Request) {
		fmt.Fprint(w, "<html><body></body></html>")
	})

	c, _ := newTestCrawler(t, mux)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := c.CrawlPages(ctx, 1, 3, 1, collectItems(&[]Item{}))
	assert.ErrorIs(t, err, context.Canceled)
}
