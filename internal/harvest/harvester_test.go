package harvest

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

	"github.com/bookstore/services/harvester/internal/db"
	"github.com/bookstore/services/harvester/internal/repo"
	"github.com/bookstore/services/harvester/internal/scrape"
)

// fakeResolver answers from a fixed map and counts calls.
type fakeResolver struct {
	authors map[string]string
	calls   int
}

func (f *fakeResolver) Resolve(_ context.Context, title string) (string, error) {
	f.calls++
	if a, ok := f.authors[title]; ok {
		return a, nil
	}
	return "Not found", nil
}

// MockPublisher records published events.
type MockPublisher struct {
	ingested []string
	finished []string
}

func (m *MockPublisher) PublishBookIngested(_ context.Context, title, _, _, _, _ string, _ int) error {
	m.ingested = append(m.ingested, title)
	return nil
}

func (m *MockPublisher) PublishHarvestFinished(_ context.Context, mode string, _, _, _ int) error {
	m.finished = append(m.finished, mode)
	return nil
}

func card(title, ref, rating, price string) string {
	return fmt.Sprintf(`<article class="product_pod">
<p class="star-rating %s"></p>
<h3><a href="%s" title="%s">%s</a></h3>
<p class="price_color">%s</p>
</article>`, rating, ref, title, title, price)
}

func detail(genre, stock string) string {
	return fmt.Sprintf(`<html><body>
<ul class="breadcrumb"><li><a href="#">Home</a></li><li><a href="#">Books</a></li><li><a href="#">%s</a></li></ul>
<table class="table table-striped">
<tr><td>a</td></tr><tr><td>b</td></tr><tr><td>c</td></tr><tr><td>d</td></tr><tr><td>e</td></tr>
<tr><th>Availability</th><td>%s</td></tr>
</table>
</body></html>`, genre, stock)
}

// newCatalogServer serves two flat pages that both list the same first book,
// so a full crawl sees three listings but only two distinct books.
func newCatalogServer(t *testing.T) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()
	mux.HandleFunc("/catalogue/page-1.html", func(w http.ResponseWriter, _ *http.Request) {
		fmt.Fprint(w, "<html><body>",
			card("Dune", "dune_1/index.html", "Three", "£12.00"),
			card("Emma", "emma_2/index.html", "Three", "£8.50"),
			"</body></html>")
	})
	mux.HandleFunc("/catalogue/page-2.html", func(w http.ResponseWriter, _ *http.Request) {
		fmt.Fprint(w, "<html><body>",
			card("Dune", "dune_1/index.html", "Three", "£12.00"),
			"</body></html>")
	})
	mux.HandleFunc("/catalogue/dune_1/index.html", func(w http.ResponseWriter, _ *http.Request) {
		fmt.Fprint(w, detail("Science Fiction", "In stock (9 available)"))
	})
	mux.HandleFunc("/catalogue/emma_2/index.html", func(w http.ResponseWriter, _ *http.Request) {
		fmt.Fprint(w, detail("Classics", "In stock (2 available)"))
	})
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

func setupHarvester(t *testing.T, srv *httptest.Server) (*Harvester, *repo.CatalogRepository, *fakeResolver, *MockPublisher) {
	t.Helper()

	database, err := db.Connect("sqlite", ":memory:")
	require.NoError(t, err)
	require.NoError(t, db.RunMigrations(database))
	t.Cleanup(func() { database.Close() })

	catalog := repo.NewCatalogRepository(database, zap.NewNop())
	crawler := scrape.NewCrawler(resty.New(), srv.URL, zap.NewNop())
	resolver := &fakeResolver{authors: map[string]string{
		"Dune": "Frank Herbert",
		"Emma": "Jane Austen",
	}}
	publisher := &MockPublisher{}

	h := NewHarvester(crawler, resolver, catalog, publisher, zap.NewNop())
	return h, catalog, resolver, publisher
}

func TestRunPagesIngestsAndSkipsDuplicates(t *testing.T) {
	srv := newCatalogServer(t)
	h, catalog, _, publisher := setupHarvester(t, srv)
	ctx := context.Background()

	res, err := h.RunPages(ctx, 1, 2, 3)
	require.NoError(t, err)

	assert.Equal(t, 2, res.Ingested)
	assert.Equal(t, 1, res.Duplicates)
	assert.Equal(t, 0, res.Failures)

	rows, err := catalog.QueryBooks(ctx, repo.All())
	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.Equal(t, "Dune", rows[0].Title)
	assert.Equal(t, "Frank Herbert", rows[0].Authors)
	assert.Equal(t, "Science Fiction", rows[0].Genre)
	assert.Equal(t, "In stock (9 available)", rows[0].Stock)
	assert.Equal(t, 3, rows[0].Rating)
	assert.Equal(t, "Emma", rows[1].Title)

	assert.Equal(t, []string{"Dune", "Emma"}, publisher.ingested)
	assert.Equal(t, []string{"pages"}, publisher.finished)
}

func TestRunPagesSecondRunAllDuplicates(t *testing.T) {
	srv := newCatalogServer(t)
	h, _, _, publisher := setupHarvester(t, srv)
	ctx := context.Background()

	_, err := h.RunPages(ctx, 1, 2, 3)
	require.NoError(t, err)

	res, err := h.RunPages(ctx, 1, 2, 3)
	require.NoError(t, err)
	assert.Equal(t, 0, res.Ingested)
	assert.Equal(t, 3, res.Duplicates)

	// No new ingest events on the second run.
	assert.Equal(t, []string{"Dune", "Emma"}, publisher.ingested)
}

func TestRunPagesRatingMismatchIngestsNothing(t *testing.T) {
	srv := newCatalogServer(t)
	h, catalog, resolver, _ := setupHarvester(t, srv)
	ctx := context.Background()

	res, err := h.RunPages(ctx, 1, 2, 5)
	require.NoError(t, err)
	assert.Equal(t, 0, res.Ingested)
	assert.Zero(t, resolver.calls)

	rows, err := catalog.QueryBooks(ctx, repo.All())
	require.NoError(t, err)
	assert.Empty(t, rows)
}

func TestRunPagesWithoutPublisher(t *testing.T) {
	srv := newCatalogServer(t)
	h, _, _, _ := setupHarvester(t, srv)
	h.publisher = nil

	res, err := h.RunPages(context.Background(), 1, 1, 3)
	require.NoError(t, err)
	assert.Equal(t, 2, res.Ingested)
}

func TestRunCategories(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/index.html", func(w http.ResponseWriter, _ *http.Request) {
		fmt.Fprint(w, `<html><body><div class="side_categories"><ul><li>
<a href="catalogue/category/books_1/index.html">Books</a>
<ul><li><a href="catalogue/category/books/classics_6/index.html">Classics</a></li></ul>
</li></ul></div></body></html>`)
	})
	mux.HandleFunc("/catalogue/category/books/classics_6/index.html", func(w http.ResponseWriter, _ *http.Request) {
		fmt.Fprint(w, "<html><body>",
			card("Emma", "../../../emma_2/index.html", "Four", "£8.50"),
			"</body></html>")
	})
	mux.HandleFunc("/catalogue/emma_2/index.html", func(w http.ResponseWriter, _ *http.Request) {
		fmt.Fprint(w, detail("Classics", "In stock (2 available)"))
	})
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)

	h, catalog, _, _ := setupHarvester(t, srv)

	res, err := h.RunCategories(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, res.Ingested)

	rows, err := catalog.QueryBooks(context.Background(), repo.All())
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, "Emma", rows[0].Title)
	assert.Equal(t, "Classics", rows[0].Genre)
	assert.Equal(t, 4, rows[0].Rating)
}
