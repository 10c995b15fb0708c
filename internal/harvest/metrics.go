package harvest

import (
	"github.com/prometheus/client_golang/prometheus"
)

var (
	booksIngested = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "harvester_books_ingested_total",
		Help: "Number of new books stored in the catalog",
	})
	duplicatesSkipped = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "harvester_duplicates_skipped_total",
		Help: "Number of already-stored books skipped during harvest",
	})
	insertFailures = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "harvester_insert_failures_total",
		Help: "Number of books that failed to persist",
	})
	authorLookups = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "harvester_author_lookups_total",
		Help: "Number of author resolutions performed, cache hits included",
	})
)

func init() {
	prometheus.MustRegister(booksIngested, duplicatesSkipped, insertFailures, authorLookups)
}
