package scrape

// Item is one fully scraped book: the listing fields plus the detail-page
// fields, with the page and category it was found on.
type Item struct {
	Title    string
	Price    string
	Rating   int
	Stock    string
	Genre    string
	URL      string
	Page     int
	Category string
}
