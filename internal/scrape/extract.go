package scrape

import (
	"strings"

	"github.com/PuerkitoBio/goquery"
)

const (
	// GenreUnknown is stored when the detail page breadcrumb does not carry
	// a genre link.
	GenreUnknown = "Unknown"
	// StockUnknown is stored when the detail page availability row is missing.
	StockUnknown = "Out of stock"
)

var ratingLevels = map[string]int{
	"One":   1,
	"Two":   2,
	"Three": 3,
	"Four":  4,
	"Five":  5,
}

// RatingFromClass converts a star-rating class token ("One".."Five") to its
// numeric value. Unrecognized tokens map to 0.
func RatingFromClass(class string) int {
	return ratingLevels[class]
}

// Listing is one book as it appears on a category or catalog listing page.
type Listing struct {
	Title     string
	Price     string
	Rating    int
	DetailRef string
}

// ParseListings extracts every product card from a listing page document.
func ParseListings(doc *goquery.Document) []Listing {
	var listings []Listing
	doc.Find("article.product_pod").Each(func(_ int, s *goquery.Selection) {
		var l Listing
		l.Title, _ = s.Find("h3 a").Attr("title")
		l.Price = strings.TrimSpace(s.Find("p.price_color").Text())
		l.Rating = ratingFromSelection(s.Find("p.star-rating"))
		l.DetailRef, _ = s.Find("h3 a").Attr("href")
		listings = append(listings, l)
	})
	return listings
}

// ratingFromSelection reads the second class of a star-rating element, the
// token naming the star count.
func ratingFromSelection(s *goquery.Selection) int {
	class, ok := s.Attr("class")
	if !ok {
		return 0
	}
	fields := strings.Fields(class)
	if len(fields) < 2 {
		return 0
	}
	return RatingFromClass(fields[1])
}

// Detail holds the fields only available on a book's own page.
type Detail struct {
	Genre string
	Stock string
}

// ParseDetail extracts genre and availability from a book detail page. The
// genre is the third breadcrumb link; the availability is the sixth row of
// the product information table. Missing elements fall back to the Unknown
// sentinels rather than failing.
func ParseDetail(doc *goquery.Document) Detail {
	d := Detail{Genre: GenreUnknown, Stock: StockUnknown}

	if crumb := doc.Find("ul.breadcrumb li a").Eq(2); crumb.Length() > 0 {
		if genre := strings.TrimSpace(crumb.Text()); genre != "" {
			d.Genre = genre
		}
	}

	if row := doc.Find("table.table-striped tr").Eq(5); row.Length() > 0 {
		if stock := strings.TrimSpace(row.Find("td").Text()); stock != "" {
			d.Stock = stock
		}
	}

	return d
}
