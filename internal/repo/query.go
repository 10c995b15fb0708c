package repo

import (
	"context"
	"errors"
	"fmt"
	"strconv"

	"gorm.io/gorm"
)

// ErrInvalidFilter is returned when a filter carries an out-of-range or
// malformed argument.
var ErrInvalidFilter = errors.New("invalid filter")

// FilterKind identifies one query criterion.
type FilterKind int

const (
	// FilterAll matches every book.
	FilterAll FilterKind = iota
	// FilterByRating matches books with an exact star rating (1-5).
	FilterByRating
	// FilterByMaxPrice matches books whose numeric price is at most the limit.
	FilterByMaxPrice
	// FilterByGenre matches books whose genre name contains a substring
	// (case-sensitive).
	FilterByGenre
	// FilterByAuthor matches books with at least one author whose name
	// contains a substring (case-sensitive).
	FilterByAuthor
	// FilterInStock matches books not marked with zero availability.
	FilterInStock
)

// Filter is one composable query criterion. Combine several to AND them.
type Filter struct {
	Kind     FilterKind
	Rating   int
	MaxPrice float64
	Pattern  string
}

// ByRating filters on an exact star rating.
func ByRating(rating int) Filter { return Filter{Kind: FilterByRating, Rating: rating} }

// ByMaxPrice filters on a price ceiling in the catalog currency.
func ByMaxPrice(limit float64) Filter { return Filter{Kind: FilterByMaxPrice, MaxPrice: limit} }

// ByGenreSubstring filters on a case-sensitive genre name fragment.
func ByGenreSubstring(pattern string) Filter { return Filter{Kind: FilterByGenre, Pattern: pattern} }

// ByAuthorSubstring filters on a case-sensitive author name fragment.
func ByAuthorSubstring(pattern string) Filter { return Filter{Kind: FilterByAuthor, Pattern: pattern} }

// OnlyInStock filters out books whose stock text reports zero availability.
func OnlyInStock() Filter { return Filter{Kind: FilterInStock} }

// All matches the whole catalog.
func All() Filter { return Filter{Kind: FilterAll} }

// ParseRating validates and converts interactive rating input.
func ParseRating(s string) (int, error) {
	n, err := strconv.Atoi(s)
	if err != nil || n < 1 || n > 5 {
		return 0, fmt.Errorf("%w: rating must be a whole number from 1 to 5", ErrInvalidFilter)
	}
	return n, nil
}

// ParseMaxPrice validates and converts interactive price input.
func ParseMaxPrice(s string) (float64, error) {
	f, err := strconv.ParseFloat(s, 64)
	if err != nil || f < 0 {
		return 0, fmt.Errorf("%w: price must be a non-negative number", ErrInvalidFilter)
	}
	return f, nil
}

// BookRow is one row of a catalog query: a book joined with its genre and
// its author names, comma-joined in alphabetical order.
type BookRow struct {
	Title   string `json:"title"`
	Price   string `json:"price"`
	Stock   string `json:"stock"`
	Rating  int    `json:"rating"`
	URL     string `json:"url"`
	Genre   string `json:"genre"`
	Authors string `json:"authors"`
}

// QueryBooks returns the books matching every given filter, ordered by
// title. Books without author links are still returned, with empty Authors.
func (r *CatalogRepository) QueryBooks(ctx context.Context, filters ...Filter) ([]BookRow, error) {
	q := r.db.WithContext(ctx).
		Table("books").
		Select(fmt.Sprintf(
			"books.title, books.price, books.stock, books.rating, books.url, genres.name AS genre, %s AS authors",
			authorAggExpr(r.db.Dialector.Name()))).
		Joins("JOIN genres ON genres.id = books.genre_id").
		Joins("LEFT JOIN book_authors ON book_authors.book_id = books.id").
		Joins("LEFT JOIN authors ON authors.id = book_authors.author_id")

	for _, f := range filters {
		var err error
		q, err = applyFilter(q, f)
		if err != nil {
			return nil, err
		}
	}

	q = q.Group("books.id, books.title, books.price, books.stock, books.rating, books.url, genres.name").
		Order("books.title ASC")

	var rows []BookRow
	if err := q.Scan(&rows).Error; err != nil {
		return nil, err
	}
	return rows, nil
}

func applyFilter(q *gorm.DB, f Filter) (*gorm.DB, error) {
	switch f.Kind {
	case FilterAll:
		return q, nil
	case FilterByRating:
		if f.Rating < 1 || f.Rating > 5 {
			return nil, fmt.Errorf("%w: rating %d out of range", ErrInvalidFilter, f.Rating)
		}
		return q.Where("books.rating = ?", f.Rating), nil
	case FilterByMaxPrice:
		if f.MaxPrice < 0 {
			return nil, fmt.Errorf("%w: negative price limit", ErrInvalidFilter)
		}
		// Price is stored with a leading currency symbol.
		return q.Where("CAST(SUBSTR(books.price, 2) AS REAL) <= ?", f.MaxPrice), nil
	case FilterByGenre:
		return q.Where("genres.name LIKE ?", "%"+f.Pattern+"%"), nil
	case FilterByAuthor:
		// Restrict book identity with a subquery; filtering the joined
		// authors rows directly would drop non-matching co-authors from the
		// aggregated author list.
		return q.Where(
			"EXISTS (SELECT 1 FROM book_authors ba JOIN authors a ON a.id = ba.author_id WHERE ba.book_id = books.id AND a.name LIKE ?)",
			"%"+f.Pattern+"%"), nil
	case FilterInStock:
		return q.Where("books.stock NOT LIKE ?", "%(0 available)%"), nil
	default:
		return nil, fmt.Errorf("%w: unknown filter kind %d", ErrInvalidFilter, f.Kind)
	}
}

// authorAggExpr joins author names alphabetically; neither engine guarantees
// aggregate order without an explicit ORDER BY.
func authorAggExpr(dialect string) string {
	if dialect == "postgres" {
		return "STRING_AGG(authors.name, ', ' ORDER BY authors.name)"
	}
	return "GROUP_CONCAT(authors.name, ', ' ORDER BY authors.name)"
}
