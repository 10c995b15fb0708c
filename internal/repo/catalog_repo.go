package repo

import (
	"context"
	"errors"
	"strings"

	"go.uber.org/zap"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/bookstore/services/harvester/internal/db"
)

// ErrDuplicateBook is returned when a book with the same title and URL
// already exists in the catalog.
var ErrDuplicateBook = errors.New("book already exists")

// BookRecord is one fully enriched book ready for persistence. Authors is a
// comma-separated list as produced by the author lookup.
type BookRecord struct {
	Title   string
	Price   string
	Stock   string
	URL     string
	Rating  int
	Genre   string
	Authors string
}

// CatalogRepository handles database operations for the harvested catalog
type CatalogRepository struct {
	db  *db.DB
	log *zap.Logger
}

// NewCatalogRepository creates a new catalog repository
func NewCatalogRepository(database *db.DB, log *zap.Logger) *CatalogRepository {
	return &CatalogRepository{
		db:  database,
		log: log,
	}
}

// InsertBook persists a book record, resolving its genre and authors to
// existing rows or creating them. Returns ErrDuplicateBook when a book with
// the same title and URL is already stored; nothing is written in that case.
func (r *CatalogRepository) InsertBook(ctx context.Context, rec BookRecord) (uint, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&db.Book{}).
		Where("title = ? AND url = ?", rec.Title, rec.URL).
		Count(&count).Error
	if err != nil {
		return 0, err
	}
	if count > 0 {
		return 0, ErrDuplicateBook
	}

	var bookID uint
	err = r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		genre, err := resolveOrCreateGenre(tx, rec.Genre)
		if err != nil {
			return err
		}

		book := db.Book{
			Title:   rec.Title,
			Price:   rec.Price,
			Stock:   rec.Stock,
			URL:     rec.URL,
			Rating:  rec.Rating,
			GenreID: genre.ID,
		}
		if err := tx.Create(&book).Error; err != nil {
			return err
		}
		bookID = book.ID

		for _, name := range splitAuthors(rec.Authors) {
			author, err := resolveOrCreateAuthor(tx, name)
			if err != nil {
				return err
			}
			link := db.BookAuthor{AuthorID: author.ID, BookID: book.ID}
			if err := tx.Clauses(clause.OnConflict{DoNothing: true}).Create(&link).Error; err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return 0, err
	}

	r.log.Debug("book inserted",
		zap.Uint("book_id", bookID),
		zap.String("title", rec.Title))

	return bookID, nil
}

// ResolveOrCreateGenre returns the genre row for the given name, creating it
// if it does not exist yet.
func (r *CatalogRepository) ResolveOrCreateGenre(ctx context.Context, name string) (*db.Genre, error) {
	return resolveOrCreateGenre(r.db.WithContext(ctx), name)
}

// ResolveOrCreateAuthor returns the author row for the given name, creating
// it if it does not exist yet.
func (r *CatalogRepository) ResolveOrCreateAuthor(ctx context.Context, name string) (*db.Author, error) {
	return resolveOrCreateAuthor(r.db.WithContext(ctx), name)
}

func resolveOrCreateGenre(tx *gorm.DB, name string) (*db.Genre, error) {
	genre := db.Genre{Name: strings.TrimSpace(name)}
	if err := tx.Where("name = ?", genre.Name).FirstOrCreate(&genre).Error; err != nil {
		return nil, err
	}
	return &genre, nil
}

func resolveOrCreateAuthor(tx *gorm.DB, name string) (*db.Author, error) {
	author := db.Author{Name: strings.TrimSpace(name)}
	if err := tx.Where("name = ?", author.Name).FirstOrCreate(&author).Error; err != nil {
		return nil, err
	}
	return &author, nil
}

// splitAuthors breaks a comma-separated author list into trimmed names.
// Lookup sentinels ("Not found", "Lookup error", "Unknown") pass through as
// single names.
func splitAuthors(authors string) []string {
	parts := strings.Split(authors, ",")
	names := make([]string, 0, len(parts))
	for _, p := range parts {
		if name := strings.TrimSpace(p); name != "" {
			names = append(names, name)
		}
	}
	return names
}

// Stats summarizes the stored catalog.
type Stats struct {
	Books   int64 `json:"books"`
	Authors int64 `json:"authors"`
	Genres  int64 `json:"genres"`
}

// GetStats returns row counts for the health and metrics endpoints.
func (r *CatalogRepository) GetStats(ctx context.Context) (*Stats, error) {
	var s Stats
	if err := r.db.WithContext(ctx).Model(&db.Book{}).Count(&s.Books).Error; err != nil {
		return nil, err
	}
	if err := r.db.WithContext(ctx).Model(&db.Author{}).Count(&s.Authors).Error; err != nil {
		return nil, err
	}
	if err := r.db.WithContext(ctx).Model(&db.Genre{}).Count(&s.Genres).Error; err != nil {
		return nil, err
	}
	return &s, nil
}
