package db

import (
	"time"
)

// Author is a deduplicated author name. Rows are created on first sighting
// and never updated or deleted; two spellings of the same person remain
// distinct rows.
type Author struct {
	ID   uint   `gorm:"primaryKey" json:"id"`
	Name string `gorm:"type:varchar(255);not null;uniqueIndex:idx_authors_name" json:"name"`
}

// TableName specifies the table name for Author model
func (Author) TableName() string {
	return "authors"
}

// Genre is a deduplicated genre name with the same lifecycle as Author.
type Genre struct {
	ID   uint   `gorm:"primaryKey" json:"id"`
	Name string `gorm:"type:varchar(255);not null;uniqueIndex:idx_genres_name" json:"name"`
}

// TableName specifies the table name for Genre model
func (Genre) TableName() string {
	return "genres"
}

// Book is one harvested catalog item. Price keeps the scraped currency text
// (e.g. "£51.77") and Stock keeps the free-form availability text. Rating is
// 1-5, or 0 when the source page carried an unrecognized rating token.
type Book struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	Title     string    `gorm:"type:varchar(255);not null;index:idx_books_title" json:"title"`
	Price     string    `gorm:"type:varchar(32);not null" json:"price"`
	Stock     string    `gorm:"type:varchar(128)" json:"stock"`
	URL       string    `gorm:"type:varchar(512);not null;index:idx_books_url" json:"url"`
	Rating    int       `gorm:"not null;default:0;index:idx_books_rating" json:"rating"`
	GenreID   uint      `gorm:"not null;index:idx_books_genre" json:"genre_id"`
	Genre     Genre     `gorm:"foreignKey:GenreID" json:"-"`
	CreatedAt time.Time `gorm:"not null;default:CURRENT_TIMESTAMP" json:"created_at"`
}

// TableName specifies the table name for Book model
func (Book) TableName() string {
	return "books"
}

// BookAuthor links books and authors many-to-many. The composite primary key
// keeps the pair unique.
type BookAuthor struct {
	AuthorID uint `gorm:"primaryKey;autoIncrement:false" json:"author_id"`
	BookID   uint `gorm:"primaryKey;autoIncrement:false" json:"book_id"`
}

// TableName specifies the table name for BookAuthor model
func (BookAuthor) TableName() string {
	return "book_authors"
}
