package db

import (
	"gorm.io/gorm"
)

// RunMigrations creates the four harvester relations if they do not exist.
// Safe to run on every startup.
func RunMigrations(db *DB) error {
	if err := db.AutoMigrate(&Author{}, &Genre{}, &Book{}, &BookAuthor{}); err != nil {
		return err
	}

	if err := createIndexes(db.DB); err != nil {
		return err
	}

	return nil
}

func createIndexes(db *gorm.DB) error {
	indexes := []string{
		// Duplicate detection always probes (title, url) together.
		`CREATE INDEX IF NOT EXISTS idx_books_title_url ON books(title, url)`,
	}

	for _, indexSQL := range indexes {
		if err := db.Exec(indexSQL).Error; err != nil {
			return err
		}
	}

	return nil
}
