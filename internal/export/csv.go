package export

import (
	"encoding/csv"
	"io"
	"os"
	"path/filepath"
	"strconv"

	"github.com/bookstore/services/harvester/internal/repo"
)

// Header is the column layout of exported catalog CSV files.
var Header = []string{"Title", "Price", "Stock", "Rating", "URL", "Genre", "Author(s)"}

// WriteCSV writes query rows as CSV, header first.
func WriteCSV(w io.Writer, rows []repo.BookRow) error {
	cw := csv.NewWriter(w)

	if err := cw.Write(Header); err != nil {
		return err
	}
	for _, row := range rows {
		record := []string{
			row.Title,
			row.Price,
			row.Stock,
			strconv.Itoa(row.Rating),
			row.URL,
			row.Genre,
			row.Authors,
		}
		if err := cw.Write(record); err != nil {
			return err
		}
	}

	cw.Flush()
	return cw.Error()
}

// WriteCSVFile writes query rows to a file, creating parent directories as
// needed.
func WriteCSVFile(path string, rows []repo.BookRow) error {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return err
		}
	}

	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()

	if err := WriteCSV(f, rows); err != nil {
		return err
	}
	return f.Close()
}
