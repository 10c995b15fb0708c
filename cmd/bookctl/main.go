package main

import (
	"bufio"
	"context"
	"flag"
	"fmt"
	"os"
	"strings"

	"go.uber.org/zap"

	"github.com/bookstore/services/harvester/internal/db"
	"github.com/bookstore/services/harvester/internal/export"
	"github.com/bookstore/services/harvester/internal/repo"
)

const menu = `
==============================
 Book catalog
==============================
 1) Filter by rating
 2) Filter by maximum price
 3) Filter by genre
 4) Filter by author
 5) Only books in stock
 6) Show all books
 0) Exit
`

func main() {
	driver := flag.String("driver", "sqlite", "database driver (sqlite or postgres)")
	dsn := flag.String("dsn", "harvester.db", "database DSN or file path")
	out := flag.String("out", "books_export.csv", "default path for CSV exports")
	flag.Parse()

	database, err := db.Connect(*driver, *dsn)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to open database: %v\n", err)
		os.Exit(1)
	}
	defer database.Close()

	catalog := repo.NewCatalogRepository(database, zap.NewNop())
	in := bufio.NewScanner(os.Stdin)

	for {
		fmt.Print(menu)
		choice := prompt(in, "Choose an option: ")

		if choice == "0" {
			fmt.Println("Bye.")
			return
		}

		filter, ok := buildFilter(in, choice)
		if !ok {
			continue
		}

		rows, err := catalog.QueryBooks(context.Background(), filter)
		if err != nil {
			fmt.Fprintf(os.Stderr, "query failed: %v\n", err)
			continue
		}

		printRows(rows)

		if len(rows) > 0 && askYesNo(in, "Export to CSV? (y/n): ") {
			if err := export.WriteCSVFile(*out, rows); err != nil {
				fmt.Fprintf(os.Stderr, "export failed: %v\n", err)
				continue
			}
			fmt.Printf("Exported %d books to %s\n", len(rows), *out)
		}
	}
}

// buildFilter turns a menu choice into a query filter, re-prompting until
// the argument is valid.
func buildFilter(in *bufio.Scanner, choice string) (repo.Filter, bool) {
	switch choice {
	case "1":
		for {
			s := prompt(in, "Rating (1-5): ")
			rating, err := repo.ParseRating(s)
			if err == nil {
				return repo.ByRating(rating), true
			}
			fmt.Println("Please enter a whole number from 1 to 5.")
		}
	case "2":
		for {
			s := prompt(in, "Maximum price: ")
			limit, err := repo.ParseMaxPrice(s)
			if err == nil {
				return repo.ByMaxPrice(limit), true
			}
			fmt.Println("Please enter a non-negative number.")
		}
	case "3":
		return repo.ByGenreSubstring(prompt(in, "Genre contains: ")), true
	case "4":
		return repo.ByAuthorSubstring(prompt(in, "Author contains: ")), true
	case "5":
		return repo.OnlyInStock(), true
	case "6":
		return repo.All(), true
	default:
		fmt.Println("Unknown option.")
		return repo.Filter{}, false
	}
}

func printRows(rows []repo.BookRow) {
	if len(rows) == 0 {
		fmt.Println("No books matched.")
		return
	}

	fmt.Printf("\n%d book(s):\n\n", len(rows))
	for _, row := range rows {
		authors := row.Authors
		if authors == "" {
			authors = "-"
		}
		fmt.Printf("  %s\n", row.Title)
		fmt.Printf("    %s | %s | rating %d | %s\n", row.Price, row.Genre, row.Rating, row.Stock)
		fmt.Printf("    by %s\n", authors)
		fmt.Printf("    %s\n", row.URL)
	}
	fmt.Println()
}

func prompt(in *bufio.Scanner, label string) string {
	fmt.Print(label)
	if !in.Scan() {
		// EOF on stdin behaves like choosing exit.
		fmt.Println()
		os.Exit(0)
	}
	return strings.TrimSpace(in.Text())
}

func askYesNo(in *bufio.Scanner, label string) bool {
	for {
		switch strings.ToLower(prompt(in, label)) {
		case "y", "yes":
			return true
		case "n", "no":
			return false
		}
		fmt.Println("Please answer y or n.")
	}
}
