package main

import (
	"context"
	"encoding/json"
	"log"
	"os"
	"path/filepath"
	"strings"

	"gosobol/adapters/postgres"
	"gosobol/domain/gsa"
	"gosobol/internal/migration"

	"github.com/jmoiron/sqlx"
	"github.com/joho/godotenv"
	_ "github.com/lib/pq"
)

func main() {
	godotenv.Load()

	databaseURL := os.Getenv("DATABASE_URL")
	var summariesDir string
	switch len(os.Args) {
	case 1:
	case 2:
		summariesDir = os.Args[1]
	default:
		databaseURL, summariesDir = os.Args[1], os.Args[2]
	}
	if databaseURL == "" {
		log.Fatal("Usage: migrate [database_url] [run_summaries_dir] (or set DATABASE_URL)")
	}

	ctx := context.Background()
	db, err := sqlx.Connect("postgres", databaseURL)
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}
	defer db.Close()

	migrator := migration.NewRunner()
	if err := migrator.Run(ctx, db); err != nil {
		log.Fatalf("Migration failed: %v", err)
	}
	log.Printf("Schema %s applied", migrator.Version())

	if summariesDir == "" {
		return
	}

	// Import run summaries written by `gosobol run --format json`.
	files, err := findSummaryFiles(summariesDir)
	if err != nil {
		log.Fatalf("Failed to find run summaries: %v", err)
	}
	log.Printf("Found %d run summaries to import", len(files))

	repo := postgres.NewRunRepository(db)
	imported, skipped := 0, 0
	for _, file := range files {
		run, err := loadSummary(file)
		if err != nil {
			log.Printf("Failed to load run from %s: %v", file, err)
			skipped++
			continue
		}
		if err := repo.SaveRun(ctx, run); err != nil {
			log.Printf("Failed to save run %s: %v", run.ID, err)
			skipped++
			continue
		}
		imported++
		log.Printf("Imported run %s from %s", run.ID, filepath.Base(file))
	}

	log.Printf("Import complete: %d imported, %d skipped", imported, skipped)
}

func findSummaryFiles(dir string) ([]string, error) {
	var files []string
	err := filepath.Walk(dir, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if !info.IsDir() && strings.HasSuffix(path, ".json") {
			files = append(files, path)
		}
		return nil
	})
	return files, err
}

func loadSummary(path string) (*gsa.RunSummary, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var run gsa.RunSummary
	if err := json.Unmarshal(data, &run); err != nil {
		return nil, err
	}
	if run.ID == "" {
		return nil, os.ErrInvalid
	}
	return &run, nil
}
