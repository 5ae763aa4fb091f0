package database

import (
	"database/sql"
	"fmt"
	"log/slog"

	_ "github.com/lib/pq"

	"movie-catalog-service/internal/config"
)

// NewPostgres creates a new PostgreSQL connection and runs migrations.
func NewPostgres(cfg config.DBConfig) (*sql.DB, error) {
	db, err := sql.Open("postgres", cfg.DSN())
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(10)

	slog.Info("connected to PostgreSQL", "db", cfg.DBName)

	if err := runMigrations(db); err != nil {
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}

	if err := seedMovies(db); err != nil {
		return nil, fmt.Errorf("failed to seed movies: %w", err)
	}

	return db, nil
}

func runMigrations(db *sql.DB) error {
	migrations := []string{
		`CREATE TABLE IF NOT EXISTS movies (
			id SERIAL PRIMARY KEY,
			title VARCHAR(500) NOT NULL,
			description TEXT NOT NULL,
			genres VARCHAR(255) DEFAULT '',
			year VARCHAR(10) DEFAULT '',
			thumbnail VARCHAR(500) DEFAULT '',
			featured BOOLEAN NOT NULL DEFAULT FALSE,
			video_path VARCHAR(500) DEFAULT '',
			poster_path VARCHAR(500) DEFAULT '',
			created_at TIMESTAMP NOT NULL DEFAULT NOW()
		)`,
		// Indexes for common query patterns
		`CREATE INDEX IF NOT EXISTS idx_movies_created_at ON movies(created_at)`,
		`CREATE INDEX IF NOT EXISTS idx_movies_featured ON movies(featured)`,
	}

	for _, m := range migrations {
		if _, err := db.Exec(m); err != nil {
			return fmt.Errorf("migration failed: %w\nSQL: %s", err, m)
		}
	}

	slog.Info("database migrations completed")
	return nil
}

// seedMovies inserts a handful of sample movies so a fresh install
// does not start with an empty gallery. Runs only when the table is empty.
func seedMovies(db *sql.DB) error {
	var count int
	if err := db.QueryRow(`SELECT COUNT(*) FROM movies`).Scan(&count); err != nil {
		return err
	}
	if count > 0 {
		return nil
	}

	seeds := []struct {
		title, description, genres, year string
		featured                         bool
	}{
		{
			title:       "The Pickup - VJ Junior",
			description: "Action-packed comedy where a risky job turns into the heist of a lifetime.",
			genres:      "Action, Comedy",
			year:        "2025",
			featured:    true,
		},
		{
			title:       "Playdate",
			description: "A mysterious invitation leads to an unforgettable night.",
			genres:      "Thriller, Drama",
			year:        "2024",
		},
		{
			title:       "Healer",
			description: "A gifted healer must choose between power and peace.",
			genres:      "Fantasy, Adventure",
			year:        "2023",
		},
	}

	for _, s := range seeds {
		_, err := db.Exec(`
			INSERT INTO movies (title, description, genres, year, featured)
			VALUES ($1, $2, $3, $4, $5)
		`, s.title, s.description, s.genres, s.year, s.featured)
		if err != nil {
			return err
		}
	}

	slog.Info("seeded sample movies", "count", len(seeds))
	return nil
}
