package repository

import (
	"database/sql"
	"errors"
	"fmt"
	"log/slog"

	"movie-catalog-service/internal/models"
)

// ErrMovieNotFound is returned when the requested movie id does not exist.
var ErrMovieNotFound = errors.New("movie not found")

// MovieStore defines the persistence operations the service layer needs.
type MovieStore interface {
	ListMovies() ([]models.Movie, error)
	CreateMovie(m *models.Movie) error
	DeleteMovie(id int) (*models.Movie, error)
	SetFeatured(id int) error
}

// MovieRepository handles database operations for movies.
type MovieRepository struct {
	db *sql.DB
}

// NewMovieRepository creates a new MovieRepository.
func NewMovieRepository(db *sql.DB) *MovieRepository {
	return &MovieRepository{db: db}
}

const movieColumns = `id, title, description, genres, year, thumbnail, featured, video_path, poster_path, created_at`

func scanMovie(row interface{ Scan(...any) error }, m *models.Movie) error {
	return row.Scan(
		&m.ID, &m.Title, &m.Description, &m.Genres, &m.Year,
		&m.Thumbnail, &m.Featured, &m.VideoPath, &m.PosterPath, &m.CreatedAt,
	)
}

// ListMovies returns all movies, newest first. Same-instant timestamps
// fall back to id order so insertion order is never ambiguous.
func (r *MovieRepository) ListMovies() ([]models.Movie, error) {
	rows, err := r.db.Query(fmt.Sprintf(`
		SELECT %s FROM movies
		ORDER BY created_at DESC, id DESC
	`, movieColumns))
	if err != nil {
		return nil, fmt.Errorf("list query failed: %w", err)
	}
	defer rows.Close()

	movies := make([]models.Movie, 0)
	for rows.Next() {
		var m models.Movie
		if err := scanMovie(rows, &m); err != nil {
			slog.Error("failed to scan movie row", "error", err)
			continue
		}
		movies = append(movies, m)
	}

	return movies, rows.Err()
}

// CreateMovie inserts a new movie and fills in its id and created_at.
// When the movie is flagged featured, every other featured flag is cleared
// in the same transaction so at most one movie is ever featured.
func (r *MovieRepository) CreateMovie(m *models.Movie) error {
	tx, err := r.db.Begin()
	if err != nil {
		return fmt.Errorf("begin failed: %w", err)
	}
	defer tx.Rollback()

	if m.Featured {
		if _, err := tx.Exec(`UPDATE movies SET featured = FALSE WHERE featured`); err != nil {
			return fmt.Errorf("failed to clear featured flags: %w", err)
		}
	}

	err = tx.QueryRow(`
		INSERT INTO movies (title, description, genres, year, thumbnail, featured, video_path, poster_path)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		RETURNING id, created_at
	`, m.Title, m.Description, m.Genres, m.Year, m.Thumbnail, m.Featured, m.VideoPath, m.PosterPath).
		Scan(&m.ID, &m.CreatedAt)
	if err != nil {
		return fmt.Errorf("insert failed: %w", err)
	}

	return tx.Commit()
}

// DeleteMovie removes the row and returns the deleted record so the caller
// can clean up any referenced upload files.
func (r *MovieRepository) DeleteMovie(id int) (*models.Movie, error) {
	var m models.Movie
	row := r.db.QueryRow(fmt.Sprintf(`
		DELETE FROM movies WHERE id = $1
		RETURNING %s
	`, movieColumns), id)
	if err := scanMovie(row, &m); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrMovieNotFound
		}
		return nil, fmt.Errorf("delete failed: %w", err)
	}
	return &m, nil
}

// SetFeatured marks one movie as featured and clears the flag everywhere
// else, in a single transaction. An unknown id rolls back without touching
// any existing flag.
func (r *MovieRepository) SetFeatured(id int) error {
	tx, err := r.db.Begin()
	if err != nil {
		return fmt.Errorf("begin failed: %w", err)
	}
	defer tx.Rollback()

	res, err := tx.Exec(`UPDATE movies SET featured = TRUE WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("failed to set featured flag: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return ErrMovieNotFound
	}

	if _, err := tx.Exec(`UPDATE movies SET featured = FALSE WHERE featured AND id <> $1`, id); err != nil {
		return fmt.Errorf("failed to clear featured flags: %w", err)
	}

	return tx.Commit()
}
