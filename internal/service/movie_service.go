package service

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"mime/multipart"
	"time"

	"github.com/redis/go-redis/v9"

	"movie-catalog-service/internal/models"
	"movie-catalog-service/internal/repository"
	"movie-catalog-service/internal/storage"
)

const (
	movieListCacheKey = "movies:list"
	movieListCacheTTL = 1 * time.Minute
)

// MovieService handles business logic for the movie catalog.
type MovieService struct {
	store   repository.MovieStore
	uploads *storage.Store
	redis   *redis.Client
}

// NewMovieService creates a new MovieService.
func NewMovieService(store repository.MovieStore, uploads *storage.Store, rdb *redis.Client) *MovieService {
	return &MovieService{
		store:   store,
		uploads: uploads,
		redis:   rdb,
	}
}

// ListMovies returns all movies, newest first.
func (s *MovieService) ListMovies() ([]models.Movie, error) {
	// Try Redis cache
	if cached, err := s.getFromCache(movieListCacheKey); err == nil {
		var movies []models.Movie
		if json.Unmarshal([]byte(cached), &movies) == nil {
			slog.Debug("cache hit", "key", movieListCacheKey)
			return movies, nil
		}
	}

	movies, err := s.store.ListMovies()
	if err != nil {
		return nil, fmt.Errorf("failed to list movies: %w", err)
	}

	if data, err := json.Marshal(movies); err == nil {
		s.setCache(movieListCacheKey, string(data), movieListCacheTTL)
	}

	return movies, nil
}

// CreateMovie persists the uploaded files and inserts the movie record.
// Files are written first; when the insert fails they are removed again,
// so a failed create leaves no orphan on disk.
func (s *MovieService) CreateMovie(params models.CreateMovieParams, video, poster *multipart.FileHeader) (*models.Movie, error) {
	var videoPath, posterPath string

	if video != nil {
		p, err := s.uploads.Save(video, storage.KindVideo)
		if err != nil {
			return nil, err
		}
		videoPath = p
	}
	if poster != nil {
		p, err := s.uploads.Save(poster, storage.KindPoster)
		if err != nil {
			s.discard(videoPath)
			return nil, err
		}
		posterPath = p
	}

	movie := &models.Movie{
		Title:       params.Title,
		Description: params.Description,
		Genres:      params.Genres,
		Year:        params.Year,
		Thumbnail:   params.Thumbnail,
		Featured:    params.Featured,
		VideoPath:   videoPath,
		PosterPath:  posterPath,
	}

	if err := s.store.CreateMovie(movie); err != nil {
		s.discard(videoPath)
		s.discard(posterPath)
		return nil, fmt.Errorf("failed to create movie: %w", err)
	}

	s.invalidateCache()
	slog.Info("movie created", "id", movie.ID, "title", movie.Title, "featured", movie.Featured)
	return movie, nil
}

// DeleteMovie removes the record and then its upload files. The row goes
// first; file removal is best-effort and a leftover file is picked up by
// the next SweepOrphans pass.
func (s *MovieService) DeleteMovie(id int) error {
	movie, err := s.store.DeleteMovie(id)
	if err != nil {
		return err
	}

	s.discard(movie.VideoPath)
	s.discard(movie.PosterPath)

	s.invalidateCache()
	slog.Info("movie deleted", "id", id)
	return nil
}

// FeatureMovie marks one movie as featured, clearing the flag everywhere else.
func (s *MovieService) FeatureMovie(id int) error {
	if err := s.store.SetFeatured(id); err != nil {
		return err
	}

	s.invalidateCache()
	slog.Info("movie featured", "id", id)
	return nil
}

// SweepOrphans deletes upload files that no movie record references.
// Run at startup to reconcile after an unclean shutdown.
func (s *MovieService) SweepOrphans() (int, error) {
	movies, err := s.store.ListMovies()
	if err != nil {
		return 0, fmt.Errorf("failed to list movies for sweep: %w", err)
	}

	referenced := make(map[string]bool, len(movies)*2)
	for _, m := range movies {
		if m.VideoPath != "" {
			referenced[m.VideoPath] = true
		}
		if m.PosterPath != "" {
			referenced[m.PosterPath] = true
		}
	}

	return s.uploads.Sweep(referenced)
}

func (s *MovieService) discard(publicPath string) {
	if publicPath == "" {
		return
	}
	if err := s.uploads.Remove(publicPath); err != nil {
		slog.Error("failed to remove upload file", "path", publicPath, "error", err)
	}
}

// ---- Redis Helpers ----

func (s *MovieService) getFromCache(key string) (string, error) {
	if s.redis == nil {
		return "", fmt.Errorf("redis not available")
	}
	return s.redis.Get(context.Background(), key).Result()
}

func (s *MovieService) setCache(key, value string, ttl time.Duration) {
	if s.redis == nil {
		return
	}
	if err := s.redis.Set(context.Background(), key, value, ttl).Err(); err != nil {
		slog.Error("failed to set cache", "key", key, "error", err)
	}
}

func (s *MovieService) invalidateCache() {
	if s.redis == nil {
		return
	}
	if err := s.redis.Del(context.Background(), movieListCacheKey).Err(); err != nil {
		slog.Error("failed to invalidate cache", "key", movieListCacheKey, "error", err)
	}
}
