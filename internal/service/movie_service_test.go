package service

import (
	"bytes"
	"errors"
	"mime/multipart"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"

	"movie-catalog-service/internal/models"
	"movie-catalog-service/internal/repository"
	"movie-catalog-service/internal/storage"
)

var (
	mp4Bytes = append([]byte{0, 0, 0, 0x18, 'f', 't', 'y', 'p', 'i', 's', 'o', 'm', 0, 0, 2, 0},
		[]byte("isomiso2avc1mp41")...)
	pngBytes = append([]byte{0x89, 'P', 'N', 'G', '\r', '\n', 0x1a, '\n'},
		bytes.Repeat([]byte{0}, 32)...)
)

// fakeStore is an in-memory MovieStore. It keeps newest-first order and
// honors the at-most-one-featured invariant the way the SQL store does.
type fakeStore struct {
	movies    []models.Movie
	nextID    int
	createErr error
}

func (f *fakeStore) ListMovies() ([]models.Movie, error) {
	out := make([]models.Movie, len(f.movies))
	copy(out, f.movies)
	return out, nil
}

func (f *fakeStore) CreateMovie(m *models.Movie) error {
	if f.createErr != nil {
		return f.createErr
	}
	if m.Featured {
		for i := range f.movies {
			f.movies[i].Featured = false
		}
	}
	f.nextID++
	m.ID = f.nextID
	m.CreatedAt = time.Now()
	f.movies = append([]models.Movie{*m}, f.movies...)
	return nil
}

func (f *fakeStore) DeleteMovie(id int) (*models.Movie, error) {
	for i, m := range f.movies {
		if m.ID == id {
			f.movies = append(f.movies[:i], f.movies[i+1:]...)
			cp := m
			return &cp, nil
		}
	}
	return nil, repository.ErrMovieNotFound
}

func (f *fakeStore) SetFeatured(id int) error {
	found := false
	for _, m := range f.movies {
		if m.ID == id {
			found = true
			break
		}
	}
	if !found {
		return repository.ErrMovieNotFound
	}
	for i := range f.movies {
		f.movies[i].Featured = f.movies[i].ID == id
	}
	return nil
}

func newServiceForTest(t *testing.T) (*MovieService, *fakeStore, string) {
	t.Helper()
	root := t.TempDir()
	uploads, err := storage.New(root)
	require.NoError(t, err)
	st := &fakeStore{}
	return NewMovieService(st, uploads, nil), st, root
}

// newCachedServiceForTest backs the service with a real Redis protocol
// implementation so the cache read/invalidate paths are exercised.
func newCachedServiceForTest(t *testing.T) (*MovieService, *fakeStore) {
	t.Helper()
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })

	uploads, err := storage.New(t.TempDir())
	require.NoError(t, err)
	st := &fakeStore{}
	return NewMovieService(st, uploads, rdb), st
}

func fileHeader(t *testing.T, field, filename string, content []byte) *multipart.FileHeader {
	t.Helper()

	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)
	part, err := w.CreateFormFile(field, filename)
	require.NoError(t, err)
	_, err = part.Write(content)
	require.NoError(t, err)
	require.NoError(t, w.Close())

	form, err := multipart.NewReader(&buf, w.Boundary()).ReadForm(32 << 20)
	require.NoError(t, err)
	t.Cleanup(func() { _ = form.RemoveAll() })

	return form.File[field][0]
}

func countFiles(t *testing.T, root, sub string) int {
	t.Helper()
	entries, err := os.ReadDir(filepath.Join(root, sub))
	require.NoError(t, err)
	n := 0
	for _, e := range entries {
		if !e.IsDir() {
			n++
		}
	}
	return n
}

func TestCreateMovie_PersistsFilesAndRecord(t *testing.T) {
	svc, st, root := newServiceForTest(t)

	movie, err := svc.CreateMovie(
		models.CreateMovieParams{Title: "Test", Description: "d", Genres: "Action", Year: "2025"},
		fileHeader(t, "video", "trailer.mp4", mp4Bytes),
		fileHeader(t, "poster", "cover.png", pngBytes),
	)
	require.NoError(t, err)
	require.Equal(t, 1, movie.ID)
	require.Contains(t, movie.VideoPath, "/uploads/videos/")
	require.Contains(t, movie.PosterPath, "/uploads/posters/")

	require.Equal(t, 1, countFiles(t, root, "videos"))
	require.Equal(t, 1, countFiles(t, root, "posters"))
	require.Len(t, st.movies, 1)
	require.Equal(t, movie.VideoPath, st.movies[0].VideoPath)
}

func TestCreateMovie_NoFiles(t *testing.T) {
	svc, _, _ := newServiceForTest(t)

	movie, err := svc.CreateMovie(models.CreateMovieParams{Title: "Test", Description: "d"}, nil, nil)
	require.NoError(t, err)
	require.Empty(t, movie.VideoPath)
	require.Empty(t, movie.PosterPath)
}

func TestCreateMovie_WrongVideoType_NothingPersisted(t *testing.T) {
	svc, st, root := newServiceForTest(t)

	_, err := svc.CreateMovie(
		models.CreateMovieParams{Title: "Test", Description: "d"},
		fileHeader(t, "video", "fake.mp4", pngBytes),
		nil,
	)
	require.ErrorIs(t, err, storage.ErrUnsupportedType)
	require.Empty(t, st.movies)
	require.Zero(t, countFiles(t, root, "videos"))
}

func TestCreateMovie_BadPosterDiscardsSavedVideo(t *testing.T) {
	svc, st, root := newServiceForTest(t)

	_, err := svc.CreateMovie(
		models.CreateMovieParams{Title: "Test", Description: "d"},
		fileHeader(t, "video", "trailer.mp4", mp4Bytes),
		fileHeader(t, "poster", "notes.txt", []byte("not an image")),
	)
	require.ErrorIs(t, err, storage.ErrUnsupportedType)
	require.Empty(t, st.movies)
	require.Zero(t, countFiles(t, root, "videos"))
	require.Zero(t, countFiles(t, root, "posters"))
}

func TestCreateMovie_InsertFailureRemovesFiles(t *testing.T) {
	svc, st, root := newServiceForTest(t)
	st.createErr = errors.New("insert failed")

	_, err := svc.CreateMovie(
		models.CreateMovieParams{Title: "Test", Description: "d"},
		fileHeader(t, "video", "trailer.mp4", mp4Bytes),
		fileHeader(t, "poster", "cover.png", pngBytes),
	)
	require.Error(t, err)
	require.Zero(t, countFiles(t, root, "videos"))
	require.Zero(t, countFiles(t, root, "posters"))
}

func TestDeleteMovie_RemovesFiles(t *testing.T) {
	svc, st, root := newServiceForTest(t)

	movie, err := svc.CreateMovie(
		models.CreateMovieParams{Title: "Test", Description: "d"},
		fileHeader(t, "video", "trailer.mp4", mp4Bytes),
		fileHeader(t, "poster", "cover.png", pngBytes),
	)
	require.NoError(t, err)

	require.NoError(t, svc.DeleteMovie(movie.ID))
	require.Empty(t, st.movies)
	require.Zero(t, countFiles(t, root, "videos"))
	require.Zero(t, countFiles(t, root, "posters"))
}

func TestDeleteMovie_NotFound(t *testing.T) {
	svc, _, _ := newServiceForTest(t)
	require.ErrorIs(t, svc.DeleteMovie(42), repository.ErrMovieNotFound)
}

func TestFeatureMovie_AtMostOneFeatured(t *testing.T) {
	svc, st, _ := newServiceForTest(t)

	a, err := svc.CreateMovie(models.CreateMovieParams{Title: "A", Description: "d"}, nil, nil)
	require.NoError(t, err)
	b, err := svc.CreateMovie(models.CreateMovieParams{Title: "B", Description: "d", Featured: true}, nil, nil)
	require.NoError(t, err)

	featured := 0
	for _, m := range st.movies {
		if m.Featured {
			featured++
			require.Equal(t, b.ID, m.ID)
		}
	}
	require.Equal(t, 1, featured)

	require.NoError(t, svc.FeatureMovie(a.ID))
	featured = 0
	for _, m := range st.movies {
		if m.Featured {
			featured++
			require.Equal(t, a.ID, m.ID)
		}
	}
	require.Equal(t, 1, featured)
}

func TestFeatureMovie_NotFound(t *testing.T) {
	svc, st, _ := newServiceForTest(t)

	_, err := svc.CreateMovie(models.CreateMovieParams{Title: "A", Description: "d", Featured: true}, nil, nil)
	require.NoError(t, err)

	require.ErrorIs(t, svc.FeatureMovie(99), repository.ErrMovieNotFound)
	// The existing flag survives a not-found feature call.
	require.True(t, st.movies[0].Featured)
}

func TestListMovies_ServedFromCache(t *testing.T) {
	svc, st := newCachedServiceForTest(t)

	_, err := svc.CreateMovie(models.CreateMovieParams{Title: "Cached", Description: "d"}, nil, nil)
	require.NoError(t, err)

	movies, err := svc.ListMovies()
	require.NoError(t, err)
	require.Len(t, movies, 1)

	// Empty the store behind the service's back: a fresh listing must come
	// out of the cache, not hit the store again.
	st.movies = nil

	movies, err = svc.ListMovies()
	require.NoError(t, err)
	require.Len(t, movies, 1)
	require.Equal(t, "Cached", movies[0].Title)
}

func TestCreateMovie_InvalidatesCache(t *testing.T) {
	svc, _ := newCachedServiceForTest(t)

	movies, err := svc.ListMovies()
	require.NoError(t, err)
	require.Empty(t, movies)

	_, err = svc.CreateMovie(models.CreateMovieParams{Title: "New", Description: "d"}, nil, nil)
	require.NoError(t, err)

	movies, err = svc.ListMovies()
	require.NoError(t, err)
	require.Len(t, movies, 1, "listing after create must not serve the stale cached list")
}

func TestDeleteMovie_InvalidatesCache(t *testing.T) {
	svc, _ := newCachedServiceForTest(t)

	movie, err := svc.CreateMovie(models.CreateMovieParams{Title: "Doomed", Description: "d"}, nil, nil)
	require.NoError(t, err)

	movies, err := svc.ListMovies()
	require.NoError(t, err)
	require.Len(t, movies, 1)

	require.NoError(t, svc.DeleteMovie(movie.ID))

	movies, err = svc.ListMovies()
	require.NoError(t, err)
	require.Empty(t, movies, "listing after delete must not serve the stale cached list")
}

func TestFeatureMovie_InvalidatesCache(t *testing.T) {
	svc, _ := newCachedServiceForTest(t)

	a, err := svc.CreateMovie(models.CreateMovieParams{Title: "A", Description: "d"}, nil, nil)
	require.NoError(t, err)
	_, err = svc.CreateMovie(models.CreateMovieParams{Title: "B", Description: "d", Featured: true}, nil, nil)
	require.NoError(t, err)

	movies, err := svc.ListMovies()
	require.NoError(t, err)
	require.True(t, movies[0].Featured, "B leads and is featured")

	require.NoError(t, svc.FeatureMovie(a.ID))

	movies, err = svc.ListMovies()
	require.NoError(t, err)
	require.False(t, movies[0].Featured)
	require.True(t, movies[1].Featured, "feature must be visible on the next listing")
}

func TestSweepOrphans(t *testing.T) {
	svc, _, root := newServiceForTest(t)

	movie, err := svc.CreateMovie(
		models.CreateMovieParams{Title: "Test", Description: "d"},
		nil,
		fileHeader(t, "poster", "cover.png", pngBytes),
	)
	require.NoError(t, err)

	// A file from a crashed earlier run that no row references.
	stray := filepath.Join(root, "videos", "video-0-deadbeef.mp4")
	require.NoError(t, os.WriteFile(stray, mp4Bytes, 0o644))

	removed, err := svc.SweepOrphans()
	require.NoError(t, err)
	require.Equal(t, 1, removed)

	_, err = os.Stat(stray)
	require.True(t, os.IsNotExist(err))
	// The referenced poster survives the sweep.
	_, err = os.Stat(filepath.Join(root, "posters", filepath.Base(movie.PosterPath)))
	require.NoError(t, err)
}
