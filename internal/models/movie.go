package models

import "time"

// Movie represents a movie stored in our database.
type Movie struct {
	ID          int       `json:"id"`
	Title       string    `json:"title"`
	Description string    `json:"description"`
	Genres      string    `json:"genres"`
	Year        string    `json:"year"`
	Thumbnail   string    `json:"thumbnail"`
	Featured    bool      `json:"featured"`
	VideoPath   string    `json:"video_path"`
	PosterPath  string    `json:"poster_path"`
	CreatedAt   time.Time `json:"created_at"`
}

// CreateMovieParams holds the text fields of the movie creation form.
// File fields (video, poster) travel alongside these in the same
// multipart payload and are handled separately.
type CreateMovieParams struct {
	Title       string `validate:"required,max=500"`
	Description string `validate:"required"`
	Genres      string `validate:"omitempty,max=255"`
	Year        string `validate:"omitempty,max=10"`
	Thumbnail   string `validate:"omitempty,max=500"`
	Featured    bool
}
