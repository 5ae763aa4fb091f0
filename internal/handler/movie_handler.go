package handler

import (
	"errors"
	"log/slog"
	"mime/multipart"
	"strconv"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v3"

	"movie-catalog-service/internal/models"
	"movie-catalog-service/internal/repository"
	"movie-catalog-service/internal/service"
	"movie-catalog-service/internal/storage"
)

// MovieHandler handles HTTP requests for the movie catalog.
type MovieHandler struct {
	svc      *service.MovieService
	validate *validator.Validate
}

// NewMovieHandler creates a new MovieHandler.
func NewMovieHandler(svc *service.MovieService, validate *validator.Validate) *MovieHandler {
	return &MovieHandler{svc: svc, validate: validate}
}

// ErrorResponse is the standard error response format.
type ErrorResponse struct {
	Error string `json:"error"`
}

// Health returns service health status.
func (h *MovieHandler) Health(c fiber.Ctx) error {
	return c.JSON(fiber.Map{
		"status":  "ok",
		"service": "movie-catalog-service",
	})
}

// ListMovies returns every movie, newest first, as a JSON array.
func (h *MovieHandler) ListMovies(c fiber.Ctx) error {
	movies, err := h.svc.ListMovies()
	if err != nil {
		slog.Error("failed to list movies", "error", err)
		return c.Status(fiber.StatusInternalServerError).JSON(ErrorResponse{
			Error: "failed to retrieve movies",
		})
	}

	return c.JSON(movies)
}

// CreateMovie creates a movie from a multipart form. Text fields travel
// alongside optional video and poster files in the same payload.
func (h *MovieHandler) CreateMovie(c fiber.Ctx) error {
	params := models.CreateMovieParams{
		Title:       strings.TrimSpace(c.FormValue("title")),
		Description: strings.TrimSpace(c.FormValue("description")),
		Genres:      strings.TrimSpace(c.FormValue("genres")),
		Year:        strings.TrimSpace(c.FormValue("year")),
		Thumbnail:   strings.TrimSpace(c.FormValue("thumbnail")),
		Featured:    parseCheckbox(c.FormValue("featured")),
	}

	if err := h.validate.Struct(params); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(ErrorResponse{
			Error: "Title and description are required.",
		})
	}

	movie, err := h.svc.CreateMovie(params, formFile(c, "video"), formFile(c, "poster"))
	if err != nil {
		if errors.Is(err, storage.ErrUnsupportedType) || errors.Is(err, storage.ErrFileTooLarge) {
			return c.Status(fiber.StatusBadRequest).JSON(ErrorResponse{
				Error: err.Error(),
			})
		}
		slog.Error("failed to create movie", "title", params.Title, "error", err)
		return c.Status(fiber.StatusInternalServerError).JSON(ErrorResponse{
			Error: "failed to save movie",
		})
	}

	return c.Status(fiber.StatusCreated).JSON(movie)
}

// DeleteMovie removes a movie and its uploaded files.
func (h *MovieHandler) DeleteMovie(c fiber.Ctx) error {
	id, err := strconv.Atoi(c.Params("id"))
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(ErrorResponse{
			Error: "invalid movie ID",
		})
	}

	if err := h.svc.DeleteMovie(id); err != nil {
		if errors.Is(err, repository.ErrMovieNotFound) {
			return c.Status(fiber.StatusNotFound).JSON(ErrorResponse{
				Error: "movie not found",
			})
		}
		slog.Error("failed to delete movie", "id", id, "error", err)
		return c.Status(fiber.StatusInternalServerError).JSON(ErrorResponse{
			Error: "failed to delete movie",
		})
	}

	return c.JSON(fiber.Map{"success": true})
}

// FeatureMovie marks a movie as the single featured one.
func (h *MovieHandler) FeatureMovie(c fiber.Ctx) error {
	id, err := strconv.Atoi(c.Params("id"))
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(ErrorResponse{
			Error: "invalid movie ID",
		})
	}

	if err := h.svc.FeatureMovie(id); err != nil {
		if errors.Is(err, repository.ErrMovieNotFound) {
			return c.Status(fiber.StatusNotFound).JSON(ErrorResponse{
				Error: "movie not found",
			})
		}
		slog.Error("failed to feature movie", "id", id, "error", err)
		return c.Status(fiber.StatusInternalServerError).JSON(ErrorResponse{
			Error: "failed to feature movie",
		})
	}

	return c.JSON(fiber.Map{"success": true})
}

// formFile returns the named upload or nil when the field is absent.
func formFile(c fiber.Ctx, name string) *multipart.FileHeader {
	fh, err := c.FormFile(name)
	if err != nil {
		return nil
	}
	return fh
}

// parseCheckbox interprets the form value of the featured checkbox.
func parseCheckbox(v string) bool {
	switch strings.ToLower(v) {
	case "true", "1", "on", "yes":
		return true
	}
	return false
}
