package main

import (
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v3"
	"github.com/gofiber/fiber/v3/middleware/cors"
	"github.com/gofiber/fiber/v3/middleware/logger"
	"github.com/gofiber/fiber/v3/middleware/recover"
	"github.com/gofiber/fiber/v3/middleware/static"

	"movie-catalog-service/internal/config"
	"movie-catalog-service/internal/database"
	"movie-catalog-service/internal/handler"
	"movie-catalog-service/internal/repository"
	"movie-catalog-service/internal/service"
	"movie-catalog-service/internal/storage"
)

func main() {
	// Structured logging
	slog.SetDefault(slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo})))

	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	// Connect to PostgreSQL
	db, err := database.NewPostgres(cfg.DB)
	if err != nil {
		slog.Error("failed to connect to PostgreSQL", "error", err)
		os.Exit(1)
	}
	defer db.Close()

	// Connect to Redis (non-fatal if unavailable)
	rdb, err := database.NewRedis(cfg.Redis)
	if err != nil {
		slog.Warn("Redis unavailable, running without cache", "error", err)
	}

	// Upload store for poster/video files
	uploads, err := storage.New(cfg.UploadsDir)
	if err != nil {
		slog.Error("failed to create upload store", "error", err)
		os.Exit(1)
	}

	// Initialize layers
	repo := repository.NewMovieRepository(db)
	svc := service.NewMovieService(repo, uploads, rdb)
	h := handler.NewMovieHandler(svc, validator.New())

	// Reconcile upload files orphaned by an earlier unclean shutdown
	if removed, err := svc.SweepOrphans(); err != nil {
		slog.Warn("orphan sweep failed", "error", err)
	} else if removed > 0 {
		slog.Info("removed orphaned upload files", "count", removed)
	}

	// Create Fiber app
	app := fiber.New(fiber.Config{
		AppName:      "Movie Catalog Service",
		ServerHeader: "Movie-Catalog",
		// Room for one video and one poster per create call
		BodyLimit: 2*storage.MaxFileSize + (1 << 20),
		ErrorHandler: func(c fiber.Ctx, err error) error {
			code := fiber.StatusInternalServerError
			if e, ok := err.(*fiber.Error); ok {
				code = e.Code
			}
			slog.Error("unhandled error", "error", err, "status", code)
			return c.Status(code).JSON(handler.ErrorResponse{Error: err.Error()})
		},
	})

	// Middleware
	app.Use(recover.New())
	app.Use(logger.New())
	app.Use(cors.New())

	// API routes
	api := app.Group("/api")
	api.Get("/health", h.Health)
	api.Get("/movies", h.ListMovies)
	api.Post("/movies", h.CreateMovie)
	api.Delete("/movies/:id", h.DeleteMovie)
	api.Post("/movies/:id/feature", h.FeatureMovie)

	// Uploaded assets and the browser front end
	app.Use("/uploads", static.New(cfg.UploadsDir))
	app.Use("/", static.New(cfg.WebDir))

	// Graceful shutdown
	go func() {
		sigChan := make(chan os.Signal, 1)
		signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
		<-sigChan
		slog.Info("shutting down movie catalog service...")
		_ = app.Shutdown()
	}()

	// Start server
	addr := ":" + cfg.Port
	slog.Info("starting movie catalog service", "addr", addr)
	if err := app.Listen(addr); err != nil {
		slog.Error("server error", "error", err)
		os.Exit(1)
	}
}
