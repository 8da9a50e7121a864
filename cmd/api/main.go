package main

import (
	"context"
	"log"
	"time"

	"github.com/gofiber/contrib/otelfiber"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	_ "github.com/joho/godotenv/autoload"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"afterme/internal/config"
	"afterme/internal/database"
	"afterme/internal/database/migration"
	handlers "afterme/internal/http/handler"
	"afterme/internal/http/middleware"
	"afterme/internal/otel"
	"afterme/internal/repository/postgres"
	"afterme/internal/service"
	"afterme/internal/storage"
)

func main() {
	// Load configuration from environment variables (.env auto-loaded if present)
	cfg := config.Load()

	ctx := context.Background()

	// Initialize OpenTelemetry tracing; degrades to noop if the exporter
	// cannot be reached.
	shutdownTracing, err := otel.Init(ctx, time.UTC)
	if err != nil {
		log.Fatalf("failed to initialize tracing: %v", err)
	}
	defer shutdownTracing(ctx)

	// Initialize PostgreSQL connection (with pooling via database/sql)
	db, err := database.NewPostgres(cfg.Database)
	if err != nil {
		log.Fatalf("failed to connect to database: %v", err)
	}
	defer db.Close()

	// Apply schema migrations on startup
	if err := migration.EnsureMigrated(ctx, db, time.UTC, cfg.Database.Host); err != nil {
		log.Fatalf("failed to migrate database: %v", err)
	}

	// Initialize reusable S3-compatible object storage client (MinIO-supported)
	objStore, err := storage.NewMinIO(cfg.MinIO)
	if err != nil {
		log.Fatalf("failed to initialize object storage: %v", err)
	}

	// Initialize repositories and services
	docRepo := postgres.NewDocumentPostgres(db)
	userRepo := postgres.NewUserPostgres(db)
	docSvc := service.NewDocumentService(objStore, docRepo, cfg.Upload)
	shareSvc := service.NewSharingService(docRepo, userRepo)
	reportSvc := service.NewReportService(docRepo)

	app := fiber.New(fiber.Config{
		ErrorHandler: handlers.ErrorHandler(),
	})

	// Register global middleware
	// RequestID middleware adds/propagates X-Request-ID and stores it in context
	app.Use(middleware.RequestID())
	// JSON Logger middleware for structured request logs
	app.Use(middleware.Logger())
	app.Use(otelfiber.Middleware())

	// Prometheus request counting and scrape endpoint
	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	promMW, err := middleware.NewPrometheusMiddleware(registry)
	if err != nil {
		log.Fatalf("failed to register prometheus metrics: %v", err)
	}
	app.Use(promMW.Handler())
	app.Get("/metrics", adaptor.HTTPHandler(promhttp.HandlerFor(registry, promhttp.HandlerOpts{})))

	// Register HTTP routes with injected services; /documents requires a
	// verified bearer token
	handlers.RegisterRoutes(app, db, docSvc, shareSvc, reportSvc, middleware.BearerAuth(cfg.Auth.JWTSecret))

	addr := ":" + cfg.Port

	if err := app.Listen(addr); err != nil {
		log.Fatalf("failed to start server: %v", err)
	}
}
