package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"sync/atomic"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/go-resty/resty/v2"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/robfig/cron/v3"
	"go.uber.org/zap"

	"github.com/bookstore/services/harvester/internal/config"
	"github.com/bookstore/services/harvester/internal/db"
	"github.com/bookstore/services/harvester/internal/events"
	"github.com/bookstore/services/harvester/internal/harvest"
	"github.com/bookstore/services/harvester/internal/lookup"
	"github.com/bookstore/services/harvester/internal/repo"
	"github.com/bookstore/services/harvester/internal/scrape"
	"github.com/bookstore/services/harvester/pkg/logger"
)

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	// Initialize logger
	log := logger.NewLogger(cfg.ServiceName, cfg.LogLevel)
	defer log.Sync()

	log.Info("Harvester service starting")

	// Connect to database
	log.Info("Connecting to database...")
	database, err := db.Connect(cfg.DBDriver, cfg.DBDSN)
	if err != nil {
		log.Fatal("Failed to connect to database", zap.Error(err))
	}
	defer database.Close()

	// Run migrations
	log.Info("Running database migrations...")
	if err := db.RunMigrations(database); err != nil {
		log.Fatal("Failed to run migrations", zap.Error(err))
	}

	// Initialize repository
	catalogRepo := repo.NewCatalogRepository(database, log)

	// Connect to RabbitMQ
	log.Info("Connecting to RabbitMQ")
	publisher, err := events.NewPublisher(cfg.RabbitMQURL, log)
	if err != nil {
		log.Warn("RabbitMQ unavailable, events disabled", zap.Error(err))
		publisher = nil
	}
	if publisher != nil {
		defer publisher.Close()
	}

	// Build the harvest pipeline
	crawler := scrape.NewCrawler(
		resty.New().SetTimeout(cfg.CatalogTimeout),
		cfg.CatalogBaseURL,
		log,
	)
	booksClient := lookup.NewGoogleBooksClient(
		resty.New().SetTimeout(cfg.LookupTimeout),
		cfg.GoogleBooksBaseURL,
		cfg.GoogleBooksAPIKey,
	)
	resolver := lookup.NewResolver(booksClient, cfg.LookupInterval, log)

	var eventPublisher events.EventPublisher
	if publisher != nil {
		eventPublisher = publisher
	}
	harvester := harvest.NewHarvester(crawler, resolver, catalogRepo, eventPublisher, log)

	// One runner serves both cron and the HTTP trigger so runs never overlap
	runner := newHarvestRunner(harvester, log)

	// Schedule recurring harvests when configured
	scheduler := cron.New()
	if cfg.CronSchedule != "" {
		if _, err := scheduler.AddFunc(cfg.CronSchedule, func() {
			runner.runCategories(context.Background())
		}); err != nil {
			log.Fatal("Invalid cron schedule", zap.Error(err))
		}
		scheduler.Start()
		log.Info("Scheduled harvest enabled", zap.String("schedule", cfg.CronSchedule))
	}

	// HTTP API
	gin.SetMode(gin.ReleaseMode)
	router := gin.New()
	router.Use(gin.Recovery())
	router.GET("/healthz", healthHandler(database, publisher, log))
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))
	router.POST("/harvest", harvestHandler(runner, log))
	router.POST("/books/query", queryHandler(catalogRepo, log))
	router.GET("/stats", statsHandler(catalogRepo, log))

	httpServer := &http.Server{
		Addr:         fmt.Sprintf(":%s", cfg.HTTPPort),
		Handler:      router,
		ReadTimeout:  5 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	go func() {
		log.Info("Starting HTTP server", zap.String("address", httpServer.Addr))
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal("Failed to serve HTTP", zap.Error(err))
		}
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info("Shutting down server...")

	// Graceful shutdown
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	scheduler.Stop()
	if err := httpServer.Shutdown(ctx); err != nil {
		log.Error("HTTP server shutdown error", zap.Error(err))
	}

	log.Info("Server stopped")
}

// harvestRunner serializes harvest runs: the pipeline is single-writer, so
// overlapping runs are rejected rather than queued.
type harvestRunner struct {
	harvester *harvest.Harvester
	running   atomic.Bool
	log       *zap.Logger
}

func newHarvestRunner(h *harvest.Harvester, log *zap.Logger) *harvestRunner {
	return &harvestRunner{harvester: h, log: log}
}

func (r *harvestRunner) runCategories(ctx context.Context) {
	if !r.running.CompareAndSwap(false, true) {
		r.log.Warn("harvest already running, skipping")
		return
	}
	defer r.running.Store(false)

	if _, err := r.harvester.RunCategories(ctx); err != nil {
		r.log.Error("category harvest failed", zap.Error(err))
	}
}

// runPages sweeps the page range once per requested rating.
func (r *harvestRunner) runPages(ctx context.Context, first, last int, ratings []int) {
	if !r.running.CompareAndSwap(false, true) {
		r.log.Warn("harvest already running, skipping")
		return
	}
	defer r.running.Store(false)

	for _, rating := range ratings {
		if _, err := r.harvester.RunPages(ctx, first, last, rating); err != nil {
			r.log.Error("page harvest failed", zap.Int("rating", rating), zap.Error(err))
		}
	}
}

type harvestRequest struct {
	Mode      string `json:"mode" binding:"required,oneof=categories pages"`
	FirstPage int    `json:"first_page"`
	LastPage  int    `json:"last_page"`
	Ratings   []int  `json:"ratings"`
}

// harvestHandler starts a harvest in the background and answers 202. The run
// outlives the request, so it gets its own context.
func harvestHandler(runner *harvestRunner, log *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req harvestRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}

		if req.Mode == "pages" {
			if req.FirstPage < 1 || req.LastPage < req.FirstPage || len(req.Ratings) == 0 {
				c.JSON(http.StatusBadRequest, gin.H{"error": "pages mode needs first_page, last_page and ratings"})
				return
			}
			for _, rating := range req.Ratings {
				if rating < 1 || rating > 5 {
					c.JSON(http.StatusBadRequest, gin.H{"error": "ratings must be between 1 and 5"})
					return
				}
			}
		}

		log.Info("harvest requested", zap.String("mode", req.Mode))
		go func() {
			if req.Mode == "pages" {
				runner.runPages(context.Background(), req.FirstPage, req.LastPage, req.Ratings)
			} else {
				runner.runCategories(context.Background())
			}
		}()

		c.JSON(http.StatusAccepted, gin.H{"status": "harvest started", "mode": req.Mode})
	}
}

type queryRequest struct {
	Rating         *int     `json:"rating"`
	MaxPrice       *float64 `json:"max_price"`
	GenreContains  string   `json:"genre_contains"`
	AuthorContains string   `json:"author_contains"`
	InStock        bool     `json:"in_stock"`
}

func (q queryRequest) filters() []repo.Filter {
	var filters []repo.Filter
	if q.Rating != nil {
		filters = append(filters, repo.ByRating(*q.Rating))
	}
	if q.MaxPrice != nil {
		filters = append(filters, repo.ByMaxPrice(*q.MaxPrice))
	}
	if q.GenreContains != "" {
		filters = append(filters, repo.ByGenreSubstring(q.GenreContains))
	}
	if q.AuthorContains != "" {
		filters = append(filters, repo.ByAuthorSubstring(q.AuthorContains))
	}
	if q.InStock {
		filters = append(filters, repo.OnlyInStock())
	}
	if len(filters) == 0 {
		filters = append(filters, repo.All())
	}
	return filters
}

func queryHandler(catalogRepo *repo.CatalogRepository, log *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req queryRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}

		rows, err := catalogRepo.QueryBooks(c.Request.Context(), req.filters()...)
		if err != nil {
			if errors.Is(err, repo.ErrInvalidFilter) {
				c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
				return
			}
			log.Error("book query failed", zap.Error(err))
			c.JSON(http.StatusInternalServerError, gin.H{"error": "query failed"})
			return
		}

		c.JSON(http.StatusOK, gin.H{"count": len(rows), "books": rows})
	}
}

func statsHandler(catalogRepo *repo.CatalogRepository, log *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		stats, err := catalogRepo.GetStats(c.Request.Context())
		if err != nil {
			log.Error("stats query failed", zap.Error(err))
			c.JSON(http.StatusInternalServerError, gin.H{"error": "stats failed"})
			return
		}
		c.JSON(http.StatusOK, stats)
	}
}

func healthHandler(database *db.DB, publisher *events.Publisher, log *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		// Check database connection
		if err := database.Ping(); err != nil {
			log.Error("Database health check failed", zap.Error(err))
			c.String(http.StatusServiceUnavailable, "unhealthy: database connection failed")
			return
		}

		// Check RabbitMQ connection when events are enabled
		if publisher != nil && !publisher.IsHealthy() {
			log.Error("RabbitMQ health check failed")
			c.String(http.StatusServiceUnavailable, "unhealthy: rabbitmq connection failed")
			return
		}

		c.String(http.StatusOK, "healthy")
	}
}
