package main

import (
	"context"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	"go.uber.org/zap"

	ginprometheus "github.com/zsais/go-gin-prometheus"

	"adventure-server/internal/config"
	"adventure-server/internal/database"
	"adventure-server/internal/engine"
	"adventure-server/internal/handler"
	"adventure-server/internal/logger"
	"adventure-server/internal/prompt"
	"adventure-server/internal/repository"
	"adventure-server/internal/service"
	"adventure-server/migrations"
	"adventure-server/pkg/ai"
	"adventure-server/pkg/migration"
)

func main() {
	// .env is optional; real deployments use the environment directly.
	_ = godotenv.Load()

	cfg, err := config.LoadConfig()
	if err != nil {
		zap.NewExample().Fatal("Failed to load config", zap.Error(err))
	}

	log, err := logger.New(logger.Config{
		Level:    cfg.LogLevel,
		Encoding: cfg.LogEncoding,
	})
	if err != nil {
		zap.NewExample().Fatal("Failed to initialize logger", zap.Error(err))
	}
	defer log.Sync()
	zap.ReplaceGlobals(log)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// --- Storage ---
	pool, err := database.NewPostgresPool(ctx, cfg, log)
	if err != nil {
		log.Fatal("Failed to connect to Postgres", zap.Error(err))
	}
	defer pool.Close()

	migrator := migration.NewMigrator(migration.Config{
		MigrationsPath: ".",
		MigrationsFS:   migrations.FS,
	}, pool, log)
	if err := migrator.Up(ctx); err != nil {
		log.Fatal("Failed to apply migrations", zap.Error(err))
	}

	redisClient, err := database.NewRedisClient(ctx, cfg, log)
	if err != nil {
		log.Fatal("Failed to connect to Redis", zap.Error(err))
	}
	defer redisClient.Close()

	// --- Services ---
	generator, err := ai.NewGenerator(ai.Config{
		Provider:       cfg.AIProvider,
		APIKey:         cfg.AIAPIKey,
		BaseURL:        aiBaseURL(cfg),
		Model:          cfg.AIModel,
		MaxTokens:      cfg.AIMaxTokens,
		Timeout:        cfg.AITimeout,
		RateLimitDelay: cfg.AIRateLimitDelay,
	}, log)
	if err != nil {
		log.Fatal("Failed to create generation client", zap.Error(err))
	}

	prompts, err := prompt.NewBuilder(cfg.PromptTokenBudget)
	if err != nil {
		log.Fatal("Failed to create prompt builder", zap.Error(err))
	}

	seed, err := engine.Seed()
	if err != nil {
		log.Fatal("Failed to seed random source", zap.Error(err))
	}
	selector := engine.NewSelector(engine.NewRand(seed), engine.DefaultTunables())
	sessions := repository.NewRedisSessionRepository(redisClient, log)
	results := repository.NewPgResultRepository(pool, log)

	storyService := service.NewStoryService(
		sessions, results, generator, prompts, selector,
		cfg.MaxParseRetries, log,
	)
	storyHandler := handler.NewStoryHandler(storyService, cfg.JWTSecret, log)

	// --- HTTP server ---
	gin.SetMode(gin.ReleaseMode)
	router := gin.New()
	router.RedirectTrailingSlash = true
	router.Use(handler.RequestLogger(log))
	router.Use(gin.Recovery())

	corsConfig := cors.DefaultConfig()
	corsConfig.AllowOrigins = cfg.CORSAllowedOrigins
	corsConfig.AllowMethods = []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"}
	corsConfig.AllowHeaders = []string{"Origin", "Content-Length", "Content-Type", "Authorization"}
	corsConfig.AllowCredentials = true
	corsConfig.MaxAge = 12 * time.Hour
	router.Use(cors.New(corsConfig))

	healthHandler := func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	}
	router.GET("/health", healthHandler)
	router.HEAD("/health", healthHandler)

	storyHandler.RegisterRoutes(router)

	p := ginprometheus.NewPrometheus("gin")
	p.Use(router)

	srv := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 0, // turns can outlive any fixed write deadline
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		log.Info("Starting HTTP server", zap.String("port", cfg.Port))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal("HTTP server listen error", zap.Error(err))
		}
	}()

	<-ctx.Done()
	log.Info("Shutdown signal received")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error("HTTP server shutdown error", zap.Error(err))
	}
	log.Info("Server stopped")
}

// aiBaseURL picks the endpoint for the configured provider.
func aiBaseURL(cfg *config.Config) string {
	if cfg.AIProvider == "ollama" {
		return cfg.OllamaHost
	}
	return cfg.AIBaseURL
}
