package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	dispatchapp "github.com/pingboard/backend/internal/application/dispatch"
	enrollmentapp "github.com/pingboard/backend/internal/application/enrollment"
	identityapp "github.com/pingboard/backend/internal/application/identity"
	pingapp "github.com/pingboard/backend/internal/application/ping"
	studyapp "github.com/pingboard/backend/internal/application/study"
	pingdomain "github.com/pingboard/backend/internal/domain/ping"
	"github.com/pingboard/backend/internal/infrastructure/auth"
	"github.com/pingboard/backend/internal/infrastructure/config"
	"github.com/pingboard/backend/internal/infrastructure/logger"
	"github.com/pingboard/backend/internal/infrastructure/messenger"
	"github.com/pingboard/backend/internal/infrastructure/persistence"
	"github.com/pingboard/backend/internal/infrastructure/scheduler"
	"github.com/pingboard/backend/internal/interfaces/http/handler"
	"github.com/pingboard/backend/internal/interfaces/http/middleware"
	"github.com/pingboard/backend/internal/interfaces/http/router"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		panic("Failed to load configuration: " + err.Error())
	}

	// Initialize logger
	log, err := logger.New(&logger.Config{
		Level:      cfg.Log.Level,
		Format:     cfg.Log.Format,
		Output:     cfg.Log.Output,
		TimeFormat: "2006-01-02T15:04:05.000Z07:00",
	})
	if err != nil {
		panic("Failed to initialize logger: " + err.Error())
	}
	defer func() {
		_ = logger.Sync(log)
	}()

	log.Info("Starting Pingboard Backend",
		zap.String("app", cfg.App.Name),
		zap.String("env", cfg.App.Env),
		zap.String("port", cfg.App.Port),
	)

	// Create GORM logger backed by zap
	gormLogLevel := logger.MapGormLogLevel(cfg.Log.Level)
	gormLog := logger.NewGormLogger(log, gormLogLevel)

	// Initialize database connection with custom logger
	db, err := persistence.NewDatabaseWithCustomLogger(&cfg.Database, gormLog)
	if err != nil {
		log.Fatal("Failed to connect to database", zap.Error(err))
	}
	defer func() {
		if err := db.Close(); err != nil {
			log.Error("Error closing database", zap.Error(err))
		}
	}()
	log.Info("Database connected successfully")

	// Initialize repositories
	userRepo := persistence.NewGormUserRepository(db.DB)
	studyRepo := persistence.NewGormStudyRepository(db.DB)
	userStudyRepo := persistence.NewGormUserStudyRepository(db.DB)
	templateRepo := persistence.NewGormPingTemplateRepository(db.DB)
	enrollmentRepo := persistence.NewGormEnrollmentRepository(db.DB)
	pingRepo := persistence.NewGormPingRepository(db.DB)

	// Token blacklist backed by Redis; fall back to in-memory when Redis is
	// unreachable so logout still works within a single process.
	var blacklist auth.TokenBlacklist
	redisBlacklist, err := auth.NewRedisTokenBlacklist(auth.RedisTokenBlacklistConfig{
		Host:     cfg.Redis.Host,
		Port:     cfg.Redis.Port,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
	if err != nil {
		log.Warn("Redis unavailable, using in-memory token blacklist", zap.Error(err))
		blacklist = auth.NewInMemoryTokenBlacklist()
	} else {
		blacklist = redisBlacklist
		log.Info("Redis token blacklist connected")
	}

	// Initialize application services
	jwtService := auth.NewJWTService(cfg.JWT)
	authService := identityapp.NewAuthService(userRepo, jwtService, blacklist, log)
	studyService := studyapp.NewStudyService(studyRepo, userStudyRepo, userRepo, log)
	pingScheduler := pingdomain.NewScheduler()
	enrollmentService := enrollmentapp.NewEnrollmentService(
		enrollmentRepo, studyRepo, templateRepo, pingRepo, pingScheduler, studyService, log,
	)
	templateService := pingapp.NewTemplateService(
		templateRepo, enrollmentRepo, pingRepo, pingScheduler, studyService, log,
	)
	pingService := pingapp.NewPingService(pingRepo, studyService, log)

	// Messenger selection: Telegram when a bot token is configured,
	// otherwise log-only delivery for local development.
	var sender messenger.Messenger
	if cfg.Telegram.BotToken != "" {
		tg, err := messenger.NewTelegramMessenger(cfg.Telegram)
		if err != nil {
			log.Fatal("Failed to initialize Telegram messenger", zap.Error(err))
		}
		sender = tg
		log.Info("Telegram messenger configured")
	} else {
		sender = messenger.NewConsoleMessenger(log)
		log.Warn("No Telegram bot token configured, pings will be logged only")
	}

	dispatchService := dispatchapp.NewDispatchService(
		pingRepo, sender, cfg.Link.BaseURL, cfg.Dispatch.LateTolerance, log,
	)

	// Start the dispatch sweeper (if enabled)
	if cfg.Dispatch.Enabled {
		sweeper := scheduler.NewSweeper(cfg.Dispatch, dispatchService, log)
		if err := sweeper.Start(context.Background()); err != nil {
			log.Fatal("Failed to start dispatch sweeper", zap.Error(err))
		}
		defer func() {
			if err := sweeper.Stop(context.Background()); err != nil {
				log.Error("Error stopping dispatch sweeper", zap.Error(err))
			}
		}()
		log.Info("Dispatch sweeper started",
			zap.Duration("sweep_interval", cfg.Dispatch.SweepInterval),
			zap.Duration("late_tolerance", cfg.Dispatch.LateTolerance),
		)
	}

	// Initialize HTTP handlers
	authHandler := handler.NewAuthHandler(authService)
	studyHandler := handler.NewStudyHandler(studyService)
	templateHandler := handler.NewPingTemplateHandler(templateService)
	enrollmentHandler := handler.NewEnrollmentHandler(enrollmentService)
	pingHandler := handler.NewPingHandler(pingService)
	participantHandler := handler.NewParticipantHandler(enrollmentService)
	botHandler := handler.NewBotHandler(enrollmentService)
	forwardHandler := handler.NewForwardHandler(pingService)
	systemHandler := handler.NewSystemHandler(db.DB)

	// Set Gin mode based on environment
	if cfg.App.Env == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	// Setup validation
	middleware.SetupValidator()

	// Initialize router with custom middleware
	engine := gin.New()

	// Configure trusted proxies
	if len(cfg.HTTP.TrustedProxies) > 0 {
		if err := engine.SetTrustedProxies(cfg.HTTP.TrustedProxies); err != nil {
			log.Warn("Failed to set trusted proxies", zap.Error(err))
		}
	}

	// Apply middleware stack in order:
	// 1. RequestID - Generate/propagate request ID
	// 2. Recovery - Catch panics
	// 3. Logger - Log requests
	// 4. Security - Add security headers
	// 5. CORS - Handle cross-origin requests
	// 6. BodyLimit - Limit request body size
	// 7. RateLimit - Apply rate limiting (if enabled)
	engine.Use(middleware.RequestID())
	engine.Use(logger.Recovery(log))
	engine.Use(logger.GinMiddleware(log))
	engine.Use(middleware.Secure())

	// Configure CORS from config
	corsConfig := middleware.CORSConfig{
		AllowOrigins:     cfg.HTTP.CORSAllowOrigins,
		AllowMethods:     cfg.HTTP.CORSAllowMethods,
		AllowHeaders:     cfg.HTTP.CORSAllowHeaders,
		ExposeHeaders:    []string{"X-Request-ID", "X-RateLimit-Limit", "X-RateLimit-Remaining"},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	}
	engine.Use(middleware.CORSWithConfig(corsConfig))

	// Body size limit
	engine.Use(middleware.BodyLimit(cfg.HTTP.MaxBodySize))

	// Rate limiting (if enabled)
	if cfg.HTTP.RateLimitEnabled {
		rateLimiter := middleware.NewRateLimiter(cfg.HTTP.RateLimitRequests, cfg.HTTP.RateLimitWindow)
		engine.Use(middleware.RateLimit(rateLimiter))
		log.Info("Rate limiting enabled",
			zap.Int("requests", cfg.HTTP.RateLimitRequests),
			zap.Duration("window", cfg.HTTP.RateLimitWindow),
		)
	}

	// Stricter rate limiting for credential and code-guessing endpoints
	if cfg.HTTP.AuthRateLimitEnabled {
		authLimiter := middleware.NewRateLimiter(cfg.HTTP.AuthRateLimitRequests, cfg.HTTP.AuthRateLimitWindow)
		limited := middleware.RateLimit(authLimiter)
		engine.Use(func(c *gin.Context) {
			if isGuessableEndpoint(c.Request.Method, c.Request.URL.Path) {
				limited(c)
				return
			}
			c.Next()
		})
		log.Info("Auth rate limiting enabled",
			zap.Int("requests", cfg.HTTP.AuthRateLimitRequests),
			zap.Duration("window", cfg.HTTP.AuthRateLimitWindow),
		)
	}

	// Health check endpoint (outside API versioning)
	engine.GET("/health", systemHandler.Health)

	// Public ping forwarding links (no authentication, short paths)
	forwardHandler.RegisterRoutes(engine)

	// Setup API routes using router
	r := router.NewRouter(engine, router.WithAPIVersion("v1"))

	// Apply JWT authentication middleware to API routes. The default config
	// already skips the public participant and bot surfaces.
	jwtConfig := middleware.DefaultJWTConfig(jwtService)
	jwtConfig.TokenBlacklist = blacklist
	jwtConfig.Logger = log
	r.Use(middleware.JWTAuthMiddlewareWithConfig(jwtConfig))

	r.Register(authHandler).
		Register(studyHandler).
		Register(templateHandler).
		Register(enrollmentHandler).
		Register(pingHandler).
		Register(participantHandler).
		Register(systemHandler)
	r.Setup()

	// Bot endpoints carry their own shared-secret check instead of JWT
	botGroup := engine.Group("/api/v1")
	botHandler.RegisterRoutes(botGroup, cfg.Bot.SecretKey)

	// Create HTTP server with config
	srv := &http.Server{
		Addr:           ":" + cfg.App.Port,
		Handler:        engine,
		ReadTimeout:    cfg.HTTP.ReadTimeout,
		WriteTimeout:   cfg.HTTP.WriteTimeout,
		IdleTimeout:    cfg.HTTP.IdleTimeout,
		MaxHeaderBytes: cfg.HTTP.MaxHeaderBytes,
	}

	// Start server in goroutine
	go func() {
		log.Info("Server starting", zap.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal("Failed to start server", zap.Error(err))
		}
	}()

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Info("Shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		log.Fatal("Server forced to shutdown", zap.Error(err))
	}

	log.Info("Server exited gracefully")
}

// isGuessableEndpoint reports whether the request hits an endpoint where an
// attacker could brute-force credentials, signup codes, or dashboard tokens.
func isGuessableEndpoint(method, path string) bool {
	if method != http.MethodPost {
		return false
	}
	switch path {
	case "/api/v1/auth/login",
		"/api/v1/auth/register",
		"/api/v1/signup",
		"/api/v1/dashboard",
		"/api/v1/bot/dashboard-otp":
		return true
	}
	return strings.HasPrefix(path, "/api/v1/auth/")
}
