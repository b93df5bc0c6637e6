package main

import (
	"context"
	"errors"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"

	"github.com/mo-amir99/lms-progress-server/internal/bootstrap"
	"github.com/mo-amir99/lms-progress-server/internal/features/achievement"
	"github.com/mo-amir99/lms-progress-server/internal/features/course"
	"github.com/mo-amir99/lms-progress-server/internal/features/enrollment"
	"github.com/mo-amir99/lms-progress-server/internal/http/routes"
	"github.com/mo-amir99/lms-progress-server/internal/services/progress"
	"github.com/mo-amir99/lms-progress-server/internal/utils/jwt"
	"github.com/mo-amir99/lms-progress-server/pkg/cache"
	"github.com/mo-amir99/lms-progress-server/pkg/config"
	"github.com/mo-amir99/lms-progress-server/pkg/database"
	"github.com/mo-amir99/lms-progress-server/pkg/email"
	"github.com/mo-amir99/lms-progress-server/pkg/jobs"
	"github.com/mo-amir99/lms-progress-server/pkg/logger"
	"github.com/mo-amir99/lms-progress-server/pkg/metrics"
	"github.com/mo-amir99/lms-progress-server/pkg/middleware"
	"github.com/mo-amir99/lms-progress-server/pkg/observability"
	"github.com/mo-amir99/lms-progress-server/pkg/request"
	socketioserver "github.com/mo-amir99/lms-progress-server/pkg/socketio"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("load config: %v", err)
	}

	appLogger, err := logger.New(cfg.LogLevel, cfg.LogDir)
	if err != nil {
		log.Fatalf("init logger: %v", err)
	}

	if cfg.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	}

	shutdownTracing := observability.Init(ctx, cfg.Tracing, cfg.Env, appLogger)
	defer func() {
		flushCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := shutdownTracing(flushCtx); err != nil {
			appLogger.Error("tracer shutdown failed", slog.String("error", err.Error()))
		}
	}()

	db, err := database.Connect(ctx, cfg.Database, appLogger)
	if err != nil {
		appLogger.Error("database connection failed", slog.String("error", err.Error()))
		os.Exit(1)
	}

	defer func() {
		if err := database.Close(db, appLogger); err != nil {
			appLogger.Error("database close failed", slog.String("error", err.Error()))
		}
	}()

	if err := bootstrap.ApplyDatabaseMigrations(db, cfg, appLogger); err != nil {
		appLogger.Error("migrations failed", slog.String("error", err.Error()))
		os.Exit(1)
	}

	// Redis when configured, otherwise a per-process cache.
	var store cache.Client
	if cfg.Redis.Addr != "" {
		redisClient, err := cache.NewRedisClient(cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB)
		if err != nil {
			appLogger.Error("redis connection failed", slog.String("error", err.Error()))
			os.Exit(1)
		}
		store = redisClient
		appLogger.Info("redis cache enabled", slog.String("addr", cfg.Redis.Addr))
	} else {
		store = cache.NewMemoryCache()
		appLogger.Info("in-memory cache enabled")
	}
	defer store.Close()

	var sender email.Sender
	if cfg.Email.Host != "" {
		sender = email.NewClient(
			cfg.Email.Host,
			cfg.Email.Port,
			cfg.Email.Username,
			cfg.Email.Password,
			cfg.Email.From,
			cfg.Email.Secure,
		)
	}

	tokens := jwt.Issuer{AccessSecret: cfg.JWTSecret, RefreshSecret: cfg.JWTRefreshSecret}

	catalog := course.NewCatalog(db, store, cfg.CourseCacheTTL, appLogger)
	enrollments := enrollment.NewStore(db)

	socketIOServer, err := socketioserver.NewServer(routes.SocketAuthenticator(db, tokens), appLogger)
	if err != nil {
		appLogger.Error("socket.io server initialization failed", slog.String("error", err.Error()))
		os.Exit(1)
	}
	defer socketIOServer.Close()

	appLogger.Info("socket.io server initialized")

	progressService := progress.NewService(catalog, enrollments, appLogger,
		progress.WithLocation(cfg.Drip.Location),
		progress.WithNotifier(achievement.NewNotifier(db, sender, appLogger)),
		progress.WithPublisher(socketIOServer),
	)

	scheduler := jobs.NewScheduler(appLogger, 10*time.Minute)
	if cfg.Drip.DigestInterval > 0 && sender != nil {
		scheduler.AddJob(
			enrollment.NewDripDigestJob(db, catalog, progressService.Gate().Scheduler, sender, cfg.Email.FrontendURL, appLogger),
			cfg.Drip.DigestInterval,
		)
	}
	scheduler.Start()
	defer scheduler.Stop()

	router := gin.New()

	// Socket.IO gets only recovery and CORS; the rest of the stack buffers
	// or rewrites responses and breaks long polling.
	router.Use(middleware.Recovery(appLogger))
	router.Use(middleware.CORS(cfg.AllowedOrigins))

	router.GET("/socket.io/*any", gin.WrapH(socketIOServer.GetHandler()))
	router.POST("/socket.io/*any", gin.WrapH(socketIOServer.GetHandler()))

	router.Use(otelgin.Middleware(cfg.Tracing.ServiceName))
	router.Use(middleware.RequestID())
	router.Use(middleware.Compression(middleware.BestSpeed))
	router.Use(middleware.RequestLogger(appLogger))
	router.Use(middleware.SecurityHeaders())
	router.Use(middleware.RequestSizeLimit(1 << 20))
	router.Use(metrics.Middleware())
	router.Use(request.Handler(appLogger))

	rateLimiter := middleware.NewRateLimiter(store, cfg.RateLimit, time.Minute, appLogger)
	router.Use(rateLimiter.Middleware())

	routes.Register(router, cfg, db, appLogger, routes.Services{
		Tokens:      tokens,
		Cache:       store,
		Catalog:     catalog,
		Enrollments: enrollments,
		Progress:    progressService,
	})

	srv := &http.Server{
		Addr:              cfg.ServerAddress(),
		Handler:           router,
		ReadTimeout:       15 * time.Second,
		ReadHeaderTimeout: 5 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       120 * time.Second,
		MaxHeaderBytes:    1 << 20,
	}

	go func() {
		appLogger.Info("server starting",
			slog.String("addr", cfg.ServerAddress()),
			slog.String("env", cfg.Env),
			slog.String("log_level", cfg.LogLevel),
			slog.String("drip_timezone", cfg.Drip.TimeZone),
		)

		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			appLogger.Error("server listen failed", slog.String("error", err.Error()))
			os.Exit(1)
		}
	}()

	<-ctx.Done()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		appLogger.Error("server shutdown failed", slog.String("error", err.Error()))
	} else {
		appLogger.Info("server stopped gracefully")
	}
}
