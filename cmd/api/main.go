package main

import (
	"context"
	"database/sql"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/gofiber/contrib/otelfiber"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/gofiber/swagger"
	_ "github.com/joho/godotenv/autoload"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"fileshare/docs"
	"fileshare/internal/config"
	"fileshare/internal/database"
	"fileshare/internal/database/migration"
	handlers "fileshare/internal/http/handler"
	"fileshare/internal/http/middleware"
	"fileshare/internal/logger"
	"fileshare/internal/maintenance"
	"fileshare/internal/metrics"
	"fileshare/internal/otel"
	"fileshare/internal/ratelimit"
	"fileshare/internal/repository/postgres"
	"fileshare/internal/service"
	"fileshare/internal/storage"
	"fileshare/internal/validator"
)

// @title File Share API
// @version 1.0
// @description Uploads with per-account storage quotas and a reviewed quota change workflow.
// @BasePath /
func main() {
	// Load configuration from environment variables (.env auto-loaded if present)
	cfg := config.Load()

	loc, err := time.LoadLocation(cfg.Timezone)
	if err != nil {
		loc = time.UTC
	}
	log := logger.New(cfg.Log, loc)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	shutdownTracing, err := otel.Init(ctx, log)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to initialize tracing")
	}
	defer func() {
		sctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = shutdownTracing(sctx)
	}()

	db, err := database.NewPostgres(cfg.Database, log)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to connect to database")
	}
	defer db.Close()

	if err := migration.EnsureMigrated(ctx, db, log, cfg.Database.Host); err != nil {
		log.Fatal().Err(err).Msg("failed to migrate database")
	}

	objStore, err := newStorage(cfg, log)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to initialize object storage")
	}

	limiter, err := newLimiter(ctx, cfg, log)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to initialize rate limiter")
	}

	m, err := metrics.New(prometheus.DefaultRegisterer)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to register metrics")
	}

	if cfg.Upload.VirusScanEnabled || cfg.Upload.ImageProcessing || cfg.Upload.EmailNotification {
		log.Warn().
			Bool("virus_scan", cfg.Upload.VirusScanEnabled).
			Bool("image_processing", cfg.Upload.ImageProcessing).
			Bool("email_notification", cfg.Upload.EmailNotification).
			Msg("upload integrations are not available in this service and stay disabled")
	}

	// Repositories
	accountRepo := postgres.NewAccountPostgres(db)
	fileRepo := postgres.NewFilePostgres(db)
	requestRepo := postgres.NewQuotaRequestPostgres(db)
	changeRepo := postgres.NewQuotaLogPostgres(db)

	// Services
	ledger := service.NewLedger(accountRepo)
	guard := service.NewGuard(accountRepo, m, log)
	accountSvc := service.NewAccountService(accountRepo, guard, cfg.Quota.DefaultLimit, log)
	govSvc := service.NewGovernanceService(accountRepo, requestRepo, changeRepo, ledger, guard, m, log)
	fileSvc := service.NewFileService(objStore, fileRepo, ledger, limiter, validator.New(cfg.Upload.MaxFileSize),
		service.UploadOptions{
			RequireApproval: cfg.Upload.RequireApproval,
			URLExpiry:       cfg.Upload.URLExpiry,
			AtomicReserve:   cfg.Quota.AtomicReserve,
		}, m, log)

	if id := cfg.Quota.ProtectedAccountID; id != "" {
		if err := accountSvc.DesignateProtected(ctx, id); err != nil {
			log.Fatal().Err(err).Str("account_id", id).Msg("failed to designate protected account")
		}
	}

	jobs, err := maintenance.New(cfg.Maintenance, loc, ledger, guard, limiter, m, log)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to schedule maintenance jobs")
	}
	jobs.Start()
	defer jobs.Stop()

	app := newApp(cfg, db, log, handlers.Services{
		Files:      fileSvc,
		Governance: govSvc,
		Accounts:   accountSvc,
	})

	go func() {
		<-ctx.Done()
		log.Info().Msg("shutting down")
		if err := app.ShutdownWithTimeout(30 * time.Second); err != nil {
			log.Error().Err(err).Msg("graceful shutdown failed")
		}
	}()

	addr := ":" + cfg.Port
	log.Info().Str("addr", addr).Str("storage", cfg.StorageDriver).Str("rate_limit", cfg.RateLimit.Backend).Msg("listening")
	if err := app.Listen(addr); err != nil {
		log.Fatal().Err(err).Msg("failed to start server")
	}
}

// serverConfig sizes the server for multi-gigabyte uploads. The body is streamed, so the
// multipart reader keeps small parts in memory and spills file parts above 16MiB to
// temporary files instead of holding BodyLimit bytes per request in RAM.
func serverConfig(cfg *config.AppConfig) fiber.Config {
	return fiber.Config{
		ErrorHandler:          handlers.ErrorHandler(),
		DisableStartupMessage: true,
		StreamRequestBody:     true,

		// Request values end up in metrics labels and limiter keys.
		Immutable: true,

		// Room for the multipart envelope around the largest accepted file.
		BodyLimit: int(cfg.Upload.MaxFileSize) + 1<<20,
	}
}

func newApp(cfg *config.AppConfig, db *sql.DB, log zerolog.Logger, svc handlers.Services) *fiber.App {
	app := fiber.New(serverConfig(cfg))

	prom, err := middleware.NewPrometheusMiddleware(prometheus.DefaultRegisterer)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to register http metrics")
	}

	// Global middleware. Prometheus wraps Logger so it counts the status Logger rendered.
	app.Use(otelfiber.Middleware())
	app.Use(middleware.RequestID())
	app.Use(prom.Handler())
	app.Use(middleware.Logger(log.With().Str("component", "http").Logger()))

	app.Get("/metrics", adaptor.HTTPHandler(promhttp.Handler()))

	handlers.RegisterRoutes(app, db, svc, handlers.RouteOptions{
		UserHeader:   cfg.Auth.UserHeader,
		ClientHeader: cfg.RateLimit.ClientHeader,
	})

	// Swagger UI with dynamic host and scheme
	app.Get("/swagger/*", func(c *fiber.Ctx) error {
		scheme := c.Protocol()
		if proto := c.Get("X-Forwarded-Proto"); proto != "" {
			scheme = strings.Split(proto, ",")[0]
		}

		docs.SwaggerInfo.Host = c.Get("Host")
		docs.SwaggerInfo.Schemes = []string{scheme}

		return swagger.HandlerDefault(c)
	})

	return app
}

func newStorage(cfg *config.AppConfig, log zerolog.Logger) (storage.Storage, error) {
	if strings.EqualFold(cfg.StorageDriver, "memory") {
		log.Warn().Msg("using in-memory object storage; blobs are lost on restart")
		return storage.NewMemory(cfg.MinIO.Bucket), nil
	}
	m, err := storage.NewMinIO(cfg.MinIO)
	if err != nil {
		return nil, err
	}
	log.Info().Str("endpoint", cfg.MinIO.Endpoint).Str("bucket", cfg.MinIO.Bucket).Msg("object storage ready")
	return m, nil
}

func newLimiter(ctx context.Context, cfg *config.AppConfig, log zerolog.Logger) (*ratelimit.Limiter, error) {
	limits := ratelimit.Limits{
		Window:     cfg.RateLimit.Window,
		MaxUploads: cfg.RateLimit.MaxUploads,
		MaxBytes:   cfg.RateLimit.MaxBytes,
	}
	if !strings.EqualFold(cfg.RateLimit.Backend, "redis") {
		return ratelimit.New(ratelimit.NewMemoryStore(), limits), nil
	}

	var opt *redis.Options
	if uri := cfg.Redis.URL; uri != "" {
		var err error
		if opt, err = redis.ParseURL(uri); err != nil {
			return nil, err
		}
	} else {
		opt = &redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		}
	}
	rdb := redis.NewClient(opt)
	if err := rdb.Ping(ctx).Err(); err != nil {
		return nil, err
	}
	log.Info().Str("addr", opt.Addr).Msg("rate limiter uses redis")
	return ratelimit.New(ratelimit.NewRedisStore(rdb, "fileshare:ratelimit:"), limits), nil
}
