package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/senyabanana/vendor-engagement/internal/cache"
	"github.com/senyabanana/vendor-engagement/internal/db"
	"github.com/senyabanana/vendor-engagement/internal/handlers"
	"github.com/senyabanana/vendor-engagement/internal/metrics"
	"github.com/senyabanana/vendor-engagement/internal/middleware"
	"github.com/senyabanana/vendor-engagement/internal/notify"
	"github.com/senyabanana/vendor-engagement/internal/repository"
	"github.com/senyabanana/vendor-engagement/internal/router"
	"github.com/senyabanana/vendor-engagement/internal/router/config"
	"github.com/senyabanana/vendor-engagement/internal/scheduler"
	"github.com/senyabanana/vendor-engagement/internal/services"
	"github.com/senyabanana/vendor-engagement/internal/tasks"
	"github.com/senyabanana/vendor-engagement/internal/tokens"

	"github.com/golang-migrate/migrate/v4"
	_ "github.com/golang-migrate/migrate/v4/database/postgres"
	_ "github.com/golang-migrate/migrate/v4/source/file"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
)

// app - собранные зависимости процесса.
type app struct {
	cfg         config.Config
	logger      *log.Logger
	pool        *pgxpool.Pool
	rdb         *redis.Client
	notifier    notify.Notifier
	assignments *services.AssignmentService
	rfqs        *services.RFQService
	projects    *services.ProjectService
	scheduler   *scheduler.Scheduler
}

func main() {
	mode := flag.String("m", "api", "run mode: api, worker, all or jobs")
	flag.Parse()

	cfg, err := config.LoadConfig(".")
	if err != nil {
		log.Fatal("cannot load config:", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	logger := log.New(os.Stdout, "INFO: ", log.LstdFlags)

	var dbPool *pgxpool.Pool
	if cfg.UsesPostgres() {
		runDBMigration(cfg.MigrationURL, db.ConnString(cfg))

		dbPool, err = db.InitDb(ctx, cfg)
		if err != nil {
			log.Fatalf("error initializing database: %v", err)
		}
		defer dbPool.Close()
	}

	var rdb *redis.Client
	if cfg.UsesRedis() {
		rdb, err = cache.ConnectRedis(ctx, cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB)
		if err != nil {
			log.Fatalf("error connecting to redis: %v", err)
		}
		defer func() {
			if err := cache.DisconnectRedis(rdb); err != nil {
				logger.Println(err)
			}
		}()
	}

	a := buildApp(cfg, logger, dbPool, rdb)

	switch *mode {
	case "api":
		runAPI(ctx, a)
	case "worker":
		runWorker(ctx, a)
	case "all":
		go runWorker(ctx, a)
		runAPI(ctx, a)
	case "jobs":
		runJobsOnce(ctx, a)
	default:
		log.Fatalf("unknown mode %q", *mode)
	}
}

func buildApp(cfg config.Config, logger *log.Logger, dbPool *pgxpool.Pool, rdb *redis.Client) *app {
	var (
		assignmentRepo repository.AssignmentRepository
		rfqRepo        repository.RFQRepository
		projectRepo    repository.ProjectRepository
		tokenRepo      repository.TokenRepository
	)

	switch cfg.StorageDriver {
	case "memory":
		store := repository.NewMemoryStore()
		assignmentRepo, rfqRepo, projectRepo = store, store, store
	default:
		assignmentRepo = repository.NewPostgresAssignmentRepository(dbPool)
		rfqRepo = repository.NewPostgresRFQRepository(dbPool)
		projectRepo = repository.NewPostgresProjectRepository(dbPool)
	}

	switch cfg.TokenStore {
	case "redis":
		tokenRepo = repository.NewRedisTokenRepository(rdb)
	case "memory":
		tokenRepo = repository.NewMemoryTokenRepository()
	default:
		tokenRepo = repository.NewPostgresTokenRepository(dbPool)
	}

	var notifier notify.Notifier = notify.NewLogNotifier(logger)
	if cfg.Notifier == "asynq" {
		notifier = notify.NewAsynqNotifier(tasks.NewClient(rdb))
	}

	m := metrics.New(cfg.MetricsNamespace, prometheus.DefaultRegisterer)
	tokenService := tokens.NewService(tokenRepo, cfg.TokenTTLDays, logger)

	assignmentService := services.NewAssignmentService(assignmentRepo, projectRepo, tokenService, notifier, m, logger)
	rfqService := services.NewRFQService(rfqRepo, projectRepo, tokenService, notifier, m, logger)
	projectService := services.NewProjectService(projectRepo, assignmentRepo, rfqRepo, tokenService, logger)

	sched := scheduler.New(rfqService, projectRepo, assignmentRepo, cfg.ReminderDays, m, logger)

	return &app{
		cfg:         cfg,
		logger:      logger,
		pool:        dbPool,
		rdb:         rdb,
		notifier:    notifier,
		assignments: assignmentService,
		rfqs:        rfqService,
		projects:    projectService,
		scheduler:   sched,
	}
}

func runAPI(ctx context.Context, a *app) {
	timeout := a.cfg.RequestTimeout

	checks := map[string]handlers.Check{}
	if a.pool != nil {
		checks["postgres"] = a.pool.Ping
	}
	if a.rdb != nil {
		checks["redis"] = func(ctx context.Context) error { return a.rdb.Ping(ctx).Err() }
	}

	limiter := middleware.NewRateLimiter(a.cfg.PortalRateLimit, a.cfg.PortalRateBurst, a.logger)
	limiter.StartCleanup(ctx, 10*time.Minute, 30*time.Minute)

	routes := router.InitRoutes(router.Handlers{
		Portal:      handlers.NewPortalHandler(a.assignments, a.rfqs, a.logger, timeout),
		Assignments: handlers.NewAssignmentHandler(a.assignments, a.logger, timeout),
		RFQs:        handlers.NewRFQHandler(a.rfqs, a.logger, timeout),
		Projects:    handlers.NewProjectHandler(a.projects, a.logger, timeout),
		Jobs:        handlers.NewJobsHandler(a.scheduler, a.notifier, a.logger, time.Minute),
		Health:      handlers.NewHealthHandler(checks, a.logger, timeout),
		Metrics:     promhttp.Handler(),
	}, limiter)

	server := &http.Server{
		Addr:              a.cfg.ServerAddress,
		Handler:           routes,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			a.logger.Printf("server shutdown: %v", err)
		}
	}()

	log.Printf("server is listening on %s...", a.cfg.ServerAddress)
	if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		log.Fatalf("server failed: %v", err)
	}
}

func runWorker(ctx context.Context, a *app) {
	if a.rdb == nil {
		log.Fatal("worker mode requires NOTIFIER=asynq or TOKEN_STORE=redis to configure redis")
	}

	processor := tasks.NewTaskProcessor(a.scheduler, a.notifier, notify.NewLogNotifier(a.logger), a.logger)
	srv := tasks.SetupServer(a.rdb, a.cfg.WorkerConcurrency, a.logger)
	if err := srv.Start(tasks.NewServeMux(processor)); err != nil {
		log.Fatalf("could not run asynq server: %v", err)
	}

	sched, err := tasks.SetupScheduler(a.rdb, a.cfg.DailyJobsCron)
	if err != nil {
		log.Fatalf("could not set up scheduler: %v", err)
	}
	if err = sched.Start(); err != nil {
		log.Fatalf("could not start scheduler: %v", err)
	}

	a.logger.Printf("worker started, daily jobs at %q", a.cfg.DailyJobsCron)
	<-ctx.Done()
	sched.Shutdown()
	srv.Shutdown()
}

func runJobsOnce(ctx context.Context, a *app) {
	report := a.scheduler.RunDailyJobs(ctx, time.Now().UTC())
	if failed := a.scheduler.NotifyReminders(ctx, a.notifier, report.Reminders); failed > 0 {
		a.logger.Printf("%d reminders failed", failed)
	}
	if err := json.NewEncoder(os.Stdout).Encode(report); err != nil {
		a.logger.Println(err)
	}
}

func runDBMigration(migrationURL string, dbSource string) {
	migration, err := migrate.New(migrationURL, dbSource)
	if err != nil {
		log.Fatal("cannot create a new migrate instance", err)
	}

	if err = migration.Up(); err != nil && err != migrate.ErrNoChange {
		log.Fatal("failed to run migrate up:", err)
	}
	log.Println("db migrated successfully")
}
