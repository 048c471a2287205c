// Package main is the entry point for the bread server.
// Without DATABASE_URL everything lives in memory and is lost on exit.
package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"

	"bread/internal/core/apperror"
	"bread/internal/core/config"
	"bread/internal/core/tx"
	"bread/internal/domain"
	"bread/internal/domain/audit"
	"bread/internal/domain/auth"
	"bread/internal/domain/reports"
	v1 "bread/internal/infrastructure/http/v1"
	"bread/internal/infrastructure/http/v1/pages"
	"bread/internal/infrastructure/http/v1/views"
	"bread/internal/infrastructure/storage/memory"
	"bread/internal/infrastructure/storage/postgres"
	"bread/internal/infrastructure/storage/postgres/auth_repo"
	"bread/internal/infrastructure/storage/postgres/record_repo"
	"bread/internal/metadata"
	"bread/pkg/logger"
)

// storage bundles the backends selected by DATABASE_URL.
type storage struct {
	store     domain.Store
	txManager tx.Manager
	users     auth.UserRepository
	audit     audit.Sink
	pool      *postgres.Pool
}

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Printf("failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	log, err := logger.New(logger.Config{
		Level:       cfg.LogLevel,
		Development: cfg.Development(),
	})
	if err != nil {
		fmt.Printf("failed to initialize logger: %v\n", err)
		os.Exit(1)
	}

	ctx, stop := context.WithCancel(context.Background())
	defer stop()

	reg, err := buildRegistry(cfg.SchemaFile)
	if err != nil {
		log.Fatalw("failed to build model registry", "error", err)
	}
	log.Infow("model registry initialized", "models", len(reg.Models()))

	codec, err := audit.NewCodec(audit.DefaultCompressThreshold)
	if err != nil {
		log.Fatalw("failed to create audit codec", "error", err)
	}

	st, err := openStorage(ctx, cfg, reg, codec)
	if err != nil {
		log.Fatalw("failed to open storage", "error", err)
	}
	if st.pool != nil {
		defer st.pool.Close()
		log.Info("database connection established")
	} else {
		log.Warn("DATABASE_URL not set, using the in-memory store")
	}

	// --- Model service and hooks ---
	models := domain.NewModelService(domain.ServiceConfig{
		Registry:  reg,
		Store:     st.store,
		TxManager: st.txManager,
	})
	audit.AttachStamps(models.Hooks())
	var auditSink audit.Sink
	if cfg.AuditEnabled {
		audit.NewRecorder(st.audit).Attach(models.Hooks())
		auditSink = st.audit
	}

	// --- Auth ---
	jwtConfig := auth.DefaultJWTConfig(cfg.JWTSecret)
	jwtConfig.AccessTokenTTL = cfg.JWTTTL
	jwtService := auth.NewJWTService(jwtConfig)
	authService := auth.NewService(st.users, st.txManager, jwtService, auth.DefaultServiceConfig())

	if st.pool == nil {
		if err := ensureAdmin(ctx, authService); err != nil {
			log.Fatalw("failed to create admin user", "error", err)
		}
	}

	// --- Reports ---
	defs, err := loadReports(cfg.ReportsFile)
	if err != nil {
		log.Fatalw("failed to load reports", "error", err)
	}

	reportService := reports.NewService(models, defs)
	if cfg.ReportsFile != "" {
		if err := reportService.Watch(ctx, cfg.ReportsFile); err != nil {
			log.Warnw("reports file is not watched", "error", err)
		}
	}

	// --- Views ---
	renderer, err := pages.NewRenderer()
	if err != nil {
		log.Fatalw("failed to parse page templates", "error", err)
	}
	builder := views.NewBuilder(views.Config{
		Models:              models,
		Renderer:            renderer,
		Audit:               auditSink,
		ItemsPerPageOptions: cfg.ItemsPerPageOptions,
		DefaultItemsPerPage: cfg.DefaultItemsPerPage,
		Logger:              log,
	})
	for _, m := range reg.Models() {
		builder.RegisterCRUD(m.Key(), views.Overrides{
			Extra:         []views.Extension{views.QuickSearch()},
			RememberState: true,
			History:       cfg.AuditEnabled,
		})
	}
	site, err := builder.Build()
	if err != nil {
		log.Fatalw("failed to build views", "error", err)
	}

	// --- Router ---
	mode := gin.ReleaseMode
	if cfg.Development() {
		mode = gin.DebugMode
	}
	router := v1.NewRouter(v1.RouterConfig{
		Mode:                mode,
		Logger:              log,
		JWTValidator:        jwtService,
		AuthService:         authService,
		Site:                site,
		Registry:            reg,
		Reports:             reportService,
		Renderer:            renderer,
		ItemsPerPageOptions: cfg.ItemsPerPageOptions,
		Pool:                st.pool,
		Version:             version,
	})

	// --- HTTP Server ---
	server := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 60 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		log.Infow("server starting", "port", cfg.Port, "env", cfg.Env)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalw("server failed", "error", err)
		}
	}()

	// --- Graceful shutdown ---
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info("shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Errorw("server forced to shutdown", "error", err)
	}

	log.Info("server stopped")
}

// version is set at build time with -ldflags "-X main.version=...".
var version = "dev"

func openStorage(ctx context.Context, cfg config.Config, reg *metadata.Registry, codec *audit.Codec) (*storage, error) {
	if cfg.DatabaseURL == "" {
		store := memory.NewStore(reg)
		return &storage{
			store:     store,
			txManager: memory.NewTxManager(store),
			users:     memory.NewUserStore(),
			audit:     audit.NewMemorySink(codec),
		}, nil
	}

	pool, err := postgres.NewPool(ctx, postgres.DefaultPoolConfig(cfg.DatabaseURL))
	if err != nil {
		return nil, err
	}
	txManager := postgres.NewTxManager(pool)
	repo := record_repo.NewRepo(reg, txManager)

	if err := postgres.EnsureSystemSchema(ctx, txManager); err != nil {
		pool.Close()
		return nil, err
	}
	if err := repo.EnsureSchema(ctx); err != nil {
		pool.Close()
		return nil, err
	}

	return &storage{
		store:     repo,
		txManager: txManager,
		users:     auth_repo.NewUserRepo(txManager),
		audit:     postgres.NewAuditStore(txManager, codec),
		pool:      pool,
	}, nil
}

// ensureAdmin creates the admin account of an in-memory run from
// ADMIN_EMAIL and ADMIN_PASSWORD.
func ensureAdmin(ctx context.Context, authService *auth.Service) error {
	email := getEnv("ADMIN_EMAIL", "admin@example.com")
	password := getEnv("ADMIN_PASSWORD", "admin12345")
	_, err := authService.CreateUser(ctx, email, password, nil, true)
	if apperror.HasCode(err, apperror.CodeDuplicate) {
		return nil
	}
	return err
}

func loadReports(path string) ([]reports.Definition, error) {
	if path == "" {
		return nil, nil
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open reports file: %w", err)
	}
	defer f.Close()
	return reports.LoadYAML(f)
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}
