// Package main provides a CLI tool for seeding the database with initial users.
package main

import (
	"context"
	"fmt"
	"os"
	"strings"

	"bread/internal/core/apperror"
	"bread/internal/core/config"
	"bread/internal/domain/auth"
	"bread/internal/infrastructure/storage/postgres"
	"bread/internal/infrastructure/storage/postgres/auth_repo"
	"bread/pkg/logger"
)

func main() {
	log, err := logger.New(logger.Config{
		Level:       "info",
		Development: true,
	})
	if err != nil {
		fmt.Printf("failed to create logger: %v\n", err)
		os.Exit(1)
	}

	cfg, err := config.Load()
	if err != nil {
		log.Fatalw("failed to load configuration", "error", err)
	}
	if cfg.DatabaseURL == "" {
		log.Fatal("DATABASE_URL environment variable is required")
	}

	ctx := context.Background()

	pool, err := postgres.NewPool(ctx, postgres.DefaultPoolConfig(cfg.DatabaseURL))
	if err != nil {
		log.Fatalw("failed to connect to database", "error", err)
	}
	defer pool.Close()

	log.Info("connected to database")

	txManager := postgres.NewTxManager(pool)
	if err := postgres.EnsureSystemSchema(ctx, txManager); err != nil {
		log.Fatalw("failed to create system tables", "error", err)
	}

	authService := auth.NewService(
		auth_repo.NewUserRepo(txManager),
		txManager,
		auth.NewJWTService(auth.DefaultJWTConfig(cfg.JWTSecret)),
		auth.DefaultServiceConfig(),
	)

	// Seed admin user
	if err := seedUser(ctx, authService, log,
		getEnv("ADMIN_EMAIL", "admin@example.com"),
		getEnv("ADMIN_PASSWORD", "admin12345"),
		nil, true,
	); err != nil {
		log.Fatalw("failed to seed admin user", "error", err)
	}

	// Optional regular user, e.g. SEED_USER_PERMISSIONS=crm.view_customer,crm.add_customer
	if email := os.Getenv("SEED_USER_EMAIL"); email != "" {
		if err := seedUser(ctx, authService, log,
			email,
			os.Getenv("SEED_USER_PASSWORD"),
			splitList(os.Getenv("SEED_USER_PERMISSIONS")), false,
		); err != nil {
			log.Fatalw("failed to seed user", "email", email, "error", err)
		}
	}

	log.Info("seeding completed successfully")
}

func seedUser(ctx context.Context, authService *auth.Service, log *logger.Logger, email, password string, permissions []string, isAdmin bool) error {
	user, err := authService.CreateUser(ctx, email, password, permissions, isAdmin)
	if apperror.HasCode(err, apperror.CodeDuplicate) {
		log.Infow("user already exists", "email", email)
		return nil
	}
	if err != nil {
		return err
	}
	log.Infow("user created", "email", email, "user_id", user.ID, "admin", isAdmin)
	return nil
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}
