package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/joho/godotenv"

	"github.com/resivalidator/service-core/internal/auth"
	"github.com/resivalidator/service-core/internal/router"
	"github.com/resivalidator/service-core/internal/user"
	"github.com/resivalidator/service-core/migrations"
	"github.com/resivalidator/service-core/pkg/database"
	"github.com/resivalidator/service-core/pkg/utilities"
)

func main() {
	// load .env file if present so os.Getenv picks values from it
	// this is best-effort: if no .env exists, continue (use defaults or real env)
	_ = godotenv.Load()

	// init logger
	lg, err := utilities.InitLogger(utilities.LogConfigFromEnv())
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to init logger: %v\n", err)
		os.Exit(1)
	}
	defer lg.Sync()

	sugar := lg.Sugar()
	sugar.Info("starting resi-validator service-core")

	// init db
	cfg := database.ConfigFromEnv()
	sqlDB, err := database.Connect(cfg)
	if err != nil {
		sugar.Fatalf("db connect: %v", err)
	}
	defer sqlDB.Close()

	// wrap with sqlx for convenience in repos/services
	sqlxDB := sqlx.NewDb(sqlDB, "postgres")
	defer sqlxDB.Close()

	bootCtx, bootCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer bootCancel()

	if err := database.Migrate(bootCtx, sqlDB, migrations.Files, sugar); err != nil {
		sugar.Fatalf("migrate: %v", err)
	}

	userSvc := user.NewService(sqlxDB)
	if err := userSvc.EnsureOwner(bootCtx, sugar); err != nil {
		sugar.Fatalf("ensure owner account: %v", err)
	}
	authSvc := auth.NewService(sqlxDB, userSvc)

	adminKey := os.Getenv("ADMIN_KEY")
	if adminKey == "" {
		adminKey = "admin123"
	}

	// graceful shutdown
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	port := os.Getenv("PORT")
	if port == "" {
		port = "4000"
	}

	// mount http server
	handler := router.RegisterRoutes(sugar, sqlxDB, userSvc, authSvc, adminKey)
	srv := &http.Server{
		Addr:    "0.0.0.0:" + port,
		Handler: handler,
	}

	sugar.Infow("service is running; press Ctrl+C to stop", "port", port)

	// run server in background
	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			sugar.Fatalf("http server failed: %v", err)
		}
	}()

	<-ctx.Done()

	sugar.Info("shutting down")

	// give a short grace period for cleanup
	doneCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := srv.Shutdown(doneCtx); err != nil {
		sugar.Warnf("http server shutdown failed: %v", err)
	}

	sugar.Info("goodbye")
}
