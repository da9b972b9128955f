package main

import (
	"context"
	"flag"
	"fmt"
	"os"

	"github.com/joho/godotenv"

	"buddydesk/internal/config"
	"buddydesk/internal/database"
	"buddydesk/internal/pkg/logger"
)

func main() {
	ctx := context.Background()
	logg := logger.New(logger.Options{ServiceName: "migrate"})

	_ = godotenv.Load()

	cmd := flag.String("cmd", "up", "migration command: up|down|status|version|redo|reset")
	flag.Parse()

	cfg, err := config.Load()
	requireResource(ctx, logg, "config", err)

	logg = logger.New(logger.Options{
		ServiceName: "migrate",
		Level:       logger.ParseLevel(cfg.App.LogLevel),
		Format:      cfg.App.LogFormat,
		WarnStack:   cfg.App.LogWarnStack,
	})
	ctx = logg.WithFields(ctx, map[string]any{
		"env": cfg.App.Env,
		"cmd": *cmd,
	})

	if !database.IsPostgres(cfg.DB.URL) {
		fmt.Fprintln(os.Stderr, "goose migrations target PostgreSQL; SQLite schemas are created with DB_AUTO_MIGRATE")
		os.Exit(1)
	}

	db, err := database.Connect(cfg.DB)
	requireResource(ctx, logg, "database", err)
	sqlDB, err := db.DB()
	requireResource(ctx, logg, "sql database", err)
	defer sqlDB.Close()

	logg.Info(ctx, "migrate ready")

	if err := database.Migrate(ctx, sqlDB, *cmd, flag.Args()...); err != nil {
		fmt.Fprintf(os.Stderr, "goose %s failed: %v\n", *cmd, err)
		os.Exit(1)
	}
}

func requireResource(ctx context.Context, logg *logger.Logger, resource string, err error) {
	if err == nil {
		return
	}
	logg.Error(ctx, fmt.Sprintf("resource not working: %s", resource), err)
	os.Exit(1)
}
