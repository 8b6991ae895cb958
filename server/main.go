package main

import (
	"context"
	"flag"
	"log"
	"log/slog"
	"os"
	"strings"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/joho/godotenv"
	"github.com/meikuraledutech/reflex"
	"github.com/meikuraledutech/reflex/postgres"
)

func main() {
	configPath := flag.String("config", "", "path to a TOML config file")
	flag.Parse()

	_ = godotenv.Load()

	cfg, err := reflex.LoadConfig(*configPath)
	if err != nil {
		log.Fatalf("config: %v", err)
	}
	logger := newLogger(cfg.Log)
	slog.SetDefault(logger)

	if cfg.Database.URL == "" {
		log.Fatal("DATABASE_URL is not set")
	}

	pool, err := pgxpool.New(context.Background(), cfg.Database.URL)
	if err != nil {
		log.Fatalf("connect: %v", err)
	}
	defer pool.Close()

	var store reflex.Store = postgres.New(pool)

	app := newApp(store, logger)
	logger.Info("reflex server listening", "addr", cfg.Server.Addr)
	log.Fatal(app.Listen(cfg.Server.Addr))
}

func newLogger(cfg reflex.LogConfig) *slog.Logger {
	var level slog.Level
	switch strings.ToLower(cfg.Level) {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		level = slog.LevelInfo
	}
	opts := &slog.HandlerOptions{Level: level}
	if cfg.Format == "json" {
		return slog.New(slog.NewJSONHandler(os.Stderr, opts))
	}
	return slog.New(slog.NewTextHandler(os.Stderr, opts))
}
