package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"go.uber.org/zap"

	"github.com/R4255/news-portal/internal/auth"
	"github.com/R4255/news-portal/internal/config"
	"github.com/R4255/news-portal/internal/database"
	"github.com/R4255/news-portal/internal/database/pgstore"
)

// userStore is implemented by both the SQLite and PostgreSQL user stores.
type userStore interface {
	auth.UserStore
	ListUsers(ctx context.Context) ([]database.User, error)
	DeleteUser(ctx context.Context, id int64) (bool, error)
	GetStats(ctx context.Context) (*database.Stats, error)
	Ping(ctx context.Context) error
	Close() error
}

var (
	_ userStore = (*database.DB)(nil)
	_ userStore = (*pgstore.Store)(nil)
)

// openStore opens the user database named by the configuration: PostgreSQL
// for a postgres:// URL, SQLite otherwise.
func openStore(ctx context.Context) (userStore, error) {
	url := cfg.DatabaseURL()
	if config.IsPostgres(url) {
		ctx, cancel := context.WithTimeout(ctx, 30*time.Second)
		defer cancel()
		store, err := pgstore.Open(ctx, url, log)
		if err != nil {
			return nil, fmt.Errorf("opening postgres: %w", err)
		}
		return store, nil
	}

	path := config.SQLitePath(url)
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("creating data directory: %w", err)
	}
	db, err := database.Open(path, log)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}
	log.Debug("opened sqlite database", zap.String("path", path))
	return db, nil
}
