package db

import (
	"context"
	"database/sql"
	"fmt"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/stwalsh4118/airwave/internal/models"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

const (
	maxOpenConns    = 25
	maxIdleConns    = 5
	connMaxLifetime = 5 * time.Minute

	defaultConnectionTimeout = 5 * time.Second
)

// DB is the catalog store: media, collections and channels
type DB struct {
	*gorm.DB
}

// Options tunes the catalog connection
type Options struct {
	// EnableWAL selects write-ahead journaling (ignored for in-memory catalogs)
	EnableWAL bool
	// ConnectionTimeout bounds the startup ping and how long a statement
	// waits on a locked database (5s when zero)
	ConnectionTimeout time.Duration
}

// CatalogStats counts the rows of each catalog table
type CatalogStats struct {
	Media       int64 `json:"media"`
	Collections int64 `json:"collections"`
	Members     int64 `json:"members"`
	Channels    int64 `json:"channels"`
}

// New opens the SQLite catalog at dbPath, e.g. "./data/airwave.db" or
// ":memory:". Foreign keys are always enforced so deleting media drops its
// collection memberships.
func New(dbPath string, opts Options) (*DB, error) {
	if opts.ConnectionTimeout <= 0 {
		opts.ConnectionTimeout = defaultConnectionTimeout
	}

	gormDB, err := gorm.Open(sqlite.Open(catalogDSN(dbPath, opts)), &gorm.Config{
		SkipDefaultTransaction: true,
		PrepareStmt:            true,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to open catalog %q: %w", dbPath, err)
	}

	sqlDB, err := gormDB.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to get underlying sql.DB: %w", err)
	}

	// Every connection to :memory: is a separate empty database, so an
	// in-memory catalog lives on exactly one connection that is never recycled.
	if isMemory(dbPath) {
		sqlDB.SetMaxOpenConns(1)
		sqlDB.SetMaxIdleConns(1)
		sqlDB.SetConnMaxLifetime(0)
	} else {
		sqlDB.SetMaxOpenConns(maxOpenConns)
		sqlDB.SetMaxIdleConns(maxIdleConns)
		sqlDB.SetConnMaxLifetime(connMaxLifetime)
	}

	ctx, cancel := context.WithTimeout(context.Background(), opts.ConnectionTimeout)
	defer cancel()

	if err := sqlDB.PingContext(ctx); err != nil {
		return nil, fmt.Errorf("failed to ping catalog %q: %w", dbPath, err)
	}

	return &DB{DB: gormDB}, nil
}

// catalogDSN appends the go-sqlite3 connection pragmas to path
func catalogDSN(path string, opts Options) string {
	params := url.Values{}
	params.Set("_foreign_keys", "on")
	params.Set("_busy_timeout", strconv.FormatInt(opts.ConnectionTimeout.Milliseconds(), 10))
	if opts.EnableWAL && !isMemory(path) {
		params.Set("_journal_mode", "WAL")
	}
	return path + "?" + params.Encode()
}

func isMemory(path string) bool {
	return path == ":memory:" || strings.Contains(path, "mode=memory")
}

// Health checks database connectivity
func (db *DB) Health(ctx context.Context) error {
	sqlDB, err := db.DB.DB()
	if err != nil {
		return fmt.Errorf("failed to get underlying sql.DB: %w", err)
	}
	return sqlDB.PingContext(ctx)
}

// Stats counts the catalog's media, collections, memberships and channels
func (db *DB) Stats(ctx context.Context) (*CatalogStats, error) {
	var stats CatalogStats
	counts := []struct {
		model any
		dst   *int64
	}{
		{&models.Media{}, &stats.Media},
		{&models.Collection{}, &stats.Collections},
		{&models.CollectionItem{}, &stats.Members},
		{&models.Channel{}, &stats.Channels},
	}
	for _, c := range counts {
		if err := db.WithContext(ctx).Model(c.model).Count(c.dst).Error; err != nil {
			return nil, fmt.Errorf("failed to count catalog rows: %w", MapGormError(err))
		}
	}
	return &stats, nil
}

// Close closes the database connection
func (db *DB) Close() error {
	sqlDB, err := db.DB.DB()
	if err != nil {
		return fmt.Errorf("failed to get underlying sql.DB: %w", err)
	}
	return sqlDB.Close()
}

// GetSQLDB returns the underlying sql.DB for migrations
func (db *DB) GetSQLDB() (*sql.DB, error) {
	return db.DB.DB()
}
