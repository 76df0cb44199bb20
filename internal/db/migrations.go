package db

import (
	"database/sql"
	"errors"
	"fmt"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/sqlite3"
	_ "github.com/golang-migrate/migrate/v4/source/file"
	"github.com/stwalsh4118/airwave/internal/logger"
)

// RunMigrations brings the catalog schema (media, collections, channels) up
// to the newest migration under migrationsPath, e.g. "file://migrations".
// A catalog left dirty by an interrupted migration is refused rather than
// migrated further.
func RunMigrations(db *sql.DB, migrationsPath string) error {
	driver, err := sqlite3.WithInstance(db, &sqlite3.Config{})
	if err != nil {
		return fmt.Errorf("failed to create migration driver: %w", err)
	}

	m, err := migrate.NewWithDatabaseInstance(migrationsPath, "sqlite3", driver)
	if err != nil {
		return fmt.Errorf("failed to load catalog migrations from %s: %w", migrationsPath, err)
	}

	from, dirty, err := schemaVersion(m)
	if err != nil {
		return err
	}
	if dirty {
		return fmt.Errorf("catalog schema is dirty at version %d; fix it and force the version before restarting", from)
	}

	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("failed to migrate catalog from version %d: %w", from, err)
	}

	to, _, err := schemaVersion(m)
	if err != nil {
		return err
	}

	log := logger.For("db")
	if to == from {
		log.Debug().Uint("version", to).Msg("Catalog schema up to date")
		return nil
	}
	log.Info().
		Uint("from_version", from).
		Uint("to_version", to).
		Msg("Catalog schema migrated")
	return nil
}

// schemaVersion reports the applied migration, 0 for a fresh catalog
func schemaVersion(m *migrate.Migrate) (uint, bool, error) {
	version, dirty, err := m.Version()
	if errors.Is(err, migrate.ErrNilVersion) {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, fmt.Errorf("failed to read catalog schema version: %w", err)
	}
	return version, dirty, nil
}
