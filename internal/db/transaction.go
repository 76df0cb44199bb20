package db

import (
	"context"
	"fmt"

	"gorm.io/gorm"
)

// WithTransaction runs fn with repositories bound to one transaction. The
// catalog edits fn makes commit together when it returns nil and roll back
// when it returns an error or panics.
func (db *DB) WithTransaction(ctx context.Context, fn func(tx *Repositories) error) error {
	return db.inTransaction(ctx, func(tx *gorm.DB) error {
		return fn(NewRepositories(&DB{DB: tx}))
	})
}

// inTransaction runs fn on a raw transaction. Called on a DB that is
// already a transaction it nests as a savepoint.
func (db *DB) inTransaction(ctx context.Context, fn func(*gorm.DB) error) error {
	if err := db.DB.WithContext(ctx).Transaction(fn); err != nil {
		return fmt.Errorf("catalog transaction rolled back: %w", err)
	}
	return nil
}
