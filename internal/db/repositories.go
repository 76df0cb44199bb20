package db

import "context"

// Repositories provides access to all database repositories
type Repositories struct {
	Channels    *ChannelRepository
	Media       *MediaRepository
	Collections *CollectionRepository

	db *DB
}

// NewRepositories creates a new repository collection
func NewRepositories(db *DB) *Repositories {
	return &Repositories{
		Channels:    NewChannelRepository(db),
		Media:       NewMediaRepository(db),
		Collections: NewCollectionRepository(db),
		db:          db,
	}
}

// Transaction runs fn against repositories sharing one transaction
func (r *Repositories) Transaction(ctx context.Context, fn func(tx *Repositories) error) error {
	return r.db.WithTransaction(ctx, fn)
}
