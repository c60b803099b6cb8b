package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/andresuchdata/mediastore/internal/domain"
)

// CollectionRepository answers which collection a file belongs to and who
// owns it. The collections and collection_files tables are owned by the
// catalog service; this repository only reads them.
type CollectionRepository struct {
	db *DB
}

func NewCollectionRepository(db *DB) *CollectionRepository {
	return &CollectionRepository{db: db}
}

// CollectionByFileKey returns nil, nil when the file is in no collection.
func (r *CollectionRepository) CollectionByFileKey(ctx context.Context, key string) (*domain.Collection, error) {
	query := `
		SELECT c.id, c.type
		FROM collections c
		JOIN collection_files f ON f.collection_id = c.id
		WHERE f.file_key = $1
		ORDER BY c.created_at
		LIMIT 1
	`

	var collection domain.Collection
	err := r.db.withPermit(ctx, func() error {
		return r.db.GetContext(ctx, &collection, query, key)
	})
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to look up collection for %q: %w", key, err)
	}
	return &collection, nil
}

func (r *CollectionRepository) IsOwner(ctx context.Context, collectionID, userID string) (bool, error) {
	query := `SELECT EXISTS (SELECT 1 FROM collections WHERE id = $1 AND owner_id = $2)`

	var owner bool
	err := r.db.withPermit(ctx, func() error {
		return r.db.GetContext(ctx, &owner, query, collectionID, userID)
	})
	if err != nil {
		return false, fmt.Errorf("failed to check owner of collection %s: %w", collectionID, err)
	}
	return owner, nil
}
