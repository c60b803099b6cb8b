package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/andresuchdata/mediastore/internal/domain"
)

type ProfileRepository struct {
	db *DB
}

func NewProfileRepository(db *DB) *ProfileRepository {
	return &ProfileRepository{db: db}
}

// ByID loads the profile for an authenticated user id.
func (r *ProfileRepository) ByID(ctx context.Context, userID string) (*domain.Identity, error) {
	query := `SELECT id, username FROM profiles WHERE id = $1`

	var identity domain.Identity
	err := r.db.withPermit(ctx, func() error {
		return r.db.GetContext(ctx, &identity, query, userID)
	})
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.NewError(domain.KindNotFound, "user profile not found")
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load profile %s: %w", userID, err)
	}
	return &identity, nil
}
