package postgres

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/deqrypt/yieldrouter/internal/domain"
)

// ProfileStore implements domain.ProfileStore using PostgreSQL.
type ProfileStore struct {
	pool *pgxpool.Pool
}

// NewProfileStore creates a ProfileStore backed by the given pool.
func NewProfileStore(pool *pgxpool.Pool) *ProfileStore {
	return &ProfileStore{pool: pool}
}

// Upsert inserts or updates a profile keyed by wallet address.
func (s *ProfileStore) Upsert(ctx context.Context, p domain.Profile) error {
	const query = `
		INSERT INTO profiles (wallet_address, name, description, is_verified, image_url, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, NOW(), NOW())
		ON CONFLICT (wallet_address) DO UPDATE SET
			name        = EXCLUDED.name,
			description = EXCLUDED.description,
			updated_at  = NOW()`

	_, err := s.pool.Exec(ctx, query,
		strings.ToLower(p.Wallet), p.Name, p.Description, p.Verified, p.ImageURL,
	)
	if err != nil {
		return fmt.Errorf("postgres: upsert profile %s: %w", p.Wallet, err)
	}
	return nil
}

// GetByWallet retrieves a profile by wallet address (case-insensitive).
func (s *ProfileStore) GetByWallet(ctx context.Context, wallet string) (domain.Profile, error) {
	row := s.pool.QueryRow(ctx, `
		SELECT wallet_address, name, description, is_verified, image_url, created_at, updated_at
		FROM profiles WHERE wallet_address = LOWER($1)`, wallet)

	var p domain.Profile
	err := row.Scan(&p.Wallet, &p.Name, &p.Description, &p.Verified, &p.ImageURL, &p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.Profile{}, domain.ErrNotFound
		}
		return domain.Profile{}, fmt.Errorf("postgres: get profile %s: %w", wallet, err)
	}
	return p, nil
}

// SetVerified flips the verification flag.
func (s *ProfileStore) SetVerified(ctx context.Context, wallet string, verified bool) error {
	tag, err := s.pool.Exec(ctx,
		"UPDATE profiles SET is_verified = $2, updated_at = NOW() WHERE wallet_address = LOWER($1)",
		wallet, verified,
	)
	if err != nil {
		return fmt.Errorf("postgres: set verified %s: %w", wallet, err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrNotFound
	}
	return nil
}

// SetImageURL records the uploaded profile image location.
func (s *ProfileStore) SetImageURL(ctx context.Context, wallet, url string) error {
	tag, err := s.pool.Exec(ctx,
		"UPDATE profiles SET image_url = $2, updated_at = NOW() WHERE wallet_address = LOWER($1)",
		wallet, url,
	)
	if err != nil {
		return fmt.Errorf("postgres: set image url %s: %w", wallet, err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrNotFound
	}
	return nil
}

// Compile-time interface check.
var _ domain.ProfileStore = (*ProfileStore)(nil)
