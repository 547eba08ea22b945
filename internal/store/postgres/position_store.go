package postgres

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"github.com/deqrypt/yieldrouter/internal/domain"
)

// uniqueViolation is the PostgreSQL error code for unique constraint breaks.
const uniqueViolation = "23505"

// PositionStore implements domain.PositionStore using PostgreSQL.
//
// NUMERIC columns are selected as text and parsed into decimal so principal
// amounts never pass through binary floating point.
type PositionStore struct {
	pool *pgxpool.Pool
}

// NewPositionStore creates a PositionStore backed by the given pool.
func NewPositionStore(pool *pgxpool.Pool) *PositionStore {
	return &PositionStore{pool: pool}
}

const positionSelectCols = `id, wallet_address, protocol, token_symbol,
	principal_amount::text, apy_snapshot, COALESCE(tx_hash, ''), deposited_at`

func scanPosition(row pgx.Row) (domain.Position, error) {
	var p domain.Position
	var principal string

	err := row.Scan(
		&p.ID, &p.Wallet, &p.Protocol, &p.Token,
		&principal, &p.APYSnapshot, &p.TxHash, &p.DepositedAt,
	)
	if err != nil {
		return domain.Position{}, err
	}

	p.Principal, err = decimal.NewFromString(principal)
	if err != nil {
		return domain.Position{}, fmt.Errorf("parse principal %q: %w", principal, err)
	}
	return p, nil
}

// Create inserts a new position row. A duplicate transaction hash maps to
// domain.ErrAlreadyExists so retried client requests cannot double-record a
// deposit.
func (s *PositionStore) Create(ctx context.Context, p domain.Position) error {
	const query = `
		INSERT INTO positions (
			id, wallet_address, protocol, token_symbol,
			principal_amount, apy_snapshot, tx_hash, deposited_at, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, NULLIF($7, ''), $8, NOW())`

	_, err := s.pool.Exec(ctx, query,
		p.ID, strings.ToLower(p.Wallet), p.Protocol, p.Token,
		p.Principal.String(), p.APYSnapshot, p.TxHash, p.DepositedAt,
	)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
			return domain.ErrAlreadyExists
		}
		return fmt.Errorf("postgres: create position %s: %w", p.ID, err)
	}
	return nil
}

// GetByID retrieves a single position.
func (s *PositionStore) GetByID(ctx context.Context, id string) (domain.Position, error) {
	row := s.pool.QueryRow(ctx,
		`SELECT `+positionSelectCols+` FROM positions WHERE id = $1`, id)

	p, err := scanPosition(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.Position{}, domain.ErrPositionNotFound
		}
		return domain.Position{}, fmt.Errorf("postgres: get position %s: %w", id, err)
	}
	return p, nil
}

// GetOpen returns the wallet's positions with positive principal, newest
// first. Wallet matching is case-insensitive.
func (s *PositionStore) GetOpen(ctx context.Context, wallet string) ([]domain.Position, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT `+positionSelectCols+` FROM positions
		 WHERE LOWER(wallet_address) = LOWER($1) AND principal_amount > 0
		 ORDER BY deposited_at DESC`, wallet)
	if err != nil {
		return nil, fmt.Errorf("postgres: get open positions: %w", err)
	}
	defer rows.Close()

	var positions []domain.Position
	for rows.Next() {
		p, err := scanPosition(rows)
		if err != nil {
			return nil, fmt.Errorf("postgres: scan open positions: %w", err)
		}
		positions = append(positions, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("postgres: scan open positions: %w", err)
	}
	return positions, nil
}

// ReducePrincipal conditionally updates principal_amount, succeeding only
// when the stored value still equals prev. A zero-row update against an
// existing row signals a lost race (domain.ErrConflict); against a missing
// row it signals domain.ErrPositionNotFound.
func (s *PositionStore) ReducePrincipal(ctx context.Context, id string, prev, next decimal.Decimal) error {
	const query = `
		UPDATE positions SET
			principal_amount = $3,
			updated_at       = NOW()
		WHERE id = $1 AND principal_amount = $2`

	tag, err := s.pool.Exec(ctx, query, id, prev.String(), next.String())
	if err != nil {
		return fmt.Errorf("postgres: reduce principal %s: %w", id, err)
	}
	if tag.RowsAffected() == 0 {
		var exists bool
		if err := s.pool.QueryRow(ctx,
			"SELECT EXISTS(SELECT 1 FROM positions WHERE id = $1)", id,
		).Scan(&exists); err != nil {
			return fmt.Errorf("postgres: reduce principal %s: %w", id, err)
		}
		if exists {
			return domain.ErrConflict
		}
		return domain.ErrPositionNotFound
	}
	return nil
}

// Delete removes a position row.
func (s *PositionStore) Delete(ctx context.Context, id string) error {
	tag, err := s.pool.Exec(ctx, "DELETE FROM positions WHERE id = $1", id)
	if err != nil {
		return fmt.Errorf("postgres: delete position %s: %w", id, err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrPositionNotFound
	}
	return nil
}

// CountByWallet counts all rows recorded for a wallet, open or zeroed.
func (s *PositionStore) CountByWallet(ctx context.Context, wallet string) (int64, error) {
	var n int64
	err := s.pool.QueryRow(ctx,
		"SELECT COUNT(*) FROM positions WHERE LOWER(wallet_address) = LOWER($1)", wallet,
	).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("postgres: count positions: %w", err)
	}
	return n, nil
}

// Compile-time interface check.
var _ domain.PositionStore = (*PositionStore)(nil)
