package domain

import (
	"context"
	"time"

	"github.com/shopspring/decimal"
)

// ListOpts provides pagination and filtering for list queries.
type ListOpts struct {
	Limit  int
	Offset int
	Since  *time.Time
	Until  *time.Time
}

// PositionStore persists deposit positions.
type PositionStore interface {
	Create(ctx context.Context, pos Position) error
	GetByID(ctx context.Context, id string) (Position, error)
	// GetOpen returns every position for the wallet whose principal is
	// strictly positive, newest first.
	GetOpen(ctx context.Context, wallet string) ([]Position, error)
	// ReducePrincipal conditionally sets the position's principal to next,
	// succeeding only when the stored value still equals prev. It returns
	// ErrConflict when another writer got there first and
	// ErrPositionNotFound when the row no longer exists.
	ReducePrincipal(ctx context.Context, id string, prev, next decimal.Decimal) error
	Delete(ctx context.Context, id string) error
	CountByWallet(ctx context.Context, wallet string) (int64, error)
}

// TransactionStore persists the append-only transfer log.
type TransactionStore interface {
	Insert(ctx context.Context, tx Transaction) error
	ListByWallet(ctx context.Context, wallet string, opts ListOpts) ([]Transaction, error)
}

// ProfileStore persists user profiles keyed by wallet address.
type ProfileStore interface {
	Upsert(ctx context.Context, p Profile) error
	GetByWallet(ctx context.Context, wallet string) (Profile, error)
	SetVerified(ctx context.Context, wallet string, verified bool) error
	SetImageURL(ctx context.Context, wallet, url string) error
}
