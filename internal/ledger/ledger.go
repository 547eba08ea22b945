package ledger

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/deqrypt/yieldrouter/internal/domain"
)

// closeEpsilon is the remainder below which a partial withdrawal is treated
// as a full close. Remainders are clamped to exactly zero, never negative.
var closeEpsilon = decimal.New(1, -12)

const (
	eventChannel = "lending"

	lockTTL      = 15 * time.Second
	lockAttempts = 5
	lockBackoff  = 100 * time.Millisecond

	conflictRetries = 3
)

// Config holds ledger policy knobs.
type Config struct {
	// DefaultAPY is substituted when a lenient deposit path has no usable
	// APY snapshot.
	DefaultAPY float64
	// StrictAmounts rejects withdrawals exceeding recorded principal
	// instead of capping them.
	StrictAmounts bool
}

// Ledger is the position accounting engine. All mutations are serialized
// per position id behind the lock manager, and principal reductions use an
// optimistic conditional write so a lost race is retried rather than
// silently overwriting a concurrent update.
type Ledger struct {
	positions domain.PositionStore
	locks     domain.LockManager
	bus       domain.SignalBus
	logger    *slog.Logger
	cfg       Config

	now func() time.Time
}

// New creates a Ledger. The signal bus may be nil, in which case lifecycle
// events are not published.
func New(positions domain.PositionStore, locks domain.LockManager, bus domain.SignalBus, cfg Config, logger *slog.Logger) *Ledger {
	return &Ledger{
		positions: positions,
		locks:     locks,
		bus:       bus,
		logger:    logger,
		cfg:       cfg,
		now:       func() time.Time { return time.Now().UTC() },
	}
}

// DepositParams describes a confirmed deposit to record.
type DepositParams struct {
	Wallet   string
	Protocol string
	Token    string
	Amount   decimal.Decimal
	// APYSnapshot is the yield observed at deposit time. It is frozen for
	// the life of the position.
	APYSnapshot float64
	// AllowDefaultAPY substitutes the configured default when the snapshot
	// is non-positive (auto-routing path). Explicit deposits reject with
	// ErrInvalidAPY instead.
	AllowDefaultAPY bool
	// TxHash is the on-chain transaction that funded the deposit.
	TxHash string
}

// Deposit records a new position. Exactly one row is created per call;
// repeated deposits under the same wallet/protocol/token produce separate
// positions rather than merging.
func (l *Ledger) Deposit(ctx context.Context, p DepositParams) (domain.Position, error) {
	if p.Amount.Sign() <= 0 {
		return domain.Position{}, fmt.Errorf("ledger: deposit amount %s: %w", p.Amount, domain.ErrInvalidAmount)
	}

	apy := p.APYSnapshot
	if apy <= 0 {
		if !p.AllowDefaultAPY {
			return domain.Position{}, fmt.Errorf("ledger: apy snapshot %.4f: %w", apy, domain.ErrInvalidAPY)
		}
		apy = l.cfg.DefaultAPY
		l.logger.WarnContext(ctx, "ledger: substituting default apy",
			slog.String("protocol", p.Protocol),
			slog.Float64("default_apy", apy),
		)
	}

	pos := domain.Position{
		ID:          uuid.New().String(),
		Wallet:      p.Wallet,
		Protocol:    p.Protocol,
		Token:       p.Token,
		Principal:   p.Amount,
		APYSnapshot: apy,
		TxHash:      p.TxHash,
		DepositedAt: l.now(),
	}

	if err := l.positions.Create(ctx, pos); err != nil {
		if errors.Is(err, domain.ErrAlreadyExists) {
			return domain.Position{}, fmt.Errorf("ledger: duplicate deposit tx %s: %w", p.TxHash, err)
		}
		return domain.Position{}, fmt.Errorf("ledger: create position: %w", err)
	}

	l.publish(ctx, map[string]any{
		"event":       "position_opened",
		"position_id": pos.ID,
		"wallet":      pos.Wallet,
		"protocol":    pos.Protocol,
		"token":       pos.Token,
		"principal":   pos.Principal.String(),
		"apy":         pos.APYSnapshot,
	})

	l.logger.InfoContext(ctx, "ledger: position opened",
		slog.String("position_id", pos.ID),
		slog.String("protocol", pos.Protocol),
		slog.String("principal", pos.Principal.String()),
		slog.Float64("apy", pos.APYSnapshot),
	)

	return pos, nil
}

// WithdrawParams describes a withdrawal request. A negative Amount is the
// sentinel for "withdraw the entire current principal".
type WithdrawParams struct {
	PositionID string
	Amount     decimal.Decimal
}

// WithdrawResult reports the reconciled outcome of a withdrawal.
type WithdrawResult struct {
	Position  domain.Position
	Withdrawn decimal.Decimal
	Profit    decimal.Decimal
	ProfitPct decimal.Decimal
	Remaining decimal.Decimal
	DaysHeld  int
	Closed    bool
}

// Withdraw reconciles a full or partial withdrawal against a position.
// Profit is computed only on the withdrawn slice, always with the APY
// snapshot and deposit timestamp captured at creation; partial withdrawals
// never reset the accrual clock for the remaining principal.
func (l *Ledger) Withdraw(ctx context.Context, p WithdrawParams) (WithdrawResult, error) {
	if p.Amount.IsZero() {
		return WithdrawResult{}, fmt.Errorf("ledger: zero withdraw amount: %w", domain.ErrInvalidAmount)
	}

	unlock, err := l.acquireLock(ctx, p.PositionID)
	if err != nil {
		return WithdrawResult{}, err
	}
	defer unlock()

	var res WithdrawResult
	for attempt := 0; ; attempt++ {
		res, err = l.withdrawOnce(ctx, p)
		if err == nil {
			break
		}
		if !errors.Is(err, domain.ErrConflict) || attempt >= conflictRetries {
			return WithdrawResult{}, err
		}
		l.logger.WarnContext(ctx, "ledger: withdraw conflict, retrying",
			slog.String("position_id", p.PositionID),
			slog.Int("attempt", attempt+1),
		)
	}

	event := "position_reduced"
	if res.Closed {
		event = "position_closed"
	}
	l.publish(ctx, map[string]any{
		"event":       event,
		"position_id": res.Position.ID,
		"wallet":      res.Position.Wallet,
		"protocol":    res.Position.Protocol,
		"withdrawn":   res.Withdrawn.String(),
		"profit":      res.Profit.String(),
		"remaining":   res.Remaining.String(),
	})

	l.logger.InfoContext(ctx, "ledger: withdrawal reconciled",
		slog.String("position_id", res.Position.ID),
		slog.String("withdrawn", res.Withdrawn.String()),
		slog.String("profit", res.Profit.String()),
		slog.String("remaining", res.Remaining.String()),
		slog.Bool("closed", res.Closed),
	)

	return res, nil
}

func (l *Ledger) withdrawOnce(ctx context.Context, p WithdrawParams) (WithdrawResult, error) {
	pos, err := l.positions.GetByID(ctx, p.PositionID)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) || errors.Is(err, domain.ErrPositionNotFound) {
			return WithdrawResult{}, fmt.Errorf("ledger: position %s: %w", p.PositionID, domain.ErrPositionNotFound)
		}
		return WithdrawResult{}, fmt.Errorf("ledger: get position %s: %w", p.PositionID, err)
	}

	days := DaysSince(pos.DepositedAt, l.now())

	withdrawAll := p.Amount.Sign() < 0
	withdrawn := pos.Principal
	if !withdrawAll {
		if p.Amount.GreaterThan(pos.Principal) {
			if l.cfg.StrictAmounts {
				return WithdrawResult{}, fmt.Errorf("ledger: withdraw %s exceeds principal %s: %w",
					p.Amount, pos.Principal, domain.ErrInvalidAmount)
			}
			// Cap at recorded principal; the remainder can never go negative.
			withdrawn = pos.Principal
		} else {
			withdrawn = p.Amount
		}
	}

	profit := ComputeProfit(withdrawn, pos.APYSnapshot, days)
	profitPct := ComputeProfitPercent(profit, withdrawn)

	remaining := pos.Principal.Sub(withdrawn)
	closed := withdrawAll || remaining.Cmp(closeEpsilon) <= 0

	if closed {
		remaining = decimal.Zero
		if err := l.positions.Delete(ctx, pos.ID); err != nil {
			if errors.Is(err, domain.ErrNotFound) || errors.Is(err, domain.ErrPositionNotFound) {
				return WithdrawResult{}, fmt.Errorf("ledger: position %s: %w", pos.ID, domain.ErrPositionNotFound)
			}
			return WithdrawResult{}, fmt.Errorf("ledger: delete position %s: %w", pos.ID, err)
		}
	} else {
		if err := l.positions.ReducePrincipal(ctx, pos.ID, pos.Principal, remaining); err != nil {
			if errors.Is(err, domain.ErrConflict) {
				return WithdrawResult{}, err
			}
			if errors.Is(err, domain.ErrNotFound) || errors.Is(err, domain.ErrPositionNotFound) {
				return WithdrawResult{}, fmt.Errorf("ledger: position %s: %w", pos.ID, domain.ErrPositionNotFound)
			}
			return WithdrawResult{}, fmt.Errorf("ledger: reduce principal %s: %w", pos.ID, err)
		}
	}

	return WithdrawResult{
		Position:  pos,
		Withdrawn: withdrawn,
		Profit:    profit,
		ProfitPct: profitPct,
		Remaining: remaining,
		DaysHeld:  days,
		Closed:    closed,
	}, nil
}

// Info returns the wallet's open positions annotated with live-computed
// profit, plus portfolio totals. It is a pure projection and never mutates
// the store. Rows with non-positive principal are filtered out.
func (l *Ledger) Info(ctx context.Context, wallet string) (domain.PortfolioInfo, error) {
	positions, err := l.positions.GetOpen(ctx, wallet)
	if err != nil {
		return domain.PortfolioInfo{}, fmt.Errorf("ledger: get open positions for %q: %w", wallet, err)
	}

	info := domain.PortfolioInfo{
		Wallet:             wallet,
		Positions:          []domain.PositionView{},
		TotalDeposited:     decimal.Zero,
		TotalCurrentProfit: decimal.Zero,
	}

	now := l.now()
	for _, pos := range positions {
		if pos.Principal.Sign() <= 0 {
			continue
		}
		days := DaysSince(pos.DepositedAt, now)
		profit := ComputeProfit(pos.Principal, pos.APYSnapshot, days)

		info.Positions = append(info.Positions, domain.PositionView{
			Position:         pos,
			DaysHeld:         days,
			CurrentProfit:    profit,
			CurrentProfitPct: ComputeProfitPercent(profit, pos.Principal),
		})
		info.TotalDeposited = info.TotalDeposited.Add(pos.Principal)
		info.TotalCurrentProfit = info.TotalCurrentProfit.Add(profit)
	}

	return info, nil
}

// ResolveWithdrawal returns the position and the amount the withdrawal
// policy would settle for the requested amount, without mutating anything.
// The sentinel, cap, and strict rules match Withdraw exactly so a caller
// moving funds ahead of the reconciliation cannot diverge from it.
func (l *Ledger) ResolveWithdrawal(ctx context.Context, positionID string, requested decimal.Decimal) (domain.Position, decimal.Decimal, error) {
	if requested.IsZero() {
		return domain.Position{}, decimal.Zero, fmt.Errorf("ledger: zero withdraw amount: %w", domain.ErrInvalidAmount)
	}

	pos, err := l.Position(ctx, positionID)
	if err != nil {
		return domain.Position{}, decimal.Zero, err
	}

	if requested.Sign() < 0 {
		return pos, pos.Principal, nil
	}
	if requested.GreaterThan(pos.Principal) {
		if l.cfg.StrictAmounts {
			return domain.Position{}, decimal.Zero, fmt.Errorf("ledger: withdraw %s exceeds principal %s: %w",
				requested, pos.Principal, domain.ErrInvalidAmount)
		}
		return pos, pos.Principal, nil
	}
	return pos, requested, nil
}

// Position fetches a single position by id.
func (l *Ledger) Position(ctx context.Context, id string) (domain.Position, error) {
	pos, err := l.positions.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, domain.ErrPositionNotFound) {
			return domain.Position{}, err
		}
		return domain.Position{}, fmt.Errorf("ledger: get position %s: %w", id, err)
	}
	return pos, nil
}

// acquireLock serializes mutations per position id, retrying briefly when
// another request holds the lock.
func (l *Ledger) acquireLock(ctx context.Context, positionID string) (func(), error) {
	key := "position:" + positionID

	for attempt := 0; ; attempt++ {
		unlock, err := l.locks.Acquire(ctx, key, lockTTL)
		if err == nil {
			return unlock, nil
		}
		if !errors.Is(err, domain.ErrLockHeld) || attempt >= lockAttempts-1 {
			return nil, fmt.Errorf("ledger: lock position %s: %w", positionID, err)
		}
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(lockBackoff):
		}
	}
}

// publish emits a lifecycle event. Publish failures are logged and never
// fail the ledger operation.
func (l *Ledger) publish(ctx context.Context, event map[string]any) {
	if l.bus == nil {
		return
	}
	payload, _ := json.Marshal(event)
	if err := l.bus.Publish(ctx, eventChannel, payload); err != nil {
		l.logger.WarnContext(ctx, "ledger: publish event failed",
			slog.String("error", err.Error()),
		)
	}
	if err := l.bus.StreamAppend(ctx, eventChannel, payload); err != nil {
		l.logger.WarnContext(ctx, "ledger: stream append failed",
			slog.String("error", err.Error()),
		)
	}
}
