package points

import (
	"context"
	"errors"
	"fmt"

	"github.com/rs/zerolog"

	"github.com/suPer8Hu/recipe-snap/internal/config"
	"github.com/suPer8Hu/recipe-snap/internal/metrics"
	"github.com/suPer8Hu/recipe-snap/internal/retry"
)

// Ledger is the per-user points balance. Insufficient balance is reported as
// *InsufficientError; storage failures are retried and then surfaced wrapped
// in ErrLedgerUnavailable.
type Ledger struct {
	store  Store
	policy retry.Policy
	log    *zerolog.Logger
}

func NewLedger(store Store, cfg config.PointsConfig, log *zerolog.Logger) *Ledger {
	if log == nil {
		nop := zerolog.Nop()
		log = &nop
	}
	return &Ledger{
		store: store,
		policy: retry.Policy{
			MaxAttempts: cfg.RetryAttempts,
			BaseDelay:   cfg.RetryBaseDelay,
			Retryable:   isTransient,
		},
		log: log,
	}
}

func isTransient(err error) bool {
	if isOutcome(err) {
		return false
	}
	return !errors.Is(err, context.Canceled) && !errors.Is(err, context.DeadlineExceeded)
}

func (l *Ledger) do(ctx context.Context, op string, fn func(ctx context.Context) error) error {
	err := l.policy.Do(ctx, fn)
	switch {
	case err == nil:
		metrics.IncLedger(op, "ok")
		return nil
	case isOutcome(err):
		metrics.IncLedger(op, "rejected")
		return err
	default:
		metrics.IncLedger(op, "error")
		l.log.Error().Err(err).Str("op", op).Msg("points ledger unavailable")
		return fmt.Errorf("%w: %s: %w", ErrLedgerUnavailable, op, err)
	}
}

func (l *Ledger) GetBalance(ctx context.Context, userID string) (int64, error) {
	var acc Account
	err := l.do(ctx, "get", func(ctx context.Context) error {
		var err error
		acc, err = l.store.Get(ctx, userID)
		return err
	})
	return acc.Points, err
}

// HasEnough returns whether the balance covers required, plus the balance read.
func (l *Ledger) HasEnough(ctx context.Context, userID string, required int64) (bool, int64, error) {
	if required < 0 {
		return false, 0, ErrInvalidAmount
	}
	bal, err := l.GetBalance(ctx, userID)
	if err != nil {
		return false, 0, err
	}
	return bal >= required, bal, nil
}

// Consume debits amount and returns the new balance. The balance never goes
// below zero; a refused debit leaves it unchanged.
func (l *Ledger) Consume(ctx context.Context, userID string, amount int64) (int64, error) {
	if amount <= 0 {
		return 0, ErrInvalidAmount
	}
	var bal int64
	err := l.do(ctx, "consume", func(ctx context.Context) error {
		var err error
		bal, err = l.store.Debit(ctx, userID, amount)
		return err
	})
	if err != nil {
		return 0, err
	}
	l.log.Debug().Str("user_id", userID).Int64("amount", amount).Int64("balance", bal).Msg("points consumed")
	return bal, nil
}

func (l *Ledger) Reward(ctx context.Context, userID string, amount int64) (int64, error) {
	if amount <= 0 {
		return 0, ErrInvalidAmount
	}
	var bal int64
	err := l.do(ctx, "reward", func(ctx context.Context) error {
		var err error
		bal, err = l.store.Credit(ctx, userID, amount)
		return err
	})
	if err != nil {
		return 0, err
	}
	l.log.Debug().Str("user_id", userID).Int64("amount", amount).Int64("balance", bal).Msg("points rewarded")
	return bal, nil
}

// Open creates the ledger row for a user with the given grant.
func (l *Ledger) Open(ctx context.Context, userID string, grant int64) (Account, error) {
	if grant < 0 {
		return Account{}, ErrInvalidAmount
	}
	var acc Account
	err := l.do(ctx, "open", func(ctx context.Context) error {
		var err error
		acc, err = l.store.Create(ctx, userID, grant)
		return err
	})
	return acc, err
}
