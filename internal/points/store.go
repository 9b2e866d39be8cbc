package points

import "context"

// Store persists accounts. Debit and Credit must be atomic per user: the
// check and the write happen in one conditional statement.
type Store interface {
	Get(ctx context.Context, userID string) (Account, error)
	Create(ctx context.Context, userID string, initial int64) (Account, error)
	// Debit returns *InsufficientError when the balance is below amount and
	// leaves the row untouched.
	Debit(ctx context.Context, userID string, amount int64) (int64, error)
	Credit(ctx context.Context, userID string, amount int64) (int64, error)
}
