package points

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	gormsqlite "github.com/glebarez/sqlite"
	"gorm.io/gorm"

	"github.com/suPer8Hu/recipe-snap/internal/config"
)

func openTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	name := strings.NewReplacer("/", "_", " ", "_").Replace(t.Name())
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", name)
	db, err := gorm.Open(gormsqlite.Open(dsn), &gorm.Config{})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	sqlDB, err := db.DB()
	if err != nil {
		t.Fatalf("sql db: %v", err)
	}
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })

	if err := db.AutoMigrate(&Account{}); err != nil {
		t.Fatalf("automigrate: %v", err)
	}
	return db
}

// openFileDB opens a WAL database on disk with several connections so
// concurrent debits run as competing transactions.
func openFileDB(t *testing.T) *gorm.DB {
	t.Helper()
	path := filepath.Join(t.TempDir(), "points.db")
	dsn := "file:" + path + "?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)&_txlock=immediate"
	db, err := gorm.Open(gormsqlite.Open(dsn), &gorm.Config{})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	sqlDB, err := db.DB()
	if err != nil {
		t.Fatalf("sql db: %v", err)
	}
	sqlDB.SetMaxOpenConns(8)
	t.Cleanup(func() { _ = sqlDB.Close() })

	if err := db.AutoMigrate(&Account{}); err != nil {
		t.Fatalf("automigrate: %v", err)
	}
	return db
}

func testPointsConfig() config.PointsConfig {
	return config.PointsConfig{
		JobPrice:       10,
		StartingGrant:  100,
		RetryAttempts:  3,
		RetryBaseDelay: time.Millisecond,
	}
}

func newGormLedger(t *testing.T) *Ledger {
	t.Helper()
	return NewLedger(NewGormStore(openTestDB(t)), testPointsConfig(), nil)
}

func TestLedger_ConsumeAndReward(t *testing.T) {
	ctx := context.Background()
	l := newGormLedger(t)

	if _, err := l.Open(ctx, "u1", 100); err != nil {
		t.Fatalf("open: %v", err)
	}

	bal, err := l.Consume(ctx, "u1", 10)
	if err != nil || bal != 90 {
		t.Fatalf("consume: bal=%d err=%v", bal, err)
	}
	bal, err = l.Reward(ctx, "u1", 5)
	if err != nil || bal != 95 {
		t.Fatalf("reward: bal=%d err=%v", bal, err)
	}
	got, err := l.GetBalance(ctx, "u1")
	if err != nil || got != 95 {
		t.Fatalf("balance: %d err=%v", got, err)
	}
}

func TestLedger_InsufficientLeavesBalanceUnchanged(t *testing.T) {
	ctx := context.Background()
	l := newGormLedger(t)
	if _, err := l.Open(ctx, "u1", 9); err != nil {
		t.Fatalf("open: %v", err)
	}

	for _, amount := range []int64{10, 11, 1000} {
		_, err := l.Consume(ctx, "u1", amount)
		var ie *InsufficientError
		if !errors.As(err, &ie) || !errors.Is(err, ErrInsufficientPoints) {
			t.Fatalf("expected insufficient error, got %v", err)
		}
		if ie.Current != 9 || ie.Required != amount {
			t.Fatalf("unexpected details: %+v", ie)
		}
		if bal, _ := l.GetBalance(ctx, "u1"); bal != 9 {
			t.Fatalf("balance changed to %d", bal)
		}
	}

	ok, bal, err := l.HasEnough(ctx, "u1", 10)
	if err != nil || ok || bal != 9 {
		t.Fatalf("HasEnough: ok=%v bal=%d err=%v", ok, bal, err)
	}
}

func TestLedger_RejectsNonPositiveAmounts(t *testing.T) {
	ctx := context.Background()
	l := newGormLedger(t)
	if _, err := l.Open(ctx, "u1", 10); err != nil {
		t.Fatalf("open: %v", err)
	}
	for _, amount := range []int64{0, -5} {
		if _, err := l.Consume(ctx, "u1", amount); !errors.Is(err, ErrInvalidAmount) {
			t.Fatalf("consume(%d): expected ErrInvalidAmount, got %v", amount, err)
		}
		if _, err := l.Reward(ctx, "u1", amount); !errors.Is(err, ErrInvalidAmount) {
			t.Fatalf("reward(%d): expected ErrInvalidAmount, got %v", amount, err)
		}
	}
	if _, _, err := l.HasEnough(ctx, "u1", -1); !errors.Is(err, ErrInvalidAmount) {
		t.Fatalf("expected ErrInvalidAmount, got %v", err)
	}
}

func TestLedger_MissingAccount(t *testing.T) {
	ctx := context.Background()
	l := newGormLedger(t)

	if _, err := l.GetBalance(ctx, "ghost"); !errors.Is(err, ErrAccountNotFound) {
		t.Fatalf("expected ErrAccountNotFound, got %v", err)
	}
	if _, err := l.Consume(ctx, "ghost", 1); !errors.Is(err, ErrAccountNotFound) {
		t.Fatalf("expected ErrAccountNotFound, got %v", err)
	}
	if _, err := l.Reward(ctx, "ghost", 1); !errors.Is(err, ErrAccountNotFound) {
		t.Fatalf("expected ErrAccountNotFound, got %v", err)
	}
}

func TestLedger_OpenIsUniquePerUser(t *testing.T) {
	ctx := context.Background()
	l := newGormLedger(t)
	if _, err := l.Open(ctx, "u1", 100); err != nil {
		t.Fatalf("open: %v", err)
	}
	if _, err := l.Open(ctx, "u1", 100); !errors.Is(err, ErrAccountExists) {
		t.Fatalf("expected ErrAccountExists, got %v", err)
	}
	if bal, _ := l.GetBalance(ctx, "u1"); bal != 100 {
		t.Fatalf("second open changed balance to %d", bal)
	}
}

func TestLedger_ConcurrentConsumeNeverOverdraws(t *testing.T) {
	ctx := context.Background()
	l := NewLedger(NewGormStore(openFileDB(t)), testPointsConfig(), nil)
	if _, err := l.Open(ctx, "u1", 15); err != nil {
		t.Fatalf("open: %v", err)
	}

	var (
		wg        sync.WaitGroup
		succeeded int32
		start     = make(chan struct{})
	)
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			<-start
			_, err := l.Consume(ctx, "u1", 10)
			if err == nil {
				atomic.AddInt32(&succeeded, 1)
				return
			}
			if !errors.Is(err, ErrInsufficientPoints) {
				t.Errorf("unexpected error: %v", err)
			}
		}()
	}
	close(start)
	wg.Wait()

	if succeeded != 1 {
		t.Fatalf("expected exactly one successful consume, got %d", succeeded)
	}
	if bal, _ := l.GetBalance(ctx, "u1"); bal != 5 {
		t.Fatalf("expected balance 5, got %d", bal)
	}
}

func TestGormStore_DebitIsConditionalUpdate(t *testing.T) {
	db := openTestDB(t)
	var (
		mu  sync.Mutex
		sql []string
	)
	err := db.Callback().Update().After("gorm:update").Register("test:capture_sql", func(tx *gorm.DB) {
		mu.Lock()
		sql = append(sql, tx.Statement.SQL.String())
		mu.Unlock()
	})
	if err != nil {
		t.Fatalf("register callback: %v", err)
	}

	ctx := context.Background()
	s := NewGormStore(db)
	if _, err := s.Create(ctx, "u1", 20); err != nil {
		t.Fatalf("create: %v", err)
	}
	if _, err := s.Debit(ctx, "u1", 5); err != nil {
		t.Fatalf("debit: %v", err)
	}

	mu.Lock()
	defer mu.Unlock()
	if len(sql) != 1 {
		t.Fatalf("expected one update statement, got %q", sql)
	}
	if !strings.Contains(sql[0], "points >= ?") || !strings.Contains(sql[0], "points - ?") {
		t.Fatalf("debit must check and decrement in one statement: %s", sql[0])
	}
}

func TestLedger_InterleavedOperationsSumUp(t *testing.T) {
	ctx := context.Background()
	stores := map[string]Store{
		"gorm":   NewGormStore(openTestDB(t)),
		"memory": NewMemoryStore(),
	}
	for name, store := range stores {
		t.Run(name, func(t *testing.T) {
			l := NewLedger(store, testPointsConfig(), nil)
			const start = 50
			if _, err := l.Open(ctx, "u1", start); err != nil {
				t.Fatalf("open: %v", err)
			}

			var (
				wg       sync.WaitGroup
				rewarded int64
				consumed int64
			)
			rng := rand.New(rand.NewSource(7))
			for i := 0; i < 60; i++ {
				amount := int64(rng.Intn(20) + 1)
				isReward := rng.Intn(2) == 0
				wg.Add(1)
				go func() {
					defer wg.Done()
					if isReward {
						if _, err := l.Reward(ctx, "u1", amount); err != nil {
							t.Errorf("reward: %v", err)
							return
						}
						atomic.AddInt64(&rewarded, amount)
						return
					}
					bal, err := l.Consume(ctx, "u1", amount)
					switch {
					case err == nil:
						atomic.AddInt64(&consumed, amount)
						if bal < 0 {
							t.Errorf("negative balance %d", bal)
						}
					case errors.Is(err, ErrInsufficientPoints):
					default:
						t.Errorf("consume: %v", err)
					}
				}()
			}
			wg.Wait()

			bal, err := l.GetBalance(ctx, "u1")
			if err != nil {
				t.Fatalf("balance: %v", err)
			}
			if want := start + rewarded - consumed; bal != want {
				t.Fatalf("balance %d, want %d (rewarded=%d consumed=%d)", bal, want, rewarded, consumed)
			}
		})
	}
}

// flakyStore fails the first n storage calls with a transport style error.
type flakyStore struct {
	Store
	failures int32
}

var errConnReset = errors.New("connection reset by peer")

func (f *flakyStore) fail() bool { return atomic.AddInt32(&f.failures, -1) >= 0 }

func (f *flakyStore) Debit(ctx context.Context, userID string, amount int64) (int64, error) {
	if f.fail() {
		return 0, errConnReset
	}
	return f.Store.Debit(ctx, userID, amount)
}

func (f *flakyStore) Get(ctx context.Context, userID string) (Account, error) {
	if f.fail() {
		return Account{}, errConnReset
	}
	return f.Store.Get(ctx, userID)
}

func TestLedger_RetriesTransientStoreFailures(t *testing.T) {
	ctx := context.Background()
	mem := NewMemoryStore()
	if _, err := mem.Create(ctx, "u1", 30); err != nil {
		t.Fatalf("create: %v", err)
	}

	l := NewLedger(&flakyStore{Store: mem, failures: 2}, testPointsConfig(), nil)
	bal, err := l.Consume(ctx, "u1", 10)
	if err != nil || bal != 20 {
		t.Fatalf("consume after retries: bal=%d err=%v", bal, err)
	}
}

func TestLedger_SurfacesUnavailableAfterRetries(t *testing.T) {
	ctx := context.Background()
	mem := NewMemoryStore()
	if _, err := mem.Create(ctx, "u1", 30); err != nil {
		t.Fatalf("create: %v", err)
	}

	l := NewLedger(&flakyStore{Store: mem, failures: 100}, testPointsConfig(), nil)
	_, err := l.GetBalance(ctx, "u1")
	if !errors.Is(err, ErrLedgerUnavailable) || !errors.Is(err, errConnReset) {
		t.Fatalf("expected wrapped ErrLedgerUnavailable, got %v", err)
	}
	if bal, _ := mem.Get(ctx, "u1"); bal.Points != 30 {
		t.Fatalf("balance changed to %d", bal.Points)
	}
}
