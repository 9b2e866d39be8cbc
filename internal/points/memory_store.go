package points

import (
	"context"
	"sync"
	"time"
)

// MemoryStore keeps accounts in a map. Used by tests and single process dev runs.
type MemoryStore struct {
	mu       sync.Mutex
	accounts map[string]Account
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{accounts: make(map[string]Account)}
}

func (s *MemoryStore) Get(ctx context.Context, userID string) (Account, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	acc, ok := s.accounts[userID]
	if !ok {
		return Account{}, ErrAccountNotFound
	}
	return acc, nil
}

func (s *MemoryStore) Create(ctx context.Context, userID string, initial int64) (Account, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.accounts[userID]; ok {
		return Account{}, ErrAccountExists
	}
	now := time.Now()
	acc := Account{UserID: userID, Points: initial, CreatedAt: now, UpdatedAt: now}
	s.accounts[userID] = acc
	return acc, nil
}

func (s *MemoryStore) Debit(ctx context.Context, userID string, amount int64) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	acc, ok := s.accounts[userID]
	if !ok {
		return 0, ErrAccountNotFound
	}
	if acc.Points < amount {
		return 0, &InsufficientError{Current: acc.Points, Required: amount}
	}
	acc.Points -= amount
	acc.UpdatedAt = time.Now()
	s.accounts[userID] = acc
	return acc.Points, nil
}

func (s *MemoryStore) Credit(ctx context.Context, userID string, amount int64) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	acc, ok := s.accounts[userID]
	if !ok {
		return 0, ErrAccountNotFound
	}
	acc.Points += amount
	acc.UpdatedAt = time.Now()
	s.accounts[userID] = acc
	return acc.Points, nil
}
