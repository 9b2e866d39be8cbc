package points

import (
	"context"
	"errors"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type GormStore struct {
	db *gorm.DB
}

func NewGormStore(db *gorm.DB) *GormStore {
	return &GormStore{db: db}
}

// WithTx returns a store bound to an open transaction.
func (s *GormStore) WithTx(tx *gorm.DB) *GormStore {
	return &GormStore{db: tx}
}

func (s *GormStore) Get(ctx context.Context, userID string) (Account, error) {
	var acc Account
	if err := s.db.WithContext(ctx).First(&acc, "user_id = ?", userID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return Account{}, ErrAccountNotFound
		}
		return Account{}, err
	}
	return acc, nil
}

func (s *GormStore) Create(ctx context.Context, userID string, initial int64) (Account, error) {
	acc := Account{UserID: userID, Points: initial}
	res := s.db.WithContext(ctx).
		Clauses(clause.OnConflict{DoNothing: true}).
		Create(&acc)
	if res.Error != nil {
		return Account{}, res.Error
	}
	if res.RowsAffected == 0 {
		return Account{}, ErrAccountExists
	}
	return acc, nil
}

func (s *GormStore) Debit(ctx context.Context, userID string, amount int64) (int64, error) {
	var balance int64
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		res := tx.Model(&Account{}).
			Where("user_id = ? AND points >= ?", userID, amount).
			Updates(map[string]any{
				"points":     gorm.Expr("points - ?", amount),
				"updated_at": time.Now(),
			})
		if res.Error != nil {
			return res.Error
		}

		var acc Account
		if err := tx.First(&acc, "user_id = ?", userID).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrAccountNotFound
			}
			return err
		}
		if res.RowsAffected == 0 {
			return &InsufficientError{Current: acc.Points, Required: amount}
		}
		balance = acc.Points
		return nil
	})
	return balance, err
}

func (s *GormStore) Credit(ctx context.Context, userID string, amount int64) (int64, error) {
	var balance int64
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		res := tx.Model(&Account{}).
			Where("user_id = ?", userID).
			Updates(map[string]any{
				"points":     gorm.Expr("points + ?", amount),
				"updated_at": time.Now(),
			})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return ErrAccountNotFound
		}

		var acc Account
		if err := tx.First(&acc, "user_id = ?", userID).Error; err != nil {
			return err
		}
		balance = acc.Points
		return nil
	})
	return balance, err
}
