package users

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/suPer8Hu/recipe-snap/internal/auth"
	"github.com/suPer8Hu/recipe-snap/internal/points"
)

var (
	ErrValidation         = errors.New("validation failed")
	ErrUsernameTaken      = errors.New("username already exists")
	ErrInvalidCredentials = errors.New("invalid username or password")
	ErrNotFound           = errors.New("user not found")
)

const (
	minUsernameLen = 3
	minPasswordLen = 6
)

type Service struct {
	db            *gorm.DB
	jwtSecret     string
	tokenTTL      time.Duration
	startingGrant int64
}

func NewService(db *gorm.DB, jwtSecret string, tokenTTL time.Duration, startingGrant int64) *Service {
	return &Service{db: db, jwtSecret: jwtSecret, tokenTTL: tokenTTL, startingGrant: startingGrant}
}

// Session is what register and login hand back to the client.
type Session struct {
	Profile Profile
	Points  int64
	Token   string
}

func validate(username, password string) error {
	if len([]rune(username)) < minUsernameLen {
		return fmt.Errorf("%w: username must be at least %d characters", ErrValidation, minUsernameLen)
	}
	if len(password) < minPasswordLen {
		return fmt.Errorf("%w: password must be at least %d characters", ErrValidation, minPasswordLen)
	}
	return nil
}

// Register creates the profile and its points account in one transaction.
func (s *Service) Register(ctx context.Context, username, password string) (*Session, error) {
	username = strings.TrimSpace(username)
	if err := validate(username, password); err != nil {
		return nil, err
	}

	hash, err := auth.HashPassword(password)
	if err != nil {
		return nil, err
	}

	p := Profile{
		ID:           uuid.NewString(),
		Username:     username,
		PasswordHash: hash,
	}
	var acc points.Account

	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		res := tx.Clauses(clause.OnConflict{DoNothing: true}).Create(&p)
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return ErrUsernameTaken
		}

		var err error
		acc, err = points.NewGormStore(tx).Create(ctx, p.ID, s.startingGrant)
		return err
	})
	if err != nil {
		return nil, err
	}

	token, err := auth.SignJWT(p.ID, p.Username, s.jwtSecret, s.tokenTTL)
	if err != nil {
		return nil, err
	}
	return &Session{Profile: p, Points: acc.Points, Token: token}, nil
}

func (s *Service) Login(ctx context.Context, username, password string) (*Session, error) {
	var p Profile
	err := s.db.WithContext(ctx).Where("username = ?", strings.TrimSpace(username)).First(&p).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrInvalidCredentials
		}
		return nil, err
	}
	if !auth.CheckPassword(p.PasswordHash, password) {
		return nil, ErrInvalidCredentials
	}

	acc, err := points.NewGormStore(s.db).Get(ctx, p.ID)
	if err != nil && !errors.Is(err, points.ErrAccountNotFound) {
		return nil, err
	}

	token, err := auth.SignJWT(p.ID, p.Username, s.jwtSecret, s.tokenTTL)
	if err != nil {
		return nil, err
	}
	return &Session{Profile: p, Points: acc.Points, Token: token}, nil
}

func (s *Service) Get(ctx context.Context, userID string) (*Profile, error) {
	var p Profile
	if err := s.db.WithContext(ctx).First(&p, "id = ?", userID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &p, nil
}
