package job

import (
	"context"
	"errors"
	"time"

	"gorm.io/gorm"

	"github.com/suPer8Hu/recipe-snap/internal/ai"
)

type GormStore struct {
	db *gorm.DB
}

func NewGormStore(db *gorm.DB) *GormStore {
	return &GormStore{db: db}
}

func (s *GormStore) Create(ctx context.Context, j *Job) error {
	return s.db.WithContext(ctx).Create(j).Error
}

func (s *GormStore) Get(ctx context.Context, id string) (*Job, error) {
	var j Job
	if err := s.db.WithContext(ctx).
		Omit("image_data").
		First(&j, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &j, nil
}

func (s *GormStore) LoadImage(ctx context.Context, id string) (ai.Image, error) {
	var j Job
	if err := s.db.WithContext(ctx).
		Select("id", "image_data", "image_mime").
		First(&j, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ai.Image{}, ErrNotFound
		}
		return ai.Image{}, err
	}
	return ai.Image{Data: j.ImageData, MIMEType: j.ImageMIME}, nil
}

// ListByUser returns the newest jobs first.
func (s *GormStore) ListByUser(ctx context.Context, userID string, limit int) ([]Job, error) {
	if limit <= 0 || limit > 100 {
		limit = 20
	}
	var jobs []Job
	if err := s.db.WithContext(ctx).
		Omit("image_data").
		Where("user_id = ?", userID).
		Order("created_at DESC").
		Limit(limit).
		Find(&jobs).Error; err != nil {
		return nil, err
	}
	return jobs, nil
}

func (s *GormStore) MarkRunning(ctx context.Context, id string) (bool, error) {
	res := s.db.WithContext(ctx).Model(&Job{}).
		Where("id = ? AND status = ?", id, StatusQueued).
		Update("status", StatusRunning)
	return res.RowsAffected == 1, res.Error
}

func (s *GormStore) Finish(ctx context.Context, id string, r Result) (bool, error) {
	now := time.Now()
	// struct updates so recipe/error go through the json serializer
	res := s.db.WithContext(ctx).Model(&Job{}).
		Where("id = ? AND status IN ?", id, []Status{StatusQueued, StatusRunning}).
		Select("status", "completed_at", "recipe", "error").
		Updates(&Job{Status: r.Status, CompletedAt: &now, Recipe: r.Recipe, Error: r.Error})
	return res.RowsAffected == 1, res.Error
}

func (s *GormStore) ClaimCharge(ctx context.Context, id string) (bool, error) {
	res := s.db.WithContext(ctx).Model(&Job{}).
		Where("id = ? AND charge_claimed = ?", id, false).
		Update("charge_claimed", true)
	return res.RowsAffected == 1, res.Error
}

func (s *GormStore) RecordCharge(ctx context.Context, id string, c Charge) error {
	return s.db.WithContext(ctx).Model(&Job{}).
		Where("id = ?", id).
		Select("points_deducted", "remaining_points_after_job", "points_deduction_error").
		Updates(&Job{
			PointsDeducted:          c.Deducted,
			RemainingPointsAfterJob: c.Remaining,
			PointsDeductionError:    c.DeductionError,
		}).Error
}
