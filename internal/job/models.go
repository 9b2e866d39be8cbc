package job

import (
	"time"

	"github.com/suPer8Hu/recipe-snap/internal/recipe"
)

type Status string

const (
	StatusQueued    Status = "queued"
	StatusRunning   Status = "running"
	StatusSucceeded Status = "succeeded"
	StatusPartial   Status = "partial"
	StatusFailed    Status = "failed"
)

// Terminal reports whether no further transition can happen.
func (s Status) Terminal() bool {
	return s == StatusSucceeded || s == StatusPartial || s == StatusFailed
}

// Error codes recorded on a job.
const (
	CodeProviderError = "PROVIDER_ERROR"
	CodeTimeout       = "TIMEOUT"
	CodeInvalidImage  = "INVALID_IMAGE"
	CodeProcessError  = "PROCESS_ERROR"
	CodeDispatchError = "DISPATCH_ERROR"
	CodeQueueFull     = "QUEUE_FULL"
	CodeCanceled      = "CANCELED"
)

type Error struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

type Job struct {
	ID     string `gorm:"primaryKey;size:26" json:"id"` // ULID length
	UserID string `gorm:"type:varchar(36);index:idx_jobs_user_created,priority:1;not null" json:"userId"`
	Status Status `gorm:"type:varchar(16);index;not null" json:"status"`

	ImageData []byte `gorm:"type:longblob;not null" json:"-"`
	ImageMIME string `gorm:"type:varchar(64)" json:"-"`

	PointsBalanceBeforeJob int64 `gorm:"not null" json:"pointsBalanceBeforeJob"`

	// Filled once by the engine after the provider call.
	Recipe *recipe.Recipe `gorm:"serializer:json;type:text" json:"recipe,omitempty"`
	Error  *Error         `gorm:"serializer:json;type:text" json:"error,omitempty"`

	ChargeClaimed           bool    `gorm:"not null;default:false" json:"-"`
	PointsDeducted          *int64  `json:"pointsDeducted,omitempty"`
	RemainingPointsAfterJob *int64  `json:"remainingPointsAfterJob,omitempty"`
	PointsDeductionError    *string `gorm:"type:text" json:"pointsDeductionError,omitempty"`

	CreatedAt   time.Time  `gorm:"index:idx_jobs_user_created,priority:2" json:"createdAt"`
	UpdatedAt   time.Time  `json:"updatedAt"`
	CompletedAt *time.Time `json:"completedAt,omitempty"`
}

func (Job) TableName() string { return "recipe_jobs" }

// Result is the terminal outcome written by Finish.
type Result struct {
	Status Status
	Recipe *recipe.Recipe
	Error  *Error
}

// Charge is the outcome of the post-completion debit.
type Charge struct {
	Deducted       *int64
	Remaining      *int64
	DeductionError *string
}

type Feedback struct {
	ID        uint64    `gorm:"primaryKey;autoIncrement" json:"id"`
	JobID     string    `gorm:"size:26;index;not null" json:"jobId"`
	UserID    string    `gorm:"type:varchar(36);index" json:"userId,omitempty"`
	Rating    int       `gorm:"not null" json:"rating"`
	Comment   string    `gorm:"type:text" json:"comment,omitempty"`
	CreatedAt time.Time `json:"createdAt"`
}

func (Feedback) TableName() string { return "job_feedback" }
