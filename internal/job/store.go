package job

import (
	"context"
	"errors"

	"github.com/suPer8Hu/recipe-snap/internal/ai"
)

var ErrNotFound = errors.New("job not found")

// Store holds job records. Conditional transitions report whether they
// applied so concurrent callers can tell who won.
type Store interface {
	Create(ctx context.Context, j *Job) error
	// Get returns the job without its image bytes.
	Get(ctx context.Context, id string) (*Job, error)
	LoadImage(ctx context.Context, id string) (ai.Image, error)
	ListByUser(ctx context.Context, userID string, limit int) ([]Job, error)

	// MarkRunning moves queued -> running.
	MarkRunning(ctx context.Context, id string) (bool, error)
	// Finish moves a non-terminal job to res.Status.
	Finish(ctx context.Context, id string, res Result) (bool, error)
	// ClaimCharge flips charge_claimed false -> true exactly once per job.
	ClaimCharge(ctx context.Context, id string) (bool, error)
	RecordCharge(ctx context.Context, id string, c Charge) error
}
