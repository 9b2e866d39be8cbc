package job

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/suPer8Hu/recipe-snap/internal/ai"
)

// MemoryStore keeps jobs in process memory. Suitable for tests and single
// instance development runs.
type MemoryStore struct {
	mu   sync.RWMutex
	jobs map[string]*Job
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{jobs: make(map[string]*Job)}
}

func (s *MemoryStore) Create(ctx context.Context, j *Job) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	now := time.Now()
	if j.CreatedAt.IsZero() {
		j.CreatedAt = now
	}
	j.UpdatedAt = now
	cp := *j
	s.jobs[j.ID] = &cp
	return nil
}

// view copies j without its image bytes.
func view(j *Job) *Job {
	cp := *j
	cp.ImageData = nil
	return &cp
}

func (s *MemoryStore) Get(ctx context.Context, id string) (*Job, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	j, ok := s.jobs[id]
	if !ok {
		return nil, ErrNotFound
	}
	return view(j), nil
}

func (s *MemoryStore) LoadImage(ctx context.Context, id string) (ai.Image, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	j, ok := s.jobs[id]
	if !ok {
		return ai.Image{}, ErrNotFound
	}
	return ai.Image{Data: j.ImageData, MIMEType: j.ImageMIME}, nil
}

func (s *MemoryStore) ListByUser(ctx context.Context, userID string, limit int) ([]Job, error) {
	if limit <= 0 || limit > 100 {
		limit = 20
	}
	s.mu.RLock()
	out := make([]Job, 0)
	for _, j := range s.jobs {
		if j.UserID == userID {
			out = append(out, *view(j))
		}
	}
	s.mu.RUnlock()

	sort.Slice(out, func(a, b int) bool { return out[a].ID > out[b].ID })
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (s *MemoryStore) MarkRunning(ctx context.Context, id string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	j, ok := s.jobs[id]
	if !ok {
		return false, ErrNotFound
	}
	if j.Status != StatusQueued {
		return false, nil
	}
	j.Status = StatusRunning
	j.UpdatedAt = time.Now()
	return true, nil
}

func (s *MemoryStore) Finish(ctx context.Context, id string, r Result) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	j, ok := s.jobs[id]
	if !ok {
		return false, ErrNotFound
	}
	if j.Status.Terminal() {
		return false, nil
	}
	now := time.Now()
	j.Status = r.Status
	j.Recipe = r.Recipe
	j.Error = r.Error
	j.CompletedAt = &now
	j.UpdatedAt = now
	return true, nil
}

func (s *MemoryStore) ClaimCharge(ctx context.Context, id string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	j, ok := s.jobs[id]
	if !ok {
		return false, ErrNotFound
	}
	if j.ChargeClaimed {
		return false, nil
	}
	j.ChargeClaimed = true
	return true, nil
}

func (s *MemoryStore) RecordCharge(ctx context.Context, id string, c Charge) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	j, ok := s.jobs[id]
	if !ok {
		return ErrNotFound
	}
	j.PointsDeducted = c.Deducted
	j.RemainingPointsAfterJob = c.Remaining
	j.PointsDeductionError = c.DeductionError
	j.UpdatedAt = time.Now()
	return nil
}
