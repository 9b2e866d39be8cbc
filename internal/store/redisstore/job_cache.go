package redisstore

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/suPer8Hu/recipe-snap/internal/ai"
	"github.com/suPer8Hu/recipe-snap/internal/job"
	"github.com/suPer8Hu/recipe-snap/internal/metrics"
)

// pendingTTL bounds how stale a polled queued/running job can look.
const pendingTTL = 2 * time.Second

// JobCache is a read-through cache in front of a job.Store. Writes go to the
// wrapped store first and then overwrite the cached entry with the committed
// row. Read misses only fill an absent key, so a reader holding an older row
// can never replace what a writer stored. Redis failures never fail a
// request; they fall back to the wrapped store.
type JobCache struct {
	job.Store
	rs  *Store
	ttl time.Duration
	log *zerolog.Logger
}

func NewJobCache(inner job.Store, rs *Store, ttl time.Duration, log *zerolog.Logger) *JobCache {
	if ttl <= 0 {
		ttl = 30 * time.Second
	}
	if log == nil {
		nop := zerolog.Nop()
		log = &nop
	}
	return &JobCache{Store: inner, rs: rs, ttl: ttl, log: log}
}

func (c *JobCache) Get(ctx context.Context, id string) (*job.Job, error) {
	raw, err := c.rs.rdb.Get(ctx, jobKey(id)).Bytes()
	switch {
	case err == nil:
		var j job.Job
		if uerr := json.Unmarshal(raw, &j); uerr == nil {
			metrics.IncCache("hit")
			return &j, nil
		}
		metrics.IncCache("error")
	case errors.Is(err, redis.Nil):
		metrics.IncCache("miss")
	default:
		metrics.IncCache("error")
		c.log.Warn().Err(err).Str("job_id", id).Msg("job cache read failed")
	}

	j, err := c.Store.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	c.fill(ctx, j)
	return j, nil
}

func (c *JobCache) entry(j *job.Job) ([]byte, time.Duration, error) {
	b, err := json.Marshal(j)
	if err != nil {
		return nil, 0, err
	}
	if j.Status.Terminal() {
		return b, c.ttl, nil
	}
	return b, pendingTTL, nil
}

// fill caches a row read on a miss unless a writer got there first.
func (c *JobCache) fill(ctx context.Context, j *job.Job) {
	b, ttl, err := c.entry(j)
	if err != nil {
		return
	}
	if err := c.rs.rdb.SetNX(ctx, jobKey(j.ID), b, ttl).Err(); err != nil {
		c.log.Warn().Err(err).Str("job_id", j.ID).Msg("job cache write failed")
	}
}

// refresh stores the committed row after a write. When that fails the entry
// is dropped so the next read goes to the wrapped store.
func (c *JobCache) refresh(ctx context.Context, id string) {
	j, err := c.Store.Get(ctx, id)
	if err != nil {
		c.invalidate(ctx, id)
		return
	}
	b, ttl, err := c.entry(j)
	if err != nil {
		c.invalidate(ctx, id)
		return
	}
	if err := c.rs.rdb.Set(ctx, jobKey(id), b, ttl).Err(); err != nil {
		c.log.Warn().Err(err).Str("job_id", id).Msg("job cache refresh failed")
		c.invalidate(ctx, id)
	}
}

func (c *JobCache) invalidate(ctx context.Context, id string) {
	if err := c.rs.rdb.Del(ctx, jobKey(id)).Err(); err != nil {
		c.log.Warn().Err(err).Str("job_id", id).Msg("job cache invalidate failed")
	}
}

func (c *JobCache) LoadImage(ctx context.Context, id string) (ai.Image, error) {
	return c.Store.LoadImage(ctx, id)
}

func (c *JobCache) MarkRunning(ctx context.Context, id string) (bool, error) {
	ok, err := c.Store.MarkRunning(ctx, id)
	if ok {
		c.refresh(ctx, id)
	}
	return ok, err
}

func (c *JobCache) Finish(ctx context.Context, id string, r job.Result) (bool, error) {
	ok, err := c.Store.Finish(ctx, id, r)
	if ok {
		c.refresh(ctx, id)
	}
	return ok, err
}

func (c *JobCache) ClaimCharge(ctx context.Context, id string) (bool, error) {
	ok, err := c.Store.ClaimCharge(ctx, id)
	if ok {
		c.refresh(ctx, id)
	}
	return ok, err
}

func (c *JobCache) RecordCharge(ctx context.Context, id string, ch job.Charge) error {
	if err := c.Store.RecordCharge(ctx, id, ch); err != nil {
		c.invalidate(ctx, id)
		return err
	}
	c.refresh(ctx, id)
	return nil
}
