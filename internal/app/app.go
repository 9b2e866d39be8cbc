// Package app wires the stores, ledger and job engine shared by the API
// server, the queue worker and recipectl.
package app

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"
	"gorm.io/gorm"

	"github.com/suPer8Hu/recipe-snap/internal/ai"
	"github.com/suPer8Hu/recipe-snap/internal/config"
	"github.com/suPer8Hu/recipe-snap/internal/db"
	"github.com/suPer8Hu/recipe-snap/internal/job"
	"github.com/suPer8Hu/recipe-snap/internal/points"
	"github.com/suPer8Hu/recipe-snap/internal/store/redisstore"
)

type App struct {
	Cfg    config.Config
	DB     *gorm.DB
	Redis  *redisstore.Store
	Jobs   job.Store
	Ledger *points.Ledger
	Engine *job.Engine
	Log    *zerolog.Logger
}

// New connects the database and migrates it. The provider is only built
// when withProvider is set (recipectl does not need one).
func New(ctx context.Context, cfg config.Config, log *zerolog.Logger, withProvider bool) (*App, error) {
	gdb, err := db.Connect(cfg.DBDriver, cfg.DBDSN)
	if err != nil {
		return nil, err
	}
	if err := db.Migrate(gdb); err != nil {
		_ = db.Close(gdb)
		return nil, fmt.Errorf("migrate: %w", err)
	}

	a := &App{Cfg: cfg, DB: gdb, Log: log}
	a.Jobs = job.NewGormStore(gdb)

	if cfg.RedisAddr != "" {
		rs := redisstore.New(cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB)
		if err := rs.Ping(ctx); err != nil {
			log.Warn().Err(err).Str("addr", cfg.RedisAddr).Msg("redis unreachable, job cache disabled")
			_ = rs.Close()
		} else {
			a.Redis = rs
			a.Jobs = redisstore.NewJobCache(a.Jobs, rs, cfg.JobCacheTTL, log)
		}
	}

	a.Ledger = points.NewLedger(points.NewGormStore(gdb), cfg.Points, log)

	if withProvider {
		provider, err := ai.FromConfig(ctx, cfg.Provider)
		if err != nil {
			a.Close()
			return nil, err
		}
		a.Engine = job.NewEngine(a.Jobs, a.Ledger, provider, job.Options{
			Price:           cfg.Points.JobPrice,
			ChargeOnPartial: cfg.Points.ChargeOnPartial,
			Timeout:         cfg.Provider.Timeout,
			RPS:             cfg.Provider.RPS,
			ProviderName:    cfg.Provider.Name,
		}, log)
	}
	return a, nil
}

func (a *App) Close() {
	if a.Redis != nil {
		_ = a.Redis.Close()
	}
	_ = db.Close(a.DB)
}
