package job

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/time/rate"

	"github.com/suPer8Hu/recipe-snap/internal/ai"
	"github.com/suPer8Hu/recipe-snap/internal/common"
	"github.com/suPer8Hu/recipe-snap/internal/metrics"
	"github.com/suPer8Hu/recipe-snap/internal/points"
	"github.com/suPer8Hu/recipe-snap/internal/recipe"
)

var (
	ErrNoImage     = errors.New("image file is required")
	ErrQueueFull   = errors.New("job queue full")
	ErrDispatch    = errors.New("job dispatch failed")
	ErrNotTerminal = errors.New("job is not finished")
)

// Dispatcher hands a created job to whatever runs Engine.Run.
type Dispatcher interface {
	Dispatch(ctx context.Context, jobID string) error
}

type Options struct {
	Price           int64
	ChargeOnPartial bool
	Timeout         time.Duration
	// RPS limits provider calls per second across all jobs; 0 disables.
	RPS          float64
	ProviderName string
	Prompt       string
}

type Engine struct {
	store      Store
	ledger     *points.Ledger
	provider   ai.Provider
	dispatcher Dispatcher
	limiter    *rate.Limiter
	opts       Options
	log        *zerolog.Logger
}

func NewEngine(store Store, ledger *points.Ledger, provider ai.Provider, opts Options, log *zerolog.Logger) *Engine {
	if opts.Timeout <= 0 {
		opts.Timeout = 60 * time.Second
	}
	if opts.Prompt == "" {
		opts.Prompt = ai.RecipePrompt
	}
	if opts.ProviderName == "" {
		opts.ProviderName = "unknown"
	}
	if log == nil {
		nop := zerolog.Nop()
		log = &nop
	}
	e := &Engine{store: store, ledger: ledger, provider: provider, opts: opts, log: log}
	if opts.RPS > 0 {
		burst := int(opts.RPS)
		if burst < 1 {
			burst = 1
		}
		e.limiter = rate.NewLimiter(rate.Limit(opts.RPS), burst)
	}
	return e
}

// UseDispatcher sets where Submit sends new jobs.
func (e *Engine) UseDispatcher(d Dispatcher) { e.dispatcher = d }

func (e *Engine) Price() int64 { return e.opts.Price }

func (e *Engine) Get(ctx context.Context, id string) (*Job, error) {
	return e.store.Get(ctx, id)
}

func (e *Engine) ListByUser(ctx context.Context, userID string, limit int) ([]Job, error) {
	return e.store.ListByUser(ctx, userID, limit)
}

// Submit admits a job for userID. When the balance does not cover the price
// nothing is created and a *points.InsufficientError is returned.
func (e *Engine) Submit(ctx context.Context, userID string, img ai.Image) (*Job, error) {
	if len(img.Data) == 0 {
		return nil, ErrNoImage
	}

	ok, balance, err := e.ledger.HasEnough(ctx, userID, e.opts.Price)
	if err != nil {
		return nil, err
	}
	if !ok {
		metrics.AdmissionRejected()
		return nil, &points.InsufficientError{Current: balance, Required: e.opts.Price}
	}

	id, err := common.NewULID()
	if err != nil {
		return nil, err
	}
	j := &Job{
		ID:                     id,
		UserID:                 userID,
		Status:                 StatusQueued,
		ImageData:              img.Data,
		ImageMIME:              img.MIMEType,
		PointsBalanceBeforeJob: balance,
	}
	if err := e.store.Create(ctx, j); err != nil {
		return nil, fmt.Errorf("create job: %w", err)
	}
	j.ImageData = nil

	if e.dispatcher == nil {
		return j, nil
	}
	if err := e.dispatcher.Dispatch(ctx, j.ID); err != nil {
		code := CodeDispatchError
		if errors.Is(err, ErrQueueFull) {
			code = CodeQueueFull
		}
		e.finish(ctx, j.ID, Result{Status: StatusFailed, Error: &Error{Code: code, Message: err.Error()}})
		e.log.Error().Err(err).Str("job_id", j.ID).Msg("dispatch failed")
		return nil, fmt.Errorf("%w: %w", ErrDispatch, err)
	}

	e.log.Info().Str("job_id", j.ID).Str("user_id", userID).Int64("balance", balance).Msg("job queued")
	return j, nil
}

// Run executes a queued job through to a terminal state and settles it. A
// job that is already terminal (redelivery) is only settled.
func (e *Engine) Run(ctx context.Context, id string) error {
	// the job record must still be written if ctx is cancelled mid-run
	wctx := context.WithoutCancel(ctx)

	started, err := e.store.MarkRunning(wctx, id)
	if err != nil {
		return err
	}
	if !started {
		j, err := e.store.Get(wctx, id)
		if err != nil {
			return err
		}
		if j.Status.Terminal() {
			return e.Settle(wctx, id)
		}
		e.log.Warn().Str("job_id", id).Str("status", string(j.Status)).Msg("job already claimed by another runner")
		return nil
	}

	start := time.Now()
	res := e.execute(ctx, id)
	e.finish(wctx, id, res)

	ev := e.log.Info()
	if res.Status == StatusFailed {
		ev = e.log.Warn()
	}
	ev.Str("job_id", id).Str("status", string(res.Status)).Dur("duration", time.Since(start)).Msg("job finished")

	return e.Settle(wctx, id)
}

func (e *Engine) finish(ctx context.Context, id string, res Result) {
	applied, err := e.store.Finish(ctx, id, res)
	if err != nil {
		e.log.Error().Err(err).Str("job_id", id).Msg("finish job")
		return
	}
	if applied {
		metrics.IncJob(string(res.Status))
	}
}

func (e *Engine) execute(ctx context.Context, id string) (res Result) {
	var rec *recipe.Recipe
	defer func() {
		if r := recover(); r != nil {
			e.log.Error().Interface("panic", r).Str("job_id", id).Msg("job panicked")
			res = processFailure(rec, fmt.Errorf("panic: %v", r))
		}
	}()

	if err := ctx.Err(); err != nil {
		return Result{Status: StatusFailed, Error: &Error{Code: CodeCanceled, Message: err.Error()}}
	}

	img, err := e.store.LoadImage(ctx, id)
	if err != nil {
		return processFailure(nil, fmt.Errorf("load image: %w", err))
	}
	if img.MIMEType == "" || !strings.HasPrefix(img.MIMEType, "image/") {
		img.MIMEType = http.DetectContentType(img.Data)
	}
	if !strings.HasPrefix(img.MIMEType, "image/") {
		return Result{Status: StatusFailed, Error: &Error{Code: CodeInvalidImage, Message: "unsupported content type " + img.MIMEType}}
	}

	text, err := e.callProvider(ctx, img)
	if err != nil {
		code := CodeProviderError
		switch {
		case errors.Is(err, context.DeadlineExceeded):
			code = CodeTimeout
		case errors.Is(err, context.Canceled):
			code = CodeCanceled
		}
		return Result{Status: StatusFailed, Error: &Error{Code: code, Message: err.Error()}}
	}

	parsed := recipe.Parse(text)
	rec = &parsed
	if parsed.HasSteps() {
		return Result{Status: StatusSucceeded, Recipe: rec}
	}
	return Result{Status: StatusPartial, Recipe: rec}
}

// processFailure keeps whatever recipe exists as partial, otherwise fails.
func processFailure(rec *recipe.Recipe, err error) Result {
	e := &Error{Code: CodeProcessError, Message: err.Error()}
	if rec != nil && rec.HasSteps() {
		return Result{Status: StatusPartial, Recipe: rec, Error: e}
	}
	return Result{Status: StatusFailed, Recipe: rec, Error: e}
}

func (e *Engine) callProvider(ctx context.Context, img ai.Image) (string, error) {
	cctx, cancel := context.WithTimeout(ctx, e.opts.Timeout)
	defer cancel()

	if e.limiter != nil {
		if err := e.limiter.Wait(cctx); err != nil {
			// Wait fails early when the deadline cannot be met
			return "", fmt.Errorf("%w: %v", context.DeadlineExceeded, err)
		}
	}

	start := time.Now()
	text, err := e.provider.Analyze(cctx, img, e.opts.Prompt)
	metrics.ObserveProvider(e.opts.ProviderName, time.Since(start).Milliseconds(), err == nil)
	if err != nil && cctx.Err() != nil {
		// surface the deadline even when the provider wrapped it differently
		return "", fmt.Errorf("%w: %w", cctx.Err(), err)
	}
	return text, err
}

// Settle debits the job price once per job after it reaches a chargeable
// terminal state. Calling it again for the same job does nothing.
func (e *Engine) Settle(ctx context.Context, id string) error {
	j, err := e.store.Get(ctx, id)
	if err != nil {
		return err
	}
	if !j.Status.Terminal() {
		return ErrNotTerminal
	}
	if !e.chargeable(j.Status) {
		return nil
	}

	claimed, err := e.store.ClaimCharge(ctx, id)
	if err != nil {
		return err
	}
	if !claimed {
		return nil
	}

	price := e.opts.Price
	balance, err := e.ledger.Consume(ctx, j.UserID, price)
	if err != nil {
		msg := err.Error()
		e.log.Error().Err(err).Str("job_id", id).Str("user_id", j.UserID).Msg("points deduction failed")
		return e.store.RecordCharge(ctx, id, Charge{DeductionError: &msg})
	}

	metrics.AddCharged(price)
	e.log.Info().Str("job_id", id).Str("user_id", j.UserID).Int64("remaining", balance).Msg("points deducted")
	return e.store.RecordCharge(ctx, id, Charge{Deducted: &price, Remaining: &balance})
}

func (e *Engine) chargeable(s Status) bool {
	switch s {
	case StatusSucceeded:
		return true
	case StatusPartial:
		return e.opts.ChargeOnPartial
	}
	return false
}
