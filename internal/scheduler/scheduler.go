// Package scheduler is the step executor for batch runs. It persists every
// run, invokes one step at a time per run, and records failures so a step can
// be retried from the last good state.
package scheduler

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"golang.org/x/sync/semaphore"

	"github.com/rshade/bulkops/internal/engine"
	"github.com/rshade/bulkops/internal/engine/tally"
	"github.com/rshade/bulkops/internal/logging"
	"github.com/rshade/bulkops/internal/store"
)

// Scheduler errors.
var (
	ErrStepInProgress = errors.New("a step of this batch is already running")
	ErrAbandoned      = errors.New("batch was abandoned")
)

// Options tune the scheduler.
type Options struct {
	// TTLSeconds is stored on new records; 0 disables expiry.
	TTLSeconds int
	// MaxRetries is how often Run retries a failed step before giving up.
	MaxRetries int
	// RetryDelay is the pause before each retry.
	RetryDelay time.Duration
}

// Observer is told about every step Run performs.
type Observer func(rec *store.Record, res engine.StepResult)

// Scheduler drives persisted runs.
type Scheduler struct {
	processor *engine.Processor
	runner    *engine.Runner
	store     store.Store
	opts      Options

	mu    sync.Mutex
	locks map[string]*semaphore.Weighted
}

// New returns a scheduler persisting runs in st.
func New(p *engine.Processor, st store.Store, opts Options) *Scheduler {
	return &Scheduler{
		processor: p,
		runner:    engine.NewRunner(p),
		store:     st,
		opts:      opts,
		locks:     make(map[string]*semaphore.Weighted),
	}
}

// lock serializes steps of one run. Different runs never wait for each other.
func (s *Scheduler) lock(id string) *semaphore.Weighted {
	s.mu.Lock()
	defer s.mu.Unlock()
	sem, ok := s.locks[id]
	if !ok {
		sem = semaphore.NewWeighted(1)
		s.locks[id] = sem
	}
	return sem
}

// Submit validates sub and persists the new run without running a step.
func (s *Scheduler) Submit(ctx context.Context, sub engine.Submission) (*store.Record, error) {
	req, state, err := s.processor.Submit(ctx, sub)
	if err != nil {
		return nil, err
	}
	rec := store.NewRecord(req, state, s.opts.TTLSeconds)
	if err := s.store.Save(ctx, rec); err != nil {
		return nil, fmt.Errorf("saving batch %s: %w", rec.ID, err)
	}
	return rec, nil
}

// Step runs the next step of id and persists the outcome. A failed step
// leaves the state untouched, marks the run failed and returns the error.
func (s *Scheduler) Step(ctx context.Context, id string) (*store.Record, engine.StepResult, error) {
	sem := s.lock(id)
	if !sem.TryAcquire(1) {
		return nil, engine.StepResult{}, fmt.Errorf("%w: %s", ErrStepInProgress, id)
	}
	defer sem.Release(1)

	return s.step(ctx, id)
}

// storeLock takes the store-wide lock of id, so processes sharing the store
// never step the same run at once.
func (s *Scheduler) storeLock(ctx context.Context, id string) (func(), error) {
	unlock, err := s.store.Lock(ctx, id)
	if err != nil {
		if errors.Is(err, store.ErrLocked) {
			return nil, fmt.Errorf("%w: %s", ErrStepInProgress, id)
		}
		return nil, err
	}
	return func() {
		if err := unlock(); err != nil {
			logging.FromContext(ctx).Warn().
				Ctx(ctx).
				Str("component", "scheduler").
				Str("batch_id", id).
				Err(err).
				Msg("failed to release batch lock")
		}
	}, nil
}

func (s *Scheduler) step(ctx context.Context, id string) (*store.Record, engine.StepResult, error) {
	log := logging.FromContext(ctx)

	release, err := s.storeLock(ctx, id)
	if err != nil {
		return nil, engine.StepResult{}, err
	}
	defer release()

	rec, err := s.store.Load(ctx, id)
	if err != nil {
		return nil, engine.StepResult{}, err
	}
	switch rec.Status {
	case store.StatusAbandoned:
		return rec, engine.StepResult{}, fmt.Errorf("%w: %s", ErrAbandoned, id)
	case store.StatusFinished:
		return rec, finishedResult(rec), nil
	}

	res, stepErr := s.runner.RunOneStep(ctx, rec.Request, rec.State)
	if stepErr != nil {
		rec.Status = store.StatusFailed
		rec.LastError = stepErr.Error()
		rec.Touch()
		if saveErr := s.store.Save(ctx, rec); saveErr != nil {
			return rec, engine.StepResult{}, errors.Join(stepErr, saveErr)
		}
		log.Warn().
			Ctx(ctx).
			Str("component", "scheduler").
			Str("batch_id", id).
			Err(stepErr).
			Msg("step failed")
		return rec, engine.StepResult{}, stepErr
	}

	rec.State = res.State
	rec.Steps++
	rec.LastError = ""
	rec.Status = store.StatusRunning
	if res.Done {
		rec.Status = store.StatusFinished
	}
	rec.Touch()
	if err := s.store.Save(ctx, rec); err != nil {
		return rec, res, fmt.Errorf("saving batch %s: %w", id, err)
	}

	log.Debug().
		Ctx(ctx).
		Str("component", "scheduler").
		Str("batch_id", id).
		Int("step", rec.Steps).
		Str("phase", string(rec.State.Phase)).
		Bool("done", res.Done).
		Msg(res.Report.Message)
	return rec, res, nil
}

func finishedResult(rec *store.Record) engine.StepResult {
	return engine.StepResult{
		State:   rec.State,
		Report:  rec.State.Report(),
		Message: tally.Summarize(rec.State.Tally).Text,
		Done:    true,
	}
}

// Run steps id until it finishes, the context ends, or a step fails more
// than MaxRetries times in a row. The context is checked between steps only.
func (s *Scheduler) Run(ctx context.Context, id string, observe Observer) (*store.Record, error) {
	sem := s.lock(id)
	if !sem.TryAcquire(1) {
		return nil, fmt.Errorf("%w: %s", ErrStepInProgress, id)
	}
	defer sem.Release(1)

	log := logging.FromContext(ctx)
	failures := 0
	for {
		if err := ctx.Err(); err != nil {
			rec, _ := s.store.Load(ctx, id)
			return rec, err
		}

		rec, res, err := s.step(ctx, id)
		if err != nil {
			if rec == nil || errors.Is(err, ErrAbandoned) || failures >= s.opts.MaxRetries {
				return rec, err
			}
			failures++
			log.Info().
				Ctx(ctx).
				Str("component", "scheduler").
				Str("batch_id", id).
				Int("attempt", failures).
				Msg("retrying failed step")
			if !sleep(ctx, s.opts.RetryDelay) {
				return rec, ctx.Err()
			}
			continue
		}
		failures = 0
		if observe != nil {
			observe(rec, res)
		}
		if res.Done {
			log.Info().
				Ctx(ctx).
				Str("component", "scheduler").
				Str("batch_id", id).
				Int("steps", rec.Steps).
				Msg(res.Message)
			return rec, nil
		}
	}
}

func sleep(ctx context.Context, d time.Duration) bool {
	if d <= 0 {
		return true
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}

// Status loads the persisted record of id.
func (s *Scheduler) Status(ctx context.Context, id string) (*store.Record, error) {
	return s.store.Load(ctx, id)
}

// Summary renders the tally of id, partial while the run is unfinished.
func (s *Scheduler) Summary(ctx context.Context, id string) (tally.Summary, error) {
	rec, err := s.store.Load(ctx, id)
	if err != nil {
		return tally.Summary{}, err
	}
	return tally.Summarize(rec.State.Tally), nil
}

// Abandon stops a run. Nothing is rolled back; the record is kept until it
// expires so its partial summary stays visible.
func (s *Scheduler) Abandon(ctx context.Context, id string) (*store.Record, error) {
	sem := s.lock(id)
	if !sem.TryAcquire(1) {
		return nil, fmt.Errorf("%w: %s", ErrStepInProgress, id)
	}
	defer sem.Release(1)

	release, err := s.storeLock(ctx, id)
	if err != nil {
		return nil, err
	}
	defer release()

	rec, err := s.store.Load(ctx, id)
	if err != nil {
		return nil, err
	}
	if rec.Status == store.StatusFinished || rec.Status == store.StatusAbandoned {
		return rec, nil
	}
	rec.Status = store.StatusAbandoned
	rec.Touch()
	if err := s.store.Save(ctx, rec); err != nil {
		return nil, fmt.Errorf("saving batch %s: %w", id, err)
	}
	logging.FromContext(ctx).Info().
		Ctx(ctx).
		Str("component", "scheduler").
		Str("batch_id", id).
		Int("processed", rec.State.Processing.Processed).
		Msg("batch abandoned")
	return rec, nil
}

// List returns every persisted run, newest first.
func (s *Scheduler) List(ctx context.Context) ([]*store.Record, error) {
	return s.store.List(ctx)
}

// Cleanup removes expired runs.
func (s *Scheduler) Cleanup(ctx context.Context) (int, error) {
	return s.store.CleanupExpired(ctx)
}
