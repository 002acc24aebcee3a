package jobs

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"golang.org/x/sync/semaphore"
	"golang.org/x/time/rate"

	xglog "github.com/ManuGH/reelforge/internal/log"
	"github.com/ManuGH/reelforge/internal/metrics"
)

const (
	msgQueued      = "queued"
	msgProcessing  = "processing"
	msgCompleted   = "completed"
	msgFailed      = "failed"
	errCanceled    = "canceled"
	errInterrupted = "interrupted"

	storeTimeout = 5 * time.Second
)

// Work is one job's unit of work. It reports progress through report and
// returns the produced asset path.
type Work func(ctx context.Context, report func(msg string)) (string, error)

// Config controls admission.
type Config struct {
	// Workers is the number of jobs that may run concurrently.
	Workers int
	// QueueSize is how many jobs may wait for a worker.
	QueueSize int
	// SubmitRate is the sustained submissions per second; zero disables it.
	SubmitRate  float64
	SubmitBurst int
}

func (c Config) withDefaults() Config {
	if c.Workers <= 0 {
		c.Workers = 1
	}
	if c.QueueSize < 0 {
		c.QueueSize = 0
	}
	if c.SubmitBurst <= 0 {
		c.SubmitBurst = 1
	}
	return c
}

type run struct {
	cancel context.CancelFunc
	done   chan struct{}
}

// Tracker owns job execution. Each job's record is written only by the
// goroutine running it.
type Tracker struct {
	store   Store
	cfg     Config
	sem     *semaphore.Weighted
	limiter *rate.Limiter
	log     zerolog.Logger
	now     func() time.Time

	mu     sync.Mutex
	runs   map[string]*run
	closed bool
	wg     sync.WaitGroup
}

// NewTracker creates a Tracker on store.
func NewTracker(store Store, cfg Config, logger zerolog.Logger) *Tracker {
	cfg = cfg.withDefaults()
	limiter := rate.NewLimiter(rate.Inf, 0)
	if cfg.SubmitRate > 0 {
		limiter = rate.NewLimiter(rate.Limit(cfg.SubmitRate), cfg.SubmitBurst)
	}
	return &Tracker{
		store:   store,
		cfg:     cfg,
		sem:     semaphore.NewWeighted(int64(cfg.Workers)),
		limiter: limiter,
		log:     logger,
		now:     func() time.Time { return time.Now().UTC() },
		runs:    make(map[string]*run),
	}
}

// RecoverInterrupted marks every non-terminal job in the store as failed.
// It must run before the first Submit; jobs left queued or processing by a
// previous process can never finish.
func (t *Tracker) RecoverInterrupted(ctx context.Context) (int, error) {
	list, err := t.store.List(ctx)
	if err != nil {
		return 0, fmt.Errorf("list jobs: %w", err)
	}
	n := 0
	for _, j := range list {
		if j.Status.Terminal() {
			continue
		}
		if _, err := t.store.Update(ctx, j.ID, t.fail(errInterrupted)); err != nil {
			return n, fmt.Errorf("recover job %s: %w", j.ID, err)
		}
		metrics.RecordTransition(string(j.Kind), string(StatusFailed))
		n++
	}
	if n > 0 {
		t.log.Warn().Str(xglog.FieldEvent, "jobs.recovered").Int("count", n).Msg("marked interrupted jobs as failed")
	}
	return n, nil
}

// Submit records a queued job and starts it in the background.
func (t *Tracker) Submit(ctx context.Context, kind Kind, input string, work Work) (Job, error) {
	t.mu.Lock()
	if t.closed {
		t.mu.Unlock()
		return Job{}, ErrClosed
	}
	if len(t.runs) >= t.cfg.Workers+t.cfg.QueueSize {
		t.mu.Unlock()
		metrics.JobsRejected.WithLabelValues("queue_full").Inc()
		return Job{}, ErrQueueFull
	}
	if !t.limiter.Allow() {
		t.mu.Unlock()
		metrics.JobsRejected.WithLabelValues("rate_limited").Inc()
		return Job{}, ErrRateLimited
	}

	now := t.now()
	job := Job{
		ID:        uuid.NewString(),
		Kind:      kind,
		Status:    StatusQueued,
		Message:   msgQueued,
		Input:     input,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := t.store.Create(ctx, job); err != nil {
		t.mu.Unlock()
		return Job{}, fmt.Errorf("create job: %w", err)
	}
	metrics.RecordTransition(string(kind), string(StatusQueued))

	runCtx, cancel := context.WithCancel(xglog.ContextWithJobID(context.Background(), job.ID))
	if rid := xglog.RequestIDFromContext(ctx); rid != "" {
		runCtx = xglog.ContextWithRequestID(runCtx, rid)
	}
	r := &run{cancel: cancel, done: make(chan struct{})}
	t.runs[job.ID] = r
	t.wg.Add(1)
	t.mu.Unlock()

	t.log.Info().
		Str(xglog.FieldJobID, job.ID).
		Str(xglog.FieldJobKind, string(kind)).
		Str(xglog.FieldEvent, "job.queued").
		Msg("job queued")

	go t.execute(runCtx, r, job, work)
	return job, nil
}

// Get returns the current state of a job.
func (t *Tracker) Get(ctx context.Context, id string) (Job, error) {
	return t.store.Get(ctx, id)
}

// List returns all known jobs, oldest first.
func (t *Tracker) List(ctx context.Context) ([]Job, error) {
	return t.store.List(ctx)
}

// Cancel requests cancellation of a running or queued job. The job turns
// failed asynchronously once its worker observes the cancellation.
func (t *Tracker) Cancel(ctx context.Context, id string) (Job, error) {
	t.mu.Lock()
	r, ok := t.runs[id]
	t.mu.Unlock()

	j, err := t.store.Get(ctx, id)
	if err != nil {
		return Job{}, err
	}
	if !ok || j.Status.Terminal() {
		return j, ErrFinished
	}
	t.log.Info().Str(xglog.FieldJobID, id).Str(xglog.FieldEvent, "job.cancel").Msg("canceling job")
	r.cancel()
	return j, nil
}

// Wait blocks until the job with id has finished or ctx is done.
func (t *Tracker) Wait(ctx context.Context, id string) (Job, error) {
	t.mu.Lock()
	r, ok := t.runs[id]
	t.mu.Unlock()
	if ok {
		select {
		case <-r.done:
		case <-ctx.Done():
			return Job{}, ctx.Err()
		}
	}
	return t.store.Get(ctx, id)
}

// Close stops admission, cancels every job and waits for the workers to
// record their outcome or for ctx to expire.
func (t *Tracker) Close(ctx context.Context) error {
	t.mu.Lock()
	t.closed = true
	count := len(t.runs)
	for _, r := range t.runs {
		r.cancel()
	}
	t.mu.Unlock()

	if count > 0 {
		t.log.Info().Int("count", count).Str(xglog.FieldEvent, "jobs.cancel_all").Msg("canceling all jobs")
	}

	done := make(chan struct{})
	go func() {
		t.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (t *Tracker) execute(ctx context.Context, r *run, job Job, work Work) {
	logger := xglog.WithContext(ctx, t.log).With().Str(xglog.FieldJobKind, string(job.Kind)).Logger()
	start := t.now()

	defer func() {
		r.cancel()
		t.mu.Lock()
		delete(t.runs, job.ID)
		t.mu.Unlock()
		close(r.done)
		t.wg.Done()
	}()

	if err := t.sem.Acquire(ctx, 1); err != nil {
		t.finish(ctx, logger, job, "", err)
		return
	}
	defer t.sem.Release(1)

	if err := t.write(job.ID, job.Kind, func(j *Job) error {
		j.Status = StatusProcessing
		j.Message = msgProcessing
		return nil
	}); err != nil {
		logger.Error().Err(err).Str(xglog.FieldEvent, "job.store_failed").Msg("failed to mark job processing")
		if werr := t.write(job.ID, job.Kind, t.fail(err.Error())); werr != nil {
			logger.Error().Err(werr).Str(xglog.FieldEvent, "job.store_failed").Msg("failed to record job outcome")
		}
		return
	}
	logger.Info().Str(xglog.FieldEvent, "job.started").Msg("job started")

	metrics.JobsInFlight.Inc()
	result, err := t.runWork(ctx, job.ID, work)
	metrics.JobsInFlight.Dec()

	t.finish(ctx, logger, job, result, err)
	logger.Debug().Int64(xglog.FieldDuration, t.now().Sub(start).Milliseconds()).Msg("job worker exiting")
}

// runWork invokes work, turning a panic into an error.
func (t *Tracker) runWork(ctx context.Context, id string, work Work) (result string, err error) {
	defer func() {
		if p := recover(); p != nil {
			t.log.Error().
				Str(xglog.FieldJobID, id).
				Interface("panic", p).
				Str(xglog.FieldEvent, "job.panic").
				Msg("job panicked")
			err = fmt.Errorf("panic: %v", p)
		}
	}()
	report := func(msg string) {
		if msg == "" {
			return
		}
		if err := t.write(id, "", func(j *Job) error {
			j.Message = msg
			return nil
		}); err != nil {
			t.log.Warn().Err(err).Str(xglog.FieldJobID, id).Msg("progress update dropped")
		}
	}
	return work(ctx, report)
}

// finish records the outcome. A canceled job context always reads as
// "canceled", whatever error the work surfaced for it.
func (t *Tracker) finish(ctx context.Context, logger zerolog.Logger, job Job, result string, err error) {
	var update func(*Job) error
	switch {
	case err == nil:
		update = func(j *Job) error {
			j.Status = StatusCompleted
			j.Message = msgCompleted
			j.Result = strPtr(result)
			j.UpdatedAt = t.now()
			return nil
		}
	case ctx.Err() != nil:
		update = t.fail(errCanceled)
	default:
		update = t.fail(err.Error())
	}

	if werr := t.write(job.ID, job.Kind, update); werr != nil {
		logger.Error().Err(werr).Str(xglog.FieldEvent, "job.store_failed").Msg("failed to record job outcome")
		return
	}
	if err != nil {
		logger.Error().Err(err).Str(xglog.FieldEvent, "job.failed").Msg("job failed")
		return
	}
	logger.Info().Str(xglog.FieldEvent, "job.completed").Str(xglog.FieldAsset, result).Msg("job completed")
}

func (t *Tracker) fail(reason string) func(*Job) error {
	return func(j *Job) error {
		j.Status = StatusFailed
		j.Message = msgFailed
		j.Error = strPtr(reason)
		j.UpdatedAt = t.now()
		return nil
	}
}

// write updates the store outside the job's own context so outcomes are
// recorded after cancellation. kind is empty for updates that keep the status.
func (t *Tracker) write(id string, kind Kind, fn func(*Job) error) error {
	ctx, cancel := context.WithTimeout(context.Background(), storeTimeout)
	defer cancel()
	j, err := t.store.Update(ctx, id, func(j *Job) error {
		if err := fn(j); err != nil {
			return err
		}
		j.UpdatedAt = t.now()
		return nil
	})
	if err != nil {
		return err
	}
	if kind != "" {
		metrics.RecordTransition(string(kind), string(j.Status))
	}
	return nil
}
