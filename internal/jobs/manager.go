// Package jobs runs crawls in the background on behalf of API callers.
//
// At most one crawl runs at a time: submitting a new crawl supersedes the
// running one, whose context is canceled and whose result is discarded.
// Finished jobs stay queryable until their TTL expires.
package jobs

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/patrickmn/go-cache"
	"github.com/rs/zerolog"

	"nithronos/nosdu/internal/crawler"
)

type State string

const (
	StateRunning    State = "running"
	StateDone       State = "done"
	StateFailed     State = "failed"
	StateSuperseded State = "superseded"
	StateCanceled   State = "canceled"
)

var (
	ErrNotFound = errors.New("job not found")
	ErrClosed   = errors.New("job manager closed")
)

// Job is a point-in-time view of a crawl job.
type Job struct {
	ID         string           `json:"id"`
	Path       string           `json:"path"`
	MaxDepth   int              `json:"max_depth"`
	State      State            `json:"state"`
	Progress   crawler.Progress `json:"progress"`
	Result     *crawler.Result  `json:"result,omitempty"`
	Error      string           `json:"error,omitempty"`
	StartedAt  time.Time        `json:"started_at"`
	FinishedAt *time.Time       `json:"finished_at,omitempty"`
}

// Finished reports whether the job has reached a terminal state.
func (j Job) Finished() bool { return j.State != StateRunning }

type Options struct {
	Crawl crawler.Options
	// TTL is how long a finished job stays queryable.
	TTL      time.Duration
	OnFinish func(Job, crawler.Result)
	Logger   zerolog.Logger
}

type entry struct {
	mu       sync.RWMutex
	job      Job
	run      *crawler.Run
	cancel   context.CancelFunc
	finished chan struct{}
}

func (e *entry) snapshot() Job {
	e.mu.RLock()
	defer e.mu.RUnlock()
	j := e.job
	if j.State == StateRunning {
		j.Progress = e.run.Progress()
	}
	return j
}

type Manager struct {
	logger   zerolog.Logger
	crawl    crawler.Options
	onFinish func(Job, crawler.Result)
	jobs     *cache.Cache

	ctx    context.Context
	stop   context.CancelFunc
	wg     sync.WaitGroup
	mu     sync.Mutex
	active *entry
	closed bool
}

func NewManager(opts Options) *Manager {
	ttl := opts.TTL
	if ttl <= 0 {
		ttl = 30 * time.Minute
	}
	ctx, stop := context.WithCancel(context.Background())
	return &Manager{
		logger:   opts.Logger.With().Str("component", "crawl-jobs").Logger(),
		crawl:    opts.Crawl,
		onFinish: opts.OnFinish,
		jobs:     cache.New(ttl, ttl),
		ctx:      ctx,
		stop:     stop,
	}
}

// Submit starts crawling path and returns immediately. A running job is
// superseded.
func (m *Manager) Submit(path string, maxDepth int) (Job, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return Job{}, ErrClosed
	}

	if prev := m.active; prev != nil {
		prev.mu.Lock()
		if prev.job.State == StateRunning {
			prev.job.State = StateSuperseded
			prev.job.Progress = prev.run.Progress()
			now := time.Now()
			prev.job.FinishedAt = &now
			m.logger.Info().Str("id", prev.job.ID).Msg("Job superseded")
		}
		prev.mu.Unlock()
		prev.cancel()
	}

	opts := m.crawl
	if maxDepth > 0 {
		opts.MaxDepth = maxDepth
	}
	ctx, cancel := context.WithCancel(m.ctx)
	e := &entry{
		job: Job{
			ID:        uuid.NewString(),
			Path:      path,
			MaxDepth:  opts.MaxDepth,
			State:     StateRunning,
			StartedAt: time.Now(),
		},
		cancel:   cancel,
		finished: make(chan struct{}),
	}
	e.run = crawler.New(opts).Start(ctx, path)
	m.jobs.Set(e.job.ID, e, cache.NoExpiration)
	m.active = e

	m.wg.Add(1)
	go m.wait(e)

	m.logger.Info().Str("id", e.job.ID).Str("path", path).Msg("Job added")
	return e.snapshot(), nil
}

func (m *Manager) wait(e *entry) {
	defer m.wg.Done()
	res := e.run.Result()
	e.cancel()

	e.mu.Lock()
	now := time.Now()
	switch e.job.State {
	case StateRunning:
		e.job.Progress = res.Progress
		e.job.FinishedAt = &now
		if res.Failed() && m.ctx.Err() != nil {
			e.job.State = StateCanceled
		} else if res.Failed() {
			e.job.State = StateFailed
			e.job.Error = res.Err.Error()
		} else {
			e.job.State = StateDone
			e.job.Result = &res
		}
	default:
		// superseded or canceled: the partial result is dropped
	}
	job := e.job
	e.mu.Unlock()
	defer close(e.finished)

	m.jobs.Set(job.ID, e, cache.DefaultExpiration)
	m.mu.Lock()
	if m.active == e {
		m.active = nil
	}
	m.mu.Unlock()

	m.logger.Info().Str("id", job.ID).Str("state", string(job.State)).Dur("duration", res.Duration).Msg("Job finished")
	if m.onFinish != nil {
		m.onFinish(job, res)
	}
}

// Get returns the current view of a job.
func (m *Manager) Get(id string) (Job, error) {
	v, ok := m.jobs.Get(id)
	if !ok {
		return Job{}, ErrNotFound
	}
	return v.(*entry).snapshot(), nil
}

// Active returns the running job, if any.
func (m *Manager) Active() (Job, bool) {
	m.mu.Lock()
	e := m.active
	m.mu.Unlock()
	if e == nil {
		return Job{}, false
	}
	return e.snapshot(), true
}

// Cancel stops a running job. Canceling a finished job is a no-op.
func (m *Manager) Cancel(id string) error {
	v, ok := m.jobs.Get(id)
	if !ok {
		return ErrNotFound
	}
	e := v.(*entry)
	e.mu.Lock()
	if e.job.State == StateRunning {
		e.job.State = StateCanceled
		e.job.Progress = e.run.Progress()
		now := time.Now()
		e.job.FinishedAt = &now
		m.logger.Info().Str("id", id).Msg("Job canceled")
	}
	e.mu.Unlock()
	e.cancel()
	return nil
}

// Wait blocks until the job is finished or ctx is done.
func (m *Manager) Wait(ctx context.Context, id string) (Job, error) {
	v, ok := m.jobs.Get(id)
	if !ok {
		return Job{}, ErrNotFound
	}
	e := v.(*entry)
	select {
	case <-e.finished:
		return e.snapshot(), nil
	case <-ctx.Done():
		return e.snapshot(), ctx.Err()
	}
}

// Close cancels every running job and waits for them to finish.
func (m *Manager) Close() {
	m.mu.Lock()
	m.closed = true
	m.mu.Unlock()
	m.stop()
	m.wg.Wait()
}
