package server

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog"

	"nithronos/nosdu/internal/metrics"
	"nithronos/nosdu/internal/storage/volumes"
)

// Resolver produces a full drive list.
type Resolver interface {
	Resolve(ctx context.Context) (volumes.Drives, error)
}

// Snapshot is one resolved topology. It is never mutated after it is
// published.
type Snapshot struct {
	Drives     volumes.Drives `json:"drives"`
	ResolvedAt time.Time      `json:"resolved_at"`
	Error      string         `json:"error,omitempty"`
}

// Topology holds the latest drive snapshot and refreshes it on demand or
// on a cron schedule. A failed refresh keeps the previous drives.
type Topology struct {
	resolver Resolver
	metrics  *metrics.Metrics
	logger   zerolog.Logger
	timeout  time.Duration

	refreshMu sync.Mutex
	mu        sync.RWMutex
	snap      Snapshot

	cron *cron.Cron
}

func NewTopology(r Resolver, m *metrics.Metrics, logger zerolog.Logger) *Topology {
	return &Topology{
		resolver: r,
		metrics:  m,
		logger:   logger.With().Str("component", "topology").Logger(),
		timeout:  time.Minute,
		snap:     Snapshot{Drives: volumes.Drives{}},
	}
}

// Snapshot returns the latest published snapshot.
func (t *Topology) Snapshot() Snapshot {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.snap
}

// Refresh runs one resolution pass. Concurrent refreshes are serialized.
func (t *Topology) Refresh(ctx context.Context) (Snapshot, error) {
	t.refreshMu.Lock()
	defer t.refreshMu.Unlock()

	ctx, cancel := context.WithTimeout(ctx, t.timeout)
	defer cancel()
	start := time.Now()
	drives, err := t.resolver.Resolve(ctx)
	if t.metrics != nil {
		t.metrics.ObserveResolve(drives, err, time.Since(start))
	}

	t.mu.Lock()
	defer t.mu.Unlock()
	if err != nil {
		t.snap.Error = err.Error()
		t.logger.Error().Err(err).Msg("Topology refresh failed")
		return t.snap, fmt.Errorf("refresh topology: %w", err)
	}
	if drives == nil {
		drives = volumes.Drives{}
	}
	t.snap = Snapshot{Drives: drives, ResolvedAt: time.Now().UTC()}
	local, network := drives.Counts()
	t.logger.Info().Int("local", local).Int("network", network).Msg("Topology refreshed")
	return t.snap, nil
}

// StartSchedule refreshes on the given cron spec (standard five fields or
// descriptors such as "@every 5m"). An empty spec disables scheduling.
func (t *Topology) StartSchedule(spec string) error {
	if spec == "" {
		return nil
	}
	c := cron.New()
	if _, err := c.AddFunc(spec, func() {
		_, _ = t.Refresh(context.Background())
	}); err != nil {
		return fmt.Errorf("refresh schedule %q: %w", spec, err)
	}
	c.Start()
	t.cron = c
	t.logger.Info().Str("schedule", spec).Msg("Topology schedule started")
	return nil
}

// Stop halts the schedule and waits for a running refresh.
func (t *Topology) Stop() {
	if t.cron == nil {
		return
	}
	<-t.cron.Stop().Done()
}
