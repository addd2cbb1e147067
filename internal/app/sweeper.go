package app

import (
	"context"
	"errors"
	"log"
	"time"

	"github.com/edersik/Blocking-payments/internal/clock"
	"github.com/edersik/Blocking-payments/internal/domain"
	"github.com/edersik/Blocking-payments/internal/metrics"
)

// SweeperActor is the identity recorded on audit entries written by the
// expiry sweeper.
const SweeperActor = "system:expiry"

const (
	defaultSweepInterval = 30 * time.Second
	defaultSweepBatch    = 100
)

// SweeperRepository is the slice of the hold store the sweeper needs.
type SweeperRepository interface {
	ExpiredCandidates(ctx context.Context, now time.Time, limit int) ([]domain.Hold, error)
	TransitionStatus(ctx context.Context, id string, expected, next domain.HoldStatus, actor, reason string, at time.Time) (domain.Hold, error)
}

// Sweeper expires ACTIVE holds whose deadline has passed. Multiple sweeper
// instances may run against the same store: the conditional transition
// admits at most one winner per hold, and a manual release that commits
// first simply makes the candidate stale.
type Sweeper struct {
	repo     SweeperRepository
	clock    clock.Clock
	logger   *log.Logger
	metrics  *metrics.Metrics
	interval time.Duration
	batch    int
}

func NewSweeper(repo SweeperRepository, clk clock.Clock, opts ...SweeperOption) *Sweeper {
	s := &Sweeper{
		repo:     repo,
		clock:    clk,
		logger:   log.Default(),
		metrics:  metrics.NewUnregistered(),
		interval: defaultSweepInterval,
		batch:    defaultSweepBatch,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

type SweeperOption func(*Sweeper)

// WithSweepInterval overrides how often the sweeper wakes up.
func WithSweepInterval(d time.Duration) SweeperOption {
	return func(s *Sweeper) {
		if d > 0 {
			s.interval = d
		}
	}
}

// WithSweepBatch bounds how many candidates one cycle processes.
func WithSweepBatch(n int) SweeperOption {
	return func(s *Sweeper) {
		if n > 0 {
			s.batch = n
		}
	}
}

// WithSweeperLogger overrides the cycle-error logger.
func WithSweeperLogger(logger *log.Logger) SweeperOption {
	return func(s *Sweeper) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// WithSweeperMetrics wires the sweeper to a shared metrics set.
func WithSweeperMetrics(m *metrics.Metrics) SweeperOption {
	return func(s *Sweeper) {
		if m != nil {
			s.metrics = m
		}
	}
}

// Run sweeps at the configured interval until ctx is cancelled.
func (s *Sweeper) Run(ctx context.Context) {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if _, err := s.Sweep(ctx); err != nil {
				if errors.Is(err, context.Canceled) {
					return
				}
				s.logger.Printf("sweep cycle failed: %v", err)
			}
		}
	}
}

// Sweep runs one cycle: it reads a bounded batch of expired ACTIVE holds
// and transitions each to EXPIRED. A candidate that left ACTIVE between the
// read and the transition is skipped; that just means a release won the
// race. Returns how many holds this cycle expired.
func (s *Sweeper) Sweep(ctx context.Context) (int, error) {
	now := s.clock.Now()

	candidates, err := s.repo.ExpiredCandidates(ctx, now, s.batch)
	if err != nil {
		s.metrics.SweepErrors.Inc()
		return 0, err
	}

	expired := 0
	for _, hold := range candidates {
		_, err := s.repo.TransitionStatus(ctx, hold.ID, domain.HoldStatusActive, domain.HoldStatusExpired, SweeperActor, "", now)
		if err != nil {
			if errors.Is(err, domain.ErrStaleTransition) || errors.Is(err, domain.ErrHoldNotFound) {
				s.metrics.StaleTransitions.Inc()
				continue
			}
			s.metrics.SweepErrors.Inc()
			return expired, err
		}
		expired++
		s.metrics.HoldsExpired.Inc()
	}

	s.metrics.SweepCycles.Inc()
	return expired, nil
}
