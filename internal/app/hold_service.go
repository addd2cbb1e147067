package app

import (
	"context"
	"errors"
	"time"

	"github.com/edersik/Blocking-payments/internal/clock"
	"github.com/edersik/Blocking-payments/internal/domain"
	"github.com/edersik/Blocking-payments/internal/metrics"
	"github.com/google/uuid"
)

type HoldRepository interface {
	WithTx(ctx context.Context, fn func(ctx context.Context) error) error
	CreateHold(ctx context.Context, hold domain.Hold) error
	GetHold(ctx context.Context, id string) (domain.Hold, error)
	FindByIdempotencyKey(ctx context.Context, key string) (*domain.Hold, error)
	ListForClient(ctx context.Context, clientID string, status *domain.HoldStatus) ([]domain.Hold, error)
	TransitionStatus(ctx context.Context, id string, expected, next domain.HoldStatus, actor, reason string, at time.Time) (domain.Hold, error)
}

// ClientDirectory is the read side of client registration that the
// lifecycle engine needs.
type ClientDirectory interface {
	ClientExists(ctx context.Context, id string) (bool, error)
}

// HoldService is the hold lifecycle engine: it owns the create/release
// transitions and delegates atomicity to the repository primitives.
type HoldService struct {
	repo    HoldRepository
	clients ClientDirectory
	clock   clock.Clock
	metrics *metrics.Metrics
}

func NewHoldService(repo HoldRepository, clients ClientDirectory, clk clock.Clock, opts ...HoldServiceOption) *HoldService {
	svc := &HoldService{
		repo:    repo,
		clients: clients,
		clock:   clk,
		metrics: metrics.NewUnregistered(),
	}
	for _, opt := range opts {
		opt(svc)
	}
	return svc
}

type HoldServiceOption func(*HoldService)

// WithMetrics wires the service to a shared metrics set.
func WithMetrics(m *metrics.Metrics) HoldServiceOption {
	return func(s *HoldService) {
		if m != nil {
			s.metrics = m
		}
	}
}

type CreateHoldInput struct {
	ClientID       string
	Type           domain.HoldType
	Comment        string
	Source         string
	CreatedBy      string
	ExpiresAt      *time.Time
	IdempotencyKey string
}

type CreateHoldResult struct {
	Hold    domain.Hold
	Created bool
}

// Create places a hold, or returns the hold a previous request with the
// same idempotency key already created. Two concurrent requests carrying
// the same key both race to insert; the unique constraint picks one winner
// and the loser converges on the winner's row via re-read.
func (s *HoldService) Create(ctx context.Context, in CreateHoldInput) (CreateHoldResult, error) {
	if in.IdempotencyKey == "" {
		return CreateHoldResult{}, domain.ErrIdempotencyKeyRequired
	}
	if in.CreatedBy == "" {
		return CreateHoldResult{}, domain.ErrActorRequired
	}
	if !domain.ValidHoldType(in.Type) {
		return CreateHoldResult{}, domain.ErrInvalidHoldType
	}

	now := s.clock.Now()
	if in.ExpiresAt != nil && !in.ExpiresAt.After(now) {
		return CreateHoldResult{}, domain.ErrInvalidExpiry
	}

	exists, err := s.clients.ClientExists(ctx, in.ClientID)
	if err != nil {
		return CreateHoldResult{}, err
	}
	if !exists {
		return CreateHoldResult{}, domain.ErrClientNotFound
	}

	hold := domain.Hold{
		ID:             uuid.NewString(),
		ClientID:       in.ClientID,
		Type:           in.Type,
		Status:         domain.HoldStatusActive,
		Comment:        in.Comment,
		Source:         in.Source,
		CreatedAt:      now,
		CreatedBy:      in.CreatedBy,
		ExpiresAt:      in.ExpiresAt,
		IdempotencyKey: in.IdempotencyKey,
	}

	if err := s.repo.CreateHold(ctx, hold); err != nil {
		if errors.Is(err, domain.ErrDuplicateIdempotencyKey) {
			return s.resolveDuplicate(ctx, hold)
		}
		return CreateHoldResult{}, err
	}

	s.metrics.HoldsCreated.Inc()
	return CreateHoldResult{Hold: hold, Created: true}, nil
}

// resolveDuplicate decides whether a duplicate-key insert was a safe replay
// of the same request or a conflicting reuse of the key.
func (s *HoldService) resolveDuplicate(ctx context.Context, attempted domain.Hold) (CreateHoldResult, error) {
	existing, err := s.repo.FindByIdempotencyKey(ctx, attempted.IdempotencyKey)
	if err != nil {
		return CreateHoldResult{}, err
	}
	if existing == nil {
		// The winning row vanished between insert and re-read; callers
		// retry at their layer.
		return CreateHoldResult{}, domain.ErrStaleTransition
	}
	if !existing.SameRequest(attempted) {
		s.metrics.IdempotencyErrors.Inc()
		return CreateHoldResult{}, domain.ErrIdempotencyConflict
	}
	s.metrics.HoldsReplayed.Inc()
	return CreateHoldResult{Hold: *existing, Created: false}, nil
}

// Release transitions an ACTIVE hold to RELEASED. A hold that already
// reached a terminal state fails with TerminalStateError carrying the
// current status; a transition lost to a concurrent release or to the
// expiry sweeper is reported the same way after a re-read, never as a
// silent success.
func (s *HoldService) Release(ctx context.Context, holdID, releaser, reason string) (domain.Hold, error) {
	if releaser == "" {
		return domain.Hold{}, domain.ErrActorRequired
	}

	hold, err := s.repo.GetHold(ctx, holdID)
	if err != nil {
		return domain.Hold{}, err
	}
	if hold.Status.Terminal() {
		return domain.Hold{}, &domain.TerminalStateError{Status: hold.Status}
	}

	released, err := s.repo.TransitionStatus(ctx, holdID, domain.HoldStatusActive, domain.HoldStatusReleased, releaser, reason, s.clock.Now())
	if err != nil {
		if errors.Is(err, domain.ErrStaleTransition) {
			s.metrics.StaleTransitions.Inc()
			current, readErr := s.repo.GetHold(ctx, holdID)
			if readErr != nil {
				return domain.Hold{}, readErr
			}
			return domain.Hold{}, &domain.TerminalStateError{Status: current.Status}
		}
		return domain.Hold{}, err
	}

	s.metrics.HoldsReleased.Inc()
	return released, nil
}

// Get returns one of the client's holds.
func (s *HoldService) Get(ctx context.Context, clientID, holdID string) (domain.Hold, error) {
	hold, err := s.repo.GetHold(ctx, holdID)
	if err != nil {
		return domain.Hold{}, err
	}
	if hold.ClientID != clientID {
		return domain.Hold{}, domain.ErrHoldNotFound
	}
	return hold, nil
}

// List returns the client's holds newest first, optionally filtered by
// status. Unknown clients are rejected rather than answered with an empty
// list.
func (s *HoldService) List(ctx context.Context, clientID string, status *domain.HoldStatus) ([]domain.Hold, error) {
	exists, err := s.clients.ClientExists(ctx, clientID)
	if err != nil {
		return nil, err
	}
	if !exists {
		return nil, domain.ErrClientNotFound
	}
	return s.repo.ListForClient(ctx, clientID, status)
}
