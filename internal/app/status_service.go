package app

import (
	"context"

	"github.com/edersik/Blocking-payments/internal/domain"
)

// StatusService computes the derived blocked/kind projection of a client.
// The aggregate is recomputed from the client's ACTIVE holds on every call
// and never cached, so it always reflects the latest committed transitions.
type StatusService struct {
	repo    HoldRepository
	clients ClientDirectory
}

func NewStatusService(repo HoldRepository, clients ClientDirectory) *StatusService {
	return &StatusService{
		repo:    repo,
		clients: clients,
	}
}

type CheckResult struct {
	Status      domain.ClientHoldStatus
	ActiveHolds []domain.Hold
}

func (s *StatusService) Check(ctx context.Context, clientID string) (CheckResult, error) {
	exists, err := s.clients.ClientExists(ctx, clientID)
	if err != nil {
		return CheckResult{}, err
	}
	if !exists {
		return CheckResult{}, domain.ErrClientNotFound
	}

	active := domain.HoldStatusActive
	holds, err := s.repo.ListForClient(ctx, clientID, &active)
	if err != nil {
		return CheckResult{}, err
	}

	return CheckResult{
		Status:      domain.AggregateStatus(holds),
		ActiveHolds: holds,
	}, nil
}
