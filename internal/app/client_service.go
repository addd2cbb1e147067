package app

import (
	"context"

	"github.com/edersik/Blocking-payments/internal/clock"
	"github.com/edersik/Blocking-payments/internal/domain"
	"github.com/google/uuid"
)

type ClientRepository interface {
	CreateClient(ctx context.Context, client domain.Client) error
	GetClient(ctx context.Context, id string) (domain.Client, error)
}

// ClientService registers and looks up clients. Clients are immutable once
// created; holds only reference existing client rows.
type ClientService struct {
	repo  ClientRepository
	clock clock.Clock
}

func NewClientService(repo ClientRepository, clk clock.Clock) *ClientService {
	return &ClientService{
		repo:  repo,
		clock: clk,
	}
}

type CreateClientInput struct {
	// ID is optional; a fresh id is generated when empty.
	ID    string
	TaxID string
}

func (s *ClientService) CreateClient(ctx context.Context, in CreateClientInput) (domain.Client, error) {
	id := in.ID
	if id == "" {
		id = uuid.NewString()
	} else if _, err := uuid.Parse(id); err != nil {
		return domain.Client{}, domain.ErrInvalidID
	}

	client := domain.Client{
		ID:        id,
		TaxID:     in.TaxID,
		CreatedAt: s.clock.Now(),
	}

	if err := s.repo.CreateClient(ctx, client); err != nil {
		return domain.Client{}, err
	}
	return client, nil
}

func (s *ClientService) GetClient(ctx context.Context, id string) (domain.Client, error) {
	return s.repo.GetClient(ctx, id)
}
