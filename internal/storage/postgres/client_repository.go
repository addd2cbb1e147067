package postgres

import (
	"context"
	"fmt"

	"github.com/edersik/Blocking-payments/internal/domain"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

type ClientRepository struct {
	pool *pgxpool.Pool
}

func NewClientRepository(pool *pgxpool.Pool) *ClientRepository {
	return &ClientRepository{pool: pool}
}

func (r *ClientRepository) CreateClient(ctx context.Context, client domain.Client) error {
	const stmt = `INSERT INTO client (client_id, tax_id, created_at) VALUES ($1, $2, $3)`

	_, err := r.pool.Exec(ctx, stmt, client.ID, nullIfEmpty(client.TaxID), client.CreatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return domain.ErrClientAlreadyExists
		}
		if isInvalidUUID(err) {
			return domain.ErrInvalidID
		}
		return fmt.Errorf("create client: %w", err)
	}
	return nil
}

func (r *ClientRepository) GetClient(ctx context.Context, id string) (domain.Client, error) {
	const query = `SELECT client_id, tax_id, created_at FROM client WHERE client_id = $1`

	var (
		c     domain.Client
		taxID *string
	)
	err := r.pool.QueryRow(ctx, query, id).Scan(&c.ID, &taxID, &c.CreatedAt)
	if err != nil {
		if isInvalidUUID(err) {
			return domain.Client{}, domain.ErrInvalidID
		}
		if err == pgx.ErrNoRows {
			return domain.Client{}, domain.ErrClientNotFound
		}
		return domain.Client{}, fmt.Errorf("get client: %w", err)
	}
	if taxID != nil {
		c.TaxID = *taxID
	}
	return c, nil
}

// ClientExists reports whether a client row exists, honoring an ambient
// transaction so the lifecycle engine can check inside its create unit.
func (r *ClientRepository) ClientExists(ctx context.Context, id string) (bool, error) {
	const query = `SELECT EXISTS (SELECT 1 FROM client WHERE client_id = $1)`

	var exists bool
	var err error
	if tx := txFromContext(ctx); tx != nil {
		err = tx.QueryRow(ctx, query, id).Scan(&exists)
	} else {
		err = r.pool.QueryRow(ctx, query, id).Scan(&exists)
	}
	if err != nil {
		if isInvalidUUID(err) {
			return false, domain.ErrInvalidID
		}
		return false, fmt.Errorf("client exists: %w", err)
	}
	return exists, nil
}
