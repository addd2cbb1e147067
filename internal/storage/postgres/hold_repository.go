package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/edersik/Blocking-payments/internal/domain"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

const holdColumns = `hold_id, client_id, type, status, comment, source, created_at, created_by, expires_at, released_at, released_by, release_reason, idempotency_key`

type HoldRepository struct {
	pool *pgxpool.Pool
}

func NewHoldRepository(pool *pgxpool.Pool) *HoldRepository {
	return &HoldRepository{pool: pool}
}

func (r *HoldRepository) WithTx(ctx context.Context, fn func(ctx context.Context) error) error {
	return withTx(ctx, r.pool, fn)
}

// CreateHold inserts an ACTIVE hold together with its creation audit entry
// in one transaction. Returns ErrDuplicateIdempotencyKey when the key has
// already been used and ErrClientNotFound when the client row is missing.
func (r *HoldRepository) CreateHold(ctx context.Context, hold domain.Hold) error {
	return r.WithTx(ctx, func(txCtx context.Context) error {
		const stmt = `
INSERT INTO payment_hold (hold_id, client_id, type, status, comment, source, created_at, created_by, expires_at, idempotency_key)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`

		_, err := r.exec(txCtx, stmt,
			hold.ID,
			hold.ClientID,
			hold.Type,
			hold.Status,
			nullIfEmpty(hold.Comment),
			nullIfEmpty(hold.Source),
			hold.CreatedAt,
			hold.CreatedBy,
			hold.ExpiresAt,
			hold.IdempotencyKey,
		)
		if err != nil {
			if isUniqueViolation(err) {
				return domain.ErrDuplicateIdempotencyKey
			}
			if isForeignKeyViolation(err) {
				return domain.ErrClientNotFound
			}
			if isInvalidUUID(err) {
				return domain.ErrInvalidID
			}
			return fmt.Errorf("create hold: %w", err)
		}

		return r.insertAudit(txCtx, hold.ID, hold.CreatedBy, nil, hold.Status, "", hold.CreatedAt)
	})
}

func (r *HoldRepository) GetHold(ctx context.Context, id string) (domain.Hold, error) {
	query := `SELECT ` + holdColumns + ` FROM payment_hold WHERE hold_id = $1`
	hold, err := scanHold(r.queryRow(ctx, query, id))
	if err != nil {
		if isInvalidUUID(err) {
			return domain.Hold{}, domain.ErrInvalidID
		}
		if err == pgx.ErrNoRows {
			return domain.Hold{}, domain.ErrHoldNotFound
		}
		return domain.Hold{}, fmt.Errorf("get hold: %w", err)
	}
	return hold, nil
}

func (r *HoldRepository) FindByIdempotencyKey(ctx context.Context, key string) (*domain.Hold, error) {
	query := `SELECT ` + holdColumns + ` FROM payment_hold WHERE idempotency_key = $1`
	hold, err := scanHold(r.queryRow(ctx, query, key))
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("find hold by idempotency key: %w", err)
	}
	return &hold, nil
}

// ListForClient returns the client's holds newest first. A nil status means
// all holds regardless of status.
func (r *HoldRepository) ListForClient(ctx context.Context, clientID string, status *domain.HoldStatus) ([]domain.Hold, error) {
	query := `SELECT ` + holdColumns + ` FROM payment_hold WHERE client_id = $1`
	args := []any{clientID}
	if status != nil {
		query += ` AND status = $2`
		args = append(args, *status)
	}
	query += ` ORDER BY created_at DESC, hold_id DESC`

	rows, err := r.query(ctx, query, args...)
	if err != nil {
		if isInvalidUUID(err) {
			return nil, domain.ErrInvalidID
		}
		return nil, fmt.Errorf("list holds: %w", err)
	}
	defer rows.Close()

	return collectHolds(rows)
}

// ExpiredCandidates returns up to limit ACTIVE holds whose expiry is at or
// before now, oldest expiry first.
func (r *HoldRepository) ExpiredCandidates(ctx context.Context, now time.Time, limit int) ([]domain.Hold, error) {
	query := `
SELECT ` + holdColumns + `
FROM payment_hold
WHERE status = $1 AND expires_at IS NOT NULL AND expires_at <= $2
ORDER BY expires_at
LIMIT $3`

	rows, err := r.query(ctx, query, domain.HoldStatusActive, now, limit)
	if err != nil {
		return nil, fmt.Errorf("expired candidates: %w", err)
	}
	defer rows.Close()

	return collectHolds(rows)
}

// TransitionStatus moves the hold from expected to next only if the stored
// status still equals expected, and appends the audit entry in the same
// transaction. Release metadata is written only on a transition to RELEASED.
// Returns ErrStaleTransition when another actor already moved the hold and
// ErrHoldNotFound when no such hold exists.
func (r *HoldRepository) TransitionStatus(ctx context.Context, id string, expected, next domain.HoldStatus, actor, reason string, at time.Time) (domain.Hold, error) {
	var result domain.Hold
	err := r.WithTx(ctx, func(txCtx context.Context) error {
		var (
			row pgx.Row
			err error
		)
		if next == domain.HoldStatusReleased {
			const stmt = `
UPDATE payment_hold
SET status = $1, released_at = $2, released_by = $3, release_reason = $4
WHERE hold_id = $5 AND status = $6
RETURNING ` + holdColumns
			row = r.queryRow(txCtx, stmt, next, at, actor, nullIfEmpty(reason), id, expected)
		} else {
			const stmt = `
UPDATE payment_hold
SET status = $1
WHERE hold_id = $2 AND status = $3
RETURNING ` + holdColumns
			row = r.queryRow(txCtx, stmt, next, id, expected)
		}

		result, err = scanHold(row)
		if err != nil {
			if isInvalidUUID(err) {
				return domain.ErrInvalidID
			}
			if err == pgx.ErrNoRows {
				return r.classifyMissedTransition(txCtx, id)
			}
			return fmt.Errorf("transition hold: %w", err)
		}

		old := expected
		return r.insertAudit(txCtx, id, actor, &old, next, reason, at)
	})
	if err != nil {
		return domain.Hold{}, err
	}
	return result, nil
}

// AuditTrail returns the hold's audit entries oldest first.
func (r *HoldRepository) AuditTrail(ctx context.Context, holdID string) ([]domain.AuditEntry, error) {
	const query = `
SELECT audit_id, hold_id, actor, old_status, new_status, note, created_at
FROM payment_hold_audit
WHERE hold_id = $1
ORDER BY created_at, audit_id`

	rows, err := r.query(ctx, query, holdID)
	if err != nil {
		if isInvalidUUID(err) {
			return nil, domain.ErrInvalidID
		}
		return nil, fmt.Errorf("audit trail: %w", err)
	}
	defer rows.Close()

	var entries []domain.AuditEntry
	for rows.Next() {
		var (
			e         domain.AuditEntry
			oldStatus *string
			note      *string
		)
		if err := rows.Scan(&e.ID, &e.HoldID, &e.Actor, &oldStatus, &e.NewStatus, &note, &e.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan audit entry: %w", err)
		}
		if oldStatus != nil {
			s := domain.HoldStatus(*oldStatus)
			e.OldStatus = &s
		}
		if note != nil {
			e.Note = *note
		}
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("audit trail rows: %w", err)
	}
	return entries, nil
}

// classifyMissedTransition distinguishes a hold that never existed from one
// that left the expected status before the update ran.
func (r *HoldRepository) classifyMissedTransition(ctx context.Context, id string) error {
	var status domain.HoldStatus
	err := r.queryRow(ctx, `SELECT status FROM payment_hold WHERE hold_id = $1`, id).Scan(&status)
	if err != nil {
		if err == pgx.ErrNoRows {
			return domain.ErrHoldNotFound
		}
		return fmt.Errorf("classify missed transition: %w", err)
	}
	return domain.ErrStaleTransition
}

func (r *HoldRepository) insertAudit(ctx context.Context, holdID, actor string, oldStatus *domain.HoldStatus, newStatus domain.HoldStatus, note string, at time.Time) error {
	const stmt = `
INSERT INTO payment_hold_audit (hold_id, actor, old_status, new_status, note, created_at)
VALUES ($1, $2, $3, $4, $5, $6)`

	_, err := r.exec(ctx, stmt, holdID, actor, oldStatus, newStatus, nullIfEmpty(note), at)
	if err != nil {
		return fmt.Errorf("insert audit entry: %w", err)
	}
	return nil
}

func (r *HoldRepository) exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error) {
	if tx := txFromContext(ctx); tx != nil {
		return tx.Exec(ctx, sql, args...)
	}
	return r.pool.Exec(ctx, sql, args...)
}

func (r *HoldRepository) queryRow(ctx context.Context, sql string, args ...any) pgx.Row {
	if tx := txFromContext(ctx); tx != nil {
		return tx.QueryRow(ctx, sql, args...)
	}
	return r.pool.QueryRow(ctx, sql, args...)
}

func (r *HoldRepository) query(ctx context.Context, sql string, args ...any) (pgx.Rows, error) {
	if tx := txFromContext(ctx); tx != nil {
		return tx.Query(ctx, sql, args...)
	}
	return r.pool.Query(ctx, sql, args...)
}

func scanHold(row pgx.Row) (domain.Hold, error) {
	var (
		h             domain.Hold
		comment       *string
		source        *string
		releasedBy    *string
		releaseReason *string
	)
	err := row.Scan(
		&h.ID,
		&h.ClientID,
		&h.Type,
		&h.Status,
		&comment,
		&source,
		&h.CreatedAt,
		&h.CreatedBy,
		&h.ExpiresAt,
		&h.ReleasedAt,
		&releasedBy,
		&releaseReason,
		&h.IdempotencyKey,
	)
	if err != nil {
		return domain.Hold{}, err
	}
	if comment != nil {
		h.Comment = *comment
	}
	if source != nil {
		h.Source = *source
	}
	if releasedBy != nil {
		h.ReleasedBy = *releasedBy
	}
	if releaseReason != nil {
		h.ReleaseReason = *releaseReason
	}
	return h, nil
}

func collectHolds(rows pgx.Rows) ([]domain.Hold, error) {
	var holds []domain.Hold
	for rows.Next() {
		h, err := scanHold(rows)
		if err != nil {
			return nil, fmt.Errorf("scan hold: %w", err)
		}
		holds = append(holds, h)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("hold rows: %w", err)
	}
	return holds, nil
}

func nullIfEmpty(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
