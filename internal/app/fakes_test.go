package app

import (
	"context"
	"sort"
	"time"

	"github.com/edersik/Blocking-payments/internal/domain"
)

// fakeHoldRepo is an in-memory stand-in for the Postgres hold store with
// the same primitive semantics: unique idempotency keys and conditional
// transitions with paired audit entries.
type fakeHoldRepo struct {
	holds   map[string]domain.Hold
	audits  []domain.AuditEntry
	clients map[string]bool

	failCreateWith error
}

func newFakeHoldRepo(clients []string, holds ...domain.Hold) *fakeHoldRepo {
	repo := &fakeHoldRepo{
		holds:   make(map[string]domain.Hold),
		clients: make(map[string]bool),
	}
	for _, c := range clients {
		repo.clients[c] = true
	}
	for _, h := range holds {
		repo.holds[h.ID] = h
	}
	return repo
}

func (f *fakeHoldRepo) WithTx(ctx context.Context, fn func(ctx context.Context) error) error {
	return fn(ctx)
}

func (f *fakeHoldRepo) CreateHold(_ context.Context, hold domain.Hold) error {
	if f.failCreateWith != nil {
		return f.failCreateWith
	}
	for _, h := range f.holds {
		if h.IdempotencyKey == hold.IdempotencyKey {
			return domain.ErrDuplicateIdempotencyKey
		}
	}
	if !f.clients[hold.ClientID] {
		return domain.ErrClientNotFound
	}
	f.holds[hold.ID] = hold
	f.appendAudit(hold.ID, hold.CreatedBy, nil, hold.Status, "", hold.CreatedAt)
	return nil
}

func (f *fakeHoldRepo) GetHold(_ context.Context, id string) (domain.Hold, error) {
	h, ok := f.holds[id]
	if !ok {
		return domain.Hold{}, domain.ErrHoldNotFound
	}
	return h, nil
}

func (f *fakeHoldRepo) FindByIdempotencyKey(_ context.Context, key string) (*domain.Hold, error) {
	for _, h := range f.holds {
		if h.IdempotencyKey == key {
			hold := h
			return &hold, nil
		}
	}
	return nil, nil
}

func (f *fakeHoldRepo) ListForClient(_ context.Context, clientID string, status *domain.HoldStatus) ([]domain.Hold, error) {
	var out []domain.Hold
	for _, h := range f.holds {
		if h.ClientID != clientID {
			continue
		}
		if status != nil && h.Status != *status {
			continue
		}
		out = append(out, h)
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	return out, nil
}

func (f *fakeHoldRepo) ExpiredCandidates(_ context.Context, now time.Time, limit int) ([]domain.Hold, error) {
	var out []domain.Hold
	for _, h := range f.holds {
		if h.Status != domain.HoldStatusActive || h.ExpiresAt == nil {
			continue
		}
		if h.ExpiresAt.After(now) {
			continue
		}
		out = append(out, h)
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].ExpiresAt.Before(*out[j].ExpiresAt)
	})
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (f *fakeHoldRepo) TransitionStatus(_ context.Context, id string, expected, next domain.HoldStatus, actor, reason string, at time.Time) (domain.Hold, error) {
	h, ok := f.holds[id]
	if !ok {
		return domain.Hold{}, domain.ErrHoldNotFound
	}
	if h.Status != expected {
		return domain.Hold{}, domain.ErrStaleTransition
	}

	h.Status = next
	if next == domain.HoldStatusReleased {
		released := at
		h.ReleasedAt = &released
		h.ReleasedBy = actor
		h.ReleaseReason = reason
	}
	f.holds[id] = h
	old := expected
	f.appendAudit(id, actor, &old, next, reason, at)
	return h, nil
}

func (f *fakeHoldRepo) ClientExists(_ context.Context, id string) (bool, error) {
	return f.clients[id], nil
}

func (f *fakeHoldRepo) appendAudit(holdID, actor string, old *domain.HoldStatus, next domain.HoldStatus, note string, at time.Time) {
	f.audits = append(f.audits, domain.AuditEntry{
		ID:        int64(len(f.audits) + 1),
		HoldID:    holdID,
		Actor:     actor,
		OldStatus: old,
		NewStatus: next,
		Note:      note,
		CreatedAt: at,
	})
}

func (f *fakeHoldRepo) auditCount(holdID string, next domain.HoldStatus) int {
	count := 0
	for _, a := range f.audits {
		if a.HoldID == holdID && a.NewStatus == next {
			count++
		}
	}
	return count
}
