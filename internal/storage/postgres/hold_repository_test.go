package postgres

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/edersik/Blocking-payments/internal/domain"
	"github.com/edersik/Blocking-payments/internal/testutil"
	"github.com/google/uuid"
)

func TestHoldRepository(t *testing.T) {
	pool := testutil.NewTestPool(t)
	repo := NewHoldRepository(pool)
	testutil.ApplyMigrations(t, context.Background(), pool)

	newHold := func(clientID, key string) domain.Hold {
		return domain.Hold{
			ID:             uuid.NewString(),
			ClientID:       clientID,
			Type:           domain.HoldTypeFraudSuspect,
			Status:         domain.HoldStatusActive,
			Comment:        "suspicious transfers",
			Source:         "aml-screening",
			CreatedAt:      time.Now().UTC().Truncate(time.Microsecond),
			CreatedBy:      "user:ops1",
			IdempotencyKey: key,
		}
	}

	t.Run("CreateHold writes the row and its audit entry atomically", func(t *testing.T) {
		ctx := context.Background()
		testutil.TruncateAll(t, ctx, pool)
		clientID := testutil.InsertClient(t, ctx, pool)

		hold := newHold(clientID, "idem-create")
		if err := repo.CreateHold(ctx, hold); err != nil {
			t.Fatalf("expected no error, got %v", err)
		}

		got, err := repo.GetHold(ctx, hold.ID)
		if err != nil {
			t.Fatalf("get hold: %v", err)
		}
		if got.Status != domain.HoldStatusActive || got.Comment != hold.Comment || got.IdempotencyKey != hold.IdempotencyKey {
			t.Fatalf("unexpected hold: %+v", got)
		}

		entries, err := repo.AuditTrail(ctx, hold.ID)
		if err != nil {
			t.Fatalf("audit trail: %v", err)
		}
		if len(entries) != 1 {
			t.Fatalf("expected 1 audit entry, got %d", len(entries))
		}
		if entries[0].OldStatus != nil || entries[0].NewStatus != domain.HoldStatusActive {
			t.Fatalf("unexpected creation audit entry: %+v", entries[0])
		}
		if entries[0].Actor != hold.CreatedBy {
			t.Fatalf("expected actor %s, got %s", hold.CreatedBy, entries[0].Actor)
		}
	})

	t.Run("CreateHold rejects duplicate idempotency keys", func(t *testing.T) {
		ctx := context.Background()
		testutil.TruncateAll(t, ctx, pool)
		clientID := testutil.InsertClient(t, ctx, pool)

		if err := repo.CreateHold(ctx, newHold(clientID, "idem-dup")); err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
		err := repo.CreateHold(ctx, newHold(clientID, "idem-dup"))
		if !errors.Is(err, domain.ErrDuplicateIdempotencyKey) {
			t.Fatalf("expected ErrDuplicateIdempotencyKey, got %v", err)
		}

		var count int
		if err := pool.QueryRow(ctx, `SELECT COUNT(*) FROM payment_hold WHERE idempotency_key = $1`, "idem-dup").Scan(&count); err != nil {
			t.Fatalf("count holds: %v", err)
		}
		if count != 1 {
			t.Fatalf("expected 1 hold for the key, got %d", count)
		}
	})

	t.Run("CreateHold rejects unknown clients", func(t *testing.T) {
		ctx := context.Background()
		testutil.TruncateAll(t, ctx, pool)

		err := repo.CreateHold(ctx, newHold(uuid.NewString(), "idem-orphan"))
		if !errors.Is(err, domain.ErrClientNotFound) {
			t.Fatalf("expected ErrClientNotFound, got %v", err)
		}

		// The rolled-back transaction must leave no orphan audit rows.
		var count int
		if err := pool.QueryRow(ctx, `SELECT COUNT(*) FROM payment_hold_audit`).Scan(&count); err != nil {
			t.Fatalf("count audit: %v", err)
		}
		if count != 0 {
			t.Fatalf("expected no audit rows, got %d", count)
		}
	})

	t.Run("FindByIdempotencyKey returns the hold or nil", func(t *testing.T) {
		ctx := context.Background()
		testutil.TruncateAll(t, ctx, pool)
		clientID := testutil.InsertClient(t, ctx, pool)

		hold := newHold(clientID, "idem-find")
		if err := repo.CreateHold(ctx, hold); err != nil {
			t.Fatalf("create: %v", err)
		}

		found, err := repo.FindByIdempotencyKey(ctx, "idem-find")
		if err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
		if found == nil || found.ID != hold.ID {
			t.Fatalf("unexpected hold: %+v", found)
		}

		missing, err := repo.FindByIdempotencyKey(ctx, "idem-missing")
		if err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
		if missing != nil {
			t.Fatalf("expected nil, got %+v", missing)
		}
	})

	t.Run("ListForClient orders newest first and filters by status", func(t *testing.T) {
		ctx := context.Background()
		testutil.TruncateAll(t, ctx, pool)
		clientID := testutil.InsertClient(t, ctx, pool)
		otherClient := testutil.InsertClient(t, ctx, pool)

		old := newHold(clientID, "idem-old")
		old.CreatedAt = time.Now().UTC().Add(-time.Hour).Truncate(time.Microsecond)
		recent := newHold(clientID, "idem-recent")
		recent.Status = domain.HoldStatusActive
		foreign := newHold(otherClient, "idem-foreign")

		for _, h := range []domain.Hold{old, recent, foreign} {
			if err := repo.CreateHold(ctx, h); err != nil {
				t.Fatalf("create %s: %v", h.IdempotencyKey, err)
			}
		}
		if _, err := repo.TransitionStatus(ctx, old.ID, domain.HoldStatusActive, domain.HoldStatusReleased, "user:ops2", "done", time.Now().UTC()); err != nil {
			t.Fatalf("transition: %v", err)
		}

		all, err := repo.ListForClient(ctx, clientID, nil)
		if err != nil {
			t.Fatalf("list all: %v", err)
		}
		if len(all) != 2 {
			t.Fatalf("expected 2 holds, got %d", len(all))
		}
		if all[0].ID != recent.ID || all[1].ID != old.ID {
			t.Fatalf("expected newest first, got %s then %s", all[0].ID, all[1].ID)
		}

		released := domain.HoldStatusReleased
		filtered, err := repo.ListForClient(ctx, clientID, &released)
		if err != nil {
			t.Fatalf("list released: %v", err)
		}
		if len(filtered) != 1 || filtered[0].ID != old.ID {
			t.Fatalf("unexpected filter result: %+v", filtered)
		}
	})

	t.Run("TransitionStatus releases and audits in one unit", func(t *testing.T) {
		ctx := context.Background()
		testutil.TruncateAll(t, ctx, pool)
		clientID := testutil.InsertClient(t, ctx, pool)

		hold := newHold(clientID, "idem-release")
		if err := repo.CreateHold(ctx, hold); err != nil {
			t.Fatalf("create: %v", err)
		}

		at := time.Now().UTC().Truncate(time.Microsecond)
		released, err := repo.TransitionStatus(ctx, hold.ID, domain.HoldStatusActive, domain.HoldStatusReleased, "user:ops2", "cleared", at)
		if err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
		if released.Status != domain.HoldStatusReleased {
			t.Fatalf("expected RELEASED, got %s", released.Status)
		}
		if released.ReleasedAt == nil || !released.ReleasedAt.Equal(at) || released.ReleasedBy != "user:ops2" || released.ReleaseReason != "cleared" {
			t.Fatalf("unexpected release fields: %+v", released)
		}

		if got := testutil.CountAuditEntries(t, ctx, pool, hold.ID, domain.HoldStatusReleased); got != 1 {
			t.Fatalf("expected 1 release audit entry, got %d", got)
		}
	})

	t.Run("TransitionStatus to EXPIRED leaves release fields empty", func(t *testing.T) {
		ctx := context.Background()
		testutil.TruncateAll(t, ctx, pool)
		clientID := testutil.InsertClient(t, ctx, pool)

		hold := newHold(clientID, "idem-expire")
		if err := repo.CreateHold(ctx, hold); err != nil {
			t.Fatalf("create: %v", err)
		}

		expired, err := repo.TransitionStatus(ctx, hold.ID, domain.HoldStatusActive, domain.HoldStatusExpired, "system:expiry", "", time.Now().UTC())
		if err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
		if expired.Status != domain.HoldStatusExpired {
			t.Fatalf("expected EXPIRED, got %s", expired.Status)
		}
		if expired.ReleasedAt != nil || expired.ReleasedBy != "" || expired.ReleaseReason != "" {
			t.Fatalf("expiry must not set release fields: %+v", expired)
		}
	})

	t.Run("TransitionStatus reports stale and missing holds", func(t *testing.T) {
		ctx := context.Background()
		testutil.TruncateAll(t, ctx, pool)
		clientID := testutil.InsertClient(t, ctx, pool)

		hold := newHold(clientID, "idem-stale")
		if err := repo.CreateHold(ctx, hold); err != nil {
			t.Fatalf("create: %v", err)
		}
		if _, err := repo.TransitionStatus(ctx, hold.ID, domain.HoldStatusActive, domain.HoldStatusReleased, "user:ops2", "first", time.Now().UTC()); err != nil {
			t.Fatalf("release: %v", err)
		}

		_, err := repo.TransitionStatus(ctx, hold.ID, domain.HoldStatusActive, domain.HoldStatusExpired, "system:expiry", "", time.Now().UTC())
		if !errors.Is(err, domain.ErrStaleTransition) {
			t.Fatalf("expected ErrStaleTransition, got %v", err)
		}

		// A lost transition must change nothing.
		got, err := repo.GetHold(ctx, hold.ID)
		if err != nil {
			t.Fatalf("get hold: %v", err)
		}
		if got.Status != domain.HoldStatusReleased || got.ReleasedBy != "user:ops2" || got.ReleaseReason != "first" {
			t.Fatalf("terminal hold mutated: %+v", got)
		}
		if got := testutil.CountAuditEntries(t, ctx, pool, hold.ID, domain.HoldStatusExpired); got != 0 {
			t.Fatalf("expected no expiry audit entry, got %d", got)
		}

		_, err = repo.TransitionStatus(ctx, uuid.NewString(), domain.HoldStatusActive, domain.HoldStatusExpired, "system:expiry", "", time.Now().UTC())
		if !errors.Is(err, domain.ErrHoldNotFound) {
			t.Fatalf("expected ErrHoldNotFound, got %v", err)
		}
	})

	t.Run("concurrent releases admit exactly one winner", func(t *testing.T) {
		ctx := context.Background()
		testutil.TruncateAll(t, ctx, pool)
		clientID := testutil.InsertClient(t, ctx, pool)

		hold := newHold(clientID, "idem-race")
		if err := repo.CreateHold(ctx, hold); err != nil {
			t.Fatalf("create: %v", err)
		}

		var wg sync.WaitGroup
		results := make([]error, 2)
		for i := 0; i < 2; i++ {
			wg.Add(1)
			go func(i int) {
				defer wg.Done()
				_, results[i] = repo.TransitionStatus(ctx, hold.ID, domain.HoldStatusActive, domain.HoldStatusReleased, "user:ops2", "race", time.Now().UTC())
			}(i)
		}
		wg.Wait()

		winners, losers := 0, 0
		for _, err := range results {
			switch {
			case err == nil:
				winners++
			case errors.Is(err, domain.ErrStaleTransition):
				losers++
			default:
				t.Fatalf("unexpected error: %v", err)
			}
		}
		if winners != 1 || losers != 1 {
			t.Fatalf("expected 1 winner and 1 stale, got %d winners %d stale", winners, losers)
		}
		if got := testutil.CountAuditEntries(t, ctx, pool, hold.ID, domain.HoldStatusReleased); got != 1 {
			t.Fatalf("expected exactly 1 release audit entry, got %d", got)
		}
	})

	t.Run("ExpiredCandidates is bounded and ignores future and terminal holds", func(t *testing.T) {
		ctx := context.Background()
		testutil.TruncateAll(t, ctx, pool)
		clientID := testutil.InsertClient(t, ctx, pool)
		now := time.Now().UTC()

		past1 := now.Add(-2 * time.Minute)
		past2 := now.Add(-time.Minute)
		future := now.Add(time.Hour)

		testutil.InsertHold(t, ctx, pool, domain.Hold{ClientID: clientID, Type: domain.HoldTypeFraudSuspect, Status: domain.HoldStatusActive, ExpiresAt: &past1, IdempotencyKey: "exp-1"})
		testutil.InsertHold(t, ctx, pool, domain.Hold{ClientID: clientID, Type: domain.HoldTypeFraudSuspect, Status: domain.HoldStatusActive, ExpiresAt: &past2, IdempotencyKey: "exp-2"})
		testutil.InsertHold(t, ctx, pool, domain.Hold{ClientID: clientID, Type: domain.HoldTypeFraudSuspect, Status: domain.HoldStatusActive, ExpiresAt: &future, IdempotencyKey: "exp-future"})
		testutil.InsertHold(t, ctx, pool, domain.Hold{ClientID: clientID, Type: domain.HoldTypeFraudSuspect, Status: domain.HoldStatusReleased, ExpiresAt: &past1, IdempotencyKey: "exp-released"})
		testutil.InsertHold(t, ctx, pool, domain.Hold{ClientID: clientID, Type: domain.HoldTypeFraudSuspect, Status: domain.HoldStatusActive, IdempotencyKey: "exp-none"})

		candidates, err := repo.ExpiredCandidates(ctx, now, 10)
		if err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
		if len(candidates) != 2 {
			t.Fatalf("expected 2 candidates, got %d", len(candidates))
		}
		if !candidates[0].ExpiresAt.Equal(past1) || !candidates[1].ExpiresAt.Equal(past2) {
			t.Fatalf("expected oldest expiry first, got %+v", candidates)
		}

		bounded, err := repo.ExpiredCandidates(ctx, now, 1)
		if err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
		if len(bounded) != 1 {
			t.Fatalf("expected 1 candidate with limit 1, got %d", len(bounded))
		}
	})
}
