package domain

import "time"

// AuditEntry is one append-only record of a hold status transition. The
// creation entry has no prior status; every entry is written in the same
// transaction as the transition it records.
type AuditEntry struct {
	ID        int64
	HoldID    string
	Actor     string
	OldStatus *HoldStatus
	NewStatus HoldStatus
	Note      string
	CreatedAt time.Time
}
