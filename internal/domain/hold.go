package domain

import "time"

type HoldStatus string

const (
	HoldStatusActive   HoldStatus = "ACTIVE"
	HoldStatusReleased HoldStatus = "RELEASED"
	HoldStatusExpired  HoldStatus = "EXPIRED"
)

// Terminal reports whether no further transition is permitted from s.
func (s HoldStatus) Terminal() bool {
	return s == HoldStatusReleased || s == HoldStatusExpired
}

type HoldType string

const (
	HoldTypeFraudSuspect         HoldType = "FRAUD_SUSPECT"
	HoldTypeIncorrectBeneficiary HoldType = "INCORRECT_BENEFICIARY_DETAILS"
)

// ValidHoldType reports whether t is one of the supported hold types.
func ValidHoldType(t HoldType) bool {
	return t == HoldTypeFraudSuspect || t == HoldTypeIncorrectBeneficiary
}

// Hold blocks incoming payments to a client until released or expired.
type Hold struct {
	ID             string
	ClientID       string
	Type           HoldType
	Status         HoldStatus
	Comment        string
	Source         string
	CreatedAt      time.Time
	CreatedBy      string
	ExpiresAt      *time.Time
	ReleasedAt     *time.Time
	ReleasedBy     string
	ReleaseReason  string
	IdempotencyKey string
}

// SameRequest reports whether other describes the same create request:
// client, type, comment, source and expiry all match. A retried create that
// matches on these fields is a safe replay; anything else is a conflicting
// reuse of the idempotency key.
func (h Hold) SameRequest(other Hold) bool {
	if h.ClientID != other.ClientID || h.Type != other.Type {
		return false
	}
	if h.Comment != other.Comment || h.Source != other.Source {
		return false
	}
	if (h.ExpiresAt == nil) != (other.ExpiresAt == nil) {
		return false
	}
	if h.ExpiresAt != nil && !h.ExpiresAt.Equal(*other.ExpiresAt) {
		return false
	}
	return true
}
