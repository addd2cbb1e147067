package http

import (
	"time"

	"github.com/edersik/Blocking-payments/internal/domain"
)

// holdModel is the wire shape of a hold. Field names mirror the existing
// API surface exactly.
type holdModel struct {
	HoldID         string     `json:"holdId"`
	ClientID       string     `json:"clientId"`
	Type           string     `json:"type"`
	Status         string     `json:"status"`
	Comment        *string    `json:"comment"`
	Source         *string    `json:"source"`
	CreatedAt      time.Time  `json:"createdAt"`
	CreatedBy      string     `json:"createdBy"`
	ExpiresAt      *time.Time `json:"expiresAt"`
	ReleasedAt     *time.Time `json:"releasedAt"`
	ReleasedBy     *string    `json:"releasedBy"`
	ReleaseReason  *string    `json:"releaseReason"`
	IdempotencyKey string     `json:"idempotencyKey"`
}

func toHoldModel(h domain.Hold) holdModel {
	return holdModel{
		HoldID:         h.ID,
		ClientID:       h.ClientID,
		Type:           string(h.Type),
		Status:         string(h.Status),
		Comment:        optString(h.Comment),
		Source:         optString(h.Source),
		CreatedAt:      h.CreatedAt,
		CreatedBy:      h.CreatedBy,
		ExpiresAt:      h.ExpiresAt,
		ReleasedAt:     h.ReleasedAt,
		ReleasedBy:     optString(h.ReleasedBy),
		ReleaseReason:  optString(h.ReleaseReason),
		IdempotencyKey: h.IdempotencyKey,
	}
}

func toHoldModels(holds []domain.Hold) []holdModel {
	out := make([]holdModel, 0, len(holds))
	for _, h := range holds {
		out = append(out, toHoldModel(h))
	}
	return out
}

func optString(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
