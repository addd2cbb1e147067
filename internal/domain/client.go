package domain

import "time"

// Client is a payment recipient that holds can be placed against.
// Immutable once created.
type Client struct {
	ID        string
	TaxID     string
	CreatedAt time.Time
}
