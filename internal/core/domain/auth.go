package domain

import "time"

// APIKey identifies an operator. Only the SHA-256 of the token is stored;
// Name is what audit entries record as the actor.
type APIKey struct {
	TokenHash  string
	Name       string
	Active     bool
	CreatedAt  time.Time
	LastUsedAt *time.Time
}
