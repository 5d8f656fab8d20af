package domain

import (
	"time"

	"github.com/google/uuid"
)

// Policy is an externally-authored operational policy. This subsystem only
// hashes its descriptive text into snapshots; it never interprets semantics.
type Policy struct {
	ID            uuid.UUID  `json:"id"`
	Name          string     `json:"name"`
	Description   string     `json:"description"`
	EffectiveFrom time.Time  `json:"effective_from"`
	EffectiveTo   *time.Time `json:"effective_to,omitempty"`
	CreatedAt     time.Time  `json:"created_at"`
}

// ActiveAt reports whether the policy is in effect at the given instant.
func (p Policy) ActiveAt(now time.Time) bool {
	if now.Before(p.EffectiveFrom) {
		return false
	}
	return p.EffectiveTo == nil || now.Before(*p.EffectiveTo)
}
