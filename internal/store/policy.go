package store

import (
	"context"
	"fmt"
	"time"

	"github.com/flightdeck/precedent/internal/domain"
	"github.com/jackc/pgx/v5/pgxpool"
)

// PolicyStore reads the externally-authored policy table.
type PolicyStore struct {
	db *pgxpool.Pool
}

func NewPolicyStore(db *pgxpool.Pool) *PolicyStore {
	return &PolicyStore{db: db}
}

// ListActive returns all policies in effect at the given instant:
// effective_from <= now and (no effective_to or now < it).
func (s *PolicyStore) ListActive(ctx context.Context, now time.Time) ([]domain.Policy, error) {
	rows, err := s.db.Query(ctx,
		`SELECT id, name, description, effective_from, effective_to, created_at
		 FROM policies
		 WHERE effective_from <= $1 AND (effective_to IS NULL OR effective_to > $1)
		 ORDER BY name`,
		now,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var policies []domain.Policy
	for rows.Next() {
		var p domain.Policy
		if err := rows.Scan(&p.ID, &p.Name, &p.Description,
			&p.EffectiveFrom, &p.EffectiveTo, &p.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan policy row: %w", err)
		}
		policies = append(policies, p)
	}
	return policies, rows.Err()
}

// ListActiveDescriptions returns just the texts of the active policies,
// sorted for deterministic snapshot input.
func (s *PolicyStore) ListActiveDescriptions(ctx context.Context, now time.Time) ([]string, error) {
	rows, err := s.db.Query(ctx,
		`SELECT description FROM policies
		 WHERE effective_from <= $1 AND (effective_to IS NULL OR effective_to > $1)
		 ORDER BY description`,
		now,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var texts []string
	for rows.Next() {
		var text string
		if err := rows.Scan(&text); err != nil {
			return nil, err
		}
		texts = append(texts, text)
	}
	return texts, rows.Err()
}

// Verify interface compliance at compile time
var _ domain.PolicyStore = (*PolicyStore)(nil)
