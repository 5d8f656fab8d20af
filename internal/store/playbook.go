package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/flightdeck/precedent/internal/domain"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

type PlaybookStore struct {
	db *pgxpool.Pool
}

func NewPlaybookStore(db *pgxpool.Pool) *PlaybookStore {
	return &PlaybookStore{db: db}
}

// querier is satisfied by both *pgxpool.Pool and pgx.Tx so inserts can run
// inside or outside an explicit transaction.
type querier interface {
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

func (s *PlaybookStore) Create(ctx context.Context, p *domain.Playbook) error {
	return s.create(ctx, s.db, p)
}

func (s *PlaybookStore) create(ctx context.Context, q querier, p *domain.Playbook) error {
	patternJSON, err := json.Marshal(p.Pattern)
	if err != nil {
		return fmt.Errorf("marshal pattern: %w", err)
	}
	templateJSON, err := json.Marshal(p.ActionTemplate)
	if err != nil {
		return fmt.Errorf("marshal action_template: %w", err)
	}
	snapshotJSON, err := json.Marshal(p.PolicySnapshot)
	if err != nil {
		return fmt.Errorf("marshal policy_snapshot: %w", err)
	}

	if p.Domain == "" {
		p.Domain = domain.DomainOperational
	}

	err = q.QueryRow(ctx,
		`INSERT INTO playbooks (
			name, case_type, pattern, action_template,
			use_count, success_count, success_rate,
			domain, policy_snapshot
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		RETURNING id, created_at, updated_at`,
		p.Name, p.Pattern.CaseType, patternJSON, templateJSON,
		p.Stats.UseCount, p.Stats.SuccessCount, p.Stats.SuccessRate,
		p.Domain, snapshotJSON,
	).Scan(&p.ID, &p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		return mapPgError(err)
	}
	return nil
}

func (s *PlaybookStore) CreateWithCaseLink(ctx context.Context, p *domain.Playbook, caseID uuid.UUID) error {
	tx, err := s.db.Begin(ctx)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	if err := s.create(ctx, tx, p); err != nil {
		return err
	}

	if _, err := tx.Exec(ctx,
		`INSERT INTO playbook_cases (playbook_id, case_id) VALUES ($1, $2)
		 ON CONFLICT DO NOTHING`,
		p.ID, caseID,
	); err != nil {
		return mapPgError(err)
	}

	return tx.Commit(ctx)
}

const playbookColumns = `id, name, pattern, action_template,
	use_count, success_count, success_rate,
	domain, policy_snapshot, created_at, last_used_at, updated_at`

func (s *PlaybookStore) GetByID(ctx context.Context, id uuid.UUID) (*domain.Playbook, error) {
	row := s.db.QueryRow(ctx,
		`SELECT `+playbookColumns+` FROM playbooks WHERE id = $1`, id)

	p, err := scanPlaybook(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return p, nil
}

func (s *PlaybookStore) GetByCaseType(ctx context.Context, caseType string) ([]domain.Playbook, error) {
	rows, err := s.db.Query(ctx,
		`SELECT `+playbookColumns+` FROM playbooks
		 WHERE case_type = $1
		 ORDER BY created_at DESC, id`,
		caseType,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var playbooks []domain.Playbook
	for rows.Next() {
		p, err := scanPlaybook(rows)
		if err != nil {
			return nil, fmt.Errorf("scan playbook row: %w", err)
		}
		playbooks = append(playbooks, *p)
	}
	return playbooks, rows.Err()
}

// RecordUse links the case and applies the stat update in one transaction.
// The UPDATE computes use_count, success_count, success_rate and the
// conditional last_used_at refresh in a single statement so no reader can
// observe a partially-applied usage event.
func (s *PlaybookStore) RecordUse(ctx context.Context, id uuid.UUID, caseID uuid.UUID, success bool) error {
	tx, err := s.db.Begin(ctx)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	if _, err := tx.Exec(ctx,
		`INSERT INTO playbook_cases (playbook_id, case_id) VALUES ($1, $2)
		 ON CONFLICT DO NOTHING`,
		id, caseID,
	); err != nil {
		return mapPgError(err)
	}

	tag, err := tx.Exec(ctx,
		`UPDATE playbooks
		 SET use_count = use_count + 1,
			 success_count = success_count + CASE WHEN $2 THEN 1 ELSE 0 END,
			 success_rate = (success_count + CASE WHEN $2 THEN 1 ELSE 0 END)::double precision / (use_count + 1),
			 last_used_at = CASE WHEN $2 THEN NOW() ELSE last_used_at END,
			 updated_at = NOW()
		 WHERE id = $1`,
		id, success,
	)
	if err != nil {
		return mapPgError(err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}

	if err := tx.Commit(ctx); err != nil {
		return mapPgError(err)
	}
	return nil
}

// rowScanner is satisfied by pgx.Row and pgx.Rows.
type rowScanner interface {
	Scan(dest ...any) error
}

func scanPlaybook(row rowScanner) (*domain.Playbook, error) {
	p := &domain.Playbook{}
	var patternJSON, templateJSON, snapshotJSON []byte

	err := row.Scan(
		&p.ID, &p.Name, &patternJSON, &templateJSON,
		&p.Stats.UseCount, &p.Stats.SuccessCount, &p.Stats.SuccessRate,
		&p.Domain, &snapshotJSON, &p.CreatedAt, &p.LastUsedAt, &p.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	if err := json.Unmarshal(patternJSON, &p.Pattern); err != nil {
		return nil, fmt.Errorf("unmarshal pattern: %w", err)
	}
	if err := json.Unmarshal(templateJSON, &p.ActionTemplate); err != nil {
		return nil, fmt.Errorf("unmarshal action_template: %w", err)
	}
	if len(snapshotJSON) > 0 {
		if err := json.Unmarshal(snapshotJSON, &p.PolicySnapshot); err != nil {
			return nil, fmt.Errorf("unmarshal policy_snapshot: %w", err)
		}
	}

	return p, nil
}

// Verify interface compliance at compile time
var _ domain.PlaybookStore = (*PlaybookStore)(nil)
