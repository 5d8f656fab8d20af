package service

import (
	"context"
	"time"

	"github.com/flightdeck/precedent/internal/domain"
	"github.com/flightdeck/precedent/internal/store"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

func testLogger() *zap.Logger {
	logger, _ := zap.NewDevelopment()
	return logger
}

// mockPlaybookStore implements domain.PlaybookStore for testing. Playbooks
// are kept in insertion order; reads return newest first to match the real
// store's ordering.
type mockPlaybookStore struct {
	playbooks []*domain.Playbook
	links     map[uuid.UUID][]uuid.UUID

	// recordUseErrs is popped one per RecordUse call before any stat update;
	// a nil entry means the call proceeds normally.
	recordUseErrs []error
}

func newMockPlaybookStore() *mockPlaybookStore {
	return &mockPlaybookStore{links: make(map[uuid.UUID][]uuid.UUID)}
}

func (m *mockPlaybookStore) Create(ctx context.Context, p *domain.Playbook) error {
	p.ID = uuid.New()
	now := time.Now()
	if p.CreatedAt.IsZero() {
		p.CreatedAt = now
	}
	p.UpdatedAt = now
	m.playbooks = append(m.playbooks, p)
	return nil
}

func (m *mockPlaybookStore) CreateWithCaseLink(ctx context.Context, p *domain.Playbook, caseID uuid.UUID) error {
	if err := m.Create(ctx, p); err != nil {
		return err
	}
	m.links[p.ID] = append(m.links[p.ID], caseID)
	return nil
}

func (m *mockPlaybookStore) GetByID(ctx context.Context, id uuid.UUID) (*domain.Playbook, error) {
	for _, p := range m.playbooks {
		if p.ID == id {
			return p, nil
		}
	}
	return nil, store.ErrNotFound
}

func (m *mockPlaybookStore) GetByCaseType(ctx context.Context, caseType string) ([]domain.Playbook, error) {
	var results []domain.Playbook
	for i := len(m.playbooks) - 1; i >= 0; i-- {
		if m.playbooks[i].Pattern.CaseType == caseType {
			results = append(results, *m.playbooks[i])
		}
	}
	return results, nil
}

func (m *mockPlaybookStore) RecordUse(ctx context.Context, id uuid.UUID, caseID uuid.UUID, success bool) error {
	if len(m.recordUseErrs) > 0 {
		err := m.recordUseErrs[0]
		m.recordUseErrs = m.recordUseErrs[1:]
		if err != nil {
			return err
		}
	}

	p, err := m.GetByID(ctx, id)
	if err != nil {
		return err
	}

	linked := false
	for _, c := range m.links[id] {
		if c == caseID {
			linked = true
			break
		}
	}
	if !linked {
		m.links[id] = append(m.links[id], caseID)
	}

	p.Stats.UseCount++
	if success {
		p.Stats.SuccessCount++
		now := time.Now()
		p.LastUsedAt = &now
	}
	p.Stats.SuccessRate = float64(p.Stats.SuccessCount) / float64(p.Stats.UseCount)
	p.UpdatedAt = time.Now()
	return nil
}

// mockCaseStore implements domain.CaseStore for testing.
type mockCaseStore struct {
	cases   []*domain.CaseRecord
	events  map[uuid.UUID][]domain.TraceEvent
	actions map[uuid.UUID][]domain.ActionRecord
}

func newMockCaseStore() *mockCaseStore {
	return &mockCaseStore{
		events:  make(map[uuid.UUID][]domain.TraceEvent),
		actions: make(map[uuid.UUID][]domain.ActionRecord),
	}
}

func (m *mockCaseStore) addCase(caseType string, scope map[string]string, status domain.CaseStatus) uuid.UUID {
	c := &domain.CaseRecord{
		ID:        uuid.New(),
		CaseType:  caseType,
		Scope:     scope,
		Status:    status,
		CreatedAt: time.Now(),
	}
	m.cases = append(m.cases, c)
	return c.ID
}

func (m *mockCaseStore) addEvent(caseID uuid.UUID, eventType domain.EventType, refID string, meta map[string]any) {
	m.events[caseID] = append(m.events[caseID], domain.TraceEvent{
		ID:        uuid.New(),
		CaseID:    caseID,
		Seq:       len(m.events[caseID]) + 1,
		EventType: eventType,
		RefID:     refID,
		Meta:      meta,
		CreatedAt: time.Now(),
	})
}

func (m *mockCaseStore) addAction(caseID uuid.UUID, actionType string, state domain.ActionState) {
	m.actions[caseID] = append(m.actions[caseID], domain.ActionRecord{
		ID:        uuid.New(),
		CaseID:    caseID,
		Type:      actionType,
		State:     state,
		CreatedAt: time.Now(),
	})
}

func (m *mockCaseStore) GetByID(ctx context.Context, id uuid.UUID) (*domain.CaseRecord, error) {
	for _, c := range m.cases {
		if c.ID == id {
			return c, nil
		}
	}
	return nil, store.ErrNotFound
}

func (m *mockCaseStore) ListEvents(ctx context.Context, caseID uuid.UUID) ([]domain.TraceEvent, error) {
	return m.events[caseID], nil
}

func (m *mockCaseStore) ListActions(ctx context.Context, caseID uuid.UUID) ([]domain.ActionRecord, error) {
	return m.actions[caseID], nil
}

func (m *mockCaseStore) ListResolved(ctx context.Context, caseType string, limit int) ([]domain.CaseRecord, error) {
	var results []domain.CaseRecord
	for i := len(m.cases) - 1; i >= 0; i-- {
		c := m.cases[i]
		if c.Status != domain.CaseStatusResolved {
			continue
		}
		if caseType != "" && c.CaseType != caseType {
			continue
		}
		results = append(results, *c)
		if len(results) == limit {
			break
		}
	}
	return results, nil
}

// mockPolicyStore implements domain.PolicyStore for testing. Tests that only
// care about snapshots set texts; tests over full policies set policies.
type mockPolicyStore struct {
	texts    []string
	policies []domain.Policy
}

func (m *mockPolicyStore) ListActive(ctx context.Context, now time.Time) ([]domain.Policy, error) {
	var active []domain.Policy
	for _, p := range m.policies {
		if p.ActiveAt(now) {
			active = append(active, p)
		}
	}
	return active, nil
}

func (m *mockPolicyStore) ListActiveDescriptions(ctx context.Context, now time.Time) ([]string, error) {
	texts := m.texts
	for _, p := range m.policies {
		if p.ActiveAt(now) {
			texts = append(texts, p.Description)
		}
	}
	return texts, nil
}
