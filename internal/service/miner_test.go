package service

import (
	"context"
	"reflect"
	"testing"

	"github.com/flightdeck/precedent/internal/domain"
	"github.com/google/uuid"
)

func setupMinerTest() (*MinerService, *mockCaseStore) {
	caseStore := newMockCaseStore()
	return NewMinerService(caseStore, testLogger()), caseStore
}

// seedResolvedCase builds a resolved case with a representative audit trail:
// three states, duplicated evidence sources, and a mix of completed and
// failed actions.
func seedResolvedCase(caseStore *mockCaseStore) uuid.UUID {
	caseID := caseStore.addCase("weather_divert",
		map[string]string{"airport": "KJFK", "region": "northeast"},
		domain.CaseStatusResolved)

	caseStore.addEvent(caseID, domain.EventStateEntered, "", map[string]any{"state": "TRIAGE"})
	caseStore.addEvent(caseID, domain.EventToolResult, "", map[string]any{"source": "METAR"})
	caseStore.addEvent(caseID, domain.EventToolResult, "", map[string]any{"source": "TAF"})
	caseStore.addEvent(caseID, domain.EventStateEntered, "", map[string]any{"state": "MITIGATION"})
	caseStore.addEvent(caseID, domain.EventToolResult, "", map[string]any{"source": "METAR"})
	caseStore.addEvent(caseID, domain.EventStateEntered, "", map[string]any{"state": "RESOLVED"})

	caseStore.addAction(caseID, "SET_POSTURE", domain.ActionStateCompleted)
	caseStore.addAction(caseID, "HOLD_FLIGHTS", domain.ActionStateCompleted)
	caseStore.addAction(caseID, "RELEASE_HOLD", domain.ActionStateFailed)

	return caseID
}

func TestMinerService_MineCase(t *testing.T) {
	svc, caseStore := setupMinerTest()
	ctx := context.Background()
	caseID := seedResolvedCase(caseStore)

	pattern, err := svc.MineCase(ctx, caseID)
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if pattern == nil {
		t.Fatal("expected a pattern, got nil")
	}

	if pattern.CaseType != "weather_divert" {
		t.Fatalf("expected case_type weather_divert, got %q", pattern.CaseType)
	}

	wantStates := []string{"TRIAGE", "MITIGATION", "RESOLVED"}
	if !reflect.DeepEqual(pattern.StatePattern, wantStates) {
		t.Fatalf("expected states %v, got %v", wantStates, pattern.StatePattern)
	}

	// Evidence sources deduped, first-seen order preserved.
	wantEvidence := []string{"METAR", "TAF"}
	if !reflect.DeepEqual(pattern.EvidencePattern, wantEvidence) {
		t.Fatalf("expected evidence %v, got %v", wantEvidence, pattern.EvidencePattern)
	}

	// Only completed actions survive mining.
	wantActions := []string{"SET_POSTURE", "HOLD_FLIGHTS"}
	if !reflect.DeepEqual(pattern.ActionPattern, wantActions) {
		t.Fatalf("expected actions %v, got %v", wantActions, pattern.ActionPattern)
	}

	if pattern.TraceLength != 6 {
		t.Fatalf("expected trace_length 6, got %d", pattern.TraceLength)
	}
	if pattern.ActionCount != 3 {
		t.Fatalf("expected action_count 3, got %d", pattern.ActionCount)
	}
}

func TestMinerService_MineCase_Idempotent(t *testing.T) {
	svc, caseStore := setupMinerTest()
	ctx := context.Background()
	caseID := seedResolvedCase(caseStore)

	first, err := svc.MineCase(ctx, caseID)
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	second, err := svc.MineCase(ctx, caseID)
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if !reflect.DeepEqual(first, second) {
		t.Fatalf("expected identical patterns from repeated mining:\n%+v\n%+v", first, second)
	}
}

func TestMinerService_MineCase_MissingCase(t *testing.T) {
	svc, _ := setupMinerTest()

	pattern, err := svc.MineCase(context.Background(), uuid.New())
	if err != nil {
		t.Fatalf("expected no error for missing case, got %v", err)
	}
	if pattern != nil {
		t.Fatalf("expected nil pattern for missing case, got %+v", pattern)
	}
}

func TestMinerService_MineCase_StateFallbackToRefID(t *testing.T) {
	svc, caseStore := setupMinerTest()
	ctx := context.Background()

	caseID := caseStore.addCase("crew_shortage", nil, domain.CaseStatusResolved)
	caseStore.addEvent(caseID, domain.EventStateEntered, "TRIAGE", nil)
	caseStore.addEvent(caseID, domain.EventStateEntered, "", nil) // no state anywhere, skipped
	caseStore.addEvent(caseID, domain.EventNote, "", map[string]any{"text": "ignored"})

	pattern, err := svc.MineCase(ctx, caseID)
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}

	wantStates := []string{"TRIAGE"}
	if !reflect.DeepEqual(pattern.StatePattern, wantStates) {
		t.Fatalf("expected states %v, got %v", wantStates, pattern.StatePattern)
	}
}

func TestMinerService_MineCase_EmptyTrail(t *testing.T) {
	svc, caseStore := setupMinerTest()
	caseID := caseStore.addCase("crew_shortage", nil, domain.CaseStatusResolved)

	pattern, err := svc.MineCase(context.Background(), caseID)
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if !pattern.Empty() {
		t.Fatalf("expected empty pattern, got %+v", pattern)
	}
}

func TestMinerService_MineSuccessfulCases(t *testing.T) {
	svc, caseStore := setupMinerTest()
	ctx := context.Background()

	seedResolvedCase(caseStore)
	seedResolvedCase(caseStore)

	// Empty resolved case: mined but dropped from the result.
	caseStore.addCase("weather_divert", nil, domain.CaseStatusResolved)

	// Open case: never even considered.
	openID := caseStore.addCase("weather_divert", nil, domain.CaseStatusOpen)
	caseStore.addEvent(openID, domain.EventStateEntered, "", map[string]any{"state": "TRIAGE"})

	patterns, err := svc.MineSuccessfulCases(ctx, "weather_divert", 10)
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if len(patterns) != 2 {
		t.Fatalf("expected 2 patterns, got %d", len(patterns))
	}
}

func TestMinerService_MineSuccessfulCases_TypeFilter(t *testing.T) {
	svc, caseStore := setupMinerTest()
	ctx := context.Background()

	seedResolvedCase(caseStore)
	otherID := caseStore.addCase("customs_hold", nil, domain.CaseStatusResolved)
	caseStore.addAction(otherID, "ESCALATE", domain.ActionStateCompleted)

	patterns, err := svc.MineSuccessfulCases(ctx, "customs_hold", 10)
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if len(patterns) != 1 {
		t.Fatalf("expected 1 pattern, got %d", len(patterns))
	}
	if patterns[0].CaseType != "customs_hold" {
		t.Fatalf("expected case_type customs_hold, got %q", patterns[0].CaseType)
	}
}
