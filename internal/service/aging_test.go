package service

import (
	"math"
	"testing"
	"time"

	"github.com/flightdeck/precedent/internal/domain"
)

func almostEqual(a, b, tolerance float64) bool {
	return math.Abs(a-b) <= tolerance
}

func TestHalfLifeDays(t *testing.T) {
	tests := []struct {
		domain domain.AgingDomain
		want   float64
	}{
		{domain.DomainWeather, 30},
		{domain.DomainOperational, 90},
		{domain.DomainCustoms, 180},
		{domain.AgingDomain("unknown"), 90},
		{domain.AgingDomain(""), 90},
	}

	for _, tt := range tests {
		if got := HalfLifeDays(tt.domain); got != tt.want {
			t.Fatalf("HalfLifeDays(%q) = %v, want %v", tt.domain, got, tt.want)
		}
	}
}

func TestComputeDecayFactor_ZeroAge(t *testing.T) {
	now := time.Now()
	got := ComputeDecayFactor(now, nil, domain.DomainWeather, now)
	if got != 1.0 {
		t.Fatalf("expected 1.0 at zero age, got %v", got)
	}
}

func TestComputeDecayFactor_OneHalfLife(t *testing.T) {
	now := time.Now()

	tests := []struct {
		domain  domain.AgingDomain
		ageDays int
	}{
		{domain.DomainWeather, 30},
		{domain.DomainOperational, 90},
		{domain.DomainCustoms, 180},
	}

	for _, tt := range tests {
		created := now.Add(-time.Duration(tt.ageDays) * 24 * time.Hour)
		got := ComputeDecayFactor(created, nil, tt.domain, now)
		if !almostEqual(got, 0.5, 1e-6) {
			t.Fatalf("decay at one half-life for %q = %v, want 0.5", tt.domain, got)
		}
	}
}

func TestComputeDecayFactor_UsesLastUsedAt(t *testing.T) {
	now := time.Now()
	created := now.Add(-365 * 24 * time.Hour)
	lastUsed := now.Add(-30 * 24 * time.Hour)

	got := ComputeDecayFactor(created, &lastUsed, domain.DomainWeather, now)
	if !almostEqual(got, 0.5, 1e-6) {
		t.Fatalf("decay from last use = %v, want 0.5", got)
	}

	// Without a last use, the same playbook should be near-dead.
	stale := ComputeDecayFactor(created, nil, domain.DomainWeather, now)
	if stale >= 0.01 {
		t.Fatalf("expected near-zero decay for 365-day-old weather playbook, got %v", stale)
	}
}

func TestComputeDecayFactor_DomainOrdering(t *testing.T) {
	now := time.Now()
	created := now.Add(-60 * 24 * time.Hour)

	weather := ComputeDecayFactor(created, nil, domain.DomainWeather, now)
	operational := ComputeDecayFactor(created, nil, domain.DomainOperational, now)
	customs := ComputeDecayFactor(created, nil, domain.DomainCustoms, now)

	if !(weather < operational && operational < customs) {
		t.Fatalf("expected weather < operational < customs for equal age, got %v %v %v",
			weather, operational, customs)
	}
}

func TestComputeDecayFactor_FutureReferenceClamped(t *testing.T) {
	now := time.Now()
	created := now.Add(time.Hour)

	got := ComputeDecayFactor(created, nil, domain.DomainOperational, now)
	if got != 1.0 {
		t.Fatalf("expected clamp to 1.0 for future reference time, got %v", got)
	}
}

func TestComputeDecayFactor_PartialHalfLife(t *testing.T) {
	now := time.Now()
	created := now.Add(-95 * 24 * time.Hour)

	got := ComputeDecayFactor(created, nil, domain.DomainOperational, now)
	want := math.Pow(0.5, 95.0/90.0)
	if !almostEqual(got, want, 0.01) {
		t.Fatalf("decay at 95 days operational = %v, want ~%v", got, want)
	}
}

func TestComputePolicyAlignment(t *testing.T) {
	tests := []struct {
		name     string
		playbook []string
		current  []string
		want     float64
	}{
		{"both empty", nil, nil, 1.0},
		{"playbook empty", nil, []string{"abc"}, 0.5},
		{"current empty", []string{"abc"}, nil, 0.0},
		{"identical", []string{"a", "b"}, []string{"a", "b"}, 1.0},
		{"disjoint", []string{"a"}, []string{"b"}, 0.0},
		{"partial overlap", []string{"a", "b"}, []string{"b", "c"}, 1.0 / 3.0},
		{"current duplicates ignored", []string{"a"}, []string{"a", "a"}, 1.0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := ComputePolicyAlignment(tt.playbook, tt.current)
			if !almostEqual(got, tt.want, 1e-9) {
				t.Fatalf("alignment = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestSampleConfidence(t *testing.T) {
	tests := []struct {
		useCount int
		want     float64
	}{
		{0, 0.0},
		{-1, 0.0},
		{1, 0.2},
		{3, 0.6},
		{5, 1.0},
		{50, 1.0},
	}

	for _, tt := range tests {
		if got := SampleConfidence(tt.useCount); !almostEqual(got, tt.want, 1e-9) {
			t.Fatalf("SampleConfidence(%d) = %v, want %v", tt.useCount, got, tt.want)
		}
	}
}

func TestComputeAgedScore(t *testing.T) {
	got := ComputeAgedScore(0.9, 0.5, 0.8, 10)
	if !almostEqual(got, 0.36, 1e-9) {
		t.Fatalf("aged score = %v, want 0.36", got)
	}

	// Any zero factor collapses the whole score.
	if got := ComputeAgedScore(0.0, 1.0, 1.0, 10); got != 0.0 {
		t.Fatalf("expected 0 with zero success rate, got %v", got)
	}
	if got := ComputeAgedScore(1.0, 1.0, 1.0, 0); got != 0.0 {
		t.Fatalf("expected 0 with zero uses, got %v", got)
	}
}

func TestComputeAgedScore_EndToEnd(t *testing.T) {
	// A 95-day-old operational playbook with a 90% success rate, mild policy
	// drift, and plenty of uses.
	now := time.Now()
	created := now.Add(-95 * 24 * time.Hour)

	decay := ComputeDecayFactor(created, nil, domain.DomainOperational, now)
	alignment := ComputePolicyAlignment(
		[]string{"a", "b", "c", "d", "e", "f", "g", "h"},
		[]string{"a", "b", "c", "d", "e", "f", "g", "x"},
	)

	got := ComputeAgedScore(0.9, decay, alignment, 12)
	want := 0.9 * math.Pow(0.5, 95.0/90.0) * (7.0 / 9.0)
	if !almostEqual(got, want, 0.01) {
		t.Fatalf("end-to-end aged score = %v, want ~%v", got, want)
	}
}

func TestComputeAgedScore_TypicalScenario(t *testing.T) {
	// A 95-day-old operational playbook, 4 successes in 5 uses, policy set
	// unchanged since creation.
	now := time.Now()
	created := now.Add(-95 * 24 * time.Hour)
	snapshot := []string{"a1", "b2", "c3"}

	decay := ComputeDecayFactor(created, nil, domain.DomainOperational, now)
	alignment := ComputePolicyAlignment(snapshot, snapshot)
	confidence := SampleConfidence(5)

	if alignment != 1.0 {
		t.Fatalf("expected alignment 1.0 for identical snapshots, got %v", alignment)
	}
	if confidence != 1.0 {
		t.Fatalf("expected saturated confidence at 5 uses, got %v", confidence)
	}

	got := ComputeAgedScore(0.8, decay, alignment, 5)
	if !almostEqual(got, 0.389, 0.01) {
		t.Fatalf("aged score = %v, want ~0.389", got)
	}
}

func TestPolicyTextHash(t *testing.T) {
	h := PolicyTextHash("escalate customs holds after 4 hours")
	if len(h) != PolicyHashLength {
		t.Fatalf("expected hash length %d, got %d", PolicyHashLength, len(h))
	}

	if PolicyTextHash("same text") != PolicyTextHash("same text") {
		t.Fatal("expected identical texts to hash identically")
	}
	if PolicyTextHash("text a") == PolicyTextHash("text b") {
		t.Fatal("expected different texts to hash differently")
	}
}

func TestSnapshotPolicies(t *testing.T) {
	snapshot := SnapshotPolicies([]string{"policy b", "policy a", "policy b"})
	if len(snapshot) != 2 {
		t.Fatalf("expected 2 hashes after dedupe, got %d", len(snapshot))
	}
	if snapshot[0] > snapshot[1] {
		t.Fatalf("expected sorted snapshot, got %v", snapshot)
	}

	if got := SnapshotPolicies(nil); len(got) != 0 {
		t.Fatalf("expected empty snapshot for no policies, got %v", got)
	}
}

func TestInferDomain(t *testing.T) {
	tests := []struct {
		name    string
		pattern domain.PlaybookPattern
		want    domain.AgingDomain
	}{
		{
			"customs keyword in case type",
			domain.PlaybookPattern{CaseType: "customs_hold"},
			domain.DomainCustoms,
		},
		{
			"import keyword wins over weather evidence",
			domain.PlaybookPattern{CaseType: "import_delay", EvidenceSources: []string{"METAR"}},
			domain.DomainCustoms,
		},
		{
			"all weather sources",
			domain.PlaybookPattern{CaseType: "divert", EvidenceSources: []string{"METAR", "TAF"}},
			domain.DomainWeather,
		},
		{
			"mixed sources",
			domain.PlaybookPattern{CaseType: "divert", EvidenceSources: []string{"METAR", "CREW_ROSTER"}},
			domain.DomainOperational,
		},
		{
			"no evidence",
			domain.PlaybookPattern{CaseType: "crew_shortage"},
			domain.DomainOperational,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := InferDomain(tt.pattern); got != tt.want {
				t.Fatalf("InferDomain = %q, want %q", got, tt.want)
			}
		})
	}
}
