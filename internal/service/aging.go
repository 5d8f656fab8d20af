package service

import (
	"crypto/sha256"
	"encoding/hex"
	"math"
	"sort"
	"strings"
	"time"

	"github.com/flightdeck/precedent/internal/domain"
)

// Aging half-lives, in days. A playbook's domain fixes its half-life at
// creation; weather precedents stale fastest, customs slowest.
const (
	WeatherHalfLifeDays     = 30.0
	OperationalHalfLifeDays = 90.0
	CustomsHalfLifeDays     = 180.0
	DefaultHalfLifeDays     = 90.0

	// MinSampleCount is the use count at which sample confidence saturates.
	MinSampleCount = 5

	// PolicyHashLength is the hex prefix length of a policy text hash.
	// Collision risk is negligible below ~100 concurrently active policies.
	PolicyHashLength = 12
)

// weatherSources is the fixed set of evidence sources that mark a case as
// weather-driven when nothing else is in play.
var weatherSources = map[string]bool{
	"METAR":      true,
	"TAF":        true,
	"NWS_ALERTS": true,
}

// HalfLifeDays returns the decay half-life for an aging domain.
// Unrecognized domains fall back to the default.
func HalfLifeDays(d domain.AgingDomain) float64 {
	switch d {
	case domain.DomainWeather:
		return WeatherHalfLifeDays
	case domain.DomainOperational:
		return OperationalHalfLifeDays
	case domain.DomainCustoms:
		return CustomsHalfLifeDays
	default:
		return DefaultHalfLifeDays
	}
}

// ComputeDecayFactor returns the exponential recency weight for a playbook.
// The reference time is lastUsedAt when present, otherwise createdAt.
// Result is in (0, 1]: exactly 1.0 at zero age, halved every half-life.
func ComputeDecayFactor(createdAt time.Time, lastUsedAt *time.Time, d domain.AgingDomain, now time.Time) float64 {
	ref := createdAt
	if lastUsedAt != nil {
		ref = *lastUsedAt
	}

	ageDays := now.Sub(ref).Hours() / 24
	if ageDays < 0 {
		ageDays = 0
	}

	return math.Pow(0.5, ageDays/HalfLifeDays(d))
}

// ComputePolicyAlignment compares a playbook's policy snapshot with the
// current one as sets. Both empty means nothing has drifted (1.0). A legacy
// playbook with no snapshot gets neutral benefit of the doubt (0.5).
// Otherwise Jaccard similarity over the two hash sets.
func ComputePolicyAlignment(playbookSnapshot, currentSnapshot []string) float64 {
	if len(playbookSnapshot) == 0 && len(currentSnapshot) == 0 {
		return 1.0
	}
	if len(playbookSnapshot) == 0 {
		return 0.5
	}

	inSnapshot := make(map[string]bool, len(playbookSnapshot))
	for _, h := range playbookSnapshot {
		inSnapshot[h] = true
	}

	union := len(inSnapshot)
	intersection := 0
	seen := make(map[string]bool, len(currentSnapshot))
	for _, h := range currentSnapshot {
		if seen[h] {
			continue
		}
		seen[h] = true
		if inSnapshot[h] {
			intersection++
		} else {
			union++
		}
	}

	if union == 0 {
		return 0.0
	}
	return float64(intersection) / float64(union)
}

// SampleConfidence discounts playbooks with few recorded uses so a single
// lucky application never outranks a heavily-validated precedent.
func SampleConfidence(useCount int) float64 {
	if useCount <= 0 {
		return 0.0
	}
	c := float64(useCount) / MinSampleCount
	if c > 1.0 {
		c = 1.0
	}
	return c
}

// ComputeAgedScore is the composite relevance score. Conjunctive: any zero
// factor collapses the whole score to zero.
func ComputeAgedScore(successRate, decayFactor, policyAlignment float64, useCount int) float64 {
	return successRate * decayFactor * policyAlignment * SampleConfidence(useCount)
}

// PolicyTextHash returns a compact identity for a policy's descriptive text:
// the first 12 hex characters of its SHA-256 digest.
func PolicyTextHash(text string) string {
	sum := sha256.Sum256([]byte(text))
	return hex.EncodeToString(sum[:])[:PolicyHashLength]
}

// SnapshotPolicies hashes the given policy texts into a sorted, deduplicated
// snapshot suitable for alignment comparison.
func SnapshotPolicies(texts []string) []string {
	seen := make(map[string]bool, len(texts))
	hashes := make([]string, 0, len(texts))
	for _, text := range texts {
		h := PolicyTextHash(text)
		if seen[h] {
			continue
		}
		seen[h] = true
		hashes = append(hashes, h)
	}
	sort.Strings(hashes)
	return hashes
}

// InferDomain classifies a pattern for aging. Customs keywords in the case
// type win; otherwise a non-empty evidence list drawn entirely from weather
// sources means weather; everything else is operational.
func InferDomain(p domain.PlaybookPattern) domain.AgingDomain {
	upper := strings.ToUpper(p.CaseType)
	for _, kw := range []string{"CUSTOMS", "IMPORT", "EXPORT"} {
		if strings.Contains(upper, kw) {
			return domain.DomainCustoms
		}
	}

	if len(p.EvidenceSources) > 0 {
		allWeather := true
		for _, src := range p.EvidenceSources {
			if !weatherSources[src] {
				allWeather = false
				break
			}
		}
		if allWeather {
			return domain.DomainWeather
		}
	}

	return domain.DomainOperational
}
