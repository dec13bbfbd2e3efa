package app

import (
	"fmt"
	"log"
	"math"
	"sync"
	"time"

	"pricing-scenario-lab/config"
	"pricing-scenario-lab/database"
)

// Recommended actions
const (
	ActionSurge    = "SURGE"
	ActionDiscount = "DISCOUNT"
	ActionHold     = "HOLD"
)

// Risk flags, shared by recommendations and scenario outcomes
const (
	RiskLow    = "LOW"
	RiskMedium = "MEDIUM"
	RiskHigh   = "HIGH"
)

// Decision reasons. A cooldown downgrade appends ReasonCooldownOverride to
// the reason that originally fired.
const (
	ReasonUncertaintyTooHigh = "UNCERTAINTY_TOO_HIGH"
	ReasonCapacityGuardrail  = "CAPACITY_GUARDRAIL_SURGE"
	ReasonDemandShortfall    = "DEMAND_SHORTFALL_DISCOUNT"
	ReasonWithinTolerance    = "WITHIN_TOLERANCE"
	ReasonCooldownOverride   = "COOLDOWN_OVERRIDE"
)

// epsilon guards every near-zero denominator in the pipeline
const epsilon = 1e-9

// DefectCounts tallies skipped or degraded input rows by kind for the
// end-of-run summary. Defects never abort a run.
type DefectCounts struct {
	NonPositiveDemand     int
	MalformedBounds       int
	MissingCapacity       int
	MissingRecommendation int
}

// Total returns the sum of all defect counts
func (d DefectCounts) Total() int {
	return d.NonPositiveDemand + d.MalformedBounds + d.MissingCapacity + d.MissingRecommendation
}

func (d *DefectCounts) add(other DefectCounts) {
	d.NonPositiveDemand += other.NonPositiveDemand
	d.MalformedBounds += other.MalformedBounds
	d.MissingCapacity += other.MissingCapacity
	d.MissingRecommendation += other.MissingRecommendation
}

// policyState is the per-(zone, segment) memory carried across timestamps.
// It tracks the last non-HOLD action only, so interleaved HOLD rows never
// reset the cooldown clock.
type policyState struct {
	lastAction string
	lastPct    float64
	lastAt     time.Time
	seen       bool
}

// PolicyEngine converts forecast and capacity facts into governance-bound
// pricing recommendations. State is threaded through evaluation per key, so
// one partition can never contaminate another.
type PolicyEngine struct {
	cfg *config.PolicyConfig
}

// NewPolicyEngine creates a policy engine for a validated policy config
func NewPolicyEngine(cfg *config.PolicyConfig) *PolicyEngine {
	return &PolicyEngine{cfg: cfg}
}

// Evaluate produces one recommendation per valid (timestamp, zone, segment)
// input slice.
//
// Precondition: inputs must be sorted by (zone_id, segment_id, timestamp).
// The repository's loader guarantees this; re-sorting here would hide the
// cost from callers that pre-partition for parallel execution.
//
// Partitions (distinct zone/segment pairs) are evaluated on parallel
// goroutines; within a partition rows run strictly in timestamp order.
// Results are merged back in partition order, so output order — and
// therefore every downstream table — is deterministic.
func (e *PolicyEngine) Evaluate(inputs []database.PolicyInput) ([]database.PricingRecommendation, DefectCounts) {
	partitions := splitPartitions(inputs)

	results := make([][]database.PricingRecommendation, len(partitions))
	defects := make([]DefectCounts, len(partitions))

	var wg sync.WaitGroup
	for i, part := range partitions {
		wg.Add(1)
		go func(slot int, rows []database.PolicyInput) {
			defer wg.Done()
			results[slot], defects[slot] = e.EvaluatePartition(rows)
		}(i, part)
	}
	wg.Wait()

	var merged []database.PricingRecommendation
	var total DefectCounts
	for i := range partitions {
		merged = append(merged, results[i]...)
		total.add(defects[i])
	}
	return merged, total
}

// EvaluatePartition evaluates one (zone, segment) partition in timestamp
// order, threading the carried state through each row.
func (e *PolicyEngine) EvaluatePartition(inputs []database.PolicyInput) ([]database.PricingRecommendation, DefectCounts) {
	recs := make([]database.PricingRecommendation, 0, len(inputs))
	var defects DefectCounts
	state := policyState{lastAction: ActionHold}

	for _, in := range inputs {
		switch {
		case !in.HasCapacity:
			defects.MissingCapacity++
			log.Printf("⚠️  Skipping %s/%s @ %s: no capacity fact for zone",
				in.ZoneID, in.SegmentID, in.Timestamp.Format(time.RFC3339))
			continue
		case in.ForecastDemand <= 0:
			defects.NonPositiveDemand++
			log.Printf("⚠️  Skipping %s/%s @ %s: non-positive forecast demand %.2f",
				in.ZoneID, in.SegmentID, in.Timestamp.Format(time.RFC3339), in.ForecastDemand)
			continue
		case in.LowerBound > in.UpperBound:
			defects.MalformedBounds++
			log.Printf("⚠️  Skipping %s/%s @ %s: lower bound %.2f above upper bound %.2f",
				in.ZoneID, in.SegmentID, in.Timestamp.Format(time.RFC3339), in.LowerBound, in.UpperBound)
			continue
		}

		rec, next := e.evaluateRow(in, state)
		state = next
		recs = append(recs, rec)
	}

	return recs, defects
}

// evaluateRow applies the rule precedence, the cooldown override, and the
// risk-flag derivation to a single valid input row.
func (e *PolicyEngine) evaluateRow(in database.PolicyInput, state policyState) (database.PricingRecommendation, policyState) {
	cfg := e.cfg
	uncertaintyRatio := (in.UpperBound - in.LowerBound) / math.Max(in.ForecastDemand, epsilon)

	action := ActionHold
	pct := 0.0
	reason := ReasonWithinTolerance
	notes := fmt.Sprintf("utilization %.2f inside [%.2f, %.2f] tolerance band",
		in.UtilizationRate, cfg.LowUtilizationThreshold, cfg.HighUtilizationThreshold)

	// First match wins.
	switch {
	case uncertaintyRatio > cfg.UncertaintyHoldThreshold:
		reason = ReasonUncertaintyTooHigh
		notes = fmt.Sprintf("uncertainty ratio %.2f exceeds hold threshold %.2f; holding price",
			uncertaintyRatio, cfg.UncertaintyHoldThreshold)

	case in.CapacityBreachFlag && in.UtilizationRate > cfg.HighUtilizationThreshold:
		action = ActionSurge
		pct = clamp((in.UtilizationRate-cfg.HighUtilizationThreshold)*cfg.SurgeGain, 0, cfg.MaxSurgePct)
		reason = ReasonCapacityGuardrail
		notes = fmt.Sprintf("utilization %.2f above %.2f with breach flag; surge clamped to max %.2f",
			in.UtilizationRate, cfg.HighUtilizationThreshold, cfg.MaxSurgePct)

	case in.UtilizationRate < cfg.LowUtilizationThreshold:
		action = ActionDiscount
		pct = -clamp((cfg.LowUtilizationThreshold-in.UtilizationRate)*cfg.DiscountGain, 0, cfg.MaxDiscountPct)
		reason = ReasonDemandShortfall
		notes = fmt.Sprintf("utilization %.2f below %.2f; discount clamped to max %.2f",
			in.UtilizationRate, cfg.LowUtilizationThreshold, cfg.MaxDiscountPct)
	}

	// Cooldown: a direction reversal inside the window downgrades to HOLD.
	if action != ActionHold && state.seen && reversesDirection(action, state.lastAction) {
		if in.Timestamp.Sub(state.lastAt) < cfg.CooldownWindow() {
			action = ActionHold
			pct = 0
			reason = reason + "|" + ReasonCooldownOverride
			notes = fmt.Sprintf("reversal of %s within %s cooldown window; holding price",
				state.lastAction, cfg.CooldownWindow())
		}
	}

	pctHit := math.Abs(pct) > cfg.RiskPctChangeThreshold
	uncertaintyHit := uncertaintyRatio > cfg.RiskUncertaintyThreshold
	risk := RiskLow
	switch {
	case pctHit && uncertaintyHit:
		risk = RiskHigh
	case pctHit || uncertaintyHit:
		risk = RiskMedium
	}

	if action != ActionHold {
		state = policyState{lastAction: action, lastPct: pct, lastAt: in.Timestamp, seen: true}
	}

	return database.PricingRecommendation{
		Timestamp:            in.Timestamp,
		ZoneID:               in.ZoneID,
		SegmentID:            in.SegmentID,
		RecommendedAction:    action,
		RecommendedPctChange: pct,
		DecisionReason:       reason,
		RiskFlag:             risk,
		PolicyNotes:          notes,
	}, state
}

// splitPartitions slices the pre-sorted input into contiguous
// (zone, segment) partitions without copying rows
func splitPartitions(inputs []database.PolicyInput) [][]database.PolicyInput {
	var partitions [][]database.PolicyInput
	start := 0
	for i := 1; i <= len(inputs); i++ {
		if i == len(inputs) ||
			inputs[i].ZoneID != inputs[start].ZoneID ||
			inputs[i].SegmentID != inputs[start].SegmentID {
			partitions = append(partitions, inputs[start:i])
			start = i
		}
	}
	return partitions
}

// reversesDirection reports whether the new action flips sign vs. the last one
func reversesDirection(action, lastAction string) bool {
	return (action == ActionSurge && lastAction == ActionDiscount) ||
		(action == ActionDiscount && lastAction == ActionSurge)
}

// clamp bounds v to [lo, hi]
func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
