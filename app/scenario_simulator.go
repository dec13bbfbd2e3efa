package app

import (
	"math"
	"sync"

	"pricing-scenario-lab/config"
	"pricing-scenario-lab/database"
)

// Strategy names. The set is fixed: the simulator and the aggregator must
// agree on it, so it is code, not configuration.
const (
	StrategyStaticBaseline    = "STATIC_BASELINE"
	StrategyPolicyRecommended = "POLICY_RECOMMENDED"
	StrategyAggressivePolicy  = "AGGRESSIVE_POLICY"
)

// Strategies lists all strategies in their fixed output order
var Strategies = []string{
	StrategyStaticBaseline,
	StrategyPolicyRecommended,
	StrategyAggressivePolicy,
}

// ScenarioSimulator computes capacity-constrained outcomes for each strategy.
// The per-row computation is pure and stateless; only the price change input
// differs between strategies.
type ScenarioSimulator struct {
	cfg *config.PolicyConfig
}

// NewScenarioSimulator creates a simulator for a validated policy config
func NewScenarioSimulator(cfg *config.PolicyConfig) *ScenarioSimulator {
	return &ScenarioSimulator{cfg: cfg}
}

type sliceKey struct {
	ts      int64
	zoneID  string
	segment string
}

// Simulate produces one outcome row per (input slice, strategy). Inputs are
// the same valid slices the policy engine recommended on; recommendations
// feed the POLICY_RECOMMENDED and AGGRESSIVE_POLICY price changes. A valid
// slice with no matching recommendation simulates as HOLD and is counted as
// a missing_recommendation defect.
//
// The three strategy passes are independent and run on parallel goroutines
// writing to fixed slots; output is their concatenation in the fixed
// strategy order, preserving input order within each strategy.
func (s *ScenarioSimulator) Simulate(
	inputs []database.PolicyInput,
	recommendations []database.PricingRecommendation,
) ([]database.ScenarioOutcome, DefectCounts) {
	recPct := make(map[sliceKey]float64, len(recommendations))
	for _, rec := range recommendations {
		recPct[sliceKey{rec.Timestamp.UnixNano(), rec.ZoneID, rec.SegmentID}] = rec.RecommendedPctChange
	}

	var defects DefectCounts
	valid := make([]database.PolicyInput, 0, len(inputs))
	pcts := make([]float64, 0, len(inputs))
	for _, in := range inputs {
		if !in.HasCapacity || in.ForecastDemand <= 0 || in.LowerBound > in.UpperBound {
			// Already skipped and counted by the policy engine.
			continue
		}
		pct, ok := recPct[sliceKey{in.Timestamp.UnixNano(), in.ZoneID, in.SegmentID}]
		if !ok {
			defects.MissingRecommendation++
			pct = 0
		}
		valid = append(valid, in)
		pcts = append(pcts, pct)
	}

	results := make([][]database.ScenarioOutcome, len(Strategies))
	var wg sync.WaitGroup
	for i, strategy := range Strategies {
		wg.Add(1)
		go func(slot int, name string) {
			defer wg.Done()
			rows := make([]database.ScenarioOutcome, len(valid))
			for j, in := range valid {
				rows[j] = s.SimulateRow(in, name, s.PriceChangeFor(name, pcts[j]))
			}
			results[slot] = rows
		}(i, strategy)
	}
	wg.Wait()

	outcomes := make([]database.ScenarioOutcome, 0, len(valid)*len(Strategies))
	for _, rows := range results {
		outcomes = append(outcomes, rows...)
	}
	return outcomes, defects
}

// PriceChangeFor resolves the strategy-specific price change from the
// recommended one. The aggressive variant amplifies the recommendation by the
// configured multiplier and clamps it to the wider aggressive band.
func (s *ScenarioSimulator) PriceChangeFor(strategy string, recommendedPct float64) float64 {
	switch strategy {
	case StrategyStaticBaseline:
		return 0
	case StrategyAggressivePolicy:
		return clamp(recommendedPct*s.cfg.AggressiveMultiplier,
			-s.cfg.AggressiveMaxDiscountPct, s.cfg.AggressiveMaxSurgePct)
	default:
		return recommendedPct
	}
}

// SimulateRow computes the capacity-constrained outcome for one slice under
// one price change. Pure: no state, no I/O, no randomness.
func (s *ScenarioSimulator) SimulateRow(in database.PolicyInput, strategy string, pct float64) database.ScenarioOutcome {
	cfg := s.cfg

	// Linear elasticity response: discounts raise demand, surges lower it.
	elasticity := cfg.ElasticityFor(in.SegmentID)
	adjusted := math.Max(in.ForecastDemand*(1-elasticity*pct), 0)

	completed := math.Min(adjusted, in.MaxHourlyCapacity)
	lost := math.Max(adjusted-in.MaxHourlyCapacity, 0)

	revenue := completed * cfg.BasePriceFor(in.SegmentID) * (1 + pct)
	utilization := completed / math.Max(in.MaxHourlyCapacity, epsilon)
	stress := cfg.StressUtilizationWeight*utilization +
		cfg.StressLostDemandWeight*(lost/math.Max(adjusted, epsilon))

	shockHit := math.Abs(pct) > cfg.HighShockThreshold
	stressHit := stress > cfg.HighStressThreshold
	risk := RiskLow
	switch {
	case shockHit && stressHit:
		risk = RiskHigh
	case shockHit || stressHit:
		risk = RiskMedium
	}

	return database.ScenarioOutcome{
		Timestamp:          in.Timestamp,
		ZoneID:             in.ZoneID,
		SegmentID:          in.SegmentID,
		StrategyName:       strategy,
		PriceChangePct:     pct,
		ForecastDemand:     in.ForecastDemand,
		AdjustedDemand:     adjusted,
		OrdersCompleted:    completed,
		OrdersLostCapacity: lost,
		RevenueEst:         revenue,
		UtilizationRate:    utilization,
		StressIndex:        stress,
		CustomerRiskFlag:   risk,
	}
}
