package app

import (
	"math"
	"strings"
	"testing"

	"pricing-scenario-lab/database"
)

func outcome(strategy string, revenue, adjusted, lost, utilization, stress float64, risk string) database.ScenarioOutcome {
	return database.ScenarioOutcome{
		Timestamp:          testBase,
		ZoneID:             "zone-1",
		SegmentID:          "balanced",
		StrategyName:       strategy,
		ForecastDemand:     adjusted,
		AdjustedDemand:     adjusted,
		OrdersCompleted:    adjusted - lost,
		OrdersLostCapacity: lost,
		RevenueEst:         revenue,
		UtilizationRate:    utilization,
		StressIndex:        stress,
		CustomerRiskFlag:   risk,
	}
}

func TestAggregateScorecards(t *testing.T) {
	agg := NewEvaluationAggregator()

	outcomes := []database.ScenarioOutcome{
		outcome(StrategyStaticBaseline, 500, 100, 0, 0.50, 0.30, RiskLow),
		outcome(StrategyStaticBaseline, 500, 100, 20, 0.80, 0.60, RiskHigh),
		outcome(StrategyPolicyRecommended, 550, 100, 0, 0.55, 0.33, RiskLow),
		outcome(StrategyPolicyRecommended, 550, 100, 0, 0.60, 0.36, RiskMedium),
		outcome(StrategyAggressivePolicy, 600, 100, 40, 0.90, 0.75, RiskHigh),
		outcome(StrategyAggressivePolicy, 600, 100, 40, 0.90, 0.75, RiskHigh),
	}

	cards, emptyGroups, err := agg.Aggregate(outcomes)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(emptyGroups) != 0 {
		t.Fatalf("unexpected empty groups: %v", emptyGroups)
	}
	if len(cards) != len(Strategies) {
		t.Fatalf("cards = %d, want %d", len(cards), len(Strategies))
	}

	baseline := cards[0]
	if baseline.StrategyName != StrategyStaticBaseline {
		t.Fatalf("first card = %s, want baseline", baseline.StrategyName)
	}
	if baseline.RevenueLiftVsBaselinePct != 0 {
		t.Errorf("baseline lift = %v, want identically 0", baseline.RevenueLiftVsBaselinePct)
	}
	if math.Abs(baseline.PctHighRiskRows-50) > 1e-9 {
		t.Errorf("baseline high-risk pct = %v, want 50", baseline.PctHighRiskRows)
	}
	if math.Abs(baseline.PctDemandLostCapacity-10) > 1e-9 {
		t.Errorf("baseline lost pct = %v, want 10 (20 of 200)", baseline.PctDemandLostCapacity)
	}

	recommended := cards[1]
	if math.Abs(recommended.RevenueLiftVsBaselinePct-10) > 1e-9 {
		t.Errorf("recommended lift = %v, want 10 (1100 vs 1000)", recommended.RevenueLiftVsBaselinePct)
	}
	if math.Abs(recommended.PctMediumOrHighRiskRows-50) > 1e-9 {
		t.Errorf("recommended med+high pct = %v, want 50", recommended.PctMediumOrHighRiskRows)
	}

	aggressive := cards[2]
	if math.Abs(aggressive.AvgStressIndex-0.75) > 1e-9 {
		t.Errorf("aggressive avg stress = %v, want 0.75", aggressive.AvgStressIndex)
	}
	if math.Abs(aggressive.PctHighRiskRows-100) > 1e-9 {
		t.Errorf("aggressive high-risk pct = %v, want 100", aggressive.PctHighRiskRows)
	}
}

func TestAggregateFlagsEmptyGroups(t *testing.T) {
	agg := NewEvaluationAggregator()

	outcomes := []database.ScenarioOutcome{
		outcome(StrategyStaticBaseline, 500, 100, 0, 0.50, 0.30, RiskLow),
		outcome(StrategyPolicyRecommended, 550, 100, 0, 0.55, 0.33, RiskLow),
	}

	cards, emptyGroups, err := agg.Aggregate(outcomes)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if len(emptyGroups) != 1 || emptyGroups[0] != StrategyAggressivePolicy {
		t.Fatalf("empty groups = %v, want [%s]", emptyGroups, StrategyAggressivePolicy)
	}

	var aggressive *database.StrategyScorecard
	for i := range cards {
		if cards[i].StrategyName == StrategyAggressivePolicy {
			aggressive = &cards[i]
		}
	}
	if aggressive == nil {
		t.Fatal("empty strategy still needs a scorecard row")
	}
	if !aggressive.EmptyGroup {
		t.Error("empty strategy card not flagged")
	}
	if aggressive.TotalRevenue != 0 || aggressive.AvgStressIndex != 0 {
		t.Errorf("empty group card must be all zero, got %+v", aggressive)
	}
}

func TestAggregateRejectsUnknownStrategy(t *testing.T) {
	agg := NewEvaluationAggregator()

	outcomes := []database.ScenarioOutcome{
		outcome(StrategyStaticBaseline, 500, 100, 0, 0.50, 0.30, RiskLow),
		outcome("EXPERIMENTAL_POLICY", 700, 100, 0, 0.50, 0.30, RiskLow),
	}

	_, _, err := agg.Aggregate(outcomes)
	if err == nil {
		t.Fatal("expected an error for an unknown strategy")
	}
	if !strings.Contains(err.Error(), "EXPERIMENTAL_POLICY") {
		t.Errorf("error %q does not name the offending strategy", err)
	}
}
