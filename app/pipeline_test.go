package app

import (
	"reflect"
	"testing"
	"time"

	"pricing-scenario-lab/config"
	"pricing-scenario-lab/database"
)

// runStages executes the in-memory part of the pipeline the way the runner
// composes it, without storage.
func runStages(cfg *config.PolicyConfig, inputs []database.PolicyInput) ([]database.PricingRecommendation, []database.ScenarioOutcome, []database.StrategyScorecard) {
	recs, _ := NewPolicyEngine(cfg).Evaluate(inputs)
	outcomes, _ := NewScenarioSimulator(cfg).Simulate(inputs, recs)
	cards, _, err := NewEvaluationAggregator().Aggregate(outcomes)
	if err != nil {
		panic(err)
	}

	roundRecommendations(recs, cfg.RoundingDigits)
	roundOutcomes(outcomes, cfg.RoundingDigits)
	roundScorecards(cards, cfg.RoundingDigits)
	return recs, outcomes, cards
}

func TestPipelineStagesDeterministic(t *testing.T) {
	cfg := config.DefaultPolicyConfig()

	var inputs []database.PolicyInput
	for _, zone := range []string{"zone-1", "zone-2", "zone-3", "zone-4"} {
		for _, segment := range []string{"balanced", "premium", "value"} {
			for h := 0; h < 12; h++ {
				in := validInput(testBase.Add(time.Duration(h)*time.Hour), zone, segment, 0.25+0.07*float64(h), h%4 == 0)
				in.ForecastDemand = 80 + 10*float64(h)
				in.LowerBound = in.ForecastDemand * 0.93
				in.UpperBound = in.ForecastDemand * 1.07
				inputs = append(inputs, in)
			}
		}
	}

	recs1, outcomes1, cards1 := runStages(cfg, inputs)
	recs2, outcomes2, cards2 := runStages(cfg, inputs)

	if !reflect.DeepEqual(recs1, recs2) {
		t.Error("recommendations differ between identical runs")
	}
	if !reflect.DeepEqual(outcomes1, outcomes2) {
		t.Error("outcomes differ between identical runs")
	}
	if !reflect.DeepEqual(cards1, cards2) {
		t.Error("scorecards differ between identical runs")
	}

	if len(cards1) != len(Strategies) {
		t.Fatalf("cards = %d, want %d", len(cards1), len(Strategies))
	}
}

func TestRoundingAppliedToEveryPersistedField(t *testing.T) {
	cfg := config.DefaultPolicyConfig()
	cfg.RoundingDigits = 2

	outcomes := []database.ScenarioOutcome{{
		StrategyName:       StrategyStaticBaseline,
		PriceChangePct:     0.123456,
		ForecastDemand:     100.555555,
		AdjustedDemand:     104.444444,
		OrdersCompleted:    104.444444,
		OrdersLostCapacity: 0.000004,
		RevenueEst:         2370.987654,
		UtilizationRate:    0.876543,
		StressIndex:        0.525252,
	}}

	roundOutcomes(outcomes, cfg.RoundingDigits)

	o := outcomes[0]
	checks := map[string]struct{ got, want float64 }{
		"price_change_pct":     {o.PriceChangePct, 0.12},
		"forecast_demand":      {o.ForecastDemand, 100.56},
		"adjusted_demand":      {o.AdjustedDemand, 104.44},
		"orders_completed":     {o.OrdersCompleted, 104.44},
		"orders_lost_capacity": {o.OrdersLostCapacity, 0},
		"revenue_est":          {o.RevenueEst, 2370.99},
		"utilization_rate":     {o.UtilizationRate, 0.88},
		"stress_index":         {o.StressIndex, 0.53},
	}
	for field, c := range checks {
		if c.got != c.want {
			t.Errorf("%s = %v, want %v", field, c.got, c.want)
		}
	}

	recs := []database.PricingRecommendation{{RecommendedPctChange: -0.084999}}
	roundRecommendations(recs, cfg.RoundingDigits)
	if recs[0].RecommendedPctChange != -0.08 {
		t.Errorf("recommended pct = %v, want -0.08", recs[0].RecommendedPctChange)
	}
}
