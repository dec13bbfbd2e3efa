package app

import (
	"math"
	"testing"
	"time"

	"pricing-scenario-lab/config"
	"pricing-scenario-lab/database"
)

func TestSimulateRowDiscountLiftsDemand(t *testing.T) {
	sim := NewScenarioSimulator(config.DefaultPolicyConfig())

	in := validInput(testBase, "zone-1", "balanced", 0.50, false)
	in.MaxHourlyCapacity = 120

	// balanced elasticity 0.8: 100 * (1 - 0.8*(-0.05)) = 104
	out := sim.SimulateRow(in, StrategyPolicyRecommended, -0.05)

	if math.Abs(out.AdjustedDemand-104) > 1e-9 {
		t.Errorf("adjusted demand = %v, want 104", out.AdjustedDemand)
	}
	if math.Abs(out.OrdersCompleted-104) > 1e-9 {
		t.Errorf("orders completed = %v, want 104", out.OrdersCompleted)
	}
	if out.OrdersLostCapacity != 0 {
		t.Errorf("orders lost = %v, want 0", out.OrdersLostCapacity)
	}

	// 104 orders at base price 24 with a 5% discount
	wantRevenue := 104 * 24.0 * 0.95
	if math.Abs(out.RevenueEst-wantRevenue) > 1e-9 {
		t.Errorf("revenue = %v, want %v", out.RevenueEst, wantRevenue)
	}
}

func TestSimulateRowCapacityCap(t *testing.T) {
	sim := NewScenarioSimulator(config.DefaultPolicyConfig())

	in := validInput(testBase, "zone-1", "balanced", 0.90, false)
	in.ForecastDemand = 150
	in.LowerBound, in.UpperBound = 140, 160
	in.MaxHourlyCapacity = 120

	out := sim.SimulateRow(in, StrategyStaticBaseline, 0)

	if math.Abs(out.OrdersCompleted-120) > 1e-9 {
		t.Errorf("orders completed = %v, want 120", out.OrdersCompleted)
	}
	if math.Abs(out.OrdersLostCapacity-30) > 1e-9 {
		t.Errorf("orders lost = %v, want 30", out.OrdersLostCapacity)
	}
	if math.Abs(out.UtilizationRate-1.0) > 1e-9 {
		t.Errorf("utilization = %v, want 1.0", out.UtilizationRate)
	}
}

func TestSimulateRowConservation(t *testing.T) {
	sim := NewScenarioSimulator(config.DefaultPolicyConfig())

	for _, demand := range []float64{1, 50, 120, 500} {
		for _, capacity := range []float64{10, 120, 1000} {
			for _, pct := range []float64{-0.25, -0.05, 0, 0.08, 0.20} {
				in := validInput(testBase, "zone-1", "balanced", 0.5, false)
				in.ForecastDemand = demand
				in.LowerBound, in.UpperBound = demand, demand
				in.MaxHourlyCapacity = capacity

				out := sim.SimulateRow(in, StrategyPolicyRecommended, pct)

				if diff := math.Abs(out.OrdersCompleted + out.OrdersLostCapacity - out.AdjustedDemand); diff > 1e-6 {
					t.Errorf("demand %v capacity %v pct %v: completed+lost differs from adjusted by %v",
						demand, capacity, pct, diff)
				}
				if out.OrdersCompleted > capacity+1e-9 {
					t.Errorf("demand %v capacity %v pct %v: completed %v exceeds capacity",
						demand, capacity, pct, out.OrdersCompleted)
				}
				if out.AdjustedDemand < 0 {
					t.Errorf("demand %v pct %v: negative adjusted demand %v", demand, pct, out.AdjustedDemand)
				}
			}
		}
	}
}

func TestSimulateRowDemandMonotoneInPrice(t *testing.T) {
	sim := NewScenarioSimulator(config.DefaultPolicyConfig())

	in := validInput(testBase, "zone-1", "value", 0.5, false)
	prev := math.Inf(1)
	for pct := -0.30; pct <= 0.30; pct += 0.01 {
		out := sim.SimulateRow(in, StrategyPolicyRecommended, pct)
		if out.AdjustedDemand > prev+1e-9 {
			t.Fatalf("adjusted demand rose from %v to %v at pct %v", prev, out.AdjustedDemand, pct)
		}
		prev = out.AdjustedDemand
	}
}

func TestSimulateRowRiskFlags(t *testing.T) {
	sim := NewScenarioSimulator(config.DefaultPolicyConfig())

	tests := []struct {
		name     string
		demand   float64
		capacity float64
		pct      float64
		want     string
	}{
		// stress = 0.6*util + 0.4*(lost/adjusted); shock when |pct| > 0.15
		{"no shock, low stress", 60, 120, 0.05, RiskLow},
		{"shock only", 60, 120, 0.20, RiskMedium},
		{"stress only", 300, 120, 0.05, RiskMedium},
		{"shock and stress", 300, 120, 0.20, RiskHigh},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			in := validInput(testBase, "zone-1", "balanced", 0.5, false)
			in.ForecastDemand = tt.demand
			in.LowerBound, in.UpperBound = tt.demand, tt.demand
			in.MaxHourlyCapacity = tt.capacity

			out := sim.SimulateRow(in, StrategyPolicyRecommended, tt.pct)
			if out.CustomerRiskFlag != tt.want {
				t.Errorf("risk = %s, want %s (stress %v)", out.CustomerRiskFlag, tt.want, out.StressIndex)
			}
		})
	}
}

func TestPriceChangeFor(t *testing.T) {
	sim := NewScenarioSimulator(config.DefaultPolicyConfig())

	tests := []struct {
		name     string
		strategy string
		rec      float64
		want     float64
	}{
		{"baseline always zero", StrategyStaticBaseline, 0.08, 0},
		{"recommended passes through", StrategyPolicyRecommended, -0.08, -0.08},
		{"aggressive amplifies", StrategyAggressivePolicy, 0.10, 0.14},
		{"aggressive surge clamped", StrategyAggressivePolicy, 0.20, 0.25},
		{"aggressive discount clamped", StrategyAggressivePolicy, -0.25, -0.30},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := sim.PriceChangeFor(tt.strategy, tt.rec)
			if math.Abs(got-tt.want) > 1e-9 {
				t.Errorf("PriceChangeFor(%s, %v) = %v, want %v", tt.strategy, tt.rec, got, tt.want)
			}
		})
	}
}

func TestSimulateOutputOrderAndCoverage(t *testing.T) {
	cfg := config.DefaultPolicyConfig()
	engine := NewPolicyEngine(cfg)
	sim := NewScenarioSimulator(cfg)

	var inputs []database.PolicyInput
	for _, zone := range []string{"zone-1", "zone-2"} {
		for h := 0; h < 4; h++ {
			inputs = append(inputs, validInput(testBase.Add(time.Duration(h)*time.Hour), zone, "balanced", 0.5+0.1*float64(h), false))
		}
	}

	recs, _ := engine.Evaluate(inputs)
	outcomes, defects := sim.Simulate(inputs, recs)

	if defects.MissingRecommendation != 0 {
		t.Errorf("missing recommendations = %d, want 0", defects.MissingRecommendation)
	}
	if len(outcomes) != len(inputs)*len(Strategies) {
		t.Fatalf("outcomes = %d, want %d", len(outcomes), len(inputs)*len(Strategies))
	}

	// Fixed strategy order, input order preserved within each strategy.
	for i, out := range outcomes {
		strategy := Strategies[i/len(inputs)]
		in := inputs[i%len(inputs)]
		if out.StrategyName != strategy {
			t.Fatalf("outcome %d strategy = %s, want %s", i, out.StrategyName, strategy)
		}
		if out.ZoneID != in.ZoneID || !out.Timestamp.Equal(in.Timestamp) {
			t.Fatalf("outcome %d slice = %s@%s, want %s@%s",
				i, out.ZoneID, out.Timestamp, in.ZoneID, in.Timestamp)
		}
	}
}

func TestSimulateMissingRecommendationCountsOnce(t *testing.T) {
	sim := NewScenarioSimulator(config.DefaultPolicyConfig())

	inputs := []database.PolicyInput{
		validInput(testBase, "zone-1", "balanced", 0.5, false),
	}

	// No recommendations at all: the slice still simulates as HOLD under
	// every strategy but the defect is counted once.
	outcomes, defects := sim.Simulate(inputs, nil)

	if defects.MissingRecommendation != 1 {
		t.Errorf("missing recommendations = %d, want 1", defects.MissingRecommendation)
	}
	if len(outcomes) != len(Strategies) {
		t.Fatalf("outcomes = %d, want %d", len(outcomes), len(Strategies))
	}
	for _, out := range outcomes {
		if out.PriceChangePct != 0 {
			t.Errorf("%s price change = %v, want 0", out.StrategyName, out.PriceChangePct)
		}
	}
}
