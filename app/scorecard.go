package app

import (
	"fmt"
	"math"

	"pricing-scenario-lab/database"
)

// EvaluationAggregator reduces scenario outcomes into one scorecard per
// strategy, including revenue lift against the static baseline.
type EvaluationAggregator struct{}

// NewEvaluationAggregator creates an evaluation aggregator
func NewEvaluationAggregator() *EvaluationAggregator {
	return &EvaluationAggregator{}
}

// strategyTotals accumulates one strategy group before ratios are derived
type strategyTotals struct {
	rows        int
	revenue     float64
	forecast    float64
	completed   float64
	lost        float64
	adjusted    float64
	utilization float64
	stress      float64
	highRisk    int
	medHighRisk int
}

// Aggregate emits one scorecard per configured strategy, in the fixed
// strategy order. An outcome row naming a strategy outside the configured set
// is a fatal configuration error: it means the simulator and the aggregator
// disagree on the strategy set. A configured strategy with zero rows yields
// an all-zero scorecard and is returned in the empty-groups list so the
// caller can flag it.
func (a *EvaluationAggregator) Aggregate(outcomes []database.ScenarioOutcome) ([]database.StrategyScorecard, []string, error) {
	known := make(map[string]*strategyTotals, len(Strategies))
	for _, name := range Strategies {
		known[name] = &strategyTotals{}
	}

	for _, out := range outcomes {
		totals, ok := known[out.StrategyName]
		if !ok {
			return nil, nil, fmt.Errorf("unknown strategy %q in scenario outcomes: simulator and aggregator disagree on the strategy set", out.StrategyName)
		}

		totals.rows++
		totals.revenue += out.RevenueEst
		totals.forecast += out.ForecastDemand
		totals.completed += out.OrdersCompleted
		totals.lost += out.OrdersLostCapacity
		totals.adjusted += out.AdjustedDemand
		totals.utilization += out.UtilizationRate
		totals.stress += out.StressIndex
		if out.CustomerRiskFlag == RiskHigh {
			totals.highRisk++
			totals.medHighRisk++
		} else if out.CustomerRiskFlag == RiskMedium {
			totals.medHighRisk++
		}
	}

	baselineRevenue := known[StrategyStaticBaseline].revenue

	cards := make([]database.StrategyScorecard, 0, len(Strategies))
	var emptyGroups []string
	for _, name := range Strategies {
		totals := known[name]
		if totals.rows == 0 {
			emptyGroups = append(emptyGroups, name)
			cards = append(cards, database.StrategyScorecard{
				StrategyName: name,
				EmptyGroup:   true,
			})
			continue
		}

		n := float64(totals.rows)
		card := database.StrategyScorecard{
			StrategyName:            name,
			TotalRevenue:            totals.revenue,
			TotalForecastDemand:     totals.forecast,
			TotalOrdersCompleted:    totals.completed,
			PctDemandLostCapacity:   totals.lost / math.Max(totals.adjusted, epsilon) * 100,
			AvgUtilizationRate:      totals.utilization / n,
			AvgStressIndex:          totals.stress / n,
			PctHighRiskRows:         float64(totals.highRisk) / n * 100,
			PctMediumOrHighRiskRows: float64(totals.medHighRisk) / n * 100,
			RevenuePerStressUnit:    totals.revenue / math.Max(totals.stress, epsilon),
		}

		// The baseline's lift against itself is identically zero, never a
		// rounding artifact.
		if name != StrategyStaticBaseline {
			card.RevenueLiftVsBaselinePct = (totals.revenue - baselineRevenue) /
				math.Max(baselineRevenue, epsilon) * 100
		}

		cards = append(cards, card)
	}

	return cards, emptyGroups, nil
}
