package models

import "time"

// ForecastFact is one demand forecast slice consumed as pipeline input.
// Forecasts arrive from the upstream forecasting stage as a finished table;
// this system never produces or corrects them.
//
// Key Fields:
//   - Timestamp: forecast hour (indexed for time-based queries)
//   - ZoneID / SegmentID: the slice the forecast applies to
//   - ForecastModel: which upstream model produced the row
//   - ForecastDemand: point forecast, with LowerBound <= ForecastDemand <= UpperBound
//
// The (upper - lower) band width drives the policy engine's uncertainty
// guardrail and the recommendation risk flag.
type ForecastFact struct {
	ID             int64     `gorm:"primaryKey;autoIncrement" json:"id"`
	Timestamp      time.Time `gorm:"index:idx_forecast_slice;not null" json:"timestamp"`
	ZoneID         string    `gorm:"size:20;index:idx_forecast_slice;not null" json:"zone_id"`
	SegmentID      string    `gorm:"size:20;index:idx_forecast_slice;not null" json:"segment_id"`
	ForecastModel  string    `gorm:"size:40;not null" json:"forecast_model"`
	ForecastDemand float64   `gorm:"type:decimal(15,4);not null" json:"forecast_demand"`
	LowerBound     float64   `gorm:"type:decimal(15,4);not null" json:"lower_bound"`
	UpperBound     float64   `gorm:"type:decimal(15,4);not null" json:"upper_bound"`
}

// TableName specifies the table name for ForecastFact
func (ForecastFact) TableName() string {
	return "forecast_facts"
}

// CapacityFact is one operational capacity observation per (timestamp, zone).
// Capacity facts anchor the policy guardrails and the simulator's fulfillment
// model; like forecasts they are an external input contract.
type CapacityFact struct {
	ID                 int64     `gorm:"primaryKey;autoIncrement" json:"id"`
	Timestamp          time.Time `gorm:"uniqueIndex:idx_capacity_slice;not null" json:"timestamp"`
	ZoneID             string    `gorm:"size:20;uniqueIndex:idx_capacity_slice;not null" json:"zone_id"`
	MaxHourlyCapacity  float64   `gorm:"type:decimal(15,4);not null" json:"max_hourly_capacity"`
	UtilizationRate    float64   `gorm:"type:decimal(10,4);not null" json:"utilization_rate"`
	CapacityBreachFlag bool      `gorm:"not null" json:"capacity_breach_flag"`
	StressIndex        float64   `gorm:"type:decimal(10,4);not null" json:"stress_index"`
}

// TableName specifies the table name for CapacityFact
func (CapacityFact) TableName() string {
	return "capacity_facts"
}

// PricingRecommendation is one governance-bound pricing decision per
// (timestamp, zone, segment), produced by the policy engine. Immutable once
// written; a new pipeline run writes a new set under a new run ID.
//
// Key Fields:
//   - RecommendedAction: SURGE, DISCOUNT, or HOLD
//   - RecommendedPctChange: always inside [-max_discount, +max_surge]
//   - DecisionReason: machine-readable rule identifier; a cooldown downgrade
//     appends COOLDOWN_OVERRIDE to the original reason
//   - RiskFlag: LOW, MEDIUM, or HIGH
//   - PolicyNotes: human-readable audit trail naming the bound that was hit
type PricingRecommendation struct {
	ID                   int64     `gorm:"primaryKey;autoIncrement" json:"id"`
	RunID                int64     `gorm:"index;not null" json:"run_id"`
	Timestamp            time.Time `gorm:"index;not null" json:"timestamp"`
	ZoneID               string    `gorm:"size:20;index;not null" json:"zone_id"`
	SegmentID            string    `gorm:"size:20;index;not null" json:"segment_id"`
	RecommendedAction    string    `gorm:"size:10;not null" json:"recommended_action"`
	RecommendedPctChange float64   `gorm:"type:decimal(10,4);not null" json:"recommended_pct_change"`
	DecisionReason       string    `gorm:"size:80;not null" json:"decision_reason"`
	RiskFlag             string    `gorm:"size:10;not null" json:"risk_flag"`
	PolicyNotes          string    `gorm:"type:text" json:"policy_notes"`
}

// TableName specifies the table name for PricingRecommendation
func (PricingRecommendation) TableName() string {
	return "pricing_recommendations"
}

// ScenarioOutcome is one simulated fulfillment result per
// (timestamp, zone, segment, strategy).
//
// Invariants:
//   - OrdersCompleted + OrdersLostCapacity == AdjustedDemand (within rounding)
//   - OrdersCompleted <= the slice's max hourly capacity
//   - AdjustedDemand never increases with PriceChangePct
type ScenarioOutcome struct {
	ID                 int64     `gorm:"primaryKey;autoIncrement" json:"id"`
	RunID              int64     `gorm:"index;not null" json:"run_id"`
	Timestamp          time.Time `gorm:"index;not null" json:"timestamp"`
	ZoneID             string    `gorm:"size:20;index;not null" json:"zone_id"`
	SegmentID          string    `gorm:"size:20;not null" json:"segment_id"`
	StrategyName       string    `gorm:"size:30;index;not null" json:"strategy_name"`
	PriceChangePct     float64   `gorm:"type:decimal(10,4);not null" json:"price_change_pct"`
	ForecastDemand     float64   `gorm:"type:decimal(15,4);not null" json:"forecast_demand"`
	AdjustedDemand     float64   `gorm:"type:decimal(15,4);not null" json:"adjusted_demand"`
	OrdersCompleted    float64   `gorm:"type:decimal(15,4);not null" json:"orders_completed"`
	OrdersLostCapacity float64   `gorm:"type:decimal(15,4);not null" json:"orders_lost_capacity"`
	RevenueEst         float64   `gorm:"type:decimal(20,4);not null" json:"revenue_est"`
	UtilizationRate    float64   `gorm:"type:decimal(10,4);not null" json:"utilization_rate"`
	StressIndex        float64   `gorm:"type:decimal(10,4);not null" json:"stress_index"`
	CustomerRiskFlag   string    `gorm:"size:10;not null" json:"customer_risk_flag"`
}

// TableName specifies the table name for ScenarioOutcome
func (ScenarioOutcome) TableName() string {
	return "scenario_outcomes"
}

// StrategyScorecard is the roll-up comparison row, one per strategy per run.
// EmptyGroup marks a configured strategy that produced zero outcome rows; its
// derived ratios are all zero rather than an error, but callers are told.
type StrategyScorecard struct {
	ID                       int64   `gorm:"primaryKey;autoIncrement" json:"id"`
	RunID                    int64   `gorm:"index;not null" json:"run_id"`
	StrategyName             string  `gorm:"size:30;not null" json:"strategy_name"`
	TotalRevenue             float64 `gorm:"type:decimal(20,4);not null" json:"total_revenue"`
	RevenueLiftVsBaselinePct float64 `gorm:"type:decimal(10,4);not null" json:"revenue_lift_vs_baseline_pct"`
	TotalForecastDemand      float64 `gorm:"type:decimal(20,4);not null" json:"total_forecast_demand"`
	TotalOrdersCompleted     float64 `gorm:"type:decimal(20,4);not null" json:"total_orders_completed"`
	PctDemandLostCapacity    float64 `gorm:"type:decimal(10,4);not null" json:"pct_demand_lost_capacity"`
	AvgUtilizationRate       float64 `gorm:"type:decimal(10,4);not null" json:"avg_utilization_rate"`
	AvgStressIndex           float64 `gorm:"type:decimal(10,4);not null" json:"avg_stress_index"`
	PctHighRiskRows          float64 `gorm:"type:decimal(10,4);not null" json:"pct_high_risk_rows"`
	PctMediumOrHighRiskRows  float64 `gorm:"type:decimal(10,4);not null" json:"pct_medium_or_high_risk_rows"`
	RevenuePerStressUnit     float64 `gorm:"type:decimal(20,4);not null" json:"revenue_per_stress_unit"`
	EmptyGroup               bool    `gorm:"not null" json:"empty_group"`
}

// TableName specifies the table name for StrategyScorecard
func (StrategyScorecard) TableName() string {
	return "strategy_scorecards"
}

// PipelineRun is the end-of-run summary: timing, row counts, and per-kind
// defect counts. Output tables reference it through RunID, and the run either
// completes with all of its outputs committed in one transaction or fails
// with none of them.
type PipelineRun struct {
	ID         int64      `gorm:"primaryKey;autoIncrement" json:"id"`
	StartedAt  time.Time  `gorm:"index;not null" json:"started_at"`
	FinishedAt *time.Time `json:"finished_at,omitempty"`
	Status     string     `gorm:"size:15;not null" json:"status"` // RUNNING, COMPLETED, FAILED

	InputRows          int `json:"input_rows"`
	RecommendationRows int `json:"recommendation_rows"`
	OutcomeRows        int `json:"outcome_rows"`

	// Input defects, isolated per row and reported here
	SkippedNonPositiveDemand int `json:"skipped_non_positive_demand"`
	SkippedMalformedBounds   int `json:"skipped_malformed_bounds"`
	SkippedMissingCapacity   int `json:"skipped_missing_capacity"`
	MissingRecommendation    int `json:"missing_recommendation"`

	// Comma-separated strategies that produced zero outcome rows
	EmptyStrategyGroups string `gorm:"size:120" json:"empty_strategy_groups,omitempty"`

	Error string `gorm:"type:text" json:"error,omitempty"`
}

// TableName specifies the table name for PipelineRun
func (PipelineRun) TableName() string {
	return "pipeline_runs"
}
