package database

import (
	"database/sql"
	"fmt"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// PricingRepository handles database operations for the evaluation pipeline
type PricingRepository struct {
	db  *Database
	raw *DB
}

// NewPricingRepository creates a new pricing repository. The raw connection is
// optional; when present it serves the sorted policy-input join.
func NewPricingRepository(db *Database, raw *DB) *PricingRepository {
	return &PricingRepository{db: db, raw: raw}
}

// InitSchema performs auto-migration for all pipeline tables
func (r *PricingRepository) InitSchema() error {
	err := r.db.db.AutoMigrate(
		// Input fact tables
		&ForecastFact{},
		&CapacityFact{},
		// Output tables
		&PricingRecommendation{},
		&ScenarioOutcome{},
		&StrategyScorecard{},
		// Run summaries
		&PipelineRun{},
	)
	if err != nil {
		return WrapDBError("InitSchema", err)
	}
	return nil
}

// ============================================================================
// Fact ingestion
// ============================================================================

// InsertForecastFacts stores a batch of forecast facts
func (r *PricingRepository) InsertForecastFacts(facts []ForecastFact) error {
	if len(facts) == 0 {
		return nil
	}
	if err := r.db.db.CreateInBatches(facts, 500).Error; err != nil {
		return WrapDBError("InsertForecastFacts", err)
	}
	return nil
}

// InsertCapacityFacts stores a batch of capacity facts. Re-delivered
// (timestamp, zone) rows are ignored so feed reconnects stay idempotent.
func (r *PricingRepository) InsertCapacityFacts(facts []CapacityFact) error {
	if len(facts) == 0 {
		return nil
	}
	err := r.db.db.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "timestamp"}, {Name: "zone_id"}},
		DoNothing: true,
	}).CreateInBatches(facts, 500).Error
	if err != nil {
		return WrapDBError("InsertCapacityFacts", err)
	}
	return nil
}

// ============================================================================
// Policy input
// ============================================================================

// PolicyInput is one forecast slice joined with its zone's capacity fact.
// Multiple forecast models for the same slice are averaged into one policy
// signal. HasCapacity is false when the capacity join found no row; the
// policy engine skips such slices and counts the defect.
type PolicyInput struct {
	Timestamp      time.Time
	ZoneID         string
	SegmentID      string
	ForecastDemand float64
	LowerBound     float64
	UpperBound     float64

	HasCapacity        bool
	MaxHourlyCapacity  float64
	UtilizationRate    float64
	CapacityBreachFlag bool
	StressIndex        float64
}

// LoadPolicyInputs returns all policy inputs sorted by
// (zone_id, segment_id, timestamp) — the order the policy engine requires for
// its per-key carried state. The sort happens here, in one place, so the
// engine itself can document the precondition instead of re-sorting.
func (r *PricingRepository) LoadPolicyInputs() ([]PolicyInput, error) {
	if r.raw == nil {
		return nil, fmt.Errorf("raw database connection not configured")
	}

	query := `
		SELECT
			f.timestamp,
			f.zone_id,
			f.segment_id,
			AVG(f.forecast_demand) AS forecast_demand,
			AVG(f.lower_bound)     AS lower_bound,
			AVG(f.upper_bound)     AS upper_bound,
			c.max_hourly_capacity,
			c.utilization_rate,
			c.capacity_breach_flag,
			c.stress_index
		FROM forecast_facts f
		LEFT JOIN capacity_facts c
			ON c.timestamp = f.timestamp AND c.zone_id = f.zone_id
		GROUP BY f.timestamp, f.zone_id, f.segment_id,
			c.max_hourly_capacity, c.utilization_rate, c.capacity_breach_flag, c.stress_index
		ORDER BY f.zone_id, f.segment_id, f.timestamp`

	rows, err := r.raw.GetConn().Query(query)
	if err != nil {
		return nil, WrapDBError("LoadPolicyInputs", err)
	}
	defer rows.Close()

	var inputs []PolicyInput
	for rows.Next() {
		var in PolicyInput
		var capCapacity, capUtil, capStress sql.NullFloat64
		var capBreach sql.NullBool

		err := rows.Scan(
			&in.Timestamp, &in.ZoneID, &in.SegmentID,
			&in.ForecastDemand, &in.LowerBound, &in.UpperBound,
			&capCapacity, &capUtil, &capBreach, &capStress,
		)
		if err != nil {
			return nil, WrapDBError("LoadPolicyInputs scan", err)
		}

		if capCapacity.Valid {
			in.HasCapacity = true
			in.MaxHourlyCapacity = capCapacity.Float64
			in.UtilizationRate = capUtil.Float64
			in.CapacityBreachFlag = capBreach.Bool
			in.StressIndex = capStress.Float64
		}

		// Model averaging can leave incoherent bounds; pin them back around
		// the point forecast.
		if in.LowerBound > in.ForecastDemand {
			in.LowerBound = in.ForecastDemand
		}
		if in.UpperBound < in.ForecastDemand {
			in.UpperBound = in.ForecastDemand
		}

		inputs = append(inputs, in)
	}
	if err := rows.Err(); err != nil {
		return nil, WrapDBError("LoadPolicyInputs rows", err)
	}

	return inputs, nil
}

// ============================================================================
// Run persistence
// ============================================================================

// SaveRun persists a completed run and all of its output tables in a single
// transaction. Either the whole run lands or none of it does; a consumer can
// never observe a truncated output table.
func (r *PricingRepository) SaveRun(
	run *PipelineRun,
	recommendations []PricingRecommendation,
	outcomes []ScenarioOutcome,
	scorecards []StrategyScorecard,
) error {
	err := r.db.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(run).Error; err != nil {
			return fmt.Errorf("create run: %w", err)
		}

		for i := range recommendations {
			recommendations[i].RunID = run.ID
		}
		for i := range outcomes {
			outcomes[i].RunID = run.ID
		}
		for i := range scorecards {
			scorecards[i].RunID = run.ID
		}

		if len(recommendations) > 0 {
			if err := tx.CreateInBatches(recommendations, 500).Error; err != nil {
				return fmt.Errorf("insert recommendations: %w", err)
			}
		}
		if len(outcomes) > 0 {
			if err := tx.CreateInBatches(outcomes, 500).Error; err != nil {
				return fmt.Errorf("insert outcomes: %w", err)
			}
		}
		if len(scorecards) > 0 {
			if err := tx.CreateInBatches(scorecards, 100).Error; err != nil {
				return fmt.Errorf("insert scorecards: %w", err)
			}
		}
		return nil
	})
	if err != nil {
		return WrapDBError("SaveRun", err)
	}
	return nil
}

// RecordFailedRun stores a FAILED run summary with no output rows
func (r *PricingRepository) RecordFailedRun(run *PipelineRun) error {
	if err := r.db.db.Create(run).Error; err != nil {
		return WrapDBError("RecordFailedRun", err)
	}
	return nil
}

// ============================================================================
// API queries
// ============================================================================

// GetLatestRun returns the most recent completed pipeline run
func (r *PricingRepository) GetLatestRun() (*PipelineRun, error) {
	var run PipelineRun
	err := r.db.db.
		Where("status = ?", "COMPLETED").
		Order("started_at DESC").
		First(&run).Error
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, &NotFoundError{Resource: "pipeline run"}
		}
		return nil, WrapDBError("GetLatestRun", err)
	}
	return &run, nil
}

// GetRuns returns recent pipeline runs, newest first
func (r *PricingRepository) GetRuns(limit int) ([]PipelineRun, error) {
	var runs []PipelineRun
	err := r.db.db.
		Order("started_at DESC").
		Limit(limit).
		Find(&runs).Error
	if err != nil {
		return nil, WrapDBError("GetRuns", err)
	}
	return runs, nil
}

// GetScorecards returns the scorecards for a run, baseline first
func (r *PricingRepository) GetScorecards(runID int64) ([]StrategyScorecard, error) {
	var cards []StrategyScorecard
	err := r.db.db.
		Where("run_id = ?", runID).
		Order("id ASC").
		Find(&cards).Error
	if err != nil {
		return nil, WrapDBError("GetScorecards", err)
	}
	return cards, nil
}

// GetRecommendations returns recommendations for a run with optional
// zone/segment filters
func (r *PricingRepository) GetRecommendations(runID int64, zoneID, segmentID string, limit int) ([]PricingRecommendation, error) {
	q := r.db.db.Where("run_id = ?", runID)
	if zoneID != "" {
		q = q.Where("zone_id = ?", zoneID)
	}
	if segmentID != "" {
		q = q.Where("segment_id = ?", segmentID)
	}

	var recs []PricingRecommendation
	err := q.Order("zone_id ASC, segment_id ASC, timestamp ASC").
		Limit(limit).
		Find(&recs).Error
	if err != nil {
		return nil, WrapDBError("GetRecommendations", err)
	}
	return recs, nil
}

// GetOutcomes returns scenario outcomes for a run with an optional strategy filter
func (r *PricingRepository) GetOutcomes(runID int64, strategy string, limit int) ([]ScenarioOutcome, error) {
	q := r.db.db.Where("run_id = ?", runID)
	if strategy != "" {
		q = q.Where("strategy_name = ?", strategy)
	}

	var outcomes []ScenarioOutcome
	err := q.Order("strategy_name ASC, zone_id ASC, segment_id ASC, timestamp ASC").
		Limit(limit).
		Find(&outcomes).Error
	if err != nil {
		return nil, WrapDBError("GetOutcomes", err)
	}
	return outcomes, nil
}

// CountFacts returns the number of forecast and capacity fact rows
func (r *PricingRepository) CountFacts() (int64, int64, error) {
	var forecasts, capacities int64
	if err := r.db.db.Model(&ForecastFact{}).Count(&forecasts).Error; err != nil {
		return 0, 0, WrapDBError("CountFacts", err)
	}
	if err := r.db.db.Model(&CapacityFact{}).Count(&capacities).Error; err != nil {
		return 0, 0, WrapDBError("CountFacts", err)
	}
	return forecasts, capacities, nil
}
