package app

import (
	"context"
	"log"
	"strings"
	"time"

	"pricing-scenario-lab/cache"
	"pricing-scenario-lab/config"
	"pricing-scenario-lab/database"
	"pricing-scenario-lab/helpers"
	"pricing-scenario-lab/notifications"
	"pricing-scenario-lab/realtime"
)

// Redis cache keys and channels
const (
	cacheKeyLatestScorecards = "pricing:scorecards:latest"
	cacheKeyLatestRun        = "pricing:run:latest"
	runEventChannel          = "pricing:run_events"
	cacheTTL                 = 24 * time.Hour
)

// PipelineRunner executes one full evaluation pass: load sorted inputs, run
// the policy engine, simulate every strategy, aggregate scorecards, round,
// and persist — in that fixed stage order. Runs are deterministic: the same
// facts and policy document always produce bit-identical output tables.
type PipelineRunner struct {
	repo      *database.PricingRepository
	policyCfg *config.PolicyConfig
	redis     *cache.RedisClient
	broker    *realtime.Broker
	webhooks  *notifications.WebhookManager
}

// NewPipelineRunner creates a pipeline runner. Redis, broker, and webhooks
// are optional; the pipeline itself only needs the repository and the policy
// document.
func NewPipelineRunner(
	repo *database.PricingRepository,
	policyCfg *config.PolicyConfig,
	redis *cache.RedisClient,
	broker *realtime.Broker,
	webhooks *notifications.WebhookManager,
) *PipelineRunner {
	return &PipelineRunner{
		repo:      repo,
		policyCfg: policyCfg,
		redis:     redis,
		broker:    broker,
		webhooks:  webhooks,
	}
}

// Run executes the pipeline once and returns the persisted run summary.
// Row-level input defects are skipped and counted, never fatal; anything else
// aborts before a single output row is written.
func (p *PipelineRunner) Run(ctx context.Context) (*database.PipelineRun, error) {
	startedAt := time.Now().UTC()
	log.Println("🚀 Starting pricing strategy evaluation run")
	p.publishEvent(ctx, "run_started", map[string]interface{}{"started_at": startedAt})

	inputs, err := p.repo.LoadPolicyInputs()
	if err != nil {
		return p.failRun(ctx, startedAt, err)
	}
	log.Printf("📥 Loaded %d policy input slices", len(inputs))

	// Stage 1: policy engine (must finish before the recommended simulation)
	engine := NewPolicyEngine(p.policyCfg)
	recommendations, defects := engine.Evaluate(inputs)
	log.Printf("🧭 Produced %d recommendations (%d rows skipped)", len(recommendations), defects.Total())

	// Stage 2: one simulation pass per strategy
	simulator := NewScenarioSimulator(p.policyCfg)
	outcomes, simDefects := simulator.Simulate(inputs, recommendations)
	defects.add(simDefects)
	log.Printf("🎛️  Simulated %d outcome rows across %d strategies", len(outcomes), len(Strategies))

	// Stage 3: scorecards
	aggregator := NewEvaluationAggregator()
	scorecards, emptyGroups, err := aggregator.Aggregate(outcomes)
	if err != nil {
		return p.failRun(ctx, startedAt, err)
	}
	for _, name := range emptyGroups {
		log.Printf("⚠️  Strategy %s produced zero outcome rows", name)
	}

	// Round every persisted numeric field so re-runs are bit-identical.
	digits := p.policyCfg.RoundingDigits
	roundRecommendations(recommendations, digits)
	roundOutcomes(outcomes, digits)
	roundScorecards(scorecards, digits)

	finishedAt := time.Now().UTC()
	run := &database.PipelineRun{
		StartedAt:  startedAt,
		FinishedAt: &finishedAt,
		Status:     "COMPLETED",

		InputRows:          len(inputs),
		RecommendationRows: len(recommendations),
		OutcomeRows:        len(outcomes),

		SkippedNonPositiveDemand: defects.NonPositiveDemand,
		SkippedMalformedBounds:   defects.MalformedBounds,
		SkippedMissingCapacity:   defects.MissingCapacity,
		MissingRecommendation:    defects.MissingRecommendation,

		EmptyStrategyGroups: strings.Join(emptyGroups, ","),
	}

	if err := p.repo.SaveRun(run, recommendations, outcomes, scorecards); err != nil {
		return p.failRun(ctx, startedAt, err)
	}

	p.cacheResults(ctx, run, scorecards)
	p.publishEvent(ctx, "run_completed", run)
	if p.webhooks != nil {
		p.webhooks.NotifyRunCompleted(run, scorecards)
	}

	p.logSummary(run, scorecards)
	return run, nil
}

// failRun records a FAILED run summary with no output rows and propagates
// the error
func (p *PipelineRunner) failRun(ctx context.Context, startedAt time.Time, cause error) (*database.PipelineRun, error) {
	log.Printf("❌ Evaluation run failed: %v", cause)

	finishedAt := time.Now().UTC()
	run := &database.PipelineRun{
		StartedAt:  startedAt,
		FinishedAt: &finishedAt,
		Status:     "FAILED",
		Error:      cause.Error(),
	}
	if err := p.repo.RecordFailedRun(run); err != nil {
		log.Printf("⚠️  Failed to record failed run: %v", err)
	}

	p.publishEvent(ctx, "run_failed", map[string]interface{}{"error": cause.Error()})
	return nil, cause
}

// cacheResults stores the latest run and scorecards for the API. Cache
// failures are logged, never fatal.
func (p *PipelineRunner) cacheResults(ctx context.Context, run *database.PipelineRun, scorecards []database.StrategyScorecard) {
	if p.redis == nil {
		return
	}
	if err := p.redis.Set(ctx, cacheKeyLatestRun, run, cacheTTL); err != nil {
		log.Printf("⚠️  Failed to cache run summary: %v", err)
	}
	if err := p.redis.Set(ctx, cacheKeyLatestScorecards, scorecards, cacheTTL); err != nil {
		log.Printf("⚠️  Failed to cache scorecards: %v", err)
	}
}

// publishEvent fans a run lifecycle event out to SSE clients and Redis
func (p *PipelineRunner) publishEvent(ctx context.Context, event string, payload interface{}) {
	if p.broker != nil {
		p.broker.PublishEvent(event, payload)
	}
	if p.redis != nil {
		if err := p.redis.Publish(ctx, runEventChannel, map[string]interface{}{
			"event":   event,
			"payload": payload,
		}); err != nil {
			log.Printf("⚠️  Failed to publish %s to Redis: %v", event, err)
		}
	}
}

// logSummary prints the end-of-run summary with per-kind defect counts
func (p *PipelineRunner) logSummary(run *database.PipelineRun, scorecards []database.StrategyScorecard) {
	log.Printf("✅ Run %d complete: %d inputs, %d recommendations, %d outcomes",
		run.ID, run.InputRows, run.RecommendationRows, run.OutcomeRows)
	log.Printf("   Defects: non_positive_demand=%d malformed_bounds=%d missing_capacity=%d missing_recommendation=%d",
		run.SkippedNonPositiveDemand, run.SkippedMalformedBounds,
		run.SkippedMissingCapacity, run.MissingRecommendation)
	for _, card := range scorecards {
		if card.EmptyGroup {
			log.Printf("   %-20s EMPTY GROUP", card.StrategyName)
			continue
		}
		log.Printf("   %-20s revenue=%.2f lift=%.2f%% lost=%.2f%% stress=%.4f high_risk=%.2f%%",
			card.StrategyName, card.TotalRevenue, card.RevenueLiftVsBaselinePct,
			card.PctDemandLostCapacity, card.AvgStressIndex, card.PctHighRiskRows)
	}
}

func roundRecommendations(recs []database.PricingRecommendation, digits int) {
	for i := range recs {
		recs[i].RecommendedPctChange = helpers.RoundHalfUp(recs[i].RecommendedPctChange, digits)
	}
}

func roundOutcomes(outcomes []database.ScenarioOutcome, digits int) {
	for i := range outcomes {
		o := &outcomes[i]
		o.PriceChangePct = helpers.RoundHalfUp(o.PriceChangePct, digits)
		o.ForecastDemand = helpers.RoundHalfUp(o.ForecastDemand, digits)
		o.AdjustedDemand = helpers.RoundHalfUp(o.AdjustedDemand, digits)
		o.OrdersCompleted = helpers.RoundHalfUp(o.OrdersCompleted, digits)
		o.OrdersLostCapacity = helpers.RoundHalfUp(o.OrdersLostCapacity, digits)
		o.RevenueEst = helpers.RoundHalfUp(o.RevenueEst, digits)
		o.UtilizationRate = helpers.RoundHalfUp(o.UtilizationRate, digits)
		o.StressIndex = helpers.RoundHalfUp(o.StressIndex, digits)
	}
}

func roundScorecards(cards []database.StrategyScorecard, digits int) {
	for i := range cards {
		c := &cards[i]
		c.TotalRevenue = helpers.RoundHalfUp(c.TotalRevenue, digits)
		c.RevenueLiftVsBaselinePct = helpers.RoundHalfUp(c.RevenueLiftVsBaselinePct, digits)
		c.TotalForecastDemand = helpers.RoundHalfUp(c.TotalForecastDemand, digits)
		c.TotalOrdersCompleted = helpers.RoundHalfUp(c.TotalOrdersCompleted, digits)
		c.PctDemandLostCapacity = helpers.RoundHalfUp(c.PctDemandLostCapacity, digits)
		c.AvgUtilizationRate = helpers.RoundHalfUp(c.AvgUtilizationRate, digits)
		c.AvgStressIndex = helpers.RoundHalfUp(c.AvgStressIndex, digits)
		c.PctHighRiskRows = helpers.RoundHalfUp(c.PctHighRiskRows, digits)
		c.PctMediumOrHighRiskRows = helpers.RoundHalfUp(c.PctMediumOrHighRiskRows, digits)
		c.RevenuePerStressUnit = helpers.RoundHalfUp(c.RevenuePerStressUnit, digits)
	}
}
