package notifications

import (
	"bytes"
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"time"

	"pricing-scenario-lab/database"
)

// WebhookManager posts end-of-run summaries to configured endpoints
type WebhookManager struct {
	urls   []string
	client *http.Client
}

// RunPayload represents the JSON payload sent to webhooks after a run
type RunPayload struct {
	RunID              int64     `json:"RunID"`
	Status             string    `json:"Status"`
	StartedAt          time.Time `json:"StartedAt"`
	FinishedAt         time.Time `json:"FinishedAt"`
	InputRows          int       `json:"InputRows"`
	RecommendationRows int       `json:"RecommendationRows"`
	OutcomeRows        int       `json:"OutcomeRows"`
	SkippedRows        int       `json:"SkippedRows"`
	Message            string    `json:"Message"`

	Scorecards []ScorecardSummary `json:"Scorecards"`
}

// ScorecardSummary is the per-strategy slice of the webhook payload
type ScorecardSummary struct {
	StrategyName             string  `json:"StrategyName"`
	TotalRevenue             float64 `json:"TotalRevenue"`
	RevenueLiftVsBaselinePct float64 `json:"RevenueLiftVsBaselinePct"`
	AvgStressIndex           float64 `json:"AvgStressIndex"`
	PctHighRiskRows          float64 `json:"PctHighRiskRows"`
	EmptyGroup               bool    `json:"EmptyGroup,omitempty"`
}

// NewWebhookManager creates a webhook manager for the configured URLs
func NewWebhookManager(urls []string) *WebhookManager {
	return &WebhookManager{
		urls: urls,
		client: &http.Client{
			Timeout: 10 * time.Second,
		},
	}
}

// NotifyRunCompleted sends the run summary to every configured webhook.
// Delivery is async and best-effort; a dead endpoint never fails a run.
func (wm *WebhookManager) NotifyRunCompleted(run *database.PipelineRun, scorecards []database.StrategyScorecard) {
	if wm == nil || len(wm.urls) == 0 {
		return
	}

	payload := wm.CreatePayload(run, scorecards)
	payloadBytes, err := json.Marshal(payload)
	if err != nil {
		log.Printf("⚠️  Failed to marshal webhook payload: %v", err)
		return
	}

	for _, url := range wm.urls {
		go wm.deliver(url, payloadBytes)
	}
}

// CreatePayload builds the webhook payload from a run summary
func (wm *WebhookManager) CreatePayload(run *database.PipelineRun, scorecards []database.StrategyScorecard) RunPayload {
	skipped := run.SkippedNonPositiveDemand + run.SkippedMalformedBounds +
		run.SkippedMissingCapacity + run.MissingRecommendation

	// Format readable message
	// Example: "📊 RUN #12 COMPLETED | 4320 inputs | 12960 outcomes | Best lift: POLICY_RECOMMENDED +3.41%"
	message := fmt.Sprintf("📊 RUN #%d %s | %d inputs | %d outcomes | %d skipped",
		run.ID, run.Status, run.InputRows, run.OutcomeRows, skipped)

	bestName, bestLift := "", 0.0
	summaries := make([]ScorecardSummary, 0, len(scorecards))
	for _, card := range scorecards {
		summaries = append(summaries, ScorecardSummary{
			StrategyName:             card.StrategyName,
			TotalRevenue:             card.TotalRevenue,
			RevenueLiftVsBaselinePct: card.RevenueLiftVsBaselinePct,
			AvgStressIndex:           card.AvgStressIndex,
			PctHighRiskRows:          card.PctHighRiskRows,
			EmptyGroup:               card.EmptyGroup,
		})
		if !card.EmptyGroup && card.RevenueLiftVsBaselinePct > bestLift {
			bestName, bestLift = card.StrategyName, card.RevenueLiftVsBaselinePct
		}
	}
	if bestName != "" {
		message += fmt.Sprintf(" | Best lift: %s %+0.2f%%", bestName, bestLift)
	}

	finishedAt := run.StartedAt
	if run.FinishedAt != nil {
		finishedAt = *run.FinishedAt
	}

	return RunPayload{
		RunID:              run.ID,
		Status:             run.Status,
		StartedAt:          run.StartedAt,
		FinishedAt:         finishedAt,
		InputRows:          run.InputRows,
		RecommendationRows: run.RecommendationRows,
		OutcomeRows:        run.OutcomeRows,
		SkippedRows:        skipped,
		Message:            message,
		Scorecards:         summaries,
	}
}

func (wm *WebhookManager) deliver(url string, payload []byte) {
	const maxRetries = 3

	var resp *http.Response
	var err error

	for attempt := 1; attempt <= maxRetries; attempt++ {
		req, _ := http.NewRequest(http.MethodPost, url, bytes.NewBuffer(payload))
		req.Header.Set("Content-Type", "application/json")
		req.Header.Set("User-Agent", "Pricing-Scenario-Lab/1.0")

		log.Printf("🔹 Sending run webhook to %s (Attempt %d/%d)", url, attempt, maxRetries)

		resp, err = wm.client.Do(req)
		if err == nil && resp.StatusCode >= 200 && resp.StatusCode < 300 {
			resp.Body.Close()
			return
		}
		if err == nil {
			resp.Body.Close()
		}

		if attempt < maxRetries {
			time.Sleep(time.Duration(attempt) * 2 * time.Second)
		}
	}

	if err != nil {
		log.Printf("⚠️  Webhook delivery to %s failed: %v", url, err)
	} else {
		log.Printf("⚠️  Webhook delivery to %s failed with status %d", url, resp.StatusCode)
	}
}
