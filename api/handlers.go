package api

import (
	"context"
	"errors"
	"log"
	"net/http"
	"strconv"
	"time"

	"pricing-scenario-lab/database"
)

const cacheKeyLatestScorecards = "pricing:scorecards:latest"

// handleHealth returns the health status of the API
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// Run Handlers

func (s *Server) handleGetRuns(w http.ResponseWriter, r *http.Request) {
	minLimit, maxLimit := 1, 500
	limit := getIntParam(r, "limit", 50, &minLimit, &maxLimit)

	runs, err := s.repo.GetRuns(limit)
	if err != nil {
		respondWithError(w, http.StatusInternalServerError, "Failed to load runs", err)
		return
	}
	respondJSON(w, http.StatusOK, runs)
}

func (s *Server) handleGetLatestRun(w http.ResponseWriter, r *http.Request) {
	run, err := s.repo.GetLatestRun()
	if err != nil {
		var notFound *database.NotFoundError
		if errors.As(err, &notFound) {
			respondWithError(w, http.StatusNotFound, "No completed run yet", nil)
			return
		}
		respondWithError(w, http.StatusInternalServerError, "Failed to load latest run", err)
		return
	}
	respondJSON(w, http.StatusOK, run)
}

// handleTriggerRun starts an evaluation run in the background. Only one
// triggered run may be in flight at a time; a second POST while one is
// running gets 409.
func (s *Server) handleTriggerRun(w http.ResponseWriter, r *http.Request) {
	if s.trigger == nil {
		respondWithError(w, http.StatusServiceUnavailable, "Pipeline not configured", nil)
		return
	}

	select {
	case s.running <- struct{}{}:
	default:
		respondWithError(w, http.StatusConflict, "A run is already in progress", nil)
		return
	}

	go func() {
		defer func() { <-s.running }()
		if _, err := s.trigger.Run(context.Background()); err != nil {
			log.Printf("❌ Triggered run failed: %v", err)
		}
	}()

	respondJSON(w, http.StatusAccepted, map[string]string{
		"status":       "accepted",
		"triggered_at": time.Now().UTC().Format(time.RFC3339),
	})
}

func (s *Server) handleGetRunScorecards(w http.ResponseWriter, r *http.Request) {
	runID, err := strconv.ParseInt(r.PathValue("id"), 10, 64)
	if err != nil {
		respondWithError(w, http.StatusBadRequest, "Invalid run ID", nil)
		return
	}

	cards, err := s.repo.GetScorecards(runID)
	if err != nil {
		respondWithError(w, http.StatusInternalServerError, "Failed to load scorecards", err)
		return
	}
	respondJSON(w, http.StatusOK, cards)
}

// Result Handlers

// handleGetLatestScorecards serves the latest run's scorecards, from Redis
// when the cache is warm, from the database otherwise
func (s *Server) handleGetLatestScorecards(w http.ResponseWriter, r *http.Request) {
	if s.redis != nil {
		var cached []database.StrategyScorecard
		if err := s.redis.Get(r.Context(), cacheKeyLatestScorecards, &cached); err == nil && len(cached) > 0 {
			respondJSON(w, http.StatusOK, cached)
			return
		}
	}

	run, err := s.repo.GetLatestRun()
	if err != nil {
		var notFound *database.NotFoundError
		if errors.As(err, &notFound) {
			respondWithError(w, http.StatusNotFound, "No completed run yet", nil)
			return
		}
		respondWithError(w, http.StatusInternalServerError, "Failed to load latest run", err)
		return
	}

	cards, err := s.repo.GetScorecards(run.ID)
	if err != nil {
		respondWithError(w, http.StatusInternalServerError, "Failed to load scorecards", err)
		return
	}
	respondJSON(w, http.StatusOK, cards)
}

func (s *Server) handleGetRecommendations(w http.ResponseWriter, r *http.Request) {
	runID, ok := s.resolveRunID(w, r)
	if !ok {
		return
	}

	minLimit, maxLimit := 1, 10000
	limit := getIntParam(r, "limit", 1000, &minLimit, &maxLimit)
	zoneID := r.URL.Query().Get("zone")
	segmentID := r.URL.Query().Get("segment")

	recs, err := s.repo.GetRecommendations(runID, zoneID, segmentID, limit)
	if err != nil {
		respondWithError(w, http.StatusInternalServerError, "Failed to load recommendations", err)
		return
	}
	respondJSON(w, http.StatusOK, recs)
}

func (s *Server) handleGetOutcomes(w http.ResponseWriter, r *http.Request) {
	runID, ok := s.resolveRunID(w, r)
	if !ok {
		return
	}

	minLimit, maxLimit := 1, 10000
	limit := getIntParam(r, "limit", 1000, &minLimit, &maxLimit)
	strategy := r.URL.Query().Get("strategy")

	outcomes, err := s.repo.GetOutcomes(runID, strategy, limit)
	if err != nil {
		respondWithError(w, http.StatusInternalServerError, "Failed to load outcomes", err)
		return
	}
	respondJSON(w, http.StatusOK, outcomes)
}

// resolveRunID reads the run_id query parameter, defaulting to the latest
// completed run. Writes the error response itself when nothing can be served.
func (s *Server) resolveRunID(w http.ResponseWriter, r *http.Request) (int64, bool) {
	if runID := getInt64Param(r, "run_id"); runID > 0 {
		return runID, true
	}

	run, err := s.repo.GetLatestRun()
	if err != nil {
		var notFound *database.NotFoundError
		if errors.As(err, &notFound) {
			respondWithError(w, http.StatusNotFound, "No completed run yet", nil)
			return 0, false
		}
		respondWithError(w, http.StatusInternalServerError, "Failed to load latest run", err)
		return 0, false
	}
	return run.ID, true
}

// Input Fact Handlers

func (s *Server) handleGetFactSummary(w http.ResponseWriter, r *http.Request) {
	forecasts, capacities, err := s.repo.CountFacts()
	if err != nil {
		respondWithError(w, http.StatusInternalServerError, "Failed to count facts", err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]int64{
		"forecast_facts": forecasts,
		"capacity_facts": capacities,
	})
}
