package api

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"time"

	"pricing-scenario-lab/cache"
	"pricing-scenario-lab/database"
	"pricing-scenario-lab/realtime"
)

// Server handles HTTP API requests
type Server struct {
	repo    *database.PricingRepository
	redis   *cache.RedisClient
	broker  *realtime.Broker
	trigger PipelineTrigger

	running chan struct{} // single-flight guard for triggered runs
}

// PipelineTrigger defines the interface for starting an evaluation run
type PipelineTrigger interface {
	Run(ctx context.Context) (*database.PipelineRun, error)
}

// NewServer creates a new API server instance
func NewServer(repo *database.PricingRepository, redis *cache.RedisClient, broker *realtime.Broker) *Server {
	return &Server{
		repo:    repo,
		redis:   redis,
		broker:  broker,
		running: make(chan struct{}, 1),
	}
}

// SetPipelineTrigger wires the runner used by POST /api/runs
func (s *Server) SetPipelineTrigger(trigger PipelineTrigger) {
	s.trigger = trigger
}

// Start starts the HTTP server on the specified port
func (s *Server) Start(port int) error {
	mux := http.NewServeMux()

	// Register routes
	mux.Handle("GET /api/events", s.broker) // SSE Endpoint

	// Run Routes
	mux.HandleFunc("GET /api/runs", s.handleGetRuns)
	mux.HandleFunc("GET /api/runs/latest", s.handleGetLatestRun)
	mux.HandleFunc("POST /api/runs", s.handleTriggerRun)
	mux.HandleFunc("GET /api/runs/{id}/scorecards", s.handleGetRunScorecards)

	// Result Routes
	mux.HandleFunc("GET /api/scorecards", s.handleGetLatestScorecards)
	mux.HandleFunc("GET /api/recommendations", s.handleGetRecommendations)
	mux.HandleFunc("GET /api/outcomes", s.handleGetOutcomes)

	// Input Fact Routes
	mux.HandleFunc("GET /api/facts/summary", s.handleGetFactSummary)

	mux.HandleFunc("GET /health", s.handleHealth)

	// Add middleware
	handler := s.corsMiddleware(s.loggingMiddleware(mux))

	serverAddr := fmt.Sprintf("0.0.0.0:%d", port)
	log.Printf("🚀 API Server starting on %s", serverAddr)
	return http.ListenAndServe(serverAddr, handler)
}

// Middleware
func (s *Server) corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")
		if r.Method == "OPTIONS" {
			w.WriteHeader(http.StatusOK)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (s *Server) loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		next.ServeHTTP(w, r)
		log.Printf("%s %s %v", r.Method, r.URL.Path, time.Since(start))
	})
}
