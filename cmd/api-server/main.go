package main

import (
	"context"
	"encoding/json"
	"log"
	"math/rand"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/time/rate"

	"channelprober/internal/experiment"
	"channelprober/internal/probing"
	"channelprober/internal/storage"
	"channelprober/internal/synthetic"
)

// APIServer provides HTTP endpoints for running probing simulations.
type APIServer struct {
	store       *storage.PostgresStore
	rateLimiter *rate.Limiter
	metrics     *Metrics
}

// Metrics tracks API performance.
type Metrics struct {
	requestsTotal   *prometheus.CounterVec
	requestDuration *prometheus.HistogramVec
	activeRequests  prometheus.Gauge
	probesSimulated prometheus.Counter
}

func newMetrics() *Metrics {
	m := &Metrics{
		requestsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "api_requests_total",
				Help: "Total number of API requests",
			},
			[]string{"endpoint", "status"},
		),
		requestDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "api_request_duration_seconds",
				Help:    "API request duration in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"endpoint"},
		),
		activeRequests: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "api_active_requests",
				Help: "Number of active API requests",
			},
		),
		probesSimulated: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "probes_simulated_total",
				Help: "Total number of simulated probe payments",
			},
		),
	}

	prometheus.MustRegister(m.requestsTotal, m.requestDuration, m.activeRequests, m.probesSimulated)
	return m
}

func NewAPIServer(store *storage.PostgresStore) *APIServer {
	return &APIServer{
		store:       store,
		rateLimiter: rate.NewLimiter(rate.Limit(100), 200), // 100 RPS burst 200
		metrics:     newMetrics(),
	}
}

// ProbeRequest describes a simulated probing run over synthetic hops.
type ProbeRequest struct {
	NumHops                  int     `json:"num_hops"`
	NumChannels              int     `json:"num_channels"`
	MinCapacity              int64   `json:"min_capacity"`
	MaxCapacity              int64   `json:"max_capacity"`
	ProbabilityBidirectional float64 `json:"probability_bidirectional"`
	Jamming                  bool    `json:"jamming"`
	Seed                     int64   `json:"seed,omitempty"`
}

// MethodResult is the outcome of one amount-selection method.
type MethodResult struct {
	GainRatio    float64 `json:"gain_ratio"`
	ProbingSpeed float64 `json:"probing_speed"`
	TotalProbes  int     `json:"total_probes"`
	TotalJams    int     `json:"total_jams"`
	InitialBits  float64 `json:"initial_bits"`
	ResolvedBits float64 `json:"resolved_bits"`
}

// ProbeResponse compares the naive and optimal strategies on identical
// hop populations.
type ProbeResponse struct {
	Naive   MethodResult `json:"naive"`
	Optimal MethodResult `json:"optimal"`
	Seed    int64        `json:"seed"`
}

// HealthResponse represents health check response.
type HealthResponse struct {
	Status    string    `json:"status"`
	Timestamp time.Time `json:"timestamp"`
	Version   string    `json:"version"`
}

func (s *APIServer) rateLimitMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !s.rateLimiter.Allow() {
			s.metrics.requestsTotal.WithLabelValues(r.URL.Path, "429").Inc()
			http.Error(w, "Rate limit exceeded", http.StatusTooManyRequests)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (s *APIServer) metricsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		s.metrics.activeRequests.Inc()
		defer s.metrics.activeRequests.Dec()

		next.ServeHTTP(w, r)

		duration := time.Since(start).Seconds()
		s.metrics.requestDuration.WithLabelValues(r.URL.Path).Observe(duration)
	})
}

// HandleHealth returns API health status.
func (s *APIServer) HandleHealth(w http.ResponseWriter, r *http.Request) {
	response := HealthResponse{
		Status:    "healthy",
		Timestamp: time.Now(),
		Version:   "1.0.0",
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(response)
}

// HandleProbe runs one isolated probing simulation with both strategies
// and returns the comparison.
func (s *APIServer) HandleProbe(w http.ResponseWriter, r *http.Request) {
	var req ProbeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	// Validation
	if req.NumHops < 1 || req.NumHops > 10000 {
		http.Error(w, "num_hops must be between 1 and 10000", http.StatusBadRequest)
		return
	}
	if req.NumChannels < 1 || req.NumChannels > 20 {
		http.Error(w, "num_channels must be between 1 and 20", http.StatusBadRequest)
		return
	}
	if req.MinCapacity < 1 || req.MaxCapacity < req.MinCapacity {
		http.Error(w, "invalid capacity range", http.StatusBadRequest)
		return
	}
	if req.ProbabilityBidirectional < 0 || req.ProbabilityBidirectional > 1 {
		http.Error(w, "probability_bidirectional must be between 0 and 1", http.StatusBadRequest)
		return
	}

	seed := req.Seed
	if seed == 0 {
		seed = time.Now().UnixNano()
	}
	cfg := synthetic.Config{
		MinChannels:              req.NumChannels,
		MaxChannels:              req.NumChannels,
		MinCapacity:              req.MinCapacity,
		MaxCapacity:              req.MaxCapacity,
		ProbabilityBidirectional: req.ProbabilityBidirectional,
	}

	// Identical seeds give both strategies identical hop populations.
	cfg.Rand = rand.New(rand.NewSource(seed))
	naiveHops, err := synthetic.GenerateHops(req.NumHops, cfg)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	cfg.Rand = rand.New(rand.NewSource(seed))
	optimalHops, err := synthetic.GenerateHops(req.NumHops, cfg)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	naive := probing.ProbeHopsIsolated(naiveHops, true, req.Jamming)
	optimal := probing.ProbeHopsIsolated(optimalHops, false, req.Jamming)
	s.metrics.probesSimulated.Add(float64(naive.TotalProbes + naive.TotalJams + optimal.TotalProbes + optimal.TotalJams))

	response := ProbeResponse{
		Naive:   methodResult(naive),
		Optimal: methodResult(optimal),
		Seed:    seed,
	}

	if s.store != nil {
		ctx, cancel := context.WithTimeout(r.Context(), 10*time.Second)
		defer cancel()
		err := s.store.InsertRunResults(ctx, []experiment.RunResult{{
			Scenario: "api",
			Run:      0,
			Naive:    naive,
			Optimal:  optimal,
		}})
		if err != nil {
			log.Printf("Failed to persist run results: %v", err)
		}
	}

	s.metrics.requestsTotal.WithLabelValues("/api/v1/probe", "200").Inc()
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(response)
}

func methodResult(r probing.BatchResult) MethodResult {
	return MethodResult{
		GainRatio:    r.GainRatio,
		ProbingSpeed: r.ProbingSpeed,
		TotalProbes:  r.TotalProbes,
		TotalJams:    r.TotalJams,
		InitialBits:  r.InitialBits,
		ResolvedBits: r.ResolvedBits,
	}
}

// HandleGetRuns returns recent stored runs for a scenario.
func (s *APIServer) HandleGetRuns(w http.ResponseWriter, r *http.Request) {
	if s.store == nil {
		http.Error(w, "Persistence is not configured", http.StatusServiceUnavailable)
		return
	}
	scenario := mux.Vars(r)["scenario"]

	ctx, cancel := context.WithTimeout(r.Context(), 30*time.Second)
	defer cancel()

	runs, err := s.store.RecentRuns(ctx, scenario, 200)
	if err != nil {
		log.Printf("Failed to fetch runs: %v", err)
		http.Error(w, "Internal server error", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(runs)
}

func main() {
	// Persistence is optional: without a reachable database the server
	// still serves simulations.
	var store *storage.PostgresStore
	if getEnv("DB_DISABLE", "") == "" {
		dbConfig := storage.Config{
			Host:     getEnv("DB_HOST", "localhost"),
			Port:     getEnvInt("DB_PORT", 5432),
			User:     getEnv("DB_USER", "postgres"),
			Password: getEnv("DB_PASSWORD", "postgres"),
			Database: getEnv("DB_NAME", "probing_db"),
			SSLMode:  getEnv("DB_SSLMODE", "disable"),
		}
		var err error
		store, err = storage.NewPostgresStore(dbConfig)
		if err != nil {
			log.Printf("Database unavailable, running without persistence: %v", err)
		} else {
			defer store.Close()
		}
	}

	server := NewAPIServer(store)

	// Setup router
	r := mux.NewRouter()
	r.Use(server.rateLimitMiddleware)
	r.Use(server.metricsMiddleware)

	// API endpoints
	r.HandleFunc("/health", server.HandleHealth).Methods("GET")
	r.HandleFunc("/api/v1/probe", server.HandleProbe).Methods("POST")
	r.HandleFunc("/api/v1/runs/{scenario}", server.HandleGetRuns).Methods("GET")

	// Prometheus metrics endpoint
	r.Handle("/metrics", promhttp.Handler())

	// HTTP server
	port := getEnv("PORT", "8080")
	srv := &http.Server{
		Addr:         ":" + port,
		Handler:      r,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Graceful shutdown
	go func() {
		log.Printf("API server listening on :%s", port)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Server failed: %v", err)
		}
	}()

	// Wait for interrupt signal
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	<-sigChan

	log.Println("Shutting down server...")
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		log.Fatalf("Server shutdown failed: %v", err)
	}

	log.Println("Server stopped")
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}
