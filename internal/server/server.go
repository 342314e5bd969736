package server

import (
	"context"
	"encoding/json"
	"fmt"
	"math/rand"
	"net/http"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/evolvekit/evolvekit/internal/config"
	"github.com/evolvekit/evolvekit/internal/evolution"
	"github.com/evolvekit/evolvekit/internal/evolution/adaptive"
	"github.com/evolvekit/evolvekit/internal/logging"
)

// Logger defines the logging interface used by the server.
// This allows us to be flexible with our logging implementation.
type Logger interface {
	Debug(msg string, fields ...map[string]interface{})
	Info(msg string, fields ...map[string]interface{})
	Warn(msg string, fields ...map[string]interface{})
	Error(msg string, fields ...map[string]interface{})
	Fatal(msg string, fields ...map[string]interface{})
	WithFields(fields map[string]interface{}) *logging.Logger
}

// RunState tracks one adaptive evolution run. The state is updated by the
// run goroutine and read by status handlers; access goes through the
// server's mutex.
type RunState struct {
	ID              string
	Status          string // "pending", "running", "completed", "failed", "cancelled"
	StartTime       time.Time
	EndTime         *time.Time
	Generation      int
	BestFitness     float64
	FitnessVariance float64
	Mode            string
	Rebuilds        int
	Error           string
	CancelFunc      context.CancelFunc
	LastUpdated     time.Time
}

// RunRequest is the body of POST /api/v1/runs.
type RunRequest struct {
	// Objective selects a built-in benchmark: "sphere" or "rastrigin".
	Objective string `json:"objective"`
	// Bounds give the per-gene search interval.
	Bounds [][2]float64 `json:"bounds"`

	PopulationSize int     `json:"population_size,omitempty"`
	Generations    int     `json:"generations,omitempty"`
	VarianceMin    float64 `json:"variance_min,omitempty"`
	VarianceMax    float64 `json:"variance_max,omitempty"`
	Seed           int64   `json:"seed,omitempty"`
}

// Server manages adaptive evolution runs and provides endpoints to start,
// monitor, and cancel them.
type Server struct {
	cfg    *config.Config
	logger Logger

	runs   map[string]*RunState
	runsMu sync.RWMutex // Protects the runs map
}

// NewServer creates a new server instance with the given config and logger.
func NewServer(cfg *config.Config, logger Logger) *Server {
	return &Server{
		cfg:    cfg,
		logger: logger,
		runs:   make(map[string]*RunState),
	}
}

// RegisterRoutes mounts the run API on the given router.
func (s *Server) RegisterRoutes(r chi.Router) {
	r.Route("/api/v1", func(r chi.Router) {
		r.Post("/runs", s.handleStartRun)
		r.Get("/runs/{id}", s.handleRunStatus)
		r.Delete("/runs/{id}", s.handleCancelRun)
	})
}

// handleStartRun starts a new adaptive evolution run.
func (s *Server) handleStartRun(w http.ResponseWriter, r *http.Request) {
	var req RunRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.respondError(w, http.StatusBadRequest, fmt.Sprintf("invalid request body: %v", err))
		return
	}

	s.applyDefaults(&req)

	objective, err := lookupObjective(req.Objective)
	if err != nil {
		s.respondError(w, http.StatusBadRequest, err.Error())
		return
	}
	if len(req.Bounds) == 0 {
		s.respondError(w, http.StatusBadRequest, "bounds are required")
		return
	}

	policy, err := s.buildPolicy(req, objective)
	if err != nil {
		s.respondError(w, http.StatusBadRequest, err.Error())
		return
	}

	engine, err := adaptive.New(policy)
	if err != nil {
		s.respondError(w, http.StatusInternalServerError, err.Error())
		return
	}

	id := fmt.Sprintf("run_%d", time.Now().UnixNano())
	ctx, cancel := context.WithCancel(context.Background())

	state := &RunState{
		ID:          id,
		Status:      "pending",
		StartTime:   time.Now(),
		Mode:        policy.Mode(),
		CancelFunc:  cancel,
		LastUpdated: time.Now(),
	}

	s.runsMu.Lock()
	s.runs[id] = state
	s.runsMu.Unlock()

	runsStarted.Inc()
	go s.executeRun(ctx, state, engine, policy, req)

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusAccepted)
	json.NewEncoder(w).Encode(map[string]string{
		"run_id": id,
		"status": "pending",
	})
}

// handleRunStatus reports the current state of a run.
func (s *Server) handleRunStatus(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if id == "" {
		s.respondError(w, http.StatusBadRequest, "missing run ID")
		return
	}

	s.runsMu.RLock()
	state, exists := s.runs[id]
	if !exists {
		s.runsMu.RUnlock()
		s.respondError(w, http.StatusNotFound, "run not found")
		return
	}

	response := map[string]interface{}{
		"status":           state.Status,
		"generation":       state.Generation,
		"best_fitness":     state.BestFitness,
		"fitness_variance": state.FitnessVariance,
		"mode":             state.Mode,
		"rebuilds":         state.Rebuilds,
		"start_time":       state.StartTime.Format(time.RFC3339),
		"last_update":      state.LastUpdated.Format(time.RFC3339),
	}
	if state.EndTime != nil {
		response["end_time"] = state.EndTime.Format(time.RFC3339)
	}
	if state.Error != "" {
		response["error"] = state.Error
	}
	s.runsMu.RUnlock()

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(response)
}

// handleCancelRun cancels a running evolution run.
func (s *Server) handleCancelRun(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if id == "" {
		s.respondError(w, http.StatusBadRequest, "missing run ID")
		return
	}

	s.runsMu.Lock()
	defer s.runsMu.Unlock()

	state, exists := s.runs[id]
	if !exists {
		s.respondError(w, http.StatusNotFound, "run not found")
		return
	}

	switch state.Status {
	case "completed", "failed", "cancelled":
		s.respondError(w, http.StatusBadRequest,
			fmt.Sprintf("cannot cancel run with status: %s", state.Status))
		return
	}

	if state.CancelFunc != nil {
		state.CancelFunc()
	}

	state.Status = "cancelled"
	now := time.Now()
	state.EndTime = &now
	state.LastUpdated = now

	s.logger.Info("Run cancelled", map[string]interface{}{"run_id": id})

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]string{"status": "cancellation requested"})
}

// executeRun pulls the adaptive stream until the generation budget is
// reached, the context is cancelled, or an error terminates the sequence.
func (s *Server) executeRun(
	ctx context.Context,
	state *RunState,
	engine *adaptive.AdaptiveEngine,
	policy *adaptive.VariancePolicy,
	req RunRequest,
) {
	s.setStatus(state, "running")

	rng := rand.New(rand.NewSource(req.Seed))
	stream := engine.Stream(func() evolution.Start {
		return evolution.NewRandomStart(rng, req.Bounds, req.PopulationSize)
	})

	lastRebuilds := 0
	var runErr error

	for i := 0; i < req.Generations; i++ {
		result, err := stream.Next(ctx)
		if err != nil {
			runErr = err
			break
		}
		if result == nil {
			break
		}

		generationsEvolved.Inc()
		if d := policy.Rebuilds() - lastRebuilds; d > 0 {
			engineRebuilds.Add(float64(d))
			lastRebuilds = policy.Rebuilds()
		}

		moments := result.FitnessMoments()
		s.runsMu.Lock()
		state.Generation = result.Generation
		state.BestFitness = result.Best().Fitness
		state.FitnessVariance = moments.Variance()
		state.Mode = policy.Mode()
		state.Rebuilds = policy.Rebuilds()
		state.LastUpdated = time.Now()
		s.runsMu.Unlock()
	}

	s.runsMu.Lock()
	defer s.runsMu.Unlock()

	// Cancellation already moved the run to a terminal state.
	if state.Status == "cancelled" {
		runsCompleted.WithLabelValues("cancelled").Inc()
		return
	}

	if runErr != nil {
		s.logger.Error("Run failed", map[string]interface{}{
			"run_id": state.ID,
			"error":  runErr.Error(),
		})
		state.Status = "failed"
		state.Error = runErr.Error()
		runsCompleted.WithLabelValues("failed").Inc()
	} else {
		s.logger.Info("Run completed", map[string]interface{}{
			"run_id":       state.ID,
			"generation":   state.Generation,
			"best_fitness": state.BestFitness,
			"rebuilds":     state.Rebuilds,
		})
		state.Status = "completed"
		runsCompleted.WithLabelValues("completed").Inc()
	}

	now := time.Now()
	state.EndTime = &now
	state.LastUpdated = now
}

// buildPolicy assembles the variance-hysteresis policy for one run: a
// narrow, exploitative configuration and an enlarged, explorative one that
// differ only in their mutation pressure.
func (s *Server) buildPolicy(req RunRequest, objective evolution.FitnessFunc) (*adaptive.VariancePolicy, error) {
	variance, err := adaptive.NewVarianceRange(req.VarianceMin, req.VarianceMax)
	if err != nil {
		return nil, err
	}

	zapLogger := logging.NewZapLogger(s.logger.WithFields(map[string]interface{}{
		"component": "evolution",
	}))

	base := evolution.Config{
		Fitness:        evolution.Minimizing(objective),
		Bounds:         req.Bounds,
		PopulationSize: req.PopulationSize,
		EliteCount:     1 + req.PopulationSize/20,
		Crossover:      evolution.NewBlendCrossover(0.3),
		Selector:       evolution.NewTournamentSelector(3),
		Workers:        s.cfg.Evolution.Workers,
		Seed:           req.Seed,
		Logger:         zapLogger,
	}

	narrow := base
	narrow.Mutator = evolution.NewGaussianMutator(0.1, 0.1)
	enlarge := base
	enlarge.Mutator = evolution.NewGaussianMutator(0.5, 1.0)

	return adaptive.ByFitnessVariance(variance, narrow, enlarge)
}

func (s *Server) applyDefaults(req *RunRequest) {
	if req.PopulationSize <= 0 {
		req.PopulationSize = s.cfg.Evolution.PopulationSize
	}
	if req.Generations <= 0 {
		req.Generations = s.cfg.Evolution.Generations
	}
	if req.VarianceMin == 0 && req.VarianceMax == 0 {
		req.VarianceMin = s.cfg.Evolution.VarianceMin
		req.VarianceMax = s.cfg.Evolution.VarianceMax
	}
	if req.Seed == 0 {
		req.Seed = time.Now().UnixNano()
	}
}

func lookupObjective(name string) (evolution.FitnessFunc, error) {
	switch name {
	case "sphere":
		return evolution.Sphere, nil
	case "rastrigin":
		return evolution.Rastrigin, nil
	default:
		return nil, fmt.Errorf("unknown objective %q", name)
	}
}

func (s *Server) setStatus(state *RunState, status string) {
	s.runsMu.Lock()
	defer s.runsMu.Unlock()
	if state.Status != "cancelled" {
		state.Status = status
		state.LastUpdated = time.Now()
	}
}

// respondError sends a JSON error response.
func (s *Server) respondError(w http.ResponseWriter, code int, message string) {
	s.logger.Error("Request error", map[string]interface{}{
		"status":  code,
		"message": message,
	})

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(map[string]string{"error": message})
}

// Close cancels all running evolution runs.
func (s *Server) Close() error {
	s.runsMu.Lock()
	defer s.runsMu.Unlock()

	for _, run := range s.runs {
		if run.CancelFunc != nil {
			run.CancelFunc()
		}
	}
	return nil
}
