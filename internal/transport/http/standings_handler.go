package http

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"sync"

	"advent-ranking-service/internal/app"
	"advent-ranking-service/internal/domain"
)

// StandingsProvider serves the current scoreboard for a period; in
// production it is the redis cache in front of the result service.
type StandingsProvider interface {
	Standings(ctx context.Context, period domain.Period) (domain.Standings, error)
}

// Calculator recomputes and persists results for a period.
type Calculator interface {
	CalculateWeeklyResults(ctx context.Context, week int) (app.Report, error)
	CalculateFinalResults(ctx context.Context) (app.Report, error)
}

// Invalidator drops cached standings after a recomputation.
type Invalidator interface {
	Invalidate(ctx context.Context, periods ...domain.Period) error
}

// Handler exposes the standings read model and the calculation trigger.
type Handler struct {
	provider   StandingsProvider
	calculator Calculator
	cache      Invalidator
	hub        *app.StandingsHub

	// calcMu serializes calculation runs; concurrent triggers get 409.
	calcMu sync.Mutex
}

// NewHandler wires the HTTP surface. cache and hub may be nil (demo mode,
// tests without redis or websocket clients).
func NewHandler(provider StandingsProvider, calculator Calculator, cache Invalidator, hub *app.StandingsHub) *Handler {
	return &Handler{
		provider:   provider,
		calculator: calculator,
		cache:      cache,
		hub:        hub,
	}
}

// Register mounts the handler's routes on mux.
func (h *Handler) Register(mux *http.ServeMux) {
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	mux.HandleFunc("/standings", h.ServeStandings)
	mux.HandleFunc("/calculate", h.ServeCalculate)
}

// ServeStandings handles GET /standings?period=week1|week2|final.
func (h *Handler) ServeStandings(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	period, err := domain.ParsePeriod(r.URL.Query().Get("period"))
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	standings, err := h.provider.Standings(r.Context(), period)
	if err != nil {
		log.Printf("http: standings %s: %v", period, err)
		http.Error(w, "failed to load standings", http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, standings)
}

type userFailureResponse struct {
	UserID string `json:"userId"`
	Error  string `json:"error"`
}

type reportResponse struct {
	Period domain.Period         `json:"period"`
	Saved  []string              `json:"saved"`
	Failed []userFailureResponse `json:"failed,omitempty"`
}

// ServeCalculate handles POST /calculate?period=week1|week2|final. Only one
// run may be in flight at a time.
func (h *Handler) ServeCalculate(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	period, err := domain.ParsePeriod(r.URL.Query().Get("period"))
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	if !h.calcMu.TryLock() {
		http.Error(w, "calculation already running", http.StatusConflict)
		return
	}
	defer h.calcMu.Unlock()

	var report app.Report
	switch period {
	case domain.Final:
		report, err = h.calculator.CalculateFinalResults(r.Context())
	default:
		report, err = h.calculator.CalculateWeeklyResults(r.Context(), period.WeekNumber())
	}
	if err != nil {
		log.Printf("http: calculate %s: %v", period, err)
		if errors.Is(err, domain.ErrUnknownPeriod) || errors.Is(err, domain.ErrInvalidSchedule) {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		http.Error(w, "calculation failed", http.StatusInternalServerError)
		return
	}

	h.publish(r.Context(), period)

	resp := reportResponse{Period: report.Period, Saved: report.Saved}
	for _, f := range report.Failed {
		resp.Failed = append(resp.Failed, userFailureResponse{UserID: f.UserID, Error: f.Err.Error()})
	}
	writeJSON(w, http.StatusOK, resp)
}

// publish drops the stale cache entry and pushes the fresh scoreboard to
// websocket subscribers.
func (h *Handler) publish(ctx context.Context, period domain.Period) {
	if h.cache != nil {
		if err := h.cache.Invalidate(ctx, period); err != nil {
			log.Printf("http: invalidate %s: %v", period, err)
		}
	}
	if h.hub == nil {
		return
	}
	standings, err := h.provider.Standings(ctx, period)
	if err != nil {
		log.Printf("http: refresh %s for broadcast: %v", period, err)
		return
	}
	h.hub.Broadcast(standings)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Printf("http: encode response: %v", err)
	}
}
