package api

import (
	"context"
	"net/http"
	"time"

	"predictor/service"

	"github.com/gorilla/mux"
	"github.com/rs/cors"
	log "github.com/sirupsen/logrus"
)

// HealthChecker reports whether a backing dependency is reachable
type HealthChecker interface {
	Healthy(ctx context.Context) error
}

// Services bundles the service layer the HTTP API exposes
type Services struct {
	Predictions service.PredictionService
	Bets        service.BetService
	Settlement  service.SettlementService
	Leaderboard service.LeaderboardService
}

// Options tunes the HTTP surface
type Options struct {
	CORSOrigins        []string
	RateLimitPerSecond float64
	RateLimitBurst     int
}

// Server serves the prediction API over HTTP/JSON
type Server struct {
	services Services
	health   HealthChecker
	limiter  *callerLimiter
	opts     Options
}

// NewServer creates a new API server
func NewServer(services Services, health HealthChecker, opts Options) *Server {
	return &Server{
		services: services,
		health:   health,
		limiter:  newCallerLimiter(opts.RateLimitPerSecond, opts.RateLimitBurst),
		opts:     opts,
	}
}

// Handler builds the routed, CORS-wrapped handler
func (s *Server) Handler() http.Handler {
	r := mux.NewRouter()
	r.NotFoundHandler = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		writeError(w, r, service.NotFoundError("no route for %s %s", r.Method, r.URL.Path))
	})
	r.MethodNotAllowedHandler = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusMethodNotAllowed, errorResponse{Error: errorBody{Kind: "method_not_allowed", Message: "method not allowed"}})
	})

	r.HandleFunc("/healthz", s.handleHealth).Methods(http.MethodGet)

	v1 := r.PathPrefix("/api/v1").Subrouter()
	v1.Use(identityMiddleware, s.rateLimitMiddleware)

	v1.HandleFunc("/predictions", s.handleListPredictions).Methods(http.MethodGet)
	v1.HandleFunc("/predictions", s.handleCreatePrediction).Methods(http.MethodPost)
	v1.HandleFunc("/predictions/{id}", s.handleGetPrediction).Methods(http.MethodGet)
	v1.HandleFunc("/predictions/{id}", s.handleUpdatePrediction).Methods(http.MethodPatch)
	v1.HandleFunc("/predictions/{id}", s.handleDeletePrediction).Methods(http.MethodDelete)
	v1.HandleFunc("/predictions/{id}/status", s.handleSetStatus).Methods(http.MethodPut)
	v1.HandleFunc("/predictions/{id}/bet", s.handleGetBet).Methods(http.MethodGet)
	v1.HandleFunc("/predictions/{id}/bet", s.handlePlaceBet).Methods(http.MethodPut)
	v1.HandleFunc("/predictions/{id}/bet", s.handleWithdrawBet).Methods(http.MethodDelete)
	v1.HandleFunc("/predictions/{id}/reveal", s.handleReveal).Methods(http.MethodPost)
	v1.HandleFunc("/leaderboard", s.handleLeaderboard).Methods(http.MethodGet)
	v1.HandleFunc("/users/{userID}/stats", s.handleUserStatistics).Methods(http.MethodGet)
	v1.HandleFunc("/admin/recompute", s.handleRecomputeAll).Methods(http.MethodPost)
	v1.HandleFunc("/admin/users/{userID}/recompute", s.handleRecomputeUser).Methods(http.MethodPost)

	origins := s.opts.CORSOrigins
	if len(origins) == 0 {
		origins = []string{"*"}
	}
	c := cors.New(cors.Options{
		AllowedOrigins: origins,
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodPatch, http.MethodDelete},
		AllowedHeaders: []string{"Content-Type", headerUserID, headerUserAdmin},
	})

	return logRequests(c.Handler(r))
}

// NewHTTPServer wraps the handler in an http.Server with conservative timeouts
func (s *Server) NewHTTPServer(addr string) *http.Server {
	return &http.Server{
		Addr:              addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       60 * time.Second,
	}
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()

	if s.health != nil {
		if err := s.health.Healthy(ctx); err != nil {
			log.WithError(err).Warn("Health check failed")
			writeJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "unavailable"})
			return
		}
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}
