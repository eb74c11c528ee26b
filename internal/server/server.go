// Package server declares HTTP contracts and route registration for the
// scoring API.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/okian/verif/internal/app"
	"github.com/okian/verif/pkg/logger"
	"github.com/okian/verif/pkg/metrics"
	"github.com/okian/verif/pkg/score"
)

// Evaluator bundles the scoring operations the HTTP layer depends on. Using
// an interface keeps the handlers loosely coupled to the app package.
type Evaluator interface {
	CRPSEnsemble(ctx context.Context, req app.EnsembleRequest) (app.Result, error)
	CRPSQuantile(ctx context.Context, req app.QuantileRequest) (app.Result, error)
	CRPSDistribution(ctx context.Context, req app.DistRequest) (app.Result, error)
	Brier(ctx context.Context, req app.BrierRequest) (app.Result, error)
}

// Server wires HTTP routes for the scoring API.
type Server struct {
	deps Evaluator
	log  logger.Logger
}

// Option applies a configuration option to the Server.
type Option func(*Server)

// WithLogger sets the request logger.
func WithLogger(l logger.Logger) Option {
	return func(s *Server) {
		if l != nil {
			s.log = l
		}
	}
}

// New creates a server over the given evaluator.
func New(deps Evaluator, opts ...Option) *Server {
	s := &Server{deps: deps}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Register attaches all HTTP routes to mux.
func (s *Server) Register(mux *http.ServeMux) {
	mux.HandleFunc("/healthz", s.handleHealth)
	mux.HandleFunc("/metrics", s.handleMetrics)
	mux.HandleFunc("/v1/scores/crps/ensemble", s.handleEnsemble)
	mux.HandleFunc("/v1/scores/crps/quantile", s.handleQuantile)
	mux.HandleFunc("/v1/scores/crps/normal", s.distHandler("normal"))
	mux.HandleFunc("/v1/scores/crps/lognormal", s.distHandler("lognormal"))
	mux.HandleFunc("/v1/scores/crps/logistic", s.distHandler("logistic"))
	mux.HandleFunc("/v1/scores/crps/exponential", s.distHandler("exponential"))
	mux.HandleFunc("/v1/scores/brier", s.handleBrier)
}

// handleHealth handles GET /healthz requests.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.NotFound(w, r)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// handleMetrics serves the Prometheus registry backing the default Manager.
func (s *Server) handleMetrics(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.NotFound(w, r)
		return
	}
	promhttp.HandlerFor(metrics.GetRegistry(), promhttp.HandlerOpts{}).ServeHTTP(w, r)
}

// handleEnsemble handles POST /v1/scores/crps/ensemble requests.
func (s *Server) handleEnsemble(w http.ResponseWriter, r *http.Request) {
	var req app.EnsembleRequest
	if !s.decode(w, r, &req) {
		return
	}
	s.respond(w, r, func() (app.Result, error) {
		return s.deps.CRPSEnsemble(r.Context(), req)
	})
}

// handleQuantile handles POST /v1/scores/crps/quantile requests.
func (s *Server) handleQuantile(w http.ResponseWriter, r *http.Request) {
	var req app.QuantileRequest
	if !s.decode(w, r, &req) {
		return
	}
	s.respond(w, r, func() (app.Result, error) {
		return s.deps.CRPSQuantile(r.Context(), req)
	})
}

// distHandler handles POST /v1/scores/crps/{family} requests. The family in
// the path wins over any family named in the body.
func (s *Server) distHandler(family string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req app.DistRequest
		if !s.decode(w, r, &req) {
			return
		}
		req.Family = family
		s.respond(w, r, func() (app.Result, error) {
			return s.deps.CRPSDistribution(r.Context(), req)
		})
	}
}

// handleBrier handles POST /v1/scores/brier requests.
func (s *Server) handleBrier(w http.ResponseWriter, r *http.Request) {
	var req app.BrierRequest
	if !s.decode(w, r, &req) {
		return
	}
	s.respond(w, r, func() (app.Result, error) {
		return s.deps.Brier(r.Context(), req)
	})
}

// decode enforces the POST method and parses the JSON body. It writes the
// error response itself and reports whether the handler should continue.
func (s *Server) decode(w http.ResponseWriter, r *http.Request, v any) bool {
	if r.Method != http.MethodPost {
		http.NotFound(w, r)
		return false
	}
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", fmt.Errorf("%w: %w", ErrDecode, err))
		return false
	}
	return true
}

// respond runs the evaluation and writes the result or a classified error.
func (s *Server) respond(w http.ResponseWriter, r *http.Request, eval func() (app.Result, error)) {
	res, err := eval()
	if err != nil {
		status, code := classify(err)
		if s.log != nil && status == http.StatusInternalServerError {
			s.log.Error(r.Context(), "evaluation failed",
				logger.String("path", r.URL.Path), logger.Error(err))
		}
		writeError(w, status, code, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

// badRequest lists the sentinel kinds reported back as client errors.
var badRequest = []error{
	app.ErrEmptyBatch,
	app.ErrBatchTooLarge,
	app.ErrRaggedForecast,
	app.ErrUnknownVariant,
	app.ErrUnknownWeight,
	app.ErrUnknownFamily,
	app.ErrLengthMismatch,
	score.ErrUnknownEstimator,
	score.ErrEstimatorMismatch,
	score.ErrShapeMismatch,
	score.ErrQuantileMismatch,
	score.ErrInvalidParameter,
	score.ErrInvalidProbability,
	score.ErrInvalidOutcome,
	score.ErrNilFunction,
}

// classify maps evaluation errors to an HTTP status and response code.
func classify(err error) (int, string) {
	for _, kind := range badRequest {
		if errors.Is(err, kind) {
			return http.StatusBadRequest, "bad_request"
		}
	}
	return http.StatusInternalServerError, "internal_error"
}

type errorResponse struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, code string, err error) {
	msg := http.StatusText(status)
	if err != nil {
		msg = err.Error()
	}
	writeJSON(w, status, errorResponse{Code: code, Message: msg})
}
