// Package app provides the evaluation service wiring the scoring engine to
// transport layers: request validation, chunked parallel evaluation, and
// instrumentation.
package app

import (
	"context"
	"fmt"
	"runtime"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"
	"gonum.org/v1/gonum/stat"

	"github.com/okian/verif/pkg/backend"
	"github.com/okian/verif/pkg/logger"
	"github.com/okian/verif/pkg/metrics"
	"github.com/okian/verif/pkg/score"
)

// Service evaluates scoring requests against the engine. It holds no request
// state; all computation is per-call and safe for concurrent use.
type Service struct {
	backend          backend.Backend
	log              logger.Logger
	metrics          *metrics.Manager
	workerCount      int
	chunkSize        int
	maxBatchSize     int
	defaultEstimator score.Estimator
}

// Option applies a configuration option to the Service.
type Option func(*Service)

// WithBackend sets the array backend used for evaluation.
func WithBackend(b backend.Backend) Option {
	return func(s *Service) {
		if b != nil {
			s.backend = b
		}
	}
}

// WithLogger sets a custom logger for the service.
func WithLogger(l logger.Logger) Option {
	return func(s *Service) {
		if l != nil {
			s.log = l
		}
	}
}

// WithMetrics sets the metrics manager.
func WithMetrics(m *metrics.Manager) Option {
	return func(s *Service) {
		if m != nil {
			s.metrics = m
		}
	}
}

// WithWorkerCount bounds concurrent chunk evaluation within one request.
func WithWorkerCount(count int) Option {
	return func(s *Service) {
		if count > 0 {
			s.workerCount = count
		}
	}
}

// WithChunkSize sets the number of batch rows handed to one worker.
func WithChunkSize(size int) Option {
	return func(s *Service) {
		if size > 0 {
			s.chunkSize = size
		}
	}
}

// WithMaxBatchSize caps the total element count accepted per request.
func WithMaxBatchSize(size int) Option {
	return func(s *Service) {
		if size > 0 {
			s.maxBatchSize = size
		}
	}
}

// WithDefaultEstimator sets the estimator applied when a request names none.
func WithDefaultEstimator(e score.Estimator) Option {
	return func(s *Service) {
		s.defaultEstimator = e
	}
}

// New constructs a Service with default configuration.
func New(opts ...Option) *Service {
	s := &Service{
		backend:          backend.Native{},
		workerCount:      runtime.NumCPU(),
		chunkSize:        1024,
		maxBatchSize:     10_000_000,
		defaultEstimator: score.EstimatorPWM,
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.metrics == nil {
		s.metrics = metrics.New(metrics.WithRegistry(metrics.GetRegistry()))
	}
	return s
}

// EnsembleRequest scores observations against per-row ensemble members.
type EnsembleRequest struct {
	Observations []float64   `json:"observations"`
	Forecasts    [][]float64 `json:"forecasts"`
	Estimator    string      `json:"estimator,omitempty"`
	Sorted       bool        `json:"sorted,omitempty"`

	// Variant selects a weighted form: "", "tw", "ow", or "vr".
	Variant string `json:"variant,omitempty"`

	// Weight parameterizes the chaining/weight function for weighted
	// variants; ignored otherwise.
	Weight *WeightSpec `json:"weight,omitempty"`
}

// QuantileRequest scores observations against quantile forecasts at fixed
// probability levels shared across the batch.
type QuantileRequest struct {
	Observations []float64   `json:"observations"`
	Forecasts    [][]float64 `json:"forecasts"`
	Alpha        []float64   `json:"alpha"`
}

// DistRequest scores observations against closed-form distribution forecasts.
// Location and Scale parameterize normal/lognormal/logistic families; Rate
// parameterizes the exponential family. Each is either one shared value or
// one value per observation.
type DistRequest struct {
	Family       string    `json:"family"`
	Observations []float64 `json:"observations"`
	Location     []float64 `json:"location,omitempty"`
	Scale        []float64 `json:"scale,omitempty"`
	Rate         []float64 `json:"rate,omitempty"`
}

// BrierRequest scores probability forecasts of binary outcomes.
type BrierRequest struct {
	Forecasts    []float64 `json:"forecasts"`
	Observations []float64 `json:"observations"`
}

// Result carries the per-row scores of one evaluation run.
type Result struct {
	RunID  string    `json:"run_id"`
	Scores []float64 `json:"scores"`
	Mean   float64   `json:"mean"`
}

// WeightSpec names a function from the fixed chaining/weight catalogue:
// "above" emphasises outcomes above the threshold, "below" outcomes under it.
type WeightSpec struct {
	Type      string  `json:"type"`
	Threshold float64 `json:"t"`
}

// chaining resolves the chaining function for the threshold-weighted CRPS:
// values are projected onto the emphasised region.
func (w WeightSpec) chaining() (score.ChainingFunc, error) {
	t := w.Threshold
	switch w.Type {
	case "above":
		return func(x float64) float64 { return max(x, t) }, nil
	case "below":
		return func(x float64) float64 { return min(x, t) }, nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownWeight, w.Type)
	}
}

// weight resolves the indicator weight function for the outcome-weighted and
// vertically re-scaled CRPS.
func (w WeightSpec) weight() (score.WeightFunc, error) {
	t := w.Threshold
	switch w.Type {
	case "above":
		return func(x float64) float64 {
			if x > t {
				return 1
			}
			return 0
		}, nil
	case "below":
		return func(x float64) float64 {
			if x < t {
				return 1
			}
			return 0
		}, nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownWeight, w.Type)
	}
}

// CRPSEnsemble evaluates an ensemble request, splitting large batches into
// chunks scored concurrently. Row order of the result matches the request.
func (s *Service) CRPSEnsemble(ctx context.Context, req EnsembleRequest) (Result, error) {
	start := time.Now()
	rule := "crps_ensemble"
	if req.Variant != "" {
		rule = req.Variant + "crps_ensemble"
	}

	n := len(req.Observations)
	members, err := s.checkEnsemble(req.Observations, req.Forecasts)
	if err != nil {
		s.metrics.RecordFailure(rule, "configuration")
		return Result{}, err
	}
	estimator := s.defaultEstimator
	if req.Variant == "ow" || req.Variant == "vr" {
		// Weighted forms only support the energy estimator.
		estimator = score.EstimatorNRG
	}
	if req.Estimator != "" {
		estimator, err = score.ParseEstimator(req.Estimator)
		if err != nil {
			s.metrics.RecordFailure(rule, "configuration")
			return Result{}, err
		}
	}

	scores := make([]float64, n)
	err = s.chunked(ctx, n, func(lo, hi int) error {
		obs := s.backend.FromSlice(req.Observations[lo:hi])
		fct := s.backend.FromSlice(flatten(req.Forecasts[lo:hi], members), hi-lo, members)
		res, err := s.evalEnsembleVariant(req, obs, fct, estimator)
		if err != nil {
			return err
		}
		copy(scores[lo:hi], res.Data())
		return nil
	})
	if err != nil {
		s.metrics.RecordFailure(rule, "configuration")
		return Result{}, err
	}

	result := s.finish(ctx, rule, estimator.String(), scores, start)
	return result, nil
}

func (s *Service) evalEnsembleVariant(req EnsembleRequest, obs, fct backend.Array, estimator score.Estimator) (backend.Array, error) {
	opts := []score.Option{score.WithEstimator(estimator)}
	if req.Sorted {
		opts = append(opts, score.WithSortedEnsemble())
	}
	switch req.Variant {
	case "":
		return score.CRPSEnsemble(s.backend, obs, fct, opts...)
	case "tw":
		if req.Weight == nil {
			return nil, fmt.Errorf("%w: weighted variant needs a weight spec", ErrUnknownWeight)
		}
		v, err := req.Weight.chaining()
		if err != nil {
			return nil, err
		}
		return score.TWCRPSEnsemble(s.backend, obs, fct, v, opts...)
	case "ow", "vr":
		if req.Weight == nil {
			return nil, fmt.Errorf("%w: weighted variant needs a weight spec", ErrUnknownWeight)
		}
		w, err := req.Weight.weight()
		if err != nil {
			return nil, err
		}
		if req.Variant == "ow" {
			return score.OWCRPSEnsemble(s.backend, obs, fct, w, score.WithEstimator(estimator))
		}
		return score.VRCRPSEnsemble(s.backend, obs, fct, w, score.WithEstimator(estimator))
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownVariant, req.Variant)
	}
}

// CRPSQuantile evaluates a quantile-forecast request.
func (s *Service) CRPSQuantile(ctx context.Context, req QuantileRequest) (Result, error) {
	start := time.Now()
	rule := "crps_quantile"

	levels, err := s.checkEnsemble(req.Observations, req.Forecasts)
	if err != nil {
		s.metrics.RecordFailure(rule, "configuration")
		return Result{}, err
	}

	n := len(req.Observations)
	alpha := s.backend.FromSlice(req.Alpha)
	scores := make([]float64, n)
	err = s.chunked(ctx, n, func(lo, hi int) error {
		obs := s.backend.FromSlice(req.Observations[lo:hi])
		fct := s.backend.FromSlice(flatten(req.Forecasts[lo:hi], levels), hi-lo, levels)
		res, err := score.CRPSQuantile(s.backend, obs, fct, alpha)
		if err != nil {
			return err
		}
		copy(scores[lo:hi], res.Data())
		return nil
	})
	if err != nil {
		s.metrics.RecordFailure(rule, "configuration")
		return Result{}, err
	}

	return s.finish(ctx, rule, "", scores, start), nil
}

// CRPSDistribution evaluates a closed-form request for one family.
func (s *Service) CRPSDistribution(ctx context.Context, req DistRequest) (Result, error) {
	start := time.Now()
	rule := "crps_" + req.Family

	n := len(req.Observations)
	if n == 0 {
		s.metrics.RecordFailure(rule, "configuration")
		return Result{}, ErrEmptyBatch
	}
	obs := s.backend.FromSlice(req.Observations)

	var (
		res backend.Array
		err error
	)
	switch req.Family {
	case "normal", "lognormal", "logistic":
		loc, locErr := s.paramArray(req.Location, n)
		scale, scaleErr := s.paramArray(req.Scale, n)
		if locErr != nil || scaleErr != nil {
			s.metrics.RecordFailure(rule, "configuration")
			if locErr != nil {
				return Result{}, locErr
			}
			return Result{}, scaleErr
		}
		switch req.Family {
		case "normal":
			res, err = score.CRPSNormal(s.backend, obs, loc, scale)
		case "lognormal":
			res, err = score.CRPSLognormal(s.backend, obs, loc, scale)
		default:
			res, err = score.CRPSLogistic(s.backend, obs, loc, scale)
		}
	case "exponential":
		rate, rateErr := s.paramArray(req.Rate, n)
		if rateErr != nil {
			s.metrics.RecordFailure(rule, "configuration")
			return Result{}, rateErr
		}
		res, err = score.CRPSExponential(s.backend, obs, rate)
	default:
		s.metrics.RecordFailure(rule, "configuration")
		return Result{}, fmt.Errorf("%w: %q", ErrUnknownFamily, req.Family)
	}
	if err != nil {
		s.metrics.RecordFailure(rule, "configuration")
		return Result{}, err
	}

	return s.finish(ctx, rule, "", broadcastScores(res, n), start), nil
}

// Brier evaluates a Brier-score request.
func (s *Service) Brier(ctx context.Context, req BrierRequest) (Result, error) {
	start := time.Now()
	rule := "brier"

	n := len(req.Observations)
	if n == 0 || len(req.Forecasts) == 0 {
		s.metrics.RecordFailure(rule, "configuration")
		return Result{}, ErrEmptyBatch
	}
	if len(req.Forecasts) != n {
		s.metrics.RecordFailure(rule, "configuration")
		return Result{}, fmt.Errorf("%w: %d forecasts for %d observations",
			ErrLengthMismatch, len(req.Forecasts), n)
	}

	res, err := score.BrierScore(s.backend,
		s.backend.FromSlice(req.Forecasts),
		s.backend.FromSlice(req.Observations))
	if err != nil {
		s.metrics.RecordFailure(rule, "configuration")
		return Result{}, err
	}
	return s.finish(ctx, rule, "", res.Data(), start), nil
}

// chunked runs eval over [0, n) in chunkSize pieces, bounded by workerCount.
// Chunks write into disjoint result ranges, so no synchronization is needed
// beyond the group wait.
func (s *Service) chunked(ctx context.Context, n int, eval func(lo, hi int) error) error {
	if n <= s.chunkSize {
		return eval(0, n)
	}
	g, _ := errgroup.WithContext(ctx)
	g.SetLimit(s.workerCount)
	for lo := 0; lo < n; lo += s.chunkSize {
		hi := min(lo+s.chunkSize, n)
		g.Go(func() error { return eval(lo, hi) })
	}
	return g.Wait()
}

// checkEnsemble validates batch fit and rectangular forecast rows, returning
// the shared row length.
func (s *Service) checkEnsemble(obs []float64, fct [][]float64) (int, error) {
	if len(obs) == 0 || len(fct) == 0 {
		return 0, ErrEmptyBatch
	}
	if len(fct) != len(obs) {
		return 0, fmt.Errorf("%w: %d forecast rows for %d observations",
			ErrLengthMismatch, len(fct), len(obs))
	}
	members := len(fct[0])
	total := 0
	for _, row := range fct {
		if len(row) != members {
			return 0, fmt.Errorf("%w: got rows of %d and %d members", ErrRaggedForecast, members, len(row))
		}
		total += len(row)
	}
	if members == 0 {
		return 0, ErrEmptyBatch
	}
	if total > s.maxBatchSize {
		return 0, fmt.Errorf("%w: %d elements over limit %d", ErrBatchTooLarge, total, s.maxBatchSize)
	}
	return members, nil
}

// paramArray accepts one shared parameter value or one value per row.
func (s *Service) paramArray(vals []float64, n int) (backend.Array, error) {
	switch len(vals) {
	case 1:
		return s.backend.FromScalar(vals[0]), nil
	case n:
		return s.backend.FromSlice(vals), nil
	default:
		return nil, fmt.Errorf("%w: got %d values for %d observations",
			ErrLengthMismatch, len(vals), n)
	}
}

// finish assembles the result, records metrics, and logs the run.
func (s *Service) finish(ctx context.Context, rule, estimator string, scores []float64, start time.Time) Result {
	result := Result{
		RunID:  uuid.NewString(),
		Scores: scores,
		Mean:   mean(scores),
	}
	elapsed := time.Since(start)
	s.metrics.RecordEvaluation(rule, estimator, len(scores), elapsed)
	if s.log != nil {
		s.log.Info(ctx, "evaluation complete",
			logger.String("run_id", result.RunID),
			logger.String("rule", rule),
			logger.Int("batch", len(scores)),
			logger.Float64("mean_score", result.Mean),
		)
	}
	return result
}

// flatten packs rectangular rows into one row-major slice.
func flatten(rows [][]float64, width int) []float64 {
	out := make([]float64, 0, len(rows)*width)
	for _, row := range rows {
		out = append(out, row...)
	}
	return out
}

// broadcastScores expands a possibly scalar score to the batch length.
func broadcastScores(res backend.Array, n int) []float64 {
	data := res.Data()
	if len(data) == n {
		return data
	}
	out := make([]float64, n)
	for i := range out {
		out[i] = data[0]
	}
	return out
}

func mean(scores []float64) float64 {
	if len(scores) == 0 {
		return 0
	}
	return stat.Mean(scores, nil)
}
