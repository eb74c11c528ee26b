// Package score computes proper scoring rules for probabilistic forecasts:
// the Continuous Ranked Probability Score in closed form for common
// parametric families, a family of finite-ensemble CRPS estimators with
// threshold-weighted, outcome-weighted and vertically re-scaled variants, a
// quantile (pinball-loss) approximation, and the Brier score.
//
// Every function takes an explicit backend handle and is written only against
// the backend capability, so the same algorithms run over any array
// implementation. All computations are pure: no state is shared between
// calls, and concurrent use is safe by construction.
//
// Scores broadcast over arbitrary batch shapes following the backend's
// broadcasting rules. Configuration errors (unknown estimators, domain
// violations, mismatched quantile levels) surface before any computation and
// wrap the sentinel errors of this package.
package score

import (
	"fmt"

	"github.com/okian/verif/pkg/backend"
)

// ChainingFunc transforms outcome values before scoring, emphasising a region
// of interest. It is applied elementwise to the observation and every
// ensemble member, and is unconstrained beyond being pure.
type ChainingFunc func(x float64) float64

// WeightFunc assigns a non-negative weight to an outcome value. It is applied
// elementwise to the observation and every ensemble member. Weights need not
// integrate to one; only relative weighting matters.
type WeightFunc func(x float64) float64

// Option configures an ensemble or quantile score call.
type Option func(*options)

type options struct {
	axis      int
	sorted    bool
	estimator Estimator
}

// WithAxis designates the ensemble (or quantile) axis of the forecast array.
// Negative values count from the last dimension. Default is the last axis.
func WithAxis(axis int) Option {
	return func(o *options) { o.axis = axis }
}

// WithSortedEnsemble asserts that the ensemble axis is already sorted
// ascending, letting order-statistic estimators skip their internal sort.
// This is an unchecked contract: passing an unsorted ensemble silently
// produces a wrong score.
func WithSortedEnsemble() Option {
	return func(o *options) { o.sorted = true }
}

// WithEstimator selects the CRPS estimator. Default is EstimatorPWM.
func WithEstimator(e Estimator) Option {
	return func(o *options) { o.estimator = e }
}

func newOptions(opts []Option) options {
	o := options{axis: -1, estimator: EstimatorPWM}
	for _, opt := range opts {
		opt(&o)
	}
	return o
}

// CRPSEnsemble estimates the CRPS of a finite ensemble forecast against
// observations. The forecast carries one ensemble axis (selected with
// WithAxis, last by default); all remaining axes are batch axes and must
// broadcast against the observation shape. The returned score has the
// broadcast batch shape and is non-negative for every estimator.
func CRPSEnsemble(b backend.Backend, obs, fct backend.Array, opts ...Option) (backend.Array, error) {
	o := newOptions(opts)
	if !o.estimator.valid() {
		return nil, fmt.Errorf("%w: %s", ErrUnknownEstimator, o.estimator)
	}
	fct, err := ensembleLast(b, obs, fct, o.axis)
	if err != nil {
		return nil, err
	}
	if o.estimator.needsSorted() && !o.sorted {
		fct = b.Sort(fct, -1)
	}
	return ensemble(b, obs, fct, o.estimator), nil
}

// ensembleLast moves the ensemble axis to the last position and validates
// that the batch shape broadcasts against the observation shape.
func ensembleLast(b backend.Backend, obs, fct backend.Array, axis int) (backend.Array, error) {
	fctShape := fct.Shape()
	if len(fctShape) == 0 {
		return nil, fmt.Errorf("%w: forecast must carry an ensemble axis", ErrShapeMismatch)
	}
	if axis != -1 && axis != len(fctShape)-1 {
		fct = b.MoveAxis(fct, axis, -1)
		fctShape = fct.Shape()
	}
	batch := fctShape[:len(fctShape)-1]
	if !backend.Broadcastable(obs.Shape(), batch) {
		return nil, fmt.Errorf("%w: observation %v vs forecast batch %v",
			ErrShapeMismatch, obs.Shape(), batch)
	}
	return fct, nil
}

// lastDim returns the size of the trailing axis.
func lastDim(x backend.Array) int {
	shape := x.Shape()
	return shape[len(shape)-1]
}
