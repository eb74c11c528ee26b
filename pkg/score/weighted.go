package score

import (
	"fmt"

	"github.com/okian/verif/pkg/backend"
)

// TWCRPSEnsemble estimates the threshold-weighted CRPS: the chaining function
// v is applied elementwise to the observation and every ensemble member, and
// the transformed values are scored with CRPSEnsemble. Any estimator applies.
// The range of v is not validated; it only needs to be a pure elementwise map.
func TWCRPSEnsemble(b backend.Backend, obs, fct backend.Array, v ChainingFunc, opts ...Option) (backend.Array, error) {
	if v == nil {
		return nil, fmt.Errorf("%w: chaining function", ErrNilFunction)
	}
	return CRPSEnsemble(b, b.Map(obs, v), b.Map(fct, v), opts...)
}

// OWCRPSEnsemble estimates the outcome-weighted CRPS of Allen et al. (2022):
//
//	(1/(M w̄)) sum_m |x_m - y| w(x_m) w(y)
//	  - (1/(2 M^2 w̄^2)) sum_m sum_j |x_m - x_j| w(x_m) w(x_j) w(y),
//
// with w̄ the mean member weight. Only the energy form is supported; any
// other estimator selection is rejected with ErrEstimatorMismatch. The score
// is rescaled by the weights and is not sign-constrained in general.
func OWCRPSEnsemble(b backend.Backend, obs, fct backend.Array, w WeightFunc, opts ...Option) (backend.Array, error) {
	obs, fct, ow, fw, err := weightedInputs(b, obs, fct, w, opts)
	if err != nil {
		return nil, err
	}
	y := b.ExpandDims(obs, -1)
	wbar := b.Mean(fw, -1)

	e1 := b.Mean(b.Mul(b.Abs(b.Sub(fct, y)), fw), -1)
	e1 = b.Div(b.Mul(e1, ow), wbar)

	e2 := pairwiseWeighted(b, fct, fw)
	e2 = b.Div(b.Mul(b.Mul(e2, ow), b.FromScalar(0.5)), b.Mul(wbar, wbar))

	return b.Sub(e1, e2), nil
}

// VRCRPSEnsemble estimates the vertically re-scaled CRPS of Allen et al.
// (2022): the outcome-weighted two-term formula without the w̄ normalization,
// plus the cross term
//
//	((1/M) sum_m |x_m| w(x_m) - |y| w(y)) ((1/M) sum_m w(x_m) - w(y)).
//
// Only the energy form is supported. The score is not sign-constrained in
// general.
func VRCRPSEnsemble(b backend.Backend, obs, fct backend.Array, w WeightFunc, opts ...Option) (backend.Array, error) {
	obs, fct, ow, fw, err := weightedInputs(b, obs, fct, w, opts)
	if err != nil {
		return nil, err
	}
	y := b.ExpandDims(obs, -1)

	e1 := b.Mul(b.Mean(b.Mul(b.Abs(b.Sub(fct, y)), fw), -1), ow)
	e2 := b.Mul(pairwiseWeighted(b, fct, fw), b.FromScalar(0.5))
	cross := b.Mul(
		b.Sub(b.Mean(b.Mul(b.Abs(fct), fw), -1), b.Mul(b.Abs(obs), ow)),
		b.Sub(b.Mean(fw, -1), ow),
	)
	return b.Add(b.Sub(e1, e2), cross), nil
}

// weightedInputs normalizes the ensemble axis, enforces the energy-form-only
// contract, and evaluates the weight function on both sides.
func weightedInputs(b backend.Backend, obs, fct backend.Array, w WeightFunc, opts []Option) (_, _, obsWeights, fctWeights backend.Array, err error) {
	if w == nil {
		return nil, nil, nil, nil, fmt.Errorf("%w: weight function", ErrNilFunction)
	}
	// Weighted scores default to the energy form rather than pwm.
	o := options{axis: -1, estimator: EstimatorNRG}
	for _, opt := range opts {
		opt(&o)
	}
	if !o.estimator.valid() {
		return nil, nil, nil, nil, fmt.Errorf("%w: %s", ErrUnknownEstimator, o.estimator)
	}
	if o.estimator != EstimatorNRG {
		return nil, nil, nil, nil, fmt.Errorf(
			"%w: only the energy form is available for weighted scores, got %s",
			ErrEstimatorMismatch, o.estimator)
	}
	fct, err = ensembleLast(b, obs, fct, o.axis)
	if err != nil {
		return nil, nil, nil, nil, err
	}
	return obs, fct, b.Map(obs, w), b.Map(fct, w), nil
}

// pairwiseWeighted is (1/M^2) sum_m sum_j |x_m - x_j| w(x_m) w(x_j).
func pairwiseWeighted(b backend.Backend, fct, fw backend.Array) backend.Array {
	d := b.Abs(b.Sub(b.ExpandDims(fct, -1), b.ExpandDims(fct, -2)))
	ww := b.Mul(b.ExpandDims(fw, -1), b.ExpandDims(fw, -2))
	return b.Mean(b.Mean(b.Mul(d, ww), -1), -1)
}
