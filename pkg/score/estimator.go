package score

import "fmt"

// Estimator selects the finite-sample CRPS estimator applied to an ensemble.
// The set is closed: every switch over it in this package is exhaustive, and
// anything else fails fast with ErrUnknownEstimator before computation.
type Estimator uint8

const (
	// EstimatorPWM is the probability-weighted-moments form, computed from
	// order statistics in O(M log M). The default.
	EstimatorPWM Estimator = iota

	// EstimatorNRG is the energy form with the O(M^2) pairwise member term.
	EstimatorNRG

	// EstimatorFair is the energy form with the finite-ensemble bias
	// correction of Ferro (2014).
	EstimatorFair

	// EstimatorINT integrates the squared gap between the empirical CDF and
	// the observation step function over the order statistics.
	EstimatorINT

	// EstimatorQD decomposes the score into pinball losses at the empirical
	// quantile levels (m - 0.5)/M.
	EstimatorQD

	// EstimatorAKR is the approximate kernel representation: the pairwise
	// member term is replaced by a single one-step circular shift, O(M).
	EstimatorAKR

	// EstimatorAKRCircPerm is the approximate kernel representation with a
	// half-cycle circular permutation of the ensemble axis.
	EstimatorAKRCircPerm
)

// estimatorNames doubles as the closed set accepted by ParseEstimator.
var estimatorNames = map[string]Estimator{
	"pwm":          EstimatorPWM,
	"nrg":          EstimatorNRG,
	"fair":         EstimatorFair,
	"int":          EstimatorINT,
	"qd":           EstimatorQD,
	"akr":          EstimatorAKR,
	"akr_circperm": EstimatorAKRCircPerm,
}

// ParseEstimator resolves the string surface of an estimator tag.
func ParseEstimator(name string) (Estimator, error) {
	e, ok := estimatorNames[name]
	if !ok {
		return 0, fmt.Errorf("%w: %q", ErrUnknownEstimator, name)
	}
	return e, nil
}

// String returns the canonical tag.
func (e Estimator) String() string {
	switch e {
	case EstimatorPWM:
		return "pwm"
	case EstimatorNRG:
		return "nrg"
	case EstimatorFair:
		return "fair"
	case EstimatorINT:
		return "int"
	case EstimatorQD:
		return "qd"
	case EstimatorAKR:
		return "akr"
	case EstimatorAKRCircPerm:
		return "akr_circperm"
	default:
		return fmt.Sprintf("estimator(%d)", uint8(e))
	}
}

// valid reports membership in the closed set.
func (e Estimator) valid() bool {
	switch e {
	case EstimatorPWM, EstimatorNRG, EstimatorFair, EstimatorINT,
		EstimatorQD, EstimatorAKR, EstimatorAKRCircPerm:
		return true
	default:
		return false
	}
}

// needsSorted reports whether the estimator consumes order statistics and
// therefore requires the ensemble axis sorted ascending.
func (e Estimator) needsSorted() bool {
	switch e {
	case EstimatorPWM, EstimatorINT, EstimatorQD:
		return true
	case EstimatorNRG, EstimatorFair, EstimatorAKR, EstimatorAKRCircPerm:
		return false
	default:
		return false
	}
}
