package score

import "errors"

// Sentinel kinds for scoring errors. These allow errors.Is/As from callers.
var (
	// ErrUnknownEstimator reports an estimator outside the closed set.
	ErrUnknownEstimator = errors.New("unknown estimator")

	// ErrEstimatorMismatch reports an estimator the requested score does not
	// support, e.g. anything but the energy form for the outcome-weighted CRPS.
	ErrEstimatorMismatch = errors.New("estimator not supported for this score")

	// ErrShapeMismatch reports observation/forecast shapes that do not
	// broadcast against each other.
	ErrShapeMismatch = errors.New("shapes are not broadcastable")

	// ErrQuantileMismatch reports a forecast axis whose length differs from
	// the number of probability levels.
	ErrQuantileMismatch = errors.New("forecast and alpha lengths differ")

	// ErrInvalidParameter reports an out-of-domain distribution parameter,
	// e.g. a negative scale or a non-positive rate.
	ErrInvalidParameter = errors.New("invalid distribution parameter")

	// ErrInvalidProbability reports Brier forecasts outside [0, 1].
	ErrInvalidProbability = errors.New("forecast probabilities must lie in [0, 1]")

	// ErrInvalidOutcome reports Brier observations outside {0, 1, NaN}.
	ErrInvalidOutcome = errors.New("observations must be 0, 1, or NaN")

	// ErrNilFunction reports a missing chaining or weight function.
	ErrNilFunction = errors.New("nil chaining or weight function")
)
