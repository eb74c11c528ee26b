package score

import (
	"fmt"
	"math"

	"github.com/okian/verif/pkg/backend"
)

// probEpsilon absorbs floating round-off above 1.0 in forecast probabilities.
const probEpsilon = 1e-7

// BrierScore computes (f - y)^2 for probability forecasts f of a binary
// outcome y. Forecasts must lie in [0, 1] (up to round-off) and observations
// must be 0, 1, or NaN; NaN observations pass through and yield NaN scores,
// leaving missing-data handling to the caller.
func BrierScore(b backend.Backend, fct, obs backend.Array) (backend.Array, error) {
	for _, v := range fct.Data() {
		if v < 0 || v > 1+probEpsilon {
			return nil, fmt.Errorf("%w: got %v", ErrInvalidProbability, v)
		}
	}
	for _, v := range obs.Data() {
		if v != 0 && v != 1 && !math.IsNaN(v) {
			return nil, fmt.Errorf("%w: got %v", ErrInvalidOutcome, v)
		}
	}
	if !backend.Broadcastable(fct.Shape(), obs.Shape()) {
		return nil, fmt.Errorf("%w: forecast %v vs observation %v",
			ErrShapeMismatch, fct.Shape(), obs.Shape())
	}
	d := b.Sub(fct, obs)
	return b.Mul(d, d), nil
}
