package score

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/stat/distuv"

	"github.com/okian/verif/pkg/backend"
)

var (
	stdNormal = distuv.Normal{Mu: 0, Sigma: 1}
	unitExp   = distuv.Exponential{Rate: 1}

	invSqrtPi = 1 / math.Sqrt(math.Pi)
)

// Zero-scale policy, uniform across the closed forms: a scale of exactly
// zero collapses the forecast to a point mass and the score degenerates to
// the absolute error against that point; a negative scale and a non-positive
// rate are configuration errors rejected before computation. NaN inputs
// propagate NaN scores elementwise.

// CRPSNormal computes the closed-form CRPS for Normal(mu, sigma) forecasts
// (Gneiting et al., 2005):
//
//	sigma * ( w (2 Phi(w) - 1) + 2 phi(w) - 1/sqrt(pi) ),  w = (y - mu)/sigma.
//
// sigma == 0 degenerates to |y - mu|.
func CRPSNormal(b backend.Backend, obs, mu, sigma backend.Array) (backend.Array, error) {
	if err := checkScale(sigma); err != nil {
		return nil, err
	}
	if !backend.Broadcastable(obs.Shape(), mu.Shape(), sigma.Shape()) {
		return nil, fmt.Errorf("%w: observation %v, location %v, scale %v",
			ErrShapeMismatch, obs.Shape(), mu.Shape(), sigma.Shape())
	}
	mask := positiveMask(b, sigma)
	w := b.Div(b.Sub(obs, mu), guarded(b, sigma, mask))
	general := b.Mul(sigma, b.Map(w, func(z float64) float64 {
		return z*(2*stdNormal.CDF(z)-1) + 2*stdNormal.Prob(z) - invSqrtPi
	}))
	return degenerate(b, mask, general, b.Abs(b.Sub(obs, mu))), nil
}

// CRPSLogistic computes the closed-form CRPS for Logistic(mu, sigma)
// forecasts (Jordan et al., 2019):
//
//	sigma * ( w - 2 log F(w) - 1 ),  F the standard logistic CDF.
//
// sigma == 0 degenerates to |y - mu|.
func CRPSLogistic(b backend.Backend, obs, mu, sigma backend.Array) (backend.Array, error) {
	if err := checkScale(sigma); err != nil {
		return nil, err
	}
	if !backend.Broadcastable(obs.Shape(), mu.Shape(), sigma.Shape()) {
		return nil, fmt.Errorf("%w: observation %v, location %v, scale %v",
			ErrShapeMismatch, obs.Shape(), mu.Shape(), sigma.Shape())
	}
	mask := positiveMask(b, sigma)
	w := b.Div(b.Sub(obs, mu), guarded(b, sigma, mask))
	general := b.Mul(sigma, b.Map(w, func(z float64) float64 {
		return z - 2*logStdLogisticCDF(z) - 1
	}))
	return degenerate(b, mask, general, b.Abs(b.Sub(obs, mu))), nil
}

// logStdLogisticCDF evaluates log F(z) for the standard logistic CDF in a
// form that stays finite for large |z|.
func logStdLogisticCDF(z float64) float64 {
	if z < 0 {
		return z - math.Log1p(math.Exp(z))
	}
	return -math.Log1p(math.Exp(-z))
}

// CRPSLognormal computes the closed-form CRPS for lognormal forecasts
// (Baran & Lerch, 2015):
//
//	y (2 Phi(w) - 1) - 2 exp(mu + sigma^2/2) ( Phi(w - sigma) + Phi(sigma/sqrt(2)) - 1 ),
//
// with w = (log y - mu)/sigma. The parameters are those of the latent normal
// distribution, not the lognormal's own mean and standard deviation.
// sigma == 0 degenerates to |y - exp(mu)|, the point mass the distribution
// collapses onto.
func CRPSLognormal(b backend.Backend, obs, mulog, sigmalog backend.Array) (backend.Array, error) {
	if err := checkScale(sigmalog); err != nil {
		return nil, err
	}
	if !backend.Broadcastable(obs.Shape(), mulog.Shape(), sigmalog.Shape()) {
		return nil, fmt.Errorf("%w: observation %v, location %v, scale %v",
			ErrShapeMismatch, obs.Shape(), mulog.Shape(), sigmalog.Shape())
	}
	mask := positiveMask(b, sigmalog)
	w := b.Div(b.Sub(b.Map(obs, math.Log), mulog), guarded(b, sigmalog, mask))

	phiW := b.Map(w, stdNormal.CDF)
	phiShifted := b.Map(b.Sub(w, sigmalog), stdNormal.CDF)
	phiHalf := b.Map(sigmalog, func(s float64) float64 { return stdNormal.CDF(s / math.Sqrt2) })
	moment := b.Map(
		b.Add(mulog, b.Mul(b.Mul(sigmalog, sigmalog), b.FromScalar(0.5))),
		math.Exp,
	)

	one := b.FromScalar(1)
	two := b.FromScalar(2)
	general := b.Sub(
		b.Mul(obs, b.Sub(b.Mul(phiW, two), one)),
		b.Mul(b.Mul(moment, two), b.Sub(b.Add(phiShifted, phiHalf), one)),
	)
	point := b.Abs(b.Sub(obs, b.Map(mulog, math.Exp)))
	return degenerate(b, mask, general, point), nil
}

// CRPSExponential computes the closed-form CRPS for Exponential(rate)
// forecasts (Jordan et al., 2019):
//
//	|y| - 2 F(y)/rate + 1/(2 rate),  F the exponential CDF.
//
// A rate <= 0 is a configuration error.
func CRPSExponential(b backend.Backend, obs, rate backend.Array) (backend.Array, error) {
	for _, v := range rate.Data() {
		if !(v > 0) {
			return nil, fmt.Errorf("%w: rate must be positive, got %v", ErrInvalidParameter, v)
		}
	}
	if !backend.Broadcastable(obs.Shape(), rate.Shape()) {
		return nil, fmt.Errorf("%w: observation %v vs rate %v",
			ErrShapeMismatch, obs.Shape(), rate.Shape())
	}
	cdf := b.Map(b.Mul(rate, obs), unitExp.CDF)
	return b.Add(
		b.Sub(b.Abs(obs), b.Div(b.Mul(cdf, b.FromScalar(2)), rate)),
		b.Div(b.FromScalar(0.5), rate),
	), nil
}

// checkScale rejects negative scale parameters. Zero is legal and handled by
// the degenerate branch; NaN propagates.
func checkScale(sigma backend.Array) error {
	for _, v := range sigma.Data() {
		if v < 0 {
			return fmt.Errorf("%w: scale must be non-negative, got %v", ErrInvalidParameter, v)
		}
	}
	return nil
}

// positiveMask is 1 where the scale is strictly positive, 0 where it is zero.
// NaN scales map to NaN so they keep propagating through both branches.
func positiveMask(b backend.Backend, sigma backend.Array) backend.Array {
	return b.Map(sigma, func(s float64) float64 {
		if math.IsNaN(s) {
			return math.NaN()
		}
		if s > 0 {
			return 1
		}
		return 0
	})
}

// guarded replaces zero scales with one so the standardized residual divide
// never produces NaN; the masked branch discards those lanes anyway.
func guarded(b backend.Backend, sigma, mask backend.Array) backend.Array {
	return b.Add(sigma, b.Sub(b.FromScalar(1), mask))
}

// degenerate blends the general and point-mass branches by mask.
func degenerate(b backend.Backend, mask, general, point backend.Array) backend.Array {
	one := b.FromScalar(1)
	return b.Add(b.Mul(mask, general), b.Mul(b.Sub(one, mask), point))
}
