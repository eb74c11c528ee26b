package score

import "github.com/okian/verif/pkg/backend"

// ensemble dispatches to the estimator algorithm. The forecast arrives with
// the ensemble axis last and, for order-statistic estimators, sorted.
func ensemble(b backend.Backend, obs, fct backend.Array, e Estimator) backend.Array {
	switch e {
	case EstimatorNRG:
		return crpsNRG(b, obs, fct)
	case EstimatorFair:
		return crpsFair(b, obs, fct)
	case EstimatorPWM:
		return crpsPWM(b, obs, fct)
	case EstimatorINT:
		return crpsINT(b, obs, fct)
	case EstimatorQD:
		return crpsQD(b, obs, fct)
	case EstimatorAKR:
		return crpsAKR(b, obs, fct, 1)
	case EstimatorAKRCircPerm:
		m := lastDim(fct)
		return crpsAKR(b, obs, fct, 1+(m-1)/2)
	default:
		// Unreachable: the public API validates membership first.
		panic("score: estimator outside the closed set")
	}
}

// meanAbsDiff is the common first term (1/M) sum_m |x_m - y|.
func meanAbsDiff(b backend.Backend, obs, fct backend.Array) backend.Array {
	return b.Mean(b.Abs(b.Sub(fct, b.ExpandDims(obs, -1))), -1)
}

// pairwiseMeanAbs is (1/M^2) sum_m sum_j |x_m - x_j|, materialized through a
// broadcast M x M difference block.
func pairwiseMeanAbs(b backend.Backend, fct backend.Array) backend.Array {
	d := b.Abs(b.Sub(b.ExpandDims(fct, -1), b.ExpandDims(fct, -2)))
	return b.Mean(b.Mean(d, -1), -1)
}

// crpsNRG is the energy form:
//
//	(1/M) sum |x_m - y| - (1/(2M^2)) sum sum |x_m - x_j|.
func crpsNRG(b backend.Backend, obs, fct backend.Array) backend.Array {
	e1 := meanAbsDiff(b, obs, fct)
	e2 := pairwiseMeanAbs(b, fct)
	return b.Sub(e1, b.Mul(e2, b.FromScalar(0.5)))
}

// crpsFair rescales the pairwise term by M/(M-1), unbiased for finite
// ensembles. A single member leaves no member pairs, so the term vanishes.
func crpsFair(b backend.Backend, obs, fct backend.Array) backend.Array {
	e1 := meanAbsDiff(b, obs, fct)
	m := lastDim(fct)
	if m == 1 {
		return e1
	}
	e2 := pairwiseMeanAbs(b, fct)
	return b.Sub(e1, b.Mul(e2, b.FromScalar(0.5*float64(m)/float64(m-1))))
}

// crpsPWM uses probability-weighted moments of the order statistics:
//
//	(1/M) sum |x_(i) - y| + b0 - 2*b1,
//
// with b0 the ensemble mean and b1 = (1/(M(M-1))) sum_i (i-1) x_(i) over the
// ascending order statistics.
func crpsPWM(b backend.Backend, obs, fct backend.Array) backend.Array {
	e1 := meanAbsDiff(b, obs, fct)
	m := lastDim(fct)
	if m == 1 {
		return e1
	}
	b0 := b.Mean(fct, -1)
	b1 := b.Mul(b.Mean(b.Mul(fct, b.Arange(m)), -1), b.FromScalar(1/float64(m-1)))
	return b.Sub(b.Add(e1, b0), b.Mul(b1, b.FromScalar(2)))
}

// crpsINT integrates (F_ens(x) - 1{y <= x})^2 exactly. Between consecutive
// order statistics the empirical CDF is constant at i/M, and the observation
// splits at most one segment; clamping it into each segment covers the three
// cases in one expression. The two tail terms account for an observation
// outside the ensemble range.
func crpsINT(b backend.Backend, obs, fct backend.Array) backend.Array {
	m := lastDim(fct)
	y := b.ExpandDims(obs, -1)
	zero := b.FromScalar(0)

	first := b.Slice(fct, -1, 0, 1)
	last := b.Slice(fct, -1, m-1, m)
	tails := b.Add(
		b.Maximum(b.Sub(first, y), zero),
		b.Maximum(b.Sub(y, last), zero),
	)
	if m == 1 {
		return b.Sum(tails, -1)
	}

	lo := b.Slice(fct, -1, 0, m-1)
	hi := b.Slice(fct, -1, 1, m)
	// Empirical CDF level on the segment [x_(i), x_(i+1)).
	cdf := b.Mul(b.Add(b.Arange(m-1), b.FromScalar(1)), b.FromScalar(1/float64(m)))
	cdfm1 := b.Sub(cdf, b.FromScalar(1))
	yc := b.Minimum(b.Maximum(y, lo), hi)
	seg := b.Add(
		b.Mul(b.Mul(cdf, cdf), b.Sub(yc, lo)),
		b.Mul(b.Mul(cdfm1, cdfm1), b.Sub(hi, yc)),
	)
	return b.Add(b.Sum(seg, -1), b.Sum(tails, -1))
}

// crpsQD reads each order statistic as the empirical quantile at level
// (i + 0.5)/M and averages pinball losses:
//
//	(2/M) sum_i (1{y < x_(i)} - a_i) (x_(i) - y).
func crpsQD(b backend.Backend, obs, fct backend.Array) backend.Array {
	m := lastDim(fct)
	one := b.FromScalar(1)
	alpha := b.Mul(b.Add(b.Arange(m), b.FromScalar(0.5)), b.FromScalar(1/float64(m)))
	y := b.ExpandDims(obs, -1)
	below := b.Sub(one, b.Gte(y, fct)) // 1{y < x_(i)}
	terms := b.Mul(b.Sub(below, alpha), b.Sub(fct, y))
	return b.Mul(b.Mean(terms, -1), b.FromScalar(2))
}

// crpsAKR is the approximate kernel representation of Jordan et al. (2019):
// the O(M^2) pairwise term collapses to one circular shift of the ensemble
// axis,
//
//	(1/M) sum |x_m - y| - (1/(2M)) sum |x_m - x_sigma(m)|,
//
// with sigma a circular permutation. Since sigma is a true permutation, the
// triangle inequality keeps the score non-negative.
func crpsAKR(b backend.Backend, obs, fct backend.Array, shift int) backend.Array {
	e1 := meanAbsDiff(b, obs, fct)
	e2 := b.Mean(b.Abs(b.Sub(fct, b.Roll(fct, shift, -1))), -1)
	return b.Sub(e1, b.Mul(e2, b.FromScalar(0.5)))
}
