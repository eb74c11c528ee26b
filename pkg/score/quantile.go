package score

import (
	"fmt"

	"github.com/okian/verif/pkg/backend"
)

// CRPSQuantile approximates the CRPS from quantile forecasts through the
// pinball loss (Berrisch & Ziel, 2022). The forecast axis (WithAxis, last by
// default) holds predicted values paired index-for-index with the probability
// levels alpha, and
//
//	qCRPS = (2/|Q|) sum_q PB_q,
//	PB_q  = q (y - F_q)      if y >= F_q,
//	        (1-q) (F_q - y)  otherwise.
//
// The forecast axis length must equal the alpha length; a mismatch is
// rejected with ErrQuantileMismatch before computation.
func CRPSQuantile(b backend.Backend, obs, fct, alpha backend.Array, opts ...Option) (backend.Array, error) {
	o := newOptions(opts)
	fct, err := ensembleLast(b, obs, fct, o.axis)
	if err != nil {
		return nil, err
	}
	if len(alpha.Shape()) == 0 || lastDim(fct) != lastDim(alpha) {
		return nil, fmt.Errorf("%w: forecast axis %d vs %d levels",
			ErrQuantileMismatch, lastDim(fct), lastDim(alpha))
	}

	one := b.FromScalar(1)
	y := b.ExpandDims(obs, -1)
	above := b.Gte(y, fct) // 1{y >= F_q}
	pb := b.Add(
		b.Mul(b.Mul(above, alpha), b.Sub(y, fct)),
		b.Mul(b.Mul(b.Sub(one, above), b.Sub(one, alpha)), b.Sub(fct, y)),
	)
	return b.Mul(b.Mean(pb, -1), b.FromScalar(2)), nil
}
