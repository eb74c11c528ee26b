package score_test

import (
	"errors"
	"math"
	"math/rand"
	"testing"

	"github.com/okian/verif/pkg/backend"
	"github.com/okian/verif/pkg/score"
	. "github.com/smartystreets/goconvey/convey"
)

func TestCRPSNormal(t *testing.T) {
	Convey("Given normal forecasts around random observations", t, func() {
		b := backend.Native{}
		rng := rand.New(rand.NewSource(testSeed))
		obsData := make([]float64, batchSize)
		muData := make([]float64, batchSize)
		sigmaData := make([]float64, batchSize)
		for i := range obsData {
			obsData[i] = rng.NormFloat64()
			muData[i] = obsData[i] + rng.NormFloat64()*0.1
			sigmaData[i] = math.Abs(rng.NormFloat64()) * 0.3
		}
		obs := b.FromSlice(obsData)
		mu := b.FromSlice(muData)
		sigma := b.FromSlice(sigmaData)

		Convey("When computing the closed form", func() {
			res, err := score.CRPSNormal(b, obs, mu, sigma)
			So(err, ShouldBeNil)

			Convey("Then scores are non-negative and finite", func() {
				for _, v := range res.Data() {
					So(math.IsNaN(v), ShouldBeFalse)
					So(v, ShouldBeGreaterThanOrEqualTo, 0)
				}
			})
		})

		Convey("When the forecast collapses onto the observation", func() {
			for i := range muData {
				muData[i] = obsData[i] + rng.NormFloat64()*1e-6
				sigmaData[i] = math.Abs(rng.NormFloat64()) * 1e-6
			}
			res, err := score.CRPSNormal(b, obs, b.FromSlice(muData), b.FromSlice(sigmaData))
			So(err, ShouldBeNil)

			Convey("Then scores approach zero", func() {
				for _, v := range res.Data() {
					So(math.IsNaN(v), ShouldBeFalse)
					So(v, ShouldBeLessThan, 1e-4)
				}
			})
		})

		Convey("When sigma is exactly zero", func() {
			res, err := score.CRPSNormal(b, b.FromScalar(1.5), b.FromScalar(1.0), b.FromScalar(0))
			So(err, ShouldBeNil)

			Convey("Then the score degenerates to the absolute error", func() {
				So(res.At(), ShouldAlmostEqual, 0.5, 1e-12)
			})
		})

		Convey("When sigma is negative", func() {
			_, err := score.CRPSNormal(b, obs, mu, b.FromScalar(-1))
			So(errors.Is(err, score.ErrInvalidParameter), ShouldBeTrue)
		})

		Convey("When parameters are scalar and observations a batch", func() {
			res, err := score.CRPSNormal(b, obs, b.FromScalar(0), b.FromScalar(1))
			So(err, ShouldBeNil)
			So(res.Shape(), ShouldResemble, []int{batchSize})
		})
	})
}

func TestCRPSLognormal(t *testing.T) {
	Convey("Given lognormal forecasts around positive observations", t, func() {
		b := backend.Native{}
		rng := rand.New(rand.NewSource(testSeed))
		obsData := make([]float64, batchSize)
		muData := make([]float64, batchSize)
		sigmaData := make([]float64, batchSize)
		for i := range obsData {
			obsData[i] = math.Exp(rng.NormFloat64())
			muData[i] = math.Log(obsData[i]) + rng.NormFloat64()*0.1
			sigmaData[i] = math.Abs(rng.NormFloat64()) * 0.3
		}
		obs := b.FromSlice(obsData)

		Convey("When computing the closed form", func() {
			res, err := score.CRPSLognormal(b, obs, b.FromSlice(muData), b.FromSlice(sigmaData))
			So(err, ShouldBeNil)

			Convey("Then scores are non-negative and finite", func() {
				for _, v := range res.Data() {
					So(math.IsNaN(v), ShouldBeFalse)
					So(v, ShouldBeGreaterThanOrEqualTo, 0)
				}
			})
		})

		Convey("When the forecast collapses onto the observation", func() {
			for i := range muData {
				muData[i] = math.Log(obsData[i]) + rng.NormFloat64()*1e-6
				sigmaData[i] = math.Abs(rng.NormFloat64()) * 1e-6
			}
			res, err := score.CRPSLognormal(b, obs, b.FromSlice(muData), b.FromSlice(sigmaData))
			So(err, ShouldBeNil)

			Convey("Then scores approach zero", func() {
				for _, v := range res.Data() {
					So(math.IsNaN(v), ShouldBeFalse)
					So(v, ShouldBeLessThan, 1e-4)
				}
			})
		})

		Convey("When sigma is exactly zero", func() {
			res, err := score.CRPSLognormal(b, b.FromScalar(3), b.FromScalar(0), b.FromScalar(0))
			So(err, ShouldBeNil)

			Convey("Then the score is the distance to the point mass exp(mu)", func() {
				So(res.At(), ShouldAlmostEqual, 2, 1e-12)
			})
		})
	})
}

func TestCRPSLogistic(t *testing.T) {
	Convey("Given logistic forecasts around random observations", t, func() {
		b := backend.Native{}
		rng := rand.New(rand.NewSource(testSeed))
		obsData := make([]float64, batchSize)
		muData := make([]float64, batchSize)
		sigmaData := make([]float64, batchSize)
		for i := range obsData {
			obsData[i] = rng.NormFloat64()
			muData[i] = obsData[i] + rng.NormFloat64()*0.1
			sigmaData[i] = math.Abs(rng.NormFloat64()) * 0.3
		}
		obs := b.FromSlice(obsData)

		Convey("When computing the closed form", func() {
			res, err := score.CRPSLogistic(b, obs, b.FromSlice(muData), b.FromSlice(sigmaData))
			So(err, ShouldBeNil)

			Convey("Then scores are non-negative and finite", func() {
				for _, v := range res.Data() {
					So(math.IsNaN(v), ShouldBeFalse)
					So(v, ShouldBeGreaterThanOrEqualTo, 0)
				}
			})
		})

		Convey("When the scale is zero", func() {
			res, err := score.CRPSLogistic(b, b.FromScalar(-2), b.FromScalar(1), b.FromScalar(0))
			So(err, ShouldBeNil)
			So(res.At(), ShouldAlmostEqual, 3, 1e-12)
		})

		Convey("When a perfect deterministic forecast is scored", func() {
			res, err := score.CRPSLogistic(b, b.FromScalar(1), b.FromScalar(1), b.FromScalar(1e-9))
			So(err, ShouldBeNil)
			So(res.At(), ShouldBeLessThan, 1e-4)
		})
	})
}

func TestCRPSExponential(t *testing.T) {
	Convey("Given exponential forecasts", t, func() {
		b := backend.Native{}

		Convey("When computing the reference scenario", func() {
			res, err := score.CRPSExponential(b, b.FromScalar(0.8), b.FromScalar(3.0))
			So(err, ShouldBeNil)

			Convey("Then the score matches the published value", func() {
				So(res.At(), ShouldAlmostEqual, 0.360478635526275, 1e-12)
			})
		})

		Convey("When computing a batch against broadcast rates", func() {
			res, err := score.CRPSExponential(b,
				b.FromSlice([]float64{0.8, 0.9}),
				b.FromSlice([]float64{3.0, 2.0}))
			So(err, ShouldBeNil)
			So(res.Data()[0], ShouldAlmostEqual, 0.36047864, 1e-7)
			So(res.Data()[1], ShouldAlmostEqual, 0.24071795, 1e-7)
		})

		Convey("When the observation is negative", func() {
			// F(y) = 0 below the support: |y| + 1/(2 rate).
			res, err := score.CRPSExponential(b, b.FromScalar(-1), b.FromScalar(2))
			So(err, ShouldBeNil)
			So(res.At(), ShouldAlmostEqual, 1.25, 1e-12)
		})

		Convey("When the rate is not positive", func() {
			_, err := score.CRPSExponential(b, b.FromScalar(0.8), b.FromScalar(0))
			So(errors.Is(err, score.ErrInvalidParameter), ShouldBeTrue)

			_, err = score.CRPSExponential(b, b.FromScalar(0.8), b.FromScalar(-3))
			So(errors.Is(err, score.ErrInvalidParameter), ShouldBeTrue)
		})
	})
}
