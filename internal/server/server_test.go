package server_test

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	. "github.com/smartystreets/goconvey/convey"

	"github.com/okian/verif/internal/app"
	"github.com/okian/verif/internal/server"
	"github.com/okian/verif/pkg/metrics"
)

func testMux() *http.ServeMux {
	svc := app.New(app.WithMetrics(metrics.New(metrics.WithEnabled(false))))
	mux := http.NewServeMux()
	server.New(svc).Register(mux)
	return mux
}

func post(mux *http.ServeMux, path string, body any) *httptest.ResponseRecorder {
	buf, _ := json.Marshal(body)
	req := httptest.NewRequest(http.MethodPost, path, bytes.NewReader(buf))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, req)
	return rec
}

func decodeResult(rec *httptest.ResponseRecorder) app.Result {
	var res app.Result
	So(json.NewDecoder(rec.Body).Decode(&res), ShouldBeNil)
	return res
}

func TestEnsembleEndpoint(t *testing.T) {
	Convey("Given the scoring API", t, func() {
		mux := testMux()

		Convey("When posting a valid ensemble request", func() {
			rec := post(mux, "/v1/scores/crps/ensemble", app.EnsembleRequest{
				Observations: []float64{0.2, 1.1},
				Forecasts:    [][]float64{{0.1, 0.3, 0.5}, {0.9, 1.0, 1.4}},
			})

			Convey("Then the response carries per-row scores and a run id", func() {
				So(rec.Code, ShouldEqual, http.StatusOK)
				res := decodeResult(rec)
				So(res.RunID, ShouldNotBeEmpty)
				So(len(res.Scores), ShouldEqual, 2)
				for _, v := range res.Scores {
					So(v, ShouldBeGreaterThanOrEqualTo, 0)
				}
			})
		})

		Convey("When posting a threshold-weighted request", func() {
			rec := post(mux, "/v1/scores/crps/ensemble", app.EnsembleRequest{
				Observations: []float64{0.2},
				Forecasts:    [][]float64{{0.1, 0.3, 0.5}},
				Estimator:    "nrg",
				Variant:      "tw",
				Weight:       &app.WeightSpec{Type: "above", Threshold: 0.25},
			})

			Convey("Then the request succeeds", func() {
				So(rec.Code, ShouldEqual, http.StatusOK)
			})
		})

		Convey("When forecast rows are ragged", func() {
			rec := post(mux, "/v1/scores/crps/ensemble", app.EnsembleRequest{
				Observations: []float64{0.2, 1.1},
				Forecasts:    [][]float64{{0.1, 0.3}, {0.9}},
			})

			Convey("Then the API answers 400 with a coded body", func() {
				So(rec.Code, ShouldEqual, http.StatusBadRequest)
				So(rec.Body.String(), ShouldContainSubstring, "bad_request")
			})
		})

		Convey("When the body is not JSON", func() {
			req := httptest.NewRequest(http.MethodPost, "/v1/scores/crps/ensemble",
				strings.NewReader("{not json"))
			rec := httptest.NewRecorder()
			mux.ServeHTTP(rec, req)

			Convey("Then the API answers 400", func() {
				So(rec.Code, ShouldEqual, http.StatusBadRequest)
			})
		})

		Convey("When using the wrong method", func() {
			req := httptest.NewRequest(http.MethodGet, "/v1/scores/crps/ensemble", nil)
			rec := httptest.NewRecorder()
			mux.ServeHTTP(rec, req)

			Convey("Then the route is not found", func() {
				So(rec.Code, ShouldEqual, http.StatusNotFound)
			})
		})
	})
}

func TestQuantileEndpoint(t *testing.T) {
	Convey("Given the scoring API", t, func() {
		mux := testMux()

		Convey("When posting a valid quantile request", func() {
			rec := post(mux, "/v1/scores/crps/quantile", app.QuantileRequest{
				Observations: []float64{0.5},
				Forecasts:    [][]float64{{-0.5, 0.0, 0.5, 1.0, 1.5}},
				Alpha:        []float64{1.0 / 6, 2.0 / 6, 3.0 / 6, 4.0 / 6, 5.0 / 6},
			})

			Convey("Then the response carries one score", func() {
				So(rec.Code, ShouldEqual, http.StatusOK)
				So(len(decodeResult(rec).Scores), ShouldEqual, 1)
			})
		})

		Convey("When the level count does not match", func() {
			rec := post(mux, "/v1/scores/crps/quantile", app.QuantileRequest{
				Observations: []float64{0.5},
				Forecasts:    [][]float64{{-0.5, 0.0, 0.5}},
				Alpha:        []float64{0.25, 0.5},
			})

			Convey("Then the API answers 400", func() {
				So(rec.Code, ShouldEqual, http.StatusBadRequest)
			})
		})
	})
}

func TestDistributionEndpoints(t *testing.T) {
	Convey("Given the scoring API", t, func() {
		mux := testMux()

		Convey("When posting to each family route", func() {
			for _, family := range []string{"normal", "lognormal", "logistic"} {
				rec := post(mux, "/v1/scores/crps/"+family, app.DistRequest{
					Observations: []float64{0.8},
					Location:     []float64{0.1},
					Scale:        []float64{0.5},
				})

				Convey("Then "+family+" evaluates", func() {
					So(rec.Code, ShouldEqual, http.StatusOK)
					So(len(decodeResult(rec).Scores), ShouldEqual, 1)
				})
			}
		})

		Convey("When posting an exponential request", func() {
			rec := post(mux, "/v1/scores/crps/exponential", app.DistRequest{
				Observations: []float64{0.8},
				Rate:         []float64{3.0},
			})

			Convey("Then the reference value comes back", func() {
				So(rec.Code, ShouldEqual, http.StatusOK)
				res := decodeResult(rec)
				So(res.Scores[0], ShouldAlmostEqual, 0.360478635526275, 1e-12)
			})
		})

		Convey("When the scale is invalid", func() {
			rec := post(mux, "/v1/scores/crps/normal", app.DistRequest{
				Observations: []float64{0.8},
				Location:     []float64{0.1},
				Scale:        []float64{-1},
			})

			Convey("Then the API answers 400", func() {
				So(rec.Code, ShouldEqual, http.StatusBadRequest)
			})
		})

		Convey("When the path family overrides the body", func() {
			rec := post(mux, "/v1/scores/crps/normal", app.DistRequest{
				Family:       "gamma",
				Observations: []float64{0.8},
				Location:     []float64{0.1},
				Scale:        []float64{0.5},
			})

			Convey("Then the normal family is evaluated", func() {
				So(rec.Code, ShouldEqual, http.StatusOK)
			})
		})
	})
}

func TestBrierEndpoint(t *testing.T) {
	Convey("Given the scoring API", t, func() {
		mux := testMux()

		Convey("When posting a valid Brier request", func() {
			rec := post(mux, "/v1/scores/brier", app.BrierRequest{
				Forecasts:    []float64{1.0, 0.5},
				Observations: []float64{0.0, 1.0},
			})

			Convey("Then the quadratic penalties come back", func() {
				So(rec.Code, ShouldEqual, http.StatusOK)
				res := decodeResult(rec)
				So(res.Scores[0], ShouldAlmostEqual, 1.0, 1e-12)
				So(res.Scores[1], ShouldAlmostEqual, 0.25, 1e-12)
			})
		})

		Convey("When a forecast is out of range", func() {
			rec := post(mux, "/v1/scores/brier", app.BrierRequest{
				Forecasts:    []float64{1.5},
				Observations: []float64{1.0},
			})

			Convey("Then the API answers 400", func() {
				So(rec.Code, ShouldEqual, http.StatusBadRequest)
			})
		})
	})
}

func TestOperationalEndpoints(t *testing.T) {
	Convey("Given the scoring API", t, func() {
		mux := testMux()

		Convey("When requesting the health endpoint", func() {
			req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
			rec := httptest.NewRecorder()
			mux.ServeHTTP(rec, req)

			Convey("Then the service reports ok", func() {
				So(rec.Code, ShouldEqual, http.StatusOK)
				So(rec.Body.String(), ShouldContainSubstring, "ok")
			})
		})

		Convey("When requesting the metrics endpoint", func() {
			req := httptest.NewRequest(http.MethodGet, "/metrics", nil)
			rec := httptest.NewRecorder()
			mux.ServeHTTP(rec, req)

			Convey("Then the exposition endpoint answers", func() {
				So(rec.Code, ShouldEqual, http.StatusOK)
			})
		})
	})
}
