package analysis

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"path/filepath"

	"gonum.org/v1/gonum/stat"
	"gonum.org/v1/gonum/stat/distuv"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/vg"

	apperrors "sidrapanel/internal/errors"
	"sidrapanel/internal/infrastructure"
	"sidrapanel/internal/shared/textnorm"
	"sidrapanel/pkg/contracts/domain"
)

// minForecastPoints is the smallest series a trend with an interval can be
// fitted to: two parameters plus one residual degree of freedom
const minForecastPoints = 3

// ForecastPoint is one year of the forecast frame
type ForecastPoint struct {
	Year       domain.Year `json:"year"`
	Yhat       float64     `json:"yhat"`
	Lower      float64     `json:"lower"`
	Upper      float64     `json:"upper"`
	Historical bool        `json:"historical"`
}

// Forecast is the fitted linear trend of one state over its history and the
// forecast horizon
type Forecast struct {
	State     string          `json:"state"`
	Intercept float64         `json:"intercept"`
	Slope     float64         `json:"slope"`
	Points    []ForecastPoint `json:"points"`

	observed []domain.PanelRow
}

// MeanYhat is the mean point estimate over the whole frame
func (f Forecast) MeanYhat() float64 {
	yhat := make([]float64, len(f.Points))
	for i, p := range f.Points {
		yhat[i] = p.Yhat
	}
	return stat.Mean(yhat, nil)
}

// Future returns the points beyond the last observed year
func (f Forecast) Future() []ForecastPoint {
	var out []ForecastPoint
	for _, p := range f.Points {
		if !p.Historical {
			out = append(out, p)
		}
	}
	return out
}

// FitForecast fits an ordinary least squares trend to the series and extends
// it by horizon years. Every point carries a Student-t prediction interval
// covering width of the predictive distribution.
func FitForecast(state string, rows []domain.PanelRow, horizon int, width float64) (Forecast, error) {
	n := len(rows)
	if n < minForecastPoints {
		return Forecast{}, apperrors.NewAnalysisError(
			fmt.Sprintf("series has %d points, forecasting needs at least %d", n, minForecastPoints), nil)
	}
	if width <= 0 || width >= 1 {
		return Forecast{}, apperrors.NewAnalysisError(fmt.Sprintf("interval width %g outside (0, 1)", width), nil)
	}

	xs, ys := seriesValues(rows)
	intercept, slope := stat.LinearRegression(xs, ys, nil, false)

	xbar := stat.Mean(xs, nil)
	var sse, sxx float64
	for i := range xs {
		r := ys[i] - (intercept + slope*xs[i])
		sse += r * r
		sxx += (xs[i] - xbar) * (xs[i] - xbar)
	}
	if sxx == 0 {
		return Forecast{}, apperrors.NewAnalysisError("series has a single distinct year", nil)
	}

	df := float64(n - 2)
	s := math.Sqrt(sse / df)
	t := distuv.StudentsT{Mu: 0, Sigma: 1, Nu: df}.Quantile(0.5 + width/2)

	point := func(year domain.Year, historical bool) ForecastPoint {
		x := float64(year.Int())
		yhat := intercept + slope*x
		se := s * math.Sqrt(1+1/float64(n)+(x-xbar)*(x-xbar)/sxx)
		return ForecastPoint{
			Year:       year,
			Yhat:       yhat,
			Lower:      yhat - t*se,
			Upper:      yhat + t*se,
			Historical: historical,
		}
	}

	points := make([]ForecastPoint, 0, n+horizon)
	for _, r := range rows {
		points = append(points, point(r.Year, true))
	}
	last := rows[n-1].Year
	for h := 1; h <= horizon; h++ {
		points = append(points, point(last+domain.Year(h), false))
	}

	return Forecast{
		State:     state,
		Intercept: intercept,
		Slope:     slope,
		Points:    points,
		observed:  append([]domain.PanelRow(nil), rows...),
	}, nil
}

// Forecaster forecasts every state's series and charts the results
type Forecaster struct {
	horizon int
	width   float64
	charter *Charter
	logger  *slog.Logger
	metrics *infrastructure.PipelineMetrics
}

// NewForecaster creates a forecaster. charter and metrics may be nil.
func NewForecaster(horizon int, width float64, charter *Charter, logger *slog.Logger, metrics *infrastructure.PipelineMetrics) *Forecaster {
	return &Forecaster{
		horizon: horizon,
		width:   width,
		charter: charter,
		logger:  infrastructure.WithComponent(logger, "forecast"),
		metrics: metrics,
	}
}

// ForecastStates fits each state independently; short series are skipped
func (f *Forecaster) ForecastStates(ctx context.Context, panel *domain.Panel, universe []string) (Outcomes[Forecast], error) {
	states, series := finiteSeries(panel, universe)
	out := make(Outcomes[Forecast], len(states))

	for _, s := range states {
		if err := ctx.Err(); err != nil {
			return out, err
		}

		fc, err := FitForecast(s, series[s], f.horizon, f.width)
		if err != nil {
			f.logger.WarnContext(ctx, "Forecast skipped",
				slog.String("state", s),
				slog.Int("points", len(series[s])),
				slog.String("reason", err.Error()))
			out[s] = Skip[Forecast](s, err.Error())
			recordSkip(ctx, f.metrics, "forecast")
			continue
		}
		out[s] = Succeeded(s, fc)
	}

	f.logger.InfoContext(ctx, "Forecast complete",
		slog.Int("states", len(states)),
		slog.Int("horizon", f.horizon),
		slog.Float64("interval_width", f.width),
		slog.Int("skipped", len(out.Skipped())))
	return out, nil
}

// Charts writes one chart per forecast state into dir: observed points, the
// fitted line and the interval bounds. A state whose chart fails is left out
// and the others are still written; the failures are returned joined.
func (f *Forecaster) Charts(outcomes Outcomes[Forecast], dir string) (map[string]string, error) {
	paths := make(map[string]string)
	if f.charter == nil {
		return paths, nil
	}

	var errs []error
	for _, fc := range outcomes.Successful() {
		path, err := f.chart(fc, dir)
		if err != nil {
			f.logger.Warn("Forecast chart skipped", slog.String("state", fc.State), slog.String("error", err.Error()))
			errs = append(errs, err)
			continue
		}
		paths[fc.State] = path
	}
	return paths, errors.Join(errs...)
}

func (f *Forecaster) chart(fc Forecast, dir string) (string, error) {
	p := newPlot(fmt.Sprintf("%s, linear trend forecast", fc.State), "year", ratioAxisLabel)

	yhat := make(plotter.XYs, len(fc.Points))
	lower := make(plotter.XYs, len(fc.Points))
	upper := make(plotter.XYs, len(fc.Points))
	for i, pt := range fc.Points {
		x := float64(pt.Year.Int())
		yhat[i] = plotter.XY{X: x, Y: pt.Yhat}
		lower[i] = plotter.XY{X: x, Y: pt.Lower}
		upper[i] = plotter.XY{X: x, Y: pt.Upper}
	}

	scatter, err := plotter.NewScatter(panelXYs(fc.observed))
	if err != nil {
		return "", apperrors.NewAnalysisError(fmt.Sprintf("cannot draw observations of %s", fc.State), err)
	}
	scatter.GlyphStyle.Radius = vg.Points(3)

	fit, err := plotter.NewLine(yhat)
	if err != nil {
		return "", apperrors.NewAnalysisError(fmt.Sprintf("cannot draw forecast of %s", fc.State), err)
	}
	fit.Width = vg.Points(2)
	fit.Color = clusterColor(0)

	lo, err := plotter.NewLine(lower)
	if err != nil {
		return "", apperrors.NewAnalysisError(fmt.Sprintf("cannot draw interval of %s", fc.State), err)
	}
	hi, err := plotter.NewLine(upper)
	if err != nil {
		return "", apperrors.NewAnalysisError(fmt.Sprintf("cannot draw interval of %s", fc.State), err)
	}
	for _, l := range []*plotter.Line{lo, hi} {
		l.Dashes = []vg.Length{vg.Points(4), vg.Points(4)}
		l.Color = clusterColor(1)
	}

	p.Add(scatter, fit, lo, hi)
	p.Legend.Add("observed", scatter)
	p.Legend.Add("yhat", fit)
	p.Legend.Add(fmt.Sprintf("%.0f%% interval", f.width*100), lo)

	path := filepath.Join(dir, textnorm.Slug(fc.State)+".png")
	if err := f.charter.save(p, path); err != nil {
		return "", err
	}
	return path, nil
}
