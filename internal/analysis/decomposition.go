package analysis

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"path/filepath"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"gonum.org/v1/plot/plotutil"

	apperrors "sidrapanel/internal/errors"
	"sidrapanel/internal/infrastructure"
	"sidrapanel/internal/shared/textnorm"
	"sidrapanel/pkg/contracts/domain"
)

// Decomposition is a classical additive decomposition of one state's series.
// Trend and Residual are NaN where the centred moving average is undefined.
type Decomposition struct {
	State    string
	Years    []domain.Year
	Observed []float64
	Trend    []float64
	Seasonal []float64
	Residual []float64
	Period   int
}

// Decompose splits values into trend, seasonal and residual components:
// trend is the centred moving average of the period (2xm for even m),
// seasonal indices are the per-phase means of the detrended series centred
// to zero mean, and residual is what remains.
func Decompose(values []float64, period int) (trend, seasonal, residual []float64, err error) {
	n := len(values)
	if period < 2 {
		return nil, nil, nil, apperrors.NewAnalysisError(fmt.Sprintf("period %d is below 2", period), nil)
	}
	if n < 2*period {
		return nil, nil, nil, apperrors.NewAnalysisError(
			fmt.Sprintf("series has %d points, decomposition needs at least %d", n, 2*period), nil)
	}
	for i, v := range values {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return nil, nil, nil, apperrors.NewAnalysisError(fmt.Sprintf("value %d is not finite", i), nil)
		}
	}

	trend = movingAverage(values, period)

	sums := make([]float64, period)
	counts := make([]int, period)
	for i, t := range trend {
		if math.IsNaN(t) {
			continue
		}
		sums[i%period] += values[i] - t
		counts[i%period]++
	}

	indices := make([]float64, period)
	var mean float64
	for p := range indices {
		if counts[p] > 0 {
			indices[p] = sums[p] / float64(counts[p])
		}
		mean += indices[p]
	}
	mean /= float64(period)
	for p := range indices {
		indices[p] -= mean
	}

	seasonal = make([]float64, n)
	residual = make([]float64, n)
	for i := range values {
		seasonal[i] = indices[i%period]
		residual[i] = values[i] - trend[i] - seasonal[i]
	}
	return trend, seasonal, residual, nil
}

// movingAverage returns the centred moving average of window m. For an even
// window the two half-weight end points make it centred on an observation.
func movingAverage(values []float64, m int) []float64 {
	n := len(values)
	out := make([]float64, n)
	for i := range out {
		out[i] = math.NaN()
	}

	half := m / 2
	for i := half; i < n-half; i++ {
		var sum float64
		if m%2 == 1 {
			for j := i - half; j <= i+half; j++ {
				sum += values[j]
			}
		} else {
			sum = 0.5*values[i-half] + 0.5*values[i+half]
			for j := i - half + 1; j < i+half; j++ {
				sum += values[j]
			}
		}
		out[i] = sum / float64(m)
	}
	return out
}

// Decomposer decomposes every state's series and charts the results
type Decomposer struct {
	period  int
	charter *Charter
	logger  *slog.Logger
	metrics *infrastructure.PipelineMetrics
}

// NewDecomposer creates a decomposer. charter and metrics may be nil.
func NewDecomposer(period int, charter *Charter, logger *slog.Logger, metrics *infrastructure.PipelineMetrics) *Decomposer {
	return &Decomposer{
		period:  period,
		charter: charter,
		logger:  infrastructure.WithComponent(logger, "decomposition"),
		metrics: metrics,
	}
}

// DecomposeStates decomposes each state independently. A state whose series
// is too short or not finite becomes a skipped outcome; the others continue.
func (d *Decomposer) DecomposeStates(ctx context.Context, panel *domain.Panel, universe []string) (Outcomes[Decomposition], error) {
	states, series := finiteSeries(panel, universe)
	out := make(Outcomes[Decomposition], len(states))

	for _, s := range states {
		if err := ctx.Err(); err != nil {
			return out, err
		}

		rows := series[s]
		_, values := seriesValues(rows)
		trend, seasonal, residual, err := Decompose(values, d.period)
		if err != nil {
			d.logger.WarnContext(ctx, "Decomposition skipped",
				slog.String("state", s),
				slog.Int("points", len(rows)),
				slog.String("reason", err.Error()))
			out[s] = Skip[Decomposition](s, err.Error())
			recordSkip(ctx, d.metrics, "decomposition")
			continue
		}

		years := make([]domain.Year, len(rows))
		for i, r := range rows {
			years[i] = r.Year
		}
		out[s] = Succeeded(s, Decomposition{
			State:    s,
			Years:    years,
			Observed: values,
			Trend:    trend,
			Seasonal: seasonal,
			Residual: residual,
			Period:   d.period,
		})
	}

	d.logger.InfoContext(ctx, "Decomposition complete",
		slog.Int("states", len(states)),
		slog.Int("skipped", len(out.Skipped())))
	return out, nil
}

// Charts writes one chart per decomposed state into dir. A state whose chart
// fails is left out and the failures are returned joined.
func (d *Decomposer) Charts(outcomes Outcomes[Decomposition], dir string) (map[string]string, error) {
	paths := make(map[string]string)
	if d.charter == nil {
		return paths, nil
	}

	var errs []error
	for _, dec := range outcomes.Successful() {
		path, err := d.chart(dec, dir)
		if err != nil {
			d.logger.Warn("Decomposition chart skipped", slog.String("state", dec.State), slog.String("error", err.Error()))
			errs = append(errs, err)
			continue
		}
		paths[dec.State] = path
	}
	return paths, errors.Join(errs...)
}

func (d *Decomposer) chart(dec Decomposition, dir string) (string, error) {
	xs := make([]float64, len(dec.Years))
	for i, y := range dec.Years {
		xs[i] = float64(y.Int())
	}

	p := newPlot(fmt.Sprintf("%s, additive decomposition (period %d)", dec.State, dec.Period), "year", "ratio")
	err := plotutil.AddLinePoints(p,
		"observed", finiteXYs(xs, dec.Observed),
		"trend", finiteXYs(xs, dec.Trend),
		"seasonal", finiteXYs(xs, dec.Seasonal),
		"residual", finiteXYs(xs, dec.Residual),
	)
	if err != nil {
		return "", apperrors.NewAnalysisError(fmt.Sprintf("cannot draw decomposition of %s", dec.State), err)
	}

	path := filepath.Join(dir, textnorm.Slug(dec.State)+".png")
	if err := d.charter.save(p, path); err != nil {
		return "", err
	}
	return path, nil
}

func recordSkip(ctx context.Context, m *infrastructure.PipelineMetrics, analysis string) {
	if m == nil {
		return
	}
	m.AnalysisSkips.Add(ctx, 1, metric.WithAttributes(attribute.String("analysis", analysis)))
}
