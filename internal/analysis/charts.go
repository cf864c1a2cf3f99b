package analysis

import (
	"errors"
	"fmt"
	"image/color"
	"log/slog"
	"math"
	"os"
	"path/filepath"

	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/plotutil"
	"gonum.org/v1/plot/vg"

	apperrors "sidrapanel/internal/errors"
	"sidrapanel/internal/infrastructure"
	"sidrapanel/internal/shared/textnorm"
	"sidrapanel/pkg/contracts/domain"
)

const ratioAxisLabel = "population 38-58 / active businesses"

// Charter renders PNG charts of the panel
type Charter struct {
	width  vg.Length
	height vg.Length
	logger *slog.Logger
}

// NewCharter creates a charter producing images of the given size in
// centimetres
func NewCharter(widthCM, heightCM float64, logger *slog.Logger) *Charter {
	return &Charter{
		width:  vg.Length(widthCM) * vg.Centimeter,
		height: vg.Length(heightCM) * vg.Centimeter,
		logger: infrastructure.WithComponent(logger, "charts"),
	}
}

// DescriptiveChart draws one line per state, year against ratio
func (c *Charter) DescriptiveChart(panel *domain.Panel, universe []string, path string) error {
	states, series := finiteSeries(panel, universe)

	p := newPlot("Consumer to business ratio by state", "year", ratioAxisLabel)
	for i, s := range states {
		if len(series[s]) == 0 {
			continue
		}
		line, err := plotter.NewLine(panelXYs(series[s]))
		if err != nil {
			return apperrors.NewAnalysisError(fmt.Sprintf("cannot draw series of %s", s), err)
		}
		line.Color = plotutil.Color(i)
		line.Dashes = plotutil.Dashes(i / len(plotutil.DefaultColors))
		p.Add(line)
		p.Legend.Add(s, line)
	}
	p.Legend.Top = true

	return c.save(p, path)
}

// StateCharts writes one chart per state into dir, named by the state slug.
// It returns the written paths keyed by state. A state whose chart fails is
// left out and the failures are returned joined.
func (c *Charter) StateCharts(panel *domain.Panel, universe []string, dir string) (map[string]string, error) {
	states, series := finiteSeries(panel, universe)

	paths := make(map[string]string, len(states))
	var errs []error
	for _, s := range states {
		if len(series[s]) == 0 {
			c.logger.Warn("No finite ratios, state chart skipped", slog.String("state", s))
			continue
		}

		path, err := c.stateChart(s, series[s], dir)
		if err != nil {
			c.logger.Warn("State chart skipped", slog.String("state", s), slog.String("error", err.Error()))
			errs = append(errs, err)
			continue
		}
		paths[s] = path
	}
	return paths, errors.Join(errs...)
}

func (c *Charter) stateChart(state string, rows []domain.PanelRow, dir string) (string, error) {
	p := newPlot(state, "year", ratioAxisLabel)
	if err := plotutil.AddLinePoints(p, state, panelXYs(rows)); err != nil {
		return "", apperrors.NewAnalysisError(fmt.Sprintf("cannot draw series of %s", state), err)
	}

	path := filepath.Join(dir, textnorm.Slug(state)+".png")
	if err := c.save(p, path); err != nil {
		return "", err
	}
	return path, nil
}

func newPlot(title, x, y string) *plot.Plot {
	p := plot.New()
	p.Title.Text = title
	p.Title.TextStyle.Font.Size = vg.Points(14)
	p.X.Label.Text = x
	p.Y.Label.Text = y
	p.X.Tick.Marker = yearTicks{}
	p.Add(plotter.NewGrid())
	return p
}

func (c *Charter) save(p *plot.Plot, path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return apperrors.NewStorageError("failed to create chart directory", err).WithContext("path", path)
	}
	if err := p.Save(c.width, c.height, path); err != nil {
		return apperrors.NewStorageError("failed to save chart", err).WithContext("path", path)
	}
	c.logger.Debug("Chart written", slog.String("path", path))
	return nil
}

func panelXYs(rows []domain.PanelRow) plotter.XYs {
	pts := make(plotter.XYs, len(rows))
	for i, r := range rows {
		pts[i].X = float64(r.Year.Int())
		pts[i].Y = r.Ratio
	}
	return pts
}

// finiteXYs drops points with a NaN or infinite coordinate, which the line
// plotter rejects
func finiteXYs(xs, ys []float64) plotter.XYs {
	pts := make(plotter.XYs, 0, len(xs))
	for i := range xs {
		if math.IsNaN(ys[i]) || math.IsInf(ys[i], 0) {
			continue
		}
		pts = append(pts, plotter.XY{X: xs[i], Y: ys[i]})
	}
	return pts
}

// yearTicks labels whole years only
type yearTicks struct{}

func (yearTicks) Ticks(min, max float64) []plot.Tick {
	var ticks []plot.Tick
	first := math.Ceil(min)
	step := math.Max(1, math.Ceil((max-first)/10))
	for y := first; y <= max; y += step {
		ticks = append(ticks, plot.Tick{Value: y, Label: fmt.Sprintf("%.0f", y)})
	}
	return ticks
}

var clusterPalette = []color.Color{
	color.RGBA{R: 46, G: 139, B: 87, A: 255},
	color.RGBA{R: 218, G: 165, B: 32, A: 255},
	color.RGBA{R: 178, G: 34, B: 34, A: 255},
}

func clusterColor(i int) color.Color {
	if i < len(clusterPalette) {
		return clusterPalette[i]
	}
	return plotutil.Color(i)
}
