package analysis

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"sort"

	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/vg"

	apperrors "sidrapanel/internal/errors"
	"sidrapanel/internal/infrastructure"
)

// Cluster labels for three clusters, in ascending order of cluster mean
const (
	LabelOpportunity = "opportunity"
	LabelNeutral     = "neutral"
	LabelSaturated   = "saturated"
)

const maxKMeansIterations = 100

// ClusterAssignment places one state in a cluster
type ClusterAssignment struct {
	State     string  `json:"state"`
	MeanRatio float64 `json:"mean_ratio"`
	Cluster   int     `json:"cluster"`
	Label     string  `json:"label"`
}

// Clustering is the partition of states by mean forecast ratio. Cluster
// indices are ranks of ascending centroid, so index 0 always has the lowest
// mean.
type Clustering struct {
	Assignments []ClusterAssignment `json:"assignments"`
	Centroids   []float64           `json:"centroids"`
	Labels      []string            `json:"labels"`
}

// ByLabel returns the states of each label
func (c *Clustering) ByLabel() map[string][]string {
	out := make(map[string][]string, len(c.Labels))
	for _, a := range c.Assignments {
		out[a.Label] = append(out[a.Label], a.State)
	}
	return out
}

// ClusterLabels returns the label of each cluster rank for k clusters
func ClusterLabels(k int) []string {
	switch k {
	case 3:
		return []string{LabelOpportunity, LabelNeutral, LabelSaturated}
	case 2:
		return []string{LabelOpportunity, LabelSaturated}
	}
	labels := make([]string, k)
	for i := range labels {
		labels[i] = fmt.Sprintf("cluster_%d", i+1)
	}
	return labels
}

// ClusterMeans partitions states into k clusters by their mean ratio and
// labels the clusters by ascending mean, whatever order k-means produced
// them in. Fewer states than clusters is an error.
func ClusterMeans(means map[string]float64, k int) (*Clustering, error) {
	if k < 1 {
		return nil, apperrors.NewAnalysisError(fmt.Sprintf("cluster count %d is below 1", k), nil)
	}
	if len(means) < k {
		return nil, apperrors.NewAnalysisError(
			fmt.Sprintf("%d states cannot be split into %d clusters", len(means), k), nil)
	}

	states := make([]string, 0, len(means))
	for s, m := range means {
		if math.IsNaN(m) || math.IsInf(m, 0) {
			return nil, apperrors.NewAnalysisError(fmt.Sprintf("mean ratio of %s is not finite", s), nil)
		}
		states = append(states, s)
	}
	sort.Strings(states)

	values := make([]float64, len(states))
	for i, s := range states {
		values[i] = means[s]
	}

	assign, centroids := kMeans1D(values, k)
	return newClustering(states, values, assign, centroids), nil
}

// newClustering labels a partition. assign holds the cluster index of each
// state and centroids is indexed by cluster; the indices carry no order.
func newClustering(states []string, values []float64, assign []int, centroids []float64) *Clustering {
	ranked, sorted := rankClusters(assign, centroids)
	labels := ClusterLabels(len(centroids))

	result := &Clustering{
		Assignments: make([]ClusterAssignment, len(states)),
		Centroids:   sorted,
		Labels:      labels,
	}
	for i, s := range states {
		r := ranked[i]
		result.Assignments[i] = ClusterAssignment{State: s, MeanRatio: values[i], Cluster: r, Label: labels[r]}
	}
	return result
}

// rankClusters replaces every cluster index in assign by the rank of its
// centroid, ascending, and returns the centroids in rank order. Ties keep
// the index order.
func rankClusters(assign []int, centroids []float64) (ranked []int, sorted []float64) {
	order := make([]int, len(centroids))
	for i := range order {
		order[i] = i
	}
	sort.SliceStable(order, func(a, b int) bool { return centroids[order[a]] < centroids[order[b]] })

	rank := make([]int, len(centroids))
	sorted = make([]float64, len(centroids))
	for r, idx := range order {
		rank[idx] = r
		sorted[r] = centroids[idx]
	}

	ranked = make([]int, len(assign))
	for i, c := range assign {
		ranked[i] = rank[c]
	}
	return ranked, sorted
}

// kMeans1D runs Lloyd's algorithm on scalars. Centroids start at evenly spaced
// quantiles of the sorted values so the result is deterministic.
func kMeans1D(values []float64, k int) (assign []int, centroids []float64) {
	n := len(values)
	sorted := append([]float64(nil), values...)
	sort.Float64s(sorted)

	centroids = make([]float64, k)
	for j := range centroids {
		centroids[j] = sorted[(2*j+1)*n/(2*k)]
	}

	assign = make([]int, n)
	for iter := 0; iter < maxKMeansIterations; iter++ {
		changed := iter == 0
		for i, v := range values {
			best := nearest(v, centroids)
			if best != assign[i] {
				assign[i] = best
				changed = true
			}
		}
		if !changed {
			break
		}

		sums := make([]float64, k)
		counts := make([]int, k)
		for i, v := range values {
			sums[assign[i]] += v
			counts[assign[i]]++
		}
		for j := range centroids {
			// an empty cluster keeps its centroid
			if counts[j] > 0 {
				centroids[j] = sums[j] / float64(counts[j])
			}
		}
	}
	return assign, centroids
}

func nearest(v float64, centroids []float64) int {
	best := 0
	bestDist := math.Abs(v - centroids[0])
	for j := 1; j < len(centroids); j++ {
		if d := math.Abs(v - centroids[j]); d < bestDist {
			best, bestDist = j, d
		}
	}
	return best
}

// Clusterer groups states by the mean point estimate of their forecast frame
type Clusterer struct {
	k       int
	charter *Charter
	logger  *slog.Logger
}

// NewClusterer creates a clusterer for k clusters. charter may be nil.
func NewClusterer(k int, charter *Charter, logger *slog.Logger) *Clusterer {
	return &Clusterer{k: k, charter: charter, logger: infrastructure.WithComponent(logger, "clustering")}
}

// ClusterForecasts clusters every state with a successful forecast
func (c *Clusterer) ClusterForecasts(ctx context.Context, forecasts Outcomes[Forecast]) (*Clustering, error) {
	means := make(map[string]float64, len(forecasts))
	for _, fc := range forecasts.Successful() {
		means[fc.State] = fc.MeanYhat()
	}

	result, err := ClusterMeans(means, c.k)
	if err != nil {
		c.logger.ErrorContext(ctx, "Clustering failed", slog.String("error", err.Error()))
		return nil, err
	}

	by := result.ByLabel()
	attrs := []any{slog.Int("states", len(means)), slog.Any("centroids", result.Centroids)}
	for _, l := range result.Labels {
		attrs = append(attrs, slog.Any(l, by[l]))
	}
	c.logger.InfoContext(ctx, "Clustering complete", attrs...)
	return result, nil
}

// Chart draws the states as a scatter of state index against mean ratio,
// coloured by cluster and labelled with the state name
func (c *Clusterer) Chart(result *Clustering, path string) error {
	if c.charter == nil {
		return nil
	}

	p := newPlot("States by mean forecast ratio", "state", "mean forecast ratio")

	all := make(plotter.XYs, len(result.Assignments))
	names := make([]string, len(result.Assignments))
	for i, a := range result.Assignments {
		all[i] = plotter.XY{X: float64(i), Y: a.MeanRatio}
		names[i] = a.State
	}

	for rank, label := range result.Labels {
		var pts plotter.XYs
		for i, a := range result.Assignments {
			if a.Cluster == rank {
				pts = append(pts, all[i])
			}
		}
		if len(pts) == 0 {
			continue
		}
		scatter, err := plotter.NewScatter(pts)
		if err != nil {
			return apperrors.NewAnalysisError("cannot draw cluster "+label, err)
		}
		scatter.GlyphStyle.Color = clusterColor(rank)
		scatter.GlyphStyle.Radius = vg.Points(5)
		p.Add(scatter)
		p.Legend.Add(label, scatter)
	}

	labels, err := plotter.NewLabels(plotter.XYLabels{XYs: all, Labels: names})
	if err != nil {
		return apperrors.NewAnalysisError("cannot label clusters", err)
	}
	p.Add(labels)

	return c.charter.save(p, path)
}
