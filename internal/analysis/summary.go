package analysis

import (
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/fatih/color"
	"github.com/olekukonko/tablewriter"

	"sidrapanel/pkg/contracts/domain"
)

var (
	heading = color.New(color.FgYellow, color.Bold)
	warning = color.New(color.FgRed)
)

// SkippedState is a state an analysis could not process
type SkippedState struct {
	Analysis string `json:"analysis"`
	State    string `json:"state"`
	Reason   string `json:"reason"`
}

// SkippedStates flattens skipped outcomes for display
func SkippedStates[T any](analysis string, outcomes Outcomes[T]) []SkippedState {
	var out []SkippedState
	for _, o := range outcomes.Skipped() {
		out = append(out, SkippedState{Analysis: analysis, State: o.State, Reason: o.Reason})
	}
	return out
}

// PrintDiagnostics writes the reconciliation diagnostics as a table
func PrintDiagnostics(w io.Writer, d domain.Diagnostics) {
	heading.Fprintln(w, "\nReconciliation diagnostics")

	table := tablewriter.NewWriter(w)
	table.SetHeader([]string{"Metric", "Value"})
	table.Append([]string{"Economic rows", strconv.Itoa(d.EconomicRows)})
	table.Append([]string{"Population rows", strconv.Itoa(d.PopulationRows)})
	table.Append([]string{"Joined rows", strconv.Itoa(d.JoinedRows)})
	table.Append([]string{"Dropped economic rows", strconv.Itoa(d.DroppedEconomicRows)})
	table.Append([]string{"Dropped population rows", strconv.Itoa(d.DroppedPopulationRows)})
	table.Append([]string{"Only in economic", joinOrDash(d.KeyMismatch.OnlyInEconomic)})
	table.Append([]string{"Only in population", joinOrDash(d.KeyMismatch.OnlyInPopulation)})
	table.Append([]string{"Division sentinels", strconv.Itoa(len(d.DivisionSentinels))})
	table.Render()

	if d.HasCoverageGaps() {
		warning.Fprintln(w, "Some rows were dropped by the join, see diagnostics.json")
	}
}

// PrintClusters writes one row per state with its cluster label
func PrintClusters(w io.Writer, c *Clustering) {
	heading.Fprintln(w, "\nStates by forecast ratio cluster")
	if c == nil {
		fmt.Fprintln(w, "no clustering result")
		return
	}

	table := tablewriter.NewWriter(w)
	table.SetHeader([]string{"State", "Mean ratio", "Cluster"})
	for _, a := range c.Assignments {
		table.Append([]string{a.State, strconv.FormatFloat(a.MeanRatio, 'f', 2, 64), a.Label})
	}
	table.Render()

	centroids := tablewriter.NewWriter(w)
	centroids.SetHeader([]string{"Cluster", "Centroid", "States"})
	by := c.ByLabel()
	for i, l := range c.Labels {
		centroids.Append([]string{l, strconv.FormatFloat(c.Centroids[i], 'f', 2, 64), strconv.Itoa(len(by[l]))})
	}
	centroids.Render()
}

// PrintSkipped lists the states analyses skipped, if any
func PrintSkipped(w io.Writer, skipped []SkippedState) {
	if len(skipped) == 0 {
		return
	}
	heading.Fprintln(w, "\nSkipped states")

	table := tablewriter.NewWriter(w)
	table.SetHeader([]string{"Analysis", "State", "Reason"})
	for _, s := range skipped {
		table.Append([]string{s.Analysis, s.State, s.Reason})
	}
	table.Render()
}

func joinOrDash(s []string) string {
	if len(s) == 0 {
		return "-"
	}
	return strings.Join(s, ", ")
}
