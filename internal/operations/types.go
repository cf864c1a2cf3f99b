package operations

import (
	"context"

	"sidrapanel/pkg/contracts/domain"
)

// Step IDs
const (
	StepIDFetchEconomic    = "fetch_economic"
	StepIDLoadPopulation   = "load_population"
	StepIDValidateSources  = "validate_sources"
	StepIDReconcile        = "reconcile"
	StepIDExportPanel      = "export_panel"
	StepIDDescriptiveChart = "descriptive_chart"
	StepIDStateCharts      = "state_charts"
	StepIDDecomposition    = "decomposition"
	StepIDForecast         = "forecast"
	StepIDClustering       = "clustering"
)

// Step names
const (
	StepNameFetchEconomic    = "Fetch economic census"
	StepNameLoadPopulation   = "Load population projection"
	StepNameValidateSources  = "Validate sources"
	StepNameReconcile        = "Reconcile panel"
	StepNameExportPanel      = "Export panel"
	StepNameDescriptiveChart = "Descriptive chart"
	StepNameStateCharts      = "Per-state charts"
	StepNameDecomposition    = "Seasonal decomposition"
	StepNameForecast         = "Forecast"
	StepNameClustering       = "Clustering"
)

// Artifact names recorded in RunState
const (
	ArtifactPanelCSV      = "panel_csv"
	ArtifactPanelWorkbook = "panel_workbook"
	ArtifactDiagnostics   = "diagnostics_json"
	ArtifactDescriptive   = "descriptive_chart"
	ArtifactClusters      = "clusters_chart"
)

// EconomicSource produces the raw economic table
type EconomicSource interface {
	FetchEconomic(ctx context.Context) (domain.EconomicTable, error)
}

// PopulationSource produces the raw population table
type PopulationSource interface {
	Load(ctx context.Context) (domain.PopulationTable, error)
}
