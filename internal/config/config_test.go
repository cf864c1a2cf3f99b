package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeYAML(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "sidrapanel.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	return path
}

func TestDefaultIsValid(t *testing.T) {
	cfg := Default()
	require.NoError(t, cfg.Validate())

	assert.Equal(t, 38, cfg.Reconcile.AgeMin)
	assert.Equal(t, 58, cfg.Reconcile.AgeMax)
	assert.Equal(t, 2007, cfg.Reconcile.YearStart)
	assert.Equal(t, 2020, cfg.Reconcile.YearEnd)
	assert.Equal(t, "Ambos", cfg.Reconcile.BothSexesMarker)
	assert.Len(t, cfg.Reconcile.AllowedStates, 27)
	assert.Contains(t, cfg.Reconcile.AllowedStates, "São Paulo")
	assert.Equal(t, 30*time.Second, cfg.Sources.Timeout)
	assert.Equal(t, 3, cfg.Sources.MaxRetries)
	assert.Equal(t, 5, cfg.Sources.SkipRows)
	assert.Equal(t, 4, cfg.Analysis.DecompositionPeriod)
	assert.Equal(t, 2, cfg.Analysis.ForecastHorizon)
	assert.Equal(t, 3, cfg.Analysis.Clusters)
}

func TestBrazilianStatesReturnsCopy(t *testing.T) {
	states := BrazilianStates()
	states[0] = "changed"
	assert.Equal(t, "Acre", BrazilianStates()[0])
}

func TestLoad(t *testing.T) {
	tests := []struct {
		name        string
		yaml        string
		env         map[string]string
		wantErr     bool
		errContains string
		validateCfg func(*testing.T, *Config)
	}{
		{
			name: "yaml overrides defaults and keeps unset keys",
			yaml: `
reconcile:
  age_min: 40
  age_max: 50
analysis:
  clusters: 4
`,
			validateCfg: func(t *testing.T, cfg *Config) {
				assert.Equal(t, 40, cfg.Reconcile.AgeMin)
				assert.Equal(t, 50, cfg.Reconcile.AgeMax)
				assert.Equal(t, 2007, cfg.Reconcile.YearStart)
				assert.Equal(t, 4, cfg.Analysis.Clusters)
				assert.Equal(t, 0.80, cfg.Analysis.IntervalWidth)
			},
		},
		{
			name: "environment takes precedence over yaml",
			yaml: `
sources:
  timeout: 10s
`,
			env: map[string]string{
				"SIDRAPANEL_SOURCES_TIMEOUT":          "5s",
				"SIDRAPANEL_RECONCILE_ALLOWED_STATES": "Acre,São Paulo",
				"SIDRAPANEL_LOGGING_LEVEL":            "debug",
			},
			validateCfg: func(t *testing.T, cfg *Config) {
				assert.Equal(t, 5*time.Second, cfg.Sources.Timeout)
				assert.Equal(t, []string{"Acre", "São Paulo"}, cfg.Reconcile.AllowedStates)
				assert.Equal(t, "debug", cfg.Logging.Level)
			},
		},
		{
			name: "age range inverted",
			yaml: `
reconcile:
  age_min: 60
  age_max: 50
`,
			wantErr:     true,
			errContains: "AgeMax",
		},
		{
			name:        "year range inverted from env",
			env:         map[string]string{"SIDRAPANEL_RECONCILE_YEAR_END": "2000"},
			wantErr:     true,
			errContains: "YearEnd",
		},
		{
			name: "interval width out of range",
			yaml: `
analysis:
  interval_width: 1.5
`,
			wantErr:     true,
			errContains: "IntervalWidth",
		},
		{
			name: "unknown yaml key",
			yaml: `
reconcile:
  age_minimum: 40
`,
			wantErr:     true,
			errContains: "failed to load config from file",
		},
		{
			name:        "bad env value",
			env:         map[string]string{"SIDRAPANEL_ANALYSIS_CLUSTERS": "three"},
			wantErr:     true,
			errContains: "failed to load config from env",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			for k, v := range tt.env {
				t.Setenv(k, v)
			}

			path := writeYAML(t, tt.yaml)
			cfg, err := Load(path)

			if tt.wantErr {
				require.Error(t, err)
				assert.Contains(t, err.Error(), tt.errContains)
				return
			}

			require.NoError(t, err)
			tt.validateCfg(t, cfg)
		})
	}
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	require.Error(t, err)
}

func TestOutputPaths(t *testing.T) {
	cfg := Default()
	cfg.Output.Dir = "out"

	assert.Equal(t, filepath.Join("out", "panel.csv"), cfg.PanelCSVPath())
	assert.Equal(t, filepath.Join("out", "panel.xlsx"), cfg.PanelWorkbookPath())
	assert.Equal(t, filepath.Join("out", "diagnostics.json"), cfg.DiagnosticsPath())
	assert.Equal(t, filepath.Join("out", "states", "acre.png"), cfg.ChartPath("states", "acre.png"))
}
