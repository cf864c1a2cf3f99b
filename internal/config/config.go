package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
	"gopkg.in/yaml.v2"
)

// EnvPrefix namespaces every environment variable read by Load
const EnvPrefix = "SIDRAPANEL"

// Config represents the complete application configuration
type Config struct {
	Logging   LoggingConfig   `yaml:"logging" envconfig:"LOGGING"`
	Sources   SourcesConfig   `yaml:"sources" envconfig:"SOURCES"`
	Reconcile ReconcileConfig `yaml:"reconcile" envconfig:"RECONCILE"`
	Analysis  AnalysisConfig  `yaml:"analysis" envconfig:"ANALYSIS"`
	Output    OutputConfig    `yaml:"output" envconfig:"OUTPUT"`
	Server    ServerConfig    `yaml:"server" envconfig:"SERVER"`
	Telemetry TelemetryConfig `yaml:"telemetry" envconfig:"TELEMETRY"`
}

// LoggingConfig contains logging configuration
type LoggingConfig struct {
	Level    string `yaml:"level" envconfig:"LEVEL" validate:"oneof=debug info warn warning error"`
	Output   string `yaml:"output" envconfig:"OUTPUT" validate:"oneof=stdout file both"`
	FilePath string `yaml:"file_path" envconfig:"FILE_PATH" validate:"required_unless=Output stdout"`
}

// SourcesConfig locates the two upstream datasets
type SourcesConfig struct {
	SidraURL     string        `yaml:"sidra_url" envconfig:"SIDRA_URL" validate:"required,url"`
	Timeout      time.Duration `yaml:"timeout" envconfig:"TIMEOUT" validate:"gt=0"`
	MaxRetries   int           `yaml:"max_retries" envconfig:"MAX_RETRIES" validate:"gte=0,lte=10"`
	RateLimitRPS float64       `yaml:"rate_limit_rps" envconfig:"RATE_LIMIT_RPS" validate:"gt=0"`

	// Header labels of the SIDRA table
	UnitLabel  string `yaml:"unit_label" envconfig:"UNIT_LABEL" validate:"required"`
	YearLabel  string `yaml:"year_label" envconfig:"YEAR_LABEL" validate:"required"`
	ValueLabel string `yaml:"value_label" envconfig:"VALUE_LABEL" validate:"required"`

	PopulationFile string `yaml:"population_file" envconfig:"POPULATION_FILE" validate:"required"`
	// PopulationSheet empty means the first sheet of the workbook
	PopulationSheet string `yaml:"population_sheet" envconfig:"POPULATION_SHEET"`
	SkipRows        int    `yaml:"skip_rows" envconfig:"SKIP_ROWS" validate:"gte=0"`
}

// ReconcileConfig holds the reconciliation parameters
type ReconcileConfig struct {
	AllowedStates   []string `yaml:"allowed_states" envconfig:"ALLOWED_STATES" validate:"required,min=1,dive,required"`
	AgeMin          int      `yaml:"age_min" envconfig:"AGE_MIN" validate:"gte=0"`
	AgeMax          int      `yaml:"age_max" envconfig:"AGE_MAX" validate:"gtefield=AgeMin"`
	YearStart       int      `yaml:"year_start" envconfig:"YEAR_START" validate:"gte=1"`
	YearEnd         int      `yaml:"year_end" envconfig:"YEAR_END" validate:"gtefield=YearStart,lte=9999"`
	BothSexesMarker string   `yaml:"both_sexes_marker" envconfig:"BOTH_SEXES_MARKER" validate:"required"`
}

// AnalysisConfig holds the parameters of the analysis adapters
type AnalysisConfig struct {
	DecompositionPeriod int     `yaml:"decomposition_period" envconfig:"DECOMPOSITION_PERIOD" validate:"gte=2"`
	ForecastHorizon     int     `yaml:"forecast_horizon" envconfig:"FORECAST_HORIZON" validate:"gte=1"`
	IntervalWidth       float64 `yaml:"interval_width" envconfig:"INTERVAL_WIDTH" validate:"gt=0,lt=1"`
	Clusters            int     `yaml:"clusters" envconfig:"CLUSTERS" validate:"gte=2"`
	ChartWidthCM        float64 `yaml:"chart_width_cm" envconfig:"CHART_WIDTH_CM" validate:"gt=0"`
	ChartHeightCM       float64 `yaml:"chart_height_cm" envconfig:"CHART_HEIGHT_CM" validate:"gt=0"`
}

// OutputConfig contains export configuration
type OutputConfig struct {
	Dir           string `yaml:"dir" envconfig:"DIR" validate:"required"`
	WriteWorkbook bool   `yaml:"write_workbook" envconfig:"WRITE_WORKBOOK"`
	Charts        bool   `yaml:"charts" envconfig:"CHARTS"`
}

// ServerConfig contains HTTP server configuration
type ServerConfig struct {
	Port            int           `yaml:"port" envconfig:"PORT" validate:"gte=1,lte=65535"`
	ReadTimeout     time.Duration `yaml:"read_timeout" envconfig:"READ_TIMEOUT" validate:"gt=0"`
	WriteTimeout    time.Duration `yaml:"write_timeout" envconfig:"WRITE_TIMEOUT" validate:"gt=0"`
	IdleTimeout     time.Duration `yaml:"idle_timeout" envconfig:"IDLE_TIMEOUT"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout" envconfig:"SHUTDOWN_TIMEOUT" validate:"gt=0"`
	RateLimitRPS    float64       `yaml:"rate_limit_rps" envconfig:"RATE_LIMIT_RPS" validate:"gte=0"`
	RateLimitBurst  int           `yaml:"rate_limit_burst" envconfig:"RATE_LIMIT_BURST" validate:"gte=0"`
}

// TelemetryConfig selects the OpenTelemetry exporters
type TelemetryConfig struct {
	ServiceName   string `yaml:"service_name" envconfig:"SERVICE_NAME" validate:"required"`
	TraceExporter string `yaml:"trace_exporter" envconfig:"TRACE_EXPORTER" validate:"oneof=none stdout"`
	Metrics       bool   `yaml:"metrics" envconfig:"METRICS"`
}

// Load builds the configuration from defaults, an optional YAML file and the
// environment, in increasing order of precedence. A .env file in the working
// directory is loaded into the environment first when present. An empty path
// falls back to SIDRAPANEL_CONFIG and then to the usual file locations.
func Load(path string) (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("failed to load .env file: %w", err)
	}

	cfg := Default()

	if path == "" {
		path = getConfigFilePath()
	}
	if path != "" {
		if err := cfg.overlayFile(path); err != nil {
			return nil, fmt.Errorf("failed to load config from file: %w", err)
		}
	}

	// Fields carry no default tags, so unset variables leave file values alone
	if err := envconfig.Process(EnvPrefix, cfg); err != nil {
		return nil, fmt.Errorf("failed to load config from env: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return cfg, nil
}

// overlayFile decodes a YAML file over the current values. Keys absent from
// the file keep their current value.
func (c *Config) overlayFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	return yaml.UnmarshalStrict(data, c)
}

// Validate checks field ranges and the cross-field constraints
func (c *Config) Validate() error {
	v := validator.New()
	if err := v.Struct(c); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) && len(verrs) > 0 {
			fe := verrs[0]
			return fmt.Errorf("invalid %s: failed %q constraint (value %v)", fe.Namespace(), fe.Tag(), fe.Value())
		}
		return err
	}
	return nil
}

// getConfigFilePath returns the path to the config file
func getConfigFilePath() string {
	if p := os.Getenv(EnvPrefix + "_CONFIG"); p != "" {
		return p
	}

	locations := []string{
		"sidrapanel.yaml",
		filepath.Join("configs", "sidrapanel.yaml"),
	}
	for _, location := range locations {
		if _, err := os.Stat(location); err == nil {
			return location
		}
	}

	return "" // No config file found, use env vars only
}

// PanelCSVPath returns the path of the exported panel CSV
func (c *Config) PanelCSVPath() string {
	return filepath.Join(c.Output.Dir, "panel.csv")
}

// PanelWorkbookPath returns the path of the exported panel workbook
func (c *Config) PanelWorkbookPath() string {
	return filepath.Join(c.Output.Dir, "panel.xlsx")
}

// DiagnosticsPath returns the path of the diagnostics JSON file
func (c *Config) DiagnosticsPath() string {
	return filepath.Join(c.Output.Dir, "diagnostics.json")
}

// ChartPath returns the path of a chart under the output directory
func (c *Config) ChartPath(parts ...string) string {
	return filepath.Join(append([]string{c.Output.Dir}, parts...)...)
}

// Default returns default configuration
func Default() *Config {
	return &Config{
		Logging: LoggingConfig{
			Level:    "info",
			Output:   "stdout",
			FilePath: "logs/sidrapanel.log",
		},
		Sources: SourcesConfig{
			SidraURL:       DefaultSidraURL,
			Timeout:        30 * time.Second,
			MaxRetries:     3,
			RateLimitRPS:   1,
			UnitLabel:      "Unidade da Federação",
			YearLabel:      "Ano",
			ValueLabel:     "Valor",
			PopulationFile: filepath.Join("data", "projecoes_populacao.xlsx"),
			SkipRows:       5,
		},
		Reconcile: ReconcileConfig{
			AllowedStates:   BrazilianStates(),
			AgeMin:          38,
			AgeMax:          58,
			YearStart:       2007,
			YearEnd:         2020,
			BothSexesMarker: "Ambos",
		},
		Analysis: AnalysisConfig{
			DecompositionPeriod: 4,
			ForecastHorizon:     2,
			IntervalWidth:       0.80,
			Clusters:            3,
			ChartWidthCM:        20,
			ChartHeightCM:       12,
		},
		Output: OutputConfig{
			Dir:           "output",
			WriteWorkbook: true,
			Charts:        true,
		},
		Server: ServerConfig{
			Port:            8080,
			ReadTimeout:     15 * time.Second,
			WriteTimeout:    15 * time.Second,
			IdleTimeout:     60 * time.Second,
			ShutdownTimeout: 30 * time.Second,
			RateLimitRPS:    50,
			RateLimitBurst:  20,
		},
		Telemetry: TelemetryConfig{
			ServiceName:   "sidrapanel",
			TraceExporter: "none",
			Metrics:       true,
		},
	}
}
