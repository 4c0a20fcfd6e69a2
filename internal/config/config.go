package config

import (
	stderrors "errors"
	"fmt"
	"os"
	"reflect"
	"strconv"
	"strings"

	"gosobol/domain/core"
	"gosobol/internal/errors"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"
)

// Operational defaults. They are fixed and never read from the environment.
const (
	DefaultWorkers           = 4
	DefaultBatchSize         = 64
	DefaultResamples         = 100
	DefaultConfidenceLevel   = 0.95
	DefaultTolerance         = 0.05
	DefaultValidationSamples = 1000
	DefaultDegree            = 2
)

// Config represents the complete application configuration
type Config struct {
	Analysis AnalysisConfig `yaml:"analysis" json:"analysis"`
	Server   ServerConfig   `yaml:"server" json:"server"`
	Database DatabaseConfig `yaml:"database" json:"database"`
	LogLevel string         `yaml:"log_level" json:"log_level"`
}

// ServerConfig holds web server settings
type ServerConfig struct {
	Port string `yaml:"port" json:"port"`
}

// DatabaseConfig selects the run store: PostgreSQL when URL is set, else a
// SQLite file when SQLitePath is set, else process memory.
type DatabaseConfig struct {
	URL        string `yaml:"url" json:"url"`
	SQLitePath string `yaml:"sqlite_path" json:"sqlite_path"`
}

// AnalysisConfig is one analysis run's options. Fields tagged required have
// no default and must be set explicitly.
type AnalysisConfig struct {
	Assignment  AssignmentConfig  `yaml:"assignment" json:"assignment"`
	Sampling    SamplingConfig    `yaml:"sampling" json:"sampling"`
	Evaluation  EvaluationConfig  `yaml:"evaluation" json:"evaluation"`
	Sensitivity SensitivityConfig `yaml:"sensitivity" json:"sensitivity"`
	Simplify    SimplifyConfig    `yaml:"simplify" json:"simplify"`
	Validation  ValidationConfig  `yaml:"validation" json:"validation"`
}

// AssignmentConfig drives uncertainty assignment over a host model.
type AssignmentConfig struct {
	Fraction       float64 `yaml:"fraction" json:"fraction" validate:"required,gt=0,lte=1"`
	Spread         float64 `yaml:"spread" json:"spread" validate:"required,gt=0"`
	Distribution   string  `yaml:"distribution" json:"distribution" validate:"required,oneof=uniform triangle normal"`
	ZeroPolicy     string  `yaml:"zero_policy" json:"zero_policy" validate:"required,oneof=skip absolute reject"`
	AbsoluteSpread float64 `yaml:"absolute_spread" json:"absolute_spread" validate:"gte=0"`
	Naming         string  `yaml:"naming" json:"naming" validate:"required,oneof=input input_output"`
}

type SamplingConfig struct {
	N      int     `yaml:"n" json:"n" validate:"required"`
	Seed   *uint64 `yaml:"seed" json:"seed" validate:"required"`
	Scheme string  `yaml:"scheme" json:"scheme" validate:"required,oneof=saltelli quasi_random"`
}

type EvaluationConfig struct {
	Workers   int `yaml:"workers" json:"workers" validate:"gte=0"`
	BatchSize int `yaml:"batch_size" json:"batch_size" validate:"gte=0"`
}

// SensitivityConfig leaves Tolerance and Resamples nil when unset so that an
// explicit 0 survives ApplyDefaults. resamples: 0 disables bootstrap.
type SensitivityConfig struct {
	Tolerance       *float64 `yaml:"tolerance" json:"tolerance,omitempty" validate:"omitempty,gte=0"`
	Resamples       *int     `yaml:"resamples" json:"resamples,omitempty" validate:"omitempty,gte=0"`
	ConfidenceLevel float64 `yaml:"confidence_level" json:"confidence_level" validate:"gte=0,lt=1"`
	SecondOrder     bool    `yaml:"second_order" json:"second_order"`
}

// SimplifyConfig selects retained parameters by exactly one of Cutoff or TopK.
type SimplifyConfig struct {
	Cutoff       *float64 `yaml:"cutoff" json:"cutoff,omitempty" validate:"omitempty,gt=0,lte=1"`
	TopK         *int     `yaml:"top_k" json:"top_k,omitempty" validate:"omitempty,gte=1"`
	Strategy     string   `yaml:"strategy" json:"strategy" validate:"required,oneof=regression symbolic"`
	Degree       int      `yaml:"degree" json:"degree" validate:"gte=0,lte=3"`
	Interactions bool     `yaml:"interactions" json:"interactions"`
}

type ValidationConfig struct {
	Samples int  `yaml:"samples" json:"samples" validate:"gte=0"`
	Skip    bool `yaml:"skip" json:"skip"`
}

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New()
	// Report fields by their YAML key so messages match the file the user wrote.
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name := strings.SplitN(f.Tag.Get("yaml"), ",", 2)[0]
		if name == "-" || name == "" {
			return f.Name
		}
		return name
	})
	return v
}

// Load reads an optional YAML file, applies environment overrides and
// fills operational defaults. It does not validate the analysis section:
// the API server takes analysis options per request.
func Load(path string) (*Config, error) {
	cfg := &Config{}
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, errors.Wrapf(err, "failed to read config %s", path)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, core.NewConfigurationError(core.StageConfig, path, "invalid YAML: %v", err)
		}
	}

	cfg.Server.Port = getEnvOrDefault("PORT", orDefault(cfg.Server.Port, "8080"))
	cfg.Database.URL = getEnvOrDefault("DATABASE_URL", cfg.Database.URL)
	cfg.Database.SQLitePath = getEnvOrDefault("SQLITE_PATH", cfg.Database.SQLitePath)
	cfg.LogLevel = getEnvOrDefault("LOG_LEVEL", orDefault(cfg.LogLevel, "INFO"))
	cfg.Analysis.ApplyDefaults()

	if _, err := strconv.Atoi(cfg.Server.Port); err != nil {
		return nil, core.NewConfigurationError(core.StageConfig, "server.port", "must be numeric, got %q", cfg.Server.Port)
	}
	return cfg, nil
}

// ParseAnalysis decodes a standalone analysis section (YAML or JSON, which
// YAML accepts), applies defaults and validates it.
func ParseAnalysis(data []byte) (*AnalysisConfig, error) {
	var a AnalysisConfig
	if err := yaml.Unmarshal(data, &a); err != nil {
		return nil, core.NewConfigurationError(core.StageConfig, "analysis", "invalid document: %v", err)
	}
	a.ApplyDefaults()
	if err := a.Validate(); err != nil {
		return nil, err
	}
	return &a, nil
}

// ApplyDefaults fills zero-valued operational knobs.
func (a *AnalysisConfig) ApplyDefaults() {
	if a.Evaluation.Workers == 0 {
		a.Evaluation.Workers = DefaultWorkers
	}
	if a.Evaluation.BatchSize == 0 {
		a.Evaluation.BatchSize = DefaultBatchSize
	}
	if a.Sensitivity.Tolerance == nil {
		tolerance := DefaultTolerance
		a.Sensitivity.Tolerance = &tolerance
	}
	if a.Sensitivity.Resamples == nil {
		resamples := DefaultResamples
		a.Sensitivity.Resamples = &resamples
	}
	if a.Sensitivity.ConfidenceLevel == 0 {
		a.Sensitivity.ConfidenceLevel = DefaultConfidenceLevel
	}
	if a.Simplify.Degree == 0 {
		a.Simplify.Degree = DefaultDegree
	}
	if a.Validation.Samples == 0 {
		a.Validation.Samples = DefaultValidationSamples
	}
}

// Validate checks the sampling, sensitivity and simplification options.
// Assignment options are checked separately by ValidateAssignment because
// models with declared parameters skip assignment.
func (a *AnalysisConfig) Validate() error {
	sections := []struct {
		name  string
		value interface{}
	}{
		{"sampling", a.Sampling},
		{"evaluation", a.Evaluation},
		{"sensitivity", a.Sensitivity},
		{"simplify", a.Simplify},
		{"validation", a.Validation},
	}
	for _, s := range sections {
		if err := validateStruct(s.name, s.value); err != nil {
			return err
		}
	}
	switch {
	case a.Simplify.Cutoff != nil && a.Simplify.TopK != nil:
		return core.NewConfigurationError(core.StageConfig, "simplify", "cutoff and top_k are mutually exclusive")
	case a.Simplify.Cutoff == nil && a.Simplify.TopK == nil:
		return core.NewConfigurationError(core.StageConfig, "simplify", "one of cutoff or top_k is required")
	}
	return nil
}

// ValidateAssignment checks the uncertainty assignment section.
func (a *AnalysisConfig) ValidateAssignment() error {
	if err := validateStruct("assignment", a.Assignment); err != nil {
		return err
	}
	if a.Assignment.ZeroPolicy == "absolute" && a.Assignment.AbsoluteSpread <= 0 {
		return core.NewConfigurationError(core.StageConfig, "assignment.absolute_spread",
			"must be positive when zero_policy is absolute")
	}
	return nil
}

// Tolerance returns the S1 <= ST slack, DefaultTolerance when unset.
func (a *AnalysisConfig) Tolerance() float64 {
	if a.Sensitivity.Tolerance == nil {
		return DefaultTolerance
	}
	return *a.Sensitivity.Tolerance
}

// Resamples returns the bootstrap draw count, DefaultResamples when unset.
func (a *AnalysisConfig) Resamples() int {
	if a.Sensitivity.Resamples == nil {
		return DefaultResamples
	}
	return *a.Sensitivity.Resamples
}

// Seed returns the configured root seed. Validate guarantees it is set.
func (a *AnalysisConfig) Seed() uint64 {
	if a.Sampling.Seed == nil {
		return 0
	}
	return *a.Sampling.Seed
}

func validateStruct(section string, v interface{}) error {
	err := validate.Struct(v)
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if !stderrors.As(err, &verrs) || len(verrs) == 0 {
		return core.NewConfigurationError(core.StageConfig, section, "%v", err)
	}
	fe := verrs[0]
	field := section + "." + fe.Field()
	if fe.Tag() == "required" {
		return core.NewConfigurationError(core.StageConfig, field, "is required")
	}
	if fe.Param() != "" {
		return core.NewConfigurationError(core.StageConfig, field, "failed %s=%s (got %v)", fe.Tag(), fe.Param(), fe.Value())
	}
	return core.NewConfigurationError(core.StageConfig, field, "failed %s (got %v)", fe.Tag(), fe.Value())
}

// Helper functions for environment variable parsing
func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func orDefault(v, def string) string {
	if v == "" {
		return def
	}
	return v
}

// String renders the analysis options for logs.
func (a *AnalysisConfig) String() string {
	sel := "cutoff=?"
	if a.Simplify.Cutoff != nil {
		sel = fmt.Sprintf("cutoff=%g", *a.Simplify.Cutoff)
	} else if a.Simplify.TopK != nil {
		sel = fmt.Sprintf("top_k=%d", *a.Simplify.TopK)
	}
	return fmt.Sprintf("scheme=%s n=%d seed=%d %s strategy=%s",
		a.Sampling.Scheme, a.Sampling.N, a.Seed(), sel, a.Simplify.Strategy)
}
