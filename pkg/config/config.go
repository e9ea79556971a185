// Package config loads the converter configuration from defaults, a YAML
// file, a .env file and RMD2INIZ_* environment variables, in increasing
// priority. Command-line flags are applied on top by the CLI before
// validation.
package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	rmdiniz "github.com/jsibley/convert-rmd-to-iniz"
	"github.com/jsibley/convert-rmd-to-iniz/pkg/issue"
	"github.com/jsibley/convert-rmd-to-iniz/pkg/schema"
)

// EnvPrefix prefixes every environment variable read by the loader.
const EnvPrefix = "RMD2INIZ_"

// DefaultEnvFile is read when present and no other env file is configured.
const DefaultEnvFile = ".env"

// Config is the complete run configuration.
type Config struct {
	Archive     string     `yaml:"archive" validate:"required"`
	Output      string     `yaml:"output" validate:"required"`
	Mode        string     `yaml:"mode" validate:"oneof=uuid legacy"`
	Basename    string     `yaml:"basename" validate:"required,excludesall=/\\"`
	Version     string     `yaml:"version" validate:"omitempty,excludesall=\r\n"`
	Order       int        `yaml:"order" validate:"gte=0"`
	Drugs       bool       `yaml:"drugs"`
	FHIR        FHIRConfig `yaml:"fhir"`
	MetricsFile string     `yaml:"metrics_file"`
	Log         LogConfig  `yaml:"log"`
}

// FHIRConfig configures the CodeSystem export.
type FHIRConfig struct {
	Enabled  bool   `yaml:"enabled"`
	URL      string `yaml:"url" validate:"required_if=Enabled true,omitempty,url"`
	Language string `yaml:"language" validate:"required"`
}

// LogConfig configures logging.
type LogConfig struct {
	Level  string `yaml:"level" validate:"oneof=debug info warn error none"`
	Format string `yaml:"format" validate:"oneof=console json"`
}

// Default returns the default configuration. Archive and Output have no
// default.
func Default() *Config {
	return &Config{
		Mode:     string(schema.ModeUUID),
		Basename: rmdiniz.DefaultBasename,
		Drugs:    true,
		FHIR: FHIRConfig{
			URL:      rmdiniz.DefaultFHIRURL,
			Language: "en",
		},
		Log: LogConfig{
			Level:  "info",
			Format: "console",
		},
	}
}

// Loader overlays configuration sources.
type Loader struct {
	file    string
	envFile string
	lookup  func(string) (string, bool)
	sources []string
}

// LoaderOption configures a Loader.
type LoaderOption func(*Loader)

// WithFile reads a YAML configuration file. A missing file is an error.
func WithFile(path string) LoaderOption {
	return func(l *Loader) {
		l.file = path
	}
}

// WithEnvFile reads a .env file. A missing file is an error unless it is
// the default.
func WithEnvFile(path string) LoaderOption {
	return func(l *Loader) {
		l.envFile = path
	}
}

// WithLookup replaces os.LookupEnv.
func WithLookup(fn func(string) (string, bool)) LoaderOption {
	return func(l *Loader) {
		l.lookup = fn
	}
}

// NewLoader creates a loader.
func NewLoader(opts ...LoaderOption) *Loader {
	l := &Loader{envFile: DefaultEnvFile, lookup: os.LookupEnv}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// Sources lists the sources applied by the last Load, in order.
func (l *Loader) Sources() []string {
	return l.sources
}

// Load builds the configuration without validating it, so flags can still
// be applied. Call Validate before use.
func (l *Loader) Load() (*Config, error) {
	cfg := Default()
	l.sources = []string{"defaults"}

	if l.file != "" {
		if err := l.loadFile(cfg); err != nil {
			return nil, err
		}
		l.sources = append(l.sources, l.file)
	}

	env, err := l.environment()
	if err != nil {
		return nil, err
	}
	if err := applyEnv(cfg, env); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (l *Loader) loadFile(cfg *Config) error {
	data, err := os.ReadFile(l.file)
	if err != nil {
		return issue.New(issue.DiagConfigUnreadable, map[string]any{"path": l.file}).Wrap(err)
	}
	if err := decodeYAML(bytes.NewReader(data), cfg); err != nil {
		return issue.New(issue.DiagConfigInvalid, map[string]any{"error": l.file + ": " + err.Error()}).Wrap(err)
	}
	return nil
}

// decodeYAML decodes strictly: unknown keys are rejected. An empty document
// leaves cfg untouched.
func decodeYAML(r io.Reader, cfg *Config) error {
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil && !errors.Is(err, io.EOF) {
		return err
	}
	return nil
}

// environment merges the .env file with the process environment, the
// latter winning.
func (l *Loader) environment() (map[string]string, error) {
	env := make(map[string]string)

	if l.envFile != "" {
		values, err := godotenv.Read(l.envFile)
		switch {
		case err == nil:
			for k, v := range values {
				env[k] = v
			}
			l.sources = append(l.sources, l.envFile)
		case errors.Is(err, os.ErrNotExist) && l.envFile == DefaultEnvFile:
		default:
			return nil, issue.New(issue.DiagConfigUnreadable, map[string]any{"path": l.envFile}).Wrap(err)
		}
	}

	applied := false
	for _, key := range envKeys {
		if v, ok := l.lookup(EnvPrefix + key); ok {
			env[EnvPrefix+key] = v
			applied = true
		}
	}
	if applied {
		l.sources = append(l.sources, "environment")
	}
	return env, nil
}

var envKeys = []string{
	"ARCHIVE", "OUTPUT", "MODE", "BASENAME", "VERSION", "ORDER", "DRUGS",
	"FHIR_ENABLED", "FHIR_URL", "FHIR_LANGUAGE", "METRICS_FILE", "LOG_LEVEL", "LOG_FORMAT",
}

func applyEnv(cfg *Config, env map[string]string) error {
	str := func(key string, dst *string) {
		if v, ok := env[EnvPrefix+key]; ok {
			*dst = strings.TrimSpace(v)
		}
	}
	boolean := func(key string, dst *bool) error {
		v, ok := env[EnvPrefix+key]
		if !ok {
			return nil
		}
		b, err := strconv.ParseBool(strings.TrimSpace(v))
		if err != nil {
			return envError(key, v, err)
		}
		*dst = b
		return nil
	}

	str("ARCHIVE", &cfg.Archive)
	str("OUTPUT", &cfg.Output)
	str("MODE", &cfg.Mode)
	str("BASENAME", &cfg.Basename)
	str("VERSION", &cfg.Version)
	str("FHIR_URL", &cfg.FHIR.URL)
	str("FHIR_LANGUAGE", &cfg.FHIR.Language)
	str("METRICS_FILE", &cfg.MetricsFile)
	str("LOG_LEVEL", &cfg.Log.Level)
	str("LOG_FORMAT", &cfg.Log.Format)

	if v, ok := env[EnvPrefix+"ORDER"]; ok {
		n, err := strconv.Atoi(strings.TrimSpace(v))
		if err != nil {
			return envError("ORDER", v, err)
		}
		cfg.Order = n
	}
	if err := boolean("DRUGS", &cfg.Drugs); err != nil {
		return err
	}
	return boolean("FHIR_ENABLED", &cfg.FHIR.Enabled)
}

func envError(key, value string, err error) error {
	return issue.New(issue.DiagConfigInvalid, map[string]any{
		"error": fmt.Sprintf("%s%s=%q is not valid", EnvPrefix, key, value),
	}).Wrap(err)
}

var validate = validator.New()

// Validate checks the configuration and normalizes the mode name.
func (c *Config) Validate() error {
	if mode, err := schema.ParseMode(c.Mode); err == nil {
		c.Mode = string(mode)
	} else {
		return err
	}
	c.Log.Level = strings.ToLower(c.Log.Level)
	c.Log.Format = strings.ToLower(c.Log.Format)

	if err := validate.Struct(c); err != nil {
		return issue.New(issue.DiagConfigInvalid, map[string]any{"error": formatValidationError(err)}).Wrap(err)
	}
	return nil
}

// formatValidationError formats validation errors into readable messages.
func formatValidationError(err error) string {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return err.Error()
	}
	msgs := make([]string, 0, len(verrs))
	for _, e := range verrs {
		msgs = append(msgs, formatFieldError(e))
	}
	return strings.Join(msgs, "; ")
}

// formatFieldError formats a single field validation error.
func formatFieldError(e validator.FieldError) string {
	field := strings.ToLower(strings.TrimPrefix(e.Namespace(), "Config."))

	switch e.Tag() {
	case "required", "required_if":
		return fmt.Sprintf("%s is required", field)
	case "oneof":
		return fmt.Sprintf("%s must be one of: %s", field, e.Param())
	case "gte":
		return fmt.Sprintf("%s must be at least %s", field, e.Param())
	case "url":
		return fmt.Sprintf("%s must be a valid URL", field)
	case "excludesall":
		return fmt.Sprintf("%s contains forbidden characters", field)
	default:
		return fmt.Sprintf("%s is invalid", field)
	}
}

// Options converts the configuration into conversion options.
func (c *Config) Options() []rmdiniz.Option {
	return []rmdiniz.Option{
		rmdiniz.WithMode(schema.Mode(c.Mode)),
		rmdiniz.WithBasename(c.Basename),
		rmdiniz.WithVersion(c.Version),
		rmdiniz.WithOrder(c.Order),
		rmdiniz.WithDrugs(c.Drugs),
		rmdiniz.WithFHIR(c.FHIR.Enabled, c.FHIR.URL),
		rmdiniz.WithFHIRLanguage(c.FHIR.Language),
	}
}
