package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	rmdiniz "github.com/jsibley/convert-rmd-to-iniz"
	"github.com/jsibley/convert-rmd-to-iniz/pkg/issue"
	"github.com/jsibley/convert-rmd-to-iniz/pkg/schema"
)

func noEnv(string) (string, bool) { return "", false }

func envMap(m map[string]string) func(string) (string, bool) {
	return func(k string) (string, bool) {
		v, ok := m[k]
		return v, ok
	}
}

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestDefault(t *testing.T) {
	cfg := Default()
	assert.Equal(t, "uuid", cfg.Mode)
	assert.Equal(t, rmdiniz.DefaultBasename, cfg.Basename)
	assert.True(t, cfg.Drugs)
	assert.False(t, cfg.FHIR.Enabled)
	assert.Equal(t, "info", cfg.Log.Level)

	err := cfg.Validate()
	require.Error(t, err, "archive and output are required")
	assert.ErrorIs(t, err, issue.ErrConfiguration)
	assert.Contains(t, err.Error(), "archive is required")
	assert.Contains(t, err.Error(), "output is required")
}

func TestLoadLayers(t *testing.T) {
	file := writeFile(t, "rmd2iniz.yaml", `
archive: from-file.omod
output: out-file
mode: legacy
basename: ciel
order: 2
fhir:
  enabled: true
  url: http://example.org/fhir/CodeSystem/ciel
log:
  level: debug
`)
	envFile := writeFile(t, "test.env", "RMD2INIZ_OUTPUT=out-dotenv\nRMD2INIZ_VERSION=20190531\n")

	l := NewLoader(
		WithFile(file),
		WithEnvFile(envFile),
		WithLookup(envMap(map[string]string{
			"RMD2INIZ_VERSION": "20200101",
			"RMD2INIZ_DRUGS":   "false",
			"UNRELATED":        "x",
		})),
	)
	cfg, err := l.Load()
	require.NoError(t, err)
	require.NoError(t, cfg.Validate())

	assert.Equal(t, "from-file.omod", cfg.Archive)
	assert.Equal(t, "out-dotenv", cfg.Output)
	assert.Equal(t, "legacy", cfg.Mode)
	assert.Equal(t, "ciel", cfg.Basename)
	assert.Equal(t, "20200101", cfg.Version)
	assert.Equal(t, 2, cfg.Order)
	assert.False(t, cfg.Drugs)
	assert.True(t, cfg.FHIR.Enabled)
	assert.Equal(t, "en", cfg.FHIR.Language)
	assert.Equal(t, "debug", cfg.Log.Level)
	assert.Equal(t, "console", cfg.Log.Format)
	assert.Equal(t, []string{"defaults", file, envFile, "environment"}, l.Sources())
}

func TestLoadMissingDefaultEnvFileIgnored(t *testing.T) {
	wd, err := os.Getwd()
	require.NoError(t, err)
	require.NoError(t, os.Chdir(t.TempDir()))
	t.Cleanup(func() { _ = os.Chdir(wd) })

	l := NewLoader(WithLookup(noEnv))
	_, err = l.Load()
	require.NoError(t, err)
	assert.Equal(t, []string{"defaults"}, l.Sources())
}

func TestLoadErrors(t *testing.T) {
	tests := []struct {
		name   string
		opts   []LoaderOption
		wantID issue.DiagnosticID
	}{
		{
			name:   "missing config file",
			opts:   []LoaderOption{WithFile(filepath.Join(t.TempDir(), "nope.yaml"))},
			wantID: issue.DiagConfigUnreadable,
		},
		{
			name:   "missing explicit env file",
			opts:   []LoaderOption{WithEnvFile(filepath.Join(t.TempDir(), "nope.env"))},
			wantID: issue.DiagConfigUnreadable,
		},
		{
			name:   "unknown yaml key",
			opts:   []LoaderOption{WithFile(writeFile(t, "bad.yaml", "archive: a\ncolour: blue\n"))},
			wantID: issue.DiagConfigInvalid,
		},
		{
			name:   "malformed yaml",
			opts:   []LoaderOption{WithFile(writeFile(t, "bad.yaml", "archive: [a\n"))},
			wantID: issue.DiagConfigInvalid,
		},
		{
			name:   "bad order",
			opts:   []LoaderOption{WithLookup(envMap(map[string]string{"RMD2INIZ_ORDER": "first"}))},
			wantID: issue.DiagConfigInvalid,
		},
		{
			name:   "bad boolean",
			opts:   []LoaderOption{WithLookup(envMap(map[string]string{"RMD2INIZ_FHIR_ENABLED": "maybe"}))},
			wantID: issue.DiagConfigInvalid,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			opts := append([]LoaderOption{WithLookup(noEnv), WithEnvFile("")}, tt.opts...)
			_, err := NewLoader(opts...).Load()
			require.Error(t, err)
			assert.ErrorIs(t, err, issue.ErrConfiguration)

			var e *issue.Error
			require.ErrorAs(t, err, &e)
			assert.Equal(t, tt.wantID, e.ID)
		})
	}
}

func TestLoadEmptyFile(t *testing.T) {
	cfg, err := NewLoader(WithFile(writeFile(t, "empty.yaml", "")), WithEnvFile(""), WithLookup(noEnv)).Load()
	require.NoError(t, err)
	assert.Equal(t, Default(), cfg)
}

func TestValidate(t *testing.T) {
	valid := func() *Config {
		cfg := Default()
		cfg.Archive = "in.omod"
		cfg.Output = "out"
		return cfg
	}

	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
		wantID  issue.DiagnosticID
	}{
		{name: "valid", mutate: func(*Config) {}},
		{name: "mode alias", mutate: func(c *Config) { c.Mode = "pre2x" }},
		{name: "upper case log level", mutate: func(c *Config) { c.Log.Level = "WARN" }},
		{name: "unsupported mode", mutate: func(c *Config) { c.Mode = "xml" }, wantID: issue.DiagConfigUnsupportedMode},
		{name: "basename with slash", mutate: func(c *Config) { c.Basename = "a/b" }, wantErr: "basename contains forbidden characters"},
		{name: "empty basename", mutate: func(c *Config) { c.Basename = "" }, wantErr: "basename is required"},
		{name: "negative order", mutate: func(c *Config) { c.Order = -1 }, wantErr: "order must be at least 0"},
		{name: "bad log format", mutate: func(c *Config) { c.Log.Format = "xml" }, wantErr: "log.format must be one of"},
		{name: "fhir without url", mutate: func(c *Config) { c.FHIR.Enabled, c.FHIR.URL = true, "" }, wantErr: "fhir.url is required"},
		{name: "fhir bad url", mutate: func(c *Config) { c.FHIR.Enabled, c.FHIR.URL = true, "not a url" }, wantErr: "fhir.url must be a valid URL"},
		{name: "fhir disabled without url", mutate: func(c *Config) { c.FHIR.URL = "" }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := valid()
			tt.mutate(cfg)
			err := cfg.Validate()
			if tt.wantErr == "" && tt.wantID == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.ErrorIs(t, err, issue.ErrConfiguration)
			if tt.wantErr != "" {
				assert.Contains(t, err.Error(), tt.wantErr)
			}
			if tt.wantID != "" {
				var e *issue.Error
				require.ErrorAs(t, err, &e)
				assert.Equal(t, tt.wantID, e.ID)
			}
		})
	}
}

func TestValidateNormalizesMode(t *testing.T) {
	cfg := Default()
	cfg.Archive, cfg.Output, cfg.Mode = "in.omod", "out", "pre2.x"
	require.NoError(t, cfg.Validate())
	assert.Equal(t, "legacy", cfg.Mode)
}

func TestOptions(t *testing.T) {
	cfg := Default()
	cfg.Mode = "legacy"
	cfg.Basename = "ciel"
	cfg.Version = "7"
	cfg.Order = 3
	cfg.Drugs = false
	cfg.FHIR.Enabled = true
	cfg.FHIR.Language = "fr"

	o := rmdiniz.Apply(cfg.Options()...)
	assert.Equal(t, schema.ModeLegacy, o.Mode)
	assert.Equal(t, "ciel", o.Basename)
	assert.Equal(t, "7", o.Version)
	assert.Equal(t, 3, o.Order)
	assert.True(t, o.SkipDrugs)
	assert.True(t, o.FHIR)
	assert.Equal(t, rmdiniz.DefaultFHIRURL, o.FHIRURL)
	assert.Equal(t, "fr", o.FHIRLanguage)
}
