package main

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jsibley/convert-rmd-to-iniz/pkg/testutil"
)

func noEnv(string) (string, bool) { return "", false }

func execute(t *testing.T, args ...string) (int, string, string) {
	t.Helper()
	var stdout, stderr bytes.Buffer
	code := run(context.Background(), args, &stdout, &stderr, noEnv)
	return code, stdout.String(), stderr.String()
}

func writeOMOD(t *testing.T, data []byte) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "referencemetadata.omod")
	require.NoError(t, os.WriteFile(path, data, 0o644))
	return path
}

func TestRunConverts(t *testing.T) {
	in := writeOMOD(t, testutil.MalariaOMOD(t))
	out := t.TempDir()

	code, stdout, stderr := execute(t, "-log-level", "none", in, out)
	require.Equal(t, exitOK, code, stderr)

	concepts := filepath.Join(out, "configuration", "concepts", "reference_application.csv")
	assert.Contains(t, stdout, concepts)
	assert.Contains(t, stdout, "3 concepts, 3 files, version 20190531")

	data, err := os.ReadFile(concepts)
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(string(data), "Uuid,Void/Retire,"))
}

func TestRunLegacyFlag(t *testing.T) {
	in := writeOMOD(t, testutil.MalariaLegacyOMOD(t))

	for _, flag := range []string{"-pre2x", "-legacy"} {
		t.Run(flag, func(t *testing.T) {
			code, _, stderr := execute(t, "-log-level", "none", flag, in, t.TempDir())
			assert.Equal(t, exitOK, code, stderr)
		})
	}

	code, _, stderr := execute(t, "-log-level", "none", in, t.TempDir())
	assert.Equal(t, exitConversion, code)
	assert.Contains(t, stderr, "parse")
}

func TestRunOptions(t *testing.T) {
	in := writeOMOD(t, testutil.MalariaOMOD(t))
	out := t.TempDir()
	metricsFile := filepath.Join(t.TempDir(), "rmd2iniz.prom")

	code, _, stderr := execute(t,
		"-log-level", "none",
		"-basename", "malaria",
		"-dict-version", "7",
		"-order", "2",
		"-fhir",
		"-metrics-file", metricsFile,
		in, out)
	require.Equal(t, exitOK, code, stderr)

	data, err := os.ReadFile(filepath.Join(out, "configuration", "concepts", "malaria.csv"))
	require.NoError(t, err)
	assert.Contains(t, strings.SplitN(string(data), "\n", 2)[0], ",_version:7,_order:2")

	_, err = os.Stat(filepath.Join(out, "configuration", "fhir", "CodeSystem-malaria.json"))
	assert.NoError(t, err)

	prom, err := os.ReadFile(metricsFile)
	require.NoError(t, err)
	assert.Contains(t, string(prom), "rmd2iniz_last_run_success 1")
}

func TestRunConfigFile(t *testing.T) {
	in := writeOMOD(t, testutil.MalariaOMOD(t))
	out := t.TempDir()
	cfg := filepath.Join(t.TempDir(), "rmd2iniz.yaml")
	require.NoError(t, os.WriteFile(cfg, []byte("archive: "+in+"\noutput: "+out+"\nbasename: fromfile\nlog:\n  level: none\n"), 0o644))

	code, _, stderr := execute(t, "-config", cfg)
	require.Equal(t, exitOK, code, stderr)

	_, err := os.Stat(filepath.Join(out, "configuration", "concepts", "fromfile.csv"))
	assert.NoError(t, err)
}

func TestRunUsage(t *testing.T) {
	tests := []struct {
		name       string
		args       []string
		wantCode   int
		wantStdout string
		wantStderr string
	}{
		{name: "help", args: []string{"-h"}, wantCode: exitOK, wantStderr: "Usage:"},
		{name: "long help", args: []string{"-help"}, wantCode: exitOK, wantStderr: "Usage:"},
		{name: "version", args: []string{"-version"}, wantCode: exitOK, wantStdout: "rmd2iniz v"},
		{name: "no arguments", args: nil, wantCode: exitUsage, wantStderr: "archive is required"},
		{name: "one argument", args: []string{"in.omod"}, wantCode: exitUsage, wantStderr: "output is required"},
		{name: "too many arguments", args: []string{"a", "b", "c"}, wantCode: exitUsage, wantStderr: "expected 2 arguments"},
		{name: "unknown flag", args: []string{"-bogus", "a", "b"}, wantCode: exitUsage, wantStderr: "-bogus"},
		{name: "bad log level", args: []string{"-log-level", "loud", "a", "b"}, wantCode: exitUsage, wantStderr: "log.level must be one of"},
		{name: "bad basename", args: []string{"-basename", "a/b", "a", "b"}, wantCode: exitUsage, wantStderr: "basename contains forbidden characters"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			code, stdout, stderr := execute(t, tt.args...)
			assert.Equal(t, tt.wantCode, code)
			if tt.wantStdout != "" {
				assert.Contains(t, stdout, tt.wantStdout)
			}
			if tt.wantStderr != "" {
				assert.Contains(t, stderr, tt.wantStderr)
			}
		})
	}
}

func TestRunHelpHasNoSideEffects(t *testing.T) {
	out := filepath.Join(t.TempDir(), "out")
	code, _, _ := execute(t, "-h", writeOMOD(t, testutil.MalariaOMOD(t)), out)
	assert.Equal(t, exitOK, code)
	_, err := os.Stat(out)
	assert.True(t, os.IsNotExist(err))
}

func TestRunConversionFailure(t *testing.T) {
	out := t.TempDir()
	code, _, stderr := execute(t, "-log-level", "none", filepath.Join(t.TempDir(), "missing.omod"), out)
	assert.Equal(t, exitConversion, code)
	assert.Contains(t, stderr, "Error:")

	entries, err := os.ReadDir(out)
	require.NoError(t, err)
	assert.Empty(t, entries)
}
