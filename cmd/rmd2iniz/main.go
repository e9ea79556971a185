// Package main implements the rmd2iniz CLI tool.
// It converts the concept dictionary of a Reference Metadata module package
// into the Initializer configuration layout.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"go.uber.org/zap"

	rmdiniz "github.com/jsibley/convert-rmd-to-iniz"
	"github.com/jsibley/convert-rmd-to-iniz/engine"
	"github.com/jsibley/convert-rmd-to-iniz/pkg/config"
	"github.com/jsibley/convert-rmd-to-iniz/pkg/logger"
	"github.com/jsibley/convert-rmd-to-iniz/pkg/metrics"
	"github.com/jsibley/convert-rmd-to-iniz/pkg/schema"
)

const usage = `rmd2iniz - Reference Metadata to Initializer converter

Usage:
  rmd2iniz [options] <path to RMD .omod> <output dir>

The Initializer domains are written under <output dir>/configuration.
Existing files there are replaced when this run writes the same path.
Files from earlier runs that this run does not write (another -basename,
or drugs/ after -no-drugs) are kept and reported as warnings; use an
empty output directory for a clean tree.

Examples:
  rmd2iniz referencemetadata-2.10.0.omod out
  rmd2iniz -pre2x referencemetadata-2.5.omod out
  rmd2iniz -fhir -basename ciel referencemetadata-2.10.0.omod out
  rmd2iniz -config rmd2iniz.yaml

Options:
`

// Exit codes.
const (
	exitOK         = 0
	exitConversion = 1
	exitUsage      = 2
)

// flags holds the raw command-line values. Only flags set explicitly
// override the loaded configuration.
type flags struct {
	legacy      bool
	configFile  string
	envFile     string
	basename    string
	dictVersion string
	order       int
	noDrugs     bool
	fhir        bool
	fhirURL     string
	fhirLang    string
	metricsFile string
	logLevel    string
	logFormat   string
	showVersion bool
	help        bool
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	code := run(ctx, os.Args[1:], os.Stdout, os.Stderr, os.LookupEnv)
	stop()
	os.Exit(code)
}

func newFlagSet(f *flags, stderr io.Writer) *flag.FlagSet {
	fs := flag.NewFlagSet("rmd2iniz", flag.ContinueOnError)
	fs.SetOutput(stderr)

	fs.BoolVar(&f.legacy, "pre2x", false, "Read the pre 2.x (integer key) dataset encoding")
	fs.BoolVar(&f.legacy, "legacy", false, "Alias for -pre2x")
	fs.StringVar(&f.configFile, "config", "", "YAML configuration file")
	fs.StringVar(&f.envFile, "env-file", "", "Environment file (default .env when present)")
	fs.StringVar(&f.basename, "basename", rmdiniz.DefaultBasename, "File name, without extension, of every domain file")
	fs.StringVar(&f.dictVersion, "dict-version", "", "Override the _version meta header (default: version in the member names)")
	fs.IntVar(&f.order, "order", 0, "Value of the _order meta header")
	fs.BoolVar(&f.noDrugs, "no-drugs", false, "Do not write the drugs domain")
	fs.BoolVar(&f.fhir, "fhir", false, "Also export the dictionary as a FHIR R4 CodeSystem")
	fs.StringVar(&f.fhirURL, "fhir-url", rmdiniz.DefaultFHIRURL, "Canonical URL of the exported CodeSystem")
	fs.StringVar(&f.fhirLang, "fhir-language", "en", "Locale used for CodeSystem displays")
	fs.StringVar(&f.metricsFile, "metrics-file", "", "Write run metrics to this file in the textfile collector format")
	fs.StringVar(&f.logLevel, "log-level", "info", "Log level: debug, info, warn, error, none")
	fs.StringVar(&f.logFormat, "log-format", "console", "Log format: console, json")
	fs.BoolVar(&f.showVersion, "version", false, "Show version")
	fs.BoolVar(&f.help, "help", false, "Show help")
	fs.BoolVar(&f.help, "h", false, "Show help")

	fs.Usage = func() {
		fmt.Fprint(stderr, usage)
		fs.PrintDefaults()
	}
	return fs
}

// apply overlays the flags set on the command line onto cfg.
func (f *flags) apply(fs *flag.FlagSet, cfg *config.Config) {
	fs.Visit(func(fl *flag.Flag) {
		switch fl.Name {
		case "pre2x", "legacy":
			if f.legacy {
				cfg.Mode = string(schema.ModeLegacy)
			} else {
				cfg.Mode = string(schema.ModeUUID)
			}
		case "basename":
			cfg.Basename = f.basename
		case "dict-version":
			cfg.Version = f.dictVersion
		case "order":
			cfg.Order = f.order
		case "no-drugs":
			cfg.Drugs = !f.noDrugs
		case "fhir":
			cfg.FHIR.Enabled = f.fhir
		case "fhir-url":
			cfg.FHIR.URL = f.fhirURL
		case "fhir-language":
			cfg.FHIR.Language = f.fhirLang
		case "metrics-file":
			cfg.MetricsFile = f.metricsFile
		case "log-level":
			cfg.Log.Level = f.logLevel
		case "log-format":
			cfg.Log.Format = f.logFormat
		}
	})
}

func run(ctx context.Context, args []string, stdout, stderr io.Writer, lookup func(string) (string, bool)) int {
	var f flags
	fs := newFlagSet(&f, stderr)
	if err := fs.Parse(args); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return exitOK
		}
		return exitUsage
	}

	if f.showVersion {
		fmt.Fprintf(stdout, "rmd2iniz v%s\n", rmdiniz.ToolVersion)
		return exitOK
	}
	if f.help {
		fs.Usage()
		return exitOK
	}
	if fs.NArg() > 2 {
		fmt.Fprintf(stderr, "Error: expected 2 arguments, got %d\n\n", fs.NArg())
		fs.Usage()
		return exitUsage
	}

	cfg, err := loadConfig(fs, &f, lookup)
	if err != nil {
		fmt.Fprintf(stderr, "Error: %v\n", err)
		if fs.NArg() < 2 {
			fmt.Fprintln(stderr)
			fs.Usage()
		}
		return exitUsage
	}

	level, _ := logger.ParseLevel(cfg.Log.Level)
	format, _ := logger.ParseFormat(cfg.Log.Format)
	log := logger.New(stderr, level, format)
	defer func() { _ = log.Sync() }()

	opts := append(cfg.Options(), rmdiniz.WithLogger(log))
	var m *metrics.Metrics
	if cfg.MetricsFile != "" {
		m = metrics.New()
		opts = append(opts, rmdiniz.WithMetrics(m))
	}

	res, err := engine.New(opts...).Convert(ctx, cfg.Archive, cfg.Output)
	if m != nil {
		if werr := m.WriteTextfile(cfg.MetricsFile); werr != nil {
			log.Warn("metrics not written", zap.String("path", cfg.MetricsFile), zap.Error(werr))
		}
	}
	if err != nil {
		fmt.Fprintf(stderr, "Error: %v\n", err)
		return exitConversion
	}

	root := filepath.Join(cfg.Output, rmdiniz.ConfigurationDir)
	for _, p := range res.Files {
		fmt.Fprintln(stdout, filepath.Join(root, filepath.FromSlash(p)))
	}
	fmt.Fprintf(stdout, "%d concepts, %d files, version %s (%s)\n",
		res.Entities.Concepts, len(res.Files), res.Version, res.Duration.Round(time.Millisecond))
	return exitOK
}

// loadConfig layers defaults, the configuration file, the environment, the
// flags and the positional arguments, then validates the result.
func loadConfig(fs *flag.FlagSet, f *flags, lookup func(string) (string, bool)) (*config.Config, error) {
	loaderOpts := []config.LoaderOption{config.WithLookup(lookup)}
	if f.configFile != "" {
		loaderOpts = append(loaderOpts, config.WithFile(f.configFile))
	}
	if f.envFile != "" {
		loaderOpts = append(loaderOpts, config.WithEnvFile(f.envFile))
	}

	cfg, err := config.NewLoader(loaderOpts...).Load()
	if err != nil {
		return nil, err
	}
	f.apply(fs, cfg)
	if fs.NArg() > 0 {
		cfg.Archive = fs.Arg(0)
	}
	if fs.NArg() > 1 {
		cfg.Output = fs.Arg(1)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}
