// Package engine runs the conversion pipeline.
package engine

import (
	"context"
	"errors"
	"path/filepath"
	"sort"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	rmdiniz "github.com/jsibley/convert-rmd-to-iniz"
	"github.com/jsibley/convert-rmd-to-iniz/pkg/archive"
	"github.com/jsibley/convert-rmd-to-iniz/pkg/graph"
	"github.com/jsibley/convert-rmd-to-iniz/pkg/issue"
	"github.com/jsibley/convert-rmd-to-iniz/pkg/metrics"
	"github.com/jsibley/convert-rmd-to-iniz/pkg/parser"
	"github.com/jsibley/convert-rmd-to-iniz/pkg/record"
	"github.com/jsibley/convert-rmd-to-iniz/pkg/resolve"
	"github.com/jsibley/convert-rmd-to-iniz/pkg/schema"
	"github.com/jsibley/convert-rmd-to-iniz/pkg/serialize"
	"github.com/jsibley/convert-rmd-to-iniz/pkg/writer"
	"github.com/jsibley/convert-rmd-to-iniz/terminology"
)

// Stage names, as reported in logs and metrics.
const (
	StageSchema  = "schema"
	StageArchive = "archive"
	StageParse   = "parse"
	StageResolve = "resolve"
	StageRender  = "serialize"
	StageExport  = "export"
	StageWrite   = "write"
)

// Converter converts module packages into Initializer configuration.
// A Converter is safe for sequential reuse.
type Converter struct {
	options  *rmdiniz.Options
	log      *zap.Logger
	metrics  *metrics.Metrics
	exporter *terminology.Exporter
}

// New creates a Converter with the given options.
func New(opts ...rmdiniz.Option) *Converter {
	options := rmdiniz.Apply(opts...)

	return &Converter{
		options:  options,
		log:      options.Logger,
		metrics:  options.Metrics,
		exporter: terminology.NewExporter(options.Logger.Named("fhir")),
	}
}

// Options returns the converter's configuration.
func (c *Converter) Options() *rmdiniz.Options {
	return c.options
}

// Metrics returns the metrics sink, nil when none is configured.
func (c *Converter) Metrics() *metrics.Metrics {
	return c.metrics
}

// Result summarizes a successful run.
type Result struct {
	// Archive is the name of the converted package.
	Archive string
	Mode    schema.Mode
	// Version is the _version meta header written to every file.
	Version string
	// Members lists the dictionary members read, in order.
	Members []string
	// Records counts the dataset rows read, by table.
	Records map[string]int
	// Entities counts graph entities.
	Entities graph.Stats
	// Folded is the number of identical duplicate rows folded.
	Folded int
	// Rows counts data rows written, by domain.
	Rows map[string]int
	// Files lists written paths relative to the writer root, in domain order.
	Files    []string
	Duration time.Duration
}

// Convert converts the package at archivePath and writes the domains under
// outDir/configuration.
func (c *Converter) Convert(ctx context.Context, archivePath, outDir string) (*Result, error) {
	start := time.Now()

	a, err := archive.Open(archivePath)
	if err != nil {
		c.observeRun(start, err)
		return nil, err
	}
	defer a.Close()

	w := writer.NewFS(filepath.Join(outDir, rmdiniz.ConfigurationDir), writer.WithLogger(c.log.Named("writer")))
	return c.ConvertArchive(ctx, a, w)
}

// ConvertArchive converts an opened package and hands every file to w in a
// single WriteAll call. Nothing reaches w unless every earlier stage
// succeeds.
func (c *Converter) ConvertArchive(ctx context.Context, a *archive.Archive, w writer.Writer) (*Result, error) {
	start := time.Now()
	res, err := c.run(ctx, a, w)
	c.observeRun(start, err)
	if err != nil {
		c.log.Error("conversion failed", zap.String("archive", a.Name()), zap.Error(err))
		return nil, err
	}
	res.Duration = time.Since(start)
	c.log.Info("conversion complete",
		zap.String("archive", res.Archive),
		zap.String("version", res.Version),
		zap.Int("concepts", res.Entities.Concepts),
		zap.Int("files", len(res.Files)),
		zap.Duration("duration", res.Duration))
	return res, nil
}

func (c *Converter) run(ctx context.Context, a *archive.Archive, w writer.Writer) (*Result, error) {
	o := c.options
	res := &Result{Archive: a.Name(), Mode: o.Mode}

	// Schema
	t := time.Now()
	s, err := schema.Select(o.Mode)
	if err != nil {
		return nil, err
	}
	c.observeStage(StageSchema, t)

	// Archive members
	t = time.Now()
	members, err := a.Members(s.AcceptVariant)
	if err != nil {
		return nil, err
	}
	for _, m := range members {
		res.Members = append(res.Members, m.Name)
	}
	c.observeStage(StageArchive, t)
	c.log.Info("reading package",
		zap.String("archive", a.Name()),
		zap.Stringer("mode", s.Mode()),
		zap.Strings("members", res.Members))

	// Parse and index
	t = time.Now()
	p := parser.New(s, parser.Members(members), parser.WithLogger(c.log.Named("parser")))
	defer p.Close()

	b := graph.NewBuilder(graph.WithLogger(c.log.Named("graph")))
	g, err := b.Build(&cancelable{ctx: ctx, src: p})
	if err != nil {
		return nil, err
	}
	res.Records = recordCounts(p.Counts())
	res.Folded = b.Folded()
	c.observeStage(StageParse, t)
	if c.metrics != nil {
		c.metrics.AddRecords(res.Records)
		c.metrics.AddFolded(res.Folded)
	}

	// Resolve
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	t = time.Now()
	if err := resolve.Resolve(g, resolve.WithLogger(c.log.Named("resolve"))); err != nil {
		return nil, err
	}
	res.Entities = g.Stats()
	c.observeStage(StageResolve, t)
	if c.metrics != nil {
		c.metrics.SetEntities(res.Entities.Counts())
	}

	// Serialize
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	res.Version = o.Version
	if res.Version == "" {
		res.Version = a.Version()
	}

	// Rendering and the export only read the resolved graph.
	var (
		rendered *serialize.Rendered
		exported *writer.File
	)
	eg, egCtx := errgroup.WithContext(ctx)
	eg.Go(func() error {
		t := time.Now()
		out, err := serialize.Render(g, serialize.Options{
			Basename:  o.Basename,
			Version:   res.Version,
			Order:     o.Order,
			SkipDrugs: o.SkipDrugs,
			Logger:    c.log.Named("serialize"),
		})
		if err != nil {
			return err
		}
		rendered = out
		c.observeStage(StageRender, t)
		return nil
	})
	if o.FHIR {
		eg.Go(func() error {
			t := time.Now()
			f, err := c.exporter.Export(egCtx, g, o.Basename, terminology.Options{
				URL:      o.FHIRURL,
				Version:  res.Version,
				Language: o.FHIRLanguage,
			})
			if err != nil {
				return err
			}
			exported = &f
			c.observeStage(StageExport, t)
			return nil
		})
	}
	if err := eg.Wait(); err != nil {
		return nil, err
	}
	files := rendered.Files
	if exported != nil {
		files = append(files, *exported)
	}
	res.Rows = rendered.Rows

	// Write
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	t = time.Now()
	if err := w.WriteAll(files); err != nil {
		return nil, err
	}
	c.observeStage(StageWrite, t)

	for _, f := range files {
		res.Files = append(res.Files, f.Path)
	}
	if c.metrics != nil {
		domains := make([]string, 0, len(res.Rows))
		for d := range res.Rows {
			domains = append(domains, d)
		}
		sort.Strings(domains)
		for _, d := range domains {
			c.metrics.AddRows(d, res.Rows[d])
		}
		c.metrics.AddFiles(len(files))
	}
	return res, nil
}

func (c *Converter) observeStage(stage string, start time.Time) {
	c.log.Debug("stage complete", zap.String("stage", stage), zap.Duration("duration", time.Since(start)))
	if c.metrics != nil {
		c.metrics.ObserveStage(stage, start)
	}
}

func (c *Converter) observeRun(start time.Time, err error) {
	if c.metrics == nil {
		return
	}
	c.metrics.ObserveRun(start, err == nil, errorKind(err))
}

// errorKind labels a failure for metrics.
func errorKind(err error) string {
	if err == nil {
		return ""
	}
	if k, ok := issue.KindOf(err); ok {
		return k.String()
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return "canceled"
	}
	return "internal"
}

func recordCounts(counts map[record.Kind]int) map[string]int {
	out := make(map[string]int, len(counts))
	for k, n := range counts {
		out[string(k)] = n
	}
	return out
}

// cancelable stops a record source once its context is done.
type cancelable struct {
	ctx context.Context
	src graph.RecordSource
}

func (c *cancelable) Next() (record.Record, error) {
	if err := c.ctx.Err(); err != nil {
		return nil, err
	}
	return c.src.Next()
}
