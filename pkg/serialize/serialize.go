// Package serialize renders a resolved concept graph as Initializer domain
// tables and CSV files.
package serialize

import (
	"bytes"
	"encoding/csv"
	"path"
	"strconv"

	"go.uber.org/zap"

	"github.com/jsibley/convert-rmd-to-iniz/pkg/graph"
	"github.com/jsibley/convert-rmd-to-iniz/pkg/issue"
	"github.com/jsibley/convert-rmd-to-iniz/pkg/writer"
)

// Domain directories.
const (
	DomainClasses   = "conceptclasses"
	DomainDatatypes = "conceptdatatypes"
	DomainSources   = "conceptsources"
	DomainTerms     = "conceptreferenceterms"
	DomainConcepts  = "concepts"
	DomainDrugs     = "drugs"
)

// DefaultBasename is the file basename used when none is configured.
const DefaultBasename = "reference_application"

// Common column headers.
const (
	colUUID        = "Uuid"
	colRetire      = "Void/Retire"
	colName        = "Name"
	colDescription = "Description"
)

// Options controls rendering.
type Options struct {
	// Basename is the file name, without extension, of every table.
	Basename string
	// Version fills the _version meta header.
	Version string
	// Order fills the _order meta header.
	Order int
	// SkipDrugs suppresses the drugs domain.
	SkipDrugs bool
	Logger    *zap.Logger
}

func (o Options) basename() string {
	if o.Basename == "" {
		return DefaultBasename
	}
	return o.Basename
}

// Table is one Initializer domain table. The meta columns are not part of
// Header; they are appended when the table is encoded.
type Table struct {
	Domain string
	Header []string
	Rows   [][]string
}

// Path returns the table's file path relative to the configuration root.
func (t *Table) Path(basename string) string {
	return path.Join(t.Domain, basename+".csv")
}

// Encode renders the table as CSV with LF line endings. Every row carries
// empty cells for the meta columns.
func (t *Table) Encode(version string, order int) ([]byte, error) {
	var buf bytes.Buffer
	w := csv.NewWriter(&buf)

	header := make([]string, 0, len(t.Header)+2)
	header = append(header, t.Header...)
	header = append(header, "_version:"+version, "_order:"+strconv.Itoa(order))
	if err := w.Write(header); err != nil {
		return nil, err
	}
	for _, row := range t.Rows {
		rec := make([]string, len(header))
		copy(rec, row)
		if err := w.Write(rec); err != nil {
			return nil, err
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// Tables builds the domain tables of a resolved graph, in domain order.
// Empty domains other than concepts are omitted.
func Tables(g *graph.Graph, opts Options) ([]*Table, error) {
	if !g.Resolved() {
		return nil, issue.New(issue.DiagGraphUnresolved, nil)
	}

	candidates := []*Table{
		classTable(g),
		datatypeTable(g),
		sourceTable(g),
		termTable(g),
		conceptTable(g),
	}
	if !opts.SkipDrugs {
		candidates = append(candidates, drugTable(g))
	}

	tables := make([]*Table, 0, len(candidates))
	for _, t := range candidates {
		if len(t.Rows) == 0 && t.Domain != DomainConcepts {
			continue
		}
		tables = append(tables, t)
	}
	return tables, nil
}

// Rendered is the output of Render.
type Rendered struct {
	Files []writer.File
	// Rows counts data rows by domain.
	Rows map[string]int
}

// Render encodes every table of g as a file.
func Render(g *graph.Graph, opts Options) (*Rendered, error) {
	log := opts.Logger
	if log == nil {
		log = zap.NewNop()
	}

	tables, err := Tables(g, opts)
	if err != nil {
		return nil, err
	}

	out := &Rendered{
		Files: make([]writer.File, 0, len(tables)),
		Rows:  make(map[string]int, len(tables)),
	}
	for _, t := range tables {
		p := t.Path(opts.basename())
		data, err := t.Encode(opts.Version, opts.Order)
		if err != nil {
			return nil, issue.New(issue.DiagWriteFailed, map[string]any{"path": p}).Wrap(err)
		}
		out.Files = append(out.Files, writer.File{Path: p, Data: data})
		out.Rows[t.Domain] = len(t.Rows)
		log.Debug("rendered table",
			zap.String("domain", t.Domain),
			zap.Int("rows", len(t.Rows)),
			zap.Int("columns", len(t.Header)))
	}
	return out, nil
}

func retire(retired bool) string {
	return strconv.FormatBool(retired)
}

func classTable(g *graph.Graph) *Table {
	t := &Table{Domain: DomainClasses, Header: []string{colUUID, colRetire, colName, colDescription}}
	for _, c := range g.Classes() {
		t.Rows = append(t.Rows, []string{c.UUID, retire(c.Retired), c.Name, c.Description})
	}
	return t
}

func datatypeTable(g *graph.Graph) *Table {
	t := &Table{Domain: DomainDatatypes, Header: []string{colUUID, colRetire, colName, colDescription, "HL7 abbreviation"}}
	for _, d := range g.Datatypes() {
		t.Rows = append(t.Rows, []string{d.UUID, retire(d.Retired), d.Name, d.Description, d.HL7Abbreviation})
	}
	return t
}

func sourceTable(g *graph.Graph) *Table {
	t := &Table{Domain: DomainSources, Header: []string{colUUID, colRetire, colName, colDescription, "HL7 Code", "Unique ID"}}
	for _, s := range g.Sources() {
		t.Rows = append(t.Rows, []string{s.UUID, retire(s.Retired), s.Name, s.Description, s.HL7Code, s.UniqueID})
	}
	return t
}

func termTable(g *graph.Graph) *Table {
	t := &Table{Domain: DomainTerms, Header: []string{colUUID, colRetire, "Source", "Code", colName, colDescription}}
	for _, term := range g.Terms() {
		t.Rows = append(t.Rows, []string{term.UUID, retire(term.Retired), term.Source.Target().Name, term.Code, term.Name, term.Description})
	}
	return t
}

func drugTable(g *graph.Graph) *Table {
	t := &Table{Domain: DomainDrugs, Header: []string{colUUID, colRetire, colName, "Concept Drug", "Concept Dosage Form", "Strength"}}
	for _, d := range g.Drugs() {
		t.Rows = append(t.Rows, []string{d.UUID, retire(d.Retired), d.Name, d.Concept.ID, d.DosageForm.ID, d.Strength})
	}
	return t
}
