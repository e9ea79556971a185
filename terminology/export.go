package terminology

import (
	"bytes"
	"context"
	"encoding/json"
	"path"

	"go.uber.org/zap"

	"github.com/jsibley/convert-rmd-to-iniz/pkg/constraint"
	"github.com/jsibley/convert-rmd-to-iniz/pkg/graph"
	"github.com/jsibley/convert-rmd-to-iniz/pkg/issue"
	"github.com/jsibley/convert-rmd-to-iniz/pkg/writer"
)

// Dir is the output directory of exported resources.
const Dir = "fhir"

// Invariants checked on every exported CodeSystem.
var Invariants = []constraint.Constraint{
	{
		Key:        "rmd-cs-1",
		Human:      "Every concept has a code and a display",
		Expression: "concept.repeat(concept).all(code.exists() and display.exists())",
	},
	{
		Key:        "rmd-cs-2",
		Human:      "Concept codes are distinct",
		Expression: "concept.repeat(concept).code.isDistinct()",
	},
}

// Exporter renders and checks CodeSystem exports.
type Exporter struct {
	validator *constraint.Validator
	log       *zap.Logger
}

// NewExporter returns an exporter logging to log, which may be nil.
func NewExporter(log *zap.Logger) *Exporter {
	if log == nil {
		log = zap.NewNop()
	}
	return &Exporter{validator: constraint.New(), log: log}
}

// Path returns the export path for a basename.
func Path(basename string) string {
	return path.Join(Dir, "CodeSystem-"+basename+".json")
}

// Export renders g as a CodeSystem JSON file named after basename. Nothing
// is returned unless every invariant holds.
func (e *Exporter) Export(ctx context.Context, g *graph.Graph, basename string, opts Options) (writer.File, error) {
	if opts.Name == "" {
		opts.Name = basename
	}
	cs, err := Render(g, opts)
	if err != nil {
		return writer.File{}, err
	}

	ix, err := NewIndex(cs)
	if err == nil {
		err = ix.Validate()
	}
	if err != nil {
		return writer.File{}, issue.New(issue.DiagExportInvalidInput, map[string]any{"error": err.Error()})
	}

	p := Path(basename)
	data, err := document(cs, ix.Len())
	if err != nil {
		return writer.File{}, issue.New(issue.DiagExportInvalidInput, map[string]any{"error": "cannot encode CodeSystem"}).Wrap(err)
	}
	if err := e.validator.Check(ctx, data, p, Invariants); err != nil {
		return writer.File{}, err
	}

	e.log.Debug("rendered CodeSystem",
		zap.String("path", p),
		zap.String("url", ix.URL()),
		zap.Int("concepts", ix.Len()))
	return writer.File{Path: p, Data: data}, nil
}

// document encodes cs with the resource-level elements the export fixes:
// resource type, status, content mode, count and property declarations.
// Map keys are emitted sorted so the output is byte-stable.
func document(cs any, count int) ([]byte, error) {
	raw, err := json.Marshal(cs)
	if err != nil {
		return nil, err
	}
	var doc map[string]any
	if err := json.Unmarshal(raw, &doc); err != nil {
		return nil, err
	}

	doc["resourceType"] = "CodeSystem"
	doc["status"] = "active"
	doc["content"] = "complete"
	doc["hierarchyMeaning"] = "grouped-by"
	doc["count"] = count
	doc["property"] = []map[string]string{
		{"code": PropertyClass, "description": "Concept class name", "type": "code"},
		{"code": PropertyDatatype, "description": "Concept datatype name", "type": "code"},
		{"code": PropertyParent, "description": "Further set containing the concept", "type": "code"},
		{"code": PropertyRetired, "description": "Concept is retired", "type": "code"},
	}

	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	enc.SetIndent("", "  ")
	if err := enc.Encode(doc); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
