// Package constraint evaluates FHIRPath invariants over rendered FHIR
// resources.
package constraint

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/gofhir/fhirpath"
	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/jsibley/convert-rmd-to-iniz/pkg/issue"
)

// Constraint is a named FHIRPath invariant evaluated at the resource root.
type Constraint struct {
	Key        string
	Human      string
	Expression string
}

// DefaultCacheSize bounds the compiled expression cache.
const DefaultCacheSize = 128

// Validator evaluates constraints against JSON resources. It is safe for
// concurrent use.
type Validator struct {
	exprCache *lru.Cache[string, *fhirpath.Expression]
}

// New creates a new constraint Validator.
func New() *Validator {
	cache, err := lru.New[string, *fhirpath.Expression](DefaultCacheSize)
	if err != nil {
		panic(err)
	}
	return &Validator{exprCache: cache}
}

// Check evaluates every constraint against data, the JSON of a resource
// rendered for path. The first failing constraint is returned as an export
// error; a constraint that cannot be compiled or evaluated fails too.
func (v *Validator) Check(ctx context.Context, data json.RawMessage, path string, constraints []Constraint) error {
	var probe struct {
		ResourceType string `json:"resourceType"`
	}
	if err := json.Unmarshal(data, &probe); err != nil {
		return issue.New(issue.DiagExportInvalidInput, map[string]any{"error": "resource is not valid JSON"}).Wrap(err)
	}
	if probe.ResourceType == "" {
		return issue.New(issue.DiagExportInvalidInput, map[string]any{"error": "resource has no resourceType"})
	}

	for _, c := range constraints {
		if err := ctx.Err(); err != nil {
			return err
		}

		expr, err := v.getCompiledExpression(c.Expression)
		if err != nil {
			return violation(c, path).Wrap(fmt.Errorf("compile: %w", err))
		}

		result, err := expr.Evaluate(data)
		if err != nil {
			return violation(c, path).Wrap(fmt.Errorf("evaluate: %w", err))
		}

		if !constraintPassed(result) {
			return violation(c, path)
		}
	}
	return nil
}

func violation(c Constraint, path string) *issue.Error {
	return issue.New(issue.DiagExportInvariant, map[string]any{
		"id":         c.Key,
		"expression": c.Expression,
		"path":       path,
	})
}

// getCompiledExpression returns a cached compiled expression or compiles a new one.
func (v *Validator) getCompiledExpression(expr string) (*fhirpath.Expression, error) {
	if compiled, ok := v.exprCache.Get(expr); ok {
		return compiled, nil
	}

	compiled, err := fhirpath.Compile(expr)
	if err != nil {
		return nil, err
	}
	v.exprCache.Add(expr, compiled)
	return compiled, nil
}

// CacheSize returns the number of compiled expressions held.
func (v *Validator) CacheSize() int {
	return v.exprCache.Len()
}

// constraintPassed checks if a FHIRPath result indicates the constraint passed.
func constraintPassed(result fhirpath.Collection) bool {
	// Empty collection = constraint not applicable = passes.
	if result.Empty() {
		return true
	}

	b, err := result.ToBoolean()
	if err != nil {
		// Non-boolean, non-empty results are truthy.
		return true
	}

	return b
}
