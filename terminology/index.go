package terminology

import (
	"fmt"
	"sort"
	"strings"

	"github.com/gofhir/fhir/r4"
)

// Index is a flattened view of a CodeSystem for code lookup.
type Index struct {
	url     string
	codes   map[string]codeEntry // code -> entry
	parents map[string][]string  // code -> parent codes
	dupes   []string
}

// codeEntry represents a code in a CodeSystem.
type codeEntry struct {
	code    string
	display string
}

// NewIndex indexes cs, following both nesting and parent properties.
func NewIndex(cs *r4.CodeSystem) (*Index, error) {
	if cs == nil || cs.Url == nil {
		return nil, fmt.Errorf("codesystem is nil or has no URL")
	}

	ix := &Index{
		url:     *cs.Url,
		codes:   make(map[string]codeEntry),
		parents: make(map[string][]string),
	}
	ix.extract(cs.Concept, "")
	return ix, nil
}

func (ix *Index) extract(concepts []r4.CodeSystemConcept, parent string) {
	for i := range concepts {
		concept := &concepts[i]
		if concept.Code == nil {
			continue
		}

		code := *concept.Code
		display := ""
		if concept.Display != nil {
			display = *concept.Display
		}

		if _, ok := ix.codes[code]; ok {
			ix.dupes = append(ix.dupes, code)
		} else {
			ix.codes[code] = codeEntry{code: code, display: display}
		}

		if parent != "" {
			ix.parents[code] = append(ix.parents[code], parent)
		}
		for _, prop := range concept.Property {
			if prop.Code != nil && *prop.Code == PropertyParent && prop.ValueCode != nil {
				ix.parents[code] = append(ix.parents[code], *prop.ValueCode)
			}
		}

		if len(concept.Concept) > 0 {
			ix.extract(concept.Concept, code)
		}
	}
}

// URL returns the canonical URL of the indexed CodeSystem.
func (ix *Index) URL() string {
	return ix.url
}

// Len returns the number of distinct codes.
func (ix *Index) Len() int {
	return len(ix.codes)
}

// Lookup returns the display of code.
func (ix *Index) Lookup(code string) (string, bool) {
	e, ok := ix.codes[code]
	return e.display, ok
}

// Parents returns the parent codes of code, nesting parent first.
func (ix *Index) Parents(code string) []string {
	return ix.parents[code]
}

// Duplicates returns codes that appear more than once.
func (ix *Index) Duplicates() []string {
	return ix.dupes
}

// Validate reports repeated codes and parent references to codes the
// CodeSystem does not define.
func (ix *Index) Validate() error {
	if len(ix.dupes) > 0 {
		return fmt.Errorf("duplicate codes: %s", strings.Join(ix.dupes, ", "))
	}
	codes := make([]string, 0, len(ix.parents))
	for code := range ix.parents {
		codes = append(codes, code)
	}
	sort.Strings(codes)
	for _, code := range codes {
		for _, parent := range ix.Parents(code) {
			if _, ok := ix.Lookup(parent); !ok {
				return fmt.Errorf("code %s has undefined parent %s", code, parent)
			}
		}
	}
	return nil
}
