package terminology

import (
	"sort"

	"github.com/gofhir/fhir/r4"

	"github.com/jsibley/convert-rmd-to-iniz/pkg/graph"
	"github.com/jsibley/convert-rmd-to-iniz/pkg/issue"
)

// Concept property codes.
const (
	PropertyClass    = "class"
	PropertyDatatype = "datatype"
	PropertyParent   = "parent"
	PropertyRetired  = "retired"
)

// DefaultLanguage is the locale whose names become concept displays.
const DefaultLanguage = "en"

// Options describes the rendered CodeSystem.
type Options struct {
	URL      string
	Name     string
	Version  string
	Language string
}

func (o Options) language() string {
	if o.Language == "" {
		return DefaultLanguage
	}
	return o.Language
}

// Render builds an R4 CodeSystem from a resolved graph. Every dictionary
// concept appears exactly once, coded by uuid. A set member is nested under
// the set with the lowest uuid that contains it; membership of further sets
// is recorded with the parent property.
func Render(g *graph.Graph, opts Options) (*r4.CodeSystem, error) {
	if !g.Resolved() {
		return nil, issue.New(issue.DiagGraphUnresolved, nil)
	}

	concepts := g.Concepts()
	parents := setParents(concepts)
	primary := primaryParents(concepts, parents)

	children := make(map[string][]*graph.Concept)
	var roots []*graph.Concept
	for _, c := range concepts {
		if p, ok := primary[c.UUID]; ok {
			children[p] = append(children[p], c)
		} else {
			roots = append(roots, c)
		}
	}

	lang := opts.language()
	var build func(c *graph.Concept) r4.CodeSystemConcept
	build = func(c *graph.Concept) r4.CodeSystemConcept {
		out := renderConcept(c, lang)
		for _, p := range parents[c.UUID] {
			if p != primary[c.UUID] {
				out.Property = append(out.Property, codeProperty(PropertyParent, p))
			}
		}
		for _, child := range children[c.UUID] {
			out.Concept = append(out.Concept, build(child))
		}
		return out
	}

	cs := &r4.CodeSystem{
		Url:  stringPtr(opts.URL),
		Name: stringPtr(opts.Name),
	}
	if opts.Version != "" {
		cs.Version = stringPtr(opts.Version)
	}
	for _, c := range roots {
		cs.Concept = append(cs.Concept, build(c))
	}
	return cs, nil
}

// setParents maps each concept uuid to the sorted uuids of the sets that
// list it as a member.
func setParents(concepts []*graph.Concept) map[string][]string {
	parents := make(map[string][]string)
	for _, c := range concepts {
		for _, m := range c.Members {
			if m.Member.ID != c.UUID {
				parents[m.Member.ID] = append(parents[m.Member.ID], c.UUID)
			}
		}
	}
	for id, ps := range parents {
		sort.Strings(ps)
		parents[id] = dedupe(ps)
	}
	return parents
}

// primaryParents picks the nesting parent of each member. Cycles in set
// membership are cut so that the concept with the lowest uuid on a cycle
// stays a root.
func primaryParents(concepts []*graph.Concept, parents map[string][]string) map[string]string {
	primary := make(map[string]string)
	for _, c := range concepts {
		if ps := parents[c.UUID]; len(ps) > 0 {
			primary[c.UUID] = ps[0]
		}
	}
	for _, c := range concepts {
		seen := map[string]bool{c.UUID: true}
		cur := c.UUID
		for {
			p, ok := primary[cur]
			if !ok {
				break
			}
			if seen[p] {
				lowest := p
				for id := range seen {
					if id < lowest && onCycle(primary, id, p) {
						lowest = id
					}
				}
				delete(primary, lowest)
				break
			}
			seen[p] = true
			cur = p
		}
	}
	return primary
}

// onCycle reports whether id is reached by following primary from start.
func onCycle(primary map[string]string, id, start string) bool {
	cur := start
	for i := 0; i <= len(primary); i++ {
		if cur == id {
			return true
		}
		next, ok := primary[cur]
		if !ok {
			return false
		}
		cur = next
	}
	return false
}

func renderConcept(c *graph.Concept, lang string) r4.CodeSystemConcept {
	out := r4.CodeSystemConcept{
		Code:    stringPtr(c.UUID),
		Display: stringPtr(display(c, lang)),
	}
	if d := definition(c, lang); d != "" {
		out.Definition = stringPtr(d)
	}
	for _, locale := range c.Locales() {
		if locale == lang {
			continue
		}
		if n := c.PreferredName(locale); n != nil {
			out.Designation = append(out.Designation, r4.CodeSystemConceptDesignation{
				Language: stringPtr(locale),
				Value:    stringPtr(n.Name),
			})
		}
	}
	if cl := c.Class.Target(); cl != nil {
		out.Property = append(out.Property, codeProperty(PropertyClass, cl.Name))
	}
	if dt := c.Datatype.Target(); dt != nil {
		out.Property = append(out.Property, codeProperty(PropertyDatatype, dt.Name))
	}
	if c.Retired {
		out.Property = append(out.Property, codeProperty(PropertyRetired, "true"))
	}
	return out
}

// display returns the preferred name in lang, else the preferred name of
// the first locale that has one, else the uuid.
func display(c *graph.Concept, lang string) string {
	if n := c.PreferredName(lang); n != nil {
		return n.Name
	}
	for _, locale := range c.Locales() {
		if n := c.PreferredName(locale); n != nil {
			return n.Name
		}
	}
	return c.UUID
}

func definition(c *graph.Concept, lang string) string {
	if d := c.Description(lang); d != nil {
		return d.Description
	}
	for _, locale := range c.Locales() {
		if d := c.Description(locale); d != nil {
			return d.Description
		}
	}
	return ""
}

func codeProperty(code, value string) r4.CodeSystemConceptProperty {
	return r4.CodeSystemConceptProperty{Code: stringPtr(code), ValueCode: stringPtr(value)}
}

func stringPtr(s string) *string {
	return &s
}

func dedupe(sorted []string) []string {
	out := sorted[:0]
	for i, s := range sorted {
		if i == 0 || s != sorted[i-1] {
			out = append(out, s)
		}
	}
	return out
}
