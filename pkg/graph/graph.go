// Package graph holds the in-memory concept dictionary: every entity indexed
// by its stable identifier, with references kept as identifiers until the
// resolver binds them.
package graph

import (
	"sort"
)

// Graph is the indexed entity set of one conversion.
type Graph struct {
	datatypes    map[string]*Datatype
	classes      map[string]*Class
	sources      map[string]*Source
	mapTypes     map[string]*MapType
	terms        map[string]*Term
	concepts     map[string]*Concept
	names        map[string]*Name
	descriptions map[string]*Description
	numerics     map[string]*Numeric
	answers      map[string]*Answer
	members      map[string]*SetMember
	mappings     map[string]*ConceptMap
	drugs        map[string]*Drug

	resolved bool
}

// New returns an empty graph.
func New() *Graph {
	return &Graph{
		datatypes:    make(map[string]*Datatype),
		classes:      make(map[string]*Class),
		sources:      make(map[string]*Source),
		mapTypes:     make(map[string]*MapType),
		terms:        make(map[string]*Term),
		concepts:     make(map[string]*Concept),
		names:        make(map[string]*Name),
		descriptions: make(map[string]*Description),
		numerics:     make(map[string]*Numeric),
		answers:      make(map[string]*Answer),
		members:      make(map[string]*SetMember),
		mappings:     make(map[string]*ConceptMap),
		drugs:        make(map[string]*Drug),
	}
}

// sorted returns the values of m ordered by key.
func sorted[T any](m map[string]*T) []*T {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	out := make([]*T, len(keys))
	for i, k := range keys {
		out[i] = m[k]
	}
	return out
}

// Datatypes returns the datatypes ordered by uuid.
func (g *Graph) Datatypes() []*Datatype { return sorted(g.datatypes) }

// Classes returns the classes ordered by uuid.
func (g *Graph) Classes() []*Class { return sorted(g.classes) }

// Sources returns the reference sources ordered by uuid.
func (g *Graph) Sources() []*Source { return sorted(g.sources) }

// MapTypes returns the map types ordered by uuid.
func (g *Graph) MapTypes() []*MapType { return sorted(g.mapTypes) }

// Terms returns the reference terms ordered by uuid.
func (g *Graph) Terms() []*Term { return sorted(g.terms) }

// Concepts returns the concepts ordered by uuid.
func (g *Graph) Concepts() []*Concept { return sorted(g.concepts) }

// Names returns every concept name ordered by uuid.
func (g *Graph) Names() []*Name { return sorted(g.names) }

// Descriptions returns every concept description ordered by uuid.
func (g *Graph) Descriptions() []*Description { return sorted(g.descriptions) }

// Numerics returns the numeric attributes ordered by concept uuid.
func (g *Graph) Numerics() []*Numeric { return sorted(g.numerics) }

// Answers returns every concept answer ordered by uuid.
func (g *Graph) Answers() []*Answer { return sorted(g.answers) }

// SetMembers returns every set membership ordered by uuid.
func (g *Graph) SetMembers() []*SetMember { return sorted(g.members) }

// Mappings returns every concept map ordered by uuid.
func (g *Graph) Mappings() []*ConceptMap { return sorted(g.mappings) }

// Drugs returns the drugs ordered by uuid.
func (g *Graph) Drugs() []*Drug { return sorted(g.drugs) }

// Datatype looks up a datatype.
func (g *Graph) Datatype(id string) (*Datatype, bool) {
	e, ok := g.datatypes[id]
	return e, ok
}

// Class looks up a class.
func (g *Graph) Class(id string) (*Class, bool) {
	e, ok := g.classes[id]
	return e, ok
}

// Source looks up a reference source.
func (g *Graph) Source(id string) (*Source, bool) {
	e, ok := g.sources[id]
	return e, ok
}

// MapType looks up a map type.
func (g *Graph) MapType(id string) (*MapType, bool) {
	e, ok := g.mapTypes[id]
	return e, ok
}

// Term looks up a reference term.
func (g *Graph) Term(id string) (*Term, bool) {
	e, ok := g.terms[id]
	return e, ok
}

// Concept looks up a concept.
func (g *Graph) Concept(id string) (*Concept, bool) {
	e, ok := g.concepts[id]
	return e, ok
}

// Drug looks up a drug.
func (g *Graph) Drug(id string) (*Drug, bool) {
	e, ok := g.drugs[id]
	return e, ok
}

// Stats counts the entities of a graph by type.
type Stats struct {
	Datatypes    int
	Classes      int
	Sources      int
	MapTypes     int
	Terms        int
	Concepts     int
	Names        int
	Descriptions int
	Numerics     int
	Answers      int
	SetMembers   int
	Mappings     int
	Drugs        int
}

// Stats returns the entity counts.
func (g *Graph) Stats() Stats {
	return Stats{
		Datatypes:    len(g.datatypes),
		Classes:      len(g.classes),
		Sources:      len(g.sources),
		MapTypes:     len(g.mapTypes),
		Terms:        len(g.terms),
		Concepts:     len(g.concepts),
		Names:        len(g.names),
		Descriptions: len(g.descriptions),
		Numerics:     len(g.numerics),
		Answers:      len(g.answers),
		SetMembers:   len(g.members),
		Mappings:     len(g.mappings),
		Drugs:        len(g.drugs),
	}
}

// Counts returns the entity counts keyed by entity type name.
func (s Stats) Counts() map[string]int {
	return map[string]int{
		"concept_datatype":         s.Datatypes,
		"concept_class":            s.Classes,
		"concept_reference_source": s.Sources,
		"concept_map_type":         s.MapTypes,
		"concept_reference_term":   s.Terms,
		"concept":                  s.Concepts,
		"concept_name":             s.Names,
		"concept_description":      s.Descriptions,
		"concept_numeric":          s.Numerics,
		"concept_answer":           s.Answers,
		"concept_set":              s.SetMembers,
		"concept_reference_map":    s.Mappings,
		"drug":                     s.Drugs,
	}
}

// Resolved reports whether every reference of the graph has been bound.
func (g *Graph) Resolved() bool {
	return g.resolved
}

// MarkResolved freezes the graph after resolution. Every entity is then
// indexed by its output uuid, and every bound reference carries the uuid of
// its target instead of the key it was linked by.
func (g *Graph) MarkResolved() {
	g.rekey()
	g.resolved = true
}

func (g *Graph) rekey() {
	for _, t := range g.terms {
		relink(&t.Source, (*Source).ident)
	}
	for _, c := range g.concepts {
		relink(&c.Datatype, (*Datatype).ident)
		relink(&c.Class, (*Class).ident)
	}
	for _, n := range g.names {
		relink(&n.Concept, (*Concept).ident)
	}
	for _, d := range g.descriptions {
		relink(&d.Concept, (*Concept).ident)
	}
	for _, n := range g.numerics {
		relink(&n.Concept, (*Concept).ident)
	}
	for _, a := range g.answers {
		relink(&a.Concept, (*Concept).ident)
		relink(&a.Answer, (*Concept).ident)
	}
	for _, m := range g.members {
		relink(&m.Set, (*Concept).ident)
		relink(&m.Member, (*Concept).ident)
	}
	for _, m := range g.mappings {
		relink(&m.Concept, (*Concept).ident)
		relink(&m.Term, (*Term).ident)
		relink(&m.MapType, (*MapType).ident)
	}
	for _, d := range g.drugs {
		relink(&d.Concept, (*Concept).ident)
		relink(&d.DosageForm, (*Concept).ident)
	}

	g.datatypes = reindex(g.datatypes, (*Datatype).ident)
	g.classes = reindex(g.classes, (*Class).ident)
	g.sources = reindex(g.sources, (*Source).ident)
	g.mapTypes = reindex(g.mapTypes, (*MapType).ident)
	g.terms = reindex(g.terms, (*Term).ident)
	g.concepts = reindex(g.concepts, (*Concept).ident)
	g.names = reindex(g.names, (*Name).ident)
	g.descriptions = reindex(g.descriptions, (*Description).ident)
	g.numerics = reindex(g.numerics, func(n *Numeric) string { return n.Concept.ID })
	g.answers = reindex(g.answers, (*Answer).ident)
	g.members = reindex(g.members, (*SetMember).ident)
	g.mappings = reindex(g.mappings, (*ConceptMap).ident)
	g.drugs = reindex(g.drugs, (*Drug).ident)
}

func relink[T any](r *Ref[T], ident func(*T) string) {
	if t := r.Target(); t != nil {
		r.ID = ident(t)
	}
}

func reindex[T any](m map[string]*T, ident func(*T) string) map[string]*T {
	out := make(map[string]*T, len(m))
	for _, e := range m {
		out[ident(e)] = e
	}
	return out
}
