// Package resolve binds every reference of a built graph to its target and
// enforces the dictionary invariants that span entities.
//
// Entity types are resolved in dependency order: datatypes and classes,
// sources and map types, reference terms, concept scalar fields, concept
// names, descriptions and numerics, answers and set members, concept maps,
// and drugs last. Answers and set members may point at concepts declared
// anywhere in the input because the whole graph exists before resolution.
// The first failure aborts resolution.
package resolve

import (
	"sort"

	"go.uber.org/zap"

	"github.com/jsibley/convert-rmd-to-iniz/pkg/graph"
	"github.com/jsibley/convert-rmd-to-iniz/pkg/issue"
	"github.com/jsibley/convert-rmd-to-iniz/pkg/record"
)

// Target type names used in diagnostics.
const (
	targetConcept  = "concept"
	targetDatatype = "concept datatype"
	targetClass    = "concept class"
	targetSource   = "concept reference source"
	targetTerm     = "concept reference term"
	targetMapType  = "concept map type"
)

// Option configures resolution.
type Option func(*resolver)

// WithLogger sets the resolver logger.
func WithLogger(l *zap.Logger) Option {
	return func(r *resolver) {
		r.log = l
	}
}

type resolver struct {
	g   *graph.Graph
	log *zap.Logger
}

// Resolve binds the references of g, attaches concept children and checks
// the set and naming invariants. On success g is marked resolved.
func Resolve(g *graph.Graph, opts ...Option) error {
	r := &resolver{g: g, log: zap.NewNop()}
	for _, opt := range opts {
		opt(r)
	}
	if g.Resolved() {
		return nil
	}

	steps := []struct {
		name string
		fn   func() error
	}{
		{"sources", r.sources},
		{"terms", r.terms},
		{"concepts", r.concepts},
		{"names", r.names},
		{"descriptions", r.descriptions},
		{"numerics", r.numerics},
		{"answers", r.answers},
		{"set members", r.setMembers},
		{"mappings", r.mappings},
		{"drugs", r.drugs},
		{"invariants", r.invariants},
	}
	for _, step := range steps {
		if err := step.fn(); err != nil {
			return err
		}
		r.log.Debug("resolved", zap.String("step", step.name))
	}

	g.MarkResolved()
	return nil
}

// site locates the reference being bound.
type site struct {
	entity record.Kind
	id     string
	field  string
	origin record.Origin
}

func unresolved(s site, targetType, target string) error {
	return issue.New(issue.DiagReferenceUnresolved, map[string]any{
		"entity":     string(s.entity),
		"id":         s.id,
		"field":      s.field,
		"targetType": targetType,
		"target":     target,
	}).At(s.origin.Member, s.origin.Line)
}

// bind resolves a mandatory reference.
func bind[T any](ref *graph.Ref[T], lookup func(string) (*T, bool), s site, targetType string) error {
	t, ok := lookup(ref.ID)
	if !ok {
		return unresolved(s, targetType, ref.ID)
	}
	ref.Bind(t)
	return nil
}

// bindOptional resolves a reference that may be absent.
func bindOptional[T any](ref *graph.Ref[T], lookup func(string) (*T, bool), s site, targetType string) error {
	if ref.Empty() {
		return nil
	}
	return bind(ref, lookup, s, targetType)
}

func (r *resolver) sources() error {
	byName := make(map[string]*graph.Source)
	for _, s := range r.g.Sources() {
		if prev, ok := byName[s.Name]; ok {
			return issue.New(issue.DiagDuplicateSourceName, map[string]any{
				"entity": string(record.KindSource),
				"id":     prev.UUID,
				"target": s.UUID,
				"name":   s.Name,
			}).At(s.Origin.Member, s.Origin.Line)
		}
		byName[s.Name] = s
	}
	return nil
}

func (r *resolver) terms() error {
	for _, t := range r.g.Terms() {
		s := site{record.KindTerm, t.UUID, "concept_source", t.Origin}
		if err := bind(&t.Source, r.g.Source, s, targetSource); err != nil {
			return err
		}
	}
	return nil
}

func (r *resolver) concepts() error {
	for _, c := range r.g.Concepts() {
		if err := bind(&c.Datatype, r.g.Datatype, site{record.KindConcept, c.UUID, "datatype", c.Origin}, targetDatatype); err != nil {
			return err
		}
		if err := bind(&c.Class, r.g.Class, site{record.KindConcept, c.UUID, "concept_class", c.Origin}, targetClass); err != nil {
			return err
		}
	}
	return nil
}

func (r *resolver) names() error {
	voided := 0
	for _, n := range r.g.Names() {
		s := site{record.KindName, n.UUID, "concept", n.Origin}
		if err := bind(&n.Concept, r.g.Concept, s, targetConcept); err != nil {
			return err
		}
		if n.Voided {
			voided++
			continue
		}
		c := n.Concept.Target()
		c.Names = append(c.Names, n)
	}
	if voided > 0 {
		r.log.Debug("voided names dropped", zap.Int("count", voided))
	}
	return nil
}

func (r *resolver) descriptions() error {
	for _, d := range r.g.Descriptions() {
		s := site{record.KindDescription, d.UUID, "concept", d.Origin}
		if err := bind(&d.Concept, r.g.Concept, s, targetConcept); err != nil {
			return err
		}
		c := d.Concept.Target()
		c.Descriptions = append(c.Descriptions, d)
	}
	return nil
}

func (r *resolver) numerics() error {
	for _, n := range r.g.Numerics() {
		s := site{record.KindNumeric, n.Concept.ID, "concept", n.Origin}
		if err := bind(&n.Concept, r.g.Concept, s, targetConcept); err != nil {
			return err
		}
		n.Concept.Target().Numeric = n
	}
	return nil
}

func (r *resolver) answers() error {
	for _, a := range r.g.Answers() {
		if err := bind(&a.Concept, r.g.Concept, site{record.KindAnswer, a.UUID, "concept", a.Origin}, targetConcept); err != nil {
			return err
		}
		if err := bind(&a.Answer, r.g.Concept, site{record.KindAnswer, a.UUID, "answer_concept", a.Origin}, targetConcept); err != nil {
			return err
		}
		c := a.Concept.Target()
		c.Answers = append(c.Answers, a)
	}
	for _, c := range r.g.Concepts() {
		sort.SliceStable(c.Answers, func(i, j int) bool {
			return weighted(c.Answers[i].SortWeight, c.Answers[i].UUID, c.Answers[j].SortWeight, c.Answers[j].UUID)
		})
	}
	return nil
}

func (r *resolver) setMembers() error {
	for _, m := range r.g.SetMembers() {
		if err := bind(&m.Set, r.g.Concept, site{record.KindSetMember, m.UUID, "concept_set", m.Origin}, targetConcept); err != nil {
			return err
		}
		if err := bind(&m.Member, r.g.Concept, site{record.KindSetMember, m.UUID, "concept", m.Origin}, targetConcept); err != nil {
			return err
		}
		set := m.Set.Target()
		set.Members = append(set.Members, m)
	}
	for _, c := range r.g.Concepts() {
		sort.SliceStable(c.Members, func(i, j int) bool {
			return weighted(c.Members[i].SortWeight, c.Members[i].UUID, c.Members[j].SortWeight, c.Members[j].UUID)
		})
	}
	return nil
}

// weighted orders by sort weight, then uuid.
func weighted(wi float64, idi string, wj float64, idj string) bool {
	if wi != wj {
		return wi < wj
	}
	return idi < idj
}

func (r *resolver) mappings() error {
	for _, m := range r.g.Mappings() {
		if err := bind(&m.Concept, r.g.Concept, site{record.KindMap, m.UUID, "concept", m.Origin}, targetConcept); err != nil {
			return err
		}
		if err := bind(&m.Term, r.g.Term, site{record.KindMap, m.UUID, "concept_reference_term", m.Origin}, targetTerm); err != nil {
			return err
		}
		if err := bindOptional(&m.MapType, r.g.MapType, site{record.KindMap, m.UUID, "concept_map_type", m.Origin}, targetMapType); err != nil {
			return err
		}
		c := m.Concept.Target()
		c.Mappings = append(c.Mappings, m)
	}
	return nil
}

func (r *resolver) drugs() error {
	for _, d := range r.g.Drugs() {
		if err := bind(&d.Concept, r.g.Concept, site{record.KindDrug, d.UUID, "concept", d.Origin}, targetConcept); err != nil {
			return err
		}
		if err := bindOptional(&d.DosageForm, r.g.Concept, site{record.KindDrug, d.UUID, "dosage_form", d.Origin}, targetConcept); err != nil {
			return err
		}
	}
	return nil
}

func (r *resolver) invariants() error {
	for _, c := range r.g.Concepts() {
		if err := checkSet(c); err != nil {
			return err
		}
		if err := checkNames(c); err != nil {
			return err
		}
		if err := checkDescriptions(c); err != nil {
			return err
		}
	}
	return nil
}

// checkSet rejects a set without members and members on a non-set.
func checkSet(c *graph.Concept) error {
	switch {
	case c.IsSet && len(c.Members) == 0:
		return issue.New(issue.DiagSetWithoutMembers, map[string]any{
			"entity": string(record.KindConcept),
			"id":     c.UUID,
			"field":  "members",
		}).At(c.Origin.Member, c.Origin.Line)
	case !c.IsSet && len(c.Members) > 0:
		return issue.New(issue.DiagMembersOnNonSet, map[string]any{
			"entity": string(record.KindConcept),
			"id":     c.UUID,
			"field":  "members",
			"count":  len(c.Members),
		}).At(c.Origin.Member, c.Origin.Line)
	}
	return nil
}

// checkNames requires exactly one preferred name per locale and at most one
// fully specified and one short name per locale.
func checkNames(c *graph.Concept) error {
	type tally struct {
		preferred, fsn, short int
	}
	byLocale := make(map[string]*tally)
	var locales []string

	for _, n := range c.Names {
		if n.Locale == "" {
			return issue.New(issue.DiagNameWithoutLocale, map[string]any{
				"entity": string(record.KindName),
				"id":     n.UUID,
				"target": c.UUID,
			}).At(n.Origin.Member, n.Origin.Line)
		}
		t, ok := byLocale[n.Locale]
		if !ok {
			t = &tally{}
			byLocale[n.Locale] = t
			locales = append(locales, n.Locale)
		}
		if n.Preferred {
			t.preferred++
		}
		switch {
		case n.FullySpecified():
			t.fsn++
		case n.Short():
			t.short++
		}
	}

	sort.Strings(locales)
	for _, locale := range locales {
		t := byLocale[locale]
		params := map[string]any{"entity": string(record.KindConcept), "id": c.UUID, "field": "names", "locale": locale}
		var id issue.DiagnosticID
		switch {
		case t.preferred > 1:
			id = issue.DiagDuplicatePreferredName
		case t.fsn > 1:
			id, params["type"] = issue.DiagDuplicateNameType, "fully specified"
		case t.short > 1:
			id, params["type"] = issue.DiagDuplicateNameType, "short"
		case t.preferred == 0 && t.fsn == 0:
			id = issue.DiagNoPreferredName
		default:
			continue
		}
		return issue.New(id, params).At(c.Origin.Member, c.Origin.Line)
	}
	return nil
}

// checkDescriptions allows one description per locale.
func checkDescriptions(c *graph.Concept) error {
	seen := make(map[string]bool)
	for _, d := range c.Descriptions {
		if d.Locale == "" {
			return issue.New(issue.DiagNameWithoutLocale, map[string]any{
				"entity": string(record.KindDescription),
				"id":     d.UUID,
				"target": c.UUID,
			}).At(d.Origin.Member, d.Origin.Line)
		}
		if seen[d.Locale] {
			return issue.New(issue.DiagDuplicateDescription, map[string]any{
				"entity": string(record.KindConcept),
				"id":     c.UUID,
				"field":  "descriptions",
				"locale": d.Locale,
			}).At(d.Origin.Member, d.Origin.Line)
		}
		seen[d.Locale] = true
	}
	return nil
}
