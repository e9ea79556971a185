package graph

import (
	"errors"
	"fmt"
	"io"

	"go.uber.org/zap"

	"github.com/jsibley/convert-rmd-to-iniz/pkg/issue"
	"github.com/jsibley/convert-rmd-to-iniz/pkg/record"
)

// RecordSource is a lazily read record sequence ending with io.EOF.
type RecordSource interface {
	Next() (record.Record, error)
}

// Option configures a Builder.
type Option func(*Builder)

// WithLogger sets the builder logger.
func WithLogger(l *zap.Logger) Option {
	return func(b *Builder) {
		b.log = l
	}
}

// Builder assembles records into a graph. Records of the same type and
// identifier are folded when their content is identical; dictionary members
// routinely repeat shared classes and datatypes.
type Builder struct {
	g      *Graph
	log    *zap.Logger
	folded int
	// claims pairs linking keys with declared uuids, per kind.
	claims map[record.Kind]*claim
}

type claim struct {
	byKey  map[string]string
	byUUID map[string]string
}

// NewBuilder returns a builder over an empty graph.
func NewBuilder(opts ...Option) *Builder {
	b := &Builder{g: New(), log: zap.NewNop(), claims: make(map[record.Kind]*claim)}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// Build adds every record of src and returns the unresolved graph.
func (b *Builder) Build(src RecordSource) (*Graph, error) {
	for {
		rec, err := src.Next()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, err
		}
		if err := b.Add(rec); err != nil {
			return nil, err
		}
	}
	b.log.Debug("graph built", zap.Int("concepts", len(b.g.concepts)), zap.Int("folded", b.folded))
	return b.g, nil
}

// Graph returns the graph built so far.
func (b *Builder) Graph() *Graph {
	return b.g
}

// Folded returns the number of identical duplicate records folded.
func (b *Builder) Folded() int {
	return b.folded
}

// Add indexes one record. Source attributes that have no entity field,
// audit columns included, are dropped here.
func (b *Builder) Add(rec record.Record) error {
	origin := rec.Source().Origin
	uuid, err := b.identify(rec)
	if err != nil {
		return err
	}

	switch r := rec.(type) {
	case *record.Datatype:
		return add(b, r.Kind(), b.g.datatypes, r.UUID, origin, &Datatype{
			UUID: uuid, Name: r.Name, Description: r.Description,
			HL7Abbreviation: r.HL7Abbreviation, Retired: r.Retired, Origin: origin,
		})
	case *record.Class:
		return add(b, r.Kind(), b.g.classes, r.UUID, origin, &Class{
			UUID: uuid, Name: r.Name, Description: r.Description, Retired: r.Retired, Origin: origin,
		})
	case *record.Source:
		return add(b, r.Kind(), b.g.sources, r.UUID, origin, &Source{
			UUID: uuid, Name: r.Name, Description: r.Description,
			HL7Code: r.HL7Code, UniqueID: r.UniqueID, Retired: r.Retired, Origin: origin,
		})
	case *record.MapType:
		return add(b, r.Kind(), b.g.mapTypes, r.UUID, origin, &MapType{
			UUID: uuid, Name: r.Name, Description: r.Description,
			Hidden: r.Hidden, Retired: r.Retired, Origin: origin,
		})
	case *record.Term:
		return add(b, r.Kind(), b.g.terms, r.UUID, origin, &Term{
			UUID: uuid, Source: NewRef[Source](r.SourceID), Code: r.Code,
			Name: r.Name, Description: r.Description, Retired: r.Retired, Origin: origin,
		})
	case *record.Concept:
		return add(b, r.Kind(), b.g.concepts, r.UUID, origin, &Concept{
			UUID: uuid, Datatype: NewRef[Datatype](r.DatatypeID), Class: NewRef[Class](r.ClassID),
			IsSet: r.IsSet, Retired: r.Retired, Origin: origin,
		})
	case *record.Name:
		return add(b, r.Kind(), b.g.names, r.UUID, origin, &Name{
			UUID: uuid, Concept: NewRef[Concept](r.ConceptID), Name: r.Name, Locale: r.Locale,
			Type: r.Type, Preferred: r.Preferred, Voided: r.Voided, Origin: origin,
		})
	case *record.Description:
		return add(b, r.Kind(), b.g.descriptions, r.UUID, origin, &Description{
			UUID: uuid, Concept: NewRef[Concept](r.ConceptID), Description: r.Description,
			Locale: r.Locale, Origin: origin,
		})
	case *record.Numeric:
		return add(b, r.Kind(), b.g.numerics, r.ConceptID, origin, &Numeric{
			Concept: NewRef[Concept](r.ConceptID),
			HiAbsolute: r.HiAbsolute, HiCritical: r.HiCritical, HiNormal: r.HiNormal,
			LowAbsolute: r.LowAbsolute, LowCritical: r.LowCritical, LowNormal: r.LowNormal,
			Units: r.Units, AllowDecimal: r.AllowDecimal, DisplayPrecision: r.DisplayPrecision,
			Origin: origin,
		})
	case *record.Answer:
		return add(b, r.Kind(), b.g.answers, r.UUID, origin, &Answer{
			UUID: uuid, Concept: NewRef[Concept](r.ConceptID), Answer: NewRef[Concept](r.AnswerID),
			SortWeight: r.SortWeight, Origin: origin,
		})
	case *record.SetMember:
		return add(b, r.Kind(), b.g.members, r.UUID, origin, &SetMember{
			UUID: uuid, Set: NewRef[Concept](r.SetID), Member: NewRef[Concept](r.MemberID),
			SortWeight: r.SortWeight, Origin: origin,
		})
	case *record.Map:
		return add(b, r.Kind(), b.g.mappings, r.UUID, origin, &ConceptMap{
			UUID: uuid, Concept: NewRef[Concept](r.ConceptID), Term: NewRef[Term](r.TermID),
			MapType: NewRef[MapType](r.MapTypeID), Origin: origin,
		})
	case *record.Drug:
		return add(b, r.Kind(), b.g.drugs, r.UUID, origin, &Drug{
			UUID: uuid, Concept: NewRef[Concept](r.ConceptID), DosageForm: NewRef[Concept](r.DosageFormID),
			Name: r.Name, Strength: r.Strength, Retired: r.Retired, Origin: origin,
		})
	default:
		return fmt.Errorf("graph: unsupported record type %T", rec)
	}
}

// identify returns the output uuid of rec: the uuid the row declares, or its
// key. A key declaring two uuids, or a uuid declared by two keys, is a
// duplicate entity.
func (b *Builder) identify(rec record.Record) (string, error) {
	key := rec.ID()
	raw := rec.Source()
	if raw.DeclaredUUID == "" {
		return key, nil
	}
	c, ok := b.claims[rec.Kind()]
	if !ok {
		c = &claim{byKey: make(map[string]string), byUUID: make(map[string]string)}
		b.claims[rec.Kind()] = c
	}

	conflict := func(id, field, first, second string) error {
		return issue.New(issue.DiagDuplicateEntity, map[string]any{
			"entity": string(rec.Kind()),
			"id":     id,
			"field":  field,
			"first":  first,
			"second": second,
		}).At(raw.Origin.Member, raw.Origin.Line)
	}
	if prev, ok := c.byKey[key]; ok && prev != raw.DeclaredUUID {
		return "", conflict(raw.RawID, "uuid", prev, raw.DeclaredUUID)
	}
	if prev, ok := c.byUUID[raw.DeclaredUUID]; ok && prev != key {
		return "", conflict(raw.DeclaredUUID, "key", prev, key)
	}
	c.byKey[key] = raw.DeclaredUUID
	c.byUUID[raw.DeclaredUUID] = key
	return raw.DeclaredUUID, nil
}

// entity is implemented by every indexed entity pointer type.
type entity[T any] interface {
	*T
	fields() []field
}

// add indexes e under id, folding an identical earlier declaration and
// rejecting a conflicting one.
func add[T any, P entity[T]](b *Builder, kind record.Kind, index map[string]*T, id string, origin record.Origin, e P) error {
	prev, ok := index[id]
	if !ok {
		index[id] = (*T)(e)
		return nil
	}

	first, second := P(prev).fields(), e.fields()
	for i := range first {
		if first[i].value == second[i].value {
			continue
		}
		return issue.New(issue.DiagDuplicateEntity, map[string]any{
			"entity": string(kind),
			"id":     id,
			"field":  first[i].name,
			"first":  first[i].value,
			"second": second[i].value,
		}).At(origin.Member, origin.Line)
	}
	b.folded++
	return nil
}
