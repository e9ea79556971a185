// Package record defines the neutral raw records produced by the dataset
// decoders. Both schema variants decode into these types, so everything from
// the graph builder onward is schema-agnostic.
//
// Identifiers in records are already stable strings: UUIDs taken from the
// source for the current schema, synthetic name-based UUIDs for the legacy
// numeric schema. Legacy rows link through those synthetic keys; the uuid a
// legacy row declares for itself travels in Raw.DeclaredUUID. References are
// not validated here.
package record

import "sort"

// Kind identifies the record variant.
type Kind string

// Record kinds, one per dataset table.
const (
	KindConcept     Kind = "concept"
	KindName        Kind = "concept_name"
	KindDescription Kind = "concept_description"
	KindAnswer      Kind = "concept_answer"
	KindSetMember   Kind = "concept_set"
	KindNumeric     Kind = "concept_numeric"
	KindDatatype    Kind = "concept_datatype"
	KindClass       Kind = "concept_class"
	KindSource      Kind = "concept_reference_source"
	KindTerm        Kind = "concept_reference_term"
	KindMapType     Kind = "concept_map_type"
	KindMap         Kind = "concept_reference_map"
	KindDrug        Kind = "drug"
)

// Origin locates a record in the archive.
type Origin struct {
	Member string
	Line   int
}

// Attrs holds every attribute of the source row, verbatim.
type Attrs map[string]string

// Get returns the attribute value and whether it was present.
func (a Attrs) Get(name string) (string, bool) {
	v, ok := a[name]
	return v, ok
}

// Keys returns the attribute names in sorted order.
func (a Attrs) Keys() []string {
	keys := make([]string, 0, len(a))
	for k := range a {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Record is a decoded dataset row.
type Record interface {
	// Kind returns the record variant.
	Kind() Kind
	// ID returns the stable identifier of the row.
	ID() string
	// Source returns the row's origin and raw attributes.
	Source() *Raw
}

// Raw carries what every record keeps from its source row.
type Raw struct {
	// RawID is the identifier as written in the source (integer or uuid).
	RawID  string
	Origin Origin
	Attrs  Attrs
	// DeclaredUUID is the row's own uuid attribute when it differs from the
	// linking key, as in legacy rows. Empty otherwise.
	DeclaredUUID string
}

// Source implements Record.
func (r *Raw) Source() *Raw { return r }

// Concept is a concept row.
type Concept struct {
	Raw
	UUID       string
	DatatypeID string
	ClassID    string
	IsSet      bool
	Retired    bool
}

// Name is a localized concept name row.
type Name struct {
	Raw
	UUID      string
	ConceptID string
	Name      string
	Locale    string
	Type      string
	Preferred bool
	Voided    bool
}

// Description is a localized concept description row.
type Description struct {
	Raw
	UUID        string
	ConceptID   string
	Description string
	Locale      string
}

// Answer links a coded concept to a permissible answer concept.
type Answer struct {
	Raw
	UUID       string
	ConceptID  string
	AnswerID   string
	SortWeight float64
}

// SetMember links a set concept to one of its members.
type SetMember struct {
	Raw
	UUID       string
	SetID      string
	MemberID   string
	SortWeight float64
}

// Numeric carries the numeric range attributes of a concept. It is keyed by
// the concept it extends.
type Numeric struct {
	Raw
	ConceptID        string
	HiAbsolute       string
	HiCritical       string
	HiNormal         string
	LowAbsolute      string
	LowCritical      string
	LowNormal        string
	Units            string
	AllowDecimal     string
	DisplayPrecision string
}

// Datatype is a concept datatype row.
type Datatype struct {
	Raw
	UUID            string
	Name            string
	Description     string
	HL7Abbreviation string
	Retired         bool
}

// Class is a concept class row.
type Class struct {
	Raw
	UUID        string
	Name        string
	Description string
	Retired     bool
}

// Source is a concept reference source row.
type Source struct {
	Raw
	UUID        string
	Name        string
	Description string
	HL7Code     string
	UniqueID    string
	Retired     bool
}

// Term is a concept reference term row: a code within a source.
type Term struct {
	Raw
	UUID        string
	SourceID    string
	Code        string
	Name        string
	Description string
	Retired     bool
}

// MapType is a concept map type row.
type MapType struct {
	Raw
	UUID        string
	Name        string
	Description string
	Hidden      bool
	Retired     bool
}

// Map links a concept to a reference term, optionally typed.
type Map struct {
	Raw
	UUID      string
	ConceptID string
	TermID    string
	MapTypeID string
}

// Drug is a drug row.
type Drug struct {
	Raw
	UUID         string
	ConceptID    string
	DosageFormID string
	Name         string
	Strength     string
	Retired      bool
}

func (r *Concept) Kind() Kind     { return KindConcept }
func (r *Name) Kind() Kind        { return KindName }
func (r *Description) Kind() Kind { return KindDescription }
func (r *Answer) Kind() Kind      { return KindAnswer }
func (r *SetMember) Kind() Kind   { return KindSetMember }
func (r *Numeric) Kind() Kind     { return KindNumeric }
func (r *Datatype) Kind() Kind    { return KindDatatype }
func (r *Class) Kind() Kind       { return KindClass }
func (r *Source) Kind() Kind      { return KindSource }
func (r *Term) Kind() Kind        { return KindTerm }
func (r *MapType) Kind() Kind     { return KindMapType }
func (r *Map) Kind() Kind         { return KindMap }
func (r *Drug) Kind() Kind        { return KindDrug }

func (r *Concept) ID() string     { return r.UUID }
func (r *Name) ID() string        { return r.UUID }
func (r *Description) ID() string { return r.UUID }
func (r *Answer) ID() string      { return r.UUID }
func (r *SetMember) ID() string   { return r.UUID }
func (r *Numeric) ID() string     { return r.ConceptID }
func (r *Datatype) ID() string    { return r.UUID }
func (r *Class) ID() string       { return r.UUID }
func (r *Source) ID() string      { return r.UUID }
func (r *Term) ID() string        { return r.UUID }
func (r *MapType) ID() string     { return r.UUID }
func (r *Map) ID() string         { return r.UUID }
func (r *Drug) ID() string        { return r.UUID }

// auditAttrs are bookkeeping columns with no counterpart in the output
// layout. They are dropped when records enter the graph.
var auditAttrs = map[string]struct{}{
	"creator":       {},
	"date_created":  {},
	"changed_by":    {},
	"date_changed":  {},
	"retired_by":    {},
	"date_retired":  {},
	"retire_reason": {},
	"voided_by":     {},
	"date_voided":   {},
	"void_reason":   {},
}

// IsAudit reports whether name is an audit or timestamp column.
func IsAudit(name string) bool {
	_, ok := auditAttrs[name]
	return ok
}

// Kinds returns every record kind in dataset table order.
func Kinds() []Kind {
	return []Kind{
		KindDatatype, KindClass, KindSource, KindTerm, KindMapType,
		KindConcept, KindName, KindDescription, KindNumeric,
		KindAnswer, KindSetMember, KindMap, KindDrug,
	}
}
