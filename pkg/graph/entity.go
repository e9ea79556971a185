package graph

import (
	"strconv"

	"github.com/jsibley/convert-rmd-to-iniz/pkg/record"
)

// Ref is a reference by identifier that resolution binds to its target.
type Ref[T any] struct {
	ID     string
	target *T
}

// NewRef returns an unbound reference to id.
func NewRef[T any](id string) Ref[T] {
	return Ref[T]{ID: id}
}

// Bind sets the resolved target.
func (r *Ref[T]) Bind(t *T) {
	r.target = t
}

// Target returns the resolved target, nil before resolution.
func (r Ref[T]) Target() *T {
	return r.target
}

// Empty reports whether the reference is absent.
func (r Ref[T]) Empty() bool {
	return r.ID == ""
}

// Bound reports whether the reference has been resolved.
func (r Ref[T]) Bound() bool {
	return r.target != nil
}

// Datatype is a concept datatype.
type Datatype struct {
	UUID            string
	Name            string
	Description     string
	HL7Abbreviation string
	Retired         bool
	Origin          record.Origin
}

// Class is a concept class.
type Class struct {
	UUID        string
	Name        string
	Description string
	Retired     bool
	Origin      record.Origin
}

// Source is a concept reference source, an external terminology.
type Source struct {
	UUID        string
	Name        string
	Description string
	HL7Code     string
	UniqueID    string
	Retired     bool
	Origin      record.Origin
}

// MapType qualifies a concept map (SAME-AS, NARROWER-THAN, ...).
type MapType struct {
	UUID        string
	Name        string
	Description string
	Hidden      bool
	Retired     bool
	Origin      record.Origin
}

// Term is a code within a source.
type Term struct {
	UUID        string
	Source      Ref[Source]
	Code        string
	Name        string
	Description string
	Retired     bool
	Origin      record.Origin
}

// Concept is a dictionary concept. Its child collections are attached
// during resolution.
type Concept struct {
	UUID     string
	Datatype Ref[Datatype]
	Class    Ref[Class]
	IsSet    bool
	Retired  bool
	Origin   record.Origin

	Names        []*Name
	Descriptions []*Description
	Numeric      *Numeric
	Answers      []*Answer
	Members      []*SetMember
	Mappings     []*ConceptMap
}

// Name is a localized concept name.
type Name struct {
	UUID      string
	Concept   Ref[Concept]
	Name      string
	Locale    string
	Type      string
	Preferred bool
	Voided    bool
	Origin    record.Origin
}

// Name types.
const (
	NameFullySpecified = "FULLY_SPECIFIED"
	NameShort          = "SHORT"
	NameIndexTerm      = "INDEX_TERM"
)

// FullySpecified reports whether the name is the fully specified name of
// its locale. Names without a type are synonyms.
func (n *Name) FullySpecified() bool {
	return n.Type == NameFullySpecified
}

// Short reports whether the name is a short name.
func (n *Name) Short() bool {
	return n.Type == NameShort
}

// Description is a localized concept description.
type Description struct {
	UUID        string
	Concept     Ref[Concept]
	Description string
	Locale      string
	Origin      record.Origin
}

// Numeric holds the numeric range attributes of a concept.
type Numeric struct {
	Concept          Ref[Concept]
	HiAbsolute       string
	HiCritical       string
	HiNormal         string
	LowAbsolute      string
	LowCritical      string
	LowNormal        string
	Units            string
	AllowDecimal     string
	DisplayPrecision string
	Origin           record.Origin
}

// Answer links a coded concept to one of its answers.
type Answer struct {
	UUID       string
	Concept    Ref[Concept]
	Answer     Ref[Concept]
	SortWeight float64
	Origin     record.Origin
}

// SetMember links a set concept to one of its members.
type SetMember struct {
	UUID       string
	Set        Ref[Concept]
	Member     Ref[Concept]
	SortWeight float64
	Origin     record.Origin
}

// ConceptMap links a concept to a reference term, optionally typed.
type ConceptMap struct {
	UUID    string
	Concept Ref[Concept]
	Term    Ref[Term]
	MapType Ref[MapType]
	Origin  record.Origin
}

// Source returns the source of the mapped term, nil before resolution.
func (m *ConceptMap) Source() *Source {
	if t := m.Term.Target(); t != nil {
		return t.Source.Target()
	}
	return nil
}

// Code returns the mapped code, empty before resolution.
func (m *ConceptMap) Code() string {
	if t := m.Term.Target(); t != nil {
		return t.Code
	}
	return ""
}

// Drug is a drug product of a concept.
type Drug struct {
	UUID       string
	Concept    Ref[Concept]
	DosageForm Ref[Concept]
	Name       string
	Strength   string
	Retired    bool
	Origin     record.Origin
}

func (e *Datatype) ident() string    { return e.UUID }
func (e *Class) ident() string       { return e.UUID }
func (e *Source) ident() string      { return e.UUID }
func (e *MapType) ident() string     { return e.UUID }
func (e *Term) ident() string        { return e.UUID }
func (e *Concept) ident() string     { return e.UUID }
func (e *Name) ident() string        { return e.UUID }
func (e *Description) ident() string { return e.UUID }
func (e *Answer) ident() string      { return e.UUID }
func (e *SetMember) ident() string   { return e.UUID }
func (e *ConceptMap) ident() string  { return e.UUID }
func (e *Drug) ident() string        { return e.UUID }

// field is a named value compared when a duplicate identifier is seen.
type field struct {
	name  string
	value string
}

func formatBool(v bool) string { return strconv.FormatBool(v) }

func formatFloat(v float64) string { return strconv.FormatFloat(v, 'g', -1, 64) }

func (e *Datatype) fields() []field {
	return []field{{"name", e.Name}, {"description", e.Description}, {"hl7_abbreviation", e.HL7Abbreviation}, {"retired", formatBool(e.Retired)}}
}

func (e *Class) fields() []field {
	return []field{{"name", e.Name}, {"description", e.Description}, {"retired", formatBool(e.Retired)}}
}

func (e *Source) fields() []field {
	return []field{{"name", e.Name}, {"description", e.Description}, {"hl7_code", e.HL7Code}, {"unique_id", e.UniqueID}, {"retired", formatBool(e.Retired)}}
}

func (e *MapType) fields() []field {
	return []field{{"name", e.Name}, {"description", e.Description}, {"is_hidden", formatBool(e.Hidden)}, {"retired", formatBool(e.Retired)}}
}

func (e *Term) fields() []field {
	return []field{{"source", e.Source.ID}, {"code", e.Code}, {"name", e.Name}, {"description", e.Description}, {"retired", formatBool(e.Retired)}}
}

func (e *Concept) fields() []field {
	return []field{{"datatype", e.Datatype.ID}, {"class", e.Class.ID}, {"is_set", formatBool(e.IsSet)}, {"retired", formatBool(e.Retired)}}
}

func (e *Name) fields() []field {
	return []field{{"concept", e.Concept.ID}, {"name", e.Name}, {"locale", e.Locale}, {"concept_name_type", e.Type}, {"locale_preferred", formatBool(e.Preferred)}, {"voided", formatBool(e.Voided)}}
}

func (e *Description) fields() []field {
	return []field{{"concept", e.Concept.ID}, {"description", e.Description}, {"locale", e.Locale}}
}

func (e *Numeric) fields() []field {
	return []field{
		{"hi_absolute", e.HiAbsolute}, {"hi_critical", e.HiCritical}, {"hi_normal", e.HiNormal},
		{"low_absolute", e.LowAbsolute}, {"low_critical", e.LowCritical}, {"low_normal", e.LowNormal},
		{"units", e.Units}, {"allow_decimal", e.AllowDecimal}, {"display_precision", e.DisplayPrecision},
	}
}

func (e *Answer) fields() []field {
	return []field{{"concept", e.Concept.ID}, {"answer_concept", e.Answer.ID}, {"sort_weight", formatFloat(e.SortWeight)}}
}

func (e *SetMember) fields() []field {
	return []field{{"concept_set", e.Set.ID}, {"concept", e.Member.ID}, {"sort_weight", formatFloat(e.SortWeight)}}
}

func (e *ConceptMap) fields() []field {
	return []field{{"concept", e.Concept.ID}, {"concept_reference_term", e.Term.ID}, {"concept_map_type", e.MapType.ID}}
}

func (e *Drug) fields() []field {
	return []field{{"concept", e.Concept.ID}, {"dosage_form", e.DosageForm.ID}, {"name", e.Name}, {"strength", e.Strength}, {"retired", formatBool(e.Retired)}}
}
