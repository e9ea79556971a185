package schema

import (
	"strconv"
	"strings"

	"github.com/jsibley/convert-rmd-to-iniz/pkg/issue"
	"github.com/jsibley/convert-rmd-to-iniz/pkg/record"
)

// row reads the attributes of one dataset row and records the first
// decoding failure. Accessors return zero values once a failure is recorded.
type row struct {
	kind   record.Kind
	spec   tableSpec
	d      *dialect
	attrs  record.Attrs
	origin record.Origin
	rawID  string
	err    *issue.Error
}

func (s *Schema) newRow(kind record.Kind, attrs record.Attrs, origin record.Origin) *row {
	r := &row{
		kind:   kind,
		spec:   s.dialect.tables[kind],
		d:      s.dialect,
		attrs:  attrs,
		origin: origin,
	}
	idAttr := r.spec.id
	if idAttr == "" {
		idAttr = r.spec.refs["concept"]
	}
	if v, ok := attrs[idAttr]; ok {
		r.rawID = v
	} else {
		r.rawID = "?"
	}
	return r
}

func (r *row) fail(id issue.DiagnosticID, field string, params map[string]any) {
	if r.err != nil {
		return
	}
	p := map[string]any{"entity": string(r.kind), "id": r.rawID, "field": field}
	for k, v := range params {
		p[k] = v
	}
	r.err = issue.New(id, p).At(r.origin.Member, r.origin.Line)
}

func (r *row) raw() record.Raw {
	return record.Raw{RawID: r.rawID, Origin: r.origin, Attrs: r.attrs, DeclaredUUID: r.declared()}
}

// declared returns the uuid a keyed row declares for itself, "" when the
// dialect has none or the row leaves it out.
func (r *row) declared() string {
	attr := r.d.declared
	if attr == "" || r.spec.id == "" {
		return ""
	}
	v := strings.TrimSpace(r.attrs[attr])
	if v == "" {
		return ""
	}
	if !isUUIDKey(v) {
		r.fail(issue.DiagParseInvalidIdentifier, attr, map[string]any{"value": v, "expected": "uuid"})
		return ""
	}
	return v
}

// result returns rec, or the recorded failure.
func (r *row) result(rec record.Record) (record.Record, error) {
	if r.err != nil {
		return nil, r.err
	}
	return rec, nil
}

// required returns a mandatory, non-empty attribute.
func (r *row) required(attr string) string {
	v, ok := r.attrs[attr]
	if !ok || strings.TrimSpace(v) == "" {
		r.fail(issue.DiagParseMissingAttribute, attr, nil)
		return ""
	}
	return v
}

func (r *row) optional(attr string) string {
	return r.attrs[attr]
}

// identity returns the translated key of the row itself.
func (r *row) identity() string {
	raw := r.required(r.spec.id)
	if r.err != nil {
		return ""
	}
	return r.d.key(r, r.spec.id, raw, r.kind)
}

// ref returns the translated key of a mandatory reference to a row of kind.
func (r *row) ref(logical string, kind record.Kind) string {
	attr := r.spec.refs[logical]
	raw := r.required(attr)
	if r.err != nil {
		return ""
	}
	return r.d.key(r, attr, raw, kind)
}

// optionalRef is ref for references that may be absent or empty.
func (r *row) optionalRef(logical string, kind record.Kind) string {
	attr := r.spec.refs[logical]
	raw := strings.TrimSpace(r.attrs[attr])
	if raw == "" || r.err != nil {
		return ""
	}
	return r.d.key(r, attr, raw, kind)
}

func (r *row) boolean(attr string) bool {
	v := strings.TrimSpace(r.attrs[attr])
	if v == "" {
		return false
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		r.fail(issue.DiagParseInvalidValue, attr, map[string]any{"value": v})
		return false
	}
	return b
}

func (r *row) float(attr string) float64 {
	v := strings.TrimSpace(r.attrs[attr])
	if v == "" {
		return 0
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		r.fail(issue.DiagParseInvalidValue, attr, map[string]any{"value": v})
		return 0
	}
	return f
}

// number returns a numeric attribute verbatim after checking it parses.
func (r *row) number(attr string) string {
	v := strings.TrimSpace(r.attrs[attr])
	if v == "" {
		return ""
	}
	if _, err := strconv.ParseFloat(v, 64); err != nil {
		r.fail(issue.DiagParseInvalidValue, attr, map[string]any{"value": v})
		return ""
	}
	return v
}

// flag returns a boolean attribute normalized to "true"/"false", or "" when absent.
func (r *row) flag(attrs ...string) string {
	for _, attr := range attrs {
		if strings.TrimSpace(r.attrs[attr]) == "" {
			continue
		}
		return strconv.FormatBool(r.boolean(attr))
	}
	return ""
}

func (s *Schema) decodeConcept(attrs record.Attrs, origin record.Origin) (record.Record, error) {
	r := s.newRow(record.KindConcept, attrs, origin)
	rec := &record.Concept{
		UUID:       r.identity(),
		DatatypeID: r.ref("datatype", record.KindDatatype),
		ClassID:    r.ref("class", record.KindClass),
		IsSet:      r.boolean("is_set"),
		Retired:    r.boolean("retired"),
	}
	rec.Raw = r.raw()
	return r.result(rec)
}

func (s *Schema) decodeName(attrs record.Attrs, origin record.Origin) (record.Record, error) {
	r := s.newRow(record.KindName, attrs, origin)
	rec := &record.Name{
		UUID:      r.identity(),
		ConceptID: r.ref("concept", record.KindConcept),
		Name:      r.required("name"),
		Locale:    strings.TrimSpace(r.optional("locale")),
		Type:      strings.ToUpper(strings.TrimSpace(r.optional("concept_name_type"))),
		Preferred: r.boolean("locale_preferred"),
		Voided:    r.boolean("voided"),
	}
	rec.Raw = r.raw()
	return r.result(rec)
}

func (s *Schema) decodeDescription(attrs record.Attrs, origin record.Origin) (record.Record, error) {
	r := s.newRow(record.KindDescription, attrs, origin)
	rec := &record.Description{
		UUID:        r.identity(),
		ConceptID:   r.ref("concept", record.KindConcept),
		Description: r.required("description"),
		Locale:      strings.TrimSpace(r.optional("locale")),
	}
	rec.Raw = r.raw()
	return r.result(rec)
}

func (s *Schema) decodeAnswer(attrs record.Attrs, origin record.Origin) (record.Record, error) {
	r := s.newRow(record.KindAnswer, attrs, origin)
	rec := &record.Answer{
		UUID:       r.identity(),
		ConceptID:  r.ref("concept", record.KindConcept),
		AnswerID:   r.ref("answer", record.KindConcept),
		SortWeight: r.float("sort_weight"),
	}
	rec.Raw = r.raw()
	return r.result(rec)
}

func (s *Schema) decodeSetMember(attrs record.Attrs, origin record.Origin) (record.Record, error) {
	r := s.newRow(record.KindSetMember, attrs, origin)
	rec := &record.SetMember{
		UUID:       r.identity(),
		MemberID:   r.ref("member", record.KindConcept),
		SetID:      r.ref("set", record.KindConcept),
		SortWeight: r.float("sort_weight"),
	}
	rec.Raw = r.raw()
	return r.result(rec)
}

func (s *Schema) decodeNumeric(attrs record.Attrs, origin record.Origin) (record.Record, error) {
	r := s.newRow(record.KindNumeric, attrs, origin)
	rec := &record.Numeric{
		ConceptID:        r.ref("concept", record.KindConcept),
		HiAbsolute:       r.number("hi_absolute"),
		HiCritical:       r.number("hi_critical"),
		HiNormal:         r.number("hi_normal"),
		LowAbsolute:      r.number("low_absolute"),
		LowCritical:      r.number("low_critical"),
		LowNormal:        r.number("low_normal"),
		Units:            strings.TrimSpace(r.optional("units")),
		AllowDecimal:     r.flag("allow_decimal", "precise"),
		DisplayPrecision: r.number("display_precision"),
	}
	rec.Raw = r.raw()
	return r.result(rec)
}

func (s *Schema) decodeDatatype(attrs record.Attrs, origin record.Origin) (record.Record, error) {
	r := s.newRow(record.KindDatatype, attrs, origin)
	rec := &record.Datatype{
		UUID:            r.identity(),
		Name:            r.required("name"),
		Description:     r.optional("description"),
		HL7Abbreviation: r.optional("hl7_abbreviation"),
		Retired:         r.boolean("retired"),
	}
	rec.Raw = r.raw()
	return r.result(rec)
}

func (s *Schema) decodeClass(attrs record.Attrs, origin record.Origin) (record.Record, error) {
	r := s.newRow(record.KindClass, attrs, origin)
	rec := &record.Class{
		UUID:        r.identity(),
		Name:        r.required("name"),
		Description: r.optional("description"),
		Retired:     r.boolean("retired"),
	}
	rec.Raw = r.raw()
	return r.result(rec)
}

func (s *Schema) decodeSource(attrs record.Attrs, origin record.Origin) (record.Record, error) {
	r := s.newRow(record.KindSource, attrs, origin)
	rec := &record.Source{
		UUID:        r.identity(),
		Name:        r.required("name"),
		Description: r.optional("description"),
		HL7Code:     r.optional("hl7_code"),
		UniqueID:    r.optional("unique_id"),
		Retired:     r.boolean("retired"),
	}
	rec.Raw = r.raw()
	return r.result(rec)
}

func (s *Schema) decodeTerm(attrs record.Attrs, origin record.Origin) (record.Record, error) {
	r := s.newRow(record.KindTerm, attrs, origin)
	rec := &record.Term{
		UUID:        r.identity(),
		SourceID:    r.ref("source", record.KindSource),
		Code:        r.required("code"),
		Name:        r.optional("name"),
		Description: r.optional("description"),
		Retired:     r.boolean("retired"),
	}
	rec.Raw = r.raw()
	return r.result(rec)
}

func (s *Schema) decodeMapType(attrs record.Attrs, origin record.Origin) (record.Record, error) {
	r := s.newRow(record.KindMapType, attrs, origin)
	rec := &record.MapType{
		UUID:        r.identity(),
		Name:        r.required("name"),
		Description: r.optional("description"),
		Hidden:      r.boolean("is_hidden"),
		Retired:     r.boolean("retired"),
	}
	rec.Raw = r.raw()
	return r.result(rec)
}

func (s *Schema) decodeMap(attrs record.Attrs, origin record.Origin) (record.Record, error) {
	r := s.newRow(record.KindMap, attrs, origin)
	rec := &record.Map{
		UUID:      r.identity(),
		ConceptID: r.ref("concept", record.KindConcept),
		TermID:    r.ref("term", record.KindTerm),
		MapTypeID: r.optionalRef("mapType", record.KindMapType),
	}
	rec.Raw = r.raw()
	return r.result(rec)
}

func (s *Schema) decodeDrug(attrs record.Attrs, origin record.Origin) (record.Record, error) {
	r := s.newRow(record.KindDrug, attrs, origin)
	rec := &record.Drug{
		UUID:         r.identity(),
		ConceptID:    r.ref("concept", record.KindConcept),
		DosageFormID: r.optionalRef("dosageForm", record.KindConcept),
		Name:         r.required("name"),
		Strength:     r.optional("strength"),
		Retired:      r.boolean("retired"),
	}
	rec.Raw = r.raw()
	return r.result(rec)
}
