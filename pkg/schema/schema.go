// Package schema selects the record decoders for one of the two dataset
// encodings shipped in Reference Metadata module packages.
//
// The current encoding identifies every row by its uuid and references other
// rows by uuid. The legacy (pre 2.x) encoding identifies rows by
// table-scoped integers; those are translated here into synthetic,
// name-based UUIDs so nothing downstream ever sees an integer identifier.
package schema

import (
	"sort"
	"strings"

	"github.com/jsibley/convert-rmd-to-iniz/pkg/issue"
	"github.com/jsibley/convert-rmd-to-iniz/pkg/record"
)

// Mode selects the dataset encoding.
type Mode string

// Supported modes.
const (
	// ModeUUID is the current, uuid-keyed encoding.
	ModeUUID Mode = "uuid"
	// ModeLegacy is the pre 2.x, integer-keyed encoding.
	ModeLegacy Mode = "legacy"
)

// String returns the mode name.
func (m Mode) String() string {
	return string(m)
}

// ParseMode maps a user-supplied mode name to a Mode. The empty string
// selects ModeUUID.
func ParseMode(s string) (Mode, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "uuid", "current", "2.x":
		return ModeUUID, nil
	case "legacy", "pre2x", "pre2.x", "numeric":
		return ModeLegacy, nil
	default:
		return "", issue.New(issue.DiagConfigUnsupportedMode, map[string]any{"mode": s})
	}
}

// Numeric member variants, as encoded in the member file name.
const (
	VariantCurrent = "2.x"
	VariantLegacy  = "pre2.x"
)

// Decoder turns the attributes of one dataset row into a record.
type Decoder func(attrs record.Attrs, origin record.Origin) (record.Record, error)

// Schema is the decoder set of one encoding.
type Schema struct {
	mode     Mode
	dialect  *dialect
	decoders map[record.Kind]Decoder
}

// Select returns the schema for mode.
func Select(mode Mode) (*Schema, error) {
	var d *dialect
	switch mode {
	case ModeUUID:
		d = uuidDialect
	case ModeLegacy:
		d = legacyDialect
	default:
		return nil, issue.New(issue.DiagConfigUnsupportedMode, map[string]any{"mode": string(mode)})
	}

	s := &Schema{mode: mode, dialect: d}
	s.decoders = map[record.Kind]Decoder{
		record.KindConcept:     s.decodeConcept,
		record.KindName:        s.decodeName,
		record.KindDescription: s.decodeDescription,
		record.KindAnswer:      s.decodeAnswer,
		record.KindSetMember:   s.decodeSetMember,
		record.KindNumeric:     s.decodeNumeric,
		record.KindDatatype:    s.decodeDatatype,
		record.KindClass:       s.decodeClass,
		record.KindSource:      s.decodeSource,
		record.KindTerm:        s.decodeTerm,
		record.KindMapType:     s.decodeMapType,
		record.KindMap:         s.decodeMap,
		record.KindDrug:        s.decodeDrug,
	}
	return s, nil
}

// Mode returns the encoding this schema decodes.
func (s *Schema) Mode() Mode {
	return s.mode
}

// Decoder returns the decoder for a dataset table element name.
func (s *Schema) Decoder(table string) (Decoder, bool) {
	d, ok := s.decoders[record.Kind(table)]
	return d, ok
}

// Tables returns the table element names this schema decodes, sorted.
func (s *Schema) Tables() []string {
	tables := make([]string, 0, len(s.decoders))
	for k := range s.decoders {
		tables = append(tables, string(k))
	}
	sort.Strings(tables)
	return tables
}

// AcceptVariant reports whether a numeric member of the given variant
// belongs to this encoding. Members without a variant are always accepted.
func (s *Schema) AcceptVariant(variant string) bool {
	switch variant {
	case "":
		return true
	case VariantLegacy:
		return s.mode == ModeLegacy
	case VariantCurrent:
		return s.mode == ModeUUID
	default:
		return false
	}
}
