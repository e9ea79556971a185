package schema

import (
	"strconv"
	"strings"

	"github.com/google/uuid"

	"github.com/jsibley/convert-rmd-to-iniz/pkg/issue"
	"github.com/jsibley/convert-rmd-to-iniz/pkg/record"
)

// LegacyNamespace is the namespace of the synthetic identifiers minted for
// legacy integer keys. Changing it changes every legacy-mode output uuid.
var LegacyNamespace = uuid.MustParse("6f1d3c0a-6a4e-5d8b-9a57-1c0e8b9f2d41")

// LegacyID returns the synthetic identifier of the legacy row of kind with
// integer key n.
func LegacyID(kind record.Kind, n int64) string {
	return uuid.NewSHA1(LegacyNamespace, []byte(string(kind)+":"+strconv.FormatInt(n, 10))).String()
}

// tableSpec names the identity and reference attributes of one table.
type tableSpec struct {
	id   string
	refs map[string]string
}

// dialect is the attribute naming and key translation of one encoding.
type dialect struct {
	name   string
	tables map[record.Kind]tableSpec
	// declared is the attribute holding a row's own uuid when rows are
	// keyed by something else.
	declared string
	// key translates a raw key of the given kind into a stable identifier.
	key func(r *row, attr, raw string, kind record.Kind) string
}

var uuidDialect = &dialect{
	name: "uuid",
	tables: map[record.Kind]tableSpec{
		record.KindConcept:     {id: "uuid", refs: map[string]string{"datatype": "datatype", "class": "concept_class"}},
		record.KindName:        {id: "uuid", refs: map[string]string{"concept": "concept"}},
		record.KindDescription: {id: "uuid", refs: map[string]string{"concept": "concept"}},
		record.KindAnswer:      {id: "uuid", refs: map[string]string{"concept": "concept", "answer": "answer_concept"}},
		record.KindSetMember:   {id: "uuid", refs: map[string]string{"member": "concept", "set": "concept_set"}},
		record.KindNumeric:     {refs: map[string]string{"concept": "concept"}},
		record.KindDatatype:    {id: "uuid"},
		record.KindClass:       {id: "uuid"},
		record.KindSource:      {id: "uuid"},
		record.KindTerm:        {id: "uuid", refs: map[string]string{"source": "concept_source"}},
		record.KindMapType:     {id: "uuid"},
		record.KindMap:         {id: "uuid", refs: map[string]string{"concept": "concept", "term": "concept_reference_term", "mapType": "concept_map_type"}},
		record.KindDrug:        {id: "uuid", refs: map[string]string{"concept": "concept", "dosageForm": "dosage_form"}},
	},
	key: uuidKey,
}

var legacyDialect = &dialect{
	name: "legacy",
	tables: map[record.Kind]tableSpec{
		record.KindConcept:     {id: "concept_id", refs: map[string]string{"datatype": "datatype_id", "class": "class_id"}},
		record.KindName:        {id: "concept_name_id", refs: map[string]string{"concept": "concept_id"}},
		record.KindDescription: {id: "concept_description_id", refs: map[string]string{"concept": "concept_id"}},
		record.KindAnswer:      {id: "concept_answer_id", refs: map[string]string{"concept": "concept_id", "answer": "answer_concept"}},
		record.KindSetMember:   {id: "concept_set_id", refs: map[string]string{"member": "concept_id", "set": "concept_set"}},
		record.KindNumeric:     {refs: map[string]string{"concept": "concept_id"}},
		record.KindDatatype:    {id: "concept_datatype_id"},
		record.KindClass:       {id: "concept_class_id"},
		record.KindSource:      {id: "concept_source_id"},
		record.KindTerm:        {id: "concept_reference_term_id", refs: map[string]string{"source": "concept_source_id"}},
		record.KindMapType:     {id: "concept_map_type_id"},
		record.KindMap:         {id: "concept_map_id", refs: map[string]string{"concept": "concept_id", "term": "concept_reference_term_id", "mapType": "concept_map_type_id"}},
		record.KindDrug:        {id: "drug_id", refs: map[string]string{"concept": "concept_id", "dosageForm": "dosage_form"}},
	},
	declared: "uuid",
	key:      legacyKey,
}

// uuidKey accepts RFC 4122 UUIDs and the 36-character hex identifiers used
// by CIEL-derived dictionaries. Purely numeric keys are rejected so that a
// legacy dataset decoded in uuid mode fails instead of passing silently.
func uuidKey(r *row, attr, raw string, _ record.Kind) string {
	if isUUIDKey(raw) {
		return raw
	}
	r.fail(issue.DiagParseInvalidIdentifier, attr, map[string]any{"value": raw, "expected": "uuid"})
	return ""
}

func isUUIDKey(s string) bool {
	if len(s) != 36 {
		return false
	}
	if s[8] == '-' && s[13] == '-' && s[18] == '-' && s[23] == '-' {
		_, err := uuid.Parse(s)
		return err == nil
	}
	digits := 0
	for i := 0; i < len(s); i++ {
		c := s[i]
		switch {
		case c >= '0' && c <= '9':
			digits++
		case c >= 'a' && c <= 'f', c >= 'A' && c <= 'F', c == '-':
		default:
			return false
		}
	}
	return digits < len(s)
}

// legacyKey translates a table-scoped integer into its synthetic identifier.
func legacyKey(r *row, attr, raw string, kind record.Kind) string {
	n, err := strconv.ParseInt(strings.TrimSpace(raw), 10, 64)
	if err != nil || n < 0 {
		r.fail(issue.DiagParseInvalidIdentifier, attr, map[string]any{"value": raw, "expected": "integer key"})
		return ""
	}
	return LegacyID(kind, n)
}
