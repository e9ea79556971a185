// Package testutil builds in-memory module packages and datasets for tests.
package testutil

import (
	"archive/zip"
	"bytes"
	"encoding/xml"
	"sort"
	"strconv"
	"strings"
	"testing"

	"github.com/google/uuid"
)

// OMOD zips members (name -> content) into a module package. Members are
// added in name order.
func OMOD(tb testing.TB, members map[string]string) []byte {
	tb.Helper()

	names := make([]string, 0, len(members))
	for name := range members {
		names = append(names, name)
	}
	sort.Strings(names)

	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	for _, name := range names {
		w, err := zw.Create(name)
		if err != nil {
			tb.Fatalf("zip create %s: %v", name, err)
		}
		if _, err := w.Write([]byte(members[name])); err != nil {
			tb.Fatalf("zip write %s: %v", name, err)
		}
	}
	if err := zw.Close(); err != nil {
		tb.Fatalf("zip close: %v", err)
	}
	return buf.Bytes()
}

// Dataset wraps rows in a flat dataset document, one row per line.
func Dataset(rows ...string) string {
	var b strings.Builder
	b.WriteString(`<?xml version="1.0" encoding="UTF-8"?>` + "\n")
	b.WriteString("<dataset>\n")
	for _, r := range rows {
		b.WriteString("  ")
		b.WriteString(r)
		b.WriteString("\n")
	}
	b.WriteString("</dataset>\n")
	return b.String()
}

// Row renders one dataset row. Attributes are given as name/value pairs and
// written in the order given.
func Row(table string, kv ...string) string {
	if len(kv)%2 != 0 {
		panic("testutil.Row: odd number of attribute arguments")
	}
	var b bytes.Buffer
	b.WriteString("<" + table)
	for i := 0; i < len(kv); i += 2 {
		b.WriteString(" " + kv[i] + `="`)
		_ = xml.EscapeText(&b, []byte(kv[i+1]))
		b.WriteString(`"`)
	}
	b.WriteString("/>")
	return b.String()
}

// CIEL returns a CIEL-style 36 character identifier for a numeric code.
func CIEL(code string) string {
	return code + strings.Repeat("A", 36-len(code))
}

// UUID returns a stable uuid for a fixture label.
func UUID(label string) string {
	return uuid.NewSHA1(uuid.NameSpaceOID, []byte("rmd2iniz-fixture:"+label)).String()
}

// Member names used by the fixtures.
const (
	ConceptsMember       = "Reference_Application_Concepts-20190531.xml"
	DiagnosesMember      = "Reference_Application_Diagnoses-20190531.xml"
	NumericCurrentMember = "Reference_Application_Numeric_Concepts-20190531-2.x.xml"
	NumericLegacyMember  = "Reference_Application_Numeric_Concepts-20190531-pre2.x.xml"
	FixtureVersion       = "20190531"
)

// Identifiers of the Malaria fixture in the uuid encoding.
var (
	CodedUUID     = "8d4a48b6-c2cc-11de-8d13-0010c6dffd0f"
	DiagnosisUUID = "8d4918b0-c2cc-11de-8d13-0010c6dffd0f"
	FindingUUID   = "8d491a9a-c2cc-11de-8d13-0010c6dffd0f"
	MalariaUUID   = CIEL("116128")
	PositiveUUID  = CIEL("703")
	NegativeUUID  = CIEL("664")
)

// Integer keys of the Malaria fixture in the legacy encoding.
const (
	CodedID     = 2
	DiagnosisID = 4
	FindingID   = 5
	MalariaID   = 116128
	PositiveID  = 703
	NegativeID  = 664
)

// MalariaRows returns the rows of the Malaria scenario in the uuid encoding:
// classes Diagnosis and Finding, datatype Coded, and the coded concept
// Malaria answered by Positive and Negative.
func MalariaRows() []string {
	return []string{
		Row("concept_datatype", "uuid", CodedUUID, "name", "Coded", "description", "Value determined by term dictionary", "hl7_abbreviation", "CWE", "creator", "1", "date_created", "2004-02-02 00:00:00.0", "retired", "false"),
		Row("concept_class", "uuid", DiagnosisUUID, "name", "Diagnosis", "description", "Conclusion drawn through findings", "retired", "false"),
		Row("concept_class", "uuid", FindingUUID, "name", "Finding", "description", "Practitioner observation/finding", "retired", "false"),
		Row("concept", "uuid", MalariaUUID, "datatype", CodedUUID, "concept_class", DiagnosisUUID, "is_set", "false", "retired", "false", "creator", "1"),
		Row("concept", "uuid", PositiveUUID, "datatype", CodedUUID, "concept_class", FindingUUID, "is_set", "false", "retired", "false"),
		Row("concept", "uuid", NegativeUUID, "datatype", CodedUUID, "concept_class", FindingUUID, "is_set", "false", "retired", "false"),
		Row("concept_name", "uuid", UUID("name-malaria"), "concept", MalariaUUID, "name", "Malaria", "locale", "en", "concept_name_type", "FULLY_SPECIFIED", "locale_preferred", "true", "voided", "false"),
		Row("concept_name", "uuid", UUID("name-positive"), "concept", PositiveUUID, "name", "Positive", "locale", "en", "concept_name_type", "FULLY_SPECIFIED", "locale_preferred", "true", "voided", "false"),
		Row("concept_name", "uuid", UUID("name-negative"), "concept", NegativeUUID, "name", "Negative", "locale", "en", "concept_name_type", "FULLY_SPECIFIED", "locale_preferred", "true", "voided", "false"),
		Row("concept_description", "uuid", UUID("desc-malaria"), "concept", MalariaUUID, "description", "Infection caused by Plasmodium, transmitted by mosquitoes", "locale", "en"),
		Row("concept_answer", "uuid", UUID("answer-positive"), "concept", MalariaUUID, "answer_concept", PositiveUUID, "sort_weight", "1.0"),
		Row("concept_answer", "uuid", UUID("answer-negative"), "concept", MalariaUUID, "answer_concept", NegativeUUID, "sort_weight", "2.0"),
	}
}

// MalariaLegacyRows returns the Malaria scenario in the legacy encoding.
// Classes, the datatype and Malaria declare their uuids; Positive and
// Negative do not.
func MalariaLegacyRows() []string {
	itoa := strconv.Itoa
	return []string{
		Row("concept_datatype", "concept_datatype_id", itoa(CodedID), "name", "Coded", "description", "Value determined by term dictionary", "hl7_abbreviation", "CWE", "uuid", CodedUUID),
		Row("concept_class", "concept_class_id", itoa(DiagnosisID), "name", "Diagnosis", "description", "Conclusion drawn through findings", "uuid", DiagnosisUUID),
		Row("concept_class", "concept_class_id", itoa(FindingID), "name", "Finding", "description", "Practitioner observation/finding", "uuid", FindingUUID),
		Row("concept", "concept_id", itoa(MalariaID), "datatype_id", itoa(CodedID), "class_id", itoa(DiagnosisID), "is_set", "false", "retired", "false", "uuid", MalariaUUID),
		Row("concept", "concept_id", itoa(PositiveID), "datatype_id", itoa(CodedID), "class_id", itoa(FindingID), "is_set", "false", "retired", "false"),
		Row("concept", "concept_id", itoa(NegativeID), "datatype_id", itoa(CodedID), "class_id", itoa(FindingID), "is_set", "false", "retired", "false"),
		Row("concept_name", "concept_name_id", "1", "concept_id", itoa(MalariaID), "name", "Malaria", "locale", "en", "concept_name_type", "FULLY_SPECIFIED", "locale_preferred", "1"),
		Row("concept_name", "concept_name_id", "2", "concept_id", itoa(PositiveID), "name", "Positive", "locale", "en", "concept_name_type", "FULLY_SPECIFIED", "locale_preferred", "1"),
		Row("concept_name", "concept_name_id", "3", "concept_id", itoa(NegativeID), "name", "Negative", "locale", "en", "concept_name_type", "FULLY_SPECIFIED", "locale_preferred", "1"),
		Row("concept_answer", "concept_answer_id", "1", "concept_id", itoa(MalariaID), "answer_concept", itoa(PositiveID), "sort_weight", "1"),
		Row("concept_answer", "concept_answer_id", "2", "concept_id", itoa(MalariaID), "answer_concept", itoa(NegativeID), "sort_weight", "2"),
	}
}

// MalariaOMOD returns a module package holding the Malaria scenario in the
// uuid encoding, plus an empty current numeric member.
func MalariaOMOD(tb testing.TB) []byte {
	tb.Helper()
	members := map[string]string{
		ConceptsMember:       Dataset(MalariaRows()...),
		NumericCurrentMember: Dataset(),
	}
	members["META-INF/MANIFEST.MF"] = "Manifest-Version: 1.0\n"
	members["lib/referencemetadata-api-2.10.0.jar"] = "not a dictionary"
	return OMOD(tb, members)
}

// MalariaLegacyOMOD returns the Malaria scenario in the legacy encoding,
// plus an empty legacy numeric member.
func MalariaLegacyOMOD(tb testing.TB) []byte {
	tb.Helper()
	return OMOD(tb, map[string]string{
		ConceptsMember:      Dataset(MalariaLegacyRows()...),
		NumericLegacyMember: Dataset(),
	})
}
