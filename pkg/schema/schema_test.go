package schema

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jsibley/convert-rmd-to-iniz/pkg/issue"
	"github.com/jsibley/convert-rmd-to-iniz/pkg/record"
)

const (
	conceptUUID  = "116128AAAAAAAAAAAAAAAAAAAAAAAAAAAAAA"
	datatypeUUID = "8d4a48b6-c2cc-11de-8d13-0010c6dffd0f"
	classUUID    = "8d4918b0-c2cc-11de-8d13-0010c6dffd0f"
)

var origin = record.Origin{Member: "Reference_Application_Concepts-20190531.xml", Line: 7}

func decode(t *testing.T, mode Mode, table string, attrs record.Attrs) (record.Record, error) {
	t.Helper()
	s, err := Select(mode)
	require.NoError(t, err)
	d, ok := s.Decoder(table)
	require.True(t, ok, "no decoder for %s", table)
	return d(attrs, origin)
}

func TestParseMode(t *testing.T) {
	tests := []struct {
		in   string
		want Mode
	}{
		{"", ModeUUID},
		{"uuid", ModeUUID},
		{"Current", ModeUUID},
		{"2.x", ModeUUID},
		{"legacy", ModeLegacy},
		{"pre2x", ModeLegacy},
		{" PRE2.X ", ModeLegacy},
	}
	for _, tt := range tests {
		got, err := ParseMode(tt.in)
		if err != nil {
			t.Errorf("ParseMode(%q) error: %v", tt.in, err)
			continue
		}
		if got != tt.want {
			t.Errorf("ParseMode(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestParseModeUnsupported(t *testing.T) {
	_, err := ParseMode("liquibase")
	require.Error(t, err)
	assert.ErrorIs(t, err, issue.ErrConfiguration)
	assert.Contains(t, err.Error(), "liquibase")
}

func TestSelectUnsupported(t *testing.T) {
	_, err := Select(Mode("csv"))
	assert.ErrorIs(t, err, issue.ErrConfiguration)
}

func TestTablesSameForBothModes(t *testing.T) {
	current, err := Select(ModeUUID)
	require.NoError(t, err)
	legacy, err := Select(ModeLegacy)
	require.NoError(t, err)

	assert.Equal(t, current.Tables(), legacy.Tables())
	assert.Len(t, current.Tables(), len(record.Kinds()))

	_, ok := current.Decoder("person")
	assert.False(t, ok)
}

func TestAcceptVariant(t *testing.T) {
	current, _ := Select(ModeUUID)
	legacy, _ := Select(ModeLegacy)

	assert.True(t, current.AcceptVariant(""))
	assert.True(t, current.AcceptVariant(VariantCurrent))
	assert.False(t, current.AcceptVariant(VariantLegacy))

	assert.True(t, legacy.AcceptVariant(""))
	assert.True(t, legacy.AcceptVariant(VariantLegacy))
	assert.False(t, legacy.AcceptVariant(VariantCurrent))
	assert.False(t, legacy.AcceptVariant("3.x"))
}

func TestDecodeConceptUUID(t *testing.T) {
	rec, err := decode(t, ModeUUID, "concept", record.Attrs{
		"uuid":          conceptUUID,
		"datatype":      datatypeUUID,
		"concept_class": classUUID,
		"is_set":        "false",
		"retired":       "true",
		"creator":       "1",
	})
	require.NoError(t, err)

	c, ok := rec.(*record.Concept)
	require.True(t, ok)
	assert.Equal(t, conceptUUID, c.ID())
	assert.Equal(t, datatypeUUID, c.DatatypeID)
	assert.Equal(t, classUUID, c.ClassID)
	assert.False(t, c.IsSet)
	assert.True(t, c.Retired)
	assert.Equal(t, origin, c.Source().Origin)
	assert.Equal(t, "1", c.Source().Attrs["creator"])
	assert.Equal(t, conceptUUID, c.Source().RawID)
}

func TestDecodeConceptLegacy(t *testing.T) {
	rec, err := decode(t, ModeLegacy, "concept", record.Attrs{
		"concept_id":  "116128",
		"datatype_id": "2",
		"class_id":    "4",
		"is_set":      "1",
	})
	require.NoError(t, err)

	c := rec.(*record.Concept)
	assert.Equal(t, LegacyID(record.KindConcept, 116128), c.UUID)
	assert.Equal(t, LegacyID(record.KindDatatype, 2), c.DatatypeID)
	assert.Equal(t, LegacyID(record.KindClass, 4), c.ClassID)
	assert.True(t, c.IsSet)
	assert.Equal(t, "116128", c.Source().RawID)
}

func TestDecodeLegacyDeclaredUUID(t *testing.T) {
	const declared = "8d4918b0-c2cc-11de-8d13-0010c6dffd0f"

	tests := []struct {
		name    string
		mode    Mode
		table   string
		attrs   record.Attrs
		want    string
		wantErr bool
	}{
		{
			name:  "legacy row with uuid",
			mode:  ModeLegacy,
			table: "concept_class",
			attrs: record.Attrs{"concept_class_id": "4", "name": "Diagnosis", "uuid": declared},
			want:  declared,
		},
		{
			name:  "legacy row without uuid",
			mode:  ModeLegacy,
			table: "concept_class",
			attrs: record.Attrs{"concept_class_id": "4", "name": "Diagnosis"},
			want:  "",
		},
		{
			name:  "legacy numeric row has no identity of its own",
			mode:  ModeLegacy,
			table: "concept_numeric",
			attrs: record.Attrs{"concept_id": "5089", "uuid": declared},
			want:  "",
		},
		{
			name:  "uuid row is its own key",
			mode:  ModeUUID,
			table: "concept_class",
			attrs: record.Attrs{"uuid": declared, "name": "Diagnosis"},
			want:  "",
		},
		{
			name:    "legacy row with malformed uuid",
			mode:    ModeLegacy,
			table:   "concept_class",
			attrs:   record.Attrs{"concept_class_id": "4", "name": "Diagnosis", "uuid": "not-a-uuid"},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec, err := decode(t, tt.mode, tt.table, tt.attrs)
			if tt.wantErr {
				assert.ErrorIs(t, err, issue.ErrParse)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, rec.Source().DeclaredUUID)
		})
	}

	rec, err := decode(t, ModeLegacy, "concept_class", record.Attrs{"concept_class_id": "4", "name": "Diagnosis", "uuid": declared})
	require.NoError(t, err)
	assert.Equal(t, LegacyID(record.KindClass, 4), rec.ID())
}

func TestLegacyIDStableAndScoped(t *testing.T) {
	assert.Equal(t, LegacyID(record.KindConcept, 5), LegacyID(record.KindConcept, 5))
	assert.NotEqual(t, LegacyID(record.KindConcept, 5), LegacyID(record.KindClass, 5))
	assert.NotEqual(t, LegacyID(record.KindConcept, 5), LegacyID(record.KindConcept, 6))
	assert.Len(t, LegacyID(record.KindConcept, 5), 36)
}

func TestDecodeAnswerLegacyReferencesConcepts(t *testing.T) {
	rec, err := decode(t, ModeLegacy, "concept_answer", record.Attrs{
		"concept_answer_id": "1",
		"concept_id":        "116128",
		"answer_concept":    "703",
		"sort_weight":       "2.5",
	})
	require.NoError(t, err)

	a := rec.(*record.Answer)
	assert.Equal(t, LegacyID(record.KindAnswer, 1), a.UUID)
	assert.Equal(t, LegacyID(record.KindConcept, 116128), a.ConceptID)
	assert.Equal(t, LegacyID(record.KindConcept, 703), a.AnswerID)
	assert.Equal(t, 2.5, a.SortWeight)
}

func TestDecodeNameNormalizesType(t *testing.T) {
	rec, err := decode(t, ModeUUID, "concept_name", record.Attrs{
		"uuid":              "a8a8b7a2-1111-4c4c-9d9d-0123456789ab",
		"concept":           conceptUUID,
		"name":              "Malaria",
		"locale":            " en ",
		"concept_name_type": "fully_specified",
		"locale_preferred":  "true",
	})
	require.NoError(t, err)

	n := rec.(*record.Name)
	assert.Equal(t, "en", n.Locale)
	assert.Equal(t, "FULLY_SPECIFIED", n.Type)
	assert.True(t, n.Preferred)
	assert.False(t, n.Voided)
}

func TestDecodeNumericKeepsSourceText(t *testing.T) {
	rec, err := decode(t, ModeUUID, "concept_numeric", record.Attrs{
		"concept":           conceptUUID,
		"hi_normal":         "37.50",
		"low_normal":        "36",
		"units":             "DEG C",
		"precise":           "1",
		"display_precision": "1",
	})
	require.NoError(t, err)

	n := rec.(*record.Numeric)
	assert.Equal(t, conceptUUID, n.ID())
	assert.Equal(t, "37.50", n.HiNormal)
	assert.Equal(t, "36", n.LowNormal)
	assert.Equal(t, "", n.HiAbsolute)
	assert.Equal(t, "DEG C", n.Units)
	assert.Equal(t, "true", n.AllowDecimal)
}

func TestDecodeMapOptionalType(t *testing.T) {
	rec, err := decode(t, ModeUUID, "concept_reference_map", record.Attrs{
		"uuid":                   "b3b3b3b3-2222-4c4c-9d9d-0123456789ab",
		"concept":                conceptUUID,
		"concept_reference_term": "c4c4c4c4-3333-4c4c-9d9d-0123456789ab",
	})
	require.NoError(t, err)
	assert.Equal(t, "", rec.(*record.Map).MapTypeID)
}

func TestDecodeFailures(t *testing.T) {
	tests := []struct {
		name      string
		mode      Mode
		table     string
		attrs     record.Attrs
		wantField string
		wantID    string
	}{
		{
			name:      "legacy row in uuid mode",
			mode:      ModeUUID,
			table:     "concept",
			attrs:     record.Attrs{"concept_id": "116128", "datatype_id": "2", "class_id": "4"},
			wantField: "uuid",
			wantID:    "?",
		},
		{
			name:      "uuid row in legacy mode",
			mode:      ModeLegacy,
			table:     "concept",
			attrs:     record.Attrs{"uuid": conceptUUID, "datatype": datatypeUUID, "concept_class": classUUID},
			wantField: "concept_id",
			wantID:    "?",
		},
		{
			name:      "integer identity in uuid mode",
			mode:      ModeUUID,
			table:     "concept_class",
			attrs:     record.Attrs{"uuid": "000000000000000000000000000000000004", "name": "Diagnosis"},
			wantField: "uuid",
			wantID:    "000000000000000000000000000000000004",
		},
		{
			name:      "non-integer key in legacy mode",
			mode:      ModeLegacy,
			table:     "concept_class",
			attrs:     record.Attrs{"concept_class_id": "x4", "name": "Diagnosis"},
			wantField: "concept_class_id",
			wantID:    "x4",
		},
		{
			name:      "missing reference",
			mode:      ModeUUID,
			table:     "concept",
			attrs:     record.Attrs{"uuid": conceptUUID, "concept_class": classUUID},
			wantField: "datatype",
			wantID:    conceptUUID,
		},
		{
			name:      "missing name",
			mode:      ModeUUID,
			table:     "concept_datatype",
			attrs:     record.Attrs{"uuid": datatypeUUID, "name": "  "},
			wantField: "name",
			wantID:    datatypeUUID,
		},
		{
			name:      "bad boolean",
			mode:      ModeUUID,
			table:     "concept",
			attrs:     record.Attrs{"uuid": conceptUUID, "datatype": datatypeUUID, "concept_class": classUUID, "is_set": "maybe"},
			wantField: "is_set",
			wantID:    conceptUUID,
		},
		{
			name:      "bad numeric",
			mode:      ModeUUID,
			table:     "concept_numeric",
			attrs:     record.Attrs{"concept": conceptUUID, "hi_normal": "high"},
			wantField: "hi_normal",
			wantID:    conceptUUID,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec, err := decode(t, tt.mode, tt.table, tt.attrs)
			require.Error(t, err)
			assert.Nil(t, rec)
			assert.ErrorIs(t, err, issue.ErrParse)

			var e *issue.Error
			require.ErrorAs(t, err, &e)
			assert.Equal(t, tt.table, e.Entity)
			assert.Equal(t, tt.wantField, e.Field)
			assert.Equal(t, tt.wantID, e.Identifier)
			assert.Equal(t, origin.Member, e.Member)
			assert.Equal(t, origin.Line, e.Line)
		})
	}
}

func TestIsUUIDKey(t *testing.T) {
	tests := []struct {
		in   string
		want bool
	}{
		{"8d4a48b6-c2cc-11de-8d13-0010c6dffd0f", true},
		{conceptUUID, true},
		{"8d4a48b6-c2cc-11de-8d13-0010c6dffd0", false},
		{"8d4a48b6-c2cc-11de-8d13-0010c6dffd0g", false},
		{"123456789012345678901234567890123456", false},
		{"116128", false},
	}
	for _, tt := range tests {
		if got := isUUIDKey(tt.in); got != tt.want {
			t.Errorf("isUUIDKey(%q) = %v, want %v", tt.in, got, tt.want)
		}
	}
}
