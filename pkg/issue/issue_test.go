package issue

import (
	"errors"
	"fmt"
	"testing"
)

func TestNewPopulatesFields(t *testing.T) {
	err := New(DiagReferenceUnresolved, map[string]any{
		"entity":     "concept",
		"id":         "c-1",
		"field":      "datatype",
		"targetType": "concept datatype",
		"target":     "dt-9",
	})

	if err.Kind != KindReference {
		t.Errorf("Kind = %v, want %v", err.Kind, KindReference)
	}
	if err.Entity != "concept" {
		t.Errorf("Entity = %q, want %q", err.Entity, "concept")
	}
	if err.Identifier != "c-1" {
		t.Errorf("Identifier = %q, want %q", err.Identifier, "c-1")
	}
	if err.Field != "datatype" {
		t.Errorf("Field = %q, want %q", err.Field, "datatype")
	}
	if err.Target != "dt-9" {
		t.Errorf("Target = %q, want %q", err.Target, "dt-9")
	}
	want := "concept 'c-1' field 'datatype' references missing concept datatype 'dt-9'"
	if err.Message != want {
		t.Errorf("Message = %q, want %q", err.Message, want)
	}
}

func TestErrorIsMatchesKindSentinel(t *testing.T) {
	tests := []struct {
		id       DiagnosticID
		sentinel error
	}{
		{DiagConfigUnsupportedMode, ErrConfiguration},
		{DiagArchiveNoMembers, ErrArchive},
		{DiagArchiveUnexpectedMember, ErrArchive},
		{DiagParseMissingAttribute, ErrParse},
		{DiagDuplicateEntity, ErrDuplicateEntity},
		{DiagSetWithoutMembers, ErrReference},
		{DiagWriteFailed, ErrWrite},
	}

	for _, tt := range tests {
		t.Run(string(tt.id), func(t *testing.T) {
			err := fmt.Errorf("outer: %w", New(tt.id, nil))
			if !errors.Is(err, tt.sentinel) {
				t.Errorf("errors.Is(%v, %v) = false, want true", err, tt.sentinel)
			}

			for _, other := range []error{ErrConfiguration, ErrArchive, ErrParse, ErrDuplicateEntity, ErrReference, ErrWrite} {
				if other == tt.sentinel {
					continue
				}
				if errors.Is(err, other) {
					t.Errorf("errors.Is(%v, %v) = true, want false", err, other)
				}
			}
		})
	}
}

func TestErrorMessageIncludesLocation(t *testing.T) {
	cause := errors.New("unexpected EOF")
	err := New(DiagParseMalformedXML, nil).At("Reference_Application_Concepts-20190531.xml", 42).Wrap(cause)

	want := "parse error: malformed dataset XML (Reference_Application_Concepts-20190531.xml:42): unexpected EOF"
	if err.Error() != want {
		t.Errorf("Error() = %q, want %q", err.Error(), want)
	}
	if !errors.Is(err, cause) {
		t.Error("wrapped cause not reachable through errors.Is")
	}
}

func TestKindOf(t *testing.T) {
	kind, ok := KindOf(fmt.Errorf("wrapped: %w", New(DiagDuplicateEntity, nil)))
	if !ok {
		t.Fatal("KindOf() ok = false for an issue error")
	}
	if kind != KindDuplicateEntity {
		t.Errorf("KindOf() = %v, want %v", kind, KindDuplicateEntity)
	}

	if _, ok := KindOf(errors.New("plain")); ok {
		t.Error("KindOf() ok = true for a plain error")
	}
}

func TestFormatDiagnosticUnknownID(t *testing.T) {
	if got := FormatDiagnostic("NOT_A_DIAGNOSTIC", nil); got != "NOT_A_DIAGNOSTIC" {
		t.Errorf("FormatDiagnostic() = %q, want the id", got)
	}
}

func TestFormatTemplateDoesNotResubstitute(t *testing.T) {
	msg := FormatDiagnostic(DiagParseInvalidValue, map[string]any{
		"entity": "concept",
		"id":     "{field}",
		"field":  "is_set",
		"value":  "maybe",
	})
	want := "concept '{field}' attribute 'is_set' has invalid value 'maybe'"
	if msg != want {
		t.Errorf("FormatDiagnostic() = %q, want %q", msg, want)
	}
}

func TestUnexpectedMemberMessage(t *testing.T) {
	err := New(DiagArchiveUnexpectedMember, map[string]any{
		"member": "Reference_Application_Drugs.xml",
		"reason": "no version",
	})
	want := "unexpected dictionary member 'Reference_Application_Drugs.xml': no version"
	if err.Message != want {
		t.Errorf("Message = %q, want %q", err.Message, want)
	}
}
