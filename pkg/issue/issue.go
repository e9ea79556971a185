// Package issue defines the conversion failure taxonomy.
//
// Every failure that aborts a conversion is an *Error carrying its Kind and
// enough context (entity type, identifier, field, member and line) to locate
// the offending source record. Kinds are matched with errors.Is against the
// package sentinels:
//
//	if errors.Is(err, issue.ErrReference) {
//	    ...
//	}
package issue

import (
	"errors"
	"fmt"
	"strings"
)

// Kind classifies a conversion failure.
type Kind string

// Kind constants, one per failure class.
const (
	KindConfiguration   Kind = "configuration"
	KindArchive         Kind = "archive"
	KindParse           Kind = "parse"
	KindDuplicateEntity Kind = "duplicate-entity"
	KindReference       Kind = "reference"
	KindWrite           Kind = "write"
)

// Sentinels for errors.Is matching. An *Error matches the sentinel of its Kind.
var (
	ErrConfiguration   = errors.New("configuration error")
	ErrArchive         = errors.New("archive error")
	ErrParse           = errors.New("parse error")
	ErrDuplicateEntity = errors.New("duplicate entity error")
	ErrReference       = errors.New("reference error")
	ErrWrite           = errors.New("write error")
)

var kindSentinels = map[Kind]error{
	KindConfiguration:   ErrConfiguration,
	KindArchive:         ErrArchive,
	KindParse:           ErrParse,
	KindDuplicateEntity: ErrDuplicateEntity,
	KindReference:       ErrReference,
	KindWrite:           ErrWrite,
}

// Sentinel returns the errors.Is target for the kind.
func (k Kind) Sentinel() error {
	return kindSentinels[k]
}

// String returns the kind name.
func (k Kind) String() string {
	return string(k)
}

// Error is a located conversion failure.
type Error struct {
	// Kind is the failure class.
	Kind Kind

	// ID identifies the diagnostic template used for Message.
	ID DiagnosticID

	// Message is the rendered, human-readable diagnostic.
	Message string

	// Entity is the entity type or dataset table involved (e.g. "concept").
	Entity string

	// Identifier is the raw or resolved identifier of the offending record.
	Identifier string

	// Field names the attribute or relationship at fault.
	Field string

	// Target is the missing or conflicting target identifier, if any.
	Target string

	// Member is the archive member the record came from.
	Member string

	// Line is the source line in Member, 0 when unknown.
	Line int

	// Err is the underlying cause.
	Err error
}

// Error implements error.
func (e *Error) Error() string {
	var b strings.Builder
	b.WriteString(string(e.Kind))
	b.WriteString(" error: ")
	b.WriteString(e.Message)
	if e.Member != "" {
		b.WriteString(" (")
		b.WriteString(e.Member)
		if e.Line > 0 {
			fmt.Fprintf(&b, ":%d", e.Line)
		}
		b.WriteString(")")
	}
	if e.Err != nil {
		b.WriteString(": ")
		b.WriteString(e.Err.Error())
	}
	return b.String()
}

// Unwrap returns the underlying cause.
func (e *Error) Unwrap() error {
	return e.Err
}

// Is reports whether target is the sentinel of e's Kind.
func (e *Error) Is(target error) bool {
	s := e.Kind.Sentinel()
	return s != nil && target == s
}

// At returns a copy of e located at member and line.
func (e *Error) At(member string, line int) *Error {
	c := *e
	c.Member = member
	c.Line = line
	return &c
}

// Wrap returns a copy of e with cause set to err.
func (e *Error) Wrap(err error) *Error {
	c := *e
	c.Err = err
	return &c
}

// New builds an Error from a diagnostic template. Params fill the template
// placeholders; the well-known keys "entity", "id", "field" and "target"
// also populate the corresponding Error fields.
func New(id DiagnosticID, params map[string]any) *Error {
	tmpl, ok := GetDiagnosticTemplate(id)
	kind := KindParse
	if ok {
		kind = tmpl.Kind
	}
	e := &Error{
		Kind:    kind,
		ID:      id,
		Message: FormatDiagnostic(id, params),
	}
	if v, ok := params["entity"]; ok {
		e.Entity = fmt.Sprint(v)
	}
	if v, ok := params["id"]; ok {
		e.Identifier = fmt.Sprint(v)
	}
	if v, ok := params["field"]; ok {
		e.Field = fmt.Sprint(v)
	}
	if v, ok := params["target"]; ok {
		e.Target = fmt.Sprint(v)
	}
	return e
}

// KindOf returns the Kind of the first *Error in err's chain.
func KindOf(err error) (Kind, bool) {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind, true
	}
	return "", false
}
