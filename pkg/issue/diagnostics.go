package issue

import (
	"fmt"
	"sort"
	"strings"
)

// DiagnosticID identifies a specific diagnostic message.
type DiagnosticID string

// Diagnostic IDs for invocation and configuration.
const (
	DiagConfigUnsupportedMode DiagnosticID = "CONFIG_UNSUPPORTED_MODE"
	DiagConfigInvalid         DiagnosticID = "CONFIG_INVALID"
	DiagConfigUnreadable      DiagnosticID = "CONFIG_UNREADABLE"
)

// Diagnostic IDs for the package container.
const (
	DiagArchiveUnreadable       DiagnosticID = "ARCHIVE_UNREADABLE"
	DiagArchiveNoMembers        DiagnosticID = "ARCHIVE_NO_MEMBERS"
	DiagArchiveMemberUnreadable DiagnosticID = "ARCHIVE_MEMBER_UNREADABLE"
	DiagArchiveUnexpectedMember DiagnosticID = "ARCHIVE_UNEXPECTED_MEMBER"
)

// Diagnostic IDs for dataset parsing.
const (
	DiagParseMalformedXML      DiagnosticID = "PARSE_MALFORMED_XML"
	DiagParseUnexpectedRoot    DiagnosticID = "PARSE_UNEXPECTED_ROOT"
	DiagParseUnknownTable      DiagnosticID = "PARSE_UNKNOWN_TABLE"
	DiagParseNestedElement     DiagnosticID = "PARSE_NESTED_ELEMENT"
	DiagParseUnexpectedText    DiagnosticID = "PARSE_UNEXPECTED_TEXT"
	DiagParseMissingAttribute  DiagnosticID = "PARSE_MISSING_ATTRIBUTE"
	DiagParseInvalidIdentifier DiagnosticID = "PARSE_INVALID_IDENTIFIER"
	DiagParseInvalidValue      DiagnosticID = "PARSE_INVALID_VALUE"
)

// Diagnostic IDs for duplicate and ambiguous declarations.
const (
	DiagDuplicateEntity        DiagnosticID = "DUPLICATE_ENTITY"
	DiagDuplicatePreferredName DiagnosticID = "DUPLICATE_PREFERRED_NAME"
	DiagDuplicateNameType      DiagnosticID = "DUPLICATE_NAME_TYPE"
	DiagNoPreferredName        DiagnosticID = "NO_PREFERRED_NAME"
	DiagDuplicateDescription   DiagnosticID = "DUPLICATE_DESCRIPTION"
	DiagNameWithoutLocale      DiagnosticID = "NAME_WITHOUT_LOCALE"
	DiagDuplicateSourceName    DiagnosticID = "DUPLICATE_SOURCE_NAME"
)

// Diagnostic IDs for cross-reference integrity.
const (
	DiagReferenceUnresolved DiagnosticID = "REFERENCE_UNRESOLVED"
	DiagSetWithoutMembers   DiagnosticID = "SET_WITHOUT_MEMBERS"
	DiagMembersOnNonSet     DiagnosticID = "MEMBERS_ON_NON_SET"
	DiagGraphUnresolved     DiagnosticID = "GRAPH_UNRESOLVED"
)

// Diagnostic IDs for output persistence.
const (
	DiagWriteFailed        DiagnosticID = "WRITE_FAILED"
	DiagExportInvariant    DiagnosticID = "EXPORT_INVARIANT"
	DiagExportInvalidInput DiagnosticID = "EXPORT_INVALID_INPUT"
)

// DiagnosticTemplate defines the structure for a diagnostic message.
type DiagnosticTemplate struct {
	ID       DiagnosticID
	Kind     Kind
	Template string
}

// diagnosticTemplates maps diagnostic IDs to their templates.
// Templates use {placeholder} syntax for variable substitution.
var diagnosticTemplates = map[DiagnosticID]DiagnosticTemplate{
	DiagConfigUnsupportedMode: {
		Kind:     KindConfiguration,
		Template: "unsupported schema mode '{mode}' (supported: uuid, legacy)",
	},
	DiagConfigInvalid: {
		Kind:     KindConfiguration,
		Template: "invalid configuration: {error}",
	},
	DiagConfigUnreadable: {
		Kind:     KindConfiguration,
		Template: "cannot read configuration file '{path}'",
	},

	DiagArchiveUnreadable: {
		Kind:     KindArchive,
		Template: "cannot open module package '{path}'",
	},
	DiagArchiveNoMembers: {
		Kind:     KindArchive,
		Template: "module package '{path}' contains no concept dictionary members",
	},
	DiagArchiveMemberUnreadable: {
		Kind:     KindArchive,
		Template: "cannot read member '{member}'",
	},
	DiagArchiveUnexpectedMember: {
		Kind:     KindArchive,
		Template: "unexpected dictionary member '{member}': {reason}",
	},

	DiagParseMalformedXML: {
		Kind:     KindParse,
		Template: "malformed dataset XML",
	},
	DiagParseUnexpectedRoot: {
		Kind:     KindParse,
		Template: "unexpected root element '{element}', want 'dataset'",
	},
	DiagParseUnknownTable: {
		Kind:     KindParse,
		Template: "unknown dataset table '{entity}'",
	},
	DiagParseNestedElement: {
		Kind:     KindParse,
		Template: "unexpected element '{element}' inside {entity} row",
	},
	DiagParseUnexpectedText: {
		Kind:     KindParse,
		Template: "unexpected character data in {entity}",
	},
	DiagParseMissingAttribute: {
		Kind:     KindParse,
		Template: "{entity} '{id}' is missing attribute '{field}'",
	},
	DiagParseInvalidIdentifier: {
		Kind:     KindParse,
		Template: "{entity} '{id}' attribute '{field}' value '{value}' is not a valid {expected}",
	},
	DiagParseInvalidValue: {
		Kind:     KindParse,
		Template: "{entity} '{id}' attribute '{field}' has invalid value '{value}'",
	},

	DiagDuplicateEntity: {
		Kind:     KindDuplicateEntity,
		Template: "{entity} '{id}' declared twice with conflicting '{field}' ('{first}' vs '{second}')",
	},
	DiagDuplicatePreferredName: {
		Kind:     KindDuplicateEntity,
		Template: "concept '{id}' has more than one preferred name in locale '{locale}'",
	},
	DiagDuplicateNameType: {
		Kind:     KindDuplicateEntity,
		Template: "concept '{id}' has more than one {type} name in locale '{locale}'",
	},
	DiagNoPreferredName: {
		Kind:     KindDuplicateEntity,
		Template: "concept '{id}' has no preferred name in locale '{locale}'",
	},
	DiagDuplicateDescription: {
		Kind:     KindDuplicateEntity,
		Template: "concept '{id}' has more than one description in locale '{locale}'",
	},
	DiagNameWithoutLocale: {
		Kind:     KindDuplicateEntity,
		Template: "{entity} '{id}' of concept '{target}' has no locale",
	},
	DiagDuplicateSourceName: {
		Kind:     KindDuplicateEntity,
		Template: "concept sources '{id}' and '{target}' share the name '{name}'",
	},

	DiagReferenceUnresolved: {
		Kind:     KindReference,
		Template: "{entity} '{id}' field '{field}' references missing {targetType} '{target}'",
	},
	DiagSetWithoutMembers: {
		Kind:     KindReference,
		Template: "concept '{id}' is a set but has no members",
	},
	DiagMembersOnNonSet: {
		Kind:     KindReference,
		Template: "concept '{id}' is not a set but has {count} member(s)",
	},
	DiagGraphUnresolved: {
		Kind:     KindReference,
		Template: "concept graph has not been resolved",
	},

	DiagWriteFailed: {
		Kind:     KindWrite,
		Template: "cannot write '{path}'",
	},
	DiagExportInvariant: {
		Kind:     KindWrite,
		Template: "FHIR export invariant '{expression}' failed for '{path}'",
	},
	DiagExportInvalidInput: {
		Kind:     KindWrite,
		Template: "FHIR export: {error}",
	},
}

// FormatDiagnostic formats a diagnostic message using the template and parameters.
func FormatDiagnostic(id DiagnosticID, params map[string]any) string {
	tmpl, ok := diagnosticTemplates[id]
	if !ok {
		return string(id)
	}
	return formatTemplate(tmpl.Template, params)
}

// GetDiagnosticTemplate returns the template for a diagnostic ID.
func GetDiagnosticTemplate(id DiagnosticID) (DiagnosticTemplate, bool) {
	tmpl, ok := diagnosticTemplates[id]
	if ok {
		tmpl.ID = id
	}
	return tmpl, ok
}

// formatTemplate replaces {placeholder} with values from params. Keys are
// applied in sorted order so substituted values never depend on map order.
func formatTemplate(template string, params map[string]any) string {
	keys := make([]string, 0, len(params))
	for key := range params {
		keys = append(keys, key)
	}
	sort.Strings(keys)

	pairs := make([]string, 0, 2*len(keys))
	for _, key := range keys {
		pairs = append(pairs, "{"+key+"}", fmt.Sprint(params[key]))
	}
	return strings.NewReplacer(pairs...).Replace(template)
}
