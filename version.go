package rmdiniz

// ToolVersion is the converter release.
const ToolVersion = "0.3.0"

// Output defaults.
const (
	// DefaultBasename is the file name, without extension, of every domain
	// file.
	DefaultBasename = "reference_application"

	// DefaultFHIRURL is the canonical URL of the exported CodeSystem.
	DefaultFHIRURL = "http://openmrs.org/fhir/CodeSystem/reference-application"

	// ConfigurationDir is created under the output directory and holds the
	// Initializer domains.
	ConfigurationDir = "configuration"
)

// UserAgent identifies the tool in logs and exported resources.
func UserAgent() string {
	return "rmd2iniz/" + ToolVersion
}
