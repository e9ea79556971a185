// Package terminology exports a resolved concept dictionary as a FHIR R4
// CodeSystem.
//
// The package provides:
//   - Render: builds the r4.CodeSystem, one concept per dictionary concept
//   - Index: a flattened code lookup over a CodeSystem
//   - Exporter: renders, checks the FHIRPath invariants and returns the file
//
// Example usage:
//
//	exp := terminology.NewExporter(log)
//	file, err := exp.Export(ctx, g, "reference_application", terminology.Options{
//		URL: "http://openmrs.org/fhir/CodeSystem/reference-application",
//	})
package terminology
