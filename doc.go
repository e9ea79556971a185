// Package rmdiniz converts the concept dictionary of a Reference Metadata
// module package (.omod) into the Initializer per-domain CSV layout.
//
// # Quick Start
//
//	import (
//	    rmdiniz "github.com/jsibley/convert-rmd-to-iniz"
//	    "github.com/jsibley/convert-rmd-to-iniz/engine"
//	)
//
//	conv := engine.New(rmdiniz.WithLegacy(false), rmdiniz.WithLogger(log))
//	result, err := conv.Convert(ctx, "referencemetadata-2.10.0.omod", "out")
//	if err != nil {
//	    log.Fatal("conversion failed", zap.Error(err))
//	}
//	fmt.Println(result.Files)
//
// # Pipeline
//
// A run goes strictly left to right and writes nothing unless every stage
// before the writer succeeds:
//
//   - archive: open the container and select dictionary members
//   - schema: pick the uuid or the legacy (pre 2.x) decoders
//   - parser: stream dataset rows into typed records
//   - graph: index entities, folding identical duplicates
//   - resolve: bind references and check set and naming invariants
//   - serialize: render Initializer domain tables as CSV, and optionally a
//     FHIR R4 CodeSystem (package terminology) from the same graph
//   - writer: persist files atomically under <out>/configuration
//
// # Errors
//
// Every failure is an *issue.Error whose Kind matches one of the sentinels
// in pkg/issue (ErrConfiguration, ErrArchive, ErrParse, ErrDuplicateEntity,
// ErrReference, ErrWrite), so callers can branch with errors.Is.
package rmdiniz
