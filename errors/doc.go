// Package errors provides structured error types for wasm-pack.
//
// Errors are categorized by Phase (where in the load/generate/write pipeline
// the error occurred) and Kind (error category). The Error type carries the
// offending path, a detail message and a cause chain, so a failed load reads
// as an outer message followed by its underlying causes.
//
// Use the Builder for structured error construction:
//
//	err := errors.New(errors.PhaseLoad, errors.KindNotFound).
//		Path("metadata", "greet.wai").
//		Detail("file not found").
//		Build()
//
// Or use convenience constructors for common patterns:
//
//	err := errors.NotFound(errors.PhaseLoad, "atom", "greet")
//	err := errors.Write(path, "write file", cause)
//
// All errors implement the standard error interface and support errors.Is/As.
// Two errors match under errors.Is when their Phase and Kind are equal.
package errors
