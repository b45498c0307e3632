// Package ingest transcribes one speaker channel of a session and persists the
// normalized segments.
//
// The provider is called under the shared retry policy; permanent failures
// (configuration, bad input, cancellation) stop immediately. Segments are
// written in fixed-size batches, each in its own transaction, and a failed batch
// aborts the remainder. After a successful write the optional Observer is told
// which speaker finished so the finalization workflow can advance.
package ingest
