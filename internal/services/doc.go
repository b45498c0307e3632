// Package services defines shared utilities consumed by the pipeline stages
// and external integrations.
//
// Key responsibilities:
//   - Context helpers that stamp session IDs, speaker IDs, stage names, and
//     correlation identifiers for logging and tracing.
//   - Structured error markers plus the Wrap helper that classify failures as
//     transient, permanent input, persistence, or configuration problems so
//     callers can decide whether to retry, skip, or surface them.
//
// Provider adapters live in subpackages (llm, remoteasr, whisperx). Use these
// helpers when wiring new stage logic so error handling and observability stay
// uniform across the pipeline.
package services
