// Package config loads, normalizes, and validates recap configuration data.
//
// It supplies repository defaults, expands user paths (including tilde
// shortcuts), reads TOML files, and honours environment fallbacks for provider
// credentials such as OPENROUTER_API_KEY and RECAP_TRANSCRIPTION_API_KEY. The
// Config type centralizes every knob the daemon and CLI need so the datastore,
// transcription provider, language model, and safety settings are discovered in
// one pass.
//
// Missing provider credentials are deliberately not load errors: stages that
// need them report a configuration error at call time, which the pipeline
// treats as non-retryable.
package config
