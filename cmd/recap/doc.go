// Command recap runs the post-session transcript pipeline.
//
// "recap serve" starts the daemon (trigger API plus sweeper). The remaining
// commands open the configured store directly and run a single stage or the
// whole pipeline in-process, which is useful for backfills and debugging.
// Every read command accepts --json for machine-readable output.
package main
