// Package workflow drives a session through the finalization state machine:
//
//	collecting -> ready_to_aggregate -> aggregated -> analyzed -> summarized -> notified
//
// The Manager owns every stage (ingest, safety, summary, notifications) and is
// the single place that advances sessions.state. A session leaves collecting
// once every expected speaker has been ingested or an explicit finalize signal
// arrives; Run refuses sessions still collecting. Within Run the safety pass
// and summary generation consume the same transcript concurrently. Safety
// fails open, while a summary failure stops the run at analyzed so a later
// Run or Sweep can retry it. Every transition is a compare-and-set on the
// current state, so concurrent runs for one session cannot move it backwards.
package workflow
