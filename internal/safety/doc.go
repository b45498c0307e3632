// Package safety scans an aggregated session transcript for policy-relevant
// patterns, persists severity-tagged flags, and escalates critical findings to
// operators.
//
// Detectors are independent and stateless; each returns at most one Finding.
// The Analyzer fails open: any error or panic during a pass is logged and the
// pass produces no further flags, so analysis never blocks summary delivery.
package safety
