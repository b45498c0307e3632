// Package preflight provides readiness checks for the filesystem, database
// and external providers recap depends on.
//
// The daemon runs RunAll at startup and logs every failed check; "recap
// doctor" prints the same results as a table. Checks are gated by
// configuration: the WhisperX binaries are only required when the local
// provider is selected, and Slack is only probed when the mirror is enabled.
package preflight
