// Package logging builds the slog loggers recap writes with.
//
// New and NewFromConfig choose between a human console handler and JSON, and
// fan output to stdout and the log file. WithContext copies the session,
// speaker, stage and request identifiers carried on a context into log
// attributes, and WarnWithContext/ErrorWithContext make sure every warning
// says what happened, what it affects and what to do next.
package logging
