// Package daemon runs the long-lived recap process.
//
// It holds a flock-based single-instance lock, serves the trigger API and
// schedules the sweeper that resumes sessions stuck between finalization and
// notification. Stage logic lives in the stage packages; the daemon only owns
// startup, shutdown and scheduling.
package daemon
