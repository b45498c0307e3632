// Package remoteasr talks to a hosted speech-to-text API that fetches audio
// from a URL itself (Deepgram-compatible request and response shapes).
//
// The client makes exactly one HTTP attempt per call and classifies failures
// with the services error markers; retry policy belongs to the caller.
package remoteasr
