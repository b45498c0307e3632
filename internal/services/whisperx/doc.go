// Package whisperx runs the WhisperX CLI (via uvx) as a self-hosted
// transcription provider.
//
// WhisperX loads audio through ffmpeg, which reads remote URLs directly, so
// recordings are never downloaded by this package. Sentence-level segments
// from the JSON output are reported as utterances; per-word scores become
// segment confidence.
//
// Configuration options (model, CUDA, work directory) are passed via Config.
package whisperx
