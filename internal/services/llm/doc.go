// Package llm provides language-model clients that turn a system instruction
// and a transcript into free text.
//
// Two providers implement Generator:
//   - Client: OpenRouter-compatible chat completions over HTTP.
//   - Gemini: Google's Gemini API through google.golang.org/genai.
//
// # Errors
//
// Each Generate call is a single attempt. Failures carry services markers:
// missing credentials are ErrConfiguration (never retried), HTTP 408/429/5xx,
// timeouts, and empty completions are ErrTransient, and other rejections are
// ErrExternal. Rate-limit responses expose their Retry-After hint so the
// caller's retry policy can honour it.
//
// # Entry Points
//
// New: construct the configured provider from config.LLM.
// Generator.Generate: send a Prompt, receive the model's text.
package llm
