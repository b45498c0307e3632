// Package api exposes the session pipeline over HTTP.
//
// The router is built on gin. Every request gets an X-Request-ID that is
// threaded through the context into stage logs as correlation_id. When a
// token is configured, all routes except /healthz require
// "Authorization: Bearer <token>".
//
// Wire types use snake_case JSON tags and RFC3339 timestamps. Errors are
// returned as {"error": "...", "kind": "..."} with the status derived from the
// error marker: not_found 404, input 422, not ready 409, configuration 503,
// external and transient 502, anything else 500.
package api
