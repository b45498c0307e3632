// Package stage holds the small contracts every pipeline stage shares: stage
// names, health reporting, and session lookup with consistent error markers.
package stage
