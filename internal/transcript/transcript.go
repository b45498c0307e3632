// Package transcript merges a session's per-speaker segments into one
// chronological, human-readable transcript.
package transcript

import (
	"context"
	"fmt"
	"math"
	"regexp"
	"strings"

	"recap/internal/services"
	"recap/internal/stage"
	"recap/internal/store"
)

// SegmentLister returns a session's segments ordered by start time.
type SegmentLister interface {
	ListSegments(ctx context.Context, sessionID string) ([]store.Segment, error)
}

// Aggregate returns the formatted transcript for sessionID, or an empty string
// when the session has no segments.
func Aggregate(ctx context.Context, lister SegmentLister, sessionID string) (string, error) {
	segments, err := lister.ListSegments(ctx, sessionID)
	if err != nil {
		return "", services.Wrap(services.ErrPersistence, stage.Aggregate, "list segments", sessionID, err)
	}
	return Format(segments), nil
}

// Format renders one line per segment as "[m:ss] (speaker <id>): <text>",
// joined by newlines, in the order given. Minutes are not capped.
func Format(segments []store.Segment) string {
	if len(segments) == 0 {
		return ""
	}
	var b strings.Builder
	for idx, seg := range segments {
		if idx > 0 {
			b.WriteByte('\n')
		}
		fmt.Fprintf(&b, "[%s] (speaker %s): %s", Timestamp(seg.StartTime), seg.SpeakerID, seg.Text)
	}
	return b.String()
}

// Timestamp formats an offset in seconds as minutes and zero-padded seconds.
func Timestamp(seconds float64) string {
	if seconds < 0 || math.IsNaN(seconds) {
		seconds = 0
	}
	total := int(seconds)
	return fmt.Sprintf("%d:%02d", total/60, total%60)
}

var linePrefix = regexp.MustCompile(`(?m)^\[\d+:\d{2}\] \(speaker [^)]*\): `)

// Spoken strips the per-line timestamp and speaker prefix Format adds, leaving
// only what was said.
func Spoken(text string) string {
	return linePrefix.ReplaceAllString(text, "")
}
