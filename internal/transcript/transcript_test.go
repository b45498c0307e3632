package transcript_test

import (
	"context"
	"errors"
	"strings"
	"testing"

	"recap/internal/services"
	"recap/internal/store"
	"recap/internal/testsupport"
	"recap/internal/transcript"
)

func TestAggregateInterleavesSpeakersByStartTime(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	st := testsupport.MustOpenStore(t, cfg)
	testsupport.NewSession(t, st, store.Session{ID: "s1", Kind: store.KindTrial, TutorID: "t1", LearnerID: "l1"})

	testsupport.AddSegments(t, st,
		store.Segment{SessionID: "s1", SpeakerID: "t1", StartTime: 0, EndTime: 4, Text: "Welcome, let's start."},
		store.Segment{SessionID: "s1", SpeakerID: "t1", StartTime: 12.5, EndTime: 15, Text: "Good question."},
	)
	testsupport.AddSegments(t, st,
		store.Segment{SessionID: "s1", SpeakerID: "l1", StartTime: 5.2, EndTime: 9, Text: "Can you explain fractions?"},
	)

	got, err := transcript.Aggregate(context.Background(), st, "s1")
	if err != nil {
		t.Fatalf("Aggregate: %v", err)
	}
	want := strings.Join([]string{
		"[0:00] (speaker t1): Welcome, let's start.",
		"[0:05] (speaker l1): Can you explain fractions?",
		"[0:12] (speaker t1): Good question.",
	}, "\n")
	if got != want {
		t.Fatalf("unexpected transcript:\n%s\nwant:\n%s", got, want)
	}
}

func TestAggregateEmptySession(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	st := testsupport.MustOpenStore(t, cfg)

	got, err := transcript.Aggregate(context.Background(), st, "missing")
	if err != nil {
		t.Fatalf("Aggregate: %v", err)
	}
	if got != "" {
		t.Fatalf("expected empty transcript, got %q", got)
	}
}

type brokenLister struct{}

func (brokenLister) ListSegments(context.Context, string) ([]store.Segment, error) {
	return nil, errors.New("no such table: segments")
}

func TestAggregateWrapsStoreFailure(t *testing.T) {
	_, err := transcript.Aggregate(context.Background(), brokenLister{}, "s1")
	if !errors.Is(err, services.ErrPersistence) {
		t.Fatalf("expected persistence error, got %v", err)
	}
}

func TestFormatLineCountMatchesSegments(t *testing.T) {
	segments := make([]store.Segment, 0, 5)
	for i := range 5 {
		segments = append(segments, store.Segment{SpeakerID: "a", StartTime: float64(i * 30), Text: "x"})
	}
	lines := strings.Split(transcript.Format(segments), "\n")
	if len(lines) != 5 {
		t.Fatalf("expected 5 lines, got %d", len(lines))
	}
}

func TestTimestamp(t *testing.T) {
	tests := []struct {
		in   float64
		want string
	}{
		{0, "0:00"},
		{5.9, "0:05"},
		{65, "1:05"},
		{4500, "75:00"},
		{-3, "0:00"},
	}
	for _, tt := range tests {
		if got := transcript.Timestamp(tt.in); got != tt.want {
			t.Fatalf("Timestamp(%v) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestSpokenStripsLinePrefixes(t *testing.T) {
	text := transcript.Format([]store.Segment{
		{SpeakerID: "t1", StartTime: 0, Text: "hi"},
		{SpeakerID: "123456789", StartTime: 75, Text: "see you (later): bye"},
	})
	want := "hi\nsee you (later): bye"
	if got := transcript.Spoken(text); got != want {
		t.Fatalf("Spoken = %q, want %q", got, want)
	}
}
