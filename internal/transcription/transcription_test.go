package transcription

import (
	"math"
	"testing"
)

func ptr(v float64) *float64 { return &v }

func TestNormalizeMapsUtterancesDirectly(t *testing.T) {
	result := &Result{
		Utterances: []Utterance{
			{Start: 0, End: 1.5, Text: " hello there ", Confidence: ptr(0.9)},
			{Start: 2, End: 2.5, Text: "   "},
			{Start: 3, End: 9, Text: "let's review fractions"},
		},
		Words: []Word{{Text: "ignored", Start: 0, End: 1}},
	}
	segments := Normalize(result, 3)
	if len(segments) != 2 {
		t.Fatalf("expected 2 segments, got %d", len(segments))
	}
	if segments[0].Text != "hello there" || segments[0].Start != 0 || segments[0].End != 1.5 {
		t.Fatalf("unexpected first segment %+v", segments[0])
	}
	if segments[0].Confidence == nil || *segments[0].Confidence != 0.9 {
		t.Fatalf("expected confidence preserved, got %v", segments[0].Confidence)
	}
	if segments[1].End != 9 || segments[1].Confidence != nil {
		t.Fatalf("unexpected second segment %+v", segments[1])
	}
}

func TestNormalizeGroupsWordsIntoWindows(t *testing.T) {
	result := &Result{Words: []Word{
		{Text: "one", Start: 0.0, End: 0.5, Confidence: ptr(1.0)},
		{Text: "two", Start: 0.6, End: 1.2, Confidence: ptr(0.5)},
		{Text: "three", Start: 1.3, End: 2.9},
		{Text: "four", Start: 3.0, End: 3.4},
		{Text: "five", Start: 3.5, End: 5.0},
		{Text: "six", Start: 6.1, End: 6.5},
	}}
	segments := Normalize(result, 3)
	if len(segments) != 3 {
		t.Fatalf("expected 3 segments, got %d: %+v", len(segments), segments)
	}
	want := []struct {
		text       string
		start, end float64
	}{
		{"one two three", 0.0, 2.9},
		{"four five", 3.0, 5.0},
		{"six", 6.1, 6.5},
	}
	for i, w := range want {
		if segments[i].Text != w.text || segments[i].Start != w.start || segments[i].End != w.end {
			t.Fatalf("segment %d = %+v, want %+v", i, segments[i], w)
		}
		if segments[i].End-segments[i].Start > 3 {
			t.Fatalf("segment %d exceeds window: %+v", i, segments[i])
		}
	}
	if segments[0].Confidence == nil || math.Abs(*segments[0].Confidence-0.75) > 1e-9 {
		t.Fatalf("expected mean confidence 0.75, got %v", segments[0].Confidence)
	}
	if segments[1].Confidence != nil {
		t.Fatalf("expected nil confidence without word scores, got %v", *segments[1].Confidence)
	}
}

func TestNormalizeLongWordStartsFreshWindow(t *testing.T) {
	result := &Result{Words: []Word{
		{Text: "a", Start: 0, End: 0.2},
		{Text: "sooooo", Start: 0.3, End: 4.0},
		{Text: "b", Start: 4.1, End: 4.2},
	}}
	segments := Normalize(result, 3)
	if len(segments) != 3 {
		t.Fatalf("expected 3 segments, got %+v", segments)
	}
	for i, want := range []string{"a", "sooooo", "b"} {
		if segments[i].Text != want {
			t.Fatalf("segment %d = %q, want %q", i, segments[i].Text, want)
		}
	}
}

func TestNormalizeFallbacks(t *testing.T) {
	if got := Normalize(nil, 3); got != nil {
		t.Fatalf("expected nil for nil result, got %+v", got)
	}
	if got := Normalize(&Result{}, 3); len(got) != 0 {
		t.Fatalf("expected no segments for empty result, got %+v", got)
	}
	got := Normalize(&Result{Text: "  plain transcript "}, 0)
	if len(got) != 1 || got[0].Text != "plain transcript" {
		t.Fatalf("expected single text segment, got %+v", got)
	}
}
