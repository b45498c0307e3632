// Package transcription defines the provider boundary for speech-to-text and
// the normalization that turns any provider's native output into canonical
// transcript segments.
//
// Providers report either utterance-level segments or word-level timestamps.
// Normalize owns the fallback between the two so ingestion never inspects
// provider shapes directly.
package transcription

import (
	"context"
	"strings"
)

// DefaultWindowSeconds bounds synthesized segments built from word timestamps.
const DefaultWindowSeconds = 3.0

// Request describes one speaker channel to transcribe.
type Request struct {
	// AudioURL points at the recorded audio; providers fetch it themselves.
	AudioURL string
	// Language is an explicit BCP-47 code. Empty requests auto-detection.
	Language string
	// Utterances asks for utterance segmentation where supported.
	Utterances bool
}

// Utterance is a provider-segmented span of speech.
type Utterance struct {
	Start      float64
	End        float64
	Text       string
	Confidence *float64
}

// Word is a single timestamped token.
type Word struct {
	Text       string
	Start      float64
	End        float64
	Confidence *float64
}

// Result is a provider response before normalization.
type Result struct {
	Text       string
	Language   string
	Utterances []Utterance
	Words      []Word
}

// Provider transcribes a recorded audio resource.
type Provider interface {
	Name() string
	Transcribe(ctx context.Context, req Request) (*Result, error)
}

// Segment is the canonical {start, end, text, confidence} shape.
type Segment struct {
	Start      float64
	End        float64
	Text       string
	Confidence *float64
}

// Normalize converts a provider result into canonical segments. Utterances map
// one to one. Without utterances, consecutive words are grouped greedily and a
// new segment starts whenever adding the next word would stretch the running
// window beyond windowSeconds. A bare transcript with no timing becomes a
// single zero-length segment.
func Normalize(result *Result, windowSeconds float64) []Segment {
	if result == nil {
		return nil
	}
	if windowSeconds <= 0 {
		windowSeconds = DefaultWindowSeconds
	}

	if len(result.Utterances) > 0 {
		segments := make([]Segment, 0, len(result.Utterances))
		for _, u := range result.Utterances {
			text := strings.TrimSpace(u.Text)
			if text == "" {
				continue
			}
			segments = append(segments, Segment{
				Start:      u.Start,
				End:        u.End,
				Text:       text,
				Confidence: u.Confidence,
			})
		}
		return segments
	}

	if len(result.Words) > 0 {
		return groupWords(result.Words, windowSeconds)
	}

	if text := strings.TrimSpace(result.Text); text != "" {
		return []Segment{{Text: text}}
	}
	return nil
}

func groupWords(words []Word, windowSeconds float64) []Segment {
	var (
		segments []Segment
		current  *wordGroup
	)
	for _, w := range words {
		token := strings.TrimSpace(w.Text)
		if token == "" {
			continue
		}
		if current != nil && w.End-current.start > windowSeconds {
			segments = append(segments, current.segment())
			current = nil
		}
		if current == nil {
			current = &wordGroup{start: w.Start}
		}
		current.add(token, w)
	}
	if current != nil {
		segments = append(segments, current.segment())
	}
	return segments
}

type wordGroup struct {
	start     float64
	end       float64
	tokens    []string
	confSum   float64
	confCount int
}

func (g *wordGroup) add(token string, w Word) {
	g.tokens = append(g.tokens, token)
	if w.End > g.end {
		g.end = w.End
	}
	if w.Confidence != nil {
		g.confSum += *w.Confidence
		g.confCount++
	}
}

func (g *wordGroup) segment() Segment {
	seg := Segment{
		Start: g.start,
		End:   g.end,
		Text:  strings.Join(g.tokens, " "),
	}
	if g.confCount > 0 {
		mean := g.confSum / float64(g.confCount)
		seg.Confidence = &mean
	}
	return seg
}
