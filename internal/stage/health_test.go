package stage

import (
	"context"
	"testing"
)

type fixedHealth Health

func (f fixedHealth) HealthCheck(context.Context) Health { return Health(f) }

func TestCollect(t *testing.T) {
	got := Collect(context.Background(),
		fixedHealth(Healthy(Ingest)),
		nil,
		fixedHealth(Unhealthy(Summarize, "language model unavailable")),
	)
	if len(got) != 2 {
		t.Fatalf("expected 2 entries, got %d", len(got))
	}
	if !got[Ingest].Ready {
		t.Fatal("expected ingest ready")
	}
	if got[Summarize].Ready || got[Summarize].Detail != "language model unavailable" {
		t.Fatalf("unexpected summarize health %+v", got[Summarize])
	}
}
