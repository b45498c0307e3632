package stage

import (
	"context"
	"errors"
	"testing"

	"recap/internal/services"
	"recap/internal/store"
)

type fakeReader struct {
	session *store.Session
	err     error
}

func (f fakeReader) GetSession(context.Context, string) (*store.Session, error) {
	return f.session, f.err
}

func TestLoadSession(t *testing.T) {
	tests := []struct {
		name   string
		id     string
		reader fakeReader
		marker error
	}{
		{"found", "s1", fakeReader{session: &store.Session{ID: "s1"}}, nil},
		{"missing", "s1", fakeReader{}, services.ErrNotFound},
		{"db failure", "s1", fakeReader{err: errors.New("disk I/O error")}, services.ErrPersistence},
		{"blank id", "", fakeReader{}, services.ErrInput},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			session, err := LoadSession(context.Background(), tt.reader, Summarize, tt.id)
			if tt.marker == nil {
				if err != nil || session == nil || session.ID != "s1" {
					t.Fatalf("expected session, got %v %v", session, err)
				}
				return
			}
			if !errors.Is(err, tt.marker) {
				t.Fatalf("expected %v, got %v", tt.marker, err)
			}
		})
	}
}

func TestHealthConstructors(t *testing.T) {
	if h := Healthy(Ingest); !h.Ready || h.Name != Ingest {
		t.Fatalf("unexpected healthy record %+v", h)
	}
	if h := Unhealthy(Summarize, "llm api key missing"); h.Ready || h.Detail == "" {
		t.Fatalf("unexpected unhealthy record %+v", h)
	}
}
