package stage

import (
	"context"

	"recap/internal/services"
	"recap/internal/store"
)

// SessionReader is the lookup every stage needs before doing work.
type SessionReader interface {
	GetSession(ctx context.Context, id string) (*store.Session, error)
}

// LoadSession fetches a session, mapping absence to services.ErrNotFound and
// datastore failures to services.ErrPersistence.
func LoadSession(ctx context.Context, reader SessionReader, stageName, sessionID string) (*store.Session, error) {
	if sessionID == "" {
		return nil, services.Wrap(services.ErrInput, stageName, "load session", "session id required", nil)
	}
	session, err := reader.GetSession(ctx, sessionID)
	if err != nil {
		return nil, services.Wrap(services.ErrPersistence, stageName, "load session", sessionID, err)
	}
	if session == nil {
		return nil, services.Wrap(services.ErrNotFound, stageName, "load session", "session "+sessionID, nil)
	}
	return session, nil
}
