package testsupport

import (
	"context"
	"testing"

	"recap/internal/config"
	"recap/internal/store"
)

// MustOpenStore opens a store.Store for tests and registers cleanup.
func MustOpenStore(t testing.TB, cfg *config.Config) *store.Store {
	t.Helper()

	st, err := store.Open(cfg)
	if err != nil {
		t.Fatalf("store.Open: %v", err)
	}
	t.Cleanup(func() {
		st.Close()
	})
	return st
}

// NewSession upserts a session for tests using the provided store.
func NewSession(t testing.TB, st *store.Store, session store.Session) *store.Session {
	t.Helper()

	created, err := st.UpsertSession(context.Background(), session)
	if err != nil {
		t.Fatalf("store.UpsertSession: %v", err)
	}
	return created
}

// AddSegments inserts segments for tests.
func AddSegments(t testing.TB, st *store.Store, segments ...store.Segment) {
	t.Helper()

	if err := st.InsertSegments(context.Background(), segments); err != nil {
		t.Fatalf("store.InsertSegments: %v", err)
	}
}

// AddAccounts inserts accounts with the given role.
func AddAccounts(t testing.TB, st *store.Store, role store.Role, ids ...string) {
	t.Helper()

	for _, id := range ids {
		if err := st.UpsertAccount(context.Background(), store.Account{ID: id, Role: role}); err != nil {
			t.Fatalf("store.UpsertAccount: %v", err)
		}
	}
}
