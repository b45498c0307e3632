package safety_test

import (
	"context"
	"errors"
	"strings"
	"testing"

	"recap/internal/safety"
	"recap/internal/store"
	"recap/internal/testsupport"
)

const cleanTranscript = "let's review this problem and practice one more example so you understand it"

func longClean() string {
	return strings.Repeat(cleanTranscript+" ", 12)
}

func newAnalyzer(t *testing.T, opts ...testsupport.ConfigOption) (*safety.Analyzer, *store.Store) {
	t.Helper()
	cfg := testsupport.NewConfig(t, opts...)
	st := testsupport.MustOpenStore(t, cfg)
	testsupport.NewSession(t, st, store.Session{ID: "s1", Kind: store.KindRecurring, RecurringID: "r1", TutorID: "t1", LearnerID: "l1"})
	return safety.New(cfg, st, nil), st
}

func TestAnalyzeEscalatesCriticalFlagsToOperators(t *testing.T) {
	a, st := newAnalyzer(t)
	testsupport.AddAccounts(t, st, store.RoleOperator, "op1", "op2")
	testsupport.AddAccounts(t, st, store.RoleAdmin, "admin1")
	testsupport.AddAccounts(t, st, store.RoleTutor, "t1")

	report := a.Analyze(context.Background(), safety.Input{SessionID: "s1", Transcript: longClean() + " can we pay outside the app?"})
	if report.Failed {
		t.Fatal("unexpected failed pass")
	}
	if len(report.Flags) != 1 || report.Flags[0].Type != store.FlagPaymentBypass || report.Flags[0].ID == 0 {
		t.Fatalf("unexpected flags %+v", report.Flags)
	}
	if report.Escalations != 3 {
		t.Fatalf("expected 3 escalations, got %d", report.Escalations)
	}

	notes, err := st.ListNotifications(context.Background(), "s1")
	if err != nil {
		t.Fatalf("ListNotifications: %v", err)
	}
	recipients := map[string]bool{}
	for _, n := range notes {
		if n.Type != safety.NotificationTypeEscalation {
			t.Fatalf("unexpected notification type %q", n.Type)
		}
		recipients[n.RecipientID] = true
		if n.Metadata["session_id"] != "s1" {
			t.Fatalf("metadata missing session id: %+v", n.Metadata)
		}
		if count, ok := n.Metadata["flag_count"].(float64); !ok || count != 1 {
			t.Fatalf("metadata flag_count = %v", n.Metadata["flag_count"])
		}
		if flags, ok := n.Metadata["flags"].([]any); !ok || len(flags) != 1 {
			t.Fatalf("metadata flags = %v", n.Metadata["flags"])
		}
	}
	if len(recipients) != 3 || recipients["t1"] {
		t.Fatalf("unexpected recipients %v", recipients)
	}
}

func TestAnalyzeWithoutCriticalFlagsDoesNotEscalate(t *testing.T) {
	a, st := newAnalyzer(t)
	testsupport.AddAccounts(t, st, store.RoleOperator, "op1")

	report := a.Analyze(context.Background(), safety.Input{SessionID: "s1", Transcript: "hi"})
	if len(report.Flags) != 1 || report.Flags[0].Type != store.FlagSessionQuality {
		t.Fatalf("expected one quality flag, got %+v", report.Flags)
	}
	if report.Escalations != 0 {
		t.Fatalf("expected no escalations, got %d", report.Escalations)
	}
	notes, _ := st.ListNotifications(context.Background(), "s1")
	if len(notes) != 0 {
		t.Fatalf("expected no notifications, got %d", len(notes))
	}
}

func TestAnalyzeRerunBehaviour(t *testing.T) {
	transcript := longClean() + " bypass payment please"

	t.Run("duplicates by default", func(t *testing.T) {
		a, st := newAnalyzer(t)
		a.Analyze(context.Background(), safety.Input{SessionID: "s1", Transcript: transcript})
		a.Analyze(context.Background(), safety.Input{SessionID: "s1", Transcript: transcript})
		flags, _ := st.ListFlags(context.Background(), "s1")
		if len(flags) != 2 {
			t.Fatalf("expected duplicate flags, got %d", len(flags))
		}
	})

	t.Run("dedupe unresolved", func(t *testing.T) {
		a, st := newAnalyzer(t, testsupport.WithDedupeUnresolved(true))
		testsupport.AddAccounts(t, st, store.RoleOperator, "op1")
		a.Analyze(context.Background(), safety.Input{SessionID: "s1", Transcript: transcript})
		report := a.Analyze(context.Background(), safety.Input{SessionID: "s1", Transcript: transcript})
		if report.Suppressed != 1 || len(report.Flags) != 0 || report.Escalations != 0 {
			t.Fatalf("unexpected second pass %+v", report)
		}
		flags, _ := st.ListFlags(context.Background(), "s1")
		if len(flags) != 1 {
			t.Fatalf("expected a single flag, got %d", len(flags))
		}
	})
}

type panickingDetector struct{}

func (panickingDetector) Name() string { return "boom" }

func (panickingDetector) Detect(safety.Input) *safety.Finding { panic("detector bug") }

func TestAnalyzeFailsOpenOnPanic(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	st := testsupport.MustOpenStore(t, cfg)
	a := safety.New(cfg, st, nil, safety.WithDetectors(safety.PaymentBypass{}, panickingDetector{}))

	report := a.Analyze(context.Background(), safety.Input{SessionID: "s1", Transcript: "pay cash"})
	if !report.Failed || len(report.Flags) != 0 {
		t.Fatalf("expected failed empty report, got %+v", report)
	}
}

type brokenStore struct {
	inserted int
}

func (b *brokenStore) InsertFlag(context.Context, store.Flag) (int64, error) {
	b.inserted++
	return 0, errors.New("database is locked")
}

func (b *brokenStore) UnresolvedFlagTypes(context.Context, string) (map[store.FlagType]bool, error) {
	return nil, nil
}

func (b *brokenStore) OperatorIDs(context.Context) ([]string, error) {
	return []string{"op1"}, nil
}

func (b *brokenStore) InsertNotification(context.Context, store.Notification) (*store.Notification, error) {
	return nil, errors.New("unexpected escalation")
}

func TestAnalyzeFailsOpenOnStoreError(t *testing.T) {
	st := &brokenStore{}
	a := safety.New(testsupport.NewConfig(t), st, nil)

	report := a.Analyze(context.Background(), safety.Input{SessionID: "s1", Transcript: "pay me directly at 5551234567"})
	if !report.Failed || len(report.Flags) != 0 || report.Escalations != 0 {
		t.Fatalf("expected fail-open report, got %+v", report)
	}
	if st.inserted != 1 {
		t.Fatalf("expected analysis to stop after the first failed insert, got %d", st.inserted)
	}
}

type recordingMirror struct {
	sessions []string
	err      error
}

func (m *recordingMirror) Escalate(_ context.Context, sessionID string, _ []store.Flag) error {
	m.sessions = append(m.sessions, sessionID)
	return m.err
}

func TestAnalyzeMirrorsEscalation(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	st := testsupport.MustOpenStore(t, cfg)
	testsupport.AddAccounts(t, st, store.RoleOperator, "op1")
	mirror := &recordingMirror{err: errors.New("slack down")}
	a := safety.New(cfg, st, nil, safety.WithMirror(mirror))

	report := a.Analyze(context.Background(), safety.Input{SessionID: "s1", Transcript: longClean() + " venmo me"})
	if report.Escalations != 1 {
		t.Fatalf("mirror failure must not block operator notification, got %d", report.Escalations)
	}
	if len(mirror.sessions) != 1 || mirror.sessions[0] != "s1" {
		t.Fatalf("unexpected mirror calls %v", mirror.sessions)
	}
}
