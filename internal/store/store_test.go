package store_test

import (
	"context"
	"sync"
	"testing"

	"recap/internal/config"
	"recap/internal/store"
	"recap/internal/testsupport"
)

func openTestStore(t *testing.T) *store.Store {
	t.Helper()
	return testsupport.MustOpenStore(t, testsupport.NewConfig(t))
}

func TestOpenReusesExistingSchema(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	first, err := store.Open(cfg)
	if err != nil {
		t.Fatalf("first open: %v", err)
	}
	if _, err := first.UpsertSession(context.Background(), store.Session{ID: "s1"}); err != nil {
		t.Fatalf("upsert: %v", err)
	}
	first.Close()

	second := testsupport.MustOpenStore(t, cfg)
	got, err := second.GetSession(context.Background(), "s1")
	if err != nil || got == nil {
		t.Fatalf("expected session after reopen, got %v %v", got, err)
	}
	if second.Driver() != store.DriverSQLite {
		t.Fatalf("unexpected driver %q", second.Driver())
	}
}

func TestOpenRejectsUnknownDriver(t *testing.T) {
	cfg := testsupport.NewConfig(t, testsupport.WithConfig(func(c *config.Config) {
		c.Database.Driver = "postgres"
	}))
	if _, err := store.Open(cfg); err == nil {
		t.Fatal("expected error for unsupported driver")
	}
}

func TestUpsertSessionPreservesSummaryAndState(t *testing.T) {
	st := openTestStore(t)
	ctx := context.Background()

	created := testsupport.NewSession(t, st, store.Session{
		ID: "s1", Kind: store.KindRecurring, RecurringID: "eng-1", TutorID: "T1", LearnerID: "L1", ExpectedSpeakers: 2,
	})
	if created.State != store.StateCollecting {
		t.Fatalf("expected collecting state, got %s", created.State)
	}
	if ok, err := st.SetSummary(ctx, "s1", "first summary"); err != nil || !ok {
		t.Fatalf("SetSummary: %v %v", ok, err)
	}
	if ok, err := st.TransitionState(ctx, "s1", store.StateCollecting, store.StateReadyToAggregate); err != nil || !ok {
		t.Fatalf("TransitionState: %v %v", ok, err)
	}

	updated := testsupport.NewSession(t, st, store.Session{
		ID: "s1", Kind: store.KindRecurring, RecurringID: "eng-1", TutorID: "T1", LearnerID: "L2", GuardianID: "G1",
	})
	if updated.Summary != "first summary" {
		t.Fatalf("summary overwritten: %q", updated.Summary)
	}
	if updated.State != store.StateReadyToAggregate {
		t.Fatalf("state reset: %s", updated.State)
	}
	if updated.LearnerID != "L2" || updated.GuardianID != "G1" {
		t.Fatalf("participants not refreshed: %+v", updated)
	}
}

func TestGetSessionMissingReturnsNil(t *testing.T) {
	st := openTestStore(t)
	got, err := st.GetSession(context.Background(), "nope")
	if err != nil || got != nil {
		t.Fatalf("expected nil, nil; got %v %v", got, err)
	}
}

func TestSetSummaryIsWriteOnce(t *testing.T) {
	st := openTestStore(t)
	ctx := context.Background()
	testsupport.NewSession(t, st, store.Session{ID: "s1"})

	if ok, err := st.SetSummary(ctx, "s1", "one"); err != nil || !ok {
		t.Fatalf("first SetSummary: %v %v", ok, err)
	}
	if ok, err := st.SetSummary(ctx, "s1", "two"); err != nil || ok {
		t.Fatalf("second SetSummary should not write: %v %v", ok, err)
	}
	got, _ := st.GetSession(ctx, "s1")
	if got.Summary != "one" {
		t.Fatalf("summary = %q, want one", got.Summary)
	}
}

func TestTransitionStateRequiresExpectedState(t *testing.T) {
	st := openTestStore(t)
	ctx := context.Background()
	testsupport.NewSession(t, st, store.Session{ID: "s1"})

	if ok, _ := st.TransitionState(ctx, "s1", store.StateAggregated, store.StateAnalyzed); ok {
		t.Fatal("transition from wrong state should not apply")
	}
	if ok, _ := st.TransitionState(ctx, "s1", store.StateCollecting, store.StateReadyToAggregate); !ok {
		t.Fatal("expected transition to apply")
	}
	pending, err := st.SessionsInStates(ctx, store.PendingStates...)
	if err != nil {
		t.Fatalf("SessionsInStates: %v", err)
	}
	if len(pending) != 1 || pending[0].ID != "s1" {
		t.Fatalf("unexpected pending sessions %+v", pending)
	}
}

func TestSegmentsOrderedByStartTime(t *testing.T) {
	st := openTestStore(t)
	conf := 0.9
	testsupport.AddSegments(t, st,
		store.Segment{SessionID: "s1", SpeakerID: "B", StartTime: 5, EndTime: 6, Text: "second"},
		store.Segment{SessionID: "s1", SpeakerID: "A", StartTime: 0, EndTime: 2, Text: "first", Confidence: &conf},
		store.Segment{SessionID: "s2", SpeakerID: "A", StartTime: 1, EndTime: 2, Text: "other session"},
	)
	testsupport.AddSegments(t, st,
		store.Segment{SessionID: "s1", SpeakerID: "A", StartTime: 5, EndTime: 7, Text: "tie"},
	)

	segments, err := st.ListSegments(context.Background(), "s1")
	if err != nil {
		t.Fatalf("ListSegments: %v", err)
	}
	want := []string{"first", "second", "tie"}
	if len(segments) != len(want) {
		t.Fatalf("expected %d segments, got %d", len(want), len(segments))
	}
	for i, text := range want {
		if segments[i].Text != text {
			t.Fatalf("segment %d = %q, want %q", i, segments[i].Text, text)
		}
	}
	if segments[0].Confidence == nil || *segments[0].Confidence != 0.9 {
		t.Fatalf("expected confidence round trip, got %v", segments[0].Confidence)
	}
	if segments[1].Confidence != nil {
		t.Fatalf("expected nil confidence, got %v", *segments[1].Confidence)
	}

	has, err := st.HasSegments(context.Background(), "s1", "B")
	if err != nil || !has {
		t.Fatalf("HasSegments: %v %v", has, err)
	}
	has, _ = st.HasSegments(context.Background(), "s1", "C")
	if has {
		t.Fatal("expected no segments for unknown speaker")
	}
}

func TestMarkSpeakerIngestedCountsDistinctSpeakers(t *testing.T) {
	st := openTestStore(t)
	ctx := context.Background()
	for _, speaker := range []string{"A", "B", "A"} {
		if _, err := st.MarkSpeakerIngested(ctx, "s1", speaker); err != nil {
			t.Fatalf("MarkSpeakerIngested: %v", err)
		}
	}
	count, err := st.MarkSpeakerIngested(ctx, "s1", "B")
	if err != nil {
		t.Fatalf("MarkSpeakerIngested: %v", err)
	}
	if count != 2 {
		t.Fatalf("expected 2 distinct speakers, got %d", count)
	}
}

func TestFlagsAppendOnly(t *testing.T) {
	st := openTestStore(t)
	ctx := context.Background()
	flag := store.Flag{SessionID: "s1", Type: store.FlagPaymentBypass, Severity: store.SeverityCritical, Description: "d", Excerpt: "pay cash"}
	for i := 0; i < 2; i++ {
		if _, err := st.InsertFlag(ctx, flag); err != nil {
			t.Fatalf("InsertFlag: %v", err)
		}
	}
	flags, err := st.ListFlags(ctx, "s1")
	if err != nil {
		t.Fatalf("ListFlags: %v", err)
	}
	if len(flags) != 2 {
		t.Fatalf("expected 2 flags, got %d", len(flags))
	}
	if flags[0].Resolved || flags[0].Excerpt != "pay cash" || flags[0].Severity != store.SeverityCritical {
		t.Fatalf("unexpected flag %+v", flags[0])
	}
	types, err := st.UnresolvedFlagTypes(ctx, "s1")
	if err != nil {
		t.Fatalf("UnresolvedFlagTypes: %v", err)
	}
	if !types[store.FlagPaymentBypass] || len(types) != 1 {
		t.Fatalf("unexpected unresolved types %v", types)
	}
}

func TestNotificationsRoundTrip(t *testing.T) {
	st := openTestStore(t)
	ctx := context.Background()

	notified, err := st.NotifiedRecipients(ctx, "session_summary_ready", "s1")
	if err != nil || len(notified) != 0 {
		t.Fatalf("expected no notification yet: %v %v", notified, err)
	}
	saved, err := st.InsertNotification(ctx, store.Notification{
		RecipientID: "T1",
		SessionID:   "s1",
		Type:        "session_summary_ready",
		Title:       "Summary ready",
		Message:     "preview",
		Metadata:    map[string]any{"session_id": "s1", "summary_preview": "preview"},
	})
	if err != nil {
		t.Fatalf("InsertNotification: %v", err)
	}
	if len(saved.ID) != 36 {
		t.Fatalf("expected uuid id, got %q", saved.ID)
	}
	notified, _ = st.NotifiedRecipients(ctx, "session_summary_ready", "s1")
	if len(notified) != 1 || !notified["T1"] {
		t.Fatalf("expected T1 to be notified, got %v", notified)
	}
	notified, _ = st.NotifiedRecipients(ctx, "safety_escalation", "s1")
	if len(notified) != 0 {
		t.Fatal("type should scope the dedupe check")
	}

	list, err := st.ListNotifications(ctx, "s1")
	if err != nil {
		t.Fatalf("ListNotifications: %v", err)
	}
	if len(list) != 1 || list[0].Metadata["summary_preview"] != "preview" {
		t.Fatalf("unexpected notifications %+v", list)
	}
}

func TestOperatorIDs(t *testing.T) {
	st := openTestStore(t)
	testsupport.AddAccounts(t, st, store.RoleOperator, "op-2", "op-1")
	testsupport.AddAccounts(t, st, store.RoleAdmin, "admin-1")
	testsupport.AddAccounts(t, st, store.RoleTutor, "T1")

	ids, err := st.OperatorIDs(context.Background())
	if err != nil {
		t.Fatalf("OperatorIDs: %v", err)
	}
	want := []string{"admin-1", "op-1", "op-2"}
	if len(ids) != len(want) {
		t.Fatalf("ids = %v, want %v", ids, want)
	}
	for i := range want {
		if ids[i] != want[i] {
			t.Fatalf("ids = %v, want %v", ids, want)
		}
	}
}

func TestConcurrentSegmentInserts(t *testing.T) {
	st := openTestStore(t)
	var wg sync.WaitGroup
	errs := make(chan error, 4)
	for i := 0; i < 4; i++ {
		wg.Add(1)
		go func(speaker string) {
			defer wg.Done()
			segs := make([]store.Segment, 0, 20)
			for j := 0; j < 20; j++ {
				segs = append(segs, store.Segment{SessionID: "s1", SpeakerID: speaker, StartTime: float64(j), EndTime: float64(j) + 1, Text: "x"})
			}
			errs <- st.InsertSegments(context.Background(), segs)
		}(string(rune('A' + i)))
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		if err != nil {
			t.Fatalf("concurrent insert: %v", err)
		}
	}
	segments, err := st.ListSegments(context.Background(), "s1")
	if err != nil {
		t.Fatalf("ListSegments: %v", err)
	}
	if len(segments) != 80 {
		t.Fatalf("expected 80 segments, got %d", len(segments))
	}
}
