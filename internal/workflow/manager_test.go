package workflow_test

import (
	"context"
	"errors"
	"sync"
	"testing"

	"recap/internal/ingest"
	"recap/internal/notifications"
	"recap/internal/safety"
	"recap/internal/services"
	"recap/internal/services/llm"
	"recap/internal/store"
	"recap/internal/testsupport"
	"recap/internal/transcription"
	"recap/internal/workflow"
)

type urlProvider struct {
	results map[string]*transcription.Result
}

func (p *urlProvider) Name() string { return "fake" }

func (p *urlProvider) Transcribe(_ context.Context, req transcription.Request) (*transcription.Result, error) {
	res, ok := p.results[req.AudioURL]
	if !ok {
		return nil, services.Wrap(services.ErrInput, "transcribe", "fetch", "unknown audio "+req.AudioURL, nil)
	}
	return res, nil
}

type stubGenerator struct {
	mu    sync.Mutex
	calls int
	err   error
	text  string
}

func (g *stubGenerator) Name() string { return "stub" }

func (g *stubGenerator) Generate(context.Context, llm.Prompt) (string, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.calls++
	if g.err != nil {
		return "", g.err
	}
	return g.text, nil
}

func utterance(start float64, text string) *transcription.Result {
	return &transcription.Result{Utterances: []transcription.Utterance{{Start: start, End: start + 2, Text: text}}}
}

type fixture struct {
	st        *store.Store
	mgr       *workflow.Manager
	provider  *urlProvider
	generator *stubGenerator
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	cfg := testsupport.NewConfig(t)
	st := testsupport.MustOpenStore(t, cfg)
	f := &fixture{
		st:        st,
		provider:  &urlProvider{results: map[string]*transcription.Result{}},
		generator: &stubGenerator{text: "The tutor greeted the learner and discussed payment logistics."},
	}
	mgr, err := workflow.NewManager(cfg, st, nil,
		workflow.WithTranscriptionProvider(f.provider),
		workflow.WithGenerator(f.generator),
	)
	if err != nil {
		t.Fatalf("NewManager: %v", err)
	}
	f.mgr = mgr
	return f
}

func (f *fixture) register(t *testing.T, session store.Session) {
	t.Helper()
	if _, err := f.mgr.RegisterSession(context.Background(), session); err != nil {
		t.Fatalf("RegisterSession: %v", err)
	}
}

func (f *fixture) ingest(t *testing.T, sessionID, speakerID, url string) {
	t.Helper()
	if _, err := f.mgr.Ingest(context.Background(), ingest.Request{SessionID: sessionID, SpeakerID: speakerID, AudioURL: url}); err != nil {
		t.Fatalf("Ingest %s: %v", speakerID, err)
	}
}

func (f *fixture) state(t *testing.T, sessionID string) store.State {
	t.Helper()
	session, err := f.st.GetSession(context.Background(), sessionID)
	if err != nil || session == nil {
		t.Fatalf("GetSession: %v", err)
	}
	return session.State
}

func countByType(notes []store.Notification) map[string]int {
	out := map[string]int{}
	for _, n := range notes {
		out[n.Type]++
	}
	return out
}

func TestEndToEndRecurringSessionWithPaymentBypass(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	testsupport.AddAccounts(t, f.st, store.RoleOperator, "op1")
	testsupport.AddAccounts(t, f.st, store.RoleAdmin, "admin1")
	f.register(t, store.Session{ID: "S1", Kind: store.KindRecurring, RecurringID: "R1", TutorID: "T1", LearnerID: "L1", ExpectedSpeakers: 2})
	f.provider.results["audio://a"] = utterance(0, "hello")
	f.provider.results["audio://b"] = utterance(5, "let's pay outside the app")

	f.ingest(t, "S1", "speakerA", "audio://a")
	if got := f.state(t, "S1"); got != store.StateCollecting {
		t.Fatalf("expected collecting after one speaker, got %s", got)
	}
	if _, err := f.mgr.Run(ctx, "S1"); !errors.Is(err, workflow.ErrNotReady) {
		t.Fatalf("expected ErrNotReady, got %v", err)
	}

	f.ingest(t, "S1", "speakerB", "audio://b")
	if got := f.state(t, "S1"); got != store.StateReadyToAggregate {
		t.Fatalf("expected ready_to_aggregate after all speakers, got %s", got)
	}

	text, err := f.mgr.Transcript(ctx, "S1")
	if err != nil {
		t.Fatalf("Transcript: %v", err)
	}
	want := "[0:00] (speaker speakerA): hello\n[0:05] (speaker speakerB): let's pay outside the app"
	if text != want {
		t.Fatalf("unexpected transcript:\n%q\nwant:\n%q", text, want)
	}

	result, err := f.mgr.Run(ctx, "S1")
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if result.State != store.StateNotified {
		t.Fatalf("expected notified, got %s", result.State)
	}

	flags, err := f.mgr.Flags(ctx, "S1")
	if err != nil {
		t.Fatalf("Flags: %v", err)
	}
	critical := 0
	for _, flag := range flags {
		if flag.Severity == store.SeverityCritical {
			critical++
			if flag.Type != store.FlagPaymentBypass {
				t.Fatalf("unexpected critical flag %+v", flag)
			}
		}
	}
	if critical != 1 {
		t.Fatalf("expected exactly one critical flag, got %d in %+v", critical, flags)
	}

	notes, err := f.mgr.Notifications(ctx, "S1")
	if err != nil {
		t.Fatalf("Notifications: %v", err)
	}
	counts := countByType(notes)
	if counts[notifications.TypeSummaryReady] != 2 || counts[safety.NotificationTypeEscalation] != 2 || len(notes) != 4 {
		t.Fatalf("unexpected notifications %v", counts)
	}

	again, err := f.mgr.Run(ctx, "S1")
	if err != nil || again.Skipped == "" {
		t.Fatalf("second run should be a no-op, got %+v %v", again, err)
	}
	if f.generator.calls != 1 {
		t.Fatalf("expected one model call, got %d", f.generator.calls)
	}
	notes, _ = f.mgr.Notifications(ctx, "S1")
	if len(notes) != 4 {
		t.Fatalf("second run must not add notifications, got %d", len(notes))
	}
}

func TestFinalizeIsIdempotent(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.register(t, store.Session{ID: "s1", Kind: store.KindTrial, TutorID: "t1", LearnerID: "l1"})

	for range 2 {
		state, err := f.mgr.Finalize(ctx, "s1")
		if err != nil {
			t.Fatalf("Finalize: %v", err)
		}
		if state != store.StateReadyToAggregate {
			t.Fatalf("unexpected state %s", state)
		}
	}
	if _, err := f.mgr.Finalize(ctx, "missing"); !errors.Is(err, services.ErrNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
}

func TestRunStopsAtAnalyzedWhenSummaryFails(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.register(t, store.Session{ID: "s1", Kind: store.KindRecurring, RecurringID: "r1", TutorID: "t1", LearnerID: "l1"})
	f.provider.results["audio://t"] = utterance(0, "Today we practice fractions and review homework.")
	f.ingest(t, "s1", "t1", "audio://t")
	if _, err := f.mgr.Finalize(ctx, "s1"); err != nil {
		t.Fatalf("Finalize: %v", err)
	}

	f.generator.err = services.Wrap(services.ErrTransient, "llm", "generate", "status 503", nil)
	result, err := f.mgr.Run(ctx, "s1")
	if !errors.Is(err, services.ErrTransient) {
		t.Fatalf("expected summary failure, got %v", err)
	}
	if result.State != store.StateAnalyzed || f.state(t, "s1") != store.StateAnalyzed {
		t.Fatalf("expected run to stop at analyzed, got %s", result.State)
	}
	flagsBefore, _ := f.mgr.Flags(ctx, "s1")

	f.generator.err = nil
	sweep, err := f.mgr.Sweep(ctx)
	if err != nil {
		t.Fatalf("Sweep: %v", err)
	}
	if sweep.Sessions != 1 || sweep.Completed != 1 {
		t.Fatalf("unexpected sweep %+v", sweep)
	}
	if f.state(t, "s1") != store.StateNotified {
		t.Fatalf("expected notified after sweep, got %s", f.state(t, "s1"))
	}
	flagsAfter, _ := f.mgr.Flags(ctx, "s1")
	if len(flagsAfter) != len(flagsBefore) {
		t.Fatalf("resumed run must not re-analyze: %d -> %d flags", len(flagsBefore), len(flagsAfter))
	}
}

func TestSweepIgnoresCollectingSessions(t *testing.T) {
	f := newFixture(t)
	f.register(t, store.Session{ID: "open", Kind: store.KindTrial, TutorID: "t1"})
	sweep, err := f.mgr.Sweep(context.Background())
	if err != nil {
		t.Fatalf("Sweep: %v", err)
	}
	if sweep.Sessions != 0 {
		t.Fatalf("collecting sessions must not be swept, got %+v", sweep)
	}
}

func TestRunTrialSessionSkipsParticipants(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.register(t, store.Session{ID: "trial", Kind: store.KindTrial, TutorID: "t1", LearnerID: "l1", ExpectedSpeakers: 1})
	f.provider.results["audio://t"] = utterance(0, "Welcome to your trial lesson, any questions?")
	f.ingest(t, "trial", "t1", "audio://t")

	result, err := f.mgr.Run(ctx, "trial")
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if result.State != store.StateNotified || result.Summary == "" || result.Skipped != notifications.SkipNotRecurring {
		t.Fatalf("unexpected result %+v", result)
	}
	notes, _ := f.mgr.Notifications(ctx, "trial")
	if counts := countByType(notes); counts[notifications.TypeSummaryReady] != 0 {
		t.Fatalf("trial session must not be notified: %v", counts)
	}
}

func TestRunEmptyTranscriptCompletesWithoutSummary(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.register(t, store.Session{ID: "s1", Kind: store.KindRecurring, RecurringID: "r1", TutorID: "t1", ExpectedSpeakers: 1})
	f.provider.results["audio://silent"] = &transcription.Result{}
	f.ingest(t, "s1", "t1", "audio://silent")

	result, err := f.mgr.Run(ctx, "s1")
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if result.Summary != "" || result.State != store.StateNotified || f.generator.calls != 0 {
		t.Fatalf("unexpected result %+v calls=%d", result, f.generator.calls)
	}
}

func TestRegisterSessionValidates(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	if _, err := f.mgr.RegisterSession(ctx, store.Session{}); !errors.Is(err, services.ErrInput) {
		t.Fatalf("expected input error, got %v", err)
	}
	if _, err := f.mgr.RegisterSession(ctx, store.Session{ID: "x", Kind: "weekly"}); !errors.Is(err, services.ErrInput) {
		t.Fatalf("expected input error, got %v", err)
	}
	saved, err := f.mgr.RegisterSession(ctx, store.Session{ID: "x"})
	if err != nil || saved.Kind != store.KindTrial || saved.State != store.StateCollecting {
		t.Fatalf("unexpected session %+v %v", saved, err)
	}
}

func TestIngestUnknownSession(t *testing.T) {
	f := newFixture(t)
	_, err := f.mgr.Ingest(context.Background(), ingest.Request{SessionID: "nope", SpeakerID: "a", AudioURL: "u"})
	if !errors.Is(err, services.ErrNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
}

func TestStatusReportsHealthAndPending(t *testing.T) {
	f := newFixture(t)
	f.register(t, store.Session{ID: "a", TutorID: "t"})
	f.register(t, store.Session{ID: "b", TutorID: "t"})
	if _, err := f.mgr.Finalize(context.Background(), "b"); err != nil {
		t.Fatalf("Finalize: %v", err)
	}
	status := f.mgr.Status(context.Background())
	if status.Pending[store.StateCollecting] != 1 || status.Pending[store.StateReadyToAggregate] != 1 {
		t.Fatalf("unexpected pending counts %v", status.Pending)
	}
	for _, name := range []string{"ingest", "analyze", "summarize", "notify"} {
		if h, ok := status.StageHealth[name]; !ok || !h.Ready {
			t.Fatalf("stage %s not healthy: %+v", name, status.StageHealth)
		}
	}
}
