package safety

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"recap/internal/config"
	"recap/internal/logging"
	"recap/internal/services"
	"recap/internal/stage"
	"recap/internal/store"
)

// NotificationTypeEscalation is written once per operator when a pass
// produces a critical flag.
const NotificationTypeEscalation = "safety_escalation"

// Store is the persistence surface the analyzer needs.
type Store interface {
	InsertFlag(ctx context.Context, flag store.Flag) (int64, error)
	UnresolvedFlagTypes(ctx context.Context, sessionID string) (map[store.FlagType]bool, error)
	OperatorIDs(ctx context.Context) ([]string, error)
	InsertNotification(ctx context.Context, n store.Notification) (*store.Notification, error)
}

// Mirror receives a copy of every escalation, for example a chat channel.
type Mirror interface {
	Escalate(ctx context.Context, sessionID string, flags []store.Flag) error
}

// Report describes one analysis pass.
type Report struct {
	Flags       []store.Flag
	Suppressed  int
	Escalations int
	// Failed is set when the pass stopped early; Flags holds what was persisted.
	Failed bool
}

// HasCritical reports whether the pass persisted a critical flag.
func (r Report) HasCritical() bool {
	return hasCritical(r.Flags)
}

// Analyzer runs the detector battery and persists the results.
type Analyzer struct {
	store     Store
	detectors []Detector
	dedupe    bool
	mirror    Mirror
	logger    *slog.Logger
}

// Option customizes an Analyzer.
type Option func(*Analyzer)

// WithDetectors replaces the default detector battery.
func WithDetectors(detectors ...Detector) Option {
	return func(a *Analyzer) {
		a.detectors = detectors
	}
}

// WithMirror forwards escalations to m in addition to operator notifications.
func WithMirror(m Mirror) Option {
	return func(a *Analyzer) {
		a.mirror = m
	}
}

// New constructs an Analyzer configured from cfg.Safety.
func New(cfg *config.Config, st Store, logger *slog.Logger, opts ...Option) *Analyzer {
	var safetyCfg config.Safety
	if cfg != nil {
		safetyCfg = cfg.Safety
	}
	a := &Analyzer{
		store:     st,
		detectors: DefaultDetectors(safetyCfg),
		dedupe:    safetyCfg.DedupeUnresolved,
		logger:    logging.NewComponentLogger(logger, "safety"),
	}
	for _, opt := range opts {
		if opt != nil {
			opt(a)
		}
	}
	return a
}

// HealthCheck reports whether the analyzer has a store and detectors.
func (a *Analyzer) HealthCheck(context.Context) stage.Health {
	switch {
	case a == nil || a.store == nil:
		return stage.Unhealthy(stage.Analyze, "store unavailable")
	case len(a.detectors) == 0:
		return stage.Unhealthy(stage.Analyze, "no detectors configured")
	default:
		return stage.Healthy(stage.Analyze)
	}
}

// Detect runs every detector over in without touching the store.
func (a *Analyzer) Detect(in Input) []Finding {
	in = Prepare(in)
	findings := make([]Finding, 0, len(a.detectors))
	for _, detector := range a.detectors {
		if finding := detector.Detect(in); finding != nil {
			findings = append(findings, *finding)
		}
	}
	return findings
}

// Analyze runs one pass for the session. It never returns an error: failures
// are logged and the report carries whatever was persisted before them.
func (a *Analyzer) Analyze(ctx context.Context, in Input) (report Report) {
	if ctx == nil {
		ctx = context.Background()
	}
	ctx = services.WithSessionID(ctx, in.SessionID)
	ctx = services.WithStage(ctx, stage.Analyze)
	logger := logging.WithContext(ctx, a.logger)

	defer func() {
		if r := recover(); r != nil {
			logging.ErrorWithContext(logger, "safety analysis panicked", "safety_panic",
				logging.String("panic", fmt.Sprint(r)),
				logging.String(logging.FieldErrorHint, "inspect detector implementations"),
			)
			report.Failed = true
		}
	}()

	findings := a.Detect(in)
	if len(findings) == 0 {
		logger.Info("safety analysis clean", logging.String(logging.FieldEventType, "safety_clean"))
		return report
	}

	if a.dedupe {
		existing, err := a.store.UnresolvedFlagTypes(ctx, in.SessionID)
		if err != nil {
			a.failOpen(logger, "load unresolved flags", err)
			report.Failed = true
			return report
		}
		kept := findings[:0]
		for _, f := range findings {
			if existing[f.Type] {
				report.Suppressed++
				continue
			}
			kept = append(kept, f)
		}
		findings = kept
	}

	for _, f := range findings {
		flag := store.Flag{
			SessionID:   in.SessionID,
			Type:        f.Type,
			Severity:    f.Severity,
			Description: f.Description,
			Excerpt:     f.Excerpt,
			CreatedAt:   time.Now().UTC(),
		}
		id, err := a.store.InsertFlag(ctx, flag)
		if err != nil {
			a.failOpen(logger, "insert flag", err)
			report.Failed = true
			break
		}
		flag.ID = id
		report.Flags = append(report.Flags, flag)
		logger.Info("safety flag recorded",
			logging.String(logging.FieldEventType, "safety_flag"),
			logging.String("flag_type", string(flag.Type)),
			logging.String("severity", string(flag.Severity)),
		)
	}

	if hasCritical(report.Flags) {
		report.Escalations = a.escalate(ctx, logger, in.SessionID, report.Flags)
	}

	logger.Info("safety analysis completed",
		logging.String(logging.FieldEventType, "stage_complete"),
		logging.Int("flags", len(report.Flags)),
		logging.Int("suppressed", report.Suppressed),
		logging.Int("escalations", report.Escalations),
	)
	return report
}

func (a *Analyzer) escalate(ctx context.Context, logger *slog.Logger, sessionID string, flags []store.Flag) int {
	operators, err := a.store.OperatorIDs(ctx)
	if err != nil {
		a.failOpen(logger, "load operators", err)
		return 0
	}
	if len(operators) == 0 {
		logging.WarnWithContext(logger, "critical flag raised but no operator accounts exist", "safety_no_operators",
			logging.String(logging.FieldErrorHint, "create an operator or admin account"),
			logging.String(logging.FieldImpact, "critical flag not escalated"),
		)
	}

	metadata := map[string]any{
		"session_id": sessionID,
		"flag_count": len(flags),
		"flags":      flagPayload(flags),
	}
	sent := 0
	for _, operator := range operators {
		_, err := a.store.InsertNotification(ctx, store.Notification{
			RecipientID: operator,
			SessionID:   sessionID,
			Type:        NotificationTypeEscalation,
			Title:       "Critical safety flag",
			Message:     fmt.Sprintf("Session %s produced %d safety flag(s) including a critical finding.", sessionID, len(flags)),
			Metadata:    metadata,
		})
		if err != nil {
			logging.WarnWithContext(logger, "escalation notification failed", "safety_escalation_failed",
				logging.String("recipient_id", operator),
				logging.Error(err),
				logging.String(logging.FieldImpact, "operator not alerted"),
			)
			continue
		}
		sent++
	}

	if a.mirror != nil {
		if err := a.mirror.Escalate(ctx, sessionID, flags); err != nil {
			logging.WarnWithContext(logger, "escalation mirror failed", "safety_mirror_failed",
				logging.Error(err),
				logging.String(logging.FieldErrorHint, "check slack bot token and channel"),
			)
		}
	}
	return sent
}

func (a *Analyzer) failOpen(logger *slog.Logger, op string, err error) {
	logging.ErrorWithContext(logger, "safety analysis failed open", "safety_failed_open",
		logging.String("operation", op),
		logging.Error(err),
		logging.String(logging.FieldErrorHint, "check datastore connectivity"),
		logging.String(logging.FieldImpact, "remaining flags for this pass are dropped"),
	)
}

func hasCritical(flags []store.Flag) bool {
	for _, f := range flags {
		if f.Severity == store.SeverityCritical {
			return true
		}
	}
	return false
}

func flagPayload(flags []store.Flag) []map[string]any {
	out := make([]map[string]any, 0, len(flags))
	for _, f := range flags {
		out = append(out, map[string]any{
			"id":          f.ID,
			"type":        string(f.Type),
			"severity":    string(f.Severity),
			"description": f.Description,
			"excerpt":     f.Excerpt,
		})
	}
	return out
}
