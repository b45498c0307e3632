package api

import (
	"slices"
	"time"

	"recap/internal/notifications"
	"recap/internal/safety"
	"recap/internal/stage"
	"recap/internal/store"
	"recap/internal/workflow"
)

const dateTimeFormat = "2006-01-02T15:04:05.000Z07:00"

// Session is the transport form of a session record.
type Session struct {
	ID               string `json:"id"`
	Kind             string `json:"kind"`
	RecurringID      string `json:"recurring_id,omitempty"`
	TutorID          string `json:"tutor_id,omitempty"`
	LearnerID        string `json:"learner_id,omitempty"`
	GuardianID       string `json:"guardian_id,omitempty"`
	ExpectedSpeakers int    `json:"expected_speakers"`
	State            string `json:"state,omitempty"`
	Summary          string `json:"summary,omitempty"`
	CreatedAt        string `json:"created_at,omitempty"`
	UpdatedAt        string `json:"updated_at,omitempty"`
}

// Record converts the request body into a store session.
func (s Session) Record() store.Session {
	return store.Session{
		ID:               s.ID,
		Kind:             store.SessionKind(s.Kind),
		RecurringID:      s.RecurringID,
		TutorID:          s.TutorID,
		LearnerID:        s.LearnerID,
		GuardianID:       s.GuardianID,
		ExpectedSpeakers: s.ExpectedSpeakers,
	}
}

// IngestRequest is the body of the per-speaker ingest call.
type IngestRequest struct {
	AudioURL string `json:"audio_url"`
	Language string `json:"language,omitempty"`
}

// IngestResponse reports what ingestion stored.
type IngestResponse struct {
	SessionID string `json:"session_id"`
	SpeakerID string `json:"speaker_id"`
	Segments  int    `json:"segments"`
	Batches   int    `json:"batches"`
	Skipped   bool   `json:"skipped"`
}

// Flag is the transport form of a safety flag.
type Flag struct {
	ID          int64  `json:"id"`
	Type        string `json:"type"`
	Severity    string `json:"severity"`
	Description string `json:"description"`
	Excerpt     string `json:"excerpt,omitempty"`
	Resolved    bool   `json:"resolved"`
	CreatedAt   string `json:"created_at,omitempty"`
}

// AnalyzeResponse summarizes a safety pass.
type AnalyzeResponse struct {
	SessionID   string `json:"session_id"`
	Flags       []Flag `json:"flags"`
	Suppressed  int    `json:"suppressed"`
	Escalations int    `json:"escalations"`
	Failed      bool   `json:"failed"`
}

// NotifyResponse summarizes a dispatch.
type NotifyResponse struct {
	SessionID  string   `json:"session_id"`
	Recipients []string `json:"recipients"`
	Failed     []string `json:"failed,omitempty"`
	Skipped    string   `json:"skipped,omitempty"`
}

// RunResponse summarizes an orchestrated run.
type RunResponse struct {
	SessionID   string   `json:"session_id"`
	State       string   `json:"state"`
	Flags       int      `json:"flags"`
	Escalations int      `json:"escalations"`
	Summary     string   `json:"summary,omitempty"`
	Notified    []string `json:"notified,omitempty"`
	Skipped     string   `json:"skipped,omitempty"`
}

// StageHealth mirrors readiness reporting for stages.
type StageHealth struct {
	Name   string `json:"name"`
	Ready  bool   `json:"ready"`
	Detail string `json:"detail,omitempty"`
}

// HealthResponse is returned by /healthz.
type HealthResponse struct {
	Status      string         `json:"status"`
	Database    string         `json:"database"`
	LastError   string         `json:"last_error,omitempty"`
	LastSweep   string         `json:"last_sweep,omitempty"`
	Pending     map[string]int `json:"pending,omitempty"`
	StageHealth []StageHealth  `json:"stage_health"`
}

// ErrorResponse is the body of every non-2xx reply.
type ErrorResponse struct {
	Error     string `json:"error"`
	Kind      string `json:"kind,omitempty"`
	RequestID string `json:"request_id,omitempty"`
}

// FromSession converts a store session.
func FromSession(s *store.Session) Session {
	if s == nil {
		return Session{}
	}
	return Session{
		ID:               s.ID,
		Kind:             string(s.Kind),
		RecurringID:      s.RecurringID,
		TutorID:          s.TutorID,
		LearnerID:        s.LearnerID,
		GuardianID:       s.GuardianID,
		ExpectedSpeakers: s.ExpectedSpeakers,
		State:            string(s.State),
		Summary:          s.Summary,
		CreatedAt:        FormatTime(s.CreatedAt),
		UpdatedAt:        FormatTime(s.UpdatedAt),
	}
}

// FromFlags converts stored flags.
func FromFlags(flags []store.Flag) []Flag {
	out := make([]Flag, 0, len(flags))
	for _, f := range flags {
		out = append(out, Flag{
			ID:          f.ID,
			Type:        string(f.Type),
			Severity:    string(f.Severity),
			Description: f.Description,
			Excerpt:     f.Excerpt,
			Resolved:    f.Resolved,
			CreatedAt:   FormatTime(f.CreatedAt),
		})
	}
	return out
}

// FromReport converts a safety report.
func FromReport(sessionID string, r safety.Report) AnalyzeResponse {
	return AnalyzeResponse{
		SessionID:   sessionID,
		Flags:       FromFlags(r.Flags),
		Suppressed:  r.Suppressed,
		Escalations: r.Escalations,
		Failed:      r.Failed,
	}
}

// FromDispatch converts a dispatcher result.
func FromDispatch(sessionID string, r notifications.Result) NotifyResponse {
	recipients := r.Recipients
	if recipients == nil {
		recipients = []string{}
	}
	return NotifyResponse{SessionID: sessionID, Recipients: recipients, Failed: r.Failed, Skipped: r.Skipped}
}

// FromRunResult converts a workflow run result.
func FromRunResult(r workflow.RunResult) RunResponse {
	return RunResponse{
		SessionID:   r.SessionID,
		State:       string(r.State),
		Flags:       r.Flags,
		Escalations: r.Escalations,
		Summary:     r.Summary,
		Notified:    r.Notified,
		Skipped:     r.Skipped,
	}
}

// FromStatusSummary converts workflow diagnostics.
func FromStatusSummary(summary workflow.StatusSummary) HealthResponse {
	resp := HealthResponse{
		Status:      "ok",
		Database:    "ok",
		LastError:   summary.LastError,
		LastSweep:   FormatTime(summary.LastSweep),
		StageHealth: StageHealthSlice(summary.StageHealth),
	}
	if len(summary.Pending) > 0 {
		resp.Pending = make(map[string]int, len(summary.Pending))
		for state, count := range summary.Pending {
			resp.Pending[string(state)] = count
		}
	}
	for _, h := range resp.StageHealth {
		if !h.Ready {
			resp.Status = "degraded"
		}
	}
	return resp
}

// StageHealthSlice orders stage health by name.
func StageHealthSlice(health map[string]stage.Health) []StageHealth {
	names := make([]string, 0, len(health))
	for name := range health {
		names = append(names, name)
	}
	slices.Sort(names)

	out := make([]StageHealth, 0, len(names))
	for _, name := range names {
		h := health[name]
		out = append(out, StageHealth{Name: name, Ready: h.Ready, Detail: h.Detail})
	}
	return out
}

// FormatTime converts a time to RFC3339 or returns empty string.
func FormatTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format(dateTimeFormat)
}

// Notification is the transport form of an in-app notification.
type Notification struct {
	ID          string         `json:"id"`
	RecipientID string         `json:"recipient_id"`
	Type        string         `json:"type"`
	Title       string         `json:"title"`
	Message     string         `json:"message"`
	Metadata    map[string]any `json:"metadata,omitempty"`
	CreatedAt   string         `json:"created_at,omitempty"`
}

// FromNotifications converts stored notifications.
func FromNotifications(items []store.Notification) []Notification {
	out := make([]Notification, 0, len(items))
	for _, n := range items {
		out = append(out, Notification{
			ID:          n.ID,
			RecipientID: n.RecipientID,
			Type:        n.Type,
			Title:       n.Title,
			Message:     n.Message,
			Metadata:    n.Metadata,
			CreatedAt:   FormatTime(n.CreatedAt),
		})
	}
	return out
}
