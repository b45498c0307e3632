package store

import "time"

// SessionKind distinguishes one-off trials from recurring engagements.
type SessionKind string

const (
	KindTrial     SessionKind = "trial"
	KindRecurring SessionKind = "recurring"
)

// State is the per-session finalization marker.
type State string

const (
	StateCollecting       State = "collecting"
	StateReadyToAggregate State = "ready_to_aggregate"
	StateAggregated       State = "aggregated"
	StateAnalyzed         State = "analyzed"
	StateSummarized       State = "summarized"
	StateNotified         State = "notified"
)

// PendingStates lists the states a sweep should pick up.
var PendingStates = []State{StateReadyToAggregate, StateAggregated, StateAnalyzed, StateSummarized}

// Session is a tutoring session and its participants.
type Session struct {
	ID               string
	Kind             SessionKind
	RecurringID      string
	TutorID          string
	LearnerID        string
	GuardianID       string
	ExpectedSpeakers int
	State            State
	Summary          string
	CreatedAt        time.Time
	UpdatedAt        time.Time
}

// IsRecurring reports whether the session belongs to an ongoing engagement.
func (s Session) IsRecurring() bool {
	return s.Kind == KindRecurring && s.RecurringID != ""
}

// Participants returns the distinct non-empty participant identities in
// tutor, learner, guardian order.
func (s Session) Participants() []string {
	seen := make(map[string]struct{}, 3)
	out := make([]string, 0, 3)
	for _, id := range []string{s.TutorID, s.LearnerID, s.GuardianID} {
		if id == "" {
			continue
		}
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out
}

// Segment is a time-bounded unit of transcribed speech for one speaker.
type Segment struct {
	ID         int64
	SessionID  string
	SpeakerID  string
	StartTime  float64
	EndTime    float64
	Text       string
	Confidence *float64
	CreatedAt  time.Time
}

// Severity governs escalation behaviour of a safety flag.
type Severity string

const (
	SeverityCritical Severity = "critical"
	SeverityHigh     Severity = "high"
	SeverityMedium   Severity = "medium"
	SeverityLow      Severity = "low"
)

// FlagType enumerates safety detector outcomes.
type FlagType string

const (
	FlagPaymentBypass  FlagType = "payment_bypass_attempt"
	FlagInappropriate  FlagType = "inappropriate_language"
	FlagContactInfo    FlagType = "contact_information_shared"
	FlagSessionQuality FlagType = "session_quality_issue"
)

// Flag is a persisted safety finding.
type Flag struct {
	ID          int64
	SessionID   string
	Type        FlagType
	Severity    Severity
	Description string
	Excerpt     string
	Resolved    bool
	CreatedAt   time.Time
}

// Notification is a delivery artifact for a single recipient.
type Notification struct {
	ID          string
	RecipientID string
	SessionID   string
	Type        string
	Title       string
	Message     string
	Metadata    map[string]any
	CreatedAt   time.Time
}

// Role classifies accounts for escalation routing.
type Role string

const (
	RoleOperator Role = "operator"
	RoleAdmin    Role = "admin"
	RoleTutor    Role = "tutor"
	RoleLearner  Role = "learner"
	RoleGuardian Role = "guardian"
)

// Account is a platform identity with a role.
type Account struct {
	ID   string
	Role Role
}
