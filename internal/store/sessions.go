package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
)

const sessionColumns = "id, kind, recurring_id, tutor_id, learner_id, guardian_id, expected_speakers, state, summary, created_at, updated_at"

func scanSession(scanner interface{ Scan(dest ...any) error }) (*Session, error) {
	var (
		id          string
		kind        string
		recurringID sql.NullString
		tutorID     sql.NullString
		learnerID   sql.NullString
		guardianID  sql.NullString
		expected    sql.NullInt64
		state       sql.NullString
		summary     sql.NullString
		createdRaw  sql.NullString
		updatedRaw  sql.NullString
	)
	if err := scanner.Scan(
		&id,
		&kind,
		&recurringID,
		&tutorID,
		&learnerID,
		&guardianID,
		&expected,
		&state,
		&summary,
		&createdRaw,
		&updatedRaw,
	); err != nil {
		return nil, err
	}
	session := &Session{
		ID:               id,
		Kind:             SessionKind(kind),
		RecurringID:      recurringID.String,
		TutorID:          tutorID.String,
		LearnerID:        learnerID.String,
		GuardianID:       guardianID.String,
		ExpectedSpeakers: int(expected.Int64),
		State:            State(state.String),
		Summary:          summary.String,
		CreatedAt:        parseTimeString(createdRaw),
		UpdatedAt:        parseTimeString(updatedRaw),
	}
	if session.State == "" {
		session.State = StateCollecting
	}
	return session, nil
}

// UpsertSession creates a session or refreshes its participant data. The
// summary and finalization state of an existing session are left untouched.
func (s *Store) UpsertSession(ctx context.Context, session Session) (*Session, error) {
	session.ID = strings.TrimSpace(session.ID)
	if session.ID == "" {
		return nil, errors.New("session id is required")
	}
	if session.Kind == "" {
		session.Kind = KindTrial
	}
	timestamp := nowString()

	var conflict string
	if s.driver == DriverMySQL {
		conflict = `ON DUPLICATE KEY UPDATE
            kind = VALUES(kind), recurring_id = VALUES(recurring_id), tutor_id = VALUES(tutor_id),
            learner_id = VALUES(learner_id), guardian_id = VALUES(guardian_id),
            expected_speakers = VALUES(expected_speakers), updated_at = VALUES(updated_at)`
	} else {
		conflict = `ON CONFLICT(id) DO UPDATE SET
            kind = excluded.kind, recurring_id = excluded.recurring_id, tutor_id = excluded.tutor_id,
            learner_id = excluded.learner_id, guardian_id = excluded.guardian_id,
            expected_speakers = excluded.expected_speakers, updated_at = excluded.updated_at`
	}

	if _, err := s.execWithRetry(
		ctx,
		`INSERT INTO sessions (
            id, kind, recurring_id, tutor_id, learner_id, guardian_id,
            expected_speakers, state, summary, created_at, updated_at
        ) VALUES (?, ?, ?, ?, ?, ?, ?, ?, NULL, ?, ?) `+conflict,
		session.ID,
		string(session.Kind),
		nullableString(session.RecurringID),
		nullableString(session.TutorID),
		nullableString(session.LearnerID),
		nullableString(session.GuardianID),
		session.ExpectedSpeakers,
		string(StateCollecting),
		timestamp,
		timestamp,
	); err != nil {
		return nil, fmt.Errorf("upsert session: %w", err)
	}
	return s.GetSession(ctx, session.ID)
}

// GetSession fetches a session by identifier. It returns nil when absent.
func (s *Store) GetSession(ctx context.Context, id string) (*Session, error) {
	row := s.db.QueryRowContext(ensureContext(ctx), `SELECT `+sessionColumns+` FROM sessions WHERE id = ?`, id)
	session, err := scanSession(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get session: %w", err)
	}
	return session, nil
}

// SetSummary stores the summary only when none exists yet. It reports whether
// the row was written.
func (s *Store) SetSummary(ctx context.Context, id, summary string) (bool, error) {
	res, err := s.execWithRetry(
		ctx,
		`UPDATE sessions SET summary = ?, updated_at = ?
         WHERE id = ? AND (summary IS NULL OR summary = '')`,
		summary,
		nowString(),
		id,
	)
	if err != nil {
		return false, fmt.Errorf("set summary: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("set summary rows: %w", err)
	}
	return n > 0, nil
}

// TransitionState moves a session from one state to another when it is still
// in the expected state. It reports whether the transition happened.
func (s *Store) TransitionState(ctx context.Context, id string, from, to State) (bool, error) {
	res, err := s.execWithRetry(
		ctx,
		`UPDATE sessions SET state = ?, updated_at = ? WHERE id = ? AND state = ?`,
		string(to),
		nowString(),
		id,
		string(from),
	)
	if err != nil {
		return false, fmt.Errorf("transition %s -> %s: %w", from, to, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("transition rows: %w", err)
	}
	return n > 0, nil
}

// SessionsInStates lists sessions whose state is one of states, oldest update first.
func (s *Store) SessionsInStates(ctx context.Context, states ...State) ([]Session, error) {
	if len(states) == 0 {
		return nil, nil
	}
	args := make([]any, len(states))
	for i, st := range states {
		args[i] = string(st)
	}
	rows, err := s.db.QueryContext(
		ensureContext(ctx),
		`SELECT `+sessionColumns+` FROM sessions WHERE state IN (`+placeholders(len(states))+`) ORDER BY updated_at, id`,
		args...,
	)
	if err != nil {
		return nil, fmt.Errorf("list sessions: %w", err)
	}
	defer rows.Close()

	var sessions []Session
	for rows.Next() {
		session, err := scanSession(rows)
		if err != nil {
			return nil, fmt.Errorf("scan session: %w", err)
		}
		sessions = append(sessions, *session)
	}
	return sessions, rows.Err()
}

// MarkSpeakerIngested records that a speaker channel finished ingestion and
// returns the number of distinct speakers recorded for the session.
func (s *Store) MarkSpeakerIngested(ctx context.Context, sessionID, speakerID string) (int, error) {
	if _, err := s.execWithRetry(
		ctx,
		s.insertIgnore()+` INTO session_speakers (session_id, speaker_id, ingested_at) VALUES (?, ?, ?)`,
		sessionID,
		speakerID,
		nowString(),
	); err != nil {
		return 0, fmt.Errorf("mark speaker ingested: %w", err)
	}
	var count int
	if err := s.db.QueryRowContext(
		ensureContext(ctx),
		`SELECT COUNT(1) FROM session_speakers WHERE session_id = ?`,
		sessionID,
	).Scan(&count); err != nil {
		return 0, fmt.Errorf("count speakers: %w", err)
	}
	return count, nil
}
