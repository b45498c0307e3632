package store

import (
	"context"
	"database/sql"
	"fmt"
)

// InsertSegments writes all segments in a single transaction. Callers bound
// transaction size by batching.
func (s *Store) InsertSegments(ctx context.Context, segments []Segment) error {
	if len(segments) == 0 {
		return nil
	}
	ctx = ensureContext(ctx)
	timestamp := nowString()
	err := s.inTx(ctx, func(tx *sql.Tx) error {
		stmt, err := tx.PrepareContext(ctx,
			`INSERT INTO segments (session_id, speaker_id, start_time, end_time, text, confidence, created_at)
             VALUES (?, ?, ?, ?, ?, ?, ?)`)
		if err != nil {
			return err
		}
		defer stmt.Close()
		for _, seg := range segments {
			var confidence any
			if seg.Confidence != nil {
				confidence = *seg.Confidence
			}
			if _, err := stmt.ExecContext(ctx,
				seg.SessionID,
				seg.SpeakerID,
				seg.StartTime,
				seg.EndTime,
				seg.Text,
				confidence,
				timestamp,
			); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("insert segments: %w", err)
	}
	return nil
}

// ListSegments returns every segment of a session ordered by start time, with
// insertion order breaking ties.
func (s *Store) ListSegments(ctx context.Context, sessionID string) ([]Segment, error) {
	rows, err := s.db.QueryContext(
		ensureContext(ctx),
		`SELECT id, session_id, speaker_id, start_time, end_time, text, confidence, created_at
         FROM segments WHERE session_id = ? ORDER BY start_time, id`,
		sessionID,
	)
	if err != nil {
		return nil, fmt.Errorf("list segments: %w", err)
	}
	defer rows.Close()

	var segments []Segment
	for rows.Next() {
		var (
			seg        Segment
			confidence sql.NullFloat64
			createdRaw sql.NullString
		)
		if err := rows.Scan(
			&seg.ID,
			&seg.SessionID,
			&seg.SpeakerID,
			&seg.StartTime,
			&seg.EndTime,
			&seg.Text,
			&confidence,
			&createdRaw,
		); err != nil {
			return nil, fmt.Errorf("scan segment: %w", err)
		}
		if confidence.Valid {
			value := confidence.Float64
			seg.Confidence = &value
		}
		seg.CreatedAt = parseTimeString(createdRaw)
		segments = append(segments, seg)
	}
	return segments, rows.Err()
}

// HasSegments reports whether a speaker already has stored segments for a session.
func (s *Store) HasSegments(ctx context.Context, sessionID, speakerID string) (bool, error) {
	var exists int
	err := s.db.QueryRowContext(
		ensureContext(ctx),
		`SELECT COUNT(1) FROM segments WHERE session_id = ? AND speaker_id = ?`,
		sessionID,
		speakerID,
	).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("check segments: %w", err)
	}
	return exists > 0, nil
}
