package store

import (
	"context"
	"database/sql"
	"fmt"
)

// InsertFlag appends a safety flag and returns its identifier.
func (s *Store) InsertFlag(ctx context.Context, flag Flag) (int64, error) {
	res, err := s.execWithRetry(
		ctx,
		`INSERT INTO safety_flags (session_id, flag_type, severity, description, excerpt, resolved, created_at)
         VALUES (?, ?, ?, ?, ?, 0, ?)`,
		flag.SessionID,
		string(flag.Type),
		string(flag.Severity),
		flag.Description,
		nullableString(flag.Excerpt),
		nowString(),
	)
	if err != nil {
		return 0, fmt.Errorf("insert flag: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("last insert id: %w", err)
	}
	return id, nil
}

// ListFlags returns the flags recorded for a session in insertion order.
func (s *Store) ListFlags(ctx context.Context, sessionID string) ([]Flag, error) {
	rows, err := s.db.QueryContext(
		ensureContext(ctx),
		`SELECT id, session_id, flag_type, severity, description, excerpt, resolved, created_at
         FROM safety_flags WHERE session_id = ? ORDER BY id`,
		sessionID,
	)
	if err != nil {
		return nil, fmt.Errorf("list flags: %w", err)
	}
	defer rows.Close()

	var flags []Flag
	for rows.Next() {
		var (
			flag       Flag
			flagType   string
			severity   string
			excerpt    sql.NullString
			resolved   int64
			createdRaw sql.NullString
		)
		if err := rows.Scan(
			&flag.ID,
			&flag.SessionID,
			&flagType,
			&severity,
			&flag.Description,
			&excerpt,
			&resolved,
			&createdRaw,
		); err != nil {
			return nil, fmt.Errorf("scan flag: %w", err)
		}
		flag.Type = FlagType(flagType)
		flag.Severity = Severity(severity)
		flag.Excerpt = excerpt.String
		flag.Resolved = resolved != 0
		flag.CreatedAt = parseTimeString(createdRaw)
		flags = append(flags, flag)
	}
	return flags, rows.Err()
}

// UnresolvedFlagTypes returns the set of flag types with at least one
// unresolved row for the session.
func (s *Store) UnresolvedFlagTypes(ctx context.Context, sessionID string) (map[FlagType]bool, error) {
	rows, err := s.db.QueryContext(
		ensureContext(ctx),
		`SELECT DISTINCT flag_type FROM safety_flags WHERE session_id = ? AND resolved = 0`,
		sessionID,
	)
	if err != nil {
		return nil, fmt.Errorf("list unresolved flag types: %w", err)
	}
	defer rows.Close()

	types := make(map[FlagType]bool)
	for rows.Next() {
		var flagType string
		if err := rows.Scan(&flagType); err != nil {
			return nil, fmt.Errorf("scan flag type: %w", err)
		}
		types[FlagType(flagType)] = true
	}
	return types, rows.Err()
}
