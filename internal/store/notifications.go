package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/google/uuid"
)

// InsertNotification appends a notification record. An empty ID is replaced
// with a random UUID; the stored record is returned.
func (s *Store) InsertNotification(ctx context.Context, n Notification) (*Notification, error) {
	if strings.TrimSpace(n.ID) == "" {
		n.ID = uuid.NewString()
	}
	var metadata any
	if len(n.Metadata) > 0 {
		encoded, err := json.Marshal(n.Metadata)
		if err != nil {
			return nil, fmt.Errorf("marshal notification metadata: %w", err)
		}
		metadata = string(encoded)
	}
	timestamp := nowString()
	if _, err := s.execWithRetry(
		ctx,
		`INSERT INTO notifications (id, recipient_id, session_id, type, title, message, metadata_json, created_at)
         VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		n.ID,
		n.RecipientID,
		n.SessionID,
		n.Type,
		n.Title,
		n.Message,
		metadata,
		timestamp,
	); err != nil {
		return nil, fmt.Errorf("insert notification: %w", err)
	}
	n.CreatedAt = parseTimeString(sql.NullString{String: timestamp, Valid: true})
	return &n, nil
}

// NotifiedRecipients returns the recipients that already hold a notification
// of the given type for the session.
func (s *Store) NotifiedRecipients(ctx context.Context, notificationType, sessionID string) (map[string]bool, error) {
	rows, err := s.db.QueryContext(
		ensureContext(ctx),
		`SELECT DISTINCT recipient_id FROM notifications WHERE type = ? AND session_id = ?`,
		notificationType,
		sessionID,
	)
	if err != nil {
		return nil, fmt.Errorf("notified recipients: %w", err)
	}
	defer rows.Close()

	notified := make(map[string]bool)
	for rows.Next() {
		var recipient string
		if err := rows.Scan(&recipient); err != nil {
			return nil, fmt.Errorf("scan recipient: %w", err)
		}
		notified[recipient] = true
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate recipients: %w", err)
	}
	return notified, nil
}

// ListNotifications returns the notifications referencing a session, oldest first.
func (s *Store) ListNotifications(ctx context.Context, sessionID string) ([]Notification, error) {
	rows, err := s.db.QueryContext(
		ensureContext(ctx),
		`SELECT id, recipient_id, session_id, type, title, message, metadata_json, created_at
         FROM notifications WHERE session_id = ? ORDER BY created_at, recipient_id`,
		sessionID,
	)
	if err != nil {
		return nil, fmt.Errorf("list notifications: %w", err)
	}
	defer rows.Close()

	var out []Notification
	for rows.Next() {
		var (
			n          Notification
			metadata   sql.NullString
			createdRaw sql.NullString
		)
		if err := rows.Scan(
			&n.ID,
			&n.RecipientID,
			&n.SessionID,
			&n.Type,
			&n.Title,
			&n.Message,
			&metadata,
			&createdRaw,
		); err != nil {
			return nil, fmt.Errorf("scan notification: %w", err)
		}
		if metadata.Valid && metadata.String != "" {
			if err := json.Unmarshal([]byte(metadata.String), &n.Metadata); err != nil {
				return nil, fmt.Errorf("decode notification metadata %s: %w", n.ID, err)
			}
		}
		n.CreatedAt = parseTimeString(createdRaw)
		out = append(out, n)
	}
	return out, rows.Err()
}
