package store

import (
	"context"
	"fmt"
	"strings"
)

// UpsertAccount creates or re-roles an account.
func (s *Store) UpsertAccount(ctx context.Context, account Account) error {
	account.ID = strings.TrimSpace(account.ID)
	if account.ID == "" {
		return fmt.Errorf("account id is required")
	}
	conflict := `ON CONFLICT(id) DO UPDATE SET role = excluded.role`
	if s.driver == DriverMySQL {
		conflict = `ON DUPLICATE KEY UPDATE role = VALUES(role)`
	}
	if _, err := s.execWithRetry(
		ctx,
		`INSERT INTO accounts (id, role) VALUES (?, ?) `+conflict,
		account.ID,
		string(account.Role),
	); err != nil {
		return fmt.Errorf("upsert account: %w", err)
	}
	return nil
}

// OperatorIDs returns the identifiers of every operator and administrator account.
func (s *Store) OperatorIDs(ctx context.Context) ([]string, error) {
	rows, err := s.db.QueryContext(
		ensureContext(ctx),
		`SELECT id FROM accounts WHERE role IN (?, ?) ORDER BY id`,
		string(RoleOperator),
		string(RoleAdmin),
	)
	if err != nil {
		return nil, fmt.Errorf("list operators: %w", err)
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scan operator: %w", err)
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}
