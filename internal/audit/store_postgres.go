package audit

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
)

// PostgresStore persists audit entries in Postgres.
type PostgresStore struct {
	db *sql.DB
}

// NewPostgresStore creates the store.
func NewPostgresStore(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

func (s *PostgresStore) Append(ctx context.Context, e Entry) error {
	var changes []byte
	if len(e.Changes) > 0 {
		var err error
		changes, err = json.Marshal(e.Changes)
		if err != nil {
			return err
		}
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO audit_log (id, ts, actor_name, action, target_type, target_id, target_name, changes)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8)
	`, e.ID, e.Timestamp, e.ActorName, e.Action, e.TargetType, e.TargetID, e.TargetName, changes)
	return err
}

func (s *PostgresStore) List(ctx context.Context, limit int, after *Cursor) ([]Entry, error) {
	query := `
		SELECT id, ts, actor_name, action, target_type, target_id, target_name, changes
		FROM audit_log`
	args := []any{}
	if after != nil {
		query += ` WHERE (ts, id) < ($1, $2)`
		args = append(args, after.Timestamp, after.ID)
	}
	query += ` ORDER BY ts DESC, id DESC LIMIT $` + itoa(len(args)+1)
	args = append(args, limit)

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var entries []Entry
	for rows.Next() {
		var e Entry
		var changes []byte
		if err := rows.Scan(&e.ID, &e.Timestamp, &e.ActorName, &e.Action, &e.TargetType, &e.TargetID, &e.TargetName, &changes); err != nil {
			return nil, err
		}
		if len(changes) > 0 {
			if err := json.Unmarshal(changes, &e.Changes); err != nil {
				return nil, err
			}
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

func (s *PostgresStore) DeleteBatch(ctx context.Context, limit int) (int, error) {
	res, err := s.db.ExecContext(ctx, `
		DELETE FROM audit_log
		WHERE id IN (SELECT id FROM audit_log ORDER BY ts LIMIT $1)
	`, limit)
	if err != nil {
		return 0, err
	}
	n, err := res.RowsAffected()
	return int(n), err
}

func itoa(i int) string { return fmt.Sprintf("%d", i) }
