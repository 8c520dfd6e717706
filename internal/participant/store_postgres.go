package participant

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"
)

// PostgresStore persists participants in Postgres. Session atomicity comes
// from single-statement updates plus the partial unique index
// checkin_sessions_one_open_idx (participant_id WHERE check_out_time IS
// NULL): a second concurrent open hits a unique violation.
type PostgresStore struct {
	db *sql.DB
}

// NewPostgresStore creates the store.
func NewPostgresStore(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

const participantColumns = `id, name, email, phone, group_name, room, paid, memo, lookup_key, created_at, updated_at`

func (s *PostgresStore) Get(ctx context.Context, id string) (*Participant, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT `+participantColumns+`
		FROM participants WHERE id = $1
	`, id)
	return s.scanWithSessions(ctx, row)
}

func (s *PostgresStore) FindByKey(ctx context.Context, key string) (*Participant, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT `+participantColumns+`
		FROM participants WHERE lookup_key = $1
		ORDER BY created_at
		LIMIT 1
	`, key)
	return s.scanWithSessions(ctx, row)
}

func (s *PostgresStore) scanWithSessions(ctx context.Context, row *sql.Row) (*Participant, error) {
	var p Participant
	err := row.Scan(&p.ID, &p.Name, &p.Email, &p.Phone, &p.GroupName, &p.Room, &p.Paid, &p.Memo, &p.LookupKey, &p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	sessions, err := s.sessions(ctx, p.ID)
	if err != nil {
		return nil, err
	}
	p.Sessions = sessions
	return &p, nil
}

func (s *PostgresStore) sessions(ctx context.Context, participantID string) ([]CheckInSession, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, check_in_time, check_out_time
		FROM checkin_sessions
		WHERE participant_id = $1
		ORDER BY check_in_time
	`, participantID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var sessions []CheckInSession
	for rows.Next() {
		var cs CheckInSession
		if err := rows.Scan(&cs.ID, &cs.CheckInTime, &cs.CheckOutTime); err != nil {
			return nil, err
		}
		sessions = append(sessions, cs)
	}
	return sessions, rows.Err()
}

func (s *PostgresStore) Create(ctx context.Context, p *Participant) error {
	if p.ID == "" {
		p.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	p.CreatedAt = now
	p.UpdatedAt = now
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO participants (id, name, email, phone, group_name, room, paid, memo, lookup_key, created_at, updated_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11)
	`, p.ID, p.Name, p.Email, p.Phone, p.GroupName, p.Room, p.Paid, p.Memo, p.LookupKey, p.CreatedAt, p.UpdatedAt)
	return err
}

func (s *PostgresStore) UpdateAssignment(ctx context.Context, id string, group, room *string) error {
	_, err := s.db.ExecContext(ctx, `
		UPDATE participants
		SET group_name = COALESCE($2, group_name),
		    room = COALESCE($3, room),
		    updated_at = NOW()
		WHERE id = $1
	`, id, group, room)
	return err
}

func (s *PostgresStore) CloseOpenSession(ctx context.Context, participantID string, at time.Time) (*CheckInSession, error) {
	row := s.db.QueryRowContext(ctx, `
		UPDATE checkin_sessions
		SET check_out_time = $2
		WHERE participant_id = $1 AND check_out_time IS NULL
		RETURNING id, check_in_time, check_out_time
	`, participantID, at)
	var cs CheckInSession
	if err := row.Scan(&cs.ID, &cs.CheckInTime, &cs.CheckOutTime); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return &cs, nil
}

func (s *PostgresStore) OpenSession(ctx context.Context, participantID string, at time.Time) (*CheckInSession, error) {
	cs := CheckInSession{ID: uuid.NewString(), CheckInTime: at}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO checkin_sessions (id, participant_id, check_in_time)
		VALUES ($1,$2,$3)
	`, cs.ID, participantID, cs.CheckInTime)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return nil, ErrSessionOpen
		}
		return nil, err
	}
	return &cs, nil
}
