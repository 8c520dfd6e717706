package registration

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"

	"regdesk/internal/participant"
)

// PostgresStore persists surveys and responses in Postgres.
type PostgresStore struct {
	db *sql.DB
}

// NewPostgresStore creates the store.
func NewPostgresStore(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

func (s *PostgresStore) GetSurvey(ctx context.Context, id string) (*Survey, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, title, active FROM surveys WHERE id = $1
	`, id)
	var sv Survey
	if err := row.Scan(&sv.ID, &sv.Title, &sv.Active); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return &sv, nil
}

// CreateRegistration inserts the participant and the response in one
// transaction. A personal-code unique violation rolls the whole pair back
// and surfaces as ErrCodeTaken.
func (s *PostgresStore) CreateRegistration(ctx context.Context, p *participant.Participant, r *Response) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	now := time.Now().UTC()
	if p.ID == "" {
		p.ID = uuid.NewString()
	}
	p.CreatedAt = now
	p.UpdatedAt = now
	if _, err := tx.ExecContext(ctx, `
		INSERT INTO participants (id, name, email, phone, group_name, room, paid, memo, lookup_key, created_at, updated_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11)
	`, p.ID, p.Name, p.Email, p.Phone, p.GroupName, p.Room, p.Paid, p.Memo, p.LookupKey, p.CreatedAt, p.UpdatedAt); err != nil {
		return err
	}

	if r.ID == "" {
		r.ID = uuid.NewString()
	}
	r.ParticipantID = p.ID
	r.CreatedAt = now
	r.UpdatedAt = now
	data, err := json.Marshal(r.SubmittedData)
	if err != nil {
		return err
	}
	if _, err := tx.ExecContext(ctx, `
		INSERT INTO registration_responses (id, survey_id, personal_code, participant_id, submitted_data, created_at, updated_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7)
	`, r.ID, r.SurveyID, r.PersonalCode, r.ParticipantID, data, r.CreatedAt, r.UpdatedAt); err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return ErrCodeTaken
		}
		return err
	}

	return tx.Commit()
}

const responseColumns = `id, survey_id, personal_code, participant_id, submitted_data, created_at, updated_at`

func (s *PostgresStore) GetByCode(ctx context.Context, code string) (*Response, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT `+responseColumns+`
		FROM registration_responses WHERE personal_code = $1
	`, code)
	return scanResponse(row)
}

func (s *PostgresStore) FindByEmail(ctx context.Context, surveyID, email string) (*Response, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT `+responseColumns+`
		FROM registration_responses r
		WHERE r.survey_id = $1
		  AND EXISTS (
			SELECT 1 FROM participants p
			WHERE p.id = r.participant_id AND lower(p.email) = lower($2)
		  )
		ORDER BY r.created_at DESC
		LIMIT 1
	`, surveyID, email)
	return scanResponse(row)
}

func (s *PostgresStore) UpdateResponse(ctx context.Context, id string, data map[string]any) error {
	raw, err := json.Marshal(data)
	if err != nil {
		return err
	}
	_, err = s.db.ExecContext(ctx, `
		UPDATE registration_responses
		SET submitted_data = $2, updated_at = NOW()
		WHERE id = $1
	`, id, raw)
	return err
}

func scanResponse(row *sql.Row) (*Response, error) {
	var r Response
	var data []byte
	if err := row.Scan(&r.ID, &r.SurveyID, &r.PersonalCode, &r.ParticipantID, &data, &r.CreatedAt, &r.UpdatedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	if len(data) > 0 {
		if err := json.Unmarshal(data, &r.SubmittedData); err != nil {
			return nil, err
		}
	}
	return &r, nil
}
