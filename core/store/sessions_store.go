package store

import (
	"context"
	"database/sql"
	"time"
)

type SessionRecord struct {
	ID           string    `json:"id"`
	UserID       int64     `json:"user_id"`
	Username     string    `json:"username"`
	Role         string    `json:"role"`
	DepartmentID *int64    `json:"department_id,omitempty"`
	CSRFToken    string    `json:"-"`
	IP           string    `json:"ip,omitempty"`
	UserAgent    string    `json:"user_agent,omitempty"`
	CreatedAt    time.Time `json:"created_at"`
	LastSeenAt   time.Time `json:"last_seen_at"`
	ExpiresAt    time.Time `json:"expires_at"`
}

type SessionsStore interface {
	SaveSession(ctx context.Context, sr *SessionRecord) error
	GetSession(ctx context.Context, id string) (*SessionRecord, error)
	DeleteSession(ctx context.Context, id string) error
	DeleteUserSessions(ctx context.Context, userID int64) error
	UpdateActivity(ctx context.Context, id string, seenAt, expiresAt time.Time) error
	PurgeExpired(ctx context.Context, now time.Time) (int64, error)
}

type sessionsStore struct {
	db *sql.DB
}

func NewSessionsStore(db *sql.DB) SessionsStore {
	return &sessionsStore{db: db}
}

func (s *sessionsStore) SaveSession(ctx context.Context, sr *SessionRecord) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO sessions(id, user_id, username, role, department_id, csrf_token, ip, user_agent, created_at, last_seen_at, expires_at)
		VALUES(?,?,?,?,?,?,?,?,?,?,?)`,
		sr.ID, sr.UserID, sr.Username, sr.Role, nullableID(sr.DepartmentID), sr.CSRFToken,
		sr.IP, sr.UserAgent, sr.CreatedAt, sr.LastSeenAt, sr.ExpiresAt)
	return err
}

func (s *sessionsStore) GetSession(ctx context.Context, id string) (*SessionRecord, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, user_id, username, role, department_id, csrf_token, ip, user_agent, created_at, last_seen_at, expires_at
		FROM sessions WHERE id=?`, id)
	var sr SessionRecord
	var dept sql.NullInt64
	err := row.Scan(&sr.ID, &sr.UserID, &sr.Username, &sr.Role, &dept, &sr.CSRFToken,
		&sr.IP, &sr.UserAgent, &sr.CreatedAt, &sr.LastSeenAt, &sr.ExpiresAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	sr.DepartmentID = scanNullID(dept)
	return &sr, nil
}

func (s *sessionsStore) DeleteSession(ctx context.Context, id string) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM sessions WHERE id=?`, id)
	return err
}

func (s *sessionsStore) DeleteUserSessions(ctx context.Context, userID int64) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM sessions WHERE user_id=?`, userID)
	return err
}

func (s *sessionsStore) UpdateActivity(ctx context.Context, id string, seenAt, expiresAt time.Time) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE sessions SET last_seen_at=?, expires_at=? WHERE id=?`, seenAt, expiresAt, id)
	if err != nil {
		return err
	}
	if affected, _ := res.RowsAffected(); affected == 0 {
		return sql.ErrNoRows
	}
	return nil
}

func (s *sessionsStore) PurgeExpired(ctx context.Context, now time.Time) (int64, error) {
	res, err := s.db.ExecContext(ctx, `DELETE FROM sessions WHERE expires_at < ?`, now)
	if err != nil {
		return 0, err
	}
	n, _ := res.RowsAffected()
	return n, nil
}
