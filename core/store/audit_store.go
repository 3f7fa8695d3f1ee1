package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"strings"
	"time"
)

type AuditEvent struct {
	ID         int64     `json:"id"`
	Username   string    `json:"username"`
	Action     string    `json:"action"`
	EntityType string    `json:"entity_type,omitempty"`
	EntityID   int64     `json:"entity_id,omitempty"`
	Metadata   string    `json:"metadata,omitempty"`
	CreatedAt  time.Time `json:"created_at"`
}

type AuditFilter struct {
	Username   string
	Action     string
	EntityType string
	Since      *time.Time
	Limit      int
	Offset     int
}

type AuditStore interface {
	Record(ctx context.Context, username, action, entityType string, entityID int64, meta map[string]any) error
	List(ctx context.Context, filter AuditFilter) ([]AuditEvent, int64, error)
	PurgeOlderThan(ctx context.Context, cutoff time.Time) (int64, error)
}

type auditStore struct {
	db *sql.DB
}

func NewAuditStore(db *sql.DB) AuditStore {
	return &auditStore{db: db}
}

func (s *auditStore) Record(ctx context.Context, username, action, entityType string, entityID int64, meta map[string]any) error {
	payload := "{}"
	if len(meta) > 0 {
		if b, err := json.Marshal(meta); err == nil {
			payload = string(b)
		}
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO audit_log(username, action, entity_type, entity_id, metadata, created_at)
		VALUES(?,?,?,?,?,?)`,
		username, action, entityType, entityID, payload, time.Now().UTC())
	return err
}

func (s *auditStore) List(ctx context.Context, filter AuditFilter) ([]AuditEvent, int64, error) {
	var clauses []string
	var args []any
	if filter.Username != "" {
		clauses = append(clauses, "username=?")
		args = append(args, filter.Username)
	}
	if filter.Action != "" {
		clauses = append(clauses, "action=?")
		args = append(args, filter.Action)
	}
	if filter.EntityType != "" {
		clauses = append(clauses, "entity_type=?")
		args = append(args, filter.EntityType)
	}
	if filter.Since != nil {
		clauses = append(clauses, "created_at >= ?")
		args = append(args, *filter.Since)
	}
	where := ""
	if len(clauses) > 0 {
		where = " WHERE " + strings.Join(clauses, " AND ")
	}
	var total int64
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(1) FROM audit_log`+where, args...).Scan(&total); err != nil {
		return nil, 0, err
	}
	query := `SELECT id, username, action, entity_type, entity_id, metadata, created_at FROM audit_log` +
		where + ` ORDER BY created_at DESC, id DESC`
	if filter.Limit > 0 {
		query += " LIMIT ? OFFSET ?"
		args = append(args, filter.Limit, filter.Offset)
	}
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()
	var out []AuditEvent
	for rows.Next() {
		var ev AuditEvent
		if err := rows.Scan(&ev.ID, &ev.Username, &ev.Action, &ev.EntityType, &ev.EntityID, &ev.Metadata, &ev.CreatedAt); err != nil {
			return nil, 0, err
		}
		out = append(out, ev)
	}
	return out, total, rows.Err()
}

func (s *auditStore) PurgeOlderThan(ctx context.Context, cutoff time.Time) (int64, error) {
	res, err := s.db.ExecContext(ctx, `DELETE FROM audit_log WHERE created_at < ?`, cutoff)
	if err != nil {
		return 0, err
	}
	n, _ := res.RowsAffected()
	return n, nil
}
