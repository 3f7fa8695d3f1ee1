package store

import (
	"context"
	"database/sql"
	"strings"
	"time"
)

type MaintenanceSchedule struct {
	ID                  int64      `json:"id"`
	AssetID             int64      `json:"asset_id"`
	DocumentType        string     `json:"document_type"`
	FrequencyUnit       string     `json:"frequency_unit"`
	FrequencyMultiplier int        `json:"frequency_multiplier"`
	NextDue             *time.Time `json:"next_due,omitempty"`
	LastDone            *time.Time `json:"last_done,omitempty"`
	Active              bool       `json:"active"`
	CreatedAt           time.Time  `json:"created_at"`
	UpdatedAt           time.Time  `json:"updated_at"`
}

type MaintenanceRecord struct {
	ID          int64      `json:"id"`
	AssetID     int64      `json:"asset_id"`
	ScheduleID  *int64     `json:"schedule_id,omitempty"`
	ChecklistID *int64     `json:"checklist_id,omitempty"`
	RecordType  string     `json:"record_type"`
	PerformedBy int64      `json:"performed_by"`
	StartedAt   time.Time  `json:"started_at"`
	CompletedAt *time.Time `json:"completed_at,omitempty"`
	Status      string     `json:"status"`
	Findings    string     `json:"findings,omitempty"`
	CreatedAt   time.Time  `json:"created_at"`
}

type ScheduleFilter struct {
	AssetID      *int64
	DepartmentID *int64
	DocumentType string
	ActiveOnly   bool
	DueBefore    *time.Time
	Limit        int
	Offset       int
}

type SchedulesStore interface {
	CreateSchedule(ctx context.Context, ms *MaintenanceSchedule) (int64, error)
	GetSchedule(ctx context.Context, id int64) (*MaintenanceSchedule, error)
	ListSchedules(ctx context.Context, filter ScheduleFilter) ([]MaintenanceSchedule, int64, error)
	UpdateSchedule(ctx context.Context, ms *MaintenanceSchedule) error
	DeactivateSchedule(ctx context.Context, id int64) error
	CompleteMaintenance(ctx context.Context, scheduleID int64, rec *MaintenanceRecord, nextDue time.Time) error
	ListRecords(ctx context.Context, assetID int64, limit int) ([]MaintenanceRecord, error)
}

type schedulesStore struct {
	db *sql.DB
}

func NewSchedulesStore(db *sql.DB) SchedulesStore {
	return &schedulesStore{db: db}
}

const scheduleColumns = `id, asset_id, document_type, frequency_unit, frequency_multiplier, next_due, last_done, active, created_at, updated_at`

func (s *schedulesStore) CreateSchedule(ctx context.Context, ms *MaintenanceSchedule) (int64, error) {
	ms.DocumentType = strings.ToLower(strings.TrimSpace(ms.DocumentType))
	var exists int
	err := s.db.QueryRowContext(ctx, `
		SELECT COUNT(1) FROM maintenance_schedules
		WHERE asset_id=? AND document_type=? AND active=1`,
		ms.AssetID, ms.DocumentType).Scan(&exists)
	if err != nil {
		return 0, err
	}
	if exists > 0 {
		return 0, ErrConflict
	}
	now := time.Now().UTC()
	res, err := s.db.ExecContext(ctx, `
		INSERT INTO maintenance_schedules(asset_id, document_type, frequency_unit, frequency_multiplier, next_due, last_done, active, created_at, updated_at)
		VALUES(?,?,?,?,?,?,?,?,?)`,
		ms.AssetID, ms.DocumentType, ms.FrequencyUnit, ms.FrequencyMultiplier,
		nullableTime(ms.NextDue), nullableTime(ms.LastDone), 1, now, now)
	if err != nil {
		if isUniqueViolation(err) {
			return 0, ErrConflict
		}
		return 0, err
	}
	id, _ := res.LastInsertId()
	ms.ID = id
	ms.Active = true
	ms.CreatedAt = now
	ms.UpdatedAt = now
	return id, nil
}

func (s *schedulesStore) GetSchedule(ctx context.Context, id int64) (*MaintenanceSchedule, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+scheduleColumns+` FROM maintenance_schedules WHERE id=?`, id)
	return scanSchedule(row)
}

func (s *schedulesStore) ListSchedules(ctx context.Context, filter ScheduleFilter) ([]MaintenanceSchedule, int64, error) {
	var clauses []string
	var args []any
	if filter.ActiveOnly {
		clauses = append(clauses, "s.active=1")
	}
	if filter.AssetID != nil {
		clauses = append(clauses, "s.asset_id=?")
		args = append(args, *filter.AssetID)
	}
	if filter.DepartmentID != nil {
		clauses = append(clauses, "a.department_id=?")
		args = append(args, *filter.DepartmentID)
	}
	if filter.DocumentType != "" {
		clauses = append(clauses, "s.document_type=?")
		args = append(args, strings.ToLower(filter.DocumentType))
	}
	if filter.DueBefore != nil {
		clauses = append(clauses, "s.next_due IS NOT NULL AND s.next_due < ?")
		args = append(args, *filter.DueBefore)
	}
	where := ""
	if len(clauses) > 0 {
		where = " WHERE " + strings.Join(clauses, " AND ")
	}
	base := ` FROM maintenance_schedules s JOIN assets a ON a.id = s.asset_id` + where
	var total int64
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(1)`+base, args...).Scan(&total); err != nil {
		return nil, 0, err
	}
	query := `SELECT s.id, s.asset_id, s.document_type, s.frequency_unit, s.frequency_multiplier, s.next_due, s.last_done, s.active, s.created_at, s.updated_at` +
		base + ` ORDER BY s.next_due IS NULL, s.next_due, s.id`
	if filter.Limit > 0 {
		query += " LIMIT ? OFFSET ?"
		args = append(args, filter.Limit, filter.Offset)
	}
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()
	var out []MaintenanceSchedule
	for rows.Next() {
		ms, err := scanSchedule(rows)
		if err != nil {
			return nil, 0, err
		}
		out = append(out, *ms)
	}
	return out, total, rows.Err()
}

func (s *schedulesStore) UpdateSchedule(ctx context.Context, ms *MaintenanceSchedule) error {
	now := time.Now().UTC()
	res, err := s.db.ExecContext(ctx, `
		UPDATE maintenance_schedules
		SET frequency_unit=?, frequency_multiplier=?, next_due=?, updated_at=?
		WHERE id=? AND active=1`,
		ms.FrequencyUnit, ms.FrequencyMultiplier, nullableTime(ms.NextDue), now, ms.ID)
	if err != nil {
		return err
	}
	if affected, _ := res.RowsAffected(); affected == 0 {
		return sql.ErrNoRows
	}
	ms.UpdatedAt = now
	return nil
}

func (s *schedulesStore) DeactivateSchedule(ctx context.Context, id int64) error {
	res, err := s.db.ExecContext(ctx, `
		UPDATE maintenance_schedules SET active=0, updated_at=? WHERE id=? AND active=1`,
		time.Now().UTC(), id)
	if err != nil {
		return err
	}
	if affected, _ := res.RowsAffected(); affected == 0 {
		return ErrConflict
	}
	return nil
}

// CompleteMaintenance records a performed maintenance and rolls the schedule
// forward in one transaction; the schedule keeps its previous due date if the
// record insert fails.
func (s *schedulesStore) CompleteMaintenance(ctx context.Context, scheduleID int64, rec *MaintenanceRecord, nextDue time.Time) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	now := time.Now().UTC()
	res, err := tx.ExecContext(ctx, `
		INSERT INTO maintenance_records(asset_id, schedule_id, checklist_id, record_type, performed_by, started_at, completed_at, status, findings, created_at)
		VALUES(?,?,?,?,?,?,?,?,?,?)`,
		rec.AssetID, scheduleID, nullableID(rec.ChecklistID), rec.RecordType, rec.PerformedBy,
		rec.StartedAt, nullableTime(rec.CompletedAt), rec.Status, rec.Findings, now)
	if err != nil {
		tx.Rollback()
		return err
	}
	recID, _ := res.LastInsertId()
	rec.ID = recID
	rec.CreatedAt = now
	upd, err := tx.ExecContext(ctx, `
		UPDATE maintenance_schedules SET last_done=?, next_due=?, updated_at=?
		WHERE id=? AND active=1`,
		nullableTime(rec.CompletedAt), nextDue, now, scheduleID)
	if err != nil {
		tx.Rollback()
		return err
	}
	if affected, _ := upd.RowsAffected(); affected == 0 {
		tx.Rollback()
		return ErrConflict
	}
	return tx.Commit()
}

func (s *schedulesStore) ListRecords(ctx context.Context, assetID int64, limit int) ([]MaintenanceRecord, error) {
	query := `
		SELECT id, asset_id, schedule_id, checklist_id, record_type, performed_by, started_at, completed_at, status, findings, created_at
		FROM maintenance_records WHERE asset_id=? ORDER BY created_at DESC, id DESC`
	args := []any{assetID}
	if limit > 0 {
		query += " LIMIT ?"
		args = append(args, limit)
	}
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []MaintenanceRecord
	for rows.Next() {
		var r MaintenanceRecord
		var scheduleID, checklistID sql.NullInt64
		var completedAt sql.NullTime
		if err := rows.Scan(&r.ID, &r.AssetID, &scheduleID, &checklistID, &r.RecordType,
			&r.PerformedBy, &r.StartedAt, &completedAt, &r.Status, &r.Findings, &r.CreatedAt); err != nil {
			return nil, err
		}
		r.ScheduleID = scanNullID(scheduleID)
		r.ChecklistID = scanNullID(checklistID)
		r.CompletedAt = scanNullTime(completedAt)
		out = append(out, r)
	}
	return out, rows.Err()
}

func scanSchedule(sc rowScanner) (*MaintenanceSchedule, error) {
	var ms MaintenanceSchedule
	var nextDue, lastDone sql.NullTime
	err := sc.Scan(&ms.ID, &ms.AssetID, &ms.DocumentType, &ms.FrequencyUnit, &ms.FrequencyMultiplier,
		&nextDue, &lastDone, &ms.Active, &ms.CreatedAt, &ms.UpdatedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	ms.NextDue = scanNullTime(nextDue)
	ms.LastDone = scanNullTime(lastDone)
	return &ms, nil
}
