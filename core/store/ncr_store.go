package store

import (
	"context"
	"database/sql"
	"strings"
	"time"

	"helix-qms/core/ncr"
)

type NCR struct {
	ID               int64      `json:"id"`
	Number           string     `json:"number"`
	ChecklistItemID  *int64     `json:"checklist_item_id,omitempty"`
	AssetID          *int64     `json:"asset_id,omitempty"`
	DepartmentID     int64      `json:"department_id"`
	Description      string     `json:"description"`
	RaisedBy         int64      `json:"raised_by"`
	AssignedTo       *int64     `json:"assigned_to,omitempty"`
	Status           string     `json:"status"`
	Severity         string     `json:"severity"`
	DueDate          time.Time  `json:"due_date"`
	RootCause        string     `json:"root_cause,omitempty"`
	CorrectiveAction string     `json:"corrective_action,omitempty"`
	PreventiveAction string     `json:"preventive_action,omitempty"`
	Evidence         string     `json:"evidence,omitempty"`
	CompletedDate    *time.Time `json:"completed_date,omitempty"`
	CreatedAt        time.Time  `json:"created_at"`
	UpdatedAt        time.Time  `json:"updated_at"`
	DeletedAt        *time.Time `json:"deleted_at,omitempty"`
}

type NCRAction struct {
	ID          int64     `json:"id"`
	NCRID       int64     `json:"ncr_id"`
	ActionType  string    `json:"action_type"`
	Description string    `json:"description"`
	AssignedTo  *int64    `json:"assigned_to,omitempty"`
	DueDate     time.Time `json:"due_date"`
	Status      string    `json:"status"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

type NCRFilter struct {
	DepartmentID *int64
	AssetID      *int64
	Status       string
	Severity     string
	AssignedTo   *int64
	Search       string
	Limit        int
	Offset       int
}

// NCRUpdate carries a partial update; nil fields stay untouched.
type NCRUpdate struct {
	Description      *string
	Severity         *string
	AssignedTo       *int64
	RootCause        *string
	CorrectiveAction *string
	PreventiveAction *string
	Evidence         *string
}

type NCRStore interface {
	CreateNCR(ctx context.Context, n *NCR, numberFormat string, autoAction *NCRAction) (int64, error)
	GetNCR(ctx context.Context, id int64) (*NCR, error)
	GetNCRByNumber(ctx context.Context, number string) (*NCR, error)
	ListNCRs(ctx context.Context, filter NCRFilter) ([]NCR, int64, error)
	UpdateNCR(ctx context.Context, id int64, upd NCRUpdate) error
	SetNCRStatus(ctx context.Context, id int64, status string, completedDate *time.Time) error
	SoftDeleteNCR(ctx context.Context, id int64) error

	CreateAction(ctx context.Context, a *NCRAction) (int64, error)
	GetAction(ctx context.Context, id int64) (*NCRAction, error)
	ListActions(ctx context.Context, ncrID int64) ([]NCRAction, error)
	UpdateActionStatus(ctx context.Context, id int64, status string) error

	CountByStatus(ctx context.Context, departmentID *int64, statuses []string) (int64, error)
}

type ncrStore struct {
	db *sql.DB
}

func NewNCRStore(db *sql.DB) NCRStore {
	return &ncrStore{db: db}
}

const ncrColumns = `id, number, checklist_item_id, asset_id, department_id, description, raised_by, assigned_to, status, severity, due_date, root_cause, corrective_action, preventive_action, evidence, completed_date, created_at, updated_at, deleted_at`

// CreateNCR allocates the year-scoped number, inserts the report and the
// optional follow-up action atomically. Concurrent creates never share a
// sequence value because the counter row is bumped inside the transaction.
func (s *ncrStore) CreateNCR(ctx context.Context, n *NCR, numberFormat string, autoAction *NCRAction) (int64, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, err
	}
	now := time.Now().UTC()
	if strings.TrimSpace(n.Number) == "" {
		year := now.Year()
		seq, err := s.nextNCRSeqTx(ctx, tx, year)
		if err != nil {
			tx.Rollback()
			return 0, err
		}
		n.Number = ncr.BuildNumber(numberFormat, year, seq)
	}
	if strings.TrimSpace(n.Status) == "" {
		n.Status = "open"
	}
	res, err := tx.ExecContext(ctx, `
		INSERT INTO ncrs(number, checklist_item_id, asset_id, department_id, description, raised_by, assigned_to, status, severity, due_date, root_cause, corrective_action, preventive_action, evidence, completed_date, created_at, updated_at, deleted_at)
		VALUES(?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?)`,
		n.Number, nullableID(n.ChecklistItemID), nullableID(n.AssetID), n.DepartmentID,
		n.Description, n.RaisedBy, nullableID(n.AssignedTo), n.Status, n.Severity, n.DueDate,
		n.RootCause, n.CorrectiveAction, n.PreventiveAction, n.Evidence,
		nullableTime(n.CompletedDate), now, now, nil)
	if err != nil {
		tx.Rollback()
		return 0, err
	}
	id, _ := res.LastInsertId()
	n.ID = id
	n.CreatedAt = now
	n.UpdatedAt = now
	if autoAction != nil {
		ares, err := tx.ExecContext(ctx, `
			INSERT INTO ncr_actions(ncr_id, action_type, description, assigned_to, due_date, status, created_at, updated_at)
			VALUES(?,?,?,?,?,?,?,?)`,
			id, autoAction.ActionType, autoAction.Description, nullableID(autoAction.AssignedTo),
			autoAction.DueDate, autoAction.Status, now, now)
		if err != nil {
			tx.Rollback()
			return 0, err
		}
		autoAction.ID, _ = ares.LastInsertId()
		autoAction.NCRID = id
		autoAction.CreatedAt = now
		autoAction.UpdatedAt = now
	}
	if err := tx.Commit(); err != nil {
		return 0, err
	}
	return id, nil
}

func (s *ncrStore) nextNCRSeqTx(ctx context.Context, tx *sql.Tx, year int) (int64, error) {
	var seq int64
	if err := tx.QueryRowContext(ctx, `
		INSERT INTO ncr_counters(year, seq)
		VALUES(?,1)
		ON CONFLICT (year)
		DO UPDATE SET seq = ncr_counters.seq + 1
		RETURNING seq
	`, year).Scan(&seq); err != nil {
		return 0, err
	}
	return seq, nil
}

func (s *ncrStore) GetNCR(ctx context.Context, id int64) (*NCR, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+ncrColumns+` FROM ncrs WHERE id=? AND deleted_at IS NULL`, id)
	return scanNCR(row)
}

func (s *ncrStore) GetNCRByNumber(ctx context.Context, number string) (*NCR, error) {
	if strings.TrimSpace(number) == "" {
		return nil, nil
	}
	row := s.db.QueryRowContext(ctx,
		`SELECT `+ncrColumns+` FROM ncrs WHERE number=? AND deleted_at IS NULL`, number)
	return scanNCR(row)
}

func (s *ncrStore) ListNCRs(ctx context.Context, filter NCRFilter) ([]NCR, int64, error) {
	clauses := []string{"deleted_at IS NULL"}
	var args []any
	if filter.DepartmentID != nil {
		clauses = append(clauses, "department_id=?")
		args = append(args, *filter.DepartmentID)
	}
	if filter.AssetID != nil {
		clauses = append(clauses, "asset_id=?")
		args = append(args, *filter.AssetID)
	}
	if filter.Status != "" {
		clauses = append(clauses, "status=?")
		args = append(args, filter.Status)
	}
	if filter.Severity != "" {
		clauses = append(clauses, "severity=?")
		args = append(args, filter.Severity)
	}
	if filter.AssignedTo != nil {
		clauses = append(clauses, "assigned_to=?")
		args = append(args, *filter.AssignedTo)
	}
	if filter.Search != "" {
		clauses = append(clauses, "(number LIKE ? OR description LIKE ?)")
		q := "%" + filter.Search + "%"
		args = append(args, q, q)
	}
	where := " WHERE " + strings.Join(clauses, " AND ")
	var total int64
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(1) FROM ncrs`+where, args...).Scan(&total); err != nil {
		return nil, 0, err
	}
	query := `SELECT ` + ncrColumns + ` FROM ncrs` + where + ` ORDER BY created_at DESC, id DESC`
	if filter.Limit > 0 {
		query += " LIMIT ? OFFSET ?"
		args = append(args, filter.Limit, filter.Offset)
	}
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()
	var out []NCR
	for rows.Next() {
		n, err := scanNCR(rows)
		if err != nil {
			return nil, 0, err
		}
		out = append(out, *n)
	}
	return out, total, rows.Err()
}

func (s *ncrStore) UpdateNCR(ctx context.Context, id int64, upd NCRUpdate) error {
	var sets []string
	var args []any
	set := func(col string, val any) {
		sets = append(sets, col+"=?")
		args = append(args, val)
	}
	if upd.Description != nil {
		set("description", *upd.Description)
	}
	if upd.Severity != nil {
		set("severity", *upd.Severity)
	}
	if upd.AssignedTo != nil {
		set("assigned_to", *upd.AssignedTo)
	}
	if upd.RootCause != nil {
		set("root_cause", *upd.RootCause)
	}
	if upd.CorrectiveAction != nil {
		set("corrective_action", *upd.CorrectiveAction)
	}
	if upd.PreventiveAction != nil {
		set("preventive_action", *upd.PreventiveAction)
	}
	if upd.Evidence != nil {
		set("evidence", *upd.Evidence)
	}
	if len(sets) == 0 {
		return nil
	}
	set("updated_at", time.Now().UTC())
	args = append(args, id)
	res, err := s.db.ExecContext(ctx,
		`UPDATE ncrs SET `+strings.Join(sets, ", ")+` WHERE id=? AND deleted_at IS NULL`, args...)
	if err != nil {
		return err
	}
	if affected, _ := res.RowsAffected(); affected == 0 {
		return sql.ErrNoRows
	}
	return nil
}

func (s *ncrStore) SetNCRStatus(ctx context.Context, id int64, status string, completedDate *time.Time) error {
	res, err := s.db.ExecContext(ctx, `
		UPDATE ncrs SET status=?, completed_date=COALESCE(?, completed_date), updated_at=?
		WHERE id=? AND deleted_at IS NULL`,
		status, nullableTime(completedDate), time.Now().UTC(), id)
	if err != nil {
		return err
	}
	if affected, _ := res.RowsAffected(); affected == 0 {
		return sql.ErrNoRows
	}
	return nil
}

func (s *ncrStore) SoftDeleteNCR(ctx context.Context, id int64) error {
	now := time.Now().UTC()
	res, err := s.db.ExecContext(ctx,
		`UPDATE ncrs SET deleted_at=?, updated_at=? WHERE id=? AND deleted_at IS NULL`, now, now, id)
	if err != nil {
		return err
	}
	if affected, _ := res.RowsAffected(); affected == 0 {
		return ErrConflict
	}
	return nil
}

func (s *ncrStore) CreateAction(ctx context.Context, a *NCRAction) (int64, error) {
	if strings.TrimSpace(a.Status) == "" {
		a.Status = "pending"
	}
	now := time.Now().UTC()
	res, err := s.db.ExecContext(ctx, `
		INSERT INTO ncr_actions(ncr_id, action_type, description, assigned_to, due_date, status, created_at, updated_at)
		VALUES(?,?,?,?,?,?,?,?)`,
		a.NCRID, a.ActionType, a.Description, nullableID(a.AssignedTo), a.DueDate, a.Status, now, now)
	if err != nil {
		return 0, err
	}
	id, _ := res.LastInsertId()
	a.ID = id
	a.CreatedAt = now
	a.UpdatedAt = now
	return id, nil
}

func (s *ncrStore) GetAction(ctx context.Context, id int64) (*NCRAction, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, ncr_id, action_type, description, assigned_to, due_date, status, created_at, updated_at
		FROM ncr_actions WHERE id=?`, id)
	var a NCRAction
	var assigned sql.NullInt64
	err := row.Scan(&a.ID, &a.NCRID, &a.ActionType, &a.Description, &assigned, &a.DueDate, &a.Status, &a.CreatedAt, &a.UpdatedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	a.AssignedTo = scanNullID(assigned)
	return &a, nil
}

func (s *ncrStore) ListActions(ctx context.Context, ncrID int64) ([]NCRAction, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, ncr_id, action_type, description, assigned_to, due_date, status, created_at, updated_at
		FROM ncr_actions WHERE ncr_id=? ORDER BY created_at, id`, ncrID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []NCRAction
	for rows.Next() {
		var a NCRAction
		var assigned sql.NullInt64
		if err := rows.Scan(&a.ID, &a.NCRID, &a.ActionType, &a.Description, &assigned, &a.DueDate, &a.Status, &a.CreatedAt, &a.UpdatedAt); err != nil {
			return nil, err
		}
		a.AssignedTo = scanNullID(assigned)
		out = append(out, a)
	}
	return out, rows.Err()
}

func (s *ncrStore) UpdateActionStatus(ctx context.Context, id int64, status string) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE ncr_actions SET status=?, updated_at=? WHERE id=?`, status, time.Now().UTC(), id)
	if err != nil {
		return err
	}
	if affected, _ := res.RowsAffected(); affected == 0 {
		return sql.ErrNoRows
	}
	return nil
}

func (s *ncrStore) CountByStatus(ctx context.Context, departmentID *int64, statuses []string) (int64, error) {
	if len(statuses) == 0 {
		return 0, nil
	}
	placeholders := strings.TrimRight(strings.Repeat("?,", len(statuses)), ",")
	query := `SELECT COUNT(1) FROM ncrs WHERE deleted_at IS NULL AND status IN (` + placeholders + `)`
	var args []any
	for _, st := range statuses {
		args = append(args, st)
	}
	if departmentID != nil {
		query += ` AND department_id=?`
		args = append(args, *departmentID)
	}
	var n int64
	if err := s.db.QueryRowContext(ctx, query, args...).Scan(&n); err != nil {
		return 0, err
	}
	return n, nil
}

func scanNCR(sc rowScanner) (*NCR, error) {
	var n NCR
	var itemID, assetID, assignedTo sql.NullInt64
	var completedDate, deletedAt sql.NullTime
	err := sc.Scan(&n.ID, &n.Number, &itemID, &assetID, &n.DepartmentID, &n.Description,
		&n.RaisedBy, &assignedTo, &n.Status, &n.Severity, &n.DueDate,
		&n.RootCause, &n.CorrectiveAction, &n.PreventiveAction, &n.Evidence,
		&completedDate, &n.CreatedAt, &n.UpdatedAt, &deletedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	n.ChecklistItemID = scanNullID(itemID)
	n.AssetID = scanNullID(assetID)
	n.AssignedTo = scanNullID(assignedTo)
	n.CompletedDate = scanNullTime(completedDate)
	n.DeletedAt = scanNullTime(deletedAt)
	return &n, nil
}
