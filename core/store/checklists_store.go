package store

import (
	"context"
	"database/sql"
	"strings"
	"time"
)

type Checklist struct {
	ID           int64           `json:"id"`
	AssetID      int64           `json:"asset_id"`
	DepartmentID int64           `json:"department_id"`
	Title        string          `json:"title"`
	Status       string          `json:"status"`
	CreatedBy    int64           `json:"created_by"`
	CreatedAt    time.Time       `json:"created_at"`
	CompletedAt  *time.Time      `json:"completed_at,omitempty"`
	Items        []ChecklistItem `json:"items,omitempty"`
}

type ChecklistItem struct {
	ID          int64  `json:"id"`
	ChecklistID int64  `json:"checklist_id"`
	Question    string `json:"question"`
	Result      string `json:"result"`
	Remarks     string `json:"remarks,omitempty"`
	Position    int    `json:"position"`
}

type ChecklistFilter struct {
	AssetID      *int64
	DepartmentID *int64
	Status       string
	Limit        int
	Offset       int
}

type ChecklistsStore interface {
	CreateChecklist(ctx context.Context, c *Checklist) (int64, error)
	GetChecklist(ctx context.Context, id int64) (*Checklist, error)
	GetItem(ctx context.Context, itemID int64) (*ChecklistItem, error)
	ListChecklists(ctx context.Context, filter ChecklistFilter) ([]Checklist, int64, error)
	SetItemResult(ctx context.Context, itemID int64, result, remarks string) error
	SetChecklistStatus(ctx context.Context, id int64, status string, completedAt *time.Time) error
	CountsInWindow(ctx context.Context, departmentID *int64, start, end time.Time) (total, completed int64, err error)
}

type checklistsStore struct {
	db *sql.DB
}

func NewChecklistsStore(db *sql.DB) ChecklistsStore {
	return &checklistsStore{db: db}
}

func (s *checklistsStore) CreateChecklist(ctx context.Context, c *Checklist) (int64, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, err
	}
	if strings.TrimSpace(c.Status) == "" {
		c.Status = "draft"
	}
	now := time.Now().UTC()
	res, err := tx.ExecContext(ctx, `
		INSERT INTO checklists(asset_id, department_id, title, status, created_by, created_at, completed_at)
		VALUES(?,?,?,?,?,?,?)`,
		c.AssetID, c.DepartmentID, c.Title, c.Status, c.CreatedBy, now, nil)
	if err != nil {
		tx.Rollback()
		return 0, err
	}
	id, _ := res.LastInsertId()
	c.ID = id
	c.CreatedAt = now
	for i := range c.Items {
		item := &c.Items[i]
		if item.Position == 0 {
			item.Position = i + 1
		}
		if strings.TrimSpace(item.Result) == "" {
			item.Result = "pending"
		}
		ires, err := tx.ExecContext(ctx, `
			INSERT INTO checklist_items(checklist_id, question, result, remarks, position)
			VALUES(?,?,?,?,?)`, id, item.Question, item.Result, item.Remarks, item.Position)
		if err != nil {
			tx.Rollback()
			return 0, err
		}
		item.ID, _ = ires.LastInsertId()
		item.ChecklistID = id
	}
	if err := tx.Commit(); err != nil {
		return 0, err
	}
	return id, nil
}

func (s *checklistsStore) GetChecklist(ctx context.Context, id int64) (*Checklist, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, asset_id, department_id, title, status, created_by, created_at, completed_at
		FROM checklists WHERE id=?`, id)
	var c Checklist
	var completedAt sql.NullTime
	err := row.Scan(&c.ID, &c.AssetID, &c.DepartmentID, &c.Title, &c.Status, &c.CreatedBy, &c.CreatedAt, &completedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	c.CompletedAt = scanNullTime(completedAt)
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, checklist_id, question, result, remarks, position
		FROM checklist_items WHERE checklist_id=? ORDER BY position, id`, id)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	for rows.Next() {
		var item ChecklistItem
		if err := rows.Scan(&item.ID, &item.ChecklistID, &item.Question, &item.Result, &item.Remarks, &item.Position); err != nil {
			return nil, err
		}
		c.Items = append(c.Items, item)
	}
	return &c, rows.Err()
}

func (s *checklistsStore) GetItem(ctx context.Context, itemID int64) (*ChecklistItem, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, checklist_id, question, result, remarks, position
		FROM checklist_items WHERE id=?`, itemID)
	var item ChecklistItem
	err := row.Scan(&item.ID, &item.ChecklistID, &item.Question, &item.Result, &item.Remarks, &item.Position)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &item, nil
}

func (s *checklistsStore) ListChecklists(ctx context.Context, filter ChecklistFilter) ([]Checklist, int64, error) {
	var clauses []string
	var args []any
	if filter.AssetID != nil {
		clauses = append(clauses, "asset_id=?")
		args = append(args, *filter.AssetID)
	}
	if filter.DepartmentID != nil {
		clauses = append(clauses, "department_id=?")
		args = append(args, *filter.DepartmentID)
	}
	if filter.Status != "" {
		clauses = append(clauses, "status=?")
		args = append(args, filter.Status)
	}
	where := ""
	if len(clauses) > 0 {
		where = " WHERE " + strings.Join(clauses, " AND ")
	}
	var total int64
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(1) FROM checklists`+where, args...).Scan(&total); err != nil {
		return nil, 0, err
	}
	query := `
		SELECT id, asset_id, department_id, title, status, created_by, created_at, completed_at
		FROM checklists` + where + ` ORDER BY created_at DESC, id DESC`
	if filter.Limit > 0 {
		query += " LIMIT ? OFFSET ?"
		args = append(args, filter.Limit, filter.Offset)
	}
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()
	var out []Checklist
	for rows.Next() {
		var c Checklist
		var completedAt sql.NullTime
		if err := rows.Scan(&c.ID, &c.AssetID, &c.DepartmentID, &c.Title, &c.Status, &c.CreatedBy, &c.CreatedAt, &completedAt); err != nil {
			return nil, 0, err
		}
		c.CompletedAt = scanNullTime(completedAt)
		out = append(out, c)
	}
	return out, total, rows.Err()
}

func (s *checklistsStore) SetItemResult(ctx context.Context, itemID int64, result, remarks string) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE checklist_items SET result=?, remarks=? WHERE id=?`, result, remarks, itemID)
	if err != nil {
		return err
	}
	if affected, _ := res.RowsAffected(); affected == 0 {
		return sql.ErrNoRows
	}
	return nil
}

func (s *checklistsStore) SetChecklistStatus(ctx context.Context, id int64, status string, completedAt *time.Time) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE checklists SET status=?, completed_at=? WHERE id=?`,
		status, nullableTime(completedAt), id)
	if err != nil {
		return err
	}
	if affected, _ := res.RowsAffected(); affected == 0 {
		return sql.ErrNoRows
	}
	return nil
}

// CountsInWindow feeds the compliance aggregator: checklists created inside
// [start, end] and how many of them are completed.
func (s *checklistsStore) CountsInWindow(ctx context.Context, departmentID *int64, start, end time.Time) (int64, int64, error) {
	query := `
		SELECT COUNT(1), COALESCE(SUM(CASE WHEN status='completed' THEN 1 ELSE 0 END), 0)
		FROM checklists WHERE created_at >= ? AND created_at <= ?`
	args := []any{start, end}
	if departmentID != nil {
		query += ` AND department_id=?`
		args = append(args, *departmentID)
	}
	var total, completed int64
	if err := s.db.QueryRowContext(ctx, query, args...).Scan(&total, &completed); err != nil {
		return 0, 0, err
	}
	return total, completed, nil
}
