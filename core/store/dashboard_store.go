package store

import (
	"context"
	"database/sql"
	"time"

	"helix-qms/core/compliance"
	"helix-qms/core/schedule"
)

// DashboardMetrics is one consistent snapshot; all five figures come from a
// single read-only transaction so a concurrent write cannot skew one count
// against another.
type DashboardMetrics struct {
	OverdueSchedules  int64   `json:"overdue_schedules"`
	DueSoonSchedules  int64   `json:"due_soon_schedules"`
	PendingChecklists int64   `json:"pending_checklists"`
	OpenNCRs          int64   `json:"open_ncrs"`
	ComplianceRate    float64 `json:"compliance_rate"`
}

type DashboardStore interface {
	Metrics(ctx context.Context, asOf time.Time, departmentID *int64) (*DashboardMetrics, error)
}

type dashboardStore struct {
	db *sql.DB
}

func NewDashboardStore(db *sql.DB) DashboardStore {
	return &dashboardStore{db: db}
}

func (s *dashboardStore) Metrics(ctx context.Context, asOf time.Time, departmentID *int64) (*DashboardMetrics, error) {
	tx, err := s.db.BeginTx(ctx, &sql.TxOptions{ReadOnly: true})
	if err != nil {
		return nil, err
	}
	defer tx.Rollback()

	asOf = asOf.UTC()
	todayStart := time.Date(asOf.Year(), asOf.Month(), asOf.Day(), 0, 0, 0, 0, time.UTC)
	soonEnd := todayStart.AddDate(0, 0, schedule.DueSoonWindowDays+1)

	var m DashboardMetrics
	var deptArgs []any
	schedDeptClause, ncrDeptClause, checklistDeptClause := "", "", ""
	if departmentID != nil {
		schedDeptClause = " AND a.department_id=?"
		ncrDeptClause = " AND department_id=?"
		checklistDeptClause = " AND department_id=?"
		deptArgs = []any{*departmentID}
	}

	scheduleBase := `
		SELECT COUNT(1) FROM maintenance_schedules s JOIN assets a ON a.id = s.asset_id
		WHERE s.active=1 AND s.next_due IS NOT NULL`
	args := append([]any{todayStart}, deptArgs...)
	if err := tx.QueryRowContext(ctx, scheduleBase+` AND s.next_due < ?`+schedDeptClause, args...).Scan(&m.OverdueSchedules); err != nil {
		return nil, err
	}
	args = append([]any{todayStart, soonEnd}, deptArgs...)
	if err := tx.QueryRowContext(ctx, scheduleBase+` AND s.next_due >= ? AND s.next_due < ?`+schedDeptClause, args...).Scan(&m.DueSoonSchedules); err != nil {
		return nil, err
	}

	if err := tx.QueryRowContext(ctx, `
		SELECT COUNT(1) FROM checklists WHERE status IN ('draft','in_progress')`+checklistDeptClause,
		deptArgs...).Scan(&m.PendingChecklists); err != nil {
		return nil, err
	}

	if err := tx.QueryRowContext(ctx, `
		SELECT COUNT(1) FROM ncrs WHERE deleted_at IS NULL AND status IN ('open','in_progress')`+ncrDeptClause,
		deptArgs...).Scan(&m.OpenNCRs); err != nil {
		return nil, err
	}

	windowStart := asOf.AddDate(0, 0, -30)
	var total, completed int64
	args = append([]any{windowStart, asOf}, deptArgs...)
	if err := tx.QueryRowContext(ctx, `
		SELECT COUNT(1), COALESCE(SUM(CASE WHEN status='completed' THEN 1 ELSE 0 END), 0)
		FROM checklists WHERE created_at >= ? AND created_at <= ?`+checklistDeptClause,
		args...).Scan(&total, &completed); err != nil {
		return nil, err
	}
	m.ComplianceRate = compliance.Compute(int(total), int(completed)).Rate
	return &m, nil
}
