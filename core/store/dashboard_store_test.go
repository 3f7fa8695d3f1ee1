package store

import (
	"context"
	"database/sql"
	"testing"
	"time"
)

func addSchedule(t *testing.T, db *sql.DB, assetID int64, docType string, nextDue time.Time) {
	t.Helper()
	ms := &MaintenanceSchedule{
		AssetID:             assetID,
		DocumentType:        docType,
		FrequencyUnit:       "monthly",
		FrequencyMultiplier: 1,
		NextDue:             &nextDue,
	}
	if _, err := NewSchedulesStore(db).CreateSchedule(context.Background(), ms); err != nil {
		t.Fatalf("add schedule %s: %v", docType, err)
	}
}

func TestDashboardMetrics(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()
	deptID := seedDepartment(t, db, "Radiology")
	assetID := seedAsset(t, db, deptID, "XR-001")
	userID := seedUser(t, db, "alice", "supervisor", &deptID)

	now := time.Now().UTC()
	addSchedule(t, db, assetID, "overdue_check", now.AddDate(0, 0, -3))
	addSchedule(t, db, assetID, "soon_check", now.AddDate(0, 0, 2))
	addSchedule(t, db, assetID, "far_check", now.AddDate(0, 2, 0))

	checklists := NewChecklistsStore(db)
	seedChecklist(t, db, deptID, assetID, userID, "item")
	done := seedChecklist(t, db, deptID, assetID, userID, "item")
	if err := checklists.SetChecklistStatus(ctx, done.ID, "completed", &now); err != nil {
		t.Fatalf("complete: %v", err)
	}

	ncrs := NewNCRStore(db)
	n := &NCR{DepartmentID: deptID, Description: "leak", RaisedBy: userID, Severity: "high", DueDate: now.AddDate(0, 0, 3)}
	if _, err := ncrs.CreateNCR(ctx, n, "", nil); err != nil {
		t.Fatalf("create ncr: %v", err)
	}
	closed := &NCR{DepartmentID: deptID, Description: "old", RaisedBy: userID, Severity: "low", DueDate: now.AddDate(0, 0, 14)}
	if _, err := ncrs.CreateNCR(ctx, closed, "", nil); err != nil {
		t.Fatalf("create ncr: %v", err)
	}
	if err := ncrs.SetNCRStatus(ctx, closed.ID, "closed", nil); err != nil {
		t.Fatalf("close ncr: %v", err)
	}

	m, err := NewDashboardStore(db).Metrics(ctx, now, &deptID)
	if err != nil {
		t.Fatalf("metrics: %v", err)
	}
	if m.OverdueSchedules != 1 {
		t.Fatalf("overdue = %d, want 1", m.OverdueSchedules)
	}
	if m.DueSoonSchedules != 1 {
		t.Fatalf("due soon = %d, want 1", m.DueSoonSchedules)
	}
	if m.PendingChecklists != 1 {
		t.Fatalf("pending checklists = %d, want 1", m.PendingChecklists)
	}
	if m.OpenNCRs != 1 {
		t.Fatalf("open NCRs = %d, want 1", m.OpenNCRs)
	}
	if m.ComplianceRate != 50.0 {
		t.Fatalf("compliance = %v, want 50.0", m.ComplianceRate)
	}
}

func TestDashboardMetricsEmptyDepartment(t *testing.T) {
	db := newTestDB(t)
	deptID := seedDepartment(t, db, "Empty")
	m, err := NewDashboardStore(db).Metrics(context.Background(), time.Now().UTC(), &deptID)
	if err != nil {
		t.Fatalf("metrics: %v", err)
	}
	if m.OverdueSchedules != 0 || m.DueSoonSchedules != 0 || m.PendingChecklists != 0 || m.OpenNCRs != 0 {
		t.Fatalf("counts on empty department: %+v", m)
	}
	if m.ComplianceRate != 0 {
		t.Fatalf("compliance on empty department = %v, want 0", m.ComplianceRate)
	}
}
