package store

import (
	"context"
	"testing"
	"time"
)

func TestCreateScheduleActivePairConflict(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()
	deptID := seedDepartment(t, db, "Radiology")
	assetID := seedAsset(t, db, deptID, "XR-001")
	schedules := NewSchedulesStore(db)

	next := time.Now().UTC().AddDate(0, 1, 0)
	ms := &MaintenanceSchedule{
		AssetID:             assetID,
		DocumentType:        "calibration",
		FrequencyUnit:       "monthly",
		FrequencyMultiplier: 1,
		NextDue:             &next,
	}
	if _, err := schedules.CreateSchedule(ctx, ms); err != nil {
		t.Fatalf("create: %v", err)
	}
	dup := &MaintenanceSchedule{
		AssetID:             assetID,
		DocumentType:        "Calibration",
		FrequencyUnit:       "weekly",
		FrequencyMultiplier: 2,
		NextDue:             &next,
	}
	if _, err := schedules.CreateSchedule(ctx, dup); err != ErrConflict {
		t.Fatalf("duplicate active pair: want ErrConflict, got %v", err)
	}
	// A different document type on the same asset is fine.
	other := &MaintenanceSchedule{
		AssetID:             assetID,
		DocumentType:        "safety_inspection",
		FrequencyUnit:       "monthly",
		FrequencyMultiplier: 3,
		NextDue:             &next,
	}
	if _, err := schedules.CreateSchedule(ctx, other); err != nil {
		t.Fatalf("second document type: %v", err)
	}
	// Deactivating frees the pair for a replacement schedule.
	if err := schedules.DeactivateSchedule(ctx, ms.ID); err != nil {
		t.Fatalf("deactivate: %v", err)
	}
	if _, err := schedules.CreateSchedule(ctx, dup); err != nil {
		t.Fatalf("recreate after deactivate: %v", err)
	}
}

func TestCreateScheduleIndexBackstop(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()
	deptID := seedDepartment(t, db, "Radiology")
	assetID := seedAsset(t, db, deptID, "XR-009")
	schedules := NewSchedulesStore(db)

	next := time.Now().UTC()
	ms := &MaintenanceSchedule{
		AssetID:             assetID,
		DocumentType:        "calibration",
		FrequencyUnit:       "monthly",
		FrequencyMultiplier: 1,
		NextDue:             &next,
	}
	if _, err := schedules.CreateSchedule(ctx, ms); err != nil {
		t.Fatalf("create: %v", err)
	}
	// A writer racing past the pre-check lands on the partial unique index;
	// that error class must map to ErrConflict, not surface as a 500.
	_, err := db.ExecContext(ctx, `
		INSERT INTO maintenance_schedules(asset_id, document_type, frequency_unit, frequency_multiplier, next_due, last_done, active, created_at, updated_at)
		VALUES(?,?,?,?,?,?,1,?,?)`,
		assetID, "calibration", "monthly", 1, next, nil, next, next)
	if err == nil {
		t.Fatalf("duplicate active pair accepted by the index")
	}
	if !isUniqueViolation(err) {
		t.Fatalf("index violation not recognized: %v", err)
	}
}

func TestCompleteMaintenanceRollsForward(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()
	deptID := seedDepartment(t, db, "Laboratory")
	assetID := seedAsset(t, db, deptID, "LAB-042")
	userID := seedUser(t, db, "tech", "technician", &deptID)
	schedules := NewSchedulesStore(db)

	next := time.Now().UTC()
	ms := &MaintenanceSchedule{
		AssetID:             assetID,
		DocumentType:        "calibration",
		FrequencyUnit:       "monthly",
		FrequencyMultiplier: 1,
		NextDue:             &next,
	}
	if _, err := schedules.CreateSchedule(ctx, ms); err != nil {
		t.Fatalf("create: %v", err)
	}
	completedAt := time.Now().UTC().Truncate(time.Second)
	newDue := completedAt.AddDate(0, 1, 0)
	rec := &MaintenanceRecord{
		AssetID:     assetID,
		RecordType:  "calibration",
		PerformedBy: userID,
		StartedAt:   completedAt,
		CompletedAt: &completedAt,
		Status:      "completed",
		Findings:    "within tolerance",
	}
	if err := schedules.CompleteMaintenance(ctx, ms.ID, rec, newDue); err != nil {
		t.Fatalf("complete: %v", err)
	}
	if rec.ID == 0 {
		t.Fatalf("record not persisted")
	}
	got, err := schedules.GetSchedule(ctx, ms.ID)
	if err != nil || got == nil {
		t.Fatalf("get: %v", err)
	}
	if got.LastDone == nil || !got.LastDone.Equal(completedAt) {
		t.Fatalf("last done = %v", got.LastDone)
	}
	if got.NextDue == nil || !got.NextDue.Equal(newDue) {
		t.Fatalf("next due = %v, want %v", got.NextDue, newDue)
	}
	records, err := schedules.ListRecords(ctx, assetID, 0)
	if err != nil {
		t.Fatalf("list records: %v", err)
	}
	if len(records) != 1 || records[0].Findings != "within tolerance" {
		t.Fatalf("records = %+v", records)
	}
}

func TestCompleteMaintenanceInactiveSchedule(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()
	deptID := seedDepartment(t, db, "Pharmacy")
	assetID := seedAsset(t, db, deptID, "PH-007")
	userID := seedUser(t, db, "tech2", "technician", &deptID)
	schedules := NewSchedulesStore(db)

	next := time.Now().UTC()
	ms := &MaintenanceSchedule{
		AssetID: assetID, DocumentType: "calibration",
		FrequencyUnit: "weekly", FrequencyMultiplier: 1, NextDue: &next,
	}
	if _, err := schedules.CreateSchedule(ctx, ms); err != nil {
		t.Fatalf("create: %v", err)
	}
	if err := schedules.DeactivateSchedule(ctx, ms.ID); err != nil {
		t.Fatalf("deactivate: %v", err)
	}
	now := time.Now().UTC()
	rec := &MaintenanceRecord{AssetID: assetID, RecordType: "calibration", PerformedBy: userID, StartedAt: now, CompletedAt: &now, Status: "completed"}
	if err := schedules.CompleteMaintenance(ctx, ms.ID, rec, now.AddDate(0, 0, 7)); err != ErrConflict {
		t.Fatalf("complete inactive: want ErrConflict, got %v", err)
	}
	// The rolled-back record must not exist.
	records, err := schedules.ListRecords(ctx, assetID, 0)
	if err != nil {
		t.Fatalf("list records: %v", err)
	}
	if len(records) != 0 {
		t.Fatalf("record leaked from rolled-back transaction: %+v", records)
	}
}

func TestListSchedulesByDepartment(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()
	deptA := seedDepartment(t, db, "Radiology")
	deptB := seedDepartment(t, db, "Laboratory")
	assetA := seedAsset(t, db, deptA, "XR-001")
	assetB := seedAsset(t, db, deptB, "LAB-001")
	schedules := NewSchedulesStore(db)

	next := time.Now().UTC()
	for _, assetID := range []int64{assetA, assetB} {
		ms := &MaintenanceSchedule{
			AssetID: assetID, DocumentType: "calibration",
			FrequencyUnit: "monthly", FrequencyMultiplier: 1, NextDue: &next,
		}
		if _, err := schedules.CreateSchedule(ctx, ms); err != nil {
			t.Fatalf("create: %v", err)
		}
	}
	items, total, err := schedules.ListSchedules(ctx, ScheduleFilter{DepartmentID: &deptA, ActiveOnly: true})
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if total != 1 || len(items) != 1 {
		t.Fatalf("total=%d len=%d", total, len(items))
	}
	if items[0].AssetID != assetA {
		t.Fatalf("wrong asset in department filter: %d", items[0].AssetID)
	}
}
