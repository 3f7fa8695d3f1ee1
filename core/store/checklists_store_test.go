package store

import (
	"context"
	"database/sql"
	"testing"
	"time"
)

func seedChecklist(t *testing.T, db *sql.DB, deptID, assetID, userID int64, items ...string) *Checklist {
	t.Helper()
	c := &Checklist{AssetID: assetID, DepartmentID: deptID, Title: "Daily inspection", CreatedBy: userID}
	for _, q := range items {
		c.Items = append(c.Items, ChecklistItem{Question: q})
	}
	if _, err := NewChecklistsStore(db).CreateChecklist(context.Background(), c); err != nil {
		t.Fatalf("seed checklist: %v", err)
	}
	return c
}

func TestCreateChecklistWithItems(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()
	deptID := seedDepartment(t, db, "Radiology")
	assetID := seedAsset(t, db, deptID, "XR-001")
	userID := seedUser(t, db, "alice", "technician", &deptID)

	c := seedChecklist(t, db, deptID, assetID, userID, "Door interlock works", "Warning light on")
	if c.ID == 0 {
		t.Fatalf("checklist not persisted")
	}
	got, err := NewChecklistsStore(db).GetChecklist(ctx, c.ID)
	if err != nil || got == nil {
		t.Fatalf("get: %v", err)
	}
	if len(got.Items) != 2 {
		t.Fatalf("got %d items", len(got.Items))
	}
	if got.Items[0].Position != 1 || got.Items[1].Position != 2 {
		t.Fatalf("positions: %d %d", got.Items[0].Position, got.Items[1].Position)
	}
	if got.Items[0].Result != "pending" {
		t.Fatalf("initial result = %q", got.Items[0].Result)
	}
	if got.Status != "draft" {
		t.Fatalf("initial status = %q", got.Status)
	}
}

func TestSetItemResultAndComplete(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()
	deptID := seedDepartment(t, db, "Laboratory")
	assetID := seedAsset(t, db, deptID, "LAB-001")
	userID := seedUser(t, db, "bob", "technician", &deptID)
	checklists := NewChecklistsStore(db)

	c := seedChecklist(t, db, deptID, assetID, userID, "Centrifuge balanced")
	if err := checklists.SetItemResult(ctx, c.Items[0].ID, "fail", "vibration noticed"); err != nil {
		t.Fatalf("set result: %v", err)
	}
	now := time.Now().UTC().Truncate(time.Second)
	if err := checklists.SetChecklistStatus(ctx, c.ID, "completed", &now); err != nil {
		t.Fatalf("complete: %v", err)
	}
	got, _ := checklists.GetChecklist(ctx, c.ID)
	if got.Status != "completed" || got.CompletedAt == nil || !got.CompletedAt.Equal(now) {
		t.Fatalf("completion not stamped: %+v", got)
	}
	if got.Items[0].Result != "fail" || got.Items[0].Remarks != "vibration noticed" {
		t.Fatalf("item result lost: %+v", got.Items[0])
	}
}

func TestCountsInWindow(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()
	deptA := seedDepartment(t, db, "Radiology")
	deptB := seedDepartment(t, db, "Laboratory")
	assetA := seedAsset(t, db, deptA, "XR-001")
	assetB := seedAsset(t, db, deptB, "LAB-001")
	userID := seedUser(t, db, "carol", "quality_manager", nil)
	checklists := NewChecklistsStore(db)

	now := time.Now().UTC()
	for i := 0; i < 3; i++ {
		c := seedChecklist(t, db, deptA, assetA, userID, "item")
		if i < 2 {
			if err := checklists.SetChecklistStatus(ctx, c.ID, "completed", &now); err != nil {
				t.Fatalf("complete: %v", err)
			}
		}
	}
	seedChecklist(t, db, deptB, assetB, userID, "item")

	start := now.AddDate(0, 0, -1)
	end := now.AddDate(0, 0, 1)
	total, completed, err := checklists.CountsInWindow(ctx, &deptA, start, end)
	if err != nil {
		t.Fatalf("counts: %v", err)
	}
	if total != 3 || completed != 2 {
		t.Fatalf("dept counts = %d/%d, want 3/2", completed, total)
	}
	total, completed, err = checklists.CountsInWindow(ctx, nil, start, end)
	if err != nil {
		t.Fatalf("site counts: %v", err)
	}
	if total != 4 || completed != 2 {
		t.Fatalf("site counts = %d/%d, want 4/2", completed, total)
	}
	// An empty window reports zeros, not an error.
	total, completed, err = checklists.CountsInWindow(ctx, &deptA, start.AddDate(-1, 0, 0), end.AddDate(-1, 0, 0))
	if err != nil || total != 0 || completed != 0 {
		t.Fatalf("empty window: %d/%d err=%v", completed, total, err)
	}
}
