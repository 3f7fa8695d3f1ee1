package store

import (
	"context"
	"database/sql"
	"path/filepath"
	"testing"
	"time"

	"helix-qms/config"
)

func newTestDB(t *testing.T) *sql.DB {
	t.Helper()
	cfg := &config.AppConfig{
		DBDriver: "sqlite",
		DBURL:    filepath.Join(t.TempDir(), "test.db"),
	}
	db, err := NewDB(cfg, nil)
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	if err := ApplyMigrations(context.Background(), db, nil); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	return db
}

func seedDepartment(t *testing.T, db *sql.DB, name string) int64 {
	t.Helper()
	d := &Department{Name: name}
	id, err := NewDepartmentsStore(db).CreateDepartment(context.Background(), d)
	if err != nil {
		t.Fatalf("seed department %s: %v", name, err)
	}
	return id
}

func seedAsset(t *testing.T, db *sql.DB, deptID int64, tag string) int64 {
	t.Helper()
	ctx := context.Background()
	assets := NewAssetsStore(db)
	at := &AssetType{DepartmentID: deptID, Name: "type-" + tag}
	typeID, err := assets.CreateAssetType(ctx, at)
	if err != nil {
		t.Fatalf("seed asset type: %v", err)
	}
	a := &Asset{AssetTypeID: typeID, DepartmentID: deptID, Tag: tag, Name: "Asset " + tag}
	id, err := assets.CreateAsset(ctx, a)
	if err != nil {
		t.Fatalf("seed asset %s: %v", tag, err)
	}
	return id
}

func seedUser(t *testing.T, db *sql.DB, username, role string, deptID *int64) int64 {
	t.Helper()
	u := &User{
		Username:     username,
		Email:        username + "@test.local",
		Role:         role,
		DepartmentID: deptID,
		PasswordHash: "x",
		Salt:         "y",
	}
	id, err := NewUsersStore(db).CreateUser(context.Background(), u)
	if err != nil {
		t.Fatalf("seed user %s: %v", username, err)
	}
	return id
}

func TestUsersStoreConflicts(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()
	users := NewUsersStore(db)
	seedUser(t, db, "alice", "technician", nil)
	dup := &User{Username: "ALICE", Email: "other@test.local", Role: "technician", PasswordHash: "x", Salt: "y"}
	if _, err := users.CreateUser(ctx, dup); err != ErrConflict {
		t.Fatalf("duplicate username: want ErrConflict, got %v", err)
	}
	dup2 := &User{Username: "bob", Email: "alice@test.local", Role: "technician", PasswordHash: "x", Salt: "y"}
	if _, err := users.CreateUser(ctx, dup2); err != ErrConflict {
		t.Fatalf("duplicate email: want ErrConflict, got %v", err)
	}
}

func TestUsersStoreDeactivate(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()
	users := NewUsersStore(db)
	id := seedUser(t, db, "carol", "supervisor", nil)
	if err := users.DeactivateUser(ctx, id); err != nil {
		t.Fatalf("deactivate: %v", err)
	}
	if err := users.DeactivateUser(ctx, id); err != ErrConflict {
		t.Fatalf("second deactivate: want ErrConflict, got %v", err)
	}
	u, err := users.GetUser(ctx, id)
	if err != nil || u == nil {
		t.Fatalf("get after deactivate: %v", err)
	}
	if u.Active {
		t.Fatalf("user still active")
	}
}

func TestSessionsStoreLifecycle(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()
	userID := seedUser(t, db, "dave", "technician", nil)
	sessions := NewSessionsStore(db)
	now := time.Now().UTC().Truncate(time.Second)
	sr := &SessionRecord{
		ID:         "sess-1",
		UserID:     userID,
		Username:   "dave",
		Role:       "technician",
		CSRFToken:  "tok",
		CreatedAt:  now,
		LastSeenAt: now,
		ExpiresAt:  now.Add(time.Hour),
	}
	if err := sessions.SaveSession(ctx, sr); err != nil {
		t.Fatalf("save: %v", err)
	}
	got, err := sessions.GetSession(ctx, "sess-1")
	if err != nil || got == nil {
		t.Fatalf("get: %v", err)
	}
	if got.Username != "dave" || got.CSRFToken != "tok" {
		t.Fatalf("round trip mismatch: %+v", got)
	}
	expired := &SessionRecord{
		ID: "sess-2", UserID: userID, Username: "dave", Role: "technician", CSRFToken: "tok2",
		CreatedAt: now.Add(-2 * time.Hour), LastSeenAt: now.Add(-2 * time.Hour), ExpiresAt: now.Add(-time.Hour),
	}
	if err := sessions.SaveSession(ctx, expired); err != nil {
		t.Fatalf("save expired: %v", err)
	}
	n, err := sessions.PurgeExpired(ctx, now)
	if err != nil {
		t.Fatalf("purge: %v", err)
	}
	if n != 1 {
		t.Fatalf("purge removed %d sessions, want 1", n)
	}
	if got, _ := sessions.GetSession(ctx, "sess-1"); got == nil {
		t.Fatalf("live session purged")
	}
}

func TestAuditStoreRecordAndPurge(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()
	audits := NewAuditStore(db)
	if err := audits.Record(ctx, "alice", "ncr.create", "ncr", 1, map[string]any{"number": "NCR-2024-0001"}); err != nil {
		t.Fatalf("record: %v", err)
	}
	items, total, err := audits.List(ctx, AuditFilter{Username: "alice"})
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if total != 1 || len(items) != 1 {
		t.Fatalf("total=%d len=%d", total, len(items))
	}
	if items[0].Action != "ncr.create" {
		t.Fatalf("action = %q", items[0].Action)
	}
	n, err := audits.PurgeOlderThan(ctx, time.Now().UTC().Add(time.Hour))
	if err != nil || n != 1 {
		t.Fatalf("purge: n=%d err=%v", n, err)
	}
}
