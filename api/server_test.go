package api

import (
	"bytes"
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"helix-qms/config"
	"helix-qms/core/auth"
	"helix-qms/core/rbac"
	"helix-qms/core/store"
)

type testEnv struct {
	ts  *httptest.Server
	db  *sql.DB
	cfg *config.AppConfig
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	cfg := &config.AppConfig{
		DBDriver:   "sqlite",
		DBURL:      filepath.Join(t.TempDir(), "test.db"),
		SessionTTL: time.Hour,
		Pepper:     "test-pepper",
		NCR:        config.NCRConfig{NumberFormat: "NCR-{year}-{seq:04}"},
	}
	db, err := store.NewDB(cfg, nil)
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	if err := store.ApplyMigrations(context.Background(), db, nil); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	policy, err := rbac.NewPolicy()
	if err != nil {
		t.Fatalf("policy: %v", err)
	}
	sessions := store.NewSessionsStore(db)
	srv := NewServer(Deps{
		Cfg:            cfg,
		Policy:         policy,
		SessionManager: auth.NewSessionManager(sessions, cfg, nil),
		Users:          store.NewUsersStore(db),
		Sessions:       sessions,
		Departments:    store.NewDepartmentsStore(db),
		Assets:         store.NewAssetsStore(db),
		Schedules:      store.NewSchedulesStore(db),
		Checklists:     store.NewChecklistsStore(db),
		NCRs:           store.NewNCRStore(db),
		Dashboard:      store.NewDashboardStore(db),
		Audits:         store.NewAuditStore(db),
	})
	ts := httptest.NewServer(srv.Router())
	t.Cleanup(ts.Close)
	return &testEnv{ts: ts, db: db, cfg: cfg}
}

func (e *testEnv) seedUser(t *testing.T, username, role string, deptID *int64) int64 {
	t.Helper()
	ph := auth.MustHashPassword("secret123", e.cfg.Pepper)
	u := &store.User{
		Username:     username,
		Email:        username + "@test.local",
		Role:         role,
		DepartmentID: deptID,
		PasswordHash: ph.Hash,
		Salt:         ph.Salt,
	}
	id, err := store.NewUsersStore(e.db).CreateUser(context.Background(), u)
	if err != nil {
		t.Fatalf("seed user %s: %v", username, err)
	}
	return id
}

func (e *testEnv) seedDepartment(t *testing.T, name string) int64 {
	t.Helper()
	d := &store.Department{Name: name}
	id, err := store.NewDepartmentsStore(e.db).CreateDepartment(context.Background(), d)
	if err != nil {
		t.Fatalf("seed department: %v", err)
	}
	return id
}

func (e *testEnv) seedAsset(t *testing.T, deptID int64, tag string) int64 {
	t.Helper()
	ctx := context.Background()
	assets := store.NewAssetsStore(e.db)
	typeID, err := assets.CreateAssetType(ctx, &store.AssetType{DepartmentID: deptID, Name: "type-" + tag})
	if err != nil {
		t.Fatalf("seed asset type: %v", err)
	}
	id, err := assets.CreateAsset(ctx, &store.Asset{AssetTypeID: typeID, DepartmentID: deptID, Tag: tag, Name: "Asset " + tag})
	if err != nil {
		t.Fatalf("seed asset: %v", err)
	}
	return id
}

type testClient struct {
	ts      *httptest.Server
	session string
	csrf    string
}

func (e *testEnv) login(t *testing.T, username string) *testClient {
	t.Helper()
	body, _ := json.Marshal(map[string]string{"username": username, "password": "secret123"})
	resp, err := http.Post(e.ts.URL+"/api/auth/login", "application/json", bytes.NewReader(body))
	if err != nil {
		t.Fatalf("login: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("login status = %d", resp.StatusCode)
	}
	var out struct {
		CSRFToken string `json:"csrf_token"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		t.Fatalf("login decode: %v", err)
	}
	c := &testClient{ts: e.ts, csrf: out.CSRFToken}
	for _, ck := range resp.Cookies() {
		if ck.Name == "helix_session" {
			c.session = ck.Value
		}
	}
	if c.session == "" {
		t.Fatalf("no session cookie issued")
	}
	return c
}

func (c *testClient) do(t *testing.T, method, path string, payload any) (*http.Response, []byte) {
	t.Helper()
	var body *bytes.Reader
	if payload != nil {
		b, _ := json.Marshal(payload)
		body = bytes.NewReader(b)
	} else {
		body = bytes.NewReader(nil)
	}
	req, err := http.NewRequest(method, c.ts.URL+path, body)
	if err != nil {
		t.Fatalf("new request: %v", err)
	}
	req.AddCookie(&http.Cookie{Name: "helix_session", Value: c.session})
	if method != http.MethodGet {
		req.Header.Set("X-CSRF-Token", c.csrf)
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("%s %s: %v", method, path, err)
	}
	defer resp.Body.Close()
	var buf bytes.Buffer
	_, _ = buf.ReadFrom(resp.Body)
	return resp, buf.Bytes()
}

func TestLoginAndMe(t *testing.T) {
	e := newTestEnv(t)
	e.seedUser(t, "alice", "admin", nil)
	c := e.login(t, "alice")
	resp, body := c.do(t, http.MethodGet, "/api/auth/me", nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("me status = %d: %s", resp.StatusCode, body)
	}
	var u store.User
	if err := json.Unmarshal(body, &u); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if u.Username != "alice" || u.Role != "admin" {
		t.Fatalf("me = %+v", u)
	}
}

func TestLoginRejectsBadPassword(t *testing.T) {
	e := newTestEnv(t)
	e.seedUser(t, "alice", "admin", nil)
	body, _ := json.Marshal(map[string]string{"username": "alice", "password": "wrong"})
	resp, err := http.Post(e.ts.URL+"/api/auth/login", "application/json", bytes.NewReader(body))
	if err != nil {
		t.Fatalf("login: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusUnauthorized {
		t.Fatalf("status = %d, want 401", resp.StatusCode)
	}
}

func TestMutationWithoutCSRFForbidden(t *testing.T) {
	e := newTestEnv(t)
	e.seedUser(t, "alice", "admin", nil)
	c := e.login(t, "alice")
	req, _ := http.NewRequest(http.MethodPost, e.ts.URL+"/api/departments", bytes.NewReader([]byte(`{"name":"X"}`)))
	req.AddCookie(&http.Cookie{Name: "helix_session", Value: c.session})
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("request: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusForbidden {
		t.Fatalf("status = %d, want 403", resp.StatusCode)
	}
}

func TestPermissionDenied(t *testing.T) {
	e := newTestEnv(t)
	deptID := e.seedDepartment(t, "Radiology")
	e.seedUser(t, "tech", "technician", &deptID)
	c := e.login(t, "tech")
	resp, _ := c.do(t, http.MethodPost, "/api/departments", map[string]string{"name": "New"})
	if resp.StatusCode != http.StatusForbidden {
		t.Fatalf("technician created a department: status = %d", resp.StatusCode)
	}
}

func TestDepartmentScopingNeverLeaks(t *testing.T) {
	e := newTestEnv(t)
	deptA := e.seedDepartment(t, "Radiology")
	deptB := e.seedDepartment(t, "Laboratory")
	e.seedAsset(t, deptA, "XR-001")
	assetB := e.seedAsset(t, deptB, "LAB-001")
	e.seedUser(t, "tech", "technician", &deptA)
	c := e.login(t, "tech")

	// Asking for the other department is silently overridden.
	resp, body := c.do(t, http.MethodGet, fmt.Sprintf("/api/assets?department_id=%d", deptB), nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("list status = %d", resp.StatusCode)
	}
	var page struct {
		Items []store.Asset `json:"items"`
		Total int64         `json:"total"`
	}
	if err := json.Unmarshal(body, &page); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if page.Total != 1 {
		t.Fatalf("total = %d, want 1", page.Total)
	}
	for _, a := range page.Items {
		if a.DepartmentID != deptA {
			t.Fatalf("asset from department %d leaked", a.DepartmentID)
		}
	}
	// Direct reads of cross-department records answer 404, not 403.
	resp, _ = c.do(t, http.MethodGet, fmt.Sprintf("/api/assets/%d", assetB), nil)
	if resp.StatusCode != http.StatusNotFound {
		t.Fatalf("cross-department get status = %d, want 404", resp.StatusCode)
	}
}

func TestPaginationClamp(t *testing.T) {
	e := newTestEnv(t)
	deptID := e.seedDepartment(t, "Radiology")
	for i := 0; i < 15; i++ {
		e.seedAsset(t, deptID, fmt.Sprintf("XR-%03d", i))
	}
	e.seedUser(t, "qm", "quality_manager", nil)
	c := e.login(t, "qm")

	var page struct {
		Items []store.Asset `json:"items"`
		Limit int           `json:"limit"`
		Total int64         `json:"total"`
		Pages int64         `json:"pages"`
	}
	resp, body := c.do(t, http.MethodGet, "/api/assets?limit=3", nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d", resp.StatusCode)
	}
	if err := json.Unmarshal(body, &page); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if page.Limit != 10 || len(page.Items) != 10 {
		t.Fatalf("small limit not clamped up: limit=%d len=%d", page.Limit, len(page.Items))
	}
	if page.Total != 15 || page.Pages != 2 {
		t.Fatalf("total=%d pages=%d", page.Total, page.Pages)
	}
	resp, body = c.do(t, http.MethodGet, "/api/assets?limit=500", nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d", resp.StatusCode)
	}
	if err := json.Unmarshal(body, &page); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if page.Limit != 100 {
		t.Fatalf("large limit not clamped down: %d", page.Limit)
	}
}

func TestScheduleDuplicateConflict(t *testing.T) {
	e := newTestEnv(t)
	deptID := e.seedDepartment(t, "Radiology")
	assetID := e.seedAsset(t, deptID, "XR-001")
	e.seedUser(t, "sup", "supervisor", &deptID)
	c := e.login(t, "sup")

	payload := map[string]any{
		"asset_id":             assetID,
		"document_type":        "calibration",
		"frequency_unit":       "monthly",
		"frequency_multiplier": 1,
	}
	resp, body := c.do(t, http.MethodPost, "/api/schedules", payload)
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("create status = %d: %s", resp.StatusCode, body)
	}
	resp, _ = c.do(t, http.MethodPost, "/api/schedules", payload)
	if resp.StatusCode != http.StatusConflict {
		t.Fatalf("duplicate status = %d, want 409", resp.StatusCode)
	}
}

func TestFailedChecklistItemRaisesNCR(t *testing.T) {
	e := newTestEnv(t)
	deptID := e.seedDepartment(t, "Radiology")
	assetID := e.seedAsset(t, deptID, "XR-001")
	supID := e.seedUser(t, "sup", "supervisor", &deptID)
	c := e.login(t, "sup")

	resp, body := c.do(t, http.MethodPost, "/api/checklists", map[string]any{
		"asset_id": assetID,
		"title":    "Daily safety inspection",
		"items":    []string{"Door interlock works"},
	})
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("create checklist status = %d: %s", resp.StatusCode, body)
	}
	var created store.Checklist
	if err := json.Unmarshal(body, &created); err != nil {
		t.Fatalf("decode: %v", err)
	}

	resp, body = c.do(t, http.MethodPut,
		fmt.Sprintf("/api/checklists/%d/items/%d", created.ID, created.Items[0].ID),
		map[string]any{"result": "fail", "remarks": "interlock jammed", "severity": "high", "assigned_to": supID})
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("set result status = %d: %s", resp.StatusCode, body)
	}
	var out struct {
		NCR *store.NCR `json:"ncr"`
	}
	if err := json.Unmarshal(body, &out); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if out.NCR == nil || out.NCR.Number == "" {
		t.Fatalf("failed item did not raise an NCR: %s", body)
	}
	if out.NCR.ChecklistItemID == nil || *out.NCR.ChecklistItemID != created.Items[0].ID {
		t.Fatalf("NCR not linked to the failed item: %+v", out.NCR)
	}
	// An assignee means the corrective action exists already.
	actions, err := store.NewNCRStore(e.db).ListActions(context.Background(), out.NCR.ID)
	if err != nil {
		t.Fatalf("list actions: %v", err)
	}
	if len(actions) != 1 || actions[0].ActionType != "corrective" {
		t.Fatalf("auto action missing: %+v", actions)
	}
}

func TestNCRStatusTransitionsOverHTTP(t *testing.T) {
	e := newTestEnv(t)
	deptID := e.seedDepartment(t, "Radiology")
	e.seedUser(t, "sup", "supervisor", &deptID)
	c := e.login(t, "sup")

	resp, body := c.do(t, http.MethodPost, "/api/ncrs", map[string]any{
		"description": "humidity out of range",
		"severity":    "critical",
	})
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("create status = %d: %s", resp.StatusCode, body)
	}
	var created struct {
		NCR store.NCR `json:"ncr"`
	}
	if err := json.Unmarshal(body, &created); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if created.NCR.Status != "open" {
		t.Fatalf("initial status = %q", created.NCR.Status)
	}
	// Critical severity means a one-day deadline.
	delta := created.NCR.DueDate.Sub(created.NCR.CreatedAt)
	if delta < 23*time.Hour || delta > 25*time.Hour {
		t.Fatalf("due %v is not one day after creation %v", created.NCR.DueDate, created.NCR.CreatedAt)
	}

	path := fmt.Sprintf("/api/ncrs/%d/status", created.NCR.ID)
	resp, body = c.do(t, http.MethodPost, path, map[string]string{"status": "completed"})
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("complete status = %d: %s", resp.StatusCode, body)
	}
	var after store.NCR
	if err := json.Unmarshal(body, &after); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if after.CompletedDate == nil {
		t.Fatalf("completed transition did not stamp completed_date")
	}
	resp, _ = c.do(t, http.MethodPost, path, map[string]string{"status": "closed"})
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("close status = %d", resp.StatusCode)
	}
	// Closed is terminal.
	resp, _ = c.do(t, http.MethodPost, path, map[string]string{"status": "in_progress"})
	if resp.StatusCode != http.StatusConflict {
		t.Fatalf("terminal transition status = %d, want 409", resp.StatusCode)
	}
	// Editing a closed report is refused too.
	resp, _ = c.do(t, http.MethodPut, fmt.Sprintf("/api/ncrs/%d", created.NCR.ID), map[string]string{"root_cause": "hvac"})
	if resp.StatusCode != http.StatusConflict {
		t.Fatalf("edit closed status = %d, want 409", resp.StatusCode)
	}
}

func TestDashboardEndpoints(t *testing.T) {
	e := newTestEnv(t)
	deptID := e.seedDepartment(t, "Radiology")
	e.seedUser(t, "tech", "technician", &deptID)
	c := e.login(t, "tech")

	resp, body := c.do(t, http.MethodGet, "/api/dashboard/metrics", nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("metrics status = %d: %s", resp.StatusCode, body)
	}
	var m store.DashboardMetrics
	if err := json.Unmarshal(body, &m); err != nil {
		t.Fatalf("decode metrics: %v", err)
	}
	resp, body = c.do(t, http.MethodGet, "/api/dashboard/compliance-trend", nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("trend status = %d", resp.StatusCode)
	}
	var trend struct {
		Months []struct {
			Month string  `json:"month"`
			Rate  float64 `json:"rate"`
		} `json:"months"`
	}
	if err := json.Unmarshal(body, &trend); err != nil {
		t.Fatalf("decode trend: %v", err)
	}
	if len(trend.Months) != 6 {
		t.Fatalf("trend months = %d, want 6", len(trend.Months))
	}
	// Oldest first, ending with the current month.
	now := time.Now().UTC()
	if trend.Months[5].Month != now.Format("2006-01") {
		t.Fatalf("last month = %q", trend.Months[5].Month)
	}
}

func TestDashboardNeverLeaksOtherDepartment(t *testing.T) {
	e := newTestEnv(t)
	ctx := context.Background()
	deptA := e.seedDepartment(t, "Radiology")
	deptB := e.seedDepartment(t, "Laboratory")
	assetB := e.seedAsset(t, deptB, "LAB-001")
	qmID := e.seedUser(t, "qm", "quality_manager", nil)
	e.seedUser(t, "tech", "technician", &deptA)

	overdue := time.Now().UTC().AddDate(0, 0, -3)
	ms := &store.MaintenanceSchedule{
		AssetID:             assetB,
		DocumentType:        "calibration",
		FrequencyUnit:       "monthly",
		FrequencyMultiplier: 1,
		NextDue:             &overdue,
	}
	if _, err := store.NewSchedulesStore(e.db).CreateSchedule(ctx, ms); err != nil {
		t.Fatalf("seed schedule: %v", err)
	}
	n := &store.NCR{
		DepartmentID: deptB,
		Description:  "humidity out of range",
		RaisedBy:     qmID,
		Severity:     "high",
		DueDate:      time.Now().UTC().AddDate(0, 0, 3),
	}
	if _, err := store.NewNCRStore(e.db).CreateNCR(ctx, n, "", nil); err != nil {
		t.Fatalf("seed ncr: %v", err)
	}

	// A scoped technician asking for the other department gets their own
	// (empty) counts, not the other department's.
	c := e.login(t, "tech")
	resp, body := c.do(t, http.MethodGet, fmt.Sprintf("/api/dashboard/metrics?department_id=%d", deptB), nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("metrics status = %d: %s", resp.StatusCode, body)
	}
	var m store.DashboardMetrics
	if err := json.Unmarshal(body, &m); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if m.OverdueSchedules != 0 || m.OpenNCRs != 0 || m.PendingChecklists != 0 || m.DueSoonSchedules != 0 {
		t.Fatalf("counts leaked across departments: %+v", m)
	}
	// The unscoped quality manager sees them with the same filter.
	cq := e.login(t, "qm")
	resp, body = cq.do(t, http.MethodGet, fmt.Sprintf("/api/dashboard/metrics?department_id=%d", deptB), nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("metrics status = %d", resp.StatusCode)
	}
	if err := json.Unmarshal(body, &m); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if m.OverdueSchedules != 1 || m.OpenNCRs != 1 {
		t.Fatalf("unscoped counts = %+v, want overdue 1 and open NCRs 1", m)
	}
}

func TestNCRLookupByNumber(t *testing.T) {
	e := newTestEnv(t)
	deptA := e.seedDepartment(t, "Radiology")
	deptB := e.seedDepartment(t, "Laboratory")
	e.seedUser(t, "sup", "supervisor", &deptA)
	e.seedUser(t, "tech", "technician", &deptB)
	c := e.login(t, "sup")

	resp, body := c.do(t, http.MethodPost, "/api/ncrs", map[string]any{
		"description": "door interlock jammed",
		"severity":    "medium",
	})
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("create status = %d: %s", resp.StatusCode, body)
	}
	var created struct {
		NCR store.NCR `json:"ncr"`
	}
	if err := json.Unmarshal(body, &created); err != nil {
		t.Fatalf("decode: %v", err)
	}

	resp, body = c.do(t, http.MethodGet, "/api/ncrs/by-number/"+created.NCR.Number, nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("lookup status = %d: %s", resp.StatusCode, body)
	}
	var got struct {
		NCR store.NCR `json:"ncr"`
	}
	if err := json.Unmarshal(body, &got); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if got.NCR.ID != created.NCR.ID {
		t.Fatalf("lookup resolved id %d, want %d", got.NCR.ID, created.NCR.ID)
	}
	resp, _ = c.do(t, http.MethodGet, "/api/ncrs/by-number/NCR-1999-9999", nil)
	if resp.StatusCode != http.StatusNotFound {
		t.Fatalf("unknown number status = %d, want 404", resp.StatusCode)
	}
	// A technician scoped to another department cannot resolve it.
	ct := e.login(t, "tech")
	resp, _ = ct.do(t, http.MethodGet, "/api/ncrs/by-number/"+created.NCR.Number, nil)
	if resp.StatusCode != http.StatusNotFound {
		t.Fatalf("cross-department lookup status = %d, want 404", resp.StatusCode)
	}
}

func TestChangePasswordRotatesSession(t *testing.T) {
	e := newTestEnv(t)
	e.seedUser(t, "alice", "admin", nil)
	c := e.login(t, "alice")

	payload, _ := json.Marshal(map[string]string{"current_password": "secret123", "new_password": "longer-secret-456"})
	req, _ := http.NewRequest(http.MethodPost, e.ts.URL+"/api/auth/change-password", bytes.NewReader(payload))
	req.AddCookie(&http.Cookie{Name: "helix_session", Value: c.session})
	req.Header.Set("X-CSRF-Token", c.csrf)
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("change password: %v", err)
	}
	var out struct {
		CSRFToken string `json:"csrf_token"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		t.Fatalf("decode: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d", resp.StatusCode)
	}
	var rotated string
	for _, ck := range resp.Cookies() {
		if ck.Name == "helix_session" {
			rotated = ck.Value
		}
	}
	if rotated == "" || rotated == c.session {
		t.Fatalf("session not rotated")
	}
	if out.CSRFToken == "" || out.CSRFToken == c.csrf {
		t.Fatalf("csrf token not rotated")
	}

	// The pre-change session is dead.
	resp2, _ := c.do(t, http.MethodGet, "/api/auth/me", nil)
	if resp2.StatusCode != http.StatusUnauthorized {
		t.Fatalf("old session status = %d, want 401", resp2.StatusCode)
	}
	// The rotated one works.
	c2 := &testClient{ts: e.ts, session: rotated, csrf: out.CSRFToken}
	resp2, _ = c2.do(t, http.MethodGet, "/api/auth/me", nil)
	if resp2.StatusCode != http.StatusOK {
		t.Fatalf("rotated session status = %d", resp2.StatusCode)
	}
}

func TestLogoutInvalidatesSession(t *testing.T) {
	e := newTestEnv(t)
	e.seedUser(t, "alice", "admin", nil)
	c := e.login(t, "alice")
	resp, _ := c.do(t, http.MethodPost, "/api/auth/logout", nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("logout status = %d", resp.StatusCode)
	}
	resp, _ = c.do(t, http.MethodGet, "/api/auth/me", nil)
	if resp.StatusCode != http.StatusUnauthorized {
		t.Fatalf("me after logout = %d, want 401", resp.StatusCode)
	}
}
