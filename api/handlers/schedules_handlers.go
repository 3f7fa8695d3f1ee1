package handlers

import (
	"net/http"
	"strings"
	"time"

	"helix-qms/config"
	"helix-qms/core/apperr"
	"helix-qms/core/auth"
	"helix-qms/core/schedule"
	"helix-qms/core/store"
	"helix-qms/core/utils"
)

type SchedulesHandler struct {
	cfg       *config.AppConfig
	schedules store.SchedulesStore
	assets    store.AssetsStore
	audits    store.AuditStore
	logger    *utils.Logger
}

func NewSchedulesHandler(cfg *config.AppConfig, schedules store.SchedulesStore, assets store.AssetsStore, audits store.AuditStore, logger *utils.Logger) *SchedulesHandler {
	return &SchedulesHandler{cfg: cfg, schedules: schedules, assets: assets, audits: audits, logger: logger}
}

type scheduleRequest struct {
	AssetID             int64      `json:"asset_id"`
	DocumentType        string     `json:"document_type"`
	FrequencyUnit       string     `json:"frequency_unit"`
	FrequencyMultiplier int        `json:"frequency_multiplier"`
	StartDate           *time.Time `json:"start_date"`
}

// scheduleView decorates a schedule with its due bucket; classification
// happens at read time, never stored.
type scheduleView struct {
	store.MaintenanceSchedule
	Bucket schedule.Bucket `json:"bucket,omitempty"`
}

func classifyView(ms store.MaintenanceSchedule, now time.Time) scheduleView {
	v := scheduleView{MaintenanceSchedule: ms}
	if ms.NextDue != nil {
		v.Bucket = schedule.Classify(*ms.NextDue, now)
	}
	return v
}

func (h *SchedulesHandler) Create(w http.ResponseWriter, r *http.Request) {
	actor, _ := auth.ActorFromContext(r.Context())
	var req scheduleRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, h.logger, err)
		return
	}
	unit, err := schedule.ParseFrequency(req.FrequencyUnit)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	if strings.TrimSpace(req.DocumentType) == "" {
		writeError(w, h.logger, apperr.Validation("document_type is required"))
		return
	}
	a, err := h.assets.GetAsset(r.Context(), req.AssetID)
	if err != nil {
		writeError(w, h.logger, apperr.Internal(err))
		return
	}
	if a == nil || !departmentVisible(actor, a.DepartmentID) {
		writeError(w, h.logger, apperr.Validation("asset %d does not exist", req.AssetID))
		return
	}
	base := time.Now().UTC()
	if req.StartDate != nil {
		base = req.StartDate.UTC()
	}
	nextDue, err := schedule.NextDue(base, unit, req.FrequencyMultiplier)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	ms := &store.MaintenanceSchedule{
		AssetID:             req.AssetID,
		DocumentType:        req.DocumentType,
		FrequencyUnit:       string(unit),
		FrequencyMultiplier: req.FrequencyMultiplier,
		NextDue:             &nextDue,
	}
	if _, err := h.schedules.CreateSchedule(r.Context(), ms); err != nil {
		if err == store.ErrConflict {
			writeError(w, h.logger, apperr.Conflict("an active schedule for this asset and document type already exists"))
			return
		}
		writeError(w, h.logger, apperr.Internal(err))
		return
	}
	_ = h.audits.Record(r.Context(), actor.Username, "schedules.create", "schedule", ms.ID, map[string]any{"asset_id": ms.AssetID, "document_type": ms.DocumentType})
	writeJSON(w, http.StatusCreated, classifyView(*ms, time.Now().UTC()))
}

func (h *SchedulesHandler) List(w http.ResponseWriter, r *http.Request) {
	actor, _ := auth.ActorFromContext(r.Context())
	p := parsePage(r)
	filter := store.ScheduleFilter{
		AssetID:      queryID(r, "asset_id"),
		DepartmentID: actor.EffectiveDepartment(queryID(r, "department_id")),
		DocumentType: strings.TrimSpace(r.URL.Query().Get("document_type")),
		ActiveOnly:   r.URL.Query().Get("include_inactive") == "",
		Limit:        p.Limit,
		Offset:       p.offset(),
	}
	items, total, err := h.schedules.ListSchedules(r.Context(), filter)
	if err != nil {
		writeError(w, h.logger, apperr.Internal(err))
		return
	}
	now := time.Now().UTC()
	views := make([]scheduleView, 0, len(items))
	bucket := schedule.Bucket(strings.TrimSpace(r.URL.Query().Get("bucket")))
	for _, ms := range items {
		v := classifyView(ms, now)
		if bucket != "" && v.Bucket != bucket {
			continue
		}
		views = append(views, v)
	}
	writeJSON(w, http.StatusOK, paged(views, p, total))
}

func (h *SchedulesHandler) Get(w http.ResponseWriter, r *http.Request) {
	actor, _ := auth.ActorFromContext(r.Context())
	ms, err := h.loadVisible(r, actor)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, classifyView(*ms, time.Now().UTC()))
}

func (h *SchedulesHandler) Update(w http.ResponseWriter, r *http.Request) {
	actor, _ := auth.ActorFromContext(r.Context())
	ms, err := h.loadVisible(r, actor)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	var req scheduleRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, h.logger, err)
		return
	}
	unit, err := schedule.ParseFrequency(req.FrequencyUnit)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	if req.FrequencyMultiplier <= 0 {
		writeError(w, h.logger, apperr.Validation("frequency multiplier must be a positive integer, got %d", req.FrequencyMultiplier))
		return
	}
	ms.FrequencyUnit = string(unit)
	ms.FrequencyMultiplier = req.FrequencyMultiplier
	// Changing the cadence recomputes the horizon from the last completion,
	// or from now for a schedule never performed.
	base := time.Now().UTC()
	if ms.LastDone != nil {
		base = *ms.LastDone
	}
	nextDue, err := schedule.NextDue(base, unit, req.FrequencyMultiplier)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	ms.NextDue = &nextDue
	if err := h.schedules.UpdateSchedule(r.Context(), ms); err != nil {
		writeError(w, h.logger, apperr.NotFound("schedule"))
		return
	}
	_ = h.audits.Record(r.Context(), actor.Username, "schedules.update", "schedule", ms.ID, nil)
	writeJSON(w, http.StatusOK, classifyView(*ms, time.Now().UTC()))
}

func (h *SchedulesHandler) Deactivate(w http.ResponseWriter, r *http.Request) {
	actor, _ := auth.ActorFromContext(r.Context())
	ms, err := h.loadVisible(r, actor)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	if err := h.schedules.DeactivateSchedule(r.Context(), ms.ID); err != nil {
		if err == store.ErrConflict {
			writeError(w, h.logger, apperr.Conflict("schedule is already inactive"))
			return
		}
		writeError(w, h.logger, apperr.Internal(err))
		return
	}
	_ = h.audits.Record(r.Context(), actor.Username, "schedules.deactivate", "schedule", ms.ID, nil)
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

type completeRequest struct {
	CompletedAt *time.Time `json:"completed_at"`
	Findings    string     `json:"findings"`
	Status      string     `json:"status"`
}

func (h *SchedulesHandler) Complete(w http.ResponseWriter, r *http.Request) {
	actor, _ := auth.ActorFromContext(r.Context())
	ms, err := h.loadVisible(r, actor)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	if !ms.Active {
		writeError(w, h.logger, apperr.Conflict("schedule is inactive"))
		return
	}
	var req completeRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, h.logger, err)
		return
	}
	completedAt := time.Now().UTC()
	if req.CompletedAt != nil {
		completedAt = req.CompletedAt.UTC()
	}
	unit, err := schedule.ParseFrequency(ms.FrequencyUnit)
	if err != nil {
		writeError(w, h.logger, apperr.Internal(err))
		return
	}
	// The next cycle starts from this completion, not from the old due date.
	nextDue, err := schedule.NextDue(completedAt, unit, ms.FrequencyMultiplier)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	status := strings.ToLower(strings.TrimSpace(req.Status))
	if status == "" {
		status = "completed"
	}
	rec := &store.MaintenanceRecord{
		AssetID:     ms.AssetID,
		RecordType:  ms.DocumentType,
		PerformedBy: actor.UserID,
		StartedAt:   completedAt,
		CompletedAt: &completedAt,
		Status:      status,
		Findings:    req.Findings,
	}
	if err := h.schedules.CompleteMaintenance(r.Context(), ms.ID, rec, nextDue); err != nil {
		if err == store.ErrConflict {
			writeError(w, h.logger, apperr.Conflict("schedule is inactive"))
			return
		}
		writeError(w, h.logger, apperr.Internal(err))
		return
	}
	_ = h.audits.Record(r.Context(), actor.Username, "schedules.complete", "schedule", ms.ID, map[string]any{"record_id": rec.ID})
	ms.LastDone = &completedAt
	ms.NextDue = &nextDue
	writeJSON(w, http.StatusOK, map[string]any{
		"schedule": classifyView(*ms, time.Now().UTC()),
		"record":   rec,
	})
}

func (h *SchedulesHandler) ListRecords(w http.ResponseWriter, r *http.Request) {
	actor, _ := auth.ActorFromContext(r.Context())
	assetID, err := pathID(r, "id")
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	a, err := h.assets.GetAsset(r.Context(), assetID)
	if err != nil {
		writeError(w, h.logger, apperr.Internal(err))
		return
	}
	if a == nil || !departmentVisible(actor, a.DepartmentID) {
		writeError(w, h.logger, apperr.NotFound("asset"))
		return
	}
	limit := parseIntDefault(r.URL.Query().Get("limit"), 50)
	items, err := h.schedules.ListRecords(r.Context(), assetID, limit)
	if err != nil {
		writeError(w, h.logger, apperr.Internal(err))
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"items": items})
}

func (h *SchedulesHandler) loadVisible(r *http.Request, actor auth.Actor) (*store.MaintenanceSchedule, error) {
	id, err := pathID(r, "id")
	if err != nil {
		return nil, err
	}
	ms, err := h.schedules.GetSchedule(r.Context(), id)
	if err != nil {
		return nil, apperr.Internal(err)
	}
	if ms == nil {
		return nil, apperr.NotFound("schedule")
	}
	a, err := h.assets.GetAsset(r.Context(), ms.AssetID)
	if err != nil {
		return nil, apperr.Internal(err)
	}
	if a == nil || !departmentVisible(actor, a.DepartmentID) {
		return nil, apperr.NotFound("schedule")
	}
	return ms, nil
}
