package handlers

import (
	"net/http"
	"strings"
	"time"

	"helix-qms/config"
	"helix-qms/core/apperr"
	"helix-qms/core/auth"
	"helix-qms/core/ncr"
	"helix-qms/core/store"
	"helix-qms/core/utils"
)

type NCRHandler struct {
	cfg        *config.AppConfig
	ncrs       store.NCRStore
	checklists store.ChecklistsStore
	assets     store.AssetsStore
	users      store.UsersStore
	audits     store.AuditStore
	logger     *utils.Logger
}

func NewNCRHandler(cfg *config.AppConfig, ncrs store.NCRStore, checklists store.ChecklistsStore, assets store.AssetsStore, users store.UsersStore, audits store.AuditStore, logger *utils.Logger) *NCRHandler {
	return &NCRHandler{cfg: cfg, ncrs: ncrs, checklists: checklists, assets: assets, users: users, audits: audits, logger: logger}
}

type ncrRequest struct {
	AssetID      *int64 `json:"asset_id"`
	DepartmentID int64  `json:"department_id"`
	Description  string `json:"description"`
	Severity     string `json:"severity"`
	AssignedTo   *int64 `json:"assigned_to"`
}

func (h *NCRHandler) Create(w http.ResponseWriter, r *http.Request) {
	actor, _ := auth.ActorFromContext(r.Context())
	var req ncrRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, h.logger, err)
		return
	}
	if strings.TrimSpace(req.Description) == "" {
		writeError(w, h.logger, apperr.Validation("description is required"))
		return
	}
	severity, err := ncr.ParseSeverity(req.Severity)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	if req.AssetID != nil {
		a, err := h.assets.GetAsset(r.Context(), *req.AssetID)
		if err != nil {
			writeError(w, h.logger, apperr.Internal(err))
			return
		}
		if a == nil || !departmentVisible(actor, a.DepartmentID) {
			writeError(w, h.logger, apperr.Validation("asset %d does not exist", *req.AssetID))
			return
		}
		if req.DepartmentID == 0 {
			req.DepartmentID = a.DepartmentID
		}
	}
	if actor.Scoped() {
		req.DepartmentID = *actor.DepartmentID
	}
	if req.DepartmentID <= 0 {
		writeError(w, h.logger, apperr.Validation("department_id is required"))
		return
	}
	if req.AssignedTo != nil {
		u, err := h.users.GetUser(r.Context(), *req.AssignedTo)
		if err != nil {
			writeError(w, h.logger, apperr.Internal(err))
			return
		}
		if u == nil || !u.Active {
			writeError(w, h.logger, apperr.Validation("assignee %d does not exist", *req.AssignedTo))
			return
		}
	}
	now := time.Now().UTC()
	due, err := ncr.DueDate(now, severity)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	n := &store.NCR{
		AssetID:      req.AssetID,
		DepartmentID: req.DepartmentID,
		Description:  req.Description,
		RaisedBy:     actor.UserID,
		AssignedTo:   req.AssignedTo,
		Severity:     string(severity),
		DueDate:      due,
	}
	var autoAction *store.NCRAction
	if n.AssignedTo != nil {
		autoAction = &store.NCRAction{
			ActionType:  string(ncr.ActionCorrective),
			Description: ncr.DefaultActionDescription,
			AssignedTo:  n.AssignedTo,
			DueDate:     due,
			Status:      string(ncr.ActionPending),
		}
	}
	if _, err := h.ncrs.CreateNCR(r.Context(), n, h.cfg.NCR.NumberFormat, autoAction); err != nil {
		writeError(w, h.logger, apperr.Internal(err))
		return
	}
	_ = h.audits.Record(r.Context(), actor.Username, "ncr.create", "ncr", n.ID, map[string]any{"number": n.Number})
	resp := map[string]any{"ncr": n}
	if autoAction != nil {
		resp["action"] = autoAction
	}
	writeJSON(w, http.StatusCreated, resp)
}

func (h *NCRHandler) List(w http.ResponseWriter, r *http.Request) {
	actor, _ := auth.ActorFromContext(r.Context())
	p := parsePage(r)
	filter := store.NCRFilter{
		DepartmentID: actor.EffectiveDepartment(queryID(r, "department_id")),
		AssetID:      queryID(r, "asset_id"),
		Status:       strings.ToLower(strings.TrimSpace(r.URL.Query().Get("status"))),
		Severity:     strings.ToLower(strings.TrimSpace(r.URL.Query().Get("severity"))),
		Search:       strings.TrimSpace(r.URL.Query().Get("q")),
		Limit:        p.Limit,
		Offset:       p.offset(),
	}
	if r.URL.Query().Get("assigned_to_me") == "1" || strings.ToLower(r.URL.Query().Get("assigned_to_me")) == "true" {
		filter.AssignedTo = &actor.UserID
	}
	items, total, err := h.ncrs.ListNCRs(r.Context(), filter)
	if err != nil {
		writeError(w, h.logger, apperr.Internal(err))
		return
	}
	writeJSON(w, http.StatusOK, paged(items, p, total))
}

func (h *NCRHandler) Get(w http.ResponseWriter, r *http.Request) {
	actor, _ := auth.ActorFromContext(r.Context())
	n, err := h.loadVisible(r, actor)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	actions, err := h.ncrs.ListActions(r.Context(), n.ID)
	if err != nil {
		writeError(w, h.logger, apperr.Internal(err))
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"ncr": n, "actions": actions})
}

// GetByNumber resolves a report from the number printed on paperwork, e.g.
// NCR-2026-0042.
func (h *NCRHandler) GetByNumber(w http.ResponseWriter, r *http.Request) {
	actor, _ := auth.ActorFromContext(r.Context())
	number := strings.TrimSpace(urlParam(r, "number"))
	if number == "" {
		writeError(w, h.logger, apperr.Validation("number is required"))
		return
	}
	n, err := h.ncrs.GetNCRByNumber(r.Context(), number)
	if err != nil {
		writeError(w, h.logger, apperr.Internal(err))
		return
	}
	if n == nil || !departmentVisible(actor, n.DepartmentID) {
		writeError(w, h.logger, apperr.NotFound("NCR"))
		return
	}
	actions, err := h.ncrs.ListActions(r.Context(), n.ID)
	if err != nil {
		writeError(w, h.logger, apperr.Internal(err))
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"ncr": n, "actions": actions})
}

type ncrUpdateRequest struct {
	Description      *string `json:"description"`
	Severity         *string `json:"severity"`
	AssignedTo       *int64  `json:"assigned_to"`
	RootCause        *string `json:"root_cause"`
	CorrectiveAction *string `json:"corrective_action"`
	PreventiveAction *string `json:"preventive_action"`
	Evidence         *string `json:"evidence"`
}

// Update edits report fields. Severity edits do not move the due date; the
// deadline was fixed when the report was raised.
func (h *NCRHandler) Update(w http.ResponseWriter, r *http.Request) {
	actor, _ := auth.ActorFromContext(r.Context())
	n, err := h.loadVisible(r, actor)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	if ncr.Status(n.Status).Terminal() {
		writeError(w, h.logger, apperr.Conflict("NCR is "+n.Status+" and cannot be edited"))
		return
	}
	var req ncrUpdateRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, h.logger, err)
		return
	}
	if req.Severity != nil {
		if _, err := ncr.ParseSeverity(*req.Severity); err != nil {
			writeError(w, h.logger, err)
			return
		}
	}
	if req.AssignedTo != nil {
		u, err := h.users.GetUser(r.Context(), *req.AssignedTo)
		if err != nil {
			writeError(w, h.logger, apperr.Internal(err))
			return
		}
		if u == nil || !u.Active {
			writeError(w, h.logger, apperr.Validation("assignee %d does not exist", *req.AssignedTo))
			return
		}
	}
	upd := store.NCRUpdate{
		Description:      req.Description,
		Severity:         req.Severity,
		AssignedTo:       req.AssignedTo,
		RootCause:        req.RootCause,
		CorrectiveAction: req.CorrectiveAction,
		PreventiveAction: req.PreventiveAction,
		Evidence:         req.Evidence,
	}
	if err := h.ncrs.UpdateNCR(r.Context(), n.ID, upd); err != nil {
		writeError(w, h.logger, apperr.Internal(err))
		return
	}
	updated, err := h.ncrs.GetNCR(r.Context(), n.ID)
	if err != nil {
		writeError(w, h.logger, apperr.Internal(err))
		return
	}
	_ = h.audits.Record(r.Context(), actor.Username, "ncr.update", "ncr", n.ID, nil)
	writeJSON(w, http.StatusOK, updated)
}

type statusRequest struct {
	Status string `json:"status"`
}

func (h *NCRHandler) SetStatus(w http.ResponseWriter, r *http.Request) {
	actor, _ := auth.ActorFromContext(r.Context())
	n, err := h.loadVisible(r, actor)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	var req statusRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, h.logger, err)
		return
	}
	to, err := ncr.ParseStatus(req.Status)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	if err := ncr.ValidateTransition(ncr.Status(n.Status), to); err != nil {
		writeError(w, h.logger, err)
		return
	}
	var completedDate *time.Time
	if to == ncr.StatusCompleted && n.CompletedDate == nil {
		now := time.Now().UTC()
		completedDate = &now
	}
	if err := h.ncrs.SetNCRStatus(r.Context(), n.ID, string(to), completedDate); err != nil {
		writeError(w, h.logger, apperr.Internal(err))
		return
	}
	updated, err := h.ncrs.GetNCR(r.Context(), n.ID)
	if err != nil {
		writeError(w, h.logger, apperr.Internal(err))
		return
	}
	_ = h.audits.Record(r.Context(), actor.Username, "ncr.set_status", "ncr", n.ID, map[string]any{"from": n.Status, "to": string(to)})
	writeJSON(w, http.StatusOK, updated)
}

func (h *NCRHandler) Delete(w http.ResponseWriter, r *http.Request) {
	actor, _ := auth.ActorFromContext(r.Context())
	n, err := h.loadVisible(r, actor)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	if err := h.ncrs.SoftDeleteNCR(r.Context(), n.ID); err != nil {
		if err == store.ErrConflict {
			writeError(w, h.logger, apperr.NotFound("NCR"))
			return
		}
		writeError(w, h.logger, apperr.Internal(err))
		return
	}
	_ = h.audits.Record(r.Context(), actor.Username, "ncr.delete", "ncr", n.ID, map[string]any{"number": n.Number})
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

type actionRequest struct {
	ActionType  string     `json:"action_type"`
	Description string     `json:"description"`
	AssignedTo  *int64     `json:"assigned_to"`
	DueDate     *time.Time `json:"due_date"`
}

func (h *NCRHandler) CreateAction(w http.ResponseWriter, r *http.Request) {
	actor, _ := auth.ActorFromContext(r.Context())
	n, err := h.loadVisible(r, actor)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	var req actionRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, h.logger, err)
		return
	}
	actionType, err := ncr.ParseActionType(req.ActionType)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	if strings.TrimSpace(req.Description) == "" {
		writeError(w, h.logger, apperr.Validation("description is required"))
		return
	}
	due := n.DueDate
	if req.DueDate != nil {
		due = req.DueDate.UTC()
	}
	a := &store.NCRAction{
		NCRID:       n.ID,
		ActionType:  string(actionType),
		Description: req.Description,
		AssignedTo:  req.AssignedTo,
		DueDate:     due,
	}
	if _, err := h.ncrs.CreateAction(r.Context(), a); err != nil {
		writeError(w, h.logger, apperr.Internal(err))
		return
	}
	_ = h.audits.Record(r.Context(), actor.Username, "ncr.create_action", "ncr_action", a.ID, map[string]any{"ncr_id": n.ID})
	writeJSON(w, http.StatusCreated, a)
}

func (h *NCRHandler) ListActions(w http.ResponseWriter, r *http.Request) {
	actor, _ := auth.ActorFromContext(r.Context())
	n, err := h.loadVisible(r, actor)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	actions, err := h.ncrs.ListActions(r.Context(), n.ID)
	if err != nil {
		writeError(w, h.logger, apperr.Internal(err))
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"items": actions})
}

// SetActionStatus moves a CAPA action through its own lifecycle. The parent
// report's status is not touched; actions outlive closed reports.
func (h *NCRHandler) SetActionStatus(w http.ResponseWriter, r *http.Request) {
	actor, _ := auth.ActorFromContext(r.Context())
	n, err := h.loadVisible(r, actor)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	actionID, err := pathID(r, "action_id")
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	a, err := h.ncrs.GetAction(r.Context(), actionID)
	if err != nil {
		writeError(w, h.logger, apperr.Internal(err))
		return
	}
	if a == nil || a.NCRID != n.ID {
		writeError(w, h.logger, apperr.NotFound("action"))
		return
	}
	var req statusRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, h.logger, err)
		return
	}
	status, err := ncr.ParseActionStatus(req.Status)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	if err := h.ncrs.UpdateActionStatus(r.Context(), actionID, string(status)); err != nil {
		writeError(w, h.logger, apperr.Internal(err))
		return
	}
	a.Status = string(status)
	_ = h.audits.Record(r.Context(), actor.Username, "ncr.set_action_status", "ncr_action", actionID, map[string]any{"status": string(status)})
	writeJSON(w, http.StatusOK, a)
}

func (h *NCRHandler) loadVisible(r *http.Request, actor auth.Actor) (*store.NCR, error) {
	id, err := pathID(r, "id")
	if err != nil {
		return nil, err
	}
	n, err := h.ncrs.GetNCR(r.Context(), id)
	if err != nil {
		return nil, apperr.Internal(err)
	}
	if n == nil || !departmentVisible(actor, n.DepartmentID) {
		return nil, apperr.NotFound("NCR")
	}
	return n, nil
}
