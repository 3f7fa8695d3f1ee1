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

type ChecklistsHandler struct {
	cfg        *config.AppConfig
	checklists store.ChecklistsStore
	assets     store.AssetsStore
	ncrs       store.NCRStore
	users      store.UsersStore
	audits     store.AuditStore
	logger     *utils.Logger
}

func NewChecklistsHandler(cfg *config.AppConfig, checklists store.ChecklistsStore, assets store.AssetsStore, ncrs store.NCRStore, users store.UsersStore, audits store.AuditStore, logger *utils.Logger) *ChecklistsHandler {
	return &ChecklistsHandler{cfg: cfg, checklists: checklists, assets: assets, ncrs: ncrs, users: users, audits: audits, logger: logger}
}

var validItemResult = map[string]struct{}{
	"pass": {},
	"fail": {},
	"na":   {},
}

type checklistRequest struct {
	AssetID int64    `json:"asset_id"`
	Title   string   `json:"title"`
	Items   []string `json:"items"`
}

func (h *ChecklistsHandler) Create(w http.ResponseWriter, r *http.Request) {
	actor, _ := auth.ActorFromContext(r.Context())
	var req checklistRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, h.logger, err)
		return
	}
	if strings.TrimSpace(req.Title) == "" {
		writeError(w, h.logger, apperr.Validation("title is required"))
		return
	}
	if len(req.Items) == 0 {
		writeError(w, h.logger, apperr.Validation("a checklist needs at least one item"))
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
	c := &store.Checklist{
		AssetID:      a.ID,
		DepartmentID: a.DepartmentID,
		Title:        req.Title,
		CreatedBy:    actor.UserID,
	}
	for _, q := range req.Items {
		if strings.TrimSpace(q) == "" {
			writeError(w, h.logger, apperr.Validation("checklist items cannot be blank"))
			return
		}
		c.Items = append(c.Items, store.ChecklistItem{Question: q})
	}
	if _, err := h.checklists.CreateChecklist(r.Context(), c); err != nil {
		writeError(w, h.logger, apperr.Internal(err))
		return
	}
	_ = h.audits.Record(r.Context(), actor.Username, "checklists.create", "checklist", c.ID, map[string]any{"asset_id": c.AssetID})
	writeJSON(w, http.StatusCreated, c)
}

func (h *ChecklistsHandler) List(w http.ResponseWriter, r *http.Request) {
	actor, _ := auth.ActorFromContext(r.Context())
	p := parsePage(r)
	filter := store.ChecklistFilter{
		AssetID:      queryID(r, "asset_id"),
		DepartmentID: actor.EffectiveDepartment(queryID(r, "department_id")),
		Status:       strings.ToLower(strings.TrimSpace(r.URL.Query().Get("status"))),
		Limit:        p.Limit,
		Offset:       p.offset(),
	}
	items, total, err := h.checklists.ListChecklists(r.Context(), filter)
	if err != nil {
		writeError(w, h.logger, apperr.Internal(err))
		return
	}
	writeJSON(w, http.StatusOK, paged(items, p, total))
}

func (h *ChecklistsHandler) Get(w http.ResponseWriter, r *http.Request) {
	actor, _ := auth.ActorFromContext(r.Context())
	c, err := h.loadVisible(r, actor)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, c)
}

type itemResultRequest struct {
	Result     string `json:"result"`
	Remarks    string `json:"remarks"`
	Severity   string `json:"severity"`
	AssignedTo *int64 `json:"assigned_to"`
}

// SetItemResult records a pass/fail/na verdict. A failed item automatically
// raises an NCR tied to the item, so no finding can be recorded and then
// silently dropped.
func (h *ChecklistsHandler) SetItemResult(w http.ResponseWriter, r *http.Request) {
	actor, _ := auth.ActorFromContext(r.Context())
	c, err := h.loadVisible(r, actor)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	if c.Status == "completed" {
		writeError(w, h.logger, apperr.Conflict("checklist is already completed"))
		return
	}
	itemID, err := pathID(r, "item_id")
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	item, err := h.checklists.GetItem(r.Context(), itemID)
	if err != nil {
		writeError(w, h.logger, apperr.Internal(err))
		return
	}
	if item == nil || item.ChecklistID != c.ID {
		writeError(w, h.logger, apperr.NotFound("checklist item"))
		return
	}
	var req itemResultRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, h.logger, err)
		return
	}
	result := strings.ToLower(strings.TrimSpace(req.Result))
	if _, ok := validItemResult[result]; !ok {
		writeError(w, h.logger, apperr.Validation("invalid item result %q", req.Result))
		return
	}
	if err := h.checklists.SetItemResult(r.Context(), itemID, result, req.Remarks); err != nil {
		writeError(w, h.logger, apperr.Internal(err))
		return
	}
	if c.Status == "draft" {
		_ = h.checklists.SetChecklistStatus(r.Context(), c.ID, "in_progress", nil)
	}
	resp := map[string]any{"status": "ok"}
	if result == "fail" {
		n, err := h.raiseNCR(r, actor, c, item, req)
		if err != nil {
			writeError(w, h.logger, err)
			return
		}
		resp["ncr"] = n
	}
	_ = h.audits.Record(r.Context(), actor.Username, "checklists.set_item_result", "checklist_item", itemID, map[string]any{"result": result})
	writeJSON(w, http.StatusOK, resp)
}

func (h *ChecklistsHandler) raiseNCR(r *http.Request, actor auth.Actor, c *store.Checklist, item *store.ChecklistItem, req itemResultRequest) (*store.NCR, error) {
	sevRaw := req.Severity
	if strings.TrimSpace(sevRaw) == "" {
		sevRaw = string(ncr.SeverityMedium)
	}
	severity, err := ncr.ParseSeverity(sevRaw)
	if err != nil {
		return nil, err
	}
	now := time.Now().UTC()
	due, err := ncr.DueDate(now, severity)
	if err != nil {
		return nil, err
	}
	desc := "Checklist item failed: " + item.Question
	if strings.TrimSpace(req.Remarks) != "" {
		desc += " (" + req.Remarks + ")"
	}
	n := &store.NCR{
		ChecklistItemID: &item.ID,
		AssetID:         &c.AssetID,
		DepartmentID:    c.DepartmentID,
		Description:     desc,
		RaisedBy:        actor.UserID,
		AssignedTo:      req.AssignedTo,
		Severity:        string(severity),
		DueDate:         due,
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
		return nil, apperr.Internal(err)
	}
	_ = h.audits.Record(r.Context(), actor.Username, "ncr.create", "ncr", n.ID, map[string]any{"number": n.Number, "source": "checklist_item"})
	return n, nil
}

func (h *ChecklistsHandler) Complete(w http.ResponseWriter, r *http.Request) {
	actor, _ := auth.ActorFromContext(r.Context())
	c, err := h.loadVisible(r, actor)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	if c.Status == "completed" {
		writeError(w, h.logger, apperr.Conflict("checklist is already completed"))
		return
	}
	for _, item := range c.Items {
		if item.Result == "pending" {
			writeError(w, h.logger, apperr.Conflict("all items need a result before completion"))
			return
		}
	}
	now := time.Now().UTC()
	if err := h.checklists.SetChecklistStatus(r.Context(), c.ID, "completed", &now); err != nil {
		writeError(w, h.logger, apperr.Internal(err))
		return
	}
	c.Status = "completed"
	c.CompletedAt = &now
	_ = h.audits.Record(r.Context(), actor.Username, "checklists.complete", "checklist", c.ID, nil)
	writeJSON(w, http.StatusOK, c)
}

func (h *ChecklistsHandler) loadVisible(r *http.Request, actor auth.Actor) (*store.Checklist, error) {
	id, err := pathID(r, "id")
	if err != nil {
		return nil, err
	}
	c, err := h.checklists.GetChecklist(r.Context(), id)
	if err != nil {
		return nil, apperr.Internal(err)
	}
	if c == nil || !departmentVisible(actor, c.DepartmentID) {
		return nil, apperr.NotFound("checklist")
	}
	return c, nil
}
