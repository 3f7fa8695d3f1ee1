package handlers

import (
	"net/http"
	"strings"

	"helix-qms/core/apperr"
	"helix-qms/core/auth"
	"helix-qms/core/store"
	"helix-qms/core/utils"
)

type AssetsHandler struct {
	assets      store.AssetsStore
	departments store.DepartmentsStore
	audits      store.AuditStore
	logger      *utils.Logger
}

func NewAssetsHandler(assets store.AssetsStore, departments store.DepartmentsStore, audits store.AuditStore, logger *utils.Logger) *AssetsHandler {
	return &AssetsHandler{assets: assets, departments: departments, audits: audits, logger: logger}
}

var validAssetStatus = map[string]struct{}{
	"active":      {},
	"maintenance": {},
	"retired":     {},
}

type assetTypeRequest struct {
	DepartmentID int64  `json:"department_id"`
	Name         string `json:"name"`
	Description  string `json:"description"`
}

func (h *AssetsHandler) CreateType(w http.ResponseWriter, r *http.Request) {
	actor, _ := auth.ActorFromContext(r.Context())
	var req assetTypeRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, h.logger, err)
		return
	}
	if strings.TrimSpace(req.Name) == "" || req.DepartmentID <= 0 {
		writeError(w, h.logger, apperr.Validation("name and department_id are required"))
		return
	}
	dept, err := h.departments.GetDepartment(r.Context(), req.DepartmentID)
	if err != nil {
		writeError(w, h.logger, apperr.Internal(err))
		return
	}
	if dept == nil || !dept.Active {
		writeError(w, h.logger, apperr.Validation("department %d does not exist", req.DepartmentID))
		return
	}
	at := &store.AssetType{DepartmentID: req.DepartmentID, Name: req.Name, Description: req.Description}
	if _, err := h.assets.CreateAssetType(r.Context(), at); err != nil {
		if err == store.ErrConflict {
			writeError(w, h.logger, apperr.Conflict("asset type already exists in this department"))
			return
		}
		writeError(w, h.logger, apperr.Internal(err))
		return
	}
	_ = h.audits.Record(r.Context(), actor.Username, "assets.create_type", "asset_type", at.ID, map[string]any{"name": at.Name})
	writeJSON(w, http.StatusCreated, at)
}

func (h *AssetsHandler) ListTypes(w http.ResponseWriter, r *http.Request) {
	actor, _ := auth.ActorFromContext(r.Context())
	deptID := actor.EffectiveDepartment(queryID(r, "department_id"))
	items, err := h.assets.ListAssetTypes(r.Context(), deptID)
	if err != nil {
		writeError(w, h.logger, apperr.Internal(err))
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"items": items})
}

type assetRequest struct {
	AssetTypeID  int64  `json:"asset_type_id"`
	DepartmentID int64  `json:"department_id"`
	Tag          string `json:"tag"`
	Name         string `json:"name"`
	Location     string `json:"location"`
	Status       string `json:"status"`
}

func (h *AssetsHandler) Create(w http.ResponseWriter, r *http.Request) {
	actor, _ := auth.ActorFromContext(r.Context())
	var req assetRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, h.logger, err)
		return
	}
	if strings.TrimSpace(req.Tag) == "" || strings.TrimSpace(req.Name) == "" {
		writeError(w, h.logger, apperr.Validation("tag and name are required"))
		return
	}
	at, err := h.assets.GetAssetType(r.Context(), req.AssetTypeID)
	if err != nil {
		writeError(w, h.logger, apperr.Internal(err))
		return
	}
	if at == nil {
		writeError(w, h.logger, apperr.Validation("asset type %d does not exist", req.AssetTypeID))
		return
	}
	if req.DepartmentID == 0 {
		req.DepartmentID = at.DepartmentID
	}
	if req.DepartmentID != at.DepartmentID {
		writeError(w, h.logger, apperr.Validation("asset department must match its type's department"))
		return
	}
	if req.Status != "" {
		if _, ok := validAssetStatus[strings.ToLower(req.Status)]; !ok {
			writeError(w, h.logger, apperr.Validation("invalid asset status %q", req.Status))
			return
		}
	}
	a := &store.Asset{
		AssetTypeID:  req.AssetTypeID,
		DepartmentID: req.DepartmentID,
		Tag:          req.Tag,
		Name:         req.Name,
		Location:     req.Location,
		Status:       strings.ToLower(req.Status),
	}
	if _, err := h.assets.CreateAsset(r.Context(), a); err != nil {
		if err == store.ErrConflict {
			writeError(w, h.logger, apperr.Conflict("asset tag already in use"))
			return
		}
		writeError(w, h.logger, apperr.Internal(err))
		return
	}
	_ = h.audits.Record(r.Context(), actor.Username, "assets.create", "asset", a.ID, map[string]any{"tag": a.Tag})
	writeJSON(w, http.StatusCreated, a)
}

func (h *AssetsHandler) List(w http.ResponseWriter, r *http.Request) {
	actor, _ := auth.ActorFromContext(r.Context())
	p := parsePage(r)
	filter := store.AssetFilter{
		DepartmentID: actor.EffectiveDepartment(queryID(r, "department_id")),
		AssetTypeID:  queryID(r, "asset_type_id"),
		Status:       strings.ToLower(strings.TrimSpace(r.URL.Query().Get("status"))),
		Search:       strings.TrimSpace(r.URL.Query().Get("q")),
		Limit:        p.Limit,
		Offset:       p.offset(),
	}
	items, total, err := h.assets.ListAssets(r.Context(), filter)
	if err != nil {
		writeError(w, h.logger, apperr.Internal(err))
		return
	}
	writeJSON(w, http.StatusOK, paged(items, p, total))
}

func (h *AssetsHandler) Get(w http.ResponseWriter, r *http.Request) {
	actor, _ := auth.ActorFromContext(r.Context())
	id, err := pathID(r, "id")
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	a, err := h.assets.GetAsset(r.Context(), id)
	if err != nil {
		writeError(w, h.logger, apperr.Internal(err))
		return
	}
	if a == nil || !departmentVisible(actor, a.DepartmentID) {
		writeError(w, h.logger, apperr.NotFound("asset"))
		return
	}
	writeJSON(w, http.StatusOK, a)
}

func (h *AssetsHandler) Update(w http.ResponseWriter, r *http.Request) {
	actor, _ := auth.ActorFromContext(r.Context())
	id, err := pathID(r, "id")
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	var req assetRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, h.logger, err)
		return
	}
	a, err := h.assets.GetAsset(r.Context(), id)
	if err != nil {
		writeError(w, h.logger, apperr.Internal(err))
		return
	}
	if a == nil || !departmentVisible(actor, a.DepartmentID) {
		writeError(w, h.logger, apperr.NotFound("asset"))
		return
	}
	if req.Status != "" {
		if _, ok := validAssetStatus[strings.ToLower(req.Status)]; !ok {
			writeError(w, h.logger, apperr.Validation("invalid asset status %q", req.Status))
			return
		}
		a.Status = strings.ToLower(req.Status)
	}
	if strings.TrimSpace(req.Name) != "" {
		a.Name = req.Name
	}
	a.Location = req.Location
	if req.AssetTypeID > 0 {
		a.AssetTypeID = req.AssetTypeID
	}
	if err := h.assets.UpdateAsset(r.Context(), a); err != nil {
		writeError(w, h.logger, apperr.Internal(err))
		return
	}
	_ = h.audits.Record(r.Context(), actor.Username, "assets.update", "asset", a.ID, nil)
	writeJSON(w, http.StatusOK, a)
}

func (h *AssetsHandler) Retire(w http.ResponseWriter, r *http.Request) {
	actor, _ := auth.ActorFromContext(r.Context())
	id, err := pathID(r, "id")
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	a, err := h.assets.GetAsset(r.Context(), id)
	if err != nil {
		writeError(w, h.logger, apperr.Internal(err))
		return
	}
	if a == nil || !departmentVisible(actor, a.DepartmentID) {
		writeError(w, h.logger, apperr.NotFound("asset"))
		return
	}
	if err := h.assets.RetireAsset(r.Context(), id); err != nil {
		if err == store.ErrConflict {
			writeError(w, h.logger, apperr.Conflict("asset is already retired"))
			return
		}
		writeError(w, h.logger, apperr.Internal(err))
		return
	}
	_ = h.audits.Record(r.Context(), actor.Username, "assets.retire", "asset", id, nil)
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// departmentVisible hides cross-department records from scoped actors rather
// than answering 403, so record existence does not leak.
func departmentVisible(actor auth.Actor, departmentID int64) bool {
	if !actor.Scoped() {
		return true
	}
	return actor.DepartmentID != nil && *actor.DepartmentID == departmentID
}
