package handlers

import (
	"net/http"
	"strings"

	"helix-qms/core/apperr"
	"helix-qms/core/auth"
	"helix-qms/core/store"
	"helix-qms/core/utils"
)

type DepartmentsHandler struct {
	departments store.DepartmentsStore
	audits      store.AuditStore
	logger      *utils.Logger
}

func NewDepartmentsHandler(departments store.DepartmentsStore, audits store.AuditStore, logger *utils.Logger) *DepartmentsHandler {
	return &DepartmentsHandler{departments: departments, audits: audits, logger: logger}
}

type departmentRequest struct {
	Name        string `json:"name"`
	Description string `json:"description"`
}

func (h *DepartmentsHandler) List(w http.ResponseWriter, r *http.Request) {
	activeOnly := r.URL.Query().Get("include_inactive") == ""
	items, err := h.departments.ListDepartments(r.Context(), activeOnly)
	if err != nil {
		writeError(w, h.logger, apperr.Internal(err))
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"items": items})
}

func (h *DepartmentsHandler) Create(w http.ResponseWriter, r *http.Request) {
	actor, _ := auth.ActorFromContext(r.Context())
	var req departmentRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, h.logger, err)
		return
	}
	if strings.TrimSpace(req.Name) == "" {
		writeError(w, h.logger, apperr.Validation("department name is required"))
		return
	}
	d := &store.Department{Name: req.Name, Description: req.Description}
	if _, err := h.departments.CreateDepartment(r.Context(), d); err != nil {
		if err == store.ErrConflict {
			writeError(w, h.logger, apperr.Conflict("department name already exists"))
			return
		}
		writeError(w, h.logger, apperr.Internal(err))
		return
	}
	_ = h.audits.Record(r.Context(), actor.Username, "departments.create", "department", d.ID, map[string]any{"name": d.Name})
	writeJSON(w, http.StatusCreated, d)
}

func (h *DepartmentsHandler) Get(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	d, err := h.departments.GetDepartment(r.Context(), id)
	if err != nil {
		writeError(w, h.logger, apperr.Internal(err))
		return
	}
	if d == nil {
		writeError(w, h.logger, apperr.NotFound("department"))
		return
	}
	writeJSON(w, http.StatusOK, d)
}

func (h *DepartmentsHandler) Update(w http.ResponseWriter, r *http.Request) {
	actor, _ := auth.ActorFromContext(r.Context())
	id, err := pathID(r, "id")
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	var req departmentRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, h.logger, err)
		return
	}
	if strings.TrimSpace(req.Name) == "" {
		writeError(w, h.logger, apperr.Validation("department name is required"))
		return
	}
	d := &store.Department{ID: id, Name: req.Name, Description: req.Description}
	if err := h.departments.UpdateDepartment(r.Context(), d); err != nil {
		if err == store.ErrConflict {
			writeError(w, h.logger, apperr.Conflict("department name already exists"))
			return
		}
		writeError(w, h.logger, apperr.NotFound("department"))
		return
	}
	_ = h.audits.Record(r.Context(), actor.Username, "departments.update", "department", id, nil)
	writeJSON(w, http.StatusOK, d)
}

func (h *DepartmentsHandler) Deactivate(w http.ResponseWriter, r *http.Request) {
	actor, _ := auth.ActorFromContext(r.Context())
	id, err := pathID(r, "id")
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	if err := h.departments.DeactivateDepartment(r.Context(), id); err != nil {
		if err == store.ErrConflict {
			writeError(w, h.logger, apperr.NotFound("department"))
			return
		}
		writeError(w, h.logger, apperr.Internal(err))
		return
	}
	_ = h.audits.Record(r.Context(), actor.Username, "departments.deactivate", "department", id, nil)
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}
