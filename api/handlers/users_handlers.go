package handlers

import (
	"net/http"
	"strings"

	"helix-qms/config"
	"helix-qms/core/apperr"
	"helix-qms/core/auth"
	"helix-qms/core/rbac"
	"helix-qms/core/store"
	"helix-qms/core/utils"
)

type UsersHandler struct {
	cfg         *config.AppConfig
	users       store.UsersStore
	sessions    store.SessionsStore
	departments store.DepartmentsStore
	audits      store.AuditStore
	logger      *utils.Logger
}

func NewUsersHandler(cfg *config.AppConfig, users store.UsersStore, sessions store.SessionsStore, departments store.DepartmentsStore, audits store.AuditStore, logger *utils.Logger) *UsersHandler {
	return &UsersHandler{cfg: cfg, users: users, sessions: sessions, departments: departments, audits: audits, logger: logger}
}

type userRequest struct {
	Username     string `json:"username"`
	Email        string `json:"email"`
	FullName     string `json:"full_name"`
	Role         string `json:"role"`
	DepartmentID *int64 `json:"department_id"`
	Password     string `json:"password,omitempty"`
}

func (h *UsersHandler) List(w http.ResponseWriter, r *http.Request) {
	p := parsePage(r)
	filter := store.UserFilter{
		Role:         strings.ToLower(strings.TrimSpace(r.URL.Query().Get("role"))),
		DepartmentID: queryID(r, "department_id"),
		ActiveOnly:   r.URL.Query().Get("include_inactive") == "",
		Search:       strings.TrimSpace(r.URL.Query().Get("q")),
		Limit:        p.Limit,
		Offset:       p.offset(),
	}
	items, total, err := h.users.ListUsers(r.Context(), filter)
	if err != nil {
		writeError(w, h.logger, apperr.Internal(err))
		return
	}
	writeJSON(w, http.StatusOK, paged(items, p, total))
}

func (h *UsersHandler) Create(w http.ResponseWriter, r *http.Request) {
	actor, _ := auth.ActorFromContext(r.Context())
	var req userRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, h.logger, err)
		return
	}
	if strings.TrimSpace(req.Username) == "" || strings.TrimSpace(req.Email) == "" {
		writeError(w, h.logger, apperr.Validation("username and email are required"))
		return
	}
	if !rbac.ValidRole(req.Role) {
		writeError(w, h.logger, apperr.Validation("invalid role %q", req.Role))
		return
	}
	if len(req.Password) < 8 {
		writeError(w, h.logger, apperr.Validation("password must be at least 8 characters"))
		return
	}
	if req.DepartmentID != nil {
		dept, err := h.departments.GetDepartment(r.Context(), *req.DepartmentID)
		if err != nil {
			writeError(w, h.logger, apperr.Internal(err))
			return
		}
		if dept == nil || !dept.Active {
			writeError(w, h.logger, apperr.Validation("department %d does not exist", *req.DepartmentID))
			return
		}
	}
	ph, err := auth.HashPassword(req.Password, h.cfg.Pepper)
	if err != nil {
		writeError(w, h.logger, apperr.Internal(err))
		return
	}
	user := &store.User{
		Username:     req.Username,
		Email:        req.Email,
		FullName:     req.FullName,
		Role:         strings.ToLower(req.Role),
		DepartmentID: req.DepartmentID,
		PasswordHash: ph.Hash,
		Salt:         ph.Salt,
	}
	if _, err := h.users.CreateUser(r.Context(), user); err != nil {
		if err == store.ErrConflict {
			writeError(w, h.logger, apperr.Conflict("username or email already in use"))
			return
		}
		writeError(w, h.logger, apperr.Internal(err))
		return
	}
	_ = h.audits.Record(r.Context(), actor.Username, "users.create", "user", user.ID, map[string]any{"username": user.Username, "role": user.Role})
	writeJSON(w, http.StatusCreated, user)
}

func (h *UsersHandler) Get(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	user, err := h.users.GetUser(r.Context(), id)
	if err != nil {
		writeError(w, h.logger, apperr.Internal(err))
		return
	}
	if user == nil {
		writeError(w, h.logger, apperr.NotFound("user"))
		return
	}
	writeJSON(w, http.StatusOK, user)
}

func (h *UsersHandler) Update(w http.ResponseWriter, r *http.Request) {
	actor, _ := auth.ActorFromContext(r.Context())
	id, err := pathID(r, "id")
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	var req userRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, h.logger, err)
		return
	}
	if !rbac.ValidRole(req.Role) {
		writeError(w, h.logger, apperr.Validation("invalid role %q", req.Role))
		return
	}
	user, err := h.users.GetUser(r.Context(), id)
	if err != nil {
		writeError(w, h.logger, apperr.Internal(err))
		return
	}
	if user == nil {
		writeError(w, h.logger, apperr.NotFound("user"))
		return
	}
	user.Email = req.Email
	user.FullName = req.FullName
	user.Role = strings.ToLower(req.Role)
	user.DepartmentID = req.DepartmentID
	if err := h.users.UpdateUser(r.Context(), user); err != nil {
		writeError(w, h.logger, apperr.Internal(err))
		return
	}
	_ = h.audits.Record(r.Context(), actor.Username, "users.update", "user", user.ID, nil)
	writeJSON(w, http.StatusOK, user)
}

func (h *UsersHandler) Deactivate(w http.ResponseWriter, r *http.Request) {
	actor, _ := auth.ActorFromContext(r.Context())
	id, err := pathID(r, "id")
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	if id == actor.UserID {
		writeError(w, h.logger, apperr.Conflict("cannot deactivate your own account"))
		return
	}
	if err := h.users.DeactivateUser(r.Context(), id); err != nil {
		if err == store.ErrConflict {
			writeError(w, h.logger, apperr.NotFound("user"))
			return
		}
		writeError(w, h.logger, apperr.Internal(err))
		return
	}
	// Dead sessions must not outlive the account.
	_ = h.sessions.DeleteUserSessions(r.Context(), id)
	_ = h.audits.Record(r.Context(), actor.Username, "users.deactivate", "user", id, nil)
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}
