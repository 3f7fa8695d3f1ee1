package handlers

import (
	"net"
	"net/http"
	"strings"
	"time"

	"helix-qms/config"
	"helix-qms/core/apperr"
	"helix-qms/core/auth"
	"helix-qms/core/store"
	"helix-qms/core/utils"
)

type AuthHandler struct {
	cfg      *config.AppConfig
	users    store.UsersStore
	sessions *auth.SessionManager
	audits   store.AuditStore
	logger   *utils.Logger
}

func NewAuthHandler(cfg *config.AppConfig, users store.UsersStore, sessions *auth.SessionManager, audits store.AuditStore, logger *utils.Logger) *AuthHandler {
	return &AuthHandler{cfg: cfg, users: users, sessions: sessions, audits: audits, logger: logger}
}

type loginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, h.logger, err)
		return
	}
	req.Username = strings.ToLower(strings.TrimSpace(req.Username))
	if req.Username == "" || req.Password == "" {
		writeError(w, h.logger, apperr.Validation("username and password are required"))
		return
	}
	user, err := h.users.FindByUsername(r.Context(), req.Username)
	if err != nil {
		writeError(w, h.logger, apperr.Internal(err))
		return
	}
	if user == nil || !user.Active || !auth.VerifyPassword(req.Password, user.Salt, h.cfg.Pepper, user.PasswordHash) {
		if h.logger != nil {
			h.logger.Printf("LOGIN fail user=%s", req.Username)
		}
		writeJSON(w, http.StatusUnauthorized, map[string]string{"error": "invalid credentials"})
		return
	}
	sr, err := h.sessions.Create(r.Context(), user, clientIP(r), r.UserAgent())
	if err != nil {
		writeError(w, h.logger, apperr.Internal(err))
		return
	}
	setSessionCookies(w, sr)
	_ = h.audits.Record(r.Context(), user.Username, "auth.login", "user", user.ID, nil)
	writeJSON(w, http.StatusOK, map[string]any{"user": user, "csrf_token": sr.CSRFToken})
}

func (h *AuthHandler) Logout(w http.ResponseWriter, r *http.Request) {
	actor, _ := auth.ActorFromContext(r.Context())
	if cookie, err := r.Cookie("helix_session"); err == nil && cookie.Value != "" {
		_ = h.sessions.Delete(r.Context(), cookie.Value)
	}
	clearSessionCookies(w)
	_ = h.audits.Record(r.Context(), actor.Username, "auth.logout", "user", actor.UserID, nil)
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (h *AuthHandler) Me(w http.ResponseWriter, r *http.Request) {
	actor, ok := auth.ActorFromContext(r.Context())
	if !ok {
		writeJSON(w, http.StatusUnauthorized, map[string]string{"error": "unauthorized"})
		return
	}
	user, err := h.users.GetUser(r.Context(), actor.UserID)
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

type changePasswordRequest struct {
	Current string `json:"current_password"`
	New     string `json:"new_password"`
}

func (h *AuthHandler) ChangePassword(w http.ResponseWriter, r *http.Request) {
	actor, ok := auth.ActorFromContext(r.Context())
	if !ok {
		writeJSON(w, http.StatusUnauthorized, map[string]string{"error": "unauthorized"})
		return
	}
	var req changePasswordRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, h.logger, err)
		return
	}
	if len(req.New) < 8 {
		writeError(w, h.logger, apperr.Validation("new password must be at least 8 characters"))
		return
	}
	user, err := h.users.GetUser(r.Context(), actor.UserID)
	if err != nil || user == nil {
		writeError(w, h.logger, apperr.Internal(err))
		return
	}
	if !auth.VerifyPassword(req.Current, user.Salt, h.cfg.Pepper, user.PasswordHash) {
		writeError(w, h.logger, apperr.Authorization("current password does not match"))
		return
	}
	ph, err := auth.HashPassword(req.New, h.cfg.Pepper)
	if err != nil {
		writeError(w, h.logger, apperr.Internal(err))
		return
	}
	if err := h.users.SetPassword(r.Context(), user.ID, ph.Hash, ph.Salt); err != nil {
		writeError(w, h.logger, apperr.Internal(err))
		return
	}
	_ = h.audits.Record(r.Context(), actor.Username, "auth.change_password", "user", user.ID, nil)
	// The old session token must not survive a credential change.
	if cookie, err := r.Cookie("helix_session"); err == nil && cookie.Value != "" {
		if sr, err := h.sessions.Rotate(r.Context(), cookie.Value); err == nil {
			setSessionCookies(w, sr)
			writeJSON(w, http.StatusOK, map[string]string{"status": "ok", "csrf_token": sr.CSRFToken})
			return
		}
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func setSessionCookies(w http.ResponseWriter, sr *store.SessionRecord) {
	http.SetCookie(w, &http.Cookie{
		Name:     "helix_session",
		Value:    sr.ID,
		Path:     "/",
		Expires:  sr.ExpiresAt,
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	})
	http.SetCookie(w, &http.Cookie{
		Name:     "helix_csrf",
		Value:    sr.CSRFToken,
		Path:     "/",
		Expires:  sr.ExpiresAt,
		SameSite: http.SameSiteLaxMode,
	})
}

func clearSessionCookies(w http.ResponseWriter) {
	expired := time.Unix(0, 0)
	http.SetCookie(w, &http.Cookie{Name: "helix_session", Value: "", Path: "/", Expires: expired, HttpOnly: true})
	http.SetCookie(w, &http.Cookie{Name: "helix_csrf", Value: "", Path: "/", Expires: expired})
}

func clientIP(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
