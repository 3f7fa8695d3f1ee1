package handlers

import (
	"net/http"
	"strings"

	"helix-qms/core/apperr"
	"helix-qms/core/store"
	"helix-qms/core/utils"
)

type AuditHandler struct {
	audits store.AuditStore
	logger *utils.Logger
}

func NewAuditHandler(audits store.AuditStore, logger *utils.Logger) *AuditHandler {
	return &AuditHandler{audits: audits, logger: logger}
}

func (h *AuditHandler) List(w http.ResponseWriter, r *http.Request) {
	p := parsePage(r)
	filter := store.AuditFilter{
		Username:   strings.TrimSpace(r.URL.Query().Get("username")),
		Action:     strings.TrimSpace(r.URL.Query().Get("action")),
		EntityType: strings.TrimSpace(r.URL.Query().Get("entity_type")),
		Limit:      p.Limit,
		Offset:     p.offset(),
	}
	items, total, err := h.audits.List(r.Context(), filter)
	if err != nil {
		writeError(w, h.logger, apperr.Internal(err))
		return
	}
	writeJSON(w, http.StatusOK, paged(items, p, total))
}
