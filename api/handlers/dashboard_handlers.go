package handlers

import (
	"net/http"
	"time"

	"helix-qms/core/apperr"
	"helix-qms/core/auth"
	"helix-qms/core/compliance"
	"helix-qms/core/store"
	"helix-qms/core/utils"
)

type DashboardHandler struct {
	dashboard  store.DashboardStore
	checklists store.ChecklistsStore
	logger     *utils.Logger
}

func NewDashboardHandler(dashboard store.DashboardStore, checklists store.ChecklistsStore, logger *utils.Logger) *DashboardHandler {
	return &DashboardHandler{dashboard: dashboard, checklists: checklists, logger: logger}
}

func (h *DashboardHandler) Metrics(w http.ResponseWriter, r *http.Request) {
	actor, _ := auth.ActorFromContext(r.Context())
	deptID := actor.EffectiveDepartment(queryID(r, "department_id"))
	m, err := h.dashboard.Metrics(r.Context(), time.Now().UTC(), deptID)
	if err != nil {
		writeError(w, h.logger, apperr.Internal(err))
		return
	}
	writeJSON(w, http.StatusOK, m)
}

const trendMonths = 6

func (h *DashboardHandler) ComplianceTrend(w http.ResponseWriter, r *http.Request) {
	actor, _ := auth.ActorFromContext(r.Context())
	deptID := actor.EffectiveDepartment(queryID(r, "department_id"))
	points, err := compliance.Trend(time.Now().UTC(), trendMonths, func(win compliance.Window) (int, int, error) {
		total, completed, err := h.checklists.CountsInWindow(r.Context(), deptID, win.Start, win.End)
		return int(total), int(completed), err
	})
	if err != nil {
		writeError(w, h.logger, apperr.Internal(err))
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"months": points})
}
