package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"helix-qms/api/handlers"
	"helix-qms/config"
	"helix-qms/core/auth"
	"helix-qms/core/rbac"
	"helix-qms/core/store"
	"helix-qms/core/utils"
)

type Server struct {
	cfg             *config.AppConfig
	logger          *utils.Logger
	policy          *rbac.Policy
	sessionManager  *auth.SessionManager
	activityTracker *sessionActivity

	users       store.UsersStore
	sessions    store.SessionsStore
	departments store.DepartmentsStore
	assets      store.AssetsStore
	schedules   store.SchedulesStore
	checklists  store.ChecklistsStore
	ncrs        store.NCRStore
	dashboard   store.DashboardStore
	audits      store.AuditStore
}

type Deps struct {
	Cfg            *config.AppConfig
	Logger         *utils.Logger
	Policy         *rbac.Policy
	SessionManager *auth.SessionManager

	Users       store.UsersStore
	Sessions    store.SessionsStore
	Departments store.DepartmentsStore
	Assets      store.AssetsStore
	Schedules   store.SchedulesStore
	Checklists  store.ChecklistsStore
	NCRs        store.NCRStore
	Dashboard   store.DashboardStore
	Audits      store.AuditStore
}

func NewServer(d Deps) *Server {
	return &Server{
		cfg:             d.Cfg,
		logger:          d.Logger,
		policy:          d.Policy,
		sessionManager:  d.SessionManager,
		activityTracker: newSessionActivity(),
		users:           d.Users,
		sessions:        d.Sessions,
		departments:     d.Departments,
		assets:          d.Assets,
		schedules:       d.Schedules,
		checklists:      d.Checklists,
		ncrs:            d.NCRs,
		dashboard:       d.Dashboard,
		audits:          d.Audits,
	}
}

type routeHandlers struct {
	auth        *handlers.AuthHandler
	users       *handlers.UsersHandler
	departments *handlers.DepartmentsHandler
	assets      *handlers.AssetsHandler
	schedules   *handlers.SchedulesHandler
	checklists  *handlers.ChecklistsHandler
	ncrs        *handlers.NCRHandler
	dashboard   *handlers.DashboardHandler
	audit       *handlers.AuditHandler
}

func (s *Server) newRouteHandlers() routeHandlers {
	return routeHandlers{
		auth:        handlers.NewAuthHandler(s.cfg, s.users, s.sessionManager, s.audits, s.logger),
		users:       handlers.NewUsersHandler(s.cfg, s.users, s.sessions, s.departments, s.audits, s.logger),
		departments: handlers.NewDepartmentsHandler(s.departments, s.audits, s.logger),
		assets:      handlers.NewAssetsHandler(s.assets, s.departments, s.audits, s.logger),
		schedules:   handlers.NewSchedulesHandler(s.cfg, s.schedules, s.assets, s.audits, s.logger),
		checklists:  handlers.NewChecklistsHandler(s.cfg, s.checklists, s.assets, s.ncrs, s.users, s.audits, s.logger),
		ncrs:        handlers.NewNCRHandler(s.cfg, s.ncrs, s.checklists, s.assets, s.users, s.audits, s.logger),
		dashboard:   handlers.NewDashboardHandler(s.dashboard, s.checklists, s.logger),
		audit:       handlers.NewAuditHandler(s.audits, s.logger),
	}
}

func (s *Server) Router() http.Handler {
	h := s.newRouteHandlers()
	r := chi.NewRouter()
	r.Use(s.recoverMiddleware, s.jsonMiddleware, s.loggingMiddleware)

	r.Post("/api/auth/login", h.auth.Login)
	r.Post("/api/auth/logout", s.withSession(h.auth.Logout))
	r.Get("/api/auth/me", s.withSession(h.auth.Me))
	r.Post("/api/auth/change-password", s.withSession(h.auth.ChangePassword))

	view := func(p rbac.Permission, fn http.HandlerFunc) http.HandlerFunc {
		return s.withSession(s.requirePermission(p)(fn))
	}

	r.Get("/api/users", view(rbac.PermUsersManage, h.users.List))
	r.Post("/api/users", view(rbac.PermUsersManage, h.users.Create))
	r.Get("/api/users/{id}", view(rbac.PermUsersManage, h.users.Get))
	r.Put("/api/users/{id}", view(rbac.PermUsersManage, h.users.Update))
	r.Delete("/api/users/{id}", view(rbac.PermUsersManage, h.users.Deactivate))

	r.Get("/api/departments", view(rbac.PermDepartmentsView, h.departments.List))
	r.Post("/api/departments", view(rbac.PermDepartmentsManage, h.departments.Create))
	r.Get("/api/departments/{id}", view(rbac.PermDepartmentsView, h.departments.Get))
	r.Put("/api/departments/{id}", view(rbac.PermDepartmentsManage, h.departments.Update))
	r.Delete("/api/departments/{id}", view(rbac.PermDepartmentsManage, h.departments.Deactivate))

	r.Get("/api/asset-types", view(rbac.PermAssetsView, h.assets.ListTypes))
	r.Post("/api/asset-types", view(rbac.PermAssetsManage, h.assets.CreateType))
	r.Get("/api/assets", view(rbac.PermAssetsView, h.assets.List))
	r.Post("/api/assets", view(rbac.PermAssetsManage, h.assets.Create))
	r.Get("/api/assets/{id}", view(rbac.PermAssetsView, h.assets.Get))
	r.Put("/api/assets/{id}", view(rbac.PermAssetsManage, h.assets.Update))
	r.Delete("/api/assets/{id}", view(rbac.PermAssetsManage, h.assets.Retire))
	r.Get("/api/assets/{id}/records", view(rbac.PermSchedulesView, h.schedules.ListRecords))

	r.Get("/api/schedules", view(rbac.PermSchedulesView, h.schedules.List))
	r.Post("/api/schedules", view(rbac.PermSchedulesManage, h.schedules.Create))
	r.Get("/api/schedules/{id}", view(rbac.PermSchedulesView, h.schedules.Get))
	r.Put("/api/schedules/{id}", view(rbac.PermSchedulesManage, h.schedules.Update))
	r.Delete("/api/schedules/{id}", view(rbac.PermSchedulesManage, h.schedules.Deactivate))
	r.Post("/api/schedules/{id}/complete", view(rbac.PermSchedulesManage, h.schedules.Complete))

	r.Get("/api/checklists", view(rbac.PermChecklistsView, h.checklists.List))
	r.Post("/api/checklists", view(rbac.PermChecklistsManage, h.checklists.Create))
	r.Get("/api/checklists/{id}", view(rbac.PermChecklistsView, h.checklists.Get))
	r.Post("/api/checklists/{id}/complete", view(rbac.PermChecklistsManage, h.checklists.Complete))
	r.Put("/api/checklists/{id}/items/{item_id}", view(rbac.PermChecklistsManage, h.checklists.SetItemResult))

	r.Get("/api/ncrs", view(rbac.PermNCRView, h.ncrs.List))
	r.Post("/api/ncrs", view(rbac.PermNCRManage, h.ncrs.Create))
	r.Get("/api/ncrs/by-number/{number}", view(rbac.PermNCRView, h.ncrs.GetByNumber))
	r.Get("/api/ncrs/{id}", view(rbac.PermNCRView, h.ncrs.Get))
	r.Put("/api/ncrs/{id}", view(rbac.PermNCRManage, h.ncrs.Update))
	r.Post("/api/ncrs/{id}/status", view(rbac.PermNCRManage, h.ncrs.SetStatus))
	r.Delete("/api/ncrs/{id}", view(rbac.PermNCRManage, h.ncrs.Delete))
	r.Get("/api/ncrs/{id}/actions", view(rbac.PermNCRView, h.ncrs.ListActions))
	r.Post("/api/ncrs/{id}/actions", view(rbac.PermNCRManage, h.ncrs.CreateAction))
	r.Post("/api/ncrs/{id}/actions/{action_id}/status", view(rbac.PermNCRManage, h.ncrs.SetActionStatus))

	r.Get("/api/dashboard/metrics", view(rbac.PermDashboardView, h.dashboard.Metrics))
	r.Get("/api/dashboard/compliance-trend", view(rbac.PermDashboardView, h.dashboard.ComplianceTrend))

	r.Get("/api/audit", view(rbac.PermAuditView, h.audit.List))

	r.Get("/api/health", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	return r
}
