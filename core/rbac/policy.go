// Package rbac centralizes capability checks. Every route declares the
// permission it needs; handlers never test role names directly.
package rbac

import (
	"strings"

	"github.com/casbin/casbin/v2"
	"github.com/casbin/casbin/v2/model"
)

type Permission string

const (
	PermDepartmentsView   Permission = "departments.view"
	PermDepartmentsManage Permission = "departments.manage"
	PermAssetsView        Permission = "assets.view"
	PermAssetsManage      Permission = "assets.manage"
	PermSchedulesView     Permission = "schedules.view"
	PermSchedulesManage   Permission = "schedules.manage"
	PermChecklistsView    Permission = "checklists.view"
	PermChecklistsManage  Permission = "checklists.manage"
	PermNCRView           Permission = "ncr.view"
	PermNCRManage         Permission = "ncr.manage"
	PermDashboardView     Permission = "dashboard.view"
	PermUsersManage       Permission = "users.manage"
	PermAuditView         Permission = "audit.view"
)

const (
	RoleAdmin          = "admin"
	RoleQualityManager = "quality_manager"
	RoleSupervisor     = "supervisor"
	RoleTechnician     = "technician"
)

const casbinModel = `
[request_definition]
r = sub, perm

[policy_definition]
p = sub, perm

[role_definition]
g = _, _

[policy_effect]
e = some(where (p.eft == allow))

[matchers]
m = g(r.sub, p.sub) && r.perm == p.perm
`

type rule struct {
	role string
	perm Permission
}

var defaultRules = []rule{
	{RoleTechnician, PermAssetsView},
	{RoleTechnician, PermSchedulesView},
	{RoleTechnician, PermChecklistsView},
	{RoleTechnician, PermChecklistsManage},
	{RoleTechnician, PermNCRView},
	{RoleTechnician, PermDashboardView},

	{RoleSupervisor, PermDepartmentsView},
	{RoleSupervisor, PermAssetsManage},
	{RoleSupervisor, PermSchedulesManage},
	{RoleSupervisor, PermNCRManage},

	{RoleQualityManager, PermDepartmentsManage},
	{RoleQualityManager, PermAuditView},

	{RoleAdmin, PermUsersManage},
}

// Role inheritance: each step widens the previous role's grants.
var defaultInheritance = [][2]string{
	{RoleSupervisor, RoleTechnician},
	{RoleQualityManager, RoleSupervisor},
	{RoleAdmin, RoleQualityManager},
}

// "manage" on a resource implies "view" on it.
var manageImpliesView = map[Permission]Permission{
	PermDepartmentsManage: PermDepartmentsView,
	PermAssetsManage:      PermAssetsView,
	PermSchedulesManage:   PermSchedulesView,
	PermChecklistsManage:  PermChecklistsView,
	PermNCRManage:         PermNCRView,
}

type Policy struct {
	enforcer *casbin.Enforcer
}

func NewPolicy() (*Policy, error) {
	m, err := model.NewModelFromString(casbinModel)
	if err != nil {
		return nil, err
	}
	e, err := casbin.NewEnforcer(m)
	if err != nil {
		return nil, err
	}
	for _, r := range defaultRules {
		if _, err := e.AddPolicy(r.role, string(r.perm)); err != nil {
			return nil, err
		}
		if implied, ok := manageImpliesView[r.perm]; ok {
			if _, err := e.AddPolicy(r.role, string(implied)); err != nil {
				return nil, err
			}
		}
	}
	for _, g := range defaultInheritance {
		if _, err := e.AddGroupingPolicy(g[0], g[1]); err != nil {
			return nil, err
		}
	}
	return &Policy{enforcer: e}, nil
}

func (p *Policy) Allowed(role string, perm Permission) bool {
	if p == nil || p.enforcer == nil {
		return false
	}
	role = strings.ToLower(strings.TrimSpace(role))
	if role == "" {
		return false
	}
	ok, err := p.enforcer.Enforce(role, string(perm))
	if err != nil {
		return false
	}
	return ok
}

func ValidRole(role string) bool {
	switch strings.ToLower(strings.TrimSpace(role)) {
	case RoleAdmin, RoleQualityManager, RoleSupervisor, RoleTechnician:
		return true
	}
	return false
}
