package service

import (
	"fmt"
	"strings"

	"go-backoffice-console/internal/model"
	"go-backoffice-console/internal/permission"
	"go-backoffice-console/internal/session"
)

// Module is one back-office area shown in the console navigation.
type Module struct {
	Name    string
	Title   string
	Actions []string
}

// DefaultModules is the console's module catalog, in navigation order.
var DefaultModules = []Module{
	{Name: "products", Title: "Products", Actions: []string{permission.ActionView, permission.ActionCreate, permission.ActionUpdate, permission.ActionDelete, permission.ActionExport}},
	{Name: "categories", Title: "Categories", Actions: []string{permission.ActionView, permission.ActionCreate, permission.ActionUpdate, permission.ActionDelete}},
	{Name: "orders", Title: "Orders", Actions: []string{permission.ActionView, permission.ActionUpdate, permission.ActionExport}},
	{Name: "inventory", Title: "Inventory", Actions: []string{permission.ActionView, permission.ActionUpdate, permission.ActionExport}},
	{Name: "shipping", Title: "Shipping", Actions: []string{permission.ActionView, permission.ActionCreate, permission.ActionUpdate}},
	{Name: "payments", Title: "Payments", Actions: []string{permission.ActionView, permission.ActionExport}},
	{Name: "roles", Title: "Roles", Actions: []string{permission.ActionView, permission.ActionCreate, permission.ActionUpdate, permission.ActionDelete}},
	{Name: "users", Title: "Users", Actions: []string{permission.ActionView, permission.ActionCreate, permission.ActionUpdate, permission.ActionDelete}},
	{Name: "audit", Title: "Audit log", Actions: []string{permission.ActionView, permission.ActionExport}},
}

var actionLabels = map[string]string{
	permission.ActionView:   "View",
	permission.ActionCreate: "Create",
	permission.ActionUpdate: "Edit",
	permission.ActionDelete: "Delete",
	permission.ActionExport: "Export",
}

type ConsoleService struct {
	modules []Module
	byName  map[string]Module
}

func NewConsoleService(modules []Module) *ConsoleService {
	if len(modules) == 0 {
		modules = DefaultModules
	}

	byName := make(map[string]Module, len(modules))
	for _, m := range modules {
		byName[m.Name] = m
	}

	return &ConsoleService{modules: modules, byName: byName}
}

func (s *ConsoleService) Module(name string) (Module, bool) {
	m, ok := s.byName[strings.TrimSpace(name)]
	return m, ok
}

// Navigation lists the modules the operator can open.
func (s *ConsoleService) Navigation(set permission.Set) []model.NavItem {
	items := make([]model.NavItem, 0, len(s.modules))
	for _, m := range s.modules {
		if !set.CanAccessModule(m.Name) {
			continue
		}
		items = append(items, model.NavItem{Module: m.Name, Title: m.Title, Path: "/modules/" + m.Name})
	}
	return items
}

// ModuleView describes one module page with only the actions the operator
// may perform.
func (s *ConsoleService) ModuleView(set permission.Set, name string) (model.ModuleView, error) {
	m, ok := s.Module(name)
	if !ok {
		return model.ModuleView{}, fmt.Errorf("%w: %s", model.ErrUnknownModule, name)
	}
	if !set.CanAccessModule(m.Name) {
		return model.ModuleView{}, fmt.Errorf("%w: module %s", model.ErrForbidden, m.Name)
	}

	view := model.ModuleView{
		Module:  m.Name,
		Title:   m.Title,
		APIPath: "/api/" + m.Name,
		Actions: []model.ActionView{},
	}
	for _, action := range m.Actions {
		if !permission.Action(m.Name, action).Allows(set) {
			continue
		}
		view.Actions = append(view.Actions, model.ActionView{Action: action, Label: actionLabels[action]})
	}

	return view, nil
}

// SessionView is the token-free summary served to the UI.
func (s *ConsoleService) SessionView(snap session.Snapshot, profileState string, profileErr error) model.SessionView {
	view := model.SessionView{
		Authenticated: snap.IsAuthenticated(),
		User:          snap.User,
		Permissions:   snap.Permissions.Names(),
		Modules:       snap.Permissions.Modules(),
		ProfileState:  profileState,
	}
	if view.Permissions == nil {
		view.Permissions = []string{}
	}
	if view.Modules == nil {
		view.Modules = []string{}
	}
	if profileErr != nil {
		view.ProfileError = profileErr.Error()
	}
	return view
}
