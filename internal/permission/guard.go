package permission

import "net/http"

// Standard console actions.
const (
	ActionView   = "view"
	ActionCreate = "create"
	ActionUpdate = "update"
	ActionDelete = "delete"
	ActionExport = "export"
)

type Mode int

const (
	ModeAny Mode = iota
	ModeAll
)

// Requirement describes what a guarded region needs. Resolution order:
// explicit permission names with the combinator, then module+action, then
// module alone. A requirement naming nothing grants nothing.
type Requirement struct {
	Permissions []string
	Mode        Mode
	Module      string
	Action      string
}

func AnyOf(names ...string) Requirement {
	return Requirement{Permissions: names, Mode: ModeAny}
}

func AllOf(names ...string) Requirement {
	return Requirement{Permissions: names, Mode: ModeAll}
}

func Module(module string) Requirement {
	return Requirement{Module: module}
}

func Action(module string, action string) Requirement {
	return Requirement{Module: module, Action: action}
}

func (r Requirement) Allows(s Set) bool {
	switch {
	case len(r.Permissions) > 0 && r.Mode == ModeAll:
		return s.HasAllPermissions(r.Permissions...)
	case len(r.Permissions) > 0:
		return s.HasAnyPermission(r.Permissions...)
	case r.Module != "" && r.Action != "":
		return s.CanPerformAction(r.Module, r.Action)
	case r.Module != "":
		return s.CanAccessModule(r.Module)
	default:
		return false
	}
}

// Guard returns children when s satisfies r and fallback otherwise. Pass the
// zero value as fallback to render nothing.
func Guard[T any](s Set, r Requirement, children T, fallback T) T {
	if r.Allows(s) {
		return children
	}
	return fallback
}

// ActionForMethod maps an HTTP method to the console action it performs.
func ActionForMethod(method string) string {
	switch method {
	case http.MethodGet, http.MethodHead, http.MethodOptions:
		return ActionView
	case http.MethodPost:
		return ActionCreate
	case http.MethodPut, http.MethodPatch:
		return ActionUpdate
	case http.MethodDelete:
		return ActionDelete
	default:
		return ""
	}
}
