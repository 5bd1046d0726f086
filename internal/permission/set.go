// Package permission evaluates what the signed-in operator may see and do.
// Every predicate answers false when there is no user, no role or no
// permissions: absence of data is absence of access.
package permission

import (
	"sort"
	"strings"

	"go-backoffice-console/internal/model"
)

// Set is the flattened permission set of one user. The zero value denies
// everything. A Set is immutable once built and safe for concurrent use.
type Set struct {
	names   map[string]struct{}
	modules map[string]struct{}
	role    string
}

// NewSet flattens the permissions of the user's primary role and of any
// additional roles into one set of "<module>.<action>" names.
func NewSet(user *model.User) Set {
	if user == nil {
		return Set{}
	}

	s := Set{
		names:   map[string]struct{}{},
		modules: map[string]struct{}{},
		role:    user.RoleName(),
	}

	if user.Role != nil {
		s.addRole(*user.Role)
	}
	for _, role := range user.Roles {
		s.addRole(role)
	}

	return s
}

func (s Set) addRole(role model.Role) {
	for _, p := range role.Permissions {
		name := p.CanonicalName()
		if name == "" {
			continue
		}
		s.names[name] = struct{}{}

		if module, _, ok := strings.Cut(name, "."); ok && module != "" {
			s.modules[module] = struct{}{}
		}
	}
}

func (s Set) HasPermission(name string) bool {
	if name == "" {
		return false
	}
	_, ok := s.names[name]
	return ok
}

func (s Set) HasAnyPermission(names ...string) bool {
	for _, name := range names {
		if s.HasPermission(name) {
			return true
		}
	}
	return false
}

// HasAllPermissions is false for an empty list: callers must name at least
// one permission to get any access.
func (s Set) HasAllPermissions(names ...string) bool {
	if len(names) == 0 {
		return false
	}
	for _, name := range names {
		if !s.HasPermission(name) {
			return false
		}
	}
	return true
}

// CanAccessModule reports whether any permission is scoped to module.
func (s Set) CanAccessModule(module string) bool {
	if module == "" {
		return false
	}
	_, ok := s.modules[module]
	return ok
}

func (s Set) CanPerformAction(module string, action string) bool {
	if module == "" || action == "" {
		return false
	}
	return s.HasPermission(module + "." + action)
}

// HasRole compares against the primary role only.
func (s Set) HasRole(name string) bool {
	return name != "" && s.role == name
}

func (s Set) Empty() bool {
	return len(s.names) == 0
}

// Names returns the permission names in sorted order.
func (s Set) Names() []string {
	return sortedKeys(s.names)
}

// Modules returns the modules the set grants any access to, sorted.
func (s Set) Modules() []string {
	return sortedKeys(s.modules)
}

func sortedKeys(m map[string]struct{}) []string {
	out := make([]string, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}
