package model

import "strings"

// Permission grants one action on one console module. Name is the canonical
// "<module>.<action>" identifier.
type Permission struct {
	ID          ID     `json:"id"`
	Name        string `json:"name"`
	Module      string `json:"module"`
	Action      string `json:"action"`
	Description string `json:"description,omitempty"`
}

// CanonicalName returns Name, or module.action when the backend omitted it.
func (p Permission) CanonicalName() string {
	if name := strings.TrimSpace(p.Name); name != "" {
		return name
	}

	module := strings.TrimSpace(p.Module)
	action := strings.TrimSpace(p.Action)
	if module == "" || action == "" {
		return ""
	}

	return module + "." + action
}

type Role struct {
	ID          ID           `json:"id"`
	Name        string       `json:"name"`
	IsActive    bool         `json:"isActive"`
	Permissions []Permission `json:"permissions"`
}

// User is the operator profile. Role is the primary role; Roles carries any
// additional roles the backend attaches.
type User struct {
	ID       ID     `json:"id"`
	FullName string `json:"fullName"`
	Email    string `json:"email"`
	Role     *Role  `json:"role,omitempty"`
	Roles    []Role `json:"roles,omitempty"`
}

func (u *User) RoleName() string {
	if u == nil || u.Role == nil {
		return ""
	}
	return u.Role.Name
}
