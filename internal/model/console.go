package model

// SessionView is what the console exposes about the current session. It
// never carries token material.
type SessionView struct {
	Authenticated bool     `json:"authenticated"`
	User          *User    `json:"user,omitempty"`
	Permissions   []string `json:"permissions"`
	Modules       []string `json:"modules"`
	ProfileState  string   `json:"profile_state"`
	ProfileError  string   `json:"profile_error,omitempty"`
}

type NavItem struct {
	Module string `json:"module"`
	Title  string `json:"title"`
	Path   string `json:"path"`
}

type ActionView struct {
	Action string `json:"action"`
	Label  string `json:"label"`
}

type ModuleView struct {
	Module  string       `json:"module"`
	Title   string       `json:"title"`
	APIPath string       `json:"api_path"`
	Actions []ActionView `json:"actions"`
}
