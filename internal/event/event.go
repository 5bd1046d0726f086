package event

type Type string

const (
	TypeSessionRestored Type = "session.restored"
	TypeCredentialsSet  Type = "session.credentials_set"
	TypeLoggedOut       Type = "session.logged_out"
	TypeProfileState    Type = "profile.state"
	TypeNavigate        Type = "console.navigate"
)

type Event struct {
	ID        string `json:"id"`
	Type      Type   `json:"type"`
	Payload   any    `json:"payload"`
	Timestamp string `json:"timestamp"`
	UserID    string `json:"user_id,omitempty"`
}

// SessionPayload never carries token material; it is pushed to browsers.
type SessionPayload struct {
	Authenticated bool   `json:"authenticated"`
	HasProfile    bool   `json:"has_profile"`
	Reason        string `json:"reason,omitempty"`
}

type NavigatePayload struct {
	Path    string `json:"path"`
	Replace bool   `json:"replace"`
}

type Bus interface {
	Publish(e Event)
	Subscribe() (<-chan Event, func()) // Returns channel and unsubscribe function
}

type ProfilePayload struct {
	State string `json:"state"`
	Error string `json:"error,omitempty"`
}
