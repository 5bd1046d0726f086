package profile

import (
	"bytes"
	"encoding/json"
	"strings"

	"go-backoffice-console/internal/model"
)

// candidate paths, tried in order. An empty path is the object itself.
var profilePaths = [][]string{
	{"data", "profile"},
	{"data", "user"},
	{"data"},
	{"profile"},
	{"user"},
	{},
}

// UnwrapProfile finds the operator profile in a profile response. Backends
// nest it under "profile", "user" or return it bare, optionally inside the
// data envelope. A candidate only counts when it carries an id.
func UnwrapProfile(raw []byte) (*model.User, bool) {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || raw[0] != '{' {
		return nil, false
	}

	for _, path := range profilePaths {
		obj, ok := lookup(raw, path)
		if !ok {
			continue
		}
		if user, ok := decodeUser(obj); ok {
			return user, true
		}
	}

	return nil, false
}

func lookup(raw json.RawMessage, path []string) (json.RawMessage, bool) {
	current := raw
	for _, key := range path {
		var members map[string]json.RawMessage
		if err := json.Unmarshal(current, &members); err != nil {
			return nil, false
		}
		next, ok := members[key]
		if !ok {
			return nil, false
		}
		current = bytes.TrimSpace(next)
	}

	if len(current) == 0 || current[0] != '{' {
		return nil, false
	}
	return current, true
}

func decodeUser(obj json.RawMessage) (*model.User, bool) {
	var user model.User
	if err := json.Unmarshal(obj, &user); err != nil {
		return nil, false
	}
	if strings.TrimSpace(user.ID.String()) == "" {
		return nil, false
	}
	return &user, true
}
