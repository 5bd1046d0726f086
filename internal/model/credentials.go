package model

import (
	"bytes"
	"encoding/json"
)

// Credentials is the shape shared by login, refresh and profile sync.
type Credentials struct {
	User         *User  `json:"user,omitempty"`
	AccessToken  string `json:"accessToken"`
	RefreshToken string `json:"refreshToken,omitempty"`
}

// UnmarshalJSON accepts both the camelCase keys of the console API and the
// snake_case keys used by older backend builds.
func (c *Credentials) UnmarshalJSON(data []byte) error {
	var wire struct {
		User              *User  `json:"user"`
		AccessToken       string `json:"accessToken"`
		RefreshToken      string `json:"refreshToken"`
		AccessTokenSnake  string `json:"access_token"`
		RefreshTokenSnake string `json:"refresh_token"`
		Token             string `json:"token"`
	}
	if err := json.Unmarshal(data, &wire); err != nil {
		return err
	}

	c.User = wire.User
	c.AccessToken = firstNonEmpty(wire.AccessToken, wire.AccessTokenSnake, wire.Token)
	c.RefreshToken = firstNonEmpty(wire.RefreshToken, wire.RefreshTokenSnake)
	return nil
}

// DecodeCredentials reads credentials from a response body, unwrapping the
// {"success":...,"data":{...}} envelope when present.
func DecodeCredentials(body []byte) (Credentials, error) {
	var creds Credentials
	if err := json.Unmarshal(EnvelopeData(body), &creds); err != nil {
		return Credentials{}, err
	}
	return creds, nil
}

// EnvelopeData returns the "data" member of an APIResponse envelope, or the
// body itself when it is not enveloped.
func EnvelopeData(body []byte) []byte {
	trimmed := bytes.TrimSpace(body)
	if len(trimmed) == 0 || trimmed[0] != '{' {
		return trimmed
	}

	var envelope map[string]json.RawMessage
	if err := json.Unmarshal(trimmed, &envelope); err != nil {
		return trimmed
	}

	data, ok := envelope["data"]
	if !ok {
		return trimmed
	}
	data = bytes.TrimSpace(data)
	if len(data) == 0 || data[0] != '{' {
		return trimmed
	}

	return data
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
