package apierror

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
)

const maxErrorBody = 64 << 10

type APIError struct {
	Code       string `json:"code"`
	Message    string `json:"message"`
	Details    string `json:"details,omitempty"`
	RefreshKey string `json:"refreshKey,omitempty"`
	HTTPStatus int    `json:"-"`
}

func (e *APIError) Error() string {
	if e == nil {
		return ""
	}

	if e.Details != "" {
		return fmt.Sprintf("%s: %s (%s)", e.Code, e.Message, e.Details)
	}

	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func New(code string, message string, details string, status int) *APIError {
	return &APIError{Code: code, Message: message, Details: details, HTTPStatus: status}
}

// Decode builds an APIError from a backend error body. It understands the
// {"success":false,"error":{...}} envelope, a flat {"code","message"} object
// and an "error" member holding a plain string. A refreshKey is picked up at
// either level. Fields are read one by one, so a numeric code or a list of
// messages never hides the refreshKey.
func Decode(status int, body []byte) *APIError {
	out := &APIError{HTTPStatus: status}

	var flat map[string]json.RawMessage
	if err := json.Unmarshal(bytes.TrimSpace(body), &flat); err == nil {
		out.Code = text(flat["code"])
		out.Message = text(flat["message"])
		out.Details = text(flat["details"])
		out.RefreshKey = text(flat["refreshKey"])

		nested := bytes.TrimSpace(flat["error"])
		switch {
		case len(nested) > 0 && nested[0] == '{':
			var inner map[string]json.RawMessage
			if err := json.Unmarshal(nested, &inner); err == nil {
				out.Code = firstNonEmpty(text(inner["code"]), out.Code)
				out.Message = firstNonEmpty(text(inner["message"]), out.Message)
				out.Details = firstNonEmpty(text(inner["details"]), out.Details)
				out.RefreshKey = firstNonEmpty(out.RefreshKey, text(inner["refreshKey"]))
			}
		case len(nested) > 0 && nested[0] == '"':
			out.Message = firstNonEmpty(out.Message, text(nested))
		}
	}

	if out.Code == "" {
		out.Code = codeForStatus(status)
	}
	if out.Message == "" {
		out.Message = firstNonEmpty(http.StatusText(status), "request failed")
	}

	return out
}

// text renders a JSON value as a string: strings as is, numbers and bools
// verbatim, arrays of strings joined with "; ". Objects and null are empty.
func text(raw json.RawMessage) string {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 {
		return ""
	}

	switch raw[0] {
	case '"':
		var s string
		if err := json.Unmarshal(raw, &s); err == nil {
			return s
		}
	case '[':
		var items []json.RawMessage
		if err := json.Unmarshal(raw, &items); err == nil {
			parts := make([]string, 0, len(items))
			for _, item := range items {
				if v := text(item); v != "" {
					parts = append(parts, v)
				}
			}
			return strings.Join(parts, "; ")
		}
	case '{', 'n':
		return ""
	default:
		return string(raw)
	}
	return ""
}

// FromResponse drains and closes resp.Body and decodes it as an error.
func FromResponse(resp *http.Response) *APIError {
	if resp == nil {
		return New("TRANSPORT_ERROR", "no response", "", 0)
	}
	defer resp.Body.Close()

	body, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
	return Decode(resp.StatusCode, body)
}

// StatusOf returns the HTTP status carried by err, or 0 when err is not an
// APIError (transport failures, context cancellation).
func StatusOf(err error) int {
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr.HTTPStatus
	}
	return 0
}

// HasStatus reports whether err carries one of the given HTTP statuses.
func HasStatus(err error, statuses ...int) bool {
	status := StatusOf(err)
	if status == 0 {
		return false
	}
	for _, s := range statuses {
		if s == status {
			return true
		}
	}
	return false
}

func codeForStatus(status int) string {
	switch {
	case status == http.StatusUnauthorized:
		return "UNAUTHORIZED"
	case status == http.StatusForbidden:
		return "FORBIDDEN"
	case status == http.StatusNotFound:
		return "NOT_FOUND"
	case status == http.StatusMethodNotAllowed:
		return "METHOD_NOT_ALLOWED"
	case status == http.StatusTooManyRequests:
		return "RATE_LIMITED"
	case status >= 500:
		return "UPSTREAM_ERROR"
	case status >= 400:
		return "BAD_REQUEST"
	default:
		return strings.ToUpper(strings.ReplaceAll(http.StatusText(status), " ", "_"))
	}
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
