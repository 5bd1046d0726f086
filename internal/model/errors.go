package model

import "errors"

var (
	// Session related errors
	ErrAccessTokenRequired = errors.New("access token required")
	ErrNotAuthenticated    = errors.New("not authenticated")

	// Refresh related errors
	ErrRefreshFailed      = errors.New("session refresh failed")
	ErrRefreshEmptyResult = errors.New("session refresh returned no credentials")

	// Profile related errors
	ErrProfileUnavailable = errors.New("profile unavailable")
	ErrNoProfileSubject   = errors.New("profile response has no identifiable subject")

	// Permission/Access related errors
	ErrForbidden     = errors.New("forbidden")
	ErrUnknownModule = errors.New("unknown module")

	// Generic errors
	ErrInvalidInput = errors.New("invalid input")
)
