package handler

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net"
	"net/http"
	"net/url"

	"go-backoffice-console/internal/model"
	"go-backoffice-console/pkg/apierror"
)

func writeSuccess(w http.ResponseWriter, status int, data any, meta *model.Meta) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(model.APIResponse{
		Success: true,
		Data:    data,
		Meta:    meta,
	})
}

func writeError(w http.ResponseWriter, err error) {
	status := http.StatusInternalServerError
	body := &model.APIError{
		Code:    "INTERNAL_ERROR",
		Message: "Unexpected server error",
	}

	var apiErr *apierror.APIError
	var netErr net.Error
	var urlErr *url.Error
	if errors.As(err, &apiErr) {
		status = apiErr.HTTPStatus
		body.Code = apiErr.Code
		body.Message = apiErr.Message
		body.Details = apiErr.Details
	} else if errors.Is(err, model.ErrNotAuthenticated) {
		status = http.StatusUnauthorized
		body.Code = "UNAUTHORIZED"
		body.Message = "Sign in required"
	} else if errors.Is(err, model.ErrForbidden) {
		status = http.StatusForbidden
		body.Code = "FORBIDDEN"
		body.Message = "Access denied"
	} else if errors.Is(err, model.ErrUnknownModule) {
		status = http.StatusNotFound
		body.Code = "NOT_FOUND"
		body.Message = "Module not found"
	} else if errors.Is(err, model.ErrAccessTokenRequired) || errors.Is(err, model.ErrRefreshEmptyResult) {
		status = http.StatusBadGateway
		body.Code = "BAD_GATEWAY"
		body.Message = "Backend returned no access token"
	} else if errors.Is(err, model.ErrProfileUnavailable) || errors.Is(err, model.ErrNoProfileSubject) {
		status = http.StatusServiceUnavailable
		body.Code = "PROFILE_UNAVAILABLE"
		body.Message = "Profile could not be loaded"
		body.Details = err.Error()
	} else if errors.Is(err, model.ErrInvalidInput) {
		status = http.StatusBadRequest
		body.Code = "BAD_REQUEST"
		body.Message = "Invalid input"
		body.Details = err.Error()
	} else if errors.Is(err, context.DeadlineExceeded) {
		status = http.StatusGatewayTimeout
		body.Code = "GATEWAY_TIMEOUT"
		body.Message = "Backend did not answer in time"
	} else if errors.As(err, &urlErr) || errors.As(err, &netErr) {
		status = http.StatusBadGateway
		body.Code = "BAD_GATEWAY"
		body.Message = "Backend unreachable"
		body.Details = err.Error()
	} else {
		// Log unclassified errors so they are visible in the console output.
		slog.Error("unhandled error in writeError", "error", err.Error())
	}

	if status == 0 {
		status = http.StatusBadGateway
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(model.APIResponse{
		Success: false,
		Error:   body,
	})
}
