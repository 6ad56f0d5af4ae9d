package mcp

import (
	"context"
	"errors"
	"fmt"

	"github.com/rpggio/activitylog/internal/domain/activity"
)

// ErrUnknownMethod is returned by Handle for unsupported method names.
var ErrUnknownMethod = errors.New("unknown method")

// ErrUnauthorized is returned when a request carries no valid caller.
var ErrUnauthorized = errors.New("unauthorized")

// APIError represents an MCP error response.
type APIError struct {
	Code         string `json:"code"`
	Message      string `json:"message"`
	Details      any    `json:"details,omitempty"`
	RecoveryHint string `json:"recovery_hint,omitempty"`
}

func (e *APIError) Error() string {
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *APIError) CodeValue() string {
	return e.Code
}

func (e *APIError) MessageValue() string {
	return e.Message
}

func (e *APIError) DetailsValue() any {
	return e.Details
}

func (e *APIError) RecoveryHintValue() string {
	return e.RecoveryHint
}

// Error codes carried by APIError.
const (
	CodeInvalidParams      = "INVALID_PARAMS"
	CodeNotWhitelisted     = "NOT_WHITELISTED"
	CodeServiceShutDown    = "SERVICE_SHUT_DOWN"
	CodeServiceUnavailable = "SERVICE_UNAVAILABLE"
	CodeNoService          = "NO_SERVICE"
	CodeUnknownProfile     = "UNKNOWN_PROFILE"
	CodeUnauthorized       = "UNAUTHORIZED"
	CodeUnknownMethod      = "METHOD_NOT_FOUND"
	CodeCanceled           = "CANCELED"
)

// MapError maps domain errors to MCP error codes.
func MapError(err error) *APIError {
	if err == nil {
		return nil
	}
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr
	}
	switch {
	case errors.Is(err, activity.ErrInvalidParams), errors.Is(err, activity.ErrInvalidAction):
		return &APIError{Code: CodeInvalidParams, Message: err.Error(), RecoveryHint: "Check parameter names and values"}
	case errors.Is(err, activity.ErrNotWhitelisted):
		return &APIError{Code: CodeNotWhitelisted, Message: "extension is not whitelisted for activityLogPrivate", RecoveryHint: "Add the extension id to the activityLogPrivate whitelist"}
	case errors.Is(err, activity.ErrServiceShutDown):
		return &APIError{Code: CodeServiceShutDown, Message: "activity log service has shut down", RecoveryHint: "The profile was destroyed; retry against a live profile"}
	case errors.Is(err, activity.ErrServiceUnavailable):
		return &APIError{Code: CodeServiceUnavailable, Message: "activity log service is not initialized"}
	case errors.Is(err, activity.ErrNoService):
		return &APIError{Code: CodeNoService, Message: "no activity log service for profile"}
	case errors.Is(err, activity.ErrUnknownProfile):
		return &APIError{Code: CodeUnknownProfile, Message: "unknown profile", RecoveryHint: "Check the profile bound to your API key"}
	case errors.Is(err, ErrUnauthorized):
		return &APIError{Code: CodeUnauthorized, Message: "unauthorized", RecoveryHint: "Pass a valid bearer token"}
	case errors.Is(err, ErrUnknownMethod):
		return &APIError{Code: CodeUnknownMethod, Message: err.Error()}
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return &APIError{Code: CodeCanceled, Message: err.Error()}
	default:
		return nil
	}
}

func mapError(err error) error {
	if apiErr := MapError(err); apiErr != nil {
		return apiErr
	}
	return err
}
