package activity

import "errors"

var (
	// ErrInvalidParams is returned when request parameters fail validation.
	ErrInvalidParams = errors.New("invalid parameters")

	// ErrInvalidAction is returned when a producer appends a malformed action.
	ErrInvalidAction = errors.New("invalid action")

	// ErrNotWhitelisted is returned when the calling extension may not use
	// the activityLogPrivate API.
	ErrNotWhitelisted = errors.New("extension is not whitelisted for activityLogPrivate")

	// ErrServiceUnavailable is returned by a service that never initialized.
	ErrServiceUnavailable = errors.New("activity log service is not initialized")

	// ErrServiceShutDown is returned by a service after Shutdown, including to
	// queries that were still in flight.
	ErrServiceShutDown = errors.New("activity log service has shut down")

	// ErrNoService is returned when a profile resolves to no service.
	ErrNoService = errors.New("no activity log service for profile")

	// ErrUnknownProfile is returned for profile ids with no live profile.
	ErrUnknownProfile = errors.New("unknown profile")
)
