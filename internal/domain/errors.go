package domain

import "errors"

var (
	// ErrValidation marks missing or invalid request fields
	ErrValidation = errors.New("invalid request")
	// ErrUnauthorized marks a password or admin name mismatch
	ErrUnauthorized = errors.New("unauthorized")
	// ErrStore marks a failure of the underlying persistence
	ErrStore = errors.New("store error")
	// ErrNetwork marks a client-side transport failure
	ErrNetwork = errors.New("network error")
	// ErrNoSession is returned when a client has no session material
	ErrNoSession = errors.New("not logged in")
)
