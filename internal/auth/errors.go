// Package auth binds sessions to requests and guards routes that need a principal.
package auth

import "errors"

// ErrNotAuthenticated indicates the request carries no valid principal.
var ErrNotAuthenticated = errors.New("not authenticated")

// User-facing messages for guarded routes.
const (
	MsgLoginRequired = "Please log in to view this resource"
	MsgAdminRequired = "Access denied. Admin privileges required."
	MsgLoggedOut     = "You are logged out"
)
