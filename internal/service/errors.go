// Package service holds the authentication and tracking use cases behind the HTTP layer.
package service

import "errors"

var (
	// ErrValidation marks malformed or missing input.
	ErrValidation = errors.New("validation failed")
	// ErrConflict marks a username or email that is already registered.
	ErrConflict = errors.New("user already exists")
	// ErrUnauthorized covers bad credentials and invalid tokens.
	ErrUnauthorized = errors.New("unauthorized")
	// ErrStorage wraps persistence failures. Its detail is for logs only.
	ErrStorage = errors.New("storage failure")
)
