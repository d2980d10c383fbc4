package domain

import "errors"

// Sentinel errors for domain-level error handling.
// The handler layer maps these to HTTP status codes.
var (
	ErrUserAlreadyExists  = errors.New("user_already_exists")
	ErrUserNotFound       = errors.New("user_not_found")
	ErrDrinkAlreadyExists = errors.New("drink_already_exists")
	ErrDrinkNotFound      = errors.New("drink_not_found")
)

// ValidationError represents a request validation failure.
type ValidationError struct {
	Message string
}

func (e *ValidationError) Error() string {
	return e.Message
}
