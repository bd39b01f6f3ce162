package domain

import "errors"

var (
	ErrValidation          = errors.New("validation")             // 400
	ErrNotFound            = errors.New("not found")              // 404
	ErrConflict            = errors.New("conflict")               // 409
	ErrInsufficientStock   = errors.New("insufficient stock")     // 409
	ErrInvalidTransition   = errors.New("invalid status change")  // 409
	ErrEmptyCart           = errors.New("cart is empty")          // 400
	ErrInvalidCredentials  = errors.New("invalid credentials")    // 401
	ErrInvalidRefreshToken = errors.New("invalid refresh token")  // 401
	ErrForbidden           = errors.New("forbidden")              // 403
)

// Known reports whether err wraps one of the sentinels above.
func Known(err error) bool {
	for _, target := range []error{
		ErrValidation, ErrNotFound, ErrConflict, ErrInsufficientStock, ErrInvalidTransition,
		ErrEmptyCart, ErrInvalidCredentials, ErrInvalidRefreshToken, ErrForbidden,
	} {
		if errors.Is(err, target) {
			return true
		}
	}
	return false
}
