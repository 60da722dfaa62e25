package payment

import (
	"errors"
	"fmt"
)

var (
	// ErrDeclined is returned when the gateway refuses the charge
	ErrDeclined = errors.New("payment declined")

	// ErrNetwork is returned when the gateway could not be reached
	ErrNetwork = errors.New("payment gateway unreachable")
)

// AuthRequiredError is returned when the gateway needs the contributor to
// complete an additional authentication step (3-D Secure style redirect)
type AuthRequiredError struct {
	RedirectURL string
}

// Error implements the error interface
func (e *AuthRequiredError) Error() string {
	return fmt.Sprintf("payment requires authentication: %s", e.RedirectURL)
}
