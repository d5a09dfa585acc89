package globals

import "errors"

// Error kinds returned by the registries. Callers match them with errors.Is,
// the handlers map them to HTTP status codes.
var (
	ErrValidation   = errors.New("validation failed")
	ErrNotFound     = errors.New("not found")
	ErrUnauthorized = errors.New("unauthorized")
	ErrForbidden    = errors.New("forbidden")
	ErrExhausted    = errors.New("no discriminator available")
)

const (
	// discriminators are drawn from 0001..9999
	MinDiscriminator = 1
	MaxDiscriminator = 9999

	PasswordHashCost = 10

	JwtCookieName = "JWT"
)
