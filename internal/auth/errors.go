package auth

import "errors"

var (
	// ErrInvalidInput reports structurally invalid arguments such as an empty secret or subject.
	ErrInvalidInput = errors.New("invalid input")
	// ErrInvalidToken is returned for every token verification failure.
	ErrInvalidToken = errors.New("invalid token")
	// ErrNotAuthenticated means no bearer credentials were presented.
	ErrNotAuthenticated = errors.New("not authenticated")
	// ErrCouldNotValidate covers invalid tokens and tokens whose subject cannot be resolved.
	ErrCouldNotValidate = errors.New("could not validate credentials")
	// ErrInvalidCredentials is the uniform login failure.
	ErrInvalidCredentials = errors.New("incorrect username or password")
)

// IsUnauthenticated reports whether err is one of the uniform authentication failures.
func IsUnauthenticated(err error) bool {
	return errors.Is(err, ErrNotAuthenticated) ||
		errors.Is(err, ErrCouldNotValidate) ||
		errors.Is(err, ErrInvalidCredentials)
}
