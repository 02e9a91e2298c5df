package explorer

import "errors"

var (
	// ErrInvalidConfig is returned for unusable run settings.
	ErrInvalidConfig = errors.New("invalid explorer config")
	// ErrStatus is returned when the service answers with an unexpected status.
	ErrStatus = errors.New("unexpected response status")
)
