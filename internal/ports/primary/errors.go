package primary

import "errors"

// Error classes. Services wrap them so transports can map failures onto result codes.
var (
	ErrInvalidParams = errors.New("invalid params")
	ErrConflict      = errors.New("conflict")
	ErrNotFound      = errors.New("not found")
)
