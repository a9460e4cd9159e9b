package domain

import "errors"

// Domain outcomes. ErrAlreadyExists, ErrNotFound and ErrInvalidAddress
// are expected and shown to the member as a denial; the others are
// reported as a generic failure.
var (
	ErrAlreadyExists       = errors.New("bookmark already exists")
	ErrNotFound            = errors.New("bookmark not found")
	ErrInvalidAddress      = errors.New("invalid server address")
	ErrStorageUnavailable  = errors.New("storage unavailable")
	ErrUpstreamQueryFailed = errors.New("upstream query failed")
)

// IsDenial reports whether err is an expected domain outcome rather
// than an infrastructure failure.
func IsDenial(err error) bool {
	return errors.Is(err, ErrAlreadyExists) ||
		errors.Is(err, ErrNotFound) ||
		errors.Is(err, ErrInvalidAddress)
}
