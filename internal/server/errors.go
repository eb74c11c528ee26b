package server

import "errors"

// Sentinel kinds for HTTP adapter errors.
var (
	ErrDecode = errors.New("malformed request body")
)
