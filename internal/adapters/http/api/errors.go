package api

import "errors"

// Sentinel kinds for API errors.
var (
	ErrBadRequest  = errors.New("bad request")
	ErrUnavailable = errors.New("service unavailable")
	ErrUpstream    = errors.New("telegram request failed")
	ErrNoBaseURL   = errors.New("cannot determine public base url")
)
