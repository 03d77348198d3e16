package client

import "errors"

// Endpoint-side failures.
var (
	ErrEndpointUnavailable = errors.New("endpoint unavailable")
	ErrSubmissionRejected  = errors.New("submission rejected")
	ErrConfirmationTimeout = errors.New("confirmation timeout")
)
