package services

import "errors"

// Pipeline error taxonomy. The controller maps these onto HTTP statuses.
// The first four are returned without touching the contract record; storage
// and extraction failures are additionally persisted as a terminal "error"
// status on the record before being returned.
var (
	ErrUnauthenticated    = errors.New("unauthenticated")
	ErrForbidden          = errors.New("caller does not own this contract")
	ErrNotFound           = errors.New("contract not found")
	ErrInvalidInput       = errors.New("invalid input")
	ErrStorageUnavailable = errors.New("contract file unavailable in storage")
	ErrExtractionFailed   = errors.New("contract extraction failed")
	ErrSearchUnavailable  = errors.New("search is not configured")
)
