package service

import "errors"

// Sentinel errors for the API error taxonomy. Services wrap these with a
// human-readable reason; the handler boundary maps them to status codes.
var (
	ErrInvalidInput  = errors.New("invalid input")  // 400
	ErrUnauthorized  = errors.New("unauthorized")   // 401
	ErrNotFound      = errors.New("not found")      // 404
	ErrConflict      = errors.New("conflict")       // 409
	ErrTokenIssuance = errors.New("token issuance") // 500
	ErrMisconfigured = errors.New("auth config invalid")
)
