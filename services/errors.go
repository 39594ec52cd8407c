package services

import (
	"errors"
	"fmt"
)

// Typed failures returned by the connection and chat services. REST
// controllers map these to status codes; the socket layer never sees
// them because push delivery is fire-and-forget.
var (
	ErrNotFound     = errors.New("not found")
	ErrForbidden    = errors.New("forbidden")
	ErrInvalidState = errors.New("invalid state")
	ErrNotConnected = errors.New("users are not connected")
)

// DuplicateConnectionError reports that a pending or accepted
// connection already exists for the pair. ExistingStatus lets the UI
// render "already pending" vs "already connected" distinctly.
type DuplicateConnectionError struct {
	ExistingStatus string
}

func (e *DuplicateConnectionError) Error() string {
	return fmt.Sprintf("connection already exists with status %q", e.ExistingStatus)
}
