package service

import (
	"errors"
	"fmt"

	"github.com/pulsegrid/notify-backend/internal/validation"
)

// ErrInvalidMessage is returned when a notification is malformed or its
// category and target are inconsistent. It is raised before any persistence
// happens, so the caller can assume no partial writes.
var ErrInvalidMessage = validation.ErrInvalidMessage

// ErrPermissionDenied is returned when the router permits none of a
// notification's recipients to receive its category. Raised before any
// record is created.
var ErrPermissionDenied = errors.New("category not permitted for recipient")

// PersistenceError wraps a durable-store write failure. It crosses the
// producer boundary: the producer decides whether to retry its own action.
type PersistenceError struct {
	Op  string
	Err error
}

func (e *PersistenceError) Error() string {
	return fmt.Sprintf("notification persistence failed during %s: %v", e.Op, e.Err)
}

func (e *PersistenceError) Unwrap() error { return e.Err }

// TransportError wraps a transient broadcast failure. It never crosses the
// producer boundary; the engine retries and eventually downgrades the
// recipient to the offline path.
type TransportError struct {
	UserID uint
	Err    error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("transport delivery failed for user %d: %v", e.UserID, e.Err)
}

func (e *TransportError) Unwrap() error { return e.Err }
