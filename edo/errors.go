package edo

import (
	"errors"
	"fmt"
)

var (
	// ErrBackendNotConfigured means the EDO backend has no such endpoint (HTTP 404/405).
	// Callers fall back to offline or demo behavior.
	ErrBackendNotConfigured = errors.New("edo backend not configured")

	ErrReceiptExists     = errors.New("a receipt was already created for this document")
	ErrReceiptNotReady   = errors.New("not all lines are matched; finish matching before creating a receipt")
	ErrReasonRequired    = errors.New("rejection reason is required")
	ErrDocumentNotFound  = errors.New("document not found")
	ErrLineNotFound      = errors.New("line not found")
	ErrProductRequired   = errors.New("product id is required")
	ErrInvalidTransition = errors.New("invalid document transition")
	ErrXMLNotLoaded      = errors.New("xml is not loaded yet")
	ErrUnknownIntent     = errors.New("unknown intent")
)

// BackendError is a failure reported by the EDO backend itself.
type BackendError struct {
	Status  int
	Message string
}

func (e *BackendError) Error() string {
	if e.Status == 0 {
		return e.Message
	}
	return fmt.Sprintf("edo backend error (%d): %s", e.Status, e.Message)
}

// IsNotConfigured reports whether err means the backend endpoint is absent.
func IsNotConfigured(err error) bool {
	return errors.Is(err, ErrBackendNotConfigured)
}

// TransitionError wraps ErrInvalidTransition with the offending states.
type TransitionError struct {
	Action string
	From   Status
}

func (e *TransitionError) Error() string {
	return fmt.Sprintf("cannot %s a document in status %q", e.Action, e.From)
}

func (e *TransitionError) Unwrap() error { return ErrInvalidTransition }
