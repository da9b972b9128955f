package buddyrequest

import (
	"errors"
	"sort"
	"strings"
)

var (
	ErrRequestNotFound   = errors.New("buddy request not found")
	ErrAllBuddiesBusy    = errors.New("all buddies are busy at this time")
	ErrSlotConflict      = errors.New("buddy already has a request in this slot")
	ErrRequestTerminal   = errors.New("buddy request is already completed or cancelled")
	ErrInvalidTransition = errors.New("status transition not allowed")
	ErrBuddyRequired     = errors.New("an assigned buddy is required for this status")
	ErrNotAssigned       = errors.New("buddy request is not assigned")
	ErrPaymentRequired   = errors.New("payment must be completed first")
	ErrRequestPaid       = errors.New("buddy request has a completed payment")
)

// ValidationError lists rejected input fields. It is returned before the store is touched.
type ValidationError struct {
	Fields map[string]string
}

func (e *ValidationError) Error() string {
	keys := make([]string, 0, len(e.Fields))
	for k := range e.Fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, k+": "+e.Fields[k])
	}
	return "validation failed: " + strings.Join(parts, ", ")
}

func newValidationError(field, reason string) *ValidationError {
	return &ValidationError{Fields: map[string]string{field: reason}}
}
