package buddy

import (
	"errors"
	"fmt"
)

var (
	ErrBuddyNotFound = errors.New("buddy not found")
	ErrEmailExists   = errors.New("buddy email already exists")
	ErrBuddyInactive = errors.New("buddy is inactive")

	// ErrBuddyHasActiveRequests matches any *ActiveRequestsError via errors.Is.
	ErrBuddyHasActiveRequests = errors.New("buddy has active requests")
)

// ActiveRequestsError carries the number of non-terminal requests blocking a delete.
type ActiveRequestsError struct {
	Count int64
}

func (e *ActiveRequestsError) Error() string {
	return fmt.Sprintf("buddy has %d active requests", e.Count)
}

func (e *ActiveRequestsError) Is(target error) bool {
	return target == ErrBuddyHasActiveRequests
}
