package buddyrequest

// transitions is the single source of truth for allowed status changes.
// ASSIGNED -> ASSIGNED is a reassignment to another buddy.
var transitions = map[Status][]Status{
	StatusPending:  {StatusAssigned, StatusCancelled},
	StatusAssigned: {StatusAssigned, StatusCompleted, StatusCancelled},
}

// CanTransition reports whether from -> to is in the transition table.
func CanTransition(from, to Status) bool {
	for _, s := range transitions[from] {
		if s == to {
			return true
		}
	}
	return false
}

// SourcesFor lists the states from which to is reachable. It is the status
// guard used in conditional updates.
func SourcesFor(to Status) []Status {
	var out []Status
	for _, from := range []Status{StatusPending, StatusAssigned, StatusCompleted, StatusCancelled} {
		if CanTransition(from, to) {
			out = append(out, from)
		}
	}
	return out
}

// checkTransition maps a disallowed transition to the error callers see.
func checkTransition(from, to Status) error {
	if CanTransition(from, to) {
		return nil
	}
	if from.IsTerminal() {
		return ErrRequestTerminal
	}
	return ErrInvalidTransition
}
