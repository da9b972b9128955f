package buddyrequest

// Status is the lifecycle state of a buddy request.
type Status string

const (
	StatusPending   Status = "PENDING"
	StatusAssigned  Status = "ASSIGNED"
	StatusCompleted Status = "COMPLETED"
	StatusCancelled Status = "CANCELLED"
)

func (s Status) Valid() bool {
	switch s {
	case StatusPending, StatusAssigned, StatusCompleted, StatusCancelled:
		return true
	}
	return false
}

// IsTerminal reports whether no further transitions are allowed.
func (s Status) IsTerminal() bool {
	return s == StatusCompleted || s == StatusCancelled
}

// ActiveStatuses are the non-terminal states that hold a buddy's slot.
func ActiveStatuses() []Status {
	return []Status{StatusPending, StatusAssigned}
}

type RequestType string

const (
	TypeFriendly RequestType = "FRIENDLY"
	TypeDetailed RequestType = "DETAILED"
)

// IsPaid reports whether requests of this type go through the payment gate.
func (t RequestType) IsPaid() bool {
	return t == TypeDetailed
}

type CommunicationMode string

const (
	ModeChat  CommunicationMode = "CHAT"
	ModeCall  CommunicationMode = "CALL"
	ModeVideo CommunicationMode = "VIDEO"
)

var supportedModes = map[RequestType][]CommunicationMode{
	TypeFriendly: {ModeChat, ModeCall},
	TypeDetailed: {ModeChat, ModeCall, ModeVideo},
}

// SupportedModes returns the communication modes a request type accepts.
func SupportedModes(t RequestType) []CommunicationMode {
	return supportedModes[t]
}

func (t RequestType) Supports(mode CommunicationMode) bool {
	for _, m := range supportedModes[t] {
		if m == mode {
			return true
		}
	}
	return false
}

// SessionDurations are the accepted paid session lengths in minutes.
var SessionDurations = []int{30, 60}

func validDuration(d int) bool {
	for _, v := range SessionDurations {
		if v == d {
			return true
		}
	}
	return false
}

// TimeSlot is one of a fixed set of labelled daily windows, matched by exact string.
type TimeSlot string

const (
	SlotMorning   TimeSlot = "Morning (9 AM - 12 PM)"
	SlotAfternoon TimeSlot = "Afternoon (12 PM - 3 PM)"
	SlotEvening   TimeSlot = "Evening (3 PM - 6 PM)"
	SlotNight     TimeSlot = "Night (6 PM - 9 PM)"
)

// TimeSlots lists every slot in day order.
func TimeSlots() []TimeSlot {
	return []TimeSlot{SlotMorning, SlotAfternoon, SlotEvening, SlotNight}
}

func (s TimeSlot) Valid() bool {
	for _, v := range TimeSlots() {
		if v == s {
			return true
		}
	}
	return false
}

func timeSlotStrings() []string {
	slots := TimeSlots()
	out := make([]string, len(slots))
	for i, s := range slots {
		out[i] = string(s)
	}
	return out
}
