package buddyrequest

import (
	"strings"

	"buddydesk/internal/pkg/validator"
)

func init() {
	if err := validator.RegisterOneOf("timeslot", timeSlotStrings()); err != nil {
		panic(err)
	}
}

// validateNewRequest checks a submission without touching the store. today is
// the current date (YYYY-MM-DD) in the service timezone.
func validateNewRequest(in *CreateBuddyRequestRequest, today string) error {
	fields := validator.Validate(in)
	if fields == nil {
		fields = map[string]string{}
	}

	if _, bad := fields["mode"]; !bad && in.RequestType != "" && !in.RequestType.Supports(in.CommunicationMode) {
		fields["mode"] = "unsupported for " + strings.ToLower(string(in.RequestType)) + " requests"
	}
	if in.RequestType.IsPaid() && in.SessionDuration == nil {
		fields["duration"] = "required"
	}
	if _, bad := fields["preferredDate"]; !bad && in.PreferredDate < today {
		fields["preferredDate"] = "must not be in the past"
	}

	if len(fields) > 0 {
		return &ValidationError{Fields: fields}
	}
	return nil
}

func (in *CreateBuddyRequestRequest) normalize() {
	in.Name = strings.TrimSpace(in.Name)
	in.Email = strings.ToLower(strings.TrimSpace(in.Email))
	in.PreferredDate = strings.TrimSpace(in.PreferredDate)
	in.Message = strings.TrimSpace(in.Message)
}
