package buddy

type CreateBuddyRequest struct {
	Name         string  `json:"name" validate:"required,min=2,max=120"`
	Email        string  `json:"email" validate:"required,email,max=255"`
	Phone        *string `json:"phone" validate:"omitempty,max=32"`
	CalendlyLink string  `json:"calendlyLink" validate:"required,url"`
	IsActive     *bool   `json:"isActive"`
}

type UpdateBuddyRequest struct {
	Name         *string `json:"name" validate:"omitempty,min=2,max=120"`
	Email        *string `json:"email" validate:"omitempty,email,max=255"`
	Phone        *string `json:"phone" validate:"omitempty,max=32"`
	CalendlyLink *string `json:"calendlyLink" validate:"omitempty,url"`
	IsActive     *bool   `json:"isActive"`
}

// BuddyWithLoad is a directory entry plus its current non-terminal assignment count.
type BuddyWithLoad struct {
	Buddy
	ActiveRequests int64 `json:"activeRequests"`
}
