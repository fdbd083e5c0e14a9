package submission

// ContactMessage is the payload of the contact form.
type ContactMessage struct {
	Name    string `json:"name" form:"name" binding:"required"`
	Email   string `json:"email" form:"email" binding:"required,email"`
	Subject string `json:"subject" form:"subject" binding:"required"`
	Message string `json:"message" form:"message" binding:"required"`
}

type InterviewType string

const (
	InterviewVirtual InterviewType = "virtual"
	InterviewOffline InterviewType = "offline"
)

// Label is the human rendering used in the outbound summary.
func (t InterviewType) Label() string {
	if t == InterviewVirtual {
		return "Virtual (Online)"
	}
	return "In-Person (Offline)"
}

// InterviewRequest is the payload of the interview modal. Location is only
// required for offline interviews; Message is optional.
type InterviewRequest struct {
	Name     string        `json:"name" form:"name" binding:"required"`
	Email    string        `json:"email" form:"email" binding:"required,email"`
	Company  string        `json:"company" form:"company" binding:"required"`
	Date     string        `json:"date" form:"date" binding:"required,isodate"`
	Time     string        `json:"time" form:"time" binding:"required"`
	Type     InterviewType `json:"type" form:"type" binding:"required,oneof=virtual offline"`
	Location string        `json:"location" form:"location" binding:"required_if=Type offline,offline_location"`
	Message  string        `json:"message" form:"message"`
}

// NewInterviewRequest is the empty form state; interviews default to virtual.
func NewInterviewRequest() InterviewRequest {
	return InterviewRequest{Type: InterviewVirtual}
}

// Result is what a pipeline run reports back to the form.
type Result struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
}
