package sms

// Status is the outcome recorded for one message attempt.
type Status string

const (
	StatusSent   Status = "sent"
	StatusFailed Status = "failed"
)

// SentMessage is one entry of the append-only dispatch history.
// It is never mutated after creation.
type SentMessage struct {
	ID           string `json:"id"`
	TeacherName  string `json:"teacherName"`
	TeacherPhone string `json:"teacherPhone"`
	Message      string `json:"message"`
	Timestamp    int64  `json:"timestamp"` // unix milliseconds
	Status       Status `json:"status"`
}
