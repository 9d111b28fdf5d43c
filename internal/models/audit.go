package models

import "time"

// AuditRecord запись об одной проверке доступа. Только добавляется.
type AuditRecord struct {
	ID           string    `json:"id"`
	SubmissionID string    `json:"submission_id"`
	Route        string    `json:"route"`
	Method       string    `json:"method"`
	Allowed      bool      `json:"allowed"`
	Reason       string    `json:"reason"`
	IP           *string   `json:"ip,omitempty"`
	UserAgent    *string   `json:"user_agent,omitempty"`
	CreatedAt    time.Time `json:"created_at"`
}
