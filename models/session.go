package models

import "time"

// SessionRecord is the persisted form of a vendor bid session.
type SessionRecord struct {
	ID           string     `json:"id" db:"id"`
	State        string     `json:"state" db:"state"`
	Company      string     `json:"company" db:"company"`
	BatchID      string     `json:"batch_id" db:"batch_id"`
	Language     string     `json:"language" db:"language"`
	SubmissionID string     `json:"submission_id" db:"submission_id"`
	SubmittedAt  *time.Time `json:"submitted_at" db:"submitted_at"`
	UpdatedAt    time.Time  `json:"updated_at" db:"updated_at"`
}
