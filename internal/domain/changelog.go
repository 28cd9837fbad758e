package domain

import "time"

// ChangeRecord is one worklog entry: a titled diff that was (or is about
// to be) applied to a rule set somewhere in the fleet. Records are
// append-only.
type ChangeRecord struct {
	ID        string    `json:"id" db:"id"`
	Title     string    `json:"title" db:"title"`
	Diff      string    `json:"diff" db:"diff"`
	Author    string    `json:"author,omitempty" db:"author"`
	CreatedAt time.Time `json:"created_at" db:"created_at"`
}

// CreateChangeRecordRequest is the request body for recording a change.
type CreateChangeRecordRequest struct {
	Title  string `json:"title"`
	Diff   string `json:"diff"`
	Author string `json:"author,omitempty"`
}
