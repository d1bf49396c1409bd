package models

import (
	"fmt"
)

// Status is the moderation state of a submission.
type Status string

const (
	StatusPending  Status = "pending"
	StatusApproved Status = "approved"
	StatusRejected Status = "rejected"
)

// ParseStatus validates a stored or user-supplied status string.
func ParseStatus(s string) (Status, error) {
	switch st := Status(s); st {
	case StatusPending, StatusApproved, StatusRejected:
		return st, nil
	default:
		return "", fmt.Errorf("unknown submission status: %q", s)
	}
}

func (s Status) String() string {
	return string(s)
}

// CanTransitionTo reports whether a moderation decision may move a record from
// s to next. Only pending records can be decided; decisions are final.
func (s Status) CanTransitionTo(next Status) bool {
	return s == StatusPending && (next == StatusApproved || next == StatusRejected)
}
