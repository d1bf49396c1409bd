package audit

import (
	"context"
	"fmt"
	"time"
)

// ActionType names a moderation decision recorded in the audit log.
type ActionType string

const (
	ActionApprove ActionType = "approve"
	ActionReject  ActionType = "reject"
	ActionDelete  ActionType = "delete"
)

// MaxRecent caps how many entries a single Recent call returns.
const MaxRecent = 500

// ParseActionType validates a stored action type.
func ParseActionType(s string) (ActionType, error) {
	switch a := ActionType(s); a {
	case ActionApprove, ActionReject, ActionDelete:
		return a, nil
	default:
		return "", fmt.Errorf("unknown admin action type: %q", s)
	}
}

func (a ActionType) String() string {
	return string(a)
}

// AdminAction is an immutable record of who decided what about which
// submission, and when. One is written per successful moderation transition.
type AdminAction struct {
	ID            int64      `json:"id"`
	AdminUsername string     `json:"admin_username"`
	ActionType    ActionType `json:"action_type"`
	RecordID      int64      `json:"record_id"`
	CreatedAt     time.Time  `json:"created_at"`
}

// Store is an append-only log of admin actions.
type Store interface {
	// Append writes one entry atomically and returns it with its assigned ID.
	Append(ctx context.Context, adminUsername string, action ActionType, recordID int64) (*AdminAction, error)
	// Recent returns up to limit entries, newest first. limit is clamped to (0, MaxRecent].
	Recent(ctx context.Context, limit int) ([]*AdminAction, error)
}

// ClampLimit normalises a Recent limit.
func ClampLimit(limit int) int {
	if limit <= 0 || limit > MaxRecent {
		return MaxRecent
	}
	return limit
}
