package model

import "time"

// RequestStatus is the state of a QuotaModificationRequest.
type RequestStatus string

const (
	StatusPending  RequestStatus = "pending"
	StatusApproved RequestStatus = "approved"
	StatusRejected RequestStatus = "rejected"
)

// Terminal reports whether no further transition is allowed out of s.
func (s RequestStatus) Terminal() bool {
	return s == StatusApproved || s == StatusRejected
}

// Decision is a reviewer's verdict. Its values match the terminal statuses.
type Decision string

const (
	DecisionApprove Decision = "approved"
	DecisionReject  Decision = "rejected"
)

// Valid reports whether d is a known decision.
func (d Decision) Valid() bool {
	return d == DecisionApprove || d == DecisionReject
}

// QuotaModificationRequest asks the reviewer to change a target account's storage limit.
// TargetID, OldLimit and NewLimit are fixed at creation.
type QuotaModificationRequest struct {
	ID            string        `json:"id"`
	RequesterID   string        `json:"requester_id"`
	TargetID      string        `json:"target_id"`
	OldLimit      int64         `json:"old_limit"`
	NewLimit      int64         `json:"new_limit"`
	Reason        string        `json:"reason,omitempty"`
	Status        RequestStatus `json:"status"`
	ReviewerID    *string       `json:"reviewer_id,omitempty"`
	ReviewedAt    *time.Time    `json:"reviewed_at,omitempty"`
	ReviewComment *string       `json:"review_comment,omitempty"`
	CreatedAt     time.Time     `json:"created_at"`
}

// ChangeAction identifies how a quota change came to be applied.
type ChangeAction string

const (
	ActionDirectChange    ChangeAction = "direct_change"
	ActionRequestApproved ChangeAction = "request_approved"
)

// QuotaChangeLogEntry is an append-only audit record of an applied limit change.
type QuotaChangeLogEntry struct {
	ID        string       `json:"id"`
	ActorID   string       `json:"actor_id"`
	TargetID  string       `json:"target_id"`
	Action    ChangeAction `json:"action"`
	OldLimit  int64        `json:"old_limit"`
	NewLimit  int64        `json:"new_limit"`
	Reason    string       `json:"reason,omitempty"`
	CreatedAt time.Time    `json:"created_at"`
}
