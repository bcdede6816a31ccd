package models

import "time"

// MessageType categorizes an audit-trail message.
type MessageType string

const (
	// MessageAssignment records a task being assigned to a worker.
	MessageAssignment MessageType = "assignment"
	// MessageProgress records a worker progress report.
	MessageProgress MessageType = "progress"
	// MessageReviewFeedback records manager feedback on submitted output.
	MessageReviewFeedback MessageType = "review_feedback"
	// MessageEscalation records an unrecoverable failure surfaced to an operator.
	MessageEscalation MessageType = "escalation"
	// MessageSystem records a system-originated event.
	MessageSystem MessageType = "system"
)

// Valid returns true if the type is a known value.
func (t MessageType) Valid() bool {
	switch t {
	case MessageAssignment, MessageProgress, MessageReviewFeedback,
		MessageEscalation, MessageSystem:
		return true
	default:
		return false
	}
}

// Message is an immutable audit record of one inter-agent communication or
// system event. Messages are append-only and never mutated or deleted; the
// member and task they reference may be gone while the record persists.
type Message struct {
	// ID is the unique identifier for this message.
	ID string `json:"id"`
	// TeamID is the team this message belongs to.
	TeamID string `json:"team_id"`
	// FromMember is the sending member, if any (weak reference).
	FromMember string `json:"from_member,omitempty"`
	// ToMember is the receiving member, if any (weak reference).
	ToMember string `json:"to_member,omitempty"`
	// Type categorizes the message.
	Type MessageType `json:"type"`
	// Content is the free-text body.
	Content string `json:"content"`
	// Metadata holds free-form key/value annotations.
	Metadata map[string]string `json:"metadata,omitempty"`
	// CreatedAt is when the message was recorded.
	CreatedAt time.Time `json:"created_at"`
}
