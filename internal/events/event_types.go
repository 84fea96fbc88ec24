package events

import (
	"time"

	"github.com/spec-kit/delivery-issue-service/internal/domain"
)

// EventType enumerates supported event identifiers.
type EventType string

const (
	EventIssueCreated  EventType = "issue_created"
	EventIssueTriaged  EventType = "issue_triaged"
	EventIssueAssigned EventType = "issue_assigned"
	EventUserLoggedOut EventType = "user_logged_out"
)

// Actor encapsulates actor metadata for an event.
type Actor struct {
	UserID string      `json:"user_id"`
	Role   domain.Role `json:"role"`
}

// Event represents a domain event emitted by services.
type Event struct {
	ID        string      `json:"id"`
	Type      EventType   `json:"type"`
	IssueID   string      `json:"issue_id,omitempty"`
	Actor     Actor       `json:"actor"`
	Timestamp time.Time   `json:"timestamp"`
	Payload   interface{} `json:"payload"`
}

// IssueCreatedPayload payload.
type IssueCreatedPayload struct {
	TrackingNumber string               `json:"tracking_number"`
	Type           domain.IssueType     `json:"type"`
	Severity       domain.IssueSeverity `json:"severity"`
	Title          string               `json:"title"`
}

// IssueTriagedPayload payload.
type IssueTriagedPayload struct {
	OldSeverity domain.IssueSeverity `json:"old_severity"`
	NewSeverity domain.IssueSeverity `json:"new_severity"`
	OldStatus   domain.IssueStatus   `json:"old_status"`
	NewStatus   domain.IssueStatus   `json:"new_status"`
}

// IssueAssignedPayload payload.
type IssueAssignedPayload struct {
	AssigneeID *string `json:"assignee_id,omitempty"`
}

// UserLoggedOutPayload payload.
type UserLoggedOutPayload struct {
	Everywhere bool `json:"everywhere"`
}
