package domain

import "time"

// IssueType enumerates the kinds of delivery problems customers report.
type IssueType string

const (
	IssueTypeDamaged      IssueType = "DAMAGED"
	IssueTypeLost         IssueType = "LOST"
	IssueTypeDelayed      IssueType = "DELAYED"
	IssueTypeWrongAddress IssueType = "WRONG_ADDRESS"
	IssueTypeOther        IssueType = "OTHER"
)

// Valid reports whether the type is one of the enumerated values.
func (t IssueType) Valid() bool {
	switch t {
	case IssueTypeDamaged, IssueTypeLost, IssueTypeDelayed, IssueTypeWrongAddress, IssueTypeOther:
		return true
	}
	return false
}

// IssueSeverity enumerates triage urgency.
type IssueSeverity string

const (
	IssueSeverityLow      IssueSeverity = "LOW"
	IssueSeverityMedium   IssueSeverity = "MEDIUM"
	IssueSeverityHigh     IssueSeverity = "HIGH"
	IssueSeverityCritical IssueSeverity = "CRITICAL"
)

// Valid reports whether the severity is one of the enumerated values.
func (s IssueSeverity) Valid() bool {
	switch s {
	case IssueSeverityLow, IssueSeverityMedium, IssueSeverityHigh, IssueSeverityCritical:
		return true
	}
	return false
}

// IssueStatus enumerates lifecycle states for issues.
type IssueStatus string

const (
	IssueStatusOpen          IssueStatus = "OPEN"
	IssueStatusInvestigating IssueStatus = "INVESTIGATING"
	IssueStatusResolved      IssueStatus = "RESOLVED"
	IssueStatusClosed        IssueStatus = "CLOSED"
)

// Valid reports whether the status is one of the enumerated values.
func (s IssueStatus) Valid() bool {
	switch s {
	case IssueStatusOpen, IssueStatusInvestigating, IssueStatusResolved, IssueStatusClosed:
		return true
	}
	return false
}

// Terminal reports whether the status ends the workflow. Entering a terminal
// status stamps ResolvedAt; leaving one does not clear it.
func (s IssueStatus) Terminal() bool {
	return s == IssueStatusResolved || s == IssueStatusClosed
}

// Issue is the aggregate for reported delivery problems.
type Issue struct {
	ID             string
	TrackingNumber string
	Type           IssueType
	Severity       IssueSeverity
	Status         IssueStatus
	Title          string
	Description    string
	ReporterID     string
	AssigneeID     *string
	CreatedAt      time.Time
	UpdatedAt      time.Time
	ResolvedAt     *time.Time
}
