package dto

import (
	"time"

	"github.com/spec-kit/delivery-issue-service/internal/domain"
)

// CreateIssueRequest payload.
type CreateIssueRequest struct {
	TrackingNumber string `json:"trackingNumber" validate:"required,max=64"`
	Type           string `json:"type" validate:"required,oneof=DAMAGED LOST DELAYED WRONG_ADDRESS OTHER"`
	Severity       string `json:"severity" validate:"omitempty,oneof=LOW MEDIUM HIGH CRITICAL"`
	Title          string `json:"title" validate:"omitempty,max=200"`
	Description    string `json:"description" validate:"required,max=4000"`
}

// TriageIssueRequest payload. Severity is mandatory on every triage call.
type TriageIssueRequest struct {
	Severity   string  `json:"severity" validate:"required,oneof=LOW MEDIUM HIGH CRITICAL"`
	Status     *string `json:"status" validate:"omitempty,oneof=OPEN INVESTIGATING RESOLVED CLOSED"`
	AssignedTo *string `json:"assignedTo" validate:"omitempty,uuid"`
}

// IssueResponse is the public issue shape.
type IssueResponse struct {
	ID             string               `json:"id"`
	TrackingNumber string               `json:"trackingNumber"`
	Type           domain.IssueType     `json:"type"`
	Severity       domain.IssueSeverity `json:"severity"`
	Status         domain.IssueStatus   `json:"status"`
	Title          string               `json:"title"`
	Description    string               `json:"description"`
	ReportedBy     string               `json:"reportedBy"`
	AssignedTo     *string              `json:"assignedTo"`
	CreatedAt      time.Time            `json:"createdAt"`
	UpdatedAt      time.Time            `json:"updatedAt"`
	ResolvedAt     *time.Time           `json:"resolvedAt"`
}

// PaginationResponse describes the cursor state of a listing page.
type PaginationResponse struct {
	NextCursor *string `json:"nextCursor"`
	HasMore    bool    `json:"hasMore"`
	Limit      int     `json:"limit"`
}

// IssueListResponse is a page of issues.
type IssueListResponse struct {
	Data       []IssueResponse    `json:"data"`
	Pagination PaginationResponse `json:"pagination"`
}

// NewIssueResponse maps the domain model.
func NewIssueResponse(issue *domain.Issue) IssueResponse {
	return IssueResponse{
		ID:             issue.ID,
		TrackingNumber: issue.TrackingNumber,
		Type:           issue.Type,
		Severity:       issue.Severity,
		Status:         issue.Status,
		Title:          issue.Title,
		Description:    issue.Description,
		ReportedBy:     issue.ReporterID,
		AssignedTo:     issue.AssigneeID,
		CreatedAt:      issue.CreatedAt,
		UpdatedAt:      issue.UpdatedAt,
		ResolvedAt:     issue.ResolvedAt,
	}
}
