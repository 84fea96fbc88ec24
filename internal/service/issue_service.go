package service

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/spec-kit/delivery-issue-service/internal/auth"
	"github.com/spec-kit/delivery-issue-service/internal/domain"
	"github.com/spec-kit/delivery-issue-service/internal/events"
	"github.com/spec-kit/delivery-issue-service/internal/repository"
	apperrors "github.com/spec-kit/delivery-issue-service/pkg/util"
)

// IssueCreateInput describes issue creation payload.
type IssueCreateInput struct {
	TrackingNumber string
	Type           domain.IssueType
	Severity       domain.IssueSeverity
	Title          string
	Description    string
}

// IssueListInput describes listing parameters as received at the boundary.
type IssueListInput struct {
	Status      *domain.IssueStatus
	Severity    *domain.IssueSeverity
	Type        *domain.IssueType
	SearchTerm  *string
	CreatedFrom *time.Time
	CreatedTo   *time.Time
	Cursor      string
	Limit       int
}

// IssueTriageInput describes the privileged triage payload. Severity is
// mandatory; status and assignee are partial updates.
type IssueTriageInput struct {
	Severity   domain.IssueSeverity
	Status     *domain.IssueStatus
	AssigneeID *string
}

// IssueService coordinates issue workflows.
type IssueService struct {
	issues     repository.IssueRepository
	users      repository.UserRepository
	dispatcher events.Dispatcher
}

// IssueDependencies bundles repositories for issue service.
type IssueDependencies struct {
	IssueRepo  repository.IssueRepository
	UserRepo   repository.UserRepository
	Dispatcher events.Dispatcher
}

// NewIssueService constructs the service.
func NewIssueService(deps IssueDependencies) *IssueService {
	return &IssueService{
		issues:     deps.IssueRepo,
		users:      deps.UserRepo,
		dispatcher: deps.Dispatcher,
	}
}

// Create records a new delivery issue for the reporting principal.
func (s *IssueService) Create(ctx context.Context, reporter *auth.Principal, input IssueCreateInput) (*domain.Issue, error) {
	if !input.Type.Valid() {
		return nil, apperrors.NewValidationError("unknown issue type", map[string]any{"type": string(input.Type)})
	}
	severity := input.Severity
	if severity == "" {
		severity = domain.IssueSeverityMedium
	}
	if !severity.Valid() {
		return nil, apperrors.NewValidationError("unknown severity", map[string]any{"severity": string(severity)})
	}

	issue := &domain.Issue{
		TrackingNumber: strings.TrimSpace(input.TrackingNumber),
		Type:           input.Type,
		Severity:       severity,
		Status:         domain.IssueStatusOpen,
		Title:          strings.TrimSpace(input.Title),
		Description:    strings.TrimSpace(input.Description),
		ReporterID:     reporter.User.ID,
	}
	if issue.Title == "" {
		issue.Title = issue.TrackingNumber + " " + strings.ToLower(string(issue.Type))
	}

	if err := s.issues.Create(ctx, issue); err != nil {
		return nil, apperrors.MapError(err)
	}
	s.publish(ctx, events.Event{
		Type:    events.EventIssueCreated,
		IssueID: issue.ID,
		Actor:   actorFor(reporter),
		Payload: events.IssueCreatedPayload{
			TrackingNumber: issue.TrackingNumber,
			Type:           issue.Type,
			Severity:       issue.Severity,
			Title:          issue.Title,
		},
	})
	return issue, nil
}

// Get loads one issue. Customers may only read their own issues; reading
// someone else's yields forbidden, not not-found.
func (s *IssueService) Get(ctx context.Context, caller *auth.Principal, id string) (*domain.Issue, error) {
	issue, err := s.issues.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.NewNotFound("issue")
		}
		return nil, apperrors.MapError(err)
	}

	switch caller.Role {
	case domain.RoleSupport:
		return issue, nil
	case domain.RoleCustomer:
		if issue.ReporterID != caller.User.ID {
			return nil, apperrors.NewForbidden("not your issue")
		}
		return issue, nil
	default:
		return nil, apperrors.NewForbidden("unknown role")
	}
}

// List returns a cursor-paginated page. Customers are scoped to their own
// issues; support sees everything.
func (s *IssueService) List(ctx context.Context, caller *auth.Principal, input IssueListInput) (*repository.IssuePage, error) {
	filter := repository.IssueFilter{
		Status:      input.Status,
		Severity:    input.Severity,
		Type:        input.Type,
		SearchTerm:  input.SearchTerm,
		CreatedFrom: input.CreatedFrom,
		CreatedTo:   input.CreatedTo,
	}

	switch caller.Role {
	case domain.RoleSupport:
	case domain.RoleCustomer:
		reporterID := caller.User.ID
		filter.ReporterID = &reporterID
	default:
		return nil, apperrors.NewForbidden("unknown role")
	}

	var cursor *repository.Cursor
	if input.Cursor != "" {
		decoded, err := repository.DecodeCursor(input.Cursor)
		if err != nil {
			return nil, apperrors.NewValidationError("malformed cursor", nil)
		}
		cursor = decoded
	}

	page, err := s.issues.List(ctx, filter, cursor, input.Limit)
	if err != nil {
		return nil, apperrors.MapError(err)
	}
	return page, nil
}

// Triage applies the privileged severity/status/assignee update. Entering a
// terminal status stamps ResolvedAt; moving back out leaves it untouched.
func (s *IssueService) Triage(ctx context.Context, actor *auth.Principal, id string, input IssueTriageInput) (*domain.Issue, error) {
	if !input.Severity.Valid() {
		return nil, apperrors.NewValidationError("unknown severity", map[string]any{"severity": string(input.Severity)})
	}
	if input.Status != nil && !input.Status.Valid() {
		return nil, apperrors.NewValidationError("unknown status", map[string]any{"status": string(*input.Status)})
	}

	issue, err := s.issues.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.NewNotFound("issue")
		}
		return nil, apperrors.MapError(err)
	}

	if input.AssigneeID != nil {
		exists, err := s.users.Exists(ctx, *input.AssigneeID)
		if err != nil {
			return nil, apperrors.MapError(err)
		}
		if !exists {
			return nil, apperrors.NewInvalidReference("assignee does not exist", map[string]any{"assigned_to": *input.AssigneeID})
		}
	}

	oldSeverity := issue.Severity
	oldStatus := issue.Status
	oldAssignee := issue.AssigneeID

	issue.Severity = input.Severity
	if input.Status != nil {
		issue.Status = *input.Status
		if issue.Status.Terminal() {
			now := time.Now()
			issue.ResolvedAt = &now
		}
	}
	if input.AssigneeID != nil {
		issue.AssigneeID = input.AssigneeID
	}

	if err := s.issues.Update(ctx, issue); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.NewNotFound("issue")
		}
		return nil, apperrors.MapError(err)
	}

	if oldSeverity != issue.Severity || oldStatus != issue.Status {
		s.publish(ctx, events.Event{
			Type:    events.EventIssueTriaged,
			IssueID: issue.ID,
			Actor:   actorFor(actor),
			Payload: events.IssueTriagedPayload{
				OldSeverity: oldSeverity,
				NewSeverity: issue.Severity,
				OldStatus:   oldStatus,
				NewStatus:   issue.Status,
			},
		})
	}
	if input.AssigneeID != nil && !sameAssignee(oldAssignee, issue.AssigneeID) {
		s.publish(ctx, events.Event{
			Type:    events.EventIssueAssigned,
			IssueID: issue.ID,
			Actor:   actorFor(actor),
			Payload: events.IssueAssignedPayload{AssigneeID: issue.AssigneeID},
		})
	}
	return issue, nil
}

func sameAssignee(a, b *string) bool {
	if a == nil || b == nil {
		return a == b
	}
	return *a == *b
}

func actorFor(p *auth.Principal) events.Actor {
	return events.Actor{UserID: p.User.ID, Role: p.Role}
}

func (s *IssueService) publish(ctx context.Context, event events.Event) {
	if s.dispatcher == nil {
		return
	}
	event.ID = uuid.NewString()
	event.Timestamp = time.Now()
	_ = s.dispatcher.Publish(ctx, event)
}
