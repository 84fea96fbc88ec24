package handlers

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/delivery-issue-service/internal/api/dto"
	"github.com/spec-kit/delivery-issue-service/internal/auth"
	"github.com/spec-kit/delivery-issue-service/internal/domain"
	"github.com/spec-kit/delivery-issue-service/internal/service"
	apperrors "github.com/spec-kit/delivery-issue-service/pkg/util"
)

// IssuesHandler manages issue endpoints.
type IssuesHandler struct {
	issues   *service.IssueService
	validate *validator.Validate
}

// NewIssuesHandler constructs handler.
func NewIssuesHandler(issueService *service.IssueService, validate *validator.Validate) *IssuesHandler {
	return &IssuesHandler{issues: issueService, validate: validate}
}

// Create handles POST /issues.
func (h *IssuesHandler) Create(c *fiber.Ctx) error {
	principal, ok := auth.PrincipalFromContext(c)
	if !ok {
		return apperrors.NewUnauthorized("authentication required")
	}
	var req dto.CreateIssueRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewValidationError("invalid payload", nil)
	}
	if err := dto.Validate(h.validate, req); err != nil {
		return err
	}

	issue, err := h.issues.Create(c.UserContext(), principal, service.IssueCreateInput{
		TrackingNumber: req.TrackingNumber,
		Type:           domain.IssueType(req.Type),
		Severity:       domain.IssueSeverity(req.Severity),
		Title:          req.Title,
		Description:    req.Description,
	})
	if err != nil {
		return err
	}
	return c.Status(http.StatusCreated).JSON(dto.NewIssueResponse(issue))
}

// List handles GET /issues.
func (h *IssuesHandler) List(c *fiber.Ctx) error {
	principal, ok := auth.PrincipalFromContext(c)
	if !ok {
		return apperrors.NewUnauthorized("authentication required")
	}

	input, err := parseIssueListQuery(c)
	if err != nil {
		return err
	}

	page, err := h.issues.List(c.UserContext(), principal, input)
	if err != nil {
		return err
	}

	items := make([]dto.IssueResponse, 0, len(page.Items))
	for i := range page.Items {
		items = append(items, dto.NewIssueResponse(&page.Items[i]))
	}
	return c.JSON(dto.IssueListResponse{
		Data: items,
		Pagination: dto.PaginationResponse{
			NextCursor: page.NextCursor,
			HasMore:    page.HasMore,
			Limit:      page.Limit,
		},
	})
}

// Get handles GET /issues/:id.
func (h *IssuesHandler) Get(c *fiber.Ctx) error {
	principal, ok := auth.PrincipalFromContext(c)
	if !ok {
		return apperrors.NewUnauthorized("authentication required")
	}
	issue, err := h.issues.Get(c.UserContext(), principal, c.Params("id"))
	if err != nil {
		return err
	}
	return c.JSON(dto.NewIssueResponse(issue))
}

// Triage handles PATCH /issues/:id/triage.
func (h *IssuesHandler) Triage(c *fiber.Ctx) error {
	principal, ok := auth.PrincipalFromContext(c)
	if !ok {
		return apperrors.NewUnauthorized("authentication required")
	}
	var req dto.TriageIssueRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewValidationError("invalid payload", nil)
	}
	if err := dto.Validate(h.validate, req); err != nil {
		return err
	}

	input := service.IssueTriageInput{
		Severity:   domain.IssueSeverity(req.Severity),
		AssigneeID: req.AssignedTo,
	}
	if req.Status != nil {
		status := domain.IssueStatus(*req.Status)
		input.Status = &status
	}

	issue, err := h.issues.Triage(c.UserContext(), principal, c.Params("id"), input)
	if err != nil {
		return err
	}
	return c.JSON(dto.NewIssueResponse(issue))
}

func parseIssueListQuery(c *fiber.Ctx) (service.IssueListInput, error) {
	input := service.IssueListInput{}
	if raw := c.Query("status"); raw != "" {
		status := domain.IssueStatus(raw)
		if !status.Valid() {
			return input, apperrors.NewValidationError("unknown status", map[string]any{"status": raw})
		}
		input.Status = &status
	}
	if raw := c.Query("severity"); raw != "" {
		severity := domain.IssueSeverity(raw)
		if !severity.Valid() {
			return input, apperrors.NewValidationError("unknown severity", map[string]any{"severity": raw})
		}
		input.Severity = &severity
	}
	if raw := c.Query("type"); raw != "" {
		issueType := domain.IssueType(raw)
		if !issueType.Valid() {
			return input, apperrors.NewValidationError("unknown type", map[string]any{"type": raw})
		}
		input.Type = &issueType
	}
	if q := c.Query("q"); q != "" {
		input.SearchTerm = &q
	}
	if from, err := parseTimeParam(c.Query("from")); err != nil {
		return input, err
	} else if from != nil {
		input.CreatedFrom = from
	}
	if to, err := parseTimeParam(c.Query("to")); err != nil {
		return input, err
	} else if to != nil {
		input.CreatedTo = to
	}
	input.Cursor = c.Query("cursor")
	input.Limit = parseIntParam(c.Query("limit"), 0)
	return input, nil
}

func parseTimeParam(val string) (*time.Time, error) {
	if val == "" {
		return nil, nil
	}
	t, err := time.Parse(time.RFC3339, val)
	if err != nil {
		return nil, apperrors.NewValidationError("invalid timestamp, expected RFC3339", map[string]any{"value": val})
	}
	return &t, nil
}

func parseIntParam(val string, def int) int {
	if val == "" {
		return def
	}
	parsed, err := strconv.Atoi(val)
	if err != nil {
		return def
	}
	return parsed
}
